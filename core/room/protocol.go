package room

import (
	"encoding/json"
	"time"

	"DuetFM/model"
)

// MessageType 消息类型
type MessageType string

const (
	// 客户端 -> 服务端
	MsgTypeJoin        MessageType = "join"        // 加入房间
	MsgTypeChat        MessageType = "chatMessage" // 聊天消息
	MsgTypeSetPlayback MessageType = "setPlayback" // 播放状态替换（播放/暂停/跳转统一为一个动作）
	MsgTypePing        MessageType = "ping"        // 心跳

	// 服务端 -> 客户端
	MsgTypeJoinAck        MessageType = "joinAck"             // 加入应答（完整快照）
	MsgTypeMemberJoined   MessageType = "memberJoined"        // 成员加入（不发给加入者本人）
	MsgTypeMemberLeft     MessageType = "memberLeft"          // 成员离开
	MsgTypePlayback       MessageType = "playback"            // 播放状态广播
	MsgTypeCatalogAdded   MessageType = "catalogTrackAdded"   // 曲库新增（全局）
	MsgTypeCatalogRemoved MessageType = "catalogTrackRemoved" // 曲库删除（全局）
	MsgTypeError          MessageType = "error"               // 错误消息
	MsgTypePong           MessageType = "pong"                // 心跳响应
)

// WSMessage WebSocket 消息结构
type WSMessage struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// JoinData 加入房间请求
type JoinData struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

// MemberChangeData 成员变动通知
type MemberChangeData struct {
	Username    string `json:"username"`
	MemberCount int    `json:"memberCount"`
}

// ChatInData 聊天消息请求
type ChatInData struct {
	Room     string `json:"room"`
	Username string `json:"username"`
	Text     string `json:"text"`
}

// SetPlaybackData 播放状态替换请求
type SetPlaybackData struct {
	Room      string       `json:"room"`
	Track     *model.Track `json:"track"`
	IsPlaying bool         `json:"isPlaying"`
	Position  float64      `json:"positionSeconds"`
}

// PlaybackData 播放状态广播
// UpdatedAt 为服务端盖章时间，客户端据此外推播放进度
type PlaybackData struct {
	Track     *model.Track `json:"track"`
	IsPlaying bool         `json:"isPlaying"`
	Position  float64      `json:"positionSeconds"`
	UpdatedAt int64        `json:"updatedAt"`
}

// CatalogAddedData 曲库新增通知
type CatalogAddedData struct {
	Track model.Track `json:"track"`
}

// CatalogRemovedData 曲库删除通知
type CatalogRemovedData struct {
	TrackID int64 `json:"trackId"`
}

// ErrorData 错误消息
type ErrorData struct {
	Message string `json:"message"`
}

// NewMessage 构造带时间戳的消息
func NewMessage(t MessageType, payload interface{}) (*WSMessage, error) {
	msg := &WSMessage{Type: t, Timestamp: time.Now().UnixMilli()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Data = data
	}
	return msg, nil
}

// mustMarshal 构造消息并序列化，payload 为内部类型时不应失败
func mustMarshal(t MessageType, payload interface{}) []byte {
	msg, err := NewMessage(t, payload)
	if err != nil {
		return nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil
	}
	return data
}
