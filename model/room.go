package model

// ChatMessage 房间聊天消息
// 仅保留在内存环形历史里（上限100条），不做持久化
type ChatMessage struct {
	Username string `json:"username"`
	Text     string `json:"text"`
	SentAt   int64  `json:"sentAt"` // Unix 毫秒时间戳，服务端盖章
}

// PlaybackState 房间播放状态
// CurrentTrack 为 nil 时 IsPlaying 必为 false
type PlaybackState struct {
	CurrentTrack *Track  `json:"currentTrack"`
	IsPlaying    bool    `json:"isPlaying"`
	Position     float64 `json:"positionSeconds"` // 播放进度（秒）
	UpdatedAt    int64   `json:"updatedAt"`       // 状态更新时间戳（服务端毫秒）
}

// RoomSnapshot 加入房间时返回给新成员的完整快照
type RoomSnapshot struct {
	MemberCount  int     `json:"memberCount"`
	Tracks       []Track `json:"tracks"`
	CurrentTrack *Track  `json:"currentTrack"`
	IsPlaying    bool    `json:"isPlaying"`
	Position     float64 `json:"positionSeconds"`
	UpdatedAt    int64   `json:"updatedAt"`
}
