package room

import (
	"context"
	"encoding/json"

	"DuetFM/core/catalog"
	"DuetFM/logger"
	"DuetFM/model"
)

// Dispatcher 事件分发器
// 把入站动作翻译成状态转移和出站广播：聊天/成员/播放是房间级，
// 曲库变更是全局级。无效动作（未知房间、未知歌曲、未绑定连接）
// 一律静默忽略，绝不让分发循环崩溃。
type Dispatcher struct {
	hub      *Hub
	registry *Registry
	catalog  *catalog.Catalog
}

// NewDispatcher 创建分发器并接管断线回调和曲库通知
func NewDispatcher(hub *Hub, registry *Registry, cat *catalog.Catalog) *Dispatcher {
	d := &Dispatcher{hub: hub, registry: registry, catalog: cat}
	hub.SetOnDisconnect(d.HandleDisconnect)
	cat.SetNotifier(d)
	return d
}

// HandleMessage 处理一条入站消息
func (d *Dispatcher) HandleMessage(ctx context.Context, c *Client, msg *WSMessage) {
	// 断线优先于该连接排队中的任何动作
	if c.IsClosed() {
		return
	}

	switch msg.Type {
	case MsgTypeJoin:
		d.handleJoin(ctx, c, msg.Data)
	case MsgTypeChat:
		d.handleChat(ctx, c, msg.Data)
	case MsgTypeSetPlayback:
		d.handleSetPlayback(ctx, c, msg.Data)
	default:
		logger.Warn("unknown message type", logger.String("type", string(msg.Type)))
	}
}

// handleJoin 加入房间：绑定连接、注册到 Hub、返回完整快照
func (d *Dispatcher) handleJoin(ctx context.Context, c *Client, data json.RawMessage) {
	var req JoinData
	if err := json.Unmarshal(data, &req); err != nil || req.Username == "" || req.Room == "" {
		d.sendError(c, "join requires username and room")
		return
	}

	// 一条连接只能绑定一个房间
	if room, _ := c.Binding(); room != "" {
		d.sendError(c, "connection already joined a room")
		return
	}

	c.Bind(req.Room, req.Username)
	d.hub.Register(c)

	// 应答由注册表经广播队列定向发出，和房间广播保持顺序
	d.registry.Join(ctx, req.Room, req.Username, d.catalog.ListTracks())
}

// handleChat 聊天消息：服务端盖章、入历史、全房间转发
func (d *Dispatcher) handleChat(ctx context.Context, c *Client, data json.RawMessage) {
	var req ChatInData
	if err := json.Unmarshal(data, &req); err != nil || req.Text == "" {
		return
	}

	room, username := c.Binding()
	if room == "" || req.Room != room || req.Username != username {
		logger.Warn("chat message with mismatched binding",
			logger.String("room", req.Room),
			logger.String("username", req.Username))
		return
	}

	d.registry.AppendChat(ctx, room, username, req.Text)
}

// handleSetPlayback 播放状态替换
// 歌曲以曲库中的权威记录为准，客户端传来的元数据不被信任
func (d *Dispatcher) handleSetPlayback(ctx context.Context, c *Client, data json.RawMessage) {
	var req SetPlaybackData
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}

	room, _ := c.Binding()
	if room == "" || req.Room != room {
		return
	}

	if req.Track == nil {
		// 回到 Idle 只有一条路径：曲目被删除。空歌曲动作视为无效
		return
	}
	track, ok := d.catalog.Get(req.Track.ID)
	if !ok {
		logger.Warn("setPlayback for unknown track",
			logger.String("room", room),
			logger.Int64("trackId", req.Track.ID))
		return
	}

	d.registry.SetPlayback(ctx, room, &track, req.IsPlaying, req.Position)
}

// HandleDisconnect 连接断开等价于隐式 leave
func (d *Dispatcher) HandleDisconnect(c *Client) {
	room, username := c.Binding()
	if room == "" {
		return
	}

	// 同一用户的新连接顶掉旧连接时，成员资格仍然有效
	if current := d.hub.GetClient(room, username); current != nil && current != c {
		return
	}

	d.registry.Leave(context.Background(), room, username)
}

// ========== catalog.Notifier ==========

// TrackAdded 曲库新增：广播给所有连接
func (d *Dispatcher) TrackAdded(track model.Track) {
	d.hub.ToAll(mustMarshal(MsgTypeCatalogAdded, &CatalogAddedData{Track: track}))
}

// TrackRemoved 曲库删除：先把相关房间转入 Idle，再全局广播
func (d *Dispatcher) TrackRemoved(trackID int64) {
	d.registry.DropTrack(context.Background(), trackID)
	d.hub.ToAll(mustMarshal(MsgTypeCatalogRemoved, &CatalogRemovedData{TrackID: trackID}))
}

func (d *Dispatcher) sendError(c *Client, message string) {
	msg, err := NewMessage(MsgTypeError, &ErrorData{Message: message})
	if err != nil {
		return
	}
	if err := c.SendMessage(msg); err != nil {
		logger.Warn("failed to send error message", logger.ErrorField(err))
	}
}
