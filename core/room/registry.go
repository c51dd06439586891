package room

import (
	"context"
	"sort"
	"sync"
	"time"

	"DuetFM/cache"
	"DuetFM/logger"
	"DuetFM/model"
)

// Broadcaster 出站消息的投递口，由 Hub 实现
type Broadcaster interface {
	// ToRoom 发给房间内所有成员，excludeUser 非空时跳过该用户
	ToRoom(room string, message []byte, excludeUser string)
	// ToAll 发给所有连接（曲库事件是全局的）
	ToAll(message []byte)
	// ToUser 定向发给房间内的某个用户，与广播共享投递顺序
	ToUser(room, username string, message []byte)
}

// Registry 房间注册表，唯一持有全部房间状态
// 首次加入时惰性创建房间，最后一个成员离开的瞬间销毁。
// 同一房间的 join/leave/setPlayback 和对应广播在同一个临界区内完成，
// 这让 last-writer-wins 的"最后"有了确定含义，也保证所有成员看到
// 一致的 memberCount。
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*roomState

	b     Broadcaster
	cache *cache.RoomCache
	now   func() time.Time
}

// NewRegistry 创建房间注册表
func NewRegistry(b Broadcaster, rc *cache.RoomCache) *Registry {
	return &Registry{
		rooms: make(map[string]*roomState),
		b:     b,
		cache: rc,
		now:   time.Now,
	}
}

// Join 加入房间，不存在时创建，返回完整快照
// 同一份快照会作为 joinAck 定向发给加入者；重复加入是幂等的：
// 成员集合不变，也不产生 memberJoined 广播
func (r *Registry) Join(ctx context.Context, room, username string, tracks []model.Track) *model.RoomSnapshot {
	r.mu.Lock()
	state, ok := r.rooms[room]
	if !ok {
		state = newRoomState(room)
		r.rooms[room] = state
		logger.Info("room created", logger.String("room", room))
	}

	_, already := state.members[username]
	if !already {
		state.members[username] = struct{}{}
		r.b.ToRoom(room, mustMarshal(MsgTypeMemberJoined, &MemberChangeData{
			Username:    username,
			MemberCount: len(state.members),
		}), username)
	}

	snap := &model.RoomSnapshot{
		MemberCount:  len(state.members),
		Tracks:       tracks,
		CurrentTrack: state.playback.CurrentTrack,
		IsPlaying:    state.playback.IsPlaying,
		Position:     state.playback.Position,
		UpdatedAt:    state.playback.UpdatedAt,
	}
	// 应答在临界区内入队，它在投递顺序中的位置和快照的新旧程度
	// 严格一致：更新的广播一定排在应答之后到达
	r.b.ToUser(room, username, mustMarshal(MsgTypeJoinAck, snap))
	r.mu.Unlock()

	if !already {
		if err := r.cache.AddMember(ctx, room, username); err != nil {
			logger.Warn("failed to mirror member join",
				logger.String("room", room), logger.ErrorField(err))
		}
	}

	logger.Info("member joined",
		logger.String("room", room),
		logger.String("username", username),
		logger.Int("memberCount", snap.MemberCount))
	return snap
}

// Leave 离开房间；成员集合清空时销毁房间
// 房间销毁不再广播：没有人留下来接收
func (r *Registry) Leave(ctx context.Context, room, username string) {
	r.mu.Lock()
	state, ok := r.rooms[room]
	if !ok {
		r.mu.Unlock()
		return
	}
	if _, member := state.members[username]; !member {
		r.mu.Unlock()
		return
	}

	delete(state.members, username)
	destroyed := len(state.members) == 0
	if destroyed {
		delete(r.rooms, room)
	} else {
		r.b.ToRoom(room, mustMarshal(MsgTypeMemberLeft, &MemberChangeData{
			Username:    username,
			MemberCount: len(state.members),
		}), username)
	}
	remaining := len(state.members)
	r.mu.Unlock()

	if destroyed {
		if err := r.cache.DropRoom(ctx, room); err != nil {
			logger.Warn("failed to drop room mirror",
				logger.String("room", room), logger.ErrorField(err))
		}
		logger.Info("room destroyed", logger.String("room", room))
	} else {
		if err := r.cache.RemoveMember(ctx, room, username); err != nil {
			logger.Warn("failed to mirror member leave",
				logger.String("room", room), logger.ErrorField(err))
		}
	}

	logger.Info("member left",
		logger.String("room", room),
		logger.String("username", username),
		logger.Int("memberCount", remaining))
}

// AppendChat 追加聊天消息并广播给整个房间（包含发送者）
// 房间不存在或发送者不是成员时静默忽略
func (r *Registry) AppendChat(ctx context.Context, room, username, text string) (*model.ChatMessage, bool) {
	r.mu.Lock()
	state, ok := r.rooms[room]
	if !ok {
		r.mu.Unlock()
		return nil, false
	}
	if _, member := state.members[username]; !member {
		r.mu.Unlock()
		return nil, false
	}

	msg := model.ChatMessage{
		Username: username,
		Text:     text,
		SentAt:   r.now().UnixMilli(),
	}
	state.appendMessage(msg)
	r.b.ToRoom(room, mustMarshal(MsgTypeChat, &msg), "")
	r.mu.Unlock()

	if err := r.cache.AppendMessage(ctx, room, &msg); err != nil {
		logger.Warn("failed to mirror chat message",
			logger.String("room", room), logger.ErrorField(err))
	}
	return &msg, true
}

// SetPlayback 替换房间播放状态并广播
// 房间不存在时是 no-op：动作不会复活已销毁的房间
func (r *Registry) SetPlayback(ctx context.Context, room string, track *model.Track, isPlaying bool, position float64) bool {
	r.mu.Lock()
	state, ok := r.rooms[room]
	if !ok {
		r.mu.Unlock()
		return false
	}

	state.applyPlayback(track, isPlaying, position, r.now().UnixMilli())
	playback := state.playback
	r.b.ToRoom(room, mustMarshal(MsgTypePlayback, &PlaybackData{
		Track:     playback.CurrentTrack,
		IsPlaying: playback.IsPlaying,
		Position:  playback.Position,
		UpdatedAt: playback.UpdatedAt,
	}), "")
	r.mu.Unlock()

	if err := r.cache.SetPlayback(ctx, room, &playback); err != nil {
		logger.Warn("failed to mirror playback state",
			logger.String("room", room), logger.ErrorField(err))
	}
	return true
}

// DropTrack 曲目被删除时把所有正在播它的房间强制转入 Idle
// 由曲库触发，绕过常规动作路径
func (r *Registry) DropTrack(ctx context.Context, trackID int64) {
	r.mu.Lock()
	var affected []string
	var states []model.PlaybackState
	for name, state := range r.rooms {
		if state.playback.CurrentTrack == nil || state.playback.CurrentTrack.ID != trackID {
			continue
		}
		state.forceIdle(r.now().UnixMilli())
		r.b.ToRoom(name, mustMarshal(MsgTypePlayback, &PlaybackData{
			Track:     nil,
			IsPlaying: false,
			Position:  0,
			UpdatedAt: state.playback.UpdatedAt,
		}), "")
		affected = append(affected, name)
		states = append(states, state.playback)
	}
	r.mu.Unlock()

	for i, name := range affected {
		if err := r.cache.SetPlayback(ctx, name, &states[i]); err != nil {
			logger.Warn("failed to mirror forced idle",
				logger.String("room", name), logger.ErrorField(err))
		}
	}

	if len(affected) > 0 {
		logger.Info("rooms forced idle by track deletion",
			logger.Int64("trackId", trackID),
			logger.Int("rooms", len(affected)))
	}
}

// ========== 只读访问 ==========

// MemberCount 房间成员数，房间不存在时返回 false
func (r *Registry) MemberCount(room string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.rooms[room]
	if !ok {
		return 0, false
	}
	return len(state.members), true
}

// IsMember 判断用户是否在房间内
func (r *Registry) IsMember(room, username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.rooms[room]
	if !ok {
		return false
	}
	_, member := state.members[username]
	return member
}

// Members 房间成员名单（排序后的副本）
func (r *Registry) Members(room string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.rooms[room]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(state.members))
	for name := range state.members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Playback 房间当前播放状态的副本
func (r *Registry) Playback(room string) (model.PlaybackState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.rooms[room]
	if !ok {
		return model.PlaybackState{}, false
	}
	return state.playback, true
}

// History 房间聊天历史的副本，最旧在前
func (r *Registry) History(room string) ([]model.ChatMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.rooms[room]
	if !ok {
		return nil, false
	}
	history := make([]model.ChatMessage, len(state.history))
	copy(history, state.history)
	return history, true
}

// RoomCount 当前存活的房间数，恒等于有至少一个成员的房间数
func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}
