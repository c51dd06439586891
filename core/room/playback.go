package room

import "DuetFM/model"

// 播放状态机只有三个形态：Idle（无歌曲）、Playing、Paused。
// 播放/暂停/跳转不是三个独立转移，而是同一个幂等的状态替换动作，
// 冲突解决因此收敛为一条规则：以服务端处理顺序为准的 last-writer-wins。

// maxHistory 聊天历史上限，超出后淘汰最旧的消息
const maxHistory = 100

// roomState 房间状态，由 Registry 独占持有
// 所有变更都经过 Registry 的临界区，别的组件只能拿到副本
type roomState struct {
	name     string
	members  map[string]struct{}
	playback model.PlaybackState
	history  []model.ChatMessage
}

func newRoomState(name string) *roomState {
	return &roomState{
		name:    name,
		members: make(map[string]struct{}),
	}
}

// applyPlayback 唯一的常规状态转移：整体替换播放状态
// track 为 nil 时等价于回到 Idle，此时 isPlaying 强制为 false
func (s *roomState) applyPlayback(track *model.Track, isPlaying bool, position float64, now int64) {
	if position < 0 {
		position = 0
	}
	if track == nil {
		isPlaying = false
	}
	s.playback = model.PlaybackState{
		CurrentTrack: track,
		IsPlaying:    isPlaying,
		Position:     position,
		UpdatedAt:    now,
	}
}

// forceIdle 曲目被删除时的强制转移，绕过常规动作路径
// 播放进度归零：失去歌曲的房间没有有意义的播放位置
func (s *roomState) forceIdle(now int64) {
	s.playback = model.PlaybackState{
		CurrentTrack: nil,
		IsPlaying:    false,
		Position:     0,
		UpdatedAt:    now,
	}
}

// appendMessage 追加聊天消息，保持历史上限
func (s *roomState) appendMessage(msg model.ChatMessage) {
	s.history = append(s.history, msg)
	if len(s.history) > maxHistory {
		s.history = s.history[len(s.history)-maxHistory:]
	}
}
