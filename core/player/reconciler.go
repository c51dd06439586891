package player

import (
	"time"

	"DuetFM/model"
)

// seekTolerance 低于这个偏差不做 seek，避免可闻的卡顿
// 协议只要求亚100毫秒级以内的漂移可接受，留出余量
const seekTolerance = 0.75

// AudioElement 本地音频输出的抽象，由具体客户端实现
type AudioElement interface {
	// Load 替换音源并记住歌曲ID，加载后处于暂停态、进度为0
	Load(url string, trackID int64)
	Play()
	Pause()
	// Seek 跳转到指定进度（秒）
	Seek(position float64)
	// TrackID 当前加载的歌曲ID，未加载时为0
	TrackID() int64
	// Position 当前播放进度（秒）
	Position() float64
}

// Reconciler 客户端播放调和器
// 接收加入快照和播放广播，按服务端时间戳外推播放进度，
// 再把本地音频元素调整到目标状态。
type Reconciler struct {
	audio AudioElement
	now   func() time.Time
}

// New 创建调和器
func New(audio AudioElement) *Reconciler {
	return &Reconciler{audio: audio, now: time.Now}
}

// NewWithClock 创建使用指定时钟的调和器，测试用
func NewWithClock(audio AudioElement, now func() time.Time) *Reconciler {
	return &Reconciler{audio: audio, now: now}
}

// ApplySnapshot 应用加入房间时拿到的完整快照
func (r *Reconciler) ApplySnapshot(snap *model.RoomSnapshot) {
	r.apply(snap.CurrentTrack, snap.IsPlaying, snap.Position, snap.UpdatedAt)
}

// ApplyPlayback 应用一条播放状态广播
func (r *Reconciler) ApplyPlayback(track *model.Track, isPlaying bool, position float64, updatedAt int64) {
	r.apply(track, isPlaying, position, updatedAt)
}

// LocalAction 本地用户操作（按下播放、拖动进度条）的乐观应用
// 调用方同时要把同样的 setPlayback 动作发往服务端，不等回显
func (r *Reconciler) LocalAction(track *model.Track, isPlaying bool, position float64) {
	// 本地操作没有传播延迟，不做外推
	r.apply(track, isPlaying, position, 0)
}

// apply 把本地音频元素调和到目标状态
func (r *Reconciler) apply(track *model.Track, isPlaying bool, position float64, updatedAt int64) {
	if track == nil {
		r.audio.Pause()
		return
	}

	// 用服务端盖章时间补偿事件从产生到渲染之间的传播延迟
	target := position
	if isPlaying && updatedAt > 0 {
		elapsed := r.now().UnixMilli() - updatedAt
		if elapsed > 0 {
			target += float64(elapsed) / 1000
		}
	}

	// 只有歌曲真的变了才替换音源：同一首歌的重复广播不能从头重播
	if r.audio.TrackID() != track.ID {
		r.audio.Load(track.URL, track.ID)
		r.audio.Seek(target)
	} else if diff := r.audio.Position() - target; diff > seekTolerance || diff < -seekTolerance {
		r.audio.Seek(target)
	}

	if isPlaying {
		r.audio.Play()
	} else {
		r.audio.Pause()
	}
}
