package room

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"DuetFM/cache"
	"DuetFM/model"
)

// fakeBroadcaster 记录所有出站广播
type fakeBroadcaster struct {
	roomMsgs   []recordedMsg
	userMsgs   []recordedMsg
	globalMsgs [][]byte
}

type recordedMsg struct {
	room    string
	msg     WSMessage
	exclude string
	target  string
}

func decodeWSMessage(message []byte) WSMessage {
	var msg WSMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		panic(err)
	}
	return msg
}

func (b *fakeBroadcaster) ToRoom(room string, message []byte, excludeUser string) {
	b.roomMsgs = append(b.roomMsgs, recordedMsg{room: room, msg: decodeWSMessage(message), exclude: excludeUser})
}

func (b *fakeBroadcaster) ToAll(message []byte) {
	b.globalMsgs = append(b.globalMsgs, message)
}

func (b *fakeBroadcaster) ToUser(room, username string, message []byte) {
	b.userMsgs = append(b.userMsgs, recordedMsg{room: room, msg: decodeWSMessage(message), target: username})
}

func (b *fakeBroadcaster) lastOfType(t MessageType) (recordedMsg, bool) {
	for i := len(b.roomMsgs) - 1; i >= 0; i-- {
		if b.roomMsgs[i].msg.Type == t {
			return b.roomMsgs[i], true
		}
	}
	return recordedMsg{}, false
}

func newTestRegistry() (*Registry, *fakeBroadcaster) {
	b := &fakeBroadcaster{}
	return NewRegistry(b, cache.NewRoomCache()), b
}

func sampleTrack(id int64) *model.Track {
	return &model.Track{ID: id, Title: "Track", URL: "/uploads/audio/t.mp3"}
}

func TestJoin_CreatesRoomAndReturnsSnapshot(t *testing.T) {
	r, b := newTestRegistry()
	ctx := context.Background()

	snap := r.Join(ctx, "R", "alice", nil)

	if snap.MemberCount != 1 {
		t.Errorf("snapshot.MemberCount = %d, want 1", snap.MemberCount)
	}
	if snap.CurrentTrack != nil || snap.IsPlaying {
		t.Errorf("new room snapshot not idle: %+v", snap)
	}
	if r.RoomCount() != 1 {
		t.Errorf("RoomCount() = %d, want 1", r.RoomCount())
	}

	// 第一个成员加入时房间里没有别人，memberJoined 广播无人接收也无妨，
	// 但它必须排除加入者本人
	if msg, ok := b.lastOfType(MsgTypeMemberJoined); ok && msg.exclude != "alice" {
		t.Errorf("memberJoined exclude = %q, want %q", msg.exclude, "alice")
	}
}

func TestJoin_SendsAckToJoinerWithCurrentState(t *testing.T) {
	r, b := newTestRegistry()
	ctx := context.Background()

	r.Join(ctx, "R", "alice", nil)
	r.SetPlayback(ctx, "R", sampleTrack(1), true, 10)
	r.Join(ctx, "R", "bob", nil)

	// 应答定向发给加入者本人，内容是加入瞬间的房间状态
	last := b.userMsgs[len(b.userMsgs)-1]
	if last.msg.Type != MsgTypeJoinAck || last.room != "R" || last.target != "bob" {
		t.Fatalf("last targeted message = %+v, want joinAck to bob in R", last)
	}
	var snap model.RoomSnapshot
	if err := json.Unmarshal(last.msg.Data, &snap); err != nil {
		t.Fatal(err)
	}
	if snap.MemberCount != 2 || snap.CurrentTrack == nil || snap.CurrentTrack.ID != 1 || !snap.IsPlaying {
		t.Errorf("ack snapshot = %+v, want (2 members, track 1, playing)", snap)
	}
}

func TestJoin_IsIdempotent(t *testing.T) {
	r, b := newTestRegistry()
	ctx := context.Background()

	r.Join(ctx, "R", "alice", nil)
	broadcasts := len(b.roomMsgs)
	snap := r.Join(ctx, "R", "alice", nil)

	if snap.MemberCount != 1 {
		t.Errorf("re-join MemberCount = %d, want 1", snap.MemberCount)
	}
	if len(b.roomMsgs) != broadcasts {
		t.Errorf("re-join produced %d extra broadcasts", len(b.roomMsgs)-broadcasts)
	}
}

func TestJoin_MemberCountMatchesCardinality(t *testing.T) {
	r, b := newTestRegistry()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		snap := r.Join(ctx, "R", fmt.Sprintf("user%d", i), nil)
		if snap.MemberCount != i+1 {
			t.Errorf("join %d: MemberCount = %d, want %d", i, snap.MemberCount, i+1)
		}
	}

	msg, ok := b.lastOfType(MsgTypeMemberJoined)
	if !ok {
		t.Fatal("no memberJoined broadcast recorded")
	}
	var data MemberChangeData
	if err := json.Unmarshal(msg.msg.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.MemberCount != 5 || data.Username != "user4" {
		t.Errorf("last memberJoined = %+v, want user4/5", data)
	}
}

func TestLeave_DestroysEmptyRoom(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()

	r.Join(ctx, "R", "alice", nil)
	r.Leave(ctx, "R", "alice")

	if r.RoomCount() != 0 {
		t.Errorf("RoomCount() = %d after last leave, want 0", r.RoomCount())
	}
	if _, ok := r.MemberCount("R"); ok {
		t.Error("MemberCount() found destroyed room")
	}
}

func TestLeave_BroadcastsToRemaining(t *testing.T) {
	r, b := newTestRegistry()
	ctx := context.Background()

	r.Join(ctx, "R", "alice", nil)
	r.Join(ctx, "R", "bob", nil)
	r.Leave(ctx, "R", "bob")

	msg, ok := b.lastOfType(MsgTypeMemberLeft)
	if !ok {
		t.Fatal("no memberLeft broadcast")
	}
	var data MemberChangeData
	if err := json.Unmarshal(msg.msg.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Username != "bob" || data.MemberCount != 1 {
		t.Errorf("memberLeft = %+v, want bob/1", data)
	}
}

func TestLeave_UnknownRoomOrMemberIsNoop(t *testing.T) {
	r, b := newTestRegistry()
	ctx := context.Background()

	r.Leave(ctx, "nope", "alice")

	r.Join(ctx, "R", "alice", nil)
	before := len(b.roomMsgs)
	r.Leave(ctx, "R", "stranger")
	if len(b.roomMsgs) != before {
		t.Error("leave of non-member produced broadcasts")
	}
	if count, _ := r.MemberCount("R"); count != 1 {
		t.Errorf("MemberCount = %d, want 1", count)
	}
}

func TestSetPlayback_LastWriterWins(t *testing.T) {
	r, b := newTestRegistry()
	ctx := context.Background()
	r.Join(ctx, "R", "alice", nil)

	if !r.SetPlayback(ctx, "R", sampleTrack(1), true, 10) {
		t.Fatal("first SetPlayback rejected")
	}
	if !r.SetPlayback(ctx, "R", sampleTrack(2), false, 0) {
		t.Fatal("second SetPlayback rejected")
	}

	state, ok := r.Playback("R")
	if !ok {
		t.Fatal("Playback() room missing")
	}
	if state.CurrentTrack == nil || state.CurrentTrack.ID != 2 || state.IsPlaying || state.Position != 0 {
		t.Errorf("final state = %+v, want (track 2, paused, 0)", state)
	}

	msg, _ := b.lastOfType(MsgTypePlayback)
	var data PlaybackData
	if err := json.Unmarshal(msg.msg.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Track.ID != 2 || data.IsPlaying {
		t.Errorf("last playback broadcast = %+v, want track 2 paused", data)
	}
	if msg.exclude != "" {
		t.Errorf("playback broadcast excludes %q, must include the whole room", msg.exclude)
	}
}

func TestSetPlayback_UnknownRoomIsNoop(t *testing.T) {
	r, b := newTestRegistry()

	if r.SetPlayback(context.Background(), "ghost", sampleTrack(1), true, 0) {
		t.Error("SetPlayback resurrected an unknown room")
	}
	if r.RoomCount() != 0 {
		t.Errorf("RoomCount() = %d, want 0", r.RoomCount())
	}
	if len(b.roomMsgs) != 0 {
		t.Error("SetPlayback for unknown room produced broadcasts")
	}
}

func TestSetPlayback_ClampsNegativePosition(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()
	r.Join(ctx, "R", "alice", nil)

	r.SetPlayback(ctx, "R", sampleTrack(1), true, -3)

	state, _ := r.Playback("R")
	if state.Position != 0 {
		t.Errorf("Position = %v, want clamped to 0", state.Position)
	}
}

func TestAppendChat_BoundedHistory(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()
	r.Join(ctx, "R", "alice", nil)

	for i := 0; i < 150; i++ {
		if _, ok := r.AppendChat(ctx, "R", "alice", fmt.Sprintf("msg-%d", i)); !ok {
			t.Fatalf("AppendChat %d rejected", i)
		}
	}

	history, ok := r.History("R")
	if !ok {
		t.Fatal("History() room missing")
	}
	if len(history) != 100 {
		t.Fatalf("history length = %d after 150 messages, want 100", len(history))
	}
	if history[0].Text != "msg-50" {
		t.Errorf("oldest retained = %q, want msg-50", history[0].Text)
	}
	if history[99].Text != "msg-149" {
		t.Errorf("newest retained = %q, want msg-149", history[99].Text)
	}
}

func TestAppendChat_RequiresMembership(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()

	if _, ok := r.AppendChat(ctx, "ghost", "alice", "hi"); ok {
		t.Error("chat accepted for unknown room")
	}

	r.Join(ctx, "R", "alice", nil)
	if _, ok := r.AppendChat(ctx, "R", "stranger", "hi"); ok {
		t.Error("chat accepted from non-member")
	}
}

func TestDropTrack_ForcesIdle(t *testing.T) {
	r, b := newTestRegistry()
	ctx := context.Background()
	r.Join(ctx, "R", "alice", nil)
	r.Join(ctx, "S", "bob", nil)
	r.SetPlayback(ctx, "R", sampleTrack(1000), true, 42)
	r.SetPlayback(ctx, "S", sampleTrack(2), true, 5)

	before := len(b.roomMsgs)
	r.DropTrack(ctx, 1000)

	state, _ := r.Playback("R")
	if state.CurrentTrack != nil || state.IsPlaying {
		t.Errorf("room R not idle after drop: %+v", state)
	}
	if state.Position != 0 {
		t.Errorf("room R Position = %v after drop, want reset to 0", state.Position)
	}

	// 播别的歌的房间不受影响
	other, _ := r.Playback("S")
	if other.CurrentTrack == nil || other.CurrentTrack.ID != 2 || !other.IsPlaying {
		t.Errorf("room S affected by unrelated drop: %+v", other)
	}

	if len(b.roomMsgs) != before+1 {
		t.Errorf("DropTrack produced %d broadcasts, want 1", len(b.roomMsgs)-before)
	}
}
