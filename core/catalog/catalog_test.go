package catalog

import (
	"context"
	"testing"

	"DuetFM/model"
)

type recordingNotifier struct {
	added   []model.Track
	removed []int64
}

func (n *recordingNotifier) TrackAdded(track model.Track) { n.added = append(n.added, track) }
func (n *recordingNotifier) TrackRemoved(id int64)        { n.removed = append(n.removed, id) }

func TestListTracks_BuiltinsFirstAndStable(t *testing.T) {
	c := New(nil)

	first := c.ListTracks()
	second := c.ListTracks()

	if len(first) != 5 {
		t.Fatalf("ListTracks() = %d tracks, want 5 builtins", len(first))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("ListTracks() not stable at index %d: %d vs %d", i, first[i].ID, second[i].ID)
		}
		if first[i].IsUploaded {
			t.Errorf("builtin track %d marked as uploaded", first[i].ID)
		}
	}
}

func TestAddUploadedTrack_AssignsDisjointIDs(t *testing.T) {
	c := New(nil)
	n := &recordingNotifier{}
	c.SetNotifier(n)

	ctx := context.Background()
	a := c.AddUploadedTrack(ctx, UploadMeta{Title: "First", URL: "/uploads/audio/a.mp3", UploadedBy: "alice"})
	b := c.AddUploadedTrack(ctx, UploadMeta{Title: "Second", URL: "/uploads/audio/b.mp3", UploadedBy: "bob"})

	if a.ID != 1000 || b.ID != 1001 {
		t.Errorf("uploaded ids = %d, %d, want 1000, 1001", a.ID, b.ID)
	}
	if !a.IsUploaded || a.UploadedBy != "alice" {
		t.Errorf("uploaded track metadata wrong: %+v", a)
	}

	tracks := c.ListTracks()
	if len(tracks) != 7 {
		t.Fatalf("ListTracks() = %d tracks after two uploads, want 7", len(tracks))
	}
	if tracks[5].ID != 1000 || tracks[6].ID != 1001 {
		t.Errorf("uploads not in registration order: %d, %d", tracks[5].ID, tracks[6].ID)
	}

	if len(n.added) != 2 {
		t.Errorf("notifier received %d added events, want 2", len(n.added))
	}
}

func TestRemoveTrack_BuiltinsNeverDeletable(t *testing.T) {
	c := New(nil)
	n := &recordingNotifier{}
	c.SetNotifier(n)

	if _, ok := c.RemoveTrack(context.Background(), 1); ok {
		t.Error("RemoveTrack(builtin) succeeded, builtins must never be deletable")
	}
	if _, ok := c.RemoveTrack(context.Background(), 9999); ok {
		t.Error("RemoveTrack(unknown id) succeeded")
	}
	if len(n.removed) != 0 {
		t.Errorf("notifier received %d removed events for failed removals", len(n.removed))
	}
}

func TestRemoveTrack_Uploaded(t *testing.T) {
	c := New(nil)
	n := &recordingNotifier{}
	c.SetNotifier(n)

	ctx := context.Background()
	track := c.AddUploadedTrack(ctx, UploadMeta{Title: "Gone Soon", URL: "/uploads/audio/g.mp3"})

	removed, ok := c.RemoveTrack(ctx, track.ID)
	if !ok {
		t.Fatal("RemoveTrack(uploaded) failed")
	}
	if removed.ID != track.ID {
		t.Errorf("removed.ID = %d, want %d", removed.ID, track.ID)
	}
	if _, found := c.Get(track.ID); found {
		t.Error("Get() still finds removed track")
	}
	if len(n.removed) != 1 || n.removed[0] != track.ID {
		t.Errorf("notifier removed events = %v, want [%d]", n.removed, track.ID)
	}

	// 删除后的新上传不复用已删除的ID
	next := c.AddUploadedTrack(ctx, UploadMeta{Title: "Next", URL: "/uploads/audio/n.mp3"})
	if next.ID <= track.ID {
		t.Errorf("new upload id %d not greater than removed id %d", next.ID, track.ID)
	}
}

func TestHasURL(t *testing.T) {
	c := New(nil)
	c.AddUploadedTrack(context.Background(), UploadMeta{Title: "X", URL: "/uploads/audio/x.mp3"})

	if !c.HasURL("/uploads/audio/x.mp3") {
		t.Error("HasURL() = false for registered url")
	}
	if c.HasURL("/uploads/audio/y.mp3") {
		t.Error("HasURL() = true for unknown url")
	}
}
