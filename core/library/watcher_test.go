package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"DuetFM/core/catalog"
)

func startWatcher(t *testing.T, dir string, cat *catalog.Catalog) {
	t.Helper()
	w, err := NewWatcher(dir, cat)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Run(ctx)
}

func countURL(cat *catalog.Catalog, url string) int {
	n := 0
	for _, track := range cat.ListTracks() {
		if track.URL == url {
			n++
		}
	}
	return n
}

func waitForURL(t *testing.T, cat *catalog.Catalog, url string) {
	t.Helper()
	deadline := time.Now().Add(4 * settleDelay)
	for time.Now().Before(deadline) {
		if cat.HasURL(url) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s to be registered", url)
}

func TestWatcher_RegistersSettledFile(t *testing.T) {
	dir := t.TempDir()
	cat := catalog.New(nil)
	startWatcher(t, dir, cat)

	if err := os.WriteFile(filepath.Join(dir, "dropped.mp3"), []byte("audio-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	// 非音频文件被忽略
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("text"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitForURL(t, cat, "/uploads/audio/dropped.mp3")

	tracks := cat.ListTracks()
	var found int
	for _, track := range tracks {
		if track.URL != "/uploads/audio/dropped.mp3" {
			continue
		}
		found++
		if track.Title != "dropped" || track.UploadedBy != "library" {
			t.Errorf("registered track = %+v, want title dropped by library", track)
		}
	}
	if found != 1 {
		t.Errorf("file registered %d times, want 1", found)
	}
	if cat.HasURL("/uploads/audio/notes.txt") {
		t.Error("non-audio file registered")
	}
}

// TestWatcher_SlowWriteRegisteredOnce 写入远慢于稳定间隔的文件
// 不得在半途被注册，也不得和上传接口的注册重复
func TestWatcher_SlowWriteRegisteredOnce(t *testing.T) {
	dir := t.TempDir()
	cat := catalog.New(nil)
	startWatcher(t, dir, cat)

	const url = "/uploads/audio/slow.mp3"
	path := filepath.Join(dir, "slow.mp3")

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write(make([]byte, 8)); err != nil {
		t.Fatal(err)
	}

	// 写到一半停下来，跨过一个稳定间隔
	time.Sleep(settleDelay + settleDelay/2)
	if cat.HasURL(url) {
		t.Fatal("partially written file registered")
	}

	if _, err := f.Write(make([]byte, 8)); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	// 写入完成后由上传接口注册，监听器随后按URL查重让路
	cat.AddUploadedTrack(context.Background(), catalog.UploadMeta{
		Title:      "slow",
		URL:        url,
		UploadedBy: "tester",
	})

	time.Sleep(3 * settleDelay)
	if n := countURL(cat, url); n != 1 {
		t.Errorf("catalog holds %d tracks for %s, want 1", n, url)
	}
}
