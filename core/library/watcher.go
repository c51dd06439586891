package library

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"DuetFM/core/catalog"
	"DuetFM/logger"

	"github.com/fsnotify/fsnotify"
)

// audioExtensions 识别为音频的扩展名
var audioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".ogg":  true,
	".m4a":  true,
	".aac":  true,
	".flac": true,
}

// settleDelay 文件大小稳定性检查的间隔
// 连续两次检查之间大小不变才视为写入完成；上传接口落盘后会
// 自己注册歌曲，监听器随后按URL查重跳过
const settleDelay = 500 * time.Millisecond

// Watcher 本地曲库监听器
// 监听音频上传目录，把绕过上传接口直接放进来的文件注册为上传歌曲
type Watcher struct {
	dir     string
	catalog *catalog.Catalog
	watcher *fsnotify.Watcher
}

// NewWatcher 创建监听器
func NewWatcher(dir string, cat *catalog.Catalog) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{dir: dir, catalog: cat, watcher: fw}, nil
}

// Run 监听循环，ctx 取消时退出
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	logger.Info("library watcher started", logger.String("dir", w.dir))
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create == 0 {
				continue
			}
			if !audioExtensions[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			go w.registerAfterSettle(ctx, event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("library watcher error", logger.ErrorField(err))
		}
	}
}

// registerAfterSettle 等文件落定后注册为上传歌曲
// 大小在一个完整间隔内没有变化才算落定，慢速写入（大文件、
// 跨网络拷贝）期间不会注册半成品
func (w *Watcher) registerAfterSettle(ctx context.Context, path string) {
	var lastSize int64 = -1
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(settleDelay):
		}

		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			return
		}
		if info.Size() > 0 && info.Size() == lastSize {
			break
		}
		lastSize = info.Size()
	}

	name := filepath.Base(path)
	url := "/uploads/audio/" + name
	if w.catalog.HasURL(url) {
		return
	}

	title := strings.TrimSuffix(name, filepath.Ext(name))
	w.catalog.AddUploadedTrack(ctx, catalog.UploadMeta{
		Title:      title,
		Artist:     "Unknown Artist",
		URL:        url,
		UploadedBy: "library",
	})
	logger.Info("registered track from library directory",
		logger.String("file", name))
}
