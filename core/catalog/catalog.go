package catalog

import (
	"context"
	"sync"

	"DuetFM/logger"
	"DuetFM/model"
	"DuetFM/repository"
)

// uploadedIDBase 上传歌曲的ID起点，与内置歌曲的ID命名空间天然隔离
const uploadedIDBase = 1000

// Notifier 曲库变更通知，由事件分发器实现
// 上传/删除是全局事件，需要广播给所有连接而不只是某个房间
type Notifier interface {
	TrackAdded(track model.Track)
	TrackRemoved(trackID int64)
}

// UploadMeta 新上传歌曲的元数据
type UploadMeta struct {
	Title      string
	Artist     string
	URL        string
	Cover      string
	Duration   float64
	UploadedBy string
}

// Catalog 全局曲库：内置歌曲 + 上传歌曲
// 内存中的列表是权威数据；配置了MySQL时上传记录会异步落库，
// 仅用于进程重启后恢复。
type Catalog struct {
	mu       sync.RWMutex
	builtins []model.Track
	uploaded []model.Track
	nextID   int64

	notifier Notifier
	repo     repository.TrackRepository // 可为 nil
}

// New 创建曲库并播种内置歌曲
func New(repo repository.TrackRepository) *Catalog {
	return &Catalog{
		builtins: builtinTracks(),
		nextID:   uploadedIDBase,
		repo:     repo,
	}
}

// SetNotifier 绑定变更通知器
func (c *Catalog) SetNotifier(n Notifier) {
	c.notifier = n
}

// LoadUploaded 从数据库恢复上传歌曲（按注册顺序）
func (c *Catalog) LoadUploaded(ctx context.Context) error {
	if c.repo == nil {
		return nil
	}

	rows, err := c.repo.ListAll(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, row := range rows {
		t := row.ToTrack()
		c.uploaded = append(c.uploaded, t)
		if t.ID >= c.nextID {
			c.nextID = t.ID + 1
		}
	}
	logger.Info("restored uploaded tracks from database", logger.Int("count", len(rows)))
	return nil
}

// ListTracks 返回内置歌曲加全部上传歌曲，按注册顺序
// 没有中间变更时重复调用返回完全一致的序列
func (c *Catalog) ListTracks() []model.Track {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]model.Track, 0, len(c.builtins)+len(c.uploaded))
	result = append(result, c.builtins...)
	result = append(result, c.uploaded...)
	return result
}

// Get 按ID查找歌曲
func (c *Catalog) Get(id int64) (model.Track, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, t := range c.builtins {
		if t.ID == id {
			return t, true
		}
	}
	for _, t := range c.uploaded {
		if t.ID == id {
			return t, true
		}
	}
	return model.Track{}, false
}

// HasURL 按URL查重，供本地曲库监听器跳过已注册的文件
func (c *Catalog) HasURL(url string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, t := range c.uploaded {
		if t.URL == url {
			return true
		}
	}
	return false
}

// AddUploadedTrack 注册一首上传歌曲并全局广播
// 落库是 best-effort：失败只记日志，不影响内存曲库
func (c *Catalog) AddUploadedTrack(ctx context.Context, meta UploadMeta) model.Track {
	c.mu.Lock()
	track := model.Track{
		ID:         c.nextID,
		Title:      meta.Title,
		Artist:     meta.Artist,
		URL:        meta.URL,
		Cover:      meta.Cover,
		Duration:   meta.Duration,
		IsUploaded: true,
		UploadedBy: meta.UploadedBy,
	}
	c.nextID++
	c.uploaded = append(c.uploaded, track)
	c.mu.Unlock()

	if c.repo != nil {
		if err := c.repo.Save(ctx, model.RowFromTrack(track)); err != nil {
			logger.Warn("failed to persist uploaded track",
				logger.Int64("trackId", track.ID),
				logger.ErrorField(err))
		}
	}

	if c.notifier != nil {
		c.notifier.TrackAdded(track)
	}

	logger.Info("track added to catalog",
		logger.Int64("trackId", track.ID),
		logger.String("title", track.Title),
		logger.String("uploadedBy", track.UploadedBy))
	return track
}

// RemoveTrack 按ID删除歌曲，返回是否删除成功
// 内置歌曲和未知ID都返回 false；成功时全局广播删除事件
func (c *Catalog) RemoveTrack(ctx context.Context, id int64) (model.Track, bool) {
	c.mu.Lock()
	var removed model.Track
	idx := -1
	for i, t := range c.uploaded {
		if t.ID == id {
			removed = t
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return model.Track{}, false
	}
	c.uploaded = append(c.uploaded[:idx], c.uploaded[idx+1:]...)
	c.mu.Unlock()

	if c.repo != nil {
		if err := c.repo.Delete(ctx, id); err != nil {
			logger.Warn("failed to delete uploaded track row",
				logger.Int64("trackId", id),
				logger.ErrorField(err))
		}
	}

	if c.notifier != nil {
		c.notifier.TrackRemoved(id)
	}

	logger.Info("track removed from catalog", logger.Int64("trackId", id))
	return removed, true
}
