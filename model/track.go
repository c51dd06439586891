package model

import "time"

// Track represents a playable track in the shared catalog.
// Built-in tracks are seeded at startup; uploaded tracks come from the
// upload endpoint or the local library watcher.
type Track struct {
	ID         int64   `json:"id"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	URL        string  `json:"url"`
	Cover      string  `json:"cover"`
	Duration   float64 `json:"duration"` // Duration in seconds, 0 when unknown
	IsUploaded bool    `json:"isUploaded"`
	UploadedBy string  `json:"uploadedBy,omitempty"`
}

// UploadedTrackRow 上传歌曲的持久化记录（仅在配置了MySQL时使用）
// 内存中的曲库是权威数据，这张表只负责进程重启后恢复上传歌曲
type UploadedTrackRow struct {
	ID         int64     `json:"id" gorm:"primaryKey"`
	Title      string    `json:"title" gorm:"size:255;not null"`
	Artist     string    `json:"artist" gorm:"size:255"`
	URL        string    `json:"url" gorm:"size:512;not null"`
	Cover      string    `json:"cover" gorm:"size:512"`
	Duration   float64   `json:"duration"`
	UploadedBy string    `json:"uploadedBy" gorm:"size:100"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TableName 指定表名
func (UploadedTrackRow) TableName() string {
	return "uploaded_tracks"
}

// ToTrack 转换为曲库条目
func (r *UploadedTrackRow) ToTrack() Track {
	return Track{
		ID:         r.ID,
		Title:      r.Title,
		Artist:     r.Artist,
		URL:        r.URL,
		Cover:      r.Cover,
		Duration:   r.Duration,
		IsUploaded: true,
		UploadedBy: r.UploadedBy,
	}
}

// RowFromTrack 从曲库条目构造持久化记录
func RowFromTrack(t Track) *UploadedTrackRow {
	return &UploadedTrackRow{
		ID:         t.ID,
		Title:      t.Title,
		Artist:     t.Artist,
		URL:        t.URL,
		Cover:      t.Cover,
		Duration:   t.Duration,
		UploadedBy: t.UploadedBy,
	}
}
