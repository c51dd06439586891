package repository

import (
	"context"
	"fmt"

	"DuetFM/model"

	"gorm.io/gorm"
)

// TrackRepository 上传歌曲元数据仓储
// 内存曲库是权威数据，仓储只用于进程重启后恢复上传歌曲
type TrackRepository interface {
	// Save 保存一条上传歌曲记录；ID为0时由数据库分配（自增起点1000）
	Save(ctx context.Context, row *model.UploadedTrackRow) error
	// Delete 按ID删除记录，记录不存在时不视为错误
	Delete(ctx context.Context, id int64) error
	// ListAll 按创建顺序返回全部上传歌曲
	ListAll(ctx context.Context) ([]model.UploadedTrackRow, error)
}

// GormTrackRepository 基于GORM的MySQL实现
type GormTrackRepository struct {
	db *gorm.DB
}

// NewGormTrackRepository 创建仓储实例
func NewGormTrackRepository(db *gorm.DB) *GormTrackRepository {
	return &GormTrackRepository{db: db}
}

// Save 保存上传歌曲记录
func (r *GormTrackRepository) Save(ctx context.Context, row *model.UploadedTrackRow) error {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("保存上传歌曲记录失败: %w", err)
	}
	return nil
}

// Delete 删除上传歌曲记录
func (r *GormTrackRepository) Delete(ctx context.Context, id int64) error {
	if err := r.db.WithContext(ctx).Delete(&model.UploadedTrackRow{}, id).Error; err != nil {
		return fmt.Errorf("删除上传歌曲记录失败: %w", err)
	}
	return nil
}

// ListAll 按创建顺序返回全部上传歌曲
func (r *GormTrackRepository) ListAll(ctx context.Context) ([]model.UploadedTrackRow, error) {
	var rows []model.UploadedTrackRow
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询上传歌曲记录失败: %w", err)
	}
	return rows, nil
}
