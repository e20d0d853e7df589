package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/zefirkoooo/food-calendar/backend/internal/model"
)

// MenuUploadRepository 菜单上传记录数据访问接口
type MenuUploadRepository interface {
	Create(ctx context.Context, upload *model.MenuUpload) error
	GetLatest(ctx context.Context) (*model.MenuUpload, error)
	GetLatestForWeek(ctx context.Context, weekStart time.Time) (*model.MenuUpload, error)
	// KeepLatest 仅保留最近 n 条上传记录
	KeepLatest(ctx context.Context, n int) (int64, error)
}

type menuUploadRepo struct {
	db *gorm.DB
}

func NewMenuUploadRepo(db *gorm.DB) MenuUploadRepository {
	return &menuUploadRepo{db: db}
}

func (r *menuUploadRepo) Create(ctx context.Context, upload *model.MenuUpload) error {
	return r.db.WithContext(ctx).Create(upload).Error
}

func (r *menuUploadRepo) GetLatest(ctx context.Context) (*model.MenuUpload, error) {
	var upload model.MenuUpload
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		First(&upload).Error
	if err != nil {
		return nil, err
	}
	return &upload, nil
}

func (r *menuUploadRepo) GetLatestForWeek(ctx context.Context, weekStart time.Time) (*model.MenuUpload, error) {
	var upload model.MenuUpload
	err := r.db.WithContext(ctx).
		Where("week_start = ?", weekStart).
		Order("created_at DESC").
		First(&upload).Error
	if err != nil {
		return nil, err
	}
	return &upload, nil
}

func (r *menuUploadRepo) KeepLatest(ctx context.Context, n int) (int64, error) {
	keep := r.db.
		Model(&model.MenuUpload{}).
		Select("upload_id").
		Order("created_at DESC").
		Limit(n)

	result := r.db.WithContext(ctx).
		Where("upload_id NOT IN (?)", keep).
		Delete(&model.MenuUpload{})
	return result.RowsAffected, result.Error
}
