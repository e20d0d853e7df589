package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/zefirkoooo/food-calendar/backend/internal/model"
)

// SelectionRepository 用户选餐数据访问接口
type SelectionRepository interface {
	Create(ctx context.Context, sel *model.UserSelection) error
	Update(ctx context.Context, sel *model.UserSelection) error
	BatchCreate(ctx context.Context, sels []model.UserSelection) error
	GetByUserAndDay(ctx context.Context, userID, dayMenuID string) (*model.UserSelection, error)
	ListByDayMenu(ctx context.Context, dayMenuID string) ([]model.UserSelection, error)
	ListByDayMenus(ctx context.Context, dayMenuIDs []string) ([]model.UserSelection, error)
	ListByUserAndDays(ctx context.Context, userID string, dayMenuIDs []string) ([]model.UserSelection, error)
	ListAll(ctx context.Context) ([]model.UserSelection, error)
	DeleteByDayMenu(ctx context.Context, dayMenuID string) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type selectionRepo struct {
	db *gorm.DB
}

func NewSelectionRepo(db *gorm.DB) SelectionRepository {
	return &selectionRepo{db: db}
}

func (r *selectionRepo) Create(ctx context.Context, sel *model.UserSelection) error {
	return r.db.WithContext(ctx).Omit("User", "DayMenu").Create(sel).Error
}

func (r *selectionRepo) Update(ctx context.Context, sel *model.UserSelection) error {
	return r.db.WithContext(ctx).Omit("User", "DayMenu").Save(sel).Error
}

func (r *selectionRepo) BatchCreate(ctx context.Context, sels []model.UserSelection) error {
	if len(sels) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit("User", "DayMenu").CreateInBatches(&sels, 200).Error
}

func (r *selectionRepo) GetByUserAndDay(ctx context.Context, userID, dayMenuID string) (*model.UserSelection, error) {
	var sel model.UserSelection
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND day_menu_id = ?", userID, dayMenuID).
		First(&sel).Error
	if err != nil {
		return nil, err
	}
	return &sel, nil
}

func (r *selectionRepo) ListByDayMenu(ctx context.Context, dayMenuID string) ([]model.UserSelection, error) {
	var sels []model.UserSelection
	err := r.db.WithContext(ctx).
		Where("day_menu_id = ?", dayMenuID).
		Find(&sels).Error
	return sels, err
}

func (r *selectionRepo) ListByDayMenus(ctx context.Context, dayMenuIDs []string) ([]model.UserSelection, error) {
	var sels []model.UserSelection
	if len(dayMenuIDs) == 0 {
		return sels, nil
	}
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("day_menu_id IN ?", dayMenuIDs).
		Find(&sels).Error
	return sels, err
}

func (r *selectionRepo) ListByUserAndDays(ctx context.Context, userID string, dayMenuIDs []string) ([]model.UserSelection, error) {
	var sels []model.UserSelection
	if len(dayMenuIDs) == 0 {
		return sels, nil
	}
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND day_menu_id IN ?", userID, dayMenuIDs).
		Find(&sels).Error
	return sels, err
}

func (r *selectionRepo) ListAll(ctx context.Context) ([]model.UserSelection, error) {
	var sels []model.UserSelection
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("DayMenu").
		Joins("JOIN day_menus ON day_menus.day_menu_id = user_selections.day_menu_id").
		Order("day_menus.date ASC").
		Find(&sels).Error
	return sels, err
}

func (r *selectionRepo) DeleteByDayMenu(ctx context.Context, dayMenuID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("day_menu_id = ?", dayMenuID).
		Delete(&model.UserSelection{})
	return result.RowsAffected, result.Error
}

func (r *selectionRepo) DeleteAll(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&model.UserSelection{})
	return result.RowsAffected, result.Error
}
