package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/zefirkoooo/food-calendar/backend/internal/model"
)

// DayMenuRepository 日菜单数据访问接口
type DayMenuRepository interface {
	Create(ctx context.Context, menu *model.DayMenu) error
	GetByID(ctx context.Context, id string) (*model.DayMenu, error)
	GetByDate(ctx context.Context, date time.Time) (*model.DayMenu, error)
	// NextAfter 返回日期晚于 date 的第一个日菜单
	NextAfter(ctx context.Context, date time.Time) (*model.DayMenu, error)
	ListByDateRange(ctx context.Context, from, to time.Time) ([]model.DayMenu, error)
	CountByDateRange(ctx context.Context, from, to time.Time) (int64, error)
	DeleteByDateRange(ctx context.Context, from, to time.Time) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
	AttachDish(ctx context.Context, item *model.DayMenuDish) error
	BatchAttach(ctx context.Context, items []model.DayMenuDish) error
}

type dayMenuRepo struct {
	db *gorm.DB
}

func NewDayMenuRepo(db *gorm.DB) DayMenuRepository {
	return &dayMenuRepo{db: db}
}

// preloadItems 预加载菜品关联，按导入顺序排列
func preloadItems(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Items.Dish").
		Preload("Items.Dish.Category")
}

func (r *dayMenuRepo) Create(ctx context.Context, menu *model.DayMenu) error {
	return r.db.WithContext(ctx).Omit("Items").Create(menu).Error
}

func (r *dayMenuRepo) GetByID(ctx context.Context, id string) (*model.DayMenu, error) {
	var menu model.DayMenu
	err := preloadItems(r.db.WithContext(ctx)).
		Where("day_menu_id = ?", id).
		First(&menu).Error
	if err != nil {
		return nil, err
	}
	return &menu, nil
}

func (r *dayMenuRepo) GetByDate(ctx context.Context, date time.Time) (*model.DayMenu, error) {
	var menu model.DayMenu
	err := preloadItems(r.db.WithContext(ctx)).
		Where("date = ?", date).
		First(&menu).Error
	if err != nil {
		return nil, err
	}
	return &menu, nil
}

func (r *dayMenuRepo) NextAfter(ctx context.Context, date time.Time) (*model.DayMenu, error) {
	var menu model.DayMenu
	err := r.db.WithContext(ctx).
		Where("date > ?", date).
		Order("date ASC").
		First(&menu).Error
	if err != nil {
		return nil, err
	}
	return &menu, nil
}

func (r *dayMenuRepo) ListByDateRange(ctx context.Context, from, to time.Time) ([]model.DayMenu, error) {
	var menus []model.DayMenu
	err := preloadItems(r.db.WithContext(ctx)).
		Where("date BETWEEN ? AND ?", from, to).
		Order("date ASC").
		Find(&menus).Error
	return menus, err
}

func (r *dayMenuRepo) CountByDateRange(ctx context.Context, from, to time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.DayMenu{}).
		Where("date BETWEEN ? AND ?", from, to).
		Count(&n).Error
	return n, err
}

func (r *dayMenuRepo) DeleteByDateRange(ctx context.Context, from, to time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("date BETWEEN ? AND ?", from, to).
		Delete(&model.DayMenu{})
	return result.RowsAffected, result.Error
}

func (r *dayMenuRepo) DeleteAll(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&model.DayMenu{})
	return result.RowsAffected, result.Error
}

func (r *dayMenuRepo) AttachDish(ctx context.Context, item *model.DayMenuDish) error {
	return r.db.WithContext(ctx).Omit("Dish").Create(item).Error
}

func (r *dayMenuRepo) BatchAttach(ctx context.Context, items []model.DayMenuDish) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit("Dish").Create(&items).Error
}
