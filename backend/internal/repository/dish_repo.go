package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/zefirkoooo/food-calendar/backend/internal/model"
)

// DishRepository 菜品数据访问接口
type DishRepository interface {
	Create(ctx context.Context, dish *model.Dish) error
	GetByID(ctx context.Context, id string) (*model.Dish, error)
	GetByIDs(ctx context.Context, ids []string) ([]model.Dish, error)
	Update(ctx context.Context, dish *model.Dish) error
	ListByCategory(ctx context.Context, categoryID string) ([]model.Dish, error)
	// CompleteNames 返回分类下被标记为完整菜品的菜名（去重）
	CompleteNames(ctx context.Context, categoryID string) ([]string, error)
	// DeleteUnreferenced 删除未被 [from, to] 日期范围内任何日菜单引用的菜品
	DeleteUnreferenced(ctx context.Context, from, to time.Time) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type dishRepo struct {
	db *gorm.DB
}

func NewDishRepo(db *gorm.DB) DishRepository {
	return &dishRepo{db: db}
}

func (r *dishRepo) Create(ctx context.Context, dish *model.Dish) error {
	return r.db.WithContext(ctx).Create(dish).Error
}

func (r *dishRepo) GetByID(ctx context.Context, id string) (*model.Dish, error) {
	var dish model.Dish
	err := r.db.WithContext(ctx).
		Preload("Category").
		Where("dish_id = ?", id).
		First(&dish).Error
	if err != nil {
		return nil, err
	}
	return &dish, nil
}

func (r *dishRepo) GetByIDs(ctx context.Context, ids []string) ([]model.Dish, error) {
	var dishes []model.Dish
	if len(ids) == 0 {
		return dishes, nil
	}
	err := r.db.WithContext(ctx).
		Preload("Category").
		Where("dish_id IN ?", ids).
		Find(&dishes).Error
	return dishes, err
}

func (r *dishRepo) Update(ctx context.Context, dish *model.Dish) error {
	return r.db.WithContext(ctx).Save(dish).Error
}

func (r *dishRepo) ListByCategory(ctx context.Context, categoryID string) ([]model.Dish, error) {
	var dishes []model.Dish
	err := r.db.WithContext(ctx).
		Where("category_id = ?", categoryID).
		Order("name ASC, created_at DESC").
		Find(&dishes).Error
	return dishes, err
}

func (r *dishRepo) CompleteNames(ctx context.Context, categoryID string) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Model(&model.Dish{}).
		Where("category_id = ? AND is_complete_dish = ?", categoryID, true).
		Distinct().
		Pluck("name", &names).Error
	return names, err
}

func (r *dishRepo) DeleteUnreferenced(ctx context.Context, from, to time.Time) (int64, error) {
	referenced := r.db.
		Table("day_menu_dishes AS dmd").
		Select("dmd.dish_id").
		Joins("JOIN day_menus dm ON dm.day_menu_id = dmd.day_menu_id").
		Where("dm.date BETWEEN ? AND ?", from, to)

	result := r.db.WithContext(ctx).
		Where("dish_id NOT IN (?)", referenced).
		Delete(&model.Dish{})
	return result.RowsAffected, result.Error
}

func (r *dishRepo) DeleteAll(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&model.Dish{})
	return result.RowsAffected, result.Error
}
