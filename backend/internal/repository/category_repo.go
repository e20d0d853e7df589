package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/zefirkoooo/food-calendar/backend/internal/model"
)

// CategoryRepository 菜品分类数据访问接口
type CategoryRepository interface {
	GetOrCreate(ctx context.Context, name string) (*model.FoodCategory, error)
	GetByName(ctx context.Context, name string) (*model.FoodCategory, error)
	List(ctx context.Context) ([]model.FoodCategory, error)
}

type categoryRepo struct {
	db *gorm.DB
}

func NewCategoryRepo(db *gorm.DB) CategoryRepository {
	return &categoryRepo{db: db}
}

func (r *categoryRepo) GetOrCreate(ctx context.Context, name string) (*model.FoodCategory, error) {
	cat := model.FoodCategory{Name: name}
	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		FirstOrCreate(&cat).Error
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

func (r *categoryRepo) GetByName(ctx context.Context, name string) (*model.FoodCategory, error) {
	var cat model.FoodCategory
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&cat).Error
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

func (r *categoryRepo) List(ctx context.Context) ([]model.FoodCategory, error) {
	var cats []model.FoodCategory
	err := r.db.WithContext(ctx).Order("name ASC").Find(&cats).Error
	return cats, err
}
