package model

import "time"

// FoodCategory 菜品分类表 — 对应 food_categories
type FoodCategory struct {
	CategoryID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"category_id"`
	Name       string    `gorm:"type:varchar(100);not null;uniqueIndex"         json:"name"`
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

func (FoodCategory) TableName() string { return "food_categories" }

// Dish 菜品表 — 对应 dishes
// 每次导入都会插入新行，ExcelRow 记录来源行号供统计回写
type Dish struct {
	DishID         string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"dish_id"`
	Name           string    `gorm:"type:varchar(255);not null"                     json:"name"`
	Description    string    `gorm:"type:text;not null;default:''"                  json:"description"`
	CategoryID     string    `gorm:"type:uuid;not null"                             json:"category_id"`
	IsCompleteDish bool      `gorm:"not null;default:false"                         json:"is_complete_dish"`
	IsFasting      bool      `gorm:"not null;default:false"                         json:"is_fasting"`
	ExcelRow       *int      `json:"excel_row,omitempty"`
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`

	// 关联
	Category *FoodCategory `gorm:"foreignKey:CategoryID;references:CategoryID" json:"category,omitempty"`
}

func (Dish) TableName() string { return "dishes" }
