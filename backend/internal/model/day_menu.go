package model

import (
	"sort"
	"time"
)

// DayMenu 日菜单表 — 对应 day_menus，每个日期唯一
type DayMenu struct {
	DayMenuID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"day_menu_id"`
	Date      time.Time `gorm:"type:date;not null;uniqueIndex"                 json:"date"`
	BaseModel

	// 关联
	Items []DayMenuDish `gorm:"foreignKey:DayMenuID" json:"items,omitempty"`
}

func (DayMenu) TableName() string { return "day_menus" }

// Weekday 星期序号，0=周一 … 6=周日
func (d *DayMenu) Weekday() int {
	return (int(d.Date.Weekday()) + 6) % 7
}

// DishesFor 返回指定栏目下的菜品，按导入顺序排列
func (d *DayMenu) DishesFor(course Course) []Dish {
	items := make([]DayMenuDish, 0, len(d.Items))
	for _, it := range d.Items {
		if it.Course == course && it.Dish != nil {
			items = append(items, it)
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Position < items[j].Position })

	dishes := make([]Dish, 0, len(items))
	for _, it := range items {
		dishes = append(dishes, *it.Dish)
	}
	return dishes
}

// HasDish 判断菜品是否属于该日菜单的指定栏目
func (d *DayMenu) HasDish(course Course, dishID string) bool {
	for _, it := range d.Items {
		if it.Course == course && it.DishID == dishID {
			return true
		}
	}
	return false
}

// DayMenuDish 日菜单菜品关联表 — 对应 day_menu_dishes
type DayMenuDish struct {
	DayMenuID string `gorm:"type:uuid;primaryKey"      json:"day_menu_id"`
	DishID    string `gorm:"type:uuid;primaryKey"      json:"dish_id"`
	Course    Course `gorm:"type:varchar(20);not null" json:"course"`
	Position  int    `gorm:"not null;default:0"        json:"position"`

	// 关联
	Dish *Dish `gorm:"foreignKey:DishID;references:DishID" json:"dish,omitempty"`
}

func (DayMenuDish) TableName() string { return "day_menu_dishes" }
