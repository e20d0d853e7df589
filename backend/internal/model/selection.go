package model

import "time"

// UserSelection 用户每日选餐表 — 对应 user_selections，(user_id, day_menu_id) 唯一
type UserSelection struct {
	SelectionID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"selection_id"`
	UserID      string    `gorm:"type:uuid;not null"                             json:"user_id"`
	DayMenuID   string    `gorm:"type:uuid;not null"                             json:"day_menu_id"`
	NotEating   bool      `gorm:"not null;default:false"                         json:"not_eating"`
	SaladID     *string   `gorm:"type:uuid"                                      json:"salad_id,omitempty"`
	SoupID      *string   `gorm:"type:uuid"                                      json:"soup_id,omitempty"`
	MainID      *string   `gorm:"type:uuid"                                      json:"main_id,omitempty"`
	SideID      *string   `gorm:"type:uuid"                                      json:"side_id,omitempty"`
	BakeryID    *string   `gorm:"type:uuid"                                      json:"bakery_id,omitempty"`
	UpdatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"updated_at"`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`

	// 关联
	User    *User    `gorm:"foreignKey:UserID;references:UserID"       json:"user,omitempty"`
	DayMenu *DayMenu `gorm:"foreignKey:DayMenuID;references:DayMenuID" json:"day_menu,omitempty"`
}

func (UserSelection) TableName() string { return "user_selections" }

// DishRef 返回指定栏目所选菜品 ID 的指针（可写）
func (s *UserSelection) DishRef(course Course) **string {
	switch course {
	case CourseSalads:
		return &s.SaladID
	case CourseSoups:
		return &s.SoupID
	case CourseMainCourses:
		return &s.MainID
	case CourseSides:
		return &s.SideID
	case CourseBakery:
		return &s.BakeryID
	}
	return nil
}

// HasAnyDish 是否选择了任意菜品
func (s *UserSelection) HasAnyDish() bool {
	return s.SaladID != nil || s.SoupID != nil || s.MainID != nil || s.SideID != nil || s.BakeryID != nil
}

// ClearDishes 清空全部菜品字段
func (s *UserSelection) ClearDishes() {
	s.SaladID, s.SoupID, s.MainID, s.SideID, s.BakeryID = nil, nil, nil, nil, nil
}
