package model

// 用户角色
const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

// User 用户表 — 对应 users
type User struct {
	UserID             string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	Username           string  `gorm:"type:varchar(150);not null;uniqueIndex"         json:"username"`
	PasswordHash       string  `gorm:"type:varchar(255);not null"                     json:"-"`
	Role               string  `gorm:"type:varchar(20);not null;default:'employee'"   json:"role"`
	MustChangePassword bool    `gorm:"not null;default:false"                         json:"must_change_password"`
	CreatedBy          *string `gorm:"type:uuid"                                      json:"created_by,omitempty"`
	BaseModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// IsAdmin 是否管理员
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
