package model

import (
	"time"

	"gorm.io/datatypes"
)

// MenuUpload 菜单上传记录 — 对应 menu_uploads，保存原始文件供统计回写
type MenuUpload struct {
	UploadID   string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"upload_id"`
	Filename   string         `gorm:"type:varchar(255);not null"                     json:"filename"`
	WeekStart  time.Time      `gorm:"type:date;not null"                             json:"week_start"`
	Layout     string         `gorm:"type:varchar(20);not null"                      json:"layout"`
	Content    []byte         `gorm:"type:bytea;not null"                            json:"-"`
	DishCount  int            `gorm:"not null;default:0"                             json:"dish_count"`
	Warnings   datatypes.JSON `gorm:"type:jsonb"                                     json:"warnings,omitempty"`
	UploadedBy *string        `gorm:"type:uuid"                                      json:"uploaded_by,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

func (MenuUpload) TableName() string { return "menu_uploads" }
