package dto

// SaveSelectionRequest 保存某日选餐请求，菜品字段为空表示未选择
type SaveSelectionRequest struct {
	NotEating bool    `json:"not_eating"`
	SaladID   *string `json:"salad_id"  binding:"omitempty,uuid"`
	SoupID    *string `json:"soup_id"   binding:"omitempty,uuid"`
	MainID    *string `json:"main_id"   binding:"omitempty,uuid"`
	SideID    *string `json:"side_id"   binding:"omitempty,uuid"`
	BakeryID  *string `json:"bakery_id" binding:"omitempty,uuid"`
}

// SaveSelectionResponse 保存选餐结果
type SaveSelectionResponse struct {
	Selection     SelectionResponse `json:"selection"`
	NextDayMenuID string            `json:"next_day_menu_id,omitempty"`
}

// ClearSelectionsRequest 清除选餐参数，day_menu_id 为空时清除全部
type ClearSelectionsRequest struct {
	DayMenuID string `form:"day_menu_id" binding:"omitempty,uuid"`
}
