package dto

// ── 菜单导入 ──

// ImportMenuResponse 菜单导入结果
type ImportMenuResponse struct {
	WeekStart     string            `json:"week_start"`
	Layout        string            `json:"layout"`
	DaysCreated   int               `json:"days_created"`
	DishesCreated int               `json:"dishes_created"`
	RowsProcessed int               `json:"rows_processed"`
	Categories    []string          `json:"categories"`
	MissingDays   []string          `json:"missing_days,omitempty"`
	Warnings      []string          `json:"warnings,omitempty"`
	Rollover      *RolloverResponse `json:"rollover,omitempty"`
}

// RolloverResponse 周滚动结果
type RolloverResponse struct {
	CurrentWeekStart string   `json:"current_week_start"`
	NextWeekStart    string   `json:"next_week_start"`
	DishesPruned     int64    `json:"dishes_pruned"`
	Promoted         bool     `json:"promoted"`
	DaysCopied       int      `json:"days_copied"`
	SelectionsCopied int      `json:"selections_copied"`
	MissingDays      []string `json:"missing_days,omitempty"`
	NextWeekCleared  int64    `json:"next_week_cleared"`
}

// ── 菜单查询 ──

// DishResponse 菜品信息
type DishResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	Category       string `json:"category,omitempty"`
	IsCompleteDish bool   `json:"is_complete_dish"`
	IsFasting      bool   `json:"is_fasting"`
}

// SelectionResponse 用户某日选餐
type SelectionResponse struct {
	DayMenuID string        `json:"day_menu_id"`
	NotEating bool          `json:"not_eating"`
	Salad     *DishResponse `json:"salad,omitempty"`
	Soup      *DishResponse `json:"soup,omitempty"`
	Main      *DishResponse `json:"main,omitempty"`
	Side      *DishResponse `json:"side,omitempty"`
	Bakery    *DishResponse `json:"bakery,omitempty"`
}

// CalendarDay 日历中的一天
type CalendarDay struct {
	DayMenuID   string             `json:"day_menu_id"`
	Date        string             `json:"date"`
	Weekday     int                `json:"weekday"`
	WeekdayName string             `json:"weekday_name"`
	IsToday     bool               `json:"is_today"`
	Selection   *SelectionResponse `json:"selection,omitempty"`
}

// CalendarWeek 日历中的一周
type CalendarWeek struct {
	WeekStart string        `json:"week_start"`
	Days      []CalendarDay `json:"days"`
}

// CalendarResponse 本周与下周日历
type CalendarResponse struct {
	Today       string       `json:"today"`
	CurrentWeek CalendarWeek `json:"current_week"`
	NextWeek    CalendarWeek `json:"next_week"`
}

// DayMenuResponse 日菜单详情
type DayMenuResponse struct {
	DayMenuID     string             `json:"day_menu_id"`
	Date          string             `json:"date"`
	Weekday       int                `json:"weekday"`
	WeekdayName   string             `json:"weekday_name"`
	Salads        []DishResponse     `json:"salads"`
	Soups         []DishResponse     `json:"soups"`
	MainCourses   []DishResponse     `json:"main_courses"`
	Sides         []DishResponse     `json:"sides"`
	Bakery        []DishResponse     `json:"bakery"`
	Selection     *SelectionResponse `json:"selection,omitempty"`
	NextDayMenuID string             `json:"next_day_menu_id,omitempty"`
}

// DishesForRequest 按栏目查询菜品参数
type DishesForRequest struct {
	Course string `form:"course" binding:"required,oneof=salads soups main_courses sides bakery"`
}

// SetCompleteDishRequest 标记完整菜品请求
type SetCompleteDishRequest struct {
	IsCompleteDish *bool `json:"is_complete_dish" binding:"required"`
}

// ClearResponse 批量删除结果
type ClearResponse struct {
	Deleted int64 `json:"deleted"`
}

// ExportRequest 导出参数
type ExportRequest struct {
	Week string `form:"week" binding:"omitempty,oneof=current next"`
}
