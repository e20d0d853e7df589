package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zefirkoooo/food-calendar/backend/internal/api/middleware"
	"github.com/zefirkoooo/food-calendar/backend/internal/dto"
	"github.com/zefirkoooo/food-calendar/backend/internal/model"
	"github.com/zefirkoooo/food-calendar/backend/internal/service"
	"github.com/zefirkoooo/food-calendar/backend/pkg/response"
)

// MenuHandler 菜单导入与日历 HTTP 处理器
type MenuHandler struct {
	importSvc service.MenuImportService
	menuSvc   service.MenuService
}

// NewMenuHandler 创建 MenuHandler
func NewMenuHandler(importSvc service.MenuImportService, menuSvc service.MenuService) *MenuHandler {
	return &MenuHandler{importSvc: importSvc, menuSvc: menuSvc}
}

// Upload 上传周菜单表格
// POST /api/v1/menus/upload
//
// multipart/form-data:
//   - file: .xlsx 菜单文件
//   - layout: fixed | flexible（可选，默认取配置）
//   - week_start: YYYY-MM-DD（可选，默认下周）
func (h *MenuHandler) Upload(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		if middleware.IsBodyTooLarge(err) {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
			return
		}
		response.BadRequest(c, 13001, "请上传菜单文件")
		return
	}

	req := &service.ImportMenuRequest{
		Filename:   fileHeader.Filename,
		Layout:     c.PostForm("layout"),
		UploadedBy: userID,
	}
	if raw := c.PostForm("week_start"); raw != "" {
		ws, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.BadRequest(c, 13002, "week_start 格式应为 YYYY-MM-DD")
			return
		}
		req.WeekStart = &ws
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.BadRequest(c, 13001, "无法读取上传文件")
		return
	}
	defer file.Close()
	req.Reader = file

	result, err := h.importSvc.ImportMenu(c.Request.Context(), req)
	if err != nil {
		handleImportError(c, err)
		return
	}

	response.Created(c, result)
}

// Rollover 不上传新文件，直接执行周切换
// POST /api/v1/menus/rollover
func (h *MenuHandler) Rollover(c *gin.Context) {
	result, err := h.importSvc.Rollover(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, result)
}

// Calendar 本周与下周日历（含当前用户的选餐）
// GET /api/v1/menus/calendar
func (h *MenuHandler) Calendar(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	calendar, err := h.menuSvc.GetCalendar(c.Request.Context(), userID)
	if err != nil {
		handleMenuError(c, err)
		return
	}

	response.OK(c, calendar)
}

// Day 日菜单详情
// GET /api/v1/menus/days/:id
func (h *MenuHandler) Day(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	id, ok := ParseIDParam(c, "id")
	if !ok {
		return
	}

	menu, err := h.menuSvc.GetDayMenu(c.Request.Context(), userID, id)
	if err != nil {
		handleMenuError(c, err)
		return
	}

	response.OK(c, menu)
}

// Dishes 日菜单某一栏目的菜品
// GET /api/v1/menus/days/:id/dishes?course=
func (h *MenuHandler) Dishes(c *gin.Context) {
	var req dto.DishesForRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 14003, "无效的菜品栏目")
		return
	}

	id, ok := ParseIDParam(c, "id")
	if !ok {
		return
	}

	dishes, err := h.menuSvc.DishesFor(c.Request.Context(), id, model.Course(req.Course))
	if err != nil {
		handleMenuError(c, err)
		return
	}

	response.OK(c, gin.H{"list": dishes})
}

// ClearCalendar 清空全部日菜单及其选餐
// DELETE /api/v1/menus
func (h *MenuHandler) ClearCalendar(c *gin.Context) {
	n, err := h.menuSvc.ClearCalendar(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, dto.ClearResponse{Deleted: n})
}

// ── 错误映射 ──

func handleImportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrMenuFileEmpty):
		response.BadRequest(c, 13001, "上传的文件为空")
	case errors.Is(err, service.ErrMenuWeekStartInvalid):
		response.BadRequest(c, 13002, "目标周起始日期无效，只能导入本周或下周")
	case errors.Is(err, service.ErrMenuFileInvalid):
		response.ErrorWithDetails(c, http.StatusBadRequest, 13003, "无法读取菜单文件，请上传 .xlsx 格式的表格", err.Error())
	case errors.Is(err, service.ErrMenuEmptySheet):
		response.BadRequest(c, 13004, "菜单表格为空")
	case errors.Is(err, service.ErrMenuNoWeekdayColumns):
		response.BadRequest(c, 13005, "未在表头中找到任何星期列")
	case errors.Is(err, service.ErrMenuNoCategories):
		response.BadRequest(c, 13006, "未在 A 列中找到任何菜品分类")
	case errors.Is(err, service.ErrMenuUnknownLayout):
		response.BadRequest(c, 13007, "未知的菜单表格布局")
	case middleware.IsBodyTooLarge(err):
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
	default:
		response.InternalError(c)
	}
}

func handleMenuError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrDayMenuNotFound):
		response.NotFound(c, 14001, "日菜单不存在")
	case errors.Is(err, service.ErrDishNotFound):
		response.NotFound(c, 14002, "菜品不存在")
	case errors.Is(err, service.ErrCourseInvalid):
		response.BadRequest(c, 14003, "无效的菜品栏目")
	case errors.Is(err, service.ErrDishNotMainCourse):
		response.BadRequest(c, 14004, "只有主菜可以标记为完整菜品")
	default:
		response.InternalError(c)
	}
}
