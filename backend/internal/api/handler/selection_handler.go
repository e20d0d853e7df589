package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/zefirkoooo/food-calendar/backend/internal/dto"
	"github.com/zefirkoooo/food-calendar/backend/internal/service"
	"github.com/zefirkoooo/food-calendar/backend/pkg/response"
)

// SelectionHandler 选餐 HTTP 处理器
type SelectionHandler struct {
	selectionSvc service.SelectionService
}

// NewSelectionHandler 创建 SelectionHandler
func NewSelectionHandler(selectionSvc service.SelectionService) *SelectionHandler {
	return &SelectionHandler{selectionSvc: selectionSvc}
}

// Get 当前用户某日的选餐
// GET /api/v1/selections/days/:id
func (h *SelectionHandler) Get(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	id, ok := ParseIDParam(c, "id")
	if !ok {
		return
	}

	sel, err := h.selectionSvc.GetSelection(c.Request.Context(), userID, id)
	if err != nil {
		handleSelectionError(c, err)
		return
	}

	response.OK(c, sel)
}

// Save 保存当前用户某日的选餐
// PUT /api/v1/selections/days/:id
func (h *SelectionHandler) Save(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.SaveSelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	id, ok := ParseIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.selectionSvc.SaveSelection(c.Request.Context(), userID, id, &req)
	if err != nil {
		handleSelectionError(c, err)
		return
	}

	response.OK(c, result)
}

// Clear 清除选餐，day_menu_id 为空时清除全部
// DELETE /api/v1/selections
func (h *SelectionHandler) Clear(c *gin.Context) {
	var req dto.ClearSelectionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	n, err := h.selectionSvc.ClearSelections(c.Request.Context(), req.DayMenuID)
	if err != nil {
		handleSelectionError(c, err)
		return
	}

	response.OK(c, dto.ClearResponse{Deleted: n})
}

func handleSelectionError(c *gin.Context, err error) {
	var fieldErr *service.SelectionValidationError
	if errors.As(err, &fieldErr) {
		code := 15001
		switch {
		case errors.Is(err, service.ErrSelectionCompleteWithSide):
			code = 15002
		case errors.Is(err, service.ErrSelectionDishNotInMenu):
			code = 15003
		}
		response.ErrorWithFields(c, code, fieldErr.Err.Error(), map[string]string{
			fieldErr.Field: fieldErr.Err.Error(),
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrDayMenuNotFound):
		response.NotFound(c, 14001, "日菜单不存在")
	default:
		response.InternalError(c)
	}
}
