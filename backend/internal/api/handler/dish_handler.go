package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/zefirkoooo/food-calendar/backend/internal/dto"
	"github.com/zefirkoooo/food-calendar/backend/internal/service"
	"github.com/zefirkoooo/food-calendar/backend/pkg/response"
)

// DishHandler 菜品管理 HTTP 处理器（管理员）
type DishHandler struct {
	menuSvc service.MenuService
}

// NewDishHandler 创建 DishHandler
func NewDishHandler(menuSvc service.MenuService) *DishHandler {
	return &DishHandler{menuSvc: menuSvc}
}

// ListMain 主菜列表（同名去重）
// GET /api/v1/dishes/main
func (h *DishHandler) ListMain(c *gin.Context) {
	dishes, err := h.menuSvc.ListMainDishes(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": dishes})
}

// SetComplete 标记主菜是否自带配菜
// PUT /api/v1/dishes/:id/complete
func (h *DishHandler) SetComplete(c *gin.Context) {
	var req dto.SetCompleteDishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	id, ok := ParseIDParam(c, "id")
	if !ok {
		return
	}

	dish, err := h.menuSvc.SetCompleteDish(c.Request.Context(), id, *req.IsCompleteDish)
	if err != nil {
		handleMenuError(c, err)
		return
	}

	response.OK(c, dish)
}

// ClearAll 删除全部菜品
// DELETE /api/v1/dishes
func (h *DishHandler) ClearAll(c *gin.Context) {
	n, err := h.menuSvc.ClearAllDishes(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, dto.ClearResponse{Deleted: n})
}
