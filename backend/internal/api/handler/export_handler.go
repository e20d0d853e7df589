package handler

import (
	"bytes"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/zefirkoooo/food-calendar/backend/internal/dto"
	"github.com/zefirkoooo/food-calendar/backend/internal/service"
	"github.com/zefirkoooo/food-calendar/backend/pkg/response"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// SelectionCounts 原菜单文件回写选餐人数
// GET /api/v1/export/selection-counts?week=next|current
func (h *ExportHandler) SelectionCounts(c *gin.Context) {
	var req dto.ExportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "week 只能是 current 或 next")
		return
	}

	buf, filename, err := h.exportSvc.ExportSelectionCounts(c.Request.Context(), req.Week)
	h.send(c, buf, filename, err)
}

// Selections 全部选餐明细
// GET /api/v1/export/selections
func (h *ExportHandler) Selections(c *gin.Context) {
	buf, filename, err := h.exportSvc.ExportSelections(c.Request.Context())
	h.send(c, buf, filename, err)
}

// Summary 菜品汇总与个人选餐
// GET /api/v1/export/summary?week=next|current
func (h *ExportHandler) Summary(c *gin.Context) {
	var req dto.ExportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "week 只能是 current 或 next")
		return
	}

	buf, filename, err := h.exportSvc.ExportSummary(c.Request.Context(), req.Week)
	h.send(c, buf, filename, err)
}

func (h *ExportHandler) send(c *gin.Context, buf *bytes.Buffer, filename string, err error) {
	if err != nil {
		h.handleExportError(c, err)
		return
	}
	response.Attachment(c, filename, buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportNoUpload):
		response.NotFound(c, 16001, "该周没有可回写的菜单文件")
	case errors.Is(err, service.ErrExportNoMenu):
		response.NotFound(c, 16002, "该周暂无菜单")
	default:
		response.InternalError(c)
	}
}
