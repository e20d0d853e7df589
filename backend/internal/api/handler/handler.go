package handler

import "github.com/zefirkoooo/food-calendar/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth      *AuthHandler
	User      *UserHandler
	Menu      *MenuHandler
	Dish      *DishHandler
	Selection *SelectionHandler
	Export    *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:      NewAuthHandler(svc.Auth),
		User:      NewUserHandler(svc.User),
		Menu:      NewMenuHandler(svc.MenuImport, svc.Menu),
		Dish:      NewDishHandler(svc.Menu),
		Selection: NewSelectionHandler(svc.Selection),
		Export:    NewExportHandler(svc.Export),
	}
}
