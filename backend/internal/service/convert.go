package service

import (
	"time"

	"github.com/zefirkoooo/food-calendar/backend/internal/dto"
	"github.com/zefirkoooo/food-calendar/backend/internal/model"
)

func toUserResponse(u *model.User) dto.UserResponse {
	resp := dto.UserResponse{
		ID:                 u.UserID,
		Username:           u.Username,
		Role:               u.Role,
		MustChangePassword: u.MustChangePassword,
	}
	if !u.CreatedAt.IsZero() {
		resp.CreatedAt = u.CreatedAt.Format(time.RFC3339)
	}
	return resp
}

func toDishResponse(d *model.Dish) dto.DishResponse {
	resp := dto.DishResponse{
		ID:             d.DishID,
		Name:           d.Name,
		Description:    d.Description,
		IsCompleteDish: d.IsCompleteDish,
		IsFasting:      d.IsFasting,
	}
	if d.Category != nil {
		resp.Category = d.Category.Name
	}
	return resp
}

func toDishResponses(dishes []model.Dish) []dto.DishResponse {
	out := make([]dto.DishResponse, 0, len(dishes))
	for i := range dishes {
		out = append(out, toDishResponse(&dishes[i]))
	}
	return out
}

// menuDishIndex 日菜单内 菜品 ID → 菜品
func menuDishIndex(menu *model.DayMenu) map[string]*model.Dish {
	idx := make(map[string]*model.Dish, len(menu.Items))
	for i := range menu.Items {
		if d := menu.Items[i].Dish; d != nil {
			idx[d.DishID] = d
		}
	}
	return idx
}

// toSelectionResponse 组装选餐响应，dishes 中找不到的菜品（已被删除）不返回
func toSelectionResponse(sel *model.UserSelection, dishes map[string]*model.Dish) *dto.SelectionResponse {
	resp := &dto.SelectionResponse{DayMenuID: sel.DayMenuID, NotEating: sel.NotEating}
	pick := func(id *string) *dto.DishResponse {
		if id == nil {
			return nil
		}
		d, ok := dishes[*id]
		if !ok {
			return nil
		}
		r := toDishResponse(d)
		return &r
	}
	resp.Salad = pick(sel.SaladID)
	resp.Soup = pick(sel.SoupID)
	resp.Main = pick(sel.MainID)
	resp.Side = pick(sel.SideID)
	resp.Bakery = pick(sel.BakeryID)
	return resp
}
