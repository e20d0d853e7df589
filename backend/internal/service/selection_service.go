package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zefirkoooo/food-calendar/backend/internal/dto"
	"github.com/zefirkoooo/food-calendar/backend/internal/model"
	"github.com/zefirkoooo/food-calendar/backend/internal/repository"
	"github.com/zefirkoooo/food-calendar/backend/pkg/cache"
	pkgerrors "github.com/zefirkoooo/food-calendar/backend/pkg/errors"
)

// ── 选餐业务错误 ──

var (
	ErrSelectionNotEatingWithDishes = errors.New("选择\"不就餐\"时不能同时选择菜品")
	ErrSelectionCompleteWithSide    = errors.New("所选主菜已含配菜，不能再选择配菜")
	ErrSelectionDishNotInMenu       = errors.New("所选菜品不在当日该栏目的菜单中")
	ErrDayMenuNotFound              = errors.New("日菜单不存在")
)

// SelectionValidationError 选餐字段级校验错误
type SelectionValidationError struct {
	Field string
	Err   error
}

func (e *SelectionValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *SelectionValidationError) Unwrap() error {
	return e.Err
}

// courseFields 栏目 → 请求字段名
var courseFields = map[model.Course]string{
	model.CourseSalads:      "salad_id",
	model.CourseSoups:       "soup_id",
	model.CourseMainCourses: "main_id",
	model.CourseSides:       "side_id",
	model.CourseBakery:      "bakery_id",
}

// SelectionDraft 待保存的选餐（菜品已解析）
type SelectionDraft struct {
	NotEating bool
	Salad     *model.Dish
	Soup      *model.Dish
	Main      *model.Dish
	Side      *model.Dish
	Bakery    *model.Dish
}

func (d *SelectionDraft) hasAnyDish() bool {
	return d.Salad != nil || d.Soup != nil || d.Main != nil || d.Side != nil || d.Bakery != nil
}

func (d *SelectionDraft) get(course model.Course) *model.Dish {
	switch course {
	case model.CourseSalads:
		return d.Salad
	case model.CourseSoups:
		return d.Soup
	case model.CourseMainCourses:
		return d.Main
	case model.CourseSides:
		return d.Side
	case model.CourseBakery:
		return d.Bakery
	}
	return nil
}

func (d *SelectionDraft) set(course model.Course, dish *model.Dish) {
	switch course {
	case model.CourseSalads:
		d.Salad = dish
	case model.CourseSoups:
		d.Soup = dish
	case model.CourseMainCourses:
		d.Main = dish
	case model.CourseSides:
		d.Side = dish
	case model.CourseBakery:
		d.Bakery = dish
	}
}

// ValidateSelection 校验选餐规则，只检查不修改
func ValidateSelection(d *SelectionDraft) error {
	if d.NotEating && d.hasAnyDish() {
		return &SelectionValidationError{Field: "not_eating", Err: ErrSelectionNotEatingWithDishes}
	}
	if d.Main != nil && d.Main.IsCompleteDish && d.Side != nil {
		return &SelectionValidationError{Field: "side_id", Err: ErrSelectionCompleteWithSide}
	}
	return nil
}

// SelectionService 选餐业务接口
type SelectionService interface {
	GetSelection(ctx context.Context, userID, dayMenuID string) (*dto.SelectionResponse, error)
	SaveSelection(ctx context.Context, userID, dayMenuID string, req *dto.SaveSelectionRequest) (*dto.SaveSelectionResponse, error)
	ClearSelections(ctx context.Context, dayMenuID string) (int64, error)
}

type selectionService struct {
	repo   *repository.Repository
	cache  cache.Cache
	logger *zap.Logger
}

// NewSelectionService 创建 SelectionService 实例
func NewSelectionService(repo *repository.Repository, c cache.Cache, logger *zap.Logger) SelectionService {
	return &selectionService{repo: repo, cache: c, logger: logger}
}

// ────────────────────── GetSelection ──────────────────────

func (s *selectionService) GetSelection(ctx context.Context, userID, dayMenuID string) (*dto.SelectionResponse, error) {
	menu, err := s.getMenu(ctx, dayMenuID)
	if err != nil {
		return nil, err
	}

	sel, err := s.repo.Selection.GetByUserAndDay(ctx, userID, dayMenuID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &dto.SelectionResponse{DayMenuID: dayMenuID}, nil
		}
		s.logger.Error("查询选餐失败", zap.String("day_menu_id", dayMenuID), zap.Error(err))
		return nil, err
	}
	return toSelectionResponse(sel, menuDishIndex(menu)), nil
}

// ────────────────────── SaveSelection ──────────────────────

func (s *selectionService) SaveSelection(
	ctx context.Context,
	userID, dayMenuID string,
	req *dto.SaveSelectionRequest,
) (*dto.SaveSelectionResponse, error) {
	menu, err := s.getMenu(ctx, dayMenuID)
	if err != nil {
		return nil, err
	}

	draft, err := resolveDraft(menu, req)
	if err != nil {
		return nil, err
	}
	if err := ValidateSelection(draft); err != nil {
		return nil, err
	}

	sel := &model.UserSelection{UserID: userID, DayMenuID: dayMenuID}
	applyDraft(sel, draft)

	saved, err := s.upsert(ctx, sel)
	if err != nil {
		s.logger.Error("保存选餐失败",
			zap.String("user_id", userID), zap.String("day_menu_id", dayMenuID), zap.Error(err))
		return nil, err
	}

	_ = s.cache.InvalidatePrefix(ctx, calendarUserPrefix(userID))

	resp := &dto.SaveSelectionResponse{Selection: *toSelectionResponse(saved, menuDishIndex(menu))}
	if next, err := s.repo.DayMenu.NextAfter(ctx, menu.Date); err == nil {
		resp.NextDayMenuID = next.DayMenuID
	}
	return resp, nil
}

// upsert 按 (user, day) 更新或创建；并发插入触发唯一约束时转为更新
func (s *selectionService) upsert(ctx context.Context, sel *model.UserSelection) (*model.UserSelection, error) {
	existing, err := s.repo.Selection.GetByUserAndDay(ctx, sel.UserID, sel.DayMenuID)
	switch {
	case err == nil:
		return existing, s.updateFrom(ctx, existing, sel)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	err = s.repo.Selection.Create(ctx, sel)
	if err == nil {
		return sel, nil
	}
	if !pkgerrors.IsDuplicateKey(err) {
		return nil, err
	}

	s.logger.Info("选餐并发写入冲突，转为更新",
		zap.String("user_id", sel.UserID), zap.String("day_menu_id", sel.DayMenuID))
	existing, err = s.repo.Selection.GetByUserAndDay(ctx, sel.UserID, sel.DayMenuID)
	if err != nil {
		return nil, err
	}
	return existing, s.updateFrom(ctx, existing, sel)
}

func (s *selectionService) updateFrom(ctx context.Context, dst, src *model.UserSelection) error {
	dst.NotEating = src.NotEating
	dst.SaladID, dst.SoupID, dst.MainID, dst.SideID, dst.BakeryID =
		src.SaladID, src.SoupID, src.MainID, src.SideID, src.BakeryID
	return s.repo.Selection.Update(ctx, dst)
}

// resolveDraft 将请求中的菜品 ID 解析为当日菜单中对应栏目的菜品
func resolveDraft(menu *model.DayMenu, req *dto.SaveSelectionRequest) (*SelectionDraft, error) {
	draft := &SelectionDraft{NotEating: req.NotEating}
	dishes := menuDishIndex(menu)

	ids := map[model.Course]*string{
		model.CourseSalads:      req.SaladID,
		model.CourseSoups:       req.SoupID,
		model.CourseMainCourses: req.MainID,
		model.CourseSides:       req.SideID,
		model.CourseBakery:      req.BakeryID,
	}
	for _, course := range model.Courses {
		id := ids[course]
		if id == nil || *id == "" {
			continue
		}
		if !menu.HasDish(course, *id) {
			return nil, &SelectionValidationError{Field: courseFields[course], Err: ErrSelectionDishNotInMenu}
		}
		draft.set(course, dishes[*id])
	}
	return draft, nil
}

// applyDraft 写入选餐字段，不就餐时清空所有菜品
func applyDraft(sel *model.UserSelection, d *SelectionDraft) {
	sel.NotEating = d.NotEating
	sel.ClearDishes()
	if d.NotEating {
		return
	}
	for _, course := range model.Courses {
		if dish := d.get(course); dish != nil {
			id := dish.DishID
			*sel.DishRef(course) = &id
		}
	}
}

// ────────────────────── ClearSelections ──────────────────────

func (s *selectionService) ClearSelections(ctx context.Context, dayMenuID string) (int64, error) {
	var (
		n   int64
		err error
	)
	if dayMenuID != "" {
		if _, err := s.getMenu(ctx, dayMenuID); err != nil {
			return 0, err
		}
		n, err = s.repo.Selection.DeleteByDayMenu(ctx, dayMenuID)
	} else {
		n, err = s.repo.Selection.DeleteAll(ctx)
	}
	if err != nil {
		s.logger.Error("清除选餐失败", zap.String("day_menu_id", dayMenuID), zap.Error(err))
		return 0, err
	}

	_ = s.cache.InvalidatePrefix(ctx, calendarCachePrefix)
	s.logger.Info("已清除选餐", zap.String("day_menu_id", dayMenuID), zap.Int64("deleted", n))
	return n, nil
}

func (s *selectionService) getMenu(ctx context.Context, dayMenuID string) (*model.DayMenu, error) {
	menu, err := s.repo.DayMenu.GetByID(ctx, dayMenuID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDayMenuNotFound
		}
		s.logger.Error("查询日菜单失败", zap.String("day_menu_id", dayMenuID), zap.Error(err))
		return nil, err
	}
	return menu, nil
}
