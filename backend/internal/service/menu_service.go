package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zefirkoooo/food-calendar/backend/config"
	"github.com/zefirkoooo/food-calendar/backend/internal/dto"
	"github.com/zefirkoooo/food-calendar/backend/internal/model"
	"github.com/zefirkoooo/food-calendar/backend/internal/repository"
	"github.com/zefirkoooo/food-calendar/backend/pkg/cache"
)

// ── 菜单查询业务错误 ──

var (
	ErrDishNotFound      = errors.New("菜品不存在")
	ErrDishNotMainCourse = errors.New("只有主菜可以标记为完整菜品")
	ErrCourseInvalid     = errors.New("无效的菜品栏目")
)

const calendarCachePrefix = "calendar:"

// calendarUserPrefix 某用户全部日历缓存的前缀
func calendarUserPrefix(userID string) string {
	return calendarCachePrefix + userID + ":"
}

// MenuService 菜单查询与管理业务接口
type MenuService interface {
	GetCalendar(ctx context.Context, userID string) (*dto.CalendarResponse, error)
	GetDayMenu(ctx context.Context, userID, dayMenuID string) (*dto.DayMenuResponse, error)
	DishesFor(ctx context.Context, dayMenuID string, course model.Course) ([]dto.DishResponse, error)
	ListMainDishes(ctx context.Context) ([]dto.DishResponse, error)
	SetCompleteDish(ctx context.Context, dishID string, complete bool) (*dto.DishResponse, error)
	ClearCalendar(ctx context.Context) (int64, error)
	ClearAllDishes(ctx context.Context) (int64, error)
}

type menuService struct {
	repo   *repository.Repository
	cache  cache.Cache
	ttl    time.Duration
	loc    *time.Location
	now    Clock
	logger *zap.Logger
}

// NewMenuService 创建 MenuService 实例
func NewMenuService(
	repo *repository.Repository,
	c cache.Cache,
	cfg config.MenuConfig,
	now Clock,
	logger *zap.Logger,
) MenuService {
	loc, err := cfg.Location()
	if err != nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &menuService{repo: repo, cache: c, ttl: cfg.CalendarCacheTTL, loc: loc, now: now, logger: logger}
}

// ────────────────────── GetCalendar ──────────────────────

func (s *menuService) GetCalendar(ctx context.Context, userID string) (*dto.CalendarResponse, error) {
	w := NewWeekWindow(s.now(), s.loc)
	key := calendarUserPrefix(userID) + dateKey(w.CurrentWeekStart)

	var cached dto.CalendarResponse
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		s.markToday(&cached, dateKey(w.Today))
		return &cached, nil
	}

	menus, err := s.repo.DayMenu.ListByDateRange(ctx, w.CurrentWeekStart, w.NextWeekEnd())
	if err != nil {
		s.logger.Error("查询日历菜单失败", zap.Error(err))
		return nil, err
	}

	ids := make([]string, 0, len(menus))
	for _, m := range menus {
		ids = append(ids, m.DayMenuID)
	}
	sels, err := s.repo.Selection.ListByUserAndDays(ctx, userID, ids)
	if err != nil {
		s.logger.Error("查询用户选餐失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	selByDay := make(map[string]*model.UserSelection, len(sels))
	for i := range sels {
		selByDay[sels[i].DayMenuID] = &sels[i]
	}

	resp := &dto.CalendarResponse{
		CurrentWeek: dto.CalendarWeek{WeekStart: dateKey(w.CurrentWeekStart), Days: []dto.CalendarDay{}},
		NextWeek:    dto.CalendarWeek{WeekStart: dateKey(w.NextWeekStart), Days: []dto.CalendarDay{}},
	}
	nextKey := dateKey(w.NextWeekStart)
	for i := range menus {
		m := &menus[i]
		day := dto.CalendarDay{
			DayMenuID:   m.DayMenuID,
			Date:        dateKey(m.Date),
			Weekday:     m.Weekday(),
			WeekdayName: weekdayName(m),
		}
		if sel, ok := selByDay[m.DayMenuID]; ok {
			day.Selection = toSelectionResponse(sel, menuDishIndex(m))
		}
		if day.Date >= nextKey {
			resp.NextWeek.Days = append(resp.NextWeek.Days, day)
		} else {
			resp.CurrentWeek.Days = append(resp.CurrentWeek.Days, day)
		}
	}

	if s.ttl > 0 {
		_ = s.cache.Set(ctx, key, resp, s.ttl)
	}
	s.markToday(resp, dateKey(w.Today))
	return resp, nil
}

// markToday 标记今天；不写入缓存，避免跨日后缓存中的标记过期
func (s *menuService) markToday(resp *dto.CalendarResponse, today string) {
	resp.Today = today
	for _, week := range []*dto.CalendarWeek{&resp.CurrentWeek, &resp.NextWeek} {
		for i := range week.Days {
			week.Days[i].IsToday = week.Days[i].Date == today
		}
	}
}

// ────────────────────── GetDayMenu ──────────────────────

func (s *menuService) GetDayMenu(ctx context.Context, userID, dayMenuID string) (*dto.DayMenuResponse, error) {
	menu, err := s.getMenu(ctx, dayMenuID)
	if err != nil {
		return nil, err
	}

	resp := &dto.DayMenuResponse{
		DayMenuID:   menu.DayMenuID,
		Date:        dateKey(menu.Date),
		Weekday:     menu.Weekday(),
		WeekdayName: weekdayName(menu),
		Salads:      toDishResponses(menu.DishesFor(model.CourseSalads)),
		Soups:       toDishResponses(menu.DishesFor(model.CourseSoups)),
		MainCourses: toDishResponses(menu.DishesFor(model.CourseMainCourses)),
		Sides:       toDishResponses(menu.DishesFor(model.CourseSides)),
		Bakery:      toDishResponses(menu.DishesFor(model.CourseBakery)),
	}

	sel, err := s.repo.Selection.GetByUserAndDay(ctx, userID, dayMenuID)
	switch {
	case err == nil:
		resp.Selection = toSelectionResponse(sel, menuDishIndex(menu))
	case !errors.Is(err, gorm.ErrRecordNotFound):
		s.logger.Error("查询用户选餐失败", zap.String("day_menu_id", dayMenuID), zap.Error(err))
		return nil, err
	}

	next, err := s.repo.DayMenu.NextAfter(ctx, menu.Date)
	switch {
	case err == nil:
		resp.NextDayMenuID = next.DayMenuID
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	return resp, nil
}

// ────────────────────── DishesFor ──────────────────────

func (s *menuService) DishesFor(ctx context.Context, dayMenuID string, course model.Course) ([]dto.DishResponse, error) {
	if !course.Valid() {
		return nil, ErrCourseInvalid
	}
	menu, err := s.getMenu(ctx, dayMenuID)
	if err != nil {
		return nil, err
	}
	return toDishResponses(menu.DishesFor(course)), nil
}

// ────────────────────── 完整菜品 ──────────────────────

func (s *menuService) ListMainDishes(ctx context.Context) ([]dto.DishResponse, error) {
	cat, err := s.repo.Category.GetByName(ctx, model.CourseMainCourses.CategoryName())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []dto.DishResponse{}, nil
		}
		return nil, err
	}

	dishes, err := s.repo.Dish.ListByCategory(ctx, cat.CategoryID)
	if err != nil {
		s.logger.Error("查询主菜失败", zap.Error(err))
		return nil, err
	}

	// 同名主菜只展示一条
	seen := make(map[string]bool, len(dishes))
	out := make([]dto.DishResponse, 0, len(dishes))
	for i := range dishes {
		key := strings.ToLower(dishes[i].Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		dishes[i].Category = cat
		out = append(out, toDishResponse(&dishes[i]))
	}
	return out, nil
}

// SetCompleteDish 设置主菜的完整菜品标记，同名主菜一并更新
func (s *menuService) SetCompleteDish(ctx context.Context, dishID string, complete bool) (*dto.DishResponse, error) {
	dish, err := s.repo.Dish.GetByID(ctx, dishID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDishNotFound
		}
		return nil, err
	}
	if dish.Category == nil || dish.Category.Name != model.CourseMainCourses.CategoryName() {
		return nil, ErrDishNotMainCourse
	}

	siblings, err := s.repo.Dish.ListByCategory(ctx, dish.CategoryID)
	if err != nil {
		return nil, err
	}
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		for i := range siblings {
			d := &siblings[i]
			if !strings.EqualFold(d.Name, dish.Name) || d.IsCompleteDish == complete {
				continue
			}
			d.IsCompleteDish = complete
			if err := tx.Dish.Update(ctx, d); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("更新完整菜品标记失败", zap.String("dish_id", dishID), zap.Error(err))
		return nil, err
	}

	_ = s.cache.InvalidatePrefix(ctx, calendarCachePrefix)
	dish.IsCompleteDish = complete
	resp := toDishResponse(dish)
	return &resp, nil
}

// ────────────────────── 清理 ──────────────────────

// ClearCalendar 删除全部日菜单，用户选餐随之级联删除
func (s *menuService) ClearCalendar(ctx context.Context) (int64, error) {
	n, err := s.repo.DayMenu.DeleteAll(ctx)
	if err != nil {
		s.logger.Error("清空日历失败", zap.Error(err))
		return 0, err
	}
	_ = s.cache.InvalidatePrefix(ctx, calendarCachePrefix)
	s.logger.Info("已清空日历", zap.Int64("deleted", n))
	return n, nil
}

// ClearAllDishes 删除全部菜品，用户选餐中的引用置空
func (s *menuService) ClearAllDishes(ctx context.Context) (int64, error) {
	n, err := s.repo.Dish.DeleteAll(ctx)
	if err != nil {
		s.logger.Error("清空菜品失败", zap.Error(err))
		return 0, err
	}
	_ = s.cache.InvalidatePrefix(ctx, calendarCachePrefix)
	s.logger.Info("已清空菜品", zap.Int64("deleted", n))
	return n, nil
}

func (s *menuService) getMenu(ctx context.Context, dayMenuID string) (*model.DayMenu, error) {
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
