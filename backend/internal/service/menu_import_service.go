package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/zefirkoooo/food-calendar/backend/config"
	"github.com/zefirkoooo/food-calendar/backend/internal/dto"
	"github.com/zefirkoooo/food-calendar/backend/internal/model"
	"github.com/zefirkoooo/food-calendar/backend/internal/repository"
	"github.com/zefirkoooo/food-calendar/backend/pkg/cache"
)

// ── 菜单导入业务错误 ──

var (
	ErrMenuFileEmpty        = errors.New("上传的文件为空")
	ErrMenuWeekStartInvalid = errors.New("目标周起始日期无效")
	ErrDishCourseMismatch   = errors.New("菜品分类与菜单栏目不一致")
)

// MenuImportService 菜单导入与周滚动业务接口
type MenuImportService interface {
	ImportMenu(ctx context.Context, req *ImportMenuRequest) (*dto.ImportMenuResponse, error)
	Rollover(ctx context.Context) (*dto.RolloverResponse, error)
}

// ImportMenuRequest 菜单导入参数
type ImportMenuRequest struct {
	Reader     io.Reader
	Filename   string
	Layout     string     // 为空时使用配置的默认布局
	WeekStart  *time.Time // 为空时导入到下周
	UploadedBy string
}

type menuImportService struct {
	// mu 串行化本进程内的导入与滚动，跨进程由 advisory lock 保证
	mu sync.Mutex

	repo   *repository.Repository
	cache  cache.Cache
	cfg    config.MenuConfig
	loc    *time.Location
	now    Clock
	logger *zap.Logger
}

// NewMenuImportService 创建 MenuImportService 实例
func NewMenuImportService(
	repo *repository.Repository,
	c cache.Cache,
	cfg config.MenuConfig,
	now Clock,
	logger *zap.Logger,
) MenuImportService {
	loc, err := cfg.Location()
	if err != nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &menuImportService{repo: repo, cache: c, cfg: cfg, loc: loc, now: now, logger: logger}
}

// ────────────────────── ImportMenu ──────────────────────

func (s *menuImportService) ImportMenu(ctx context.Context, req *ImportMenuRequest) (*dto.ImportMenuResponse, error) {
	content, err := io.ReadAll(req.Reader)
	if err != nil {
		return nil, fmt.Errorf("读取上传文件失败: %w", err)
	}
	if len(content) == 0 {
		return nil, ErrMenuFileEmpty
	}

	layout, err := ParseLayout(req.Layout, MenuLayout(s.cfg.DefaultLayout))
	if err != nil {
		return nil, err
	}

	// ── 结构解析：任何结构性错误都在写库之前返回 ──
	grid, err := LoadSheet(bytes.NewReader(content))
	if err != nil {
		s.logger.Error("解析菜单文件失败", zap.String("filename", req.Filename), zap.Error(err))
		return nil, err
	}
	days, err := MapDayColumns(grid, layout)
	if err != nil {
		s.logger.Error("菜单表格缺少星期列", zap.String("filename", req.Filename), zap.String("layout", string(layout)))
		return nil, err
	}
	ranges, unknown := LocateCategories(grid, categoryColumn, days.DataStartRow, grid.MaxRow())
	if len(ranges) == 0 {
		s.logger.Error("菜单表格缺少分类", zap.String("filename", req.Filename))
		return nil, ErrMenuNoCategories
	}

	window := NewWeekWindow(s.now(), s.loc)
	target := window.NextWeekStart
	if req.WeekStart != nil {
		if req.WeekStart.IsZero() {
			return nil, ErrMenuWeekStartInvalid
		}
		// 按日历日期解释，不做时区换算
		ws := *req.WeekStart
		target = MondayOf(time.Date(ws.Year(), ws.Month(), ws.Day(), 0, 0, 0, 0, s.loc))
		// 滚动与清理只覆盖本周和下周，其他周的菜单会在下一次导入时被清掉
		if !target.Equal(window.CurrentWeekStart) && !target.Equal(window.NextWeekStart) {
			s.logger.Warn("目标周超出本周/下周范围",
				zap.String("week_start", dateKey(target)),
				zap.String("next_week_start", dateKey(window.NextWeekStart)),
			)
			return nil, ErrMenuWeekStartInvalid
		}
	}

	resp := &dto.ImportMenuResponse{
		WeekStart: dateKey(target),
		Layout:    string(layout),
	}
	resp.Warnings = append(resp.Warnings, days.Warnings...)
	for _, label := range unknown {
		resp.Warnings = append(resp.Warnings, "未识别的分类: "+label)
		s.logger.Warn("未识别的分类标签", zap.String("label", label))
	}
	for _, wd := range days.Missing {
		resp.MissingDays = append(resp.MissingDays, WeekdayNames[wd])
		s.logger.Warn("菜单缺少星期列", zap.String("weekday", WeekdayNames[wd]))
	}
	seen := make(map[model.Course]bool)
	for _, r := range ranges {
		if !seen[r.Course] {
			seen[r.Course] = true
			resp.Categories = append(resp.Categories, r.Course.CategoryName())
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// ── 事务：滚动 → 清理目标周 → 构建 → 保存上传记录 ──
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.LockMenuImport(ctx); err != nil {
			return fmt.Errorf("获取导入锁失败: %w", err)
		}
		rolled, err := s.rollover(ctx, tx, window)
		if err != nil {
			return err
		}
		resp.Rollover = rolled

		if _, err := tx.DayMenu.DeleteByDateRange(ctx, target, target.AddDate(0, 0, 4)); err != nil {
			return fmt.Errorf("清理目标周菜单失败: %w", err)
		}

		built, err := s.build(ctx, tx, grid, days, ranges, target)
		if err != nil {
			return err
		}
		resp.DaysCreated = built.days
		resp.DishesCreated = built.dishes
		resp.RowsProcessed = built.rows
		resp.Warnings = append(resp.Warnings, built.warnings...)

		return s.saveUpload(ctx, tx, req, content, layout, target, resp)
	})
	if err != nil {
		s.logger.Error("菜单导入失败，已回滚", zap.String("filename", req.Filename), zap.Error(err))
		return nil, err
	}

	_ = s.cache.InvalidatePrefix(ctx, calendarCachePrefix)

	s.logger.Info("菜单导入完成",
		zap.String("filename", req.Filename),
		zap.String("week_start", resp.WeekStart),
		zap.Int("days", resp.DaysCreated),
		zap.Int("dishes", resp.DishesCreated),
		zap.Int("warnings", len(resp.Warnings)),
	)
	return resp, nil
}

// ────────────────────── Rollover ──────────────────────

func (s *menuImportService) Rollover(ctx context.Context) (*dto.RolloverResponse, error) {
	window := NewWeekWindow(s.now(), s.loc)

	s.mu.Lock()
	defer s.mu.Unlock()

	var resp *dto.RolloverResponse
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.LockMenuImport(ctx); err != nil {
			return fmt.Errorf("获取导入锁失败: %w", err)
		}
		var err error
		resp, err = s.rollover(ctx, tx, window)
		return err
	})
	if err != nil {
		s.logger.Error("周滚动失败，已回滚", zap.Error(err))
		return nil, err
	}

	_ = s.cache.InvalidatePrefix(ctx, calendarCachePrefix)
	return resp, nil
}

// rollover 清理过期菜品；若下周菜单已存在，将其连同用户选餐复制为本周菜单，最后清空下周
func (s *menuImportService) rollover(ctx context.Context, tx *repository.Repository, w WeekWindow) (*dto.RolloverResponse, error) {
	resp := &dto.RolloverResponse{
		CurrentWeekStart: dateKey(w.CurrentWeekStart),
		NextWeekStart:    dateKey(w.NextWeekStart),
	}

	pruned, err := tx.Dish.DeleteUnreferenced(ctx, w.CurrentWeekStart, w.NextWeekEnd())
	if err != nil {
		return nil, fmt.Errorf("清理过期菜品失败: %w", err)
	}
	resp.DishesPruned = pruned

	existing, err := tx.DayMenu.CountByDateRange(ctx, w.NextWeekStart, w.NextWeekEnd())
	if err != nil {
		return nil, fmt.Errorf("查询下周菜单失败: %w", err)
	}

	if existing > 0 {
		resp.Promoted = true

		nextMenus, err := tx.DayMenu.ListByDateRange(ctx, w.NextWeekStart, w.NextWeekEnd())
		if err != nil {
			return nil, fmt.Errorf("读取下周菜单失败: %w", err)
		}
		byDate := make(map[string]*model.DayMenu, len(nextMenus))
		for i := range nextMenus {
			byDate[dateKey(nextMenus[i].Date)] = &nextMenus[i]
		}

		if _, err := tx.DayMenu.DeleteByDateRange(ctx, w.CurrentWeekStart, w.CurrentWeekEnd()); err != nil {
			return nil, fmt.Errorf("删除本周菜单失败: %w", err)
		}

		for offset := 0; offset < 5; offset++ {
			src, ok := byDate[dateKey(w.NextWeekStart.AddDate(0, 0, offset))]
			if !ok {
				resp.MissingDays = append(resp.MissingDays, WeekdayNames[offset])
				s.logger.Warn("下周菜单缺少该日，跳过复制", zap.String("weekday", WeekdayNames[offset]))
				continue
			}

			copied, err := copyDayMenu(ctx, tx, src, w.CurrentWeekStart.AddDate(0, 0, offset))
			if err != nil {
				return nil, err
			}
			resp.DaysCopied++
			resp.SelectionsCopied += copied
		}
	}

	cleared, err := tx.DayMenu.DeleteByDateRange(ctx, w.NextWeekStart, w.NextWeekEnd())
	if err != nil {
		return nil, fmt.Errorf("清空下周菜单失败: %w", err)
	}
	resp.NextWeekCleared = cleared

	s.logger.Info("周滚动完成",
		zap.String("current_week", resp.CurrentWeekStart),
		zap.Int64("dishes_pruned", resp.DishesPruned),
		zap.Bool("promoted", resp.Promoted),
		zap.Int("days_copied", resp.DaysCopied),
		zap.Int("selections_copied", resp.SelectionsCopied),
	)
	return resp, nil
}

// copyDayMenu 在 date 创建 src 的副本（菜品关联与用户选餐按值复制），返回复制的选餐数
func copyDayMenu(ctx context.Context, tx *repository.Repository, src *model.DayMenu, date time.Time) (int, error) {
	dst := &model.DayMenu{Date: date}
	if err := tx.DayMenu.Create(ctx, dst); err != nil {
		return 0, fmt.Errorf("创建 %s 菜单失败: %w", dateKey(date), err)
	}

	items := make([]model.DayMenuDish, 0, len(src.Items))
	for _, it := range src.Items {
		items = append(items, model.DayMenuDish{
			DayMenuID: dst.DayMenuID,
			DishID:    it.DishID,
			Course:    it.Course,
			Position:  it.Position,
		})
	}
	if err := tx.DayMenu.BatchAttach(ctx, items); err != nil {
		return 0, fmt.Errorf("复制 %s 菜品失败: %w", dateKey(date), err)
	}

	sels, err := tx.Selection.ListByDayMenu(ctx, src.DayMenuID)
	if err != nil {
		return 0, fmt.Errorf("读取 %s 选餐失败: %w", dateKey(src.Date), err)
	}
	copies := make([]model.UserSelection, 0, len(sels))
	for _, sel := range sels {
		copies = append(copies, model.UserSelection{
			UserID:    sel.UserID,
			DayMenuID: dst.DayMenuID,
			NotEating: sel.NotEating,
			SaladID:   sel.SaladID,
			SoupID:    sel.SoupID,
			MainID:    sel.MainID,
			SideID:    sel.SideID,
			BakeryID:  sel.BakeryID,
		})
	}
	if err := tx.Selection.BatchCreate(ctx, copies); err != nil {
		return 0, fmt.Errorf("复制 %s 选餐失败: %w", dateKey(date), err)
	}
	return len(copies), nil
}

// ────────────────────── Menu Builder ──────────────────────

type buildResult struct {
	days     int
	dishes   int
	rows     int
	warnings []string
}

func (r *buildResult) warn(format string, args ...interface{}) {
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

// build 遍历 分类区间 × 星期列，逐条创建菜品并挂到对应日菜单
// 单条菜品失败只记录警告，不影响其余单元格
func (s *menuImportService) build(
	ctx context.Context,
	tx *repository.Repository,
	grid *SheetGrid,
	days *DayColumns,
	ranges []CategoryRange,
	weekStart time.Time,
) (*buildResult, error) {
	res := &buildResult{}

	categories := make(map[model.Course]*model.FoodCategory)
	for _, r := range ranges {
		if _, ok := categories[r.Course]; ok {
			continue
		}
		cat, err := tx.Category.GetOrCreate(ctx, r.Course.CategoryName())
		if err != nil {
			return nil, fmt.Errorf("获取分类 %s 失败: %w", r.Course.CategoryName(), err)
		}
		categories[r.Course] = cat
	}

	completeNames, err := s.completeMainNames(ctx, tx, categories[model.CourseMainCourses])
	if err != nil {
		return nil, err
	}

	rowsSeen := make(map[int]bool)
	for wd := 0; wd < 5; wd++ {
		col, ok := days.Columns[wd]
		if !ok {
			continue
		}

		menu := &model.DayMenu{Date: weekStart.AddDate(0, 0, wd)}
		if err := tx.DayMenu.Create(ctx, menu); err != nil {
			return nil, fmt.Errorf("创建 %s 菜单失败: %w", WeekdayNames[wd], err)
		}
		res.days++

		position := 0
		namesInDay := make(map[model.Course]map[string]bool)

		for _, r := range ranges {
			cat := categories[r.Course]
			if namesInDay[r.Course] == nil {
				namesInDay[r.Course] = make(map[string]bool)
			}

			for row := r.StartRow; row <= r.EndRow; row++ {
				raw := grid.Cell(col, row)
				if strings.TrimSpace(raw) == "" {
					continue
				}
				rowsSeen[row] = true

				for _, m := range ParseCell(raw) {
					if m.Name == "" {
						res.warn("%s %s%d: 无法识别菜名 %q", WeekdayNames[wd], columnName(col), row, m.Raw)
						s.logger.Warn("菜名为空，已跳过",
							zap.Int("row", row), zap.String("column", columnName(col)), zap.String("dish", m.Raw))
						continue
					}
					key := strings.ToLower(m.Name)
					if namesInDay[r.Course][key] {
						res.warn("%s %s%d: 同一天重复的菜品 %q 已跳过", WeekdayNames[wd], columnName(col), row, m.Name)
						continue
					}

					excelRow := row
					dish := &model.Dish{
						Name:        m.Name,
						Description: m.Description,
						CategoryID:  cat.CategoryID,
						IsFasting:   m.IsFasting,
						ExcelRow:    &excelRow,
					}
					if r.Course == model.CourseMainCourses {
						dish.IsCompleteDish = m.IsComplete || completeNames[key]
					}

					err := tx.Transaction(ctx, func(sp *repository.Repository) error {
						if err := sp.Dish.Create(ctx, dish); err != nil {
							return err
						}
						return attachDish(ctx, sp, menu, dish, cat, r.Course, position)
					})
					if err != nil {
						res.warn("%s %s%d: 菜品 %q 保存失败", WeekdayNames[wd], columnName(col), row, m.Name)
						s.logger.Warn("菜品保存失败，已跳过",
							zap.Int("row", row), zap.String("column", columnName(col)),
							zap.String("dish", m.Name), zap.Error(err))
						continue
					}

					namesInDay[r.Course][key] = true
					position++
					res.dishes++
				}
			}
		}
	}

	res.rows = len(rowsSeen)
	return res, nil
}

// attachDish 将菜品挂到日菜单栏目，分类必须与栏目一致
func attachDish(
	ctx context.Context,
	repo *repository.Repository,
	menu *model.DayMenu,
	dish *model.Dish,
	cat *model.FoodCategory,
	course model.Course,
	position int,
) error {
	if dish.CategoryID != cat.CategoryID || cat.Name != course.CategoryName() {
		return ErrDishCourseMismatch
	}
	return repo.DayMenu.AttachDish(ctx, &model.DayMenuDish{
		DayMenuID: menu.DayMenuID,
		DishID:    dish.DishID,
		Course:    course,
		Position:  position,
	})
}

// completeMainNames 现存被标记为完整菜品的主菜名（小写），新导入的同名主菜继承该标记
func (s *menuImportService) completeMainNames(
	ctx context.Context,
	tx *repository.Repository,
	mains *model.FoodCategory,
) (map[string]bool, error) {
	names := make(map[string]bool)
	if mains == nil {
		return names, nil
	}
	list, err := tx.Dish.CompleteNames(ctx, mains.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("查询完整菜品失败: %w", err)
	}
	for _, n := range list {
		names[strings.ToLower(n)] = true
	}
	return names, nil
}

// saveUpload 保存原始文件供统计回写，并只保留最近 keep_uploads 份
func (s *menuImportService) saveUpload(
	ctx context.Context,
	tx *repository.Repository,
	req *ImportMenuRequest,
	content []byte,
	layout MenuLayout,
	weekStart time.Time,
	resp *dto.ImportMenuResponse,
) error {
	warnings, err := json.Marshal(resp.Warnings)
	if err != nil {
		return err
	}

	upload := &model.MenuUpload{
		Filename:  req.Filename,
		WeekStart: weekStart,
		Layout:    string(layout),
		Content:   content,
		DishCount: resp.DishesCreated,
		Warnings:  datatypes.JSON(warnings),
	}
	if req.UploadedBy != "" {
		upload.UploadedBy = &req.UploadedBy
	}
	if err := tx.MenuUpload.Create(ctx, upload); err != nil {
		return fmt.Errorf("保存上传记录失败: %w", err)
	}

	removed, err := tx.MenuUpload.KeepLatest(ctx, s.cfg.KeepUploads)
	if err != nil {
		return fmt.Errorf("清理旧上传记录失败: %w", err)
	}
	if removed > 0 {
		s.logger.Info("已清理旧上传文件", zap.Int64("removed", removed))
	}
	return nil
}
