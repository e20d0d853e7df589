package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zefirkoooo/food-calendar/backend/config"
	"github.com/zefirkoooo/food-calendar/backend/internal/model"
	"github.com/zefirkoooo/food-calendar/backend/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoUpload     = errors.New("该周没有可回写的菜单文件")
	ErrExportNoMenu       = errors.New("该周暂无菜单")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// 导出周
const (
	ExportWeekCurrent = "current"
	ExportWeekNext    = "next"
)

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置下载响应头
type ExportService interface {
	// ExportSelectionCounts 将选餐人数回写到原始菜单文件各菜品所在行的相邻列
	ExportSelectionCounts(ctx context.Context, week string) (*bytes.Buffer, string, error)
	// ExportSelections 导出全部选餐明细
	ExportSelections(ctx context.Context) (*bytes.Buffer, string, error)
	// ExportSummary 导出某周菜品汇总与个人选餐
	ExportSummary(ctx context.Context, week string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	loc    *time.Location
	now    Clock
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, cfg config.MenuConfig, now Clock, logger *zap.Logger) ExportService {
	loc, err := cfg.Location()
	if err != nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &exportService{repo: repo, loc: loc, now: now, logger: logger}
}

func (s *exportService) weekStart(week string) time.Time {
	w := NewWeekWindow(s.now(), s.loc)
	if week == ExportWeekCurrent {
		return w.CurrentWeekStart
	}
	return w.NextWeekStart
}

// ═══════════════════════════════════════════════════════════
// ExportSelectionCounts — 选餐人数回写
// ═══════════════════════════════════════════════════════════
//
// 以该周最近一次上传的文件为模板，对每个工作日：
//   - 菜品列右侧相邻列写入该行菜品被选择的次数
//   - 不就餐的选餐不计数
//   - 同一单元格内多道菜品的次数合并到同一行

func (s *exportService) ExportSelectionCounts(ctx context.Context, week string) (*bytes.Buffer, string, error) {
	start := s.weekStart(week)

	upload, err := s.repo.MenuUpload.GetLatestForWeek(ctx, start)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrExportNoUpload
		}
		s.logger.Error("查询上传记录失败", zap.Error(err))
		return nil, "", err
	}

	menus, err := s.repo.DayMenu.ListByDateRange(ctx, start, start.AddDate(0, 0, 4))
	if err != nil {
		s.logger.Error("查询周菜单失败", zap.Error(err))
		return nil, "", err
	}
	if len(menus) == 0 {
		return nil, "", ErrExportNoMenu
	}

	counts, err := s.countByRow(ctx, menus)
	if err != nil {
		return nil, "", err
	}

	grid, err := LoadSheet(bytes.NewReader(upload.Content))
	if err != nil {
		s.logger.Error("读取已保存的菜单文件失败", zap.String("upload_id", upload.UploadID), zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	layout, err := ParseLayout(upload.Layout, LayoutFixed)
	if err != nil {
		layout = LayoutFixed
	}
	days, err := MapDayColumns(grid, layout)
	if err != nil {
		return nil, "", ErrExportGenerateFail
	}

	f, err := excelize.OpenReader(bytes.NewReader(upload.Content))
	if err != nil {
		return nil, "", ErrExportGenerateFail
	}
	defer f.Close()
	sheet := grid.Name

	for wd, rows := range counts {
		col, ok := days.Columns[wd]
		if !ok {
			continue
		}
		countCol := columnName(col + 1)
		header := cell(countCol, days.HeaderRow)
		if v, _ := f.GetCellValue(sheet, header); strings.TrimSpace(v) == "" {
			f.SetCellValue(sheet, header, "Кол-во")
		}
		for row, n := range rows {
			if err := f.SetCellValue(sheet, cell(countCol, row), n); err != nil {
				s.logger.Warn("写入选餐人数失败", zap.Int("row", row), zap.String("column", countCol), zap.Error(err))
			}
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("menu_with_selections_%s.xlsx", start.Format("20060102"))
	return buf, filename, nil
}

// countByRow 统计 星期 → Excel 行号 → 选择次数
func (s *exportService) countByRow(ctx context.Context, menus []model.DayMenu) (map[int]map[int]int, error) {
	ids := make([]string, 0, len(menus))
	for _, m := range menus {
		ids = append(ids, m.DayMenuID)
	}
	sels, err := s.repo.Selection.ListByDayMenus(ctx, ids)
	if err != nil {
		s.logger.Error("查询选餐失败", zap.Error(err))
		return nil, err
	}

	byID := make(map[string]*model.DayMenu, len(menus))
	for i := range menus {
		byID[menus[i].DayMenuID] = &menus[i]
	}

	counts := make(map[int]map[int]int)
	for i := range sels {
		sel := &sels[i]
		menu, ok := byID[sel.DayMenuID]
		if !ok || sel.NotEating {
			continue
		}
		dishes := menuDishIndex(menu)
		wd := menu.Weekday()
		for _, course := range model.Courses {
			id := *sel.DishRef(course)
			if id == nil {
				continue
			}
			dish, ok := dishes[*id]
			if !ok || dish.ExcelRow == nil {
				continue
			}
			if counts[wd] == nil {
				counts[wd] = make(map[int]int)
			}
			counts[wd][*dish.ExcelRow]++
		}
	}
	return counts, nil
}

// ═══════════════════════════════════════════════════════════
// ExportSelections — 选餐明细
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportSelections(ctx context.Context) (*bytes.Buffer, string, error) {
	sels, err := s.repo.Selection.ListAll(ctx)
	if err != nil {
		s.logger.Error("查询选餐失败", zap.Error(err))
		return nil, "", err
	}
	names, err := s.dishNames(ctx, sels)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Выбор"
	idx, _ := f.NewSheet(sheet)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headers := []string{"Сотрудник", "Дата", "День недели"}
	for _, c := range model.Courses {
		headers = append(headers, c.CategoryName())
	}
	headers = append(headers, "Не ест")
	s.writeHeader(f, sheet, headers)

	row := 2
	for i := range sels {
		sel := &sels[i]
		username, date, weekday := "", "", ""
		if sel.User != nil {
			username = sel.User.Username
		}
		if sel.DayMenu != nil {
			date = dateKey(sel.DayMenu.Date)
			weekday = weekdayName(sel.DayMenu)
		}
		values := []interface{}{username, date, weekday}
		for _, c := range model.Courses {
			values = append(values, names[deref(*sel.DishRef(c))])
		}
		notEating := ""
		if sel.NotEating {
			notEating = "Да"
		}
		values = append(values, notEating)

		for col, v := range values {
			f.SetCellValue(sheet, cell(columnName(col+1), row), v)
		}
		row++
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	filename := fmt.Sprintf("selections_%s.xlsx", s.now().In(s.loc).Format("20060102"))
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// ExportSummary — 菜品汇总
// ═══════════════════════════════════════════════════════════
//
//   - Sheet "Итого"：分类 / 菜品 / 次数，按次数降序
//   - Sheet "По сотрудникам"：每人每天所选菜品

func (s *exportService) ExportSummary(ctx context.Context, week string) (*bytes.Buffer, string, error) {
	start := s.weekStart(week)
	menus, err := s.repo.DayMenu.ListByDateRange(ctx, start, start.AddDate(0, 0, 4))
	if err != nil {
		s.logger.Error("查询周菜单失败", zap.Error(err))
		return nil, "", err
	}
	if len(menus) == 0 {
		return nil, "", ErrExportNoMenu
	}

	ids := make([]string, 0, len(menus))
	byID := make(map[string]*model.DayMenu, len(menus))
	for i := range menus {
		ids = append(ids, menus[i].DayMenuID)
		byID[menus[i].DayMenuID] = &menus[i]
	}
	sels, err := s.repo.Selection.ListByDayMenus(ctx, ids)
	if err != nil {
		s.logger.Error("查询选餐失败", zap.Error(err))
		return nil, "", err
	}

	type total struct {
		category string
		name     string
		count    int
	}
	totals := make(map[string]*total)
	type personRow struct {
		username string
		date     string
		weekday  string
		dishes   []string
	}
	var people []personRow

	for i := range sels {
		sel := &sels[i]
		menu := byID[sel.DayMenuID]
		if menu == nil {
			continue
		}
		dishes := menuDishIndex(menu)
		pr := personRow{date: dateKey(menu.Date), weekday: weekdayName(menu)}
		if sel.User != nil {
			pr.username = sel.User.Username
		}
		if sel.NotEating {
			pr.dishes = []string{"Не ест"}
			people = append(people, pr)
			continue
		}
		for _, c := range model.Courses {
			id := *sel.DishRef(c)
			if id == nil {
				continue
			}
			d, ok := dishes[*id]
			if !ok {
				continue
			}
			key := c.CategoryName() + "|" + strings.ToLower(d.Name)
			if totals[key] == nil {
				totals[key] = &total{category: c.CategoryName(), name: d.Name}
			}
			totals[key].count++
			pr.dishes = append(pr.dishes, d.Name)
		}
		people = append(people, pr)
	}

	sorted := make([]*total, 0, len(totals))
	for _, t := range totals {
		sorted = append(sorted, t)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].count != sorted[j].count {
			return sorted[i].count > sorted[j].count
		}
		return sorted[i].name < sorted[j].name
	})
	sort.SliceStable(people, func(i, j int) bool {
		if people[i].username != people[j].username {
			return people[i].username < people[j].username
		}
		return people[i].date < people[j].date
	})

	f := excelize.NewFile()
	defer f.Close()

	totalSheet := "Итого"
	idx, _ := f.NewSheet(totalSheet)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")
	s.writeHeader(f, totalSheet, []string{"Категория", "Блюдо", "Количество"})
	for i, t := range sorted {
		row := i + 2
		f.SetCellValue(totalSheet, cell("A", row), t.category)
		f.SetCellValue(totalSheet, cell("B", row), t.name)
		f.SetCellValue(totalSheet, cell("C", row), t.count)
	}

	peopleSheet := "По сотрудникам"
	f.NewSheet(peopleSheet)
	s.writeHeader(f, peopleSheet, []string{"Сотрудник", "Дата", "День недели", "Блюда"})
	for i, p := range people {
		row := i + 2
		f.SetCellValue(peopleSheet, cell("A", row), p.username)
		f.SetCellValue(peopleSheet, cell("B", row), p.date)
		f.SetCellValue(peopleSheet, cell("C", row), p.weekday)
		f.SetCellValue(peopleSheet, cell("D", row), strings.Join(p.dishes, ", "))
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	filename := fmt.Sprintf("summary_%s.xlsx", start.Format("20060102"))
	return buf, filename, nil
}

// ── 辅助函数 ──

func (s *exportService) writeHeader(f *excelize.File, sheet string, headers []string) {
	style, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	for i, h := range headers {
		col := columnName(i + 1)
		f.SetCellValue(sheet, cell(col, 1), h)
		f.SetColWidth(sheet, col, col, 20)
	}
	f.SetCellStyle(sheet, "A1", cell(columnName(len(headers)), 1), style)
}

// dishNames 查询选餐中引用的菜名
func (s *exportService) dishNames(ctx context.Context, sels []model.UserSelection) (map[string]string, error) {
	seen := make(map[string]bool)
	var ids []string
	for i := range sels {
		for _, c := range model.Courses {
			if id := *sels[i].DishRef(c); id != nil && !seen[*id] {
				seen[*id] = true
				ids = append(ids, *id)
			}
		}
	}
	dishes, err := s.repo.Dish.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("查询菜品失败", zap.Error(err))
		return nil, err
	}
	names := make(map[string]string, len(dishes))
	for _, d := range dishes {
		names[d.DishID] = d.Name
	}
	return names, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
