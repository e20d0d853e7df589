package service

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/zefirkoooo/food-calendar/backend/internal/model"
)

// ── 表格结构错误 ──

var (
	ErrMenuFileInvalid      = errors.New("无法读取菜单文件，请上传 .xlsx 格式的表格")
	ErrMenuEmptySheet       = errors.New("菜单表格为空")
	ErrMenuNoWeekdayColumns = errors.New("未在表头中找到任何星期列")
	ErrMenuNoCategories     = errors.New("未在 A 列中找到任何菜品分类")
	ErrMenuUnknownLayout    = errors.New("未知的菜单表格布局")
)

// MenuLayout 菜单表格布局
type MenuLayout string

const (
	// LayoutFixed 分类在 A 列（第 3 行起），星期固定在第 2 行 B/D/F/H/J 列
	LayoutFixed MenuLayout = "fixed"
	// LayoutFlexible 在前若干行中按星期名称查找表头行
	LayoutFlexible MenuLayout = "flexible"
)

// ParseLayout 解析布局名称，空字符串返回 fallback
func ParseLayout(s string, fallback MenuLayout) (MenuLayout, error) {
	switch MenuLayout(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return fallback, nil
	case LayoutFixed:
		return LayoutFixed, nil
	case LayoutFlexible:
		return LayoutFlexible, nil
	}
	return "", ErrMenuUnknownLayout
}

const (
	categoryColumn       = 1
	fixedHeaderRow       = 2
	fixedDataStartRow    = 3
	flexibleHeaderSearch = 10
)

// fixedDayColumns 固定布局下周一至周五所在列（B/D/F/H/J），统计数写入右侧相邻列
var fixedDayColumns = [5]int{2, 4, 6, 8, 10}

// WeekdayNames 星期名称（0=周一）
var WeekdayNames = [7]string{"Понедельник", "Вторник", "Среда", "Четверг", "Пятница", "Суббота", "Воскресенье"}

// ────────────────────── SheetGrid ──────────────────────

// SheetGrid 工作表的单元格文本矩阵，行列均从 1 开始
type SheetGrid struct {
	Name string
	rows [][]string
}

// NewSheetGrid 由行数据构造 SheetGrid
func NewSheetGrid(name string, rows [][]string) *SheetGrid {
	return &SheetGrid{Name: name, rows: rows}
}

// LoadSheet 读取工作簿的活动工作表
// 合并单元格仅左上角有值，其余位置为空字符串
func LoadSheet(r io.Reader) (*SheetGrid, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMenuFileInvalid, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMenuFileInvalid, err)
	}
	if len(rows) == 0 {
		return nil, ErrMenuEmptySheet
	}
	return NewSheetGrid(sheet, rows), nil
}

// Cell 返回 (col,row) 的原始文本，越界返回空字符串
func (g *SheetGrid) Cell(col, row int) string {
	if row < 1 || row > len(g.rows) {
		return ""
	}
	r := g.rows[row-1]
	if col < 1 || col > len(r) {
		return ""
	}
	return r[col-1]
}

// MaxRow 最后一行行号
func (g *SheetGrid) MaxRow() int {
	return len(g.rows)
}

// MaxCol 最宽一行的列数
func (g *SheetGrid) MaxCol() int {
	widest := 0
	for _, r := range g.rows {
		if len(r) > widest {
			widest = len(r)
		}
	}
	return widest
}

// ────────────────────── Category Locator ──────────────────────

// CategoryKeyword 分类关键字 → 栏目
type CategoryKeyword struct {
	Pattern string
	Course  model.Course
}

// CategoryKeywords 分类关键字表：按顺序匹配，首个命中者生效；规则为小写后子串包含
var CategoryKeywords = []CategoryKeyword{
	{"горячие блюда", model.CourseMainCourses},
	{"горячее", model.CourseMainCourses},
	{"вторые блюда", model.CourseMainCourses},
	{"салаты", model.CourseSalads},
	{"салат", model.CourseSalads},
	{"супы", model.CourseSoups},
	{"первые блюда", model.CourseSoups},
	{"суп", model.CourseSoups},
	{"гарниры", model.CourseSides},
	{"гарнир", model.CourseSides},
	{"выпечка", model.CourseBakery},
	{"выпеч", model.CourseBakery},
}

// MatchCategory 按关键字表匹配分类标签
func MatchCategory(label string) (model.Course, bool) {
	text := strings.ToLower(strings.TrimSpace(label))
	if text == "" {
		return "", false
	}
	for _, kw := range CategoryKeywords {
		if strings.Contains(text, kw.Pattern) {
			return kw.Course, true
		}
	}
	return "", false
}

// CategoryRange 分类覆盖的行区间（闭区间）
type CategoryRange struct {
	Course   model.Course
	Label    string
	StartRow int
	EndRow   int
}

// LocateCategories 自上而下扫描 col 列，命中关键字即结束上一区间并开启新区间
// 空白单元格（合并单元格）归入当前区间；首个分类之前的行不属于任何区间
// 同一栏目重复出现时保留为多个区间；unknown 返回未识别的非空标签
func LocateCategories(g *SheetGrid, col, startRow, endRow int) (ranges []CategoryRange, unknown []string) {
	var open *CategoryRange
	for row := startRow; row <= endRow; row++ {
		label := strings.TrimSpace(g.Cell(col, row))
		if label == "" {
			continue
		}
		course, ok := MatchCategory(label)
		if !ok {
			unknown = append(unknown, fmt.Sprintf("第 %d 行: %s", row, label))
			continue
		}
		if open != nil {
			open.EndRow = row - 1
			ranges = append(ranges, *open)
		}
		open = &CategoryRange{Course: course, Label: label, StartRow: row}
	}
	if open != nil {
		open.EndRow = endRow
		ranges = append(ranges, *open)
	}
	return ranges, unknown
}

// ────────────────────── Day-Column Mapper ──────────────────────

// WeekdayKeyword 星期关键字 → 星期序号
// Exact 为 true 时要求整个标签等于 Pattern（用于缩写）
type WeekdayKeyword struct {
	Pattern string
	Weekday int
	Exact   bool
}

// WeekdayKeywords 星期关键字表，词干匹配以容忍拼写错误（如 "пятниица"）
var WeekdayKeywords = []WeekdayKeyword{
	{Pattern: "понед", Weekday: 0},
	{Pattern: "вторн", Weekday: 1},
	{Pattern: "сред", Weekday: 2},
	{Pattern: "четв", Weekday: 3},
	{Pattern: "пятн", Weekday: 4},
	{Pattern: "monday", Weekday: 0},
	{Pattern: "tuesday", Weekday: 1},
	{Pattern: "wednesday", Weekday: 2},
	{Pattern: "thursday", Weekday: 3},
	{Pattern: "friday", Weekday: 4},
	{Pattern: "пн", Weekday: 0, Exact: true},
	{Pattern: "вт", Weekday: 1, Exact: true},
	{Pattern: "ср", Weekday: 2, Exact: true},
	{Pattern: "чт", Weekday: 3, Exact: true},
	{Pattern: "пт", Weekday: 4, Exact: true},
}

// MatchWeekday 按关键字表匹配星期标签
func MatchWeekday(label string) (int, bool) {
	text := strings.ToLower(strings.TrimSpace(label))
	text = strings.Trim(text, " .,:;")
	if text == "" {
		return 0, false
	}
	for _, kw := range WeekdayKeywords {
		if kw.Exact {
			if text == kw.Pattern {
				return kw.Weekday, true
			}
			continue
		}
		if strings.Contains(text, kw.Pattern) {
			return kw.Weekday, true
		}
	}
	return 0, false
}

// DayColumns 星期 → 列号映射结果
type DayColumns struct {
	Columns      map[int]int // 0=周一 … 4=周五 → 列号（从 1 开始）
	HeaderRow    int
	DataStartRow int
	Missing      []int
	Warnings     []string
}

// MapDayColumns 根据布局确定周一至周五对应的列
// 缺失的星期仅记录，全部缺失时返回 ErrMenuNoWeekdayColumns
func MapDayColumns(g *SheetGrid, layout MenuLayout) (*DayColumns, error) {
	switch layout {
	case LayoutFixed:
		return mapFixedColumns(g), nil
	case LayoutFlexible:
		return mapFlexibleColumns(g)
	}
	return nil, ErrMenuUnknownLayout
}

func mapFixedColumns(g *SheetGrid) *DayColumns {
	dc := &DayColumns{
		Columns:      make(map[int]int, 5),
		HeaderRow:    fixedHeaderRow,
		DataStartRow: fixedDataStartRow,
	}
	for wd, col := range fixedDayColumns {
		dc.Columns[wd] = col
		if strings.TrimSpace(g.Cell(col, fixedHeaderRow)) == "" {
			dc.Warnings = append(dc.Warnings,
				fmt.Sprintf("%s: 第 %d 行 %s 列表头为空", WeekdayNames[wd], fixedHeaderRow, columnName(col)))
		}
	}
	return dc
}

func mapFlexibleColumns(g *SheetGrid) (*DayColumns, error) {
	last := g.MaxRow()
	if last > flexibleHeaderSearch {
		last = flexibleHeaderSearch
	}
	// 表头只能出现在首个分类标签之上，菜品文本中的星期词干（如 "Средиземноморский"）不参与匹配
	for row := 1; row <= last; row++ {
		if _, ok := MatchCategory(g.Cell(categoryColumn, row)); ok {
			last = row - 1
			break
		}
	}

	// 优先检查第 2 行，再依次检查其余行
	var candidates []int
	if fixedHeaderRow <= last {
		candidates = append(candidates, fixedHeaderRow)
	}
	for row := 1; row <= last; row++ {
		if row != fixedHeaderRow {
			candidates = append(candidates, row)
		}
	}

	for _, row := range candidates {
		cols := make(map[int]int, 5)
		for col := categoryColumn + 1; col <= g.MaxCol(); col++ {
			wd, ok := MatchWeekday(g.Cell(col, row))
			if !ok || wd > 4 {
				continue
			}
			if _, seen := cols[wd]; !seen {
				cols[wd] = col
			}
		}
		if len(cols) == 0 {
			continue
		}

		dc := &DayColumns{Columns: cols, HeaderRow: row, DataStartRow: row + 1}
		for wd := 0; wd < 5; wd++ {
			if _, ok := cols[wd]; !ok {
				dc.Missing = append(dc.Missing, wd)
				dc.Warnings = append(dc.Warnings, fmt.Sprintf("%s: 未找到对应列", WeekdayNames[wd]))
			}
		}
		return dc, nil
	}
	return nil, ErrMenuNoWeekdayColumns
}

// columnName 列号转 Excel 列名（1 → A）
func columnName(col int) string {
	name, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return fmt.Sprintf("#%d", col)
	}
	return name
}
