package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/zefirkoooo/food-calendar/backend/config"
	"github.com/zefirkoooo/food-calendar/backend/internal/model"
)

// 2026-10-14 周三：本周从 10-12 开始，下周从 10-19 开始
var testNow = time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)

func day(month time.Month, d int) time.Time {
	return time.Date(2026, month, d, 0, 0, 0, 0, time.UTC)
}

type testEnv struct {
	store *memStore
	cache *memCache
	cfg   config.MenuConfig
	now   time.Time
}

func newTestEnv() *testEnv {
	return &testEnv{
		store: newMemStore(),
		cache: newMemCache(),
		cfg: config.MenuConfig{
			Timezone:         "UTC",
			DefaultLayout:    "fixed",
			KeepUploads:      8,
			CalendarCacheTTL: time.Minute,
		},
		now: testNow,
	}
}

func (e *testEnv) clock() time.Time { return e.now }

func (e *testEnv) importService() MenuImportService {
	return NewMenuImportService(e.store.repository(), e.cache, e.cfg, e.clock, zap.NewNop())
}

func (e *testEnv) menuService() MenuService {
	return NewMenuService(e.store.repository(), e.cache, e.cfg, e.clock, zap.NewNop())
}

func (e *testEnv) selectionService() SelectionService {
	return NewSelectionService(e.store.repository(), e.cache, zap.NewNop())
}

func (e *testEnv) exportService() ExportService {
	return NewExportService(e.store.repository(), e.cfg, e.clock, zap.NewNop())
}

func (e *testEnv) addUser(t *testing.T, username, role string) *model.User {
	t.Helper()
	u := &model.User{Username: username, PasswordHash: "x", Role: role}
	if err := e.store.repository().User.Create(context.Background(), u); err != nil {
		t.Fatalf("创建用户失败: %v", err)
	}
	return u
}

// importCells 以 cells 构造工作簿并导入
func (e *testEnv) importCells(t *testing.T, cells map[string]string, layout string) {
	t.Helper()
	_, err := e.importService().ImportMenu(context.Background(), &ImportMenuRequest{
		Reader:   bytes.NewReader(buildWorkbook(t, cells)),
		Filename: "menu.xlsx",
		Layout:   layout,
	})
	if err != nil {
		t.Fatalf("导入菜单失败: %v", err)
	}
}

// menuOn 读取某日的日菜单（含菜品）
func (e *testEnv) menuOn(t *testing.T, date time.Time) *model.DayMenu {
	t.Helper()
	menu, err := e.store.repository().DayMenu.GetByDate(context.Background(), date)
	if err != nil {
		t.Fatalf("%s 没有日菜单: %v", dateKey(date), err)
	}
	return menu
}

func dishNames(dishes []model.Dish) []string {
	out := make([]string, 0, len(dishes))
	for _, d := range dishes {
		out = append(out, d.Name)
	}
	return out
}

func dishByName(t *testing.T, menu *model.DayMenu, course model.Course, name string) *model.Dish {
	t.Helper()
	for _, d := range menu.DishesFor(course) {
		if d.Name == name {
			dish := d
			return &dish
		}
	}
	t.Fatalf("%s 的 %s 中没有 %q", dateKey(menu.Date), course, name)
	return nil
}

// buildWorkbook 在内存中生成工作簿
func buildWorkbook(t *testing.T, cells map[string]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for ref, v := range cells {
		if err := f.SetCellValue("Sheet1", ref, v); err != nil {
			t.Fatalf("写入单元格 %s 失败: %v", ref, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("生成工作簿失败: %v", err)
	}
	return buf.Bytes()
}

// fixedMenuCells 固定布局的一周菜单
func fixedMenuCells() map[string]string {
	return map[string]string{
		"B2": "Понедельник", "D2": "Вторник", "F2": "Среда", "H2": "Четверг", "J2": "Пятница",

		"A3": "Салаты", "B3": "Оливье", "D3": "Винегрет (постный)",
		"A4": "Супы", "B4": "Борщ",
		"A5": "Горячее", "B5": "Плов (с курицей)\nГуляш", "D5": "Курица с гарниром",
		"A6": "Гарниры", "B6": "Гречка",
		"A7": "Выпечка", "B7": "Пирожок с капустой",
	}
}
