package service

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/zefirkoooo/food-calendar/backend/internal/dto"
	"github.com/zefirkoooo/food-calendar/backend/internal/model"
)

// ────────────────────── ImportMenu ──────────────────────

func TestImportMenu_SingleCategoryEndToEnd(t *testing.T) {
	env := newTestEnv()
	cells := map[string]string{
		"B2": "Понедельник",
		"A3": "Горячее",
		"B3": "Плов (с курицей)\nГуляш",
	}

	resp, err := env.importService().ImportMenu(context.Background(), &ImportMenuRequest{
		Reader:   bytes.NewReader(buildWorkbook(t, cells)),
		Filename: "menu.xlsx",
		Layout:   "flexible",
	})
	if err != nil {
		t.Fatalf("期望导入成功，实际: %v", err)
	}
	if resp.DishesCreated != 2 {
		t.Errorf("期望创建 2 道菜，实际: %d", resp.DishesCreated)
	}
	if resp.DaysCreated != 1 {
		t.Errorf("期望创建 1 个日菜单，实际: %d", resp.DaysCreated)
	}
	if len(resp.MissingDays) != 4 {
		t.Errorf("期望缺少 4 天，实际: %v", resp.MissingDays)
	}
	if len(env.store.dishes) != 2 {
		t.Errorf("期望库中 2 道菜，实际: %d", len(env.store.dishes))
	}

	menu := env.menuOn(t, day(10, 19))
	mains := menu.DishesFor(model.CourseMainCourses)
	if len(mains) != 2 {
		t.Fatalf("期望主菜 2 道，实际: %d", len(mains))
	}
	if mains[0].Name != "Плов" || mains[0].Description != "с курицей" {
		t.Errorf("第一道菜解析错误: %q / %q", mains[0].Name, mains[0].Description)
	}
	if mains[1].Name != "Гуляш" || mains[1].Description != "" {
		t.Errorf("第二道菜解析错误: %q / %q", mains[1].Name, mains[1].Description)
	}
	for _, d := range mains {
		if d.ExcelRow == nil || *d.ExcelRow != 3 {
			t.Errorf("%s 的 excel_row 期望 3，实际: %v", d.Name, d.ExcelRow)
		}
	}
}

func TestImportMenu_FixedLayout(t *testing.T) {
	env := newTestEnv()

	resp, err := env.importService().ImportMenu(context.Background(), &ImportMenuRequest{
		Reader:     bytes.NewReader(buildWorkbook(t, fixedMenuCells())),
		Filename:   "week.xlsx",
		UploadedBy: "admin-1",
	})
	if err != nil {
		t.Fatalf("期望导入成功，实际: %v", err)
	}

	if resp.WeekStart != "2026-10-19" {
		t.Errorf("默认应导入到下周，实际: %s", resp.WeekStart)
	}
	if resp.Layout != "fixed" {
		t.Errorf("期望使用默认布局 fixed，实际: %s", resp.Layout)
	}
	if resp.DaysCreated != 5 {
		t.Errorf("固定布局应创建 5 个日菜单，实际: %d", resp.DaysCreated)
	}
	if resp.DishesCreated != 8 {
		t.Errorf("期望创建 8 道菜，实际: %d", resp.DishesCreated)
	}
	if resp.RowsProcessed != 5 {
		t.Errorf("期望处理 5 行，实际: %d", resp.RowsProcessed)
	}
	if len(resp.Categories) != 5 {
		t.Errorf("期望识别 5 个分类，实际: %v", resp.Categories)
	}

	monday := env.menuOn(t, day(10, 19))
	if got := dishNames(monday.DishesFor(model.CourseMainCourses)); len(got) != 2 || got[0] != "Плов" || got[1] != "Гуляш" {
		t.Errorf("周一主菜错误: %v", got)
	}
	if got := dishNames(monday.DishesFor(model.CourseBakery)); len(got) != 1 || got[0] != "Пирожок с капустой" {
		t.Errorf("周一面点错误: %v", got)
	}

	tuesday := env.menuOn(t, day(10, 20))
	if !dishByName(t, tuesday, model.CourseMainCourses, "Курица с гарниром").IsCompleteDish {
		t.Error("含 \"с гарниром\" 的主菜应标记为完整菜品")
	}
	if !dishByName(t, tuesday, model.CourseSalads, "Винегрет").IsFasting {
		t.Error("含 \"постный\" 的菜品应标记为斋戒菜品")
	}

	friday := env.menuOn(t, day(10, 23))
	if len(friday.Items) != 0 {
		t.Errorf("周五没有菜品，实际: %d", len(friday.Items))
	}

	if len(env.store.uploads) != 1 {
		t.Fatalf("期望保存 1 条上传记录，实际: %d", len(env.store.uploads))
	}
	up := env.store.uploads[0]
	if dateKey(up.WeekStart) != "2026-10-19" || up.DishCount != 8 || up.UploadedBy == nil || *up.UploadedBy != "admin-1" {
		t.Errorf("上传记录错误: %+v", up)
	}

	if len(env.cache.invalidated) == 0 || env.cache.invalidated[len(env.cache.invalidated)-1] != calendarCachePrefix+"*" {
		t.Errorf("导入后应清除日历缓存，实际: %v", env.cache.invalidated)
	}
}

func TestImportMenu_ExplicitWeekStart(t *testing.T) {
	cases := []struct {
		name string
		ws   time.Time
		want string
	}{
		{name: "下周周四对齐到周一", ws: day(10, 22), want: "2026-10-19"},
		{name: "本周", ws: day(10, 15), want: "2026-10-12"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv()
			ws := tc.ws

			resp, err := env.importService().ImportMenu(context.Background(), &ImportMenuRequest{
				Reader:    bytes.NewReader(buildWorkbook(t, fixedMenuCells())),
				Filename:  "week.xlsx",
				WeekStart: &ws,
			})
			if err != nil {
				t.Fatalf("期望导入成功，实际: %v", err)
			}
			if resp.WeekStart != tc.want {
				t.Errorf("期望对齐到 %s，实际: %s", tc.want, resp.WeekStart)
			}
			env.menuOn(t, tc.ws)
		})
	}
}

func TestImportMenu_WeekStartOutsideWindowRejected(t *testing.T) {
	cases := []struct {
		name string
		ws   time.Time
	}{
		{name: "两周之后", ws: day(11, 5)},
		{name: "上周", ws: day(10, 7)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv()
			env.importCells(t, fixedMenuCells(), "")
			dishesBefore, menusBefore := len(env.store.dishes), len(env.store.menus)
			ws := tc.ws

			_, err := env.importService().ImportMenu(context.Background(), &ImportMenuRequest{
				Reader:    bytes.NewReader(buildWorkbook(t, fixedMenuCells())),
				Filename:  "far.xlsx",
				WeekStart: &ws,
			})
			if !errors.Is(err, ErrMenuWeekStartInvalid) {
				t.Fatalf("期望 ErrMenuWeekStartInvalid，实际: %v", err)
			}
			if len(env.store.dishes) != dishesBefore || len(env.store.menus) != menusBefore {
				t.Error("被拒绝的导入不应修改任何数据")
			}
			if _, err := env.store.repository().DayMenu.GetByDate(context.Background(), MondayOf(tc.ws)); err == nil {
				t.Errorf("%s 不应创建日菜单", dateKey(MondayOf(tc.ws)))
			}
		})
	}
}

func TestImportMenu_StructuralFailuresPersistNothing(t *testing.T) {
	cases := []struct {
		name   string
		cells  map[string]string
		layout string
		want   error
	}{
		{
			name:   "无星期列",
			cells:  map[string]string{"B2": "Меню", "A3": "Салаты", "B3": "Оливье"},
			layout: "flexible",
			want:   ErrMenuNoWeekdayColumns,
		},
		{
			name:   "无分类",
			cells:  map[string]string{"B2": "Понедельник", "A3": "Что-то", "B3": "Оливье"},
			layout: "fixed",
			want:   ErrMenuNoCategories,
		},
		{
			name:   "未知布局",
			cells:  fixedMenuCells(),
			layout: "smart",
			want:   ErrMenuUnknownLayout,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv()
			env.importCells(t, fixedMenuCells(), "")
			dishesBefore, menusBefore := len(env.store.dishes), len(env.store.menus)

			_, err := env.importService().ImportMenu(context.Background(), &ImportMenuRequest{
				Reader:   bytes.NewReader(buildWorkbook(t, tc.cells)),
				Filename: "bad.xlsx",
				Layout:   tc.layout,
			})
			if !errors.Is(err, tc.want) {
				t.Fatalf("期望 %v，实际: %v", tc.want, err)
			}
			if len(env.store.dishes) != dishesBefore || len(env.store.menus) != menusBefore {
				t.Error("结构性错误不应修改任何数据")
			}
			if len(env.store.uploads) != 1 {
				t.Errorf("结构性错误不应保存上传记录，实际: %d", len(env.store.uploads))
			}
		})
	}
}

func TestImportMenu_InvalidFile(t *testing.T) {
	env := newTestEnv()

	_, err := env.importService().ImportMenu(context.Background(), &ImportMenuRequest{
		Reader:   bytes.NewReader([]byte("not a workbook")),
		Filename: "menu.xlsx",
	})
	if !errors.Is(err, ErrMenuFileInvalid) {
		t.Errorf("期望 ErrMenuFileInvalid，实际: %v", err)
	}

	_, err = env.importService().ImportMenu(context.Background(), &ImportMenuRequest{
		Reader:   bytes.NewReader(nil),
		Filename: "empty.xlsx",
	})
	if !errors.Is(err, ErrMenuFileEmpty) {
		t.Errorf("期望 ErrMenuFileEmpty，实际: %v", err)
	}
}

func TestImportMenu_PerDishFailureIsWarning(t *testing.T) {
	env := newTestEnv()
	env.store.failDishNames["Гуляш"] = true

	resp, err := env.importService().ImportMenu(context.Background(), &ImportMenuRequest{
		Reader:   bytes.NewReader(buildWorkbook(t, fixedMenuCells())),
		Filename: "week.xlsx",
	})
	if err != nil {
		t.Fatalf("单道菜失败不应中止导入，实际: %v", err)
	}
	if resp.DishesCreated != 7 {
		t.Errorf("期望创建 7 道菜，实际: %d", resp.DishesCreated)
	}
	if len(resp.Warnings) != 1 {
		t.Errorf("期望 1 条警告，实际: %v", resp.Warnings)
	}

	monday := env.menuOn(t, day(10, 19))
	if got := dishNames(monday.DishesFor(model.CourseMainCourses)); len(got) != 1 || got[0] != "Плов" {
		t.Errorf("失败的菜品不应挂到菜单，实际: %v", got)
	}
}

func TestImportMenu_DuplicateNameInDaySkipped(t *testing.T) {
	env := newTestEnv()
	cells := fixedMenuCells()
	cells["B5"] = "Плов\nплов (с бараниной)"

	resp, err := env.importService().ImportMenu(context.Background(), &ImportMenuRequest{
		Reader:   bytes.NewReader(buildWorkbook(t, cells)),
		Filename: "week.xlsx",
	})
	if err != nil {
		t.Fatalf("期望导入成功，实际: %v", err)
	}
	monday := env.menuOn(t, day(10, 19))
	if got := dishNames(monday.DishesFor(model.CourseMainCourses)); len(got) != 1 {
		t.Errorf("同一天同名菜品应只保留一道，实际: %v", got)
	}
	if len(resp.Warnings) != 1 {
		t.Errorf("期望 1 条重复警告，实际: %v", resp.Warnings)
	}
}

func TestImportMenu_InheritsCompleteFlag(t *testing.T) {
	env := newTestEnv()
	env.importCells(t, fixedMenuCells(), "")

	plov := dishByName(t, env.menuOn(t, day(10, 19)), model.CourseMainCourses, "Плов")
	if _, err := env.menuService().SetCompleteDish(context.Background(), plov.DishID, true); err != nil {
		t.Fatalf("SetCompleteDish 失败: %v", err)
	}

	env.importCells(t, fixedMenuCells(), "")

	again := dishByName(t, env.menuOn(t, day(10, 19)), model.CourseMainCourses, "Плов")
	if again.DishID == plov.DishID {
		t.Fatal("重新导入应插入新的菜品行")
	}
	if !again.IsCompleteDish {
		t.Error("新导入的同名主菜应继承完整菜品标记")
	}
}

func TestImportMenu_KeepsLatestUploads(t *testing.T) {
	env := newTestEnv()
	env.cfg.KeepUploads = 2
	for i := 0; i < 3; i++ {
		env.importCells(t, fixedMenuCells(), "")
	}
	if len(env.store.uploads) != 2 {
		t.Errorf("期望只保留 2 条上传记录，实际: %d", len(env.store.uploads))
	}
}

// ────────────────────── Idempotence ──────────────────────

type menuShape map[string][]string // "星期|栏目" → 菜名

func shapeOf(t *testing.T, env *testEnv) menuShape {
	t.Helper()
	shape := make(menuShape)
	for offset := 0; offset < 5; offset++ {
		menu := env.menuOn(t, day(10, 19+offset))
		for _, c := range model.Courses {
			names := dishNames(menu.DishesFor(c))
			sort.Strings(names)
			shape[WeekdayNames[offset]+"|"+string(c)] = names
		}
	}
	return shape
}

func nextWeekDishIDs(t *testing.T, env *testEnv) map[string]bool {
	t.Helper()
	ids := make(map[string]bool)
	for offset := 0; offset < 5; offset++ {
		for _, it := range env.menuOn(t, day(10, 19+offset)).Items {
			ids[it.DishID] = true
		}
	}
	return ids
}

func TestImportMenu_IdempotentByNames(t *testing.T) {
	env := newTestEnv()

	env.importCells(t, fixedMenuCells(), "")
	first := shapeOf(t, env)

	env.importCells(t, fixedMenuCells(), "")
	second := shapeOf(t, env)

	if len(first) != len(second) {
		t.Fatalf("两次导入的菜单结构不同")
	}
	for key, names := range first {
		got := second[key]
		if len(got) != len(names) {
			t.Errorf("%s: 期望 %v，实际: %v", key, names, got)
			continue
		}
		for i := range names {
			if got[i] != names[i] {
				t.Errorf("%s: 期望 %v，实际: %v", key, names, got)
			}
		}
	}
}

func TestImportMenu_NotIdempotentOnDishIdentity(t *testing.T) {
	env := newTestEnv()

	env.importCells(t, fixedMenuCells(), "")
	first := nextWeekDishIDs(t, env)

	env.importCells(t, fixedMenuCells(), "")
	second := nextWeekDishIDs(t, env)

	for id := range second {
		if first[id] {
			t.Errorf("重新导入应创建新的菜品行，菜品 %s 被复用", id)
		}
	}
	// 第一次导入的菜品已随滚动成为本周菜单，仍被引用
	if len(env.store.dishes) != len(first)+len(second) {
		t.Errorf("期望共 %d 道菜，实际: %d", len(first)+len(second), len(env.store.dishes))
	}
}

// ────────────────────── Rollover ──────────────────────

func TestImportMenu_RolloverCarriesSelections(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	anna := env.addUser(t, "anna", model.RoleEmployee)
	boris := env.addUser(t, "boris", model.RoleEmployee)

	env.importCells(t, fixedMenuCells(), "")
	monday := env.menuOn(t, day(10, 19))
	tuesday := env.menuOn(t, day(10, 20))
	salad := dishByName(t, monday, model.CourseSalads, "Оливье")

	sel := env.selectionService()
	if _, err := sel.SaveSelection(ctx, anna.UserID, monday.DayMenuID, &dto.SaveSelectionRequest{SaladID: &salad.DishID}); err != nil {
		t.Fatalf("保存选餐失败: %v", err)
	}
	if _, err := sel.SaveSelection(ctx, boris.UserID, tuesday.DayMenuID, &dto.SaveSelectionRequest{NotEating: true}); err != nil {
		t.Fatalf("保存选餐失败: %v", err)
	}

	resp, err := env.importService().ImportMenu(ctx, &ImportMenuRequest{
		Reader:   bytes.NewReader(buildWorkbook(t, fixedMenuCells())),
		Filename: "week2.xlsx",
	})
	if err != nil {
		t.Fatalf("第二次导入失败: %v", err)
	}

	ro := resp.Rollover
	if ro == nil || !ro.Promoted {
		t.Fatalf("已有下周菜单时应执行滚动，实际: %+v", ro)
	}
	if ro.DaysCopied != 5 || ro.SelectionsCopied != 2 {
		t.Errorf("期望复制 5 天 2 条选餐，实际: %d 天 %d 条", ro.DaysCopied, ro.SelectionsCopied)
	}

	if _, ok := env.store.menus[monday.DayMenuID]; ok {
		t.Error("旧的下周日菜单应被删除")
	}

	current := env.menuOn(t, day(10, 12))
	got, err := env.store.repository().Selection.GetByUserAndDay(ctx, anna.UserID, current.DayMenuID)
	if err != nil {
		t.Fatalf("本周周一应有复制的选餐: %v", err)
	}
	if got.SaladID == nil || *got.SaladID != salad.DishID {
		t.Errorf("复制的选餐应保留沙拉 %s，实际: %v", salad.DishID, got.SaladID)
	}
	if !current.HasDish(model.CourseSalads, salad.DishID) {
		t.Error("本周周一应包含复制的沙拉")
	}

	currentTue := env.menuOn(t, day(10, 13))
	got, err = env.store.repository().Selection.GetByUserAndDay(ctx, boris.UserID, currentTue.DayMenuID)
	if err != nil || !got.NotEating {
		t.Errorf("不就餐标记应被复制，实际: %+v, %v", got, err)
	}

	// 新的下周菜单没有选餐
	newMonday := env.menuOn(t, day(10, 19))
	if sels, _ := env.store.repository().Selection.ListByDayMenu(ctx, newMonday.DayMenuID); len(sels) != 0 {
		t.Errorf("新导入的下周菜单不应有选餐，实际: %d", len(sels))
	}
}

func TestRollover_MissingDaySkipped(t *testing.T) {
	env := newTestEnv()
	env.importCells(t, map[string]string{
		"B2": "Понедельник", "D2": "Среда",
		"A3": "Супы", "B3": "Борщ", "D3": "Щи",
	}, "flexible")

	resp, err := env.importService().Rollover(context.Background())
	if err != nil {
		t.Fatalf("Rollover 失败: %v", err)
	}
	if resp.DaysCopied != 2 || len(resp.MissingDays) != 3 {
		t.Errorf("期望复制 2 天缺少 3 天，实际: %d / %v", resp.DaysCopied, resp.MissingDays)
	}
	if resp.NextWeekCleared != 2 {
		t.Errorf("期望清空下周 2 个日菜单，实际: %d", resp.NextWeekCleared)
	}
	env.menuOn(t, day(10, 12))
	env.menuOn(t, day(10, 14))
	if len(env.store.menus) != 2 {
		t.Errorf("滚动后只应保留本周 2 天，实际: %d", len(env.store.menus))
	}
}

func TestRollover_PrunesUnreferencedDishes(t *testing.T) {
	env := newTestEnv()
	env.importCells(t, fixedMenuCells(), "")

	// 两周后：原菜单已不在本周/下周窗口内
	env.now = testNow.AddDate(0, 0, 14)
	resp, err := env.importService().Rollover(context.Background())
	if err != nil {
		t.Fatalf("Rollover 失败: %v", err)
	}
	if resp.Promoted {
		t.Error("下周无菜单时不应执行复制")
	}
	if resp.DishesPruned != 8 || len(env.store.dishes) != 0 {
		t.Errorf("期望清理 8 道过期菜品，实际: %d（剩余 %d）", resp.DishesPruned, len(env.store.dishes))
	}
}
