package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/zefirkoooo/food-calendar/backend/internal/dto"
	"github.com/zefirkoooo/food-calendar/backend/internal/model"
)

// ── 测试辅助 ──

// exportFixture 导入一周菜单并写入若干选餐：
//   - anna:  周一 Оливье + Плов；周二 Винегрет
//   - boris: 周一 Гуляш
//   - carl:  周一不就餐
func exportFixture(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv()
	ctx := context.Background()
	env.importCells(t, fixedMenuCells(), "")

	anna := env.addUser(t, "anna", model.RoleEmployee)
	boris := env.addUser(t, "boris", model.RoleEmployee)
	carl := env.addUser(t, "carl", model.RoleEmployee)

	monday := env.menuOn(t, day(10, 19))
	tuesday := env.menuOn(t, day(10, 20))
	olivier := dishByName(t, monday, model.CourseSalads, "Оливье")
	plov := dishByName(t, monday, model.CourseMainCourses, "Плов")
	goulash := dishByName(t, monday, model.CourseMainCourses, "Гуляш")
	vinegret := dishByName(t, tuesday, model.CourseSalads, "Винегрет")

	sel := env.selectionService()
	saves := []struct {
		user string
		day  string
		req  dto.SaveSelectionRequest
	}{
		{anna.UserID, monday.DayMenuID, dto.SaveSelectionRequest{SaladID: &olivier.DishID, MainID: &plov.DishID}},
		{anna.UserID, tuesday.DayMenuID, dto.SaveSelectionRequest{SaladID: &vinegret.DishID}},
		{boris.UserID, monday.DayMenuID, dto.SaveSelectionRequest{MainID: &goulash.DishID}},
		{carl.UserID, monday.DayMenuID, dto.SaveSelectionRequest{NotEating: true}},
	}
	for _, s := range saves {
		req := s.req
		if _, err := sel.SaveSelection(ctx, s.user, s.day, &req); err != nil {
			t.Fatalf("保存选餐失败: %v", err)
		}
	}
	return env
}

func openWorkbook(t *testing.T, buf *bytes.Buffer) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("导出文件无法打开: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func cellValue(t *testing.T, f *excelize.File, sheet, ref string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, ref)
	if err != nil {
		t.Fatalf("读取 %s!%s 失败: %v", sheet, ref, err)
	}
	return v
}

// ── ExportSelectionCounts 测试 ──

func TestExportSelectionCounts(t *testing.T) {
	env := exportFixture(t)

	buf, filename, err := env.exportService().ExportSelectionCounts(context.Background(), ExportWeekNext)
	if err != nil {
		t.Fatalf("ExportSelectionCounts 失败: %v", err)
	}
	if filename != "menu_with_selections_20261019.xlsx" {
		t.Errorf("文件名错误: %s", filename)
	}

	f := openWorkbook(t, buf)
	checks := map[string]string{
		"C2": "Кол-во",
		"C3": "1", // Оливье
		"C4": "",  // Борщ 无人选
		"C5": "2", // Плов + Гуляш 同一单元格合并计数，不就餐不计
		"E3": "1", // 周二 Винегрет
		"B5": "Плов (с курицей)\nГуляш",
	}
	for ref, want := range checks {
		if got := cellValue(t, f, "Sheet1", ref); got != want {
			t.Errorf("%s 期望 %q，实际: %q", ref, want, got)
		}
	}
}

func TestExportSelectionCounts_NoUpload(t *testing.T) {
	env := newTestEnv()
	_, _, err := env.exportService().ExportSelectionCounts(context.Background(), ExportWeekCurrent)
	if !errors.Is(err, ErrExportNoUpload) {
		t.Errorf("期望 ErrExportNoUpload，实际: %v", err)
	}
}

func TestExportSelectionCounts_AfterRollover(t *testing.T) {
	env := exportFixture(t)

	// 一周后：原"下周"成为本周，上传记录按周起始日期查找
	env.now = testNow.AddDate(0, 0, 7)
	buf, _, err := env.exportService().ExportSelectionCounts(context.Background(), ExportWeekCurrent)
	if err != nil {
		t.Fatalf("ExportSelectionCounts 失败: %v", err)
	}
	f := openWorkbook(t, buf)
	if got := cellValue(t, f, "Sheet1", "C5"); got != "2" {
		t.Errorf("C5 期望 2，实际: %q", got)
	}
}

// ── ExportSelections 测试 ──

func TestExportSelections(t *testing.T) {
	env := exportFixture(t)

	buf, filename, err := env.exportService().ExportSelections(context.Background())
	if err != nil {
		t.Fatalf("ExportSelections 失败: %v", err)
	}
	if !strings.HasPrefix(filename, "selections_") {
		t.Errorf("文件名错误: %s", filename)
	}

	f := openWorkbook(t, buf)
	rows, err := f.GetRows("Выбор")
	if err != nil {
		t.Fatalf("读取工作表失败: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("期望表头 + 4 行，实际: %d", len(rows))
	}
	if rows[0][0] != "Сотрудник" || rows[0][3] != "Салаты" || rows[0][8] != "Не ест" {
		t.Errorf("表头错误: %v", rows[0])
	}
	// 按日期、用户名排序：周一 anna 为第一行
	first := rows[1]
	if first[0] != "anna" || first[1] != "2026-10-19" || first[2] != "Понедельник" || first[3] != "Оливье" || first[5] != "Плов" {
		t.Errorf("第一行错误: %v", first)
	}
	carl := rows[3]
	if carl[0] != "carl" || carl[len(carl)-1] != "Да" {
		t.Errorf("不就餐行错误: %v", carl)
	}
}

// ── ExportSummary 测试 ──

func TestExportSummary(t *testing.T) {
	env := exportFixture(t)

	buf, filename, err := env.exportService().ExportSummary(context.Background(), ExportWeekNext)
	if err != nil {
		t.Fatalf("ExportSummary 失败: %v", err)
	}
	if filename != "summary_20261019.xlsx" {
		t.Errorf("文件名错误: %s", filename)
	}

	f := openWorkbook(t, buf)
	totals, _ := f.GetRows("Итого")
	// Винегрет / Гуляш / Оливье / Плов 各 1 次
	if len(totals) != 5 {
		t.Fatalf("期望表头 + 4 道菜，实际: %d", len(totals))
	}
	if totals[1][1] != "Винегрет" || totals[1][2] != "1" {
		t.Errorf("次数相同时按菜名排序，实际: %v", totals[1])
	}

	people, _ := f.GetRows("По сотрудникам")
	if len(people) != 5 {
		t.Fatalf("期望表头 + 4 行，实际: %d", len(people))
	}
	if people[1][0] != "anna" || people[1][3] != "Оливье, Плов" {
		t.Errorf("个人选餐行错误: %v", people[1])
	}
	if people[4][0] != "carl" || people[4][3] != "Не ест" {
		t.Errorf("不就餐行错误: %v", people[4])
	}
}

func TestExportSummary_NoMenu(t *testing.T) {
	env := newTestEnv()
	_, _, err := env.exportService().ExportSummary(context.Background(), ExportWeekNext)
	if !errors.Is(err, ErrExportNoMenu) {
		t.Errorf("期望 ErrExportNoMenu，实际: %v", err)
	}
}
