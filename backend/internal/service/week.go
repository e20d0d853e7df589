package service

import (
	"time"

	"github.com/zefirkoooo/food-calendar/backend/internal/model"
)

const dateLayout = "2006-01-02"

// Clock 当前时间来源，测试中可替换
type Clock func() time.Time

// WeekWindow 本周与下周的工作日区间（周一至周五）
type WeekWindow struct {
	Today            time.Time
	CurrentWeekStart time.Time
	NextWeekStart    time.Time
}

// CurrentWeekEnd 本周五
func (w WeekWindow) CurrentWeekEnd() time.Time { return w.CurrentWeekStart.AddDate(0, 0, 4) }

// NextWeekEnd 下周五
func (w WeekWindow) NextWeekEnd() time.Time { return w.NextWeekStart.AddDate(0, 0, 4) }

// NewWeekWindow 以 loc 时区的"今天"计算周区间
func NewWeekWindow(now time.Time, loc *time.Location) WeekWindow {
	today := StartOfDay(now, loc)
	current := MondayOf(today)
	return WeekWindow{
		Today:            today,
		CurrentWeekStart: current,
		NextWeekStart:    current.AddDate(0, 0, 7),
	}
}

// StartOfDay 返回 t 在 loc 时区当天零点
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// MondayOf 返回 t 所在周的周一零点（保留 t 的时区）
func MondayOf(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// dateKey 日期键（按 t 自身时区取日期）
func dateKey(t time.Time) string {
	return t.Format(dateLayout)
}

// weekdayName 星期名称
func weekdayName(m *model.DayMenu) string {
	return WeekdayNames[m.Weekday()]
}
