package utils

import (
	"fmt"
	"time"
)

// time.go - утилиты для работы со временем журнала
//
// Назначение:
// Границы дня/недели/месяца и ключи периодов в часовом поясе журнала.
// Отчеты группируют сделки по календарю пользователя, а не по UTC,
// поэтому все функции принимают *time.Location (nil = UTC).
//
// Функции:
// - DayStart / DayEnd: границы дня
// - WeekStart / WeekEnd: неделя с понедельника (ISO 8601)
// - MonthStart / MonthEnd: границы месяца
// - DayKey / WeekKey / MonthKey: строковые ключи периодов
// - SettlementFriday / NextMonday: календарь еженедельного расчета

const (
	// DayLayout - формат ключа дня и недели
	DayLayout = "2006-01-02"
	// MonthLayout - формат ключа месяца
	MonthLayout = "2006-01"
)

func in(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc)
}

// ============================================================
// Границы периодов
// ============================================================

// DayStart возвращает 00:00:00 дня t в зоне loc
//
// Пример:
//
//	// t: 2024-01-15 21:30 UTC, loc: Asia/Kolkata
//	start := DayStart(t, loc)
//	// start: 2024-01-16 00:00:00 +0530
func DayStart(t time.Time, loc *time.Location) time.Time {
	t = in(t, loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DayEnd возвращает 23:59:59.999999999 дня t в зоне loc
func DayEnd(t time.Time, loc *time.Location) time.Time {
	return DayStart(t, loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// WeekStart возвращает понедельник 00:00:00 недели, содержащей t
//
// Неделя начинается с понедельника (ISO 8601): воскресенье
// относится к неделе, начавшейся шестью днями ранее.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	day := DayStart(t, loc)

	// 0=Sunday ... 6=Saturday -> ISO 1=Monday ... 7=Sunday
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return day.AddDate(0, 0, -(weekday - 1))
}

// WeekEnd возвращает воскресенье 23:59:59.999999999 недели t
func WeekEnd(t time.Time, loc *time.Location) time.Time {
	return WeekStart(t, loc).AddDate(0, 0, 7).Add(-time.Nanosecond)
}

// MonthStart возвращает 1-е число месяца 00:00:00
func MonthStart(t time.Time, loc *time.Location) time.Time {
	t = in(t, loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// MonthEnd возвращает последнюю наносекунду месяца
func MonthEnd(t time.Time, loc *time.Location) time.Time {
	return MonthStart(t, loc).AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// ============================================================
// Ключи периодов
// ============================================================

// DayKey - "2006-01-02" в зоне loc
func DayKey(t time.Time, loc *time.Location) string {
	return in(t, loc).Format(DayLayout)
}

// WeekKey - дата понедельника недели
func WeekKey(t time.Time, loc *time.Location) string {
	return WeekStart(t, loc).Format(DayLayout)
}

// MonthKey - "2006-01"
func MonthKey(t time.Time, loc *time.Location) string {
	return in(t, loc).Format(MonthLayout)
}

// ParseDay разбирает "2006-01-02" как начало дня в зоне loc
func ParseDay(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DayLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return t, nil
}

// ParseMonth разбирает "2006-01" как начало месяца в зоне loc
func ParseMonth(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(MonthLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q: %w", value, err)
	}
	return t, nil
}

// ============================================================
// Календарь расчета
// ============================================================

// SettlementFriday возвращает пятницу, за которую можно провести расчет
//
// Окно расчета - пятница, суббота и воскресенье:
//   - пятница: сегодня
//   - суббота: вчера
//   - воскресенье: позавчера
//
// В остальные дни ok=false.
func SettlementFriday(now time.Time, loc *time.Location) (friday time.Time, ok bool) {
	day := DayStart(now, loc)
	switch day.Weekday() {
	case time.Friday:
		return day, true
	case time.Saturday:
		return day.AddDate(0, 0, -1), true
	case time.Sunday:
		return day.AddDate(0, 0, -2), true
	default:
		return time.Time{}, false
	}
}

// NextMonday возвращает начало следующего понедельника после дня t.
// Для понедельника это понедельник через неделю.
func NextMonday(t time.Time, loc *time.Location) time.Time {
	return WeekStart(t, loc).AddDate(0, 0, 7)
}

// ============================================================
// Диапазоны
// ============================================================

// TimeRange представляет полуоткрытый диапазон [Start, End)
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains проверяет, попадает ли время в диапазон
func (tr TimeRange) Contains(t time.Time) bool {
	return !t.Before(tr.Start) && t.Before(tr.End)
}

// WeekRange - диапазон недели, содержащей t
func WeekRange(t time.Time, loc *time.Location) TimeRange {
	start := WeekStart(t, loc)
	return TimeRange{Start: start, End: start.AddDate(0, 0, 7)}
}

// MonthRange - диапазон месяца, содержащего t
func MonthRange(t time.Time, loc *time.Location) TimeRange {
	start := MonthStart(t, loc)
	return TimeRange{Start: start, End: start.AddDate(0, 1, 0)}
}
