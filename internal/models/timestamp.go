package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Timestamp - время сделки в одном из входных представлений.
// Либо Epoch (миллисекунды Unix), либо Calendar (календарная дата и время
// в часовом поясе журнала). Нормализуется в time.Time через Time(loc).
type Timestamp struct {
	epoch    *int64
	calendar *Calendar
}

// Calendar - календарное представление времени без секунд
type Calendar struct {
	Year   int `json:"year"`
	Month  int `json:"month"`
	Day    int `json:"day"`
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// ErrInvalidTimestamp возвращается для нераспознанного времени
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// EpochMillis создает Timestamp из миллисекунд Unix
func EpochMillis(ms int64) Timestamp {
	return Timestamp{epoch: &ms}
}

// CalendarTime создает Timestamp из календарных компонентов
func CalendarTime(c Calendar) Timestamp {
	return Timestamp{calendar: &c}
}

// IsZero - время не задано
func (ts Timestamp) IsZero() bool {
	return ts.epoch == nil && ts.calendar == nil
}

// Time нормализует время. Calendar интерпретируется в loc.
func (ts Timestamp) Time(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	switch {
	case ts.epoch != nil:
		return time.UnixMilli(*ts.epoch).In(loc), nil
	case ts.calendar != nil:
		c := ts.calendar
		if c.Month < 1 || c.Month > 12 || c.Day < 1 || c.Day > 31 ||
			c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 {
			return time.Time{}, fmt.Errorf("%w: calendar %+v", ErrInvalidTimestamp, *c)
		}
		t := time.Date(c.Year, time.Month(c.Month), c.Day, c.Hour, c.Minute, 0, 0, loc)
		if t.Day() != c.Day {
			return time.Time{}, fmt.Errorf("%w: day out of range %+v", ErrInvalidTimestamp, *c)
		}
		return t, nil
	default:
		return time.Time{}, ErrInvalidTimestamp
	}
}

// Строковые формы, которые присылают клиенты
var textLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	DateLayout,
}

// UnmarshalJSON принимает число (epoch ms), объект Calendar или строку.
// Строки без зоны приводятся к Calendar и получают зону журнала при нормализации.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*ts = Timestamp{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseTimestamp(s)
		if err != nil {
			return err
		}
		*ts = parsed
		return nil
	case '{':
		var c Calendar
		if err := json.Unmarshal(data, &c); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
		}
		*ts = CalendarTime(c)
		return nil
	default:
		var ms json.Number
		if err := json.Unmarshal(data, &ms); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
		}
		v, err := ms.Int64()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
		}
		*ts = EpochMillis(v)
		return nil
	}
}

// ParseTimestamp разбирает строковое время.
// RFC3339 с зоной становится Epoch, остальные формы - Calendar.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return EpochMillis(t.UnixMilli()), nil
	}
	for _, layout := range textLayouts[1:] {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return CalendarTime(Calendar{
			Year:   t.Year(),
			Month:  int(t.Month()),
			Day:    t.Day(),
			Hour:   t.Hour(),
			Minute: t.Minute(),
		}), nil
	}
	return Timestamp{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}
