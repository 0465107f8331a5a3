package utils

import (
	"testing"
	"time"
)

var ist = time.FixedZone("IST", 5*3600+1800)

func TestDayStart(t *testing.T) {
	tests := []struct {
		name     string
		input    time.Time
		loc      *time.Location
		expected time.Time
	}{
		{
			name:     "middle of day",
			input:    time.Date(2024, 1, 15, 14, 30, 45, 123456789, time.UTC),
			loc:      time.UTC,
			expected: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "nil location is utc",
			input:    time.Date(2024, 1, 15, 23, 59, 59, 999999999, time.UTC),
			loc:      nil,
			expected: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "late utc is next day in ist",
			input:    time.Date(2024, 1, 15, 21, 0, 0, 0, time.UTC),
			loc:      ist,
			expected: time.Date(2024, 1, 16, 0, 0, 0, 0, ist),
		},
		{
			name:     "leap year",
			input:    time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC),
			loc:      time.UTC,
			expected: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DayStart(tt.input, tt.loc)
			if !result.Equal(tt.expected) {
				t.Errorf("DayStart(%v) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestDayEnd(t *testing.T) {
	input := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	expected := time.Date(2024, 1, 15, 23, 59, 59, 999999999, time.UTC)

	if result := DayEnd(input, time.UTC); !result.Equal(expected) {
		t.Errorf("DayEnd() = %v, want %v", result, expected)
	}
}

func TestWeekStart(t *testing.T) {
	tests := []struct {
		name     string
		input    time.Time
		expected time.Time
	}{
		{
			name:     "monday",
			input:    time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "wednesday",
			input:    time.Date(2024, 1, 17, 14, 30, 0, 0, time.UTC),
			expected: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "sunday belongs to previous monday",
			input:    time.Date(2024, 1, 21, 23, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "across year boundary",
			input:    time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "across month boundary",
			input:    time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := WeekStart(tt.input, time.UTC)
			if !result.Equal(tt.expected) {
				t.Errorf("WeekStart(%v) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestWeekEnd(t *testing.T) {
	input := time.Date(2024, 1, 17, 14, 30, 0, 0, time.UTC)
	expected := time.Date(2024, 1, 21, 23, 59, 59, 999999999, time.UTC)

	if result := WeekEnd(input, time.UTC); !result.Equal(expected) {
		t.Errorf("WeekEnd() = %v, want %v", result, expected)
	}
}

func TestMonthBoundaries(t *testing.T) {
	input := time.Date(2024, 2, 15, 14, 30, 0, 0, time.UTC)

	if start := MonthStart(input, time.UTC); !start.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("MonthStart() = %v", start)
	}
	if end := MonthEnd(input, time.UTC); !end.Equal(time.Date(2024, 2, 29, 23, 59, 59, 999999999, time.UTC)) {
		t.Errorf("MonthEnd() = %v", end)
	}
}

func TestPeriodKeys(t *testing.T) {
	ts := time.Date(2024, 3, 31, 20, 0, 0, 0, time.UTC) // воскресенье, в IST уже 1 апреля

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"day utc", DayKey(ts, time.UTC), "2024-03-31"},
		{"day ist", DayKey(ts, ist), "2024-04-01"},
		{"week utc", WeekKey(ts, time.UTC), "2024-03-25"},
		{"week ist", WeekKey(ts, ist), "2024-04-01"},
		{"month utc", MonthKey(ts, time.UTC), "2024-03"},
		{"month ist", MonthKey(ts, ist), "2024-04"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %s, want %s", tt.got, tt.want)
			}
		})
	}
}

func TestParseDayAndMonth(t *testing.T) {
	d, err := ParseDay("2024-01-19", ist)
	if err != nil {
		t.Fatalf("ParseDay() error = %v", err)
	}
	if !d.Equal(time.Date(2024, 1, 19, 0, 0, 0, 0, ist)) {
		t.Errorf("ParseDay() = %v", d)
	}

	m, err := ParseMonth("2024-02", time.UTC)
	if err != nil {
		t.Fatalf("ParseMonth() error = %v", err)
	}
	if !m.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ParseMonth() = %v", m)
	}

	if _, err := ParseDay("19/01/2024", time.UTC); err == nil {
		t.Error("ParseDay() should reject invalid format")
	}
	if _, err := ParseMonth("2024-13", time.UTC); err == nil {
		t.Error("ParseMonth() should reject invalid month")
	}
}

func TestSettlementFriday(t *testing.T) {
	friday := time.Date(2024, 1, 19, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		now    time.Time
		wantOK bool
	}{
		{"monday", time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC), false},
		{"thursday", time.Date(2024, 1, 18, 23, 0, 0, 0, time.UTC), false},
		{"friday", time.Date(2024, 1, 19, 9, 0, 0, 0, time.UTC), true},
		{"saturday", time.Date(2024, 1, 20, 9, 0, 0, 0, time.UTC), true},
		{"sunday", time.Date(2024, 1, 21, 23, 59, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SettlementFriday(tt.now, time.UTC)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !got.Equal(friday) {
				t.Errorf("SettlementFriday() = %v, want %v", got, friday)
			}
		})
	}
}

func TestNextMonday(t *testing.T) {
	tests := []struct {
		name  string
		input time.Time
		want  time.Time
	}{
		{"friday", time.Date(2024, 1, 19, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC)},
		{"sunday", time.Date(2024, 1, 21, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC)},
		{"monday", time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 29, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextMonday(tt.input, time.UTC); !got.Equal(tt.want) {
				t.Errorf("NextMonday() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTimeRange(t *testing.T) {
	r := WeekRange(time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC), time.UTC)

	if !r.Contains(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Error("range should contain its start")
	}
	if r.Contains(time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC)) {
		t.Error("range should not contain its end")
	}

	m := MonthRange(time.Date(2024, 12, 10, 0, 0, 0, 0, time.UTC), time.UTC)
	if !m.End.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("MonthRange end = %v", m.End)
	}
}
