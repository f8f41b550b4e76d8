package trading

import (
	"testing"
	"time"
)

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, cst)
}

func TestIsStockTradingTimeAt(t *testing.T) {
	cases := []struct {
		t    time.Time
		want bool
	}{
		{at(2024, 1, 15, 9, 29), false},
		{at(2024, 1, 15, 9, 30), true},
		{at(2024, 1, 15, 12, 0), false},
		{at(2024, 1, 15, 14, 59), true},
		{at(2024, 1, 15, 15, 0), true},
		{at(2024, 1, 13, 10, 0), false}, // 周六
		// 北京时间周一 10:00
		{time.Date(2024, 1, 15, 2, 0, 0, 0, time.UTC), true},
	}
	for _, c := range cases {
		if got := IsStockTradingTimeAt(c.t); got != c.want {
			t.Fatalf("IsStockTradingTimeAt(%s)=%v want %v", c.t, got, c.want)
		}
	}
}

func TestShouldMergeQuoteAt(t *testing.T) {
	if !ShouldMergeQuoteAt(at(2024, 1, 15, 15, 30)) {
		t.Fatalf("after close but before 16:00 should merge")
	}
	if ShouldMergeQuoteAt(at(2024, 1, 15, 16, 1)) {
		t.Fatalf("after 16:00 should not merge")
	}
	if ShouldMergeQuoteAt(at(2024, 1, 14, 10, 0)) {
		t.Fatalf("sunday should not merge")
	}
}

func TestCalendarHolidays(t *testing.T) {
	// 2024-10-01 ~ 10-07 国庆
	var days []time.Time
	for d := 1; d <= 7; d++ {
		days = append(days, time.Date(2024, 10, d, 0, 0, 0, 0, time.Local))
	}
	c := NewCalendar(days)

	if c.IsTradingDay(at(2024, 10, 2, 10, 0)) || c.InQuoteWindow(at(2024, 10, 2, 10, 0)) {
		t.Fatalf("holiday must be closed")
	}
	if !c.IsTradingDay(at(2024, 9, 30, 10, 0)) {
		t.Fatalf("monday before the holiday is open")
	}

	next := c.NextOpen(at(2024, 9, 30, 15, 30))
	if want := at(2024, 10, 8, 9, 30); !next.Equal(want) {
		t.Fatalf("NextOpen=%s want %s", next, want)
	}
}

func TestNextOpen(t *testing.T) {
	c := NewCalendar(nil)
	cases := []struct {
		from, want time.Time
	}{
		{at(2024, 1, 15, 8, 0), at(2024, 1, 15, 9, 30)},
		{at(2024, 1, 15, 12, 0), at(2024, 1, 15, 13, 0)},
		{at(2024, 1, 19, 15, 30), at(2024, 1, 22, 9, 30)}, // 周五收盘后到下周一
		{at(2024, 1, 15, 10, 0), at(2024, 1, 15, 10, 0)},
	}
	for _, tc := range cases {
		if got := c.NextOpen(tc.from); !got.Equal(tc.want) {
			t.Fatalf("NextOpen(%s)=%s want %s", tc.from, got, tc.want)
		}
	}
}
