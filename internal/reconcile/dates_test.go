package reconcile

import (
	"testing"
	"time"
)

func TestParsePerformanceTime(t *testing.T) {
	tests := []struct {
		label string
		want  string
		ok    bool
	}{
		{label: "20:30", want: "20:30", ok: true},
		{label: " 8:05 ", want: "08:05", ok: true},
		{label: "TBA", ok: false},
		{label: "20:30:00", ok: false},
		{label: "8:30pm", ok: false},
		{label: "24:00", ok: false},
		{label: "12:60", ok: false},
		{label: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := ParsePerformanceTime(tt.label)
			if got != tt.want || ok != tt.ok {
				t.Fatalf("ParsePerformanceTime(%q)=%q,%v want %q,%v", tt.label, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParseDayLabel(t *testing.T) {
	tests := []struct {
		name  string
		label string
		want  string
		ok    bool
	}{
		{name: "czech numeric", label: "Čtvrtek 11. 6.", want: "2026-06-11", ok: true},
		{name: "czech abbreviated", label: "Pá 12.6.", want: "2026-06-12", ok: true},
		{name: "english full month", label: "Thu, 11. June", want: "2026-06-11", ok: true},
		{name: "english abbreviation", label: "Sat, 13. Jun", want: "2026-06-13", ok: true},
		{name: "upper case", label: "SUN, 14. JUNE", want: "2026-06-14", ok: true},
		{name: "unknown month", label: "Thu, 11. Juni", ok: false},
		{name: "invalid date", label: "31. 6.", ok: false},
		{name: "month out of range", label: "11. 13.", ok: false},
		{name: "no date", label: "Friday", ok: false},
		{name: "empty", label: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDayLabel(tt.label, 2026)
			if ok != tt.ok {
				t.Fatalf("ParseDayLabel(%q) ok=%v, want %v", tt.label, ok, tt.ok)
			}
			if ok && got.Format("2006-01-02") != tt.want {
				t.Fatalf("ParseDayLabel(%q)=%s, want %s", tt.label, got.Format("2006-01-02"), tt.want)
			}
			if ok && got.Location() != time.UTC {
				t.Fatalf("date not in UTC: %v", got.Location())
			}
		})
	}
}

func TestDayNumber(t *testing.T) {
	start := time.Date(2026, 6, 11, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		perf time.Time
		want int
	}{
		{name: "first day", perf: start, want: 1},
		{name: "second day", perf: time.Date(2026, 6, 12, 0, 0, 0, 0, time.UTC), want: 2},
		{name: "pre-festival", perf: time.Date(2026, 6, 9, 0, 0, 0, 0, time.UTC), want: 0},
		{name: "time of day ignored", perf: time.Date(2026, 6, 13, 23, 59, 0, 0, time.UTC), want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DayNumber(tt.perf, start); got != tt.want {
				t.Fatalf("DayNumber=%d, want %d", got, tt.want)
			}
		})
	}
}
