package reconcile

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	performanceTimePattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	numericDayPattern      = regexp.MustCompile(`(\d{1,2})\.\s*(\d{1,2})\.`)
	namedDayPattern        = regexp.MustCompile(`(\d{1,2})\.\s*(\p{L}+)`)
)

var monthNames = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "jun": time.June, "jul": time.July,
	"aug": time.August, "sep": time.September, "oct": time.October,
	"nov": time.November, "dec": time.December,
}

// ParsePerformanceTime returns the label as zero-padded HH:MM when it is a
// strict clock time
func ParsePerformanceTime(label string) (string, bool) {
	m := performanceTimePattern.FindStringSubmatch(strings.TrimSpace(label))
	if m == nil {
		return "", false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

// ParseDayLabel turns labels like "Čtvrtek 11. 6." or "Thu, 11. June" into
// a UTC calendar date in the given year
func ParseDayLabel(label string, year int) (time.Time, bool) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	if normalized == "" {
		return time.Time{}, false
	}

	if m := numericDayPattern.FindStringSubmatch(normalized); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		return calendarDate(year, time.Month(month), day)
	}

	if m := namedDayPattern.FindStringSubmatch(normalized); m != nil {
		month, ok := monthNames[m[2]]
		if !ok {
			return time.Time{}, false
		}
		day, _ := strconv.Atoi(m[1])
		return calendarDate(year, month, day)
	}

	return time.Time{}, false
}

// calendarDate rejects dates that time.Date would normalize, e.g. 31. 6.
func calendarDate(year int, month time.Month, day int) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// DayNumber is the 1-based festival day of perf. Dates before start are day 0.
func DayNumber(perf, start time.Time) int {
	p := utcDay(perf)
	s := utcDay(start)
	days := int(math.Floor(p.Sub(s).Hours() / 24))
	if days < 0 {
		return 0
	}
	return days + 1
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
