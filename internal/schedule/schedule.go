// Package schedule computes service dates from a customer's trash-pickup weekday
// and cleaning frequency.
package schedule

import (
	"strings"
	"time"

	"github.com/jonathan/bin-crew/internal/types"
)

// DateLayout is the ISO date format used for scheduled dates.
const DateLayout = "2006-01-02"

// Frequency is how often a customer's bins are cleaned.
type Frequency string

const (
	Weekly   Frequency = "WEEKLY"
	Biweekly Frequency = "BIWEEKLY"
	Monthly  Frequency = "MONTHLY"
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday resolves a weekday name such as "Tuesday" (case-insensitive).
func ParseWeekday(name string) (time.Weekday, error) {
	day, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, &types.ValidationError{Field: "trash_day", Message: "unrecognized weekday " + `"` + name + `"`}
	}
	return day, nil
}

// ParseFrequency resolves WEEKLY, BIWEEKLY or MONTHLY (case-insensitive).
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToUpper(strings.TrimSpace(s)))
	switch f {
	case Weekly, Biweekly, Monthly:
		return f, nil
	}
	return "", &types.ValidationError{Field: "frequency", Message: "must be one of WEEKLY, BIWEEKLY, MONTHLY"}
}

// cycleDays is the length of one service cycle.
func (f Frequency) cycleDays() int {
	switch f {
	case Biweekly:
		return 14
	case Monthly:
		return 28
	default:
		return 7
	}
}

// Midnight truncates t to the start of its calendar day in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// NextServiceDate returns the first service date on or after reference for a
// customer whose trash goes out on trashWeekday.
//
// For BIWEEKLY and MONTHLY plans a reference date that already falls on the trash
// day is pushed out one full cycle, so the first cleaning is never the reference
// date itself. Any other reference date yields the first occurrence for every
// frequency; later dates in the series come from AdvanceCycle.
func NextServiceDate(trashWeekday string, frequency Frequency, reference time.Time) (time.Time, error) {
	day, err := ParseWeekday(trashWeekday)
	if err != nil {
		return time.Time{}, err
	}
	if _, err := ParseFrequency(string(frequency)); err != nil {
		return time.Time{}, err
	}

	start := Midnight(reference)
	delta := (int(day) - int(start.Weekday()) + 7) % 7
	next := start.AddDate(0, 0, delta)

	if delta == 0 && frequency != Weekly {
		next = next.AddDate(0, 0, frequency.cycleDays())
	}
	return next, nil
}

// AdvanceCycle returns the service date one cycle after date.
func AdvanceCycle(date time.Time, frequency Frequency) time.Time {
	return Midnight(date).AddDate(0, 0, frequency.cycleDays())
}

// Occurrences returns the next n service dates, starting with NextServiceDate and
// stepping with AdvanceCycle.
func Occurrences(trashWeekday string, frequency Frequency, reference time.Time, n int) ([]time.Time, error) {
	if n < 1 {
		return nil, &types.ValidationError{Field: "count", Message: "must be at least 1"}
	}
	first, err := NextServiceDate(trashWeekday, frequency, reference)
	if err != nil {
		return nil, err
	}
	dates := make([]time.Time, 0, n)
	dates = append(dates, first)
	for len(dates) < n {
		dates = append(dates, AdvanceCycle(dates[len(dates)-1], frequency))
	}
	return dates, nil
}

// FormatDate renders a date in DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a DateLayout date in UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, &types.ValidationError{Field: "date", Message: "must be YYYY-MM-DD"}
	}
	return t, nil
}
