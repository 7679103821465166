package subscription

import (
	"fmt"
	"strings"
	"time"
)

// IntervalUnit is the calendar unit of a billing or delivery cadence
type IntervalUnit string

const (
	IntervalDay   IntervalUnit = "DAY"
	IntervalWeek  IntervalUnit = "WEEK"
	IntervalMonth IntervalUnit = "MONTH"
	IntervalYear  IntervalUnit = "YEAR"
)

// IsValid returns true if the unit is known
func (u IntervalUnit) IsValid() bool {
	switch u {
	case IntervalDay, IntervalWeek, IntervalMonth, IntervalYear:
		return true
	}
	return false
}

// ParseIntervalUnit accepts any casing
func ParseIntervalUnit(s string) (IntervalUnit, error) {
	u := IntervalUnit(strings.ToUpper(strings.TrimSpace(s)))
	if !u.IsValid() {
		return "", ErrInvalidInterval
	}
	return u, nil
}

// Interval is a cadence such as "every 2 MONTH"
type Interval struct {
	Unit  IntervalUnit
	Count int
}

// NewInterval validates and builds an Interval
func NewInterval(unit IntervalUnit, count int) (Interval, error) {
	i := Interval{Unit: unit, Count: count}
	if err := i.Validate(); err != nil {
		return Interval{}, err
	}
	return i, nil
}

// Validate checks unit and count
func (i Interval) Validate() error {
	if !i.Unit.IsValid() || i.Count < 1 {
		return ErrInvalidInterval
	}
	return nil
}

// String renders e.g. "2 MONTH"
func (i Interval) String() string {
	return fmt.Sprintf("%d %s", i.Count, i.Unit)
}

// Advance moves t forward by one interval using calendar arithmetic.
// Month and year steps keep the day of month when it exists in the target month and clamp
// to the last day otherwise, so 2025-01-31 + 1 MONTH is 2025-02-28.
func (i Interval) Advance(t time.Time) time.Time {
	return i.AdvanceOnDay(t, t.Day())
}

// AdvanceOnDay is Advance with month and year steps landing on anchorDay instead of t's own
// day, so a schedule anchored on the 31st runs Jan 31, Feb 28, Mar 31. A non-positive anchor
// means t's day. Day and week steps ignore the anchor.
func (i Interval) AdvanceOnDay(t time.Time, anchorDay int) time.Time {
	switch i.Unit {
	case IntervalDay:
		return t.AddDate(0, 0, i.Count)
	case IntervalWeek:
		return t.AddDate(0, 0, 7*i.Count)
	case IntervalMonth:
		return addMonthsClamped(t, i.Count, anchorDay)
	case IntervalYear:
		return addMonthsClamped(t, 12*i.Count, anchorDay)
	}
	return t
}

// addMonthsClamped differs from time.AddDate, which normalizes Jan 31 + 1 month to Mar 3
func addMonthsClamped(t time.Time, months, day int) time.Time {
	y, m, d := t.Date()
	if day > 0 {
		d = day
	}
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := daysIn(first.Year(), first.Month())
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// anchorFor returns the day-of-month anchor of a schedule that moved to d. A month-end date
// that is the clamp of the current anchor keeps it.
func anchorFor(current int, d time.Time) int {
	day := d.Day()
	if current > day && day == daysIn(d.Year(), d.Month()) {
		return current
	}
	return day
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DateOnly truncates t to midnight UTC of its calendar date
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
