package shared

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the calendar date format used by every dated record.
const DateLayout = "2006-01-02"

// ErrInvalidPeriod indicates a period whose end precedes its start.
var ErrInvalidPeriod = errors.New("period end before start")

// ParseDate accepts a calendar date or an RFC 3339 timestamp and returns the UTC calendar day.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// Period is an inclusive range of calendar days.
type Period struct {
	Start time.Time
	End   time.Time
}

// NewPeriod validates and builds a period from two dates.
func NewPeriod(start, end string) (Period, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Period{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return Period{}, err
	}
	if e.Before(s) {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Start: s, End: e}, nil
}

// MonthPeriod returns the calendar month containing t.
func MonthPeriod(t time.Time) Period {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, -1)}
}

// YearPeriod returns the calendar year containing t.
func YearPeriod(t time.Time) Period {
	start := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: time.Date(t.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)}
}

// Contains reports whether the calendar day d falls inside p.
func (p Period) Contains(d time.Time) bool {
	return !d.Before(p.Start) && !d.After(p.End)
}

// String renders the period as start..end.
func (p Period) String() string {
	return p.Start.Format(DateLayout) + ".." + p.End.Format(DateLayout)
}
