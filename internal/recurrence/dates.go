package recurrence

import (
	"fmt"
	"time"
)

// Dates returns the ascending calendar dates in [from, to] on which the
// pattern is due, restricted further by the pattern's own Start/End bounds.
// Dates are midnight UTC. The result is empty when the bounds exclude the
// window entirely.
func Dates(p Pattern, from, to time.Time) ([]time.Time, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	from, to = Day(from), Day(to)
	if from.After(to) {
		return nil, fmt.Errorf("invalid range: %s is after %s", from.Format(DateLayout), to.Format(DateLayout))
	}

	if p.Start != nil && Day(*p.Start).After(from) {
		from = Day(*p.Start)
	}
	if p.End != nil && Day(*p.End).Before(to) {
		to = Day(*p.End)
	}
	if from.After(to) {
		return nil, nil
	}

	var dates []time.Time
	switch p.Type {
	case Daily:
		for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
			dates = append(dates, d)
		}

	case Weekly:
		var want [7]bool
		for _, wd := range p.Weekdays {
			want[wd] = true
		}
		for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
			if want[d.Weekday()] {
				dates = append(dates, d)
			}
		}

	case Monthly:
		month := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
		for !month.After(to) {
			day := min(p.DayOfMonth, daysInMonth(month.Year(), month.Month()))
			d := time.Date(month.Year(), month.Month(), day, 0, 0, 0, 0, time.UTC)
			if !d.Before(from) && !d.After(to) {
				dates = append(dates, d)
			}
			month = month.AddDate(0, 1, 0)
		}
	}

	return dates, nil
}

// Day truncates t to its calendar date at midnight UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a DateLayout string into a midnight UTC date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
