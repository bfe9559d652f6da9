package recurrence

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidPattern is wrapped by every pattern validation and parse failure.
var ErrInvalidPattern = errors.New("invalid recurrence pattern")

type Freq string

const (
	Daily   Freq = "daily"
	Weekly  Freq = "weekly"
	Monthly Freq = "monthly"
)

var freqNames = map[Freq]string{
	Daily:   "DAILY",
	Weekly:  "WEEKLY",
	Monthly: "MONTHLY",
}

var freqFromName = map[string]Freq{
	"DAILY":   Daily,
	"WEEKLY":  Weekly,
	"MONTHLY": Monthly,
}

var dayNames = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

var dayAbbrev = map[time.Weekday]string{
	time.Sunday:    "SU",
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
}

// DateLayout is the calendar-date format used for watermarks and RRULE bounds.
const DateLayout = "2006-01-02"

const ruleDateLayout = "20060102"

// Pattern describes when a recurring chore is due.
type Pattern struct {
	Type       Freq       `json:"type"`
	Weekdays   []int      `json:"weekdays,omitempty"`     // weekly: 0 (Sunday) .. 6 (Saturday)
	DayOfMonth int        `json:"day_of_month,omitempty"` // monthly: 1..31, clamped to short months
	Start      *time.Time `json:"start_date,omitempty"`
	End        *time.Time `json:"end_date,omitempty"`
}

// Validate reports whether the pattern can be evaluated.
func (p Pattern) Validate() error {
	switch p.Type {
	case Daily:
	case Weekly:
		if len(p.Weekdays) == 0 {
			return fmt.Errorf("%w: weekly pattern needs at least one weekday", ErrInvalidPattern)
		}
		for _, d := range p.Weekdays {
			if d < 0 || d > 6 {
				return fmt.Errorf("%w: weekday %d out of range 0-6", ErrInvalidPattern, d)
			}
		}
	case Monthly:
		if p.DayOfMonth < 1 || p.DayOfMonth > 31 {
			return fmt.Errorf("%w: day of month must be 1-31", ErrInvalidPattern)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidPattern, p.Type)
	}
	if p.Start != nil && p.End != nil && Day(*p.End).Before(Day(*p.Start)) {
		return fmt.Errorf("%w: end date before start date", ErrInvalidPattern)
	}
	return nil
}

// Parse parses a stored rule like "FREQ=WEEKLY;BYDAY=MO,WE;DTSTART=20260105".
func Parse(rule string) (Pattern, error) {
	if rule == "" {
		return Pattern{}, fmt.Errorf("%w: empty rule", ErrInvalidPattern)
	}

	var p Pattern
	for _, part := range strings.Split(rule, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return Pattern{}, fmt.Errorf("%w: invalid rule part %q", ErrInvalidPattern, part)
		}
		key, val := kv[0], kv[1]

		switch key {
		case "FREQ":
			f, ok := freqFromName[val]
			if !ok {
				return Pattern{}, fmt.Errorf("%w: unknown frequency %q", ErrInvalidPattern, val)
			}
			p.Type = f

		case "BYDAY":
			for _, d := range strings.Split(val, ",") {
				wd, ok := dayNames[strings.TrimSpace(d)]
				if !ok {
					return Pattern{}, fmt.Errorf("%w: unknown day %q", ErrInvalidPattern, d)
				}
				p.Weekdays = append(p.Weekdays, int(wd))
			}

		case "BYMONTHDAY":
			n, err := strconv.Atoi(val)
			if err != nil {
				return Pattern{}, fmt.Errorf("%w: invalid BYMONTHDAY %q", ErrInvalidPattern, val)
			}
			p.DayOfMonth = n

		case "DTSTART":
			t, err := parseRuleDate(val)
			if err != nil {
				return Pattern{}, fmt.Errorf("%w: invalid DTSTART %q", ErrInvalidPattern, val)
			}
			p.Start = &t

		case "UNTIL":
			t, err := parseRuleDate(val)
			if err != nil {
				return Pattern{}, fmt.Errorf("%w: invalid UNTIL %q", ErrInvalidPattern, val)
			}
			p.End = &t

		default:
			return Pattern{}, fmt.Errorf("%w: unsupported rule key %q", ErrInvalidPattern, key)
		}
	}

	if p.Type == "" {
		return Pattern{}, fmt.Errorf("%w: FREQ is required", ErrInvalidPattern)
	}
	if err := p.Validate(); err != nil {
		return Pattern{}, err
	}
	return p, nil
}

func parseRuleDate(val string) (time.Time, error) {
	t, err := time.Parse("20060102T150405Z", val)
	if err != nil {
		t, err = time.Parse(ruleDateLayout, val)
		if err != nil {
			return time.Time{}, err
		}
	}
	return Day(t), nil
}

// String serializes the pattern back to its rule form.
func (p Pattern) String() string {
	var parts []string
	parts = append(parts, "FREQ="+freqNames[p.Type])

	if len(p.Weekdays) > 0 {
		days := append([]int(nil), p.Weekdays...)
		sort.Ints(days)
		var names []string
		for _, d := range days {
			names = append(names, dayAbbrev[time.Weekday(d)])
		}
		parts = append(parts, "BYDAY="+strings.Join(names, ","))
	}

	if p.DayOfMonth > 0 {
		parts = append(parts, fmt.Sprintf("BYMONTHDAY=%d", p.DayOfMonth))
	}

	if p.Start != nil {
		parts = append(parts, "DTSTART="+p.Start.Format(ruleDateLayout))
	}

	if p.End != nil {
		parts = append(parts, "UNTIL="+p.End.Format(ruleDateLayout))
	}

	return strings.Join(parts, ";")
}

// Describe returns a human-readable description of the pattern.
func (p Pattern) Describe() string {
	switch p.Type {
	case Daily:
		return "Repeats daily"
	case Weekly:
		if len(p.Weekdays) == 0 {
			return "Repeats weekly"
		}
		days := append([]int(nil), p.Weekdays...)
		sort.Ints(days)
		var names []string
		for _, d := range days {
			names = append(names, time.Weekday(d).String()[:3])
		}
		return "Repeats weekly on " + strings.Join(names, ", ")
	case Monthly:
		return fmt.Sprintf("Repeats monthly on day %d", p.DayOfMonth)
	}
	return ""
}

// Value implements driver.Valuer so a Pattern persists as its rule string.
func (p Pattern) Value() (driver.Value, error) {
	return p.String(), nil
}

// Scan implements sql.Scanner.
func (p *Pattern) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("scan pattern: unsupported type %T", src)
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
