package recurrence

import (
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseFreqOnly(t *testing.T) {
	p, err := Parse("FREQ=DAILY")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if p.Type != Daily {
		t.Errorf("Type = %q, want %q", p.Type, Daily)
	}
}

func TestParseWithByDay(t *testing.T) {
	p, err := Parse("FREQ=WEEKLY;BYDAY=MO,WE,FR")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	want := []int{1, 3, 5}
	if len(p.Weekdays) != len(want) {
		t.Fatalf("Weekdays len = %d, want %d", len(p.Weekdays), len(want))
	}
	for i, d := range p.Weekdays {
		if d != want[i] {
			t.Errorf("Weekdays[%d] = %d, want %d", i, d, want[i])
		}
	}
}

func TestParseWithBounds(t *testing.T) {
	p, err := Parse("FREQ=MONTHLY;BYMONTHDAY=15;DTSTART=20260105;UNTIL=20261231T000000Z")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if p.DayOfMonth != 15 {
		t.Errorf("DayOfMonth = %d, want 15", p.DayOfMonth)
	}
	if p.Start == nil || !p.Start.Equal(date(2026, 1, 5)) {
		t.Errorf("Start = %v, want 2026-01-05", p.Start)
	}
	if p.End == nil || !p.End.Equal(date(2026, 12, 31)) {
		t.Errorf("End = %v, want 2026-12-31", p.End)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"",
		"BYDAY=MO", // no FREQ
		"FREQ=HOURLY",
		"FREQ=WEEKLY",
		"FREQ=WEEKLY;BYDAY=XX",
		"FREQ=MONTHLY",
		"FREQ=MONTHLY;BYMONTHDAY=32",
		"FREQ=DAILY;UNKNOWN=1",
		"FREQ=DAILY;DTSTART=20260301;UNTIL=20260201",
	}

	for _, input := range tests {
		_, err := Parse(input)
		if err == nil {
			t.Errorf("Parse(%q) should error", input)
			continue
		}
		if !errors.Is(err, ErrInvalidPattern) {
			t.Errorf("Parse(%q) error = %v, want ErrInvalidPattern", input, err)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	inputs := []string{
		"FREQ=DAILY",
		"FREQ=WEEKLY;BYDAY=MO,WE,FR",
		"FREQ=WEEKLY;BYDAY=SU,SA",
		"FREQ=MONTHLY;BYMONTHDAY=31",
		"FREQ=DAILY;DTSTART=20260105;UNTIL=20260301",
	}

	for _, input := range inputs {
		p, err := Parse(input)
		if err != nil {
			t.Errorf("Parse(%q) error: %v", input, err)
			continue
		}
		if got := p.String(); got != input {
			t.Errorf("roundtrip %q -> %q", input, got)
		}
	}
}

func TestScanValue(t *testing.T) {
	p := Pattern{Type: Weekly, Weekdays: []int{5, 1}}
	v, err := p.Value()
	if err != nil {
		t.Fatalf("Value error: %v", err)
	}
	if v != "FREQ=WEEKLY;BYDAY=MO,FR" {
		t.Errorf("Value = %v, want FREQ=WEEKLY;BYDAY=MO,FR", v)
	}

	var got Pattern
	if err := got.Scan([]byte("FREQ=WEEKLY;BYDAY=MO,FR")); err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if got.Type != Weekly || len(got.Weekdays) != 2 {
		t.Errorf("Scan = %+v", got)
	}
	if err := got.Scan(42); err == nil {
		t.Error("Scan(int) should error")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		p    Pattern
		want string
	}{
		{Pattern{Type: Daily}, "Repeats daily"},
		{Pattern{Type: Weekly, Weekdays: []int{5, 1, 3}}, "Repeats weekly on Mon, Wed, Fri"},
		{Pattern{Type: Monthly, DayOfMonth: 31}, "Repeats monthly on day 31"},
	}
	for _, tt := range tests {
		if got := tt.p.Describe(); got != tt.want {
			t.Errorf("Describe() = %q, want %q", got, tt.want)
		}
	}
}

func TestDatesWeeklyMonWedFri(t *testing.T) {
	p := Pattern{Type: Weekly, Weekdays: []int{1, 3, 5}}
	// Sunday Feb 1 2026 through Saturday Feb 14 2026
	from := date(2026, 2, 1)
	to := from.AddDate(0, 0, 13)

	got, err := Dates(p, from, to)
	if err != nil {
		t.Fatalf("Dates error: %v", err)
	}

	want := []time.Time{
		date(2026, 2, 2), date(2026, 2, 4), date(2026, 2, 6),
		date(2026, 2, 9), date(2026, 2, 11), date(2026, 2, 13),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d dates, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("dates[%d] = %v, want %v", i, got[i], want[i])
		}
		if i > 0 && !got[i].After(got[i-1]) {
			t.Errorf("dates not strictly ascending at %d", i)
		}
		wd := got[i].Weekday()
		if wd != time.Monday && wd != time.Wednesday && wd != time.Friday {
			t.Errorf("dates[%d] falls on %v", i, wd)
		}
	}
}

func TestDatesWeeklyDuplicateWeekdays(t *testing.T) {
	p := Pattern{Type: Weekly, Weekdays: []int{2, 2, 2}}
	got, err := Dates(p, date(2026, 2, 1), date(2026, 2, 7))
	if err != nil {
		t.Fatalf("Dates error: %v", err)
	}
	if len(got) != 1 || !got[0].Equal(date(2026, 2, 3)) {
		t.Errorf("got %v, want [2026-02-03]", got)
	}
}

func TestDatesMonthlyClampsShortMonth(t *testing.T) {
	p := Pattern{Type: Monthly, DayOfMonth: 31}

	tests := []struct {
		year int
		want time.Time
	}{
		{2026, date(2026, 2, 28)},
		{2028, date(2028, 2, 29)},
	}
	for _, tt := range tests {
		got, err := Dates(p, date(tt.year, 2, 1), date(tt.year, 2, daysInMonth(tt.year, time.February)))
		if err != nil {
			t.Fatalf("Dates error: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("%d: got %d dates, want 1", tt.year, len(got))
		}
		if !got[0].Equal(tt.want) {
			t.Errorf("%d: date = %v, want %v", tt.year, got[0], tt.want)
		}
	}
}

func TestDatesMonthlyAcrossMonths(t *testing.T) {
	p := Pattern{Type: Monthly, DayOfMonth: 30}
	got, err := Dates(p, date(2026, 1, 15), date(2026, 4, 15))
	if err != nil {
		t.Fatalf("Dates error: %v", err)
	}
	want := []time.Time{date(2026, 1, 30), date(2026, 2, 28), date(2026, 3, 30)}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("dates[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDatesDailyInclusiveWindow(t *testing.T) {
	p := Pattern{Type: Daily}
	got, err := Dates(p, time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC), date(2026, 3, 3))
	if err != nil {
		t.Fatalf("Dates error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d dates, want 3", len(got))
	}
	if !got[0].Equal(date(2026, 3, 1)) || !got[2].Equal(date(2026, 3, 3)) {
		t.Errorf("got %v", got)
	}
}

func TestDatesRespectsPatternBounds(t *testing.T) {
	start := date(2026, 3, 10)
	end := date(2026, 3, 12)
	p := Pattern{Type: Daily, Start: &start, End: &end}

	got, err := Dates(p, date(2026, 3, 1), date(2026, 3, 31))
	if err != nil {
		t.Fatalf("Dates error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d dates, want 3", len(got))
	}

	// Window entirely after the pattern ends.
	got, err = Dates(p, date(2026, 4, 1), date(2026, 4, 30))
	if err != nil {
		t.Fatalf("Dates error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
}

func TestDatesErrors(t *testing.T) {
	if _, err := Dates(Pattern{Type: Daily}, date(2026, 3, 2), date(2026, 3, 1)); err == nil {
		t.Error("expected error for from > to")
	}
	if _, err := Dates(Pattern{Type: Weekly}, date(2026, 3, 1), date(2026, 3, 2)); !errors.Is(err, ErrInvalidPattern) {
		t.Errorf("weekly without weekdays: err = %v", err)
	}
	if _, err := Dates(Pattern{Type: Monthly}, date(2026, 3, 1), date(2026, 3, 2)); !errors.Is(err, ErrInvalidPattern) {
		t.Errorf("monthly without day: err = %v", err)
	}
}

func TestDatesDeterministic(t *testing.T) {
	p := Pattern{Type: Weekly, Weekdays: []int{0, 6}}
	a, _ := Dates(p, date(2026, 1, 1), date(2026, 3, 1))
	b, _ := Dates(p, date(2026, 1, 1), date(2026, 3, 1))
	if len(a) != len(b) {
		t.Fatalf("len %d != %d", len(a), len(b))
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			t.Errorf("run mismatch at %d", i)
		}
	}
}
