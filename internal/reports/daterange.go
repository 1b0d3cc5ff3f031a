package reports

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// Range is an inclusive date range.
type Range struct {
	Start civil.Date `json:"startDate"`
	End   civil.Date `json:"endDate"`
	Label string     `json:"label,omitempty"`
}

// Preset names a commonly used range.
type Preset string

const (
	ThisMonth   Preset = "this-month"
	LastMonth   Preset = "last-month"
	Last3Months Preset = "last-3-months"
	YearToDate  Preset = "ytd"
	LastYear    Preset = "last-year"
)

// Presets lists every preset in display order.
var Presets = []Preset{ThisMonth, LastMonth, Last3Months, YearToDate, LastYear}

// Resolve computes the range of p relative to today.
func (p Preset) Resolve(today civil.Date) (Range, error) {
	y, m := today.Year, today.Month
	switch p {
	case ThisMonth:
		return Range{Start: firstOfMonth(y, m, 0), End: today, Label: "This Month"}, nil
	case LastMonth:
		return Range{Start: firstOfMonth(y, m, -1), End: firstOfMonth(y, m, 0).AddDays(-1), Label: "Last Month"}, nil
	case Last3Months:
		return Range{Start: firstOfMonth(y, m, -3), End: today, Label: "Last 3 Months"}, nil
	case YearToDate:
		return Range{Start: civil.Date{Year: y, Month: time.January, Day: 1}, End: today, Label: "Year to Date"}, nil
	case LastYear:
		return Range{
			Start: civil.Date{Year: y - 1, Month: time.January, Day: 1},
			End:   civil.Date{Year: y - 1, Month: time.December, Day: 31},
			Label: "Last Year",
		}, nil
	}
	return Range{}, fmt.Errorf("unknown range preset %q", p)
}

// ParseRange parses an explicit "YYYY-MM-DD" range.
func ParseRange(start, end string) (Range, error) {
	s, err := civil.ParseDate(start)
	if err != nil {
		return Range{}, fmt.Errorf("ParseRange: start date: %w", err)
	}
	e, err := civil.ParseDate(end)
	if err != nil {
		return Range{}, fmt.Errorf("ParseRange: end date: %w", err)
	}
	if e.Before(s) {
		return Range{}, fmt.Errorf("ParseRange: end date %s is before start date %s", e, s)
	}
	return Range{Start: s, End: e, Label: "Custom Range"}, nil
}

// DefaultRange is the range shown when none is chosen: this month.
func DefaultRange(now time.Time) Range {
	r, _ := ThisMonth.Resolve(civil.DateOf(now))
	return r
}

// StartString formats the start date as YYYY-MM-DD.
func (r Range) StartString() string { return r.Start.String() }

// EndString formats the end date as YYYY-MM-DD.
func (r Range) EndString() string { return r.End.String() }

func firstOfMonth(year int, month time.Month, offset int) civil.Date {
	return civil.DateOf(time.Date(year, month+time.Month(offset), 1, 0, 0, 0, 0, time.UTC))
}
