package reports

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Period names a report window.
type Period string

// Supported periods.
const (
	PeriodToday      Period = "today"
	PeriodYesterday  Period = "yesterday"
	PeriodLast7Days  Period = "last7days"
	PeriodLast30Days Period = "last30days"
	PeriodThisMonth  Period = "thisMonth"
	PeriodLastMonth  Period = "lastMonth"
	PeriodThisYear   Period = "thisYear"
	PeriodCustom     Period = "custom"
)

// DateLayout is the calendar date format used for day keys and transport.
const DateLayout = "2006-01-02"

// Periods lists the supported periods in menu order.
func Periods() []Period {
	return []Period{
		PeriodToday,
		PeriodYesterday,
		PeriodLast7Days,
		PeriodLast30Days,
		PeriodThisMonth,
		PeriodLastMonth,
		PeriodThisYear,
		PeriodCustom,
	}
}

// ParsePeriod maps a period name, case-insensitively, to a Period.
func ParsePeriod(value string) (Period, error) {
	value = strings.TrimSpace(value)
	for _, p := range Periods() {
		if strings.EqualFold(string(p), value) {
			return p, nil
		}
	}
	return "", &InvalidPeriodError{Period: value, Reason: "unknown period"}
}

// PeriodSelector is either a named period or custom bounds.
type PeriodSelector struct {
	Period Period     `json:"period"`
	From   *time.Time `json:"from,omitempty"`
	To     *time.Time `json:"to,omitempty"`
}

// Named builds a selector for a named period.
func Named(p Period) PeriodSelector {
	return PeriodSelector{Period: p}
}

// Custom builds a selector for explicit bounds.
func Custom(from, to time.Time) PeriodSelector {
	return PeriodSelector{Period: PeriodCustom, From: &from, To: &to}
}

// DateRange is an inclusive range of calendar dates. From and To are
// midnights in the reference timezone.
type DateRange struct {
	From time.Time
	To   time.Time
}

// NewDateRange builds a range from two calendar dates, rejecting inverted bounds.
func NewDateRange(from, to time.Time, loc *time.Location) (DateRange, error) {
	if loc == nil {
		loc = time.UTC
	}
	r := DateRange{From: civilDate(from, loc), To: civilDate(to, loc)}
	if r.From.After(r.To) {
		return DateRange{}, &InvalidPeriodError{Period: string(PeriodCustom), Reason: "from is after to"}
	}
	return r, nil
}

// Days returns the inclusive number of calendar days in the range.
func (r DateRange) Days() int {
	return daysBetween(r.From, r.To) + 1
}

// Previous returns the range of equal length that ends the day before From.
func (r DateRange) Previous() DateRange {
	n := r.Days()
	return DateRange{
		From: r.From.AddDate(0, 0, -n),
		To:   r.From.AddDate(0, 0, -1),
	}
}

// Contains reports whether t falls on a day within the range.
func (r DateRange) Contains(t time.Time) bool {
	d := dateOf(t, r.From.Location())
	return !d.Before(r.From) && !d.After(r.To)
}

// Start returns the first instant of the range.
func (r DateRange) Start() time.Time {
	return r.From
}

// End returns the first instant after the range.
func (r DateRange) End() time.Time {
	return r.To.AddDate(0, 0, 1)
}

// Dates enumerates every day in the range.
func (r DateRange) Dates() []time.Time {
	out := make([]time.Time, 0, r.Days())
	for d := r.From; !d.After(r.To); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

func (r DateRange) String() string {
	return r.From.Format(DateLayout) + ".." + r.To.Format(DateLayout)
}

// MarshalJSON renders the range as calendar dates.
func (r DateRange) MarshalJSON() ([]byte, error) {
	if r.From.IsZero() && r.To.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(struct {
		From string `json:"from"`
		To   string `json:"to"`
		Days int    `json:"days"`
	}{r.From.Format(DateLayout), r.To.Format(DateLayout), r.Days()})
}

// PreviousRange returns the comparison window for r.
func PreviousRange(r DateRange) DateRange {
	return r.Previous()
}

// Resolve turns a selector into a concrete range relative to the engine clock.
func (e *Engine) Resolve(sel PeriodSelector) (DateRange, error) {
	return ResolvePeriod(sel, e.now(), e.cfg.Location)
}

// ResolvePeriod turns a selector into a concrete range relative to now,
// evaluated in loc at calendar-day granularity.
func ResolvePeriod(sel PeriodSelector, now time.Time, loc *time.Location) (DateRange, error) {
	if loc == nil {
		loc = time.UTC
	}
	today := dateOf(now, loc)
	switch sel.Period {
	case PeriodToday:
		return DateRange{From: today, To: today}, nil
	case PeriodYesterday:
		y := today.AddDate(0, 0, -1)
		return DateRange{From: y, To: y}, nil
	case PeriodLast7Days:
		return DateRange{From: today.AddDate(0, 0, -6), To: today}, nil
	case PeriodLast30Days:
		return DateRange{From: today.AddDate(0, 0, -29), To: today}, nil
	case PeriodThisMonth:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, loc)
		return DateRange{From: first, To: today}, nil
	case PeriodLastMonth:
		firstThis := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, loc)
		firstPrev := firstThis.AddDate(0, -1, 0)
		return DateRange{From: firstPrev, To: firstThis.AddDate(0, 0, -1)}, nil
	case PeriodThisYear:
		return DateRange{From: time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, loc), To: today}, nil
	case PeriodCustom:
		if sel.From == nil || sel.From.IsZero() {
			return DateRange{}, &InvalidPeriodError{Period: string(PeriodCustom), Reason: "from is required"}
		}
		if sel.To == nil || sel.To.IsZero() {
			return DateRange{}, &InvalidPeriodError{Period: string(PeriodCustom), Reason: "to is required"}
		}
		return NewDateRange(*sel.From, *sel.To, loc)
	case "":
		return DateRange{}, &InvalidPeriodError{Reason: "period is required"}
	default:
		return DateRange{}, &InvalidPeriodError{Period: string(sel.Period), Reason: "unknown period"}
	}
}

// ParseDate parses a YYYY-MM-DD calendar date in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(value), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return t, nil
}

// dateOf converts an instant to its calendar date in loc.
func dateOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// civilDate keeps the calendar fields of t and places them in loc.
func civilDate(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func daysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
