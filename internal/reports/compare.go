package reports

import "math"

// KPI metric names.
const (
	KPIRevenue           = "revenue"
	KPIOccupancy         = "occupancy"
	KPIBookings          = "bookings"
	KPIAvgDailyRate      = "avg_daily_rate"
	KPIConfirmedBookings = "confirmed_bookings"
	KPICancelledBookings = "cancelled_bookings"
)

// KPIList is the ordered set of comparative KPIs of a report.
type KPIList []ComparativeKPI

// Get returns the KPI with the given metric name.
func (l KPIList) Get(metric string) (ComparativeKPI, bool) {
	for _, k := range l {
		if k.Metric == metric {
			return k, true
		}
	}
	return ComparativeKPI{}, false
}

type kpiMetric struct {
	name  string
	value func(Aggregate) float64
}

var kpiMetrics = []kpiMetric{
	{KPIRevenue, func(a Aggregate) float64 { return a.Revenue() }},
	{KPIOccupancy, func(a Aggregate) float64 { return a.AvgOccupancy }},
	{KPIBookings, func(a Aggregate) float64 { return float64(a.TotalRecordCount) }},
	{KPIAvgDailyRate, func(a Aggregate) float64 { return a.AvgDailyRate }},
	{KPIConfirmedBookings, func(a Aggregate) float64 {
		return float64(a.StatusCounts[StatusConfirmed] + a.StatusCounts[StatusCheckedIn] + a.StatusCounts[StatusCheckedOut])
	}},
	{KPICancelledBookings, func(a Aggregate) float64 { return float64(a.StatusCounts[StatusCancelled]) }},
}

// Compare merges the current aggregate with the previous one into KPIs. A nil
// previous leaves every comparison field nil rather than inventing a delta.
func Compare(current Aggregate, previous *Aggregate) KPIList {
	out := make(KPIList, 0, len(kpiMetrics))
	for _, m := range kpiMetrics {
		kpi := ComparativeKPI{Metric: m.name, Current: m.value(current)}
		if previous != nil {
			prev := m.value(*previous)
			pct := PercentChange(kpi.Current, prev)
			abs := kpi.Current - prev
			kpi.Previous = &prev
			kpi.PercentChange = &pct
			kpi.AbsoluteChange = &abs
		}
		out = append(out, kpi)
	}
	return out
}

// PercentChange returns (current - previous) / previous * 100. When previous is
// zero there is no base to divide by: the result is 100 if current is positive
// and 0 otherwise.
func PercentChange(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return (current - previous) / previous * 100
}

// PercentDisplay returns the percent change rounded to one decimal place, or
// nil when no comparison is available.
func (k ComparativeKPI) PercentDisplay() *float64 {
	if k.PercentChange == nil {
		return nil
	}
	v := round1(*k.PercentChange)
	return &v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
