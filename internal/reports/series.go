package reports

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Bucket re-groups the per-day data of an aggregate into a chart series for one
// metric. The UnknownKey day holds records without a usable date and is not
// plotted.
func (e *Engine) Bucket(agg Aggregate, metric Metric, granularity Granularity) (Series, error) {
	if metric != MetricRevenue && metric != MetricCount {
		return Series{}, fmt.Errorf("reports: unknown series metric %q", metric)
	}
	var groups []seriesGroup
	switch granularity {
	case GranularityDaily, "":
		granularity = GranularityDaily
		groups = e.groupDaily(agg)
	case GranularityWeekly:
		groups = e.groupWeekly(agg)
	case GranularityMonthly:
		groups = e.groupMonthly(agg)
	default:
		return Series{}, fmt.Errorf("reports: unknown granularity %q", granularity)
	}

	series := Series{
		Metric:      metric,
		Granularity: granularity,
		Labels:      make([]string, 0, len(groups)),
		Values:      make([]float64, 0, len(groups)),
	}
	for _, g := range groups {
		series.Labels = append(series.Labels, g.label)
		if metric == MetricRevenue {
			series.Values = append(series.Values, g.revenue.InexactFloat64())
		} else {
			series.Values = append(series.Values, float64(g.count))
		}
	}
	return series, nil
}

// BucketAll builds the revenue and count series for one granularity.
func (e *Engine) BucketAll(agg Aggregate, granularity Granularity) ([]Series, error) {
	out := make([]Series, 0, 2)
	for _, metric := range []Metric{MetricRevenue, MetricCount} {
		s, err := e.Bucket(agg, metric, granularity)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// ParseGranularity validates a granularity name; empty means daily.
func ParseGranularity(value string) (Granularity, error) {
	switch Granularity(value) {
	case "", GranularityDaily:
		return GranularityDaily, nil
	case GranularityWeekly, GranularityMonthly:
		return Granularity(value), nil
	default:
		return "", fmt.Errorf("reports: unknown granularity %q", value)
	}
}

// LegacyWeekNumber returns ceil((dayOfYear + weekdayOfJan1) / 7), where the
// weekday counts from Sunday = 0. Weeks therefore start on Sunday and week 1
// may be partial.
func LegacyWeekNumber(t time.Time) int {
	jan1 := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	return (t.YearDay() + int(jan1.Weekday()) + 6) / 7
}

type seriesGroup struct {
	label   string
	revenue decimal.Decimal
	count   int
}

type groupKey struct {
	year int
	n    int
	name string
}

type datedBucket struct {
	date   time.Time
	bucket Bucket
}

// groupBy folds dated buckets into groups keyed by keyFn, keeping the order
// in which keys first appear.
func groupBy(days []datedBucket, keyFn func(time.Time) (groupKey, string)) []seriesGroup {
	index := map[groupKey]int{}
	var groups []seriesGroup
	for _, d := range days {
		key, label := keyFn(d.date)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, seriesGroup{label: label})
		}
		groups[i].revenue = groups[i].revenue.Add(d.bucket.Revenue)
		groups[i].count += d.bucket.Count
	}
	return groups
}

func (e *Engine) groupDaily(agg Aggregate) []seriesGroup {
	return groupBy(e.chronologicalDays(agg), func(t time.Time) (groupKey, string) {
		return groupKey{year: t.Year(), n: t.YearDay()}, t.Format("Mon 2")
	})
}

func (e *Engine) groupWeekly(agg Aggregate) []seriesGroup {
	iso := e.cfg.WeekScheme == WeekSchemeISO
	return groupBy(e.chronologicalDays(agg), func(t time.Time) (groupKey, string) {
		year, week := t.Year(), LegacyWeekNumber(t)
		if iso {
			year, week = t.ISOWeek()
		}
		return groupKey{year: year, n: week}, fmt.Sprintf("Week %d", week)
	})
}

func (e *Engine) groupMonthly(agg Aggregate) []seriesGroup {
	if e.cfg.MonthOrder == MonthOrderCalendar {
		return groupBy(e.chronologicalDays(agg), func(t time.Time) (groupKey, string) {
			return groupKey{year: t.Year(), n: int(t.Month())}, t.Format("Jan 2006")
		})
	}
	// Keyed by month name alone: equal months of different years share a bucket.
	return groupBy(e.firstSeenDays(agg), func(t time.Time) (groupKey, string) {
		name := t.Format("Jan")
		return groupKey{name: name}, name
	})
}

func (e *Engine) chronologicalDays(agg Aggregate) []datedBucket {
	days := e.datedBuckets(agg, sortedKeys(agg.ByDay))
	sort.SliceStable(days, func(i, j int) bool {
		return days[i].date.Before(days[j].date)
	})
	return days
}

func (e *Engine) firstSeenDays(agg Aggregate) []datedBucket {
	order := agg.DayOrder
	if len(order) != len(agg.ByDay) {
		// Aggregates built elsewhere may lack DayOrder.
		order = sortedKeys(agg.ByDay)
	}
	return e.datedBuckets(agg, order)
}

func (e *Engine) datedBuckets(agg Aggregate, keys []string) []datedBucket {
	out := make([]datedBucket, 0, len(keys))
	for _, key := range keys {
		if key == UnknownKey {
			continue
		}
		t, err := time.ParseInLocation(DateLayout, key, e.cfg.Location)
		if err != nil {
			continue
		}
		out = append(out, datedBucket{date: t, bucket: agg.ByDay[key]})
	}
	return out
}

func sortedKeys(m map[string]Bucket) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
