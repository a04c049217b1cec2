package reports

import (
	"sort"
	"time"
)

// Breakdown labels the buckets of one dimension and orders them by revenue,
// then by key.
func (e *Engine) Breakdown(agg Aggregate, dim Dimension) []BreakdownRow {
	m := agg.Dimension(dim)
	total := agg.Revenue()
	rows := make([]BreakdownRow, 0, len(m))
	for key, b := range m {
		label := e.labels.Label(dim, key)
		revenue := b.Revenue.InexactFloat64()
		share := 0.0
		if total != 0 {
			share = revenue / total * 100
		}
		rows = append(rows, BreakdownRow{
			Key:     key,
			Name:    label.Name,
			Color:   label.Color,
			Revenue: revenue,
			Count:   b.Count,
			Share:   share,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Revenue != rows[j].Revenue {
			return rows[i].Revenue > rows[j].Revenue
		}
		return rows[i].Key < rows[j].Key
	})
	return rows
}

// AssembleInput carries the fetched records of both windows. A nil Previous
// means the previous window is unavailable.
type AssembleInput struct {
	Request         ReportRequest
	Range           DateRange
	PreviousRange   DateRange
	Current         []TransactionRecord
	Previous        []TransactionRecord
	PreviousMissing bool
}

// Assemble runs aggregation, comparison, bucketing and labeling over records
// that were already fetched. It performs no I/O.
func (e *Engine) Assemble(in AssembleInput) (ReportResult, error) {
	granularity, err := ParseGranularity(string(in.Request.Granularity))
	if err != nil {
		return ReportResult{}, err
	}
	scope := in.Request.Scope

	current := e.Aggregate(in.Current, scope)
	var previous *Aggregate
	if !in.PreviousMissing {
		prev := e.Aggregate(in.Previous, scope)
		previous = &prev
	}

	series, err := e.BucketAll(current, granularity)
	if err != nil {
		return ReportResult{}, err
	}

	return ReportResult{
		Scope:         scope,
		Period:        in.Request.Period.Period,
		Range:         in.Range,
		PreviousRange: in.PreviousRange,
		Current:       current,
		Previous:      previous,
		KPIs:          Compare(current, previous),
		Breakdowns: Breakdowns{
			Property:     e.Breakdown(current, DimensionProperty),
			Source:       e.Breakdown(current, DimensionSource),
			RoomCategory: e.Breakdown(current, DimensionRoomCategory),
		},
		Series:      series,
		GeneratedAt: e.now().In(e.cfg.Location).Truncate(time.Second),
		Warnings:    current.Warnings,
	}, nil
}
