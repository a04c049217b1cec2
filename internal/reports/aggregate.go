package reports

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// NewAggregate returns an empty aggregate with initialised maps.
func NewAggregate() Aggregate {
	return Aggregate{
		TotalRevenue:   decimal.Zero,
		ByProperty:     map[string]Bucket{},
		BySource:       map[string]Bucket{},
		ByRoomCategory: map[string]Bucket{},
		ByDay:          map[string]Bucket{},
		StatusCounts:   map[Status]int{},
		DayOrder:       []string{},
	}
}

// Aggregate reduces records into per-dimension statistics in a single pass.
// Cancelled records add to counts but never to revenue. Records without a
// usable creation time land in the UnknownKey day and produce a warning.
func (e *Engine) Aggregate(records []TransactionRecord, scope Scope) Aggregate {
	agg := NewAggregate()
	for _, rec := range records {
		if !scope.Includes(rec) {
			continue
		}
		revenue := decimal.Zero
		if rec.Status != StatusCancelled {
			revenue = rec.Amount
		}

		agg.TotalRecordCount++
		agg.TotalRevenue = agg.TotalRevenue.Add(revenue)
		agg.StatusCounts[rec.Status]++

		addTo(agg.ByProperty, keyOrUnknown(rec.Property), revenue)
		addTo(agg.BySource, keyOrUnknown(rec.Source), revenue)
		addTo(agg.ByRoomCategory, keyOrUnknown(rec.RoomCategory), revenue)

		day := UnknownKey
		if rec.CreatedAt.IsZero() {
			agg.Warnings = append(agg.Warnings, MalformedRecordWarning{RecordID: rec.ID, Reason: "missing or unparseable createdAt"})
		} else {
			day = rec.CreatedAt.In(e.cfg.Location).Format(DateLayout)
		}
		if _, seen := agg.ByDay[day]; !seen {
			agg.DayOrder = append(agg.DayOrder, day)
		}
		addTo(agg.ByDay, day, revenue)

		if rec.Status == StatusConfirmed || rec.Status == StatusCheckedIn {
			agg.OccupiedRooms += rec.Rooms()
		}
	}

	agg.AvgOccupancy = occupancy(agg.OccupiedRooms, e.cfg.RoomCapacity)
	if agg.TotalRecordCount > 0 {
		avg := agg.TotalRevenue.Div(decimal.NewFromInt(int64(agg.TotalRecordCount))).InexactFloat64()
		agg.AvgDailyRate = avg
		agg.AvgRecordValue = avg
	}
	return agg
}

func addTo(m map[string]Bucket, key string, revenue decimal.Decimal) {
	b := m[key]
	b.Revenue = b.Revenue.Add(revenue)
	b.Count++
	m[key] = b
}

func keyOrUnknown(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return UnknownKey
	}
	return key
}

func occupancy(occupied, capacity int) float64 {
	if capacity <= 0 || occupied <= 0 {
		return 0
	}
	return math.Min(float64(occupied)/float64(capacity)*100, 100)
}
