package reports

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the booking lifecycle states seen by the engine.
type Status string

// Booking statuses.
const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusCheckedIn  Status = "checked-in"
	StatusCheckedOut Status = "checked-out"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every known status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusPending, StatusConfirmed, StatusCheckedIn, StatusCheckedOut, StatusCancelled}
}

// UnknownKey is the sentinel bucket for absent dimension keys and unusable dates.
const UnknownKey = "unknown"

// AllProperties selects every property in a Scope or record query.
const AllProperties = "all"

// IsAllProperties reports whether property selects every property: empty or
// AllProperties in any letter case.
func IsAllProperties(property string) bool {
	property = strings.TrimSpace(property)
	return property == "" || strings.EqualFold(property, AllProperties)
}

// TransactionRecord is a single booking as read from the record store.
type TransactionRecord struct {
	ID           string          `json:"id"`
	Property     string          `json:"property"`
	Status       Status          `json:"status"`
	Source       string          `json:"source"`
	RoomCategory string          `json:"roomCategory"`
	Amount       decimal.Decimal `json:"amount"`
	CreatedAt    time.Time       `json:"createdAt"`
	RoomsCount   int             `json:"roomsCount"`
}

// Rooms returns the room units held by the record, defaulting to one.
func (r TransactionRecord) Rooms() int {
	if r.RoomsCount < 1 {
		return 1
	}
	return r.RoomsCount
}

// Scope narrows a report to a property.
type Scope struct {
	Property string `json:"property"`
}

// All reports whether the scope covers every property.
func (s Scope) All() bool {
	return IsAllProperties(s.Property)
}

// Includes reports whether a record falls inside the scope.
func (s Scope) Includes(rec TransactionRecord) bool {
	return s.All() || rec.Property == s.Property
}

// Bucket carries revenue and count for one dimension key.
type Bucket struct {
	Revenue decimal.Decimal `json:"revenue"`
	Count   int             `json:"count"`
}

// MalformedRecordWarning flags a record aggregated with degraded granularity.
type MalformedRecordWarning struct {
	RecordID string `json:"recordId"`
	Reason   string `json:"reason"`
}

func (w MalformedRecordWarning) String() string {
	return fmt.Sprintf("record %s: %s", w.RecordID, w.Reason)
}

// Aggregate is the reduced summary of one record set. It is rebuilt per
// request and never persisted.
//
// DayOrder lists ByDay keys in the order they were first seen. AvgOccupancy is
// occupied room units over the configured capacity, in percent and capped at
// 100; it ignores stay length and per-property inventory, so treat it as a
// rough indicator only.
type Aggregate struct {
	TotalRevenue     decimal.Decimal          `json:"totalRevenue"`
	TotalRecordCount int                      `json:"totalRecordCount"`
	ByProperty       map[string]Bucket        `json:"byProperty"`
	BySource         map[string]Bucket        `json:"bySource"`
	ByRoomCategory   map[string]Bucket        `json:"byRoomCategory"`
	ByDay            map[string]Bucket        `json:"byDay"`
	StatusCounts     map[Status]int           `json:"statusCounts"`
	DayOrder         []string                 `json:"dayOrder"`
	OccupiedRooms    int                      `json:"occupiedRooms"`
	AvgOccupancy     float64                  `json:"avgOccupancy"`
	AvgDailyRate     float64                  `json:"avgDailyRate"`
	AvgRecordValue   float64                  `json:"avgRecordValue"`
	Warnings         []MalformedRecordWarning `json:"warnings,omitempty"`
}

// Dimension names a categorical breakdown of an Aggregate.
type Dimension string

// Breakdown dimensions.
const (
	DimensionProperty     Dimension = "property"
	DimensionSource       Dimension = "source"
	DimensionRoomCategory Dimension = "room_category"
)

// Dimension returns the breakdown map for the given dimension.
func (a Aggregate) Dimension(d Dimension) map[string]Bucket {
	switch d {
	case DimensionProperty:
		return a.ByProperty
	case DimensionSource:
		return a.BySource
	case DimensionRoomCategory:
		return a.ByRoomCategory
	default:
		return nil
	}
}

// Revenue returns TotalRevenue as a float for KPI math.
func (a Aggregate) Revenue() float64 {
	return a.TotalRevenue.InexactFloat64()
}

// ComparativeKPI pairs a metric's current value with its previous-period value.
// Nil pointers mean the comparison is unavailable.
type ComparativeKPI struct {
	Metric         string   `json:"metric"`
	Current        float64  `json:"current"`
	Previous       *float64 `json:"previous"`
	PercentChange  *float64 `json:"percentChange"`
	AbsoluteChange *float64 `json:"absoluteChange"`
}

// MarshalJSON adds percentDisplay, the one-decimal presentation value, next to
// the full-precision percentChange.
func (k ComparativeKPI) MarshalJSON() ([]byte, error) {
	type kpi ComparativeKPI
	return json.Marshal(struct {
		kpi
		PercentDisplay *float64 `json:"percentDisplay"`
	}{kpi(k), k.PercentDisplay()})
}

// Comparable reports whether previous-period figures are present.
func (k ComparativeKPI) Comparable() bool {
	return k.PercentChange != nil
}

// Granularity controls series bucketing.
type Granularity string

// Supported granularities.
const (
	GranularityDaily   Granularity = "daily"
	GranularityWeekly  Granularity = "weekly"
	GranularityMonthly Granularity = "monthly"
)

// Metric selects the bucket value plotted in a Series.
type Metric string

// Series metrics.
const (
	MetricRevenue Metric = "revenue"
	MetricCount   Metric = "count"
)

// Series is one chart-ready label/value pair of arrays.
type Series struct {
	Metric      Metric      `json:"metric"`
	Granularity Granularity `json:"granularity"`
	Labels      []string    `json:"labels"`
	Values      []float64   `json:"values"`
}

// BreakdownRow is a labeled entry of a categorical table. Share is the row's
// percentage of total revenue.
type BreakdownRow struct {
	Key     string  `json:"key"`
	Name    string  `json:"name"`
	Color   string  `json:"color"`
	Revenue float64 `json:"revenue"`
	Count   int     `json:"count"`
	Share   float64 `json:"share"`
}

// Breakdowns groups the categorical tables of a report.
type Breakdowns struct {
	Property     []BreakdownRow `json:"property"`
	Source       []BreakdownRow `json:"source"`
	RoomCategory []BreakdownRow `json:"roomCategory"`
}

// ReportRequest is the input of a report computation.
type ReportRequest struct {
	Scope       Scope          `json:"scope"`
	Period      PeriodSelector `json:"period"`
	Granularity Granularity    `json:"granularity"`
}

// ReportResult is the plain data bundle handed to the presentation layer.
type ReportResult struct {
	Scope         Scope                    `json:"scope"`
	Period        Period                   `json:"period"`
	Range         DateRange                `json:"range"`
	PreviousRange DateRange                `json:"previousRange"`
	Current       Aggregate                `json:"current"`
	Previous      *Aggregate               `json:"previous,omitempty"`
	KPIs          KPIList                  `json:"kpis"`
	Breakdowns    Breakdowns               `json:"tables"`
	Series        []Series                 `json:"series"`
	GeneratedAt   time.Time                `json:"generatedAt"`
	Warnings      []MalformedRecordWarning `json:"warnings,omitempty"`
}

// ComparisonAvailable reports whether previous-period data was loaded.
func (r ReportResult) ComparisonAvailable() bool {
	return r.Previous != nil
}

var (
	// ErrInvalidPeriod matches every InvalidPeriodError.
	ErrInvalidPeriod = errors.New("reports: invalid period")
	// ErrSourceUnavailable matches every SourceUnavailableError.
	ErrSourceUnavailable = errors.New("reports: record source unavailable")
)

// InvalidPeriodError reports a malformed or incomplete period selector.
type InvalidPeriodError struct {
	Period string
	Reason string
}

func (e *InvalidPeriodError) Error() string {
	if e.Period == "" {
		return fmt.Sprintf("invalid period: %s", e.Reason)
	}
	return fmt.Sprintf("invalid period %q: %s", e.Period, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidPeriod) succeed.
func (e *InvalidPeriodError) Is(target error) bool {
	return target == ErrInvalidPeriod
}

// Fetch windows used in SourceUnavailableError.
const (
	WindowCurrent  = "current"
	WindowPrevious = "previous"
)

// SourceUnavailableError wraps a record fetch failure.
type SourceUnavailableError struct {
	Window string
	Range  DateRange
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("fetch %s records %s: %v", e.Window, e.Range, e.Err)
}

// Unwrap exposes the underlying fetch error.
func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrSourceUnavailable) succeed.
func (e *SourceUnavailableError) Is(target error) bool {
	return target == ErrSourceUnavailable
}
