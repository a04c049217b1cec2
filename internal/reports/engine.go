package reports

import (
	"fmt"
	"time"
)

// DefaultRoomCapacity is the room inventory assumed by AvgOccupancy when no
// capacity is configured.
const DefaultRoomCapacity = 50

// WeekScheme selects how weekly buckets are numbered.
type WeekScheme string

// Week numbering schemes.
const (
	// WeekSchemeLegacy numbers weeks as ceil((dayOfYear + weekdayOfJan1) / 7)
	// with Sunday-based weeks. It disagrees with ISO-8601 around new year.
	WeekSchemeLegacy WeekScheme = "legacy"
	// WeekSchemeISO uses ISO-8601 week numbers.
	WeekSchemeISO WeekScheme = "iso"
)

// MonthOrder selects how monthly buckets are keyed and ordered.
type MonthOrder string

// Month ordering modes.
const (
	// MonthOrderFirstSeen keys buckets by short month name in the order the
	// months first appear in the records.
	MonthOrderFirstSeen MonthOrder = "first-seen"
	// MonthOrderCalendar keys buckets by year and month, sorted chronologically.
	MonthOrderCalendar MonthOrder = "calendar"
)

// Config parameterises the engine. The zero value is usable: UTC,
// DefaultRoomCapacity, legacy weeks and first-seen months.
type Config struct {
	Location     *time.Location
	RoomCapacity int
	WeekScheme   WeekScheme
	MonthOrder   MonthOrder
}

func (c Config) withDefaults() Config {
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.RoomCapacity <= 0 {
		c.RoomCapacity = DefaultRoomCapacity
	}
	if c.WeekScheme == "" {
		c.WeekScheme = WeekSchemeLegacy
	}
	if c.MonthOrder == "" {
		c.MonthOrder = MonthOrderFirstSeen
	}
	return c
}

// Validate reports unsupported option values.
func (c Config) Validate() error {
	switch c.WeekScheme {
	case "", WeekSchemeLegacy, WeekSchemeISO:
	default:
		return fmt.Errorf("reports: unknown week scheme %q", c.WeekScheme)
	}
	switch c.MonthOrder {
	case "", MonthOrderFirstSeen, MonthOrderCalendar:
	default:
		return fmt.Errorf("reports: unknown month order %q", c.MonthOrder)
	}
	if c.RoomCapacity < 0 {
		return fmt.Errorf("reports: room capacity must not be negative")
	}
	return nil
}

// Engine bundles the pure report computations under one configuration. It
// holds no per-request state and is safe for concurrent use.
type Engine struct {
	cfg    Config
	labels *Labeler
	now    func() time.Time
}

// NewEngine constructs an Engine. A nil labeler falls back to NewLabeler(nil).
func NewEngine(cfg Config, labels *Labeler) *Engine {
	if labels == nil {
		labels = NewLabeler(nil)
	}
	return &Engine{cfg: cfg.withDefaults(), labels: labels, now: time.Now}
}

// WithNow overrides the engine clock for testing.
func (e *Engine) WithNow(fn func() time.Time) {
	if fn != nil {
		e.now = fn
	}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Labels returns the category labeler.
func (e *Engine) Labels() *Labeler {
	return e.labels
}

// Location returns the reference timezone.
func (e *Engine) Location() *time.Location {
	return e.cfg.Location
}

// Today returns the current calendar date in the reference timezone.
func (e *Engine) Today() time.Time {
	return dateOf(e.now(), e.cfg.Location)
}
