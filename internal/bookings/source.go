// Package bookings adapts booking stores to the reports.RecordSource contract.
package bookings

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/staydesk/staydesk/internal/reports"
)

// ErrPropertiesUnsupported is returned when a source cannot enumerate properties.
var ErrPropertiesUnsupported = errors.New("bookings: property listing not supported")

// PropertyLister enumerates the properties known to a store.
type PropertyLister interface {
	Properties(ctx context.Context) ([]string, error)
}

// Store is a record source that can also list its properties.
type Store interface {
	reports.RecordSource
	PropertyLister
}

// normalizeStatus maps store spellings onto reports.Status values.
func normalizeStatus(raw string) reports.Status {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("_", "-", " ", "-").Replace(s)
	switch s {
	case "canceled":
		return reports.StatusCancelled
	case "checkedin":
		return reports.StatusCheckedIn
	case "checkedout":
		return reports.StatusCheckedOut
	}
	return reports.Status(s)
}

// parseAmount reads a monetary amount. Unparseable input counts as zero.
func parseAmount(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// parseTimestamp accepts RFC 3339 timestamps and bare dates. Failures yield the
// zero time so the record lands in the unknown day bucket.
func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", reports.DateLayout} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

func propertyFilter(property string) (string, bool) {
	if reports.IsAllProperties(property) {
		return "", false
	}
	return strings.TrimSpace(property), true
}
