package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/staydesk/staydesk/internal/reports"
)

type querier interface {
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
}

// PostgresSource reads bookings from the bookings table.
type PostgresSource struct {
	db querier
}

// NewPostgresSource constructs a source over a pool or transaction.
func NewPostgresSource(db querier) *PostgresSource {
	return &PostgresSource{db: db}
}

const selectBookings = `SELECT id::text, property_id, status, source, room_category, amount::text, created_at, rooms_count
FROM bookings
WHERE created_at >= $1 AND created_at < $2`

// Query implements reports.RecordSource. The range is half-open on the
// instant after r.To so the whole last day is included.
func (s *PostgresSource) Query(ctx context.Context, property string, r reports.DateRange) ([]reports.TransactionRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("bookings: postgres source not configured")
	}
	sql := selectBookings
	args := []interface{}{r.Start(), r.End()}
	if p, ok := propertyFilter(property); ok {
		sql += " AND property_id = $3"
		args = append(args, p)
	}
	sql += " ORDER BY created_at, id"

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, classifyPgError("query bookings", err)
	}
	defer rows.Close()

	records := make([]reports.TransactionRecord, 0)
	for rows.Next() {
		var id, propertyID, status, source, category, amount pgtype.Text
		var createdAt pgtype.Timestamptz
		var rooms pgtype.Int4
		if err := rows.Scan(&id, &propertyID, &status, &source, &category, &amount, &createdAt, &rooms); err != nil {
			return nil, classifyPgError("scan booking", err)
		}
		rec := reports.TransactionRecord{
			ID:           id.String,
			Property:     propertyID.String,
			Status:       normalizeStatus(status.String),
			Source:       strings.ToLower(strings.TrimSpace(source.String)),
			RoomCategory: strings.ToLower(strings.TrimSpace(category.String)),
			RoomsCount:   int(rooms.Int32),
		}
		rec.Amount, _ = parseAmount(amount.String)
		if createdAt.Valid {
			rec.CreatedAt = createdAt.Time
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPgError("iterate bookings", err)
	}
	return records, nil
}

// Properties lists the distinct property ids with at least one booking.
func (s *PostgresSource) Properties(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("bookings: postgres source not configured")
	}
	rows, err := s.db.Query(ctx, `SELECT DISTINCT property_id FROM bookings WHERE property_id <> '' ORDER BY property_id`)
	if err != nil {
		return nil, classifyPgError("list properties", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, classifyPgError("scan property", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPgError("iterate properties", err)
	}
	return out, nil
}

// classifyPgError adds the SQLSTATE to server errors.
func classifyPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("bookings: %s: %s (%s): %w", op, pgErr.Message, pgErr.Code, err)
	}
	return fmt.Errorf("bookings: %s: %w", op, err)
}
