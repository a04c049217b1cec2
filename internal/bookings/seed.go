package bookings

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/staydesk/staydesk/internal/reports"
)

// PostgresSchema creates the bookings table read by PostgresSource.
const PostgresSchema = `CREATE TABLE IF NOT EXISTS bookings (
	id            TEXT PRIMARY KEY,
	property_id   TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'pending',
	source        TEXT NOT NULL DEFAULT '',
	room_category TEXT NOT NULL DEFAULT '',
	amount        NUMERIC(14,2) NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ,
	rooms_count   INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS bookings_created_at_idx ON bookings (created_at);
CREATE INDEX IF NOT EXISTS bookings_property_created_idx ON bookings (property_id, created_at);`

var bookingColumns = []string{"id", "property_id", "status", "source", "room_category", "amount", "created_at", "rooms_count"}

// SampleOptions shapes generated demo bookings.
type SampleOptions struct {
	Properties []string
	Start      time.Time
	Days       int
	PerDay     int
	Seed       uint64
}

var (
	sampleSources    = []string{"website", "phone", "email", "walk-in", "agent", "partner"}
	sampleCategories = []string{"standard", "deluxe", "suite", "family"}
	sampleStatuses   = []reports.Status{
		reports.StatusConfirmed, reports.StatusConfirmed, reports.StatusConfirmed,
		reports.StatusCheckedIn, reports.StatusCheckedOut, reports.StatusPending,
		reports.StatusCancelled,
	}
	sampleBaseRate = map[string]int64{"standard": 90, "deluxe": 140, "suite": 260, "family": 180}
)

// GenerateSample returns deterministic demo bookings: the same options
// always yield the same records.
func GenerateSample(opts SampleOptions) []reports.TransactionRecord {
	if len(opts.Properties) == 0 || opts.Days <= 0 || opts.PerDay <= 0 {
		return nil
	}
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	records := make([]reports.TransactionRecord, 0, opts.Days*opts.PerDay)
	for d := 0; d < opts.Days; d++ {
		day := opts.Start.AddDate(0, 0, d)
		n := 1 + rng.IntN(opts.PerDay)
		for i := 0; i < n; i++ {
			category := sampleCategories[rng.IntN(len(sampleCategories))]
			nights := int64(1 + rng.IntN(4))
			rooms := 1 + rng.IntN(2)
			cents := (sampleBaseRate[category]*100 + int64(rng.IntN(4000))) * nights * int64(rooms)
			records = append(records, reports.TransactionRecord{
				ID:           fmt.Sprintf("BK-%s-%03d", day.Format("20060102"), i),
				Property:     opts.Properties[rng.IntN(len(opts.Properties))],
				Status:       sampleStatuses[rng.IntN(len(sampleStatuses))],
				Source:       sampleSources[rng.IntN(len(sampleSources))],
				RoomCategory: category,
				Amount:       decimal.New(cents, -2),
				CreatedAt:    day.Add(time.Duration(6+rng.IntN(16))*time.Hour + time.Duration(rng.IntN(60))*time.Minute),
				RoomsCount:   rooms,
			})
		}
	}
	return records
}

type copier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// CopyToPostgres bulk loads records into the bookings table.
func CopyToPostgres(ctx context.Context, db copier, records []reports.TransactionRecord) (int64, error) {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		var created any
		if !r.CreatedAt.IsZero() {
			created = r.CreatedAt
		}
		rows = append(rows, []any{r.ID, r.Property, string(r.Status), r.Source, r.RoomCategory, r.Amount.StringFixed(2), created, int32(r.RoomsCount)})
	}
	n, err := db.CopyFrom(ctx, pgx.Identifier{"bookings"}, bookingColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return n, classifyPgError("copy bookings", err)
	}
	return n, nil
}

type inserter interface {
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
}

// InsertToMongo writes records as bookings documents.
func InsertToMongo(ctx context.Context, coll inserter, records []reports.TransactionRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	docs := make([]interface{}, 0, len(records))
	for _, r := range records {
		docs = append(docs, Document(r))
	}
	res, err := coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		return 0, fmt.Errorf("bookings: insert documents: %w", err)
	}
	return len(res.InsertedIDs), nil
}

// Document encodes a record with the field names MongoSource reads.
func Document(r reports.TransactionRecord) bson.D {
	amount, _ := r.Amount.Float64()
	doc := bson.D{
		{Key: fieldID, Value: r.ID},
		{Key: fieldProperty, Value: r.Property},
		{Key: fieldStatus, Value: string(r.Status)},
		{Key: fieldSource, Value: r.Source},
		{Key: fieldRoomCategory, Value: r.RoomCategory},
		{Key: fieldAmount, Value: amount},
		{Key: fieldRooms, Value: int32(r.RoomsCount)},
	}
	if !r.CreatedAt.IsZero() {
		doc = append(doc, bson.E{Key: fieldCreatedAt, Value: r.CreatedAt.UTC()})
	}
	return doc
}
