package bookings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/staydesk/staydesk/internal/reports"
)

// Document field names of the bookings collection.
const (
	fieldID           = "_id"
	fieldProperty     = "propertyId"
	fieldStatus       = "status"
	fieldSource       = "source"
	fieldRoomCategory = "roomCategory"
	fieldAmount       = "totalAmount"
	fieldCreatedAt    = "createdAt"
	fieldRooms        = "roomsCount"
)

type collection interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	Distinct(ctx context.Context, fieldName string, filter interface{}, opts ...*options.DistinctOptions) ([]interface{}, error)
}

// MongoSource reads bookings from a document collection. createdAt may be
// stored as a BSON date, as Unix seconds or as an ISO string; each encoding
// has its own branch in the range filter.
type MongoSource struct {
	coll collection
}

// NewMongoSource constructs a source over a collection.
func NewMongoSource(coll collection) *MongoSource {
	return &MongoSource{coll: coll}
}

// Query implements reports.RecordSource.
func (s *MongoSource) Query(ctx context.Context, property string, r reports.DateRange) ([]reports.TransactionRecord, error) {
	if s == nil || s.coll == nil {
		return nil, errors.New("bookings: mongo source not configured")
	}
	start, end := r.Start(), r.End()
	filter := createdAtFilter(start, end)
	if p, ok := propertyFilter(property); ok {
		filter[fieldProperty] = p
	}
	opts := options.Find().SetSort(bson.D{{Key: fieldCreatedAt, Value: 1}, {Key: fieldID, Value: 1}})

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("bookings: find: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	records := make([]reports.TransactionRecord, 0)
	for cursor.Next(ctx) {
		rec := decodeBooking(cursor.Current)
		if !rec.CreatedAt.IsZero() && (rec.CreatedAt.Before(start) || !rec.CreatedAt.Before(end)) {
			continue
		}
		records = append(records, rec)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("bookings: iterate: %w", err)
	}
	return records, nil
}

// Properties lists the distinct property ids in the collection.
func (s *MongoSource) Properties(ctx context.Context) ([]string, error) {
	if s == nil || s.coll == nil {
		return nil, errors.New("bookings: mongo source not configured")
	}
	values, err := s.coll.Distinct(ctx, fieldProperty, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("bookings: distinct %s: %w", fieldProperty, err)
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok && strings.TrimSpace(id) != "" {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

// createdAtFilter matches [start, end) for every createdAt encoding. Range
// operators only compare values of the same BSON type, so dates, Unix seconds
// and strings each get a clause. String timestamps compare lexically by their
// date prefix; that clause is widened by a day on each side to allow for zone
// offsets and Query drops the surplus after parsing.
func createdAtFilter(start, end time.Time) bson.M {
	return bson.M{
		"$or": []bson.M{
			{fieldCreatedAt: bson.M{"$gte": start, "$lt": end}},
			{fieldCreatedAt: bson.M{"$gte": start.Unix(), "$lt": end.Unix()}},
			{fieldCreatedAt: bson.M{
				"$gte": start.UTC().AddDate(0, 0, -1).Format(reports.DateLayout),
				"$lt":  end.UTC().AddDate(0, 0, 1).Format(reports.DateLayout),
			}},
		},
	}
}

func decodeBooking(doc bson.Raw) reports.TransactionRecord {
	rec := reports.TransactionRecord{
		ID:           rawString(doc.Lookup(fieldID)),
		Property:     rawString(doc.Lookup(fieldProperty)),
		Status:       normalizeStatus(rawString(doc.Lookup(fieldStatus))),
		Source:       strings.ToLower(strings.TrimSpace(rawString(doc.Lookup(fieldSource)))),
		RoomCategory: strings.ToLower(strings.TrimSpace(rawString(doc.Lookup(fieldRoomCategory)))),
		Amount:       rawDecimal(doc.Lookup(fieldAmount)),
		CreatedAt:    rawTime(doc.Lookup(fieldCreatedAt)),
	}
	if n, ok := doc.Lookup(fieldRooms).AsInt64OK(); ok {
		rec.RoomsCount = int(n)
	}
	return rec
}

func rawString(v bson.RawValue) string {
	switch v.Type {
	case bson.TypeString:
		return v.StringValue()
	case bson.TypeObjectID:
		return v.ObjectID().Hex()
	case bson.TypeInt32, bson.TypeInt64:
		n, _ := v.AsInt64OK()
		return strconv.FormatInt(n, 10)
	default:
		return ""
	}
}

func rawDecimal(v bson.RawValue) decimal.Decimal {
	switch v.Type {
	case bson.TypeDouble:
		return decimal.NewFromFloat(v.Double())
	case bson.TypeInt32, bson.TypeInt64:
		n, _ := v.AsInt64OK()
		return decimal.NewFromInt(n)
	case bson.TypeDecimal128:
		d, _ := parseAmount(v.Decimal128().String())
		return d
	case bson.TypeString:
		d, _ := parseAmount(v.StringValue())
		return d
	default:
		return decimal.Zero
	}
}

func rawTime(v bson.RawValue) time.Time {
	switch v.Type {
	case bson.TypeDateTime:
		return v.Time().UTC()
	case bson.TypeInt32, bson.TypeInt64:
		n, _ := v.AsInt64OK()
		if n <= 0 {
			return time.Time{}
		}
		return time.Unix(n, 0).UTC()
	case bson.TypeString:
		return parseTimestamp(v.StringValue())
	default:
		return time.Time{}
	}
}
