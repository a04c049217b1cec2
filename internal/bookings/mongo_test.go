package bookings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/staydesk/staydesk/internal/reports"
)

type fakeCollection struct {
	docs     []interface{}
	distinct []interface{}
	err      error
	filter   interface{}
}

func (c *fakeCollection) Find(_ context.Context, filter interface{}, _ ...*options.FindOptions) (*mongo.Cursor, error) {
	c.filter = filter
	if c.err != nil {
		return nil, c.err
	}
	return mongo.NewCursorFromDocuments(c.docs, nil, nil)
}

func (c *fakeCollection) Distinct(_ context.Context, _ string, _ interface{}, _ ...*options.DistinctOptions) ([]interface{}, error) {
	return c.distinct, c.err
}

func TestMongoSourceDecodesMixedDocuments(t *testing.T) {
	oid := primitive.NewObjectID()
	created := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	coll := &fakeCollection{docs: []interface{}{
		bson.M{
			"_id":          oid,
			"propertyId":   "lagoon",
			"status":       "Confirmed",
			"source":       "Agent",
			"roomCategory": "suite",
			"totalAmount":  1200.5,
			"createdAt":    primitive.NewDateTimeFromTime(created),
			"roomsCount":   int32(2),
		},
		bson.M{
			"_id":         "b-2",
			"propertyId":  "lagoon",
			"status":      "checked_out",
			"totalAmount": "99.90",
			"createdAt":   created.Unix(),
		},
		bson.M{
			"_id":         int64(3),
			"propertyId":  "lagoon",
			"status":      "pending",
			"totalAmount": int32(40),
			"createdAt":   "garbage",
		},
	}}

	records, err := NewMongoSource(coll).Query(context.Background(), "lagoon", march(9, 15))
	require.NoError(t, err)
	require.Len(t, records, 3)

	filter, ok := coll.filter.(bson.M)
	require.True(t, ok)
	assert.Equal(t, "lagoon", filter["propertyId"])
	assert.Contains(t, filter, "$or")

	first := records[0]
	assert.Equal(t, oid.Hex(), first.ID)
	assert.Equal(t, reports.StatusConfirmed, first.Status)
	assert.Equal(t, "agent", first.Source)
	assert.True(t, first.Amount.Equal(decimal.RequireFromString("1200.5")))
	assert.True(t, first.CreatedAt.Equal(created))
	assert.Equal(t, 2, first.RoomsCount)

	second := records[1]
	assert.Equal(t, "b-2", second.ID)
	assert.Equal(t, reports.StatusCheckedOut, second.Status)
	assert.True(t, second.Amount.Equal(decimal.RequireFromString("99.90")))
	assert.True(t, second.CreatedAt.Equal(created))

	third := records[2]
	assert.Equal(t, "3", third.ID)
	assert.True(t, third.Amount.Equal(decimal.NewFromInt(40)))
	assert.True(t, third.CreatedAt.IsZero())
}

func TestMongoSourceAllPropertiesHasNoPropertyFilter(t *testing.T) {
	coll := &fakeCollection{}
	records, err := NewMongoSource(coll).Query(context.Background(), reports.AllProperties, march(1, 7))
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NotContains(t, coll.filter.(bson.M), "propertyId")

	_, err = NewMongoSource(coll).Query(context.Background(), "ALL", march(1, 7))
	require.NoError(t, err)
	assert.NotContains(t, coll.filter.(bson.M), "propertyId")
}

func TestMongoSourceFindError(t *testing.T) {
	cause := errors.New("server selection timeout")
	_, err := NewMongoSource(&fakeCollection{err: cause}).Query(context.Background(), "", march(1, 7))
	assert.ErrorIs(t, err, cause)
}

func TestMongoSourceProperties(t *testing.T) {
	coll := &fakeCollection{distinct: []interface{}{"lagoon", "", int32(7), "harbor"}}
	props, err := NewMongoSource(coll).Properties(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"harbor", "lagoon"}, props)
}

func TestMongoSourceFilterCoversEveryTimestampEncoding(t *testing.T) {
	coll := &fakeCollection{}
	_, err := NewMongoSource(coll).Query(context.Background(), "", march(9, 15))
	require.NoError(t, err)

	clauses, ok := coll.filter.(bson.M)["$or"].([]bson.M)
	require.True(t, ok)
	require.Len(t, clauses, 3)

	dates := clauses[0]["createdAt"].(bson.M)
	assert.IsType(t, time.Time{}, dates["$gte"])
	unix := clauses[1]["createdAt"].(bson.M)
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC).Unix(), unix["$gte"])
	assert.Equal(t, time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC).Unix(), unix["$lt"])
	strs := clauses[2]["createdAt"].(bson.M)
	assert.Equal(t, "2025-03-08", strs["$gte"])
	assert.Equal(t, "2025-03-17", strs["$lt"])
}

func TestMongoSourceTrimsStringDatesOutsideRange(t *testing.T) {
	coll := &fakeCollection{docs: []interface{}{
		bson.M{"_id": "early", "propertyId": "lagoon", "status": "confirmed", "totalAmount": 10, "createdAt": "2025-03-08T23:00:00Z"},
		bson.M{"_id": "iso", "propertyId": "lagoon", "status": "confirmed", "totalAmount": 20, "createdAt": "2025-03-10T14:00:00Z"},
		bson.M{"_id": "offset", "propertyId": "lagoon", "status": "confirmed", "totalAmount": 30, "createdAt": "2025-03-16T02:00:00+05:00"},
		bson.M{"_id": "late", "propertyId": "lagoon", "status": "confirmed", "totalAmount": 40, "createdAt": "2025-03-16"},
		bson.M{"_id": "bad", "propertyId": "lagoon", "status": "confirmed", "totalAmount": 50, "createdAt": "2025-03-1x"},
	}}

	records, err := NewMongoSource(coll).Query(context.Background(), "lagoon", march(9, 15))
	require.NoError(t, err)

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	assert.Equal(t, []string{"iso", "offset", "bad"}, ids)
	assert.True(t, records[0].CreatedAt.Equal(time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)))
	assert.True(t, records[1].CreatedAt.Equal(time.Date(2025, 3, 15, 21, 0, 0, 0, time.UTC)))
	assert.True(t, records[2].CreatedAt.IsZero())
}
