package bookings

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/staydesk/staydesk/internal/reports"
)

func sampleOptions() SampleOptions {
	return SampleOptions{
		Properties: []string{"lagoon", "harbor"},
		Start:      time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Days:       10,
		PerDay:     5,
		Seed:       42,
	}
}

func TestGenerateSampleIsDeterministic(t *testing.T) {
	first := GenerateSample(sampleOptions())
	second := GenerateSample(sampleOptions())
	require.NotEmpty(t, first)
	assert.Equal(t, first, second)

	ids := map[string]bool{}
	window := reports.DateRange{From: sampleOptions().Start, To: sampleOptions().Start.AddDate(0, 0, 9)}
	for _, r := range first {
		assert.False(t, ids[r.ID], "duplicate id %s", r.ID)
		ids[r.ID] = true
		assert.True(t, window.Contains(r.CreatedAt), "record %s outside window", r.ID)
		assert.True(t, r.Amount.IsPositive())
		assert.Contains(t, []string{"lagoon", "harbor"}, r.Property)
	}
	assert.Empty(t, GenerateSample(SampleOptions{Days: 3, PerDay: 2}))
}

func TestDocumentDecodesBack(t *testing.T) {
	rec := GenerateSample(sampleOptions())[0]

	raw, err := bson.Marshal(Document(rec))
	require.NoError(t, err)
	decoded := decodeBooking(bson.Raw(raw))

	assert.Equal(t, rec.ID, decoded.ID)
	assert.Equal(t, rec.Property, decoded.Property)
	assert.Equal(t, rec.Status, decoded.Status)
	assert.Equal(t, rec.RoomsCount, decoded.RoomsCount)
	assert.True(t, rec.Amount.Equal(decoded.Amount), "amount %s != %s", rec.Amount, decoded.Amount)
	assert.True(t, rec.CreatedAt.Equal(decoded.CreatedAt))
}

type recordingCopier struct {
	table   pgx.Identifier
	columns []string
	rows    [][]any
}

func (c *recordingCopier) CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	c.table = table
	c.columns = columns
	for src.Next() {
		values, err := src.Values()
		if err != nil {
			return 0, err
		}
		c.rows = append(c.rows, values)
	}
	return int64(len(c.rows)), src.Err()
}

func TestCopyToPostgres(t *testing.T) {
	records := GenerateSample(sampleOptions())
	records[0].CreatedAt = time.Time{}
	copier := &recordingCopier{}

	n, err := CopyToPostgres(context.Background(), copier, records)
	require.NoError(t, err)
	assert.Equal(t, int64(len(records)), n)
	assert.Equal(t, pgx.Identifier{"bookings"}, copier.table)
	assert.Equal(t, bookingColumns, copier.columns)
	assert.Nil(t, copier.rows[0][6])
	assert.Equal(t, records[1].Amount.StringFixed(2), copier.rows[1][5])
}
