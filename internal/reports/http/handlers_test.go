package reporthttp

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staydesk/staydesk/internal/platform/httpx"
	"github.com/staydesk/staydesk/internal/reports"
)

type stubSource struct {
	mu       sync.Mutex
	calls    []string
	current  []reports.TransactionRecord
	previous []reports.TransactionRecord
	err      error
}

func (s *stubSource) Query(_ context.Context, property string, r reports.DateRange) ([]reports.TransactionRecord, error) {
	s.mu.Lock()
	s.calls = append(s.calls, property+"@"+r.String())
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if r.To.Equal(time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)) {
		return s.current, nil
	}
	return s.previous, nil
}

func (s *stubSource) Properties(context.Context) ([]string, error) {
	return []string{"harbor", "lagoon"}, nil
}

type stubBumper struct {
	version int64
	err     error
}

func (b *stubBumper) Bump(context.Context) (int64, error) {
	b.version++
	return b.version, b.err
}

func record(id, property string, status reports.Status, amount int64, day int) reports.TransactionRecord {
	return reports.TransactionRecord{
		ID:           id,
		Property:     property,
		Status:       status,
		Source:       "website",
		RoomCategory: "suite",
		Amount:       decimal.NewFromInt(amount),
		CreatedAt:    time.Date(2025, 3, day, 12, 0, 0, 0, time.UTC),
		RoomsCount:   1,
	}
}

func newTestRouter(t *testing.T, source *stubSource, bumper CacheBumper) http.Handler {
	t.Helper()
	engine := reports.NewEngine(reports.Config{RoomCapacity: 10}, nil)
	engine.WithNow(func() time.Time { return time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC) })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := reports.NewService(engine, source, reports.ServiceOptions{Logger: logger})
	h := NewHandler(logger, svc, engine, source, bumper)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func defaultSource() *stubSource {
	return &stubSource{
		current: []reports.TransactionRecord{
			record("c1", "lagoon", reports.StatusConfirmed, 800, 10),
			record("c2", "harbor", reports.StatusCancelled, 200, 11),
		},
		previous: []reports.TransactionRecord{
			record("p1", "lagoon", reports.StatusConfirmed, 400, 3),
		},
	}
}

func TestReportEndpointReturnsJSON(t *testing.T) {
	source := defaultSource()
	rr := httptest.NewRecorder()
	newTestRouter(t, source, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports?period=LAST7DAYS&granularity=weekly", nil))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var body struct {
		Period string `json:"period"`
		Range  struct {
			From string `json:"from"`
			To   string `json:"to"`
			Days int    `json:"days"`
		} `json:"range"`
		KPIs []struct {
			Metric         string   `json:"metric"`
			Current        float64  `json:"current"`
			PercentChange  *float64 `json:"percentChange"`
			PercentDisplay *float64 `json:"percentDisplay"`
		} `json:"kpis"`
		Series []struct {
			Granularity string   `json:"granularity"`
			Labels      []string `json:"labels"`
		} `json:"series"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "last7days", body.Period)
	assert.Equal(t, "2025-03-09", body.Range.From)
	assert.Equal(t, 7, body.Range.Days)
	require.NotEmpty(t, body.KPIs)
	assert.Equal(t, reports.KPIRevenue, body.KPIs[0].Metric)
	assert.Equal(t, 800.0, body.KPIs[0].Current)
	require.NotNil(t, body.KPIs[0].PercentChange)
	assert.InDelta(t, 100.0, *body.KPIs[0].PercentChange, 0.001)
	require.NotNil(t, body.KPIs[0].PercentDisplay)
	assert.Equal(t, 100.0, *body.KPIs[0].PercentDisplay)
	require.NotEmpty(t, body.Series)
	assert.Equal(t, "weekly", body.Series[0].Granularity)
	assert.Len(t, source.calls, 2)
}

func TestReportEndpointDefaultsToLast7Days(t *testing.T) {
	source := defaultSource()
	rr := httptest.NewRecorder()
	newTestRouter(t, source, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, source.calls, "all@2025-03-09..2025-03-15")
}

func TestReportEndpointValidation(t *testing.T) {
	cases := map[string]string{
		"unknown period":    "/reports?period=fortnight",
		"custom without to": "/reports?period=custom&from=2025-01-01",
		"bad date":          "/reports?period=custom&from=2025-13-01&to=2025-01-10",
		"inverted custom":   "/reports?period=custom&from=2025-02-01&to=2025-01-10",
		"bad granularity":   "/reports?granularity=hourly",
		"bad table":         "/reports/export.csv?table=forecast",
		"bounds with named": "/reports?period=last7days&from=2025-01-01",
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			source := defaultSource()
			rr := httptest.NewRecorder()
			newTestRouter(t, source, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
			assert.Empty(t, source.calls)
		})
	}
}

func TestValidationProblemListsFields(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(t, defaultSource(), nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports?period=custom&from=2025-01-01", nil))

	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	assert.Equal(t, "required_if", problem.Fields["to"])
}

func TestBoundsWithNamedPeriodListFields(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(t, defaultSource(), nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports?period=today&from=2025-01-01&to=2025-01-02", nil))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	assert.Equal(t, map[string]string{"from": "custom_only", "to": "custom_only"}, problem.Fields)
}

func TestReportEndpointPropertyAllIsCaseInsensitive(t *testing.T) {
	source := defaultSource()
	rr := httptest.NewRecorder()
	newTestRouter(t, source, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports?period=today&property=ALL", nil))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NotEmpty(t, source.calls)
	for _, call := range source.calls {
		assert.True(t, strings.HasPrefix(call, reports.AllProperties+"@"), call)
	}
}

func TestReportEndpointSourceFailure(t *testing.T) {
	source := &stubSource{err: errors.New("connection refused")}
	rr := httptest.NewRecorder()
	newTestRouter(t, source, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports?period=today", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.NotContains(t, rr.Body.String(), "connection refused")
}

func TestCSVExport(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(t, defaultSource(), nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports/export.csv?table=property", nil))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "report-property-2025-03-09-2025-03-15.csv")

	rows, err := csv.NewReader(strings.NewReader(rr.Body.String())).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Key", "Name", "Revenue", "Bookings", "Share %"},
		{"lagoon", "Lagoon", "800", "1", "100"},
		{"harbor", "Harbor", "0", "1", "0"},
	}, rows)
}

func TestCSVExportKPIsAgainstEmptyPreviousWindow(t *testing.T) {
	source := defaultSource()
	source.previous = nil
	rr := httptest.NewRecorder()
	newTestRouter(t, source, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports/export.csv", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	rows, err := csv.NewReader(strings.NewReader(rr.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 7)
	assert.Equal(t, []string{"revenue", "800", "0", "100", "800"}, rows[1])
}

func TestJSONExport(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(t, defaultSource(), nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports/export.json?table=status", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var table reports.Table
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &table))
	assert.Equal(t, []string{"Status", "Bookings"}, table.Headers)
	assert.Len(t, table.Rows, 2)
}

func TestPeriodsEndpoint(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(t, defaultSource(), nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports/periods", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Timezone string `json:"timezone"`
		Periods  []struct {
			Period   string `json:"period"`
			Previous *struct {
				From string `json:"from"`
			} `json:"previous"`
		} `json:"periods"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "UTC", body.Timezone)
	require.Len(t, body.Periods, len(reports.Periods()))
	assert.Equal(t, "today", body.Periods[0].Period)
	require.NotNil(t, body.Periods[0].Previous)
	assert.Equal(t, "2025-03-14", body.Periods[0].Previous.From)
	assert.Nil(t, body.Periods[len(body.Periods)-1].Previous)
}

func TestPropertiesEndpoint(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(t, defaultSource(), nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports/properties", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"properties":["harbor","lagoon"]}`, rr.Body.String())
}

func TestCacheBump(t *testing.T) {
	bumper := &stubBumper{version: 4}
	rr := httptest.NewRecorder()
	newTestRouter(t, defaultSource(), bumper).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/reports/cache/bump", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"version":5}`, rr.Body.String())

	rr = httptest.NewRecorder()
	newTestRouter(t, defaultSource(), nil).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/reports/cache/bump", nil))
	assert.Equal(t, http.StatusNotImplemented, rr.Code)
}
