package reports

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport(t *testing.T, withPrevious bool) ReportResult {
	t.Helper()
	e := newTestEngine()
	created := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	in := AssembleInput{
		Request: ReportRequest{Period: Named(PeriodLast7Days)},
		Current: []TransactionRecord{
			rec("1", "lagoon", StatusConfirmed, 300, created),
			rec("2", "harbor", StatusCheckedOut, 100, created.AddDate(0, 0, 1)),
			rec("3", "harbor", StatusCancelled, 50, created),
		},
		Previous:        []TransactionRecord{rec("4", "lagoon", StatusConfirmed, 200, created.AddDate(0, 0, -7))},
		PreviousMissing: !withPrevious,
	}
	result, err := e.Assemble(in)
	require.NoError(t, err)
	return result
}

func TestKPITableLeavesUnavailableCellsEmpty(t *testing.T) {
	table := sampleReport(t, false).KPIs.Table()

	assert.Equal(t, []string{"Metric", "Current", "Previous", "Change %", "Change"}, table.Headers)
	require.Len(t, table.Rows, 6)
	for _, row := range table.Rows {
		assert.Equal(t, "", row[2])
		assert.Equal(t, "", row[3])
		assert.Equal(t, "", row[4])
	}
}

func TestKPITableWithComparison(t *testing.T) {
	table := sampleReport(t, true).Table()

	require.NotEmpty(t, table.Rows)
	revenue := table.Rows[0]
	assert.Equal(t, KPIRevenue, revenue[0])
	assert.Equal(t, 400.0, revenue[1])
	assert.Equal(t, 200.0, revenue[2])
	assert.Equal(t, 100.0, revenue[3])
	assert.Equal(t, 200.0, revenue[4])
}

func TestBreakdownTableOrderedByRevenue(t *testing.T) {
	result := sampleReport(t, true)

	table, err := result.TableByName(TableProperty)
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "lagoon", table.Rows[0][0])
	assert.Equal(t, "Lagoon", table.Rows[0][1])
	assert.Equal(t, 75.0, table.Rows[0][4])
	assert.Equal(t, 2, table.Rows[1][3])
}

func TestDailyAndStatusTables(t *testing.T) {
	result := sampleReport(t, true)

	daily, err := result.TableByName(TableDaily)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"2025-03-10", 300.0, 2}, {"2025-03-11", 100.0, 1}}, daily.Rows)

	status, err := result.TableByName(TableStatus)
	require.NoError(t, err)
	assert.Equal(t, [][]any{
		{string(StatusConfirmed), 1},
		{string(StatusCheckedOut), 1},
		{string(StatusCancelled), 1},
	}, status.Rows)
}

func TestTableByNameUnknown(t *testing.T) {
	_, err := sampleReport(t, false).TableByName("forecast")
	assert.Error(t, err)
}

func TestTablesCoversEveryName(t *testing.T) {
	tables := sampleReport(t, false).Tables()
	for _, name := range TableNames() {
		assert.Contains(t, tables, name)
		assert.NotEmpty(t, tables[name].Headers)
	}
}

func TestSeriesTable(t *testing.T) {
	s := Series{Metric: MetricRevenue, Labels: []string{"Week 10", "Week 11"}, Values: []float64{10.456, 3}}
	table := Export(s)
	assert.Equal(t, []string{"Label", "revenue"}, table.Headers)
	assert.Equal(t, [][]any{{"Week 10", 10.46}, {"Week 11", 3.0}}, table.Rows)
}
