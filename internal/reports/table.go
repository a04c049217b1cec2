package reports

import (
	"fmt"
	"sort"
)

// Table is a format-agnostic header and row matrix. Cells hold string, int or
// float64 values.
type Table struct {
	Headers []string `json:"headers"`
	Rows    [][]any  `json:"rows"`
}

// Tabular is implemented by every report shape that can be exported.
type Tabular interface {
	Table() Table
}

// Export converts any exportable report shape into a matrix.
func Export(t Tabular) Table {
	if t == nil {
		return Table{}
	}
	return t.Table()
}

// Table names exposed by ReportResult.Tables.
const (
	TableKPIs         = "kpis"
	TableProperty     = "property"
	TableSource       = "source"
	TableRoomCategory = "room_category"
	TableDaily        = "daily"
	TableStatus       = "status"
)

// TableNames lists the names accepted by ReportResult.TableByName.
func TableNames() []string {
	return []string{TableKPIs, TableProperty, TableSource, TableRoomCategory, TableDaily, TableStatus}
}

// Table renders the KPI list. Unavailable comparisons are empty cells, not zeros.
func (l KPIList) Table() Table {
	t := Table{Headers: []string{"Metric", "Current", "Previous", "Change %", "Change"}}
	for _, k := range l {
		row := []any{k.Metric, round2(k.Current), "", "", ""}
		if k.Previous != nil {
			row[2] = round2(*k.Previous)
		}
		if pct := k.PercentDisplay(); pct != nil {
			row[3] = *pct
		}
		if k.AbsoluteChange != nil {
			row[4] = round2(*k.AbsoluteChange)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Table renders the aggregate in long form: one row per dimension key.
func (a Aggregate) Table() Table {
	t := Table{Headers: []string{"Dimension", "Key", "Revenue", "Count"}}
	t.Rows = append(t.Rows, []any{"total", AllProperties, round2(a.Revenue()), a.TotalRecordCount})
	for _, dim := range []Dimension{DimensionProperty, DimensionSource, DimensionRoomCategory} {
		m := a.Dimension(dim)
		for _, key := range sortedKeys(m) {
			b := m[key]
			t.Rows = append(t.Rows, []any{string(dim), key, round2(b.Revenue.InexactFloat64()), b.Count})
		}
	}
	for _, key := range sortedKeys(a.ByDay) {
		b := a.ByDay[key]
		t.Rows = append(t.Rows, []any{"day", key, round2(b.Revenue.InexactFloat64()), b.Count})
	}
	for _, status := range statusKeys(a.StatusCounts) {
		t.Rows = append(t.Rows, []any{"status", string(status), "", a.StatusCounts[status]})
	}
	return t
}

// Table renders a series as label/value rows.
func (s Series) Table() Table {
	t := Table{Headers: []string{"Label", string(s.Metric)}}
	for i, label := range s.Labels {
		var v float64
		if i < len(s.Values) {
			v = s.Values[i]
		}
		t.Rows = append(t.Rows, []any{label, round2(v)})
	}
	return t
}

// BreakdownTable renders labeled categorical rows.
func BreakdownTable(rows []BreakdownRow) Table {
	t := Table{Headers: []string{"Key", "Name", "Revenue", "Bookings", "Share %"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{r.Key, r.Name, round2(r.Revenue), r.Count, round1(r.Share)})
	}
	return t
}

// DailyTable renders the per-day buckets in chronological order.
func DailyTable(a Aggregate) Table {
	t := Table{Headers: []string{"Date", "Revenue", "Bookings"}}
	for _, key := range sortedKeys(a.ByDay) {
		b := a.ByDay[key]
		t.Rows = append(t.Rows, []any{key, round2(b.Revenue.InexactFloat64()), b.Count})
	}
	return t
}

// StatusTable renders the status counts in lifecycle order.
func StatusTable(a Aggregate) Table {
	t := Table{Headers: []string{"Status", "Bookings"}}
	for _, status := range statusKeys(a.StatusCounts) {
		t.Rows = append(t.Rows, []any{string(status), a.StatusCounts[status]})
	}
	return t
}

// Table renders the headline KPI table of the report.
func (r ReportResult) Table() Table {
	return r.KPIs.Table()
}

// TableByName returns one of the named report tables.
func (r ReportResult) TableByName(name string) (Table, error) {
	switch name {
	case TableKPIs, "":
		return r.KPIs.Table(), nil
	case TableProperty:
		return BreakdownTable(r.Breakdowns.Property), nil
	case TableSource:
		return BreakdownTable(r.Breakdowns.Source), nil
	case TableRoomCategory:
		return BreakdownTable(r.Breakdowns.RoomCategory), nil
	case TableDaily:
		return DailyTable(r.Current), nil
	case TableStatus:
		return StatusTable(r.Current), nil
	default:
		return Table{}, fmt.Errorf("reports: unknown table %q", name)
	}
}

// Tables returns every named table of the report.
func (r ReportResult) Tables() map[string]Table {
	out := make(map[string]Table, len(TableNames()))
	for _, name := range TableNames() {
		t, _ := r.TableByName(name)
		out[name] = t
	}
	return out
}

// statusKeys orders known statuses first, then any others alphabetically.
func statusKeys(m map[Status]int) []Status {
	known := map[Status]bool{}
	var out []Status
	for _, s := range Statuses() {
		known[s] = true
		if _, ok := m[s]; ok {
			out = append(out, s)
		}
	}
	var extra []Status
	for s := range m {
		if !known[s] {
			extra = append(extra, s)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}
