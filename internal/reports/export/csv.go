// Package export serialises report tables for downloads.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/staydesk/staydesk/internal/reports"
)

// WriteTableCSV writes the header row followed by every data row. Empty
// cells are written as empty strings.
func WriteTableCSV(w io.Writer, table reports.Table) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(table.Headers); err != nil {
		return err
	}
	for _, row := range table.Rows {
		record := make([]string, len(row))
		for i, cell := range row {
			record[i] = FormatCell(cell)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// FormatCell renders a table cell without rounding.
func FormatCell(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case int:
		return strconv.Itoa(c)
	case int64:
		return strconv.FormatInt(c, 10)
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case *float64:
		if c == nil {
			return ""
		}
		return strconv.FormatFloat(*c, 'f', -1, 64)
	case decimal.Decimal:
		return c.String()
	default:
		return fmt.Sprint(c)
	}
}
