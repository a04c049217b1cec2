// Package cli implements the operator subcommands of the staydesk binary.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/staydesk/staydesk/internal/reports"
	"github.com/staydesk/staydesk/internal/reports/export"
)

// ReportGenerator computes reports.
type ReportGenerator interface {
	Generate(ctx context.Context, req reports.ReportRequest) (reports.ReportResult, error)
}

// ExportOptions defines the flags of the export command.
type ExportOptions struct {
	Period      string
	From        string
	To          string
	Property    string
	Table       string
	Granularity string
	JSONOutput  bool
	Location    *time.Location
	Stdout      io.Writer
	Stderr      io.Writer
}

// ExportCommand generates one report and prints a single table. It returns
// the process exit code: 1 for bad flags, 2 when the report failed.
func ExportCommand(ctx context.Context, gen ReportGenerator, opts ExportOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	req, err := buildRequest(opts)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "export: %v\n", err)
		return 1
	}
	tableName := strings.TrimSpace(opts.Table)
	if tableName == "" {
		tableName = reports.TableKPIs
	}

	result, err := gen.Generate(ctx, req)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "export: %v\n", err)
		return 2
	}
	table, err := result.TableByName(tableName)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "export: %v\n", err)
		return 1
	}

	if opts.JSONOutput {
		enc := json.NewEncoder(opts.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(table); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "export: encode json: %v\n", err)
			return 2
		}
		return 0
	}
	if err := export.WriteTableCSV(opts.Stdout, table); err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "export: write csv: %v\n", err)
		return 2
	}
	return 0
}

func buildRequest(opts ExportOptions) (reports.ReportRequest, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	name := opts.Period
	if strings.TrimSpace(name) == "" {
		name = string(reports.PeriodLast7Days)
	}
	period, err := reports.ParsePeriod(name)
	if err != nil {
		return reports.ReportRequest{}, err
	}
	sel := reports.Named(period)
	if period != reports.PeriodCustom && (opts.From != "" || opts.To != "") {
		return reports.ReportRequest{}, fmt.Errorf("--from and --to require --period=custom, got %q", period)
	}
	if period == reports.PeriodCustom {
		if opts.From == "" || opts.To == "" {
			return reports.ReportRequest{}, fmt.Errorf("--from and --to are required for a custom period")
		}
		from, err := reports.ParseDate(opts.From, loc)
		if err != nil {
			return reports.ReportRequest{}, fmt.Errorf("invalid --from: %w", err)
		}
		to, err := reports.ParseDate(opts.To, loc)
		if err != nil {
			return reports.ReportRequest{}, fmt.Errorf("invalid --to: %w", err)
		}
		sel = reports.Custom(from, to)
	}
	granularity := reports.Granularity(strings.ToLower(strings.TrimSpace(opts.Granularity)))
	switch granularity {
	case "", reports.GranularityDaily, reports.GranularityWeekly, reports.GranularityMonthly:
	default:
		return reports.ReportRequest{}, fmt.Errorf("unknown granularity %q", opts.Granularity)
	}
	return reports.ReportRequest{
		Scope:       reports.Scope{Property: strings.TrimSpace(opts.Property)},
		Period:      sel,
		Granularity: granularity,
	}, nil
}
