package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/staydesk/staydesk/internal/bookings"
	jobmetrics "github.com/staydesk/staydesk/internal/jobs"
	"github.com/staydesk/staydesk/internal/reports"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ReportGenerator produces a report for a request.
type ReportGenerator interface {
	Generate(ctx context.Context, req reports.ReportRequest) (reports.ReportResult, error)
}

// ReportWarmupJob generates the common reports so the record cache is hot.
type ReportWarmupJob struct {
	Reports    ReportGenerator
	Properties bookings.PropertyLister
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	// ScopeTimeout bounds each generated report.
	ScopeTimeout time.Duration
}

// NewReportWarmupJob wires dependencies for the warmup handler.
func NewReportWarmupJob(generator ReportGenerator, properties bookings.PropertyLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportWarmupJob {
	return &ReportWarmupJob{
		Reports:      generator,
		Properties:   properties,
		Logger:       logger,
		Metrics:      metrics,
		ScopeTimeout: 20 * time.Second,
	}
}

// Handle processes TaskReportWarmup tasks. A failing scope is logged and
// counted; the run fails only when every scope failed.
func (j *ReportWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Reports == nil {
		return errors.New("report warmup: handler not configured")
	}
	var payload ReportWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("report warmup: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	periods, err := payload.periods()
	if err != nil {
		return fmt.Errorf("report warmup: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskReportWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("run_id", uuid.NewString()))
	start := time.Now()

	scopes := []string{reports.AllProperties}
	if payload.PerProperty {
		properties, err := j.listProperties(ctx)
		if err != nil {
			logger.Warn("list properties, warming all-properties scope only", slog.Any("error", err))
		}
		scopes = append(scopes, properties...)
	}

	var (
		warmed int
		failed int
		last   error
	)
	for _, period := range periods {
		ok, bad := 0, 0
		for _, property := range scopes {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := j.warm(ctx, period, property); err != nil {
				bad++
				last = err
				logger.Error("warm report",
					slog.String("period", string(period)),
					slog.String("property", property),
					slog.Any("error", err),
				)
				continue
			}
			ok++
		}
		j.metrics().AddWarmed(string(period), "ok", ok)
		j.metrics().AddWarmed(string(period), "failed", bad)
		warmed += ok
		failed += bad
	}

	logger.Info("completed report warmup",
		slog.Int("warmed", warmed),
		slog.Int("failed", failed),
		slog.Duration("duration", time.Since(start)),
	)
	if warmed == 0 && failed > 0 {
		return fmt.Errorf("report warmup: all %d scopes failed: %w", failed, last)
	}
	return nil
}

func (j *ReportWarmupJob) warm(ctx context.Context, period reports.Period, property string) error {
	scopeCtx := ctx
	if j.ScopeTimeout > 0 {
		var cancel context.CancelFunc
		scopeCtx, cancel = context.WithTimeout(ctx, j.ScopeTimeout)
		defer cancel()
	}
	_, err := j.Reports.Generate(scopeCtx, reports.ReportRequest{
		Scope:       reports.Scope{Property: property},
		Period:      reports.Named(period),
		Granularity: reports.GranularityDaily,
	})
	return err
}

func (j *ReportWarmupJob) listProperties(ctx context.Context) ([]string, error) {
	if j.Properties == nil {
		return nil, bookings.ErrPropertiesUnsupported
	}
	properties, err := j.Properties.Properties(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(properties))
	for _, p := range properties {
		if reports.IsAllProperties(p) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (j *ReportWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportWarmup))
}

func (j *ReportWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
