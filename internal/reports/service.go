package reports

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RecordSource fetches the booking records created within a date range. An
// empty or AllProperties property selects every property.
//
//go:generate mockgen -destination=mocks/mock_source.go -package=mocks . RecordSource
type RecordSource interface {
	Query(ctx context.Context, property string, r DateRange) ([]TransactionRecord, error)
}

// ServiceOptions tunes a Service.
type ServiceOptions struct {
	Logger  *slog.Logger
	Metrics *Metrics
	// PreviousTimeout bounds the previous-window fetch. Zero means no bound
	// beyond the caller's context.
	PreviousTimeout time.Duration
}

// Service computes reports by fetching both windows from a RecordSource and
// handing the records to the Engine. It keeps no state between requests.
type Service struct {
	engine          *Engine
	source          RecordSource
	logger          *slog.Logger
	metrics         *Metrics
	previousTimeout time.Duration
}

// NewService wires an Engine with a RecordSource.
func NewService(engine *Engine, source RecordSource, opts ServiceOptions) *Service {
	if engine == nil {
		engine = NewEngine(Config{}, nil)
	}
	return &Service{
		engine:          engine,
		source:          source,
		logger:          opts.Logger,
		metrics:         opts.Metrics,
		previousTimeout: opts.PreviousTimeout,
	}
}

// Engine exposes the underlying engine.
func (s *Service) Engine() *Engine {
	return s.engine
}

// Generate resolves the requested period, fetches the current and previous
// windows concurrently and assembles the report. Period errors and current
// fetch errors are fatal; a failed or timed-out previous fetch yields a report
// without comparison figures.
func (s *Service) Generate(ctx context.Context, req ReportRequest) (result ReportResult, err error) {
	start := time.Now()
	defer func() {
		s.metrics.observe(req.Period.Period, start, err)
	}()

	if s.source == nil {
		return ReportResult{}, errors.New("reports: record source not configured")
	}
	current, err := s.engine.Resolve(req.Period)
	if err != nil {
		return ReportResult{}, err
	}
	previous := current.Previous()
	property := req.Scope.Property
	if req.Scope.All() {
		property = AllProperties
	}

	logger := s.log().With(
		slog.String("report_id", uuid.NewString()),
		slog.String("period", string(req.Period.Period)),
		slog.String("property", property),
		slog.String("range", current.String()),
	)

	var (
		currentRecords  []TransactionRecord
		previousRecords []TransactionRecord
		previousErr     error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		records, err := s.source.Query(gctx, property, current)
		if err != nil {
			s.metrics.fetchFailed(WindowCurrent)
			return &SourceUnavailableError{Window: WindowCurrent, Range: current, Err: err}
		}
		currentRecords = records
		return nil
	})
	g.Go(func() error {
		fetchCtx := gctx
		if s.previousTimeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(gctx, s.previousTimeout)
			defer cancel()
		}
		records, err := s.source.Query(fetchCtx, property, previous)
		if err != nil {
			s.metrics.fetchFailed(WindowPrevious)
			previousErr = &SourceUnavailableError{Window: WindowPrevious, Range: previous, Err: err}
			return nil
		}
		previousRecords = records
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Error("fetch current records", slog.Any("error", err))
		return ReportResult{}, err
	}
	if previousErr != nil {
		logger.Warn("previous period unavailable, comparison omitted", slog.Any("error", previousErr))
		s.metrics.comparisonUnavailable()
	}

	result, err = s.engine.Assemble(AssembleInput{
		Request:         req,
		Range:           current,
		PreviousRange:   previous,
		Current:         currentRecords,
		Previous:        previousRecords,
		PreviousMissing: previousErr != nil,
	})
	if err != nil {
		return ReportResult{}, err
	}

	if n := len(result.Warnings); n > 0 {
		s.metrics.malformedRecords(n)
		for _, w := range result.Warnings {
			logger.Warn("malformed record", slog.String("record_id", w.RecordID), slog.String("reason", w.Reason))
		}
	}
	logger.Debug("report generated",
		slog.Int("records", result.Current.TotalRecordCount),
		slog.Bool("comparison", result.ComparisonAvailable()),
		slog.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func (s *Service) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
