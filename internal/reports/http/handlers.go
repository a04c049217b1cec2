package reporthttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/staydesk/staydesk/internal/platform/httpx"
	"github.com/staydesk/staydesk/internal/reports"
	"github.com/staydesk/staydesk/internal/reports/export"
)

const (
	defaultPeriod  = reports.PeriodLast7Days
	requestTimeout = 10 * time.Second
)

// ReportService computes reports.
type ReportService interface {
	Generate(ctx context.Context, req reports.ReportRequest) (reports.ReportResult, error)
}

// PropertyLister enumerates reportable properties.
type PropertyLister interface {
	Properties(ctx context.Context) ([]string, error)
}

// CacheBumper invalidates cached record sets.
type CacheBumper interface {
	Bump(ctx context.Context) (int64, error)
}

// Handler serves the reporting endpoints.
type Handler struct {
	logger     *slog.Logger
	service    ReportService
	engine     *reports.Engine
	properties PropertyLister
	cache      CacheBumper
	validate   *validator.Validate
	bufPool    sync.Pool
	timeout    time.Duration
}

// NewHandler constructs the reports HTTP handler. properties and cache may be nil.
func NewHandler(logger *slog.Logger, service ReportService, engine *reports.Engine, properties PropertyLister, cache CacheBumper) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = reports.NewEngine(reports.Config{}, nil)
	}
	h := &Handler{
		logger:     logger,
		service:    service,
		engine:     engine,
		properties: properties,
		cache:      cache,
		validate:   validator.New(),
		timeout:    requestTimeout,
	}
	h.bufPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// WithTimeout overrides the per-request computation timeout.
func (h *Handler) WithTimeout(d time.Duration) {
	if d > 0 {
		h.timeout = d
	}
}

type reportQuery struct {
	Period      string `validate:"omitempty,max=32"`
	From        string `validate:"required_if=Period custom,omitempty,datetime=2006-01-02"`
	To          string `validate:"required_if=Period custom,omitempty,datetime=2006-01-02"`
	Property    string `validate:"omitempty,max=128,printascii"`
	Granularity string `validate:"omitempty,oneof=daily weekly monthly"`
	Table       string `validate:"omitempty,oneof=kpis property source room_category daily status"`
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	result, _, ok := h.generate(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	result, q, ok := h.generate(w, r)
	if !ok {
		return
	}
	table, err := result.TableByName(q.Table)
	if err != nil {
		h.respond(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}

	buf := h.bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.bufPool.Put(buf)
	}()
	if err := export.WriteTableCSV(buf, table); err != nil {
		h.respond(w, fmt.Errorf("write csv: %w", err))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", exportFilename(result, q.Table, "csv")))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("stream csv", slog.Any("error", err))
	}
}

func (h *Handler) handleJSONExport(w http.ResponseWriter, r *http.Request) {
	result, q, ok := h.generate(w, r)
	if !ok {
		return
	}
	table, err := result.TableByName(q.Table)
	if err != nil {
		h.respond(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", exportFilename(result, q.Table, "json")))
	httpx.JSON(w, http.StatusOK, table)
}

type periodView struct {
	Period   reports.Period     `json:"period"`
	Range    *reports.DateRange `json:"range,omitempty"`
	Previous *reports.DateRange `json:"previous,omitempty"`
}

func (h *Handler) handlePeriods(w http.ResponseWriter, r *http.Request) {
	out := make([]periodView, 0, len(reports.Periods()))
	for _, p := range reports.Periods() {
		view := periodView{Period: p}
		if p != reports.PeriodCustom {
			current, err := h.engine.Resolve(reports.Named(p))
			if err != nil {
				h.respond(w, err)
				return
			}
			previous := current.Previous()
			view.Range, view.Previous = &current, &previous
		}
		out = append(out, view)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"timezone":      h.engine.Location().String(),
		"granularities": []reports.Granularity{reports.GranularityDaily, reports.GranularityWeekly, reports.GranularityMonthly},
		"tables":        reports.TableNames(),
		"periods":       out,
	})
}

func (h *Handler) handleProperties(w http.ResponseWriter, r *http.Request) {
	if h.properties == nil {
		httpx.Problem(w, http.StatusNotImplemented, "Not Implemented", "property listing not available")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	props, err := h.properties.Properties(ctx)
	if err != nil {
		h.respond(w, fmt.Errorf("%w: %v", httpx.ErrUnavailable, err))
		return
	}
	if props == nil {
		props = []string{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"properties": props})
}

func (h *Handler) handleCacheBump(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		httpx.Problem(w, http.StatusNotImplemented, "Not Implemented", "record cache not configured")
		return
	}
	ver, err := h.cache.Bump(r.Context())
	if err != nil {
		h.respond(w, fmt.Errorf("%w: bump cache: %v", httpx.ErrUnavailable, err))
		return
	}
	h.logger.Info("record cache bumped", slog.Int64("version", ver))
	httpx.JSON(w, http.StatusOK, map[string]int64{"version": ver})
}

// generate parses the query and computes the report. It writes the error
// response itself and reports false on failure.
func (h *Handler) generate(w http.ResponseWriter, r *http.Request) (reports.ReportResult, reportQuery, bool) {
	q, req, err := h.parseRequest(r)
	if err != nil {
		h.respond(w, err)
		return reports.ReportResult{}, q, false
	}
	if h.service == nil {
		h.respond(w, errors.New("report service not configured"))
		return reports.ReportResult{}, q, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result, err := h.service.Generate(ctx, req)
	if err != nil {
		h.respond(w, err)
		return reports.ReportResult{}, q, false
	}
	return result, q, true
}

func (h *Handler) parseRequest(r *http.Request) (reportQuery, reports.ReportRequest, error) {
	values := r.URL.Query()
	q := reportQuery{
		Period:      strings.TrimSpace(values.Get("period")),
		From:        strings.TrimSpace(values.Get("from")),
		To:          strings.TrimSpace(values.Get("to")),
		Property:    strings.TrimSpace(values.Get("property")),
		Granularity: strings.ToLower(strings.TrimSpace(values.Get("granularity"))),
		Table:       strings.ToLower(strings.TrimSpace(values.Get("table"))),
	}
	if q.Period == "" {
		q.Period = string(defaultPeriod)
	}
	period, err := reports.ParsePeriod(q.Period)
	if err != nil {
		return q, reports.ReportRequest{}, err
	}
	q.Period = string(period)
	if err := h.validate.Struct(q); err != nil {
		return q, reports.ReportRequest{}, validationProblem(err)
	}
	if period != reports.PeriodCustom {
		if err := boundsWithoutCustom(q); err != nil {
			return q, reports.ReportRequest{}, err
		}
	}

	req := reports.ReportRequest{
		Scope:       reports.Scope{Property: q.Property},
		Period:      reports.Named(period),
		Granularity: reports.Granularity(q.Granularity),
	}
	if period == reports.PeriodCustom {
		from, err := reports.ParseDate(q.From, h.engine.Location())
		if err != nil {
			return q, reports.ReportRequest{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
		}
		to, err := reports.ParseDate(q.To, h.engine.Location())
		if err != nil {
			return q, reports.ReportRequest{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
		}
		req.Period = reports.Custom(from, to)
	}
	return q, req, nil
}

type fieldErrors struct {
	fields map[string]string
}

func (e *fieldErrors) Error() string {
	parts := make([]string, 0, len(e.fields))
	for name, tag := range e.fields {
		parts = append(parts, name+" "+tag)
	}
	sort.Strings(parts)
	return "invalid query: " + strings.Join(parts, ", ")
}

func (e *fieldErrors) Is(target error) bool {
	return target == httpx.ErrValidation
}

// boundsWithoutCustom rejects from/to sent with a named period.
func boundsWithoutCustom(q reportQuery) error {
	fields := map[string]string{}
	if q.From != "" {
		fields["from"] = "custom_only"
	}
	if q.To != "" {
		fields["to"] = "custom_only"
	}
	if len(fields) == 0 {
		return nil
	}
	return &fieldErrors{fields: fields}
}

func validationProblem(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[strings.ToLower(fe.Field())] = fe.Tag()
	}
	return &fieldErrors{fields: fields}
}

func (h *Handler) respond(w http.ResponseWriter, err error) {
	var ferr *fieldErrors
	switch {
	case errors.As(err, &ferr):
		httpx.WriteProblem(w, httpx.ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusBadRequest,
			Detail: "one or more query parameters are invalid",
			Fields: ferr.fields,
		})
	case errors.Is(err, reports.ErrInvalidPeriod):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	case errors.Is(err, reports.ErrSourceUnavailable), errors.Is(err, context.DeadlineExceeded):
		h.logger.Error("report unavailable", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "booking records are temporarily unavailable")
	case errors.Is(err, httpx.ErrValidation), errors.Is(err, httpx.ErrUnavailable):
		httpx.RespondError(w, err)
	default:
		h.logger.Error("report request", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func exportFilename(result reports.ReportResult, table, ext string) string {
	if table == "" {
		table = reports.TableKPIs
	}
	return fmt.Sprintf("report-%s-%s-%s.%s", table, result.Range.From.Format(reports.DateLayout), result.Range.To.Format(reports.DateLayout), ext)
}
