package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staydesk/staydesk/internal/bookings"
	jobmetrics "github.com/staydesk/staydesk/internal/jobs"
	"github.com/staydesk/staydesk/internal/reports"
)

type recordingGenerator struct {
	mu       sync.Mutex
	requests []reports.ReportRequest
	fail     map[string]error
}

func (g *recordingGenerator) Generate(ctx context.Context, req reports.ReportRequest) (reports.ReportResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if err, ok := g.fail[req.Scope.Property]; ok {
		return reports.ReportResult{}, err
	}
	return reports.ReportResult{Scope: req.Scope}, nil
}

func (g *recordingGenerator) scopes() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.requests))
	for _, r := range g.requests {
		out = append(out, string(r.Period.Period)+"/"+r.Scope.Property)
	}
	sort.Strings(out)
	return out
}

type staticProperties struct {
	names []string
	err   error
}

func (p staticProperties) Properties(context.Context) ([]string, error) {
	return p.names, p.err
}

func warmupTask(t *testing.T, payload ReportWarmupPayload) *asynq.Task {
	t.Helper()
	task, err := NewReportWarmupTask(payload)
	require.NoError(t, err)
	return task
}

func TestReportWarmupCoversPeriodsAndProperties(t *testing.T) {
	gen := &recordingGenerator{}
	job := NewReportWarmupJob(gen, staticProperties{names: []string{"lagoon", "", "harbor"}}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	err := job.Handle(context.Background(), warmupTask(t, ReportWarmupPayload{
		Periods:     []string{"today", "LAST7DAYS"},
		PerProperty: true,
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"last7days/all", "last7days/harbor", "last7days/lagoon",
		"today/all", "today/harbor", "today/lagoon",
	}, gen.scopes())
	for _, req := range gen.requests {
		assert.Equal(t, reports.GranularityDaily, req.Granularity)
	}
}

func TestReportWarmupDefaultsToCommonPeriods(t *testing.T) {
	gen := &recordingGenerator{}
	job := NewReportWarmupJob(gen, nil, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, job.Handle(context.Background(), warmupTask(t, ReportWarmupPayload{})))
	assert.Len(t, gen.requests, len(DefaultWarmupPeriods))
}

func TestReportWarmupToleratesPartialFailures(t *testing.T) {
	gen := &recordingGenerator{fail: map[string]error{"harbor": errors.New("timeout")}}
	job := NewReportWarmupJob(gen, staticProperties{names: []string{"harbor", "lagoon"}}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	err := job.Handle(context.Background(), warmupTask(t, ReportWarmupPayload{Periods: []string{"today"}, PerProperty: true}))
	require.NoError(t, err)
	assert.Len(t, gen.requests, 3)
}

func TestReportWarmupFailsWhenEveryScopeFails(t *testing.T) {
	boom := errors.New("store down")
	gen := &recordingGenerator{fail: map[string]error{reports.AllProperties: boom}}
	job := NewReportWarmupJob(gen, staticProperties{err: bookings.ErrPropertiesUnsupported}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	err := job.Handle(context.Background(), warmupTask(t, ReportWarmupPayload{Periods: []string{"today"}, PerProperty: true}))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestReportWarmupRejectsBadPayload(t *testing.T) {
	job := NewReportWarmupJob(&recordingGenerator{}, nil, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	err := job.Handle(context.Background(), asynq.NewTask(TaskReportWarmup, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	data, _ := json.Marshal(ReportWarmupPayload{Periods: []string{"fortnight"}})
	err = job.Handle(context.Background(), asynq.NewTask(TaskReportWarmup, data))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	var nilJob *ReportWarmupJob
	assert.Error(t, nilJob.Handle(context.Background(), asynq.NewTask(TaskReportWarmup, nil)))
}

func TestReportWarmupRejectsCustomOnlyPayload(t *testing.T) {
	gen := &recordingGenerator{}
	job := NewReportWarmupJob(gen, nil, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	data, _ := json.Marshal(ReportWarmupPayload{Periods: []string{"custom", "CUSTOM"}})
	err := job.Handle(context.Background(), asynq.NewTask(TaskReportWarmup, data))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, gen.requests)
}

func TestNewReportWarmupTaskValidatesPeriods(t *testing.T) {
	_, err := NewReportWarmupTask(ReportWarmupPayload{Periods: []string{"custom"}})
	assert.Error(t, err)
	_, err = NewReportWarmupTask(ReportWarmupPayload{Periods: []string{"quarter"}})
	assert.ErrorIs(t, err, reports.ErrInvalidPeriod)

	task, err := NewReportWarmupTask(ReportWarmupPayload{Periods: []string{"thisMonth"}})
	require.NoError(t, err)
	assert.Equal(t, TaskReportWarmup, task.Type())
}
