package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func serveHealth(t *testing.T, inspector QueueInspector) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	NewHandler(inspector, nil).MountRoutes(r)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	return rr
}

func TestHealthReportsQueueDepth(t *testing.T) {
	rr := serveHealth(t, fakeInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4, Active: 1, Failed: 2}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queue":"default","pending":4,"active":1,"failedToday":2}`, rr.Body.String())
}

func TestHealthUnavailable(t *testing.T) {
	rr := serveHealth(t, fakeInspector{err: errors.New("redis down")})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
}

func TestNewWorkerRegistersCron(t *testing.T) {
	task, err := NewReportWarmupTask(ReportWarmupPayload{})
	require.NoError(t, err)

	worker, err := NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Handlers:  []TaskHandler{{Type: TaskReportWarmup, Handler: func(ctx context.Context, t *asynq.Task) error { return nil }}},
		Cron:      []CronRegistration{{Spec: "*/15 * * * *", Task: task}},
	})
	require.NoError(t, err)
	assert.NotNil(t, worker.scheduler)

	_, err = NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Cron:      []CronRegistration{{Spec: "not a cron", Task: task}},
	})
	assert.Error(t, err)
}

func TestRunWithoutServer(t *testing.T) {
	var w *Worker
	assert.Error(t, w.Run(context.Background()))
}
