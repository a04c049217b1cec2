package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const defaultConcurrency = 2

// TaskHandler binds a task type to the function processing it.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// CronRegistration schedules Task on the cron expression Spec.
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

// WorkerConfig describes the queue server and its periodic tasks.
type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Logger      *slog.Logger
	Concurrency int
	Location    *time.Location
	Handlers    []TaskHandler
	Cron        []CronRegistration
}

// Worker processes queued tasks and, when cron entries exist, enqueues
// periodic ones.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// NewWorker validates the cron entries and prepares the server. Nothing
// connects to Redis until Run.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	w := &Worker{
		server: asynq.NewServer(cfg.RedisOpts, asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      map[string]int{QueueDefault: 1},
			Logger:      newAsynqLogger(logger),
		}),
		mux:    asynq.NewServeMux(),
		logger: logger,
	}
	for _, h := range cfg.Handlers {
		if h.Type != "" && h.Handler != nil {
			w.mux.HandleFunc(h.Type, h.Handler)
		}
	}

	scheduler, err := newScheduler(cfg, logger)
	if err != nil {
		return nil, err
	}
	w.scheduler = scheduler
	return w, nil
}

func newScheduler(cfg WorkerConfig, logger *slog.Logger) (*asynq.Scheduler, error) {
	if len(cfg.Cron) == 0 {
		return nil, nil
	}
	scheduler := asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{
		Location: cfg.Location,
		Logger:   newAsynqLogger(logger),
	})
	for _, entry := range cfg.Cron {
		if entry.Spec == "" || entry.Task == nil {
			continue
		}
		if _, err := scheduler.Register(entry.Spec, entry.Task, entry.Options...); err != nil {
			return nil, fmt.Errorf("register %s on %q: %w", entry.Task.Type(), entry.Spec, err)
		}
	}
	return scheduler, nil
}

// Run blocks until ctx is cancelled or the server stops on its own.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return errors.New("worker: not configured")
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer w.scheduler.Shutdown()
	}

	done := make(chan error, 1)
	go func() { done <- w.server.Run(w.mux) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		w.logger.Info("worker stopping")
		w.server.Shutdown()
		return ctx.Err()
	}
}
