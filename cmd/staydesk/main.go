package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/staydesk/staydesk/cmd/staydesk/cli"
	"github.com/staydesk/staydesk/internal/app"
	"github.com/staydesk/staydesk/internal/observability"
	reporthttp "github.com/staydesk/staydesk/internal/reports/http"
	"github.com/staydesk/staydesk/jobs"
)

const usage = `usage: staydesk [command] [flags]

commands:
  serve    run the reporting HTTP API (default)
  export   print one report table as CSV or JSON
  warmup   enqueue a report cache warmup run
  queue    show the job queue depth
`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	command := "serve"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	var code int
	switch command {
	case "serve":
		code = serve(ctx, stop, cfg, logger)
	case "export":
		code = runExport(ctx, cfg, logger, args)
	case "warmup":
		code = runWarmup(ctx, cfg, args)
	case "queue":
		code = runQueue(ctx, cfg)
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		code = 1
	}
	stop()
	os.Exit(code)
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) int {
	metrics := observability.NewMetrics()

	rt, err := app.Bootstrap(ctx, cfg, logger, metrics.Registerer())
	if err != nil {
		logger.Error("bootstrap", slog.Any("error", err))
		return 1
	}
	defer rt.Close()

	go func() {
		if err := rt.Cache.ListenForInvalidation(ctx, logger); err != nil {
			logger.Warn("cache invalidation listener", slog.Any("error", err))
		}
	}()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	reportHandler := reporthttp.NewHandler(logger, rt.Service, rt.Engine, rt.Records, rt.Records)
	reportHandler.WithTimeout(cfg.AppRequestTimeout)

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		ReportHandler: reportHandler,
		JobHandler:    jobs.NewHandler(inspector, logger),
		Metrics:       metrics,
		HealthChecks:  rt.Checks,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("store", cfg.RecordStore))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
		return 1
	}
	return 0
}

func runExport(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	opts := cli.ExportOptions{}
	fs.StringVar(&opts.Period, "period", "last7days", "named period or custom")
	fs.StringVar(&opts.From, "from", "", "custom period start (YYYY-MM-DD)")
	fs.StringVar(&opts.To, "to", "", "custom period end (YYYY-MM-DD)")
	fs.StringVar(&opts.Property, "property", "", "property id, empty for all")
	fs.StringVar(&opts.Table, "table", "kpis", "kpis|property|source|room_category|daily|status")
	fs.StringVar(&opts.Granularity, "granularity", "daily", "daily|weekly|monthly")
	fs.BoolVar(&opts.JSONOutput, "json", false, "print JSON instead of CSV")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	rt, err := app.Bootstrap(ctx, cfg, logger, nil)
	if err != nil {
		logger.Error("bootstrap", slog.Any("error", err))
		return 1
	}
	defer rt.Close()

	opts.Location = rt.Engine.Location()
	return cli.ExportCommand(ctx, rt.Service, opts)
}

func runWarmup(ctx context.Context, cfg *app.Config, args []string) int {
	fs := flag.NewFlagSet("warmup", flag.ContinueOnError)
	periods := fs.String("periods", "", "comma separated periods, empty for the defaults")
	perProperty := fs.Bool("per-property", cfg.WarmupPerProperty, "also warm each property")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	payload := jobs.ReportWarmupPayload{PerProperty: *perProperty}
	for _, p := range strings.Split(*periods, ",") {
		if p = strings.TrimSpace(p); p != "" {
			payload.Periods = append(payload.Periods, p)
		}
	}

	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warmup: %v\n", err)
		return 1
	}
	defer jobsCLI.Close()

	info, err := jobsCLI.TriggerWarmup(ctx, payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warmup: %v\n", err)
		return 1
	}
	fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	return 0
}

func runQueue(ctx context.Context, cfg *app.Config) int {
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "queue: %v\n", err)
		return 1
	}
	defer jobsCLI.Close()

	stats, err := jobsCLI.InspectQueue(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "queue: %v\n", err)
		return 1
	}
	stats.Render(os.Stdout)
	return 0
}
