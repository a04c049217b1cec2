package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/staydesk/staydesk/internal/bookings"
	"github.com/staydesk/staydesk/internal/platform/cache"
	"github.com/staydesk/staydesk/internal/platform/db"
	platformmongo "github.com/staydesk/staydesk/internal/platform/mongo"
	"github.com/staydesk/staydesk/internal/reports"
)

// Runtime holds the long-lived dependencies shared by the binaries.
type Runtime struct {
	Store   bookings.Store
	Records *bookings.CachedSource
	Cache   *bookings.Cache
	Redis   *redis.Client
	Engine  *reports.Engine
	Service *reports.Service
	Checks  map[string]HealthCheck

	closers []func()
	logger  *slog.Logger
}

// Bootstrap connects the configured record store and Redis, then builds the
// report service on top of the cached record source. A Redis outage degrades
// to uncached reads.
func Bootstrap(ctx context.Context, cfg *Config, logger *slog.Logger, registerer prometheus.Registerer) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	rt := &Runtime{Checks: map[string]HealthCheck{}, logger: logger}

	store, err := rt.openStore(ctx, cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Store = store

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, record cache degraded", slog.Any("error", err))
	}
	rt.Redis = redisClient
	rt.closers = append(rt.closers, func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	})
	rt.Checks["redis"] = func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	}

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Cache = bookings.NewCache(redisClient, cfg.RecordCacheTTL)
	rt.Records = bookings.NewCachedSource(store, rt.Cache, logger, bookings.NewCacheMetrics(registerer)).WithLoadTimeout(cfg.AppRequestTimeout)
	rt.Engine = reports.NewEngine(engineCfg, reports.NewLabeler(nil))
	rt.Service = reports.NewService(rt.Engine, rt.Records, reports.ServiceOptions{
		Logger:          logger,
		Metrics:         reports.NewMetrics(registerer),
		PreviousTimeout: cfg.ReportPreviousTimeout,
	})
	return rt, nil
}

func (rt *Runtime) openStore(ctx context.Context, cfg *Config) (bookings.Store, error) {
	switch cfg.RecordStore {
	case StoreMongo:
		client, err := platformmongo.Connect(ctx, cfg.MongoURI, platformmongo.DefaultOptions())
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() {
			if err := platformmongo.Disconnect(client, 5*time.Second); err != nil {
				rt.logger.Warn("mongo disconnect", slog.Any("error", err))
			}
		})
		rt.Checks["mongo"] = func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		}
		rt.logger.Info("record store ready", slog.String("store", StoreMongo), slog.String("database", cfg.MongoDatabase))
		return bookings.NewMongoSource(client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection)), nil
	case StorePostgres:
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, pool.Close)
		rt.Checks["postgres"] = pool.Ping
		rt.logger.Info("record store ready", slog.String("store", StorePostgres))
		return bookings.NewPostgresSource(pool), nil
	default:
		return nil, fmt.Errorf("app: unknown record store %q", cfg.RecordStore)
	}
}

// Close releases connections in reverse order of acquisition.
func (rt *Runtime) Close() {
	if rt == nil {
		return
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
