package bookings

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/staydesk/staydesk/internal/reports"
)

// DefaultLoadTimeout bounds a shared upstream load started on a cache miss.
const DefaultLoadTimeout = 30 * time.Second

// CachedSource serves record sets from a Cache in front of another source.
// Concurrent misses for the same window share one upstream query. The shared
// query runs detached from any single caller's cancellation; each caller waits
// only as long as its own context allows. Cache failures degrade to direct
// reads.
type CachedSource struct {
	next        reports.RecordSource
	cache       *Cache
	logger      *slog.Logger
	metrics     *CacheMetrics
	group       singleflight.Group
	loadTimeout time.Duration
}

// NewCachedSource wraps next with cache.
func NewCachedSource(next reports.RecordSource, cache *Cache, logger *slog.Logger, metrics *CacheMetrics) *CachedSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedSource{next: next, cache: cache, logger: logger, metrics: metrics, loadTimeout: DefaultLoadTimeout}
}

// WithLoadTimeout overrides DefaultLoadTimeout. Non-positive values are ignored.
func (s *CachedSource) WithLoadTimeout(d time.Duration) *CachedSource {
	if d > 0 {
		s.loadTimeout = d
	}
	return s
}

// Query implements reports.RecordSource.
func (s *CachedSource) Query(ctx context.Context, property string, r reports.DateRange) ([]reports.TransactionRecord, error) {
	if reports.IsAllProperties(property) {
		property = reports.AllProperties
	}
	if !s.cache.Enabled() {
		return s.next.Query(ctx, property, r)
	}
	key, err := s.cache.Key(ctx, "bookings", "records", property, r.From.Format(reports.DateLayout), r.To.Format(reports.DateLayout), r.From.Location().String())
	if err != nil {
		s.logger.Warn("cache version unavailable", slog.Any("error", err))
		return s.next.Query(ctx, property, r)
	}

	var records []reports.TransactionRecord
	hit, err := s.cache.Load(ctx, key, &records)
	if err != nil {
		s.logger.Warn("cache read failed", slog.String("key", key), slog.Any("error", err))
	}
	if hit {
		s.metrics.hit()
		return records, nil
	}
	s.metrics.miss()

	ch := s.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loadTimeout)
		defer cancel()
		records, err := s.next.Query(loadCtx, property, r)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Store(loadCtx, key, records); err != nil {
			s.logger.Warn("cache write failed", slog.String("key", key), slog.Any("error", err))
		}
		return records, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]reports.TransactionRecord), nil
	}
}

// Bump invalidates all cached record sets.
func (s *CachedSource) Bump(ctx context.Context) (int64, error) {
	return s.cache.Bump(ctx)
}

// Properties delegates property discovery when the wrapped source supports it.
func (s *CachedSource) Properties(ctx context.Context) ([]string, error) {
	if lister, ok := s.next.(PropertyLister); ok {
		return lister.Properties(ctx)
	}
	return nil, ErrPropertiesUnsupported
}

// CacheMetrics counts record cache lookups.
type CacheMetrics struct {
	lookups *prometheus.CounterVec
}

// NewCacheMetrics registers the cache counters against registerer, or the
// default registerer when nil.
func NewCacheMetrics(registerer prometheus.Registerer) *CacheMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "staydesk_record_cache_lookups_total",
		Help: "Record cache lookups partitioned by result.",
	}, []string{"result"})
	registerer.MustRegister(lookups)
	return &CacheMetrics{lookups: lookups}
}

func (m *CacheMetrics) hit() {
	if m != nil {
		m.lookups.WithLabelValues("hit").Inc()
	}
}

func (m *CacheMetrics) miss() {
	if m != nil {
		m.lookups.WithLabelValues("miss").Inc()
	}
}
