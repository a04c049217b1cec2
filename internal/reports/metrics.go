package reports

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for report generation.
type Metrics struct {
	generated   *prometheus.CounterVec
	duration    prometheus.Histogram
	degraded    prometheus.Counter
	malformed   prometheus.Counter
	fetchErrors *prometheus.CounterVec
}

var (
	defaultMetricsOnce sync.Once
	defaultMetrics     *Metrics
)

// NewMetrics registers report metrics against registerer, or the default
// Prometheus registerer when nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultMetricsOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	generated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "staydesk_reports_generated_total",
		Help: "Report computations partitioned by period and outcome.",
	}, []string{"period", "status"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "staydesk_report_duration_seconds",
		Help:    "Duration of report computations including record fetches.",
		Buckets: prometheus.DefBuckets,
	})
	degraded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "staydesk_reports_comparison_unavailable_total",
		Help: "Reports delivered without previous-period comparison.",
	})
	malformed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "staydesk_reports_malformed_records_total",
		Help: "Records aggregated under the unknown day bucket.",
	})
	fetchErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "staydesk_reports_fetch_errors_total",
		Help: "Record fetch failures by window.",
	}, []string{"window"})
	registerer.MustRegister(generated, duration, degraded, malformed, fetchErrors)
	return &Metrics{generated: generated, duration: duration, degraded: degraded, malformed: malformed, fetchErrors: fetchErrors}
}

func (m *Metrics) observe(period Period, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.generated.WithLabelValues(string(period), status).Inc()
	m.duration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) fetchFailed(window string) {
	if m == nil {
		return
	}
	m.fetchErrors.WithLabelValues(window).Inc()
}

func (m *Metrics) comparisonUnavailable() {
	if m == nil {
		return
	}
	m.degraded.Inc()
}

func (m *Metrics) malformedRecords(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.malformed.Add(float64(n))
}
