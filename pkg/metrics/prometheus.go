package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	symbolsLoaded *prometheus.CounterVec
	cacheRequests *prometheus.CounterVec
	panelsBuilt   *prometheus.CounterVec
	panelRows     *prometheus.GaugeVec
	duration      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		symbolsLoaded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panelpull_symbols_loaded_total",
				Help: "Per-symbol load outcomes",
			},
			[]string{"status"},
		),
		cacheRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panelpull_cache_requests_total",
				Help: "Panel cache lookups by result",
			},
			[]string{"result"},
		),
		panelsBuilt: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panelpull_panels_built_total",
				Help: "Completed panel builds by view",
			},
			[]string{"view"},
		),
		panelRows: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "panelpull_panel_rows",
				Help: "Row count of the most recent build per view",
			},
			[]string{"view"},
		),
		duration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "panelpull_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordSymbolLoaded records a per-symbol load outcome (ok, insufficient, error).
func (r *Recorder) RecordSymbolLoaded(status string) {
	r.symbolsLoaded.WithLabelValues(status).Inc()
}

// RecordCacheRequest records a panel cache lookup (hit or miss).
func (r *Recorder) RecordCacheRequest(result string) {
	r.cacheRequests.WithLabelValues(result).Inc()
}

// RecordPanelBuilt records a completed panel build.
func (r *Recorder) RecordPanelBuilt(view string) {
	r.panelsBuilt.WithLabelValues(view).Inc()
}

// RecordPanelRows records the row count of the most recent build.
func (r *Recorder) RecordPanelRows(view string, rows int) {
	r.panelRows.WithLabelValues(view).Set(float64(rows))
}

// RecordDuration records operation duration in seconds.
func (r *Recorder) RecordDuration(op string, seconds float64) {
	r.duration.WithLabelValues(op).Observe(seconds)
}
