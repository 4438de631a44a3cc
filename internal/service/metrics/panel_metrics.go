package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	PanelLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "panelpull",
			Subsystem: "panels",
			Name:      "latency_seconds",
			Help:      "Latency of panel endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	PanelErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "panelpull",
			Subsystem: "panels",
			Name:      "errors_total",
			Help:      "Errors by panel endpoint",
		},
		[]string{"endpoint"},
	)

	PanelCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "panelpull",
			Subsystem: "panels",
			Name:      "response_cache_hits_total",
			Help:      "Response cache hits by panel endpoint",
		},
		[]string{"endpoint"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(PanelLatency, PanelErrors, PanelCacheHits)
	})
}
