// Package metrics exposes the extraction engine's prometheus
// collectors: events/warnings produced, tasks by state, merge lag,
// backpressure level, and VSS dedup drops (spec.md §4.10, SPEC_FULL.md
// §B). *Grounded on* the teacher's internal/metrics/metrics.go
// package-level promauto var + safeRegister-once pattern, trimmed from
// its log-pipeline-specific metric set (sinks, container streams,
// Kafka, file-monitor retries) down to the ones this engine's
// components actually produce.
package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	EventsProducedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plaso_events_produced_total",
			Help: "Total events produced, by data type",
		},
		[]string{"data_type"},
	)

	WarningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plaso_warnings_total",
			Help: "Total extraction warnings, by parser",
		},
		[]string{"parser_name"},
	)

	TasksByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "plaso_tasks_by_state",
			Help: "Current task count per task-manager set",
		},
		[]string{"state"},
	)

	MergeLagSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "plaso_merge_lag_seconds",
			Help:    "Time taken to merge one completed task into the session store, excluding time spent waiting in to_merge",
			Buckets: prometheus.DefBuckets,
		},
	)

	BackpressureLevel = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "plaso_backpressure_level",
			Help: "1 when the collector is paused by task-manager backpressure, else 0",
		},
	)

	VSSDedupDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plaso_vss_dedup_dropped_total",
			Help: "Total event-data containers dropped by VSS de-duplication during merge",
		},
	)

	ParserCircuitBreakerOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "plaso_parser_circuit_breaker_open",
			Help: "1 when a parser's circuit breaker is open, else 0",
		},
		[]string{"parser_name"},
	)
)

// Server exposes /metrics and /health on addr. *Grounded on*
// internal/metrics.MetricsServer's stdlib http.ServeMux + promhttp
// wiring.
type Server struct {
	http   *http.Server
	logger *logrus.Logger
}

// NewServer creates a Server bound to addr (not yet listening).
func NewServer(addr string, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return &Server{http: &http.Server{Addr: addr, Handler: mux}, logger: logger}
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("metrics server stopped unexpectedly")
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

var registerOnce sync.Once

// EnsureRegistered is a no-op placeholder kept for symmetry with the
// teacher's once-guarded registration; promauto already registers on
// var-init, so this only exists to give callers a stable hook if a
// future metric moves off promauto onto manual registration.
func EnsureRegistered() {
	registerOnce.Do(func() {})
}

// RecordTaskCounts mirrors the task manager's four live sets onto
// TasksByState.
func RecordTaskCounts(queued, processing, toMerge, abandoned int) {
	TasksByState.WithLabelValues("queued").Set(float64(queued))
	TasksByState.WithLabelValues("processing").Set(float64(processing))
	TasksByState.WithLabelValues("to_merge").Set(float64(toMerge))
	TasksByState.WithLabelValues("abandoned").Set(float64(abandoned))
}

// RecordMergeLag observes how long merging one task took. The time
// the task waited in to_merge before its merge began is not included.
func RecordMergeLag(d time.Duration) {
	MergeLagSeconds.Observe(d.Seconds())
}
