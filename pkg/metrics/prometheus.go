// Package metrics provides Prometheus metrics for the pickem real-time core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the pickem service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Event log metrics
	eventsPublished *prometheus.CounterVec
	eventsPurged    prometheus.Counter
	eventLogSize    prometheus.Gauge

	// Transport metrics
	streamConnections prometheus.Gauge
	streamFramesSent  prometheus.Counter
	streamHeartbeats  prometheus.Counter
	streamWriteErrors prometheus.Counter
	pollRequests      prometheus.Counter

	// Reconciliation metrics
	reconcileRuns     prometheus.Counter
	reconcileDuration prometheus.Histogram
	reconcileSkips    prometheus.Counter
	gamesCompleted    prometheus.Counter
	scoresUpdated     prometheus.Counter
	picksScored       prometheus.Counter
	autoPicksCreated  prometheus.Counter
	scoreFetchErrors  prometheus.Counter

	// Store and HTTP metrics
	storeErrors         *prometheus.CounterVec
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pickem",
		subsystem:        "core",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.eventsPublished = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_published_total",
		Help:      "Total number of events appended to the log, by kind",
	}, []string{"kind"})

	m.eventsPurged = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_purged_total",
		Help:      "Total number of expired events removed from the log",
	})

	m.eventLogSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "event_log_size",
		Help:      "Current number of live rows in the event log",
	})

	m.streamConnections = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stream_connections",
		Help:      "Currently open streaming connections",
	})

	m.streamFramesSent = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stream_frames_sent_total",
		Help:      "Total event frames pushed to streaming clients",
	})

	m.streamHeartbeats = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stream_heartbeats_total",
		Help:      "Total heartbeat frames pushed to streaming clients",
	})

	m.streamWriteErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stream_write_errors_total",
		Help:      "Total write failures that tore down a streaming connection",
	})

	m.pollRequests = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "poll_requests_total",
		Help:      "Total polling transport requests served",
	})

	m.reconcileRuns = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reconcile_runs_total",
		Help:      "Total reconciliation passes executed",
	})

	m.reconcileDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reconcile_duration_milliseconds",
		Help:      "Histogram of reconciliation pass duration in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.reconcileSkips = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reconcile_games_skipped_total",
		Help:      "Games skipped in a pass due to fetch or mapping failures",
	})

	m.gamesCompleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "games_completed_total",
		Help:      "Games transitioned to completed by reconciliation",
	})

	m.scoresUpdated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scores_updated_total",
		Help:      "In-progress score changes applied by reconciliation",
	})

	m.picksScored = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "picks_scored_total",
		Help:      "Picks awarded points on game completion",
	})

	m.autoPicksCreated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "auto_picks_created_total",
		Help:      "Picks synthesized for users who missed the lock",
	})

	m.scoreFetchErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "score_fetch_errors_total",
		Help:      "External score source failures (timeouts, bad payloads)",
	})

	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_errors_total",
		Help:      "Store operation failures by component",
	}, []string{"component"})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_bytes",
		Help:      "Current heap allocation in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutines",
		Help:      "Current number of goroutines",
	})
}

// Event log metrics functions.

// RecordEventPublished increments the published counter for a kind.
func RecordEventPublished(kind string) {
	globalManager.eventsPublished.WithLabelValues(kind).Inc()
}

// RecordEventsPurged adds the number of rows removed by a sweep.
func RecordEventsPurged(n int64) {
	globalManager.eventsPurged.Add(float64(n))
}

// UpdateEventLogSize sets the live row count gauge.
func UpdateEventLogSize(n int64) {
	globalManager.eventLogSize.Set(float64(n))
}

// Transport metrics functions.

// StreamConnectionOpened increments the open connection gauge.
func StreamConnectionOpened() {
	globalManager.streamConnections.Inc()
}

// StreamConnectionClosed decrements the open connection gauge.
func StreamConnectionClosed() {
	globalManager.streamConnections.Dec()
}

// RecordStreamFrames adds pushed event frames.
func RecordStreamFrames(n int) {
	globalManager.streamFramesSent.Add(float64(n))
}

// RecordStreamHeartbeat increments the heartbeat counter.
func RecordStreamHeartbeat() {
	globalManager.streamHeartbeats.Inc()
}

// RecordStreamWriteError increments the write failure counter.
func RecordStreamWriteError() {
	globalManager.streamWriteErrors.Inc()
}

// RecordPollRequest increments the polling request counter.
func RecordPollRequest() {
	globalManager.pollRequests.Inc()
}

// Reconciliation metrics functions.

// RecordReconcileRun increments the pass counter.
func RecordReconcileRun() {
	globalManager.reconcileRuns.Inc()
}

// RecordReconcileDuration records one pass duration.
func RecordReconcileDuration(ms float64) {
	globalManager.reconcileDuration.Observe(ms)
}

// RecordReconcileSkip counts a game skipped this pass.
func RecordReconcileSkip() {
	globalManager.reconcileSkips.Inc()
}

// RecordGameCompleted counts a completion transition.
func RecordGameCompleted() {
	globalManager.gamesCompleted.Inc()
}

// RecordScoreUpdated counts an applied score change.
func RecordScoreUpdated() {
	globalManager.scoresUpdated.Inc()
}

// RecordPicksScored adds the number of picks awarded points.
func RecordPicksScored(n int64) {
	globalManager.picksScored.Add(float64(n))
}

// RecordAutoPickCreated counts a synthesized pick.
func RecordAutoPickCreated() {
	globalManager.autoPicksCreated.Inc()
}

// RecordScoreFetchError counts an external source failure.
func RecordScoreFetchError() {
	globalManager.scoreFetchErrors.Inc()
}

// Store and HTTP metrics functions.

// RecordStoreError counts a store failure for a component.
func RecordStoreError(component string) {
	globalManager.storeErrors.WithLabelValues(component).Inc()
}

// RecordHTTPRequest records an HTTP request with labels.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration with labels.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// System metrics functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
