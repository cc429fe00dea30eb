// Package metric holds the Prometheus collectors for the stream client,
// the repositories and the synchronizers.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "entitycache"

// Registry owns a private Prometheus registry with every collector registered.
type Registry struct {
	prometheusRegistry *prometheus.Registry

	Stream *StreamMetrics
	Cache  *CacheMetrics
	Sync   *SyncMetrics
}

// NewRegistry creates the registry with core collectors and Go runtime metrics.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		prometheusRegistry: reg,
		Stream:             newStreamMetrics(),
		Cache:              newCacheMetrics(),
		Sync:               newSyncMetrics(),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	r.Stream.register(reg)
	r.Cache.register(reg)
	r.Sync.register(reg)
	return r
}

// PrometheusRegistry returns the underlying registry.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prometheusRegistry, promhttp.HandlerOpts{})
}

// StreamMetrics tracks the push connection. A nil *StreamMetrics is valid and records nothing.
type StreamMetrics struct {
	framesReceived prometheus.Counter
	framesDropped  *prometheus.CounterVec
	reconnects     prometheus.Counter
	connected      prometheus.Gauge
	handlerPanics  prometheus.Counter
}

func newStreamMetrics() *StreamMetrics {
	return &StreamMetrics{
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frames_received_total",
			Help:      "Total frames read from the push connection",
		}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frames_dropped_total",
			Help:      "Total frames dropped before dispatch",
		}, []string{"reason"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnect_attempts_total",
			Help:      "Total scheduled reconnect attempts",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "connected",
			Help:      "1 while the push connection is open",
		}),
		handlerPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "handler_failures_total",
			Help:      "Total subscriber callbacks that panicked or returned an error",
		}),
	}
}

func (m *StreamMetrics) register(reg prometheus.Registerer) {
	reg.MustRegister(m.framesReceived, m.framesDropped, m.reconnects, m.connected, m.handlerPanics)
}

func (m *StreamMetrics) FrameReceived() {
	if m != nil {
		m.framesReceived.Inc()
	}
}

func (m *StreamMetrics) FrameDropped(reason string) {
	if m != nil {
		m.framesDropped.WithLabelValues(reason).Inc()
	}
}

func (m *StreamMetrics) Reconnect() {
	if m != nil {
		m.reconnects.Inc()
	}
}

func (m *StreamMetrics) SetConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.connected.Set(1)
		return
	}
	m.connected.Set(0)
}

func (m *StreamMetrics) HandlerFailed() {
	if m != nil {
		m.handlerPanics.Inc()
	}
}

// CacheMetrics tracks repository reads. A nil *CacheMetrics is valid.
type CacheMetrics struct {
	reads       *prometheus.CounterVec
	fetchErrors *prometheus.CounterVec
	size        *prometheus.GaugeVec
}

func newCacheMetrics() *CacheMetrics {
	return &CacheMetrics{
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "reads_total",
			Help:      "Total GetAll resolutions by outcome",
		}, []string{"collection", "outcome"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "fetch_errors_total",
			Help:      "Total failed remote fetches",
		}, []string{"collection"}),
		size: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "records",
			Help:      "Records held per collection after the last applied fetch",
		}, []string{"collection"}),
	}
}

func (m *CacheMetrics) register(reg prometheus.Registerer) {
	reg.MustRegister(m.reads, m.fetchErrors, m.size)
}

func (m *CacheMetrics) Read(collection, outcome string) {
	if m != nil {
		m.reads.WithLabelValues(collection, outcome).Inc()
	}
}

func (m *CacheMetrics) FetchFailed(collection string) {
	if m != nil {
		m.fetchErrors.WithLabelValues(collection).Inc()
	}
}

func (m *CacheMetrics) SetSize(collection string, n int) {
	if m != nil {
		m.size.WithLabelValues(collection).Set(float64(n))
	}
}

// SyncMetrics tracks events applied or ignored by synchronizers. A nil *SyncMetrics is valid.
type SyncMetrics struct {
	applied *prometheus.CounterVec
	ignored *prometheus.CounterVec
}

func newSyncMetrics() *SyncMetrics {
	return &SyncMetrics{
		applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "events_applied_total",
			Help:      "Total events that mutated a collection",
		}, []string{"collection", "kind"}),
		ignored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "events_ignored_total",
			Help:      "Total events whose precondition did not hold",
		}, []string{"collection", "kind"}),
	}
}

func (m *SyncMetrics) register(reg prometheus.Registerer) {
	reg.MustRegister(m.applied, m.ignored)
}

func (m *SyncMetrics) Applied(collection, kind string) {
	if m != nil {
		m.applied.WithLabelValues(collection, kind).Inc()
	}
}

func (m *SyncMetrics) Ignored(collection, kind string) {
	if m != nil {
		m.ignored.WithLabelValues(collection, kind).Inc()
	}
}
