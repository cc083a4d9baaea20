// Package metrics provides Prometheus export and an in-process snapshot for
// the resolver pipeline.
//
// Counters are monotonic and tolerant to benign races; nothing here is on a
// hot path that would justify sharding.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns every metric of the question resolver pipeline.
type Collector struct {
	registry *prometheus.Registry

	resolverAttempts *prometheus.CounterVec
	resolverLatency  *prometheus.HistogramVec
	cacheEvents      *prometheus.CounterVec
	crmCalls         *prometheus.CounterVec
	crmRetries       prometheus.Counter
	crmLatency       prometheus.Histogram

	// Plain counters mirrored for the JSON snapshot endpoint.
	mu             sync.Mutex
	startTime      time.Time
	resolverCounts map[string]int64
	resolverMillis map[string]int64
	cacheHits      map[string]int64
	cacheMisses    map[string]int64
}

// Config configures the collector.
type Config struct {
	// Registry to use (if nil, creates a new one).
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds).
	LatencyBuckets []float64
}

// DefaultConfig returns default collector configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}
}

// New creates a collector and registers its metrics.
func New(cfg Config) *Collector {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry:       registry,
		startTime:      time.Now(),
		resolverCounts: make(map[string]int64),
		resolverMillis: make(map[string]int64),
		cacheHits:      make(map[string]int64),
		cacheMisses:    make(map[string]int64),
	}

	c.resolverAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cleanbrain",
			Subsystem: "resolver",
			Name:      "attempts_total",
			Help:      "Resolver attempts by rule and outcome",
		},
		[]string{"rule", "status"},
	)
	c.resolverLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cleanbrain",
			Subsystem: "resolver",
			Name:      "latency_seconds",
			Help:      "Resolver attempt latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"rule"},
	)
	c.cacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cleanbrain",
			Subsystem: "cache",
			Name:      "events_total",
			Help:      "Cache lookups by area and result",
		},
		[]string{"area", "result"},
	)
	c.crmCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cleanbrain",
			Subsystem: "crm",
			Name:      "calls_total",
			Help:      "Outbound CRM calls by method and status",
		},
		[]string{"method", "status"},
	)
	c.crmRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cleanbrain",
			Subsystem: "crm",
			Name:      "retries_total",
			Help:      "Outbound CRM retries after 503 or transport errors",
		},
	)
	c.crmLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cleanbrain",
			Subsystem: "crm",
			Name:      "call_latency_seconds",
			Help:      "Outbound CRM call latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
	)

	registry.MustRegister(
		c.resolverAttempts,
		c.resolverLatency,
		c.cacheEvents,
		c.crmCalls,
		c.crmRetries,
		c.crmLatency,
	)
	return c
}

// Handler returns the Prometheus scrape handler for this collector.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordResolver records one resolver attempt.
func (c *Collector) RecordResolver(rule string, hit bool, elapsed time.Duration) {
	status := "miss"
	if hit {
		status = "hit"
	}
	c.resolverAttempts.WithLabelValues(rule, status).Inc()
	c.resolverLatency.WithLabelValues(rule).Observe(elapsed.Seconds())

	c.mu.Lock()
	c.resolverCounts[rule]++
	c.resolverMillis[rule] += elapsed.Milliseconds()
	c.mu.Unlock()
}

// RecordCache records one cache lookup for a data area.
func (c *Collector) RecordCache(area string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheEvents.WithLabelValues(area, result).Inc()

	c.mu.Lock()
	if hit {
		c.cacheHits[area]++
	} else {
		c.cacheMisses[area]++
	}
	c.mu.Unlock()
}

// RecordCRMCall records one completed outbound CRM call.
func (c *Collector) RecordCRMCall(method, status string, elapsed time.Duration) {
	c.crmCalls.WithLabelValues(method, status).Inc()
	c.crmLatency.Observe(elapsed.Seconds())
}

// RecordCRMRetry records one retry of an outbound CRM call.
func (c *Collector) RecordCRMRetry() {
	c.crmRetries.Inc()
}

// Snapshot is the JSON shape served by GET /api/v1/metrics.
type Snapshot struct {
	StartTime      time.Time        `json:"start_time"`
	UptimeSec      int64            `json:"uptime_sec"`
	ResolverCounts map[string]int64 `json:"resolver_counts"`
	ResolverMillis map[string]int64 `json:"resolver_ms"`
	CacheHits      map[string]int64 `json:"cache_hits"`
	CacheMisses    map[string]int64 `json:"cache_misses"`
}

// Snapshot returns a copy of the in-process counters.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		StartTime:      c.startTime,
		UptimeSec:      int64(time.Since(c.startTime).Seconds()),
		ResolverCounts: make(map[string]int64, len(c.resolverCounts)),
		ResolverMillis: make(map[string]int64, len(c.resolverMillis)),
		CacheHits:      make(map[string]int64, len(c.cacheHits)),
		CacheMisses:    make(map[string]int64, len(c.cacheMisses)),
	}
	for k, v := range c.resolverCounts {
		snap.ResolverCounts[k] = v
	}
	for k, v := range c.resolverMillis {
		snap.ResolverMillis[k] = v
	}
	for k, v := range c.cacheHits {
		snap.CacheHits[k] = v
	}
	for k, v := range c.cacheMisses {
		snap.CacheMisses[k] = v
	}
	return snap
}
