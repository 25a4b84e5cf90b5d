// Package metrics holds the process-wide counters of the KV service. The
// Registry is explicitly constructed and injected rather than a package
// singleton, so tests can run against isolated instances. Counters are
// independent atomics: snapshots never block writers, and consistency
// across counters is best-effort.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the set of monotonic counters incremented by the KV
// orchestrator.
type Registry struct {
	start time.Time

	requests  atomic.Uint64
	successes atomic.Uint64
	errors    atomic.Uint64

	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64

	storeGets   atomic.Uint64
	storeWrites atomic.Uint64
	storeNanos  atomic.Uint64
}

// NewRegistry creates an empty Registry. Uptime is measured from this call.
func NewRegistry() *Registry {
	return &Registry{start: time.Now()}
}

// IncRequests records an inbound operation entering the orchestrator.
func (r *Registry) IncRequests() { r.requests.Add(1) }

// IncSuccess records a terminal successful outcome.
func (r *Registry) IncSuccess() { r.successes.Add(1) }

// IncError records a terminal error outcome.
func (r *Registry) IncError() { r.errors.Add(1) }

// IncCacheHit records a cache hit during a read.
func (r *Registry) IncCacheHit() { r.cacheHits.Add(1) }

// IncCacheMiss records a cache miss during a read.
func (r *Registry) IncCacheMiss() { r.cacheMisses.Add(1) }

// ObserveStoreGet records one store read and its duration.
func (r *Registry) ObserveStoreGet(d time.Duration) {
	r.storeGets.Add(1)
	r.storeNanos.Add(uint64(d.Nanoseconds()))
}

// ObserveStoreWrite records one store put or delete and its duration.
// Deletes count as writes, matching the store's own accounting.
func (r *Registry) ObserveStoreWrite(d time.Duration) {
	r.storeWrites.Add(1)
	r.storeNanos.Add(uint64(d.Nanoseconds()))
}

// Snapshot is a point-in-time view of the counters with derived values.
type Snapshot struct {
	TotalRequests uint64 `json:"total_requests"`
	TotalSuccess  uint64 `json:"total_success"`
	TotalErrors   uint64 `json:"total_errors"`

	CacheHits    uint64  `json:"cache_hits"`
	CacheMisses  uint64  `json:"cache_misses"`
	CacheHitRate float64 `json:"cache_hit_rate"`

	StoreGetQueries   uint64  `json:"store_get_queries"`
	StoreWriteQueries uint64  `json:"store_write_queries"`
	StoreAvgLatencyMS float64 `json:"store_avg_latency_ms"`

	UptimeSeconds int64 `json:"uptime_seconds"`
	TimestampMS   int64 `json:"timestamp_ms"`
}

// Snapshot reads every counter without blocking writers. The hit rate is a
// percentage; both derived values are 0 when their denominator is 0.
func (r *Registry) Snapshot() Snapshot {
	now := time.Now()
	s := Snapshot{
		TotalRequests:     r.requests.Load(),
		TotalSuccess:      r.successes.Load(),
		TotalErrors:       r.errors.Load(),
		CacheHits:         r.cacheHits.Load(),
		CacheMisses:       r.cacheMisses.Load(),
		StoreGetQueries:   r.storeGets.Load(),
		StoreWriteQueries: r.storeWrites.Load(),
		UptimeSeconds:     int64(now.Sub(r.start).Seconds()),
		TimestampMS:       now.UnixMilli(),
	}
	if lookups := s.CacheHits + s.CacheMisses; lookups > 0 {
		s.CacheHitRate = 100 * float64(s.CacheHits) / float64(lookups)
	}
	if queries := s.StoreGetQueries + s.StoreWriteQueries; queries > 0 {
		s.StoreAvgLatencyMS = float64(r.storeNanos.Load()) / 1e6 / float64(queries)
	}
	return s
}

// collector bridges the Registry into the Prometheus exposition format.
// The atomics stay the source of truth; Collect reads them on scrape.
type collector struct {
	r *Registry

	requests    *prometheus.Desc
	successes   *prometheus.Desc
	errors      *prometheus.Desc
	cacheHits   *prometheus.Desc
	cacheMisses *prometheus.Desc
	storeGets   *prometheus.Desc
	storeWrites *prometheus.Desc
	storeTime   *prometheus.Desc
}

// Collector returns a prometheus.Collector exposing the registry counters.
func (r *Registry) Collector() prometheus.Collector {
	return &collector{
		r:           r,
		requests:    prometheus.NewDesc("kv_requests_total", "Total operations entering the orchestrator.", nil, nil),
		successes:   prometheus.NewDesc("kv_success_total", "Operations that completed successfully.", nil, nil),
		errors:      prometheus.NewDesc("kv_errors_total", "Operations that ended in an error.", nil, nil),
		cacheHits:   prometheus.NewDesc("kv_cache_hits_total", "Cache hits during reads.", nil, nil),
		cacheMisses: prometheus.NewDesc("kv_cache_misses_total", "Cache misses during reads.", nil, nil),
		storeGets:   prometheus.NewDesc("kv_store_get_queries_total", "Persistent store read operations.", nil, nil),
		storeWrites: prometheus.NewDesc("kv_store_write_queries_total", "Persistent store put and delete operations.", nil, nil),
		storeTime:   prometheus.NewDesc("kv_store_latency_seconds_total", "Accumulated persistent store operation time.", nil, nil),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requests
	ch <- c.successes
	ch <- c.errors
	ch <- c.cacheHits
	ch <- c.cacheMisses
	ch <- c.storeGets
	ch <- c.storeWrites
	ch <- c.storeTime
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	counter(c.requests, c.r.requests.Load())
	counter(c.successes, c.r.successes.Load())
	counter(c.errors, c.r.errors.Load())
	counter(c.cacheHits, c.r.cacheHits.Load())
	counter(c.cacheMisses, c.r.cacheMisses.Load())
	counter(c.storeGets, c.r.storeGets.Load())
	counter(c.storeWrites, c.r.storeWrites.Load())
	ch <- prometheus.MustNewConstMetric(c.storeTime, prometheus.CounterValue, float64(c.r.storeNanos.Load())/1e9)
}
