package monitoring

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const maxSamples = 1000

// latencySamples keeps the most recent durations for percentile queries
type latencySamples struct {
	mu      sync.RWMutex
	samples []time.Duration
}

func (s *latencySamples) add(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, d)
	if len(s.samples) > maxSamples {
		s.samples = s.samples[len(s.samples)-maxSamples:]
	}
}

func (s *latencySamples) percentile(p float64) time.Duration {
	s.mu.RLock()
	times := make([]time.Duration, len(s.samples))
	copy(times, s.samples)
	s.mu.RUnlock()

	if len(times) == 0 {
		return 0
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	index := int(float64(len(times)-1) * p / 100.0)
	if index >= len(times) {
		index = len(times) - 1
	}
	return times[index]
}

func (s *latencySamples) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples)
}

type metricCounters struct {
	evaluations int64
	unavailable int64
	panics      int64
	latency     *latencySamples
}

// Metrics holds application metrics
type Metrics struct {
	RequestCount     int64
	ErrorCount       int64
	CacheHits        int64
	CacheMisses      int64
	RatingsComputed  int64
	RatingsRejected  int64
	RatingsPersisted int64
	StartTime        time.Time

	responseTimes latencySamples

	statusMutex          sync.RWMutex
	requestCountByStatus map[int]int64

	externalAPIMutex      sync.RWMutex
	externalAPIRequests   map[string]int64
	externalAPIErrorCount map[string]int64

	evaluatorMutex sync.RWMutex
	evaluators     map[string]*metricCounters

	RateLimitIPBlocks       int64
	RateLimitRedisErrors    int64
	RateLimitFallbackCount  int64
	rateLimitMutex          sync.RWMutex
	rateLimitEndpointBlocks map[string]int64
}

func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:               time.Now(),
		requestCountByStatus:    make(map[int]int64),
		externalAPIRequests:     make(map[string]int64),
		externalAPIErrorCount:   make(map[string]int64),
		evaluators:              make(map[string]*metricCounters),
		rateLimitEndpointBlocks: make(map[string]int64),
	}
}

func (m *Metrics) IncrementRequest()     { atomic.AddInt64(&m.RequestCount, 1) }
func (m *Metrics) IncrementError()       { atomic.AddInt64(&m.ErrorCount, 1) }
func (m *Metrics) IncrementCacheHit()    { atomic.AddInt64(&m.CacheHits, 1) }
func (m *Metrics) IncrementCacheMiss()   { atomic.AddInt64(&m.CacheMisses, 1) }
func (m *Metrics) IncrementRatingSaved() { atomic.AddInt64(&m.RatingsPersisted, 1) }

// RecordRating counts a scoring request that produced a report or was refused
func (m *Metrics) RecordRating(accepted bool) {
	if accepted {
		atomic.AddInt64(&m.RatingsComputed, 1)
		return
	}
	atomic.AddInt64(&m.RatingsRejected, 1)
}

// RecordResponseTime records an HTTP response time for percentiles
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	m.responseTimes.add(duration)
}

// RecordRequestByStatus records request count by HTTP status code
func (m *Metrics) RecordRequestByStatus(statusCode int) {
	m.statusMutex.Lock()
	defer m.statusMutex.Unlock()
	m.requestCountByStatus[statusCode]++
}

// RecordExternalAPIRequest records a provider call
func (m *Metrics) RecordExternalAPIRequest(apiName string, success bool) {
	m.externalAPIMutex.Lock()
	defer m.externalAPIMutex.Unlock()

	m.externalAPIRequests[apiName]++
	if !success {
		m.externalAPIErrorCount[apiName]++
	}
}

func (m *Metrics) evaluator(metric string) *metricCounters {
	m.evaluatorMutex.Lock()
	defer m.evaluatorMutex.Unlock()

	c, ok := m.evaluators[metric]
	if !ok {
		c = &metricCounters{latency: &latencySamples{}}
		m.evaluators[metric] = c
	}
	return c
}

// RecordEvaluation records one evaluator run
func (m *Metrics) RecordEvaluation(metric string, latency time.Duration, available bool) {
	c := m.evaluator(metric)
	atomic.AddInt64(&c.evaluations, 1)
	if !available {
		atomic.AddInt64(&c.unavailable, 1)
	}
	c.latency.add(latency)
}

// RecordEvaluatorPanic records an evaluator that had to be recovered
func (m *Metrics) RecordEvaluatorPanic(metric string) {
	atomic.AddInt64(&m.evaluator(metric).panics, 1)
}

// GetPercentileResponseTime calculates percentile response time
func (m *Metrics) GetPercentileResponseTime(percentile float64) time.Duration {
	return m.responseTimes.percentile(percentile)
}

// GetStatusCodeDistribution returns request count by status code
func (m *Metrics) GetStatusCodeDistribution() map[int]int64 {
	m.statusMutex.RLock()
	defer m.statusMutex.RUnlock()

	distribution := make(map[int]int64, len(m.requestCountByStatus))
	for code, count := range m.requestCountByStatus {
		distribution[code] = count
	}
	return distribution
}

// GetExternalAPIStats returns per-provider call and error counts
func (m *Metrics) GetExternalAPIStats() map[string]interface{} {
	m.externalAPIMutex.RLock()
	defer m.externalAPIMutex.RUnlock()

	stats := make(map[string]interface{}, len(m.externalAPIRequests))
	for api, requests := range m.externalAPIRequests {
		errors := m.externalAPIErrorCount[api]
		errorRate := float64(0)
		if requests > 0 {
			errorRate = float64(errors) / float64(requests) * 100
		}
		stats[api] = map[string]interface{}{
			"requests":   requests,
			"errors":     errors,
			"error_rate": errorRate,
		}
	}
	return stats
}

// GetEvaluatorStats returns per-metric run counts and latency percentiles
func (m *Metrics) GetEvaluatorStats() map[string]interface{} {
	m.evaluatorMutex.RLock()
	defer m.evaluatorMutex.RUnlock()

	stats := make(map[string]interface{}, len(m.evaluators))
	for metric, c := range m.evaluators {
		stats[metric] = map[string]interface{}{
			"evaluations":    atomic.LoadInt64(&c.evaluations),
			"unavailable":    atomic.LoadInt64(&c.unavailable),
			"panics":         atomic.LoadInt64(&c.panics),
			"p50_latency_ms": float64(c.latency.percentile(50)) / 1e6,
			"p95_latency_ms": float64(c.latency.percentile(95)) / 1e6,
			"samples":        c.latency.count(),
		}
	}
	return stats
}

// GetRateLimitStats returns rate limiting statistics
func (m *Metrics) GetRateLimitStats() map[string]interface{} {
	m.rateLimitMutex.RLock()
	endpointBlocks := make(map[string]int64, len(m.rateLimitEndpointBlocks))
	for k, v := range m.rateLimitEndpointBlocks {
		endpointBlocks[k] = v
	}
	m.rateLimitMutex.RUnlock()

	return map[string]interface{}{
		"ip_blocks":       atomic.LoadInt64(&m.RateLimitIPBlocks),
		"redis_errors":    atomic.LoadInt64(&m.RateLimitRedisErrors),
		"fallback_count":  atomic.LoadInt64(&m.RateLimitFallbackCount),
		"endpoint_blocks": endpointBlocks,
	}
}

func (m *Metrics) IncrementRateLimitIPBlock()     { atomic.AddInt64(&m.RateLimitIPBlocks, 1) }
func (m *Metrics) IncrementRateLimitRedisError()  { atomic.AddInt64(&m.RateLimitRedisErrors, 1) }
func (m *Metrics) IncrementRateLimitFallback()    { atomic.AddInt64(&m.RateLimitFallbackCount, 1) }

// IncrementRateLimitEndpoint counts requests blocked on a specific endpoint
func (m *Metrics) IncrementRateLimitEndpoint(endpoint string) {
	m.rateLimitMutex.Lock()
	defer m.rateLimitMutex.Unlock()
	m.rateLimitEndpointBlocks[endpoint]++
}

// GetStats returns a snapshot of every metric
func (m *Metrics) GetStats() map[string]interface{} {
	requests := atomic.LoadInt64(&m.RequestCount)
	errors := atomic.LoadInt64(&m.ErrorCount)
	cacheHits := atomic.LoadInt64(&m.CacheHits)
	cacheMisses := atomic.LoadInt64(&m.CacheMisses)

	errorRate := float64(0)
	if requests > 0 {
		errorRate = float64(errors) / float64(requests) * 100
	}
	cacheHitRate := float64(0)
	if total := cacheHits + cacheMisses; total > 0 {
		cacheHitRate = float64(cacheHits) / float64(total) * 100
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return map[string]interface{}{
		"uptime_seconds":         time.Since(m.StartTime).Seconds(),
		"start_time":             m.StartTime.Format(time.RFC3339),
		"total_requests":         requests,
		"error_count":            errors,
		"error_rate_percent":     errorRate,
		"cache_hits":             cacheHits,
		"cache_misses":           cacheMisses,
		"cache_hit_rate_percent": cacheHitRate,

		"ratings_computed":  atomic.LoadInt64(&m.RatingsComputed),
		"ratings_rejected":  atomic.LoadInt64(&m.RatingsRejected),
		"ratings_persisted": atomic.LoadInt64(&m.RatingsPersisted),

		"p50_response_time_ms":     float64(m.GetPercentileResponseTime(50)) / 1e6,
		"p95_response_time_ms":     float64(m.GetPercentileResponseTime(95)) / 1e6,
		"p99_response_time_ms":     float64(m.GetPercentileResponseTime(99)) / 1e6,
		"status_code_distribution": m.GetStatusCodeDistribution(),
		"external_api_stats":       m.GetExternalAPIStats(),
		"evaluator_stats":          m.GetEvaluatorStats(),
		"rate_limit_stats":         m.GetRateLimitStats(),

		"go_goroutines":       runtime.NumGoroutine(),
		"go_gc_count":         mem.NumGC,
		"go_heap_alloc_bytes": mem.HeapAlloc,
		"go_heap_sys_bytes":   mem.HeapSys,
	}
}
