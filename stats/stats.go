package stats

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"lyricsync-go/services/fallback"
)

const maxInt64 = int64(^uint64(0) >> 1)

// ProviderCounters tallies fallback attempts for one provider
type ProviderCounters struct {
	Matched     atomic.Int64
	NoMatch     atomic.Int64
	Failed      atomic.Int64
	Disabled    atomic.Int64
	CircuitOpen atomic.Int64
}

// Stats holds all server statistics with atomic counters
type Stats struct {
	// Server info
	StartTime time.Time

	// Request counters
	TotalRequests    atomic.Int64
	IdentifyRequests atomic.Int64
	LyricsRequests   atomic.Int64
	ParseRequests    atomic.Int64
	CacheRequests    atomic.Int64
	StatsRequests    atomic.Int64
	HealthRequests   atomic.Int64
	OtherRequests    atomic.Int64

	// Pipeline outcomes
	IdentifyMatched  atomic.Int64
	IdentifyNotFound atomic.Int64
	LyricsMatched    atomic.Int64
	LyricsNotFound   atomic.Int64

	// Cache performance
	CacheHits         atomic.Int64
	CacheMisses       atomic.Int64
	NegativeCacheHits atomic.Int64
	CachePurged       atomic.Int64

	RateLimitExceeded atomic.Int64

	// Response status codes
	Status2xx atomic.Int64
	Status4xx atomic.Int64
	Status5xx atomic.Int64

	// Response time tracking (in microseconds for precision)
	totalResponseTime atomic.Int64
	responseCount     atomic.Int64
	minResponseTime   atomic.Int64
	maxResponseTime   atomic.Int64

	// keyed by operation + "/" + provider
	providers sync.Map

	metrics *Metrics
}

// New creates a stats instance exporting to metrics (may be nil)
func New(metrics *Metrics) *Stats {
	s := &Stats{
		StartTime: time.Now(),
		metrics:   metrics,
	}
	s.minResponseTime.Store(maxInt64)
	return s
}

// Global stats instance
var global = New(NewMetrics())

// Get returns the global stats instance
func Get() *Stats {
	return global
}

// Metrics returns the Prometheus collectors backing this instance
func (s *Stats) Metrics() *Metrics {
	return s.metrics
}

// RecordRequest records a request to a specific endpoint
func (s *Stats) RecordRequest(endpoint string) {
	s.TotalRequests.Add(1)
	switch endpoint {
	case "/identify":
		s.IdentifyRequests.Add(1)
	case "/lyrics":
		s.LyricsRequests.Add(1)
	case "/lrc/parse":
		s.ParseRequests.Add(1)
	case "/cache", "/cache/clear":
		s.CacheRequests.Add(1)
	case "/stats":
		s.StatsRequests.Add(1)
	case "/health":
		s.HealthRequests.Add(1)
	default:
		s.OtherRequests.Add(1)
	}
}

// RecordOutcome records whether an identify or lyrics request found anything
func (s *Stats) RecordOutcome(op fallback.Operation, found bool) {
	switch {
	case op == fallback.OpIdentify && found:
		s.IdentifyMatched.Add(1)
	case op == fallback.OpIdentify:
		s.IdentifyNotFound.Add(1)
	case op == fallback.OpLyrics && found:
		s.LyricsMatched.Add(1)
	case op == fallback.OpLyrics:
		s.LyricsNotFound.Add(1)
	}
	if s.metrics != nil {
		s.metrics.observeOutcome(op, found)
	}
}

func (s *Stats) providerCounters(op fallback.Operation, provider string) *ProviderCounters {
	key := string(op) + "/" + provider
	if c, ok := s.providers.Load(key); ok {
		return c.(*ProviderCounters)
	}
	c, _ := s.providers.LoadOrStore(key, &ProviderCounters{})
	return c.(*ProviderCounters)
}

// RecordAttempt implements fallback.Recorder
func (s *Stats) RecordAttempt(op fallback.Operation, provider string, status fallback.Status, duration time.Duration) {
	c := s.providerCounters(op, provider)
	switch status {
	case fallback.StatusMatched:
		c.Matched.Add(1)
	case fallback.StatusNoMatch:
		c.NoMatch.Add(1)
	case fallback.StatusFailed:
		c.Failed.Add(1)
	case fallback.StatusDisabled:
		c.Disabled.Add(1)
	case fallback.StatusCircuitOpen:
		c.CircuitOpen.Add(1)
	}
	if s.metrics != nil {
		s.metrics.observeAttempt(op, provider, status, duration)
	}
}

// RecordCacheHit records a cache hit
func (s *Stats) RecordCacheHit() {
	s.CacheHits.Add(1)
	if s.metrics != nil {
		s.metrics.CacheLookups.WithLabelValues("hit").Inc()
	}
}

// RecordCacheMiss records a cache miss
func (s *Stats) RecordCacheMiss() {
	s.CacheMisses.Add(1)
	if s.metrics != nil {
		s.metrics.CacheLookups.WithLabelValues("miss").Inc()
	}
}

// RecordNegativeCacheHit records a negative cache hit
func (s *Stats) RecordNegativeCacheHit() {
	s.NegativeCacheHits.Add(1)
	if s.metrics != nil {
		s.metrics.CacheLookups.WithLabelValues("negative").Inc()
	}
}

// RecordCachePurge records entries removed by the expiry sweep
func (s *Stats) RecordCachePurge(n int) {
	s.CachePurged.Add(int64(n))
}

// RecordRateLimitExceeded records a rejected (429) request
func (s *Stats) RecordRateLimitExceeded() {
	s.RateLimitExceeded.Add(1)
	if s.metrics != nil {
		s.metrics.RateLimited.Inc()
	}
}

// RecordStatusCode records a response status code
func (s *Stats) RecordStatusCode(code int) {
	switch {
	case code >= 200 && code < 300:
		s.Status2xx.Add(1)
	case code >= 400 && code < 500:
		s.Status4xx.Add(1)
	case code >= 500:
		s.Status5xx.Add(1)
	}
}

// RecordResponseTime records a response time
func (s *Stats) RecordResponseTime(duration time.Duration, endpoint string, code int) {
	us := duration.Microseconds()

	s.totalResponseTime.Add(us)
	s.responseCount.Add(1)

	for {
		current := s.minResponseTime.Load()
		if us >= current || s.minResponseTime.CompareAndSwap(current, us) {
			break
		}
	}
	for {
		current := s.maxResponseTime.Load()
		if us <= current || s.maxResponseTime.CompareAndSwap(current, us) {
			break
		}
	}

	if s.metrics != nil {
		s.metrics.observeRequest(endpoint, code, duration)
	}
}

// Uptime returns the server uptime
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// CacheHitRate returns the cache hit rate as a percentage.
// Negative hits count as hits: they avoided a provider round trip.
func (s *Stats) CacheHitRate() float64 {
	hits := s.CacheHits.Load() + s.NegativeCacheHits.Load()
	total := hits + s.CacheMisses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// AvgResponseTime returns the average response time
func (s *Stats) AvgResponseTime() time.Duration {
	count := s.responseCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(s.totalResponseTime.Load()/count) * time.Microsecond
}

// MinResponseTime returns the minimum response time
func (s *Stats) MinResponseTime() time.Duration {
	min := s.minResponseTime.Load()
	if min == maxInt64 {
		return 0
	}
	return time.Duration(min) * time.Microsecond
}

// MaxResponseTime returns the maximum response time
func (s *Stats) MaxResponseTime() time.Duration {
	return time.Duration(s.maxResponseTime.Load()) * time.Microsecond
}

// ProviderSnapshot is one provider's attempt tally
type ProviderSnapshot struct {
	Operation   string `json:"operation"`
	Provider    string `json:"provider"`
	Matched     int64  `json:"matched"`
	NoMatch     int64  `json:"no_match"`
	Failed      int64  `json:"failed"`
	Disabled    int64  `json:"disabled"`
	CircuitOpen int64  `json:"circuit_open"`
}

// ProviderSnapshots returns provider tallies sorted by operation and name
func (s *Stats) ProviderSnapshots() []ProviderSnapshot {
	var out []ProviderSnapshot
	s.providers.Range(func(k, v any) bool {
		key := k.(string)
		c := v.(*ProviderCounters)
		op, provider := splitProviderKey(key)
		out = append(out, ProviderSnapshot{
			Operation:   op,
			Provider:    provider,
			Matched:     c.Matched.Load(),
			NoMatch:     c.NoMatch.Load(),
			Failed:      c.Failed.Load(),
			Disabled:    c.Disabled.Load(),
			CircuitOpen: c.CircuitOpen.Load(),
		})
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Operation != out[j].Operation {
			return out[i].Operation < out[j].Operation
		}
		return out[i].Provider < out[j].Provider
	})
	return out
}

func splitProviderKey(key string) (op, provider string) {
	op, provider, _ = strings.Cut(key, "/")
	return op, provider
}

// Snapshot returns a point-in-time snapshot of all stats
func (s *Stats) Snapshot() map[string]interface{} {
	uptime := s.Uptime()

	return map[string]interface{}{
		"server": map[string]interface{}{
			"start_time":     s.StartTime.Format(time.RFC3339),
			"uptime":         uptime.String(),
			"uptime_seconds": int64(uptime.Seconds()),
		},
		"requests": map[string]interface{}{
			"total":    s.TotalRequests.Load(),
			"identify": s.IdentifyRequests.Load(),
			"lyrics":   s.LyricsRequests.Load(),
			"parse":    s.ParseRequests.Load(),
			"cache":    s.CacheRequests.Load(),
			"stats":    s.StatsRequests.Load(),
			"health":   s.HealthRequests.Load(),
			"other":    s.OtherRequests.Load(),
		},
		"outcomes": map[string]interface{}{
			"identify_matched":   s.IdentifyMatched.Load(),
			"identify_not_found": s.IdentifyNotFound.Load(),
			"lyrics_matched":     s.LyricsMatched.Load(),
			"lyrics_not_found":   s.LyricsNotFound.Load(),
		},
		"providers": s.ProviderSnapshots(),
		"cache": map[string]interface{}{
			"hits":          s.CacheHits.Load(),
			"misses":        s.CacheMisses.Load(),
			"negative_hits": s.NegativeCacheHits.Load(),
			"purged":        s.CachePurged.Load(),
			"hit_rate":      s.CacheHitRate(),
		},
		"rate_limiting": map[string]interface{}{
			"exceeded": s.RateLimitExceeded.Load(),
		},
		"responses": map[string]interface{}{
			"2xx": s.Status2xx.Load(),
			"4xx": s.Status4xx.Load(),
			"5xx": s.Status5xx.Load(),
		},
		"response_times": map[string]interface{}{
			"avg": s.AvgResponseTime().String(),
			"min": s.MinResponseTime().String(),
			"max": s.MaxResponseTime().String(),
		},
	}
}
