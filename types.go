package main

import (
	"lyricsync-go/cache"
	"lyricsync-go/circuitbreaker"
	"lyricsync-go/lrc"
	"lyricsync-go/services/fallback"
)

// X-Cache-Status values
const (
	cacheStatusHit         = "HIT"
	cacheStatusMiss        = "MISS"
	cacheStatusNegativeHit = "NEGATIVE_HIT"
	cacheStatusBypass      = "BYPASS"
)

// CacheDump represents the full cache contents
type CacheDump map[string]cache.CacheEntry

// CachePerformance contains cache hit/miss statistics
type CachePerformance struct {
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	NegativeHits int64   `json:"negative_hits"`
	HitRate      float64 `json:"hit_rate_percent"`
}

// CacheDumpResponse is the response format for /cache endpoint
type CacheDumpResponse struct {
	NumberOfKeys int              `json:"number_of_keys"`
	SizeInKB     int              `json:"size_kb"`
	SizeInMB     float64          `json:"size_mb"`
	Performance  CachePerformance `json:"performance"`
	Cache        CacheDump        `json:"cache"`
}

// InFlightRequest lets concurrent lookups for the same song share one provider round trip
// done is closed once outcome and err are final.
type InFlightRequest struct {
	done    chan struct{}
	outcome fallback.LyricsOutcome
	err     error
}

// CachedLyrics is the cached form of a successful lyrics lookup
type CachedLyrics struct {
	Provider string `json:"provider"`
	Lyrics   string `json:"lyrics"`
}

// NegativeCacheEntry stores info about lookups every provider answered with "no match"
type NegativeCacheEntry struct {
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"`
}

// ParseResponse is the /lrc/parse body. Active is null without ?t= or before the first line.
type ParseResponse struct {
	Lines  []lrc.Line `json:"lines"`
	Synced bool       `json:"synced"`
	Active *int       `json:"active"`
}

// HealthResponse is the /health body
type HealthResponse struct {
	Status          string                    `json:"status"`
	Providers       HealthProviders           `json:"providers"`
	CircuitBreakers []circuitbreaker.Snapshot `json:"circuit_breakers"`
}

// HealthProviders lists configured candidates per fallback chain
type HealthProviders struct {
	Identify []fallback.Candidate `json:"identify"`
	Lyrics   []fallback.Candidate `json:"lyrics"`
}
