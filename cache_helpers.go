package main

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"lyricsync-go/logcolors"
	"lyricsync-go/services/fallback"
	"lyricsync-go/stats"

	log "github.com/sirupsen/logrus"
)

const (
	lyricsKeyPrefix   = "lyrics:"
	negativeKeyPrefix = "no_lyrics:"
)

func lyricsCacheTTL() time.Duration {
	return time.Duration(conf.Configuration.LyricsCacheTTLInSeconds) * time.Second
}

func negativeCacheTTL() time.Duration {
	return time.Duration(conf.Configuration.NegativeCacheTTLInSeconds) * time.Second
}

// Lyrics cache operations

// getCachedLyrics returns the cached lookup for key. Unreadable entries count as misses.
func getCachedLyrics(key string) (CachedLyrics, bool) {
	cached, ok := persistentCache.Get(key)
	if !ok {
		return CachedLyrics{}, false
	}

	var entry CachedLyrics
	if err := json.Unmarshal([]byte(cached), &entry); err != nil || entry.Lyrics == "" {
		log.Warnf("%s Dropping unreadable cache entry %s", logcolors.LogCacheLyrics, key)
		persistentCache.Delete(key)
		return CachedLyrics{}, false
	}
	return entry, true
}

func setCachedLyrics(key string, entry CachedLyrics) {
	data, err := json.Marshal(entry)
	if err != nil {
		log.Errorf("%s Error marshaling cached lyrics: %v", logcolors.LogCacheLyrics, err)
		return
	}
	if err := persistentCache.Set(key, string(data), lyricsCacheTTL()); err != nil {
		log.Errorf("%s Error setting cache value: %v", logcolors.LogCacheLyrics, err)
	}
}

// Negative cache operations

// getNegativeCache reports whether key is a known "no lyrics" lookup
func getNegativeCache(key string) (string, bool) {
	cached, ok := persistentCache.Get(negativeKeyPrefix + key)
	if !ok {
		return "", false
	}

	var entry NegativeCacheEntry
	if err := json.Unmarshal([]byte(cached), &entry); err != nil {
		return "", false
	}
	return entry.Reason, true
}

func setNegativeCache(key, reason string) {
	entry := NegativeCacheEntry{
		Reason:    reason,
		Timestamp: time.Now().Unix(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		log.Errorf("%s Error marshaling negative cache entry: %v", logcolors.LogCacheNegative, err)
		return
	}
	if err := persistentCache.Set(negativeKeyPrefix+key, string(data), negativeCacheTTL()); err != nil {
		log.Errorf("%s Error setting negative cache: %v", logcolors.LogCacheNegative, err)
		return
	}
	log.Infof("%s Cached 'no lyrics' for key: %s (reason: %s)", logcolors.LogCacheNegative, key, reason)
}

// shouldNegativeCache is true only when every candidate gave a definite answer.
// A failure or an open circuit may hide lyrics that exist, so those lookups are retried.
func shouldNegativeCache(attempts []fallback.Attempt) bool {
	answered := false
	for _, a := range attempts {
		switch a.Status {
		case fallback.StatusNoMatch:
			answered = true
		case fallback.StatusDisabled:
		default:
			return false
		}
	}
	return answered
}

// Cache key builders

// buildLyricsCacheKey creates a normalized key so casing and spacing
// variations of the same song share an entry
func buildLyricsCacheKey(title, artist string) string {
	return lyricsKeyPrefix + normalizeKeyPart(title) + "|" + normalizeKeyPart(artist)
}

func normalizeKeyPart(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Expiry sweep

// purgeExpiredCache drops expired entries once
func purgeExpiredCache() {
	purged, err := persistentCache.PurgeExpired()
	if err != nil {
		log.Errorf("%s Failed to purge expired entries: %v", logcolors.LogCachePurge, err)
		return
	}
	if purged > 0 {
		stats.Get().RecordCachePurge(purged)
		log.Infof("%s Purged %d expired entries", logcolors.LogCachePurge, purged)
	}
}

// startCachePurge sweeps expired entries every interval until ctx is done
func startCachePurge(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		log.Warnf("%s Cache purge disabled (interval %v)", logcolors.LogCachePurge, interval)
		return
	}
	log.Infof("%s Starting cache purge every %v", logcolors.LogCachePurge, interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			purgeExpiredCache()
		case <-ctx.Done():
			return
		}
	}
}
