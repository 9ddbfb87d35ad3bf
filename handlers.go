package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lyricsync-go/cache"
	"lyricsync-go/circuitbreaker"
	"lyricsync-go/logcolors"
	"lyricsync-go/lrc"
	"lyricsync-go/services/fallback"
	"lyricsync-go/services/providers"
	"lyricsync-go/stats"

	log "github.com/sirupsen/logrus"
)

const audioFormField = "audio"

func identifyHandler(w http.ResponseWriter, r *http.Request) {
	maxBytes := conf.Configuration.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Respond(w, r).Fail(http.StatusRequestEntityTooLarge, "upload_too_large",
				fmt.Sprintf("Audio sample exceeds %d bytes", maxBytes))
			return
		}
		Respond(w, r).Fail(http.StatusBadRequest, "invalid_upload", "Expected a multipart form with an audio field")
		return
	}

	file, header, err := r.FormFile(audioFormField)
	if err != nil {
		Respond(w, r).Fail(http.StatusBadRequest, "no_audio", "Missing audio file in field 'audio'")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		log.Errorf("%s Failed to read upload: %v", logcolors.LogIdentify, err)
		Respond(w, r).Fail(http.StatusBadRequest, "invalid_upload", "Could not read audio sample")
		return
	}

	sample := providers.Sample{
		Data:        data,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}

	outcome, err := orchestrator.Identify(r.Context(), sample)
	if errors.Is(err, fallback.ErrNoAudio) {
		Respond(w, r).Fail(http.StatusBadRequest, "no_audio", "Audio sample is empty")
		return
	}
	if err != nil {
		log.Errorf("%s Identification failed: %v", logcolors.LogIdentify, err)
		Respond(w, r).Fail(http.StatusInternalServerError, "identify_failed", err.Error())
		return
	}

	stats.Get().RecordOutcome(fallback.OpIdentify, outcome.Found())
	if outcome.Found() {
		log.Infof("%s %s matched %d byte sample", logcolors.LogIdentify, *outcome.Provider, len(data))
	} else {
		log.Infof("%s No provider matched %d byte sample", logcolors.LogIdentify, len(data))
	}

	Respond(w, r).SetProviderPtr(outcome.Provider).JSON(outcome)
}

func lyricsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	title := strings.TrimSpace(query.Get("title"))
	artist := strings.TrimSpace(query.Get("artist"))

	// Nothing to look up: empty envelope, no provider call
	if title == "" && artist == "" {
		Respond(w, r).SetCacheStatus(cacheStatusBypass).JSON(fallback.LyricsOutcome{})
		return
	}

	cacheKey := buildLyricsCacheKey(title, artist)
	logQuery := title + " - " + artist

	if cached, ok := getCachedLyrics(cacheKey); ok {
		stats.Get().RecordCacheHit()
		stats.Get().RecordOutcome(fallback.OpLyrics, true)
		log.Infof("%s Found cached lyrics for: %s", logcolors.LogCacheLyrics, logQuery)
		Respond(w, r).SetCacheStatus(cacheStatusHit).SetProvider(cached.Provider).JSON(fallback.LyricsOutcome{
			Provider: &cached.Provider,
			Lyrics:   &cached.Lyrics,
		})
		return
	}

	if _, found := getNegativeCache(cacheKey); found {
		stats.Get().RecordNegativeCacheHit()
		stats.Get().RecordOutcome(fallback.OpLyrics, false)
		log.Infof("%s Returning cached 'no lyrics' response for: %s", logcolors.LogCacheNegative, logQuery)
		Respond(w, r).SetCacheStatus(cacheStatusNegativeHit).JSON(fallback.LyricsOutcome{})
		return
	}

	stats.Get().RecordCacheMiss()

	inFlight, loaded := inFlightReqs.LoadOrStore(cacheKey, &InFlightRequest{done: make(chan struct{})})
	req := inFlight.(*InFlightRequest)
	if loaded {
		log.Infof("%s Waiting for in-flight lookup: %s", logcolors.LogLyrics, logQuery)
		select {
		case <-req.done:
		case <-r.Context().Done():
			return
		}
		if req.err != nil {
			Respond(w, r).Fail(http.StatusInternalServerError, "lyrics_failed", req.err.Error())
			return
		}
		stats.Get().RecordOutcome(fallback.OpLyrics, req.outcome.Found())
		Respond(w, r).SetCacheStatus(cacheStatusMiss).SetProviderPtr(req.outcome.Provider).JSON(req.outcome)
		return
	}

	defer func() {
		inFlightReqs.Delete(cacheKey)
		close(req.done)
	}()

	// Waiters share this lookup, so it must outlive the leader's client
	outcome, err := orchestrator.LookupLyrics(context.WithoutCancel(r.Context()), title, artist)
	req.outcome, req.err = outcome, err
	if err != nil {
		log.Errorf("%s Lookup failed for %s: %v", logcolors.LogLyrics, logQuery, err)
		Respond(w, r).Fail(http.StatusInternalServerError, "lyrics_failed", err.Error())
		return
	}
	stats.Get().RecordOutcome(fallback.OpLyrics, outcome.Found())

	switch {
	case outcome.Found():
		setCachedLyrics(cacheKey, CachedLyrics{Provider: *outcome.Provider, Lyrics: *outcome.Lyrics})
		log.Infof("%s %s returned lyrics for: %s", logcolors.LogLyrics, *outcome.Provider, logQuery)
	case shouldNegativeCache(outcome.Attempts):
		setNegativeCache(cacheKey, "no provider has lyrics for this track")
	default:
		log.Warnf("%s No lyrics for %s, not caching (a provider failed)", logcolors.LogLyrics, logQuery)
	}

	Respond(w, r).SetCacheStatus(cacheStatusMiss).SetProviderPtr(outcome.Provider).JSON(outcome)
}

func parseLRCHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, conf.Configuration.MaxUploadBytes))
	if err != nil {
		Respond(w, r).Fail(http.StatusBadRequest, "invalid_body", "Could not read lyrics text")
		return
	}

	var at *float64
	if raw := r.URL.Query().Get("t"); raw != "" {
		t, err := strconv.ParseFloat(raw, 64)
		if err != nil || t < 0 {
			Respond(w, r).Fail(http.StatusBadRequest, "invalid_time", "Query parameter t must be a non-negative number of seconds")
			return
		}
		at = &t
	}

	lines, synced := lrc.FromText(string(body))
	resp := ParseResponse{Lines: lines, Synced: synced}
	if at != nil {
		if idx := lrc.ActiveIndex(lines, *at); idx != lrc.NoLine {
			resp.Active = &idx
		}
	}

	log.Debugf("%s Parsed %d lines (synced=%v)", logcolors.LogLRC, len(lines), synced)
	Respond(w, r).JSON(resp)
}

func getHealthStatus(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status: "ok",
		Providers: HealthProviders{
			Identify: orchestrator.IdentifyCandidates(),
			Lyrics:   orchestrator.LyricsCandidates(),
		},
		CircuitBreakers: breakers.Snapshots(),
	}

	if !anyEnabled(health.Providers.Identify) || !anyEnabled(health.Providers.Lyrics) {
		health.Status = "degraded"
	}
	for _, snap := range health.CircuitBreakers {
		if snap.State == circuitbreaker.StateOpen {
			health.Status = "degraded"
		}
	}

	Respond(w, r).JSON(health)
}

func anyEnabled(candidates []fallback.Candidate) bool {
	for _, c := range candidates {
		if c.Enabled {
			return true
		}
	}
	return false
}

func getStats(w http.ResponseWriter, r *http.Request) {
	snapshot := stats.Get().Snapshot()

	numKeys, sizeInKB := persistentCache.Stats()
	snapshot["cache_storage"] = map[string]interface{}{
		"keys":    numKeys,
		"size_kb": sizeInKB,
		"size_mb": float64(sizeInKB) / 1024,
	}
	snapshot["circuit_breakers"] = breakers.Snapshots()

	Respond(w, r).JSON(snapshot)
}

func getCacheDump(w http.ResponseWriter, r *http.Request) {
	cacheDump := CacheDump{}
	persistentCache.Range(func(key string, entry cache.CacheEntry) bool {
		cacheDump[key] = entry
		return true
	})

	numKeys, sizeInKB := persistentCache.Stats()
	s := stats.Get()

	Respond(w, r).JSON(CacheDumpResponse{
		NumberOfKeys: numKeys,
		SizeInKB:     sizeInKB,
		SizeInMB:     float64(sizeInKB) / 1024,
		Performance: CachePerformance{
			Hits:         s.CacheHits.Load(),
			Misses:       s.CacheMisses.Load(),
			NegativeHits: s.NegativeCacheHits.Load(),
			HitRate:      s.CacheHitRate(),
		},
		Cache: cacheDump,
	})
}

func clearCache(w http.ResponseWriter, r *http.Request) {
	numKeys, _ := persistentCache.Stats()
	if err := persistentCache.Clear(); err != nil {
		log.Errorf("%s Failed to clear cache: %v", logcolors.LogCacheClear, err)
		Respond(w, r).Fail(http.StatusInternalServerError, "cache_clear_failed", err.Error())
		return
	}

	log.Infof("%s Cache cleared (%d keys removed)", logcolors.LogCacheClear, numKeys)
	Respond(w, r).JSON(map[string]interface{}{
		"message": "Cache cleared successfully",
		"removed": numKeys,
	})
}

func getCircuitBreakerStatus(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(map[string]interface{}{
		"circuit_breakers": breakers.Snapshots(),
	})
}

func resetCircuitBreaker(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("provider"))
	if name == "" {
		n := breakers.ResetAll()
		log.Infof("%s Reset %d circuit breakers", logcolors.LogCircuitBreaker, n)
		Respond(w, r).JSON(map[string]interface{}{
			"message": "All circuit breakers reset to closed",
			"reset":   n,
		})
		return
	}

	if !breakers.Reset(name) {
		Respond(w, r).Fail(http.StatusNotFound, "unknown_provider",
			fmt.Sprintf("No circuit breaker for provider %q", name))
		return
	}

	log.Infof("%s Circuit breaker reset", logcolors.CircuitBreakerPrefix(name))
	Respond(w, r).JSON(map[string]interface{}{
		"message": "Circuit breaker reset to closed",
		"reset":   1,
	})
}

func helpHandler(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(map[string]interface{}{
		"message": "lyricsync identifies songs from short audio samples and finds their lyrics",
		"endpoints": map[string]string{
			"POST /identify":              "Identify a song. Multipart form, audio file in field 'audio'",
			"GET /lyrics":                 "Find lyrics. Query: title, artist",
			"POST /lrc/parse":             "Parse LRC or plain text lyrics. Optional query t=seconds returns the active line",
			"GET /health":                 "Provider availability and circuit breaker states",
			"GET /metrics":                "Prometheus metrics",
			"GET /stats":                  "Server statistics (admin)",
			"GET /cache":                  "Cache dump (admin)",
			"POST /cache/clear":           "Clear the lyrics cache (admin)",
			"GET /circuit-breaker":        "Circuit breaker states (admin)",
			"POST /circuit-breaker/reset": "Reset breakers. Optional query provider=name (admin)",
		},
		"uptime": time.Since(stats.Get().StartTime).Round(time.Second).String(),
	})
}
