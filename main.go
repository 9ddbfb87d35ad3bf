package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"lyricsync-go/cache"
	"lyricsync-go/circuitbreaker"
	"lyricsync-go/config"
	"lyricsync-go/logcolors"
	"lyricsync-go/middleware"
	"lyricsync-go/services/fallback"
	"lyricsync-go/services/notifier"
	"lyricsync-go/services/providers"
	"lyricsync-go/services/providers/acrcloud"
	"lyricsync-go/services/providers/audd"
	"lyricsync-go/services/providers/musixmatch"
	"lyricsync-go/stats"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var conf = config.MustLoad()

var (
	persistentCache *cache.PersistentCache
	statsStore      *stats.Store
	breakers        *circuitbreaker.Group
	orchestrator    *fallback.Orchestrator
	inFlightReqs    sync.Map
)

func init() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)

	level, err := log.ParseLevel(conf.Configuration.LogLevel)
	if err != nil {
		log.Warnf("%s Unknown LOG_LEVEL %q, using info", logcolors.LogConfig, conf.Configuration.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

// newRegistry registers every provider this server knows about.
// Providers with missing credentials are registered but report Enabled() == false.
func newRegistry(c config.Config) *providers.Registry {
	timeout := time.Duration(c.Configuration.ProviderTimeoutSecs) * time.Second

	registry := providers.NewRegistry()
	registry.Register(acrcloud.New(acrcloud.Config{
		Host:         c.ACRCloud.Host,
		AccessKey:    c.ACRCloud.AccessKey,
		AccessSecret: c.ACRCloud.AccessSecret,
		Timeout:      timeout,
	}))
	registry.Register(audd.New(audd.Config{
		APIToken: c.AudD.APIToken,
		BaseURL:  c.AudD.BaseURL,
		Timeout:  timeout,
	}))
	registry.Register(musixmatch.New(musixmatch.Config{
		APIKey:  c.Musixmatch.APIKey,
		BaseURL: c.Musixmatch.BaseURL,
		Timeout: timeout,
	}))
	return registry
}

// newAlerts builds breaker alerts from whichever notification channels are configured
func newAlerts(c config.Config) *notifier.BreakerAlerts {
	var notifiers []notifier.Notifier
	if c.Notifier.NtfyTopic != "" {
		notifiers = append(notifiers, &notifier.NtfyNotifier{
			Topic:  c.Notifier.NtfyTopic,
			Server: c.Notifier.NtfyServer,
		})
	}
	if c.Notifier.TelegramBotToken != "" && c.Notifier.TelegramChatID != 0 {
		notifiers = append(notifiers, &notifier.TelegramNotifier{
			BotToken: c.Notifier.TelegramBotToken,
			ChatID:   c.Notifier.TelegramChatID,
		})
	}

	alerts := notifier.NewBreakerAlerts(notifiers, time.Duration(c.Notifier.AlertCooldownSecs)*time.Second)
	if alerts.Enabled() {
		log.Infof("%s Circuit breaker alerts enabled (%d channels)", logcolors.LogNotifier, len(notifiers))
	}
	return alerts
}

// newBreakers builds the per-provider circuit breakers; every hook sees each transition
func newBreakers(c config.Config, hooks ...circuitbreaker.StateChangeFunc) *circuitbreaker.Group {
	base := circuitbreaker.Config{
		Threshold: c.Configuration.CircuitBreakerThreshold,
		Cooldown:  time.Duration(c.Configuration.CircuitBreakerCooldownSecs) * time.Second,
	}
	if len(hooks) > 0 {
		base.OnStateChange = func(name string, from, to circuitbreaker.State) {
			for _, hook := range hooks {
				hook(name, from, to)
			}
		}
	}
	return circuitbreaker.NewGroup(base)
}

// newOrchestrator resolves the configured priority lists against registry
func newOrchestrator(c config.Config, registry *providers.Registry, group *circuitbreaker.Group) *fallback.Orchestrator {
	identifiers, skipped := registry.Identifiers(c.Providers.Identify)
	for _, name := range skipped {
		log.Warnf("%s IDENTIFY_PROVIDERS: %q cannot identify audio, ignoring", logcolors.LogConfig, name)
	}
	finders, skipped := registry.LyricsFinders(c.Providers.Lyrics)
	for _, name := range skipped {
		log.Warnf("%s LYRICS_PROVIDERS: %q cannot find lyrics, ignoring", logcolors.LogConfig, name)
	}

	o := fallback.New(fallback.Options{
		AttemptTimeout: time.Duration(c.Configuration.ProviderTimeoutSecs) * time.Second,
		Breakers:       group,
		Recorder:       stats.Get(),
	}, identifiers, finders)

	for _, cand := range o.IdentifyCandidates() {
		log.Infof("%s identify candidate %s (enabled=%v)", logcolors.Provider(cand.Name), cand.Name, cand.Enabled)
	}
	for _, cand := range o.LyricsCandidates() {
		log.Infof("%s lyrics candidate %s (enabled=%v)", logcolors.Provider(cand.Name), cand.Name, cand.Enabled)
	}
	return o
}

// newHandler wraps the router with logging, CORS and per-IP rate limiting.
// Idle rate limit buckets are swept until ctx is done.
func newHandler(ctx context.Context, router http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: conf.Configuration.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{"X-Cache-Status", "X-Provider", middleware.RequestIDHeader,
			"X-RateLimit-Limit", "X-RateLimit-Remaining"},
	})

	limiter := middleware.NewIPRateLimiter(
		rate.Limit(conf.Configuration.RateLimitPerSecond),
		conf.Configuration.RateLimitBurstLimit,
	)
	go limiter.StartSweeper(ctx, time.Minute, middleware.DefaultLimiterIdle)

	loggedRouter := middleware.LoggingMiddleware(router)
	corsHandler := c.Handler(loggedRouter)
	return limiter.Limit(corsHandler)
}

func main() {
	var err error

	persistentCache, err = cache.NewPersistentCache(conf.Configuration.CachePath, conf.FeatureFlags.CacheCompression)
	if err != nil {
		log.Fatalf("%s Failed to initialize persistent cache: %v", logcolors.LogCacheInit, err)
	}

	statsStore, err = stats.NewStore(conf.Configuration.StatsPath, stats.Get())
	if err != nil {
		log.Fatalf("%s Failed to initialize stats store: %v", logcolors.LogStats, err)
	}
	if err := statsStore.Load(); err != nil {
		log.Warnf("%s Starting with fresh stats: %v", logcolors.LogStats, err)
	}
	statsStore.StartAutoSave(time.Duration(conf.Configuration.StatsSaveIntervalInSeconds) * time.Second)

	alerts := newAlerts(conf)
	breakers = newBreakers(conf, stats.Get().Metrics().ObserveCircuitState, alerts.OnStateChange)
	orchestrator = newOrchestrator(conf, newRegistry(conf), breakers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go startCachePurge(ctx, time.Duration(conf.Configuration.CacheInvalidationIntervalInSeconds)*time.Second)

	router := mux.NewRouter()
	setupRoutes(router)

	srv := &http.Server{
		Addr:              ":" + conf.Configuration.Port,
		Handler:           newHandler(ctx, router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("%s Listening on port %s", logcolors.LogServer, conf.Configuration.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("%s Server failed: %v", logcolors.LogServer, err)
		}
	}()

	<-ctx.Done()
	log.Infof("%s Shutting down", logcolors.LogServer)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("%s Graceful shutdown failed: %v", logcolors.LogServer, err)
	}

	alerts.Wait()

	if err := statsStore.Close(); err != nil {
		log.Errorf("%s Failed to close stats store: %v", logcolors.LogStats, err)
	}
	if err := persistentCache.Close(); err != nil {
		log.Errorf("%s Failed to close cache: %v", logcolors.LogCache, err)
	}
}
