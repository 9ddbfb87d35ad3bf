package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	Configuration struct {
		Port                               string   `envconfig:"PORT" default:"8080"`
		AllowedOrigins                     []string `envconfig:"ALLOWED_ORIGINS" default:"*"`
		RateLimitPerSecond                 int      `envconfig:"RATE_LIMIT_PER_SECOND" default:"2"`
		RateLimitBurstLimit                int      `envconfig:"RATE_LIMIT_BURST_LIMIT" default:"5"`
		MaxUploadBytes                     int64    `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"`
		ProviderTimeoutSecs                int      `envconfig:"PROVIDER_TIMEOUT_SECS" default:"10"`
		CachePath                          string   `envconfig:"CACHE_PATH" default:"./data/cache.db"`
		LyricsCacheTTLInSeconds            int      `envconfig:"LYRICS_CACHE_TTL_IN_SECONDS" default:"86400"`
		NegativeCacheTTLInSeconds          int      `envconfig:"NEGATIVE_CACHE_TTL_IN_SECONDS" default:"3600"` // TTL for caching "no lyrics found" responses
		CacheInvalidationIntervalInSeconds int      `envconfig:"CACHE_INVALIDATION_INTERVAL_IN_SECONDS" default:"3600"`
		StatsPath                          string   `envconfig:"STATS_PATH" default:"./data/stats.db"`
		StatsSaveIntervalInSeconds         int      `envconfig:"STATS_SAVE_INTERVAL_IN_SECONDS" default:"300"`
		AdminToken                         string   `envconfig:"ADMIN_TOKEN" default:""`
		CircuitBreakerThreshold            int      `envconfig:"CIRCUIT_BREAKER_THRESHOLD" default:"5"`       // Consecutive failures before a provider is skipped
		CircuitBreakerCooldownSecs         int      `envconfig:"CIRCUIT_BREAKER_COOLDOWN_SECS" default:"300"` // Seconds to wait before retrying (default: 5 minutes)
		LogLevel                           string   `envconfig:"LOG_LEVEL" default:"info"`
	}

	// Priority lists, first entry is tried first
	Providers struct {
		Identify []string `envconfig:"IDENTIFY_PROVIDERS" default:"acrcloud,audd"`
		Lyrics   []string `envconfig:"LYRICS_PROVIDERS" default:"musixmatch,audd"`
	}

	ACRCloud   ACRCloudCredentials
	AudD       AudDCredentials
	Musixmatch MusixmatchCredentials

	// Circuit breaker alerts, a channel is active once its target is set
	Notifier struct {
		NtfyTopic         string `envconfig:"NOTIFIER_NTFY_TOPIC" default:""`
		NtfyServer        string `envconfig:"NOTIFIER_NTFY_SERVER" default:"https://ntfy.sh"`
		TelegramBotToken  string `envconfig:"NOTIFIER_TELEGRAM_BOT_TOKEN" default:""`
		TelegramChatID    int64  `envconfig:"NOTIFIER_TELEGRAM_CHAT_ID" default:"0"`
		AlertCooldownSecs int    `envconfig:"NOTIFIER_ALERT_COOLDOWN_SECS" default:"900"`
	}

	FeatureFlags struct {
		CacheCompression bool `envconfig:"FF_CACHE_COMPRESSION" default:"true"`
	}
}

// ACRCloudCredentials configures the signed-request identification provider
type ACRCloudCredentials struct {
	Host         string `envconfig:"ACR_HOST" default:""`
	AccessKey    string `envconfig:"ACR_ACCESS_KEY" default:""`
	AccessSecret string `envconfig:"ACR_ACCESS_SECRET" default:""`
}

// AudDCredentials configures the token-authenticated identification and lyrics provider
type AudDCredentials struct {
	APIToken string `envconfig:"AUDD_KEY" default:""`
	BaseURL  string `envconfig:"AUDD_BASE_URL" default:"https://api.audd.io"`
}

// MusixmatchCredentials configures the key-authenticated lyrics provider
type MusixmatchCredentials struct {
	APIKey  string `envconfig:"MUSIXMATCH_KEY" default:""`
	BaseURL string `envconfig:"MUSIXMATCH_BASE_URL" default:"https://api.musixmatch.com"`
}

// Load reads the configuration from the environment, loading .env first when present.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debugf("No .env file loaded: %v", err)
	}

	cfg := Config{}
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}

	cfg.Providers.Identify = normalizeNames(cfg.Providers.Identify)
	cfg.Providers.Lyrics = normalizeNames(cfg.Providers.Lyrics)
	return cfg, nil
}

// MustLoad is Load for startup code: errors are logged and defaults are kept.
func MustLoad() Config {
	c, err := Load()
	if err != nil {
		log.WithError(err).Warnf("Unable to load configuration")
	}

	return c
}

// normalizeNames lowercases and trims provider names, dropping empties and duplicates
func normalizeNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
