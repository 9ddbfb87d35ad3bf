package config

import (
	"os"
	"reflect"
	"testing"
)

// clearEnv unsets the given variables for the duration of the test
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	originalValues := make(map[string]string)
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			originalValues[key] = value
		}
		os.Unsetenv(key)
	}
	t.Cleanup(func() {
		for _, key := range keys {
			os.Unsetenv(key)
		}
		for key, value := range originalValues {
			os.Setenv(key, value)
		}
	})
}

var allKeys = []string{
	"PORT",
	"RATE_LIMIT_PER_SECOND",
	"RATE_LIMIT_BURST_LIMIT",
	"MAX_UPLOAD_BYTES",
	"PROVIDER_TIMEOUT_SECS",
	"LYRICS_CACHE_TTL_IN_SECONDS",
	"NEGATIVE_CACHE_TTL_IN_SECONDS",
	"STATS_PATH",
	"STATS_SAVE_INTERVAL_IN_SECONDS",
	"IDENTIFY_PROVIDERS",
	"LYRICS_PROVIDERS",
	"ACR_HOST",
	"ACR_ACCESS_KEY",
	"ACR_ACCESS_SECRET",
	"AUDD_KEY",
	"AUDD_BASE_URL",
	"MUSIXMATCH_KEY",
	"MUSIXMATCH_BASE_URL",
	"FF_CACHE_COMPRESSION",
	"ADMIN_TOKEN",
	"NOTIFIER_NTFY_TOPIC",
	"NOTIFIER_NTFY_SERVER",
	"NOTIFIER_TELEGRAM_BOT_TOKEN",
	"NOTIFIER_TELEGRAM_CHAT_ID",
	"NOTIFIER_ALERT_COOLDOWN_SECS",
}

func TestConfigDefaultValues(t *testing.T) {
	clearEnv(t, allKeys...)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"Port default", cfg.Configuration.Port, "8080"},
		{"RateLimitPerSecond default", cfg.Configuration.RateLimitPerSecond, 2},
		{"RateLimitBurstLimit default", cfg.Configuration.RateLimitBurstLimit, 5},
		{"MaxUploadBytes default", cfg.Configuration.MaxUploadBytes, int64(10485760)},
		{"ProviderTimeoutSecs default", cfg.Configuration.ProviderTimeoutSecs, 10},
		{"LyricsCacheTTLInSeconds default", cfg.Configuration.LyricsCacheTTLInSeconds, 86400},
		{"NegativeCacheTTLInSeconds default", cfg.Configuration.NegativeCacheTTLInSeconds, 3600},
		{"StatsPath default", cfg.Configuration.StatsPath, "./data/stats.db"},
		{"StatsSaveIntervalInSeconds default", cfg.Configuration.StatsSaveIntervalInSeconds, 300},
		{"AudD base URL default", cfg.AudD.BaseURL, "https://api.audd.io"},
		{"Musixmatch base URL default", cfg.Musixmatch.BaseURL, "https://api.musixmatch.com"},
		{"CacheCompression default", cfg.FeatureFlags.CacheCompression, true},
		{"Ntfy server default", cfg.Notifier.NtfyServer, "https://ntfy.sh"},
		{"Ntfy topic default", cfg.Notifier.NtfyTopic, ""},
		{"AlertCooldownSecs default", cfg.Notifier.AlertCooldownSecs, 900},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, tt.got)
			}
		})
	}

	if !reflect.DeepEqual(cfg.Providers.Identify, []string{"acrcloud", "audd"}) {
		t.Errorf("Unexpected identify order: %v", cfg.Providers.Identify)
	}
	if !reflect.DeepEqual(cfg.Providers.Lyrics, []string{"musixmatch", "audd"}) {
		t.Errorf("Unexpected lyrics order: %v", cfg.Providers.Lyrics)
	}
}

func TestConfigEnvironmentOverrides(t *testing.T) {
	clearEnv(t, allKeys...)
	os.Setenv("PORT", "3000")
	os.Setenv("RATE_LIMIT_PER_SECOND", "5")
	os.Setenv("PROVIDER_TIMEOUT_SECS", "3")
	os.Setenv("IDENTIFY_PROVIDERS", " AudD , acrcloud,audd")
	os.Setenv("ADMIN_TOKEN", "test_token_123")
	os.Setenv("FF_CACHE_COMPRESSION", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Configuration.Port != "3000" {
		t.Errorf("Expected port 3000, got %q", cfg.Configuration.Port)
	}
	if cfg.Configuration.RateLimitPerSecond != 5 {
		t.Errorf("Expected rate limit 5, got %d", cfg.Configuration.RateLimitPerSecond)
	}
	if cfg.Configuration.ProviderTimeoutSecs != 3 {
		t.Errorf("Expected provider timeout 3, got %d", cfg.Configuration.ProviderTimeoutSecs)
	}
	if cfg.Configuration.AdminToken != "test_token_123" {
		t.Errorf("Expected admin token override, got %q", cfg.Configuration.AdminToken)
	}
	if cfg.FeatureFlags.CacheCompression {
		t.Error("Expected compression to be disabled")
	}
	if !reflect.DeepEqual(cfg.Providers.Identify, []string{"audd", "acrcloud"}) {
		t.Errorf("Expected normalized, de-duplicated order, got %v", cfg.Providers.Identify)
	}
}

func TestCredentialsFromEnvironment(t *testing.T) {
	clearEnv(t, allKeys...)
	os.Setenv("ACR_HOST", "identify-eu-west-1.acrcloud.com")
	os.Setenv("ACR_ACCESS_KEY", "key")
	os.Setenv("ACR_ACCESS_SECRET", "secret")
	os.Setenv("AUDD_KEY", "audd")
	os.Setenv("MUSIXMATCH_KEY", "mxm")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"ACR host", cfg.ACRCloud.Host, "identify-eu-west-1.acrcloud.com"},
		{"ACR access key", cfg.ACRCloud.AccessKey, "key"},
		{"ACR access secret", cfg.ACRCloud.AccessSecret, "secret"},
		{"AudD token", cfg.AudD.APIToken, "audd"},
		{"Musixmatch key", cfg.Musixmatch.APIKey, "mxm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, tt.got)
			}
		})
	}
}

func TestMustLoad(t *testing.T) {
	clearEnv(t, allKeys...)
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("MustLoad() panicked: %v", r)
		}
	}()

	cfg := MustLoad()
	if cfg.Configuration.RateLimitPerSecond == 0 {
		t.Error("Expected MustLoad() to return defaults")
	}
}

func TestNormalizeNames(t *testing.T) {
	got := normalizeNames([]string{"", " ACRCloud", "acrcloud", "AudD "})
	want := []string{"acrcloud", "audd"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("normalizeNames() = %v, expected %v", got, want)
	}
}
