// Package musixmatch looks up lyrics through the Musixmatch matcher API.
package musixmatch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lyricsync-go/logcolors"
	"lyricsync-go/services/providers"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	// ProviderName is the wire identifier for Musixmatch
	ProviderName = "Musixmatch"

	// DefaultBaseURL is the public Musixmatch API endpoint
	DefaultBaseURL = "https://api.musixmatch.com"

	matcherPath = "/ws/1.1/matcher.lyrics.get"

	statusOK       = 200
	statusNotFound = 404
)

// Config holds the Musixmatch API key
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Provider implements providers.LyricsFinder for Musixmatch
type Provider struct {
	conf       Config
	httpClient *http.Client
}

// New creates a Musixmatch provider
func New(conf Config) *Provider {
	if conf.BaseURL == "" {
		conf.BaseURL = DefaultBaseURL
	}
	conf.BaseURL = strings.TrimRight(conf.BaseURL, "/")

	return &Provider{
		conf:       conf,
		httpClient: providers.NewHTTPClient(conf.Timeout),
	}
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return ProviderName
}

// Enabled reports whether an API key is set
func (p *Provider) Enabled() bool {
	return p.conf.APIKey != ""
}

// FindLyrics returns the matched track's lyrics body
func (p *Provider) FindLyrics(ctx context.Context, title, artist string) (string, error) {
	if !p.Enabled() {
		return "", providers.NewProviderError(ProviderName, "API key not configured", nil)
	}

	params := url.Values{}
	params.Set("q_track", title)
	params.Set("q_artist", artist)
	params.Set("apikey", p.conf.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.conf.BaseURL+matcherPath+"?"+params.Encode(), nil)
	if err != nil {
		return "", providers.NewProviderError(ProviderName, "failed to create request", err)
	}

	log.Debugf("%s Matching lyrics: %s - %s", logcolors.Provider(ProviderName), title, artist)

	payload, err := providers.DoJSON(p.httpClient, req, ProviderName)
	if err != nil {
		return "", err
	}

	body := gjson.GetBytes(payload, "message.body.lyrics.lyrics_body")
	if body.Type == gjson.String && strings.TrimSpace(body.Str) != "" {
		return body.Str, nil
	}

	// The HTTP status is 200 even for misses; the real one lives in the message header
	code := gjson.GetBytes(payload, "message.header.status_code").Int()
	switch code {
	case statusOK, statusNotFound:
		return "", providers.NoMatch(ProviderName, fmt.Sprintf("no lyrics for: %s - %s", title, artist))
	default:
		return "", providers.NewProviderError(ProviderName, fmt.Sprintf("API returned status_code %d", code), nil)
	}
}
