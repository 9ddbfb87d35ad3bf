// Package audd talks to the AudD music recognition API. AudD serves both
// sample identification and a lyrics search.
package audd

import (
	"context"
	"encoding/json"
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
	// ProviderName is the wire identifier for AudD
	ProviderName = "AudD"

	// DefaultBaseURL is the public AudD endpoint
	DefaultBaseURL = "https://api.audd.io"

	findLyricsPath = "/findLyrics/"
	sampleFilename = "clip.webm"
	returnFields   = "lyrics,spotify"
	statusSuccess  = "success"
)

// Mapping flattens an AudD result object
var Mapping = providers.Mapping{
	providers.FieldTitle:       {"title", "song", "name"},
	providers.FieldArtist:      {"artist", "performer"},
	providers.FieldAlbum:       {"album"},
	providers.FieldExternalURL: {"spotify.external_urls.spotify", "song_link", "url"},
	providers.FieldLyrics:      {"lyrics.lyrics", "lyrics"},
}

// Config holds the AudD API token
type Config struct {
	APIToken string
	BaseURL  string
	Timeout  time.Duration
}

// Provider implements providers.Identifier and providers.LyricsFinder
type Provider struct {
	conf       Config
	httpClient *http.Client
}

// New creates an AudD provider
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

// Enabled reports whether an API token is set
func (p *Provider) Enabled() bool {
	return p.conf.APIToken != ""
}

// Identify uploads the sample and normalizes the recognized track
func (p *Provider) Identify(ctx context.Context, sample providers.Sample) (*providers.NormalizedResult, error) {
	if !p.Enabled() {
		return nil, providers.NewProviderError(ProviderName, "API token not configured", nil)
	}

	body, contentType, err := providers.EncodeMultipart("file", sample.FilenameOr(sampleFilename), sample,
		providers.FormField{Name: "api_token", Value: p.conf.APIToken},
		providers.FormField{Name: "return", Value: returnFields},
	)
	if err != nil {
		return nil, providers.NewProviderError(ProviderName, "failed to build request body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.conf.BaseURL+"/", body)
	if err != nil {
		return nil, providers.NewProviderError(ProviderName, "failed to create request", err)
	}
	req.Header.Set("Content-Type", contentType)

	log.Debugf("%s Uploading %d byte sample", logcolors.Provider(ProviderName), len(sample.Data))

	payload, err := providers.DoJSON(p.httpClient, req, ProviderName)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(payload); err != nil {
		return nil, err
	}

	// result is an object for single matches and an array otherwise
	match := gjson.GetBytes(payload, "result")
	if match.IsArray() {
		match = match.Get("0")
	}
	if !match.IsObject() {
		return nil, providers.NoMatch(ProviderName, "no result for sample")
	}

	result := providers.Normalize(ProviderName, json.RawMessage(match.Raw), Mapping)
	if !result.HasTitleOrArtist() {
		return nil, providers.NewProviderError(ProviderName, "match has neither title nor artist", nil)
	}
	return result, nil
}

// FindLyrics searches lyrics by a "title artist" query and returns the first hit
func (p *Provider) FindLyrics(ctx context.Context, title, artist string) (string, error) {
	if !p.Enabled() {
		return "", providers.NewProviderError(ProviderName, "API token not configured", nil)
	}

	params := url.Values{}
	params.Set("q", strings.TrimSpace(title+" "+artist))
	params.Set("api_token", p.conf.APIToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.conf.BaseURL+findLyricsPath+"?"+params.Encode(), nil)
	if err != nil {
		return "", providers.NewProviderError(ProviderName, "failed to create request", err)
	}

	log.Debugf("%s Searching lyrics: %s - %s", logcolors.Provider(ProviderName), title, artist)

	payload, err := providers.DoJSON(p.httpClient, req, ProviderName)
	if err != nil {
		return "", err
	}
	if err := checkStatus(payload); err != nil {
		return "", err
	}

	lyrics := gjson.GetBytes(payload, "result.0.lyrics")
	if lyrics.Type != gjson.String || strings.TrimSpace(lyrics.Str) == "" {
		return "", providers.NoMatch(ProviderName, fmt.Sprintf("no lyrics for: %s - %s", title, artist))
	}
	return lyrics.Str, nil
}

// checkStatus turns a non-success envelope into a ProviderError
func checkStatus(payload []byte) error {
	status := gjson.GetBytes(payload, "status").String()
	if status == statusSuccess {
		return nil
	}

	msg := gjson.GetBytes(payload, "error.error_message").String()
	if msg == "" {
		msg = "unknown error"
	}
	return providers.NewProviderError(ProviderName, fmt.Sprintf("API error: %s (status: %q)", msg, status), nil)
}
