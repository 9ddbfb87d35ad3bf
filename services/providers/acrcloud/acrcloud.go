// Package acrcloud identifies audio samples with the ACRCloud recognition API.
// Requests are signed with the account's access secret.
package acrcloud

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lyricsync-go/logcolors"
	"lyricsync-go/services/providers"
	"lyricsync-go/services/signer"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	// ProviderName is the wire identifier for ACRCloud
	ProviderName = "ACRCloud"

	identifyPath = "/v1/identify"

	// sampleFilename is sent when the upload carried no name
	sampleFilename = "sample.webm"

	statusSuccess = 0
	statusNoMatch = 1001
)

// Mapping flattens a metadata.music entry
var Mapping = providers.Mapping{
	providers.FieldTitle:  {"title"},
	providers.FieldArtist: {"artists.#.name"},
	providers.FieldAlbum:  {"album.name"},
}

// Config holds ACRCloud credentials
type Config struct {
	Host         string
	AccessKey    string
	AccessSecret string

	// BaseURL overrides https://{Host}; used by tests
	BaseURL string
	Timeout time.Duration
}

// Provider implements providers.Identifier for ACRCloud
type Provider struct {
	conf       Config
	httpClient *http.Client
}

// New creates an ACRCloud provider
func New(conf Config) *Provider {
	return &Provider{
		conf:       conf,
		httpClient: providers.NewHTTPClient(conf.Timeout),
	}
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return ProviderName
}

// Enabled reports whether host, key and secret are all set
func (p *Provider) Enabled() bool {
	return p.conf.Host != "" && p.conf.AccessKey != "" && p.conf.AccessSecret != ""
}

func (p *Provider) endpoint() string {
	if p.conf.BaseURL != "" {
		return p.conf.BaseURL + identifyPath
	}
	return "https://" + p.conf.Host + identifyPath
}

// Identify uploads the sample and returns the first music match
func (p *Provider) Identify(ctx context.Context, sample providers.Sample) (*providers.NormalizedResult, error) {
	if !p.Enabled() {
		return nil, providers.NewProviderError(ProviderName, "credentials not configured", nil)
	}

	signed := signer.Sign(identifyPath, p.conf.AccessKey, p.conf.AccessSecret)

	body, contentType, err := providers.EncodeMultipart("sample", sample.FilenameOr(sampleFilename), sample,
		providers.FormField{Name: "sample_bytes", Value: strconv.Itoa(len(sample.Data))},
		providers.FormField{Name: "access_key", Value: p.conf.AccessKey},
		providers.FormField{Name: "data_type", Value: signer.DataType},
		providers.FormField{Name: "signature_version", Value: signer.SignatureVersion},
		providers.FormField{Name: "signature", Value: signed.Signature},
		providers.FormField{Name: "timestamp", Value: strconv.FormatInt(signed.Timestamp, 10)},
	)
	if err != nil {
		return nil, providers.NewProviderError(ProviderName, "failed to build request body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), body)
	if err != nil {
		return nil, providers.NewProviderError(ProviderName, "failed to create request", err)
	}
	req.Header.Set("Content-Type", contentType)

	log.Debugf("%s Uploading %d byte sample", logcolors.Provider(ProviderName), len(sample.Data))

	payload, err := providers.DoJSON(p.httpClient, req, ProviderName)
	if err != nil {
		return nil, err
	}

	return parseIdentifyResponse(payload)
}

func parseIdentifyResponse(payload []byte) (*providers.NormalizedResult, error) {
	status := gjson.GetBytes(payload, "status")
	code, ok := statusCode(status.Get("code"))
	if !ok {
		return nil, providers.NewProviderError(ProviderName,
			fmt.Sprintf("response has no valid status code: %s", status.Get("code").Raw), nil)
	}

	switch code {
	case statusSuccess:
	case statusNoMatch:
		return nil, providers.NoMatch(ProviderName, status.Get("msg").String())
	default:
		return nil, providers.NewProviderError(ProviderName,
			fmt.Sprintf("API error: %s (code: %d)", status.Get("msg").String(), code), nil)
	}

	music := gjson.GetBytes(payload, "metadata.music.0")
	if !music.IsObject() {
		return nil, providers.NoMatch(ProviderName, "response has no music entries")
	}

	result := providers.Normalize(ProviderName, json.RawMessage(music.Raw), Mapping)
	if !result.HasTitleOrArtist() {
		return nil, providers.NewProviderError(ProviderName, "match has neither title nor artist", nil)
	}
	return result, nil
}

// statusCode accepts an integer code, as a JSON number or a numeric string
func statusCode(code gjson.Result) (int64, bool) {
	switch code.Type {
	case gjson.Number:
		if code.Num != math.Trunc(code.Num) {
			return 0, false
		}
		return int64(code.Num), true
	case gjson.String:
		n, err := strconv.ParseInt(strings.TrimSpace(code.Str), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
