package providers

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

const (
	// DefaultTimeout bounds a single provider HTTP call
	DefaultTimeout = 10 * time.Second

	// maxResponseBytes caps how much of a provider response is read
	maxResponseBytes = 4 << 20

	userAgent = "lyricsync-go/1.0"
)

// NewHTTPClient returns the client providers use when none is injected
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// FormField is a plain multipart form value
type FormField struct {
	Name  string
	Value string
}

// EncodeMultipart writes the sample under fileField followed by fields.
// It returns the body and the content type carrying the boundary.
func EncodeMultipart(fileField, filename string, sample Sample, fields ...FormField) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile(fileField, filename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(sample.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write sample: %w", err)
	}

	for _, f := range fields {
		if err := writer.WriteField(f.Name, f.Value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", f.Name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}

// DoJSON sends req and returns the body of a 200 response holding valid JSON.
// Every failure comes back as a *ProviderError for provider.
func DoJSON(client *http.Client, req *http.Request, provider string) ([]byte, error) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, NewProviderError(provider, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, NewProviderError(provider, "failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, NewProviderError(provider, fmt.Sprintf("API returned status %d", resp.StatusCode), nil)
	}

	if !gjson.ValidBytes(body) {
		return nil, NewProviderError(provider, "response is not valid JSON", nil)
	}
	return body, nil
}
