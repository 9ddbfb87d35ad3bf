package providers

import (
	"encoding/json"
	"errors"
)

// ErrNoMatch means the provider answered but had nothing for the request.
// It is not a failure: the fallback chain simply moves on.
var ErrNoMatch = errors.New("no match")

// Sample is an opaque recorded audio clip
type Sample struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Empty reports whether the sample carries no audio
func (s Sample) Empty() bool {
	return len(s.Data) == 0
}

// FilenameOr returns the sample's filename, or fallback when unset
func (s Sample) FilenameOr(fallback string) string {
	if s.Filename != "" {
		return s.Filename
	}
	return fallback
}

// NormalizedResult is the provider-independent identification result.
// Optional fields are nil when the provider did not return them.
type NormalizedResult struct {
	Provider    string          `json:"provider"`
	Title       *string         `json:"title,omitempty"`
	Artist      *string         `json:"artist,omitempty"`
	Album       *string         `json:"album,omitempty"`
	ExternalURL *string         `json:"externalUrl,omitempty"`
	Lyrics      *string         `json:"lyrics,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// ProviderError represents an error from a provider with additional context
type ProviderError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Provider + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Provider + ": " + e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new ProviderError
func NewProviderError(provider, message string, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Message:  message,
		Err:      err,
	}
}

// NoMatch wraps ErrNoMatch with provider context
func NoMatch(provider, message string) *ProviderError {
	return NewProviderError(provider, message, ErrNoMatch)
}
