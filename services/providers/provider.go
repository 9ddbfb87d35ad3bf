package providers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Provider is the part every external service shares
type Provider interface {
	// Name returns the provider's wire identifier (e.g., "ACRCloud", "AudD")
	Name() string

	// Enabled reports whether the provider's credentials are configured.
	// Disabled providers are skipped, which is not a failure.
	Enabled() bool
}

// Identifier recognizes a recorded audio sample
type Identifier interface {
	Provider

	// Identify returns the normalized match, or an error wrapping ErrNoMatch
	// when the service answered without a match
	Identify(ctx context.Context, sample Sample) (*NormalizedResult, error)
}

// LyricsFinder looks up plain lyrics text by title and artist
type LyricsFinder interface {
	Provider

	// FindLyrics returns the lyrics body, or an error wrapping ErrNoMatch
	FindLyrics(ctx context.Context, title, artist string) (string, error)
}

// Registry holds providers by key. A provider can serve both capabilities.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Key is the case-insensitive lookup key for a provider name
func Key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds a provider under its lowercased name, replacing any previous one
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[Key(p.Name())] = p
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[Key(name)]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", name)
	}
	return p, nil
}

// Has checks if a provider is registered
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.providers[Key(name)]
	return ok
}

// List returns all registered provider keys in sorted order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Identifiers returns the identification providers named in order.
// Unknown names and providers without the capability are reported in skipped.
func (r *Registry) Identifiers(order []string) (out []Identifier, skipped []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range order {
		if id, ok := r.providers[Key(name)].(Identifier); ok {
			out = append(out, id)
			continue
		}
		skipped = append(skipped, name)
	}
	return out, skipped
}

// LyricsFinders returns the lyrics providers named in order.
// Unknown names and providers without the capability are reported in skipped.
func (r *Registry) LyricsFinders(order []string) (out []LyricsFinder, skipped []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range order {
		if lf, ok := r.providers[Key(name)].(LyricsFinder); ok {
			out = append(out, lf)
			continue
		}
		skipped = append(skipped, name)
	}
	return out, skipped
}
