package circuitbreaker

import (
	"sort"
	"strings"
	"sync"
)

// Group hands out one breaker per provider, all sharing a base config
type Group struct {
	base     Config
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewGroup creates a group; base.Name is ignored
func NewGroup(base Config) *Group {
	return &Group{
		base:     base,
		breakers: make(map[string]*CircuitBreaker),
	}
}

func groupKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Get returns the breaker for name, creating it on first use
func (g *Group) Get(name string) *CircuitBreaker {
	key := groupKey(name)

	g.mu.Lock()
	defer g.mu.Unlock()

	if cb, ok := g.breakers[key]; ok {
		return cb
	}
	cfg := g.base
	cfg.Name = name
	cb := New(cfg)
	g.breakers[key] = cb
	return cb
}

// Lookup returns an existing breaker without creating one
func (g *Group) Lookup(name string) (*CircuitBreaker, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cb, ok := g.breakers[groupKey(name)]
	return cb, ok
}

// Reset closes the named breaker; false if it does not exist
func (g *Group) Reset(name string) bool {
	cb, ok := g.Lookup(name)
	if !ok {
		return false
	}
	cb.Reset()
	return true
}

// ResetAll closes every breaker and returns how many were reset
func (g *Group) ResetAll() int {
	g.mu.Lock()
	all := make([]*CircuitBreaker, 0, len(g.breakers))
	for _, cb := range g.breakers {
		all = append(all, cb)
	}
	g.mu.Unlock()

	for _, cb := range all {
		cb.Reset()
	}
	return len(all)
}

// Snapshots returns every breaker's view sorted by name
func (g *Group) Snapshots() []Snapshot {
	g.mu.Lock()
	all := make([]*CircuitBreaker, 0, len(g.breakers))
	for _, cb := range g.breakers {
		all = append(all, cb)
	}
	g.mu.Unlock()

	out := make([]Snapshot, 0, len(all))
	for _, cb := range all {
		out = append(out, cb.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
