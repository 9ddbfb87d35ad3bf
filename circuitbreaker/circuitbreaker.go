package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"lyricsync-go/logcolors"

	log "github.com/sirupsen/logrus"
)

// State represents the circuit breaker state
type State int

const (
	StateClosed   State = iota // Normal operation, requests allowed
	StateOpen                  // Circuit tripped, requests blocked
	StateHalfOpen              // One trial request in flight
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// MarshalText lets State serialize as its name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// StateChangeFunc is called after every transition, outside the lock
type StateChangeFunc func(name string, from, to State)

// Config holds circuit breaker configuration
type Config struct {
	Name            string        // Provider name, used for logging
	Threshold       int           // Consecutive failures before opening
	Cooldown        time.Duration // How long to stay open before probing
	HalfOpenTimeout time.Duration // Max wait for the trial before reopening
	OnStateChange   StateChangeFunc
}

// CircuitBreaker stops calling a provider after repeated failures
type CircuitBreaker struct {
	name            string
	threshold       int
	cooldown        time.Duration
	halfOpenTimeout time.Duration
	onStateChange   StateChangeFunc
	now             func() time.Time

	mu            sync.RWMutex
	state         State
	failures      int
	openedAt      time.Time
	halfOpenStart time.Time
}

// New creates a new circuit breaker
func New(cfg Config) *CircuitBreaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	if cfg.HalfOpenTimeout <= 0 {
		cfg.HalfOpenTimeout = 30 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}

	return &CircuitBreaker{
		name:            cfg.Name,
		threshold:       cfg.Threshold,
		cooldown:        cfg.Cooldown,
		halfOpenTimeout: cfg.HalfOpenTimeout,
		onStateChange:   cfg.OnStateChange,
		now:             time.Now,
		state:           StateClosed,
	}
}

// Name returns the breaker's provider name
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// transition must be called with mu held; the returned func fires the hook
func (cb *CircuitBreaker) transition(to State) func() {
	from := cb.state
	cb.state = to
	if from == to || cb.onStateChange == nil {
		return func() {}
	}
	hook, name := cb.onStateChange, cb.name
	return func() { hook(name, from, to) }
}

// Allow reports whether a request may proceed.
// An open breaker admits a single trial once the cooldown has passed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	notify := func() {}
	defer func() {
		cb.mu.Unlock()
		notify()
	}()

	now := cb.now()
	switch cb.state {
	case StateOpen:
		if now.Sub(cb.openedAt) < cb.cooldown {
			return false
		}
		notify = cb.transition(StateHalfOpen)
		cb.halfOpenStart = now
		log.Infof("%s Cooldown passed, transitioning to HALF-OPEN", logcolors.CircuitBreakerPrefix(cb.name))
		return true

	case StateHalfOpen:
		if now.Sub(cb.halfOpenStart) >= cb.halfOpenTimeout {
			notify = cb.transition(StateOpen)
			cb.openedAt = now
			log.Warnf("%s Trial timed out, transitioning back to OPEN", logcolors.CircuitBreakerPrefix(cb.name))
		}
		return false

	default:
		return true
	}
}

// RecordSuccess records a request the provider answered, match or not
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	notify := func() {}
	defer func() {
		cb.mu.Unlock()
		notify()
	}()

	cb.failures = 0
	if cb.state == StateHalfOpen {
		notify = cb.transition(StateClosed)
		log.Infof("%s Trial succeeded, transitioning to CLOSED", logcolors.CircuitBreakerPrefix(cb.name))
	}
}

// RecordFailure records a transport or protocol failure
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	notify := func() {}
	defer func() {
		cb.mu.Unlock()
		notify()
	}()

	cb.failures++

	switch cb.state {
	case StateHalfOpen:
		notify = cb.transition(StateOpen)
		cb.openedAt = cb.now()
		log.Warnf("%s Trial failed, transitioning back to OPEN", logcolors.CircuitBreakerPrefix(cb.name))

	case StateClosed:
		if cb.failures >= cb.threshold {
			notify = cb.transition(StateOpen)
			cb.openedAt = cb.now()
			log.Warnf("%s Threshold reached (%d failures), transitioning to OPEN (cooldown: %v)",
				logcolors.CircuitBreakerPrefix(cb.name), cb.failures, cb.cooldown)
		}
	}
}

// State returns the current state
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Failures returns the current consecutive failure count
func (cb *CircuitBreaker) Failures() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.failures
}

// IsOpen returns true if the circuit is open
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == StateOpen
}

// Threshold returns the configured failure threshold
func (cb *CircuitBreaker) Threshold() int {
	return cb.threshold
}

// Reset manually closes the circuit
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	notify := cb.transition(StateClosed)
	cb.failures = 0
	cb.openedAt = time.Time{}
	cb.halfOpenStart = time.Time{}
	cb.mu.Unlock()
	notify()

	log.Infof("%s Manually reset to CLOSED", logcolors.CircuitBreakerPrefix(cb.name))
}

// TimeUntilRetry returns the remaining cooldown (open) or trial window
// (half-open). Zero when closed.
func (cb *CircuitBreaker) TimeUntilRetry() time.Duration {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	var remaining time.Duration
	switch cb.state {
	case StateOpen:
		remaining = cb.cooldown - cb.now().Sub(cb.openedAt)
	case StateHalfOpen:
		remaining = cb.halfOpenTimeout - cb.now().Sub(cb.halfOpenStart)
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Snapshot is a point-in-time view for health and admin endpoints
type Snapshot struct {
	Name           string  `json:"name"`
	State          State   `json:"state"`
	Failures       int     `json:"failures"`
	Threshold      int     `json:"threshold"`
	RetryInSeconds float64 `json:"retryInSeconds,omitempty"`
}

// Snapshot returns the breaker's current view
func (cb *CircuitBreaker) Snapshot() Snapshot {
	retry := cb.TimeUntilRetry()

	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return Snapshot{
		Name:           cb.name,
		State:          cb.state,
		Failures:       cb.failures,
		Threshold:      cb.threshold,
		RetryInSeconds: retry.Seconds(),
	}
}
