// Package fallback tries providers in priority order until one answers.
//
// Candidates are attempted strictly one after another. A disabled provider,
// an open circuit, a "no match" answer and an outright failure all move the
// chain on to the next candidate; none of them reach the caller as an error.
// Running out of candidates yields an empty outcome, which means "not found".
package fallback

import (
	"context"
	"errors"
	"strings"
	"time"

	"lyricsync-go/circuitbreaker"
	"lyricsync-go/logcolors"
	"lyricsync-go/services/providers"

	log "github.com/sirupsen/logrus"
)

// ErrNoAudio is returned by Identify for an empty sample
var ErrNoAudio = errors.New("no audio sample provided")

// DefaultAttemptTimeout bounds a single provider call
const DefaultAttemptTimeout = 10 * time.Second

// Operation names the pipeline an attempt belongs to
type Operation string

const (
	OpIdentify Operation = "identify"
	OpLyrics   Operation = "lyrics"
)

// Status is the outcome of a single candidate
type Status string

const (
	StatusDisabled    Status = "disabled"
	StatusCircuitOpen Status = "circuit_open"
	StatusNoMatch     Status = "no_match"
	StatusFailed      Status = "failed"
	StatusMatched     Status = "matched"
)

// Attempt records what happened with one candidate
type Attempt struct {
	Provider string        `json:"provider"`
	Status   Status        `json:"status"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Recorder observes every attempt, e.g. for metrics
type Recorder interface {
	RecordAttempt(op Operation, provider string, status Status, duration time.Duration)
}

// Options configures an Orchestrator
type Options struct {
	// AttemptTimeout bounds each provider call; DefaultAttemptTimeout when zero
	AttemptTimeout time.Duration

	// Breakers, when set, skips providers whose circuit is open
	Breakers *circuitbreaker.Group

	Recorder Recorder
}

// IdentifyOutcome is the identification envelope.
// Provider and Result are both nil when nothing matched.
type IdentifyOutcome struct {
	Provider *string                     `json:"provider"`
	Result   *providers.NormalizedResult `json:"result"`
	Attempts []Attempt                   `json:"-"`
}

// Found reports whether a provider matched
func (o IdentifyOutcome) Found() bool {
	return o.Provider != nil
}

// LyricsOutcome is the lyrics lookup envelope.
// Provider and Lyrics are both nil when nothing matched.
type LyricsOutcome struct {
	Provider *string   `json:"provider"`
	Lyrics   *string   `json:"lyrics"`
	Attempts []Attempt `json:"-"`
}

// Found reports whether a provider matched
func (o LyricsOutcome) Found() bool {
	return o.Provider != nil
}

// Candidate describes a configured provider for health reporting
type Candidate struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Orchestrator runs the identify and lyrics fallback chains
type Orchestrator struct {
	opts        Options
	identifiers []providers.Identifier
	finders     []providers.LyricsFinder
}

// New creates an orchestrator. Candidates are tried in slice order.
func New(opts Options, identifiers []providers.Identifier, finders []providers.LyricsFinder) *Orchestrator {
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = DefaultAttemptTimeout
	}
	return &Orchestrator{
		opts:        opts,
		identifiers: identifiers,
		finders:     finders,
	}
}

// IdentifyCandidates lists identification providers in priority order
func (o *Orchestrator) IdentifyCandidates() []Candidate {
	return describe(o.identifiers)
}

// LyricsCandidates lists lyrics providers in priority order
func (o *Orchestrator) LyricsCandidates() []Candidate {
	return describe(o.finders)
}

func describe[P providers.Provider](candidates []P) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, Candidate{Name: c.Name(), Enabled: c.Enabled()})
	}
	return out
}

// Identify asks each identification provider in turn about sample.
// The only error is ErrNoAudio; exhausting the chain is an empty outcome.
func (o *Orchestrator) Identify(ctx context.Context, sample providers.Sample) (IdentifyOutcome, error) {
	if sample.Empty() {
		return IdentifyOutcome{}, ErrNoAudio
	}

	name, result, attempts := run(ctx, o, OpIdentify, o.identifiers,
		func(ctx context.Context, p providers.Identifier) (*providers.NormalizedResult, error) {
			result, err := p.Identify(ctx, sample)
			if err == nil && !result.HasTitleOrArtist() {
				return nil, providers.NewProviderError(p.Name(), "empty result", nil)
			}
			return result, err
		})

	outcome := IdentifyOutcome{Attempts: attempts}
	if name != "" {
		outcome.Provider = &name
		outcome.Result = result
	}
	return outcome, nil
}

// LookupLyrics asks each lyrics provider in turn for title and artist.
// With both empty no provider is called. Errors never escape.
func (o *Orchestrator) LookupLyrics(ctx context.Context, title, artist string) (LyricsOutcome, error) {
	title, artist = strings.TrimSpace(title), strings.TrimSpace(artist)
	if title == "" && artist == "" {
		return LyricsOutcome{}, nil
	}

	name, lyrics, attempts := run(ctx, o, OpLyrics, o.finders,
		func(ctx context.Context, p providers.LyricsFinder) (string, error) {
			lyrics, err := p.FindLyrics(ctx, title, artist)
			if err == nil && strings.TrimSpace(lyrics) == "" {
				return "", providers.NewProviderError(p.Name(), "empty lyrics", nil)
			}
			return lyrics, err
		})

	outcome := LyricsOutcome{Attempts: attempts}
	if name != "" {
		outcome.Provider = &name
		outcome.Lyrics = &lyrics
	}
	return outcome, nil
}

// run walks candidates until call succeeds, returning the winner's name
func run[P providers.Provider, T any](
	ctx context.Context,
	o *Orchestrator,
	op Operation,
	candidates []P,
	call func(context.Context, P) (T, error),
) (string, T, []Attempt) {
	var zero T
	attempts := make([]Attempt, 0, len(candidates))

	record := func(a Attempt) {
		attempts = append(attempts, a)
		if o.opts.Recorder != nil {
			o.opts.Recorder.RecordAttempt(op, a.Provider, a.Status, a.Duration)
		}
	}

	for _, c := range candidates {
		name := c.Name()
		prefix := logcolors.Provider(name)

		if ctx.Err() != nil {
			log.Warnf("%s %s: request ended before %s was tried: %v", logcolors.LogFallback, op, name, ctx.Err())
			break
		}

		if !c.Enabled() {
			log.Debugf("%s %s Not configured, skipping", logcolors.LogFallback, prefix)
			record(Attempt{Provider: name, Status: StatusDisabled})
			continue
		}

		var breaker *circuitbreaker.CircuitBreaker
		if o.opts.Breakers != nil {
			breaker = o.opts.Breakers.Get(name)
			if !breaker.Allow() {
				log.Infof("%s %s Circuit open, skipping (retry in %v)", logcolors.LogFallback, prefix, breaker.TimeUntilRetry().Round(time.Second))
				record(Attempt{Provider: name, Status: StatusCircuitOpen})
				continue
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, o.opts.AttemptTimeout)
		start := time.Now()
		value, err := call(attemptCtx, c)
		duration := time.Since(start)
		cancel()

		switch {
		case err == nil:
			if breaker != nil {
				breaker.RecordSuccess()
			}
			log.Infof("%s %s %s matched in %v", logcolors.LogMatch, prefix, op, duration.Round(time.Millisecond))
			record(Attempt{Provider: name, Status: StatusMatched, Duration: duration})
			return name, value, attempts

		case errors.Is(err, providers.ErrNoMatch):
			if breaker != nil {
				breaker.RecordSuccess()
			}
			log.Infof("%s %s %s: %v", logcolors.LogNoMatch, prefix, op, err)
			record(Attempt{Provider: name, Status: StatusNoMatch, Duration: duration, Err: err})

		default:
			// A caller that went away is not the provider's fault
			if breaker != nil && ctx.Err() == nil {
				breaker.RecordFailure()
			}
			log.Warnf("%s %s %s attempt failed: %v", logcolors.LogWarning, prefix, op, err)
			record(Attempt{Provider: name, Status: StatusFailed, Duration: duration, Err: err})
		}
	}

	log.Infof("%s %s: no provider matched after %d candidates", logcolors.LogFallback, op, len(attempts))
	return "", zero, attempts
}
