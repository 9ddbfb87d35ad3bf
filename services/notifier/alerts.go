package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lyricsync-go/circuitbreaker"
	"lyricsync-go/logcolors"

	log "github.com/sirupsen/logrus"
)

// DefaultAlertCooldown is the minimum gap between two alerts for the same provider and kind
const DefaultAlertCooldown = 15 * time.Minute

type alertKind string

const (
	alertOpen      alertKind = "open"
	alertRecovered alertKind = "recovered"
)

// BreakerAlerts turns circuit breaker transitions into notifications
type BreakerAlerts struct {
	notifiers []Notifier
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time // provider + "/" + kind

	// in-flight sends
	wg sync.WaitGroup
}

// NewBreakerAlerts creates an alerter; cooldown defaults to DefaultAlertCooldown
func NewBreakerAlerts(notifiers []Notifier, cooldown time.Duration) *BreakerAlerts {
	if cooldown <= 0 {
		cooldown = DefaultAlertCooldown
	}
	return &BreakerAlerts{
		notifiers: notifiers,
		cooldown:  cooldown,
		now:       time.Now,
		lastSent:  make(map[string]time.Time),
	}
}

// Enabled reports whether any channel is configured
func (a *BreakerAlerts) Enabled() bool {
	return a != nil && len(a.notifiers) > 0
}

// OnStateChange is a circuitbreaker.StateChangeFunc.
// Sends happen in the background; the caller is never blocked on the network.
func (a *BreakerAlerts) OnStateChange(name string, from, to circuitbreaker.State) {
	if !a.Enabled() {
		return
	}

	var kind alertKind
	var subject, message string
	switch {
	case to == circuitbreaker.StateOpen && from != circuitbreaker.StateHalfOpen:
		kind = alertOpen
		subject = fmt.Sprintf("%s circuit OPEN", name)
		message = fmt.Sprintf("The %s provider has failed repeatedly and is being skipped. "+
			"Requests fall through to the next provider until the cooldown ends.", name)
	case to == circuitbreaker.StateClosed && from != circuitbreaker.StateClosed:
		kind = alertRecovered
		subject = fmt.Sprintf("%s circuit recovered", name)
		message = fmt.Sprintf("The %s provider is answering again.", name)
	default:
		return
	}

	if !a.shouldAlert(name, kind) {
		log.Debugf("%s Skipping %s alert for %s (cooldown active)", logcolors.LogNotifier, kind, name)
		return
	}

	for _, n := range a.notifiers {
		a.wg.Add(1)
		go func(n Notifier) {
			defer a.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()
			if err := n.Send(ctx, subject, message); err != nil {
				log.Warnf("%s %s alert via %s failed: %v", logcolors.LogNotifier, kind, n.Name(), err)
			}
		}(n)
	}
}

func (a *BreakerAlerts) shouldAlert(name string, kind alertKind) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := name + "/" + string(kind)
	now := a.now()
	if last, ok := a.lastSent[key]; ok && now.Sub(last) < a.cooldown {
		return false
	}
	a.lastSent[key] = now
	return true
}

// Wait blocks until in-flight sends finish
func (a *BreakerAlerts) Wait() {
	if a != nil {
		a.wg.Wait()
	}
}
