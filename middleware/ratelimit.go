package middleware

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"lyricsync-go/logcolors"
	"lyricsync-go/stats"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Idle buckets are swept after DefaultLimiterIdle
const DefaultLimiterIdle = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter keeps one token bucket per client IP
type IPRateLimiter struct {
	ips   map[string]*visitor
	mu    *sync.RWMutex
	rate  rate.Limit
	burst int
	now   func() time.Time
}

// NewIPRateLimiter creates a limiter allowing r requests per second with the given burst
func NewIPRateLimiter(r rate.Limit, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		ips:   make(map[string]*visitor),
		mu:    &sync.RWMutex{},
		rate:  r,
		burst: burst,
		now:   time.Now,
	}
}

// GetLimit returns the burst size, reported as X-RateLimit-Limit
func (i *IPRateLimiter) GetLimit() int {
	return i.burst
}

// GetLimiter returns the bucket for ip, creating it on first use
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	v, exists := i.ips[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(i.rate, i.burst)}
		i.ips[ip] = v
	}
	v.lastSeen = i.now()
	return v.limiter
}

// Tracked returns how many client IPs currently hold a bucket
func (i *IPRateLimiter) Tracked() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.ips)
}

// Sweep drops buckets not used for idle and returns how many were removed
func (i *IPRateLimiter) Sweep(idle time.Duration) int {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.now()
	removed := 0
	for ip, v := range i.ips {
		if now.Sub(v.lastSeen) >= idle {
			delete(i.ips, ip)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done
func (i *IPRateLimiter) StartSweeper(ctx context.Context, interval, idle time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := i.Sweep(idle); n > 0 {
				log.Debugf("%s Dropped %d idle client buckets", logcolors.LogRateLimit, n)
			}
		case <-ctx.Done():
			return
		}
	}
}

// clientIP strips the port from RemoteAddr so one client maps to one bucket
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Limit rejects requests over the per-IP budget with 429
func (i *IPRateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		limiter := i.GetLimiter(ip)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(i.burst))

		if !limiter.Allow() {
			stats.Get().RecordRateLimitExceeded()
			log.Warnf("%s IP %s exceeded rate limit", logcolors.LogRateLimit, ip)
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", "1")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error":   "rate_limited",
				"message": "Too many requests, please slow down.",
			})
			return
		}

		remaining := int(math.Floor(limiter.Tokens()))
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		next.ServeHTTP(w, r)
	})
}
