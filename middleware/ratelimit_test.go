package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"lyricsync-go/stats"

	"golang.org/x/time/rate"
)

func TestNewIPRateLimiter(t *testing.T) {
	rl := NewIPRateLimiter(2, 5)
	if rl == nil {
		t.Fatal("Expected IPRateLimiter to be created, got nil")
	}
	if rl.rate != 2 {
		t.Errorf("Expected rate limit to be 2, got %v", rl.rate)
	}
	if rl.GetLimit() != 5 {
		t.Errorf("Expected burst limit to be 5, got %d", rl.GetLimit())
	}
}

func TestGetLimiter(t *testing.T) {
	rl := NewIPRateLimiter(1, 5)

	first := rl.GetLimiter("192.168.1.1")
	if first == nil {
		t.Fatal("Expected limiter to be returned, got nil")
	}
	if second := rl.GetLimiter("192.168.1.1"); second != first {
		t.Error("Expected the same limiter for the same IP")
	}
	if other := rl.GetLimiter("192.168.1.2"); other == first {
		t.Error("Expected a separate limiter per IP")
	}
	if rl.Tracked() != 2 {
		t.Errorf("Expected 2 tracked IPs, got %d", rl.Tracked())
	}
}

func TestGetLimiter_Concurrent(t *testing.T) {
	rl := NewIPRateLimiter(1, 1)

	var wg sync.WaitGroup
	limiters := make([]*rate.Limiter, 50)
	for i := range limiters {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			limiters[i] = rl.GetLimiter("10.0.0.1")
		}(i)
	}
	wg.Wait()

	for i, l := range limiters {
		if l != limiters[0] {
			t.Fatalf("Limiter %d differs, expected a single bucket per IP", i)
		}
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		expected   string
	}{
		{"IPv4 with port", "192.168.1.1:5050", "192.168.1.1"},
		{"IPv6 with port", "[::1]:8080", "::1"},
		{"No port", "192.168.1.1", "192.168.1.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if got := clientIP(req); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestLimit(t *testing.T) {
	rl := NewIPRateLimiter(rate.Limit(1), 2)
	handler := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(remoteAddr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/lyrics", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	before := stats.Get().RateLimitExceeded.Load()

	// Different ports from the same host share one bucket
	if rec := do("192.168.1.1:1000"); rec.Code != http.StatusOK {
		t.Fatalf("Expected first request to pass, got %d", rec.Code)
	}
	rec := do("192.168.1.1:1001")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected second request to pass within burst, got %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "2" {
		t.Errorf("Expected X-RateLimit-Limit 2, got %q", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec = do("192.168.1.1:1002")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429 after burst, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" || rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("Unexpected rate limit headers: %v", rec.Header())
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Expected JSON body, got %q", rec.Body.String())
	}
	if body["error"] != "rate_limited" {
		t.Errorf("Expected error rate_limited, got %v", body["error"])
	}
	if got := stats.Get().RateLimitExceeded.Load() - before; got != 1 {
		t.Errorf("Expected 1 rate limit rejection recorded, got %d", got)
	}

	// Another client is unaffected
	if rec := do("10.0.0.9:1000"); rec.Code != http.StatusOK {
		t.Errorf("Expected other IP to pass, got %d", rec.Code)
	}
}

func TestSweep(t *testing.T) {
	rl := NewIPRateLimiter(1, 1)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.GetLimiter("10.0.0.1")
	now = now.Add(5 * time.Minute)
	rl.GetLimiter("10.0.0.2")
	now = now.Add(6 * time.Minute)

	if removed := rl.Sweep(10 * time.Minute); removed != 1 {
		t.Errorf("Expected 1 idle bucket removed, got %d", removed)
	}
	if rl.Tracked() != 1 {
		t.Errorf("Expected 1 tracked IP, got %d", rl.Tracked())
	}

	// A recently used bucket keeps its state
	limiter := rl.GetLimiter("10.0.0.2")
	if rl.Sweep(10*time.Minute) != 0 {
		t.Error("Expected active bucket to survive the sweep")
	}
	if rl.GetLimiter("10.0.0.2") != limiter {
		t.Error("Expected the same limiter after sweep")
	}
}

func TestStartSweeper(t *testing.T) {
	rl := NewIPRateLimiter(1, 1)
	rl.GetLimiter("10.0.0.1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		rl.StartSweeper(ctx, 5*time.Millisecond, 0)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for rl.Tracked() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if rl.Tracked() != 0 {
		t.Error("Expected sweeper to drop idle buckets")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Expected sweeper to stop when the context is done")
	}
}
