package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func newLimiter(t *testing.T, rps float64, burst int) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: rps, Burst: burst, IdleTimeout: time.Minute})
	t.Cleanup(rl.Stop)
	return rl
}

func TestNewRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1})
	defer rl.Stop()

	if rl.burst != 1 {
		t.Errorf("burst = %d, want 1", rl.burst)
	}
	if rl.idle != DefaultRateLimiterConfig().IdleTimeout {
		t.Errorf("idle = %v, want default", rl.idle)
	}

	rl.Stop()
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := newLimiter(t, 2, 2)

	if !rl.Allow("10.0.0.1") || !rl.Allow("10.0.0.1") {
		t.Fatal("burst requests were denied")
	}
	if rl.Allow("10.0.0.1") {
		t.Error("request over the burst was allowed")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("second client shares the first client's limit")
	}

	time.Sleep(600 * time.Millisecond)
	if !rl.Allow("10.0.0.1") {
		t.Error("request denied after the bucket refilled")
	}
}

func TestRateLimiter_ConcurrentClients(t *testing.T) {
	rl := newLimiter(t, 100, 100)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				rl.Allow(fmt.Sprintf("10.0.0.%d", i))
			}
		}()
	}
	wg.Wait()

	if n := rl.Clients(); n != 10 {
		t.Errorf("Clients() = %d, want 10", n)
	}
}

func TestRateLimiter_Evict(t *testing.T) {
	rl := newLimiter(t, 1, 1)
	rl.Allow("10.0.0.1")
	rl.Allow("10.0.0.2")

	rl.evict(time.Now().Add(-time.Hour))
	if n := rl.Clients(); n != 2 {
		t.Errorf("Clients() after evicting old entries = %d, want 2", n)
	}

	rl.evict(time.Now().Add(time.Second))
	if n := rl.Clients(); n != 0 {
		t.Errorf("Clients() after evicting everything = %d, want 0", n)
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := newLimiter(t, 0.5, 2)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	codes := make([]int, 3)
	var last *httptest.ResponseRecorder
	for i := range codes {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		req.RemoteAddr = "192.168.1.100:12345"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
		codes[i] = last.Code
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("burst status codes = %v, want 200s", codes[:2])
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", codes[2])
	}
	if got := last.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}
}

func TestClientAddr(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"remote addr", "192.168.1.100:12345", nil, "192.168.1.100"},
		{"ipv6", "[2001:db8::1]:12345", nil, "2001:db8::1"},
		{"no port", "192.168.1.100", nil, "192.168.1.100"},
		{"forwarded", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "203.0.113.1, 198.51.100.1"}, "203.0.113.1"},
		{"real ip", "10.0.0.1:1", map[string]string{"X-Real-IP": "203.0.113.50"}, "203.0.113.50"},
		{
			"forwarded wins", "10.0.0.1:1",
			map[string]string{"X-Forwarded-For": "203.0.113.1", "X-Real-IP": "203.0.113.50"},
			"203.0.113.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientAddr(req); got != tt.want {
				t.Errorf("clientAddr() = %q, want %q", got, tt.want)
			}
		})
	}
}
