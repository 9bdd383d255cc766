package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter limits requests per client address.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	rate    rate.Limit
	burst   int
	idle    time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// RequestsPerSecond is the rate allowed per client.
	RequestsPerSecond float64
	// Burst is the maximum burst size.
	Burst int
	// IdleTimeout drops clients not seen for this long.
	IdleTimeout time.Duration
}

// DefaultRateLimiterConfig allows a scrape per second with some slack.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 1,
		Burst:             5,
		IdleTimeout:       5 * time.Minute,
	}
}

// NewRateLimiter creates a rate limiter and starts its cleanup loop.
// Call Stop to end the loop.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultRateLimiterConfig().IdleTimeout
	}
	rl := &RateLimiter{
		clients: make(map[string]*client),
		rate:    rate.Limit(cfg.RequestsPerSecond),
		burst:   cfg.Burst,
		idle:    cfg.IdleTimeout,
		stop:    make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop ends the cleanup loop. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Allow reports whether a request from addr may proceed.
func (rl *RateLimiter) Allow(addr string) bool {
	rl.mu.Lock()
	c, ok := rl.clients[addr]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[addr] = c
	}
	c.lastSeen = time.Now()
	rl.mu.Unlock()

	return c.limiter.Allow()
}

// Clients returns the number of tracked clients.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.idle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.evict(now.Add(-rl.idle))
		}
	}
}

func (rl *RateLimiter) evict(before time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for addr, c := range rl.clients {
		if c.lastSeen.Before(before) {
			delete(rl.clients, addr)
		}
	}
}

// Middleware rejects requests over the client's limit with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	retryAfter := "1"
	if rl.rate > 0 {
		retryAfter = strconv.Itoa(max(1, int(1/float64(rl.rate))))
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientAddr(r)) {
			w.Header().Set("Retry-After", retryAfter)
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientAddr identifies the caller, preferring proxy headers.
func clientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
