package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ThrottleConfig limits requests per client address.
type ThrottleConfig struct {
	Rate            rate.Limit
	Burst           int
	CleanupInterval time.Duration
}

func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{
		Rate:            rate.Limit(2),
		Burst:           20,
		CleanupInterval: 5 * time.Minute,
	}
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Throttle keeps one token bucket per client address and answers 429 when
// it is empty. Stop ends the cleanup goroutine.
type Throttle struct {
	config ThrottleConfig
	logger *slog.Logger

	mu      sync.Mutex
	clients map[string]*clientLimiter

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewThrottle(config ThrottleConfig, logger *slog.Logger) *Throttle {
	if config.Burst <= 0 {
		config.Burst = 1
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	t := &Throttle{
		config:  config,
		logger:  logger,
		clients: make(map[string]*clientLimiter),
		stopCh:  make(chan struct{}),
	}
	go t.cleanupLoop()
	return t
}

func (t *Throttle) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
}

// Middleware rejects requests over the client's budget.
func (t *Throttle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientAddr(r)
		if !t.limiter(client).Allow() {
			t.logger.WarnContext(r.Context(), "rate limit exceeded", slog.String("client", client))
			writeRateLimitResponse(w, t.config.Rate)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Clients reports how many client buckets are tracked.
func (t *Throttle) Clients() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.clients)
}

func (t *Throttle) limiter(client string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	cl, ok := t.clients[client]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(t.config.Rate, t.config.Burst)}
		t.clients[client] = cl
	}
	cl.lastAccess = time.Now()
	return cl.limiter
}

func (t *Throttle) cleanupLoop() {
	ticker := time.NewTicker(t.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.cleanup(time.Now())
		case <-t.stopCh:
			return
		}
	}
}

// cleanup drops buckets idle for two cleanup intervals.
func (t *Throttle) cleanup(now time.Time) {
	ttl := t.config.CleanupInterval * 2

	t.mu.Lock()
	defer t.mu.Unlock()
	for client, cl := range t.clients {
		if now.Sub(cl.lastAccess) > ttl {
			delete(t.clients, client)
		}
	}
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfter := 1
	if r > 0 {
		retryAfter = int(math.Ceil(1.0 / float64(r)))
		if retryAfter < 1 {
			retryAfter = 1
		}
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    "rate_limit_exceeded",
		"message": "Too many requests. Please try again later.",
	})
}
