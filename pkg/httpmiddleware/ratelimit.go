package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/jx"
)

// RateLimitConfig configures a sliding window limiter.
type RateLimitConfig struct {
	// Max requests per Window and key. A non-positive Max disables limiting.
	Max    int
	Window time.Duration
	// KeyFunc defaults to ClientIP.
	KeyFunc func(*http.Request) string
}

// window counts requests in the current fixed window and the one before it.
type window struct {
	start time.Time
	curr  float64
	prev  float64
}

// weight estimates requests in the trailing Window ending at now.
func (w *window) weight(now time.Time, size time.Duration) float64 {
	overlap := 1 - now.Sub(w.start).Seconds()/size.Seconds()
	return w.prev*max(overlap, 0) + w.curr
}

// RateLimiter is a per-key sliding window counter.
type RateLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

// NewRateLimiter creates a RateLimiter.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	return &RateLimiter{
		cfg:     cfg,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// Allow records a request for key if it fits the limit. It returns the
// remaining budget and when the current window ends.
func (rl *RateLimiter) Allow(key string) (remaining int, reset time.Time, ok bool) {
	now := rl.now()
	size := rl.cfg.Window

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, found := rl.windows[key]
	if !found {
		w = &window{start: now.Truncate(size)}
		rl.windows[key] = w
	}
	if elapsed := now.Sub(w.start); elapsed >= size {
		w.prev = w.curr
		if elapsed >= 2*size {
			w.prev = 0
		}
		w.curr = 0
		w.start = now.Truncate(size)
	}

	reset = w.start.Add(size)
	used := w.weight(now, size)
	if used >= float64(rl.cfg.Max) {
		return 0, reset, false
	}
	w.curr++
	return max(int(float64(rl.cfg.Max)-used-1), 0), reset, true
}

// Sweep drops keys idle for two windows and returns how many were dropped.
func (rl *RateLimiter) Sweep() int {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	n := 0
	for key, w := range rl.windows {
		if now.Sub(w.start) >= 2*rl.cfg.Window {
			delete(rl.windows, key)
			n++
		}
	}
	return n
}

// Run sweeps idle keys every two windows until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	if rl.cfg.Window <= 0 {
		return
	}
	ticker := time.NewTicker(2 * rl.cfg.Window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Sweep()
		}
	}
}

// Middleware enforces the limit, answering 429 with a JSON error body.
func (rl *RateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		if rl.cfg.Max <= 0 || rl.cfg.Window <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remaining, reset, ok := rl.Allow(rl.cfg.KeyFunc(r))

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.Max))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			retry := max(reset.Sub(rl.now()), 0)
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			h.Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)

			var e jx.Encoder
			e.Obj(func(e *jx.Encoder) {
				e.Field("error", func(e *jx.Encoder) { e.Str("Too many requests") })
			})
			_, _ = w.Write(e.Bytes())
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
