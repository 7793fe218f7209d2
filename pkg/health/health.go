// Package health serves /livez and /readyz from checks that run in the
// background. A check flips to unhealthy after FailureThreshold consecutive
// failures and back after SuccessThreshold consecutive successes.
package health

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
)

// CheckFunc reports a problem with a component, or nil.
type CheckFunc func(ctx context.Context) error

// Kind tells which probe a check contributes to.
type Kind int

const (
	Liveness Kind = iota
	Readiness
)

// Option tunes a registered check.
type Option func(*check)

// WithTimeout bounds a single run. Default is one second.
func WithTimeout(d time.Duration) Option {
	return func(c *check) { c.timeout = d }
}

// WithThresholds overrides the default 3 failures / 1 success.
func WithThresholds(failures, successes int) Option {
	return func(c *check) {
		c.failures = max(failures, 1)
		c.successes = max(successes, 1)
	}
}

type check struct {
	name      string
	kind      Kind
	fn        CheckFunc
	timeout   time.Duration
	failures  int
	successes int

	healthy atomic.Bool
	lastErr atomic.Pointer[string]

	// Touched only by the goroutine running this check.
	failStreak int
	okStreak   int
}

func (c *check) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.fn(ctx); err != nil {
		msg := err.Error()
		c.lastErr.Store(&msg)
		c.okStreak = 0
		c.failStreak++
		if c.failStreak >= c.failures {
			c.healthy.Store(false)
		}
		return
	}
	c.lastErr.Store(nil)
	c.failStreak = 0
	c.okStreak++
	if c.okStreak >= c.successes {
		c.healthy.Store(true)
	}
}

func (c *check) failure() (string, bool) {
	if c.healthy.Load() {
		return "", false
	}
	if msg := c.lastErr.Load(); msg != nil {
		return *msg, true
	}
	return "check is unhealthy", true
}

// Health holds registered checks and the manual readiness switch.
type Health struct {
	ready atomic.Bool

	mu     sync.RWMutex
	checks []*check
	cancel context.CancelFunc
	done   sync.WaitGroup
}

// New returns a Health that is not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// Add registers a check. Checks start healthy.
func (h *Health) Add(kind Kind, name string, fn CheckFunc, opts ...Option) {
	c := &check{
		name:      name,
		kind:      kind,
		fn:        fn,
		timeout:   time.Second,
		failures:  3,
		successes: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.healthy.Store(true)

	h.mu.Lock()
	h.checks = append(h.checks, c)
	h.mu.Unlock()
}

// Start runs every check immediately and then every interval until Stop or
// until ctx is done.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancel = cancel
	for _, c := range h.checks {
		h.done.Add(1)
		go func() {
			defer h.done.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				c.run(ctx)
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	}
}

// Stop cancels the background checks and waits for them to exit.
func (h *Health) Stop() {
	h.mu.Lock()
	cancel := h.cancel
	h.cancel = nil
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	h.done.Wait()
}

// SetReady flips the manual readiness switch.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the switch is on and all readiness checks pass.
func (h *Health) IsReady() bool {
	return h.ready.Load() && len(h.failures(Readiness)) == 0
}

func (h *Health) failures(kind Kind) map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]string)
	for _, c := range h.checks {
		if c.kind != kind {
			continue
		}
		if msg, failed := c.failure(); failed {
			out[c.name] = msg
		}
	}
	return out
}

// LiveEndpoint serves the liveness probe.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, h.failures(Liveness))
}

// ReadyEndpoint serves the readiness probe.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures := h.failures(Readiness)
	if !h.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeStatus(w, failures)
}

// Routes mounts /livez and /readyz.
func (h *Health) Routes(r chi.Router) {
	r.Get("/livez", h.LiveEndpoint)
	r.Get("/readyz", h.ReadyEndpoint)
}

func writeStatus(w http.ResponseWriter, failures map[string]string) {
	var e jx.Encoder
	status := http.StatusOK
	e.Obj(func(e *jx.Encoder) {
		if len(failures) == 0 {
			e.Field("status", func(e *jx.Encoder) { e.Str("ok") })
			return
		}
		status = http.StatusServiceUnavailable
		e.Field("status", func(e *jx.Encoder) { e.Str("unhealthy") })
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, name := range slices.Sorted(maps.Keys(failures)) {
					e.Field(name, func(e *jx.Encoder) { e.Str(failures[name]) })
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
