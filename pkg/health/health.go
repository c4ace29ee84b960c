// Package health tracks liveness and readiness of the coupon server.
//
// Every registered check runs on its own ticker. A check turns unhealthy only
// after FailureThreshold consecutive failures and healthy again after
// SuccessThreshold consecutive passes, so a single slow ping does not take the
// instance out of rotation.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// CheckFunc returns nil when the checked dependency is healthy.
type CheckFunc func(ctx context.Context) error

// Config controls how often checks run and how many results flip their state.
type Config struct {
	Interval         time.Duration
	FailureThreshold int
	SuccessThreshold int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 1
	}
	return c
}

// checkState is one registered check. run is only called from the check's own
// goroutine, so the streak counters need no locking; healthy and lastErr are
// read by HTTP handlers.
type checkState struct {
	kind    string
	name    string
	timeout time.Duration
	check   CheckFunc
	cfg     Config

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	fails  int
	passes int
}

func (p *checkState) err() error {
	if e := p.lastErr.Load(); e != nil {
		return *e
	}
	return nil
}

func (p *checkState) run(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.check(checkCtx)
	p.lastErr.Store(&err)

	if err != nil {
		p.passes = 0
		p.fails++
		if p.fails >= p.cfg.FailureThreshold && p.healthy.Swap(false) {
			zctx.From(ctx).Warn("Health check failing",
				zap.String("kind", p.kind),
				zap.String("check", p.name),
				zap.Int("failures", p.fails),
				zap.Error(err),
			)
		}
		return
	}

	p.fails = 0
	p.passes++
	if p.passes >= p.cfg.SuccessThreshold && !p.healthy.Swap(true) {
		zctx.From(ctx).Info("Health check recovered",
			zap.String("kind", p.kind),
			zap.String("check", p.name),
		)
	}
}

// Health aggregates liveness and readiness checks plus a manual readiness
// switch used while starting up and draining.
type Health struct {
	cfg   Config
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []*checkState
	readiness []*checkState
	cancel    context.CancelFunc
}

// New returns a Health that is not ready until SetReady(true).
func New(cfg Config) *Health {
	return &Health{cfg: cfg.withDefaults()}
}

// AddLivenessCheck registers a check that tells whether the process should be
// restarted.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.add(&h.liveness, "liveness", name, timeout, check)
}

// AddReadinessCheck registers a check that tells whether the process can take
// traffic, typically a dependency ping.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.add(&h.readiness, "readiness", name, timeout, check)
}

func (h *Health) add(list *[]*checkState, kind, name string, timeout time.Duration, check CheckFunc) {
	p := &checkState{kind: kind, name: name, timeout: timeout, check: check, cfg: h.cfg}
	// Healthy until proven otherwise.
	p.healthy.Store(true)

	h.mu.Lock()
	*list = append(*list, p)
	h.mu.Unlock()
}

// Start runs every registered check immediately and then every Interval
// until Stop is called or ctx is done.
func (h *Health) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	if h.cancel != nil {
		h.cancel()
	}
	h.cancel = cancel
	states := slices.Concat(h.liveness, h.readiness)
	h.mu.Unlock()

	for _, p := range states {
		go loop(ctx, p, h.cfg.Interval)
	}
}

func loop(ctx context.Context, p *checkState, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.run(ctx)
		}
	}
}

// Stop cancels the check goroutines. It is safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady flips the manual readiness switch.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the switch is on and every readiness check passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, p := range h.readiness {
		if !p.healthy.Load() {
			return false
		}
	}
	return true
}

// LiveEndpoint serves GET /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	failures := collectFailures(h.liveness)
	h.mu.RUnlock()

	writeStatus(w, failures)
}

// ReadyEndpoint serves GET /readyz. A server that was switched off reports
// the pseudo check "_readiness".
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	failures := collectFailures(h.readiness)
	h.mu.RUnlock()

	if !h.ready.Load() {
		failures = append(failures, failure{name: "_readiness", reason: "service is not ready"})
	}
	writeStatus(w, failures)
}

type failure struct {
	name   string
	reason string
}

func collectFailures(states []*checkState) []failure {
	var out []failure
	for _, p := range states {
		if p.healthy.Load() {
			continue
		}
		reason := "check is unhealthy"
		if err := p.err(); err != nil {
			reason = err.Error()
		}
		out = append(out, failure{name: p.name, reason: reason})
	}
	return out
}

// writeStatus writes {"status":"ok"} or {"status":"unhealthy","checks":{...}}.
func writeStatus(w http.ResponseWriter, failures []failure) {
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
				for _, f := range failures {
					e.Field(f.name, func(e *jx.Encoder) { e.Str(f.reason) })
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
