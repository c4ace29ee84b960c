package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type statusBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func pass() CheckFunc {
	return func(context.Context) error { return nil }
}

func fail(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func get(t *testing.T, fn http.HandlerFunc, path string) (int, statusBody) {
	t.Helper()
	rec := httptest.NewRecorder()
	fn(rec, httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body statusBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return rec.Code, body
}

func runTimes(p *checkState, n int) {
	for range n {
		p.run(context.Background())
	}
}

func TestLiveEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		check      CheckFunc
		runs       int
		wantStatus int
		wantChecks map[string]string
	}{
		{name: "no runs yet", check: fail("down"), runs: 0, wantStatus: http.StatusOK},
		{name: "passing", check: pass(), runs: 3, wantStatus: http.StatusOK},
		{name: "below failure threshold", check: fail("flaky"), runs: 2, wantStatus: http.StatusOK},
		{
			name:       "at failure threshold",
			check:      fail("goroutine count 20001 exceeds threshold 10000"),
			runs:       3,
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"goroutines": "goroutine count 20001 exceeds threshold 10000"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(Config{})
			h.AddLivenessCheck("goroutines", time.Second, tt.check)
			runTimes(h.liveness[0], tt.runs)

			code, body := get(t, h.LiveEndpoint, "/livez")
			assert.Equal(t, tt.wantStatus, code)
			if tt.wantChecks == nil {
				assert.Equal(t, "ok", body.Status)
				assert.Empty(t, body.Checks)
				return
			}
			assert.Equal(t, "unhealthy", body.Status)
			assert.Equal(t, tt.wantChecks, body.Checks)
		})
	}
}

func TestReadyEndpoint(t *testing.T) {
	t.Run("not switched on", func(t *testing.T) {
		h := New(Config{})
		h.AddReadinessCheck("postgres", time.Second, pass())

		code, body := get(t, h.ReadyEndpoint, "/readyz")
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, map[string]string{"_readiness": "service is not ready"}, body.Checks)
	})

	t.Run("ready", func(t *testing.T) {
		h := New(Config{})
		h.AddReadinessCheck("postgres", time.Second, pass())
		h.SetReady(true)

		code, body := get(t, h.ReadyEndpoint, "/readyz")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", body.Status)
	})

	t.Run("draining", func(t *testing.T) {
		h := New(Config{})
		h.AddReadinessCheck("postgres", time.Second, pass())
		h.SetReady(true)
		h.SetReady(false)

		code, _ := get(t, h.ReadyEndpoint, "/readyz")
		assert.Equal(t, http.StatusServiceUnavailable, code)
	})

	t.Run("only the failing dependency is reported", func(t *testing.T) {
		h := New(Config{})
		h.AddReadinessCheck("postgres", time.Second, fail("postgres ping: connection refused"))
		h.AddReadinessCheck("migrations", time.Second, pass())
		h.SetReady(true)
		runTimes(h.readiness[0], 3)
		runTimes(h.readiness[1], 3)

		code, body := get(t, h.ReadyEndpoint, "/readyz")
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, map[string]string{"postgres": "postgres ping: connection refused"}, body.Checks)
	})
}

func TestIsReady(t *testing.T) {
	h := New(Config{FailureThreshold: 1})
	h.AddReadinessCheck("postgres", time.Second, fail("down"))

	assert.False(t, h.IsReady())
	h.SetReady(true)
	assert.True(t, h.IsReady(), "checks start healthy")

	runTimes(h.readiness[0], 1)
	assert.False(t, h.IsReady())
}

func TestCheckState_Thresholds(t *testing.T) {
	failing := true
	h := New(Config{FailureThreshold: 2, SuccessThreshold: 2})
	h.AddLivenessCheck("flaky", time.Second, func(context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	})
	p := h.liveness[0]

	assert.Nil(t, p.err())
	runTimes(p, 1)
	assert.True(t, p.healthy.Load())
	assert.EqualError(t, p.err(), "down")
	runTimes(p, 1)
	assert.False(t, p.healthy.Load())

	failing = false
	runTimes(p, 1)
	assert.False(t, p.healthy.Load(), "one pass is below the success threshold")
	runTimes(p, 1)
	assert.True(t, p.healthy.Load())
	assert.NoError(t, p.err())
}

func TestCheckState_LogsTransitions(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := zctx.Base(context.Background(), zap.New(core))

	failing := true
	h := New(Config{FailureThreshold: 1})
	h.AddReadinessCheck("postgres", time.Second, func(context.Context) error {
		if failing {
			return errors.New("refused")
		}
		return nil
	})
	p := h.readiness[0]

	p.run(ctx)
	p.run(ctx)
	failing = false
	p.run(ctx)

	entries := logs.All()
	require.Len(t, entries, 2, "only state changes are logged")
	assert.Equal(t, "Health check failing", entries[0].Message)
	assert.Equal(t, "postgres", entries[0].ContextMap()["check"])
	assert.Equal(t, "Health check recovered", entries[1].Message)
}

func TestStartStop(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	h := New(Config{Interval: 10 * time.Millisecond})
	h.AddLivenessCheck("counter", time.Second, func(context.Context) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	})

	h.Start(context.Background())
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 2
	}, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()
}

func TestConcurrentAccess(t *testing.T) {
	h := New(Config{Interval: time.Millisecond})
	h.AddLivenessCheck("goroutines", time.Second, fail("err"))
	h.AddReadinessCheck("postgres", time.Second, pass())
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx)
	defer h.Stop()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				h.LiveEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
				h.ReadyEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		}()
	}
	wg.Wait()
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPingCheck(t *testing.T) {
	ok := PingCheck("postgres", pingerFunc(func(context.Context) error { return nil }))
	assert.NoError(t, ok(context.Background()))

	refused := errors.New("connection refused")
	bad := PingCheck("postgres", pingerFunc(func(context.Context) error { return refused }))
	err := bad(context.Background())
	require.ErrorIs(t, err, refused)
	assert.Contains(t, err.Error(), "postgres ping")
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}

func TestGCMaxPauseCheck(t *testing.T) {
	assert.NoError(t, GCMaxPauseCheck(time.Hour)(context.Background()))
}
