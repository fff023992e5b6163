package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveLive(h *Health) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
	return w
}

func serveReady(h *Health) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	return w
}

func decodeReport(t *testing.T, w *httptest.ResponseRecorder) report {
	t.Helper()

	var r report
	require.NoError(t, json.NewDecoder(w.Body).Decode(&r))
	return r
}

func TestLiveEndpoint_NoChecks(t *testing.T) {
	h := New()

	w := serveLive(h)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeReport(t, w).Status)
}

func TestReadyEndpoint_NotReadyByDefault(t *testing.T) {
	h := New()

	w := serveReady(h)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	r := decodeReport(t, w)
	assert.Equal(t, "unhealthy", r.Status)
	assert.Contains(t, r.Checks, "_readiness")
}

func TestReadyEndpoint_SetReady(t *testing.T) {
	h := New()
	h.SetReady(true)

	w := serveReady(h)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeReport(t, w).Status)

	// Draining flips it back.
	h.SetReady(false)
	assert.Equal(t, http.StatusServiceUnavailable, serveReady(h).Code)
}

func TestCheck_FailureThreshold(t *testing.T) {
	h := New()
	h.SetReady(true)

	boom := errors.New("db down")
	h.AddReadinessCheck("db", time.Second, func(_ context.Context) error {
		return boom
	})

	// Probes start healthy until the failure threshold is reached.
	p := h.readiness[0]
	ctx := context.Background()

	p.exec(ctx)
	p.exec(ctx)
	assert.True(t, h.IsReady(), "two failures stay under the threshold")

	p.exec(ctx)
	assert.False(t, h.IsReady(), "third consecutive failure trips the probe")

	w := serveReady(h)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	r := decodeReport(t, w)
	assert.Equal(t, "db down", r.Checks["db"])
}

func TestCheck_RecoversOnFirstSuccess(t *testing.T) {
	h := New()
	h.SetReady(true)

	var fail bool
	h.AddReadinessCheck("db", time.Second, func(_ context.Context) error {
		if fail {
			return errors.New("db down")
		}
		return nil
	})

	p := h.readiness[0]
	ctx := context.Background()

	fail = true
	for range 3 {
		p.exec(ctx)
	}
	require.False(t, h.IsReady())

	fail = false
	p.exec(ctx)
	assert.True(t, h.IsReady(), "one success recovers the probe")
}

func TestStart_RunsChecksPeriodically(t *testing.T) {
	h := New()
	h.SetReady(true)

	ran := make(chan struct{}, 8)
	h.AddLivenessCheck("tick", time.Second, func(_ context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.Start(ctx, 10*time.Millisecond)
	defer h.Stop()

	for range 2 {
		select {
		case <-ran:
		case <-time.After(time.Second):
			t.Fatal("check did not run")
		}
	}
}

func TestGoroutineCountCheck(t *testing.T) {
	require.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))
	require.Error(t, GoroutineCountCheck(0)(context.Background()))
}
