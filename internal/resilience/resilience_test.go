package resilience

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/errors"
)

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	cb := NewCircuitBreaker("registry", CircuitBreakerConfig{
		FailureThreshold: 2,
		RecoveryTimeout:  20 * time.Millisecond,
		SuccessThreshold: 1,
	})
	upstream := errors.NewExternalAPIError("registry", nil)

	assert.Error(t, cb.Call(func() error { return upstream }))
	assert.Equal(t, StateClosed, cb.State())
	assert.Error(t, cb.Call(func() error { return upstream }))
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Call(func() error { called = true; return nil })
	var cbErr *CircuitBreakerError
	require.ErrorAs(t, err, &cbErr)
	assert.False(t, called)

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitBreakerIgnoresCallerErrors(t *testing.T) {
	cb := NewCircuitBreaker("registry", CircuitBreakerConfig{FailureThreshold: 1})

	for i := 0; i < 5; i++ {
		_ = cb.Call(func() error { return errors.NewNotFoundError("model", "org/missing") })
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestRetryWithConfig(t *testing.T) {
	fast := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2}

	t.Run("retries transient errors until success", func(t *testing.T) {
		var attempts int
		err := RetryWithConfig(context.Background(), fast, func() error {
			attempts++
			if attempts < 3 {
				return errors.NewNetworkError("flaky", nil)
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("stops on non retryable error", func(t *testing.T) {
		var attempts int
		err := RetryWithConfig(context.Background(), fast, func() error {
			attempts++
			return errors.NewNotFoundError("model", "x")
		})
		require.Error(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("returns last error when exhausted", func(t *testing.T) {
		var attempts int
		err := RetryWithConfig(context.Background(), fast, func() error {
			attempts++
			return errors.NewTimeoutError("slow", nil)
		})
		var appErr *errors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, errors.CategoryTimeout, appErr.Category)
		assert.Equal(t, 3, attempts)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := RetryWithConfig(ctx, fast, func() error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCalculateDelay(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, BackoffFactor: 2}
	assert.Equal(t, 100*time.Millisecond, calculateDelay(cfg, 0))
	assert.Equal(t, 200*time.Millisecond, calculateDelay(cfg, 1))
	assert.Equal(t, 300*time.Millisecond, calculateDelay(cfg, 5))

	cfg.JitterEnabled = true
	d := calculateDelay(cfg, 0)
	assert.GreaterOrEqual(t, d, 100*time.Millisecond)
	assert.Less(t, d, 111*time.Millisecond)

	tiny := RetryConfig{InitialDelay: time.Nanosecond, BackoffFactor: 1, JitterEnabled: true}
	assert.NotPanics(t, func() { calculateDelay(tiny, 0) })
}

func TestRetryManagerPolicies(t *testing.T) {
	rm := NewRetryManager()
	rm.RegisterPolicy("registry", FastRetryPolicy)

	assert.Equal(t, "fast", rm.GetPolicy("registry").Name)
	assert.Equal(t, "standard", rm.GetPolicy("unknown").Name)

	rm.RegisterPolicy("once", NoRetryPolicy)
	var attempts int
	_ = rm.Execute(context.Background(), "once", func() error {
		attempts++
		return errors.NewNetworkError("down", nil)
	})
	assert.Equal(t, 1, attempts)
}

func TestConnectionPoolRoundTrip(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 2,
		RecoveryTimeout:  time.Minute,
		IsFailure:        func(error) bool { return true },
	})
	pool := NewConnectionPool("test", PoolConfig{MaxActive: 2}, cb)
	defer pool.Close()

	headers := map[string]string{"User-Agent": "test-agent"}
	resp, err := pool.DoRequest(context.Background(), http.MethodGet, srv.URL, headers)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	status.Store(http.StatusServiceUnavailable)
	for i := 0; i < 2; i++ {
		resp, err = pool.DoRequest(context.Background(), http.MethodGet, srv.URL, headers)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	}
	assert.Equal(t, StateOpen, cb.State())

	_, err = pool.DoRequest(context.Background(), http.MethodGet, srv.URL, headers)
	var cbErr *CircuitBreakerError
	assert.True(t, stderrors.As(err, &cbErr))

	stats := pool.GetStats()
	assert.Equal(t, int64(4), stats["total_requests"])
	assert.Equal(t, "open", stats["circuit_breaker_state"])
}

func TestDegradationManager(t *testing.T) {
	dm := NewDegradationManager(DegradationConfig{
		DegradedThreshold:  0.1,
		CriticalThreshold:  0.25,
		EmergencyThreshold: 0.5,
		MinRequests:        4,
		RecoveryTimeWindow: 30 * time.Millisecond,
	})
	dm.RegisterService("github", nil)

	assert.False(t, dm.IsServiceAvailable("unknown"))

	// below the sample size a burst of errors is tolerated
	for i := 0; i < 3; i++ {
		dm.RecordError("github", errors.NewNetworkError("down", nil))
	}
	assert.True(t, dm.IsServiceAvailable("github"))

	dm.RecordError("github", errors.NewNetworkError("down", nil))
	health, ok := dm.GetServiceHealth("github")
	require.True(t, ok)
	assert.Equal(t, LevelEmergency, health.Level)
	assert.False(t, dm.IsServiceAvailable("github"))

	time.Sleep(40 * time.Millisecond)
	assert.True(t, dm.IsServiceAvailable("github"), "probe allowed after recovery window")

	dm.ResetService("github")
	health, _ = dm.GetServiceHealth("github")
	assert.Equal(t, LevelNormal, health.Level)
	assert.Equal(t, int64(0), health.TotalRequests)
}

func TestDegradationWindowRecovers(t *testing.T) {
	dm := NewDegradationManager(DegradationConfig{
		WindowSize:         4,
		MinRequests:        4,
		RecoveryTimeWindow: time.Hour,
	})
	dm.RegisterService("registry", nil)

	for i := 0; i < 4; i++ {
		dm.RecordRequest("registry", false)
	}
	health, _ := dm.GetServiceHealth("registry")
	require.Equal(t, LevelEmergency, health.Level)
	assert.Equal(t, "request failed", health.LastError)

	tests := []struct {
		successes int
		want      DegradationLevel
	}{
		{1, LevelEmergency}, // 3 of 4 failed
		{2, LevelEmergency}, // 2 of 4
		{3, LevelCritical},  // 1 of 4
		{4, LevelNormal},
	}
	for _, tt := range tests {
		dm.RecordRequest("registry", true)
		health, _ = dm.GetServiceHealth("registry")
		assert.Equal(t, tt.want, health.Level, "after %d successes", tt.successes)
	}

	assert.Equal(t, int64(8), health.TotalRequests)
	assert.Equal(t, int64(4), health.ErrorCount, "lifetime counts survive the window")
	assert.Zero(t, health.ErrorRate)
}

func TestDegradationLevelString(t *testing.T) {
	assert.Equal(t, "critical", LevelCritical.String())
	assert.Equal(t, "unknown", DegradationLevel(9).String())
	text, err := LevelEmergency.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "emergency", string(text))
}

func TestDegradationHealthChecks(t *testing.T) {
	dm := NewDegradationManager(DegradationConfig{HealthCheckInterval: 5 * time.Millisecond})
	dm.RegisterService("registry", func(ctx context.Context) error { return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	dm.StartHealthChecks(ctx)

	health, _ := dm.GetServiceHealth("registry")
	assert.Greater(t, health.TotalRequests, int64(0))
	assert.Equal(t, "normal", health.Level.String())
}
