package resilience

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// PoolConfig bounds the HTTP traffic sent to one provider
type PoolConfig struct {
	MaxIdle        int           `json:"max_idle" yaml:"max_idle"`
	MaxActive      int           `json:"max_active" yaml:"max_active"`
	IdleTimeout    time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdle:        10,
		MaxActive:      20,
		IdleTimeout:    90 * time.Second,
		RequestTimeout: 15 * time.Second,
	}
}

var errServerStatus = errors.New("upstream server error")

// ConnectionPool is an http.RoundTripper that caps concurrent requests to one
// provider and feeds every outcome to its circuit breaker.
type ConnectionPool struct {
	name      string
	config    PoolConfig
	breaker   *CircuitBreaker
	transport *http.Transport
	client    *http.Client
	slots     chan struct{}

	active   atomic.Int64
	total    atomic.Int64
	failed   atomic.Int64
	rejected atomic.Int64
}

// NewConnectionPool creates a pool for the named provider
func NewConnectionPool(name string, config PoolConfig, cb *CircuitBreaker) *ConnectionPool {
	def := DefaultPoolConfig()
	if config.MaxIdle <= 0 {
		config.MaxIdle = def.MaxIdle
	}
	if config.MaxActive <= 0 {
		config.MaxActive = def.MaxActive
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = def.IdleTimeout
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = def.RequestTimeout
	}
	if cb == nil {
		cb = NewCircuitBreaker(name, CircuitBreakerConfig{})
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          config.MaxIdle,
		MaxConnsPerHost:       config.MaxActive,
		MaxIdleConnsPerHost:   config.MaxIdle,
		IdleConnTimeout:       config.IdleTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: config.RequestTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	cp := &ConnectionPool{
		name:      name,
		config:    config,
		breaker:   cb,
		transport: transport,
		slots:     make(chan struct{}, config.MaxActive),
	}
	cp.client = &http.Client{Transport: cp, Timeout: config.RequestTimeout}
	return cp
}

// Client returns an http.Client that sends every request through the pool
func (cp *ConnectionPool) Client() *http.Client { return cp.client }

// Breaker returns the pool's circuit breaker
func (cp *ConnectionPool) Breaker() *CircuitBreaker { return cp.breaker }

// RoundTrip implements http.RoundTripper. 5xx and 429 responses are returned to
// the caller but still count as breaker failures.
func (cp *ConnectionPool) RoundTrip(req *http.Request) (*http.Response, error) {
	select {
	case cp.slots <- struct{}{}:
	case <-req.Context().Done():
		cp.rejected.Add(1)
		return nil, req.Context().Err()
	}
	defer func() { <-cp.slots }()

	cp.active.Add(1)
	defer cp.active.Add(-1)
	cp.total.Add(1)

	var resp *http.Response
	start := time.Now()
	err := cp.breaker.Call(func() error {
		var rtErr error
		resp, rtErr = cp.transport.RoundTrip(req)
		if rtErr != nil {
			return rtErr
		}
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return errServerStatus
		}
		return nil
	})
	duration := time.Since(start)

	if errors.Is(err, errServerStatus) {
		cp.failed.Add(1)
		slog.Debug("Upstream error status", "pool", cp.name, "url", req.URL.String(), "status", resp.StatusCode)
		return resp, nil
	}
	if err != nil {
		cp.failed.Add(1)
		slog.Warn("Request failed", "pool", cp.name, "url", req.URL.String(), "error", err, "duration_ms", duration.Milliseconds())
		return nil, err
	}

	slog.Debug("Request completed", "pool", cp.name, "url", req.URL.String(), "status", resp.StatusCode, "duration_ms", duration.Milliseconds())
	return resp, nil
}

// DoRequest executes a bodyless request with the given headers
func (cp *ConnectionPool) DoRequest(ctx context.Context, method, url string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	return cp.client.Do(req)
}

// GetStats returns connection pool statistics
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"name":                  cp.name,
		"active_requests":       cp.active.Load(),
		"total_requests":        cp.total.Load(),
		"failed_requests":       cp.failed.Load(),
		"rejected_requests":     cp.rejected.Load(),
		"max_idle":              cp.config.MaxIdle,
		"max_active":            cp.config.MaxActive,
		"idle_timeout_ms":       cp.config.IdleTimeout.Milliseconds(),
		"circuit_breaker_state": cp.breaker.State().String(),
	}
}

// Close drops idle keep-alive connections
func (cp *ConnectionPool) Close() error {
	cp.transport.CloseIdleConnections()
	slog.Info("Connection pool closed", "pool", cp.name)
	return nil
}
