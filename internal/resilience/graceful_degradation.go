package resilience

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/errors"
)

// DegradationLevel is the health of one provider, derived from its recent error rate
type DegradationLevel int

const (
	LevelNormal DegradationLevel = iota
	LevelDegraded
	LevelCritical
	LevelEmergency
)

var levelNames = [...]string{"normal", "degraded", "critical", "emergency"}

func (l DegradationLevel) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return "unknown"
	}
	return levelNames[l]
}

// MarshalText renders the level by name in health responses
func (l DegradationLevel) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

type DegradationConfig struct {
	HealthCheckInterval time.Duration `json:"health_check_interval" yaml:"health_check_interval"`
	HealthCheckTimeout  time.Duration `json:"health_check_timeout" yaml:"health_check_timeout"`

	DegradedThreshold  float64 `json:"degraded_threshold" yaml:"degraded_threshold"`
	CriticalThreshold  float64 `json:"critical_threshold" yaml:"critical_threshold"`
	EmergencyThreshold float64 `json:"emergency_threshold" yaml:"emergency_threshold"`

	// WindowSize is how many recent calls the error rate is computed over.
	WindowSize int `json:"window_size" yaml:"window_size"`
	// MinRequests is the sample size below which a provider stays normal.
	MinRequests int `json:"min_requests" yaml:"min_requests"`
	// RecoveryTimeWindow is how long an emergency lasts without new errors
	// before the provider is probed again.
	RecoveryTimeWindow time.Duration `json:"recovery_time_window" yaml:"recovery_time_window"`
}

func DefaultDegradationConfig() DegradationConfig {
	return DegradationConfig{
		HealthCheckInterval: 30 * time.Second,
		HealthCheckTimeout:  5 * time.Second,
		DegradedThreshold:   0.1,
		CriticalThreshold:   0.25,
		EmergencyThreshold:  0.5,
		WindowSize:          50,
		MinRequests:         10,
		RecoveryTimeWindow:  2 * time.Minute,
	}
}

// withDefaults fills unset fields; MinRequests and RecoveryTimeWindow may legitimately be zero
func (c DegradationConfig) withDefaults() DegradationConfig {
	def := DefaultDegradationConfig()
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = def.HealthCheckInterval
	}
	if c.HealthCheckTimeout <= 0 {
		c.HealthCheckTimeout = def.HealthCheckTimeout
	}
	if c.DegradedThreshold <= 0 {
		c.DegradedThreshold = def.DegradedThreshold
	}
	if c.CriticalThreshold <= 0 {
		c.CriticalThreshold = def.CriticalThreshold
	}
	if c.EmergencyThreshold <= 0 {
		c.EmergencyThreshold = def.EmergencyThreshold
	}
	if c.WindowSize <= 0 {
		c.WindowSize = def.WindowSize
	}
	if c.MinRequests > c.WindowSize {
		c.MinRequests = c.WindowSize
	}
	return c
}

func (c DegradationConfig) levelFor(rate float64, samples int) DegradationLevel {
	switch {
	case samples < c.MinRequests:
		return LevelNormal
	case rate >= c.EmergencyThreshold:
		return LevelEmergency
	case rate >= c.CriticalThreshold:
		return LevelCritical
	case rate >= c.DegradedThreshold:
		return LevelDegraded
	}
	return LevelNormal
}

// ServiceHealth is a point-in-time view of one provider. Counts are lifetime
// totals; ErrorRate and Level cover the recent window only.
type ServiceHealth struct {
	ServiceName   string           `json:"service_name"`
	Level         DegradationLevel `json:"level"`
	ErrorRate     float64          `json:"error_rate"`
	TotalRequests int64            `json:"total_requests"`
	ErrorCount    int64            `json:"error_count"`
	LastError     string           `json:"last_error,omitempty"`
	LastErrorTime time.Time        `json:"last_error_time,omitempty"`
	StatusMessage string           `json:"status_message"`
}

func statusMessage(l DegradationLevel) string {
	switch l {
	case LevelEmergency:
		return "Provider is skipped: most recent calls failed"
	case LevelCritical:
		return "Provider is failing often"
	case LevelDegraded:
		return "Provider has occasional failures"
	}
	return "Service is healthy"
}

// HealthCheckFunc probes a provider
type HealthCheckFunc func(ctx context.Context) error

type serviceState struct {
	health ServiceHealth
	window []bool // true marks a failed call
	next   int
	filled int
	failed int
}

func newServiceState(name string, size int) *serviceState {
	return &serviceState{
		health: ServiceHealth{ServiceName: name, Level: LevelNormal, StatusMessage: statusMessage(LevelNormal)},
		window: make([]bool, size),
	}
}

func (s *serviceState) push(failed bool) {
	if s.filled == len(s.window) {
		if s.window[s.next] {
			s.failed--
		}
	} else {
		s.filled++
	}
	s.window[s.next] = failed
	if failed {
		s.failed++
	}
	s.next = (s.next + 1) % len(s.window)
}

// DegradationManager tracks provider error rates over a sliding window. A
// provider in emergency state is skipped and its evaluators fall back to their
// unknown result.
type DegradationManager struct {
	config       DegradationConfig
	mutex        sync.RWMutex
	services     map[string]*serviceState
	healthChecks map[string]HealthCheckFunc
}

func NewDegradationManager(config DegradationConfig) *DegradationManager {
	return &DegradationManager{
		config:       config.withDefaults(),
		services:     make(map[string]*serviceState),
		healthChecks: make(map[string]HealthCheckFunc),
	}
}

// RegisterService starts tracking a provider. healthCheck may be nil.
func (dm *DegradationManager) RegisterService(serviceName string, healthCheck HealthCheckFunc) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	dm.services[serviceName] = newServiceState(serviceName, dm.config.WindowSize)
	if healthCheck != nil {
		dm.healthChecks[serviceName] = healthCheck
	}
	slog.Info("Registered service for degradation management", "service", serviceName)
}

// RecordRequest records a call outcome without an error value
func (dm *DegradationManager) RecordRequest(serviceName string, success bool) {
	dm.record(serviceName, !success, "request failed")
}

// RecordError records a failed call
func (dm *DegradationManager) RecordError(serviceName string, err error) {
	if err == nil {
		return
	}
	dm.record(serviceName, true, err.Error())
}

func (dm *DegradationManager) record(serviceName string, failed bool, reason string) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	s, ok := dm.services[serviceName]
	if !ok {
		return
	}

	s.push(failed)
	s.health.TotalRequests++
	if failed {
		s.health.ErrorCount++
		s.health.LastError = reason
		s.health.LastErrorTime = time.Now()
	}
	s.health.ErrorRate = float64(s.failed) / float64(s.filled)

	old := s.health.Level
	s.health.Level = dm.config.levelFor(s.health.ErrorRate, s.filled)
	s.health.StatusMessage = statusMessage(s.health.Level)
	if old != s.health.Level {
		slog.Warn("Service degradation level changed",
			"service", serviceName,
			"old_level", old.String(),
			"new_level", s.health.Level.String(),
			"error_rate", s.health.ErrorRate,
			"window", s.filled)
	}
}

// GetServiceHealth returns a copy of the provider's health
func (dm *DegradationManager) GetServiceHealth(serviceName string) (*ServiceHealth, bool) {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	s, ok := dm.services[serviceName]
	if !ok {
		return nil, false
	}
	snapshot := s.health
	return &snapshot, true
}

// GetAllServiceHealth returns copies of every tracked provider's health
func (dm *DegradationManager) GetAllServiceHealth() map[string]*ServiceHealth {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	result := make(map[string]*ServiceHealth, len(dm.services))
	for name, s := range dm.services {
		snapshot := s.health
		result[name] = &snapshot
	}
	return result
}

// IsServiceAvailable is false for unknown providers and for providers in emergency
// state whose last error is more recent than the recovery window.
func (dm *DegradationManager) IsServiceAvailable(serviceName string) bool {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	s, ok := dm.services[serviceName]
	if !ok {
		return false
	}
	if s.health.Level != LevelEmergency {
		return true
	}
	return dm.config.RecoveryTimeWindow > 0 && time.Since(s.health.LastErrorTime) > dm.config.RecoveryTimeWindow
}

// StartHealthChecks runs the registered health checks until ctx is done
func (dm *DegradationManager) StartHealthChecks(ctx context.Context) {
	ticker := time.NewTicker(dm.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dm.performHealthChecks(ctx)
		}
	}
}

func (dm *DegradationManager) performHealthChecks(ctx context.Context) {
	dm.mutex.RLock()
	checks := make(map[string]HealthCheckFunc, len(dm.healthChecks))
	for name, check := range dm.healthChecks {
		checks[name] = check
	}
	dm.mutex.RUnlock()

	var wg sync.WaitGroup
	for name, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, dm.config.HealthCheckTimeout)
			defer cancel()

			if err := check(checkCtx); err != nil {
				dm.RecordError(name, errors.WrapError(err, "health check failed for service %s", name))
				return
			}
			dm.RecordRequest(name, true)
		}()
	}
	wg.Wait()
}

// ResetService clears a provider's counters and window
func (dm *DegradationManager) ResetService(serviceName string) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	if _, ok := dm.services[serviceName]; ok {
		dm.services[serviceName] = newServiceState(serviceName, dm.config.WindowSize)
		slog.Info("Service health reset", "service", serviceName)
	}
}

// GracefulShutdown logs the final state of every provider
func (dm *DegradationManager) GracefulShutdown() {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	for name, s := range dm.services {
		slog.Info("Final service status",
			"service", name,
			"level", s.health.Level.String(),
			"error_rate", s.health.ErrorRate,
			"total_requests", s.health.TotalRequests,
			"error_count", s.health.ErrorCount)
	}
}
