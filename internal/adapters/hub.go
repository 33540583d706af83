package adapters

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	apperrors "github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/errors"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/monitoring"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/resilience"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/types"
)

const (
	ServiceRegistry = "huggingface"
	ServiceSource   = "github"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type poolStatter interface {
	GetPoolStats() map[string]interface{}
}

// Hub is the Provider evaluators see. Model calls go to the registry, repository
// calls go to the source host, and every call is retried, measured and tracked
// for degradation.
type Hub struct {
	registry    Provider
	source      Provider
	degradation *resilience.DegradationManager
	retries     *resilience.RetryManager
	metrics     *monitoring.Metrics
	logger      *monitoring.Logger
}

type HubOption func(*Hub)

func WithDegradationManager(dm *resilience.DegradationManager) HubOption {
	return func(h *Hub) { h.degradation = dm }
}

func WithRetryManager(rm *resilience.RetryManager) HubOption {
	return func(h *Hub) { h.retries = rm }
}

func WithMetrics(m *monitoring.Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

func WithLogger(l *monitoring.Logger) HubOption {
	return func(h *Hub) { h.logger = l }
}

// NewHub combines a model registry and a source host
func NewHub(registry, source Provider, opts ...HubOption) *Hub {
	h := &Hub{registry: registry, source: source}
	for _, opt := range opts {
		opt(h)
	}
	if h.degradation == nil {
		h.degradation = resilience.NewDegradationManager(resilience.DefaultDegradationConfig())
	}
	if h.retries == nil {
		h.retries = resilience.NewRetryManager()
		h.retries.RegisterPolicy(ServiceRegistry, resilience.FastRetryPolicy)
		h.retries.RegisterPolicy(ServiceSource, resilience.SlowRetryPolicy)
	}
	if h.metrics == nil {
		h.metrics = monitoring.NewMetrics()
	}
	if h.logger == nil {
		h.logger = monitoring.NewLoggerWithWriter(io.Discard, slog.LevelError)
	}

	for name, p := range map[string]Provider{ServiceRegistry: registry, ServiceSource: source} {
		if p == nil {
			continue
		}
		var check resilience.HealthCheckFunc
		if pp, ok := p.(pinger); ok {
			check = pp.Ping
		}
		h.degradation.RegisterService(name, check)
	}
	return h
}

func (h *Hub) FetchArtifactMetadata(ctx context.Context, modelID string) (*types.ArtifactMetadata, time.Duration, error) {
	type result struct {
		meta    *types.ArtifactMetadata
		latency time.Duration
	}
	r, err := call(ctx, h, ServiceRegistry, h.registry, "metadata", modelID, func(ctx context.Context, p Provider) (result, error) {
		meta, latency, err := p.FetchArtifactMetadata(ctx, modelID)
		return result{meta, latency}, err
	})
	return r.meta, r.latency, err
}

func (h *Hub) FetchReadme(ctx context.Context, modelID string) (string, error) {
	return call(ctx, h, ServiceRegistry, h.registry, "readme", modelID, func(ctx context.Context, p Provider) (string, error) {
		return p.FetchReadme(ctx, modelID)
	})
}

func (h *Hub) FetchDependencyGraph(ctx context.Context, modelID string) (*types.DependencyGraph, error) {
	return call(ctx, h, ServiceRegistry, h.registry, "lineage", modelID, func(ctx context.Context, p Provider) (*types.DependencyGraph, error) {
		return p.FetchDependencyGraph(ctx, modelID)
	})
}

func (h *Hub) FetchCommitAuthors(ctx context.Context, modelID string) ([]string, error) {
	return call(ctx, h, ServiceRegistry, h.registry, "commit_authors", modelID, func(ctx context.Context, p Provider) ([]string, error) {
		return p.FetchCommitAuthors(ctx, modelID)
	})
}

func (h *Hub) FetchLicense(ctx context.Context, repoURL string) (string, error) {
	return call(ctx, h, ServiceSource, h.source, "license", repoURL, func(ctx context.Context, p Provider) (string, error) {
		return p.FetchLicense(ctx, repoURL)
	})
}

func (h *Hub) FetchReviewStats(ctx context.Context, repoURL string) (*types.ReviewStats, error) {
	return call(ctx, h, ServiceSource, h.source, "review_stats", repoURL, func(ctx context.Context, p Provider) (*types.ReviewStats, error) {
		return p.FetchReviewStats(ctx, repoURL)
	})
}

// call runs one provider operation. Only provider faults count against the
// provider's health; a missing model is a successful answer.
func call[T any](ctx context.Context, h *Hub, service string, p Provider, op, target string, fn func(context.Context, Provider) (T, error)) (T, error) {
	var zero T
	if p == nil {
		return zero, apperrors.NewConfigurationError(fmt.Sprintf("no %s provider configured", service), nil)
	}
	if !h.degradation.IsServiceAvailable(service) {
		err := apperrors.NewExternalAPIError(service, fmt.Errorf("provider unavailable: %s", op))
		h.metrics.RecordExternalAPIRequest(service, false)
		h.logger.ExternalAPILogger(service, op, target, 0, err)
		return zero, err
	}

	start := time.Now()
	var out T
	err := h.retries.Execute(ctx, service, func() error {
		var callErr error
		out, callErr = fn(ctx, p)
		return callErr
	})
	duration := time.Since(start)

	providerFault := err != nil && apperrors.IsRetryableError(err) && ctx.Err() == nil
	if providerFault {
		h.degradation.RecordError(service, err)
	} else {
		h.degradation.RecordRequest(service, true)
	}
	h.metrics.RecordExternalAPIRequest(service, err == nil)
	h.logger.ExternalAPILogger(service, op, target, duration, err)

	if err != nil {
		return zero, err
	}
	return out, nil
}

// StartHealthChecks probes every provider until ctx is done
func (h *Hub) StartHealthChecks(ctx context.Context) {
	h.degradation.StartHealthChecks(ctx)
}

// Health returns provider degradation state
func (h *Hub) Health() map[string]*resilience.ServiceHealth {
	return h.degradation.GetAllServiceHealth()
}

// PoolStats returns connection pool statistics for each provider that has one
func (h *Hub) PoolStats() map[string]interface{} {
	stats := make(map[string]interface{})
	for name, p := range map[string]Provider{ServiceRegistry: h.registry, ServiceSource: h.source} {
		if ps, ok := p.(poolStatter); ok {
			stats[name] = ps.GetPoolStats()
		}
	}
	return stats
}

// Close releases provider resources
func (h *Hub) Close() error {
	for name, p := range map[string]Provider{ServiceRegistry: h.registry, ServiceSource: h.source} {
		if c, ok := p.(io.Closer); ok {
			apperrors.SafeClose(c, name+" provider")
		}
	}
	h.degradation.GracefulShutdown()
	return nil
}
