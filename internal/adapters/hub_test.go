package adapters

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/errors"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/monitoring"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/resilience"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/types"
)

// scriptedProvider answers from functions; unset functions return an error
type scriptedProvider struct {
	metadata func() (*types.ArtifactMetadata, error)
	license  func() (string, error)
	calls    int
}

func (s *scriptedProvider) FetchArtifactMetadata(ctx context.Context, modelID string) (*types.ArtifactMetadata, time.Duration, error) {
	s.calls++
	if s.metadata == nil {
		return nil, 0, apperrors.NewNotFoundError("model", modelID)
	}
	meta, err := s.metadata()
	return meta, time.Millisecond, err
}

func (s *scriptedProvider) FetchReadme(ctx context.Context, modelID string) (string, error) {
	s.calls++
	return "# readme", nil
}

func (s *scriptedProvider) FetchLicense(ctx context.Context, repoURL string) (string, error) {
	s.calls++
	if s.license == nil {
		return "", apperrors.NewNotFoundError("repository", repoURL)
	}
	return s.license()
}

func (s *scriptedProvider) FetchReviewStats(ctx context.Context, repoURL string) (*types.ReviewStats, error) {
	s.calls++
	return &types.ReviewStats{Contributors: 1}, nil
}

func (s *scriptedProvider) FetchDependencyGraph(ctx context.Context, modelID string) (*types.DependencyGraph, error) {
	s.calls++
	return &types.DependencyGraph{Root: modelID}, nil
}

func (s *scriptedProvider) FetchCommitAuthors(ctx context.Context, modelID string) ([]string, error) {
	s.calls++
	return []string{"alice"}, nil
}

func quickRetries() *resilience.RetryManager {
	rm := resilience.NewRetryManager()
	rm.RegisterPolicy(ServiceRegistry, resilience.RetryPolicy{
		Name:   "test",
		Config: resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1},
	})
	rm.RegisterPolicy(ServiceSource, resilience.NoRetryPolicy)
	return rm
}

func TestHubRoutesCalls(t *testing.T) {
	registry := &scriptedProvider{metadata: func() (*types.ArtifactMetadata, error) {
		return &types.ArtifactMetadata{ID: "org/model"}, nil
	}}
	source := &scriptedProvider{license: func() (string, error) { return "MIT", nil }}
	metrics := monitoring.NewMetrics()
	hub := NewHub(registry, source, WithRetryManager(quickRetries()), WithMetrics(metrics))

	meta, latency, err := hub.FetchArtifactMetadata(context.Background(), "org/model")
	require.NoError(t, err)
	assert.Equal(t, "org/model", meta.ID)
	assert.Equal(t, time.Millisecond, latency)

	readme, err := hub.FetchReadme(context.Background(), "org/model")
	require.NoError(t, err)
	assert.Equal(t, "# readme", readme)

	_, err = hub.FetchDependencyGraph(context.Background(), "org/model")
	require.NoError(t, err)

	authors, err := hub.FetchCommitAuthors(context.Background(), "org/model")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, authors)

	spdx, err := hub.FetchLicense(context.Background(), "https://github.com/acme/widgets")
	require.NoError(t, err)
	assert.Equal(t, "MIT", spdx)

	_, err = hub.FetchReviewStats(context.Background(), "https://github.com/acme/widgets")
	require.NoError(t, err)

	assert.Equal(t, 4, registry.calls)
	assert.Equal(t, 2, source.calls)

	api := metrics.GetExternalAPIStats()
	assert.Equal(t, int64(4), api[ServiceRegistry].(map[string]interface{})["requests"])
	assert.Equal(t, int64(2), api[ServiceSource].(map[string]interface{})["requests"])
}

func TestHubRetriesTransientErrors(t *testing.T) {
	attempts := 0
	registry := &scriptedProvider{metadata: func() (*types.ArtifactMetadata, error) {
		attempts++
		if attempts < 3 {
			return nil, apperrors.NewNetworkError("reset", nil)
		}
		return &types.ArtifactMetadata{ID: "org/model"}, nil
	}}
	hub := NewHub(registry, nil, WithRetryManager(quickRetries()))

	meta, _, err := hub.FetchArtifactMetadata(context.Background(), "org/model")
	require.NoError(t, err)
	assert.Equal(t, "org/model", meta.ID)
	assert.Equal(t, 3, attempts)
}

func TestHubNotFoundDoesNotDegrade(t *testing.T) {
	registry := &scriptedProvider{}
	dm := resilience.NewDegradationManager(resilience.DegradationConfig{MinRequests: 2})
	hub := NewHub(registry, nil, WithRetryManager(quickRetries()), WithDegradationManager(dm))

	for i := 0; i < 5; i++ {
		_, _, err := hub.FetchArtifactMetadata(context.Background(), "org/missing")
		assert.Equal(t, apperrors.CategoryNotFound, apperrors.ToAppError(err).Category)
	}
	assert.Equal(t, 5, registry.calls, "not found is never retried")

	health := hub.Health()[ServiceRegistry]
	assert.Equal(t, resilience.LevelNormal, health.Level)
	assert.Zero(t, health.ErrorCount)
}

func TestHubSkipsProviderInEmergency(t *testing.T) {
	source := &scriptedProvider{license: func() (string, error) {
		return "", apperrors.NewExternalAPIError("github", nil)
	}}
	dm := resilience.NewDegradationManager(resilience.DegradationConfig{
		MinRequests:        2,
		EmergencyThreshold: 0.5,
		RecoveryTimeWindow: time.Hour,
	})
	hub := NewHub(nil, source, WithRetryManager(quickRetries()), WithDegradationManager(dm))

	for i := 0; i < 2; i++ {
		_, err := hub.FetchLicense(context.Background(), "https://github.com/acme/widgets")
		require.Error(t, err)
	}
	assert.Equal(t, 2, source.calls)
	assert.Equal(t, resilience.LevelEmergency, hub.Health()[ServiceSource].Level)

	_, err := hub.FetchLicense(context.Background(), "https://github.com/acme/widgets")
	require.Error(t, err)
	assert.Equal(t, 2, source.calls, "provider is not called while in emergency")
}

func TestHubMissingProvider(t *testing.T) {
	hub := NewHub(&scriptedProvider{}, nil)
	_, err := hub.FetchLicense(context.Background(), "https://github.com/acme/widgets")
	require.Error(t, err)
	assert.Equal(t, apperrors.CategoryConfiguration, apperrors.ToAppError(err).Category)
	assert.NotContains(t, hub.Health(), ServiceSource)
}

func TestHubPoolStatsAndClose(t *testing.T) {
	srv := newRegistryServer(t)
	hf := NewHuggingFaceAdapter(srv.URL, "", nil)
	hub := NewHub(hf, &scriptedProvider{})

	stats := hub.PoolStats()
	assert.Contains(t, stats, ServiceRegistry)
	assert.NotContains(t, stats, ServiceSource)
	assert.NoError(t, hub.Close())
}
