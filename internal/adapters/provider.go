package adapters

import (
	"context"
	"time"

	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/types"
)

// Provider is the metadata capability set evaluators consume. Any call may fail;
// callers treat a nil or empty result the same as an error.
type Provider interface {
	// FetchArtifactMetadata returns registry metadata and the time the fetch took.
	FetchArtifactMetadata(ctx context.Context, modelID string) (*types.ArtifactMetadata, time.Duration, error)
	FetchReadme(ctx context.Context, modelID string) (string, error)
	// FetchLicense returns the SPDX identifier of a source repository.
	FetchLicense(ctx context.Context, repoURL string) (string, error)
	FetchReviewStats(ctx context.Context, repoURL string) (*types.ReviewStats, error)
	FetchDependencyGraph(ctx context.Context, modelID string) (*types.DependencyGraph, error)
	// FetchCommitAuthors returns the distinct commit authors of a model repository.
	FetchCommitAuthors(ctx context.Context, modelID string) ([]string, error)
}
