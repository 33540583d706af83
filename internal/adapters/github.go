package adapters

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/go-github/v83/github"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/errors"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/resilience"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/types"
)

const (
	defaultPRSample    = 30
	maxContributorPage = 5
	prFetchLimit       = 5
)

// GitHubConfig configures the source repository adapter
type GitHubConfig struct {
	Token string
	// BaseURL overrides the REST endpoint, mainly for tests.
	BaseURL string
	// PRSampleSize is how many recently closed pull requests are inspected.
	PRSampleSize int
}

// GitHubAdapter reads license, review and contributor data from GitHub
type GitHubAdapter struct {
	client     *github.Client
	pool       *resilience.ConnectionPool
	sampleSize int
}

// NewGitHubAdapter creates a GitHub client whose traffic goes through pool
func NewGitHubAdapter(cfg GitHubConfig, pool *resilience.ConnectionPool) (*GitHubAdapter, error) {
	if pool == nil {
		cb := resilience.NewCircuitBreaker("github", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  30 * time.Second,
			SuccessThreshold: 3,
		})
		pool = resilience.NewConnectionPool("github", resilience.DefaultPoolConfig(), cb)
	}

	httpClient := pool.Client()
	if cfg.Token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, pool.Client())
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			TokenType:   "token",
			AccessToken: cfg.Token,
		}))
	}

	client := github.NewClient(httpClient)
	client.UserAgent = userAgent
	if cfg.BaseURL != "" {
		base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, apperrors.NewConfigurationError("invalid GitHub base URL", err)
		}
		client.BaseURL = base
	}

	sample := cfg.PRSampleSize
	if sample <= 0 {
		sample = defaultPRSample
	}
	return &GitHubAdapter{client: client, pool: pool, sampleSize: sample}, nil
}

// FetchLicense returns the SPDX identifier GitHub detected for the repository.
// Unrecognised licenses come back as "".
func (g *GitHubAdapter) FetchLicense(ctx context.Context, repoURL string) (string, error) {
	owner, repo, err := parseRepoURL(repoURL)
	if err != nil {
		return "", err
	}

	lic, _, err := g.client.Repositories.License(ctx, owner, repo)
	if err != nil {
		return "", mapGitHubError(err, "license", owner+"/"+repo)
	}

	spdx := lic.GetLicense().GetSPDXID()
	if strings.EqualFold(spdx, "NOASSERTION") {
		return "", nil
	}
	return spdx, nil
}

// FetchReviewStats inspects the most recently merged pull requests and counts
// how many changed lines went through at least one review.
func (g *GitHubAdapter) FetchReviewStats(ctx context.Context, repoURL string) (*types.ReviewStats, error) {
	owner, repo, err := parseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}
	slug := owner + "/" + repo

	prs, _, err := g.client.PullRequests.List(ctx, owner, repo, &github.PullRequestListOptions{
		State:       "closed",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: g.sampleSize},
	})
	if err != nil {
		return nil, mapGitHubError(err, "pull requests", slug)
	}

	var merged []int
	for _, pr := range prs {
		if pr.MergedAt != nil {
			merged = append(merged, pr.GetNumber())
		}
	}

	var reviewed atomic.Int64
	var totalLines, reviewedLines atomic.Int64

	// a pull request that cannot be read is skipped; one whose reviews cannot
	// be read counts as unreviewed
	var fetches errgroup.Group
	fetches.SetLimit(prFetchLimit)
	for _, number := range merged {
		fetches.Go(func() error {
			pr, _, err := g.client.PullRequests.Get(ctx, owner, repo, number)
			if err != nil {
				slog.Debug("Skipping unreadable pull request", "repo", slug, "number", number, "error", err)
				return nil
			}
			lines := int64(pr.GetAdditions() + pr.GetDeletions())
			totalLines.Add(lines)

			reviews, _, err := g.client.PullRequests.ListReviews(ctx, owner, repo, number, &github.ListOptions{PerPage: 10})
			if err != nil {
				slog.Debug("Counting pull request as unreviewed", "repo", slug, "number", number, "error", err)
				return nil
			}
			if len(reviews) > 0 {
				reviewed.Add(1)
				reviewedLines.Add(lines)
			}
			return nil
		})
	}

	// runs outside the PR limit; -1 means the count is unknown
	contributors := -1
	var counting errgroup.Group
	counting.Go(func() error {
		n, err := g.countContributors(ctx, owner, repo)
		if err != nil {
			slog.Debug("Contributor count unavailable", "repo", slug, "error", err)
			return nil
		}
		contributors = n
		return nil
	})

	_ = fetches.Wait()
	_ = counting.Wait()
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewTimeoutError("review stats", err)
	}

	return &types.ReviewStats{
		MergedPRs:     len(merged),
		ReviewedPRs:   int(reviewed.Load()),
		TotalLines:    totalLines.Load(),
		ReviewedLines: reviewedLines.Load(),
		Contributors:  contributors,
	}, nil
}

func (g *GitHubAdapter) countContributors(ctx context.Context, owner, repo string) (int, error) {
	opts := &github.ListContributorsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	count := 0
	for page := 0; page < maxContributorPage; page++ {
		list, resp, err := g.client.Repositories.ListContributors(ctx, owner, repo, opts)
		if err != nil {
			return 0, mapGitHubError(err, "contributors", owner+"/"+repo)
		}
		count += len(list)
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return count, nil
}

// FetchArtifactMetadata is not served by GitHub.
func (g *GitHubAdapter) FetchArtifactMetadata(ctx context.Context, modelID string) (*types.ArtifactMetadata, time.Duration, error) {
	return nil, 0, apperrors.NewValidationError("source host does not serve model metadata", "model", modelID)
}

// FetchReadme is not served by GitHub.
func (g *GitHubAdapter) FetchReadme(ctx context.Context, modelID string) (string, error) {
	return "", apperrors.NewValidationError("source host does not serve model cards", "model", modelID)
}

// FetchCommitAuthors is not served by GitHub; repository contributors come with review stats.
func (g *GitHubAdapter) FetchCommitAuthors(ctx context.Context, modelID string) ([]string, error) {
	return nil, apperrors.NewValidationError("source host does not serve model history", "model", modelID)
}

// FetchDependencyGraph is not served by GitHub.
func (g *GitHubAdapter) FetchDependencyGraph(ctx context.Context, modelID string) (*types.DependencyGraph, error) {
	return nil, apperrors.NewValidationError("source host does not serve lineage", "model", modelID)
}

// Ping reads the caller's rate limit, which costs no quota
func (g *GitHubAdapter) Ping(ctx context.Context) error {
	_, _, err := g.client.RateLimit.Get(ctx)
	if err != nil {
		return mapGitHubError(err, "rate limit", "ping")
	}
	return nil
}

// GetPoolStats returns connection pool statistics
func (g *GitHubAdapter) GetPoolStats() map[string]interface{} {
	return g.pool.GetStats()
}

// Close closes the connection pool
func (g *GitHubAdapter) Close() error {
	return g.pool.Close()
}

// parseRepoURL extracts owner and repository from a GitHub URL
func parseRepoURL(raw string) (string, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", apperrors.NewValidationError("repository URL is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", apperrors.NewValidationError("invalid repository URL", "url", raw)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	if host != "github.com" {
		return "", "", apperrors.NewValidationError("unsupported source host", "host", u.Host)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", apperrors.NewValidationError("repository URL must name owner and repository", "url", raw)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

func mapGitHubError(err error, resource, id string) error {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var rateErr *github.RateLimitError
	if stderrors.As(err, &rateErr) {
		return apperrors.NewRateLimitError(rateErr.Rate.Reset.Format(time.RFC3339))
	}
	var abuseErr *github.AbuseRateLimitError
	if stderrors.As(err, &abuseErr) {
		return apperrors.NewRateLimitError(abuseErr.GetRetryAfter().String())
	}
	var respErr *github.ErrorResponse
	if stderrors.As(err, &respErr) && respErr.Response != nil {
		if respErr.Response.StatusCode >= http.StatusInternalServerError {
			return apperrors.NewExternalAPIError("github", err)
		}
		if appErr := apperrors.FromHTTPStatus("github", respErr.Response.StatusCode, resource, id, respErr.Response.Header.Get("Retry-After"), true); appErr != nil {
			return appErr
		}
	}
	return apperrors.NewNetworkError("github request failed", err)
}
