package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/errors"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/resilience"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/types"
)

const (
	DefaultHuggingFaceURL = "https://huggingface.co"
	userAgent             = "model-trust-score/1.0"

	maxReadmeBytes = 1 << 20
	maxCommitPages = 5
)

// stringList accepts either a JSON string or an array of strings
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one != "" {
			*s = stringList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		// cardData fields are free-form; anything else is ignored
		return nil
	}
	*s = many
	return nil
}

type hfModel struct {
	ID          string   `json:"id"`
	ModelID     string   `json:"modelId"`
	Downloads   int64    `json:"downloads"`
	Likes       int64    `json:"likes"`
	Tags        []string `json:"tags"`
	PipelineTag string   `json:"pipeline_tag"`
	UsedStorage int64    `json:"usedStorage"`
	CardData    struct {
		License   stringList `json:"license"`
		Datasets  stringList `json:"datasets"`
		BaseModel stringList `json:"base_model"`
	} `json:"cardData"`
	Siblings []struct {
		RFilename string `json:"rfilename"`
	} `json:"siblings"`
	Safetensors *struct {
		Total int64 `json:"total"`
	} `json:"safetensors"`
}

func (m *hfModel) toMetadata(requested string) *types.ArtifactMetadata {
	meta := &types.ArtifactMetadata{
		ID:          firstNonEmpty(m.ID, m.ModelID, requested),
		Downloads:   m.Downloads,
		Likes:       m.Likes,
		Tags:        m.Tags,
		PipelineTag: m.PipelineTag,
		Datasets:    []string(m.CardData.Datasets),
		BaseModels:  []string(m.CardData.BaseModel),
	}
	if len(m.CardData.License) > 0 {
		meta.License = m.CardData.License[0]
	}

	for _, tag := range m.Tags {
		key, value, ok := strings.Cut(tag, ":")
		if !ok || value == "" {
			continue
		}
		switch key {
		case "license":
			if meta.License == "" {
				meta.License = value
			}
		case "dataset":
			meta.Datasets = appendUnique(meta.Datasets, value)
		case "base_model":
			// base_model:finetune:org/name carries the relation before the id
			if _, id, nested := strings.Cut(value, ":"); nested {
				value = id
			}
			meta.BaseModels = appendUnique(meta.BaseModels, value)
		}
	}

	for _, s := range m.Siblings {
		meta.Files = append(meta.Files, s.RFilename)
	}
	if m.Safetensors != nil {
		meta.ParameterCount = m.Safetensors.Total
	}
	meta.StorageBytes = m.UsedStorage
	return meta
}

// HuggingFaceAdapter reads model metadata from the Hugging Face Hub HTTP API
type HuggingFaceAdapter struct {
	baseURL string
	token   string
	pool    *resilience.ConnectionPool
}

// NewHuggingFaceAdapter creates an adapter against baseURL. An empty baseURL
// selects the public hub.
func NewHuggingFaceAdapter(baseURL, token string, pool *resilience.ConnectionPool) *HuggingFaceAdapter {
	if baseURL == "" {
		baseURL = DefaultHuggingFaceURL
	}
	if pool == nil {
		cb := resilience.NewCircuitBreaker("huggingface", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  30 * time.Second,
			SuccessThreshold: 2,
		})
		pool = resilience.NewConnectionPool("huggingface", resilience.DefaultPoolConfig(), cb)
	}
	return &HuggingFaceAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		pool:    pool,
	}
}

// FetchArtifactMetadata fetches /api/models/{id}
func (h *HuggingFaceAdapter) FetchArtifactMetadata(ctx context.Context, modelID string) (*types.ArtifactMetadata, time.Duration, error) {
	start := time.Now()
	model, err := h.fetchModel(ctx, modelID)
	if err != nil {
		return nil, time.Since(start), err
	}
	return model.toMetadata(modelID), time.Since(start), nil
}

// FetchReadme returns the model card. A repository without one yields "".
func (h *HuggingFaceAdapter) FetchReadme(ctx context.Context, modelID string) (string, error) {
	if modelID == "" {
		return "", types.ErrEmptyIdentifier
	}
	resp, err := h.get(ctx, h.baseURL+"/"+escapePath(modelID)+"/resolve/main/README.md", "text/plain")
	if err != nil {
		return "", err
	}
	defer apperrors.SafeClose(resp.Body, "huggingface readme body")

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if err := statusError(resp, "model card", modelID); err != nil {
		return "", err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReadmeBytes))
	if err != nil {
		return "", apperrors.NewNetworkError("failed to read model card", err)
	}
	return string(body), nil
}

// FetchLicense is not served by the registry; source licenses come from GitHub.
func (h *HuggingFaceAdapter) FetchLicense(ctx context.Context, repoURL string) (string, error) {
	return "", apperrors.NewValidationError("registry does not host source repositories", "url", repoURL)
}

// FetchReviewStats is not served by the registry.
func (h *HuggingFaceAdapter) FetchReviewStats(ctx context.Context, repoURL string) (*types.ReviewStats, error) {
	return nil, apperrors.NewValidationError("registry does not host source repositories", "url", repoURL)
}

// FetchDependencyGraph resolves the declared base models and whether each of
// them declares a base model of its own.
func (h *HuggingFaceAdapter) FetchDependencyGraph(ctx context.Context, modelID string) (*types.DependencyGraph, error) {
	model, err := h.fetchModel(ctx, modelID)
	if err != nil {
		return nil, err
	}
	meta := model.toMetadata(modelID)

	graph := &types.DependencyGraph{Root: meta.ID, Parents: make([]types.LineageNode, len(meta.BaseModels))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, parentID := range meta.BaseModels {
		graph.Parents[i].ID = parentID
		g.Go(func() error {
			parent, err := h.fetchModel(gctx, parentID)
			if err != nil {
				// an unreachable parent still counts as lineage
				return nil
			}
			graph.Parents[i].HasParent = len(parent.toMetadata(parentID).BaseModels) > 0
			return nil
		})
	}
	_ = g.Wait()

	return graph, nil
}

type hfCommit struct {
	Authors []struct {
		User string `json:"user"`
	} `json:"authors"`
}

// FetchCommitAuthors lists the distinct authors on the main branch of a model
// repository. At most maxCommitPages pages of history are read.
func (h *HuggingFaceAdapter) FetchCommitAuthors(ctx context.Context, modelID string) ([]string, error) {
	if modelID == "" {
		return nil, types.ErrEmptyIdentifier
	}

	seen := make(map[string]struct{})
	var authors []string
	target := h.baseURL + "/api/models/" + escapePath(modelID) + "/commits/main"
	for page := 0; page < maxCommitPages && target != ""; page++ {
		commits, next, err := h.fetchCommitPage(ctx, target, modelID)
		if err != nil {
			if page > 0 {
				break
			}
			return nil, err
		}
		for _, c := range commits {
			for _, a := range c.Authors {
				name := strings.ToLower(strings.TrimSpace(a.User))
				if name == "" {
					continue
				}
				if _, dup := seen[name]; !dup {
					seen[name] = struct{}{}
					authors = append(authors, name)
				}
			}
		}
		target = next
	}
	return authors, nil
}

func (h *HuggingFaceAdapter) fetchCommitPage(ctx context.Context, target, modelID string) ([]hfCommit, string, error) {
	resp, err := h.get(ctx, target, "application/json")
	if err != nil {
		return nil, "", err
	}
	defer apperrors.SafeClose(resp.Body, "huggingface commits body")

	if err := statusError(resp, "commits", modelID); err != nil {
		return nil, "", err
	}
	var commits []hfCommit
	if err := json.NewDecoder(resp.Body).Decode(&commits); err != nil {
		return nil, "", apperrors.NewExternalAPIError("huggingface", fmt.Errorf("failed to decode commits of %s: %w", modelID, err))
	}
	return commits, nextLink(resp.Header.Get("Link")), nil
}

// nextLink returns the rel="next" target of an RFC 8288 Link header
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		target, params, ok := strings.Cut(strings.TrimSpace(part), ";")
		if !ok || !strings.Contains(strings.ReplaceAll(params, " ", ""), `rel="next"`) {
			continue
		}
		return strings.Trim(strings.TrimSpace(target), "<>")
	}
	return ""
}

// Ping checks that the registry answers at all
func (h *HuggingFaceAdapter) Ping(ctx context.Context) error {
	resp, err := h.get(ctx, h.baseURL+"/api/models?limit=1", "application/json")
	if err != nil {
		return err
	}
	defer apperrors.SafeClose(resp.Body, "huggingface ping body")
	return statusError(resp, "registry", "ping")
}

// GetPoolStats returns connection pool statistics
func (h *HuggingFaceAdapter) GetPoolStats() map[string]interface{} {
	return h.pool.GetStats()
}

// Close closes the connection pool
func (h *HuggingFaceAdapter) Close() error {
	return h.pool.Close()
}

func (h *HuggingFaceAdapter) fetchModel(ctx context.Context, modelID string) (*hfModel, error) {
	if modelID == "" {
		return nil, types.ErrEmptyIdentifier
	}
	resp, err := h.get(ctx, h.baseURL+"/api/models/"+escapePath(modelID), "application/json")
	if err != nil {
		return nil, err
	}
	defer apperrors.SafeClose(resp.Body, "huggingface model body")

	if err := statusError(resp, "model", modelID); err != nil {
		return nil, err
	}

	var model hfModel
	if err := json.NewDecoder(resp.Body).Decode(&model); err != nil {
		return nil, apperrors.NewExternalAPIError("huggingface", fmt.Errorf("failed to decode model %s: %w", modelID, err))
	}
	return &model, nil
}

func (h *HuggingFaceAdapter) get(ctx context.Context, target, accept string) (*http.Response, error) {
	headers := map[string]string{
		"Accept":     accept,
		"User-Agent": userAgent,
	}
	if h.token != "" {
		headers["Authorization"] = "Bearer " + h.token
	}

	resp, err := h.pool.DoRequest(ctx, http.MethodGet, target, headers)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.NewNetworkError("huggingface request failed", err)
	}
	return resp, nil
}

// statusError maps registry status codes onto application errors. Unexpected
// client errors carry a prefix of the response body.
func statusError(resp *http.Response, resource, id string) error {
	appErr := apperrors.FromHTTPStatus("huggingface", resp.StatusCode, resource, id, resp.Header.Get("Retry-After"), false)
	if appErr == nil {
		return nil
	}
	if appErr.Category == apperrors.CategoryExternalAPI && resp.StatusCode < http.StatusInternalServerError {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperrors.NewExternalAPIError("huggingface", fmt.Errorf("status %d for %s %s: %s", resp.StatusCode, resource, id, strings.TrimSpace(string(body))))
	}
	return appErr
}

func escapePath(modelID string) string {
	parts := strings.Split(modelID, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
