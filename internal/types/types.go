package types

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// RegistryHost is the model registry whose identifiers can be scored.
const RegistryHost = "huggingface.co"

var (
	ErrEmptyIdentifier        = errors.New("empty artifact identifier")
	ErrUnresolvableIdentifier = errors.New("cannot resolve a registry model identifier")
)

var modelIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*(/[A-Za-z0-9][A-Za-z0-9._-]*)?$`)

// ArtifactRef identifies the model being scored plus its optional companion links.
type ArtifactRef struct {
	ModelID    string `json:"model_id"`
	ModelURL   string `json:"model_url"`
	CodeURL    string `json:"code_url,omitempty"`
	DatasetURL string `json:"dataset_url,omitempty"`
}

// DisplayName is the last segment of the model identifier.
func (r ArtifactRef) DisplayName() string {
	if i := strings.LastIndex(r.ModelID, "/"); i >= 0 {
		return r.ModelID[i+1:]
	}
	return r.ModelID
}

// HasCode reports whether a source-control link was supplied.
func (r ArtifactRef) HasCode() bool { return strings.TrimSpace(r.CodeURL) != "" }

// HasDataset reports whether a dataset link was supplied.
func (r ArtifactRef) HasDataset() bool { return strings.TrimSpace(r.DatasetURL) != "" }

// ParseArtifactRef resolves the registry model id from a URL or a bare "org/name" id.
func ParseArtifactRef(modelURL, codeURL, datasetURL string) (ArtifactRef, error) {
	id, err := ParseModelID(modelURL)
	if err != nil {
		return ArtifactRef{}, err
	}
	return ArtifactRef{
		ModelID:    id,
		ModelURL:   strings.TrimSpace(modelURL),
		CodeURL:    strings.TrimSpace(codeURL),
		DatasetURL: strings.TrimSpace(datasetURL),
	}, nil
}

// ParseModelID extracts "org/name" (or "name") from a registry URL or identifier.
func ParseModelID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmptyIdentifier
	}

	if !strings.Contains(raw, "://") && !strings.HasPrefix(raw, RegistryHost) {
		id := strings.Trim(raw, "/")
		if !modelIDPattern.MatchString(id) {
			return "", ErrUnresolvableIdentifier
		}
		return id, nil
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrUnresolvableIdentifier
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	if host != RegistryHost {
		return "", ErrUnresolvableIdentifier
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "", ErrUnresolvableIdentifier
	}
	switch segments[0] {
	case "datasets", "spaces", "docs", "models":
		return "", ErrUnresolvableIdentifier
	}

	// drop /tree/<rev>, /blob/<rev>/<file>, /resolve/... suffixes
	var kept []string
	for _, s := range segments {
		if s == "tree" || s == "blob" || s == "resolve" || s == "commit" || s == "discussions" {
			break
		}
		kept = append(kept, s)
	}
	if len(kept) > 2 {
		kept = kept[:2]
	}
	id := strings.Join(kept, "/")
	if !modelIDPattern.MatchString(id) {
		return "", ErrUnresolvableIdentifier
	}
	return id, nil
}

// ArtifactMetadata is the registry's raw description of a model.
type ArtifactMetadata struct {
	ID             string   `json:"id"`
	Downloads      int64    `json:"downloads"`
	Likes          int64    `json:"likes"`
	Tags           []string `json:"tags"`
	License        string   `json:"license"`
	Datasets       []string `json:"datasets"`
	BaseModels     []string `json:"base_models"`
	Files          []string `json:"files"`
	ParameterCount int64    `json:"parameter_count"`
	StorageBytes   int64    `json:"storage_bytes"`
	PipelineTag    string   `json:"pipeline_tag,omitempty"`
}

// HasFile reports whether any repository file satisfies match. Names are lowercased first.
func (m *ArtifactMetadata) HasFile(match func(name string) bool) bool {
	if m == nil {
		return false
	}
	for _, f := range m.Files {
		if match(strings.ToLower(f)) {
			return true
		}
	}
	return false
}

// ReviewStats summarizes merged pull requests and contributors of a source repository.
type ReviewStats struct {
	MergedPRs     int   `json:"merged_prs"`
	ReviewedPRs   int   `json:"reviewed_prs"`
	TotalLines    int64 `json:"total_lines"`
	ReviewedLines int64 `json:"reviewed_lines"`
	// Contributors is -1 when the count could not be read.
	Contributors  int   `json:"contributors"`
}

// LineageNode is a declared parent model.
type LineageNode struct {
	ID        string `json:"id"`
	HasParent bool   `json:"has_parent"`
}

// DependencyGraph is the one-level lineage of a model.
type DependencyGraph struct {
	Root    string        `json:"root"`
	Parents []LineageNode `json:"parents"`
}

// RateRequest is the body of a scoring request
type RateRequest struct {
	URL        string `json:"url" form:"url" binding:"required"`
	CodeURL    string `json:"code_url,omitempty" form:"code_url"`
	DatasetURL string `json:"dataset_url,omitempty" form:"dataset_url"`
}
