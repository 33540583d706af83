package analysis

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/types"
)

var errProvider = errors.New("provider unavailable")

// fakeProvider serves canned responses; zero values mean "failed".
type fakeProvider struct {
	meta    *types.ArtifactMetadata
	readme  string
	license string
	stats   *types.ReviewStats
	graph   *types.DependencyGraph
	authors []string
	calls   atomic.Int64
}

func (f *fakeProvider) FetchArtifactMetadata(ctx context.Context, id string) (*types.ArtifactMetadata, time.Duration, error) {
	f.calls.Add(1)
	if f.meta == nil {
		return nil, time.Millisecond, errProvider
	}
	return f.meta, time.Millisecond, nil
}

func (f *fakeProvider) FetchReadme(ctx context.Context, id string) (string, error) {
	f.calls.Add(1)
	if f.readme == "" {
		return "", errProvider
	}
	return f.readme, nil
}

func (f *fakeProvider) FetchLicense(ctx context.Context, url string) (string, error) {
	f.calls.Add(1)
	if f.license == "" {
		return "", errProvider
	}
	return f.license, nil
}

func (f *fakeProvider) FetchReviewStats(ctx context.Context, url string) (*types.ReviewStats, error) {
	f.calls.Add(1)
	if f.stats == nil {
		return nil, errProvider
	}
	return f.stats, nil
}

func (f *fakeProvider) FetchDependencyGraph(ctx context.Context, id string) (*types.DependencyGraph, error) {
	f.calls.Add(1)
	if f.graph == nil {
		return nil, errProvider
	}
	return f.graph, nil
}

func (f *fakeProvider) FetchCommitAuthors(ctx context.Context, id string) ([]string, error) {
	f.calls.Add(1)
	if f.authors == nil {
		return nil, errProvider
	}
	return f.authors, nil
}

var (
	modelOnly = types.ArtifactRef{ModelID: "org/model"}
	withCode  = types.ArtifactRef{ModelID: "org/model", CodeURL: "https://github.com/org/repo"}
)

func richReadme() string {
	body := "# Model\n\nThis model was fine-tuned on a public dataset.\n\n" +
		"```python\nfrom transformers import pipeline\npipe = pipeline(\"text-classification\", model=\"org/model\")\n```\n\n"
	return body + strings.Repeat("Details about training, evaluation and limitations. ", 50)
}

func TestRampUpEvaluator(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
		min, max float64
	}{
		{
			name:     "no metadata",
			provider: &fakeProvider{readme: richReadme()},
			min:      0, max: 0,
		},
		{
			name:     "popular with runnable docs",
			provider: &fakeProvider{meta: &types.ArtifactMetadata{Downloads: 100000, Likes: 500}, readme: richReadme()},
			min:      0.99, max: 1,
		},
		{
			name:     "unknown model with short prose",
			provider: &fakeProvider{meta: &types.ArtifactMetadata{}, readme: "Some text"},
			min:      0.15, max: 0.15,
		},
		{
			name:     "prose example only",
			provider: &fakeProvider{meta: &types.ArtifactMetadata{}, readme: "See the example below"},
			min:      0.25, max: 0.25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewRampUpEvaluator(tt.provider).Evaluate(context.Background(), modelOnly)
			v, ok := res.Score.Value()
			require.True(t, ok)
			assert.GreaterOrEqual(t, v, tt.min)
			assert.LessOrEqual(t, v, tt.max)
			assert.GreaterOrEqual(t, res.Latency, time.Duration(0))
			assert.Equal(t, MetricRampUpTime, res.Metric)
		})
	}
}

func TestExampleScoreOrdering(t *testing.T) {
	code := exampleScore("```python\nimport torch\n```")
	prose := exampleScore("for example, call the model")
	plain := exampleScore("a model")
	assert.Greater(t, code, prose)
	assert.Greater(t, prose, plain)
}

func TestPerformanceClaimsEvaluator(t *testing.T) {
	tests := []struct {
		name     string
		meta     *types.ArtifactMetadata
		expected float64
	}{
		{"metadata unavailable", nil, 0},
		{"no adoption still floored", &types.ArtifactMetadata{}, 0.7},
		{"very popular capped", &types.ArtifactMetadata{Downloads: 100000, Likes: 500}, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewPerformanceClaimsEvaluator(&fakeProvider{meta: tt.meta}).Evaluate(context.Background(), modelOnly)
			v, ok := res.Score.Value()
			require.True(t, ok)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestReviewednessEvaluator(t *testing.T) {
	reviewed := &types.ReviewStats{MergedPRs: 3, ReviewedPRs: 3, TotalLines: 120, ReviewedLines: 120}
	unreviewed := &types.ReviewStats{MergedPRs: 4, ReviewedPRs: 0, TotalLines: 300, ReviewedLines: 0}
	partial := &types.ReviewStats{MergedPRs: 2, ReviewedPRs: 1, TotalLines: 300, ReviewedLines: 100}

	tests := []struct {
		name      string
		ref       types.ArtifactRef
		stats     *types.ReviewStats
		available bool
		expected  float64
	}{
		{"reviewed repository", withCode, reviewed, true, 1.0},
		{"unreviewed repository", withCode, unreviewed, true, 0.0},
		{"partially reviewed", withCode, partial, true, 0.33},
		{"no merged prs", withCode, &types.ReviewStats{}, true, 0.0},
		{"no url", modelOnly, reviewed, false, 0},
		{"unresolvable url", withCode, nil, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewReviewednessEvaluator(&fakeProvider{stats: tt.stats}).Evaluate(context.Background(), tt.ref)
			v, ok := res.Score.Value()
			assert.Equal(t, tt.available, ok)
			if ok {
				assert.Equal(t, tt.expected, v)
			} else {
				assert.Equal(t, -1.0, res.Score.OrSentinel())
			}
			assert.GreaterOrEqual(t, res.Latency, time.Duration(0))
		})
	}
}

func TestBusFactorEvaluator(t *testing.T) {
	tests := []struct {
		name      string
		provider  *fakeProvider
		ref       types.ArtifactRef
		available bool
		want      float64
	}{
		{"model history only", &fakeProvider{authors: []string{"a", "b", "c", "d"}}, modelOnly, true, 0.2},
		{"empty model history", &fakeProvider{authors: []string{}}, modelOnly, true, 0},
		{"history unavailable without code", &fakeProvider{}, modelOnly, false, 0},
		{"repository contributors", &fakeProvider{stats: &types.ReviewStats{Contributors: 5}}, withCode, true, 0.25},
		{"larger count wins", &fakeProvider{authors: []string{"a", "b"}, stats: &types.ReviewStats{Contributors: 45}}, withCode, true, 1},
		{"unknown contributors fall back to history", &fakeProvider{authors: []string{"a", "b"}, stats: &types.ReviewStats{Contributors: -1}}, withCode, true, 0.1},
		{"nothing known", &fakeProvider{stats: &types.ReviewStats{Contributors: -1}}, withCode, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewBusFactorEvaluator(tt.provider).Evaluate(context.Background(), tt.ref)
			v, ok := res.Score.Value()
			require.Equal(t, tt.available, ok)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestLicenseEvaluator(t *testing.T) {
	tests := []struct {
		name         string
		ref          types.ArtifactRef
		registry     string
		code         string
		expectedPass bool
	}{
		{"matching case-insensitive", withCode, "Apache-2.0", "apache-2.0", true},
		{"mismatched", withCode, "MIT", "Apache-2.0", false},
		{"code license missing", withCode, "mit", "", false},
		{"registry license missing", withCode, "", "mit", false},
		{"incompatible license", withCode, "proprietary", "proprietary", false},
		{"no code link compatible", modelOnly, "mit", "", true},
		{"llama3 model only", modelOnly, "llama3", "", true},
		{"gemma model only", modelOnly, "gemma", "", true},
		{"openrail matching code", withCode, "openrail", "OpenRAIL", true},
		{"zlib model only", modelOnly, "zlib", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{license: tt.code}
			if tt.registry != "" {
				p.meta = &types.ArtifactMetadata{License: tt.registry}
			}
			res := NewLicenseEvaluator(p).Evaluate(context.Background(), tt.ref)
			v, ok := res.Score.Value()
			require.True(t, ok)
			if tt.expectedPass {
				assert.Equal(t, 1.0, v)
			} else {
				assert.Equal(t, 0.0, v)
			}
		})
	}
}

func TestIsCompatibleLicense(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{" LGPL-2.1 ", true},
		{"llama2", true},
		{"llama3", true},
		{"Llama3.1", true},
		{"llama3.2", true},
		{"gemma", true},
		{"openrail", true},
		{"bigscience-openrail-m", true},
		{"bigscience-bloom-rail-1.0", true},
		{"apache-1.1", true},
		{"zlib", true},
		{"NCSA", true},
		{"other", false},
		{"cc-by-nc-4.0", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsCompatibleLicense(tt.id), tt.id)
	}
}

func TestDatasetQualityEvaluator(t *testing.T) {
	rich := "This dataset has 10k samples stored as json. Usage: load_dataset. " +
		"We fix the seed, split train/test, preprocess and ensure reproducibility. " +
		"Data was cleaned, filtered, deduplicated, curated and annotated. " +
		"License: apache-2.0. Known bias, safety, ethical limitations and privacy notes."
	terse := "Weights in json with 5k samples, split by seed."
	withDataset := types.ArtifactRef{ModelID: "org/model", DatasetURL: "https://huggingface.co/datasets/org/corpus"}

	tests := []struct {
		name     string
		ref      types.ArtifactRef
		readme   string
		expected float64
	}{
		{"no readme", modelOnly, "", 0},
		{"no data mention", modelOnly, "A model card about nothing", 0.1},
		{"fully documented", modelOnly, rich, 1.0},
		{"fine-tuned corpus mention", modelOnly, "Fine-tuned on a public corpus of 10k samples stored as json. Benchmark results below.", 0.15},
		{"terse card without dataset link", modelOnly, terse, 0.1},
		{"terse card with dataset link", withDataset, terse, 0.27},
		{"dataset link floors the score", withDataset, "A model card about nothing", 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewDatasetQualityEvaluator(&fakeProvider{readme: tt.readme}).Evaluate(context.Background(), tt.ref)
			v, ok := res.Score.Value()
			require.True(t, ok)
			assert.InDelta(t, tt.expected, v, 1e-9)
		})
	}
}

func TestCodeQualityEvaluator(t *testing.T) {
	tests := []struct {
		name     string
		meta     *types.ArtifactMetadata
		expected float64
	}{
		{"no metadata", nil, 0},
		{"readme only", &types.ArtifactMetadata{Files: []string{"README.md"}}, 0.2},
		{"complete", &types.ArtifactMetadata{Files: []string{"config.json", "README.md", "LICENSE", "train.py"}}, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewCodeQualityEvaluator(&fakeProvider{meta: tt.meta}).Evaluate(context.Background(), modelOnly)
			v, _ := res.Score.Value()
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestDatasetAndCodeEvaluator(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
		ref      types.ArtifactRef
		expected float64
	}{
		{"no metadata", &fakeProvider{}, withCode, 0},
		{"declared dataset and code link", &fakeProvider{meta: &types.ArtifactMetadata{Datasets: []string{"squad"}}}, withCode, 1.0},
		{"dataset tag only", &fakeProvider{meta: &types.ArtifactMetadata{Tags: []string{"dataset:imdb"}}}, modelOnly, 0.5},
		{"code linked from readme", &fakeProvider{meta: &types.ArtifactMetadata{}, readme: "Code at https://github.com/org/repo"}, modelOnly, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewDatasetAndCodeEvaluator(tt.provider).Evaluate(context.Background(), tt.ref)
			v, _ := res.Score.Value()
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestReproducibilityEvaluator(t *testing.T) {
	tests := []struct {
		name     string
		readme   string
		expected float64
	}{
		{"no readme", "", 0},
		{"no code", "Just prose", 0},
		{"install only", "```bash\npip install transformers\n```", 0.5},
		{"loads model", richReadme(), 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewReproducibilityEvaluator(&fakeProvider{readme: tt.readme}).Evaluate(context.Background(), modelOnly)
			v, _ := res.Score.Value()
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestSizeEvaluator(t *testing.T) {
	t.Run("small model", func(t *testing.T) {
		p := &fakeProvider{meta: &types.ArtifactMetadata{ParameterCount: 125_000_000}}
		res := NewSizeEvaluator(p).Evaluate(context.Background(), modelOnly)
		v, ok := res.Score.Value()
		require.True(t, ok)
		assert.Equal(t, 0.88, v)
		assert.Equal(t, 0.77, res.Breakdown[DeviceRaspberryPi])
		assert.Equal(t, 0.88, res.Breakdown[DeviceJetsonNano])
		assert.Equal(t, 0.97, res.Breakdown[DeviceDesktopPC])
		assert.Equal(t, 1.0, res.Breakdown[DeviceAWSServer])
	})

	t.Run("huge model only fits servers", func(t *testing.T) {
		p := &fakeProvider{meta: &types.ArtifactMetadata{StorageBytes: 32 * gib}}
		res := NewSizeEvaluator(p).Evaluate(context.Background(), modelOnly)
		v, _ := res.Score.Value()
		assert.Equal(t, 0.2, v)
		assert.Equal(t, 0.0, res.Breakdown[DeviceDesktopPC])
	})

	t.Run("no size information assumes one gigabyte", func(t *testing.T) {
		p := &fakeProvider{meta: &types.ArtifactMetadata{}}
		res := NewSizeEvaluator(p).Evaluate(context.Background(), modelOnly)
		v, ok := res.Score.Value()
		require.True(t, ok)
		assert.Equal(t, 0.75, v)
		assert.Equal(t, 0.5, res.Breakdown[DeviceRaspberryPi])
		assert.Equal(t, 0.75, res.Breakdown[DeviceJetsonNano])
		assert.Equal(t, 0.94, res.Breakdown[DeviceDesktopPC])
		assert.Equal(t, 1.0, res.Breakdown["estimated"])
	})

	t.Run("metadata failure", func(t *testing.T) {
		res := NewSizeEvaluator(&fakeProvider{}).Evaluate(context.Background(), modelOnly)
		assert.False(t, res.Score.IsAvailable())
	})
}

func TestTreeEvaluator(t *testing.T) {
	tests := []struct {
		name     string
		graph    *types.DependencyGraph
		expected float64
	}{
		{"fetch failure", nil, 0},
		{"no lineage", &types.DependencyGraph{Root: "org/model"}, 0},
		{"reputable base", &types.DependencyGraph{Parents: []types.LineageNode{{ID: "google-bert/bert-base-uncased"}}}, 0.8},
		{"deep custom lineage", &types.DependencyGraph{Parents: []types.LineageNode{{ID: "acme/custom", HasParent: true}}}, 0.5},
		{"reputable and deep", &types.DependencyGraph{Parents: []types.LineageNode{{ID: "openai-community/gpt2", HasParent: true}}}, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewTreeEvaluator(&fakeProvider{graph: tt.graph}).Evaluate(context.Background(), modelOnly)
			v, ok := res.Score.Value()
			require.True(t, ok)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestIsReputableBase(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"google-bert/bert-base-uncased", true},
		{"openai-community/gpt2", true},
		{"meta-llama/Meta-Llama-3-8B", true},
		{"google/flan-t5-base", true},
		{"EleutherAI/gpt-neox-20b", true},
		{"EleutherAI/gpt-j-6b", true},
		{"TinyLlama/TinyLlama-1.1B-Chat-v1.0", true},
		{"distilbert/distilbert-base-uncased", true},
		{"facebook/opt-350m", true},
		{"acme/adaptive-tagger", false},
		{"acme/custom", false},
		{"acme/gpt-medium", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isReputableBase(tt.id), tt.id)
	}
}

func TestReadmeLengthTier(t *testing.T) {
	tests := []struct {
		name   string
		readme string
		want   float64
	}{
		{"empty", "   ", 0},
		{"short", "# Model", 0.5},
		{"medium ascii", strings.Repeat("a", 600), 0.75},
		{"long ascii", strings.Repeat("a", 2001), 1.0},
		{"short multibyte", strings.Repeat("模", 400), 0.5},
		{"medium multibyte", strings.Repeat("模", 1500), 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, readmeLengthTier(tt.readme))
		})
	}
}
