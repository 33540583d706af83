package analysis

import (
	"context"
	"math"
	"strings"

	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/adapters"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/types"
)

// DatasetQualityEvaluator grades how well the model card documents its training data.
type DatasetQualityEvaluator struct {
	provider adapters.Provider
}

func NewDatasetQualityEvaluator(p adapters.Provider) *DatasetQualityEvaluator {
	return &DatasetQualityEvaluator{provider: p}
}

func (e *DatasetQualityEvaluator) Name() string { return MetricDatasetQuality }

func (e *DatasetQualityEvaluator) Evaluate(ctx context.Context, ref types.ArtifactRef) Result {
	return timed(e.Name(), func() (Score, map[string]float64) {
		readme, err := e.provider.FetchReadme(ctx, ref.ModelID)
		if err != nil || strings.TrimSpace(readme) == "" {
			return Available(0), nil
		}
		lower := strings.ToLower(readme)
		if !ref.HasDataset() && !containsAny(lower, dataMentions...) {
			return Available(datasetQualityFloor), nil
		}

		b := datasetSignals(lower)
		total := 0.3*b["documentation"] + 0.3*b["reproducibility"] + 0.2*b["curation"] +
			0.2*b["license"] + 0.15*b["safety"]
		return Available(Round2(math.Max(datasetQualityFloor, math.Min(1, total)))), b
	})
}

func datasetSignals(lower string) map[string]float64 {
	doc := 0.0
	if strings.Contains(lower, "dataset") {
		doc += 0.25
	}
	if containsAny(lower, "size", "samples", "rows", "tokens", "examples") {
		doc += 0.25
	}
	if containsAny(lower, "format", "json", "csv", "parquet", "jsonl") {
		doc += 0.25
	}
	if containsAny(lower, "usage", "how to use", "load_dataset") {
		doc += 0.25
	}

	lic := 0.0
	if strings.Contains(lower, "license") {
		lic = 0.5
		if containsAny(lower, "apache", "mit", "cc-by", "cc0", "bsd", "gpl") {
			lic = 1
		}
	}

	return map[string]float64{
		"documentation":   doc,
		"reproducibility": math.Min(1, 0.2*float64(countContaining(lower, "seed", "split", "train", "preprocess", "reproduc"))),
		"curation":        math.Min(1, 0.2*float64(countContaining(lower, "clean", "filter", "dedup", "curat", "annotat"))),
		"license":         lic,
		"safety":          math.Min(1, 0.25*float64(countContaining(lower, "bias", "safety", "ethic", "limitation", "privacy"))),
	}
}

// CodeQualityEvaluator looks at which supporting files the model repository ships.
type CodeQualityEvaluator struct {
	provider adapters.Provider
}

func NewCodeQualityEvaluator(p adapters.Provider) *CodeQualityEvaluator {
	return &CodeQualityEvaluator{provider: p}
}

func (e *CodeQualityEvaluator) Name() string { return MetricCodeQuality }

func (e *CodeQualityEvaluator) Evaluate(ctx context.Context, ref types.ArtifactRef) Result {
	return timed(e.Name(), func() (Score, map[string]float64) {
		meta, _, err := e.provider.FetchArtifactMetadata(ctx, ref.ModelID)
		if err != nil || meta == nil {
			return Available(0), nil
		}
		b := map[string]float64{}
		if meta.HasFile(func(n string) bool { return strings.HasSuffix(n, ".json") }) {
			b["config"] = 0.4
		}
		if meta.HasFile(func(n string) bool { return strings.HasPrefix(n, "readme") }) {
			b["readme"] = 0.2
		}
		if meta.HasFile(func(n string) bool { return strings.HasPrefix(n, "license") }) {
			b["license_file"] = 0.2
		}
		if meta.HasFile(func(n string) bool { return strings.HasSuffix(n, ".py") || strings.HasSuffix(n, ".ipynb") }) {
			b["examples"] = 0.2
		}
		total := b["config"] + b["readme"] + b["license_file"] + b["examples"]
		return Available(Round2(total)), b
	})
}

// DatasetAndCodeEvaluator checks that training data and code are both discoverable.
type DatasetAndCodeEvaluator struct {
	provider adapters.Provider
}

func NewDatasetAndCodeEvaluator(p adapters.Provider) *DatasetAndCodeEvaluator {
	return &DatasetAndCodeEvaluator{provider: p}
}

func (e *DatasetAndCodeEvaluator) Name() string { return MetricDatasetAndCode }

func (e *DatasetAndCodeEvaluator) Evaluate(ctx context.Context, ref types.ArtifactRef) Result {
	return timed(e.Name(), func() (Score, map[string]float64) {
		meta, _, err := e.provider.FetchArtifactMetadata(ctx, ref.ModelID)
		if err != nil || meta == nil {
			return Available(0), nil
		}

		dataset := ref.HasDataset() || len(meta.Datasets) > 0
		for _, tag := range meta.Tags {
			if strings.HasPrefix(tag, "dataset:") {
				dataset = true
			}
		}

		code := ref.HasCode()
		if !code {
			if readme, err := e.provider.FetchReadme(ctx, ref.ModelID); err == nil {
				code = strings.Contains(strings.ToLower(readme), "github.com/")
			}
		}

		b := map[string]float64{"dataset": 0, "code": 0}
		if dataset {
			b["dataset"] = 0.5
		}
		if code {
			b["code"] = 0.5
		}
		return Available(b["dataset"] + b["code"]), b
	})
}

// ReproducibilityEvaluator checks whether the model card shows how to run the model.
type ReproducibilityEvaluator struct {
	provider adapters.Provider
}

func NewReproducibilityEvaluator(p adapters.Provider) *ReproducibilityEvaluator {
	return &ReproducibilityEvaluator{provider: p}
}

func (e *ReproducibilityEvaluator) Name() string { return MetricReproducibility }

func (e *ReproducibilityEvaluator) Evaluate(ctx context.Context, ref types.ArtifactRef) Result {
	return timed(e.Name(), func() (Score, map[string]float64) {
		readme, err := e.provider.FetchReadme(ctx, ref.ModelID)
		if err != nil {
			return Available(0), nil
		}
		blocks := codeBlocks(readme)
		if len(blocks) == 0 {
			return Available(0), nil
		}
		for _, block := range blocks {
			if containsAny(block, "from_pretrained", "pipeline(") {
				return Available(1), map[string]float64{"code_blocks": float64(len(blocks))}
			}
		}
		return Available(0.5), map[string]float64{"code_blocks": float64(len(blocks))}
	})
}

// codeBlocks returns the bodies of closed ``` fences.
func codeBlocks(readme string) []string {
	parts := strings.Split(readme, "```")
	var blocks []string
	for i := 1; i+1 < len(parts); i += 2 {
		if strings.TrimSpace(parts[i]) != "" {
			blocks = append(blocks, parts[i])
		}
	}
	return blocks
}
