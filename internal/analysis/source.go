package analysis

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/adapters"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/types"
)

// contributors needed for a full bus factor score
const busFactorTarget = 20.0

// ReviewednessEvaluator is the share of merged code that went through review.
type ReviewednessEvaluator struct {
	provider adapters.Provider
}

func NewReviewednessEvaluator(p adapters.Provider) *ReviewednessEvaluator {
	return &ReviewednessEvaluator{provider: p}
}

func (e *ReviewednessEvaluator) Name() string { return MetricReviewedness }

func (e *ReviewednessEvaluator) Evaluate(ctx context.Context, ref types.ArtifactRef) Result {
	return timed(e.Name(), func() (Score, map[string]float64) {
		if !ref.HasCode() {
			return Unavailable(), nil
		}
		stats, err := e.provider.FetchReviewStats(ctx, ref.CodeURL)
		if err != nil || stats == nil {
			return Unavailable(), nil
		}
		b := map[string]float64{
			"merged_prs":   float64(stats.MergedPRs),
			"reviewed_prs": float64(stats.ReviewedPRs),
		}
		if stats.MergedPRs == 0 || stats.TotalLines <= 0 {
			return Available(0), b
		}
		return Available(Round2(float64(stats.ReviewedLines) / float64(stats.TotalLines))), b
	})
}

// BusFactorEvaluator scores how many people keep a model alive. Commit authors
// of the model repository are counted; when a code repository is linked its
// contributor count is used if larger.
type BusFactorEvaluator struct {
	provider adapters.Provider
}

func NewBusFactorEvaluator(p adapters.Provider) *BusFactorEvaluator {
	return &BusFactorEvaluator{provider: p}
}

func (e *BusFactorEvaluator) Name() string { return MetricBusFactor }

func (e *BusFactorEvaluator) Evaluate(ctx context.Context, ref types.ArtifactRef) Result {
	return timed(e.Name(), func() (Score, map[string]float64) {
		b := make(map[string]float64, 2)
		people := -1

		if authors, err := e.provider.FetchCommitAuthors(ctx, ref.ModelID); err == nil {
			people = len(authors)
			b["commit_authors"] = float64(people)
		}
		if ref.HasCode() {
			stats, err := e.provider.FetchReviewStats(ctx, ref.CodeURL)
			if err == nil && stats != nil && stats.Contributors >= 0 {
				b["contributors"] = float64(stats.Contributors)
				people = max(people, stats.Contributors)
			}
		}

		if people < 0 {
			return Unavailable(), nil
		}
		return Available(Round2(math.Min(1, float64(people)/busFactorTarget))), b
	})
}

// compatibleLicenses are the identifiers accepted for fine-tuning and
// inference, keyed by normalizeLicense.
var compatibleLicenses = licenseSet(
	"mit", "apache-2.0", "apache-1.1", "bsd", "bsd-2-clause", "bsd-3-clause", "bsl-1.0",
	"isc", "ncsa", "zlib", "artistic-2.0", "cc-by-3.0", "cc-by-4.0", "cc-by-sa-4.0",
	"lgpl-2.1", "lgpl-3.0", "mpl-2.0", "gpl-2.0", "gpl-3.0",
	"cc0-1.0", "unlicense", "wtfpl",
	"openrail", "bigscience-openrail-m", "bigscience-bloom-rail-1.0",
	"llama2", "llama3", "llama3.1", "llama3.2", "gemma",
)

func licenseSet(ids ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[normalizeLicense(id)] = struct{}{}
	}
	return set
}

// normalizeLicense folds case and drops separators, so "Llama-3.1" and "llama3.1" agree
func normalizeLicense(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', '.', ' ':
			return -1
		}
		return unicode.ToLower(r)
	}, strings.TrimSpace(id))
}

// IsCompatibleLicense reports whether a license identifier is in the compatible set.
func IsCompatibleLicense(id string) bool {
	_, ok := compatibleLicenses[normalizeLicense(id)]
	return ok
}

// LicenseEvaluator passes when the registry license is compatible and, if a code
// repository is linked, both sides declare the same license.
type LicenseEvaluator struct {
	provider adapters.Provider
}

func NewLicenseEvaluator(p adapters.Provider) *LicenseEvaluator { return &LicenseEvaluator{provider: p} }

func (e *LicenseEvaluator) Name() string { return MetricLicense }

func (e *LicenseEvaluator) Evaluate(ctx context.Context, ref types.ArtifactRef) Result {
	return timed(e.Name(), func() (Score, map[string]float64) {
		meta, _, err := e.provider.FetchArtifactMetadata(ctx, ref.ModelID)
		if err != nil || meta == nil || meta.License == "" {
			return Available(0), nil
		}
		if !IsCompatibleLicense(meta.License) {
			return Available(0), map[string]float64{"compatible": 0}
		}
		if !ref.HasCode() {
			return Available(1), map[string]float64{"compatible": 1}
		}

		codeLicense, err := e.provider.FetchLicense(ctx, ref.CodeURL)
		if err != nil || !strings.EqualFold(strings.TrimSpace(codeLicense), strings.TrimSpace(meta.License)) {
			return Available(0), map[string]float64{"compatible": 1, "code_match": 0}
		}
		return Available(1), map[string]float64{"compatible": 1, "code_match": 1}
	})
}
