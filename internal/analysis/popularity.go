package analysis

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/adapters"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/types"
)

// performance claims are never published below this value once metadata exists
const performanceFloor = 0.7

var codeKeywords = []string{"import ", "from ", "def ", "class ", "model.forward", "pipeline(", "from_pretrained"}

// RampUpEvaluator rewards documentation with runnable examples and community adoption.
type RampUpEvaluator struct {
	provider adapters.Provider
}

func NewRampUpEvaluator(p adapters.Provider) *RampUpEvaluator { return &RampUpEvaluator{provider: p} }

func (e *RampUpEvaluator) Name() string { return MetricRampUpTime }

func (e *RampUpEvaluator) Evaluate(ctx context.Context, ref types.ArtifactRef) Result {
	return timed(e.Name(), func() (Score, map[string]float64) {
		meta, _, err := e.provider.FetchArtifactMetadata(ctx, ref.ModelID)
		if err != nil || meta == nil {
			return Available(0), nil
		}
		readme, err := e.provider.FetchReadme(ctx, ref.ModelID)
		if err != nil {
			readme = ""
		}

		b := map[string]float64{
			"downloads": 0.25 * NormalizeSigmoid(float64(meta.Downloads), 100, 0.01),
			"likes":     0.25 * NormalizeSigmoid(float64(meta.Likes), 5, 0.2),
			"readme":    0.30 * readmeLengthTier(readme),
			"examples":  exampleScore(readme),
		}
		total := b["downloads"] + b["likes"] + b["readme"] + b["examples"]
		return Available(Round2(total)), b
	})
}

func readmeLengthTier(readme string) float64 {
	n := utf8.RuneCountInString(strings.TrimSpace(readme))
	switch {
	case n == 0:
		return 0
	case n > 2000:
		return 1.0
	case n > 500:
		return 0.75
	default:
		return 0.5
	}
}

// exampleScore is 0.2 for a fenced block that looks like code, 0.1 for a bare fence
// or prose examples, else 0.
func exampleScore(readme string) float64 {
	lower := strings.ToLower(readme)
	fenced := strings.Contains(lower, "```")
	if fenced && containsAny(lower, codeKeywords...) {
		return 0.20
	}
	if fenced || strings.Contains(lower, "example") {
		return 0.10
	}
	return 0
}

// PerformanceClaimsEvaluator turns adoption signals into a credibility score.
type PerformanceClaimsEvaluator struct {
	provider adapters.Provider
}

func NewPerformanceClaimsEvaluator(p adapters.Provider) *PerformanceClaimsEvaluator {
	return &PerformanceClaimsEvaluator{provider: p}
}

func (e *PerformanceClaimsEvaluator) Name() string { return MetricPerformanceClaims }

func (e *PerformanceClaimsEvaluator) Evaluate(ctx context.Context, ref types.ArtifactRef) Result {
	return timed(e.Name(), func() (Score, map[string]float64) {
		meta, _, err := e.provider.FetchArtifactMetadata(ctx, ref.ModelID)
		if err != nil || meta == nil {
			return Available(0), nil
		}
		d := NormalizeSigmoid(float64(meta.Downloads), 1000, 0.0001)
		l := NormalizeSigmoid(float64(meta.Likes), 10, 0.01)
		raw := Round2(d + l)
		score := raw
		if score < performanceFloor {
			score = performanceFloor
		}
		return Available(score), map[string]float64{"downloads": d, "likes": l, "raw": raw}
	})
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func countContaining(s string, needles ...string) int {
	n := 0
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			n++
		}
	}
	return n
}
