package analysis

import (
	"context"
	"time"

	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/types"
)

// Metric names. They double as weight keys and as keys of the presentation document.
const (
	MetricRampUpTime        = "ramp_up_time"
	MetricBusFactor         = "bus_factor"
	MetricPerformanceClaims = "performance_claims"
	MetricLicense           = "license"
	MetricSize              = "size_score"
	MetricDatasetAndCode    = "dataset_and_code_score"
	MetricDatasetQuality    = "dataset_quality"
	MetricCodeQuality       = "code_quality"
	MetricReproducibility   = "reproducibility"
	MetricReviewedness      = "reviewedness"
	MetricTreeScore         = "tree_score"
)

// AllMetrics lists the metric names in presentation order.
var AllMetrics = []string{
	MetricRampUpTime,
	MetricBusFactor,
	MetricPerformanceClaims,
	MetricLicense,
	MetricDatasetAndCode,
	MetricDatasetQuality,
	MetricCodeQuality,
	MetricReproducibility,
	MetricReviewedness,
	MetricTreeScore,
	MetricSize,
}

// Score is either an available value in [0,1] or Unavailable.
type Score struct {
	value     float64
	available bool
}

// Available returns an available score, clamped to [0,1].
func Available(v float64) Score { return Score{value: Clamp01(v), available: true} }

// Unavailable marks a dimension that could not be computed.
func Unavailable() Score { return Score{} }

// Value returns the score and whether it is available.
func (s Score) Value() (float64, bool) { return s.value, s.available }

func (s Score) IsAvailable() bool { return s.available }

// OrSentinel renders Unavailable as -1 for wire formats that need a number.
func (s Score) OrSentinel() float64 {
	if !s.available {
		return -1
	}
	return s.value
}

// Result is the outcome of one evaluator.
type Result struct {
	Metric    string             `json:"metric"`
	Score     Score              `json:"-"`
	Latency   time.Duration      `json:"latency"`
	Breakdown map[string]float64 `json:"breakdown,omitempty"`
}

// Evaluator computes one quality dimension. Implementations never fail: provider
// errors degrade to a low or Unavailable score.
type Evaluator interface {
	Name() string
	Evaluate(ctx context.Context, ref types.ArtifactRef) Result
}

// timed runs fn and stamps the result with the metric name and elapsed time.
func timed(metric string, fn func() (Score, map[string]float64)) Result {
	start := time.Now()
	score, breakdown := fn()
	return Result{
		Metric:    metric,
		Score:     score,
		Latency:   time.Since(start),
		Breakdown: breakdown,
	}
}
