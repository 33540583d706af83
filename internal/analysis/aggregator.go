package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/adapters"
	apperrors "github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/errors"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/types"
)

const defaultEvaluatorTimeout = 10 * time.Second

// Weights maps metric names to their share of the net score.
type Weights map[string]float64

// DefaultWeights sum to 1.0 across all metrics. License, ramp up, dataset and
// code and dataset quality each give up 0.05 of their classic share to
// reviewedness, reproducibility and tree score.
func DefaultWeights() Weights {
	return Weights{
		MetricRampUpTime:        0.15,
		MetricBusFactor:         0.05,
		MetricPerformanceClaims: 0.10,
		MetricLicense:           0.15,
		MetricSize:              0.05,
		MetricDatasetAndCode:    0.10,
		MetricDatasetQuality:    0.10,
		MetricCodeQuality:       0.10,
		MetricReproducibility:   0.05,
		MetricReviewedness:      0.10,
		MetricTreeScore:         0.05,
	}
}

// Recorder receives one observation per evaluator run.
type Recorder interface {
	RecordEvaluation(metric string, latency time.Duration, available bool)
	RecordEvaluatorPanic(metric string)
}

// DefaultEvaluators builds every evaluator over a single provider.
func DefaultEvaluators(p adapters.Provider) []Evaluator {
	return []Evaluator{
		NewRampUpEvaluator(p),
		NewBusFactorEvaluator(p),
		NewPerformanceClaimsEvaluator(p),
		NewLicenseEvaluator(p),
		NewDatasetAndCodeEvaluator(p),
		NewDatasetQualityEvaluator(p),
		NewCodeQualityEvaluator(p),
		NewReproducibilityEvaluator(p),
		NewReviewednessEvaluator(p),
		NewTreeEvaluator(p),
		NewSizeEvaluator(p),
	}
}

// ScoreReport is the outcome of one scoring request. It is not modified after
// ScoreArtifact returns.
type ScoreReport struct {
	Name        string            `json:"name"`
	Ref         types.ArtifactRef `json:"ref"`
	NetScore    float64           `json:"net_score"`
	NetLatency  time.Duration     `json:"net_latency"`
	Results     map[string]Result `json:"results"`
	Unavailable []string          `json:"unavailable"`
	// Weights are the renormalized weights actually applied.
	Weights Weights `json:"weights"`
}

// Result returns the outcome for one metric.
func (r *ScoreReport) Result(metric string) (Result, bool) {
	res, ok := r.Results[metric]
	return res, ok
}

// Aggregator runs all evaluators for an artifact and combines their scores.
type Aggregator struct {
	evaluators []Evaluator
	weights    Weights
	timeout    time.Duration
	recorder   Recorder
	logger     *slog.Logger
}

type Option func(*Aggregator)

func WithEvaluators(evaluators ...Evaluator) Option {
	return func(a *Aggregator) { a.evaluators = evaluators }
}

func WithEvaluatorTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(a *Aggregator) { a.recorder = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAggregator wires the default evaluators over provider. A nil weights map
// selects DefaultWeights.
func NewAggregator(provider adapters.Provider, weights Weights, opts ...Option) *Aggregator {
	if weights == nil {
		weights = DefaultWeights()
	}
	a := &Aggregator{
		weights: weights,
		timeout: defaultEvaluatorTimeout,
		logger:  slog.Default(),
	}
	if provider != nil {
		a.evaluators = DefaultEvaluators(provider)
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ScoreURL resolves a model URL or id plus optional links, then scores it.
func (a *Aggregator) ScoreURL(ctx context.Context, modelURL, codeURL, datasetURL string) (*ScoreReport, error) {
	ref, err := types.ParseArtifactRef(modelURL, codeURL, datasetURL)
	if err != nil {
		return nil, apperrors.NewUnscorableError(modelURL, err)
	}
	return a.ScoreArtifact(ctx, ref)
}

// ScoreArtifact runs every evaluator concurrently. Evaluator failures only mark
// their own dimension unavailable; the only error is an unusable reference.
func (a *Aggregator) ScoreArtifact(ctx context.Context, ref types.ArtifactRef) (*ScoreReport, error) {
	if ref.ModelID == "" {
		return nil, apperrors.NewUnscorableError(ref.ModelURL, types.ErrEmptyIdentifier)
	}

	start := time.Now()
	results := make([]Result, len(a.evaluators))

	g, gctx := errgroup.WithContext(ctx)
	for i, ev := range a.evaluators {
		g.Go(func() error {
			results[i] = a.runEvaluator(gctx, ev, ref)
			return nil
		})
	}
	_ = g.Wait()

	report := a.combine(ref, results)
	report.NetLatency = time.Since(start)

	a.logger.Info("Artifact scored",
		"model_id", ref.ModelID,
		"net_score", report.NetScore,
		"unavailable", report.Unavailable,
		"duration_ms", report.NetLatency.Milliseconds(),
	)
	return report, nil
}

// runEvaluator bounds one evaluator by the configured timeout and converts panics
// and timeouts into an unavailable result charged with the elapsed time.
func (a *Aggregator) runEvaluator(ctx context.Context, ev Evaluator, ref types.ArtifactRef) Result {
	name := ev.Name()
	start := time.Now()

	evalCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		panicked := true
		apperrors.SafeExecute(func() {
			res := ev.Evaluate(evalCtx, ref)
			panicked = false
			done <- res
		}, func(r interface{}) {
			a.logger.Error("Evaluator panicked", "metric", name, "panic", fmt.Sprint(r))
			if a.recorder != nil {
				a.recorder.RecordEvaluatorPanic(name)
			}
		})
		if panicked {
			done <- Result{Metric: name, Score: Unavailable(), Latency: time.Since(start)}
		}
	}()

	var res Result
	select {
	case res = <-done:
	case <-evalCtx.Done():
		a.logger.Warn("Evaluator timed out", "metric", name, "timeout", a.timeout.String())
		res = Result{Metric: name, Score: Unavailable(), Latency: time.Since(start)}
	}

	res.Metric = name
	if res.Latency < 0 {
		res.Latency = 0
	}
	if a.recorder != nil {
		a.recorder.RecordEvaluation(name, res.Latency, res.Score.IsAvailable())
	}
	return res
}

// combine renormalizes the weights of available dimensions to sum to 1. With no
// available weighted dimension the net score is 0.
func (a *Aggregator) combine(ref types.ArtifactRef, results []Result) *ScoreReport {
	report := &ScoreReport{
		Name:        ref.DisplayName(),
		Ref:         ref,
		Results:     make(map[string]Result, len(results)),
		Unavailable: []string{},
		Weights:     Weights{},
	}

	totalWeight := 0.0
	for _, res := range results {
		report.Results[res.Metric] = res
		if !res.Score.IsAvailable() {
			report.Unavailable = append(report.Unavailable, res.Metric)
			continue
		}
		if w := a.weights[res.Metric]; w > 0 {
			totalWeight += w
		}
	}
	if totalWeight == 0 {
		return report
	}

	net := 0.0
	for _, res := range results {
		v, ok := res.Score.Value()
		w := a.weights[res.Metric]
		if !ok || w <= 0 {
			continue
		}
		norm := w / totalWeight
		report.Weights[res.Metric] = norm
		net += norm * v
	}
	report.NetScore = Round2(Clamp01(net))
	return report
}
