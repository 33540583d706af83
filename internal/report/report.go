// Package report renders score reports into the flat rating document served by
// the API and printed by the CLI. It is the only place Unavailable becomes -1.
package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/analysis"
)

const (
	CategoryModel = "MODEL"
	unavailable   = -1
)

// ModelRating is the published rating of one model. Latencies are milliseconds.
type ModelRating struct {
	ID        string    `json:"id,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`

	Name            string  `json:"name"`
	Category        string  `json:"category"`
	NetScore        float64 `json:"net_score"`
	NetScoreLatency int64   `json:"net_score_latency"`

	RampUpTime                 float64 `json:"ramp_up_time"`
	RampUpTimeLatency          int64   `json:"ramp_up_time_latency"`
	BusFactor                  float64 `json:"bus_factor"`
	BusFactorLatency           int64   `json:"bus_factor_latency"`
	PerformanceClaims          float64 `json:"performance_claims"`
	PerformanceClaimsLatency   int64   `json:"performance_claims_latency"`
	License                    float64 `json:"license"`
	LicenseLatency             int64   `json:"license_latency"`
	DatasetAndCodeScore        float64 `json:"dataset_and_code_score"`
	DatasetAndCodeScoreLatency int64   `json:"dataset_and_code_score_latency"`
	DatasetQuality             float64 `json:"dataset_quality"`
	DatasetQualityLatency      int64   `json:"dataset_quality_latency"`
	CodeQuality                float64 `json:"code_quality"`
	CodeQualityLatency         int64   `json:"code_quality_latency"`
	Reproducibility            float64 `json:"reproducibility"`
	ReproducibilityLatency     int64   `json:"reproducibility_latency"`
	Reviewedness               float64 `json:"reviewedness"`
	ReviewednessLatency        int64   `json:"reviewedness_latency"`
	TreeScore                  float64 `json:"tree_score"`
	TreeScoreLatency           int64   `json:"tree_score_latency"`

	SizeScore        map[string]float64 `json:"size_score"`
	SizeScoreLatency int64              `json:"size_score_latency"`

	Unavailable []string `json:"unavailable"`
}

// FromScoreReport flattens a score report. Metrics missing from the report are
// rendered as unavailable.
func FromScoreReport(r *analysis.ScoreReport) ModelRating {
	m := ModelRating{
		Name:            r.Name,
		Category:        CategoryModel,
		NetScore:        r.NetScore,
		NetScoreLatency: r.NetLatency.Milliseconds(),
		Unavailable:     append([]string{}, r.Unavailable...),
	}

	fields := map[string]struct {
		score   *float64
		latency *int64
	}{
		analysis.MetricRampUpTime:        {&m.RampUpTime, &m.RampUpTimeLatency},
		analysis.MetricBusFactor:         {&m.BusFactor, &m.BusFactorLatency},
		analysis.MetricPerformanceClaims: {&m.PerformanceClaims, &m.PerformanceClaimsLatency},
		analysis.MetricLicense:           {&m.License, &m.LicenseLatency},
		analysis.MetricDatasetAndCode:    {&m.DatasetAndCodeScore, &m.DatasetAndCodeScoreLatency},
		analysis.MetricDatasetQuality:    {&m.DatasetQuality, &m.DatasetQualityLatency},
		analysis.MetricCodeQuality:       {&m.CodeQuality, &m.CodeQualityLatency},
		analysis.MetricReproducibility:   {&m.Reproducibility, &m.ReproducibilityLatency},
		analysis.MetricReviewedness:      {&m.Reviewedness, &m.ReviewednessLatency},
		analysis.MetricTreeScore:         {&m.TreeScore, &m.TreeScoreLatency},
	}
	for _, metric := range analysis.AllMetrics {
		f, scalar := fields[metric]
		if !scalar {
			continue
		}
		res, ok := r.Result(metric)
		if !ok {
			*f.score = unavailable
			m.markUnavailable(metric)
			continue
		}
		*f.score = res.Score.OrSentinel()
		*f.latency = res.Latency.Milliseconds()
	}

	m.SizeScore = make(map[string]float64, len(analysis.Devices))
	size, ok := r.Result(analysis.MetricSize)
	if !ok {
		m.markUnavailable(analysis.MetricSize)
	} else {
		m.SizeScoreLatency = size.Latency.Milliseconds()
	}
	for _, device := range analysis.Devices {
		v, found := size.Breakdown[device]
		if !ok || !size.Score.IsAvailable() || !found {
			v = unavailable
		}
		m.SizeScore[device] = v
	}
	return m
}

func (m *ModelRating) markUnavailable(metric string) {
	for _, name := range m.Unavailable {
		if name == metric {
			return
		}
	}
	m.Unavailable = append(m.Unavailable, metric)
}

// WriteNDJSON writes ratings as compact JSON, one per line
func WriteNDJSON(w io.Writer, ratings ...ModelRating) error {
	enc := json.NewEncoder(w)
	for _, r := range ratings {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
