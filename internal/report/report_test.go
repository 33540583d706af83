package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/analysis"
)

func sampleReport() *analysis.ScoreReport {
	results := map[string]analysis.Result{}
	for _, metric := range analysis.AllMetrics {
		results[metric] = analysis.Result{
			Metric:  metric,
			Score:   analysis.Available(0.5),
			Latency: 25 * time.Millisecond,
		}
	}
	results[analysis.MetricBusFactor] = analysis.Result{
		Metric:  analysis.MetricBusFactor,
		Score:   analysis.Unavailable(),
		Latency: 3 * time.Millisecond,
	}
	results[analysis.MetricSize] = analysis.Result{
		Metric:  analysis.MetricSize,
		Score:   analysis.Available(0.61),
		Latency: 4 * time.Millisecond,
		Breakdown: map[string]float64{
			analysis.DeviceRaspberryPi: 0.2,
			analysis.DeviceJetsonNano:  0.6,
			analysis.DeviceDesktopPC:   0.9,
			analysis.DeviceAWSServer:   1,
		},
	}
	return &analysis.ScoreReport{
		Name:        "bert-base-uncased",
		NetScore:    0.52,
		NetLatency:  180 * time.Millisecond,
		Results:     results,
		Unavailable: []string{analysis.MetricBusFactor},
	}
}

func TestFromScoreReport(t *testing.T) {
	rating := FromScoreReport(sampleReport())

	assert.Equal(t, "bert-base-uncased", rating.Name)
	assert.Equal(t, CategoryModel, rating.Category)
	assert.Equal(t, 0.52, rating.NetScore)
	assert.Equal(t, int64(180), rating.NetScoreLatency)

	assert.Equal(t, 0.5, rating.RampUpTime)
	assert.Equal(t, int64(25), rating.RampUpTimeLatency)
	assert.Equal(t, float64(-1), rating.BusFactor, "unavailable renders as sentinel")
	assert.Equal(t, int64(3), rating.BusFactorLatency)

	assert.Equal(t, 0.9, rating.SizeScore[analysis.DeviceDesktopPC])
	assert.Equal(t, int64(4), rating.SizeScoreLatency)
	assert.Equal(t, []string{analysis.MetricBusFactor}, rating.Unavailable)
}

func TestFromScoreReportMissingMetrics(t *testing.T) {
	r := &analysis.ScoreReport{Name: "empty", Unavailable: []string{}}
	rating := FromScoreReport(r)

	assert.Equal(t, float64(-1), rating.License)
	assert.Equal(t, float64(-1), rating.TreeScore)
	for _, device := range analysis.Devices {
		assert.Equal(t, float64(-1), rating.SizeScore[device], device)
	}
	assert.Len(t, rating.Unavailable, len(analysis.AllMetrics))
	assert.Equal(t, analysis.AllMetrics[0], rating.Unavailable[0])
}

func TestFromScoreReportUnavailableSize(t *testing.T) {
	r := sampleReport()
	r.Results[analysis.MetricSize] = analysis.Result{Metric: analysis.MetricSize, Score: analysis.Unavailable()}

	rating := FromScoreReport(r)
	assert.Equal(t, float64(-1), rating.SizeScore[analysis.DeviceAWSServer])
}

func TestWriteNDJSON(t *testing.T) {
	var buf bytes.Buffer
	rating := FromScoreReport(sampleReport())
	require.NoError(t, WriteNDJSON(&buf, rating, rating))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &doc))
	assert.Equal(t, "MODEL", doc["category"])
	assert.Equal(t, float64(-1), doc["bus_factor"])
	assert.NotContains(t, doc, "id")
	assert.NotContains(t, doc, "created_at")
	size := doc["size_score"].(map[string]interface{})
	assert.Equal(t, 0.2, size[analysis.DeviceRaspberryPi])
}
