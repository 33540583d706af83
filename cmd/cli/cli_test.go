package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/analysis"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/errors"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/report"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/types"
)

type call struct{ model, code, dataset string }

// fakeScorer resolves references like the aggregator and scores every model 0.5
type fakeScorer struct {
	mu    sync.Mutex
	calls []call
}

func (f *fakeScorer) ScoreURL(ctx context.Context, modelURL, codeURL, datasetURL string) (*analysis.ScoreReport, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{modelURL, codeURL, datasetURL})
	f.mu.Unlock()

	ref, err := types.ParseArtifactRef(modelURL, codeURL, datasetURL)
	if err != nil {
		return nil, errors.NewUnscorableError(modelURL, err)
	}
	return &analysis.ScoreReport{
		Name:     ref.DisplayName(),
		Ref:      ref,
		NetScore: 0.5,
		Results: map[string]analysis.Result{
			analysis.MetricLicense: {Metric: analysis.MetricLicense, Score: analysis.Available(1), Latency: time.Millisecond},
		},
		Unavailable: []string{},
	}, nil
}

func runApp(t *testing.T, s scorer, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := newApp(&stdout, &stderr, s).Run(append([]string{"modelmeter"}, args...))
	return stdout.String(), stderr.String(), err
}

func decodeLines(t *testing.T, out string) []report.ModelRating {
	t.Helper()
	var ratings []report.ModelRating
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		var r report.ModelRating
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r), sc.Text())
		ratings = append(ratings, r)
	}
	return ratings
}

func TestReadRows(t *testing.T) {
	input := strings.Join([]string{
		"https://github.com/org/repo,https://huggingface.co/datasets/org/data,https://huggingface.co/org/a",
		",,https://huggingface.co/org/b",
		"https://github.com/org/only-code",
		"",
		" , , org/c ",
	}, "\n")

	rows, err := readRows(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "https://github.com/org/repo", rows[0].code)
	assert.Equal(t, "https://huggingface.co/datasets/org/data", rows[0].dataset)
	assert.Equal(t, "https://huggingface.co/org/a", rows[0].model)
	assert.Equal(t, 1, rows[0].line)

	assert.Empty(t, rows[1].code)
	assert.Equal(t, "https://huggingface.co/org/b", rows[1].model)

	assert.Equal(t, "org/c", rows[2].model)
	assert.Equal(t, 5, rows[2].line)
}

func TestScoreCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.csv")
	content := strings.Join([]string{
		"https://github.com/org/repo,,https://huggingface.co/org/a",
		",,https://huggingface.co/datasets/not-a-model",
		",,https://huggingface.co/org/b",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	s := &fakeScorer{}
	stdout, stderr, err := runApp(t, s, "score", path)
	require.NoError(t, err)

	ratings := decodeLines(t, stdout)
	require.Len(t, ratings, 2)
	assert.Equal(t, "a", ratings[0].Name)
	assert.Equal(t, "b", ratings[1].Name)
	assert.Equal(t, 0.5, ratings[0].NetScore)
	assert.Equal(t, 1.0, ratings[0].License)
	assert.Equal(t, -1.0, ratings[0].BusFactor)

	assert.Len(t, s.calls, 3)
	assert.Contains(t, stderr, "Skipping unscorable row")
	assert.NotContains(t, stdout, "Skipping")
}

func TestScoreCommandErrors(t *testing.T) {
	_, _, err := runApp(t, &fakeScorer{}, "score", filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	_, _, err = runApp(t, &fakeScorer{}, "score")
	assert.Error(t, err)
}

func TestRateCommand(t *testing.T) {
	s := &fakeScorer{}
	stdout, _, err := runApp(t, s, "rate", "--code", "https://github.com/org/repo", "org/model")
	require.NoError(t, err)

	ratings := decodeLines(t, stdout)
	require.Len(t, ratings, 1)
	assert.Equal(t, "model", ratings[0].Name)
	require.Len(t, s.calls, 1)
	assert.Equal(t, call{"org/model", "https://github.com/org/repo", ""}, s.calls[0])

	_, _, err = runApp(t, s, "rate", "https://example.com/x")
	assert.Error(t, err)
}

func TestDebugFlagLogsToStderr(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.csv")
	require.NoError(t, os.WriteFile(path, []byte(",,org/a\n"), 0o600))

	stdout, stderr, err := runApp(t, &fakeScorer{}, "--debug", "score", path)
	require.NoError(t, err)
	assert.Len(t, decodeLines(t, stdout), 1)
	assert.Contains(t, stderr, `"msg":"Scoring complete"`)
}
