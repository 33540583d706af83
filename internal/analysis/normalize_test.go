package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestNormalizeSigmoid(t *testing.T) {
	tests := []struct {
		name      string
		value     float64
		mid       float64
		steepness float64
		expected  float64
	}{
		{name: "zero is zero", value: 0, mid: 100, steepness: 0.01, expected: 0},
		{name: "negative coerced to zero", value: -50, mid: 100, steepness: 0.01, expected: 0},
		{name: "midpoint is one half", value: 100, mid: 100, steepness: 0.01, expected: 0.5},
		{name: "zero mid near one half", value: 1e-9, mid: 0, steepness: 1, expected: 0.5},
		{name: "huge value saturates", value: 1e12, mid: 100, steepness: 0.01, expected: 1},
		{name: "nan is zero", value: math.NaN(), mid: 1, steepness: 1, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, NormalizeSigmoid(tt.value, tt.mid, tt.steepness), 1e-6)
		})
	}
}

func TestNormalizeSigmoidProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		mid := rapid.Float64Range(0, 1e6).Draw(t, "mid")
		k := rapid.Float64Range(1e-6, 10).Draw(t, "steepness")
		a := rapid.Float64Range(0, 1e9).Draw(t, "a")
		b := rapid.Float64Range(0, 1e9).Draw(t, "b")
		if a > b {
			a, b = b, a
		}

		fa, fb := NormalizeSigmoid(a, mid, k), NormalizeSigmoid(b, mid, k)
		if fa < 0 || fa > 1 || fb < 0 || fb > 1 {
			t.Fatalf("out of range: f(%v)=%v f(%v)=%v", a, fa, b, fb)
		}
		if fa > fb {
			t.Fatalf("not monotone: f(%v)=%v > f(%v)=%v", a, fa, b, fb)
		}
		if NormalizeSigmoid(0, mid, k) != 0 {
			t.Fatalf("f(0) must be 0")
		}
	})
}

func TestClampAndRound(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.3))
	assert.Equal(t, 1.0, Clamp01(1.7))
	assert.Equal(t, 0.0, Clamp01(math.NaN()))
	assert.Equal(t, 0.42, Clamp01(0.42))

	assert.Equal(t, 0.13, Round2(0.125))
	assert.Equal(t, 0.88, Round2(0.8835))
	assert.Equal(t, 1.99, Round2(1.99))
}

func TestScoreOutcome(t *testing.T) {
	s := Available(1.4)
	v, ok := s.Value()
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)
	assert.Equal(t, 1.0, s.OrSentinel())

	u := Unavailable()
	_, ok = u.Value()
	assert.False(t, ok)
	assert.False(t, u.IsAvailable())
	assert.Equal(t, -1.0, u.OrSentinel())
}
