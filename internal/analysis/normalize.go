package analysis

import "math"

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// NormalizeSigmoid maps a non-negative count onto [0,1] with a logistic curve centered
// at mid. Non-positive values map to 0.
func NormalizeSigmoid(value, mid, steepness float64) float64 {
	if value <= 0 || math.IsNaN(value) {
		return 0
	}
	return math.Min(1, sigmoid(steepness*(value-mid)))
}

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Clamp01 bounds x to the unit interval. NaN maps to 0.
func Clamp01(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return clip(x, 0, 1)
}

// Round2 rounds half away from zero to two decimals.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
