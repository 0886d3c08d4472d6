package devengine

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"dataflow/pkg/contracts/domain"
)

// savgolOrder is the polynomial order of the Savitzky-Golay filter
const savgolOrder = 2

// smooth applies method to values with the given window
func smooth(values []float64, method string, window int) ([]float64, error) {
	if window < 1 {
		return nil, fmt.Errorf("window must be at least 1, got %d", window)
	}
	switch method {
	case domain.SmoothMovingAverage:
		return movingAverage(values, window), nil
	case domain.SmoothExponential:
		return exponential(values, window), nil
	case domain.SmoothSavgol:
		return savgol(values, window)
	default:
		return nil, fmt.Errorf("unknown smoothing method '%s'", method)
	}
}

// movingAverage is a trailing mean over window values. Positions without a
// full window of present values are NaN.
func movingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if i+1 < window {
			out[i] = math.NaN()
			continue
		}
		sum := 0.0
		for _, v := range values[i+1-window : i+1] {
			sum += v
		}
		out[i] = sum / float64(window)
	}
	return out
}

// exponential is the bias-adjusted exponentially weighted mean with
// alpha = 2/(span+1). Missing values keep their weight slot but add no
// mass, so the last mean carries over them.
func exponential(values []float64, span int) []float64 {
	decay := 1 - 2/(float64(span)+1)
	out := make([]float64, len(values))
	num, den := 0.0, 0.0
	for i, v := range values {
		num *= decay
		den *= decay
		if !math.IsNaN(v) {
			num += v
			den++
		}
		if den == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = num / den
	}
	return out
}

// savgol fits a quadratic over each odd window with least squares and takes
// its value at the window center. The first and last half windows are
// evaluated on the fit of the first and last full window. Missing values
// count as zero.
func savgol(values []float64, window int) ([]float64, error) {
	if window%2 == 0 {
		return nil, fmt.Errorf("window_length must be odd, got %d", window)
	}
	if window <= savgolOrder {
		return nil, fmt.Errorf("polyorder must be less than window_length")
	}
	if window > len(values) {
		return nil, fmt.Errorf("window_length must be less than or equal to the size of x")
	}

	hat, err := savgolHat(window)
	if err != nil {
		return nil, err
	}

	x := make([]float64, len(values))
	for i, v := range values {
		if !math.IsNaN(v) {
			x[i] = v
		}
	}

	half := window / 2
	out := make([]float64, len(x))
	apply := func(row, start int) float64 {
		sum := 0.0
		for j := 0; j < window; j++ {
			sum += hat.At(row, j) * x[start+j]
		}
		return sum
	}
	for i := range x {
		switch {
		case i < half:
			out[i] = apply(i, 0)
		case i >= len(x)-half:
			out[i] = apply(window-(len(x)-i), len(x)-window)
		default:
			out[i] = apply(half, i-half)
		}
	}
	return out, nil
}

// savgolHat returns the window x window projection onto quadratics sampled
// at the window offsets
func savgolHat(window int) (*mat.Dense, error) {
	half := window / 2
	a := mat.NewDense(window, savgolOrder+1, nil)
	for i := 0; i < window; i++ {
		t := float64(i - half)
		for k := 0; k <= savgolOrder; k++ {
			a.Set(i, k, math.Pow(t, float64(k)))
		}
	}

	var ata, inv, proj, hat mat.Dense
	ata.Mul(a.T(), a)
	if err := inv.Inverse(&ata); err != nil {
		return nil, fmt.Errorf("savgol fit: %w", err)
	}
	proj.Mul(&inv, a.T())
	hat.Mul(a, &proj)
	return &hat, nil
}
