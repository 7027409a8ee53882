package forecast

import (
	"fmt"
	"math"

	"SensorPull/internal/domain/models"
)

// AverageInterval returns the mean of consecutive deltas of xs.
func AverageInterval(xs []float64) (float64, error) {
	if len(xs) < 2 {
		return 0, fmt.Errorf("average interval of %d points: %w", len(xs), ErrInsufficientData)
	}
	sum := 0.0
	for i := 1; i < len(xs); i++ {
		sum += xs[i] - xs[i-1]
	}
	return sum / float64(len(xs)-1), nil
}

// Convolve predicts the next value as -Σ coefficients[k]·data[len-1-k] over min(len(data), len(coefficients)) terms.
func Convolve(data, coefficients []float64) float64 {
	n := min(len(data), len(coefficients))
	last := len(data) - 1

	out := 0.0
	for k := 0; k < n; k++ {
		out -= data[last-k] * coefficients[k]
	}
	return out
}

// TrimDiscontinuity drops every point before the last position where x goes backwards.
func TrimDiscontinuity(points []models.Point) []models.Point {
	for i := len(points) - 1; i > 0; i-- {
		if points[i].X < points[i-1].X {
			return points[i:]
		}
	}
	return points
}

// Tail returns at most the last n points.
func Tail(points []models.Point, n int) []models.Point {
	if n <= 0 || len(points) <= n {
		return points
	}
	return points[len(points)-n:]
}

// Describe computes max, min, mean and population standard deviation of ys.
func Describe(ys []float64) models.Statistics {
	if len(ys) == 0 {
		return models.Statistics{}
	}
	st := models.Statistics{Max: ys[0], Min: ys[0], Count: len(ys)}
	sum := 0.0
	for _, y := range ys {
		st.Max = math.Max(st.Max, y)
		st.Min = math.Min(st.Min, y)
		sum += y
	}
	st.Mean = sum / float64(len(ys))

	ss := 0.0
	for _, y := range ys {
		d := y - st.Mean
		ss += d * d
	}
	st.StdDev = math.Sqrt(ss / float64(len(ys)))
	return st
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func ys(points []models.Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Y
	}
	return out
}

func xs(points []models.Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.X
	}
	return out
}
