package forecast

import "fmt"

// BurgCoefficients fits an autoregressive model of the given order to series using
// Burg's maximum entropy method. The result has exactly order coefficients, lag 1 first,
// in the sign convention expected by Convolve.
//
// Orders that the series is too short to support get zero reflection coefficients:
// a zero residual energy denominator is treated as "nothing left to explain".
func BurgCoefficients(series []float64, order int) ([]float64, error) {
	if order < 1 {
		return nil, fmt.Errorf("burg order %d: must be positive", order)
	}
	n := len(series)

	// per/pef are 1-based over the series, g/h over the model order.
	per := make([]float64, n+1)
	pef := make([]float64, n+1)
	g := make([]float64, order+2)
	h := make([]float64, order+2)

	for nn := 2; nn <= order+1; nn++ {
		lag := nn - 2
		jj := n - lag - 1

		var sn, sd float64
		for j := 1; j <= jj; j++ {
			t1 := series[j+lag] + pef[j]
			t2 := series[j-1] + per[j]
			sn -= 2 * t1 * t2
			sd += t1*t1 + t2*t2
		}

		k := 0.0
		if sd != 0 {
			k = sn / sd
		}
		g[nn] = k

		if lag != 0 {
			for j := 2; j < nn; j++ {
				h[j] = g[j] + k*g[nn-j+1]
			}
			copy(g[2:nn], h[2:nn])
			jj--
		}

		for j := 1; j <= jj; j++ {
			per[j] += k*pef[j] + k*series[j+lag]
			pef[j] = pef[j+1] + k*per[j+1] + k*series[j]
		}
	}

	coeffs := make([]float64, order)
	copy(coeffs, g[2:order+2])
	if !finite(coeffs...) {
		return nil, fmt.Errorf("burg order %d over %d points: %w", order, n, ErrNumericInstability)
	}
	return coeffs, nil
}
