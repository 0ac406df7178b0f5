package optimization

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// TaylorTest verifies the gradient of p at x by a Taylor remainder
// test along the direction h. For epsilons 0.01 / 2^i, i = 0..n-1, it
// computes the first-order remainders
//
//	|J(x + eps h) - J(x) - eps <dJ(x), h>|
//
// and returns their convergence rates. A correct gradient yields
// rates close to 2.
func TaylorTest(p Problem, x, h []float64, n int) ([]float64, error) {
	if n < 2 {
		return nil, fmt.Errorf("optimization: taylor test needs at least 2 epsilons, got %d", n)
	}
	if len(h) != len(x) {
		return nil, fmt.Errorf("optimization: direction length %d does not match iterate length %d", len(h), len(x))
	}

	grad := make([]float64, len(x))
	trial := make([]float64, len(x))
	p.Gradient(grad, x)
	cost := p.Cost(x)
	directional := floats.Dot(grad, h)

	epsilons := make([]float64, n)
	residuals := make([]float64, n)
	for i := 0; i < n; i++ {
		epsilons[i] = 0.01 / math.Pow(2, float64(i))
		copy(trial, x)
		floats.AddScaled(trial, epsilons[i], h)
		residuals[i] = math.Abs(p.Cost(trial) - cost - epsilons[i]*directional)
	}

	rates := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		rates = append(rates, math.Log(residuals[i]/residuals[i-1])/
			math.Log(epsilons[i]/epsilons[i-1]))
	}
	return rates, nil
}
