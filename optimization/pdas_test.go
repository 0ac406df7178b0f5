package optimization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// boundedQuadratic is J(x) = 1/2 |x - target|^2 with box constraints.
// The solution is the projection of target onto the box.
type boundedQuadratic struct {
	target []float64
	lower  []float64
	upper  []float64
}

func (b *boundedQuadratic) Dim() int { return len(b.target) }

func (b *boundedQuadratic) Cost(x []float64) float64 {
	sum := 0.0
	for i := range x {
		d := x[i] - b.target[i]
		sum += 0.5 * d * d
	}
	return sum
}

func (b *boundedQuadratic) Gradient(dst, x []float64) {
	for i := range x {
		dst[i] = x[i] - b.target[i]
	}
}

func (b *boundedQuadratic) Bounds() (lower, upper []float64) {
	return b.lower, b.upper
}

func TestPDASProjectsOntoBox(t *testing.T) {
	p := &boundedQuadratic{
		target: []float64{2, -2, 0.5},
		lower:  []float64{-1, -1, -1},
		upper:  []float64{1, 1, 1},
	}
	cfg := testConfig()
	cfg.Routine.Algorithm = "pdas"

	res, err := NewDriver(cfg, nil).Solve(p, []float64{0, 0, 0})
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.InDelta(t, 1.0, res.X[0], 1e-6)
	assert.InDelta(t, -1.0, res.X[1], 1e-6)
	assert.InDelta(t, 0.5, res.X[2], 1e-6)
}

func TestPDASInnerSolvers(t *testing.T) {
	p := &boundedQuadratic{
		target: []float64{3, 0.25, -5},
		lower:  []float64{-1, -1, -1},
		upper:  []float64{1, 1, 1},
	}
	want := []float64{1, 0.25, -1}

	for _, inner := range []string{"gd", "lbfgs", "cg"} {
		t.Run(inner, func(t *testing.T) {
			cfg := testConfig()
			cfg.Routine.Algorithm = "pdas"
			cfg.PDAS.InnerSolver = inner
			cfg.PDAS.InnerTolerance = 1e-6

			res, err := NewDriver(cfg, nil).Solve(p, []float64{0, 0, 0})
			require.NoError(t, err)
			assert.True(t, res.Converged)
			for i := range want {
				assert.InDelta(t, want[i], res.X[i], 1e-4, "component %d", i)
			}
		})
	}
}

func TestPDASUnconstrainedInterior(t *testing.T) {
	// Target inside the box: no bound ever becomes active.
	p := &boundedQuadratic{
		target: []float64{0.5, -0.25, 0},
		lower:  []float64{-1, -1, -1},
		upper:  []float64{1, 1, 1},
	}
	cfg := testConfig()
	cfg.Routine.Algorithm = "pdas"
	cfg.PDAS.InnerTolerance = 1e-8

	res, err := NewDriver(cfg, nil).Solve(p, []float64{0, 0, 0})
	require.NoError(t, err)
	assert.True(t, res.Converged)
	for i, w := range p.target {
		assert.InDelta(t, w, res.X[i], 1e-4, "component %d", i)
	}
}

func TestPDASRequiresBounds(t *testing.T) {
	cfg := testConfig()
	cfg.Routine.Algorithm = "pdas"

	_, err := NewDriver(cfg, nil).Solve(newTestQuadratic(), []float64{0, 0, 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "box constraints")
}
