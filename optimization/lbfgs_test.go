package optimization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresmatthias/cashocs/config"
)

// The L-BFGS memory must never hold more than bfgs_memory_size
// curvature pairs, no matter how many updates it digests.
func TestLBFGSMemoryCap(t *testing.T) {
	cfg := config.LBFGSConfig{MemorySize: 5, UseScaling: true}
	l := newLBFGS(cfg)

	gradOld := []float64{1, 1}
	for i := 0; i < 50; i++ {
		// s and y chosen with positive curvature <y, s> > 0.
		step := []float64{1, float64(i + 1)}
		gradNew := []float64{gradOld[0] + 0.5, gradOld[1] + 0.5}
		l.update(step, gradOld, gradNew)
		assert.LessOrEqual(t, len(l.history), 5)
		gradOld = gradNew
	}
	assert.Len(t, l.history, 5)
}

func TestLBFGSDiscardsOnNegativeCurvature(t *testing.T) {
	cfg := config.LBFGSConfig{MemorySize: 5}
	l := newLBFGS(cfg)

	l.update([]float64{1, 0}, []float64{0, 0}, []float64{1, 0})
	l.update([]float64{0, 1}, []float64{0, 0}, []float64{0, 1})
	require.Len(t, l.history, 2)

	// <y, s> = -1 < 0 wipes the memory.
	l.update([]float64{1, 0}, []float64{0, 0}, []float64{-1, 0})
	assert.Empty(t, l.history)
}

func TestLBFGSZeroMemoryIsSteepestDescent(t *testing.T) {
	l := newLBFGS(config.LBFGSConfig{MemorySize: 0})
	l.update([]float64{1, 2}, []float64{0, 0}, []float64{1, 1})
	assert.Empty(t, l.history)

	dst := make([]float64, 2)
	grad := []float64{3, -4}
	l.direction(dst, grad, 7)
	assert.Equal(t, []float64{-3, 4}, dst)
}

// With an identity-like single pair the two-loop recursion must
// reproduce the quasi-Newton direction -H g exactly.
func TestLBFGSTwoLoopRecursion(t *testing.T) {
	cfg := config.LBFGSConfig{MemorySize: 1, UseScaling: false}
	l := newLBFGS(cfg)

	// s = y = e1 gives rho = 1 and leaves any gradient with zero first
	// component untouched.
	l.update([]float64{1, 0}, []float64{0, 0}, []float64{1, 0})
	require.Len(t, l.history, 1)

	dst := make([]float64, 2)
	l.direction(dst, []float64{0, 2}, 1)
	assert.InDelta(t, 0.0, dst[0], 1e-14)
	assert.InDelta(t, -2.0, dst[1], 1e-14)
}

func TestLBFGSFirstDirectionIsSteepestDescent(t *testing.T) {
	l := newLBFGS(config.LBFGSConfig{MemorySize: 5, UseScaling: true})
	dst := make([]float64, 3)
	l.direction(dst, []float64{1, -2, 3}, 0)
	assert.Equal(t, []float64{-1, 2, -3}, dst)
}
