package nls

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/andresmatthias/cashocs/config"
)

// geometricSystem is a manufactured scalar system whose residual norm
// decreases by a fixed factor with every Newton update, independent of
// the iterate. Jacobian is called exactly once per Newton step, so it
// doubles as the step counter.
type geometricSystem struct {
	r0, q float64
	steps int
}

func (g *geometricSystem) Dim() int { return 1 }

func (g *geometricSystem) Residual(dst *mat.VecDense, u *mat.VecDense) {
	dst.SetVec(0, g.r0*math.Pow(g.q, float64(g.steps)))
}

func (g *geometricSystem) Jacobian(dst *mat.Dense, u *mat.VecDense) {
	g.steps++
	dst.Set(0, 0, 1)
}

func TestNewtonStopsAtFirstSatisfiedTolerance(t *testing.T) {
	testCases := []struct {
		name     string
		atol     float64
		rtol     float64
		expected int // first k with r0*q^k below tolerance
	}{
		// r0 = 1, q = 0.1: residuals 1, 1e-1, 1e-2, ...
		{"absolute", 5e-7, 0, 7},
		{"relative", 0, 5e-5, 5},
		{"absolute before relative", 5e-3, 1e-8, 3},
		{"immediately satisfied", 10, 0, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sys := &geometricSystem{r0: 1, q: 0.1}
			cfg := config.Default().State
			cfg.NewtonAtol = tc.atol
			cfg.NewtonRtol = tc.rtol
			cfg.NewtonIter = 50

			u := mat.NewVecDense(1, nil)
			stats, err := NewSolver(cfg, nil).Solve(sys, u)
			require.NoError(t, err)
			assert.True(t, stats.Converged)
			assert.Equal(t, tc.expected, stats.Iterations)
		})
	}
}

func TestNewtonRespectsIterationCap(t *testing.T) {
	sys := &geometricSystem{r0: 1, q: 0.5}
	cfg := config.Default().State
	cfg.NewtonAtol = 1e-300
	cfg.NewtonRtol = 0
	cfg.NewtonIter = 10

	u := mat.NewVecDense(1, nil)
	stats, err := NewSolver(cfg, nil).Solve(sys, u)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotConverged))
	assert.False(t, stats.Converged)
	assert.Equal(t, 10, stats.Iterations)
	assert.Equal(t, 10, sys.steps)
}

// scalarRoot solves u^2 - 4 = 0.
type scalarRoot struct{}

func (scalarRoot) Dim() int { return 1 }

func (scalarRoot) Residual(dst *mat.VecDense, u *mat.VecDense) {
	x := u.AtVec(0)
	dst.SetVec(0, x*x-4)
}

func (scalarRoot) Jacobian(dst *mat.Dense, u *mat.VecDense) {
	dst.Set(0, 0, 2*u.AtVec(0))
}

func TestNewtonScalarRoot(t *testing.T) {
	cfg := config.Default().State
	u := mat.NewVecDense(1, []float64{3})

	stats, err := NewSolver(cfg, nil).Solve(scalarRoot{}, u)
	require.NoError(t, err)
	assert.True(t, stats.Converged)
	assert.InDelta(t, 2.0, u.AtVec(0), 1e-8)
}

// arctanSystem is the classic case where the undamped Newton method
// diverges from u0 = 3 while the damped variant converges.
type arctanSystem struct{}

func (arctanSystem) Dim() int { return 1 }

func (arctanSystem) Residual(dst *mat.VecDense, u *mat.VecDense) {
	dst.SetVec(0, math.Atan(u.AtVec(0)))
}

func (arctanSystem) Jacobian(dst *mat.Dense, u *mat.VecDense) {
	x := u.AtVec(0)
	dst.Set(0, 0, 1/(1+x*x))
}

func TestNewtonDamping(t *testing.T) {
	t.Run("damped converges", func(t *testing.T) {
		cfg := config.Default().State
		cfg.NewtonDamped = true
		cfg.NewtonAtol = 1e-10

		u := mat.NewVecDense(1, []float64{3})
		stats, err := NewSolver(cfg, nil).Solve(arctanSystem{}, u)
		require.NoError(t, err)
		assert.True(t, stats.Converged)
		assert.InDelta(t, 0.0, u.AtVec(0), 1e-9)
	})

	t.Run("undamped diverges", func(t *testing.T) {
		cfg := config.Default().State
		cfg.NewtonDamped = false
		cfg.NewtonAtol = 1e-10
		cfg.NewtonIter = 5

		u := mat.NewVecDense(1, []float64{3})
		_, err := NewSolver(cfg, nil).Solve(arctanSystem{}, u)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotConverged))
	})
}

func TestLinearSolve(t *testing.T) {
	// A u = b with A = [[4, 1], [1, 3]], b = [1, 2].
	sys := &linearSystem{
		a: mat.NewDense(2, 2, []float64{4, 1, 1, 3}),
		b: mat.NewVecDense(2, []float64{1, 2}),
	}
	cfg := config.Default().State
	cfg.IsLinear = true

	u := mat.NewVecDense(2, nil)
	stats, err := NewSolver(cfg, nil).Solve(sys, u)
	require.NoError(t, err)
	assert.True(t, stats.Converged)
	assert.InDelta(t, 1.0/11.0, u.AtVec(0), 1e-12)
	assert.InDelta(t, 7.0/11.0, u.AtVec(1), 1e-12)
	assert.Less(t, stats.Residual, 1e-12)
}

// linearSystem is F(u) = A u - b decomposed into per-row blocks, so
// that the Picard sweep over blocks is a Gauss-Seidel iteration.
type linearSystem struct {
	a *mat.Dense
	b *mat.VecDense
}

func (l *linearSystem) Dim() int { return l.b.Len() }

func (l *linearSystem) Residual(dst *mat.VecDense, u *mat.VecDense) {
	dst.MulVec(l.a, u)
	dst.SubVec(dst, l.b)
}

func (l *linearSystem) Jacobian(dst *mat.Dense, u *mat.VecDense) {
	dst.Copy(l.a)
}

func (l *linearSystem) Blocks() []Block {
	blocks := make([]Block, l.Dim())
	for i := range blocks {
		blocks[i] = &rowBlock{sys: l, row: i}
	}
	return blocks
}

type rowBlock struct {
	sys *linearSystem
	row int
}

func (r *rowBlock) Indices() []int { return []int{r.row} }

func (r *rowBlock) Residual(dst *mat.VecDense, u *mat.VecDense) {
	sum := 0.0
	for j := 0; j < r.sys.Dim(); j++ {
		sum += r.sys.a.At(r.row, j) * u.AtVec(j)
	}
	dst.SetVec(0, sum-r.sys.b.AtVec(r.row))
}

func (r *rowBlock) Jacobian(dst *mat.Dense, u *mat.VecDense) {
	dst.Set(0, 0, r.sys.a.At(r.row, r.row))
}

func TestPicardGaussSeidel(t *testing.T) {
	sys := &linearSystem{
		a: mat.NewDense(2, 2, []float64{4, 1, 1, 3}),
		b: mat.NewVecDense(2, []float64{1, 2}),
	}
	cfg := config.Default().State
	cfg.IsLinear = true
	cfg.PicardIteration = true
	cfg.PicardAtol = 1e-10
	cfg.PicardRtol = 0

	u := mat.NewVecDense(2, nil)
	stats, err := NewSolver(cfg, nil).Solve(sys, u)
	require.NoError(t, err)
	assert.True(t, stats.Converged)
	assert.Greater(t, stats.Iterations, 1)
	assert.InDelta(t, 1.0/11.0, u.AtVec(0), 1e-9)
	assert.InDelta(t, 7.0/11.0, u.AtVec(1), 1e-9)
}

func TestPicardRequiresBlockSystem(t *testing.T) {
	cfg := config.Default().State
	cfg.PicardIteration = true

	u := mat.NewVecDense(1, []float64{3})
	_, err := NewSolver(cfg, nil).Solve(scalarRoot{}, u)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "picard_iteration")
}

func TestSolveDimensionMismatch(t *testing.T) {
	cfg := config.Default().State
	u := mat.NewVecDense(2, nil)
	_, err := NewSolver(cfg, nil).Solve(scalarRoot{}, u)
	require.Error(t, err)
}
