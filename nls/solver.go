// Package nls controls the solution of the (possibly nonlinear) state
// system. Depending on the configuration it performs a single linear
// solve, a damped Newton iteration, or a Picard (fixed point) outer
// loop over equation blocks. The discretized equations themselves are
// supplied by the caller through the System interface.
package nls

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/andresmatthias/cashocs/config"
)

// ErrNotConverged is returned when an iteration exhausts its cap
// before meeting its tolerances.
var ErrNotConverged = errors.New("nls: iteration did not converge")

// minDamping is the smallest step fraction tried by the damped Newton
// method before the step is accepted as-is.
const minDamping = 1.0 / 1024.0

// System describes a discretized state system F(u) = 0 with a dense
// Jacobian. Residual and Jacobian write into preallocated dst values
// sized by Dim.
type System interface {
	Dim() int
	Residual(dst *mat.VecDense, u *mat.VecDense)
	Jacobian(dst *mat.Dense, u *mat.VecDense)
}

// Block is one equation block of a coupled system. Residual and
// Jacobian are taken with respect to the block's own unknowns,
// identified by Indices into the full solution vector, with all other
// unknowns held fixed at their current values.
type Block interface {
	Indices() []int
	Residual(dst *mat.VecDense, u *mat.VecDense)
	Jacobian(dst *mat.Dense, u *mat.VecDense)
}

// BlockSystem is a System that additionally decomposes into blocks for
// Picard iteration.
type BlockSystem interface {
	System
	Blocks() []Block
}

// Stats reports the outcome of a state solve.
type Stats struct {
	Iterations int     // outer iterations performed
	Residual   float64 // final residual norm
	Converged  bool
}

// Solver drives the state solve according to the [StateSystem]
// configuration section.
type Solver struct {
	cfg config.StateConfig
	log *zap.Logger
}

// NewSolver creates a state solver. A nil logger disables all output.
func NewSolver(cfg config.StateConfig, log *zap.Logger) *Solver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Solver{cfg: cfg, log: log}
}

// Solve computes a solution of sys in place in u. With
// picard_iteration set, sys must implement BlockSystem.
func (s *Solver) Solve(sys System, u *mat.VecDense) (Stats, error) {
	if sys.Dim() != u.Len() {
		return Stats{}, fmt.Errorf("nls: system dimension %d does not match vector length %d", sys.Dim(), u.Len())
	}
	if s.cfg.PicardIteration {
		bs, ok := sys.(BlockSystem)
		if !ok {
			return Stats{}, fmt.Errorf("nls: picard_iteration requires a block-decomposed system")
		}
		return s.picard(bs, u)
	}
	if s.cfg.IsLinear {
		return s.linear(sys, u)
	}
	return s.newton(sys, u, s.cfg.NewtonVerbose)
}

// linear performs a single assembled solve J(u) du = -F(u).
func (s *Solver) linear(sys System, u *mat.VecDense) (Stats, error) {
	n := sys.Dim()
	F := mat.NewVecDense(n, nil)
	J := mat.NewDense(n, n, nil)
	du := mat.NewVecDense(n, nil)

	sys.Residual(F, u)
	sys.Jacobian(J, u)
	if err := solveLU(du, J, F); err != nil {
		return Stats{}, err
	}
	u.AddScaledVec(u, -1, du)
	sys.Residual(F, u)
	res := mat.Norm(F, 2)
	return Stats{Iterations: 1, Residual: res, Converged: true}, nil
}

// newton runs the damped Newton iteration. The convergence test is
// checked before each step, so a residual already below tolerance
// costs no Jacobian assembly.
func (s *Solver) newton(sys System, u *mat.VecDense, verbose bool) (Stats, error) {
	n := sys.Dim()
	F := mat.NewVecDense(n, nil)
	J := mat.NewDense(n, n, nil)
	du := mat.NewVecDense(n, nil)
	trial := mat.NewVecDense(n, nil)

	sys.Residual(F, u)
	res0 := mat.Norm(F, 2)
	res := res0
	if res0 == 0 {
		return Stats{Residual: 0, Converged: true}, nil
	}

	for it := 0; ; it++ {
		if res <= s.cfg.NewtonAtol || res/res0 <= s.cfg.NewtonRtol {
			return Stats{Iterations: it, Residual: res, Converged: true}, nil
		}
		if it >= s.cfg.NewtonIter {
			return Stats{Iterations: it, Residual: res, Converged: false},
				fmt.Errorf("newton iteration exceeded %d iterations (residual %.3e): %w",
					s.cfg.NewtonIter, res, ErrNotConverged)
		}

		sys.Jacobian(J, u)
		if err := solveLU(du, J, F); err != nil {
			return Stats{Iterations: it, Residual: res}, err
		}

		lambda := 1.0
		if s.cfg.NewtonDamped {
			for lambda > minDamping {
				trial.AddScaledVec(u, -lambda, du)
				sys.Residual(F, trial)
				if mat.Norm(F, 2) < res {
					break
				}
				lambda /= 2
			}
		}
		u.AddScaledVec(u, -lambda, du)
		sys.Residual(F, u)
		res = mat.Norm(F, 2)

		if verbose {
			s.log.Info("newton iteration",
				zap.Int("iter", it+1),
				zap.Float64("residual", res),
				zap.Float64("damping", lambda))
		}
	}
}

// picard runs the fixed-point outer loop, sweeping over the blocks and
// solving each with the configured inner method.
func (s *Solver) picard(sys BlockSystem, u *mat.VecDense) (Stats, error) {
	n := sys.Dim()
	F := mat.NewVecDense(n, nil)
	blocks := sys.Blocks()
	if len(blocks) == 0 {
		return Stats{}, fmt.Errorf("nls: block system has no blocks")
	}

	sys.Residual(F, u)
	res0 := mat.Norm(F, 2)
	res := res0
	if res0 == 0 {
		return Stats{Residual: 0, Converged: true}, nil
	}

	for it := 0; ; it++ {
		if res <= s.cfg.PicardAtol || res/res0 <= s.cfg.PicardRtol {
			return Stats{Iterations: it, Residual: res, Converged: true}, nil
		}
		if it >= s.cfg.PicardIter {
			return Stats{Iterations: it, Residual: res, Converged: false},
				fmt.Errorf("picard iteration exceeded %d iterations (residual %.3e): %w",
					s.cfg.PicardIter, res, ErrNotConverged)
		}

		for bi, blk := range blocks {
			view := &blockView{block: blk, full: u}
			x := mat.NewVecDense(view.Dim(), nil)
			view.gather(x)
			var err error
			if s.cfg.IsLinear {
				_, err = s.linear(view, x)
			} else {
				_, err = s.newton(view, x, s.cfg.NewtonVerbose)
			}
			if err != nil {
				return Stats{Iterations: it, Residual: res},
					fmt.Errorf("picard sweep %d, block %d: %w", it+1, bi, err)
			}
			view.scatter(x)
		}

		sys.Residual(F, u)
		res = mat.Norm(F, 2)

		if s.cfg.PicardVerbose {
			s.log.Info("picard iteration",
				zap.Int("iter", it+1),
				zap.Float64("residual", res))
		}
	}
}

// blockView adapts a Block into a System over the block's own
// unknowns, scattering trial values into the full vector before each
// residual or Jacobian evaluation.
type blockView struct {
	block Block
	full  *mat.VecDense
}

func (b *blockView) Dim() int { return len(b.block.Indices()) }

func (b *blockView) gather(dst *mat.VecDense) {
	for i, idx := range b.block.Indices() {
		dst.SetVec(i, b.full.AtVec(idx))
	}
}

func (b *blockView) scatter(x *mat.VecDense) {
	for i, idx := range b.block.Indices() {
		b.full.SetVec(idx, x.AtVec(i))
	}
}

func (b *blockView) Residual(dst *mat.VecDense, x *mat.VecDense) {
	b.scatter(x)
	b.block.Residual(dst, b.full)
}

func (b *blockView) Jacobian(dst *mat.Dense, x *mat.VecDense) {
	b.scatter(x)
	b.block.Jacobian(dst, b.full)
}

// solveLU solves J x = b by dense LU factorization.
func solveLU(dst *mat.VecDense, J *mat.Dense, b *mat.VecDense) error {
	var lu mat.LU
	lu.Factorize(J)
	if err := lu.SolveVecTo(dst, false, b); err != nil {
		return fmt.Errorf("nls: linear solve failed: %w", err)
	}
	return nil
}
