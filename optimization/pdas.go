package optimization

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// pdas runs the primal-dual active-set method for box-constrained
// problems. Each outer iteration estimates the active bound sets from
// the current multiplier, clamps the iterate there, and solves the
// reduced problem on the inactive set with the configured inner
// algorithm. The method terminates when the active sets repeat.
func (d *Driver) pdas(p Problem, x []float64) (*Result, error) {
	bp, ok := p.(BoundedProblem)
	if !ok {
		return nil, fmt.Errorf("optimization: algorithm pdas requires box constraints")
	}
	lower, upper := bp.Bounds()
	if len(lower) != len(x) || len(upper) != len(x) {
		return nil, fmt.Errorf("optimization: bounds length does not match problem dimension %d", len(x))
	}

	rc := d.cfg.Routine
	pc := d.cfg.PDAS
	n := len(x)
	grad := make([]float64, n)
	mu := make([]float64, n)
	activeLow := make([]bool, n)
	activeUp := make([]bool, n)
	prevLow := make([]bool, n)
	prevUp := make([]bool, n)
	hist := &History{Algorithm: "pdas"}

	p.Gradient(grad, x)
	cost := p.Cost(x)
	gnorm := projectedNorm(grad, activeLow, activeUp)

	for iter := 0; ; iter++ {
		if iter >= rc.MaximumIterations {
			return d.bail(hist, x, cost, gnorm, iter, ErrNotConverged)
		}

		copy(prevLow, activeLow)
		copy(prevUp, activeUp)
		for i := 0; i < n; i++ {
			activeLow[i] = mu[i]+pc.RegularizationParameter*(x[i]-lower[i]) < 0
			activeUp[i] = mu[i]+pc.RegularizationParameter*(x[i]-upper[i]) > 0
			if activeLow[i] && activeUp[i] {
				// Contradictory bounds signal, prefer the closer one.
				activeUp[i] = upper[i]-x[i] < x[i]-lower[i]
				activeLow[i] = !activeUp[i]
			}
		}
		if iter > 0 && boolsEqual(activeLow, prevLow) && boolsEqual(activeUp, prevUp) {
			hist.Converged = true
			return d.finish(hist, x, cost, gnorm, iter, true), nil
		}

		for i := 0; i < n; i++ {
			if activeLow[i] {
				x[i] = lower[i]
			} else if activeUp[i] {
				x[i] = upper[i]
			}
		}

		if err := d.pdasInner(p, x, activeLow, activeUp); err != nil {
			return d.bail(hist, x, cost, gnorm, iter, err)
		}

		p.Gradient(grad, x)
		cost = p.Cost(x)
		gnorm = projectedNorm(grad, activeLow, activeUp)
		// Multiplier from stationarity: grad J + mu = 0 on the active sets.
		for i := 0; i < n; i++ {
			mu[i] = -grad[i]
		}
		hist.record(iter, cost, gnorm, 0)

		if d.cfg.Output.Verbose {
			d.log.Info("optimization iteration",
				zap.String("algorithm", "pdas"),
				zap.Int("iter", iter+1),
				zap.Float64("cost", cost),
				zap.Float64("gradient_norm", gnorm),
				zap.Int("active", countActive(activeLow, activeUp)))
		}
	}
}

// pdasInner minimizes over the inactive set, holding the active
// components of x fixed. Gradients and search directions are
// projected by zeroing their active components, as the original inner
// solvers do.
func (d *Driver) pdasInner(p Problem, x []float64, activeLow, activeUp []bool) error {
	pc := d.cfg.PDAS
	n := len(x)
	grad := make([]float64, n)
	gradNew := make([]float64, n)
	dir := make([]float64, n)
	step := make([]float64, n)

	var method directionMethod
	switch pc.InnerSolver {
	case "gd":
		method = steepestDescent{}
	case "cg":
		method = newNonlinearCG(d.cfg.CG)
	default:
		method = newLBFGS(d.cfg.LBFGS)
	}

	mask := func(v []float64) {
		for i := 0; i < n; i++ {
			if activeLow[i] || activeUp[i] {
				v[i] = 0
			}
		}
	}

	p.Gradient(grad, x)
	mask(grad)
	gnorm0 := floats.Norm(grad, 2)
	gnorm := gnorm0
	cost := p.Cost(x)
	ls := newLineSearch(d.cfg.Routine)

	for iter := 0; ; iter++ {
		if gnorm <= d.cfg.Routine.Atol+pc.InnerTolerance*gnorm0 {
			return nil
		}
		if iter >= pc.MaxInnerIts {
			if d.cfg.Routine.SoftExit {
				d.log.Warn("pdas inner solve did not converge",
					zap.String("inner", method.name()),
					zap.Float64("gradient_norm", gnorm))
				return nil
			}
			return fmt.Errorf("pdas inner solve (%s): %w", method.name(), ErrNotConverged)
		}

		method.direction(dir, grad, iter)
		mask(dir)
		if floats.Dot(grad, dir) >= 0 {
			for i := range dir {
				dir[i] = -grad[i]
			}
			method.reset()
		}

		newCost, stepsize, ok := ls.search(p, x, dir, grad, cost)
		if !ok {
			if d.cfg.Routine.SoftExit {
				d.log.Warn("pdas inner armijo rule failed",
					zap.String("inner", method.name()))
				return nil
			}
			return fmt.Errorf("pdas inner solve (%s): %w", method.name(), ErrLineSearchFailed)
		}

		p.Gradient(gradNew, x)
		mask(gradNew)
		copy(step, dir)
		floats.Scale(stepsize, step)
		method.update(step, grad, gradNew)

		copy(grad, gradNew)
		cost = newCost
		gnorm = floats.Norm(grad, 2)
	}
}

func projectedNorm(grad []float64, activeLow, activeUp []bool) float64 {
	sum := 0.0
	for i, g := range grad {
		if activeLow[i] || activeUp[i] {
			continue
		}
		sum += g * g
	}
	return math.Sqrt(sum)
}

func boolsEqual(a, b []bool) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func countActive(low, up []bool) int {
	n := 0
	for i := range low {
		if low[i] || up[i] {
			n++
		}
	}
	return n
}
