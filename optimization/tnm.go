package optimization

import (
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// truncatedNewton minimizes p by Newton steps whose linear systems are
// solved approximately with an inner Krylov method (cg or cr) on
// Hessian-vector products. Each outer step is safeguarded by the
// Armijo rule starting from the full step.
func (d *Driver) truncatedNewton(p Problem, x []float64) (*Result, error) {
	hp, ok := p.(HessianProblem)
	if !ok {
		return nil, fmt.Errorf("optimization: algorithm tnm requires Hessian-vector products")
	}

	rc := d.cfg.Routine
	tc := d.cfg.TNM
	n := len(x)
	grad := make([]float64, n)
	dir := make([]float64, n)

	p.Gradient(grad, x)
	gnorm0 := floats.Norm(grad, 2)
	gnorm := gnorm0
	cost := p.Cost(x)
	hist := &History{Algorithm: "tnm"}

	for iter := 0; ; iter++ {
		if gnorm <= rc.Atol+rc.Rtol*gnorm0 {
			hist.Converged = true
			return d.finish(hist, x, cost, gnorm, iter, true), nil
		}
		if iter >= rc.MaximumIterations {
			return d.bail(hist, x, cost, gnorm, iter, ErrNotConverged)
		}

		switch tc.InnerNewton {
		case "cr":
			d.innerCR(hp, x, grad, dir)
		default:
			d.innerCG(hp, x, grad, dir)
		}
		if floats.Dot(grad, dir) >= 0 {
			for i := range dir {
				dir[i] = -grad[i]
			}
		}

		// Newton steps want a unit initial stepsize.
		ls := newLineSearch(rc)
		ls.stepsize = 1.0
		newCost, stepsize, ok := ls.search(p, x, dir, grad, cost)
		if !ok {
			return d.bail(hist, x, cost, gnorm, iter, ErrLineSearchFailed)
		}
		p.Gradient(grad, x)
		cost = newCost
		gnorm = floats.Norm(grad, 2)
		hist.record(iter, cost, gnorm, stepsize)

		if d.cfg.Output.Verbose {
			d.log.Info("optimization iteration",
				zap.String("algorithm", "tnm"),
				zap.Int("iter", iter+1),
				zap.Float64("cost", cost),
				zap.Float64("gradient_norm", gnorm))
		}
	}
}

// innerCG solves H dir = -grad by the conjugate gradient method,
// truncated at the configured tolerance or iteration cap. On negative
// curvature the current iterate is returned (steepest descent if it is
// still zero).
func (d *Driver) innerCG(hp HessianProblem, x, grad, dir []float64) {
	tc := d.cfg.TNM
	n := len(x)
	r := make([]float64, n)
	q := make([]float64, n)
	hq := make([]float64, n)

	for i := range dir {
		dir[i] = 0
		r[i] = -grad[i]
	}
	copy(q, r)
	tol := tc.InnerTolerance * floats.Norm(grad, 2)
	rsOld := floats.Dot(r, r)

	for it := 0; it < tc.MaxInnerIts; it++ {
		if floats.Norm(r, 2) <= tol {
			break
		}
		hp.HessianAction(hq, x, q)
		curvature := floats.Dot(q, hq)
		if curvature <= 0 {
			if it == 0 {
				copy(dir, r)
			}
			break
		}
		alpha := rsOld / curvature
		floats.AddScaled(dir, alpha, q)
		floats.AddScaled(r, -alpha, hq)
		rsNew := floats.Dot(r, r)
		beta := rsNew / rsOld
		for i := range q {
			q[i] = r[i] + beta*q[i]
		}
		rsOld = rsNew
	}
}

// innerCR solves H dir = -grad by the conjugate residual method under
// the same truncation rules as innerCG.
func (d *Driver) innerCR(hp HessianProblem, x, grad, dir []float64) {
	tc := d.cfg.TNM
	n := len(x)
	r := make([]float64, n)
	q := make([]float64, n)
	hr := make([]float64, n)
	hq := make([]float64, n)

	for i := range dir {
		dir[i] = 0
		r[i] = -grad[i]
	}
	copy(q, r)
	tol := tc.InnerTolerance * floats.Norm(grad, 2)

	hp.HessianAction(hr, x, r)
	copy(hq, hr)
	rhOld := floats.Dot(r, hr)

	for it := 0; it < tc.MaxInnerIts; it++ {
		if floats.Norm(r, 2) <= tol {
			break
		}
		if rhOld <= 0 {
			if it == 0 {
				copy(dir, r)
			}
			break
		}
		denom := floats.Dot(hq, hq)
		if denom == 0 {
			break
		}
		alpha := rhOld / denom
		floats.AddScaled(dir, alpha, q)
		floats.AddScaled(r, -alpha, hq)
		hp.HessianAction(hr, x, r)
		rhNew := floats.Dot(r, hr)
		beta := rhNew / rhOld
		for i := range q {
			q[i] = r[i] + beta*q[i]
		}
		for i := range hq {
			hq[i] = hr[i] + beta*hq[i]
		}
		rhOld = rhNew
	}
}
