package optimization

import (
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/andresmatthias/cashocs/config"
)

// directionMethod computes search directions for the line-search based
// algorithms and digests accepted steps.
type directionMethod interface {
	name() string
	direction(dst, grad []float64, iter int)
	update(step, gradOld, gradNew []float64)
	reset()
}

// steepestDescent is the gd algorithm.
type steepestDescent struct{}

func (steepestDescent) name() string { return "gd" }

func (steepestDescent) direction(dst, grad []float64, iter int) {
	for i := range dst {
		dst[i] = -grad[i]
	}
}

func (steepestDescent) update(step, gradOld, gradNew []float64) {}

func (steepestDescent) reset() {}

// Driver runs the optimization algorithm selected by the
// [OptimizationRoutine] configuration section.
type Driver struct {
	cfg *config.Config
	log *zap.Logger
}

// NewDriver creates an optimization driver. A nil logger disables all
// output.
func NewDriver(cfg *config.Config, log *zap.Logger) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{cfg: cfg, log: log}
}

// Solve minimizes p starting from x0. The returned result holds the
// final iterate; x0 is not modified. With soft_exit set,
// non-convergence is logged and the best-found iterate is returned
// without error.
func (d *Driver) Solve(p Problem, x0 []float64) (*Result, error) {
	if p.Dim() != len(x0) {
		return nil, fmt.Errorf("optimization: problem dimension %d does not match initial guess length %d", p.Dim(), len(x0))
	}
	x := make([]float64, len(x0))
	copy(x, x0)

	var (
		res *Result
		err error
	)
	switch alg := d.cfg.Routine.Algorithm; alg {
	case "gd":
		res, err = d.descend(p, x, steepestDescent{})
	case "lbfgs":
		res, err = d.descend(p, x, newLBFGS(d.cfg.LBFGS))
	case "cg":
		res, err = d.descend(p, x, newNonlinearCG(d.cfg.CG))
	case "tnm":
		res, err = d.truncatedNewton(p, x)
	case "pdas":
		res, err = d.pdas(p, x)
	default:
		return nil, fmt.Errorf("optimization: unknown algorithm %q", alg)
	}
	if err != nil {
		return res, err
	}

	if d.cfg.Output.SaveResults {
		if saveErr := res.History.Save(d.cfg.Output.ResultDir); saveErr != nil {
			d.log.Warn("could not save optimization history", zap.Error(saveErr))
		}
	}
	return res, nil
}

// descend is the shared loop of the line-search algorithms: compute a
// direction, run the Armijo search, feed the step back to the method.
func (d *Driver) descend(p Problem, x []float64, method directionMethod) (*Result, error) {
	rc := d.cfg.Routine
	n := len(x)
	grad := make([]float64, n)
	gradNew := make([]float64, n)
	dir := make([]float64, n)
	step := make([]float64, n)

	p.Gradient(grad, x)
	gnorm0 := floats.Norm(grad, 2)
	gnorm := gnorm0
	cost := p.Cost(x)
	ls := newLineSearch(rc)
	hist := &History{Algorithm: method.name()}

	for iter := 0; ; iter++ {
		if gnorm <= rc.Atol+rc.Rtol*gnorm0 {
			hist.Converged = true
			return d.finish(hist, x, cost, gnorm, iter, true), nil
		}
		if iter >= rc.MaximumIterations {
			return d.bail(hist, x, cost, gnorm, iter, ErrNotConverged)
		}

		method.direction(dir, grad, iter)
		if floats.Dot(grad, dir) >= 0 {
			d.log.Info("no descent direction found, using negative gradient")
			for i := range dir {
				dir[i] = -grad[i]
			}
			method.reset()
		}

		newCost, stepsize, ok := ls.search(p, x, dir, grad, cost)
		if !ok {
			return d.bail(hist, x, cost, gnorm, iter, ErrLineSearchFailed)
		}

		p.Gradient(gradNew, x)
		copy(step, dir)
		floats.Scale(stepsize, step)
		method.update(step, grad, gradNew)

		copy(grad, gradNew)
		cost = newCost
		gnorm = floats.Norm(grad, 2)
		hist.record(iter, cost, gnorm, stepsize)

		if d.cfg.Output.Verbose {
			d.log.Info("optimization iteration",
				zap.String("algorithm", method.name()),
				zap.Int("iter", iter+1),
				zap.Float64("cost", cost),
				zap.Float64("gradient_norm", gnorm),
				zap.Float64("stepsize", stepsize))
		}
	}
}

// finish assembles a successful result.
func (d *Driver) finish(hist *History, x []float64, cost, gnorm float64, iter int, converged bool) *Result {
	return &Result{
		X:            x,
		Cost:         cost,
		GradientNorm: gnorm,
		Iterations:   iter,
		Converged:    converged,
		History:      hist,
	}
}

// bail handles non-convergence per the soft_exit setting: either the
// best-found iterate with a warning, or a hard error.
func (d *Driver) bail(hist *History, x []float64, cost, gnorm float64, iter int, cause error) (*Result, error) {
	res := d.finish(hist, x, cost, gnorm, iter, false)
	if d.cfg.Routine.SoftExit {
		d.log.Warn("optimization did not converge, returning best iterate",
			zap.Int("iterations", iter),
			zap.Float64("gradient_norm", gnorm),
			zap.Error(cause))
		return res, nil
	}
	return res, cause
}
