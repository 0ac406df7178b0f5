package optimization

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/andresmatthias/cashocs/config"
)

// nonlinearCG computes search directions by a nonlinear conjugate
// gradient update. The beta formula is selected by cg_method;
// restarts to steepest descent happen periodically, on loss of
// relative orthogonality, or whenever the update fails to produce a
// descent direction.
type nonlinearCG struct {
	cfg          config.CGConfig
	gradPrev     []float64
	dirPrev      []float64
	sinceRestart int
}

func newNonlinearCG(cfg config.CGConfig) *nonlinearCG {
	return &nonlinearCG{cfg: cfg}
}

func (c *nonlinearCG) name() string { return "cg" }

func (c *nonlinearCG) reset() {
	c.gradPrev = nil
	c.dirPrev = nil
	c.sinceRestart = 0
}

func (c *nonlinearCG) direction(dst, grad []float64, iter int) {
	if c.gradPrev == nil || c.restartDue(grad) {
		c.steepest(dst, grad)
		return
	}

	beta := c.beta(grad)
	for i := range dst {
		dst[i] = -grad[i] + beta*c.dirPrev[i]
	}
	if floats.Dot(grad, dst) >= 0 {
		// Not a descent direction, fall back to steepest descent.
		c.steepest(dst, grad)
		return
	}
	c.sinceRestart++
	c.remember(dst, grad)
}

func (c *nonlinearCG) steepest(dst, grad []float64) {
	for i := range dst {
		dst[i] = -grad[i]
	}
	c.sinceRestart = 1
	c.remember(dst, grad)
}

func (c *nonlinearCG) restartDue(grad []float64) bool {
	if c.cfg.PeriodicRestart && c.sinceRestart >= c.cfg.PeriodicIts {
		return true
	}
	if c.cfg.RelativeRestart {
		// Powell's relative-orthogonality test: restart once successive
		// gradients are no longer close to orthogonal.
		num := math.Abs(floats.Dot(grad, c.gradPrev))
		den := floats.Dot(grad, grad)
		if den > 0 && num/den >= c.cfg.RestartTol {
			return true
		}
	}
	return false
}

// beta evaluates the configured update formula. y = grad - gradPrev.
func (c *nonlinearCG) beta(grad []float64) float64 {
	y := make([]float64, len(grad))
	floats.SubTo(y, grad, c.gradPrev)

	var beta float64
	switch c.cfg.Method {
	case "FR":
		beta = floats.Dot(grad, grad) / floats.Dot(c.gradPrev, c.gradPrev)
	case "PR":
		beta = floats.Dot(grad, y) / floats.Dot(c.gradPrev, c.gradPrev)
		beta = math.Max(beta, 0)
	case "HS":
		beta = floats.Dot(grad, y) / floats.Dot(c.dirPrev, y)
	case "DY":
		beta = floats.Dot(grad, grad) / floats.Dot(c.dirPrev, y)
	}
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		beta = 0
	}
	return beta
}

func (c *nonlinearCG) remember(dir, grad []float64) {
	if c.gradPrev == nil {
		c.gradPrev = make([]float64, len(grad))
		c.dirPrev = make([]float64, len(dir))
	}
	copy(c.gradPrev, grad)
	copy(c.dirPrev, dir)
}

func (c *nonlinearCG) update(step, gradOld, gradNew []float64) {}
