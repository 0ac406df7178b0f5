package optimization

import (
	"gonum.org/v1/gonum/floats"

	"github.com/andresmatthias/cashocs/config"
)

// curvaturePair is one (s, y) entry of the limited L-BFGS memory,
// with rho = 1 / <y, s> precomputed.
type curvaturePair struct {
	s, y []float64
	rho  float64
}

// lbfgs computes search directions by the two-loop recursion over the
// most recent curvature pairs. With a memory size of zero it reduces
// to steepest descent.
type lbfgs struct {
	cfg     config.LBFGSConfig
	history []curvaturePair // newest first
}

func newLBFGS(cfg config.LBFGSConfig) *lbfgs {
	return &lbfgs{cfg: cfg}
}

func (l *lbfgs) name() string { return "lbfgs" }

func (l *lbfgs) reset() { l.history = l.history[:0] }

func (l *lbfgs) direction(dst, grad []float64, iter int) {
	if l.cfg.MemorySize == 0 || len(l.history) == 0 {
		for i := range dst {
			dst[i] = -grad[i]
		}
		return
	}

	copy(dst, grad)
	alpha := make([]float64, len(l.history))
	for i, pair := range l.history {
		alpha[i] = pair.rho * floats.Dot(pair.s, dst)
		floats.AddScaled(dst, -alpha[i], pair.y)
	}

	// Initial inverse-Hessian scaling by the newest curvature pair.
	if l.cfg.UseScaling {
		newest := l.history[0]
		factor := floats.Dot(newest.y, newest.s) / floats.Dot(newest.y, newest.y)
		floats.Scale(factor, dst)
	}

	for i := len(l.history) - 1; i >= 0; i-- {
		pair := l.history[i]
		beta := pair.rho * floats.Dot(pair.y, dst)
		floats.AddScaled(dst, alpha[i]-beta, pair.s)
	}
	floats.Scale(-1, dst)
}

// update stores the newest curvature pair. Pairs with non-positive
// curvature would destroy positive definiteness, so the whole memory
// is discarded when one appears (as the original inner L-BFGS does).
func (l *lbfgs) update(step, gradOld, gradNew []float64) {
	if l.cfg.MemorySize == 0 {
		return
	}
	n := len(step)
	pair := curvaturePair{s: make([]float64, n), y: make([]float64, n)}
	copy(pair.s, step)
	floats.SubTo(pair.y, gradNew, gradOld)

	curvature := floats.Dot(pair.y, pair.s)
	if curvature <= 0 {
		l.history = l.history[:0]
		return
	}
	pair.rho = 1 / curvature

	l.history = append([]curvaturePair{pair}, l.history...)
	if len(l.history) > l.cfg.MemorySize {
		l.history = l.history[:l.cfg.MemorySize]
	}
}
