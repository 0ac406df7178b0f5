package optimization

import (
	"gonum.org/v1/gonum/floats"

	"github.com/andresmatthias/cashocs/config"
)

// stepsizeFloor aborts the backtracking once the trial step becomes
// numerically meaningless.
const stepsizeFloor = 1e-12

// lineSearch implements the Armijo backtracking rule. The stepsize is
// persistent across outer iterations: a successful search leaves a
// slightly enlarged stepsize behind for the next call.
type lineSearch struct {
	cfg      config.RoutineConfig
	stepsize float64
}

func newLineSearch(cfg config.RoutineConfig) *lineSearch {
	return &lineSearch{cfg: cfg, stepsize: cfg.InitialStepsize}
}

func (ls *lineSearch) reset() {
	ls.stepsize = ls.cfg.InitialStepsize
}

// search advances x along dir until the sufficient-decrease condition
//
//	J(x + t dir) <= J(x) + epsilon_armijo * t * <g, dir>
//
// holds, halving t by beta_armijo on each rejection. On success x is
// updated in place and the new cost and accepted stepsize are
// returned. On failure x is left untouched and ok is false.
func (ls *lineSearch) search(p Problem, x, dir, grad []float64, cost float64) (newCost, accepted float64, ok bool) {
	n := len(x)
	trial := make([]float64, n)
	directional := floats.Dot(grad, dir)

	t := ls.stepsize
	for t > stepsizeFloor {
		copy(trial, x)
		floats.AddScaled(trial, t, dir)
		trialCost := p.Cost(trial)
		if trialCost <= cost+ls.cfg.EpsilonArmijo*t*directional {
			copy(x, trial)
			// Allow the stepsize to grow again on the next iteration.
			ls.stepsize = t * ls.cfg.BetaArmijo
			return trialCost, t, true
		}
		t /= ls.cfg.BetaArmijo
	}
	return cost, 0, false
}
