// Package optimization implements the iterative optimization driver
// and its algorithms: gradient descent, limited-memory BFGS, nonlinear
// conjugate gradient, truncated Newton and a primal-dual active-set
// method for box constraints. The reduced cost functional and its
// gradient are supplied by the caller; the PDE solves behind them are
// opaque to this package.
package optimization

import "errors"

// ErrNotConverged is returned (unless soft_exit is set) when an
// algorithm exhausts its iteration cap.
var ErrNotConverged = errors.New("optimization: maximum number of iterations exceeded")

// ErrLineSearchFailed is returned (unless soft_exit is set) when the
// Armijo rule cannot produce an acceptable stepsize.
var ErrLineSearchFailed = errors.New("optimization: armijo rule failed")

// Problem is a reduced optimization problem: the cost functional and
// its gradient with respect to the control vector. Gradient writes
// into dst, which has length Dim.
type Problem interface {
	Dim() int
	Cost(x []float64) float64
	Gradient(dst, x []float64)
}

// HessianProblem additionally provides the action of the (reduced)
// Hessian on a vector, as needed by the truncated Newton method.
type HessianProblem interface {
	Problem
	HessianAction(dst, x, v []float64)
}

// BoundedProblem additionally provides box constraints on the control,
// as needed by the primal-dual active-set method. Both slices have
// length Dim.
type BoundedProblem interface {
	Problem
	Bounds() (lower, upper []float64)
}

// Result is the outcome of an optimization run.
type Result struct {
	X            []float64
	Cost         float64
	GradientNorm float64
	Iterations   int
	Converged    bool
	History      *History
}
