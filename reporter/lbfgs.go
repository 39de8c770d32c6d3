package reporter

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// trainLBFGS runs one restart as a single quasi-Newton minimization with a
// strong-Wolfe line search and the epoch budget as the iteration cap. Both
// convergence tolerances are machine epsilon, so the run ends only when the
// optimizer's own stopping rule fires or the budget is exhausted.
//
// LBFGS has no decoupled weight-decay term, so an explicit L2 penalty
// (weightDecay * ||p||^2 / 2 over all parameters) is added to the objective.
// The returned loss is the unregularized value at the committed parameter
// state, tracked through an explicit result cell rather than the penalized
// objective the line search sees.
func (r *Reporter) trainLBFGS(groups []*mat.Dense, rows, variants int, labels []float64, pairForm bool) (float64, error) {
	// Shape and label validation errors are deterministic, so trip them
	// once up front; inside the closures the evaluation cannot fail.
	if _, err := r.evalLoss(groups, rows, variants, labels, pairForm, nil); err != nil {
		return 0, err
	}

	lastLoss := math.Inf(1)
	wd := r.cfg.WeightDecay

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			r.setParamVector(x)
			loss, _ := r.evalLoss(groups, rows, variants, labels, pairForm, nil)
			lastLoss = loss
			penalty := 0.0
			for _, p := range x {
				penalty += wd * p * p / 2.0
			}
			return loss + penalty
		},
		Grad: func(grad, x []float64) {
			r.setParamVector(x)
			if _, err := r.evalLoss(groups, rows, variants, labels, pairForm, grad); err != nil {
				// The up-front evaluation already tripped every
				// deterministic failure; never hand gonum a stale
				// reused slice.
				for j := range grad {
					grad[j] = 0
				}
			}
			for j, p := range x {
				grad[j] += wd * p
			}
		},
	}

	eps := math.Nextafter(1.0, 2.0) - 1.0
	settings := &optimize.Settings{
		MajorIterations:   r.cfg.NumEpochs,
		GradientThreshold: eps,
		Converger: &optimize.FunctionConverge{
			Absolute:   eps,
			Iterations: 1,
		},
	}
	method := &optimize.LBFGS{Linesearcher: &optimize.MoreThuente{}}

	result, err := optimize.Minimize(problem, r.paramVector(), settings, method)
	if result == nil {
		return 0, err
	}

	// Commit the optimizer's final point and report the unregularized
	// loss at exactly that state.
	r.setParamVector(result.X)
	loss, lerr := r.evalLoss(groups, rows, variants, labels, pairForm, nil)
	lastLoss = loss
	return lastLoss, lerr
}
