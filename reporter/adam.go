package reporter

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Adam hyperparameters shared with the usual AdamW defaults.
const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-8
)

// trainAdam runs one restart of AdamW over the full batch: one gradient
// step per epoch with decoupled weight decay. It mutates the reporter's
// parameters in place and returns the loss at the final parameter state.
func (r *Reporter) trainAdam(groups []*mat.Dense, rows, variants int, labels []float64, pairForm bool) (float64, error) {
	n := r.numParams()
	x := r.paramVector()
	m := make([]float64, n)
	v := make([]float64, n)
	grad := make([]float64, n)

	for epoch := 1; epoch <= r.cfg.NumEpochs; epoch++ {
		if _, err := r.evalLoss(groups, rows, variants, labels, pairForm, grad); err != nil {
			return 0, err
		}

		bc1 := 1.0 - math.Pow(adamBeta1, float64(epoch))
		bc2 := 1.0 - math.Pow(adamBeta2, float64(epoch))
		for j := 0; j < n; j++ {
			g := grad[j]
			m[j] = adamBeta1*m[j] + (1.0-adamBeta1)*g
			v[j] = adamBeta2*v[j] + (1.0-adamBeta2)*g*g
			mHat := m[j] / bc1
			vHat := v[j] / bc2
			x[j] -= r.cfg.LR * (mHat/(math.Sqrt(vHat)+adamEpsilon) + r.cfg.WeightDecay*x[j])
		}
		r.setParamVector(x)
	}

	// Report the loss the final parameter state actually achieves.
	return r.evalLoss(groups, rows, variants, labels, pairForm, nil)
}
