package reporter

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// bceClamp keeps consensus probabilities away from exact 0 and 1 so the
// cross-entropy and its gradient stay finite.
const bceClamp = 1e-12

// Loss composes the reporter's loss from per-group logits: the weighted
// unsupervised terms plus, when labels are given, the supervised
// cross-entropy blend. This is the canonical multi-group form; the
// supervised consensus is the element-wise maximum across groups.
func (r *Reporter) Loss(logits []*mat.Dense, labels []float64) (float64, error) {
	loss, _, err := r.composeLoss(logits, labels, false)
	return loss, err
}

// LossPair is the legacy two-group form of Loss; its supervised consensus
// averages the first group's probability with the negation of the second.
//
// Deprecated: use Loss with a two-element slice.
func (r *Reporter) LossPair(logit0, logit1 *mat.Dense, labels []float64) (float64, error) {
	loss, _, err := r.composeLoss([]*mat.Dense{logit0, logit1}, labels, true)
	return loss, err
}

// composeLoss returns the blended loss and its gradient with respect to
// every group's logits.
func (r *Reporter) composeLoss(logits []*mat.Dense, labels []float64, pairForm bool) (float64, []*mat.Dense, error) {
	unsup := 0.0
	grads := make([]*mat.Dense, len(logits))
	for i, l := range logits {
		rows, cols := l.Dims()
		grads[i] = mat.NewDense(rows, cols, nil)
	}
	for _, term := range r.cfg.lossTerms {
		fn, ok := r.registry[term.Name]
		if !ok {
			return 0, nil, fmt.Errorf("%w: unknown loss term %q", ErrInvalidConfig, term.Name)
		}
		v, g := fn(logits, term.Coef)
		unsup += v
		for i := range grads {
			grads[i].Add(grads[i], g[i])
		}
	}

	if labels == nil {
		if r.cfg.SupervisedWeight > 0 {
			return 0, nil, fmt.Errorf("%w: supervised_weight > 0 but no labels provided",
				ErrInvalidArgument)
		}
		return unsup, grads, nil
	}

	sup, supGrads, err := r.supervisedLoss(logits, labels, pairForm)
	if err != nil {
		return 0, nil, err
	}
	alpha := r.cfg.SupervisedWeight
	total := alpha*sup + (1.0-alpha)*unsup
	for i := range grads {
		grads[i].Scale(1.0-alpha, grads[i])
		supGrads[i].Scale(alpha, supGrads[i])
		grads[i].Add(grads[i], supGrads[i])
	}
	return total, grads, nil
}

// supervisedLoss forms a consensus prediction per row, broadcasts the labels
// across the variant dimension, and computes mean binary cross-entropy.
func (r *Reporter) supervisedLoss(logits []*mat.Dense, labels []float64, pairForm bool) (float64, []*mat.Dense, error) {
	rows, variants := logits[0].Dims()
	n := len(labels)
	if n > rows {
		return 0, nil, fmt.Errorf("%w: %d labels exceed the %d rows per group",
			ErrInvalidArgument, n, rows)
	}

	grads := make([]*mat.Dense, len(logits))
	for i := range logits {
		grads[i] = mat.NewDense(rows, variants, nil)
	}

	count := float64(n * variants)
	loss := 0.0
	for a := 0; a < n; a++ {
		for b := 0; b < variants; b++ {
			var pred float64
			var argmax int
			if pairForm {
				p0 := sigmoid(logits[0].At(a, b))
				p1 := sigmoid(logits[1].At(a, b))
				pred = 0.5 * (p0 + 1.0 - p1)
			} else {
				argmax = 0
				pred = sigmoid(logits[0].At(a, b))
				for i := 1; i < len(logits); i++ {
					if p := sigmoid(logits[i].At(a, b)); p > pred {
						pred = p
						argmax = i
					}
				}
			}
			q := math.Min(math.Max(pred, bceClamp), 1.0-bceClamp)
			y := labels[a]
			loss += -(y*math.Log(q) + (1.0-y)*math.Log(1.0-q)) / count

			dq := (q - y) / (q * (1.0 - q)) / count
			if pairForm {
				p0 := sigmoid(logits[0].At(a, b))
				p1 := sigmoid(logits[1].At(a, b))
				grads[0].Set(a, b, grads[0].At(a, b)+dq*0.5*p0*(1.0-p0))
				grads[1].Set(a, b, grads[1].At(a, b)-dq*0.5*p1*(1.0-p1))
			} else {
				p := sigmoid(logits[argmax].At(a, b))
				grads[argmax].Set(a, b, grads[argmax].At(a, b)+dq*p*(1.0-p))
			}
		}
	}
	return loss, grads, nil
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

// evalLoss runs the forward pass on every normalized group matrix, composes
// the loss, and, when grad is non-nil, backpropagates into the flat
// parameter-gradient vector.
func (r *Reporter) evalLoss(groups []*mat.Dense, rows, variants int, labels []float64, pairForm bool, grad []float64) (float64, error) {
	logits := make([]*mat.Dense, len(groups))
	caches := make([]*probeCache, len(groups))
	for i, g := range groups {
		logits[i], caches[i] = r.forwardLogits(g, rows, variants)
	}
	loss, dLogits, err := r.composeLoss(logits, labels, pairForm)
	if err != nil {
		return 0, err
	}
	if grad == nil {
		return loss, nil
	}

	acc := newProbeGrads(r.probe)
	flat := make([]float64, rows*variants)
	for i := range groups {
		for a := 0; a < rows; a++ {
			for b := 0; b < variants; b++ {
				flat[a*variants+b] = dLogits[i].At(a, b)
			}
		}
		r.probe.backward(caches[i], flat, acc)
	}
	r.gradVector(acc, grad)
	return loss, nil
}
