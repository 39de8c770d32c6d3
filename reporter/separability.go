package reporter

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/ethanedwards/elk/classifier"
	"github.com/ethanedwards/elk/metrics"
)

// CheckSeparability measures how linearly separable the two projected
// representations of a contrast pair are. It fits a one-shot linear
// classifier on the training pair labeled by group identity (0/1) with the
// reporter's weight decay, then returns that classifier's AUROC on the
// validation pair.
//
// When the classifier's predictions are identically zero, AUROC is undefined
// and 0.5 is returned instead: the limiting value as the decision weights
// vanish.
func (r *Reporter) CheckSeparability(train0, train1, val0, val1 *Group) (float64, error) {
	for _, g := range []*Group{train0, train1, val0, val1} {
		if g.Features != r.inFeatures {
			return 0, fmt.Errorf("%w: group has %d features, reporter wants %d",
				ErrInvalidArgument, g.Features, r.inFeatures)
		}
	}

	trainX, trainY := r.pseudoLabeled(train0, train1)
	valX, valY := r.pseudoLabeled(val0, val1)

	clf := classifier.New(r.inFeatures)
	if err := clf.Fit(trainX, trainY, r.cfg.WeightDecay); err != nil {
		return 0, err
	}
	preds := clf.Predict(valX)

	allZero := true
	for _, p := range preds {
		if p != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return 0.5, nil
	}
	return metrics.ROCAUC(valY, preds), nil
}

// pseudoLabeled projects both groups and stacks them into one matrix with
// group-identity pseudo-labels.
func (r *Reporter) pseudoLabeled(g0, g1 *Group) (*mat.Dense, []float64) {
	p0 := r.proj.Apply(g0.Matrix())
	p1 := r.proj.Apply(g1.Matrix())
	n0, d := p0.Dims()
	n1, _ := p1.Dims()

	x := mat.NewDense(n0+n1, d, nil)
	y := make([]float64, n0+n1)
	for i := 0; i < n0; i++ {
		for j := 0; j < d; j++ {
			x.Set(i, j, p0.At(i, j))
		}
	}
	for i := 0; i < n1; i++ {
		for j := 0; j < d; j++ {
			x.Set(n0+i, j, p1.At(i, j))
		}
		y[n0+i] = 1.0
	}
	return x, y
}
