// Package classifier provides the one-shot linear classifier used by the
// reporter's separability diagnostic.
package classifier

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Classifier is an L2-regularized logistic-regression model. It is fit once
// from a full batch; there is no incremental update.
type Classifier struct {
	dim    int
	weight []float64
	bias   float64
}

// New returns an untrained classifier over dim input features.
func New(dim int) *Classifier {
	return &Classifier{dim: dim, weight: make([]float64, dim)}
}

// Fit trains the classifier on x (rows x dim) against binary targets y,
// minimizing mean binary cross-entropy plus an l2Penalty/2 * ||w||^2 ridge
// term on the weights (the bias is not penalized).
func (c *Classifier) Fit(x *mat.Dense, y []float64, l2Penalty float64) error {
	n, d := x.Dims()
	if d != c.dim {
		return fmt.Errorf("classifier: input has %d features, want %d", d, c.dim)
	}
	if len(y) != n {
		return fmt.Errorf("classifier: %d targets for %d rows", len(y), n)
	}

	// theta = [w_0 .. w_{d-1}, b]
	objective := func(theta []float64) float64 {
		loss := 0.0
		for i := 0; i < n; i++ {
			z := theta[d]
			for j := 0; j < d; j++ {
				z += x.At(i, j) * theta[j]
			}
			// max(z,0) - z*y + log1p(exp(-|z|)) is the stable form of
			// BCE with logits.
			loss += math.Max(z, 0) - z*y[i] + math.Log1p(math.Exp(-math.Abs(z)))
		}
		loss /= float64(n)
		for j := 0; j < d; j++ {
			loss += l2Penalty * theta[j] * theta[j] / 2.0
		}
		return loss
	}
	gradient := func(grad, theta []float64) {
		for j := range grad {
			grad[j] = 0
		}
		for i := 0; i < n; i++ {
			z := theta[d]
			for j := 0; j < d; j++ {
				z += x.At(i, j) * theta[j]
			}
			dz := (1.0/(1.0+math.Exp(-z)) - y[i]) / float64(n)
			for j := 0; j < d; j++ {
				grad[j] += dz * x.At(i, j)
			}
			grad[d] += dz
		}
		for j := 0; j < d; j++ {
			grad[j] += l2Penalty * theta[j]
		}
	}

	problem := optimize.Problem{Func: objective, Grad: gradient}
	settings := &optimize.Settings{MajorIterations: 1000}
	method := &optimize.LBFGS{Linesearcher: &optimize.MoreThuente{}}

	theta := make([]float64, d+1)
	result, err := optimize.Minimize(problem, theta, settings, method)
	if result == nil {
		return fmt.Errorf("classifier: optimization failed: %w", err)
	}
	copy(c.weight, result.X[:d])
	c.bias = result.X[d]
	return nil
}

// Predict returns the raw decision value for every row of x.
func (c *Classifier) Predict(x *mat.Dense) []float64 {
	n, d := x.Dims()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		z := c.bias
		for j := 0; j < d && j < c.dim; j++ {
			z += x.At(i, j) * c.weight[j]
		}
		out[i] = z
	}
	return out
}
