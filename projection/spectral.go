// Package projection provides the unit-operator-norm linear map applied at
// the front of a reporter's forward pass.
package projection

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SpectralNorm is a fixed square linear map whose output is divided by a
// power-iteration estimate of its largest singular value, so the map never
// amplifies any direction of the input.
//
// The weight itself is not touched by the optimization drivers; only the
// singular-value statistics refresh through Update.
type SpectralNorm struct {
	dim    int
	weight *mat.Dense
	u      *mat.VecDense
	v      *mat.VecDense
	sigma  float64
	iters  int
}

// New returns a projector over dim features. The map starts as the identity
// with sigma exactly 1.0, so a freshly constructed projector passes inputs
// through unchanged. The power iteration starts from a fixed basis vector;
// construction involves no randomness and two fresh projectors behave
// identically.
func New(dim, powerIterations int) *SpectralNorm {
	if powerIterations < 1 {
		powerIterations = 1
	}
	w := mat.NewDense(dim, dim, nil)
	for i := 0; i < dim; i++ {
		w.Set(i, i, 1.0)
	}
	u := mat.NewVecDense(dim, nil)
	v := mat.NewVecDense(dim, nil)
	u.SetVec(0, 1.0)
	v.SetVec(0, 1.0)

	s := &SpectralNorm{dim: dim, weight: w, u: u, v: v, sigma: 1.0, iters: powerIterations}
	s.refresh()
	return s
}

// Dim returns the feature dimensionality of the map.
func (s *SpectralNorm) Dim() int { return s.dim }

// Apply maps a (rows x dim) matrix through the normalized weight.
func (s *SpectralNorm) Apply(x *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Mul(x, s.weight)
	out.Scale(1.0/s.sigma, &out)
	return &out
}

// Update refreshes the power-iteration statistics. The x and y arguments
// carry the batch the caller is about to project; the current estimator only
// depends on the weight, so they are accepted for interface compatibility
// and ignored.
func (s *SpectralNorm) Update(x *mat.Dense, y []float64) {
	s.refresh()
}

// Weight returns a copy of the raw (unnormalized) weight matrix.
func (s *SpectralNorm) Weight() *mat.Dense {
	return mat.DenseCopyOf(s.weight)
}

// Sigma returns the current estimate of the largest singular value.
func (s *SpectralNorm) Sigma() float64 { return s.sigma }

func (s *SpectralNorm) refresh() {
	for i := 0; i < s.iters; i++ {
		// v <- normalize(W^T u); u <- normalize(W v)
		s.v.MulVec(s.weight.T(), s.u)
		normalize(s.v)
		s.u.MulVec(s.weight, s.v)
		normalize(s.u)
	}
	var wv mat.VecDense
	wv.MulVec(s.weight, s.v)
	s.sigma = mat.Dot(s.u, &wv)
	if s.sigma <= 0 {
		s.sigma = 1.0
	}
}

func normalize(v *mat.VecDense) {
	n := floats.Norm(v.RawVector().Data, 2)
	if n == 0 {
		v.SetVec(0, 1.0)
		return
	}
	v.ScaleVec(1.0/n, v)
}
