package reporter

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const layerNormEps = 1e-5

// layerNormForward normalizes every row of x to zero mean and unit variance
// across the feature dimension. No learnable scale or shift, so nothing in
// front of the first affine layer ever needs a backward pass.
func layerNormForward(x *mat.Dense) *mat.Dense {
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		mean := 0.0
		for j := 0; j < c; j++ {
			mean += x.At(i, j)
		}
		mean /= float64(c)
		variance := 0.0
		for j := 0; j < c; j++ {
			d := x.At(i, j) - mean
			variance += d * d
		}
		variance /= float64(c)
		inv := 1.0 / math.Sqrt(variance+layerNormEps)
		for j := 0; j < c; j++ {
			out.Set(i, j, (x.At(i, j)-mean)*inv)
		}
	}
	return out
}
