package reporter

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// minScale floors the per-feature scale so constant features do not divide
// by zero.
const minScale = 1e-12

// Normalizer holds per-feature mean and scale statistics for one contrast
// group. Fit computes them from a group's raw data; Apply standardizes with
// them. Re-fitting overwrites prior statistics.
type Normalizer struct {
	mean     []float64
	scale    []float64
	meanOnly bool
	fitted   bool
}

// NewNormalizer returns an unfitted normalizer over dim features. When
// meanOnly is set, Apply centers without rescaling.
func NewNormalizer(dim int, meanOnly bool) *Normalizer {
	return &Normalizer{
		mean:     make([]float64, dim),
		scale:    make([]float64, dim),
		meanOnly: meanOnly,
	}
}

// Fit computes the statistics from every row of the group.
func (n *Normalizer) Fit(g *Group) error {
	if g.Features != len(n.mean) {
		return fmt.Errorf("%w: group has %d features, normalizer wants %d",
			ErrInvalidArgument, g.Features, len(n.mean))
	}
	rows := g.Rows * g.Variants
	col := make([]float64, rows)
	for j := 0; j < g.Features; j++ {
		for i := 0; i < rows; i++ {
			col[i] = g.Data[i*g.Features+j]
		}
		n.mean[j] = stat.Mean(col, nil)
		if n.meanOnly {
			n.scale[j] = 1.0
			continue
		}
		sd := stat.StdDev(col, nil)
		if sd < minScale {
			sd = 1.0
		}
		n.scale[j] = sd
	}
	n.fitted = true
	return nil
}

// Apply standardizes the group with the fitted statistics, returning a new
// group. The receiver must have been fit first.
func (n *Normalizer) Apply(g *Group) (*Group, error) {
	if !n.fitted {
		return nil, fmt.Errorf("%w: normalizer applied before fit", ErrInvalidArgument)
	}
	if g.Features != len(n.mean) {
		return nil, fmt.Errorf("%w: group has %d features, normalizer wants %d",
			ErrInvalidArgument, g.Features, len(n.mean))
	}
	out := &Group{
		Data:     make([]float64, len(g.Data)),
		Rows:     g.Rows,
		Variants: g.Variants,
		Features: g.Features,
	}
	rows := g.Rows * g.Variants
	for i := 0; i < rows; i++ {
		for j := 0; j < g.Features; j++ {
			out.Data[i*g.Features+j] = (g.Data[i*g.Features+j] - n.mean[j]) / n.scale[j]
		}
	}
	return out, nil
}
