package reporter

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Batch holds raw hidden states as a flat row-major slice with shape
// (Rows, Variants, Groups, Features): one row per underlying item, one
// variant per framing of that item, one group per contrast framing.
type Batch struct {
	Data     []float64
	Rows     int
	Variants int
	Groups   int
	Features int
}

// NewBatch wraps data with explicit dimensions, validating the length.
func NewBatch(data []float64, rows, variants, groups, features int) (*Batch, error) {
	if rows < 1 || variants < 1 || groups < 1 || features < 1 {
		return nil, fmt.Errorf("%w: batch dimensions must be positive", ErrInvalidArgument)
	}
	if len(data) != rows*variants*groups*features {
		return nil, fmt.Errorf("%w: batch has %d values, want %d", ErrInvalidArgument,
			len(data), rows*variants*groups*features)
	}
	return &Batch{Data: data, Rows: rows, Variants: variants, Groups: groups, Features: features}, nil
}

// Unbind splits the batch along the group axis into its contrast groups.
func (b *Batch) Unbind() []*Group {
	groups := make([]*Group, b.Groups)
	for k := 0; k < b.Groups; k++ {
		g := &Group{
			Data:     make([]float64, b.Rows*b.Variants*b.Features),
			Rows:     b.Rows,
			Variants: b.Variants,
			Features: b.Features,
		}
		for r := 0; r < b.Rows; r++ {
			for v := 0; v < b.Variants; v++ {
				src := ((r*b.Variants+v)*b.Groups + k) * b.Features
				dst := (r*b.Variants + v) * b.Features
				copy(g.Data[dst:dst+b.Features], b.Data[src:src+b.Features])
			}
		}
		groups[k] = g
	}
	return groups
}

// Group is one contrast group of a batch, shape (Rows, Variants, Features).
type Group struct {
	Data     []float64
	Rows     int
	Variants int
	Features int
}

// NewGroup wraps data with explicit dimensions, validating the length.
func NewGroup(data []float64, rows, variants, features int) (*Group, error) {
	if len(data) != rows*variants*features {
		return nil, fmt.Errorf("%w: group has %d values, want %d", ErrInvalidArgument,
			len(data), rows*variants*features)
	}
	return &Group{Data: data, Rows: rows, Variants: variants, Features: features}, nil
}

// Matrix views the group as a (Rows*Variants x Features) matrix sharing the
// underlying data.
func (g *Group) Matrix() *mat.Dense {
	return mat.NewDense(g.Rows*g.Variants, g.Features, g.Data)
}
