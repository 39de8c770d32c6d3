package reporter

import (
	"errors"
	"math"
	"testing"
)

func TestNormalizerStandardizes(t *testing.T) {
	g, err := NewGroup([]float64{
		1, 10,
		2, 20,
		3, 30,
		4, 40,
	}, 4, 1, 2)
	if err != nil {
		t.Fatal(err)
	}

	n := NewNormalizer(2, false)
	if err := n.Fit(g); err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	out, err := n.Apply(g)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	for j := 0; j < 2; j++ {
		mean, sq := 0.0, 0.0
		for i := 0; i < 4; i++ {
			v := out.Data[i*2+j]
			mean += v
			sq += v * v
		}
		mean /= 4
		sd := math.Sqrt((sq - 4*mean*mean) / 3)
		if math.Abs(mean) > 1e-12 {
			t.Errorf("feature %d: mean %v after standardization", j, mean)
		}
		if math.Abs(sd-1.0) > 1e-12 {
			t.Errorf("feature %d: stddev %v after standardization", j, sd)
		}
	}
}

func TestNormalizerMeanOnly(t *testing.T) {
	g, _ := NewGroup([]float64{1, 3, 5, 7}, 4, 1, 1)
	n := NewNormalizer(1, true)
	if err := n.Fit(g); err != nil {
		t.Fatal(err)
	}
	out, err := n.Apply(g)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{-3, -1, 1, 3}
	for i, v := range out.Data {
		if math.Abs(v-want[i]) > 1e-12 {
			t.Errorf("row %d: got %v, want %v (centering only)", i, v, want[i])
		}
	}
}

func TestNormalizerApplyBeforeFit(t *testing.T) {
	g, _ := NewGroup([]float64{1, 2}, 2, 1, 1)
	n := NewNormalizer(1, false)
	if _, err := n.Apply(g); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for apply before fit, got %v", err)
	}
}

func TestNormalizerRefitOverwrites(t *testing.T) {
	first, _ := NewGroup([]float64{0, 0, 0, 0}, 4, 1, 1)
	second, _ := NewGroup([]float64{100, 102, 104, 106}, 4, 1, 1)

	n := NewNormalizer(1, false)
	if err := n.Fit(first); err != nil {
		t.Fatal(err)
	}
	if err := n.Fit(second); err != nil {
		t.Fatal(err)
	}
	out, err := n.Apply(second)
	if err != nil {
		t.Fatal(err)
	}
	mean := 0.0
	for _, v := range out.Data {
		mean += v
	}
	if math.Abs(mean/4) > 1e-12 {
		t.Errorf("refit did not overwrite statistics: residual mean %v", mean/4)
	}
}

func TestNormalizerConstantFeature(t *testing.T) {
	g, _ := NewGroup([]float64{5, 5, 5, 5}, 4, 1, 1)
	n := NewNormalizer(1, false)
	if err := n.Fit(g); err != nil {
		t.Fatal(err)
	}
	out, err := n.Apply(g)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range out.Data {
		if v != 0 {
			t.Errorf("row %d: constant feature should normalize to 0, got %v", i, v)
		}
	}
}
