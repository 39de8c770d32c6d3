package reporter

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func pairLogits(rows, variants int) []*mat.Dense {
	l0 := mat.NewDense(rows, variants, nil)
	l1 := mat.NewDense(rows, variants, nil)
	for a := 0; a < rows; a++ {
		for b := 0; b < variants; b++ {
			l0.Set(a, b, 0.3*float64(a)-0.2*float64(b))
			l1.Set(a, b, -0.4*float64(a)+0.1*float64(b)+0.05)
		}
	}
	return []*mat.Dense{l0, l1}
}

func TestLossRequiresLabelsWhenSupervised(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SupervisedWeight = 0.5
	r, err := NewReporter(cfg, 4, nil, nil)
	if err != nil {
		t.Fatalf("NewReporter failed: %v", err)
	}

	shapes := [][2]int{{1, 1}, {3, 1}, {2, 4}, {8, 2}}
	for _, s := range shapes {
		logits := pairLogits(s[0], s[1])
		if _, err := r.Loss(logits, nil); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("shape %v: expected ErrInvalidArgument without labels, got %v", s, err)
		}
		if _, err := r.LossPair(logits[0], logits[1], nil); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("shape %v (pair form): expected ErrInvalidArgument, got %v", s, err)
		}
	}
}

func TestLossRejectsTooManyLabels(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SupervisedWeight = 0.5
	r, err := NewReporter(cfg, 4, nil, nil)
	if err != nil {
		t.Fatalf("NewReporter failed: %v", err)
	}
	logits := pairLogits(3, 2)
	labels := []float64{1, 0, 1, 0} // four labels, three rows
	if _, err := r.Loss(logits, labels); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for excess labels, got %v", err)
	}
}

func TestSupervisedBlend(t *testing.T) {
	logits := pairLogits(4, 2)
	labels := []float64{1, 0, 0, 1}

	lossAt := func(alpha float64) float64 {
		cfg := DefaultConfig()
		cfg.SupervisedWeight = alpha
		r, err := NewReporter(cfg, 4, nil, nil)
		if err != nil {
			t.Fatalf("NewReporter failed: %v", err)
		}
		loss, err := r.Loss(logits, labels)
		if err != nil {
			t.Fatalf("loss failed: %v", err)
		}
		return loss
	}

	unsup := lossAt(0.0)
	sup := lossAt(1.0)
	blended := lossAt(0.25)
	want := 0.25*sup + 0.75*unsup
	if math.Abs(blended-want) > 1e-12 {
		t.Errorf("blend at alpha=0.25: got %.12f, want %.12f", blended, want)
	}
}

func TestLossFewerLabelsThanRows(t *testing.T) {
	// Supervision may cover a prefix of the batch.
	cfg := DefaultConfig()
	cfg.SupervisedWeight = 0.5
	r, err := NewReporter(cfg, 4, nil, nil)
	if err != nil {
		t.Fatalf("NewReporter failed: %v", err)
	}
	logits := pairLogits(5, 2)
	loss, err := r.Loss(logits, []float64{1, 0})
	if err != nil {
		t.Fatalf("loss failed: %v", err)
	}
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		t.Errorf("loss is not finite: %v", loss)
	}
}

func TestPairAndMultiConsensusDiffer(t *testing.T) {
	// The legacy pair form averages p0 with 1-p1; the canonical multi
	// form takes the element-wise max. With asymmetric logits the
	// supervised terms differ.
	cfg := DefaultConfig()
	cfg.SupervisedWeight = 1.0
	r, err := NewReporter(cfg, 4, nil, nil)
	if err != nil {
		t.Fatalf("NewReporter failed: %v", err)
	}
	logits := pairLogits(4, 2)
	labels := []float64{1, 0, 0, 1}

	multi, err := r.Loss(logits, labels)
	if err != nil {
		t.Fatal(err)
	}
	pair, err := r.LossPair(logits[0], logits[1], labels)
	if err != nil {
		t.Fatal(err)
	}
	if multi == pair {
		t.Errorf("expected different consensus semantics, both forms gave %v", multi)
	}
}

func TestWeightedTermSum(t *testing.T) {
	// The composed unsupervised loss is the weighted sum of its terms.
	logits := pairLogits(3, 2)

	lossWith := func(spec []string) float64 {
		cfg := DefaultConfig()
		cfg.Loss = spec
		r, err := NewReporter(cfg, 4, nil, nil)
		if err != nil {
			t.Fatalf("NewReporter failed: %v", err)
		}
		loss, err := r.Loss(logits, nil)
		if err != nil {
			t.Fatalf("loss failed: %v", err)
		}
		return loss
	}

	ccs := lossWith([]string{"1.0*ccs"})
	pv := lossWith([]string{"1.0*prompt_var"})
	combined := lossWith([]string{"2.0*ccs", "0.5*prompt_var"})
	want := 2.0*ccs + 0.5*pv
	if math.Abs(combined-want) > 1e-12 {
		t.Errorf("combined loss %.12f, want %.12f", combined, want)
	}
}
