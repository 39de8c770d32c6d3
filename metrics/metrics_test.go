package metrics

import (
	"math"
	"testing"
)

func TestROCAUCPerfectSeparation(t *testing.T) {
	labels := []float64{0, 0, 1, 1}
	scores := []float64{0.1, 0.2, 0.8, 0.9}
	if auc := ROCAUC(labels, scores); math.Abs(auc-1.0) > 1e-12 {
		t.Errorf("expected AUROC 1.0, got %v", auc)
	}
}

func TestROCAUCPerfectInversion(t *testing.T) {
	labels := []float64{1, 1, 0, 0}
	scores := []float64{0.1, 0.2, 0.8, 0.9}
	if auc := ROCAUC(labels, scores); math.Abs(auc) > 1e-12 {
		t.Errorf("expected AUROC 0.0, got %v", auc)
	}
}

func TestROCAUCPartialOverlap(t *testing.T) {
	// Positives {2, 4}, negatives {1, 3}: 3 of 4 pairs ranked correctly.
	labels := []float64{0, 1, 0, 1}
	scores := []float64{1, 2, 3, 4}
	if auc := ROCAUC(labels, scores); math.Abs(auc-0.75) > 1e-12 {
		t.Errorf("expected AUROC 0.75, got %v", auc)
	}
}
