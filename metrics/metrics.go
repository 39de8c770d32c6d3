// Package metrics provides the evaluation metrics consumed by the reporter.
package metrics

import (
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// ROCAUC returns the area under the ROC curve for binary labels (anything
// above 0.5 counts as positive) scored by the given decision values.
func ROCAUC(labels, scores []float64) float64 {
	n := len(scores)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return scores[idx[a]] < scores[idx[b]] })

	sorted := make([]float64, n)
	classes := make([]bool, n)
	for i, j := range idx {
		sorted[i] = scores[j]
		classes[i] = labels[j] > 0.5
	}

	tpr, fpr, _ := stat.ROC(nil, sorted, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}
