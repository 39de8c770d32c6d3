package reporter

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

// FitResult records one fit call: the committed loss, which restart produced
// it, and the loss every restart achieved.
type FitResult struct {
	// RunID uniquely identifies this fit call.
	RunID string
	// BestLoss is the loss of the committed parameter state.
	BestLoss float64
	// BestRestart is the index of the winning restart.
	BestRestart int
	// RestartLosses holds the final loss of every restart in order.
	RestartLosses []float64
	// Elapsed is the wall-clock duration of the fit.
	Elapsed time.Duration
}

// Fit trains the reporter on a batch of grouped hidden states, running the
// configured number of independent restarts and committing the parameters of
// the best one. It returns the best loss.
//
// Fit blocks for the whole search; the reporter's parameters are mutated in
// place throughout and must not be read concurrently.
func (r *Reporter) Fit(batch *Batch, labels []float64) (float64, error) {
	result, err := r.FitDetailed(batch, labels)
	if err != nil {
		return 0, err
	}
	return result.BestLoss, nil
}

// FitDetailed is Fit returning the full per-restart record.
func (r *Reporter) FitDetailed(batch *Batch, labels []float64) (*FitResult, error) {
	return r.fitDetailed(batch, labels, false)
}

// fitDetailed runs the restart search. pairForm selects the legacy averaged
// supervised consensus used by FitPair; the unsupervised terms are identical
// either way.
func (r *Reporter) fitDetailed(batch *Batch, labels []float64, pairForm bool) (*FitResult, error) {
	start := time.Now()
	if batch.Features != r.inFeatures {
		return nil, fmt.Errorf("%w: batch has %d features, reporter wants %d",
			ErrInvalidArgument, batch.Features, r.inFeatures)
	}
	if batch.Groups < 2 {
		return nil, fmt.Errorf("%w: need at least 2 contrast groups, got %d",
			ErrInvalidArgument, batch.Groups)
	}

	// One normalizer per contrast group, refit on every call.
	groups := batch.Unbind()
	if len(r.norms) != len(groups) {
		r.norms = make([]*Normalizer, len(groups))
		for i := range r.norms {
			r.norms[i] = NewNormalizer(r.inFeatures, r.cfg.Normalization == "meanonly")
		}
	}
	normalized := make([]*mat.Dense, len(groups))
	for i, g := range groups {
		if err := r.norms[i].Fit(g); err != nil {
			return nil, err
		}
		ng, err := r.norms[i].Apply(g)
		if err != nil {
			return nil, err
		}
		normalized[i] = ng.Matrix()
	}

	// Trip argument errors before spending any optimization budget.
	if labels == nil && r.cfg.SupervisedWeight > 0 {
		return nil, fmt.Errorf("%w: supervised_weight > 0 but no labels provided", ErrInvalidArgument)
	}
	if labels != nil && len(labels) > batch.Rows {
		return nil, fmt.Errorf("%w: %d labels exceed the %d rows per group",
			ErrInvalidArgument, len(labels), batch.Rows)
	}

	best := math.Inf(1)
	bestRestart := -1
	var bestState map[string][]float64
	restartLosses := make([]float64, 0, r.cfg.NumTries)

	for try := 0; try < r.cfg.NumTries; try++ {
		if err := r.resetParameters(); err != nil {
			return nil, err
		}
		if r.cfg.Init == "pca" {
			if err := r.seedFromPCA(normalized, try); err != nil {
				return nil, err
			}
		}

		var loss float64
		var err error
		switch r.cfg.Optimizer {
		case "adam":
			loss, err = r.trainAdam(normalized, batch.Rows, batch.Variants, labels, pairForm)
		case "lbfgs":
			loss, err = r.trainLBFGS(normalized, batch.Rows, batch.Variants, labels, pairForm)
		default:
			return nil, fmt.Errorf("%w: unsupported optimizer %q", ErrInvalidConfig, r.cfg.Optimizer)
		}
		if err != nil {
			return nil, err
		}
		restartLosses = append(restartLosses, loss)
		if r.cfg.Verbose {
			fmt.Printf("restart %d/%d: loss %.6f\n", try+1, r.cfg.NumTries, loss)
		}

		if loss < best {
			best = loss
			bestRestart = try
			bestState = r.namedParams()
		}
	}

	if math.IsInf(best, 0) || math.IsNaN(best) {
		return nil, fmt.Errorf("%w: best loss across %d restarts is %v",
			ErrNotFinite, r.cfg.NumTries, best)
	}
	r.loadNamed(bestState)

	return &FitResult{
		RunID:         uuid.New().String(),
		BestLoss:      best,
		BestRestart:   bestRestart,
		RestartLosses: restartLosses,
		Elapsed:       time.Since(start),
	}, nil
}

// FitPair fits on a legacy two-group contrast pair. It refreshes the
// projector's statistics with group-identity pseudo-labels the way the old
// path did, then runs the restart search with the averaged two-group
// supervised consensus instead of the element-wise maximum.
//
// Deprecated: assemble a two-group Batch and call Fit.
func (r *Reporter) FitPair(neg, pos *Group, labels []float64) (float64, error) {
	if neg.Features != pos.Features || neg.Rows != pos.Rows || neg.Variants != pos.Variants {
		return 0, fmt.Errorf("%w: contrast pair shapes differ", ErrInvalidArgument)
	}
	rows := neg.Rows * neg.Variants
	zeros := make([]float64, rows)
	ones := make([]float64, rows)
	for i := range ones {
		ones[i] = 1.0
	}
	r.proj.Update(neg.Matrix(), zeros)
	r.proj.Update(pos.Matrix(), ones)

	data := make([]float64, 0, 2*len(neg.Data))
	for i := 0; i < rows; i++ {
		data = append(data, neg.Data[i*neg.Features:(i+1)*neg.Features]...)
		data = append(data, pos.Data[i*pos.Features:(i+1)*pos.Features]...)
	}
	batch, err := NewBatch(data, neg.Rows, neg.Variants, 2, neg.Features)
	if err != nil {
		return 0, err
	}
	result, err := r.fitDetailed(batch, labels, true)
	if err != nil {
		return 0, err
	}
	return result.BestLoss, nil
}

// seedFromPCA overwrites the sole affine layer's weight row with a principal
// component of the signed group sum: group 0 minus the remaining groups,
// flattened over rows and variants. The restart index picks the component:
// a truncated decomposition of rank try+1 keeps its last retained direction.
func (r *Reporter) seedFromPCA(normalized []*mat.Dense, try int) error {
	if len(r.probe.layers) != 1 {
		return fmt.Errorf("%w: pca init requires a single-layer probe", ErrInvalidConfig)
	}

	rows, d := normalized[0].Dims()
	diffs := mat.NewDense(rows, d, nil)
	diffs.Copy(normalized[0])
	for i := 1; i < len(normalized); i++ {
		diffs.Sub(diffs, normalized[i])
	}

	// Center columns, then take right singular vectors.
	for j := 0; j < d; j++ {
		mean := 0.0
		for i := 0; i < rows; i++ {
			mean += diffs.At(i, j)
		}
		mean /= float64(rows)
		for i := 0; i < rows; i++ {
			diffs.Set(i, j, diffs.At(i, j)-mean)
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(diffs, mat.SVDThin); !ok {
		return fmt.Errorf("%w: svd failed during pca init", ErrNotFinite)
	}
	var v mat.Dense
	svd.VTo(&v)
	_, cols := v.Dims()
	comp := try
	if comp >= cols {
		comp = cols - 1
	}

	layer := r.probe.layers[0]
	for j := 0; j < layer.in; j++ {
		layer.weight[j] = v.At(j, comp)
	}
	return nil
}
