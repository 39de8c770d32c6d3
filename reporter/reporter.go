package reporter

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/ethanedwards/elk/losses"
	"github.com/ethanedwards/elk/projection"
)

// defaultContrastGroups is the group count the normalizers are sized for
// before the first fit; Fit resizes them to match the batch it is given.
const defaultContrastGroups = 4

// Projector is the unit-operator-norm linear map applied at the front of the
// forward pass. Its parameters are held outside the optimization drivers and
// carry no gradients; Update refreshes its statistics.
type Projector interface {
	Apply(x *mat.Dense) *mat.Dense
	Update(x *mat.Dense, y []float64)
	Weight() *mat.Dense
	Dim() int
}

// Reporter maps hidden-state vectors to scalar credences. It owns one
// mutable parameter buffer which every fit call overwrites in place; it is
// not safe for concurrent use during Fit.
type Reporter struct {
	cfg        *ReporterConfig
	inFeatures int
	registry   losses.Registry
	proj       Projector
	probe      *Probe
	norms      []*Normalizer

	// Platt scaling parameters. Constructed, trained over and saved, but
	// deliberately not applied to forward outputs or the loss path; see
	// the package tests that pin this behavior.
	plattBias  float64
	plattScale float64
}

// NewReporter builds a reporter for inFeatures-dimensional hidden states.
// A nil registry selects losses.Default(); a nil projector selects a fresh
// identity-weight projection.SpectralNorm.
func NewReporter(cfg *ReporterConfig, inFeatures int, registry losses.Registry, proj Projector) (*Reporter, error) {
	if inFeatures < 1 {
		return nil, fmt.Errorf("%w: in_features must be positive", ErrInvalidConfig)
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if registry == nil {
		registry = losses.Default()
	}
	if err := cfg.finalize(registry); err != nil {
		return nil, err
	}
	act, _ := activationFromName(cfg.Activation)
	if proj == nil {
		proj = projection.New(inFeatures, 1)
	}
	if proj.Dim() != inFeatures {
		return nil, fmt.Errorf("%w: projector covers %d features, want %d",
			ErrInvalidConfig, proj.Dim(), inFeatures)
	}

	r := &Reporter{
		cfg:        cfg,
		inFeatures: inFeatures,
		registry:   registry,
		proj:       proj,
		probe:      newProbe(inFeatures, cfg.NumLayers, cfg.HiddenSize, act, cfg.Bias, cfg.PreLN),
		norms:      make([]*Normalizer, defaultContrastGroups),
		plattBias:  0.0,
		plattScale: 1.0,
	}
	for i := range r.norms {
		r.norms[i] = NewNormalizer(inFeatures, cfg.Normalization == "meanonly")
	}
	r.initDefault()
	return r, nil
}

// Config returns the reporter's configuration.
func (r *Reporter) Config() *ReporterConfig { return r.cfg }

// InFeatures returns the input dimensionality.
func (r *Reporter) InFeatures() int { return r.inFeatures }

// PlattParams returns the Platt-scaling bias and scale.
func (r *Reporter) PlattParams() (bias, scale float64) {
	return r.plattBias, r.plattScale
}

// Forward returns the credence assigned to every row of x: projector, probe
// stack, squeeze. The same path runs at training and inference time.
func (r *Reporter) Forward(x *mat.Dense) []float64 {
	logits, _ := r.forwardRaw(x)
	return logits
}

func (r *Reporter) forwardRaw(x *mat.Dense) ([]float64, *probeCache) {
	return r.probe.forward(r.proj.Apply(x))
}

// forwardLogits runs the forward pass on a flattened (rows*variants x
// features) matrix and reshapes the logits to (rows x variants).
func (r *Reporter) forwardLogits(x *mat.Dense, rows, variants int) (*mat.Dense, *probeCache) {
	flat, cache := r.forwardRaw(x)
	return mat.NewDense(rows, variants, flat), cache
}

// ----------------------------------------------------------------------------
// Parameter plumbing
// ----------------------------------------------------------------------------

// Flat vector layout: each affine layer's weight then bias in stack order,
// then the Platt bias and scale. Snapshots and the optimization drivers both
// rely on this ordering being deterministic.

func (r *Reporter) numParams() int {
	n := 2 // Platt bias and scale
	for _, l := range r.probe.layers {
		n += len(l.weight) + len(l.bias)
	}
	return n
}

func (r *Reporter) paramVector() []float64 {
	out := make([]float64, 0, r.numParams())
	for _, l := range r.probe.layers {
		out = append(out, l.weight...)
		out = append(out, l.bias...)
	}
	out = append(out, r.plattBias, r.plattScale)
	return out
}

func (r *Reporter) setParamVector(v []float64) {
	off := 0
	for _, l := range r.probe.layers {
		copy(l.weight, v[off:off+len(l.weight)])
		off += len(l.weight)
		copy(l.bias, v[off:off+len(l.bias)])
		off += len(l.bias)
	}
	r.plattBias = v[off]
	r.plattScale = v[off+1]
}

// gradVector flattens accumulated probe gradients into the shared layout.
// The Platt parameters receive no gradient from the loss path.
func (r *Reporter) gradVector(g *probeGrads, dst []float64) {
	off := 0
	for i, l := range r.probe.layers {
		copy(dst[off:off+len(l.weight)], g.weight[i])
		off += len(l.weight)
		copy(dst[off:off+len(l.bias)], g.bias[i])
		off += len(l.bias)
	}
	dst[off] = 0
	dst[off+1] = 0
}

// namedParams deep-copies the full parameter state, keyed the way the saved
// state names them.
func (r *Reporter) namedParams() map[string][]float64 {
	state := make(map[string][]float64)
	for _, l := range r.probe.layers {
		w := make([]float64, len(l.weight))
		copy(w, l.weight)
		state[fmt.Sprintf("probe.%d.weight", l.stackIndex)] = w
		if l.bias != nil {
			b := make([]float64, len(l.bias))
			copy(b, l.bias)
			state[fmt.Sprintf("probe.%d.bias", l.stackIndex)] = b
		}
	}
	state["bias"] = []float64{r.plattBias}
	state["scale"] = []float64{r.plattScale}
	return state
}

// loadNamed restores a snapshot produced by namedParams.
func (r *Reporter) loadNamed(state map[string][]float64) {
	for _, l := range r.probe.layers {
		if w, ok := state[fmt.Sprintf("probe.%d.weight", l.stackIndex)]; ok {
			copy(l.weight, w)
		}
		if b, ok := state[fmt.Sprintf("probe.%d.bias", l.stackIndex)]; ok {
			copy(l.bias, b)
		}
	}
	if b, ok := state["bias"]; ok {
		r.plattBias = b[0]
	}
	if s, ok := state["scale"]; ok {
		r.plattScale = s[0]
	}
}
