package reporter

import (
	"fmt"
	"math"
	"math/rand"
)

// resetParameters reinitializes the probe for one restart according to the
// configured scheme. The "pca" scheme is seeded by the fit orchestrator
// after this call and is a no-op here.
func (r *Reporter) resetParameters() error {
	switch r.cfg.Init {
	case "default":
		r.initDefault()
	case "zero":
		v := r.paramVector()
		for i := range v {
			v[i] = 0
		}
		r.setParamVector(v)
	case "spherical":
		return r.initSpherical()
	case "pca":
		// Seeded by the orchestrator from a principal component.
	default:
		return fmt.Errorf("%w: unknown init scheme %q", ErrInvalidConfig, r.cfg.Init)
	}
	return nil
}

// initDefault resets every affine layer to its standard fan-in random
// initialization. Weights draw from a normal with stddev sqrt(2/fanIn);
// biases reset to zero. Platt parameters are left untouched.
func (r *Reporter) initDefault() {
	for _, l := range r.probe.layers {
		stddev := math.Sqrt(2.0 / float64(l.in))
		for i := range l.weight {
			l.weight[i] = rand.NormFloat64() * stddev
		}
		for i := range l.bias {
			l.bias[i] = 0
		}
	}
}

// initSpherical draws an (inFeatures+1)-dimensional Gaussian vector,
// normalizes it to unit norm, and assigns the first inFeatures components
// as the weight row and the last as the bias. This samples a separating
// hyperplane uniformly on the augmented unit sphere, and is only defined
// for a single-layer probe.
func (r *Reporter) initSpherical() error {
	if len(r.probe.layers) != 1 {
		return fmt.Errorf("%w: spherical init requires a single-layer probe", ErrInvalidConfig)
	}
	layer := r.probe.layers[0]
	if layer.bias == nil {
		return fmt.Errorf("%w: spherical init requires a bias term", ErrInvalidConfig)
	}
	theta := make([]float64, layer.in+1)
	norm := 0.0
	for i := range theta {
		theta[i] = rand.NormFloat64()
		norm += theta[i] * theta[i]
	}
	norm = math.Sqrt(norm)
	for i := range theta {
		theta[i] /= norm
	}
	copy(layer.weight, theta[:layer.in])
	layer.bias[0] = theta[layer.in]
	return nil
}
