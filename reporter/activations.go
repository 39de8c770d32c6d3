package reporter

import "math"

// ActivationKind identifies the hidden activation between probe layers.
type ActivationKind int

const (
	ActivationGELU ActivationKind = iota
	ActivationReLU
	ActivationSwish
)

func activationFromName(name string) (ActivationKind, bool) {
	switch name {
	case "gelu":
		return ActivationGELU, true
	case "relu":
		return ActivationReLU, true
	case "swish":
		return ActivationSwish, true
	}
	return 0, false
}

const invSqrt2 = 0.7071067811865476

// activate applies the activation function to a pre-activation value.
func activate(v float64, kind ActivationKind) float64 {
	switch kind {
	case ActivationGELU:
		// Exact GELU: v * Phi(v) with the Gaussian CDF.
		return 0.5 * v * (1.0 + math.Erf(v*invSqrt2))
	case ActivationReLU:
		if v < 0 {
			return 0
		}
		return v
	case ActivationSwish:
		return v / (1.0 + math.Exp(-v))
	default:
		return v
	}
}

// activateDerivative computes the derivative with respect to the
// pre-activation value.
func activateDerivative(v float64, kind ActivationKind) float64 {
	switch kind {
	case ActivationGELU:
		// d/dv (v * Phi(v)) = Phi(v) + v * phi(v)
		phi := math.Exp(-0.5*v*v) / math.Sqrt(2.0*math.Pi)
		cdf := 0.5 * (1.0 + math.Erf(v*invSqrt2))
		return cdf + v*phi
	case ActivationReLU:
		if v > 0 {
			return 1.0
		}
		return 0.0
	case ActivationSwish:
		// d/dv (v * sigmoid(v)) = s * (1 + v * (1 - s))
		s := 1.0 / (1.0 + math.Exp(-v))
		return s * (1.0 + v*(1.0-s))
	default:
		return 1.0
	}
}
