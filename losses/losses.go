// Package losses provides the registry of consistency loss terms used to
// train a reporter without ground-truth labels.
//
// Each term is a pure function from the per-group reporter logits to a
// weighted scalar, and also returns the gradient of that scalar with respect
// to every logit entry so the optimization drivers can run reverse-mode
// updates without an autodiff framework.
//
// Logits are (rows x variants) matrices, one per contrast group. Every term
// expects at least two groups; with fewer there is no consistency to measure
// and the term returns NaN, which the fit orchestrator surfaces as a
// numerical failure.
package losses

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Term computes one weighted loss term from per-group logits. It returns the
// scalar value and the gradient with respect to each logits matrix.
type Term func(logits []*mat.Dense, coef float64) (float64, []*mat.Dense)

// Registry maps a loss-term name to its implementation.
type Registry map[string]Term

// Default returns the standard registry.
func Default() Registry {
	return Registry{
		"ccs":            CCS,
		"prompt_var":     PromptVar,
		"ccs_prompt_var": CCSPromptVar,
	}
}

// sigmoids applies the logistic function elementwise to every group.
func sigmoids(logits []*mat.Dense) []*mat.Dense {
	ps := make([]*mat.Dense, len(logits))
	for i, l := range logits {
		r, c := l.Dims()
		p := mat.NewDense(r, c, nil)
		for a := 0; a < r; a++ {
			for b := 0; b < c; b++ {
				p.Set(a, b, sigmoid(l.At(a, b)))
			}
		}
		ps[i] = p
	}
	return ps
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

// zeroLike allocates one zero matrix per group, matching shapes.
func zeroLike(logits []*mat.Dense) []*mat.Dense {
	out := make([]*mat.Dense, len(logits))
	for i, l := range logits {
		r, c := l.Dims()
		out[i] = mat.NewDense(r, c, nil)
	}
	return out
}

// chain converts gradients with respect to probabilities into gradients with
// respect to logits, scaled by coef: dL/dz = coef * dL/dp * p * (1-p).
func chain(gradP, ps []*mat.Dense, coef float64) []*mat.Dense {
	out := make([]*mat.Dense, len(gradP))
	for i := range gradP {
		r, c := gradP[i].Dims()
		g := mat.NewDense(r, c, nil)
		for a := 0; a < r; a++ {
			for b := 0; b < c; b++ {
				p := ps[i].At(a, b)
				g.Set(a, b, coef*gradP[i].At(a, b)*p*(1.0-p))
			}
		}
		out[i] = g
	}
	return out
}

// CCS is the contrast-consistent search loss: a consistency term that wants
// the first group's probability to agree with the negation of every other
// group, plus a confidence term that penalizes the squared minimum
// probability across groups.
func CCS(logits []*mat.Dense, coef float64) (float64, []*mat.Dense) {
	if len(logits) < 2 {
		return math.NaN(), zeroLike(logits)
	}
	ps := sigmoids(logits)
	gradP := zeroLike(logits)

	r, c := ps[0].Dims()
	m := float64(r * c)
	den := float64(len(ps)-1) * m

	consistency := 0.0
	for i := 1; i < len(ps); i++ {
		for a := 0; a < r; a++ {
			for b := 0; b < c; b++ {
				e := ps[0].At(a, b) + ps[i].At(a, b) - 1.0
				consistency += e * e / den
				gradP[0].Set(a, b, gradP[0].At(a, b)+2.0*e/den)
				gradP[i].Set(a, b, gradP[i].At(a, b)+2.0*e/den)
			}
		}
	}

	confidence := 0.0
	for a := 0; a < r; a++ {
		for b := 0; b < c; b++ {
			minIdx := 0
			minP := ps[0].At(a, b)
			for i := 1; i < len(ps); i++ {
				if p := ps[i].At(a, b); p < minP {
					minP = p
					minIdx = i
				}
			}
			confidence += minP * minP / m
			gradP[minIdx].Set(a, b, gradP[minIdx].At(a, b)+2.0*minP/m)
		}
	}

	return coef * (consistency + confidence), chain(gradP, ps, coef)
}

// PromptVar penalizes the variance of each group's probabilities across the
// variant dimension, averaged over rows and groups. Low variance means the
// reporter answers consistently across framings of the same item.
func PromptVar(logits []*mat.Dense, coef float64) (float64, []*mat.Dense) {
	if len(logits) < 2 {
		return math.NaN(), zeroLike(logits)
	}
	ps := sigmoids(logits)
	gradP := zeroLike(logits)

	r, c := ps[0].Dims()
	den := float64(len(ps)) * float64(r)

	total := 0.0
	for i := range ps {
		for a := 0; a < r; a++ {
			mean := 0.0
			for b := 0; b < c; b++ {
				mean += ps[i].At(a, b)
			}
			mean /= float64(c)
			for b := 0; b < c; b++ {
				d := ps[i].At(a, b) - mean
				total += d * d / float64(c) / den
				gradP[i].Set(a, b, gradP[i].At(a, b)+2.0*d/float64(c)/den)
			}
		}
	}

	return coef * total, chain(gradP, ps, coef)
}

// CCSPromptVar is the sum of CCS and PromptVar under a single coefficient.
func CCSPromptVar(logits []*mat.Dense, coef float64) (float64, []*mat.Dense) {
	ccsLoss, ccsGrad := CCS(logits, coef)
	pvLoss, pvGrad := PromptVar(logits, coef)
	for i := range ccsGrad {
		ccsGrad[i].Add(ccsGrad[i], pvGrad[i])
	}
	return ccsLoss + pvLoss, ccsGrad
}
