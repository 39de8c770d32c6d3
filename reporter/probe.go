package reporter

import (
	"gonum.org/v1/gonum/mat"
)

// affineLayer is one fully-connected layer of the probe. Weights are stored
// row-major as (in x out); bias is nil when the config disables it.
type affineLayer struct {
	in, out int
	weight  []float64
	bias    []float64
	// stackIndex is the layer's position in the sequential stack
	// (LayerNorm and activations occupy their own slots), used for
	// parameter naming in snapshots and saved state.
	stackIndex int
}

func (l *affineLayer) weightMatrix() *mat.Dense {
	return mat.NewDense(l.in, l.out, l.weight)
}

// Probe is the feed-forward stack producing one scalar per input row:
// optional non-affine LayerNorm, then affine layers with the activation
// between consecutive layers and a single output unit at the end.
type Probe struct {
	inFeatures int
	hiddenSize int
	act        ActivationKind
	preLN      bool
	layers     []*affineLayer
}

func newProbe(inFeatures, numLayers, hiddenSize int, act ActivationKind, bias, preLN bool) *Probe {
	if hiddenSize == 0 {
		hiddenSize = 4 * inFeatures / 3
	}
	p := &Probe{
		inFeatures: inFeatures,
		hiddenSize: hiddenSize,
		act:        act,
		preLN:      preLN,
		layers:     make([]*affineLayer, numLayers),
	}
	offset := 0
	if preLN {
		offset = 1
	}
	for i := 0; i < numLayers; i++ {
		in := inFeatures
		if i > 0 {
			in = hiddenSize
		}
		out := hiddenSize
		if i == numLayers-1 {
			out = 1
		}
		layer := &affineLayer{
			in:         in,
			out:        out,
			weight:     make([]float64, in*out),
			stackIndex: offset + 2*i,
		}
		if bias {
			layer.bias = make([]float64, out)
		}
		p.layers[i] = layer
	}
	return p
}

// probeCache holds everything the backward pass needs from one forward pass
// on one group.
type probeCache struct {
	inputs  []*mat.Dense // input to each affine layer
	preacts []*mat.Dense // pre-activation output of each affine layer
}

// forward maps a (rows x inFeatures) matrix to one logit per row.
func (p *Probe) forward(x *mat.Dense) ([]float64, *probeCache) {
	cache := &probeCache{
		inputs:  make([]*mat.Dense, len(p.layers)),
		preacts: make([]*mat.Dense, len(p.layers)),
	}
	z := x
	if p.preLN {
		z = layerNormForward(z)
	}
	for i, layer := range p.layers {
		cache.inputs[i] = z
		var pre mat.Dense
		pre.Mul(z, layer.weightMatrix())
		if layer.bias != nil {
			r, c := pre.Dims()
			for a := 0; a < r; a++ {
				for b := 0; b < c; b++ {
					pre.Set(a, b, pre.At(a, b)+layer.bias[b])
				}
			}
		}
		cache.preacts[i] = &pre
		if i < len(p.layers)-1 {
			r, c := pre.Dims()
			post := mat.NewDense(r, c, nil)
			for a := 0; a < r; a++ {
				for b := 0; b < c; b++ {
					post.Set(a, b, activate(pre.At(a, b), p.act))
				}
			}
			z = post
		}
	}
	final := cache.preacts[len(p.layers)-1]
	rows, _ := final.Dims()
	logits := make([]float64, rows)
	for i := 0; i < rows; i++ {
		logits[i] = final.At(i, 0)
	}
	return logits, cache
}

// probeGrads accumulates parameter gradients across groups, parallel to the
// probe's layers.
type probeGrads struct {
	weight [][]float64
	bias   [][]float64
}

func newProbeGrads(p *Probe) *probeGrads {
	g := &probeGrads{
		weight: make([][]float64, len(p.layers)),
		bias:   make([][]float64, len(p.layers)),
	}
	for i, layer := range p.layers {
		g.weight[i] = make([]float64, len(layer.weight))
		if layer.bias != nil {
			g.bias[i] = make([]float64, len(layer.bias))
		}
	}
	return g
}

// backward accumulates parameter gradients for one group given the gradient
// of the loss with respect to that group's logits. The LayerNorm and the
// projector in front of the stack carry no trainable parameters, so the
// chain stops after the first affine layer.
func (p *Probe) backward(cache *probeCache, dLogits []float64, grads *probeGrads) {
	d := mat.NewDense(len(dLogits), 1, nil)
	for i, v := range dLogits {
		d.Set(i, 0, v)
	}
	for i := len(p.layers) - 1; i >= 0; i-- {
		layer := p.layers[i]

		// dW = input^T * d
		var dW mat.Dense
		dW.Mul(cache.inputs[i].T(), d)
		dwData := grads.weight[i]
		for a := 0; a < layer.in; a++ {
			for b := 0; b < layer.out; b++ {
				dwData[a*layer.out+b] += dW.At(a, b)
			}
		}
		if layer.bias != nil {
			r, _ := d.Dims()
			for b := 0; b < layer.out; b++ {
				sum := 0.0
				for a := 0; a < r; a++ {
					sum += d.At(a, b)
				}
				grads.bias[i][b] += sum
			}
		}
		if i == 0 {
			break
		}

		// dInput = d * W^T, then through the previous activation.
		var dIn mat.Dense
		dIn.Mul(d, layer.weightMatrix().T())
		r, c := dIn.Dims()
		prev := cache.preacts[i-1]
		next := mat.NewDense(r, c, nil)
		for a := 0; a < r; a++ {
			for b := 0; b < c; b++ {
				next.Set(a, b, dIn.At(a, b)*activateDerivative(prev.At(a, b), p.act))
			}
		}
		d = next
	}
}
