package nn

import (
	"fmt"

	"github.com/born-ml/chain/internal/parallel"
)

// SparseLinear is a fully connected layer over sparse input.
//
// It has the same parameters and update rule as Linear, but Forward only
// visits the nonzero entries of the input:
//
//	y[o] = b[o] + Σ_(i,v)∈x W[o, i] * v
//
// which costs O(nnz * out_features) instead of O(in_features * out_features).
// This is what makes a first layer over a bag-of-words vocabulary of ~90k
// words affordable.
//
// SparseLinear never computes an input gradient. It may only be the first
// stage of a Chain; NewChain enforces that, and Backward panics if asked for
// a gradient anyway.
type SparseLinear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter // [out_features, in_features]
	bias        *Parameter // [out_features]
	par         parallel.Config
}

// NewSparseLinear creates a new SparseLinear layer.
//
// Weights are filled by init. Biases start at zero.
func NewSparseLinear(inFeatures, outFeatures int, init Initializer) *SparseLinear {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("NewSparseLinear: dimensions must be positive, got %d -> %d", inFeatures, outFeatures))
	}

	weight := NewParameter("weight", []int{outFeatures, inFeatures})
	init.Init(weight.Data(), inFeatures, outFeatures)

	return &SparseLinear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      weight,
		bias:        NewParameter("bias", []int{outFeatures}),
		par:         parallel.DefaultConfig(),
	}
}

// SetParallel replaces the fan-out configuration used by the kernels.
func (l *SparseLinear) SetParallel(cfg parallel.Config) {
	l.par = cfg
}

// InputKind returns KindSparse.
func (l *SparseLinear) InputKind() Kind { return KindSparse }

// OutputKind returns KindDense.
func (l *SparseLinear) OutputKind() Kind { return KindDense }

// InSize returns the vocabulary width.
func (l *SparseLinear) InSize() int { return l.inFeatures }

// OutSize returns the number of output features.
func (l *SparseLinear) OutSize() int { return l.outFeatures }

// NewOutput allocates a zero output vector.
func (l *SparseLinear) NewOutput() Dense { return NewDense(l.outFeatures) }

// Forward computes y = W x + b over the nonzero entries of x.
func (l *SparseLinear) Forward(input Buffer, output Dense) {
	x := l.sparseInput("Forward", input)
	if len(output) != l.outFeatures {
		panic(fmt.Sprintf("SparseLinear.Forward: expected output of width %d, got %d", l.outFeatures, len(output)))
	}

	w, b := l.weight.data, l.bias.data
	in := l.inFeatures
	parallel.For(l.outFeatures, func(o int) {
		base := o * in
		sum := b[o]
		for _, e := range x {
			sum += w[base+e.Index] * e.Value
		}
		output[o] = sum
	}, l.par)
}

// Backward accumulates dW[o, i] += dy[o] * v for every nonzero (i, v) and
// db[o] += dy[o].
//
// gradInput must be nil: the gradient with respect to a sparse input is not
// defined by this layer.
func (l *SparseLinear) Backward(gradOutput Dense, input Buffer, gradInput Dense) {
	if gradInput != nil {
		panic("SparseLinear.Backward: input gradient requested, but SparseLinear must be the first stage")
	}
	x := l.sparseInput("Backward", input)
	if len(gradOutput) != l.outFeatures {
		panic(fmt.Sprintf("SparseLinear.Backward: expected gradient of width %d, got %d", l.outFeatures, len(gradOutput)))
	}

	gw, gb := l.weight.grad, l.bias.grad
	in := l.inFeatures
	parallel.For(l.outFeatures, func(o int) {
		g := gradOutput[o]
		gb[o] += g
		base := o * in
		for _, e := range x {
			gw[base+e.Index] += g * e.Value
		}
	}, l.par)
}

// Step applies the mean batch gradient and zeroes the accumulators.
//
// The full weight matrix is visited, matching Linear. Entries never touched
// during the batch have a zero gradient and are left unchanged.
func (l *SparseLinear) Step(lr float32, batchSize int) {
	scale := stepScale(lr, batchSize)
	l.weight.Step(scale)
	l.bias.Step(scale)
}

// Parameters returns [weight, bias].
func (l *SparseLinear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *SparseLinear) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter.
func (l *SparseLinear) Bias() *Parameter {
	return l.bias
}

func (l *SparseLinear) sparseInput(method string, input Buffer) Sparse {
	x, ok := input.(Sparse)
	if !ok {
		panic(fmt.Sprintf("SparseLinear.%s: expected sparse input, got %v", method, input.Kind()))
	}
	for _, e := range x {
		if e.Index < 0 || e.Index >= l.inFeatures {
			panic(fmt.Sprintf("SparseLinear.%s: index %d out of range [0, %d)", method, e.Index, l.inFeatures))
		}
	}
	return x
}
