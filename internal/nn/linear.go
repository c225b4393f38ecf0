package nn

import (
	"fmt"

	"github.com/born-ml/chain/internal/parallel"
)

// Linear implements a fully connected layer over dense input.
//
// Performs the transformation: y[o] = b[o] + Σ_i W[o, i] * x[i]
// where:
//   - x is the input vector with length in_features
//   - W is the weight matrix with shape [out_features, in_features], row-major
//   - b is the bias vector with length out_features
//   - y is the output vector with length out_features
//
// Backward accumulates dW and db and writes dx. Step applies the mean
// gradient over the batch and clears the accumulators.
//
// Example:
//
//	layer := nn.NewLinear(128, 2, nn.NewUniform(42, nn.DefaultInitScale))
//	out := layer.NewOutput()
//	layer.Forward(hidden, out)
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter // [out_features, in_features]
	bias        *Parameter // [out_features]
	par         parallel.Config
}

// NewLinear creates a new Linear layer.
//
// Weights are filled by init. Biases start at zero.
//
// Parameters:
//   - inFeatures: Number of input features
//   - outFeatures: Number of output features
//   - init: Weight initializer
//
// Returns a new Linear layer.
func NewLinear(inFeatures, outFeatures int, init Initializer) *Linear {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("NewLinear: dimensions must be positive, got %d -> %d", inFeatures, outFeatures))
	}

	weight := NewParameter("weight", []int{outFeatures, inFeatures})
	init.Init(weight.Data(), inFeatures, outFeatures)

	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      weight,
		bias:        NewParameter("bias", []int{outFeatures}),
		par:         parallel.DefaultConfig(),
	}
}

// SetParallel replaces the fan-out configuration used by the kernels.
func (l *Linear) SetParallel(cfg parallel.Config) {
	l.par = cfg
}

// InputKind returns KindDense.
func (l *Linear) InputKind() Kind { return KindDense }

// OutputKind returns KindDense.
func (l *Linear) OutputKind() Kind { return KindDense }

// InSize returns the number of input features.
func (l *Linear) InSize() int { return l.inFeatures }

// OutSize returns the number of output features.
func (l *Linear) OutSize() int { return l.outFeatures }

// NewOutput allocates a zero output vector.
func (l *Linear) NewOutput() Dense { return NewDense(l.outFeatures) }

// Forward computes y = W x + b. O(in_features * out_features).
func (l *Linear) Forward(input Buffer, output Dense) {
	x := l.denseInput("Forward", input)
	if len(output) != l.outFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected output of width %d, got %d", l.outFeatures, len(output)))
	}

	w, b := l.weight.data, l.bias.data
	in := l.inFeatures
	parallel.For(l.outFeatures, func(o int) {
		row := w[o*in : (o+1)*in]
		sum := b[o]
		for i, xi := range x {
			sum += row[i] * xi
		}
		output[o] = sum
	}, l.par)
}

// Backward accumulates parameter gradients and computes the input gradient.
//
//	dW[o, i] += dy[o] * x[i]
//	db[o]    += dy[o]
//	dx[i]     = Σ_o W[o, i] * dy[o]
//
// gradInput may be nil when the caller does not need dx.
func (l *Linear) Backward(gradOutput Dense, input Buffer, gradInput Dense) {
	x := l.denseInput("Backward", input)
	if len(gradOutput) != l.outFeatures {
		panic(fmt.Sprintf("Linear.Backward: expected gradient of width %d, got %d", l.outFeatures, len(gradOutput)))
	}

	w, gw, gb := l.weight.data, l.weight.grad, l.bias.grad
	in := l.inFeatures

	parallel.For(l.outFeatures, func(o int) {
		g := gradOutput[o]
		row := gw[o*in : (o+1)*in]
		for i, xi := range x {
			row[i] += g * xi
		}
		gb[o] += g
	}, l.par)

	if gradInput == nil {
		return
	}
	if len(gradInput) != l.inFeatures {
		panic(fmt.Sprintf("Linear.Backward: expected input gradient of width %d, got %d", l.inFeatures, len(gradInput)))
	}

	out := l.outFeatures
	parallel.For(in, func(i int) {
		var sum float32
		for o := 0; o < out; o++ {
			sum += w[o*in+i] * gradOutput[o]
		}
		gradInput[i] = sum
	}, l.par)
}

// Step applies W -= (lr/batchSize) * dW and b -= (lr/batchSize) * db,
// then zeroes both accumulators.
func (l *Linear) Step(lr float32, batchSize int) {
	scale := stepScale(lr, batchSize)
	l.weight.Step(scale)
	l.bias.Step(scale)
}

// Parameters returns [weight, bias].
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear) Bias() *Parameter {
	return l.bias
}

func (l *Linear) denseInput(method string, input Buffer) Dense {
	x, ok := input.(Dense)
	if !ok {
		panic(fmt.Sprintf("Linear.%s: expected dense input, got %v", method, input.Kind()))
	}
	if len(x) != l.inFeatures {
		panic(fmt.Sprintf("Linear.%s: expected input with %d features, got %d", method, l.inFeatures, len(x)))
	}
	return x
}
