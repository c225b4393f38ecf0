// Package nn implements the layer pipeline of the training engine.
//
// This package provides:
//   - Buffer: Dense and Sparse value representations flowing between layers
//   - Layer interface: shape inference, Forward, Backward and Step
//   - Parameter: trainable weights with an eager gradient accumulator
//   - Linear and SparseLinear: affine transforms over dense and sparse input
//   - ReLU and Softmax activations
//   - Chain: a shape-checked linear composition of layers
//   - Losses: CrossEntropyLoss over logits, SoftmaxCrossEntropy over probabilities
//
// Gradients are computed by explicit backpropagation. There is no tape and no
// graph: every layer knows its own derivative and accumulates its parameter
// gradients as a side effect of Backward until the next Step.
package nn

// Layer is the contract every pipeline stage implements.
//
// A layer is constructed once with fixed dimensions. Forward and Backward may
// be called any number of times; Step is called once per batch.
//
// Composition:
//
//	chain, err := nn.NewChain(
//	    nn.NewSparseLinear(89527, 128, init),
//	    nn.NewReLU(128),
//	    nn.NewLinear(128, 2, init),
//	)
type Layer interface {
	// InputKind reports the buffer kind accepted by Forward.
	InputKind() Kind

	// OutputKind reports the buffer kind produced by Forward.
	OutputKind() Kind

	// InSize returns the logical input width.
	InSize() int

	// OutSize returns the output width.
	OutSize() int

	// NewOutput allocates an output buffer of the right shape.
	//
	// This is stateless shape inference and does not depend on any input.
	NewOutput() Dense

	// Forward evaluates the layer on input, writing into output.
	//
	// output must have length OutSize().
	Forward(input Buffer, output Dense)

	// Backward propagates gradOutput back through the layer.
	//
	// input must be the exact buffer given to the matching Forward call.
	// Parameter gradients are accumulated, never overwritten. gradInput is
	// zeroed and filled with dLoss/dInput; a nil gradInput means the caller
	// does not need the input gradient.
	Backward(gradOutput Dense, input Buffer, gradInput Dense)

	// Step applies the accumulated gradients scaled by lr/batchSize and
	// resets the accumulators. Layers without parameters do nothing.
	Step(lr float32, batchSize int)

	// Parameters returns the trainable parameters, or nil.
	Parameters() []*Parameter
}
