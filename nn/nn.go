// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import "github.com/born-ml/chain/internal/nn"

// Buffers

// Kind identifies the representation of a Buffer.
type Kind = nn.Kind

// Buffer kinds.
const (
	KindDense  = nn.KindDense
	KindSparse = nn.KindSparse
)

// Buffer is a Dense or Sparse vector.
type Buffer = nn.Buffer

// Dense is a fixed-length vector of float32 values.
type Dense = nn.Dense

// Sparse is a list of (index, value) pairs with implicit zeros elsewhere.
type Sparse = nn.Sparse

// Entry is one nonzero element of a Sparse buffer.
type Entry = nn.Entry

// NewDense allocates a zero-filled Dense buffer.
func NewDense(width int) Dense {
	return nn.NewDense(width)
}

// Layers

// Layer is the contract every pipeline stage implements.
type Layer = nn.Layer

// Parameter is a trainable tensor with its gradient accumulator.
type Parameter = nn.Parameter

// Linear represents a fully connected (dense) layer.
type Linear = nn.Linear

// NewLinear creates a new linear layer.
//
// Example:
//
//	layer := nn.NewLinear(128, 2, nn.NewXavier(42))
func NewLinear(inFeatures, outFeatures int, init Initializer) *Linear {
	return nn.NewLinear(inFeatures, outFeatures, init)
}

// SparseLinear is a fully connected layer over sparse input.
type SparseLinear = nn.SparseLinear

// NewSparseLinear creates a new sparse-input linear layer.
//
// Example:
//
//	layer := nn.NewSparseLinear(89527, 128, nn.NewUniform(42, 0.1))
func NewSparseLinear(inFeatures, outFeatures int, init Initializer) *SparseLinear {
	return nn.NewSparseLinear(inFeatures, outFeatures, init)
}

// Activations

// ReLU represents the Rectified Linear Unit activation function.
type ReLU = nn.ReLU

// NewReLU creates a new ReLU activation over vectors of the given width.
func NewReLU(size int) *ReLU {
	return nn.NewReLU(size)
}

// Softmax is the normalized exponential. It may only end a chain.
type Softmax = nn.Softmax

// NewSoftmax creates a new Softmax over vectors of the given width.
func NewSoftmax(size int) *Softmax {
	return nn.NewSoftmax(size)
}

// Containers

// Chain links layers end to end.
type Chain = nn.Chain

// ShapeError describes a boundary NewChain rejected.
type ShapeError = nn.ShapeError

// NewChain creates a shape-checked chain of layers.
//
// Example:
//
//	model, err := nn.NewChain(
//	    nn.NewLinear(4, 3, init),
//	    nn.NewReLU(3),
//	    nn.NewLinear(3, 2, init),
//	)
func NewChain(layers ...Layer) (*Chain, error) {
	return nn.NewChain(layers...)
}

// MustChain is like NewChain but panics on error.
func MustChain(layers ...Layer) *Chain {
	return nn.MustChain(layers...)
}

// LayerSpec describes one layer by kind and dimensions.
type LayerSpec = nn.LayerSpec

// Layer kinds accepted by LayerSpec.
const (
	LayerLinear       = nn.LayerLinear
	LayerSparseLinear = nn.LayerSparseLinear
	LayerReLU         = nn.LayerReLU
	LayerSoftmax      = nn.LayerSoftmax
)

// Build constructs a chain from layer specs.
func Build(specs []LayerSpec, init Initializer) (*Chain, error) {
	return nn.Build(specs, init)
}

// Tensor is a named parameter snapshot in a state dict.
type Tensor = nn.Tensor

// Loss functions

// Loss turns a prediction and a target class into a loss and its gradient.
type Loss = nn.Loss

// CrossEntropyLoss computes cross-entropy over raw logits.
type CrossEntropyLoss = nn.CrossEntropyLoss

// NewCrossEntropyLoss creates a new cross-entropy loss function.
//
// Use it with chains that end in a linear layer.
func NewCrossEntropyLoss() *CrossEntropyLoss {
	return nn.NewCrossEntropyLoss()
}

// SoftmaxCrossEntropy computes cross-entropy over probabilities.
type SoftmaxCrossEntropy = nn.SoftmaxCrossEntropy

// NewSoftmaxCrossEntropy creates the loss for chains that end in Softmax.
func NewSoftmaxCrossEntropy() *SoftmaxCrossEntropy {
	return nn.NewSoftmaxCrossEntropy()
}

// Argmax returns the index of the largest value, lowest index on ties.
func Argmax(z Dense) int {
	return nn.Argmax(z)
}

// Accuracy returns the fraction of predictions whose argmax equals the target.
func Accuracy(predictions []Dense, targets []int) float32 {
	return nn.Accuracy(predictions, targets)
}

// Initialization

// Initializer fills a freshly allocated weight matrix.
type Initializer = nn.Initializer

// DefaultInitScale is the width of the default uniform range.
const DefaultInitScale = nn.DefaultInitScale

// NewUniform draws weights from U(-scale/2, scale/2) with a seeded generator.
func NewUniform(seed uint64, scale float32) Initializer {
	return nn.NewUniform(seed, scale)
}

// NewXavier draws weights with Xavier/Glorot scaling.
func NewXavier(seed uint64) Initializer {
	return nn.NewXavier(seed)
}

// Constant fills every weight with the same value.
type Constant = nn.Constant

// Errors

// Common errors.
var (
	ErrEmptyChain    = nn.ErrEmptyChain
	ErrUnknownLayer  = nn.ErrUnknownLayer
	ErrMissingTensor = nn.ErrMissingTensor
)
