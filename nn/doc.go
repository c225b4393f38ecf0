// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the layers of a feed-forward training engine.
//
// # Overview
//
// This package contains:
//   - Buffers: Dense and Sparse vectors flowing between layers
//   - Layers: Linear, SparseLinear
//   - Activations: ReLU, Softmax
//   - Loss functions: CrossEntropyLoss, SoftmaxCrossEntropy
//   - Utilities: Chain, Layer interface, Parameter, LayerSpec
//   - Initialization: Uniform, Xavier, Constant
//
// # Basic Usage
//
//	import "github.com/born-ml/chain/nn"
//
//	func main() {
//	    init := nn.NewUniform(42, nn.DefaultInitScale)
//
//	    // Bag-of-words classifier
//	    model := nn.MustChain(
//	        nn.NewSparseLinear(89527, 128, init),
//	        nn.NewReLU(128),
//	        nn.NewLinear(128, 2, init),
//	        nn.NewSoftmax(2),
//	    )
//
//	    out := model.NewOutput()
//	    model.Forward(x, out)
//	}
//
// # Layers
//
// Every layer declares its input kind and widths up front. NewChain checks
// each boundary when the chain is built, so a mismatched model never runs.
//
// Linear (fully connected):
//
//	layer := nn.NewLinear(128, 2, init)
//	// Output = Weight @ Input + Bias
//
// SparseLinear only visits the nonzero entries of its input and must be the
// first stage of a chain:
//
//	layer := nn.NewSparseLinear(vocab, 128, init)
//
// # Training
//
// Backward accumulates parameter gradients sample by sample. Step applies the
// mean gradient of the batch and clears the accumulators:
//
//	for i, x := range batch {
//	    model.Forward(x, out)
//	    criterion.Backward(out, targets[i], seed)
//	    model.Backward(seed, x, nil)
//	}
//	model.Step(lr, len(batch))
//
// The train package wraps this loop with validation and logging.
package nn
