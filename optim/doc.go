// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimization algorithms for training chains.
//
// # Overview
//
// This package contains:
//   - SGD: Stochastic Gradient Descent with optional momentum
//   - Adam: Adaptive Moment Estimation with bias correction
//   - Optimizer interface for custom optimizers
//
// Without an optimizer, Chain.Step applies plain SGD through the layers. An
// optimizer replaces that step: it reads the accumulated gradients, divides
// them by the batch size and clears them.
//
// # Basic Usage
//
//	optimizer := optim.NewSGD(
//	    model.Parameters(),
//	    optim.SGDConfig{
//	        LR:       0.01,
//	        Momentum: 0.9,
//	    },
//	)
//
//	for i, x := range batch {
//	    model.Forward(x, out)
//	    criterion.Backward(out, targets[i], seed)
//	    model.Backward(seed, x, nil)
//	}
//	optimizer.Step(len(batch))
package optim
