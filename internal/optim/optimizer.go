// Package optim implements optimization algorithms that consume the gradients
// accumulated by nn layers.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with optional momentum
//   - Adam: Adaptive Moment Estimation
//
// Gradients are the per-batch sums held in each Parameter's accumulator.
// Every optimizer divides them by the batch size first, so the step always
// follows the mean gradient of the batch, and clears the accumulators after.
//
// Example usage:
//
//	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	})
//
//	for _, sample := range batch {
//	    model.Forward(sample.Input, out)
//	    loss.Backward(out, sample.Target, seed)
//	    model.Backward(seed, sample.Input, nil)
//	}
//	optimizer.Step(len(batch))
package optim

import (
	"fmt"

	"github.com/born-ml/chain/internal/nn"
)

// Optimizer is the base interface for all optimization algorithms.
//
// All optimizers must implement:
//   - Step: Apply the accumulated batch gradient to parameters
//   - ZeroGrad: Clear gradients without updating
//   - GetLR/SetLR: Read or change the learning rate
//   - Parameters: The parameters being optimized
type Optimizer interface {
	// Step updates every parameter from its accumulated gradient, treating
	// the accumulator as the sum over batchSize samples, then zeroes it.
	Step(batchSize int)

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32

	// SetLR updates the learning rate.
	SetLR(lr float32)

	// Parameters returns the parameters the optimizer updates.
	Parameters() []*nn.Parameter
}

// Config is the base configuration for all optimizers.
type Config struct {
	LR float32 // Learning rate
}

// zeroGrad clears the accumulators of params.
func zeroGrad(params []*nn.Parameter) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

func checkBatch(where string, batchSize int) float32 {
	if batchSize <= 0 {
		panic(fmt.Sprintf("%s: batch size must be positive, got %d", where, batchSize))
	}
	return 1 / float32(batchSize)
}
