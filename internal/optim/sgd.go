package optim

import (
	"fmt"

	"github.com/born-ml/chain/internal/nn"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule without momentum (g is the mean batch gradient):
//
//	param = param - lr * g
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + g
//	param = param - lr * velocity
//
// Without momentum this is exactly the update every layer applies in its own
// Step method, so a Chain trained with SGD{Momentum: 0} and one trained with
// Chain.Step end up with identical weights.
//
// Example:
//
//	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	})
type SGD struct {
	params     []*nn.Parameter
	lr         float32
	momentum   float32
	velocities map[*nn.Parameter][]float32
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float32 // Learning rate (default: 0.01)
	Momentum float32 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer.
//
// Parameters:
//   - params: Model parameters to optimize
//   - config: SGD configuration (LR, Momentum)
//
// Returns a new SGD optimizer.
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}

	return &SGD{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*nn.Parameter][]float32),
	}
}

// Step applies one gradient descent update to all parameters and clears
// their accumulators.
func (s *SGD) Step(batchSize int) {
	inv := checkBatch("SGD.Step", batchSize)

	for _, param := range s.params {
		if s.momentum == 0 {
			param.Step(s.lr / float32(batchSize))
			continue
		}
		s.updateParameterWithMomentum(param, inv)
	}
}

// updateParameterWithMomentum performs SGD update with momentum.
func (s *SGD) updateParameterWithMomentum(param *nn.Parameter, inv float32) {
	data, grad := param.Data(), param.Grad()

	velocity, exists := s.velocities[param]
	if !exists {
		velocity = make([]float32, len(data))
		s.velocities[param] = velocity
	}

	for i, g := range grad {
		velocity[i] = s.momentum*velocity[i] + g*inv
		data[i] -= s.lr * velocity[i]
		grad[i] = 0
	}
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD) ZeroGrad() {
	zeroGrad(s.params)
}

// GetLR returns the current learning rate.
func (s *SGD) GetLR() float32 {
	return s.lr
}

// SetLR updates the learning rate.
//
// Useful for learning rate scheduling during training.
func (s *SGD) SetLR(lr float32) {
	s.lr = lr
}

// Parameters returns the parameters being optimized.
func (s *SGD) Parameters() []*nn.Parameter {
	return s.params
}

// StateDict returns the optimizer state for serialization.
//
// For SGD with momentum, this exports velocity buffers for each parameter.
// Without momentum, returns an empty map.
//
// State keys: "velocity.{param_index}" -> velocity tensor.
func (s *SGD) StateDict() map[string]nn.Tensor {
	stateDict := make(map[string]nn.Tensor)
	if s.momentum == 0 {
		return stateDict
	}

	for i, param := range s.params {
		velocity, exists := s.velocities[param]
		if !exists {
			continue // not stepped yet
		}
		data := make([]float32, len(velocity))
		copy(data, velocity)
		stateDict[fmt.Sprintf("velocity.%d", i)] = nn.Tensor{Shape: param.Shape(), Data: data}
	}
	return stateDict
}

// LoadStateDict restores velocity buffers saved by StateDict.
//
// Returns an error if a velocity size doesn't match its parameter.
func (s *SGD) LoadStateDict(stateDict map[string]nn.Tensor) error {
	if s.momentum == 0 {
		return nil
	}

	s.velocities = make(map[*nn.Parameter][]float32)
	for i, param := range s.params {
		t, exists := stateDict[fmt.Sprintf("velocity.%d", i)]
		if !exists {
			continue
		}
		if len(t.Data) != len(param.Data()) {
			return fmt.Errorf("velocity size mismatch for parameter %d: expected %d, got %d",
				i, len(param.Data()), len(t.Data))
		}
		velocity := make([]float32, len(t.Data))
		copy(velocity, t.Data)
		s.velocities[param] = velocity
	}
	return nil
}
