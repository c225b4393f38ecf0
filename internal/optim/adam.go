package optim

import (
	"fmt"

	"github.com/born-ml/chain/internal/nn"
	"github.com/chewxy/math32"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule (g is the mean batch gradient):
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * g
//	v_t = beta2 * v_{t-1} + (1-beta2) * g²
//	m_hat = m_t / (1 - beta1^t)
//	v_hat = v_t / (1 - beta2^t)
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
//
// Note that Adam moves every weight whose moment is nonzero, including
// SparseLinear columns that received no gradient this batch.
type Adam struct {
	params []*nn.Parameter
	lr     float32
	beta1  float32
	beta2  float32
	eps    float32
	t      int // timestep for bias correction
	m      map[*nn.Parameter][]float32
	v      map[*nn.Parameter][]float32
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float32    // Learning rate (default: 0.001)
	Betas [2]float32 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float32    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer.
//
// Default hyperparameters:
//   - LR: 0.001
//   - Beta1: 0.9
//   - Beta2: 0.999
//   - Eps: 1e-8
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam{
		params: params,
		lr:     config.LR,
		beta1:  config.Betas[0],
		beta2:  config.Betas[1],
		eps:    config.Eps,
		m:      make(map[*nn.Parameter][]float32),
		v:      make(map[*nn.Parameter][]float32),
	}
}

// Step performs a single optimization step using Adam algorithm and clears
// the accumulators.
func (a *Adam) Step(batchSize int) {
	inv := checkBatch("Adam.Step", batchSize)

	a.t++
	biasCorrection1 := 1 - math32.Pow(a.beta1, float32(a.t))
	biasCorrection2 := 1 - math32.Pow(a.beta2, float32(a.t))

	for _, param := range a.params {
		n := len(param.Data())
		m, ok := a.m[param]
		if !ok {
			m = make([]float32, n)
			a.m[param] = m
		}
		v, ok := a.v[param]
		if !ok {
			v = make([]float32, n)
			a.v[param] = v
		}
		a.updateParameter(param, inv, m, v, biasCorrection1, biasCorrection2)
	}
}

// updateParameter performs Adam update for a single parameter.
func (a *Adam) updateParameter(param *nn.Parameter, inv float32, m, v []float32, biasCorrection1, biasCorrection2 float32) {
	data, grad := param.Data(), param.Grad()

	for i := range data {
		g := grad[i] * inv

		m[i] = a.beta1*m[i] + (1.0-a.beta1)*g
		v[i] = a.beta2*v[i] + (1.0-a.beta2)*g*g

		mHat := m[i] / biasCorrection1
		vHat := v[i] / biasCorrection2

		data[i] -= a.lr * mHat / (math32.Sqrt(vHat) + a.eps)
		grad[i] = 0
	}
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam) ZeroGrad() {
	zeroGrad(a.params)
}

// GetLR returns the current learning rate.
func (a *Adam) GetLR() float32 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam) SetLR(lr float32) {
	a.lr = lr
}

// GetTimestep returns the current timestep.
func (a *Adam) GetTimestep() int {
	return a.t
}

// Parameters returns the parameters being optimized.
func (a *Adam) Parameters() []*nn.Parameter {
	return a.params
}

// StateDict returns the optimizer state for serialization.
//
// State keys:
//   - "m.{param_index}": first moment
//   - "v.{param_index}": second moment
//   - "step": timestep, a single element
//
// Returns an empty map before the first Step.
func (a *Adam) StateDict() map[string]nn.Tensor {
	stateDict := make(map[string]nn.Tensor)
	if a.t == 0 {
		return stateDict
	}

	for i, param := range a.params {
		m, mok := a.m[param]
		v, vok := a.v[param]
		if !mok || !vok {
			continue
		}
		stateDict[fmt.Sprintf("m.%d", i)] = nn.Tensor{Shape: param.Shape(), Data: append([]float32(nil), m...)}
		stateDict[fmt.Sprintf("v.%d", i)] = nn.Tensor{Shape: param.Shape(), Data: append([]float32(nil), v...)}
	}
	stateDict["step"] = nn.Tensor{Shape: []int{1}, Data: []float32{float32(a.t)}}
	return stateDict
}

// LoadStateDict restores moments and timestep saved by StateDict.
//
// A state without "step" (for example one written by SGD) leaves the
// optimizer freshly initialized.
func (a *Adam) LoadStateDict(stateDict map[string]nn.Tensor) error {
	step, ok := stateDict["step"]
	if !ok {
		return nil
	}
	if len(step.Data) != 1 || step.Data[0] < 0 {
		return fmt.Errorf("invalid Adam step tensor %v", step.Data)
	}

	m := make(map[*nn.Parameter][]float32)
	v := make(map[*nn.Parameter][]float32)
	for i, param := range a.params {
		mt, mok := stateDict[fmt.Sprintf("m.%d", i)]
		vt, vok := stateDict[fmt.Sprintf("v.%d", i)]
		if !mok && !vok {
			continue
		}
		if !mok || !vok {
			return fmt.Errorf("parameter %d has only one Adam moment", i)
		}
		n := len(param.Data())
		if len(mt.Data) != n || len(vt.Data) != n {
			return fmt.Errorf("moment size mismatch for parameter %d: expected %d, got %d and %d",
				i, n, len(mt.Data), len(vt.Data))
		}
		m[param] = append([]float32(nil), mt.Data...)
		v[param] = append([]float32(nil), vt.Data...)
	}

	a.t = int(step.Data[0])
	a.m, a.v = m, v
	return nil
}
