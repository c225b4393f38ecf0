package optim_test

import (
	"testing"

	"github.com/born-ml/chain/internal/nn"
	"github.com/born-ml/chain/internal/optim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scalar returns a one-element parameter holding value with gradient grad.
func scalar(value, grad float32) *nn.Parameter {
	p := nn.NewParameter("x", []int{1})
	p.Data()[0] = value
	p.Grad()[0] = grad
	return p
}

func TestSGD_SimpleUpdate(t *testing.T) {
	param := scalar(2.0, 1.0)
	optimizer := optim.NewSGD([]*nn.Parameter{param}, optim.SGDConfig{LR: 0.1})

	optimizer.Step(1)

	// x_new = x_old - lr * grad = 2.0 - 0.1 * 1.0
	assert.InDelta(t, 1.9, param.Data()[0], 1e-6)
	assert.Equal(t, float32(0), param.Grad()[0], "accumulator cleared")
}

func TestSGD_DividesByBatchSize(t *testing.T) {
	param := scalar(2.0, 4.0) // sum over 4 samples
	optimizer := optim.NewSGD([]*nn.Parameter{param}, optim.SGDConfig{LR: 0.1})

	optimizer.Step(4)

	assert.InDelta(t, 1.9, param.Data()[0], 1e-6)
}

func TestSGD_WithMomentum(t *testing.T) {
	param := scalar(1.0, 1.0)
	optimizer := optim.NewSGD([]*nn.Parameter{param}, optim.SGDConfig{LR: 0.1, Momentum: 0.9})

	// v1 = 1, x = 1 - 0.1
	optimizer.Step(1)
	assert.InDelta(t, 0.9, param.Data()[0], 1e-6)

	// v2 = 0.9*1 + 1 = 1.9, x = 0.9 - 0.19
	param.Grad()[0] = 1.0
	optimizer.Step(1)
	assert.InDelta(t, 0.71, param.Data()[0], 1e-6)
}

func TestSGD_MatchesLayerStep(t *testing.T) {
	build := func() *nn.Linear {
		l := nn.NewLinear(3, 2, nn.NewUniform(5, 1))
		x := nn.Dense{1, -2, 0.5}
		l.Forward(x, l.NewOutput())
		l.Backward(nn.Dense{0.25, -1}, x, nil)
		l.Forward(x, l.NewOutput())
		l.Backward(nn.Dense{0.5, 0.75}, x, nil)
		return l
	}

	a, b := build(), build()
	a.Step(0.05, 2)
	optim.NewSGD(b.Parameters(), optim.SGDConfig{LR: 0.05}).Step(2)

	assert.Equal(t, a.Weight().Data(), b.Weight().Data())
	assert.Equal(t, a.Bias().Data(), b.Bias().Data())
}

func TestSGD_ZeroGrad(t *testing.T) {
	param := scalar(1.0, 3.0)
	optimizer := optim.NewSGD([]*nn.Parameter{param}, optim.SGDConfig{})

	optimizer.ZeroGrad()

	assert.Equal(t, float32(0), param.Grad()[0])
	assert.Equal(t, float32(1), param.Data()[0])
}

func TestSGD_GetSetLR(t *testing.T) {
	optimizer := optim.NewSGD(nil, optim.SGDConfig{})
	assert.Equal(t, float32(0.01), optimizer.GetLR(), "default")

	optimizer.SetLR(0.5)
	assert.Equal(t, float32(0.5), optimizer.GetLR())
}

func TestSGD_StateDictRoundTrip(t *testing.T) {
	param := scalar(1.0, 1.0)
	src := optim.NewSGD([]*nn.Parameter{param}, optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	src.Step(1)

	state := src.StateDict()
	require.Contains(t, state, "velocity.0")
	assert.Equal(t, []float32{1}, state["velocity.0"].Data)

	twin := scalar(param.Data()[0], 1.0)
	dst := optim.NewSGD([]*nn.Parameter{twin}, optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	require.NoError(t, dst.LoadStateDict(state))

	param.Grad()[0] = 1.0
	src.Step(1)
	dst.Step(1)
	assert.Equal(t, param.Data()[0], twin.Data()[0])

	bad := map[string]nn.Tensor{"velocity.0": {Shape: []int{2}, Data: []float32{1, 2}}}
	assert.Error(t, dst.LoadStateDict(bad))
}

func TestAdam_SimpleUpdate(t *testing.T) {
	param := scalar(1.0, 0.5)
	optimizer := optim.NewAdam([]*nn.Parameter{param}, optim.AdamConfig{LR: 0.1})

	optimizer.Step(1)

	// First step: m_hat = g, v_hat = g², update = lr * g / |g| = lr.
	assert.InDelta(t, 0.9, param.Data()[0], 1e-5)
	assert.Equal(t, 1, optimizer.GetTimestep())
	assert.Equal(t, float32(0), param.Grad()[0])
}

func TestAdam_BiasCorrection(t *testing.T) {
	param := scalar(0.0, -2.0)
	optimizer := optim.NewAdam([]*nn.Parameter{param}, optim.AdamConfig{LR: 0.01})

	// With a constant gradient the corrected step stays at lr.
	for i := 0; i < 3; i++ {
		param.Grad()[0] = -2.0
		optimizer.Step(1)
	}
	assert.InDelta(t, 0.03, param.Data()[0], 1e-5)
}

func TestAdam_Defaults(t *testing.T) {
	optimizer := optim.NewAdam(nil, optim.AdamConfig{})
	assert.Equal(t, float32(0.001), optimizer.GetLR())
}

func TestAdam_StateDictRoundTrip(t *testing.T) {
	param := scalar(1.0, 0.5)
	src := optim.NewAdam([]*nn.Parameter{param}, optim.AdamConfig{LR: 0.1})
	assert.Empty(t, src.StateDict(), "nothing to save before the first step")

	src.Step(1)
	param.Grad()[0] = -0.25
	src.Step(1)

	state := src.StateDict()
	require.Contains(t, state, "m.0")
	require.Contains(t, state, "v.0")
	assert.Equal(t, []float32{2}, state["step"].Data)

	twin := scalar(param.Data()[0], 0)
	dst := optim.NewAdam([]*nn.Parameter{twin}, optim.AdamConfig{LR: 0.1})
	require.NoError(t, dst.LoadStateDict(state))
	assert.Equal(t, 2, dst.GetTimestep())

	param.Grad()[0] = 0.75
	twin.Grad()[0] = 0.75
	src.Step(1)
	dst.Step(1)
	assert.Equal(t, param.Data()[0], twin.Data()[0])

	tests := []struct {
		name  string
		state map[string]nn.Tensor
	}{
		{"size mismatch", map[string]nn.Tensor{
			"step": {Shape: []int{1}, Data: []float32{1}},
			"m.0":  {Shape: []int{2}, Data: []float32{1, 2}},
			"v.0":  {Shape: []int{2}, Data: []float32{1, 2}},
		}},
		{"one moment", map[string]nn.Tensor{
			"step": {Shape: []int{1}, Data: []float32{1}},
			"m.0":  {Shape: []int{1}, Data: []float32{1}},
		}},
		{"bad step", map[string]nn.Tensor{
			"step": {Shape: []int{2}, Data: []float32{1, 2}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, dst.LoadStateDict(tt.state))
		})
	}

	// SGD velocities carry no timestep and leave Adam untouched.
	fresh := optim.NewAdam([]*nn.Parameter{twin}, optim.AdamConfig{})
	require.NoError(t, fresh.LoadStateDict(map[string]nn.Tensor{"velocity.0": {Shape: []int{1}, Data: []float32{1}}}))
	assert.Equal(t, 0, fresh.GetTimestep())
}

func TestOptimizer_Parameters(t *testing.T) {
	params := []*nn.Parameter{scalar(1, 0), scalar(2, 0)}
	assert.Equal(t, params, optim.NewSGD(params, optim.SGDConfig{}).Parameters())
	assert.Equal(t, params, optim.NewAdam(params, optim.AdamConfig{}).Parameters())
}

func TestStep_PanicsOnEmptyBatch(t *testing.T) {
	assert.Panics(t, func() { optim.NewSGD(nil, optim.SGDConfig{}).Step(0) })
	assert.Panics(t, func() { optim.NewAdam(nil, optim.AdamConfig{}).Step(-1) })
}

// TestConvergence_SimpleQuadratic minimizes f(x) = (x-3)².
func TestConvergence_SimpleQuadratic(t *testing.T) {
	optimizers := map[string]func(p []*nn.Parameter) optim.Optimizer{
		"sgd":      func(p []*nn.Parameter) optim.Optimizer { return optim.NewSGD(p, optim.SGDConfig{LR: 0.1}) },
		"momentum": func(p []*nn.Parameter) optim.Optimizer { return optim.NewSGD(p, optim.SGDConfig{LR: 0.05, Momentum: 0.5}) },
		"adam":     func(p []*nn.Parameter) optim.Optimizer { return optim.NewAdam(p, optim.AdamConfig{LR: 0.1}) },
	}

	for name, newOpt := range optimizers {
		t.Run(name, func(t *testing.T) {
			param := scalar(0, 0)
			opt := newOpt([]*nn.Parameter{param})
			for i := 0; i < 500; i++ {
				param.Grad()[0] = 2 * (param.Data()[0] - 3)
				opt.Step(1)
			}
			assert.InDelta(t, 3.0, param.Data()[0], 1e-2)
		})
	}
}
