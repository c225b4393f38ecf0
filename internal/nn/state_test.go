package nn_test

import (
	"testing"

	"github.com/born-ml/chain/internal/nn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChain_StateDictRoundTrip(t *testing.T) {
	specs := []nn.LayerSpec{
		{Kind: nn.LayerSparseLinear, In: 20, Out: 4},
		{Kind: nn.LayerReLU, In: 4},
		{Kind: nn.LayerLinear, In: 4, Out: 2},
	}

	src, err := nn.Build(specs, nn.NewUniform(1, 1))
	require.NoError(t, err)
	dst, err := nn.Build(specs, nn.NewUniform(2, 1))
	require.NoError(t, err)

	state := src.StateDict()
	assert.Len(t, state, 4)
	assert.Contains(t, state, "0.weight")
	assert.Contains(t, state, "0.bias")
	assert.Contains(t, state, "2.weight")
	assert.Contains(t, state, "2.bias")
	assert.Equal(t, []int{2, 4}, state["2.weight"].Shape)

	require.NoError(t, dst.LoadStateDict(state))

	x := nn.Sparse{{Index: 3, Value: 1}, {Index: 17, Value: 2}}
	a, b := src.NewOutput(), dst.NewOutput()
	src.Infer(x, a)
	dst.Infer(x, b)
	assert.Equal(t, a, b)
}

func TestChain_StateDictIsCopy(t *testing.T) {
	l := fixedLinear(1, 1, []float32{1}, []float32{0})
	c := nn.MustChain(l)

	state := c.StateDict()
	state["0.weight"].Data[0] = 42

	assert.Equal(t, float32(1), l.Weight().Data()[0])
}

func TestChain_LoadStateDictErrors(t *testing.T) {
	c := nn.MustChain(nn.NewLinear(3, 2, nn.Constant(0)))

	err := c.LoadStateDict(map[string]nn.Tensor{})
	assert.ErrorIs(t, err, nn.ErrMissingTensor)

	err = c.LoadStateDict(map[string]nn.Tensor{
		"0.weight": {Shape: []int{3, 2}, Data: make([]float32, 6)},
		"0.bias":   {Shape: []int{2}, Data: make([]float32, 2)},
	})
	assert.Error(t, err)
}

func TestTensor_NumElements(t *testing.T) {
	assert.Equal(t, 6, nn.Tensor{Shape: []int{2, 3}}.NumElements())
	assert.Equal(t, 1, nn.Tensor{}.NumElements())
}

func TestChain_StateDictFlattensNested(t *testing.T) {
	init := nn.NewUniform(3, 1)
	nested := nn.MustChain(
		nn.MustChain(nn.NewSparseLinear(10, 4, init), nn.NewReLU(4)),
		nn.NewLinear(4, 2, init),
	)

	state := nested.StateDict()
	assert.Contains(t, state, "0.weight")
	assert.Contains(t, state, "2.weight")

	flat, err := nn.Build(nested.Specs(), nn.Constant(0))
	require.NoError(t, err)
	require.NoError(t, flat.LoadStateDict(state))

	x := nn.Sparse{{Index: 9, Value: 1}}
	a, b := nested.NewOutput(), flat.NewOutput()
	nested.Infer(x, a)
	flat.Infer(x, b)
	assert.Equal(t, a, b)
}
