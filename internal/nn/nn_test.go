package nn_test

import (
	"testing"

	"github.com/born-ml/chain/internal/nn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedLinear returns a Linear layer with the given weights and bias.
func fixedLinear(in, out int, w, b []float32) *nn.Linear {
	l := nn.NewLinear(in, out, nn.Constant(0))
	copy(l.Weight().Data(), w)
	copy(l.Bias().Data(), b)
	return l
}

// fixedSparseLinear returns a SparseLinear layer with the given weights and bias.
func fixedSparseLinear(in, out int, w, b []float32) *nn.SparseLinear {
	l := nn.NewSparseLinear(in, out, nn.Constant(0))
	copy(l.Weight().Data(), w)
	copy(l.Bias().Data(), b)
	return l
}

func TestDense_ZerosLike(t *testing.T) {
	d := nn.Dense{1, 2, 3}
	z := d.ZerosLike()

	require.Equal(t, nn.KindDense, z.Kind())
	assert.Equal(t, nn.Dense{0, 0, 0}, z)
	assert.Equal(t, nn.Dense{1, 2, 3}, d, "source must not change")
}

func TestDense_ZeroAndClone(t *testing.T) {
	d := nn.Dense{1, -2}
	c := d.Clone()
	d.Zero()

	assert.Equal(t, nn.Dense{0, 0}, d)
	assert.Equal(t, nn.Dense{1, -2}, c)
}

func TestSparse_ZerosLikeAndClear(t *testing.T) {
	s := nn.Sparse{{Index: 3, Value: 1.5}, {Index: 0, Value: 2}}

	z := s.ZerosLike()
	require.Equal(t, nn.KindSparse, z.Kind())
	assert.Empty(t, z)

	s.Clear()
	assert.Equal(t, 0, s.Nnz())
}

func TestSparse_Densify(t *testing.T) {
	s := nn.Sparse{{Index: 3, Value: 1.5}, {Index: 0, Value: 2}}
	assert.Equal(t, nn.Dense{2, 0, 0, 1.5, 0}, s.Densify(5))

	assert.Panics(t, func() { s.Densify(3) })
}

func TestSparse_Validate(t *testing.T) {
	tests := []struct {
		name    string
		s       nn.Sparse
		wantErr bool
	}{
		{name: "empty", s: nn.Sparse{}},
		{name: "in range", s: nn.Sparse{{Index: 0, Value: 1}, {Index: 4, Value: 1}}},
		{name: "negative", s: nn.Sparse{{Index: -1, Value: 1}}, wantErr: true},
		{name: "too large", s: nn.Sparse{{Index: 5, Value: 1}}, wantErr: true},
		{name: "duplicate", s: nn.Sparse{{Index: 2, Value: 1}, {Index: 2, Value: 3}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate(5)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSparse_Sort(t *testing.T) {
	s := nn.Sparse{{Index: 7, Value: 1}, {Index: 2, Value: 2}, {Index: 5, Value: 3}}
	s.Sort()
	assert.Equal(t, nn.Sparse{{Index: 2, Value: 2}, {Index: 5, Value: 3}, {Index: 7, Value: 1}}, s)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "dense", nn.KindDense.String())
	assert.Equal(t, "sparse", nn.KindSparse.String())
	assert.Equal(t, "Kind(9)", nn.Kind(9).String())
}

// TestParameter tests Parameter creation and methods.
func TestParameter(t *testing.T) {
	p := nn.NewParameter("weight", []int{2, 3})

	assert.Equal(t, "weight", p.Name())
	assert.Equal(t, []int{2, 3}, p.Shape())
	assert.Len(t, p.Data(), 6)
	assert.Len(t, p.Grad(), 6)

	for i := range p.Data() {
		p.Data()[i] = 1
		p.Grad()[i] = float32(i)
	}

	p.Step(0.5)
	assert.Equal(t, []float32{1, 0.5, 0, -0.5, -1, -1.5}, p.Data())
	assert.Equal(t, make([]float32, 6), p.Grad(), "Step must clear the accumulator")

	p.Grad()[0] = 3
	p.ZeroGrad()
	assert.Equal(t, float32(0), p.Grad()[0])
}

func TestParameter_InvalidShape(t *testing.T) {
	assert.Panics(t, func() { nn.NewParameter("bad", []int{2, 0}) })
}

func TestInitializers(t *testing.T) {
	t.Run("uniform is deterministic per seed", func(t *testing.T) {
		a := make([]float32, 100)
		b := make([]float32, 100)
		nn.NewUniform(7, 0.1).Init(a, 10, 10)
		nn.NewUniform(7, 0.1).Init(b, 10, 10)
		assert.Equal(t, a, b)

		c := make([]float32, 100)
		nn.NewUniform(8, 0.1).Init(c, 10, 10)
		assert.NotEqual(t, a, c)
	})

	t.Run("uniform is bounded and roughly centered", func(t *testing.T) {
		data := make([]float32, 10000)
		nn.NewUniform(1, 0.1).Init(data, 100, 100)

		var sum float64
		for _, v := range data {
			assert.True(t, v >= -0.05 && v < 0.05, "value %f out of range", v)
			sum += float64(v)
		}
		assert.InDelta(t, 0, sum/float64(len(data)), 0.005)
	})

	t.Run("xavier bound", func(t *testing.T) {
		data := make([]float32, 1000)
		nn.NewXavier(3).Init(data, 4, 2)
		bound := float32(1.0) // sqrt(6 / 6)
		for _, v := range data {
			assert.True(t, v >= -bound && v <= bound)
		}
	})

	t.Run("linear biases start at zero", func(t *testing.T) {
		l := nn.NewLinear(5, 3, nn.NewUniform(1, 0.1))
		assert.Equal(t, make([]float32, 3), l.Bias().Data())
	})
}
