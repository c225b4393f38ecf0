package train_test

import (
	"bytes"
	"context"
	"io"
	"log"
	"math"
	"testing"

	"github.com/born-ml/chain/internal/nn"
	"github.com/born-ml/chain/internal/optim"
	"github.com/born-ml/chain/internal/train"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setLinear(l *nn.Linear, w, b []float32) {
	copy(l.Weight().Data(), w)
	copy(l.Bias().Data(), b)
}

// scenario builds [Linear(4→3), ReLU(3), Linear(3→2)] with fixed weights.
func scenario(t *testing.T) (*nn.Chain, *nn.Linear, *nn.Linear) {
	t.Helper()
	l1 := nn.NewLinear(4, 3, nn.Constant(0))
	setLinear(l1,
		[]float32{
			0.1, 0.2, -0.1, 0.3,
			-0.2, 0.1, 0.4, -0.3,
			0.5, -0.4, 0.2, 0.1,
		},
		[]float32{0.01, -0.02, 0.03},
	)
	l2 := nn.NewLinear(3, 2, nn.Constant(0))
	setLinear(l2,
		[]float32{
			0.3, -0.5, 0.2,
			-0.1, 0.4, 0.6,
		},
		[]float32{0.05, -0.05},
	)
	c, err := nn.NewChain(l1, nn.NewReLU(3), l2)
	require.NoError(t, err)
	return c, l1, l2
}

// TestTrainBatch_EndToEnd checks one step of plain SGD against gradients
// computed by hand in float64.
func TestTrainBatch_EndToEnd(t *testing.T) {
	c, l1, l2 := scenario(t)
	w1 := toF64(l1.Weight().Data())
	b1 := toF64(l1.Bias().Data())
	w2 := toF64(l2.Weight().Data())
	b2 := toF64(l2.Bias().Data())

	x := []float64{1, -1, 2, 0}
	target := 1
	lr := 0.1

	// Forward.
	z1 := make([]float64, 3)
	h := make([]float64, 3)
	for o := 0; o < 3; o++ {
		z1[o] = b1[o]
		for i := 0; i < 4; i++ {
			z1[o] += w1[o*4+i] * x[i]
		}
		h[o] = math.Max(0, z1[o])
	}
	z2 := make([]float64, 2)
	for o := 0; o < 2; o++ {
		z2[o] = b2[o]
		for i := 0; i < 3; i++ {
			z2[o] += w2[o*3+i] * h[i]
		}
	}
	m := math.Max(z2[0], z2[1])
	e0, e1 := math.Exp(z2[0]-m), math.Exp(z2[1]-m)
	p := []float64{e0 / (e0 + e1), e1 / (e0 + e1)}
	wantLoss := -math.Log(p[target])

	// Backward.
	g2 := []float64{p[0], p[1]}
	g2[target] -= 1
	g1 := make([]float64, 3)
	for i := 0; i < 3; i++ {
		if z1[i] > 0 {
			g1[i] = w2[i]*g2[0] + w2[3+i]*g2[1]
		}
	}
	wantW1 := make([]float64, 12)
	for o := 0; o < 3; o++ {
		for i := 0; i < 4; i++ {
			wantW1[o*4+i] = w1[o*4+i] - lr*g1[o]*x[i]
		}
	}
	wantW2 := make([]float64, 6)
	for o := 0; o < 2; o++ {
		for i := 0; i < 3; i++ {
			wantW2[o*3+i] = w2[o*3+i] - lr*g2[o]*h[i]
		}
	}
	wantB2 := []float64{b2[0] - lr*g2[0], b2[1] - lr*g2[1]}

	trainer, err := train.New(c, nn.NewCrossEntropyLoss(), train.Config{})
	require.NoError(t, err)

	input := nn.Dense{1, -1, 2, 0}
	before := trainer.Predict(input)

	loss, err := trainer.TrainBatch([]nn.Buffer{input}, []int{target}, float32(lr))
	require.NoError(t, err)

	assert.InDelta(t, wantLoss, loss, 1e-5)
	assert.InDeltaSlice(t, wantW1, toF64(l1.Weight().Data()), 1e-6)
	assert.InDeltaSlice(t, wantW2, toF64(l2.Weight().Data()), 1e-6)
	assert.InDeltaSlice(t, wantB2, toF64(l2.Bias().Data()), 1e-6)

	after := trainer.Predict(input)
	assert.NotEqual(t, before, after)
	assert.Greater(t, after[target]-after[1-target], before[target]-before[1-target], "step moves toward target")

	for _, p := range c.Parameters() {
		for _, g := range p.Grad() {
			assert.Zero(t, g, "accumulators cleared after step")
		}
	}
}

// TestTrainBatch_Accumulation checks that a batch step equals one update
// with the sum of per-sample gradients scaled by lr/B.
func TestTrainBatch_Accumulation(t *testing.T) {
	specs := []nn.LayerSpec{
		{Kind: nn.LayerLinear, In: 3, Out: 4},
		{Kind: nn.LayerReLU, In: 4},
		{Kind: nn.LayerLinear, In: 4, Out: 2},
	}
	build := func() *nn.Chain {
		c, err := nn.Build(specs, nn.NewUniform(9, 1))
		require.NoError(t, err)
		return c
	}

	inputs := []nn.Buffer{nn.Dense{1, 0, -1}, nn.Dense{0.5, 2, 0.1}, nn.Dense{-1, 1, 1}}
	targets := []int{0, 1, 1}
	const lr = 0.2

	// Per-sample gradients, each from a fresh copy of the initial weights.
	ref := build()
	sums := make([][]float64, len(ref.Parameters()))
	for k, p := range ref.Parameters() {
		sums[k] = make([]float64, len(p.Data()))
	}
	ce := nn.NewCrossEntropyLoss()
	for i, x := range inputs {
		c := build()
		out := c.NewOutput()
		c.Forward(x, out)
		seed := c.NewOutput()
		ce.Backward(out, targets[i], seed)
		c.Backward(seed, x, nil)
		for k, p := range c.Parameters() {
			for j, g := range p.Grad() {
				sums[k][j] += float64(g)
			}
		}
	}

	c := build()
	trainer, err := train.New(c, nn.NewCrossEntropyLoss(), train.Config{})
	require.NoError(t, err)
	_, err = trainer.TrainBatch(inputs, targets, lr)
	require.NoError(t, err)

	for k, p := range c.Parameters() {
		want := make([]float64, len(p.Data()))
		for j, v := range ref.Parameters()[k].Data() {
			want[j] = float64(v) - lr/float64(len(inputs))*sums[k][j]
		}
		assert.InDeltaSlice(t, want, toF64(p.Data()), 1e-6, p.Name())
	}
}

func TestTrainBatch_RejectsBeforeMutation(t *testing.T) {
	c, l1, _ := scenario(t)
	trainer, err := train.New(c, nn.NewCrossEntropyLoss(), train.Config{})
	require.NoError(t, err)

	good := nn.Dense{1, -1, 2, 0}
	tests := []struct {
		name    string
		inputs  []nn.Buffer
		targets []int
		lr      float32
		wantErr error
	}{
		{"empty", nil, nil, 0.1, train.ErrEmptyBatch},
		{"length mismatch", []nn.Buffer{good}, []int{0, 1}, 0.1, train.ErrBatchMismatch},
		{"zero lr", []nn.Buffer{good}, []int{0}, 0, train.ErrLearningRate},
		{"nan lr", []nn.Buffer{good}, []int{0}, float32(math.NaN()), train.ErrLearningRate},
		{"wrong width late in batch", []nn.Buffer{good, nn.Dense{1, 2}}, []int{0, 0}, 0.1, train.ErrInvalidSample},
		{"wrong kind", []nn.Buffer{nn.Sparse{{Index: 0, Value: 1}}}, []int{0}, 0.1, train.ErrInvalidSample},
		{"target out of range", []nn.Buffer{good, good}, []int{0, 2}, 0.1, train.ErrInvalidSample},
		{"negative target", []nn.Buffer{good}, []int{-1}, 0.1, train.ErrInvalidSample},
	}

	before := append([]float32(nil), l1.Weight().Data()...)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := trainer.TrainBatch(tt.inputs, tt.targets, tt.lr)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, before, l1.Weight().Data())
		})
	}
}

func TestTrainBatch_SparseInput(t *testing.T) {
	c, err := nn.Build([]nn.LayerSpec{
		{Kind: nn.LayerSparseLinear, In: 10, Out: 4},
		{Kind: nn.LayerReLU, In: 4},
		{Kind: nn.LayerLinear, In: 4, Out: 2},
		{Kind: nn.LayerSoftmax, In: 2},
	}, nn.NewUniform(2, 1))
	require.NoError(t, err)

	trainer, err := train.New(c, nn.NewSoftmaxCrossEntropy(), train.Config{})
	require.NoError(t, err)

	inputs := []nn.Buffer{
		nn.Sparse{{Index: 1, Value: 1}, {Index: 7, Value: 2}},
		nn.Sparse{{Index: 3, Value: 1}},
	}
	targets := []int{1, 0}

	first, err := trainer.TrainBatch(inputs, targets, 0.5)
	require.NoError(t, err)
	var last float32
	for i := 0; i < 50; i++ {
		last, err = trainer.TrainBatch(inputs, targets, 0.5)
		require.NoError(t, err)
	}
	assert.Less(t, last, first)

	_, err = trainer.TrainBatch([]nn.Buffer{nn.Sparse{{Index: 10, Value: 1}}}, []int{0}, 0.5)
	assert.ErrorIs(t, err, train.ErrInvalidSample)
	_, err = trainer.TrainBatch([]nn.Buffer{nn.Sparse{{Index: 2, Value: 1}, {Index: 2, Value: 1}}}, []int{0}, 0.5)
	assert.ErrorIs(t, err, train.ErrInvalidSample)
}

func TestNew_LossPairing(t *testing.T) {
	init := nn.Constant(0.1)
	logits := nn.MustChain(nn.NewLinear(2, 2, init))
	probs := nn.MustChain(nn.NewLinear(2, 2, init), nn.NewSoftmax(2))

	_, err := train.New(logits, nn.NewCrossEntropyLoss(), train.Config{})
	assert.NoError(t, err)
	_, err = train.New(probs, nn.NewSoftmaxCrossEntropy(), train.Config{})
	assert.NoError(t, err)

	_, err = train.New(probs, nn.NewCrossEntropyLoss(), train.Config{})
	assert.ErrorIs(t, err, train.ErrLossMismatch)
	_, err = train.New(logits, nn.NewSoftmaxCrossEntropy(), train.Config{})
	assert.ErrorIs(t, err, train.ErrLossMismatch)

	_, err = train.New(nil, nn.NewCrossEntropyLoss(), train.Config{})
	assert.Error(t, err)
}

func TestNew_OptimizerMismatch(t *testing.T) {
	c, _, _ := scenario(t)
	other, _, _ := scenario(t)
	params := c.Parameters()

	tests := []struct {
		name   string
		params []*nn.Parameter
	}{
		{"other chain", other.Parameters()},
		{"missing parameter", params[:len(params)-1]},
		{"parameter twice", append(append([]*nn.Parameter(nil), params...), params[0])},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt := optim.NewSGD(tt.params, optim.SGDConfig{LR: 0.1, Momentum: 0.9})
			_, err := train.New(c, nn.NewCrossEntropyLoss(), train.Config{Optimizer: opt})
			assert.ErrorIs(t, err, train.ErrOptimizerMismatch)
		})
	}

	_, err := train.New(c, nn.NewCrossEntropyLoss(), train.Config{Optimizer: optim.NewAdam(params, optim.AdamConfig{})})
	assert.NoError(t, err)
}

// TestTrainBatch_SoftmaxMatchesLogits checks that a Softmax-terminated chain
// trained with SoftmaxCrossEntropy follows the same trajectory as the logits
// chain trained with CrossEntropyLoss.
func TestTrainBatch_SoftmaxMatchesLogits(t *testing.T) {
	la := nn.NewLinear(3, 2, nn.NewUniform(4, 1))
	lb := nn.NewLinear(3, 2, nn.NewUniform(4, 1))
	a, err := train.New(nn.MustChain(la), nn.NewCrossEntropyLoss(), train.Config{})
	require.NoError(t, err)
	b, err := train.New(nn.MustChain(lb, nn.NewSoftmax(2)), nn.NewSoftmaxCrossEntropy(), train.Config{})
	require.NoError(t, err)

	inputs := []nn.Buffer{nn.Dense{1, 2, 3}, nn.Dense{-1, 0, 1}}
	targets := []int{0, 1}
	for i := 0; i < 5; i++ {
		lossA, err := a.TrainBatch(inputs, targets, 0.3)
		require.NoError(t, err)
		lossB, err := b.TrainBatch(inputs, targets, 0.3)
		require.NoError(t, err)
		assert.InDelta(t, lossA, lossB, 1e-5)
	}
	assert.InDeltaSlice(t, toF64(la.Weight().Data()), toF64(lb.Weight().Data()), 1e-5)
}

func TestTrainBatch_WithOptimizer(t *testing.T) {
	c, l1, _ := scenario(t)
	ref, r1, _ := scenario(t)

	opt := optim.NewSGD(c.Parameters(), optim.SGDConfig{LR: 123})
	trainer, err := train.New(c, nn.NewCrossEntropyLoss(), train.Config{Optimizer: opt})
	require.NoError(t, err)
	plain, err := train.New(ref, nn.NewCrossEntropyLoss(), train.Config{})
	require.NoError(t, err)

	inputs := []nn.Buffer{nn.Dense{1, -1, 2, 0}, nn.Dense{0, 1, 1, 1}}
	targets := []int{1, 0}
	_, err = trainer.TrainBatch(inputs, targets, 0.1)
	require.NoError(t, err)
	_, err = plain.TrainBatch(inputs, targets, 0.1)
	require.NoError(t, err)

	assert.Equal(t, float32(0.1), opt.GetLR())
	assert.Equal(t, r1.Weight().Data(), l1.Weight().Data())
}

func TestPredict_NoMutation(t *testing.T) {
	c, l1, _ := scenario(t)
	trainer, err := train.New(c, nn.NewCrossEntropyLoss(), train.Config{})
	require.NoError(t, err)

	before := append([]float32(nil), l1.Weight().Data()...)
	x := nn.Dense{1, -1, 2, 0}
	first := trainer.Predict(x)
	second := trainer.Predict(x)

	assert.Equal(t, first, second)
	assert.Equal(t, before, l1.Weight().Data())
	assert.Panics(t, func() { trainer.Predict(nn.Dense{1}) })
}

func TestEvaluate(t *testing.T) {
	l := nn.NewLinear(2, 2, nn.Constant(0))
	setLinear(l, []float32{1, 0, 0, 1}, []float32{0, 0})
	trainer, err := train.New(nn.MustChain(l), nn.NewCrossEntropyLoss(), train.Config{})
	require.NoError(t, err)

	inputs := []nn.Buffer{nn.Dense{2, 0}, nn.Dense{0, 2}, nn.Dense{2, 0}}
	targets := []int{0, 1, 1}

	m, err := trainer.Evaluate(inputs, targets)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Samples)
	assert.InDelta(t, 2.0/3.0, m.Accuracy, 1e-9)

	hit := math.Log(1 + math.Exp(-2))
	miss := math.Log(1 + math.Exp(2))
	assert.InDelta(t, (2*hit+miss)/3, m.Loss, 1e-5)
	assert.Contains(t, m.String(), "acc=66.67%")

	_, err = trainer.Evaluate(nil, nil)
	assert.ErrorIs(t, err, train.ErrEmptyBatch)
}

// memorySource serves fixed batches in order.
type memorySource struct {
	batches []train.Batch
	pos     int
	resets  []uint64
}

func (m *memorySource) Next() (train.Batch, error) {
	if m.pos >= len(m.batches) {
		return train.Batch{}, io.EOF
	}
	b := m.batches[m.pos]
	m.pos++
	return b, nil
}

func (m *memorySource) Reset(seed uint64) {
	m.pos = 0
	m.resets = append(m.resets, seed)
}

func TestFit(t *testing.T) {
	c, _, _ := scenario(t)
	var logs bytes.Buffer
	trainer, err := train.New(c, nn.NewCrossEntropyLoss(), train.Config{
		Logger:   log.New(&logs, "", 0),
		LogEvery: 1,
	})
	require.NoError(t, err)

	src := &memorySource{batches: []train.Batch{
		{Inputs: []nn.Buffer{nn.Dense{1, -1, 2, 0}, nn.Dense{0, 1, 0, 1}}, Targets: []int{1, 0}},
		{Inputs: []nn.Buffer{nn.Dense{2, 0, 1, -1}}, Targets: []int{1}},
	}}

	results, err := trainer.Fit(context.Background(), src, train.FitOptions{
		Epochs:       3,
		LearningRate: 0.1,
		Seed:         10,
		Validation:   src.batches[0],
	})
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, []uint64{10, 11, 12}, src.resets)
	for i, r := range results {
		assert.Equal(t, i+1, r.Epoch)
		assert.Equal(t, 2, r.Batches)
		assert.Equal(t, 3, r.Samples)
		require.NotNil(t, r.Validation)
		assert.Equal(t, 2, r.Validation.Samples)
	}
	assert.Less(t, results[2].TrainLoss, results[0].TrainLoss)
	assert.Contains(t, logs.String(), "epoch 3/3")
	assert.Contains(t, logs.String(), "epoch 1 batch 2")
}

func TestFit_Cancelled(t *testing.T) {
	c, _, _ := scenario(t)
	trainer, err := train.New(c, nn.NewCrossEntropyLoss(), train.Config{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &memorySource{batches: []train.Batch{
		{Inputs: []nn.Buffer{nn.Dense{1, -1, 2, 0}}, Targets: []int{1}},
	}}
	results, err := trainer.Fit(ctx, src, train.FitOptions{Epochs: 2, LearningRate: 0.1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func toF64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
