package nn

import "fmt"

// Parameter is a trainable tensor together with its gradient accumulator.
//
// The accumulator has the same shape as the data and is allocated up front.
// It holds the sum of per-sample gradient contributions since the last Step.
//
// Example:
//
//	w := nn.NewParameter("weight", []int{out, in})
//	init.Init(w.Data())
//	// ... Backward calls accumulate into w.Grad() ...
//	w.Step(lr / float32(batchSize))
type Parameter struct {
	name  string
	shape []int
	data  []float32
	grad  []float32
}

// NewParameter creates a zero-filled parameter of the given shape.
func NewParameter(name string, shape []int) *Parameter {
	n := 1
	for _, dim := range shape {
		if dim <= 0 {
			panic(fmt.Sprintf("NewParameter: %s has non-positive dimension in shape %v", name, shape))
		}
		n *= dim
	}
	return &Parameter{
		name:  name,
		shape: append([]int(nil), shape...),
		data:  make([]float32, n),
		grad:  make([]float32, n),
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Shape returns a copy of the parameter shape.
func (p *Parameter) Shape() []int {
	return append([]int(nil), p.shape...)
}

// Data returns the parameter values. The slice aliases the parameter.
func (p *Parameter) Data() []float32 {
	return p.data
}

// Grad returns the gradient accumulator. The slice aliases the parameter.
func (p *Parameter) Grad() []float32 {
	return p.grad
}

// ZeroGrad clears the gradient accumulator.
func (p *Parameter) ZeroGrad() {
	for i := range p.grad {
		p.grad[i] = 0
	}
}

// Step performs data -= scale * grad and then clears the accumulator.
func (p *Parameter) Step(scale float32) {
	for i, g := range p.grad {
		p.data[i] -= scale * g
		p.grad[i] = 0
	}
}

// stepScale converts a learning rate and batch size into the per-step scale.
func stepScale(lr float32, batchSize int) float32 {
	if batchSize <= 0 {
		panic(fmt.Sprintf("Step: batch size must be positive, got %d", batchSize))
	}
	return lr / float32(batchSize)
}
