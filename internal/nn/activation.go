package nn

import (
	"fmt"

	"github.com/chewxy/math32"
)

// ReLU is a Rectified Linear Unit activation module.
//
// Applies the element-wise function: f(x) = max(0, x)
//
// Backward passes the gradient through where the forward input was strictly
// positive and blocks it elsewhere. The derivative at exactly zero is taken
// to be zero, matching the forward rule that maps zero to zero.
//
// Example:
//
//	relu := nn.NewReLU(128)
//	relu.Forward(hidden, activated)  // All negative values become 0
type ReLU struct {
	size int
}

// NewReLU creates a new ReLU activation over vectors of the given width.
func NewReLU(size int) *ReLU {
	if size <= 0 {
		panic(fmt.Sprintf("NewReLU: size must be positive, got %d", size))
	}
	return &ReLU{size: size}
}

// InputKind returns KindDense.
func (r *ReLU) InputKind() Kind { return KindDense }

// OutputKind returns KindDense.
func (r *ReLU) OutputKind() Kind { return KindDense }

// InSize returns the vector width.
func (r *ReLU) InSize() int { return r.size }

// OutSize returns the vector width.
func (r *ReLU) OutSize() int { return r.size }

// NewOutput allocates a zero output vector.
func (r *ReLU) NewOutput() Dense { return NewDense(r.size) }

// Forward applies ReLU activation: f(x) = max(0, x).
func (r *ReLU) Forward(input Buffer, output Dense) {
	x := checkDense("ReLU.Forward", input, r.size)
	checkWidth("ReLU.Forward", output, r.size)
	for i, v := range x {
		if v > 0 {
			output[i] = v
		} else {
			output[i] = 0
		}
	}
}

// Backward computes dx[i] = dy[i] if x[i] > 0, else 0.
//
// input must be the forward input, not the forward output.
func (r *ReLU) Backward(gradOutput Dense, input Buffer, gradInput Dense) {
	x := checkDense("ReLU.Backward", input, r.size)
	checkWidth("ReLU.Backward", gradOutput, r.size)
	if gradInput == nil {
		return
	}
	checkWidth("ReLU.Backward", gradInput, r.size)
	for i, v := range x {
		if v > 0 {
			gradInput[i] = gradOutput[i]
		} else {
			gradInput[i] = 0
		}
	}
}

// Step does nothing (ReLU has no trainable parameters).
func (r *ReLU) Step(float32, int) {}

// Parameters returns nil (ReLU has no trainable parameters).
func (r *ReLU) Parameters() []*Parameter { return nil }

// Softmax is the normalized exponential.
//
// Forward is stabilized by subtracting the maximum input before
// exponentiating, so no finite input overflows:
//
//	m = max(x)
//	y[i] = exp(x[i] - m) / Σ_j exp(x[j] - m)
//
// Backward is the identity. That is only correct when the gradient arriving
// from above is already softmax(x) - onehot(target), i.e. when the layer is
// the last stage of a Chain and is trained with SoftmaxCrossEntropy. NewChain
// rejects a Softmax anywhere but the end, and the trainer rejects any other
// loss after it.
type Softmax struct {
	size int
}

// NewSoftmax creates a Softmax over vectors of the given width.
func NewSoftmax(size int) *Softmax {
	if size <= 0 {
		panic(fmt.Sprintf("NewSoftmax: size must be positive, got %d", size))
	}
	return &Softmax{size: size}
}

// InputKind returns KindDense.
func (s *Softmax) InputKind() Kind { return KindDense }

// OutputKind returns KindDense.
func (s *Softmax) OutputKind() Kind { return KindDense }

// InSize returns the vector width.
func (s *Softmax) InSize() int { return s.size }

// OutSize returns the vector width.
func (s *Softmax) OutSize() int { return s.size }

// NewOutput allocates a zero output vector.
func (s *Softmax) NewOutput() Dense { return NewDense(s.size) }

// Forward writes the normalized exponential of input into output.
func (s *Softmax) Forward(input Buffer, output Dense) {
	x := checkDense("Softmax.Forward", input, s.size)
	checkWidth("Softmax.Forward", output, s.size)
	softmaxInto(x, output)
}

// Backward copies gradOutput into gradInput unchanged.
func (s *Softmax) Backward(gradOutput Dense, input Buffer, gradInput Dense) {
	checkDense("Softmax.Backward", input, s.size)
	checkWidth("Softmax.Backward", gradOutput, s.size)
	if gradInput == nil {
		return
	}
	checkWidth("Softmax.Backward", gradInput, s.size)
	copy(gradInput, gradOutput)
}

// Step does nothing (Softmax has no trainable parameters).
func (s *Softmax) Step(float32, int) {}

// Parameters returns nil (Softmax has no trainable parameters).
func (s *Softmax) Parameters() []*Parameter { return nil }

// Identity passes dense vectors through unchanged. NewChain appends one as
// the terminal stage; it declares the output width of the chain.
type Identity struct {
	size int
}

// NewIdentity creates an Identity stage of the given width.
func NewIdentity(size int) *Identity {
	return &Identity{size: size}
}

// InputKind returns KindDense.
func (id *Identity) InputKind() Kind { return KindDense }

// OutputKind returns KindDense.
func (id *Identity) OutputKind() Kind { return KindDense }

// InSize returns the vector width.
func (id *Identity) InSize() int { return id.size }

// OutSize returns the vector width.
func (id *Identity) OutSize() int { return id.size }

// NewOutput allocates a zero output vector.
func (id *Identity) NewOutput() Dense { return NewDense(id.size) }

// Forward copies input into output.
func (id *Identity) Forward(input Buffer, output Dense) {
	x := checkDense("Identity.Forward", input, id.size)
	checkWidth("Identity.Forward", output, id.size)
	copy(output, x)
}

// Backward copies gradOutput into gradInput.
func (id *Identity) Backward(gradOutput Dense, _ Buffer, gradInput Dense) {
	checkWidth("Identity.Backward", gradOutput, id.size)
	if gradInput != nil {
		checkWidth("Identity.Backward", gradInput, id.size)
		copy(gradInput, gradOutput)
	}
}

// Step does nothing.
func (id *Identity) Step(float32, int) {}

// Parameters returns nil.
func (id *Identity) Parameters() []*Parameter { return nil }

// softmaxInto computes the max-shifted softmax of z into out.
func softmaxInto(z, out []float32) {
	m := maxOf(z)
	var sum float32
	for i, v := range z {
		e := math32.Exp(v - m)
		out[i] = e
		sum += e
	}
	for i := range out {
		out[i] /= sum
	}
}

// maxOf returns the largest element of z. z must be non-empty.
func maxOf(z []float32) float32 {
	m := math32.Inf(-1)
	for _, v := range z {
		m = math32.Max(m, v)
	}
	return m
}

func checkDense(where string, b Buffer, size int) Dense {
	d, ok := b.(Dense)
	if !ok {
		panic(fmt.Sprintf("%s: expected dense input, got %v", where, b.Kind()))
	}
	checkWidth(where, d, size)
	return d
}

func checkWidth(where string, d Dense, size int) {
	if len(d) != size {
		panic(fmt.Sprintf("%s: expected width %d, got %d", where, size, len(d)))
	}
}
