package nn

import (
	"fmt"

	"github.com/born-ml/chain/internal/parallel"
)

// Chain is a container that links layers end to end.
//
// Each layer's output becomes the next layer's input. The boundary between
// every adjacent pair is checked at construction: buffer kind and width must
// agree. An Identity stage of the final width terminates the chain.
//
// Example:
//
//	model, err := nn.NewChain(
//	    nn.NewLinear(4, 3, init),
//	    nn.NewReLU(3),
//	    nn.NewLinear(3, 2, init),
//	)
//
//	out := model.NewOutput()
//	model.Forward(x, out)
//
// This is equivalent to:
//
//	h1 := linear1(x)
//	h2 := relu(h1)
//	out := linear2(h2)
//
// A Chain is itself a Layer, so chains nest. Intermediate buffers are
// allocated once at construction and reused for every sample. Backward uses
// the activations cached by the preceding Forward, so the two calls for one
// sample always see the same intermediate values.
//
// A Chain is not safe for concurrent use.
type Chain struct {
	layers []Layer // user layers followed by the terminal Identity

	acts  []Dense // acts[k] is the output of layers[k], k < len(layers)-1
	grads []Dense // grads[k] is the gradient with respect to acts[k]

	inferActs []Dense // separate scratch so Infer never disturbs acts

	lastInput Buffer // input of the most recent Forward
	primed    bool
}

// NewChain creates a Chain from layers, in order.
//
// Returns ErrEmptyChain for no layers, or a *ShapeError when:
//   - adjacent layers disagree on buffer kind or width
//   - a sparse-input layer appears anywhere but first
//   - a Softmax appears anywhere but last
//   - the same layer appears twice, directly or inside a nested chain
func NewChain(layers ...Layer) (*Chain, error) {
	if len(layers) == 0 {
		return nil, ErrEmptyChain
	}

	owner := make(map[Layer]int)
	for k, l := range layers {
		if l == nil {
			return nil, &ShapeError{Position: k, Details: "nil layer"}
		}
		for _, m := range members(l) {
			if j, dup := owner[m]; dup {
				return nil, &ShapeError{Position: k, Details: fmt.Sprintf("layer already used at position %d", j)}
			}
			owner[m] = k
		}
		if k > 0 && l.InputKind() == KindSparse {
			return nil, &ShapeError{Position: k, Details: "sparse-input layer must be the first stage"}
		}
		if k < len(layers)-1 && endsWithSoftmax(l) {
			return nil, &ShapeError{Position: k, Details: "softmax must be the last stage"}
		}
		if k == 0 {
			continue
		}
		prev := layers[k-1]
		if prev.OutputKind() != l.InputKind() {
			return nil, &ShapeError{
				Position: k,
				Details:  fmt.Sprintf("kind mismatch: previous layer outputs %v, layer expects %v", prev.OutputKind(), l.InputKind()),
			}
		}
		if prev.OutSize() != l.InSize() {
			return nil, &ShapeError{
				Position: k,
				Details:  fmt.Sprintf("width mismatch: previous layer outputs %d, layer expects %d", prev.OutSize(), l.InSize()),
			}
		}
	}

	last := layers[len(layers)-1]
	if last.OutputKind() != KindDense {
		return nil, &ShapeError{Position: len(layers) - 1, Details: "chain output must be dense"}
	}

	all := make([]Layer, 0, len(layers)+1)
	all = append(all, layers...)
	all = append(all, NewIdentity(last.OutSize()))

	c := &Chain{
		layers:    all,
		acts:      make([]Dense, len(all)-1),
		grads:     make([]Dense, len(all)-1),
		inferActs: make([]Dense, len(all)-1),
	}
	for k := 0; k < len(all)-1; k++ {
		c.acts[k] = all[k].NewOutput()
		c.grads[k] = all[k].NewOutput()
		c.inferActs[k] = all[k].NewOutput()
	}
	return c, nil
}

// MustChain is like NewChain but panics on error.
func MustChain(layers ...Layer) *Chain {
	c, err := NewChain(layers...)
	if err != nil {
		panic(fmt.Sprintf("MustChain: %v", err))
	}
	return c
}

// InputKind returns the input kind of the first layer.
func (c *Chain) InputKind() Kind { return c.layers[0].InputKind() }

// OutputKind returns KindDense.
func (c *Chain) OutputKind() Kind { return KindDense }

// InSize returns the input width of the first layer.
func (c *Chain) InSize() int { return c.layers[0].InSize() }

// OutSize returns the output width of the last layer.
func (c *Chain) OutSize() int { return c.layers[len(c.layers)-1].OutSize() }

// NewOutput allocates a zero vector of the chain's output width.
func (c *Chain) NewOutput() Dense { return NewDense(c.OutSize()) }

// Forward applies all layers in sequence and writes the result into output.
//
// The intermediate activations are kept for the next Backward call.
func (c *Chain) Forward(input Buffer, output Dense) {
	c.run(input, output, c.acts, false)
	c.lastInput = input
	c.primed = true
}

// Infer is Forward without touching the cached training activations.
//
// Parameters are never modified.
func (c *Chain) Infer(input Buffer, output Dense) {
	c.run(input, output, c.inferActs, true)
}

func (c *Chain) run(input Buffer, output Dense, acts []Dense, infer bool) {
	cur := input
	n := len(c.layers)
	for k := 0; k < n-1; k++ {
		forward(c.layers[k], cur, acts[k], infer)
		cur = acts[k]
	}
	forward(c.layers[n-1], cur, output, infer)
}

// forward routes nested chains to Infer so their training caches stay intact.
func forward(l Layer, input Buffer, output Dense, infer bool) {
	if sub, ok := l.(*Chain); ok && infer {
		sub.Infer(input, output)
		return
	}
	l.Forward(input, output)
}

// Backward propagates gradOutput through the layers in reverse order.
//
// input must be the buffer given to the immediately preceding Forward.
// Every layer accumulates its parameter gradients. gradInput receives the
// gradient with respect to input, or may be nil when it is not needed (it
// must be nil when the first layer takes sparse input).
func (c *Chain) Backward(gradOutput Dense, input Buffer, gradInput Dense) {
	if !c.primed {
		panic("Chain.Backward: called before Forward")
	}
	if !sameBuffer(input, c.lastInput) {
		panic("Chain.Backward: input differs from the one given to the preceding Forward")
	}

	g := gradOutput
	for k := len(c.layers) - 1; k > 0; k-- {
		c.layers[k].Backward(g, c.acts[k-1], c.grads[k-1])
		g = c.grads[k-1]
	}
	c.layers[0].Backward(g, input, gradInput)
}

// Step forwards the update to every layer.
func (c *Chain) Step(lr float32, batchSize int) {
	for _, l := range c.layers {
		l.Step(lr, batchSize)
	}
}

// SetParallel applies cfg to every member layer that runs a parallel kernel,
// including layers of nested chains.
func (c *Chain) SetParallel(cfg parallel.Config) {
	for _, l := range c.layers {
		if p, ok := l.(interface{ SetParallel(parallel.Config) }); ok {
			p.SetParallel(cfg)
		}
	}
}

// Parameters returns all trainable parameters from all layers, in order.
func (c *Chain) Parameters() []*Parameter {
	var params []*Parameter
	for _, l := range c.layers {
		params = append(params, l.Parameters()...)
	}
	return params
}

// ZeroGrad clears every gradient accumulator in the chain.
func (c *Chain) ZeroGrad() {
	for _, p := range c.Parameters() {
		p.ZeroGrad()
	}
}

// Len returns the number of user layers (the terminal Identity is not counted).
func (c *Chain) Len() int {
	return len(c.layers) - 1
}

// Layer returns the user layer at the given index.
//
// Panics if index is out of bounds.
func (c *Chain) Layer(index int) Layer {
	if index < 0 || index >= c.Len() {
		panic(fmt.Sprintf("Chain.Layer: index %d out of bounds [0, %d)", index, c.Len()))
	}
	return c.layers[index]
}

// Last returns the last user layer.
func (c *Chain) Last() Layer {
	return c.layers[c.Len()-1]
}

// EndsWithSoftmax reports whether the chain's final stage is a Softmax.
func (c *Chain) EndsWithSoftmax() bool {
	return endsWithSoftmax(c)
}

func endsWithSoftmax(l Layer) bool {
	switch v := l.(type) {
	case *Softmax:
		return true
	case *Chain:
		return endsWithSoftmax(v.Last())
	default:
		return false
	}
}

// members returns l together with every layer nested inside it.
func members(l Layer) []Layer {
	out := []Layer{l}
	if sub, ok := l.(*Chain); ok {
		for k := 0; k < sub.Len(); k++ {
			out = append(out, members(sub.layers[k])...)
		}
	}
	return out
}

// sameBuffer reports whether a and b share the same backing storage.
func sameBuffer(a, b Buffer) bool {
	switch x := a.(type) {
	case Dense:
		y, ok := b.(Dense)
		if !ok || len(x) != len(y) {
			return false
		}
		return len(x) == 0 || &x[0] == &y[0]
	case Sparse:
		y, ok := b.(Sparse)
		if !ok || len(x) != len(y) {
			return false
		}
		return len(x) == 0 || &x[0] == &y[0]
	default:
		return false
	}
}
