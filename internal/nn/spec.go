package nn

import (
	"fmt"
	"strings"
)

// Layer kinds accepted by LayerSpec.
const (
	LayerLinear       = "linear"
	LayerSparseLinear = "sparse_linear"
	LayerReLU         = "relu"
	LayerSoftmax      = "softmax"
)

// LayerSpec describes one layer by kind and dimensions.
//
// Activations only use In; Out is taken to equal In when left at zero.
type LayerSpec struct {
	Kind string `yaml:"kind" json:"kind"`
	In   int    `yaml:"in" json:"in"`
	Out  int    `yaml:"out,omitempty" json:"out,omitempty"`
}

// String returns a compact description such as "linear(128->2)".
func (s LayerSpec) String() string {
	switch s.Kind {
	case LayerLinear, LayerSparseLinear:
		return fmt.Sprintf("%s(%d->%d)", s.Kind, s.In, s.Out)
	default:
		return fmt.Sprintf("%s(%d)", s.Kind, s.In)
	}
}

// Build constructs the layers described by specs, in order, and links them
// into a Chain. Weights of every parametric layer are drawn from init.
//
// Returns an error for unknown kinds, non-positive dimensions, or any
// boundary NewChain rejects.
func Build(specs []LayerSpec, init Initializer) (*Chain, error) {
	if len(specs) == 0 {
		return nil, ErrEmptyChain
	}

	layers := make([]Layer, 0, len(specs))
	for k, s := range specs {
		l, err := s.build(init)
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", k, s, err)
		}
		layers = append(layers, l)
	}
	return NewChain(layers...)
}

func (s LayerSpec) build(init Initializer) (Layer, error) {
	out := s.Out
	if out == 0 {
		out = s.In
	}
	if s.In <= 0 || out <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got in=%d out=%d", s.In, out)
	}

	switch strings.ToLower(s.Kind) {
	case LayerLinear:
		return NewLinear(s.In, out, init), nil
	case LayerSparseLinear:
		return NewSparseLinear(s.In, out, init), nil
	case LayerReLU:
		if out != s.In {
			return nil, fmt.Errorf("relu cannot change width (%d -> %d)", s.In, out)
		}
		return NewReLU(s.In), nil
	case LayerSoftmax:
		if out != s.In {
			return nil, fmt.Errorf("softmax cannot change width (%d -> %d)", s.In, out)
		}
		return NewSoftmax(s.In), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownLayer, s.Kind)
	}
}

// Specs describes the user layers of c as LayerSpecs. Nested chains are
// flattened.
func (c *Chain) Specs() []LayerSpec {
	var specs []LayerSpec
	for _, l := range c.Leaves() {
		switch l := l.(type) {
		case *Linear:
			specs = append(specs, LayerSpec{Kind: LayerLinear, In: l.InSize(), Out: l.OutSize()})
		case *SparseLinear:
			specs = append(specs, LayerSpec{Kind: LayerSparseLinear, In: l.InSize(), Out: l.OutSize()})
		case *ReLU:
			specs = append(specs, LayerSpec{Kind: LayerReLU, In: l.InSize()})
		case *Softmax:
			specs = append(specs, LayerSpec{Kind: LayerSoftmax, In: l.InSize()})
		}
	}
	return specs
}
