package nn

import (
	"fmt"
	"strings"
)

// Tensor is a flat float32 buffer with a shape, used to move parameters in
// and out of a layer.
type Tensor struct {
	Shape []int
	Data  []float32
}

// NumElements returns the product of the shape dimensions.
func (t Tensor) NumElements() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// paramStateDict exports params as name -> Tensor. Data is copied.
func paramStateDict(params []*Parameter) map[string]Tensor {
	stateDict := make(map[string]Tensor, len(params))
	for _, p := range params {
		data := make([]float32, len(p.data))
		copy(data, p.data)
		stateDict[p.name] = Tensor{Shape: p.Shape(), Data: data}
	}
	return stateDict
}

// loadParams copies tensors from stateDict into params after validating shapes.
func loadParams(params []*Parameter, stateDict map[string]Tensor) error {
	for _, p := range params {
		t, ok := stateDict[p.name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingTensor, p.name)
		}
		if !shapeEqual(t.Shape, p.shape) {
			return fmt.Errorf("%s shape mismatch: expected %v, got %v", p.name, p.shape, t.Shape)
		}
		if len(t.Data) != len(p.data) {
			return fmt.Errorf("%s size mismatch: expected %d values, got %d", p.name, len(p.data), len(t.Data))
		}
		copy(p.data, t.Data)
	}
	return nil
}

// StateDict returns a copy of the weight and bias.
func (l *Linear) StateDict() map[string]Tensor {
	return paramStateDict(l.Parameters())
}

// LoadStateDict loads weight and bias, validating their shapes.
func (l *Linear) LoadStateDict(stateDict map[string]Tensor) error {
	return loadParams(l.Parameters(), stateDict)
}

// StateDict returns a copy of the weight and bias.
func (l *SparseLinear) StateDict() map[string]Tensor {
	return paramStateDict(l.Parameters())
}

// LoadStateDict loads weight and bias, validating their shapes.
func (l *SparseLinear) LoadStateDict(stateDict map[string]Tensor) error {
	return loadParams(l.Parameters(), stateDict)
}

// stateful is implemented by layers that carry parameters.
type stateful interface {
	StateDict() map[string]Tensor
	LoadStateDict(map[string]Tensor) error
}

// Leaves returns the user layers of c with nested chains expanded in place.
// A layer's position here is the prefix of its state-dict keys.
func (c *Chain) Leaves() []Layer {
	var out []Layer
	for k := 0; k < c.Len(); k++ {
		if sub, ok := c.layers[k].(*Chain); ok {
			out = append(out, sub.Leaves()...)
			continue
		}
		out = append(out, c.layers[k])
	}
	return out
}

// StateDict returns a map of parameter names to tensors.
//
// Parameters are prefixed with their layer index (e.g., "0.weight", "0.bias",
// "2.weight") to avoid name collisions. Nested chains are flattened first, so
// indices agree with Specs. Layers without parameters contribute nothing.
func (c *Chain) StateDict() map[string]Tensor {
	stateDict := make(map[string]Tensor)
	for i, l := range c.Leaves() {
		s, ok := l.(stateful)
		if !ok {
			continue
		}
		for name, t := range s.StateDict() {
			stateDict[fmt.Sprintf("%d.%s", i, name)] = t
		}
	}
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary produced by
// StateDict. Every parametric layer must find all of its tensors.
func (c *Chain) LoadStateDict(stateDict map[string]Tensor) error {
	for i, l := range c.Leaves() {
		s, ok := l.(stateful)
		if !ok {
			continue
		}

		prefix := fmt.Sprintf("%d.", i)
		layerDict := make(map[string]Tensor)
		for key, t := range stateDict {
			if name, found := strings.CutPrefix(key, prefix); found {
				layerDict[name] = t
			}
		}

		if err := s.LoadStateDict(layerDict); err != nil {
			return fmt.Errorf("failed to load layer %d: %w", i, err)
		}
	}
	return nil
}
