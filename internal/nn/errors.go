package nn

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrEmptyChain    = errors.New("chain has no layers")
	ErrUnknownLayer  = errors.New("unknown layer kind")
	ErrMissingTensor = errors.New("missing tensor in state dict")
)

// ShapeError describes two adjacent layers whose boundary does not agree.
type ShapeError struct {
	Position int    // Index of the layer on the right-hand side of the boundary
	Details  string // What disagreed
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("layer %d: %s", e.Position, e.Details)
}
