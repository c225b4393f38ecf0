package nn

import (
	"fmt"
	"sort"
)

// Kind identifies the representation of a Buffer flowing between layers.
type Kind int

const (
	// KindDense is a fixed-length vector addressed by position.
	KindDense Kind = iota
	// KindSparse is a list of (index, value) pairs with implicit zeros elsewhere.
	KindSparse
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindDense:
		return "dense"
	case KindSparse:
		return "sparse"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Buffer is a vector of float32 values in one of two representations.
//
// Buffer is a closed tagged union: the only implementations are Dense and
// Sparse. Layers switch on Kind (or type-assert) to reach the concrete form.
type Buffer interface {
	// Kind reports the representation of the buffer.
	Kind() Kind

	// ZerosLike returns a buffer of the same shape filled with zeros.
	//
	// For Dense this is a zero vector of the same length. For Sparse this
	// is an empty entry list, since every missing index is already zero.
	ZerosLike() Buffer
}

// Dense is a fixed-length vector of float32 values.
//
// Its length is fixed once created and equals the width declared by the
// layer boundary that produced it.
type Dense []float32

// NewDense allocates a zero-filled Dense buffer of the given width.
func NewDense(width int) Dense {
	if width < 0 {
		panic(fmt.Sprintf("NewDense: negative width %d", width))
	}
	return make(Dense, width)
}

// Kind returns KindDense.
func (d Dense) Kind() Kind { return KindDense }

// ZerosLike returns a zero vector with the same length.
func (d Dense) ZerosLike() Buffer { return make(Dense, len(d)) }

// Zero sets every element to zero in place.
func (d Dense) Zero() {
	for i := range d {
		d[i] = 0
	}
}

// Clone returns a copy that does not share storage with d.
func (d Dense) Clone() Dense {
	out := make(Dense, len(d))
	copy(out, d)
	return out
}

// Entry is one nonzero element of a Sparse buffer.
type Entry struct {
	Index int
	Value float32
}

// Sparse is a list of (index, value) pairs. Indices not present are zero.
//
// Sparse buffers are only ever the input to a layer; no layer produces one.
// They support iteration and Clear, but deliberately no random indexed
// write, which would defeat the point of the representation.
type Sparse []Entry

// Kind returns KindSparse.
func (s Sparse) Kind() Kind { return KindSparse }

// ZerosLike returns an empty Sparse buffer.
func (s Sparse) ZerosLike() Buffer { return Sparse{} }

// Clear removes all entries, keeping the underlying storage for reuse.
func (s *Sparse) Clear() {
	*s = (*s)[:0]
}

// Nnz returns the number of stored entries.
func (s Sparse) Nnz() int { return len(s) }

// Densify materializes the buffer as a Dense vector of the given width.
//
// Panics if an index falls outside [0, width).
func (s Sparse) Densify(width int) Dense {
	out := NewDense(width)
	for _, e := range s {
		if e.Index < 0 || e.Index >= width {
			panic(fmt.Sprintf("Sparse.Densify: index %d out of range [0, %d)", e.Index, width))
		}
		out[e.Index] += e.Value
	}
	return out
}

// Validate checks that every index lies in [0, width) and appears at most once.
func (s Sparse) Validate(width int) error {
	seen := make(map[int]struct{}, len(s))
	for _, e := range s {
		if e.Index < 0 || e.Index >= width {
			return fmt.Errorf("sparse index %d out of range [0, %d)", e.Index, width)
		}
		if _, dup := seen[e.Index]; dup {
			return fmt.Errorf("sparse index %d appears more than once", e.Index)
		}
		seen[e.Index] = struct{}{}
	}
	return nil
}

// Sort orders the entries by index in place.
func (s Sparse) Sort() {
	sort.Slice(s, func(i, j int) bool { return s[i].Index < s[j].Index })
}
