package tensor

import "fmt"

// MaxRank is the highest rank a graph value may carry.
const MaxRank = 6

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks that every dimension is non-negative.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim < 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be >= 0)", i, dim)
		}
	}
	return nil
}

// ValidateRank checks the dimensions and that the rank lies in [1, MaxRank].
func (s Shape) ValidateRank() error {
	if len(s) < 1 || len(s) > MaxRank {
		return fmt.Errorf("rank %d outside [1, %d]", len(s), MaxRank)
	}
	return s.Validate()
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
// Strides define memory layout: stride[i] = product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// BroadcastStrides returns strides that let a tensor of shape in be read as if
// it had shape out. Shapes are aligned on their trailing dimensions: leading
// dimensions of out that in lacks get stride 0, and so do dimensions where in
// has size 1.
//
// Examples:
//
//	(4)     onto (2, 3, 4) → [0, 0, 1]
//	(3, 1)  onto (2, 3, 4) → [0, 1, 0]
//	(3, 4)  onto (2, 3, 4) → [0, 4, 1]
//	(5)     onto (2, 3, 4) → error
func BroadcastStrides(in, out Shape) ([]int, error) {
	if len(in) > len(out) {
		return nil, fmt.Errorf("cannot broadcast rank %d onto rank %d", len(in), len(out))
	}

	offset := len(out) - len(in)
	origStrides := in.ComputeStrides()
	strides := make([]int, len(out))

	for i := range out {
		inIdx := i - offset
		switch {
		case inIdx < 0:
			strides[i] = 0
		case in[inIdx] == out[i]:
			strides[i] = origStrides[inIdx]
		case in[inIdx] == 1:
			strides[i] = 0
		default:
			return nil, fmt.Errorf("shapes not compatible for broadcasting: %v onto %v (dimension %d: %d vs %d)",
				in, out, i, in[inIdx], out[i])
		}
	}

	return strides, nil
}
