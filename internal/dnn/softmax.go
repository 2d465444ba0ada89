package dnn

import (
	"math"
	"slices"

	"github.com/pkg/errors"
)

// Softmax normalizes exponentials along one axis.
type Softmax struct {
	src, dst Desc
	axis     int
}

// NewSoftmax builds a softmax primitive over axis, which must lie in
// [0, rank).
func NewSoftmax(src, dst Desc, axis int) (*Softmax, error) {
	if src.IsAny() || dst.IsAny() || src.IsZero() || dst.IsZero() {
		return nil, errors.Wrapf(ErrInvalidDesc, "softmax needs concrete formats")
	}
	if !slices.Equal(src.dims, dst.dims) {
		return nil, errors.Wrapf(ErrInvalidDesc, "softmax dims %v -> %v", src.dims, dst.dims)
	}
	if axis < 0 || axis >= src.Rank() {
		return nil, errors.Wrapf(ErrInvalidDesc, "softmax axis %d for rank %d", axis, src.Rank())
	}
	if !src.dtype.IsFloat() || !dst.dtype.IsFloat() {
		return nil, errors.Wrapf(ErrInvalidDesc, "softmax on %s", src.dtype)
	}
	return &Softmax{src: src, dst: dst, axis: axis}, nil
}

// Kind implements Primitive.
func (s *Softmax) Kind() Kind { return KindSoftmax }

// Execute implements Primitive.
func (s *Softmax) Execute(args Args) error {
	src, err := args.argData(ArgSrc, s.src)
	if err != nil {
		return err
	}
	dst, err := args.argData(ArgDst, s.dst)
	if err != nil {
		return err
	}
	x, err := loadFloat32(s.src, src)
	if err != nil {
		return err
	}
	out, flush := float32Output(s.dst, dst)

	outer, inner := 1, 1
	for i, d := range s.src.dims {
		switch {
		case i < s.axis:
			outer *= d
		case i > s.axis:
			inner *= d
		}
	}
	size := s.src.dims[s.axis]

	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			base := o*size*inner + in

			// Subtract the max for numerical stability.
			maxVal := float32(math.Inf(-1))
			for i := 0; i < size; i++ {
				maxVal = max(maxVal, x[base+i*inner])
			}
			var sum float32
			for i := 0; i < size; i++ {
				e := float32(math.Exp(float64(x[base+i*inner] - maxVal)))
				out[base+i*inner] = e
				sum += e
			}
			for i := 0; i < size; i++ {
				out[base+i*inner] /= sum
			}
		}
	}
	return flush()
}
