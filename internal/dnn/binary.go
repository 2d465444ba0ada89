package dnn

import (
	"slices"

	"github.com/pkg/errors"
)

// BinaryAlg selects a binary elementwise operation.
type BinaryAlg int

// Binary algorithms.
const (
	BinaryAdd BinaryAlg = iota
	BinaryMul
)

func (a BinaryAlg) String() string {
	if a == BinaryMul {
		return "mul"
	}
	return "add"
}

// Binary computes dst = src0 op src1 elementwise. All three descriptors share
// logical dims; a broadcast operand is expressed with zero strides.
type Binary struct {
	alg             BinaryAlg
	src0, src1, dst Desc
}

// NewBinary builds a binary primitive.
func NewBinary(alg BinaryAlg, src0, src1, dst Desc) (*Binary, error) {
	for _, d := range []Desc{src0, src1, dst} {
		if d.IsAny() || d.IsZero() {
			return nil, errors.Wrapf(ErrInvalidDesc, "binary %s needs concrete formats", alg)
		}
	}
	if !slices.Equal(src0.dims, src1.dims) || !slices.Equal(src0.dims, dst.dims) {
		return nil, errors.Wrapf(ErrInvalidDesc, "binary %s dims %v, %v -> %v", alg, src0.dims, src1.dims, dst.dims)
	}
	if src0.dtype != src1.dtype || src0.dtype != dst.dtype {
		return nil, errors.Wrapf(ErrInvalidDesc, "binary %s types %s, %s -> %s", alg, src0.dtype, src1.dtype, dst.dtype)
	}
	return &Binary{alg: alg, src0: src0, src1: src1, dst: dst}, nil
}

// Kind implements Primitive.
func (b *Binary) Kind() Kind { return KindBinary }

// Execute implements Primitive.
func (b *Binary) Execute(args Args) error {
	lhs, err := args.argData(ArgSrc, b.src0)
	if err != nil {
		return err
	}
	rhs, err := args.argData(ArgSrc1, b.src1)
	if err != nil {
		return err
	}
	dst, err := args.argData(ArgDst, b.dst)
	if err != nil {
		return err
	}

	if !b.dst.dtype.IsFloat() {
		return b.executeInt(lhs, rhs, dst)
	}

	x, err := loadFloat32(b.src0, lhs)
	if err != nil {
		return err
	}
	y, err := loadFloat32(b.src1, rhs)
	if err != nil {
		return err
	}
	out, flush := float32Output(b.dst, dst)
	switch b.alg {
	case BinaryAdd:
		for i := range out {
			out[i] = x[i] + y[i]
		}
	case BinaryMul:
		for i := range out {
			out[i] = x[i] * y[i]
		}
	}
	return flush()
}

// executeInt keeps integer arithmetic exact by computing in int64.
func (b *Binary) executeInt(lhs, rhs, dst []byte) error {
	x, err := loadInt64(b.src0, lhs)
	if err != nil {
		return err
	}
	y, err := loadInt64(b.src1, rhs)
	if err != nil {
		return err
	}
	out := make([]int64, len(x))
	switch b.alg {
	case BinaryAdd:
		for i := range out {
			out[i] = x[i] + y[i]
		}
	case BinaryMul:
		for i := range out {
			out[i] = x[i] * y[i]
		}
	}
	if err := storeInt64(b.dst, dst, out); err != nil {
		return errors.Wrap(ErrExecution, err.Error())
	}
	return nil
}
