package compute

import (
	"github.com/born-ml/lower/internal/dnn"
	"github.com/born-ml/lower/internal/tensor"
	"github.com/pkg/errors"
)

// Gemm lowers alpha * op(lhs) @ op(rhs) + beta * bias for 2-D operands,
// where op transposes when the matching flag is set. outShape is {M, N}; an
// absent bias, or beta 0, skips the addition.
func (c *Computation) Gemm(lhs Value, transA bool, rhs Value, transB bool, alpha, beta float32, bias Value,
	outShape tensor.Shape, name string,
) (Value, error) {
	const op = "gemm"
	return c.lower(op, func() (Value, error) {
		a, err := c.record(lhs)
		if err != nil {
			return Value{}, err
		}
		b, err := c.record(rhs)
		if err != nil {
			return Value{}, err
		}
		bi, err := c.optional(bias)
		if err != nil {
			return Value{}, err
		}
		dt := a.typ.ElementType
		if b.typ.ElementType != dt {
			return Value{}, errors.Wrapf(ErrUnsupported, "%s of %s and %s", op, a.typ, b.typ)
		}
		if err := requireFloat(op, dt); err != nil {
			return Value{}, err
		}
		if len(a.typ.Shape) != 2 || len(b.typ.Shape) != 2 || len(outShape) != 2 {
			return Value{}, errors.Wrapf(ErrUnsupported, "%s on %s and %s into %v", op, a.typ, b.typ, []int(outShape))
		}

		m, n := outShape[0], outShape[1]
		k := b.typ.Shape[0]
		if transB {
			k = b.typ.Shape[1]
		}
		aDesc, err := matrixDesc(a.typ, m, k, transA)
		if err != nil {
			return Value{}, err
		}
		bDesc, err := matrixDesc(b.typ, k, n, transB)
		if err != nil {
			return Value{}, err
		}
		outTyp := tensor.ValueType{ElementType: dt, Shape: outShape.Clone()}
		dstDesc, err := denseDesc(outTyp)
		if err != nil {
			return Value{}, err
		}

		prim, err := dnn.NewMatmul(aDesc, bDesc, dstDesc, alpha)
		if err != nil {
			return Value{}, native(err, "%s descriptor", op)
		}
		dst, err := c.newMemory(dstDesc)
		if err != nil {
			return Value{}, err
		}
		c.appendStep(op, prim, dnn.Args{dnn.ArgSrc: a.mem, dnn.ArgWeights: b.mem, dnn.ArgDst: dst})

		if bi == nil || beta == 0 {
			return c.newValue(outTyp, dst, name), nil
		}
		v := c.newValue(outTyp, dst, "")
		if beta != 1 {
			if bias, err = c.eltwise(op, dnn.EltwiseLinear, bias, beta, 0, ""); err != nil {
				return Value{}, err
			}
		}
		return c.binary(op, dnn.BinaryAdd, v, bias, name)
	})
}

// matrixDesc describes a stored 2-D operand read as a rows x cols matrix,
// transposed through strides when trans is set.
func matrixDesc(typ tensor.ValueType, rows, cols int, trans bool) (dnn.Desc, error) {
	want := tensor.Shape{rows, cols}
	strides := []int{cols, 1}
	if trans {
		want = tensor.Shape{cols, rows}
		strides = []int{1, rows}
	}
	if !typ.Shape.Equal(want) {
		return dnn.Desc{}, errors.Wrapf(ErrInvalidShape, "gemm operand %v, want %v", []int(typ.Shape), []int(want))
	}
	d, err := dnn.NewStridedDesc([]int{rows, cols}, typ.ElementType, strides)
	return d, native(err, "gemm operand")
}
