package compute

import (
	"github.com/born-ml/lower/internal/dnn"
	"github.com/born-ml/lower/internal/tensor"
	"github.com/pkg/errors"
)

// Add lowers elementwise lhs + rhs. The result has the shape of lhs; rhs is
// broadcast onto it.
func (c *Computation) Add(lhs, rhs Value, name string) (Value, error) {
	return c.lower("add", func() (Value, error) {
		return c.binary("add", dnn.BinaryAdd, lhs, rhs, name)
	})
}

// Mul lowers elementwise lhs * rhs with the broadcasting rules of Add.
func (c *Computation) Mul(lhs, rhs Value, name string) (Value, error) {
	return c.lower("mul", func() (Value, error) {
		return c.binary("mul", dnn.BinaryMul, lhs, rhs, name)
	})
}

func (c *Computation) binary(op string, alg dnn.BinaryAlg, lhs, rhs Value, name string) (Value, error) {
	l, err := c.record(lhs)
	if err != nil {
		return Value{}, err
	}
	r, err := c.record(rhs)
	if err != nil {
		return Value{}, err
	}
	dt := l.typ.ElementType
	if r.typ.ElementType != dt {
		return Value{}, errors.Wrapf(ErrUnsupported, "%s of %s and %s", op, l.typ, r.typ)
	}
	lhsDesc, err := l.desc()
	if err != nil {
		return Value{}, err
	}
	rhsDesc, err := broadcastDesc(l.typ, r.typ, lhsDesc)
	if err != nil {
		return Value{}, errors.WithMessage(err, op)
	}

	prim, err := dnn.NewBinary(alg, lhsDesc, rhsDesc, lhsDesc)
	if err != nil {
		return Value{}, native(err, "%s descriptor", op)
	}
	dst, err := c.newMemory(lhsDesc)
	if err != nil {
		return Value{}, err
	}
	c.appendStep(op, prim, dnn.Args{dnn.ArgSrc: l.mem, dnn.ArgSrc1: r.mem, dnn.ArgDst: dst})
	return c.newValue(tensor.ValueType{ElementType: dt, Shape: l.typ.Shape.Clone()}, dst, name), nil
}

// broadcastDesc describes rhs read as if it had the shape of lhs.
//
// Operands of equal rank and element count are both read in the packed lhs
// format, whatever their dims. Otherwise rhs is aligned on the trailing dims
// of lhs: each rhs dim must equal the lhs dim or be 1, which reads with
// stride 0, as do the leading lhs dims rhs lacks.
func broadcastDesc(lhs, rhs tensor.ValueType, lhsDesc dnn.Desc) (dnn.Desc, error) {
	ln, rn := totalElements(lhs.Shape), totalElements(rhs.Shape)
	if len(lhs.Shape) == len(rhs.Shape) && ln == rn {
		return lhsDesc, nil
	}
	if len(rhs.Shape) > len(lhs.Shape) || rn == 0 || ln%rn != 0 {
		return dnn.Desc{}, errors.Wrapf(ErrInvalidShape, "cannot broadcast %v onto %v", []int(rhs.Shape), []int(lhs.Shape))
	}
	strides, err := tensor.BroadcastStrides(rhs.Shape, lhs.Shape)
	if err != nil {
		return dnn.Desc{}, errors.Wrap(ErrInvalidShape, err.Error())
	}
	d, err := dnn.NewStridedDesc(lhs.Shape, rhs.ElementType, strides)
	return d, native(err, "broadcast %v", []int(rhs.Shape))
}

// Sigmoid lowers 1 / (1 + exp(-x)).
func (c *Computation) Sigmoid(input Value, name string) (Value, error) {
	return c.lower("sigmoid", func() (Value, error) {
		return c.eltwise("sigmoid", dnn.EltwiseLogistic, input, 0, 0, name)
	})
}

// Relu lowers max(x, 0).
func (c *Computation) Relu(input Value, name string) (Value, error) {
	return c.lower("relu", func() (Value, error) {
		return c.eltwise("relu", dnn.EltwiseRelu, input, 0, 0, name)
	})
}

// LeakyRelu lowers x for x > 0 and alpha*x otherwise. Alpha 0 is Relu.
func (c *Computation) LeakyRelu(input Value, alpha float32, name string) (Value, error) {
	return c.lower("leaky_relu", func() (Value, error) {
		return c.eltwise("leaky_relu", dnn.EltwiseRelu, input, alpha, 0, name)
	})
}

// Clamp lowers min(max(x, lo), hi).
func (c *Computation) Clamp(input Value, lo, hi float32, name string) (Value, error) {
	return c.lower("clamp", func() (Value, error) {
		if lo > hi {
			return Value{}, errors.Wrapf(ErrInvalidValue, "clamp bounds %g > %g", lo, hi)
		}
		return c.eltwise("clamp", dnn.EltwiseClip, input, lo, hi, name)
	})
}

func (c *Computation) eltwise(op string, alg dnn.EltwiseAlg, input Value, alpha, beta float32, name string) (Value, error) {
	in, err := c.record(input)
	if err != nil {
		return Value{}, err
	}
	if err := requireFloat(op, in.typ.ElementType); err != nil {
		return Value{}, err
	}
	d, err := in.desc()
	if err != nil {
		return Value{}, err
	}
	prim, err := dnn.NewEltwise(alg, d, d, alpha, beta)
	if err != nil {
		return Value{}, native(err, "%s descriptor", op)
	}
	dst, err := c.newMemory(d)
	if err != nil {
		return Value{}, err
	}
	c.appendStep(op, prim, dnn.Args{dnn.ArgSrc: in.mem, dnn.ArgDst: dst})
	return c.newValue(tensor.ValueType{ElementType: in.typ.ElementType, Shape: in.typ.Shape.Clone()}, dst, name), nil
}
