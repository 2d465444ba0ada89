package compute

import (
	"github.com/born-ml/lower/internal/dnn"
	"github.com/born-ml/lower/internal/tensor"
	"github.com/pkg/errors"
)

// Concat lowers the concatenation of values along axis. A negative axis
// counts from the end.
func (c *Computation) Concat(values []Value, axis int, outShape tensor.Shape, name string) (Value, error) {
	const op = "concat"
	return c.lower(op, func() (Value, error) {
		if len(values) == 0 {
			return Value{}, errors.Wrap(ErrInvalidValue, "concat of no values")
		}
		recs := make([]*valueRecord, len(values))
		for i, v := range values {
			r, err := c.record(v)
			if err != nil {
				return Value{}, err
			}
			recs[i] = r
		}
		dt := recs[0].typ.ElementType
		rank := len(outShape)
		if axis < 0 {
			axis += rank
		}
		if axis < 0 || axis >= rank {
			return Value{}, errors.Wrapf(ErrInvalidShape, "concat axis %d of rank %d", axis, rank)
		}

		srcs := make([]dnn.Desc, len(recs))
		sum := 0
		for i, r := range recs {
			if r.typ.ElementType != dt {
				return Value{}, errors.Wrapf(ErrUnsupported, "concat of %s and %s", recs[0].typ, r.typ)
			}
			if len(r.typ.Shape) != rank {
				return Value{}, errors.Wrapf(ErrInvalidShape, "concat operand %d %v into %v", i, []int(r.typ.Shape), []int(outShape))
			}
			for a, d := range r.typ.Shape {
				if a != axis && d != outShape[a] {
					return Value{}, errors.Wrapf(ErrInvalidShape, "concat operand %d %v into %v", i, []int(r.typ.Shape), []int(outShape))
				}
			}
			sum += r.typ.Shape[axis]
			d, err := r.desc()
			if err != nil {
				return Value{}, err
			}
			srcs[i] = d
		}
		if sum != outShape[axis] {
			return Value{}, errors.Wrapf(ErrInvalidShape, "concat axis %d sums to %d, output has %d", axis, sum, outShape[axis])
		}

		outTyp := tensor.ValueType{ElementType: dt, Shape: outShape.Clone()}
		if err := checkValueType(outTyp); err != nil {
			return Value{}, err
		}
		dstDesc, err := denseDesc(outTyp)
		if err != nil {
			return Value{}, err
		}
		prim, err := dnn.NewConcat(dstDesc, axis, srcs)
		if err != nil {
			return Value{}, native(err, "%s descriptor", op)
		}
		dst, err := c.newMemory(dstDesc)
		if err != nil {
			return Value{}, err
		}
		args := dnn.Args{dnn.ArgDst: dst}
		for i, r := range recs {
			args[dnn.ArgMultipleSrc+i] = r.mem
		}
		c.appendStep(op, prim, args)
		return c.newValue(outTyp, dst, name), nil
	})
}

// Slice lowers the sub-region of input of shape outShape starting at start.
// Only unit strides are supported.
func (c *Computation) Slice(input Value, start, strides []int, outShape tensor.Shape, name string) (Value, error) {
	const op = "slice"
	return c.lower(op, func() (Value, error) {
		in, err := c.record(input)
		if err != nil {
			return Value{}, err
		}
		rank := len(in.typ.Shape)
		if len(start) != rank || len(strides) != rank || len(outShape) != rank {
			return Value{}, errors.Wrapf(ErrInvalidShape, "slice of %v with start %v strides %v into %v",
				[]int(in.typ.Shape), start, strides, []int(outShape))
		}
		for _, s := range strides {
			if s != 1 {
				return Value{}, errors.Wrapf(ErrUnsupported, "slice strides %v", strides)
			}
		}
		full, err := in.desc()
		if err != nil {
			return Value{}, err
		}
		region, err := full.Submemory(outShape, start)
		if err != nil {
			return Value{}, errors.Wrapf(ErrInvalidShape, "slice: %v", err)
		}
		return c.repackInto(op, in, region, outShape, name)
	})
}

// Transpose lowers a permutation of input's dims: output dim i is input dim
// perm[i].
func (c *Computation) Transpose(input Value, perm []int, outShape tensor.Shape, name string) (Value, error) {
	const op = "transpose"
	return c.lower(op, func() (Value, error) {
		in, err := c.record(input)
		if err != nil {
			return Value{}, err
		}
		dims := in.typ.Shape
		if len(perm) != len(dims) || len(outShape) != len(dims) {
			return Value{}, errors.Wrapf(ErrInvalidShape, "transpose of %v by %v into %v", []int(dims), perm, []int(outShape))
		}
		strides := rowMajorStrides(dims)
		permuted := make([]int, len(perm))
		seen := make([]bool, len(perm))
		for i, p := range perm {
			if p < 0 || p >= len(dims) || seen[p] || outShape[i] != dims[p] {
				return Value{}, errors.Wrapf(ErrInvalidShape, "transpose of %v by %v into %v", []int(dims), perm, []int(outShape))
			}
			seen[p] = true
			permuted[i] = strides[p]
		}
		view, err := dnn.NewStridedDesc(outShape, in.typ.ElementType, permuted)
		if err != nil {
			return Value{}, native(err, "%s", op)
		}
		return c.repackInto(op, in, view, outShape, name)
	})
}

// repackInto appends a reorder of in, read through view, into a new packed
// value of outShape.
func (c *Computation) repackInto(op string, in *valueRecord, view dnn.Desc, outShape tensor.Shape, name string) (Value, error) {
	outTyp := tensor.ValueType{ElementType: in.typ.ElementType, Shape: outShape.Clone()}
	if err := checkValueType(outTyp); err != nil {
		return Value{}, err
	}
	dstDesc, err := denseDesc(outTyp)
	if err != nil {
		return Value{}, err
	}
	dst, err := c.reorderStep(op, "input", view, in.mem, dstDesc)
	if err != nil {
		return Value{}, err
	}
	return c.newValue(outTyp, dst, name), nil
}

// Reshape returns a value of outShape sharing input's memory. No plan step
// is appended.
func (c *Computation) Reshape(input Value, outShape tensor.Shape, name string) (Value, error) {
	return c.lower("reshape", func() (Value, error) {
		in, err := c.record(input)
		if err != nil {
			return Value{}, err
		}
		if err := checkValueType(tensor.ValueType{ElementType: in.typ.ElementType, Shape: outShape}); err != nil {
			return Value{}, err
		}
		if totalElements(outShape) != totalElements(in.typ.Shape) {
			return Value{}, errors.Wrapf(ErrInvalidShape, "reshape of %v into %v", []int(in.typ.Shape), []int(outShape))
		}
		return c.alias(in, outShape, name), nil
	})
}
