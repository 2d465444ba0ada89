package compute

import (
	"github.com/born-ml/lower/internal/dnn"
	"github.com/born-ml/lower/internal/metrics"
	"github.com/born-ml/lower/internal/tensor"
	"github.com/pkg/errors"
)

// normDesc describes an activation for per-channel primitives: canonical
// {N, C, ...} dims, stored as declared by layout.
func normDesc(in *valueRecord, layout tensor.Layout) (dnn.Desc, error) {
	switch layout {
	case tensor.ChannelsLast:
		dims, err := activationDims(in.typ.Shape, layout)
		if err != nil {
			return dnn.Desc{}, err
		}
		return layoutDesc(dims, in.typ.ElementType, layout, 1)
	case tensor.ChannelsFirst, tensor.LayoutDefault:
		if len(in.typ.Shape) < 2 {
			return dnn.Desc{}, errors.Wrapf(ErrInvalidShape, "no channel dim in %v", []int(in.typ.Shape))
		}
		return in.desc()
	}
	return dnn.Desc{}, errors.Wrapf(ErrUnsupported, "layout %s", layout)
}

// BatchNormalization lowers inference batch normalization with supplied
// statistics:
//
//	y = (x - mean) / sqrt(variance + epsilon) * scale + offset
//
// Absent scale or offset values are replaced by the scalar ones.
func (c *Computation) BatchNormalization(input Value, layout tensor.Layout, mean, variance Value, epsilon float32,
	scale, offset Value, scalarScale, scalarOffset float32, name string,
) (Value, error) {
	const op = "batch_normalization"
	return c.lower(op, func() (Value, error) {
		in, err := c.record(input)
		if err != nil {
			return Value{}, err
		}
		if err := requireFloat(op, in.typ.ElementType); err != nil {
			return Value{}, err
		}
		src, err := normDesc(in, layout)
		if err != nil {
			return Value{}, err
		}
		channels := src.Dims()[1]

		m, err := c.record(mean)
		if err != nil {
			return Value{}, err
		}
		v, err := c.record(variance)
		if err != nil {
			return Value{}, err
		}
		if m.typ.ElementType != v.typ.ElementType {
			return Value{}, errors.Wrapf(ErrUnsupported, "%s mean %s with variance %s", op, m.typ, v.typ)
		}
		if err := requireFloat(op, m.typ.ElementType); err != nil {
			return Value{}, err
		}
		if m.typ.NumElements() != channels || v.typ.NumElements() != channels {
			return Value{}, errors.Wrapf(ErrInvalidShape, "%s stats %s/%s for %d channels", op, m.typ, v.typ, channels)
		}
		stats, err := dnn.NewDesc([]int{channels}, m.typ.ElementType, dnn.FormatA)
		if err != nil {
			return Value{}, native(err, "%s", op)
		}

		bn, err := dnn.NewBatchNorm(src, src, stats, epsilon, dnn.UseGlobalStats|dnn.UseScaleShift, c.engine)
		if err != nil {
			return Value{}, native(err, "%s descriptor", op)
		}
		ss, err := c.newMemory(bn.ScaleShiftDesc())
		if err != nil {
			return Value{}, err
		}
		for row, operand := range []struct {
			name   string
			value  Value
			scalar float32
		}{
			{"scale", scale, scalarScale},
			{"offset", offset, scalarOffset},
		} {
			rec, err := c.optional(operand.value)
			if err != nil {
				return Value{}, err
			}
			if err := c.fillScaleShiftRow(op, operand.name, ss, row, rec, operand.scalar); err != nil {
				return Value{}, err
			}
		}

		dst, err := c.newMemory(src)
		if err != nil {
			return Value{}, err
		}
		c.appendStep(op, bn, dnn.Args{
			dnn.ArgSrc:        in.mem,
			dnn.ArgMean:       m.mem,
			dnn.ArgVariance:   v.mem,
			dnn.ArgScaleShift: ss,
			dnn.ArgDst:        dst,
		})
		return c.newValue(tensor.ValueType{ElementType: in.typ.ElementType, Shape: in.typ.Shape.Clone()}, dst, name), nil
	})
}

// fillScaleShiftRow writes one row of the {2, C} scale/shift buffer: a splat
// of scalar when rec is absent, a build-time copy of a constant, or a plan
// step copying a runtime value.
func (c *Computation) fillScaleShiftRow(op, operand string, ss *dnn.Memory, row int, rec *valueRecord, scalar float32) error {
	ssDesc := ss.Desc()
	channels := ssDesc.Dims()[1]
	dt := ssDesc.DataType()
	if rec == nil {
		vals := make([]float32, channels)
		for i := range vals {
			vals[i] = scalar
		}
		es := dt.Size()
		if err := tensor.EncodeFloat32(ss.Data()[row*channels*es:], vals, dt); err != nil {
			return errors.Wrapf(ErrNativeFailure, "%s: fill %s: %v", op, operand, err)
		}
		return nil
	}

	if err := requireFloat(op, rec.typ.ElementType); err != nil {
		return err
	}
	if rec.typ.NumElements() != channels {
		return errors.Wrapf(ErrInvalidShape, "%s %s %s for %d channels", op, operand, rec.typ, channels)
	}
	from, err := dnn.NewDesc([]int{1, channels}, rec.typ.ElementType, dnn.FormatAB)
	if err != nil {
		return native(err, "%s %s", op, operand)
	}
	to, err := ssDesc.Submemory([]int{1, channels}, []int{row, 0})
	if err != nil {
		return native(err, "%s %s", op, operand)
	}
	r, err := dnn.NewReorder(from, to)
	if err != nil {
		return native(err, "%s %s", op, operand)
	}
	args := dnn.Args{dnn.ArgFrom: rec.mem, dnn.ArgTo: ss}
	if rec.isConst {
		if err := dnn.Run(c.engine, r, args); err != nil {
			return native(err, "%s: copy %s", op, operand)
		}
		metrics.RecordRepack(operand, "build")
		return nil
	}
	c.appendStep(op, r, args)
	metrics.RecordRepack(operand, "plan")
	return nil
}

// LRN lowers cross-channel local response normalization:
//
//	y = x / (bias + alpha/windowSize * sum(x²))^beta
//
// where the sum runs over the windowSize channels centred on x. The window
// must be odd.
func (c *Computation) LRN(input Value, layout tensor.Layout, windowSize int, alpha, beta, bias float32, name string) (Value, error) {
	const op = "lrn"
	return c.lower(op, func() (Value, error) {
		in, err := c.record(input)
		if err != nil {
			return Value{}, err
		}
		if err := requireFloat(op, in.typ.ElementType); err != nil {
			return Value{}, err
		}
		if windowSize < 1 {
			return Value{}, errors.Wrapf(ErrInvalidValue, "lrn window %d", windowSize)
		}
		if windowSize%2 == 0 {
			return Value{}, errors.Wrapf(ErrUnsupported, "even lrn window %d", windowSize)
		}
		src, err := normDesc(in, layout)
		if err != nil {
			return Value{}, err
		}
		prim, err := dnn.NewLRN(src, src, windowSize, alpha, beta, bias)
		if err != nil {
			return Value{}, native(err, "%s descriptor", op)
		}
		dst, err := c.newMemory(src)
		if err != nil {
			return Value{}, err
		}
		c.appendStep(op, prim, dnn.Args{dnn.ArgSrc: in.mem, dnn.ArgDst: dst})
		return c.newValue(tensor.ValueType{ElementType: in.typ.ElementType, Shape: in.typ.Shape.Clone()}, dst, name), nil
	})
}

// Softmax lowers softmax along axis. A negative axis counts from the end.
func (c *Computation) Softmax(input Value, axis int, name string) (Value, error) {
	const op = "softmax"
	return c.lower(op, func() (Value, error) {
		in, err := c.record(input)
		if err != nil {
			return Value{}, err
		}
		if err := requireFloat(op, in.typ.ElementType); err != nil {
			return Value{}, err
		}
		rank := len(in.typ.Shape)
		if axis < 0 {
			axis += rank
		}
		if axis < 0 || axis >= rank {
			return Value{}, errors.Wrapf(ErrInvalidShape, "softmax axis %d of rank %d", axis, rank)
		}
		d, err := in.desc()
		if err != nil {
			return Value{}, err
		}
		prim, err := dnn.NewSoftmax(d, d, axis)
		if err != nil {
			return Value{}, native(err, "%s descriptor", op)
		}
		dst, err := c.newMemory(d)
		if err != nil {
			return Value{}, err
		}
		c.appendStep(op, prim, dnn.Args{dnn.ArgSrc: in.mem, dnn.ArgDst: dst})
		return c.newValue(tensor.ValueType{ElementType: in.typ.ElementType, Shape: in.typ.Shape.Clone()}, dst, name), nil
	})
}
