package compute

import (
	"slices"

	"github.com/born-ml/lower/internal/dnn"
	"github.com/born-ml/lower/internal/tensor"
	"github.com/pkg/errors"
)

// PoolParams holds a 2-D pooling window. Index 0 is height, index 1 width.
type PoolParams struct {
	Window   [2]int
	Strides  [2]int
	PadFront [2]int
	PadBack  [2]int
}

// MaxPool lowers 2-D max pooling. The output shape is given in layout.
func (c *Computation) MaxPool(input Value, layout tensor.Layout, p PoolParams, outShape tensor.Shape, name string) (Value, error) {
	return c.lower("max_pool", func() (Value, error) {
		return c.pool("max_pool", dnn.PoolingMax, input, layout, p, outShape, name)
	})
}

// AveragePool lowers 2-D average pooling. Padded taps are not counted.
func (c *Computation) AveragePool(input Value, layout tensor.Layout, p PoolParams, outShape tensor.Shape, name string) (Value, error) {
	return c.lower("average_pool", func() (Value, error) {
		return c.pool("average_pool", dnn.PoolingAvg, input, layout, p, outShape, name)
	})
}

func (c *Computation) pool(op string, alg dnn.PoolingAlg, input Value, layout tensor.Layout, p PoolParams,
	outShape tensor.Shape, name string,
) (Value, error) {
	in, err := c.record(input)
	if err != nil {
		return Value{}, err
	}
	dt := in.typ.ElementType
	if err := requireFloat(op, dt); err != nil {
		return Value{}, err
	}
	if err := checkValueType(tensor.ValueType{ElementType: dt, Shape: outShape}); err != nil {
		return Value{}, err
	}
	if layout != tensor.ChannelsFirst && layout != tensor.ChannelsLast {
		return Value{}, errors.Wrapf(ErrUnsupported, "%s layout %s", op, layout)
	}
	inDims, err := activationDims(in.typ.Shape, layout)
	if err != nil {
		return Value{}, err
	}
	outDims, err := activationDims(outShape, layout)
	if err != nil {
		return Value{}, err
	}
	if inDims[0] != outDims[0] || inDims[1] != outDims[1] {
		return Value{}, errors.Wrapf(ErrInvalidShape, "%s of %v into %v", op, []int(in.typ.Shape), []int(outShape))
	}
	for i := range 2 {
		if p.Window[i] < 1 || p.Strides[i] < 1 || p.PadFront[i] < 0 || p.PadBack[i] < 0 {
			return Value{}, errors.Wrapf(ErrInvalidShape, "%s window %v strides %v padding %v/%v", op, p.Window, p.Strides, p.PadFront, p.PadBack)
		}
		want := (inDims[2+i]+p.PadFront[i]+p.PadBack[i]-p.Window[i])/p.Strides[i] + 1
		if want != outDims[2+i] {
			return Value{}, errors.Wrapf(ErrInvalidShape, "%s output %v, window gives %d at dim %d", op, []int(outShape), want, i)
		}
	}

	src, err := layoutDesc(inDims, dt, layout, 1)
	if err != nil {
		return Value{}, err
	}
	dstDesc, err := layoutDesc(outDims, dt, layout, 1)
	if err != nil {
		return Value{}, err
	}
	return c.poolStep(op, alg, in, src, dstDesc, dnn.PoolParams{
		Strides:  p.Strides,
		Kernel:   p.Window,
		PadFront: p.PadFront,
		PadBack:  p.PadBack,
	}, outShape, name)
}

func (c *Computation) poolStep(op string, alg dnn.PoolingAlg, in *valueRecord, src, dstDesc dnn.Desc, p dnn.PoolParams,
	outShape tensor.Shape, name string,
) (Value, error) {
	prim, err := dnn.NewPooling(alg, src, dstDesc, p, c.engine)
	if err != nil {
		return Value{}, native(err, "%s descriptor", op)
	}
	dst, err := c.newMemory(dstDesc)
	if err != nil {
		return Value{}, err
	}
	c.appendStep(op, prim, dnn.Args{dnn.ArgSrc: in.mem, dnn.ArgDst: dst})
	return c.newValue(tensor.ValueType{ElementType: in.typ.ElementType, Shape: outShape.Clone()}, dst, name), nil
}

// ReduceMean lowers the mean over one contiguous range of axes. Negative axes
// count from the end. With keepDims the output keeps the input rank with the
// reduced dims set to 1.
func (c *Computation) ReduceMean(input Value, axes []int, keepDims bool, outShape tensor.Shape, name string) (Value, error) {
	return c.lower("reduce_mean", func() (Value, error) {
		in, err := c.record(input)
		if err != nil {
			return Value{}, err
		}
		dt := in.typ.ElementType
		if err := requireFloat("reduce_mean", dt); err != nil {
			return Value{}, err
		}
		if err := checkValueType(tensor.ValueType{ElementType: dt, Shape: outShape}); err != nil {
			return Value{}, err
		}
		dims := in.typ.Shape
		first, last, err := axisRange(axes, len(dims))
		if err != nil {
			return Value{}, err
		}

		batch := totalElements(dims[:first])
		hw := totalElements(dims[first : last+1])
		channels := totalElements(dims[last+1:])
		if hw == 0 {
			return Value{}, errors.Wrapf(ErrInvalidShape, "reduce_mean over empty axes of %v", []int(dims))
		}
		if totalElements(outShape) != batch*channels {
			return Value{}, errors.Wrapf(ErrInvalidShape, "reduce_mean of %v over %v into %v", []int(dims), axes, []int(outShape))
		}
		wantRank := len(dims) - (last - first + 1)
		if keepDims {
			wantRank = len(dims)
		}
		if len(outShape) != max(wantRank, 1) {
			return Value{}, errors.Wrapf(ErrInvalidShape, "reduce_mean output rank %d, want %d", len(outShape), max(wantRank, 1))
		}

		// The reduced axes become the width of a {batch, channels, 1, hw}
		// image stored channels-last, which is exactly the packed input.
		src, err := dnn.NewDesc([]int{batch, channels, 1, hw}, dt, dnn.FormatNHWC)
		if err != nil {
			return Value{}, native(err, "reduce_mean")
		}
		dstDesc, err := dnn.NewDesc([]int{batch, channels, 1, 1}, dt, dnn.FormatNHWC)
		if err != nil {
			return Value{}, native(err, "reduce_mean")
		}
		return c.poolStep("reduce_mean", dnn.PoolingAvg, in, src, dstDesc, dnn.PoolParams{
			Strides: [2]int{1, hw},
			Kernel:  [2]int{1, hw},
		}, outShape, name)
	})
}

// axisRange normalizes axes and checks that they form one ascending
// contiguous run.
func axisRange(axes []int, rank int) (first, last int, err error) {
	if len(axes) == 0 {
		return 0, 0, errors.Wrap(ErrUnsupported, "reduction over no axes")
	}
	norm := make([]int, len(axes))
	for i, a := range axes {
		if a < 0 {
			a += rank
		}
		if a < 0 || a >= rank {
			return 0, 0, errors.Wrapf(ErrInvalidShape, "axis %d of rank %d", axes[i], rank)
		}
		norm[i] = a
	}
	slices.Sort(norm)
	for i := 1; i < len(norm); i++ {
		if norm[i] != norm[i-1]+1 {
			return 0, 0, errors.Wrapf(ErrUnsupported, "non-contiguous axes %v", axes)
		}
	}
	return norm[0], norm[len(norm)-1], nil
}
