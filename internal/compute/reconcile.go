package compute

import (
	"github.com/born-ml/lower/internal/dnn"
	"github.com/born-ml/lower/internal/tensor"
	"github.com/pkg/errors"
)

// ConvParams holds the spatial parameters of a 2-D convolution. Index 0 is
// height, index 1 width. Zero dilations mean 1.
type ConvParams struct {
	Strides   [2]int
	Dilations [2]int
	PadFront  [2]int
	PadBack   [2]int
}

func (p ConvParams) native() (dnn.ConvParams, error) {
	out := dnn.ConvParams{Strides: p.Strides, Dilations: p.Dilations, PadFront: p.PadFront, PadBack: p.PadBack}
	for i := range 2 {
		if out.Dilations[i] == 0 {
			out.Dilations[i] = 1
		}
		if out.Dilations[i] != 1 {
			return dnn.ConvParams{}, errors.Wrapf(ErrUnsupported, "dilation %v", p.Dilations)
		}
		if p.Strides[i] < 1 || p.PadFront[i] < 0 || p.PadBack[i] < 0 {
			return dnn.ConvParams{}, errors.Wrapf(ErrInvalidShape, "strides %v padding %v/%v", p.Strides, p.PadFront, p.PadBack)
		}
	}
	return out, nil
}

// convOperands gathers one conv-family lowering request.
type convOperands struct {
	op           string
	deconv       bool
	input        *valueRecord
	inputLayout  tensor.Layout
	kernel       Value
	kernelRec    *valueRecord
	kernelLayout tensor.Layout
	group        int
	params       ConvParams
	outShape     tensor.Shape
}

// reconcileConv lowers a convolution or deconvolution and returns the memory
// holding its result in the caller's layout and the input's element type.
//
// The primitive descriptor is built with unconstrained formats, so the kernel
// library picks its preferred layouts. Operands whose declared layout differs
// are repacked: constant kernels once at build time, cached per value and
// format; everything else by plan steps around the primitive.
func (c *Computation) reconcileConv(o convOperands) (*dnn.Memory, error) {
	dt := o.input.typ.ElementType
	if err := requireFloat(o.op, dt); err != nil {
		return nil, err
	}
	if err := requireFloat(o.op, o.kernelRec.typ.ElementType); err != nil {
		return nil, err
	}
	params, err := o.params.native()
	if err != nil {
		return nil, err
	}
	if o.inputLayout != tensor.ChannelsFirst && o.inputLayout != tensor.ChannelsLast {
		return nil, errors.Wrapf(ErrUnsupported, "input layout %s", o.inputLayout)
	}
	if !o.kernelLayout.IsKernel() {
		return nil, errors.Wrapf(ErrUnsupported, "kernel layout %s", o.kernelLayout)
	}
	if err := checkValueType(tensor.ValueType{ElementType: dt, Shape: o.outShape}); err != nil {
		return nil, err
	}

	inDims, err := activationDims(o.input.typ.Shape, o.inputLayout)
	if err != nil {
		return nil, err
	}
	outDims, err := activationDims(o.outShape, o.inputLayout)
	if err != nil {
		return nil, err
	}
	kDims, err := kernelDims(o.kernelRec.typ.Shape, o.kernelLayout, o.group, o.deconv)
	if err != nil {
		return nil, err
	}
	if err := checkConvChannels(inDims, kDims, outDims); err != nil {
		return nil, err
	}

	dtDst := dt
	if c.target.EnableBF16 {
		dtDst = tensor.BFloat16
	}
	srcAny, err := dnn.NewDesc(inDims, dtDst, dnn.FormatAny)
	if err != nil {
		return nil, native(err, "%s", o.op)
	}
	wAny, err := dnn.NewDesc(kDims, dtDst, dnn.FormatAny)
	if err != nil {
		return nil, native(err, "%s", o.op)
	}
	dstAny, err := dnn.NewDesc(outDims, dtDst, dnn.FormatAny)
	if err != nil {
		return nil, native(err, "%s", o.op)
	}
	var pd *dnn.ConvolutionDesc
	if o.deconv {
		pd, err = dnn.NewDeconvolutionDesc(srcAny, wAny, dstAny, params)
	} else {
		pd, err = dnn.NewConvolutionDesc(srcAny, wAny, dstAny, params)
	}
	if err != nil {
		return nil, native(err, "%s descriptor", o.op)
	}

	kernelDesc, err := layoutDesc(kDims, o.kernelRec.typ.ElementType, o.kernelLayout, o.group)
	if err != nil {
		return nil, err
	}
	weights, err := c.reconcileWeights(o, kernelDesc, pd.WeightsDesc())
	if err != nil {
		return nil, err
	}

	inputDesc, err := layoutDesc(inDims, dt, o.inputLayout, 1)
	if err != nil {
		return nil, err
	}
	src := o.input.mem
	if !pd.SrcDesc().Equal(inputDesc) {
		if src, err = c.reorderStep(o.op, "input", inputDesc, src, pd.SrcDesc()); err != nil {
			return nil, err
		}
	}

	dst, err := c.newMemory(pd.DstDesc())
	if err != nil {
		return nil, err
	}
	c.appendStep(o.op, dnn.NewConvolution(pd, c.engine), dnn.Args{
		dnn.ArgSrc:     src,
		dnn.ArgWeights: weights,
		dnn.ArgDst:     dst,
	})

	expected, err := layoutDesc(outDims, dt, o.inputLayout, 1)
	if err != nil {
		return nil, err
	}
	if pd.DstDesc().Equal(expected) {
		return dst, nil
	}
	return c.reorderStep(o.op, "output", pd.DstDesc(), dst, expected)
}

// reconcileWeights returns kernel memory in the primitive's preferred format.
func (c *Computation) reconcileWeights(o convOperands, have, want dnn.Desc) (*dnn.Memory, error) {
	if want.Equal(have) {
		return o.kernelRec.mem, nil
	}
	if !o.kernelRec.isConst {
		return c.reorderStep(o.op, "weights", have, o.kernelRec.mem, want)
	}
	key := repackKey{value: o.kernel.idx, desc: want.String()}
	if m, ok := c.repacked[key]; ok {
		return m, nil
	}
	m, err := c.reorderNow(o.op, "weights", have, o.kernelRec.mem, want)
	if err != nil {
		return nil, err
	}
	c.repacked[key] = m
	c.onRollback(func() { delete(c.repacked, key) })
	return m, nil
}

// checkConvChannels validates canonical NCHW activation dims against
// canonical kernel dims.
func checkConvChannels(in, k, out tensor.Shape) error {
	groups, og, ig := 1, k[0], k[1]
	if len(k) == 5 {
		groups, og, ig = k[0], k[1], k[2]
	}
	if in[0] != out[0] || groups*ig != in[1] || groups*og != out[1] {
		return errors.Wrapf(ErrInvalidShape, "input %v kernel %v output %v", []int(in), []int(k), []int(out))
	}
	return nil
}

// Conv lowers a 2-D convolution. The output shape is given in inputLayout; an
// optional bias is added afterwards.
func (c *Computation) Conv(input Value, inputLayout tensor.Layout, group int, kernel Value, kernelLayout tensor.Layout,
	params ConvParams, bias Value, outShape tensor.Shape, name string,
) (Value, error) {
	return c.lower("conv", func() (Value, error) {
		return c.convLike("conv", false, input, inputLayout, group, kernel, kernelLayout, params, bias, outShape, name)
	})
}

// DeConv lowers a 2-D transposed convolution.
func (c *Computation) DeConv(input Value, inputLayout tensor.Layout, group int, kernel Value, kernelLayout tensor.Layout,
	params ConvParams, bias Value, outShape tensor.Shape, name string,
) (Value, error) {
	return c.lower("deconv", func() (Value, error) {
		return c.convLike("deconv", true, input, inputLayout, group, kernel, kernelLayout, params, bias, outShape, name)
	})
}

func (c *Computation) convLike(op string, deconv bool, input Value, inputLayout tensor.Layout, group int,
	kernel Value, kernelLayout tensor.Layout, params ConvParams, bias Value, outShape tensor.Shape, name string,
) (Value, error) {
	in, err := c.record(input)
	if err != nil {
		return Value{}, err
	}
	k, err := c.record(kernel)
	if err != nil {
		return Value{}, err
	}
	b, err := c.optional(bias)
	if err != nil {
		return Value{}, err
	}
	mem, err := c.reconcileConv(convOperands{
		op:           op,
		deconv:       deconv,
		input:        in,
		inputLayout:  inputLayout,
		kernel:       kernel,
		kernelRec:    k,
		kernelLayout: kernelLayout,
		group:        group,
		params:       params,
		outShape:     outShape,
	})
	if err != nil {
		return Value{}, err
	}
	typ := tensor.ValueType{ElementType: in.typ.ElementType, Shape: outShape.Clone()}
	if b == nil {
		return c.newValue(typ, mem, name), nil
	}
	v := c.newValue(typ, mem, "")
	if inputLayout == tensor.ChannelsFirst && len(b.typ.Shape) == 1 && b.typ.Shape[0] == outShape[1] {
		// A per-channel bias broadcasts over the spatial dims of NCHW.
		bias = c.alias(b, tensor.Shape{1, outShape[1], 1, 1}, "")
	}
	return c.binary(op, dnn.BinaryAdd, v, bias, name)
}
