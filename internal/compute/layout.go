package compute

import (
	"github.com/born-ml/lower/internal/dnn"
	"github.com/born-ml/lower/internal/tensor"
	"github.com/pkg/errors"
)

// resolveFormat returns the plain row-major tag for a shape, FormatUndef for
// ranks outside [1, 6].
func resolveFormat(shape tensor.Shape) dnn.FormatTag {
	return dnn.PlainFormat(len(shape))
}

// resolveLayoutFormat maps a declared layout to the tag describing how the
// caller's buffer is ordered relative to canonical NCHW or (G)OIHW dims.
func resolveLayoutFormat(layout tensor.Layout, group, rank int) (dnn.FormatTag, error) {
	grouped := group > 1
	switch layout {
	case tensor.LayoutDefault:
		return dnn.PlainFormat(rank), nil
	case tensor.ChannelsFirst:
		return dnn.FormatNCHW, nil
	case tensor.ChannelsLast:
		return dnn.FormatNHWC, nil
	case tensor.SIO:
		if grouped {
			return dnn.FormatHWIGO, nil
		}
		return dnn.FormatHWIO, nil
	case tensor.OIS:
		if grouped {
			return dnn.FormatGOIHW, nil
		}
		return dnn.FormatOIHW, nil
	case tensor.IOS:
		if grouped {
			return dnn.FormatGIOHW, nil
		}
		return dnn.FormatIOHW, nil
	}
	return dnn.FormatUndef, errors.Wrapf(ErrUnsupported, "layout %s", layout)
}

func rowMajorStrides(shape tensor.Shape) []int {
	return shape.ComputeStrides()
}

func totalElements(shape tensor.Shape) int {
	return shape.NumElements()
}

// activationDims returns the NCHW dims of a 4-D activation declared in layout.
func activationDims(shape tensor.Shape, layout tensor.Layout) (tensor.Shape, error) {
	if len(shape) != 4 {
		return nil, errors.Wrapf(ErrUnsupported, "2-D spatial operands only, got shape %v", shape)
	}
	switch layout {
	case tensor.ChannelsFirst, tensor.LayoutDefault:
		return shape.Clone(), nil
	case tensor.ChannelsLast:
		return nchwDims(shape), nil
	}
	return nil, errors.Wrapf(ErrUnsupported, "activation layout %s", layout)
}

// nchwDims reorders NHWC dims to NCHW.
func nchwDims(s tensor.Shape) tensor.Shape {
	return tensor.Shape{s[0], s[3], s[1], s[2]}
}

// oihwDims reorders the dims of a 4-D kernel declared in layout to OIHW.
func oihwDims(s tensor.Shape, layout tensor.Layout) (tensor.Shape, error) {
	if len(s) != 4 {
		return nil, errors.Wrapf(ErrUnsupported, "2-D spatial kernels only, got shape %v", s)
	}
	switch layout {
	case tensor.SIO:
		return tensor.Shape{s[3], s[2], s[0], s[1]}, nil
	case tensor.OIS:
		return s.Clone(), nil
	case tensor.IOS:
		return tensor.Shape{s[1], s[0], s[2], s[3]}, nil
	}
	return nil, errors.Wrapf(ErrUnsupported, "kernel layout %s", layout)
}

// kernelDims returns the canonical kernel dims for the primitive: OIHW for
// group 1, {G, O/G, I/G, H, W} otherwise.
//
// Which of O and I is a whole-tensor count depends on the stored layout: in
// SIO and OIS kernels O counts all output channels and I one group's inputs;
// in IOS kernels I counts all inputs and O one group's outputs. A grouped SIO
// kernel whose O·G equals I is a depthwise kernel with O and I stored
// swapped.
func kernelDims(shape tensor.Shape, layout tensor.Layout, group int, deconv bool) (tensor.Shape, error) {
	d, err := oihwDims(shape, layout)
	if err != nil {
		return nil, err
	}
	if group < 1 {
		return nil, errors.Wrapf(ErrInvalidShape, "group %d", group)
	}
	if group == 1 {
		return d, nil
	}
	if !deconv && layout == tensor.SIO && d[0]*group == d[1] {
		d[0], d[1] = d[1], d[0]
	}
	if layout == tensor.IOS {
		if d[1]%group != 0 {
			return nil, errors.Wrapf(ErrInvalidShape, "%d input channels in %d groups", d[1], group)
		}
		return tensor.Shape{group, d[0], d[1] / group, d[2], d[3]}, nil
	}
	if d[0]%group != 0 {
		return nil, errors.Wrapf(ErrInvalidShape, "%d output channels in %d groups", d[0], group)
	}
	return tensor.Shape{group, d[0] / group, d[1], d[2], d[3]}, nil
}

// denseDesc describes a packed row-major buffer of typ.
func denseDesc(typ tensor.ValueType) (dnn.Desc, error) {
	d, err := dnn.NewDesc(typ.Shape, typ.ElementType, resolveFormat(typ.Shape))
	return d, native(err, "describe %s", typ)
}

// layoutDesc describes a buffer holding canonical dims ordered by layout.
func layoutDesc(dims tensor.Shape, dt tensor.DataType, layout tensor.Layout, group int) (dnn.Desc, error) {
	tag, err := resolveLayoutFormat(layout, group, len(dims))
	if err != nil {
		return dnn.Desc{}, err
	}
	d, err := dnn.NewDesc(dims, dt, tag)
	return d, native(err, "describe %v as %s", []int(dims), layout)
}

// checkValueType validates the type of a new graph value.
func checkValueType(typ tensor.ValueType) error {
	if err := typ.Shape.ValidateRank(); err != nil {
		return errors.Wrap(ErrInvalidShape, err.Error())
	}
	if !typ.ElementType.Valid() {
		return errors.Wrapf(ErrUnsupported, "element type %s", typ.ElementType)
	}
	return nil
}
