package dnn

import (
	"github.com/pkg/errors"
)

// Concat joins sources along one axis into dst. Sources are read from
// ArgMultipleSrc+i.
type Concat struct {
	dst  Desc
	axis int
	srcs []Desc
	// regions[i] is the part of dst that source i fills.
	regions []Desc
}

// NewConcat builds a concat primitive. Every source must match dst in rank,
// element type and every dim except axis, and the axis dims must sum to
// dst's.
func NewConcat(dst Desc, axis int, srcs []Desc) (*Concat, error) {
	if dst.IsAny() || dst.IsZero() {
		return nil, errors.Wrapf(ErrInvalidDesc, "concat needs a concrete dst")
	}
	if len(srcs) == 0 {
		return nil, errors.Wrapf(ErrInvalidDesc, "concat without sources")
	}
	if axis < 0 || axis >= dst.Rank() {
		return nil, errors.Wrapf(ErrInvalidDesc, "concat axis %d for rank %d", axis, dst.Rank())
	}

	c := &Concat{dst: dst, axis: axis, srcs: srcs, regions: make([]Desc, len(srcs))}
	offsets := make([]int, dst.Rank())
	for i, s := range srcs {
		if s.IsAny() || s.IsZero() || s.Rank() != dst.Rank() || s.dtype != dst.dtype {
			return nil, errors.Wrapf(ErrInvalidDesc, "concat source %d %s for %s", i, s, dst)
		}
		for a := range s.dims {
			if a != axis && s.dims[a] != dst.dims[a] {
				return nil, errors.Wrapf(ErrInvalidDesc, "concat source %d dims %v for %v on axis %d", i, s.dims, dst.dims, axis)
			}
		}
		region, err := dst.Submemory(s.dims, offsets)
		if err != nil {
			return nil, err
		}
		c.regions[i] = region
		offsets[axis] += s.dims[axis]
	}
	if offsets[axis] != dst.dims[axis] {
		return nil, errors.Wrapf(ErrInvalidDesc, "concat axis %d sums to %d, dst has %d", axis, offsets[axis], dst.dims[axis])
	}
	return c, nil
}

// Kind implements Primitive.
func (c *Concat) Kind() Kind { return KindConcat }

// Execute implements Primitive.
func (c *Concat) Execute(args Args) error {
	dst, err := args.argData(ArgDst, c.dst)
	if err != nil {
		return err
	}
	for i, s := range c.srcs {
		src, err := args.argData(ArgMultipleSrc+i, s)
		if err != nil {
			return err
		}
		unpack(c.regions[i], pack(s, src), dst)
	}
	return nil
}
