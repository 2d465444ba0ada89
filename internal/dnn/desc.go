// Package dnn is a small CPU kernel library modeled on oneDNN: an engine,
// in-order streams, memory descriptors with format tags, and primitives whose
// descriptors choose preferred memory formats.
//
// A primitive is built from descriptors and executed against an argument map
// of memories. The primitive always interprets an argument's bytes through its
// own descriptor, never through the descriptor attached to the memory, so a
// single buffer may be read under several views.
package dnn

import (
	"fmt"
	"strings"

	"github.com/born-ml/lower/internal/tensor"
	"github.com/pkg/errors"
)

// ErrInvalidDesc is returned when a descriptor or primitive cannot be built
// from the supplied dimensions, strides or formats.
var ErrInvalidDesc = errors.New("dnn: invalid descriptor")

// ErrExecution is returned when a primitive cannot run against its arguments.
var ErrExecution = errors.New("dnn: execution failed")

// FormatTag names a physical dimension ordering.
type FormatTag int

// Format tags. Plain tags list logical dimensions from outermost to innermost.
const (
	FormatUndef FormatTag = iota
	FormatAny
	FormatA
	FormatAB
	FormatABC
	FormatABCD
	FormatABCDE
	FormatABCDEF
	FormatNC
	FormatNCHW
	FormatNHWC
	FormatOIHW
	FormatHWIO
	FormatIOHW
	FormatGOIHW
	FormatHWIGO
	FormatGIOHW
	// FormatNChw8c blocks the channel dimension by 8, innermost.
	FormatNChw8c

	numFormatTags
)

// ChannelBlock is the channel block size of blocked formats.
const ChannelBlock = 8

type formatTraits struct {
	name  string
	order string // physical order of logical dims a..f, outermost first
	block int
}

var formatTags = [...]formatTraits{
	FormatUndef:  {name: "undef"},
	FormatAny:    {name: "any"},
	FormatA:      {name: "a", order: "a"},
	FormatAB:     {name: "ab", order: "ab"},
	FormatABC:    {name: "abc", order: "abc"},
	FormatABCD:   {name: "abcd", order: "abcd"},
	FormatABCDE:  {name: "abcde", order: "abcde"},
	FormatABCDEF: {name: "abcdef", order: "abcdef"},
	FormatNC:     {name: "nc", order: "ab"},
	FormatNCHW:   {name: "nchw", order: "abcd"},
	FormatNHWC:   {name: "nhwc", order: "acdb"},
	FormatOIHW:   {name: "oihw", order: "abcd"},
	FormatHWIO:   {name: "hwio", order: "cdba"},
	FormatIOHW:   {name: "iohw", order: "bacd"},
	FormatGOIHW:  {name: "goihw", order: "abcde"},
	FormatHWIGO:  {name: "hwigo", order: "decab"},
	FormatGIOHW:  {name: "giohw", order: "acbde"},
	FormatNChw8c: {name: "nChw8c", order: "abcd", block: ChannelBlock},
}

var _ = [1]struct{}{}[len(formatTags)-int(numFormatTags)]

// String returns the oneDNN-style tag name.
func (t FormatTag) String() string {
	if t < 0 || t >= numFormatTags {
		return fmt.Sprintf("unknown(%d)", int(t))
	}
	return formatTags[t].name
}

// PlainFormat returns the row-major tag for a rank, or FormatUndef when the
// rank is outside [1, 6].
func PlainFormat(rank int) FormatTag {
	if rank < 1 || rank > 6 {
		return FormatUndef
	}
	return FormatA + FormatTag(rank-1)
}

// Desc describes the logical dimensions, element type and physical layout of
// a memory. A Desc with FormatAny has no layout yet and cannot back a Memory.
type Desc struct {
	dims    []int
	dtype   tensor.DataType
	strides []int
	block   int
	offset  int
	tag     FormatTag
}

// NewDesc builds a descriptor from dimensions and a format tag.
func NewDesc(dims []int, dt tensor.DataType, tag FormatTag) (Desc, error) {
	if err := checkDims(dims, dt); err != nil {
		return Desc{}, err
	}
	d := Desc{dims: cloneInts(dims), dtype: dt, tag: tag}
	switch {
	case tag == FormatAny:
		return d, nil
	case tag <= FormatAny || tag >= numFormatTags:
		return Desc{}, errors.Wrapf(ErrInvalidDesc, "format %s", tag)
	}

	tr := formatTags[tag]
	if len(tr.order) != len(dims) {
		return Desc{}, errors.Wrapf(ErrInvalidDesc, "format %s needs rank %d, got dims %v", tag, len(tr.order), dims)
	}
	d.block = tr.block
	d.strides = make([]int, len(dims))
	stride := 1
	if d.block > 0 {
		stride = d.block
	}
	for p := len(tr.order) - 1; p >= 0; p-- {
		axis := int(tr.order[p] - 'a')
		d.strides[axis] = stride
		n := dims[axis]
		if d.block > 0 && axis == 1 {
			n = ceilDiv(n, d.block)
		}
		stride *= n
	}
	return d, nil
}

// NewStridedDesc builds a plain descriptor with explicit element strides.
// Strides may be zero to read one element repeatedly.
func NewStridedDesc(dims []int, dt tensor.DataType, strides []int) (Desc, error) {
	if err := checkDims(dims, dt); err != nil {
		return Desc{}, err
	}
	if len(strides) != len(dims) {
		return Desc{}, errors.Wrapf(ErrInvalidDesc, "%d strides for %d dims", len(strides), len(dims))
	}
	for i, s := range strides {
		if s < 0 {
			return Desc{}, errors.Wrapf(ErrInvalidDesc, "negative stride %d at %d", s, i)
		}
	}
	return Desc{dims: cloneInts(dims), dtype: dt, strides: cloneInts(strides), tag: FormatUndef}, nil
}

func checkDims(dims []int, dt tensor.DataType) error {
	if len(dims) < 1 || len(dims) > tensor.MaxRank {
		return errors.Wrapf(ErrInvalidDesc, "rank %d", len(dims))
	}
	for i, d := range dims {
		if d < 0 {
			return errors.Wrapf(ErrInvalidDesc, "negative dimension %d at %d", d, i)
		}
	}
	if !dt.Valid() {
		return errors.Wrapf(ErrInvalidDesc, "data type %s", dt)
	}
	return nil
}

// Dims returns a copy of the logical dimensions.
func (d Desc) Dims() []int { return cloneInts(d.dims) }

// Rank returns the number of logical dimensions.
func (d Desc) Rank() int { return len(d.dims) }

// DataType returns the element type.
func (d Desc) DataType() tensor.DataType { return d.dtype }

// Strides returns a copy of the element strides. For blocked formats the
// channel stride counts whole blocks.
func (d Desc) Strides() []int { return cloneInts(d.strides) }

// Block returns the channel block size, 0 for plain layouts.
func (d Desc) Block() int { return d.block }

// Offset returns the element offset of the first logical element.
func (d Desc) Offset() int { return d.offset }

// Tag returns the tag the descriptor was built from, FormatUndef for strided
// descriptors.
func (d Desc) Tag() FormatTag { return d.tag }

// IsAny reports whether the layout is left for a primitive to choose.
func (d Desc) IsAny() bool { return d.tag == FormatAny }

// IsZero reports whether d is the zero descriptor.
func (d Desc) IsZero() bool { return d.dims == nil }

// NumElements returns the number of logical elements.
func (d Desc) NumElements() int {
	return tensor.Shape(d.dims).NumElements()
}

// Size returns the number of bytes a buffer needs to back d, counted from the
// start of the buffer.
func (d Desc) Size() int {
	if d.IsAny() || d.IsZero() {
		return 0
	}
	last := d.offset
	for i, n := range d.dims {
		if n == 0 {
			return d.offset * d.dtype.Size()
		}
		if d.block > 0 && i == 1 {
			last += (ceilDiv(n, d.block)-1)*d.strides[i] + d.block - 1
			continue
		}
		last += (n - 1) * d.strides[i]
	}
	return (last + 1) * d.dtype.Size()
}

// IsDense reports whether the elements are stored row-major and contiguous
// from the start of the buffer.
func (d Desc) IsDense() bool {
	if d.IsAny() || d.IsZero() || d.block > 0 || d.offset != 0 {
		return false
	}
	stride := 1
	for i := len(d.dims) - 1; i >= 0; i-- {
		if d.dims[i] != 1 && d.strides[i] != stride {
			return false
		}
		stride *= d.dims[i]
	}
	return true
}

// Equal reports whether two descriptors address memory identically. Tags are
// ignored, as are strides of unit dimensions.
func (d Desc) Equal(o Desc) bool {
	if d.dtype != o.dtype || len(d.dims) != len(o.dims) || d.IsAny() != o.IsAny() {
		return false
	}
	for i := range d.dims {
		if d.dims[i] != o.dims[i] {
			return false
		}
	}
	if d.IsAny() {
		return true
	}
	if d.block != o.block || d.offset != o.offset {
		return false
	}
	for i := range d.dims {
		if d.dims[i] != 1 && d.strides[i] != o.strides[i] {
			return false
		}
	}
	return true
}

// WithDataType returns a copy of d with a different element type.
func (d Desc) WithDataType(dt tensor.DataType) Desc {
	d.dims = cloneInts(d.dims)
	d.strides = cloneInts(d.strides)
	d.dtype = dt
	return d
}

// Submemory returns a descriptor for the region of d starting at offsets with
// the given dims. Blocked descriptors cannot be split.
func (d Desc) Submemory(dims, offsets []int) (Desc, error) {
	if d.IsAny() || d.IsZero() {
		return Desc{}, errors.Wrapf(ErrInvalidDesc, "submemory of %s", d)
	}
	if d.block > 0 {
		return Desc{}, errors.Wrapf(ErrInvalidDesc, "submemory of blocked %s", d)
	}
	if len(dims) != len(d.dims) || len(offsets) != len(d.dims) {
		return Desc{}, errors.Wrapf(ErrInvalidDesc, "submemory rank %d/%d of rank %d", len(dims), len(offsets), len(d.dims))
	}
	sub := Desc{dims: cloneInts(dims), dtype: d.dtype, strides: cloneInts(d.strides), offset: d.offset, tag: FormatUndef}
	for i := range dims {
		if offsets[i] < 0 || dims[i] < 0 || offsets[i]+dims[i] > d.dims[i] {
			return Desc{}, errors.Wrapf(ErrInvalidDesc, "submemory %v at %v exceeds %v", dims, offsets, d.dims)
		}
		sub.offset += offsets[i] * d.strides[i]
	}
	return sub, nil
}

// String formats d for logs, e.g. "f32[1 8 4 4]nChw8c".
func (d Desc) String() string {
	if d.IsZero() {
		return "desc(zero)"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s%v", d.dtype, d.dims)
	switch {
	case d.tag != FormatUndef:
		b.WriteString(d.tag.String())
	default:
		fmt.Fprintf(&b, "s%v", d.strides)
	}
	if d.offset != 0 {
		fmt.Fprintf(&b, "+%d", d.offset)
	}
	return b.String()
}

// elemOffset returns the physical element offset of a logical index.
func (d Desc) elemOffset(idx []int) int {
	off := d.offset
	for i, x := range idx {
		if d.block > 0 && i == 1 {
			off += (x/d.block)*d.strides[i] + x%d.block
			continue
		}
		off += x * d.strides[i]
	}
	return off
}

// forEachOffset calls fn with the row-major index and physical element offset
// of every logical element.
func (d Desc) forEachOffset(fn func(i, off int)) {
	n := d.NumElements()
	if n == 0 {
		return
	}
	if d.IsDense() {
		for i := 0; i < n; i++ {
			fn(i, i)
		}
		return
	}
	idx := make([]int, len(d.dims))
	for i := 0; i < n; i++ {
		fn(i, d.elemOffset(idx))
		for a := len(idx) - 1; a >= 0; a-- {
			idx[a]++
			if idx[a] < d.dims[a] {
				break
			}
			idx[a] = 0
		}
	}
}

func cloneInts(s []int) []int {
	if s == nil {
		return nil
	}
	out := make([]int, len(s))
	copy(out, s)
	return out
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
