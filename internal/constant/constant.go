// Package constant provides typed constant storage that graph builders feed
// into a Computation.
package constant

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/born-ml/lower/internal/tensor"
	"github.com/pkg/errors"
)

// ErrInvalidData is returned when constant contents do not match their type.
var ErrInvalidData = errors.New("constant: invalid data")

// printLimit bounds the number of elements String prints.
const printLimit = 32

// Constant is an immutable, densely packed tensor value.
type Constant struct {
	name string
	typ  tensor.ValueType
	data []byte
}

// New copies the first typ.ByteSize() bytes of data into a new Constant.
func New(name string, typ tensor.ValueType, data []byte) (*Constant, error) {
	if err := checkType(typ); err != nil {
		return nil, err
	}
	n := typ.ByteSize()
	if len(data) < n {
		return nil, errors.Wrapf(ErrInvalidData, "%s needs %d bytes, got %d", typ, n, len(data))
	}
	return &Constant{name: name, typ: cloneType(typ), data: bytes.Clone(data[:n])}, nil
}

// Splat fills a new Constant by repeating one encoded element.
func Splat(name string, typ tensor.ValueType, elem []byte) (*Constant, error) {
	if err := checkType(typ); err != nil {
		return nil, err
	}
	es := typ.ElementType.Size()
	if len(elem) != es {
		return nil, errors.Wrapf(ErrInvalidData, "%s element is %d bytes, got %d", typ.ElementType, es, len(elem))
	}
	data := make([]byte, typ.ByteSize())
	for off := 0; off < len(data); off += es {
		copy(data[off:], elem)
	}
	return &Constant{name: name, typ: cloneType(typ), data: data}, nil
}

// SplatFloat32 fills a new Constant with v converted to typ's element type.
func SplatFloat32(name string, typ tensor.ValueType, v float32) (*Constant, error) {
	if err := checkType(typ); err != nil {
		return nil, err
	}
	elem := make([]byte, typ.ElementType.Size())
	if err := tensor.EncodeFloat32(elem, []float32{v}, typ.ElementType); err != nil {
		return nil, errors.Wrap(ErrInvalidData, err.Error())
	}
	return Splat(name, typ, elem)
}

// FromFloat32 builds a Float32 constant of the given dims.
func FromFloat32(name string, dims []int, vals []float32) (*Constant, error) {
	return fromSlice(name, tensor.Float32, dims, vals)
}

// FromInt32 builds an Int32 constant of the given dims.
func FromInt32(name string, dims []int, vals []int32) (*Constant, error) {
	return fromSlice(name, tensor.Int32, dims, vals)
}

// FromInt64 builds an Int64 constant of the given dims.
func FromInt64(name string, dims []int, vals []int64) (*Constant, error) {
	return fromSlice(name, tensor.Int64, dims, vals)
}

func fromSlice[T tensor.Element](name string, dt tensor.DataType, dims []int, vals []T) (*Constant, error) {
	typ := tensor.NewValueType(dt, dims...)
	if err := checkType(typ); err != nil {
		return nil, err
	}
	if len(vals) != typ.NumElements() {
		return nil, errors.Wrapf(ErrInvalidData, "%s needs %d elements, got %d", typ, typ.NumElements(), len(vals))
	}
	return New(name, typ, tensor.Bytes(vals))
}

func checkType(typ tensor.ValueType) error {
	if err := typ.Shape.ValidateRank(); err != nil {
		return errors.Wrap(ErrInvalidData, err.Error())
	}
	if !typ.ElementType.Valid() {
		return errors.Wrapf(ErrInvalidData, "element type %s", typ.ElementType)
	}
	return nil
}

func cloneType(typ tensor.ValueType) tensor.ValueType {
	return tensor.ValueType{ElementType: typ.ElementType, Shape: typ.Shape.Clone()}
}

// Name returns the constant's name.
func (c *Constant) Name() string { return c.name }

// Type returns the element type and shape.
func (c *Constant) Type() tensor.ValueType { return cloneType(c.typ) }

// Bytes returns the packed contents. Callers must not modify them.
func (c *Constant) Bytes() []byte { return c.data }

// NumElements returns the element count.
func (c *Constant) NumElements() int { return c.typ.NumElements() }

// IsScalarZero reports whether c holds exactly one element equal to zero.
func (c *Constant) IsScalarZero() bool {
	return c.isScalar(0)
}

// IsScalarOne reports whether c holds exactly one element equal to one.
func (c *Constant) IsScalarOne() bool {
	return c.isScalar(1)
}

func (c *Constant) isScalar(want int64) bool {
	if c.NumElements() != 1 {
		return false
	}
	if c.typ.ElementType.IsFloat() {
		v, err := c.Float32At(0)
		return err == nil && v == float32(want)
	}
	v, err := c.Int64At(0)
	return err == nil && v == want
}

// Int64At returns element i converted to int64. Floating-point elements are
// truncated toward zero.
func (c *Constant) Int64At(i int) (int64, error) {
	elem, err := c.element(i)
	if err != nil {
		return 0, err
	}
	if !c.typ.ElementType.IsFloat() {
		vals, err := tensor.DecodeInt64(elem, c.typ.ElementType)
		if err != nil {
			return 0, errors.Wrap(ErrInvalidData, err.Error())
		}
		return vals[0], nil
	}
	vals, err := tensor.DecodeFloat32(elem, c.typ.ElementType)
	if err != nil {
		return 0, errors.Wrap(ErrInvalidData, err.Error())
	}
	return int64(vals[0]), nil
}

// Float32At returns element i converted to float32.
func (c *Constant) Float32At(i int) (float32, error) {
	elem, err := c.element(i)
	if err != nil {
		return 0, err
	}
	vals, err := tensor.DecodeFloat32(elem, c.typ.ElementType)
	if err != nil {
		return 0, errors.Wrap(ErrInvalidData, err.Error())
	}
	return vals[0], nil
}

func (c *Constant) element(i int) ([]byte, error) {
	if i < 0 || i >= c.NumElements() {
		return nil, errors.Wrapf(ErrInvalidData, "index %d of %d elements", i, c.NumElements())
	}
	es := c.typ.ElementType.Size()
	// Copy so that decoders may view the element with aligned access.
	return bytes.Clone(c.data[i*es : (i+1)*es]), nil
}

// String prints the constant with at most 32 elements, e.g.
// "constant w(float32[2 2]) = [1, 2, 3, 4]".
func (c *Constant) String() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "constant %s(%s) = [", c.name, c.typ)
	n := min(c.NumElements(), printLimit)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.formatElement(i))
	}
	if c.NumElements() > printLimit {
		b.WriteString(", ...")
	}
	b.WriteString("]")
	return b.String()
}

func (c *Constant) formatElement(i int) string {
	if c.typ.ElementType.IsFloat() {
		v, err := c.Float32At(i)
		if err != nil {
			return "?"
		}
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	v, err := c.Int64At(i)
	if err != nil {
		return "?"
	}
	return strconv.FormatInt(v, 10)
}
