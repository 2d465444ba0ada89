package compute

import (
	"github.com/born-ml/lower/internal/dnn"
	"github.com/born-ml/lower/internal/tensor"
	"github.com/pkg/errors"
)

// Value is a handle to a node of a Computation. The zero Value is absent and
// is accepted wherever an operand is optional.
type Value struct {
	comp uint64
	idx  int32 // arena index + 1
}

// IsValid reports whether v refers to a value rather than being absent.
func (v Value) IsValid() bool { return v.idx > 0 }

// ConstantSource supplies the type and bytes of a constant. The bytes are
// aliased, so they must stay unchanged while the Computation is in use.
type ConstantSource interface {
	Type() tensor.ValueType
	Bytes() []byte
}

// valueRecord is the arena entry behind a Value. mem is always laid out
// densely row-major in typ.Shape, so reshaped values may share it.
type valueRecord struct {
	typ     tensor.ValueType
	mem     *dnn.Memory
	isConst bool
	name    string
}

func (c *Computation) newValue(typ tensor.ValueType, mem *dnn.Memory, name string) Value {
	c.values = append(c.values, &valueRecord{typ: typ, mem: mem, name: name})
	return Value{comp: c.id, idx: int32(len(c.values))}
}

// record resolves v. Absent values and values of other computations are
// invalid.
func (c *Computation) record(v Value) (*valueRecord, error) {
	if c.destroyed {
		return nil, errors.Wrap(ErrInvalidValue, "computation destroyed")
	}
	if !v.IsValid() {
		return nil, errors.Wrap(ErrInvalidValue, "absent value")
	}
	if v.comp != c.id {
		return nil, errors.Wrapf(ErrInvalidValue, "value of computation %d used in computation %d", v.comp, c.id)
	}
	if int(v.idx) > len(c.values) {
		return nil, errors.Wrapf(ErrInvalidValue, "value %d out of range", v.idx)
	}
	return c.values[v.idx-1], nil
}

// optional resolves v, returning nil for an absent value.
func (c *Computation) optional(v Value) (*valueRecord, error) {
	if !v.IsValid() {
		return nil, nil
	}
	return c.record(v)
}

// desc is the dense descriptor of the value's memory.
func (r *valueRecord) desc() (dnn.Desc, error) {
	return denseDesc(r.typ)
}

// registerInput adds a named value to the input table.
func (c *Computation) registerInput(name string, v Value) error {
	if name == "" {
		return nil
	}
	if _, ok := c.inputs[name]; ok {
		return errors.Wrapf(ErrInvalidValue, "input %q already defined", name)
	}
	c.inputs[name] = v
	c.onRollback(func() { delete(c.inputs, name) })
	return nil
}

// CreateArgument adds a graph input backed by engine memory until a buffer is
// bound. A non-empty name makes it bindable by name.
func (c *Computation) CreateArgument(typ tensor.ValueType, name string) (Value, error) {
	return c.lower("create_argument", func() (Value, error) {
		return c.createEngineValue(typ, name)
	})
}

// CreateValue adds an immediate-mode input whose contents are set with
// SetValueData.
func (c *Computation) CreateValue(typ tensor.ValueType, name string) (Value, error) {
	if c.mode != Immediate {
		return Value{}, errors.Wrap(ErrUnsupported, "create_value needs immediate mode")
	}
	return c.lower("create_value", func() (Value, error) {
		return c.createEngineValue(typ, name)
	})
}

func (c *Computation) createEngineValue(typ tensor.ValueType, name string) (Value, error) {
	if err := checkValueType(typ); err != nil {
		return Value{}, err
	}
	typ.Shape = typ.Shape.Clone()
	d, err := denseDesc(typ)
	if err != nil {
		return Value{}, err
	}
	mem, err := c.newMemory(d)
	if err != nil {
		return Value{}, err
	}
	v := c.newValue(typ, mem, name)
	return v, c.registerInput(name, v)
}

// CreateConstant adds a constant aliasing data, which must hold at least a
// densely packed buffer of typ.
func (c *Computation) CreateConstant(typ tensor.ValueType, data []byte, name string) (Value, error) {
	return c.lower("create_constant", func() (Value, error) {
		if err := checkValueType(typ); err != nil {
			return Value{}, err
		}
		typ.Shape = typ.Shape.Clone()
		if len(data) < typ.ByteSize() {
			return Value{}, errors.Wrapf(ErrInvalidValue, "constant %s needs %d bytes, got %d", typ, typ.ByteSize(), len(data))
		}
		d, err := denseDesc(typ)
		if err != nil {
			return Value{}, err
		}
		mem, err := dnn.NewMemoryWithData(d, c.engine, data)
		if err != nil {
			return Value{}, native(err, "wrap constant")
		}
		v := c.newValue(typ, mem, name)
		c.values[v.idx-1].isConst = true
		return v, nil
	})
}

// CreateConstantFrom adds a constant backed by src.
func (c *Computation) CreateConstantFrom(src ConstantSource, name string) (Value, error) {
	if src == nil {
		return Value{}, errors.Wrap(ErrInvalidValue, "nil constant source")
	}
	return c.CreateConstant(src.Type(), src.Bytes(), name)
}

// ValueType returns the element type and shape of v.
func (c *Computation) ValueType(v Value) (tensor.ValueType, error) {
	r, err := c.record(v)
	if err != nil {
		return tensor.ValueType{}, err
	}
	return tensor.ValueType{ElementType: r.typ.ElementType, Shape: r.typ.Shape.Clone()}, nil
}

// IsConstant reports whether v is a constant.
func (c *Computation) IsConstant(v Value) (bool, error) {
	r, err := c.record(v)
	if err != nil {
		return false, err
	}
	return r.isConst, nil
}

// SetValueData points an immediate-mode value at data without copying.
func (c *Computation) SetValueData(v Value, data []byte) error {
	if c.mode != Immediate {
		return errors.Wrap(ErrUnsupported, "set_value_data needs immediate mode")
	}
	r, err := c.record(v)
	if err != nil {
		return err
	}
	return bindMemory(r, data)
}

// GetValueData copies the packed contents of an immediate-mode value into
// dst.
func (c *Computation) GetValueData(v Value, dst []byte) error {
	if c.mode != Immediate {
		return errors.Wrap(ErrUnsupported, "get_value_data needs immediate mode")
	}
	r, err := c.record(v)
	if err != nil {
		return err
	}
	n := r.typ.ByteSize()
	if len(dst) < n {
		return errors.Wrapf(ErrInvalidValue, "value %s needs %d bytes, got %d", r.typ, n, len(dst))
	}
	copy(dst, r.mem.Data()[:n])
	return nil
}

// SetOutput marks a named value as a computation output.
func (c *Computation) SetOutput(v Value) error {
	_, err := c.lower("set_output", func() (Value, error) {
		r, err := c.record(v)
		if err != nil {
			return Value{}, err
		}
		if r.name == "" {
			return Value{}, errors.Wrap(ErrInvalidValue, "output value has no name")
		}
		if _, ok := c.outputs[r.name]; ok {
			return Value{}, errors.Wrapf(ErrInvalidValue, "output %q already marked", r.name)
		}
		name := r.name
		c.outputs[name] = v
		c.outputOrder = append(c.outputOrder, name)
		c.onRollback(func() {
			delete(c.outputs, name)
			c.outputOrder = c.outputOrder[:len(c.outputOrder)-1]
		})
		return v, nil
	})
	return err
}

// bindMemory repoints r's memory at data.
func bindMemory(r *valueRecord, data []byte) error {
	if need := r.mem.Desc().Size(); len(data) < need {
		return errors.Wrapf(ErrInvalidValue, "value %s needs %d bytes, got %d", r.typ, need, len(data))
	}
	if err := r.mem.SetData(data); err != nil {
		return native(err, "bind %s", r.typ)
	}
	return nil
}

// alias adds a value sharing r's memory under another shape of the same
// element count.
func (c *Computation) alias(r *valueRecord, shape tensor.Shape, name string) Value {
	v := c.newValue(tensor.ValueType{ElementType: r.typ.ElementType, Shape: shape.Clone()}, r.mem, name)
	c.values[v.idx-1].isConst = r.isConst
	return v
}
