package tensor

import "fmt"

// ValueType is the element type and shape of a graph value.
type ValueType struct {
	ElementType DataType
	Shape       Shape
}

// NewValueType returns a ValueType with a copy of dims.
func NewValueType(dt DataType, dims ...int) ValueType {
	return ValueType{ElementType: dt, Shape: Shape(dims).Clone()}
}

// NumElements returns the element count of the shape.
func (t ValueType) NumElements() int {
	return t.Shape.NumElements()
}

// ByteSize returns the size of a densely packed buffer of this type.
func (t ValueType) ByteSize() int {
	return t.Shape.NumElements() * t.ElementType.Size()
}

// Equal reports whether both element type and shape match.
func (t ValueType) Equal(o ValueType) bool {
	return t.ElementType == o.ElementType && t.Shape.Equal(o.Shape)
}

func (t ValueType) String() string {
	return fmt.Sprintf("%s%v", t.ElementType, []int(t.Shape))
}
