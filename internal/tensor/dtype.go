// Package tensor provides the shapes, element types, layouts and devices shared
// by the kernel library and the lowering core.
package tensor

import "fmt"

// DataType represents runtime type information for tensor elements.
type DataType int

// Supported element types.
const (
	Float32 DataType = iota
	Int32
	Int64
	BFloat16
	Float16

	numDataTypes
)

type dataTypeTraits struct {
	name    string
	size    int
	isFloat bool
}

var dataTypes = [...]dataTypeTraits{
	Float32:  {name: "float32", size: 4, isFloat: true},
	Int32:    {name: "int32", size: 4},
	Int64:    {name: "int64", size: 8},
	BFloat16: {name: "bfloat16", size: 2, isFloat: true},
	Float16:  {name: "float16", size: 2, isFloat: true},
}

// Adding a DataType without a traits entry fails to compile here.
var _ = [1]struct{}{}[len(dataTypes)-int(numDataTypes)]

// Valid reports whether dt is one of the supported element types.
func (dt DataType) Valid() bool {
	return dt >= 0 && dt < numDataTypes
}

// Size returns the byte size of the data type, or 0 for an unknown type.
func (dt DataType) Size() int {
	if !dt.Valid() {
		return 0
	}
	return dataTypes[dt].size
}

// IsFloat reports whether the type is a floating-point type.
func (dt DataType) IsFloat() bool {
	return dt.Valid() && dataTypes[dt].isFloat
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	if !dt.Valid() {
		return fmt.Sprintf("unknown(%d)", int(dt))
	}
	return dataTypes[dt].name
}

// DataTypes returns every supported element type.
func DataTypes() []DataType {
	out := make([]DataType, 0, numDataTypes)
	for dt := DataType(0); dt < numDataTypes; dt++ {
		out = append(out, dt)
	}
	return out
}
