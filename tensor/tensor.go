// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/lower/internal/tensor"
)

// Core types

// DataType represents runtime type information for tensor elements.
type DataType = tensor.DataType

// Shape represents tensor dimensions.
//
// Example:
//
//	shape := tensor.Shape{2, 3, 4}  // 2x3x4 tensor
//	numElements := shape.NumElements()  // 24
type Shape = tensor.Shape

// Layout is the declared dimension ordering of an activation or a kernel.
type Layout = tensor.Layout

// Device represents the compute device a computation targets.
type Device = tensor.Device

// ValueType is the element type and shape of a value in a computation.
//
// Example:
//
//	vt := tensor.NewValueType(tensor.Float32, 1, 3, 224, 224)
//	size := vt.ByteSize()  // 602112
type ValueType = tensor.ValueType

// Element is the set of Go types that back a DataType in memory.
type Element = tensor.Element

// Data types
const (
	Float32  = tensor.Float32
	Int32    = tensor.Int32
	Int64    = tensor.Int64
	BFloat16 = tensor.BFloat16
	Float16  = tensor.Float16
)

// Layouts
const (
	LayoutDefault = tensor.LayoutDefault
	ChannelsFirst = tensor.ChannelsFirst
	ChannelsLast  = tensor.ChannelsLast
	SIO           = tensor.SIO
	OIS           = tensor.OIS
	IOS           = tensor.IOS
)

// Devices
const (
	CPU    = tensor.CPU
	CUDA   = tensor.CUDA
	Vulkan = tensor.Vulkan
	Metal  = tensor.Metal
	WebGPU = tensor.WebGPU
)

// MaxRank is the largest rank a value may have.
const MaxRank = tensor.MaxRank

// NewValueType builds a ValueType from an element type and dimensions.
func NewValueType(dt DataType, dims ...int) ValueType {
	return tensor.NewValueType(dt, dims...)
}

// DataTypes returns every supported element type.
func DataTypes() []DataType {
	return tensor.DataTypes()
}

// Raw buffer helpers

// Bytes reinterprets a typed slice as raw bytes without copying. The result
// can be bound directly as a computation argument or output.
//
// Example:
//
//	in := []float32{1, 2, 3, 4}
//	_ = ctx.BindArgument(x, tensor.Bytes(in))
func Bytes[T Element](s []T) []byte {
	return tensor.Bytes(s)
}

// View reinterprets raw bytes as a typed slice without copying.
func View[T Element](data []byte) []T {
	return tensor.View[T](data)
}

// DecodeFloat32 converts densely packed elements of type dt into float32.
func DecodeFloat32(data []byte, dt DataType) ([]float32, error) {
	return tensor.DecodeFloat32(data, dt)
}

// EncodeFloat32 writes vals into dst as densely packed elements of type dt.
func EncodeFloat32(dst []byte, vals []float32, dt DataType) error {
	return tensor.EncodeFloat32(dst, vals, dt)
}

// BroadcastStrides returns strides that read a tensor of shape in as if it
// had shape out, with zero strides on broadcast axes.
func BroadcastStrides(in, out Shape) ([]int, error) {
	return tensor.BroadcastStrides(in, out)
}
