// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package constant provides typed storage for constant values.
//
// A Constant can be passed to Computation.CreateConstantFrom:
//
//	w, _ := constant.FromFloat32("w", []int{8, 3, 3, 3}, weights)
//	wv, _ := c.CreateConstantFrom(w, "w")
package constant

import (
	"github.com/born-ml/lower/internal/constant"
	"github.com/born-ml/lower/tensor"
)

// Constant is an immutable typed buffer with a name.
type Constant = constant.Constant

// ErrInvalidData is returned when data does not match the declared type.
var ErrInvalidData = constant.ErrInvalidData

// New creates a constant from a copy of data.
func New(name string, typ tensor.ValueType, data []byte) (*Constant, error) {
	return constant.New(name, typ, data)
}

// Splat creates a constant with every element equal to elem.
func Splat(name string, typ tensor.ValueType, elem []byte) (*Constant, error) {
	return constant.Splat(name, typ, elem)
}

// SplatFloat32 creates a constant with every element equal to v converted to
// the element type of typ.
func SplatFloat32(name string, typ tensor.ValueType, v float32) (*Constant, error) {
	return constant.SplatFloat32(name, typ, v)
}

// FromFloat32 creates a float32 constant.
func FromFloat32(name string, dims []int, vals []float32) (*Constant, error) {
	return constant.FromFloat32(name, dims, vals)
}

// FromInt32 creates an int32 constant.
func FromInt32(name string, dims []int, vals []int32) (*Constant, error) {
	return constant.FromInt32(name, dims, vals)
}

// FromInt64 creates an int64 constant.
func FromInt64(name string, dims []int, vals []int64) (*Constant, error) {
	return constant.FromInt64(name, dims, vals)
}
