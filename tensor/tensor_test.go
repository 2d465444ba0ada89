// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/born-ml/lower/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestValueTypeAPI verifies the ValueType alias exposes the expected API.
func TestValueTypeAPI(t *testing.T) {
	vt := tensor.NewValueType(tensor.Float32, 2, 3)

	assert.Equal(t, tensor.Float32, vt.ElementType)
	assert.True(t, vt.Shape.Equal(tensor.Shape{2, 3}))
	assert.Equal(t, 6, vt.NumElements())
	assert.Equal(t, 24, vt.ByteSize())
	assert.Equal(t, "float32[2 3]", vt.String())
	assert.True(t, vt.Equal(tensor.NewValueType(tensor.Float32, 2, 3)))
	assert.False(t, vt.Equal(tensor.NewValueType(tensor.Int32, 2, 3)))
}

func TestDataTypes(t *testing.T) {
	got := tensor.DataTypes()
	assert.Contains(t, got, tensor.Float32)
	assert.Contains(t, got, tensor.BFloat16)
	assert.Equal(t, 2, tensor.BFloat16.Size())
	assert.True(t, tensor.Float16.IsFloat())
	assert.False(t, tensor.Int64.IsFloat())
}

func TestLayouts(t *testing.T) {
	assert.True(t, tensor.SIO.IsKernel())
	assert.False(t, tensor.ChannelsLast.IsKernel())
	assert.Equal(t, "channels_first", tensor.ChannelsFirst.String())
}

func TestBytesView(t *testing.T) {
	in := []float32{1, 2, 3}
	raw := tensor.Bytes(in)
	require.Len(t, raw, 12)

	view := tensor.View[float32](raw)
	view[1] = 5
	assert.Equal(t, []float32{1, 5, 3}, in)

	dec, err := tensor.DecodeFloat32(raw, tensor.Float32)
	require.NoError(t, err)
	assert.Equal(t, in, dec)

	half := make([]byte, 6)
	require.NoError(t, tensor.EncodeFloat32(half, in, tensor.BFloat16))
	back, err := tensor.DecodeFloat32(half, tensor.BFloat16)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 5, 3}, back)
}

func TestBroadcastStrides(t *testing.T) {
	strides, err := tensor.BroadcastStrides(tensor.Shape{3}, tensor.Shape{2, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, strides)
}
