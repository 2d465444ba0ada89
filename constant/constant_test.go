// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package constant_test

import (
	"testing"

	"github.com/born-ml/lower/constant"
	"github.com/born-ml/lower/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstantAPI(t *testing.T) {
	k, err := constant.FromInt32("k", []int{2, 2}, []int32{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, "k", k.Name())
	assert.Equal(t, 4, k.NumElements())

	v, err := k.Int64At(3)
	require.NoError(t, err)
	assert.Equal(t, int64(4), v)

	one, err := constant.SplatFloat32("one", tensor.NewValueType(tensor.Float32, 1), 1)
	require.NoError(t, err)
	assert.True(t, one.IsScalarOne())

	_, err = constant.New("short", tensor.NewValueType(tensor.Float32, 4), []byte{1})
	assert.ErrorIs(t, err, constant.ErrInvalidData)
}
