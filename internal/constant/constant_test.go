package constant

import (
	"testing"

	"github.com/born-ml/lower/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCopies(t *testing.T) {
	data := tensor.Bytes([]float32{1, 2, 3, 4, 99})
	c, err := New("w", tensor.NewValueType(tensor.Float32, 2, 2), data)
	require.NoError(t, err)

	data[0] = 0xff
	v, err := c.Float32At(0)
	require.NoError(t, err)
	assert.Equal(t, float32(1), v)
	assert.Len(t, c.Bytes(), 16, "trailing bytes are dropped")
	assert.Equal(t, "w", c.Name())
	assert.Equal(t, tensor.Shape{2, 2}, c.Type().Shape)

	_, err = New("short", tensor.NewValueType(tensor.Float32, 4), data[:8])
	assert.ErrorIs(t, err, ErrInvalidData)
	_, err = New("scalar", tensor.NewValueType(tensor.Float32), data)
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestSplat(t *testing.T) {
	c, err := Splat("s", tensor.NewValueType(tensor.Int64, 3, 2), tensor.Bytes([]int64{-7}))
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		v, err := c.Int64At(i)
		require.NoError(t, err)
		assert.Equal(t, int64(-7), v)
	}

	_, err = Splat("bad", tensor.NewValueType(tensor.Int64, 2), []byte{1, 2})
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestSplatFloat32(t *testing.T) {
	for _, dt := range []tensor.DataType{tensor.Float32, tensor.BFloat16, tensor.Float16, tensor.Int32} {
		t.Run(dt.String(), func(t *testing.T) {
			c, err := SplatFloat32("half", tensor.NewValueType(dt, 4), 0.5)
			require.NoError(t, err)
			v, err := c.Float32At(3)
			require.NoError(t, err)
			if dt.IsFloat() {
				assert.Equal(t, float32(0.5), v)
			} else {
				assert.Equal(t, float32(1), v, "integers round half away from zero")
			}
		})
	}
}

func TestScalarQueries(t *testing.T) {
	zero, err := FromInt32("z", []int{1}, []int32{0})
	require.NoError(t, err)
	assert.True(t, zero.IsScalarZero())
	assert.False(t, zero.IsScalarOne())

	one, err := FromFloat32("o", []int{1, 1}, []float32{1})
	require.NoError(t, err)
	assert.True(t, one.IsScalarOne())
	assert.False(t, one.IsScalarZero())

	bf, err := SplatFloat32("b", tensor.NewValueType(tensor.BFloat16, 1), 1)
	require.NoError(t, err)
	assert.True(t, bf.IsScalarOne())

	vec, err := FromInt64("v", []int{2}, []int64{0, 0})
	require.NoError(t, err)
	assert.False(t, vec.IsScalarZero(), "only single elements are scalars")
}

func TestTypedReads(t *testing.T) {
	c, err := FromFloat32("f", []int{3}, []float32{1.5, -2.75, 3})
	require.NoError(t, err)

	i, err := c.Int64At(1)
	require.NoError(t, err)
	assert.Equal(t, int64(-2), i)

	f, err := c.Float32At(2)
	require.NoError(t, err)
	assert.Equal(t, float32(3), f)

	_, err = c.Float32At(3)
	assert.ErrorIs(t, err, ErrInvalidData)
	_, err = c.Int64At(-1)
	assert.ErrorIs(t, err, ErrInvalidData)

	_, err = FromInt64("n", []int{2}, []int64{1})
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestString(t *testing.T) {
	c, err := FromInt32("k", []int{2, 2}, []int32{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, "constant k(int32[2 2]) = [1, 2, 3, 4]", c.String())

	vals := make([]float32, 40)
	for i := range vals {
		vals[i] = float32(i) / 2
	}
	long, err := FromFloat32("l", []int{40}, vals)
	require.NoError(t, err)
	s := long.String()
	assert.Contains(t, s, "15.5, ...]")
	assert.NotContains(t, s, "16,")
}
