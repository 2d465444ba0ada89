package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapeNumElements(t *testing.T) {
	tests := []struct {
		shape    Shape
		expected int
	}{
		{Shape{}, 1},         // Scalar
		{Shape{5}, 5},        // 1D
		{Shape{3, 4}, 12},    // 2D
		{Shape{2, 3, 4}, 24}, // 3D
		{Shape{2, 0, 4}, 0},  // Empty
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.shape.NumElements(), "Shape%v.NumElements()", tt.shape)
	}
}

func TestShapeValidateRank(t *testing.T) {
	for r := 1; r <= MaxRank; r++ {
		s := make(Shape, r)
		for i := range s {
			s[i] = i + 1
		}
		assert.NoError(t, s.ValidateRank(), "rank %d", r)
	}

	assert.Error(t, Shape{}.ValidateRank())
	assert.Error(t, Shape{1, 1, 1, 1, 1, 1, 1}.ValidateRank())
	assert.Error(t, Shape{3, -4}.ValidateRank())
	assert.NoError(t, Shape{3, 0}.ValidateRank())
}

func TestShapeEqual(t *testing.T) {
	assert.True(t, Shape{3, 4}.Equal(Shape{3, 4}))
	assert.False(t, Shape{3, 4}.Equal(Shape{4, 3}))
	assert.False(t, Shape{3}.Equal(Shape{3, 1}))
	assert.True(t, Shape{}.Equal(Shape{}))
}

func TestComputeStrides(t *testing.T) {
	assert.Equal(t, []int{1}, Shape{4}.ComputeStrides())
	assert.Equal(t, []int{4, 1}, Shape{3, 4}.ComputeStrides())
	assert.Equal(t, []int{12, 4, 1}, Shape{2, 3, 4}.ComputeStrides())
}

func TestBroadcastStrides(t *testing.T) {
	tests := []struct {
		in, out  Shape
		expected []int
	}{
		{Shape{4}, Shape{2, 3, 4}, []int{0, 0, 1}},
		{Shape{3, 4}, Shape{2, 3, 4}, []int{0, 4, 1}},
		{Shape{3, 1}, Shape{2, 3, 4}, []int{0, 1, 0}},
		{Shape{2, 3, 4}, Shape{2, 3, 4}, []int{12, 4, 1}},
	}

	for _, tt := range tests {
		got, err := BroadcastStrides(tt.in, tt.out)
		require.NoError(t, err, "%v onto %v", tt.in, tt.out)
		assert.Equal(t, tt.expected, got, "%v onto %v", tt.in, tt.out)
	}

	_, err := BroadcastStrides(Shape{5}, Shape{2, 3, 4})
	assert.Error(t, err)
	_, err = BroadcastStrides(Shape{1, 2, 3, 4}, Shape{2, 3, 4})
	assert.Error(t, err)
}
