package compute

import (
	"testing"

	"github.com/born-ml/lower/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddElementwise(t *testing.T) {
	c := newTestComputation(t)
	a := mustArg(t, c, f32Type(2, 3), "a")
	b := mustArg(t, c, f32Type(2, 3), "b")
	y, err := c.Add(a, b, "y")
	require.NoError(t, err)

	got := execute(t, c, map[string][]float32{
		"a": {1, 2, 3, 4, 5, 6},
		"b": {10, 20, 30, 40, 50, 60},
	}, y)
	assert.Equal(t, []float32{11, 22, 33, 44, 55, 66}, got)
}

func TestAddBroadcast(t *testing.T) {
	c := newTestComputation(t)
	a := mustArg(t, c, f32Type(2, 3, 4), "a")
	b := mustArg(t, c, f32Type(4), "b")
	y, err := c.Add(a, b, "y")
	require.NoError(t, err)

	got := execute(t, c, map[string][]float32{
		"a": iota32(24),
		"b": {100, 200, 300, 400},
	}, y)
	for i, v := range got {
		assert.Equal(t, float32(i)+float32(100*(i%4+1)), v, "element %d", i)
	}
}

func TestMulBroadcastSameRank(t *testing.T) {
	c := newTestComputation(t)
	a := mustArg(t, c, f32Type(2, 3), "a")
	b := mustConst(t, c, f32Type(2, 1), []float32{2, 10}, "")
	y, err := c.Mul(a, b, "y")
	require.NoError(t, err)

	got := execute(t, c, map[string][]float32{"a": {1, 2, 3, 4, 5, 6}}, y)
	assert.Equal(t, []float32{2, 4, 6, 40, 50, 60}, got)
}

func TestAddSameCountReinterprets(t *testing.T) {
	c := newTestComputation(t)
	a := mustArg(t, c, f32Type(2, 3), "a")
	b := mustConst(t, c, f32Type(3, 2), []float32{1, 1, 1, 2, 2, 2}, "")
	y, err := c.Add(a, b, "y")
	require.NoError(t, err)

	got := execute(t, c, map[string][]float32{"a": iota32(6)}, y)
	assert.Equal(t, []float32{1, 2, 3, 5, 6, 7}, got)
}

func TestBinaryErrors(t *testing.T) {
	c := newTestComputation(t)
	a := mustArg(t, c, f32Type(2, 3, 4), "a")

	_, err := c.Add(a, mustArg(t, c, f32Type(3), "b"), "")
	assert.Equal(t, InvalidShape, StatusOf(err))
	_, err = c.Add(mustArg(t, c, f32Type(4), "c"), a, "")
	assert.Equal(t, InvalidShape, StatusOf(err))
	_, err = c.Mul(a, mustArg(t, c, f32Type(2, 2, 4), "d"), "")
	assert.Equal(t, InvalidShape, StatusOf(err))
	_, err = c.Add(a, mustArg(t, c, tensor.NewValueType(tensor.Int32, 4), "e"), "")
	assert.Equal(t, Unsupported, StatusOf(err))
}

func TestIntegerAddIsExact(t *testing.T) {
	c := newTestComputation(t)
	typ := tensor.NewValueType(tensor.Int64, 2)
	a := mustArg(t, c, typ, "a")
	b, err := c.CreateConstant(typ, tensor.Bytes([]int64{1, -1}), "")
	require.NoError(t, err)
	y, err := c.Add(a, b, "y")
	require.NoError(t, err)

	ctx, err := c.NewContext()
	require.NoError(t, err)
	defer ctx.Destroy()
	big := int64(1) << 53
	require.NoError(t, ctx.BindArgumentByName("a", tensor.Bytes([]int64{big, big})))
	out := make([]byte, 16)
	require.NoError(t, ctx.BindOutput(y, out))
	require.NoError(t, ctx.Execute(Inference, tensor.CPU))
	assert.Equal(t, []int64{big + 1, big - 1}, tensor.View[int64](out))
}

func TestEltwise(t *testing.T) {
	in := []float32{-2, -0.5, 0, 1.5, 3}
	tests := []struct {
		name  string
		build func(c *Computation, x Value) (Value, error)
		want  []float32
	}{
		{"relu", func(c *Computation, x Value) (Value, error) { return c.Relu(x, "") },
			[]float32{0, 0, 0, 1.5, 3}},
		{"leaky relu", func(c *Computation, x Value) (Value, error) { return c.LeakyRelu(x, 0.5, "") },
			[]float32{-1, -0.25, 0, 1.5, 3}},
		{"leaky relu zero alpha", func(c *Computation, x Value) (Value, error) { return c.LeakyRelu(x, 0, "") },
			[]float32{0, 0, 0, 1.5, 3}},
		{"clamp", func(c *Computation, x Value) (Value, error) { return c.Clamp(x, -1, 2, "") },
			[]float32{-1, -0.5, 0, 1.5, 2}},
		{"sigmoid", func(c *Computation, x Value) (Value, error) { return c.Sigmoid(x, "") },
			[]float32{0.11920292, 0.37754068, 0.5, 0.81757448, 0.95257413}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestComputation(t)
			x := mustArg(t, c, f32Type(5), "x")
			y, err := tt.build(c, x)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, execute(t, c, map[string][]float32{"x": in}, y), 1e-6)
		})
	}

	c := newTestComputation(t)
	ints := mustArg(t, c, tensor.NewValueType(tensor.Int32, 3), "i")
	_, err := c.Relu(ints, "")
	assert.Equal(t, Unsupported, StatusOf(err))
	x := mustArg(t, c, f32Type(3), "x")
	_, err = c.Clamp(x, 2, 1, "")
	assert.Equal(t, InvalidValue, StatusOf(err))
}

func TestPooling(t *testing.T) {
	// NHWC [1, 2, 2, 2]: channel 0 holds 1..4, channel 1 holds 10..40.
	nhwc := []float32{1, 10, 2, 20, 3, 30, 4, 40}
	p := PoolParams{Window: [2]int{2, 2}, Strides: [2]int{2, 2}}

	c := newTestComputation(t)
	x := mustArg(t, c, f32Type(1, 2, 2, 2), "x")
	mx, err := c.MaxPool(x, tensor.ChannelsLast, p, tensor.Shape{1, 1, 1, 2}, "")
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 40}, execute(t, c, map[string][]float32{"x": nhwc}, mx))

	avg, err := c.AveragePool(x, tensor.ChannelsLast, p, tensor.Shape{1, 1, 1, 2}, "")
	require.NoError(t, err)
	assert.Equal(t, []float32{2.5, 25}, execute(t, c, map[string][]float32{"x": nhwc}, avg))
}

func TestAveragePoolExcludesPadding(t *testing.T) {
	c := newTestComputation(t)
	x := mustArg(t, c, f32Type(1, 1, 2, 2), "x")
	p := PoolParams{Window: [2]int{2, 2}, Strides: [2]int{1, 1}, PadFront: [2]int{1, 1}}
	y, err := c.AveragePool(x, tensor.ChannelsFirst, p, tensor.Shape{1, 1, 2, 2}, "")
	require.NoError(t, err)

	got := execute(t, c, map[string][]float32{"x": {1, 2, 3, 4}}, y)
	assert.Equal(t, []float32{1, 1.5, 2, 2.5}, got)
}

func TestPoolingErrors(t *testing.T) {
	c := newTestComputation(t)
	x := mustArg(t, c, f32Type(1, 1, 4, 4), "x")
	p := PoolParams{Window: [2]int{2, 2}, Strides: [2]int{2, 2}}

	_, err := c.MaxPool(x, tensor.ChannelsFirst, p, tensor.Shape{1, 1, 3, 3}, "")
	assert.Equal(t, InvalidShape, StatusOf(err))
	_, err = c.MaxPool(x, tensor.SIO, p, tensor.Shape{1, 1, 2, 2}, "")
	assert.Equal(t, Unsupported, StatusOf(err))
	_, err = c.MaxPool(x, tensor.ChannelsFirst, PoolParams{}, tensor.Shape{1, 1, 2, 2}, "")
	assert.Equal(t, InvalidShape, StatusOf(err))
}

func TestBatchNormalization(t *testing.T) {
	c := newTestComputation(t)
	x := mustArg(t, c, f32Type(1, 2, 1, 2), "x")
	mean := mustConst(t, c, f32Type(2), []float32{1, 3}, "")
	variance := mustConst(t, c, f32Type(2), []float32{4, 1}, "")
	scale := mustConst(t, c, f32Type(2), []float32{2, 3}, "")
	offset := mustArg(t, c, f32Type(2), "offset")

	y, err := c.BatchNormalization(x, tensor.ChannelsFirst, mean, variance, 0, scale, offset, 1, 0, "y")
	require.NoError(t, err)
	got := execute(t, c, map[string][]float32{
		"x":      {1, 2, 3, 4},
		"offset": {1, -1},
	}, y)
	assert.InDeltaSlice(t, []float32{1, 2, -1, 2}, got, 1e-6)

	plain, err := c.BatchNormalization(x, tensor.ChannelsFirst, mean, variance, 0, Value{}, Value{}, 1, 0.5, "")
	require.NoError(t, err)
	got = execute(t, c, map[string][]float32{"x": {1, 2, 3, 4}, "offset": {0, 0}}, plain)
	assert.InDeltaSlice(t, []float32{0.5, 1, 0.5, 1.5}, got, 1e-6)
}

func TestBatchNormalizationChannelsLast(t *testing.T) {
	c := newTestComputation(t)
	x := mustArg(t, c, f32Type(1, 1, 2, 2), "x")
	mean := mustConst(t, c, f32Type(2), []float32{1, 3}, "")
	variance := mustConst(t, c, f32Type(2), []float32{4, 1}, "")

	y, err := c.BatchNormalization(x, tensor.ChannelsLast, mean, variance, 0, Value{}, Value{}, 1, 0, "")
	require.NoError(t, err)
	// NHWC: pixels (1, 3) and (2, 4).
	got := execute(t, c, map[string][]float32{"x": {1, 3, 2, 4}}, y)
	assert.InDeltaSlice(t, []float32{0, 0, 0.5, 1}, got, 1e-6)

	short := mustConst(t, c, f32Type(3), []float32{1, 2, 3}, "")
	_, err = c.BatchNormalization(x, tensor.ChannelsLast, short, variance, 0, Value{}, Value{}, 1, 0, "")
	assert.Equal(t, InvalidShape, StatusOf(err))
}

func TestLRN(t *testing.T) {
	c := newTestComputation(t)
	x := mustArg(t, c, f32Type(1, 3, 1, 1), "x")
	y, err := c.LRN(x, tensor.ChannelsFirst, 3, 3, 1, 1, "")
	require.NoError(t, err)
	got := execute(t, c, map[string][]float32{"x": {1, 2, 3}}, y)
	assert.InDeltaSlice(t, []float32{1.0 / 6, 2.0 / 15, 3.0 / 14}, got, 1e-6)

	_, err = c.LRN(x, tensor.ChannelsFirst, 2, 3, 1, 1, "")
	assert.Equal(t, Unsupported, StatusOf(err))
	_, err = c.LRN(x, tensor.ChannelsFirst, 0, 3, 1, 1, "")
	assert.Equal(t, InvalidValue, StatusOf(err))
}

func TestSoftmax(t *testing.T) {
	c := newTestComputation(t)
	x := mustArg(t, c, f32Type(2, 3), "x")
	y, err := c.Softmax(x, -1, "")
	require.NoError(t, err)
	got := execute(t, c, map[string][]float32{"x": {0, 0, 0, 1, 2, 3}}, y)

	assert.InDeltaSlice(t, []float32{1.0 / 3, 1.0 / 3, 1.0 / 3}, got[:3], 1e-6)
	assert.InDelta(t, 1, got[3]+got[4]+got[5], 1e-6)
	assert.Less(t, got[3], got[4])

	_, err = c.Softmax(x, 2, "")
	assert.Equal(t, InvalidShape, StatusOf(err))
	_, err = c.Softmax(x, -3, "")
	assert.Equal(t, InvalidShape, StatusOf(err))
}

func TestReduceMean(t *testing.T) {
	c := newTestComputation(t)
	x := mustArg(t, c, f32Type(2, 3, 2), "x")
	args := map[string][]float32{"x": iota32(12)}

	y, err := c.ReduceMean(x, []int{1}, false, tensor.Shape{2, 2}, "")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{2, 3, 8, 9}, execute(t, c, args, y), 1e-6)

	kept, err := c.ReduceMean(x, []int{-2}, true, tensor.Shape{2, 1, 2}, "")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{2, 3, 8, 9}, execute(t, c, args, kept), 1e-6)

	inner, err := c.ReduceMean(x, []int{2, 1}, false, tensor.Shape{2}, "")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{2.5, 8.5}, execute(t, c, args, inner), 1e-6)
}

func TestReduceMeanErrors(t *testing.T) {
	c := newTestComputation(t)
	x := mustArg(t, c, f32Type(2, 3, 2), "x")

	_, err := c.ReduceMean(x, []int{0, 2}, false, tensor.Shape{3}, "")
	assert.Equal(t, Unsupported, StatusOf(err))
	_, err = c.ReduceMean(x, []int{3}, false, tensor.Shape{2, 3}, "")
	assert.Equal(t, InvalidShape, StatusOf(err))
	_, err = c.ReduceMean(x, []int{1}, false, tensor.Shape{2, 3}, "")
	assert.Equal(t, InvalidShape, StatusOf(err))
	_, err = c.ReduceMean(x, []int{1}, true, tensor.Shape{2, 2}, "")
	assert.Equal(t, InvalidShape, StatusOf(err))

	ints := mustArg(t, c, tensor.NewValueType(tensor.Int64, 2, 3), "i")
	_, err = c.ReduceMean(ints, []int{1}, false, tensor.Shape{2}, "")
	assert.Equal(t, Unsupported, StatusOf(err))
}

func TestGemm(t *testing.T) {
	a := []float32{1, 2, 3, 4, 5, 6}  // [2, 3]
	aT := []float32{1, 4, 2, 5, 3, 6} // [3, 2]
	b := []float32{1, 0, 0, 1, 1, 0}  // [3, 2]
	bT := []float32{1, 0, 1, 0, 1, 0} // [2, 3]
	product := []float32{4, 2, 10, 5}

	tests := []struct {
		name           string
		aShape, bShape tensor.Shape
		aData, bData   []float32
		transA, transB bool
	}{
		{"plain", tensor.Shape{2, 3}, tensor.Shape{3, 2}, a, b, false, false},
		{"trans a", tensor.Shape{3, 2}, tensor.Shape{3, 2}, aT, b, true, false},
		{"trans b", tensor.Shape{2, 3}, tensor.Shape{2, 3}, a, bT, false, true},
		{"trans both", tensor.Shape{3, 2}, tensor.Shape{2, 3}, aT, bT, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestComputation(t)
			x := mustArg(t, c, f32Type(tt.aShape...), "a")
			w := mustConst(t, c, f32Type(tt.bShape...), tt.bData, "")
			y, err := c.Gemm(x, tt.transA, w, tt.transB, 1, 1, Value{}, tensor.Shape{2, 2}, "")
			require.NoError(t, err)
			assert.InDeltaSlice(t, product, execute(t, c, map[string][]float32{"a": tt.aData}, y), 1e-6)
		})
	}
}

func TestGemmAlphaBetaBias(t *testing.T) {
	c := newTestComputation(t)
	x := mustArg(t, c, f32Type(2, 3), "a")
	w := mustConst(t, c, f32Type(3, 2), []float32{1, 0, 0, 1, 1, 0}, "")
	bias := mustConst(t, c, f32Type(2), []float32{1, 2}, "")

	y, err := c.Gemm(x, false, w, false, 2, 0.5, bias, tensor.Shape{2, 2}, "y")
	require.NoError(t, err)
	got := execute(t, c, map[string][]float32{"a": {1, 2, 3, 4, 5, 6}}, y)
	assert.InDeltaSlice(t, []float32{8.5, 5, 20.5, 11}, got, 1e-6)

	plan := c.PlanLen()
	_, err = c.Gemm(x, false, w, false, 1, 0, bias, tensor.Shape{2, 2}, "")
	require.NoError(t, err)
	assert.Equal(t, plan+1, c.PlanLen(), "beta 0 drops the bias")

	_, err = c.Gemm(x, false, w, false, 1, 1, Value{}, tensor.Shape{3, 2}, "")
	assert.Equal(t, InvalidShape, StatusOf(err))
	_, err = c.Gemm(x, false, w, false, 1, 1, Value{}, tensor.Shape{2, 2, 1}, "")
	assert.Equal(t, Unsupported, StatusOf(err))
}

func TestConcat(t *testing.T) {
	c := newTestComputation(t)
	a := mustArg(t, c, f32Type(2, 3), "a")
	b := mustArg(t, c, f32Type(3, 3), "b")
	y, err := c.Concat([]Value{a, b}, 0, tensor.Shape{5, 3}, "y")
	require.NoError(t, err)

	typ, err := c.ValueType(y)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{5, 3}, typ.Shape)

	got := execute(t, c, map[string][]float32{
		"a": iota32(6),
		"b": {10, 11, 12, 13, 14, 15, 16, 17, 18},
	}, y)
	assert.Equal(t, []float32{0, 1, 2, 3, 4, 5, 10, 11, 12, 13, 14, 15, 16, 17, 18}, got)
}

func TestConcatInnerAxis(t *testing.T) {
	c := newTestComputation(t)
	a := mustArg(t, c, f32Type(2, 1), "a")
	b := mustConst(t, c, f32Type(2, 2), []float32{10, 11, 12, 13}, "")
	y, err := c.Concat([]Value{a, b}, -1, tensor.Shape{2, 3}, "")
	require.NoError(t, err)

	got := execute(t, c, map[string][]float32{"a": {1, 2}}, y)
	assert.Equal(t, []float32{1, 10, 11, 2, 12, 13}, got)
}

func TestConcatErrors(t *testing.T) {
	c := newTestComputation(t)
	a := mustArg(t, c, f32Type(2, 3), "a")
	b := mustArg(t, c, f32Type(3, 2), "b")
	i := mustArg(t, c, tensor.NewValueType(tensor.Int32, 3, 3), "i")

	_, err := c.Concat(nil, 0, tensor.Shape{1}, "")
	assert.Equal(t, InvalidValue, StatusOf(err))
	_, err = c.Concat([]Value{a, b}, 0, tensor.Shape{5, 3}, "")
	assert.Equal(t, InvalidShape, StatusOf(err))
	_, err = c.Concat([]Value{a, a}, 0, tensor.Shape{5, 3}, "")
	assert.Equal(t, InvalidShape, StatusOf(err))
	_, err = c.Concat([]Value{a, i}, 0, tensor.Shape{5, 3}, "")
	assert.Equal(t, Unsupported, StatusOf(err))
	_, err = c.Concat([]Value{a, a}, 2, tensor.Shape{4, 3}, "")
	assert.Equal(t, InvalidShape, StatusOf(err))
}

func TestSlice(t *testing.T) {
	c := newTestComputation(t)
	x := mustArg(t, c, f32Type(3, 4), "x")
	y, err := c.Slice(x, []int{1, 1}, []int{1, 1}, tensor.Shape{2, 2}, "")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 6, 9, 10}, execute(t, c, map[string][]float32{"x": iota32(12)}, y))

	_, err = c.Slice(x, []int{0, 0}, []int{2, 1}, tensor.Shape{2, 2}, "")
	assert.Equal(t, Unsupported, StatusOf(err))
	_, err = c.Slice(x, []int{2, 0}, []int{1, 1}, tensor.Shape{2, 2}, "")
	assert.Equal(t, InvalidShape, StatusOf(err))
	_, err = c.Slice(x, []int{0}, []int{1}, tensor.Shape{2}, "")
	assert.Equal(t, InvalidShape, StatusOf(err))
}

func TestTransposeRoundTrip(t *testing.T) {
	c := newTestComputation(t)
	x := mustArg(t, c, f32Type(2, 3, 4), "x")
	y, err := c.Transpose(x, []int{2, 0, 1}, tensor.Shape{4, 2, 3}, "")
	require.NoError(t, err)
	back, err := c.Transpose(y, []int{1, 2, 0}, tensor.Shape{2, 3, 4}, "")
	require.NoError(t, err)

	in := iota32(24)
	args := map[string][]float32{"x": in}
	got := execute(t, c, args, y)
	for k := 0; k < 4; k++ {
		for i := 0; i < 2; i++ {
			for j := 0; j < 3; j++ {
				assert.Equal(t, in[(i*3+j)*4+k], got[(k*2+i)*3+j])
			}
		}
	}
	assert.Equal(t, in, execute(t, c, args, back))

	_, err = c.Transpose(x, []int{0, 0, 1}, tensor.Shape{2, 2, 3}, "")
	assert.Equal(t, InvalidShape, StatusOf(err))
	_, err = c.Transpose(x, []int{2, 0, 1}, tensor.Shape{2, 3, 4}, "")
	assert.Equal(t, InvalidShape, StatusOf(err))
}

func TestReshape(t *testing.T) {
	c := newTestComputation(t)
	x := mustArg(t, c, f32Type(2, 3), "x")
	r, err := c.Reshape(x, tensor.Shape{6}, "")
	require.NoError(t, err)
	plan := c.PlanLen()

	zeros := mustConst(t, c, f32Type(6), make([]float32, 6), "")
	y, err := c.Add(r, zeros, "")
	require.NoError(t, err)
	assert.Equal(t, plan+1, c.PlanLen())
	assert.Equal(t, iota32(6), execute(t, c, map[string][]float32{"x": iota32(6)}, y))

	typ, err := c.ValueType(r)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{6}, typ.Shape)

	_, err = c.Reshape(x, tensor.Shape{4}, "")
	assert.Equal(t, InvalidShape, StatusOf(err))
	_, err = c.Reshape(x, tensor.Shape{}, "")
	assert.Equal(t, InvalidShape, StatusOf(err))
}
