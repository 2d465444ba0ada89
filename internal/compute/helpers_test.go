package compute

import (
	"testing"

	"github.com/born-ml/lower/internal/parallel"
	"github.com/born-ml/lower/internal/tensor"
	"github.com/stretchr/testify/require"
)

func newTestComputation(t *testing.T, opts ...Option) *Computation {
	t.Helper()
	all := append([]Option{WithParallel(parallel.Config{Enabled: true, NumWorkers: 2, MinChunkSize: 1})}, opts...)
	c, err := New(all...)
	require.NoError(t, err)
	t.Cleanup(c.Destroy)
	return c
}

func f32Type(dims ...int) tensor.ValueType {
	return tensor.NewValueType(tensor.Float32, dims...)
}

func f32Bytes(vals ...float32) []byte {
	return tensor.Bytes(append([]float32(nil), vals...))
}

func readF32(b []byte) []float32 {
	return append([]float32(nil), tensor.View[float32](b)...)
}

func iota32(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i)
	}
	return out
}

func mustArg(t *testing.T, c *Computation, typ tensor.ValueType, name string) Value {
	t.Helper()
	v, err := c.CreateArgument(typ, name)
	require.NoError(t, err)
	return v
}

func mustConst(t *testing.T, c *Computation, typ tensor.ValueType, vals []float32, name string) Value {
	t.Helper()
	v, err := c.CreateConstant(typ, f32Bytes(vals...), name)
	require.NoError(t, err)
	return v
}

// execute binds float32 arguments by name and returns the contents of out.
func execute(t *testing.T, c *Computation, args map[string][]float32, out Value) []float32 {
	t.Helper()
	ctx, err := c.NewContext()
	require.NoError(t, err)
	defer ctx.Destroy()

	for name, vals := range args {
		require.NoError(t, ctx.BindArgumentByName(name, f32Bytes(vals...)))
	}
	typ, err := c.ValueType(out)
	require.NoError(t, err)
	buf := make([]byte, typ.ByteSize())
	require.NoError(t, ctx.BindOutput(out, buf))
	require.NoError(t, ctx.Execute(Inference, tensor.CPU))
	return readF32(buf)
}
