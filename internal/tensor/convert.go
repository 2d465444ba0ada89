package tensor

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// Element is the set of Go types that back a DataType in memory.
type Element interface {
	~float32 | ~int32 | ~int64 | ~uint16
}

// Bytes reinterprets a typed slice as raw bytes without copying.
func Bytes[T Element](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	n := len(s) * int(unsafe.Sizeof(s[0]))
	//nolint:gosec // unsafe.Slice for zero-copy views, length derived from len(s)
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n)
}

// View reinterprets raw bytes as a typed slice without copying.
// Trailing bytes that do not form a whole element are ignored.
func View[T Element](data []byte) []T {
	var zero T
	size := int(unsafe.Sizeof(zero))
	n := len(data) / size
	if n == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy views, bounds checked by n
	return unsafe.Slice((*T)(unsafe.Pointer(&data[0])), n)
}

// DecodeFloat32 converts densely packed elements of type dt into float32.
// Float32 input is returned as a view; every other type is copied.
func DecodeFloat32(data []byte, dt DataType) ([]float32, error) {
	switch dt {
	case Float32:
		return View[float32](data), nil
	case BFloat16:
		return bfloat16.DecodeFloat32(data), nil
	case Float16:
		out := make([]float32, len(data)/2)
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(data[2*i:])).Float32()
		}
		return out, nil
	case Int32:
		src := View[int32](data)
		out := make([]float32, len(src))
		for i, v := range src {
			out[i] = float32(v)
		}
		return out, nil
	case Int64:
		src := View[int64](data)
		out := make([]float32, len(src))
		for i, v := range src {
			out[i] = float32(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("decode: unsupported dtype %s", dt)
	}
}

// EncodeFloat32 writes vals into dst as densely packed elements of type dt.
// Integer targets round to nearest and saturate at the type bounds.
func EncodeFloat32(dst []byte, vals []float32, dt DataType) error {
	if len(dst) < len(vals)*dt.Size() {
		return fmt.Errorf("encode: destination holds %d bytes, need %d", len(dst), len(vals)*dt.Size())
	}
	switch dt {
	case Float32:
		copy(dst, Bytes(vals))
	case BFloat16:
		for i, v := range vals {
			binary.LittleEndian.PutUint16(dst[2*i:], uint16(bfloat16.FromFloat32(roundBFloat16(v))))
		}
	case Float16:
		for i, v := range vals {
			binary.LittleEndian.PutUint16(dst[2*i:], float16.Fromfloat32(v).Bits())
		}
	case Int32:
		out := View[int32](dst)
		for i, v := range vals {
			out[i] = int32(clampRound(float64(v), math.MinInt32, math.MaxInt32))
		}
	case Int64:
		out := View[int64](dst)
		for i, v := range vals {
			out[i] = int64(clampRound(float64(v), math.MinInt64, maxInt64Float))
		}
	default:
		return fmt.Errorf("encode: unsupported dtype %s", dt)
	}
	return nil
}

// DecodeInt64 converts densely packed integer elements into int64.
func DecodeInt64(data []byte, dt DataType) ([]int64, error) {
	switch dt {
	case Int64:
		return View[int64](data), nil
	case Int32:
		src := View[int32](data)
		out := make([]int64, len(src))
		for i, v := range src {
			out[i] = int64(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("decode: %s is not an integer type", dt)
	}
}

// EncodeInt64 writes vals into dst as densely packed elements of integer type dt.
// Values outside the int32 range are rejected rather than truncated.
func EncodeInt64(dst []byte, vals []int64, dt DataType) error {
	switch dt {
	case Int64:
		copy(dst, Bytes(vals))
	case Int32:
		out := View[int32](dst)
		for i, v := range vals {
			if v < math.MinInt32 || v > math.MaxInt32 {
				return fmt.Errorf("encode: value %d at %d overflows int32", v, i)
			}
			out[i] = int32(v)
		}
	default:
		return fmt.Errorf("encode: %s is not an integer type", dt)
	}
	return nil
}

// roundBFloat16 rounds v to the nearest bfloat16 value, ties to even, the way
// oneDNN converts. bfloat16.FromFloat32 alone truncates. NaN stays NaN.
func roundBFloat16(v float32) float32 {
	if math.IsNaN(float64(v)) {
		return float32(math.NaN())
	}
	bits := math.Float32bits(v)
	bits += 0x7fff + (bits>>16)&1
	return math.Float32frombits(bits &^ 0xffff)
}

// maxInt64Float is the largest float64 below 2^63.
var maxInt64Float = math.Nextafter(math.MaxInt64, 0)

func clampRound(v, lo, hi float64) float64 {
	v = math.Round(v)
	switch {
	case math.IsNaN(v):
		return 0
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
