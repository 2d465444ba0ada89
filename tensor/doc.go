// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor describes the values a computation works on.
//
// # Value Types
//
// Every value has a ValueType: an element type and a shape of rank 1 to
// MaxRank.
//
//	vt := tensor.NewValueType(tensor.Float32, 1, 16, 32, 32)
//	vt.NumElements()  // 16384
//	vt.String()       // "float32[1 16 32 32]"
//
// # Data Types
//
// Supported element types:
//   - float32 (default for activations and weights)
//   - bfloat16 (reduced-precision convolution outputs)
//   - float16 (storage only)
//   - int32, int64 (indices and integer arithmetic)
//
// # Layouts
//
// Activations are declared ChannelsFirst (NCHW) or ChannelsLast (NHWC).
// Convolution kernels are declared SIO (HWIO), OIS (OIHW) or IOS (IOHW).
// The lowering core converts between declared layouts and the layouts the
// kernels prefer, so callers always bind buffers in the declared layout.
//
// # Buffers
//
// Arguments and outputs are bound as raw little-endian bytes. Bytes and View
// convert between typed slices and bytes without copying:
//
//	in := []float32{1, 2, 3, 4}
//	_ = ctx.BindArgument(x, tensor.Bytes(in))
//	out := make([]float32, 4)
//	_ = ctx.BindOutput(y, tensor.Bytes(out))
package tensor
