package dnn

import (
	"github.com/born-ml/lower/internal/tensor"
)

// pack gathers the elements d describes into a dense row-major buffer. Dense
// descriptors return a view of data.
func pack(d Desc, data []byte) []byte {
	es := d.dtype.Size()
	n := d.NumElements()
	if d.IsDense() {
		return data[:n*es]
	}
	out := make([]byte, n*es)
	d.forEachOffset(func(i, off int) {
		copy(out[i*es:(i+1)*es], data[off*es:(off+1)*es])
	})
	return out
}

// unpack scatters a dense row-major buffer into data laid out by d.
func unpack(d Desc, dense, data []byte) {
	es := d.dtype.Size()
	if d.IsDense() {
		copy(data, dense[:d.NumElements()*es])
		return
	}
	d.forEachOffset(func(i, off int) {
		copy(data[off*es:(off+1)*es], dense[i*es:(i+1)*es])
	})
}

// loadFloat32 returns the elements of d as dense row-major float32. The result
// may alias data and must not be written.
func loadFloat32(d Desc, data []byte) ([]float32, error) {
	return tensor.DecodeFloat32(pack(d, data), d.dtype)
}

// loadInt64 returns the elements of d as dense row-major int64.
func loadInt64(d Desc, data []byte) ([]int64, error) {
	return tensor.DecodeInt64(pack(d, data), d.dtype)
}

// float32Output returns a dense float32 buffer for the elements of d and a
// flush function that stores it into data. For dense float32 descriptors the
// buffer is data itself and flush does nothing.
func float32Output(d Desc, data []byte) ([]float32, func() error) {
	n := d.NumElements()
	if d.IsDense() && d.dtype == tensor.Float32 {
		if n == 0 {
			return nil, func() error { return nil }
		}
		return tensor.View[float32](data)[:n], func() error { return nil }
	}
	out := make([]float32, n)
	return out, func() error {
		dense := make([]byte, n*d.dtype.Size())
		if err := tensor.EncodeFloat32(dense, out, d.dtype); err != nil {
			return err
		}
		unpack(d, dense, data)
		return nil
	}
}

// storeInt64 writes dense row-major vals into data laid out by d.
func storeInt64(d Desc, data []byte, vals []int64) error {
	dense := make([]byte, len(vals)*d.dtype.Size())
	if err := tensor.EncodeInt64(dense, vals, d.dtype); err != nil {
		return err
	}
	unpack(d, dense, data)
	return nil
}
