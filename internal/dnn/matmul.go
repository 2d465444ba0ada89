package dnn

import (
	"github.com/born-ml/lower/internal/tensor"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// Matmul computes dst{M, N} = alpha * src{M, K} @ weights{K, N}. Operands may
// be row-major or transposed through their strides.
type Matmul struct {
	src, weights, dst Desc
	alpha             float32
}

// NewMatmul builds a 2-D matmul primitive.
func NewMatmul(src, weights, dst Desc, alpha float32) (*Matmul, error) {
	for _, d := range []Desc{src, weights, dst} {
		if d.IsAny() || d.IsZero() || d.Rank() != 2 {
			return nil, errors.Wrapf(ErrInvalidDesc, "matmul needs concrete 2-D operands, got %s", d)
		}
		if !d.dtype.IsFloat() {
			return nil, errors.Wrapf(ErrInvalidDesc, "matmul on %s", d.dtype)
		}
	}
	m, k, n := src.dims[0], src.dims[1], weights.dims[1]
	if weights.dims[0] != k || dst.dims[0] != m || dst.dims[1] != n {
		return nil, errors.Wrapf(ErrInvalidDesc, "matmul %v @ %v -> %v", src.dims, weights.dims, dst.dims)
	}
	return &Matmul{src: src, weights: weights, dst: dst, alpha: alpha}, nil
}

// Kind implements Primitive.
func (mm *Matmul) Kind() Kind { return KindMatmul }

// Execute implements Primitive.
func (mm *Matmul) Execute(args Args) error {
	src, err := args.argData(ArgSrc, mm.src)
	if err != nil {
		return err
	}
	weights, err := args.argData(ArgWeights, mm.weights)
	if err != nil {
		return err
	}
	dst, err := args.argData(ArgDst, mm.dst)
	if err != nil {
		return err
	}

	m, k, n := mm.src.dims[0], mm.src.dims[1], mm.weights.dims[1]
	out, flush := float32Output(mm.dst, dst)
	if m*n == 0 {
		return flush()
	}
	if k == 0 {
		clear(out)
		return flush()
	}

	a, tA, err := matrixOperand(mm.src, src)
	if err != nil {
		return err
	}
	b, tB, err := matrixOperand(mm.weights, weights)
	if err != nil {
		return err
	}
	c := blas32.General{Rows: m, Cols: n, Stride: n, Data: out}
	blas32.Gemm(tA, tB, mm.alpha, a, b, 0, c)
	return flush()
}

// matrixOperand views a float32 operand directly when its strides describe a
// row-major or column-major matrix, and packs it otherwise.
func matrixOperand(d Desc, data []byte) (blas32.General, blas.Transpose, error) {
	rows, cols := d.dims[0], d.dims[1]
	if d.dtype == tensor.Float32 && d.offset == 0 && d.block == 0 {
		view := tensor.View[float32](data)
		rs, cs := d.strides[0], d.strides[1]
		switch {
		case cs == 1 && (rows == 1 || rs >= cols):
			return blas32.General{Rows: rows, Cols: cols, Stride: max(rs, cols), Data: view}, blas.NoTrans, nil
		case rs == 1 && (cols == 1 || cs >= rows):
			return blas32.General{Rows: cols, Cols: rows, Stride: max(cs, rows), Data: view}, blas.Trans, nil
		}
	}
	vals, err := loadFloat32(d, data)
	if err != nil {
		return blas32.General{}, blas.NoTrans, err
	}
	return blas32.General{Rows: rows, Cols: cols, Stride: cols, Data: vals}, blas.NoTrans, nil
}
