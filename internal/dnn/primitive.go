package dnn

import "fmt"

// Kind identifies the operation a primitive performs.
type Kind int

// Primitive kinds.
const (
	KindReorder Kind = iota
	KindBinary
	KindEltwise
	KindConvolution
	KindDeconvolution
	KindPooling
	KindBatchNorm
	KindLRN
	KindSoftmax
	KindMatmul
	KindConcat

	numKinds
)

var kindNames = [...]string{
	KindReorder:       "reorder",
	KindBinary:        "binary",
	KindEltwise:       "eltwise",
	KindConvolution:   "convolution",
	KindDeconvolution: "deconvolution",
	KindPooling:       "pooling",
	KindBatchNorm:     "batch_normalization",
	KindLRN:           "lrn",
	KindSoftmax:       "softmax",
	KindMatmul:        "matmul",
	KindConcat:        "concat",
}

var _ = [1]struct{}{}[len(kindNames)-int(numKinds)]

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return fmt.Sprintf("unknown(%d)", int(k))
	}
	return kindNames[k]
}

// Primitive is an executable kernel with fixed descriptors.
type Primitive interface {
	Kind() Kind
	// Execute runs the kernel against args. Buffers are read and written
	// through the primitive's own descriptors.
	Execute(args Args) error
}
