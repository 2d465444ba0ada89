package dnn

import (
	"math"
	"slices"

	"github.com/pkg/errors"
)

// LRN normalizes each element by the energy of its neighbours across
// channels:
//
//	y = x / (k + alpha/size * Σ x²)^beta
//
// where the sum runs over the size channels centred on the element.
type LRN struct {
	src, dst       Desc
	size           int
	alpha, beta, k float32
}

// NewLRN builds a cross-channel LRN primitive over a {N, C, ...} source.
// The window size must be odd.
func NewLRN(src, dst Desc, size int, alpha, beta, k float32) (*LRN, error) {
	if src.IsAny() || dst.IsAny() || src.IsZero() || dst.IsZero() {
		return nil, errors.Wrapf(ErrInvalidDesc, "lrn needs concrete formats")
	}
	if src.Rank() < 2 || !slices.Equal(src.dims, dst.dims) {
		return nil, errors.Wrapf(ErrInvalidDesc, "lrn %s -> %s", src, dst)
	}
	if size < 1 || size%2 == 0 {
		return nil, errors.Wrapf(ErrInvalidDesc, "lrn window %d", size)
	}
	if !src.dtype.IsFloat() || !dst.dtype.IsFloat() {
		return nil, errors.Wrapf(ErrInvalidDesc, "lrn on %s", src.dtype)
	}
	return &LRN{src: src, dst: dst, size: size, alpha: alpha, beta: beta, k: k}, nil
}

// Kind implements Primitive.
func (l *LRN) Kind() Kind { return KindLRN }

// Execute implements Primitive.
func (l *LRN) Execute(args Args) error {
	src, err := args.argData(ArgSrc, l.src)
	if err != nil {
		return err
	}
	dst, err := args.argData(ArgDst, l.dst)
	if err != nil {
		return err
	}
	x, err := loadFloat32(l.src, src)
	if err != nil {
		return err
	}
	out, flush := float32Output(l.dst, dst)

	n, c := l.src.dims[0], l.src.dims[1]
	spatial := 1
	for _, d := range l.src.dims[2:] {
		spatial *= d
	}
	radius := (l.size - 1) / 2
	norm := float64(l.alpha) / float64(l.size)

	for b := 0; b < n; b++ {
		for ch := 0; ch < c; ch++ {
			lo, hi := max(ch-radius, 0), min(ch+radius, c-1)
			for s := 0; s < spatial; s++ {
				var sum float64
				for j := lo; j <= hi; j++ {
					v := float64(x[(b*c+j)*spatial+s])
					sum += v * v
				}
				i := (b*c+ch)*spatial + s
				out[i] = float32(float64(x[i]) / math.Pow(float64(l.k)+norm*sum, float64(l.beta)))
			}
		}
	}
	return flush()
}
