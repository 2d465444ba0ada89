package dnn

import (
	"math"

	"github.com/born-ml/lower/internal/parallel"
	"github.com/pkg/errors"
)

// PoolingAlg selects the window reduction.
type PoolingAlg int

// Pooling algorithms.
const (
	PoolingMax PoolingAlg = iota
	// PoolingAvg averages the window, excluding taps that fall into padding.
	PoolingAvg
)

func (a PoolingAlg) String() string {
	if a == PoolingAvg {
		return "avg"
	}
	return "max"
}

// PoolParams holds window geometry. Index 0 is height, index 1 width.
type PoolParams struct {
	Strides  [2]int
	Kernel   [2]int
	PadFront [2]int
	PadBack  [2]int
}

// Pooling reduces 2-D windows of a {N, C, H, W} source.
type Pooling struct {
	alg      PoolingAlg
	src, dst Desc
	p        PoolParams
	par      parallel.Config
}

// NewPooling builds a pooling primitive.
func NewPooling(alg PoolingAlg, src, dst Desc, p PoolParams, eng *Engine) (*Pooling, error) {
	if src.IsAny() || dst.IsAny() || src.IsZero() || dst.IsZero() {
		return nil, errors.Wrapf(ErrInvalidDesc, "pooling needs concrete formats")
	}
	if src.Rank() != 4 || dst.Rank() != 4 {
		return nil, errors.Wrapf(ErrInvalidDesc, "pooling needs 4-D src and dst, got %v and %v", src.dims, dst.dims)
	}
	if src.dims[0] != dst.dims[0] || src.dims[1] != dst.dims[1] || src.dtype != dst.dtype {
		return nil, errors.Wrapf(ErrInvalidDesc, "pooling %s -> %s", src, dst)
	}
	if !src.dtype.IsFloat() {
		return nil, errors.Wrapf(ErrInvalidDesc, "pooling on %s", src.dtype)
	}
	for i := 0; i < 2; i++ {
		if p.Strides[i] < 1 || p.Kernel[i] < 1 || p.PadFront[i] < 0 || p.PadBack[i] < 0 {
			return nil, errors.Wrapf(ErrInvalidDesc, "pooling window %+v", p)
		}
		want := (src.dims[2+i]+p.PadFront[i]+p.PadBack[i]-p.Kernel[i])/p.Strides[i] + 1
		if want != dst.dims[2+i] {
			return nil, errors.Wrapf(ErrInvalidDesc, "pooling dst dim %d is %d, geometry gives %d", 2+i, dst.dims[2+i], want)
		}
	}
	return &Pooling{alg: alg, src: src, dst: dst, p: p, par: eng.Parallel()}, nil
}

// Kind implements Primitive.
func (pl *Pooling) Kind() Kind { return KindPooling }

// Execute implements Primitive.
func (pl *Pooling) Execute(args Args) error {
	src, err := args.argData(ArgSrc, pl.src)
	if err != nil {
		return err
	}
	dst, err := args.argData(ArgDst, pl.dst)
	if err != nil {
		return err
	}
	x, err := loadFloat32(pl.src, src)
	if err != nil {
		return err
	}
	out, flush := float32Output(pl.dst, dst)

	n, c, h, w := pl.src.dims[0], pl.src.dims[1], pl.src.dims[2], pl.src.dims[3]
	oh, ow := pl.dst.dims[2], pl.dst.dims[3]
	p := pl.p

	parallel.ForBatch(n, c, func(b, ch int) {
		in := x[(b*c+ch)*h*w:]
		res := out[(b*c+ch)*oh*ow:]
		for outH := 0; outH < oh; outH++ {
			h0 := outH*p.Strides[0] - p.PadFront[0]
			for outW := 0; outW < ow; outW++ {
				w0 := outW*p.Strides[1] - p.PadFront[1]
				acc := float32(math.Inf(-1))
				if pl.alg == PoolingAvg {
					acc = 0
				}
				count := 0
				for kh := max(h0, 0); kh < min(h0+p.Kernel[0], h); kh++ {
					for kw := max(w0, 0); kw < min(w0+p.Kernel[1], w); kw++ {
						v := in[kh*w+kw]
						if pl.alg == PoolingAvg {
							acc += v
						} else if v > acc {
							acc = v
						}
						count++
					}
				}
				switch {
				case count == 0:
					acc = 0
				case pl.alg == PoolingAvg:
					acc /= float32(count)
				}
				res[outH*ow+outW] = acc
			}
		}
	}, pl.par)
	return flush()
}
