package dnn

import (
	"math"
	"slices"

	"github.com/born-ml/lower/internal/parallel"
	"github.com/pkg/errors"
)

// NormFlags select batch normalization inputs.
type NormFlags int

// Normalization flags.
const (
	// UseGlobalStats reads mean and variance from ArgMean and ArgVariance.
	UseGlobalStats NormFlags = 1 << iota
	// UseScaleShift reads a {2, C} scale-then-shift buffer from ArgScaleShift.
	UseScaleShift
)

// BatchNorm normalizes a {N, C, ...} source per channel with precomputed
// statistics.
type BatchNorm struct {
	src, dst   Desc
	stats      Desc
	scaleShift Desc
	epsilon    float32
	flags      NormFlags
	par        parallel.Config
}

// NewBatchNorm builds an inference batch normalization primitive. Statistics
// are read through stats, a {C} descriptor; the scale/shift buffer through a
// dense {2, C} descriptor of the same element type.
func NewBatchNorm(src, dst, stats Desc, epsilon float32, flags NormFlags, eng *Engine) (*BatchNorm, error) {
	if src.IsAny() || dst.IsAny() || src.IsZero() || dst.IsZero() {
		return nil, errors.Wrapf(ErrInvalidDesc, "batch normalization needs concrete formats")
	}
	if flags&UseGlobalStats == 0 {
		return nil, errors.Wrapf(ErrInvalidDesc, "batch normalization without global stats is not available for inference")
	}
	if src.Rank() < 2 || !slices.Equal(src.dims, dst.dims) {
		return nil, errors.Wrapf(ErrInvalidDesc, "batch normalization %s -> %s", src, dst)
	}
	if !src.dtype.IsFloat() || !dst.dtype.IsFloat() || !stats.dtype.IsFloat() {
		return nil, errors.Wrapf(ErrInvalidDesc, "batch normalization on %s", src.dtype)
	}
	c := src.dims[1]
	if stats.IsAny() || stats.Rank() != 1 || stats.dims[0] != c {
		return nil, errors.Wrapf(ErrInvalidDesc, "batch normalization stats %s for %d channels", stats, c)
	}
	ss, err := NewDesc([]int{2, c}, stats.dtype, FormatNC)
	if err != nil {
		return nil, err
	}
	return &BatchNorm{src: src, dst: dst, stats: stats, scaleShift: ss, epsilon: epsilon, flags: flags, par: eng.Parallel()}, nil
}

// ScaleShiftDesc returns the descriptor of the combined scale/shift buffer.
func (bn *BatchNorm) ScaleShiftDesc() Desc { return bn.scaleShift }

// Kind implements Primitive.
func (bn *BatchNorm) Kind() Kind { return KindBatchNorm }

// Execute implements Primitive.
func (bn *BatchNorm) Execute(args Args) error {
	src, err := args.argData(ArgSrc, bn.src)
	if err != nil {
		return err
	}
	dst, err := args.argData(ArgDst, bn.dst)
	if err != nil {
		return err
	}
	meanData, err := args.argData(ArgMean, bn.stats)
	if err != nil {
		return err
	}
	varData, err := args.argData(ArgVariance, bn.stats)
	if err != nil {
		return err
	}
	mean, err := loadFloat32(bn.stats, meanData)
	if err != nil {
		return err
	}
	variance, err := loadFloat32(bn.stats, varData)
	if err != nil {
		return err
	}

	c := bn.src.dims[1]
	scale := make([]float32, c)
	shift := make([]float32, c)
	for i := range scale {
		scale[i] = 1
	}
	if bn.flags&UseScaleShift != 0 {
		ssData, err := args.argData(ArgScaleShift, bn.scaleShift)
		if err != nil {
			return err
		}
		ss, err := loadFloat32(bn.scaleShift, ssData)
		if err != nil {
			return err
		}
		copy(scale, ss[:c])
		copy(shift, ss[c:])
	}

	x, err := loadFloat32(bn.src, src)
	if err != nil {
		return err
	}
	out, flush := float32Output(bn.dst, dst)

	n := bn.src.dims[0]
	spatial := 1
	for _, d := range bn.src.dims[2:] {
		spatial *= d
	}
	parallel.ForBatch(n, c, func(b, ch int) {
		inv := float32(1 / math.Sqrt(float64(variance[ch]+bn.epsilon)))
		a := scale[ch] * inv
		k := shift[ch] - mean[ch]*a
		base := (b*c + ch) * spatial
		for i := base; i < base+spatial; i++ {
			out[i] = x[i]*a + k
		}
	}, bn.par)
	return flush()
}
