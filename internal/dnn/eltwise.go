package dnn

import (
	"math"
	"slices"

	"github.com/pkg/errors"
)

// EltwiseAlg selects a unary elementwise function.
type EltwiseAlg int

// Eltwise algorithms.
const (
	// EltwiseLogistic computes 1 / (1 + exp(-x)).
	EltwiseLogistic EltwiseAlg = iota
	// EltwiseRelu computes x for x > 0 and alpha*x otherwise.
	EltwiseRelu
	// EltwiseClip clamps x to [alpha, beta].
	EltwiseClip
	// EltwiseLinear computes alpha*x + beta.
	EltwiseLinear
)

var eltwiseNames = [...]string{
	EltwiseLogistic: "logistic",
	EltwiseRelu:     "relu",
	EltwiseClip:     "clip",
	EltwiseLinear:   "linear",
}

func (a EltwiseAlg) String() string {
	if a < 0 || int(a) >= len(eltwiseNames) {
		return "unknown"
	}
	return eltwiseNames[a]
}

// Eltwise applies a unary function elementwise.
type Eltwise struct {
	alg         EltwiseAlg
	alpha, beta float32
	src, dst    Desc
}

// NewEltwise builds an eltwise primitive. Only floating-point types are
// supported.
func NewEltwise(alg EltwiseAlg, src, dst Desc, alpha, beta float32) (*Eltwise, error) {
	if src.IsAny() || dst.IsAny() || src.IsZero() || dst.IsZero() {
		return nil, errors.Wrapf(ErrInvalidDesc, "eltwise %s needs concrete formats", alg)
	}
	if !slices.Equal(src.dims, dst.dims) {
		return nil, errors.Wrapf(ErrInvalidDesc, "eltwise %s dims %v -> %v", alg, src.dims, dst.dims)
	}
	if !src.dtype.IsFloat() || !dst.dtype.IsFloat() {
		return nil, errors.Wrapf(ErrInvalidDesc, "eltwise %s on %s", alg, src.dtype)
	}
	if alg < 0 || int(alg) >= len(eltwiseNames) {
		return nil, errors.Wrapf(ErrInvalidDesc, "eltwise algorithm %d", int(alg))
	}
	return &Eltwise{alg: alg, alpha: alpha, beta: beta, src: src, dst: dst}, nil
}

// Kind implements Primitive.
func (e *Eltwise) Kind() Kind { return KindEltwise }

// Execute implements Primitive.
func (e *Eltwise) Execute(args Args) error {
	src, err := args.argData(ArgSrc, e.src)
	if err != nil {
		return err
	}
	dst, err := args.argData(ArgDst, e.dst)
	if err != nil {
		return err
	}
	x, err := loadFloat32(e.src, src)
	if err != nil {
		return err
	}
	out, flush := float32Output(e.dst, dst)
	f := e.fn()
	for i, v := range x {
		out[i] = f(v)
	}
	return flush()
}

func (e *Eltwise) fn() func(float32) float32 {
	alpha, beta := e.alpha, e.beta
	switch e.alg {
	case EltwiseLogistic:
		return func(x float32) float32 {
			return float32(1.0 / (1.0 + math.Exp(-float64(x))))
		}
	case EltwiseRelu:
		return func(x float32) float32 {
			if x > 0 {
				return x
			}
			return alpha * x
		}
	case EltwiseClip:
		return func(x float32) float32 {
			return min(max(x, alpha), beta)
		}
	default:
		return func(x float32) float32 {
			return alpha*x + beta
		}
	}
}
