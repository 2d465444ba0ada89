package dnn

import (
	"github.com/born-ml/lower/internal/parallel"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// ConvParams holds the spatial parameters of a 2-D convolution. Index 0 is
// height, index 1 width.
type ConvParams struct {
	Strides   [2]int
	Dilations [2]int // 1 means no dilation
	PadFront  [2]int
	PadBack   [2]int
}

// convShape is the resolved geometry shared by convolution and
// deconvolution.
type convShape struct {
	n, c, h, w     int // src
	o, oh, ow      int // dst channels and spatial
	groups, og, ig int
	kh, kw         int
}

// ConvolutionDesc is a convolution primitive descriptor: it validates the
// geometry and resolves every FormatAny operand to the preferred layout.
type ConvolutionDesc struct {
	src, weights, dst Desc
	params            ConvParams
	shape             convShape
	deconv            bool
}

// NewConvolutionDesc builds a forward convolution descriptor.
//
// Logical dims: src {N, C, H, W}; weights {O, I, KH, KW} or grouped
// {G, O/G, I/G, KH, KW}; dst {N, O, OH, OW}.
func NewConvolutionDesc(src, weights, dst Desc, p ConvParams) (*ConvolutionDesc, error) {
	return newConvDesc(src, weights, dst, p, false)
}

// NewDeconvolutionDesc builds a forward deconvolution (transposed
// convolution) descriptor with the same logical dims as NewConvolutionDesc.
func NewDeconvolutionDesc(src, weights, dst Desc, p ConvParams) (*ConvolutionDesc, error) {
	return newConvDesc(src, weights, dst, p, true)
}

func newConvDesc(src, weights, dst Desc, p ConvParams, deconv bool) (*ConvolutionDesc, error) {
	name := "convolution"
	if deconv {
		name = "deconvolution"
	}
	if src.Rank() != 4 || dst.Rank() != 4 {
		return nil, errors.Wrapf(ErrInvalidDesc, "%s needs 4-D src and dst, got %v and %v", name, src.dims, dst.dims)
	}
	for i := 0; i < 2; i++ {
		if p.Strides[i] < 1 {
			return nil, errors.Wrapf(ErrInvalidDesc, "%s stride %v", name, p.Strides)
		}
		if p.Dilations[i] != 1 {
			return nil, errors.Wrapf(ErrInvalidDesc, "%s dilation %v", name, p.Dilations)
		}
		if p.PadFront[i] < 0 || p.PadBack[i] < 0 {
			return nil, errors.Wrapf(ErrInvalidDesc, "%s padding %v/%v", name, p.PadFront, p.PadBack)
		}
	}

	s := convShape{n: src.dims[0], c: src.dims[1], h: src.dims[2], w: src.dims[3], o: dst.dims[1], oh: dst.dims[2], ow: dst.dims[3]}
	wd := weights.dims
	switch weights.Rank() {
	case 4:
		s.groups, s.og, s.ig, s.kh, s.kw = 1, wd[0], wd[1], wd[2], wd[3]
	case 5:
		s.groups, s.og, s.ig, s.kh, s.kw = wd[0], wd[1], wd[2], wd[3], wd[4]
	default:
		return nil, errors.Wrapf(ErrInvalidDesc, "%s weights %v", name, wd)
	}
	if s.groups < 1 || dst.dims[0] != s.n || s.groups*s.ig != s.c || s.groups*s.og != s.o {
		return nil, errors.Wrapf(ErrInvalidDesc, "%s src %v weights %v dst %v", name, src.dims, wd, dst.dims)
	}

	var wantH, wantW int
	if deconv {
		wantH = (s.h-1)*p.Strides[0] - p.PadFront[0] - p.PadBack[0] + s.kh
		wantW = (s.w-1)*p.Strides[1] - p.PadFront[1] - p.PadBack[1] + s.kw
	} else {
		wantH = (s.h+p.PadFront[0]+p.PadBack[0]-s.kh)/p.Strides[0] + 1
		wantW = (s.w+p.PadFront[1]+p.PadBack[1]-s.kw)/p.Strides[1] + 1
	}
	if wantH != s.oh || wantW != s.ow {
		return nil, errors.Wrapf(ErrInvalidDesc, "%s dst spatial %dx%d, geometry gives %dx%d", name, s.oh, s.ow, wantH, wantW)
	}

	var err error
	cd := &ConvolutionDesc{params: p, shape: s, deconv: deconv}
	if cd.src, err = preferPlain(src); err != nil {
		return nil, err
	}
	if cd.weights, err = preferPlain(weights); err != nil {
		return nil, err
	}
	if cd.dst, err = preferDst(dst); err != nil {
		return nil, err
	}
	return cd, nil
}

func preferPlain(d Desc) (Desc, error) {
	if !d.IsAny() {
		return d, nil
	}
	return NewDesc(d.dims, d.dtype, PlainFormat(d.Rank()))
}

// preferDst picks the channel-blocked layout when channels fill whole blocks.
func preferDst(d Desc) (Desc, error) {
	if !d.IsAny() {
		return d, nil
	}
	if d.dims[1] > 0 && d.dims[1]%ChannelBlock == 0 {
		return NewDesc(d.dims, d.dtype, FormatNChw8c)
	}
	return NewDesc(d.dims, d.dtype, FormatNCHW)
}

// SrcDesc returns the source layout the primitive reads.
func (cd *ConvolutionDesc) SrcDesc() Desc { return cd.src }

// WeightsDesc returns the weights layout the primitive reads.
func (cd *ConvolutionDesc) WeightsDesc() Desc { return cd.weights }

// DstDesc returns the destination layout the primitive writes.
func (cd *ConvolutionDesc) DstDesc() Desc { return cd.dst }

// Convolution runs a direct 2-D convolution or deconvolution.
type Convolution struct {
	cd  *ConvolutionDesc
	par parallel.Config
}

// NewConvolution creates the primitive from its descriptor.
func NewConvolution(cd *ConvolutionDesc, eng *Engine) *Convolution {
	return &Convolution{cd: cd, par: eng.Parallel()}
}

// Kind implements Primitive.
func (c *Convolution) Kind() Kind {
	if c.cd.deconv {
		return KindDeconvolution
	}
	return KindConvolution
}

// Execute implements Primitive.
func (c *Convolution) Execute(args Args) error {
	cd := c.cd
	src, err := args.argData(ArgSrc, cd.src)
	if err != nil {
		return err
	}
	weights, err := args.argData(ArgWeights, cd.weights)
	if err != nil {
		return err
	}
	dst, err := args.argData(ArgDst, cd.dst)
	if err != nil {
		return err
	}

	x, err := loadFloat32(cd.src, src)
	if err != nil {
		return err
	}
	w, err := loadFloat32(cd.weights, weights)
	if err != nil {
		return err
	}
	out, flush := float32Output(cd.dst, dst)
	clear(out)

	s := cd.shape
	if s.n*s.o*s.oh*s.ow == 0 {
		return flush()
	}
	if cd.deconv {
		deconv2dFloat32(out, x, w, s, cd.params, c.par)
	} else {
		conv2dFloat32(out, x, w, s, cd.params, c.par)
	}
	return flush()
}

// conv2dFloat32 computes a grouped convolution with im2col and SGEMM.
//
// For each (batch, group):
//  1. Im2col: [IG, H, W] patches -> col [OH*OW, IG*KH*KW]
//  2. Weights of the group are already [OG, IG*KH*KW] row-major
//  3. Gemm: out[OG, OH*OW] = weights @ colᵀ
func conv2dFloat32(out, x, w []float32, s convShape, p ConvParams, par parallel.Config) {
	colWidth := s.ig * s.kh * s.kw
	colHeight := s.oh * s.ow
	if colWidth == 0 {
		return
	}

	parallel.ForBatch(s.n, s.groups, func(n, g int) {
		col := make([]float32, colHeight*colWidth)
		im2colFloat32(col, x, s, n, g, p)

		a := blas32.General{Rows: s.og, Cols: colWidth, Stride: colWidth, Data: w[g*s.og*colWidth:]}
		b := blas32.General{Rows: colHeight, Cols: colWidth, Stride: colWidth, Data: col}
		c := blas32.General{Rows: s.og, Cols: colHeight, Stride: colHeight, Data: out[(n*s.o+g*s.og)*colHeight:]}
		blas32.Gemm(blas.NoTrans, blas.Trans, 1, a, b, 0, c)
	}, par)
}

// im2colFloat32 fills col with the input patches of one batch item and group.
// Each row corresponds to one output position, each column to one kernel tap;
// taps that fall into padding are zero.
func im2colFloat32(col, x []float32, s convShape, n, g int, p ConvParams) {
	colWidth := s.ig * s.kh * s.kw
	plane := s.h * s.w
	base := (n*s.c + g*s.ig) * plane

	row := 0
	for outH := 0; outH < s.oh; outH++ {
		for outW := 0; outW < s.ow; outW++ {
			hStart := outH*p.Strides[0] - p.PadFront[0]
			wStart := outW*p.Strides[1] - p.PadFront[1]
			idx := row * colWidth

			for ci := 0; ci < s.ig; ci++ {
				for kh := 0; kh < s.kh; kh++ {
					h := hStart + kh
					for kw := 0; kw < s.kw; kw++ {
						wPos := wStart + kw
						if h >= 0 && h < s.h && wPos >= 0 && wPos < s.w {
							col[idx] = x[base+ci*plane+h*s.w+wPos]
						} else {
							col[idx] = 0
						}
						idx++
					}
				}
			}
			row++
		}
	}
}

// deconv2dFloat32 computes a grouped transposed convolution with SGEMM and
// col2im.
//
// For each (batch, group):
//  1. Gemm: col[OG*KH*KW, H*W] = weightsᵀ @ src, with the group's weights
//     viewed as [IG, OG*KH*KW] after a per-group transpose of O and I
//  2. Col2im: scatter-add every column entry into the output position it
//     contributes to
func deconv2dFloat32(out, x, w []float32, s convShape, p ConvParams, par parallel.Config) {
	taps := s.kh * s.kw
	rows := s.og * taps
	plane := s.h * s.w
	if rows == 0 || s.ig == 0 || plane == 0 {
		return
	}

	// wt[g] is [IG, OG*KH*KW]: the group's {OG, IG, KH, KW} weights with the
	// first two axes swapped.
	wt := make([]float32, s.groups*s.ig*rows)
	for g := 0; g < s.groups; g++ {
		for o := 0; o < s.og; o++ {
			for i := 0; i < s.ig; i++ {
				srcOff := ((g*s.og+o)*s.ig + i) * taps
				dstOff := (g*s.ig+i)*rows + o*taps
				copy(wt[dstOff:dstOff+taps], w[srcOff:srcOff+taps])
			}
		}
	}

	parallel.ForBatch(s.n, s.groups, func(n, g int) {
		col := make([]float32, rows*plane)
		a := blas32.General{Rows: s.ig, Cols: rows, Stride: rows, Data: wt[g*s.ig*rows:]}
		b := blas32.General{Rows: s.ig, Cols: plane, Stride: plane, Data: x[(n*s.c+g*s.ig)*plane:]}
		c := blas32.General{Rows: rows, Cols: plane, Stride: plane, Data: col}
		blas32.Gemm(blas.Trans, blas.NoTrans, 1, a, b, 0, c)

		outPlane := s.oh * s.ow
		for o := 0; o < s.og; o++ {
			dst := out[(n*s.o+g*s.og+o)*outPlane:]
			for kh := 0; kh < s.kh; kh++ {
				for kw := 0; kw < s.kw; kw++ {
					r := col[((o*s.kh+kh)*s.kw+kw)*plane:]
					for ih := 0; ih < s.h; ih++ {
						oh := ih*p.Strides[0] - p.PadFront[0] + kh
						if oh < 0 || oh >= s.oh {
							continue
						}
						for iw := 0; iw < s.w; iw++ {
							ow := iw*p.Strides[1] - p.PadFront[1] + kw
							if ow < 0 || ow >= s.ow {
								continue
							}
							dst[oh*s.ow+ow] += r[ih*s.w+iw]
						}
					}
				}
			}
		}
	}, par)
}
