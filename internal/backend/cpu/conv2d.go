package cpu

import (
	"fmt"

	"github.com/born-ml/elannet/internal/parallel"
	"github.com/born-ml/elannet/internal/tensor"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// Conv2D performs grouped, dilated 2D convolution.
//
// Input shape:  [batch, in_channels, height, width]
// Kernel shape: [out_channels, in_channels/groups, kernel_h, kernel_w]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Where:
//
//	out_h = (height + 2*padding - dilation*(kernel_h-1) - 1) / stride + 1
//
// Algorithm (per batch item and group):
//  1. im2col: unfold input patches into [C_in/g * K_h * K_w, H_out * W_out]
//  2. GEMM: kernel_g [C_out/g, C_in/g*K_h*K_w] @ cols → output plane block
//
// 1x1 convolutions with unit stride and no padding skip the unfold: the
// input plane already is the column matrix. Depthwise convolutions
// (groups == in == out channels) use a direct per-channel loop.
//
// Reference: "High Performance Convolutional Neural Networks for Document Processing"
// (Chellapilla et al., 2006).
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, params tensor.ConvParams) *tensor.RawTensor {
	p := params.Normalize()
	inputShape := input.Shape()
	kernelShape := kernel.Shape()

	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %dD", len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [C_out,C_in/groups,K_h,K_w], got %dD", len(kernelShape)))
	}
	if p.Stride <= 0 || p.Dilation <= 0 || p.Groups <= 0 || p.Padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid params %+v", p))
	}
	requireFloat32("conv2d", input, kernel)

	g := conv2dGeometry{
		N:    inputShape[0],
		CIn:  inputShape[1],
		H:    inputShape[2],
		W:    inputShape[3],
		COut: kernelShape[0],
		KH:   kernelShape[2],
		KW:   kernelShape[3],
		p:    p,
	}

	if g.CIn%p.Groups != 0 || g.COut%p.Groups != 0 {
		panic(fmt.Sprintf("conv2d: groups %d must divide in_channels %d and out_channels %d",
			p.Groups, g.CIn, g.COut))
	}
	if kernelShape[1] != g.CIn/p.Groups {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d * groups %d",
			g.CIn, kernelShape[1], p.Groups))
	}

	g.HOut = p.OutputSize(g.H, g.KH)
	g.WOut = p.OutputSize(g.W, g.KW)
	if g.HOut <= 0 || g.WOut <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output dimensions: out_h=%d, out_w=%d (check stride/padding)", g.HOut, g.WOut))
	}

	output := tensor.MustRaw(tensor.Shape{g.N, g.COut, g.HOut, g.WOut}, tensor.Float32, cpu.device)

	if p.Groups == g.CIn && g.COut == g.CIn {
		depthwiseConv2D(output.AsFloat32(), input.AsFloat32(), kernel.AsFloat32(), g, cpu.parallel)
	} else {
		groupedConv2D(output.AsFloat32(), input.AsFloat32(), kernel.AsFloat32(), g, cpu.parallel)
	}
	return output
}

// conv2dGeometry carries the dimensions of one convolution call.
type conv2dGeometry struct {
	N, CIn, H, W int
	COut, KH, KW int
	HOut, WOut   int
	p            tensor.ConvParams
}

func (g conv2dGeometry) pointwise() bool {
	return g.KH == 1 && g.KW == 1 && g.p.Stride == 1 && g.p.Padding == 0
}

// groupedConv2D runs im2col + SGEMM for every (batch, group) pair.
func groupedConv2D(out, in, kernel []float32, g conv2dGeometry, cfg parallel.Config) {
	groups := g.p.Groups
	cinG := g.CIn / groups
	coutG := g.COut / groups
	colRows := cinG * g.KH * g.KW
	outPlane := g.HOut * g.WOut
	inPlane := g.H * g.W

	parallel.For(g.N*groups, func(task int) {
		n, grp := task/groups, task%groups

		inOff := (n*g.CIn + grp*cinG) * inPlane
		groupIn := in[inOff : inOff+cinG*inPlane]

		var cols []float32
		if g.pointwise() {
			cols = groupIn
		} else {
			cols = make([]float32, colRows*outPlane)
			im2col(cols, groupIn, cinG, g)
		}

		kOff := grp * coutG * colRows
		outOff := (n*g.COut + grp*coutG) * outPlane

		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
			blas32.General{Rows: coutG, Cols: colRows, Stride: colRows, Data: kernel[kOff : kOff+coutG*colRows]},
			blas32.General{Rows: colRows, Cols: outPlane, Stride: outPlane, Data: cols},
			0,
			blas32.General{Rows: coutG, Cols: outPlane, Stride: outPlane, Data: out[outOff : outOff+coutG*outPlane]},
		)
	}, cfg)
}

// im2col unfolds C input planes into a [C*K_h*K_w, H_out*W_out] matrix.
// Row (c, kh, kw) holds the input value each output position sees through
// that kernel tap; taps that fall into the padding read zero.
func im2col(cols, in []float32, channels int, g conv2dGeometry) {
	s, pad, d := g.p.Stride, g.p.Padding, g.p.Dilation
	outPlane := g.HOut * g.WOut

	row := 0
	for c := 0; c < channels; c++ {
		plane := in[c*g.H*g.W : (c+1)*g.H*g.W]
		for kh := 0; kh < g.KH; kh++ {
			for kw := 0; kw < g.KW; kw++ {
				dst := cols[row*outPlane : (row+1)*outPlane]
				idx := 0
				for oh := 0; oh < g.HOut; oh++ {
					h := oh*s - pad + kh*d
					if h < 0 || h >= g.H {
						for ow := 0; ow < g.WOut; ow++ {
							dst[idx] = 0
							idx++
						}
						continue
					}
					src := plane[h*g.W : (h+1)*g.W]
					for ow := 0; ow < g.WOut; ow++ {
						w := ow*s - pad + kw*d
						if w >= 0 && w < g.W {
							dst[idx] = src[w]
						} else {
							dst[idx] = 0
						}
						idx++
					}
				}
				row++
			}
		}
	}
}

// depthwiseConv2D convolves every channel with its own single-channel kernel.
func depthwiseConv2D(out, in, kernel []float32, g conv2dGeometry, cfg parallel.Config) {
	s, pad, d := g.p.Stride, g.p.Padding, g.p.Dilation
	inPlane := g.H * g.W
	outPlane := g.HOut * g.WOut
	kSize := g.KH * g.KW

	parallel.ForBatch(g.N, g.CIn, func(n, c int) {
		src := in[(n*g.CIn+c)*inPlane : (n*g.CIn+c+1)*inPlane]
		dst := out[(n*g.COut+c)*outPlane : (n*g.COut+c+1)*outPlane]
		k := kernel[c*kSize : (c+1)*kSize]

		for oh := 0; oh < g.HOut; oh++ {
			for ow := 0; ow < g.WOut; ow++ {
				var sum float32
				for kh := 0; kh < g.KH; kh++ {
					h := oh*s - pad + kh*d
					if h < 0 || h >= g.H {
						continue
					}
					row := src[h*g.W : (h+1)*g.W]
					for kw := 0; kw < g.KW; kw++ {
						w := ow*s - pad + kw*d
						if w < 0 || w >= g.W {
							continue
						}
						sum += k[kh*g.KW+kw] * row[w]
					}
				}
				dst[oh*g.WOut+ow] = sum
			}
		}
	}, cfg)
}
