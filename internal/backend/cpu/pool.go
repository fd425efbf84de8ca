package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/elannet/internal/parallel"
	"github.com/born-ml/elannet/internal/tensor"
)

// MaxPool2D performs 2D max pooling (floor mode, no padding).
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
// Where:
//
//	out_height = (height - kernelSize) / stride + 1
//	out_width = (width - kernelSize) / stride + 1
//
// Example (2x2 pool, stride=2):
//
//	Input: [[1,2,3,4],    Output: [[6,8],
//	        [5,6,7,8],             [14,16]]
//	        [9,10,11,12],
//	        [13,14,15,16]]
func (cpu *CPUBackend) MaxPool2D(input *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("maxpool2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	requireFloat32("maxpool2d", input)

	N, C, H, W := inputShape[0], inputShape[1], inputShape[2], inputShape[3]

	if kernelSize <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid stride %d", stride))
	}
	if kernelSize > H || kernelSize > W {
		panic(fmt.Sprintf("maxpool2d: kernel size %d too large for input %dx%d", kernelSize, H, W))
	}

	HOut := (H-kernelSize)/stride + 1
	WOut := (W-kernelSize)/stride + 1

	output := tensor.MustRaw(tensor.Shape{N, C, HOut, WOut}, tensor.Float32, cpu.device)
	inputData := input.AsFloat32()
	outputData := output.AsFloat32()
	negInf := float32(math.Inf(-1))

	cpu.forPlanes(N, C, func(n, c int) {
		plane := n*C + c
		channelData := inputData[plane*H*W : (plane+1)*H*W]
		dst := outputData[plane*HOut*WOut : (plane+1)*HOut*WOut]

		for outH := 0; outH < HOut; outH++ {
			hStart := outH * stride
			for outW := 0; outW < WOut; outW++ {
				wStart := outW * stride

				maxVal := negInf
				for kh := 0; kh < kernelSize; kh++ {
					rowData := channelData[(hStart+kh)*W : (hStart+kh+1)*W]
					for kw := 0; kw < kernelSize; kw++ {
						if val := rowData[wStart+kw]; val > maxVal {
							maxVal = val
						}
					}
				}
				dst[outH*WOut+outW] = maxVal
			}
		}
	})

	return output
}

// AdaptiveAvgPool2D averages each channel into an outH×outW grid.
//
// Bin i along an axis of extent L covers [floor(i*L/out), ceil((i+1)*L/out)),
// matching torch.nn.AdaptiveAvgPool2d. With outH = outW = 1 this is global
// average pooling.
func (cpu *CPUBackend) AdaptiveAvgPool2D(input *tensor.RawTensor, outH, outW int) *tensor.RawTensor {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("adaptive_avgpool2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	if outH <= 0 || outW <= 0 {
		panic(fmt.Sprintf("adaptive_avgpool2d: invalid output size %dx%d", outH, outW))
	}
	requireFloat32("adaptive_avgpool2d", input)

	N, C, H, W := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	output := tensor.MustRaw(tensor.Shape{N, C, outH, outW}, tensor.Float32, cpu.device)
	inputData := input.AsFloat32()
	outputData := output.AsFloat32()

	cpu.forPlanes(N, C, func(n, c int) {
		plane := n*C + c
		src := inputData[plane*H*W : (plane+1)*H*W]
		dst := outputData[plane*outH*outW : (plane+1)*outH*outW]

		for oh := 0; oh < outH; oh++ {
			h0, h1 := adaptiveRange(oh, H, outH)
			for ow := 0; ow < outW; ow++ {
				w0, w1 := adaptiveRange(ow, W, outW)

				var sum float64
				for h := h0; h < h1; h++ {
					for w := w0; w < w1; w++ {
						sum += float64(src[h*W+w])
					}
				}
				dst[oh*outW+ow] = float32(sum / float64((h1-h0)*(w1-w0)))
			}
		}
	})

	return output
}

// adaptiveRange returns the [start, end) input range of output bin i.
func adaptiveRange(i, in, out int) (int, int) {
	start := (i * in) / out
	end := ((i+1)*in + out - 1) / out
	return start, end
}

// forPlanes runs f over every (batch, channel) plane using the backend's
// parallel configuration.
func (cpu *CPUBackend) forPlanes(n, c int, f func(n, c int)) {
	parallel.ForBatch(n, c, f, cpu.parallel)
}
