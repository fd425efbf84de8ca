package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/elannet/internal/tensor"
)

// BatchNorm2D applies inference-mode batch normalization.
//
//	y = (x - mean) / sqrt(var + eps) * weight + bias
//
// Input shape: [N, C, H, W]; mean, variance, weight and bias are [C].
// The per-channel affine is folded into one scale and shift before the
// sweep over the plane.
func (cpu *CPUBackend) BatchNorm2D(input, mean, variance, weight, bias *tensor.RawTensor, eps float64) *tensor.RawTensor {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("batchnorm2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	requireFloat32("batchnorm2d", input, mean, variance, weight, bias)

	N, C, H, W := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	for name, t := range map[string]*tensor.RawTensor{
		"running_mean": mean, "running_var": variance, "weight": weight, "bias": bias,
	} {
		if !t.Shape().Equal(tensor.Shape{C}) {
			panic(fmt.Sprintf("batchnorm2d: %s shape %v != [%d]", name, t.Shape(), C))
		}
	}

	meanData, varData := mean.AsFloat32(), variance.AsFloat32()
	weightData, biasData := weight.AsFloat32(), bias.AsFloat32()

	scale := make([]float32, C)
	shift := make([]float32, C)
	for c := 0; c < C; c++ {
		s := float64(weightData[c]) / math.Sqrt(float64(varData[c])+eps)
		scale[c] = float32(s)
		shift[c] = float32(float64(biasData[c]) - float64(meanData[c])*s)
	}

	output := tensor.MustRaw(tensor.Shape{N, C, H, W}, tensor.Float32, cpu.device)
	inputData := input.AsFloat32()
	outputData := output.AsFloat32()
	plane := H * W

	cpu.forPlanes(N, C, func(n, c int) {
		off := (n*C + c) * plane
		src := inputData[off : off+plane]
		dst := outputData[off : off+plane]
		sc, sh := scale[c], shift[c]
		for i, v := range src {
			dst[i] = v*sc + sh
		}
	})

	return output
}
