package cpu

import (
	"math"

	"github.com/born-ml/elannet/internal/parallel"
	"github.com/born-ml/elannet/internal/tensor"
)

// elementwiseChunk is the number of elements one goroutine handles in
// element-wise kernels.
const elementwiseChunk = 1 << 14

// SiLU applies x * sigmoid(x) element-wise.
func (cpu *CPUBackend) SiLU(x *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("silu", x)
	return cpu.mapFloat32(x, func(v float32) float32 {
		return v / (1 + float32(math.Exp(float64(-v))))
	})
}

// LeakyReLU applies x for x >= 0 and slope*x otherwise.
func (cpu *CPUBackend) LeakyReLU(x *tensor.RawTensor, slope float64) *tensor.RawTensor {
	requireFloat32("leaky_relu", x)
	s := float32(slope)
	return cpu.mapFloat32(x, func(v float32) float32 {
		if v >= 0 {
			return v
		}
		return s * v
	})
}

// mapFloat32 returns a new tensor holding f applied to every element of x.
func (cpu *CPUBackend) mapFloat32(x *tensor.RawTensor, f func(float32) float32) *tensor.RawTensor {
	result := tensor.MustRaw(x.Shape(), tensor.Float32, cpu.device)
	src := x.AsFloat32()
	dst := result.AsFloat32()

	chunks := (len(src) + elementwiseChunk - 1) / elementwiseChunk
	parallel.For(chunks, func(i int) {
		start := i * elementwiseChunk
		end := min(start+elementwiseChunk, len(src))
		for j := start; j < end; j++ {
			dst[j] = f(src[j])
		}
	}, cpu.parallel)

	return result
}
