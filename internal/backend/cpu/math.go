package cpu

import (
	"fmt"

	"github.com/born-ml/elannet/internal/tensor"
)

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("add", a, b)

	outShape, err := broadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("add: %v", err))
	}

	result := tensor.MustRaw(outShape, tensor.Float32, cpu.device)
	out := result.AsFloat32()
	aData, bData := a.AsFloat32(), b.AsFloat32()

	if a.Shape().Equal(b.Shape()) {
		for i := range out {
			out[i] = aData[i] + bData[i]
		}
		return result
	}

	aStrides := broadcastStrides(a.Shape(), outShape)
	bStrides := broadcastStrides(b.Shape(), outShape)
	index := make([]int, len(outShape))
	aOff, bOff := 0, 0

	for i := range out {
		out[i] = aData[aOff] + bData[bOff]

		// Advance the multi-index like an odometer, keeping both offsets in step.
		for d := len(outShape) - 1; d >= 0; d-- {
			index[d]++
			aOff += aStrides[d]
			bOff += bStrides[d]
			if index[d] < outShape[d] {
				break
			}
			aOff -= aStrides[d] * outShape[d]
			bOff -= bStrides[d] * outShape[d]
			index[d] = 0
		}
	}

	return result
}

// broadcastShapes right-aligns a and b and resolves each dimension pair.
// Dimensions are compatible when equal or when one of them is 1.
func broadcastShapes(a, b tensor.Shape) (tensor.Shape, error) {
	rank := max(len(a), len(b))
	out := make(tensor.Shape, rank)

	for i := 0; i < rank; i++ {
		aDim, bDim := 1, 1
		if j := len(a) - rank + i; j >= 0 {
			aDim = a[j]
		}
		if j := len(b) - rank + i; j >= 0 {
			bDim = b[j]
		}

		switch {
		case aDim == bDim, bDim == 1:
			out[i] = aDim
		case aDim == 1:
			out[i] = bDim
		default:
			return nil, fmt.Errorf("shapes not compatible for broadcasting: %v vs %v (dimension %d: %d vs %d)",
				a, b, i, aDim, bDim)
		}
	}
	return out, nil
}

// broadcastStrides returns strides of shape expanded to out: broadcast
// dimensions get stride 0.
func broadcastStrides(shape, out tensor.Shape) []int {
	strides := make([]int, len(out))
	own := shape.ComputeStrides()
	offset := len(out) - len(shape)
	for i := range shape {
		if shape[i] != 1 {
			strides[offset+i] = own[i]
		}
	}
	return strides
}
