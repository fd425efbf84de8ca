package cpu

import (
	"fmt"

	"github.com/born-ml/elannet/internal/tensor"
)

// Transpose permutes the dimensions of t. With no axes the dimensions are
// reversed (the usual 2D transpose).
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}
	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: axes length %d != ndim %d", len(axes), ndim))
	}

	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim {
			panic(fmt.Sprintf("transpose: invalid axis %d for %dD tensor", ax, ndim))
		}
		if seen[ax] {
			panic(fmt.Sprintf("transpose: duplicate axis %d", ax))
		}
		seen[ax] = true
	}

	newShape := make(tensor.Shape, ndim)
	srcStrides := make([]int, ndim)
	oldStrides := t.Strides()
	for i, ax := range axes {
		newShape[i] = shape[ax]
		srcStrides[i] = oldStrides[ax]
	}

	result := tensor.MustRaw(newShape, t.DType(), cpu.device)
	elem := t.DType().Size()
	src, dst := t.Data(), result.Data()

	index := make([]int, ndim)
	srcOff := 0
	for i := 0; i < newShape.NumElements(); i++ {
		copy(dst[i*elem:(i+1)*elem], src[srcOff*elem:(srcOff+1)*elem])

		for d := ndim - 1; d >= 0; d-- {
			index[d]++
			srcOff += srcStrides[d]
			if index[d] < newShape[d] {
				break
			}
			srcOff -= srcStrides[d] * newShape[d]
			index[d] = 0
		}
	}

	return result
}

// Cat concatenates tensors along dim.
//
// All tensors must share dtype, rank and every dimension except dim.
// The copy works on raw bytes, so any dtype is supported.
func (cpu *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cat: at least one tensor required")
	}

	shape := tensors[0].Shape()
	ndim := len(shape)
	dtype := tensors[0].DType()
	if dim < 0 {
		dim += ndim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("cat: dimension %d out of range for %dD tensor", dim, ndim))
	}

	totalDim := 0
	for i, t := range tensors {
		tShape := t.Shape()
		if len(tShape) != ndim {
			panic(fmt.Sprintf("cat: tensor %d has %d dimensions, expected %d", i, len(tShape), ndim))
		}
		if t.DType() != dtype {
			panic(fmt.Sprintf("cat: tensor %d has dtype %s, expected %s", i, t.DType(), dtype))
		}
		for d := 0; d < ndim; d++ {
			if d != dim && tShape[d] != shape[d] {
				panic(fmt.Sprintf("cat: tensor %d has shape %v, incompatible with %v at dimension %d",
					i, tShape, shape, d))
			}
		}
		totalDim += tShape[dim]
	}

	outShape := shape.Clone()
	outShape[dim] = totalDim
	result := tensor.MustRaw(outShape, dtype, cpu.device)

	outer := tensor.Shape(shape[:dim]).NumElements()
	inner := tensor.Shape(shape[dim+1:]).NumElements() * dtype.Size()
	dst := result.Data()
	rowBytes := totalDim * inner

	offset := 0
	for _, t := range tensors {
		block := t.Shape()[dim] * inner
		src := t.Data()
		for o := 0; o < outer; o++ {
			copy(dst[o*rowBytes+offset:o*rowBytes+offset+block], src[o*block:(o+1)*block])
		}
		offset += block
	}

	return result
}
