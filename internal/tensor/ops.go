package tensor

// Add performs element-wise addition with broadcasting of size-1 dimensions.
//
// Example:
//
//	bias := b.Reshape(1, C, 1, 1)
//	out := x.Add(bias) // [N, C, H, W]
func (t *Tensor[T, B]) Add(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Add(t.raw, other.raw), t.backend)
}

// MatMul performs 2D matrix multiplication: (M, K) @ (K, N) → (M, N).
func (t *Tensor[T, B]) MatMul(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.MatMul(t.raw, other.raw), t.backend)
}

// Reshape returns a tensor with the same data but different shape.
// The new shape must have the same number of elements.
func (t *Tensor[T, B]) Reshape(newShape ...int) *Tensor[T, B] {
	return New[T, B](t.backend.Reshape(t.raw, Shape(newShape)), t.backend)
}

// Transpose permutes the tensor's dimensions.
// With no axes the dimensions are reversed.
func (t *Tensor[T, B]) Transpose(axes ...int) *Tensor[T, B] {
	return New[T, B](t.backend.Transpose(t.raw, axes...), t.backend)
}

// Flatten collapses dimensions [startDim, rank) into one, like torch.flatten.
//
// Example:
//
//	x := tensor.Zeros[float32](Shape{8, 512, 1, 1}, backend)
//	y := x.Flatten(1) // [8, 512]
func (t *Tensor[T, B]) Flatten(startDim int) *Tensor[T, B] {
	shape := t.Shape()
	startDim = shape.NormalizeDim(startDim)

	newShape := make([]int, 0, startDim+1)
	newShape = append(newShape, shape[:startDim]...)
	newShape = append(newShape, Shape(shape[startDim:]).NumElements())
	return t.Reshape(newShape...)
}

// Cat concatenates tensors along the specified dimension.
//
// All tensors must have the same shape except along the concatenation
// dimension. Supports negative dim indexing (-1 = last dimension).
//
// Example:
//
//	out := tensor.Cat([]*Tensor[float32, B]{x1, x2, x3, x4}, 1) // channel concat
func Cat[T DType, B Backend](tensors []*Tensor[T, B], dim int) *Tensor[T, B] {
	if len(tensors) == 0 {
		panic("cat: at least one tensor required")
	}
	if len(tensors) == 1 {
		return tensors[0].Clone()
	}

	rawTensors := make([]*RawTensor, len(tensors))
	backend := tensors[0].backend
	for i, t := range tensors {
		rawTensors[i] = t.raw
	}
	return New[T, B](backend.Cat(rawTensors, dim), backend)
}
