package nn

import (
	"fmt"

	"github.com/born-ml/elannet/internal/tensor"
)

// MaxPool2D takes the maximum over non-overlapping (or strided) windows.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_h, out_w]
//
//	out_h = (height - kernel_size) / stride + 1
//
// No padding; trailing rows and columns that do not fill a window are
// dropped (floor mode).
type MaxPool2D[B tensor.Backend] struct {
	kernelSize int
	stride     int
}

// NewMaxPool2D creates a new max pooling layer.
func NewMaxPool2D[B tensor.Backend](kernelSize, stride int) *MaxPool2D[B] {
	if kernelSize <= 0 || stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel_size=%d, stride=%d", kernelSize, stride))
	}
	return &MaxPool2D[B]{kernelSize: kernelSize, stride: stride}
}

// Forward applies max pooling.
func (m *MaxPool2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	return tensor.New[float32, B](backend.MaxPool2D(input.Raw(), m.kernelSize, m.stride), backend)
}

// Parameters returns nil (MaxPool2D has no parameters).
func (m *MaxPool2D[B]) Parameters() []*Parameter[B] {
	return nil
}

// String returns a string representation of the layer.
func (m *MaxPool2D[B]) String() string {
	return fmt.Sprintf("MaxPool2d(kernel_size=%d, stride=%d)", m.kernelSize, m.stride)
}

// AdaptiveAvgPool2D averages each channel into a fixed output grid,
// whatever the input resolution. (1, 1) is global average pooling.
type AdaptiveAvgPool2D[B tensor.Backend] struct {
	outH, outW int
}

// NewAdaptiveAvgPool2D creates a new adaptive average pooling layer.
func NewAdaptiveAvgPool2D[B tensor.Backend](outH, outW int) *AdaptiveAvgPool2D[B] {
	if outH <= 0 || outW <= 0 {
		panic(fmt.Sprintf("adaptive_avg_pool2d: invalid output size (%d, %d)", outH, outW))
	}
	return &AdaptiveAvgPool2D[B]{outH: outH, outW: outW}
}

// Forward applies adaptive average pooling.
func (a *AdaptiveAvgPool2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	return tensor.New[float32, B](backend.AdaptiveAvgPool2D(input.Raw(), a.outH, a.outW), backend)
}

// Parameters returns nil (AdaptiveAvgPool2D has no parameters).
func (a *AdaptiveAvgPool2D[B]) Parameters() []*Parameter[B] {
	return nil
}

// String returns a string representation of the layer.
func (a *AdaptiveAvgPool2D[B]) String() string {
	return fmt.Sprintf("AdaptiveAvgPool2d(output_size=(%d, %d))", a.outH, a.outW)
}

// Flatten collapses dimensions [startDim, rank) into one.
type Flatten[B tensor.Backend] struct {
	startDim int
}

// NewFlatten creates a new flatten layer.
func NewFlatten[B tensor.Backend](startDim int) *Flatten[B] {
	return &Flatten[B]{startDim: startDim}
}

// Forward flattens the input (zero-copy).
func (f *Flatten[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.Flatten(f.startDim)
}

// Parameters returns nil (Flatten has no parameters).
func (f *Flatten[B]) Parameters() []*Parameter[B] {
	return nil
}
