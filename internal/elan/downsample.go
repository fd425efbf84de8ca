package elan

import (
	"fmt"

	"github.com/born-ml/elannet/internal/nn"
	"github.com/born-ml/elannet/internal/tensor"
)

// DownSample halves the spatial size while keeping the channel count:
//
//	branch A: MaxPool 2×2/2 → 1×1 conv C → C/2
//	branch B: 1×1 conv C → C/2 → 3×3 conv stride 2 C/2 → C/2
//	out = cat(A, B)
//
// Neither branch uses depthwise convolutions.
type DownSample[B tensor.Backend] struct {
	in  int
	mp  *nn.MaxPool2D[B]
	cv1 *ConvBlock[B]
	cv2 *nn.Sequential[B]
}

// NewDownSample builds a DownSample block under path.
func NewDownSample[B tensor.Backend](path nn.Path, in int, act nn.Activation, backend B) *DownSample[B] {
	if in < 2 {
		panic(fmt.Sprintf("downsample: need at least 2 channels, got %d", in))
	}
	inter := in / 2

	return &DownSample[B]{
		in:  in,
		mp:  nn.NewMaxPool2D[B](2, 2),
		cv1: NewConvBlock(path.Sub("cv1"), ConvConfig{In: in, Out: inter, Act: act}, backend),
		cv2: nn.NewSequential[B](
			NewConvBlock(path.Sub("cv2").Sub(0), ConvConfig{In: in, Out: inter, Act: act}, backend),
			NewConvBlock(path.Sub("cv2").Sub(1), ConvConfig{In: inter, Out: inter, Kernel: 3, Padding: 1, Stride: 2, Act: act}, backend),
		),
	}
}

// Forward maps [B, C, H, W] to [B, C, H/2, W/2]. H and W must be even:
// the two branches disagree on odd sizes and the concatenation panics.
func (d *DownSample[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x1 := d.cv1.Forward(d.mp.Forward(x))
	x2 := d.cv2.Forward(x)
	return tensor.Cat([]*tensor.Tensor[float32, B]{x1, x2}, 1)
}

// Parameters returns cv1 then cv2 parameters.
func (d *DownSample[B]) Parameters() []*nn.Parameter[B] {
	return append(d.cv1.Parameters(), d.cv2.Parameters()...)
}

// OutChannels returns the output channel count (2 × (C/2)).
func (d *DownSample[B]) OutChannels() int {
	return 2 * (d.in / 2)
}

// String returns a string representation of the block.
func (d *DownSample[B]) String() string {
	return fmt.Sprintf("DownSample(%d)", d.in)
}
