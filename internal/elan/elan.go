package elan

import (
	"fmt"

	"github.com/born-ml/elannet/internal/nn"
	"github.com/born-ml/elannet/internal/tensor"
)

// Size selects the depth of the 3×3 chains inside an ELANBlock.
type Size int

// Model sizes.
const (
	SizeLarge Size = iota // depth 2
	SizeTiny              // depth 1
)

// Depth returns the number of ConvBlocks in each of the cv3 and cv4 chains.
func (s Size) Depth() int {
	switch s {
	case SizeLarge:
		return 2
	case SizeTiny:
		return 1
	default:
		panic(fmt.Sprintf("elan: unknown size %d", int(s)))
	}
}

// String returns "large" or "tiny".
func (s Size) String() string {
	switch s {
	case SizeLarge:
		return "large"
	case SizeTiny:
		return "tiny"
	default:
		return fmt.Sprintf("Size(%d)", int(s))
	}
}

// ELANConfig describes an ELANBlock.
type ELANConfig struct {
	In, Out     int
	ExpandRatio float64
	Size        Size
	Act         nn.Activation
	Depthwise   bool
}

// ELANBlock is the efficient layer aggregation block:
//
//	x1 = cv1(x)            1×1, in → inter
//	x2 = cv2(x)            1×1, in → inter
//	x3 = cv3(x2)           depth × 3×3, inter → inter
//	x4 = cv4(x3)           depth × 3×3, inter → inter
//	out = out(cat(x1, x2, x3, x4))   1×1, 4·inter → out
//
// where inter = int(in * expand_ratio). Spatial size is preserved.
// The output projection always uses SiLU and a plain convolution.
type ELANBlock[B tensor.Backend] struct {
	cfg   ELANConfig
	inter int

	cv1 *ConvBlock[B]
	cv2 *ConvBlock[B]
	cv3 *nn.Sequential[B]
	cv4 *nn.Sequential[B]
	out *ConvBlock[B]
}

// NewELANBlock builds an ELANBlock under path.
func NewELANBlock[B tensor.Backend](path nn.Path, cfg ELANConfig, backend B) *ELANBlock[B] {
	inter := int(float64(cfg.In) * cfg.ExpandRatio)
	if inter <= 0 {
		panic(fmt.Sprintf("elan block: in=%d with expand_ratio=%g leaves no channels", cfg.In, cfg.ExpandRatio))
	}
	depth := cfg.Size.Depth()

	chain := func(name string) *nn.Sequential[B] {
		blocks := make([]nn.Module[B], depth)
		for i := range blocks {
			blocks[i] = NewConvBlock(path.Sub(name).Sub(i), ConvConfig{
				In: inter, Out: inter, Kernel: 3, Padding: 1,
				Act: cfg.Act, Depthwise: cfg.Depthwise,
			}, backend)
		}
		return nn.NewSequential(blocks...)
	}

	return &ELANBlock[B]{
		cfg:   cfg,
		inter: inter,
		cv1:   NewConvBlock(path.Sub("cv1"), ConvConfig{In: cfg.In, Out: inter, Act: cfg.Act}, backend),
		cv2:   NewConvBlock(path.Sub("cv2"), ConvConfig{In: cfg.In, Out: inter, Act: cfg.Act}, backend),
		cv3:   chain("cv3"),
		cv4:   chain("cv4"),
		out:   NewConvBlock(path.Sub("out"), ConvConfig{In: 4 * inter, Out: cfg.Out, Act: nn.ActSiLU}, backend),
	}
}

// Forward maps [B, in, H, W] to [B, out, H, W].
func (e *ELANBlock[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x1 := e.cv1.Forward(x)
	x2 := e.cv2.Forward(x)
	x3 := e.cv3.Forward(x2)
	x4 := e.cv4.Forward(x3)
	return e.out.Forward(tensor.Cat([]*tensor.Tensor[float32, B]{x1, x2, x3, x4}, 1))
}

// Parameters returns cv1, cv2, cv3, cv4 and out parameters in order.
func (e *ELANBlock[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	params = append(params, e.cv1.Parameters()...)
	params = append(params, e.cv2.Parameters()...)
	params = append(params, e.cv3.Parameters()...)
	params = append(params, e.cv4.Parameters()...)
	params = append(params, e.out.Parameters()...)
	return params
}

// InterChannels returns int(in * expand_ratio).
func (e *ELANBlock[B]) InterChannels() int {
	return e.inter
}

// OutChannels returns the number of output channels.
func (e *ELANBlock[B]) OutChannels() int {
	return e.cfg.Out
}

// String returns a string representation of the block.
func (e *ELANBlock[B]) String() string {
	return fmt.Sprintf("ELANBlock(%d, %d, expand_ratio=%g, size=%s, act=%s, depthwise=%v)",
		e.cfg.In, e.cfg.Out, e.cfg.ExpandRatio, e.cfg.Size, e.cfg.Act, e.cfg.Depthwise)
}
