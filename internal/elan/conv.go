package elan

import (
	"fmt"

	"github.com/born-ml/elannet/internal/nn"
	"github.com/born-ml/elannet/internal/tensor"
)

// ConvConfig describes one ConvBlock. Zero Kernel, Stride and Dilation
// default to 1.
type ConvConfig struct {
	In, Out   int
	Kernel    int
	Padding   int
	Stride    int
	Dilation  int
	Act       nn.Activation
	Depthwise bool
}

func (c ConvConfig) normalize() ConvConfig {
	if c.Kernel == 0 {
		c.Kernel = 1
	}
	if c.Stride == 0 {
		c.Stride = 1
	}
	if c.Dilation == 0 {
		c.Dilation = 1
	}
	return c
}

// ConvBlock is convolution + batch norm + activation, held in a single
// Sequential named "convs".
//
// Plain mode:
//
//	Conv2D(in→out, k, s, p, d) → BN(out) → act
//
// Depthwise mode:
//
//	Conv2D(in→in, k, s, p, d, groups=in) → BN(in) → act → Conv2D(in→out, 1×1) → BN(out) → act
//
// ActIdentity adds no activation module, which shifts the indices of
// later entries in "convs".
type ConvBlock[B tensor.Backend] struct {
	cfg   ConvConfig
	convs *nn.Sequential[B]
}

// NewConvBlock builds a ConvBlock whose parameters live under path.convs.
func NewConvBlock[B tensor.Backend](path nn.Path, cfg ConvConfig, backend B) *ConvBlock[B] {
	cfg = cfg.normalize()
	if cfg.In <= 0 || cfg.Out <= 0 {
		panic(fmt.Sprintf("conv block: invalid channels in=%d, out=%d", cfg.In, cfg.Out))
	}

	root := path.Sub("convs")
	var modules []nn.Module[B]
	add := func(conv nn.Conv2DConfig) {
		i := len(modules)
		modules = append(modules,
			nn.NewConv2D(root.Sub(i), conv, backend),
			nn.NewBatchNorm2D(root.Sub(i+1), conv.Out, backend),
		)
		if act, ok := nn.NewActivation[B](cfg.Act); ok {
			modules = append(modules, act)
		}
	}

	if cfg.Depthwise {
		add(nn.Conv2DConfig{
			In: cfg.In, Out: cfg.In, Kernel: cfg.Kernel,
			Stride: cfg.Stride, Padding: cfg.Padding, Dilation: cfg.Dilation,
			Groups: cfg.In,
		})
		add(nn.Conv2DConfig{In: cfg.In, Out: cfg.Out, Kernel: 1})
	} else {
		add(nn.Conv2DConfig{
			In: cfg.In, Out: cfg.Out, Kernel: cfg.Kernel,
			Stride: cfg.Stride, Padding: cfg.Padding, Dilation: cfg.Dilation,
		})
	}

	return &ConvBlock[B]{
		cfg:   cfg,
		convs: nn.NewSequential(modules...),
	}
}

// Forward applies the block.
func (c *ConvBlock[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return c.convs.Forward(x)
}

// Parameters returns the parameters of every conv and batch norm.
func (c *ConvBlock[B]) Parameters() []*nn.Parameter[B] {
	return c.convs.Parameters()
}

// Config returns the normalized block configuration.
func (c *ConvBlock[B]) Config() ConvConfig {
	return c.cfg
}

// OutChannels returns the number of output channels.
func (c *ConvBlock[B]) OutChannels() int {
	return c.cfg.Out
}

// Len returns the number of modules inside convs.
func (c *ConvBlock[B]) Len() int {
	return c.convs.Len()
}

// String returns a string representation of the block.
func (c *ConvBlock[B]) String() string {
	mode := "plain"
	if c.cfg.Depthwise {
		mode = "depthwise"
	}
	return fmt.Sprintf("Conv(%d, %d, k=%d, s=%d, p=%d, act=%s, %s)",
		c.cfg.In, c.cfg.Out, c.cfg.Kernel, c.cfg.Stride, c.cfg.Padding, c.cfg.Act, mode)
}
