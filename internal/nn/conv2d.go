package nn

import (
	"fmt"

	"github.com/born-ml/elannet/internal/tensor"
)

// Conv2DConfig describes a square-kernel 2D convolution.
// Zero Stride, Dilation and Groups default to 1.
type Conv2DConfig struct {
	In, Out  int
	Kernel   int
	Stride   int
	Padding  int
	Dilation int
	Groups   int
	Bias     bool
}

// Conv2D is a 2D convolutional layer.
//
// Performs convolution: output = Conv2D(input, weight) + bias
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels/groups, kernel, kernel]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Where:
//
//	out_h = (height + 2*padding - dilation*(kernel-1) - 1) / stride + 1
//
// Example:
//
//	// 3x3 depthwise conv over 64 channels
//	conv := nn.NewConv2D(nn.Path("dw"), nn.Conv2DConfig{In: 64, Out: 64, Kernel: 3, Padding: 1, Groups: 64}, backend)
//	output := conv.Forward(input)
type Conv2D[B tensor.Backend] struct {
	cfg    Conv2DConfig
	params tensor.ConvParams

	weight *Parameter[B] // [out_channels, in_channels/groups, kernel, kernel]
	bias   *Parameter[B] // [out_channels] or nil

	backend B
}

// NewConv2D creates a new 2D convolutional layer whose parameters are
// named path.weight and path.bias.
//
// Initialization:
//   - Weights: Kaiming uniform (PyTorch default)
//   - Bias: Zeros
func NewConv2D[B tensor.Backend](path Path, cfg Conv2DConfig, backend B) *Conv2D[B] {
	params := tensor.ConvParams{
		Stride:   cfg.Stride,
		Padding:  cfg.Padding,
		Dilation: cfg.Dilation,
		Groups:   cfg.Groups,
	}.Normalize()
	cfg.Stride, cfg.Dilation, cfg.Groups = params.Stride, params.Dilation, params.Groups

	if cfg.In <= 0 || cfg.Out <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", cfg.In, cfg.Out))
	}
	if cfg.Kernel <= 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel size %d", cfg.Kernel))
	}
	if cfg.Stride < 0 || cfg.Dilation < 0 || cfg.Padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid stride=%d, padding=%d, dilation=%d", cfg.Stride, cfg.Padding, cfg.Dilation))
	}
	if cfg.Groups < 0 || cfg.In%cfg.Groups != 0 || cfg.Out%cfg.Groups != 0 {
		panic(fmt.Sprintf("conv2d: groups %d must divide in=%d and out=%d", cfg.Groups, cfg.In, cfg.Out))
	}

	cinG := cfg.In / cfg.Groups
	weightShape := tensor.Shape{cfg.Out, cinG, cfg.Kernel, cfg.Kernel}
	weight := KaimingUniform(cinG*cfg.Kernel*cfg.Kernel, weightShape, backend)

	var bias *Parameter[B]
	if cfg.Bias {
		bias = NewParameter(path.Key("bias"), Zeros(tensor.Shape{cfg.Out}, backend))
	}

	return &Conv2D[B]{
		cfg:     cfg,
		params:  params,
		weight:  NewParameter(path.Key("weight"), weight),
		bias:    bias,
		backend: backend,
	}
}

// Forward performs the forward pass.
//
// Input: [batch, in_channels, height, width]
// Output: [batch, out_channels, out_h, out_w].
func (c *Conv2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	if inputShape[1] != c.cfg.In {
		panic(fmt.Sprintf("conv2d: input channels %d != expected %d", inputShape[1], c.cfg.In))
	}

	outputRaw := c.backend.Conv2D(input.Raw(), c.weight.Tensor().Raw(), c.params)
	output := tensor.New[float32, B](outputRaw, c.backend)

	if c.bias != nil {
		// [out_channels] -> [1, out_channels, 1, 1] for broadcasting
		output = output.Add(c.bias.Tensor().Reshape(1, c.cfg.Out, 1, 1))
	}
	return output
}

// Parameters returns the weight and, when present, the bias.
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	if c.bias != nil {
		return []*Parameter[B]{c.weight, c.bias}
	}
	return []*Parameter[B]{c.weight}
}

// Weight returns the kernel parameter.
func (c *Conv2D[B]) Weight() *Parameter[B] {
	return c.weight
}

// Config returns the normalized layer configuration.
func (c *Conv2D[B]) Config() Conv2DConfig {
	return c.cfg
}

// OutChannels returns the number of output channels.
func (c *Conv2D[B]) OutChannels() int {
	return c.cfg.Out
}

// ComputeOutputSize computes output spatial dimensions for given input size.
//
// Returns: [out_height, out_width].
func (c *Conv2D[B]) ComputeOutputSize(inputH, inputW int) [2]int {
	return [2]int{c.params.OutputSize(inputH, c.cfg.Kernel), c.params.OutputSize(inputW, c.cfg.Kernel)}
}

// String returns a string representation of the layer.
func (c *Conv2D[B]) String() string {
	return fmt.Sprintf("Conv2D(%d, %d, kernel_size=(%d, %d), stride=(%d, %d), padding=(%d, %d), dilation=(%d, %d), groups=%d, bias=%v)",
		c.cfg.In, c.cfg.Out,
		c.cfg.Kernel, c.cfg.Kernel,
		c.cfg.Stride, c.cfg.Stride,
		c.cfg.Padding, c.cfg.Padding,
		c.cfg.Dilation, c.cfg.Dilation,
		c.cfg.Groups, c.bias != nil)
}
