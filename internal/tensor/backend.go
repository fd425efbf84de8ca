package tensor

// ConvParams configures a 2D convolution.
//
// Zero values are normalized by Normalize: Stride and Dilation default to 1,
// Groups defaults to 1.
type ConvParams struct {
	Stride   int
	Padding  int
	Dilation int
	Groups   int
}

// Normalize returns p with defaults applied to unset fields.
func (p ConvParams) Normalize() ConvParams {
	if p.Stride == 0 {
		p.Stride = 1
	}
	if p.Dilation == 0 {
		p.Dilation = 1
	}
	if p.Groups == 0 {
		p.Groups = 1
	}
	return p
}

// OutputSize computes the convolution output extent for an input extent.
//
//	out = (in + 2*padding - dilation*(kernel-1) - 1) / stride + 1
func (p ConvParams) OutputSize(in, kernel int) int {
	p = p.Normalize()
	return (in+2*p.Padding-p.Dilation*(kernel-1)-1)/p.Stride + 1
}

// Backend defines the interface that compute backends implement.
// Backends handle the actual computation for tensor operations.
//
// The set is the inference surface of a convolutional classifier:
// convolution, normalization, pooling, concatenation and a dense head.
// Activations are exposed through optional interfaces in package nn.
type Backend interface {
	// Element-wise addition with broadcasting of size-1 dimensions.
	Add(a, b *RawTensor) *RawTensor

	// Matrix operations
	MatMul(a, b *RawTensor) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor

	// Shape operations
	Reshape(t *RawTensor, newShape Shape) *RawTensor

	// Convolutional operations
	Conv2D(input, kernel *RawTensor, params ConvParams) *RawTensor
	MaxPool2D(input *RawTensor, kernelSize, stride int) *RawTensor
	AdaptiveAvgPool2D(input *RawTensor, outH, outW int) *RawTensor

	// BatchNorm2D normalizes [N, C, H, W] per channel with running statistics.
	BatchNorm2D(input, mean, variance, weight, bias *RawTensor, eps float64) *RawTensor

	// Cat concatenates tensors along dim.
	Cat(tensors []*RawTensor, dim int) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
