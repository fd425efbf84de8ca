package nn

import (
	"fmt"

	"github.com/born-ml/elannet/internal/tensor"
)

// Parameter is a named tensor owned by a module.
//
// Trainable parameters (weights, biases) and buffers (batch-norm running
// statistics) share this type; buffers are excluded from parameter counts
// but are part of the state dict.
//
// Example:
//
//	weight := nn.NewParameter("fc.weight", weightTensor)
//	w := weight.Tensor()
type Parameter[B tensor.Backend] struct {
	name   string                     // Full state-dict key (e.g. "fc.weight")
	tensor *tensor.Tensor[float32, B] // The parameter tensor
	buffer bool                       // Non-trainable state (running stats)
}

// NewParameter creates a new trainable parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
	}
}

// NewBuffer creates a non-trainable parameter.
func NewBuffer[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
		buffer: true,
	}
}

// Name returns the full state-dict key.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// Shape returns the parameter shape.
func (p *Parameter[B]) Shape() tensor.Shape {
	return p.tensor.Shape()
}

// IsBuffer reports whether the parameter is a non-trainable buffer.
func (p *Parameter[B]) IsBuffer() bool {
	return p.buffer
}

// Load copies src into the parameter in place.
//
// The shapes must match exactly. Float64, int32, int64 and uint8 sources
// are converted to float32 (num_batches_tracked is stored as int64 by PyTorch).
func (p *Parameter[B]) Load(src *tensor.RawTensor) error {
	if !src.Shape().Equal(p.Shape()) {
		return fmt.Errorf("parameter %s: shape mismatch: model %v, source %v", p.name, p.Shape(), src.Shape())
	}
	values, err := src.ToFloat32()
	if err != nil {
		return fmt.Errorf("parameter %s: %w", p.name, err)
	}
	copy(p.tensor.Data(), values)
	return nil
}
