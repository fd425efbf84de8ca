package nn

import (
	"fmt"

	"github.com/born-ml/elannet/internal/tensor"
)

// LeakyReLUSlope is the negative slope used by ActLeakyReLU.
const LeakyReLUSlope = 0.1

// Activation selects the nonlinearity that follows a convolution.
type Activation int

// Supported activations.
const (
	ActIdentity  Activation = iota // no activation module is added
	ActSiLU                        // x * sigmoid(x)
	ActLeakyReLU                   // x >= 0 ? x : 0.1*x
)

// String returns the short name used in configs and summaries.
func (a Activation) String() string {
	switch a {
	case ActIdentity:
		return "identity"
	case ActSiLU:
		return "silu"
	case ActLeakyReLU:
		return "lrelu"
	default:
		return fmt.Sprintf("Activation(%d)", int(a))
	}
}

// ParseActivation parses "silu", "lrelu" (or "leaky_relu") and "identity"
// (or the empty string).
func ParseActivation(s string) (Activation, error) {
	switch s {
	case "", "identity", "none":
		return ActIdentity, nil
	case "silu":
		return ActSiLU, nil
	case "lrelu", "leaky_relu":
		return ActLeakyReLU, nil
	default:
		return ActIdentity, fmt.Errorf("unknown activation %q", s)
	}
}

// NewActivation returns the module for a. The second result is false for
// ActIdentity, in which case callers add nothing.
func NewActivation[B tensor.Backend](a Activation) (Module[B], bool) {
	switch a {
	case ActIdentity:
		return nil, false
	case ActSiLU:
		return NewSiLU[B](), true
	case ActLeakyReLU:
		return NewLeakyReLU[B](LeakyReLUSlope), true
	default:
		panic(fmt.Sprintf("activation: unsupported %v", a))
	}
}

// SiLUBackend is an interface for backends that support SiLU activation.
type SiLUBackend interface {
	SiLU(*tensor.RawTensor) *tensor.RawTensor
}

// LeakyReLUBackend is an interface for backends that support LeakyReLU activation.
type LeakyReLUBackend interface {
	LeakyReLU(x *tensor.RawTensor, slope float64) *tensor.RawTensor
}

// SiLU is the Sigmoid Linear Unit: f(x) = x * sigmoid(x).
//
// Example:
//
//	silu := nn.NewSiLU[Backend]()
//	output := silu.Forward(input)
type SiLU[B tensor.Backend] struct{}

// NewSiLU creates a new SiLU activation module.
func NewSiLU[B tensor.Backend]() *SiLU[B] {
	return &SiLU[B]{}
}

// Forward applies SiLU activation.
func (s *SiLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	if siluBackend, ok := any(backend).(SiLUBackend); ok {
		return tensor.New[float32, B](siluBackend.SiLU(input.Raw()), backend)
	}
	panic("SiLU: backend must implement SiLU operation")
}

// Parameters returns nil (SiLU has no parameters).
func (s *SiLU[B]) Parameters() []*Parameter[B] {
	return nil
}

// String returns a string representation of the module.
func (s *SiLU[B]) String() string {
	return "SiLU()"
}

// LeakyReLU applies f(x) = x for x >= 0 and slope*x otherwise.
type LeakyReLU[B tensor.Backend] struct {
	slope float64
}

// NewLeakyReLU creates a new LeakyReLU activation module.
func NewLeakyReLU[B tensor.Backend](slope float64) *LeakyReLU[B] {
	return &LeakyReLU[B]{slope: slope}
}

// Forward applies LeakyReLU activation.
func (l *LeakyReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	if lreluBackend, ok := any(backend).(LeakyReLUBackend); ok {
		return tensor.New[float32, B](lreluBackend.LeakyReLU(input.Raw(), l.slope), backend)
	}
	panic("LeakyReLU: backend must implement LeakyReLU operation")
}

// Parameters returns nil (LeakyReLU has no parameters).
func (l *LeakyReLU[B]) Parameters() []*Parameter[B] {
	return nil
}

// String returns a string representation of the module.
func (l *LeakyReLU[B]) String() string {
	return fmt.Sprintf("LeakyReLU(negative_slope=%g)", l.slope)
}
