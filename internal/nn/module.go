// Package nn implements the inference-mode neural network modules ELANNet
// is built from.
//
// This package provides:
//   - Module interface: Base interface for all NN components
//   - Parameter: Named weights and buffers, addressable by state-dict key
//   - Conv2D, BatchNorm2D, Linear: Layers with parameters
//   - Activations: SiLU, LeakyReLU, ReLU
//   - Pooling: MaxPool2D, AdaptiveAvgPool2D, Flatten
//   - Sequential: Container for stacking layers
//
// Every parameter carries its full state-dict key (e.g.
// "layer_2.1.cv3.0.convs.1.running_mean"), assigned at construction from a
// Path, so checkpoints exported from PyTorch load without renaming.
package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/elannet/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Modules can be composed to build complex architectures:
//
//	model := nn.NewSequential[B](
//	    nn.NewConv2D(nn.Path("stem"), nn.Conv2DConfig{In: 3, Out: 32, Kernel: 3, Padding: 1}, backend),
//	    nn.NewSiLU[B](),
//	)
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all parameters and buffers of this module,
	// including those of nested modules, in construction order.
	// Returns nil for modules without state (activations, pooling).
	Parameters() []*Parameter[B]
}

// Path is a dotted state-dict prefix such as "layer_3.0.cv2".
// The zero value is the root.
type Path string

// Sub returns the child path for a named or indexed submodule.
//
//	nn.Path("layer_1").Sub(0).Sub("convs") // "layer_1.0.convs"
func (p Path) Sub(name any) Path {
	s := fmt.Sprint(name)
	if p == "" {
		return Path(s)
	}
	return Path(string(p) + "." + s)
}

// Key returns the full state-dict key of a leaf tensor under p.
func (p Path) Key(leaf string) string {
	return string(p.Sub(leaf))
}

// HasPrefix reports whether key lies under p.
func (p Path) HasPrefix(key string) bool {
	return p == "" || key == string(p) || strings.HasPrefix(key, string(p)+".")
}
