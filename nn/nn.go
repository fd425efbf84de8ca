// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/elannet/internal/nn"
	"github.com/born-ml/elannet/internal/tensor"
)

// Module is the common interface of all layers.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter is a named tensor owned by a layer. Buffers (batch norm
// running statistics) are Parameters with IsBuffer() == true.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// Path is a dotted state-dict prefix such as "layer_1.0.convs".
type Path = nn.Path

// ErrMissingKey is returned by LoadStateDict for a parameter the state
// dict does not contain.
var ErrMissingKey = nn.ErrMissingKey

// Activation selects the nonlinearity of a ConvBlock.
type Activation = nn.Activation

// Activation kinds.
const (
	ActIdentity  = nn.ActIdentity
	ActSiLU      = nn.ActSiLU
	ActLeakyReLU = nn.ActLeakyReLU
)

// ParseActivation maps "identity", "silu" or "lrelu" to an Activation.
func ParseActivation(s string) (Activation, error) {
	return nn.ParseActivation(s)
}

// Layers

// Conv2DConfig describes a Conv2D layer.
type Conv2DConfig = nn.Conv2DConfig

// Conv2D represents a 2D convolutional layer.
type Conv2D[B tensor.Backend] = nn.Conv2D[B]

// NewConv2D creates a convolution whose parameters live under path.
//
// Example:
//
//	backend := cpu.New()
//	conv := nn.NewConv2D(nn.Path("stem"), nn.Conv2DConfig{In: 3, Out: 32, Kernel: 3, Padding: 1}, backend)
func NewConv2D[B tensor.Backend](path Path, cfg Conv2DConfig, backend B) *Conv2D[B] {
	return nn.NewConv2D(path, cfg, backend)
}

// BatchNorm2D represents inference-mode batch normalization.
type BatchNorm2D[B tensor.Backend] = nn.BatchNorm2D[B]

// NewBatchNorm2D creates a batch norm over features channels.
func NewBatchNorm2D[B tensor.Backend](path Path, features int, backend B) *BatchNorm2D[B] {
	return nn.NewBatchNorm2D(path, features, backend)
}

// Linear represents a fully connected layer.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a linear layer with Xavier initialization.
func NewLinear[B tensor.Backend](path Path, inFeatures, outFeatures int, backend B) *Linear[B] {
	return nn.NewLinear(path, inFeatures, outFeatures, backend)
}

// MaxPool2D represents a 2D max pooling layer.
type MaxPool2D[B tensor.Backend] = nn.MaxPool2D[B]

// NewMaxPool2D creates a max pooling layer.
func NewMaxPool2D[B tensor.Backend](kernelSize, stride int) *MaxPool2D[B] {
	return nn.NewMaxPool2D[B](kernelSize, stride)
}

// AdaptiveAvgPool2D averages each channel to a fixed output size.
type AdaptiveAvgPool2D[B tensor.Backend] = nn.AdaptiveAvgPool2D[B]

// NewAdaptiveAvgPool2D creates an adaptive average pooling layer.
func NewAdaptiveAvgPool2D[B tensor.Backend](outH, outW int) *AdaptiveAvgPool2D[B] {
	return nn.NewAdaptiveAvgPool2D[B](outH, outW)
}

// Sequential runs modules in order.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential creates a container of modules.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// NewActivation returns the module for a, or false for ActIdentity.
func NewActivation[B tensor.Backend](a Activation) (Module[B], bool) {
	return nn.NewActivation[B](a)
}

// State dicts

// StateDict returns every parameter and buffer of m keyed by name.
func StateDict[B tensor.Backend](m Module[B]) map[string]*tensor.RawTensor {
	return nn.StateDict(m)
}

// StateDictKeys returns the sorted state-dict keys of m.
func StateDictKeys[B tensor.Backend](m Module[B]) []string {
	return nn.StateDictKeys(m)
}

// LoadStateDict copies sd into m. Keys and shapes must match exactly.
func LoadStateDict[B tensor.Backend](m Module[B], sd map[string]*tensor.RawTensor) error {
	return nn.LoadStateDict(m, sd)
}

// NumParameters counts trainable elements of m, excluding buffers.
func NumParameters[B tensor.Backend](m Module[B]) int {
	return nn.NumParameters(m)
}
