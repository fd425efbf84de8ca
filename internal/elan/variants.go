package elan

import (
	"fmt"
	"strings"

	"github.com/born-ml/elannet/internal/nn"
	"github.com/born-ml/elannet/internal/tensor"
)

// Variant names one of the ELANNet configurations.
type Variant int

// Supported variants.
const (
	Large Variant = iota // "elannet": SiLU, depth-2 ELAN blocks, DownSample stages
	Tiny                 // "elannet_tiny": LeakyReLU, depth-1 ELAN blocks, max-pool stages
	Nano                 // "elannet_nano": Tiny with depthwise convolutions
)

var variantNames = map[Variant]string{
	Large: "elannet",
	Tiny:  "elannet_tiny",
	Nano:  "elannet_nano",
}

// LargeURL is the published ImageNet checkpoint of the large variant.
const LargeURL = "https://github.com/yjh0410/image_classification_pytorch/releases/download/weight/elannet.pth"

// pretrainedURLs holds the published checkpoints. Only the large variant
// has one.
var pretrainedURLs = map[Variant]string{
	Large: LargeURL,
}

// Variants returns all variants in table order.
func Variants() []Variant {
	return []Variant{Large, Tiny, Nano}
}

// String returns the model name used by the factory ("elannet", ...).
func (v Variant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

// ParseVariant maps a model name to its Variant. Matching is exact after
// trimming spaces and lowering case.
func ParseVariant(name string) (Variant, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for v, n := range variantNames {
		if n == name {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: %q (want one of elannet, elannet_tiny, elannet_nano)", ErrUnknownVariant, name)
}

// DefaultDepthwise reports whether the variant uses depthwise convolutions
// unless overridden. True only for Nano.
func (v Variant) DefaultDepthwise() bool {
	return v == Nano
}

// FeatureDim returns the channel count of the last stage, which is also the
// input width of the classifier.
func (v Variant) FeatureDim() int {
	if v == Large {
		return 1024
	}
	return 512
}

// PretrainedURL returns the checkpoint URL of v, if one is published.
func PretrainedURL(v Variant) (string, bool) {
	url, ok := pretrainedURLs[v]
	return url, ok
}

// largeStages builds the five stages of the large backbone.
//
//	layer_1: Conv(3,32,3) · Conv(32,64,3,s2) · Conv(64,64,3)      /2
//	layer_2: Conv(64,128,3,s2) · ELAN(128→256)                   /4
//	layer_3: DownSample(256) · ELAN(256→512)                     /8
//	layer_4: DownSample(512) · ELAN(512→1024)                    /16
//	layer_5: DownSample(1024) · ELAN(1024→1024, ratio 0.25)      /32
func largeStages[B tensor.Backend](depthwise bool, backend B) []Stage[B] {
	const act = nn.ActSiLU
	conv := func(path nn.Path, in, out, stride int) nn.Module[B] {
		return NewConvBlock(path, ConvConfig{
			In: in, Out: out, Kernel: 3, Padding: 1, Stride: stride,
			Act: act, Depthwise: depthwise,
		}, backend)
	}
	elan := func(path nn.Path, in, out int, ratio float64) nn.Module[B] {
		return NewELANBlock(path, ELANConfig{
			In: in, Out: out, ExpandRatio: ratio,
			Size: SizeLarge, Act: act, Depthwise: depthwise,
		}, backend)
	}
	down := func(path nn.Path, in int) nn.Module[B] {
		return NewDownSample(path, in, act, backend)
	}

	l1, l2, l3, l4, l5 := stagePath(1), stagePath(2), stagePath(3), stagePath(4), stagePath(5)
	return []Stage[B]{
		newStage(l1, 64, 2, conv(l1.Sub(0), 3, 32, 1), conv(l1.Sub(1), 32, 64, 2), conv(l1.Sub(2), 64, 64, 1)),
		newStage(l2, 256, 4, conv(l2.Sub(0), 64, 128, 2), elan(l2.Sub(1), 128, 256, 0.5)),
		newStage(l3, 512, 8, down(l3.Sub(0), 256), elan(l3.Sub(1), 256, 512, 0.5)),
		newStage(l4, 1024, 16, down(l4.Sub(0), 512), elan(l4.Sub(1), 512, 1024, 0.5)),
		newStage(l5, 1024, 32, down(l5.Sub(0), 1024), elan(l5.Sub(1), 1024, 1024, 0.25)),
	}
}

// tinyStages builds the five stages shared by the tiny and nano backbones.
//
//	layer_1: Conv(3,32,3,s2)                        /2
//	layer_2: Conv(32,64,3,s2) · ELAN(64→64)         /4
//	layer_3: MaxPool · ELAN(64→128)                 /8
//	layer_4: MaxPool · ELAN(128→256)                /16
//	layer_5: MaxPool · ELAN(256→512)                /32
//
// layer_1 is a bare ConvBlock, so its keys are "layer_1.convs.*".
func tinyStages[B tensor.Backend](depthwise bool, backend B) []Stage[B] {
	const act = nn.ActLeakyReLU
	conv := func(path nn.Path, in, out int) *ConvBlock[B] {
		return NewConvBlock(path, ConvConfig{
			In: in, Out: out, Kernel: 3, Padding: 1, Stride: 2,
			Act: act, Depthwise: depthwise,
		}, backend)
	}
	elan := func(path nn.Path, in, out int) nn.Module[B] {
		return NewELANBlock(path, ELANConfig{
			In: in, Out: out, ExpandRatio: 0.5,
			Size: SizeTiny, Act: act, Depthwise: depthwise,
		}, backend)
	}
	pool := func() nn.Module[B] {
		return nn.NewMaxPool2D[B](2, 2)
	}

	l1, l2, l3, l4, l5 := stagePath(1), stagePath(2), stagePath(3), stagePath(4), stagePath(5)
	return []Stage[B]{
		{Name: string(l1), Module: conv(l1, 3, 32), OutChannels: 32, Reduction: 2},
		newStage(l2, 64, 4, conv(l2.Sub(0), 32, 64), elan(l2.Sub(1), 64, 64)),
		newStage(l3, 128, 8, pool(), elan(l3.Sub(1), 64, 128)),
		newStage(l4, 256, 16, pool(), elan(l4.Sub(1), 128, 256)),
		newStage(l5, 512, 32, pool(), elan(l5.Sub(1), 256, 512)),
	}
}

func stagePath(i int) nn.Path {
	return nn.Path(fmt.Sprintf("layer_%d", i))
}

func newStage[B tensor.Backend](path nn.Path, out, reduction int, modules ...nn.Module[B]) Stage[B] {
	return Stage[B]{
		Name:        string(path),
		Module:      nn.NewSequential(modules...),
		OutChannels: out,
		Reduction:   reduction,
	}
}
