package elan

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/born-ml/elannet/internal/nn"
	"github.com/born-ml/elannet/internal/tensor"
)

// Stage is one resolution level of the backbone.
type Stage[B tensor.Backend] struct {
	Name        string       // state-dict prefix, "layer_1" … "layer_5"
	Module      nn.Module[B] // the stage body
	OutChannels int          // channels produced by the stage
	Reduction   int          // input size / stage output size
}

// Backbone is an ELANNet classifier:
//
//	layer_1 … layer_5 → AdaptiveAvgPool(1×1) → Flatten → fc
//
// A Backbone is immutable after construction apart from parameter values
// written by a weight loader. Forward passes may run concurrently.
type Backbone[B tensor.Backend] struct {
	variant    Variant
	depthwise  bool
	numClasses int

	stages  []Stage[B]
	avgpool *nn.AdaptiveAvgPool2D[B]
	flatten *nn.Flatten[B]
	fc      *nn.Linear[B]
}

func newBackbone[B tensor.Backend](v Variant, depthwise bool, numClasses int, backend B) *Backbone[B] {
	var stages []Stage[B]
	switch v {
	case Large:
		stages = largeStages(depthwise, backend)
	case Tiny, Nano:
		stages = tinyStages(depthwise, backend)
	default:
		panic(fmt.Sprintf("elan: unknown variant %d", int(v)))
	}

	return &Backbone[B]{
		variant:    v,
		depthwise:  depthwise,
		numClasses: numClasses,
		stages:     stages,
		avgpool:    nn.NewAdaptiveAvgPool2D[B](1, 1),
		flatten:    nn.NewFlatten[B](1),
		fc:         nn.NewLinear(nn.Path("fc"), v.FeatureDim(), numClasses, backend),
	}
}

// Forward maps an image batch [B, 3, H, W] to logits [B, num_classes].
func (m *Backbone[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	feats := m.ForwardFeatures(x)
	return m.Head(feats[len(feats)-1])
}

// ForwardFeatures returns the output of every stage (C1 … C5), for use by
// detection necks. Stage k has spatial size input/2^k.
func (m *Backbone[B]) ForwardFeatures(x *tensor.Tensor[float32, B]) []*tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 4 || shape[1] != 3 {
		panic(fmt.Sprintf("elannet: expected input [B, 3, H, W], got %v", shape))
	}

	feats := make([]*tensor.Tensor[float32, B], len(m.stages))
	for i, s := range m.stages {
		x = s.Module.Forward(x)
		feats[i] = x
	}
	return feats
}

// Head applies global average pooling, flatten and the classifier to a
// final-stage feature map.
func (m *Backbone[B]) Head(features *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return m.fc.Forward(m.flatten.Forward(m.avgpool.Forward(features)))
}

// Parameters returns stage parameters in order, then fc.
func (m *Backbone[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for _, s := range m.stages {
		params = append(params, s.Module.Parameters()...)
	}
	return append(params, m.fc.Parameters()...)
}

// Stages returns a copy of the stage list.
func (m *Backbone[B]) Stages() []Stage[B] {
	return append([]Stage[B](nil), m.stages...)
}

// OutChannels returns the channel count of each stage output.
func (m *Backbone[B]) OutChannels() []int {
	out := make([]int, len(m.stages))
	for i, s := range m.stages {
		out[i] = s.OutChannels
	}
	return out
}

// Variant returns the configuration the backbone was built from.
func (m *Backbone[B]) Variant() Variant {
	return m.variant
}

// Depthwise reports whether stage convolutions are depthwise-separable.
func (m *Backbone[B]) Depthwise() bool {
	return m.depthwise
}

// NumClasses returns the classifier width.
func (m *Backbone[B]) NumClasses() int {
	return m.numClasses
}

// StageSummary describes one stage in a Summary.
type StageSummary struct {
	Name        string
	OutChannels int
	Reduction   int
	Params      int
}

// Summary is a printable description of a backbone.
type Summary struct {
	Variant     Variant
	Depthwise   bool
	NumClasses  int
	Stages      []StageSummary
	HeadParams  int
	TotalParams int
}

// Summary describes the stages, their output channels and parameter counts.
func (m *Backbone[B]) Summary() Summary {
	s := Summary{
		Variant:    m.variant,
		Depthwise:  m.depthwise,
		NumClasses: m.numClasses,
		HeadParams: nn.NumParameters[B](m.fc),
	}
	s.TotalParams = s.HeadParams
	for _, st := range m.stages {
		n := nn.NumParameters[B](st.Module)
		s.Stages = append(s.Stages, StageSummary{
			Name:        st.Name,
			OutChannels: st.OutChannels,
			Reduction:   st.Reduction,
			Params:      n,
		})
		s.TotalParams += n
	}
	return s
}

// WriteTo prints the summary as an aligned table.
func (s Summary) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (depthwise=%v, classes=%d)\n", s.Variant, s.Depthwise, s.NumClasses)

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tCHANNELS\tSTRIDE\tPARAMS")
	for _, st := range s.Stages {
		fmt.Fprintf(tw, "%s\t%d\t/%d\t%d\n", st.Name, st.OutChannels, st.Reduction, st.Params)
	}
	fmt.Fprintf(tw, "fc\t%d\t-\t%d\n", s.NumClasses, s.HeadParams)
	fmt.Fprintf(tw, "total\t\t\t%d\n", s.TotalParams)
	if err := tw.Flush(); err != nil {
		return 0, err
	}

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}
