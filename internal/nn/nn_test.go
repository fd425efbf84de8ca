package nn_test

import (
	"math"
	"testing"

	"github.com/born-ml/elannet/internal/backend/cpu"
	"github.com/born-ml/elannet/internal/nn"
	"github.com/born-ml/elannet/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPath(t *testing.T) {
	p := nn.Path("layer_1").Sub(0).Sub("convs")
	assert.Equal(t, nn.Path("layer_1.0.convs"), p)
	assert.Equal(t, "layer_1.0.convs.1.running_var", p.Sub(1).Key("running_var"))
	assert.Equal(t, "fc.weight", nn.Path("").Sub("fc").Key("weight"))

	assert.True(t, nn.Path("layer_1").HasPrefix("layer_1.0.convs.0.weight"))
	assert.False(t, nn.Path("layer_1").HasPrefix("layer_10.weight"))
	assert.True(t, nn.Path("").HasPrefix("anything"))
}

func TestConv2D_ForwardShapeAndBias(t *testing.T) {
	backend := cpu.New()

	conv := nn.NewConv2D(nn.Path("conv"), nn.Conv2DConfig{In: 3, Out: 8, Kernel: 3, Stride: 2, Padding: 1, Bias: true}, backend)
	require.Len(t, conv.Parameters(), 2)
	assert.Equal(t, tensor.Shape{8, 3, 3, 3}, conv.Weight().Shape())
	assert.Equal(t, [2]int{16, 16}, conv.ComputeOutputSize(32, 32))

	// Zero the kernel and set a bias: the output is the bias everywhere.
	for i := range conv.Weight().Tensor().Data() {
		conv.Weight().Tensor().Data()[i] = 0
	}
	bias := conv.Parameters()[1].Tensor().Data()
	for i := range bias {
		bias[i] = float32(i)
	}

	out := conv.Forward(tensor.Ones[float32](tensor.Shape{2, 3, 32, 32}, backend))
	require.Equal(t, tensor.Shape{2, 8, 16, 16}, out.Shape())
	assert.Equal(t, float32(5), out.At(1, 5, 7, 9))
}

func TestConv2D_DepthwiseWeightShape(t *testing.T) {
	backend := cpu.New()

	conv := nn.NewConv2D(nn.Path("dw"), nn.Conv2DConfig{In: 16, Out: 16, Kernel: 3, Padding: 1, Groups: 16}, backend)
	assert.Equal(t, tensor.Shape{16, 1, 3, 3}, conv.Weight().Shape())
	assert.Equal(t, 1, conv.Config().Stride)
	assert.Contains(t, conv.String(), "groups=16")

	out := conv.Forward(tensor.Ones[float32](tensor.Shape{1, 16, 5, 5}, backend))
	assert.Equal(t, tensor.Shape{1, 16, 5, 5}, out.Shape())
}

func TestConv2D_InvalidConfig(t *testing.T) {
	backend := cpu.New()

	assert.Panics(t, func() {
		nn.NewConv2D(nn.Path("c"), nn.Conv2DConfig{In: 6, Out: 4, Kernel: 3, Groups: 4}, backend)
	})
	assert.Panics(t, func() {
		nn.NewConv2D(nn.Path("c"), nn.Conv2DConfig{In: 0, Out: 4, Kernel: 3}, backend)
	})

	conv := nn.NewConv2D(nn.Path("c"), nn.Conv2DConfig{In: 3, Out: 4, Kernel: 1}, backend)
	assert.Panics(t, func() {
		conv.Forward(tensor.Zeros[float32](tensor.Shape{1, 5, 4, 4}, backend))
	})
}

func TestBatchNorm2D_Forward(t *testing.T) {
	backend := cpu.New()

	bn := nn.NewBatchNorm2D(nn.Path("bn"), 2, backend)
	params := nn.ParameterMap[*cpu.CPUBackend](bn)

	copy(params["bn.running_mean"].Tensor().Data(), []float32{1, -1})
	copy(params["bn.running_var"].Tensor().Data(), []float32{4, 1})
	copy(params["bn.weight"].Tensor().Data(), []float32{2, 1})
	copy(params["bn.bias"].Tensor().Data(), []float32{0, 0.5})

	input, err := tensor.FromSlice[float32]([]float32{3, 5, 0, 1}, tensor.Shape{1, 2, 1, 2}, backend)
	require.NoError(t, err)

	out := bn.Forward(input).Data()
	eps := nn.BatchNormEps
	want := []float64{
		(3 - 1) / math.Sqrt(4+eps) * 2,
		(5 - 1) / math.Sqrt(4+eps) * 2,
		(0+1)/math.Sqrt(1+eps) + 0.5,
		(1+1)/math.Sqrt(1+eps) + 0.5,
	}
	for i := range want {
		assert.InDelta(t, want[i], out[i], 1e-5)
	}
}

func TestBatchNorm2D_StateKeys(t *testing.T) {
	backend := cpu.New()
	bn := nn.NewBatchNorm2D(nn.Path("convs.1"), 4, backend)

	assert.Equal(t, []string{
		"convs.1.bias",
		"convs.1.num_batches_tracked",
		"convs.1.running_mean",
		"convs.1.running_var",
		"convs.1.weight",
	}, nn.StateDictKeys[*cpu.CPUBackend](bn))

	// Only weight and bias are trainable.
	assert.Equal(t, 8, nn.NumParameters[*cpu.CPUBackend](bn))
	assert.Equal(t, tensor.Shape{}, nn.ParameterMap[*cpu.CPUBackend](bn)["convs.1.num_batches_tracked"].Shape())
}

func TestActivation(t *testing.T) {
	backend := cpu.New()

	for _, tt := range []struct {
		in   string
		want nn.Activation
	}{
		{"silu", nn.ActSiLU},
		{"lrelu", nn.ActLeakyReLU},
		{"leaky_relu", nn.ActLeakyReLU},
		{"", nn.ActIdentity},
		{"identity", nn.ActIdentity},
	} {
		got, err := nn.ParseActivation(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	_, err := nn.ParseActivation("gelu")
	assert.Error(t, err)

	_, ok := nn.NewActivation[*cpu.CPUBackend](nn.ActIdentity)
	assert.False(t, ok)

	x, err := tensor.FromSlice[float32]([]float32{-10, 0, 2}, tensor.Shape{3}, backend)
	require.NoError(t, err)

	lrelu, ok := nn.NewActivation[*cpu.CPUBackend](nn.ActLeakyReLU)
	require.True(t, ok)
	assert.InDeltaSlice(t, []float32{-1, 0, 2}, lrelu.Forward(x).Data(), 1e-6)

	silu, ok := nn.NewActivation[*cpu.CPUBackend](nn.ActSiLU)
	require.True(t, ok)
	assert.InDelta(t, 2/(1+math.Exp(-2)), silu.Forward(x).Data()[2], 1e-6)

}

func TestLinear_Forward(t *testing.T) {
	backend := cpu.New()

	fc := nn.NewLinear(nn.Path("fc"), 3, 2, backend)
	params := nn.ParameterMap[*cpu.CPUBackend](fc)
	copy(params["fc.weight"].Tensor().Data(), []float32{1, 0, 0, 0, 1, 1})
	copy(params["fc.bias"].Tensor().Data(), []float32{10, 20})

	x, err := tensor.FromSlice[float32]([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)

	out := fc.Forward(x)
	assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
	assert.Equal(t, []float32{11, 25, 14, 31}, out.Data())
	assert.Equal(t, 8, nn.NumParameters[*cpu.CPUBackend](fc))
}

func TestSequential_PoolFlatten(t *testing.T) {
	backend := cpu.New()

	head := nn.NewSequential[*cpu.CPUBackend](
		nn.NewMaxPool2D[*cpu.CPUBackend](2, 2),
		nn.NewAdaptiveAvgPool2D[*cpu.CPUBackend](1, 1),
		nn.NewFlatten[*cpu.CPUBackend](1),
	)
	assert.Equal(t, 3, head.Len())
	assert.Empty(t, head.Parameters())

	x := tensor.Arange[float32](2*3*4*4, backend).Reshape(2, 3, 4, 4)
	out := head.Forward(x)
	require.Equal(t, tensor.Shape{2, 3}, out.Shape())

	// Plane 0 is 0..15; maxpool gives [5, 7, 13, 15], mean 10.
	assert.InDelta(t, 10, out.At(0, 0), 1e-6)
}

func TestLoadStateDict(t *testing.T) {
	backend := cpu.New()

	build := func() *nn.Sequential[*cpu.CPUBackend] {
		root := nn.Path("convs")
		return nn.NewSequential[*cpu.CPUBackend](
			nn.NewConv2D(root.Sub(0), nn.Conv2DConfig{In: 2, Out: 4, Kernel: 3, Padding: 1}, backend),
			nn.NewBatchNorm2D(root.Sub(1), 4, backend),
		)
	}

	src, dst := build(), build()
	copy(nn.ParameterMap[*cpu.CPUBackend](src)["convs.1.running_mean"].Tensor().Data(), []float32{1, 2, 3, 4})

	require.NoError(t, nn.LoadStateDict[*cpu.CPUBackend](dst, nn.StateDict[*cpu.CPUBackend](src)))

	x := tensor.RandnFrom[float32](tensor.Shape{1, 2, 6, 6}, newRand(3), backend)
	assert.Equal(t, src.Forward(x).Data(), dst.Forward(x).Data())

	missing := nn.StateDict[*cpu.CPUBackend](src)
	delete(missing, "convs.0.weight")
	assert.ErrorIs(t, nn.LoadStateDict[*cpu.CPUBackend](dst, missing), nn.ErrMissingKey)

	extra := nn.StateDict[*cpu.CPUBackend](src)
	extra["fc.weight"] = tensor.MustRaw(tensor.Shape{1}, tensor.Float32, tensor.CPU)
	assert.Error(t, nn.LoadStateDict[*cpu.CPUBackend](dst, extra))
}

func TestParameter_LoadConvertsInt64(t *testing.T) {
	backend := cpu.New()
	bn := nn.NewBatchNorm2D(nn.Path("bn"), 1, backend)
	tracked := nn.ParameterMap[*cpu.CPUBackend](bn)["bn.num_batches_tracked"]
	assert.True(t, tracked.IsBuffer())

	src := tensor.MustRaw(tensor.Shape{}, tensor.Int64, tensor.CPU)
	src.AsInt64()[0] = 1234
	require.NoError(t, tracked.Load(src))
	assert.Equal(t, []float32{1234}, tracked.Tensor().Data())

	assert.Error(t, tracked.Load(tensor.MustRaw(tensor.Shape{2}, tensor.Float32, tensor.CPU)))
}
