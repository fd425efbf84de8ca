package tensor

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// viewBackend is the smallest Backend that supports the shape-only
// methods of Tensor. Compute kernels live in internal/backend/cpu.
type viewBackend struct{}

var _ Backend = viewBackend{}

func (viewBackend) Add(_, _ *RawTensor) *RawTensor          { panic("not implemented") }
func (viewBackend) MatMul(_, _ *RawTensor) *RawTensor       { panic("not implemented") }
func (viewBackend) Transpose(_ *RawTensor, _ ...int) *RawTensor {
	panic("not implemented")
}
func (viewBackend) Reshape(t *RawTensor, s Shape) *RawTensor { return t.View(s) }
func (viewBackend) Conv2D(_, _ *RawTensor, _ ConvParams) *RawTensor {
	panic("not implemented")
}
func (viewBackend) MaxPool2D(_ *RawTensor, _, _ int) *RawTensor { panic("not implemented") }
func (viewBackend) AdaptiveAvgPool2D(_ *RawTensor, _, _ int) *RawTensor {
	panic("not implemented")
}
func (viewBackend) BatchNorm2D(_, _, _, _, _ *RawTensor, _ float64) *RawTensor {
	panic("not implemented")
}
func (viewBackend) Cat(_ []*RawTensor, _ int) *RawTensor { panic("not implemented") }
func (viewBackend) Name() string                         { return "view" }
func (viewBackend) Device() Device                       { return CPU }

func TestDataTypeSize(t *testing.T) {
	tests := []struct {
		dtype DataType
		size  int
	}{
		{Float32, 4},
		{Float64, 8},
		{Int32, 4},
		{Int64, 8},
		{Uint8, 1},
		{Bool, 1},
	}

	for _, tt := range tests {
		if got := tt.dtype.Size(); got != tt.size {
			t.Errorf("%s.Size() = %d, want %d", tt.dtype, got, tt.size)
		}
	}
}

func TestDataTypeCode(t *testing.T) {
	for _, dt := range []DataType{Float32, Float64, Int32, Int64, Uint8, Bool} {
		got, ok := DataTypeFromCode(dt.Code())
		require.True(t, ok, dt.String())
		assert.Equal(t, dt, got)
	}
	assert.Equal(t, "I64", Int64.Code())
	assert.Equal(t, "unknown", DataType(42).String())

	_, ok := DataTypeFromCode("F16")
	assert.False(t, ok, "half precision is widened by readers")
}

func TestShape(t *testing.T) {
	s := Shape{2, 3, 4}
	assert.Equal(t, 24, s.NumElements())
	assert.Equal(t, []int{12, 4, 1}, s.ComputeStrides())
	assert.True(t, s.Equal(Shape{2, 3, 4}))
	assert.False(t, s.Equal(Shape{2, 3}))
	assert.Equal(t, 2, s.NormalizeDim(-1))
	assert.Equal(t, "[2, 3, 4]", s.String())

	assert.Equal(t, 1, Shape{}.NumElements(), "scalar has one element")
	assert.Error(t, Shape{2, 0}.Validate())
	assert.Panics(t, func() { s.NormalizeDim(3) })
}

func TestConvParams_OutputSize(t *testing.T) {
	tests := []struct {
		name   string
		params ConvParams
		in, k  int
		want   int
	}{
		{"same 3x3", ConvParams{Padding: 1}, 224, 3, 224},
		{"stride 2", ConvParams{Stride: 2, Padding: 1}, 224, 3, 112},
		{"pointwise", ConvParams{}, 7, 1, 7},
		{"dilated", ConvParams{Padding: 2, Dilation: 2}, 10, 3, 10},
		{"valid", ConvParams{}, 5, 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.params.OutputSize(tt.in, tt.k))
		})
	}
}

func TestRawTensor_ViewSharesData(t *testing.T) {
	raw, err := RawFromFloat32(Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	view := raw.View(Shape{3, 2})
	view.AsFloat32()[0] = 42
	assert.Equal(t, float32(42), raw.AsFloat32()[0])

	clone := raw.Clone()
	clone.AsFloat32()[1] = -1
	assert.Equal(t, float32(2), raw.AsFloat32()[1])

	assert.Panics(t, func() { raw.View(Shape{4}) })
}

func TestRawTensor_ToFloat32(t *testing.T) {
	raw := MustRaw(Shape{3}, Int64, CPU)
	copy(raw.AsInt64(), []int64{1, -2, 300})

	got, err := raw.ToFloat32()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, -2, 300}, got)

	_, err = MustRaw(Shape{1}, Bool, CPU).ToFloat32()
	assert.Error(t, err)
}

func TestFromSlice(t *testing.T) {
	b := viewBackend{}

	x, err := FromSlice[float32](Arange[float32](6, b).Data(), Shape{2, 3}, b)
	require.NoError(t, err)
	assert.Equal(t, float32(4), x.At(1, 1))

	x.Set(9, 0, 2)
	assert.Equal(t, float32(9), x.Data()[2])

	_, err = FromSlice[float32]([]float32{1, 2}, Shape{3}, b)
	assert.Error(t, err)
}

func TestFlatten(t *testing.T) {
	b := viewBackend{}

	x := Zeros[float32](Shape{8, 512, 1, 1}, b)
	assert.Equal(t, Shape{8, 512}, x.Flatten(1).Shape())
	assert.Equal(t, Shape{4096}, x.Flatten(0).Shape())
}

func TestRandnFrom_Reproducible(t *testing.T) {
	b := viewBackend{}

	a := RandnFrom[float32](Shape{5}, rand.New(rand.NewSource(7)), b)
	c := RandnFrom[float32](Shape{5}, rand.New(rand.NewSource(7)), b)
	assert.Equal(t, a.Data(), c.Data())

	ones := Ones[float64](Shape{2, 2}, b)
	assert.Equal(t, []float64{1, 1, 1, 1}, ones.Data())
}
