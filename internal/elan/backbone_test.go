package elan_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/born-ml/elannet/internal/backend/cpu"
	"github.com/born-ml/elannet/internal/elan"
	"github.com/born-ml/elannet/internal/nn"
	"github.com/born-ml/elannet/internal/tensor"
	"github.com/born-ml/elannet/internal/weights"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackbone_Forward224(t *testing.T) {
	for _, v := range elan.Variants() {
		t.Run(v.String(), func(t *testing.T) {
			if v == elan.Large && testing.Short() {
				t.Skip("large forward at 224 is slow")
			}
			b := cpu.New()

			model, err := elan.New(v, b)
			require.NoError(t, err)

			out := model.Forward(randn(tensor.Shape{1, 3, 224, 224}, b))
			assert.Equal(t, tensor.Shape{1, 1000}, out.Shape())
		})
	}
}

func TestBackbone_StageResolution(t *testing.T) {
	for _, v := range elan.Variants() {
		t.Run(v.String(), func(t *testing.T) {
			b := cpu.New()

			model, err := elan.New(v, b, elan.WithNumClasses(10))
			require.NoError(t, err)

			const size = 64
			feats := model.ForwardFeatures(randn(tensor.Shape{2, 3, size, size}, b))
			require.Len(t, feats, 5)

			for k, f := range feats {
				side := size >> (k + 1)
				assert.Equal(t, tensor.Shape{2, model.OutChannels()[k], side, side}, f.Shape(), "stage %d", k+1)
				assert.Equal(t, 1<<(k+1), model.Stages()[k].Reduction)
			}

			logits := model.Head(feats[4])
			assert.Equal(t, tensor.Shape{2, 10}, logits.Shape())
		})
	}
}

func TestBackbone_OutChannels(t *testing.T) {
	b := cpu.New()

	large, err := elan.New(elan.Large, b)
	require.NoError(t, err)
	assert.Equal(t, []int{64, 256, 512, 1024, 1024}, large.OutChannels())

	tiny, err := elan.New(elan.Tiny, b)
	require.NoError(t, err)
	assert.Equal(t, []int{32, 64, 128, 256, 512}, tiny.OutChannels())
}

func TestBackbone_RejectsBadInput(t *testing.T) {
	b := cpu.New()

	model, err := elan.New(elan.Tiny, b)
	require.NoError(t, err)
	assert.Panics(t, func() { model.Forward(randn(tensor.Shape{1, 1, 32, 32}, b)) })
	assert.Panics(t, func() { model.Forward(randn(tensor.Shape{3, 32, 32}, b)) })
}

func TestBackbone_StateDictKeys(t *testing.T) {
	b := cpu.New()

	shapesOf := func(m *elan.Backbone[backend]) map[string]tensor.Shape {
		return weights.ModelShapes[backend](m)
	}

	large, err := elan.New(elan.Large, b)
	require.NoError(t, err)
	ls := shapesOf(large)
	assert.Equal(t, tensor.Shape{32, 3, 3, 3}, ls["layer_1.0.convs.0.weight"])
	assert.Equal(t, tensor.Shape{64}, ls["layer_2.1.cv3.0.convs.1.running_mean"])
	assert.Equal(t, tensor.Shape{64, 64, 3, 3}, ls["layer_2.1.cv4.1.convs.0.weight"])
	assert.Equal(t, tensor.Shape{128, 128, 3, 3}, ls["layer_3.0.cv2.1.convs.0.weight"])
	assert.Equal(t, tensor.Shape{256, 256, 1, 1}, ls["layer_5.1.cv1.convs.0.weight"])
	assert.Equal(t, tensor.Shape{}, ls["layer_5.1.out.convs.1.num_batches_tracked"])
	assert.Equal(t, tensor.Shape{1000, 1024}, ls["fc.weight"])
	assert.Equal(t, tensor.Shape{1000}, ls["fc.bias"])

	tiny, err := elan.New(elan.Tiny, b)
	require.NoError(t, err)
	ts := shapesOf(tiny)
	assert.Equal(t, tensor.Shape{32, 3, 3, 3}, ts["layer_1.convs.0.weight"])
	assert.Equal(t, tensor.Shape{64, 32, 3, 3}, ts["layer_2.0.convs.0.weight"])
	assert.Equal(t, tensor.Shape{32, 64, 1, 1}, ts["layer_3.1.cv1.convs.0.weight"])
	assert.NotContains(t, ts, "layer_3.0.convs.0.weight", "max-pool has no parameters")
	assert.Equal(t, tensor.Shape{1000, 512}, ts["fc.weight"])
}

func TestNew_NanoDepthwiseDefault(t *testing.T) {
	b := cpu.New()

	nano, err := elan.New(elan.Nano, b)
	require.NoError(t, err)
	assert.True(t, nano.Depthwise())

	shapes := weights.ModelShapes[backend](nano)
	assert.Equal(t, tensor.Shape{3, 1, 3, 3}, shapes["layer_1.convs.0.weight"])
	assert.Equal(t, tensor.Shape{32, 3, 1, 1}, shapes["layer_1.convs.3.weight"])

	plain, err := elan.New(elan.Nano, b, elan.WithDepthwise(false))
	require.NoError(t, err)
	assert.False(t, plain.Depthwise())
	assert.Equal(t, tensor.Shape{32, 3, 3, 3}, weights.ModelShapes[backend](plain)["layer_1.convs.0.weight"])

	tiny, err := elan.New(elan.Tiny, b)
	require.NoError(t, err)
	assert.False(t, tiny.Depthwise())
	assert.Less(t, nn.NumParameters[backend](nano), nn.NumParameters[backend](tiny))
}

func TestBuild(t *testing.T) {
	b := cpu.New()

	model, err := elan.Build("elannet_nano", b, elan.WithNumClasses(20))
	require.NoError(t, err)
	assert.Equal(t, elan.Nano, model.Variant())
	assert.Equal(t, 20, model.NumClasses())

	_, err = elan.Build("resnet50", b)
	assert.ErrorIs(t, err, elan.ErrUnknownVariant)

	_, err = elan.Build("elannet", b, elan.WithNumClasses(0))
	assert.Error(t, err)

	_, err = elan.New(elan.Variant(9), b)
	assert.ErrorIs(t, err, elan.ErrUnknownVariant)
}

func TestNew_PretrainedUnavailable(t *testing.T) {
	_, err := elan.New(elan.Tiny, cpu.New(), elan.WithPretrained(context.Background(), weights.Options{}))
	assert.ErrorIs(t, err, elan.ErrNoPretrainedWeights)
}

func TestNew_PretrainedFromURL(t *testing.T) {
	b := cpu.New()
	dir := t.TempDir()

	// A checkpoint trained with a 10-class head: the backbone keys load,
	// the head keys are dropped for shape mismatch.
	source, err := elan.New(elan.Tiny, b, elan.WithNumClasses(10))
	require.NoError(t, err)
	ckpt := filepath.Join(dir, "elannet_tiny.safetensors")
	require.NoError(t, weights.Save[backend](source, ckpt, map[string]string{"epoch": "90"}))

	srv := httptest.NewServer(http.FileServer(http.Dir(dir)))
	defer srv.Close()

	var logs bytes.Buffer
	opts := weights.Options{
		CacheDir: filepath.Join(dir, "cache"),
		Logger:   newLogger(&logs),
	}
	model, err := elan.New(elan.Tiny, b,
		elan.WithPretrained(context.Background(), opts),
		elan.WithWeightsURL(srv.URL+"/elannet_tiny.safetensors"),
	)
	require.NoError(t, err)

	want := nn.ParameterMap[backend](source)
	got := nn.ParameterMap[backend](model)
	for _, key := range []string{"layer_1.convs.0.weight", "layer_5.1.out.convs.1.running_var"} {
		assert.Equal(t, want[key].Tensor().Data(), got[key].Tensor().Data(), key)
	}
	assert.Equal(t, tensor.Shape{1000, 512}, got["fc.weight"].Shape())
	assert.NotEqual(t, want["fc.bias"].Shape(), got["fc.bias"].Shape())

	assert.Contains(t, logs.String(), "dropping fc.weight: checkpoint shape [10, 512], model shape [1000, 512]")
	assert.Contains(t, logs.String(), "dropping fc.bias")
}

func TestSummary(t *testing.T) {
	b := cpu.New()

	model, err := elan.New(elan.Tiny, b)
	require.NoError(t, err)

	s := model.Summary()
	require.Len(t, s.Stages, 5)
	assert.Equal(t, "layer_3", s.Stages[2].Name)
	assert.Equal(t, 512*1000+1000, s.HeadParams)
	assert.Equal(t, nn.NumParameters[backend](model), s.TotalParams)

	var buf bytes.Buffer
	n, err := s.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "elannet_tiny (depthwise=false, classes=1000)", lines[0])
	assert.Len(t, lines, 1+1+5+2)
	assert.True(t, strings.HasPrefix(lines[2], "layer_1"))
	assert.Contains(t, lines[len(lines)-1], "total")
}
