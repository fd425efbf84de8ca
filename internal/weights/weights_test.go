package weights

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/born-ml/elannet/internal/backend/cpu"
	"github.com/born-ml/elannet/internal/nn"
	"github.com/born-ml/elannet/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testModel = nn.Sequential[*cpu.CPUBackend]

// newTestModel builds conv(2→4, 3×3) + bn(4) with keys under "convs.".
func newTestModel() *testModel {
	backend := cpu.New()
	root := nn.Path("convs")
	return nn.NewSequential[*cpu.CPUBackend](
		nn.NewConv2D(root.Sub(0), nn.Conv2DConfig{In: 2, Out: 4, Kernel: 3, Padding: 1}, backend),
		nn.NewBatchNorm2D(root.Sub(1), 4, backend),
	)
}

func filled(shape tensor.Shape, v float32) *tensor.RawTensor {
	raw := tensor.MustRaw(shape, tensor.Float32, tensor.CPU)
	for i := range raw.AsFloat32() {
		raw.AsFloat32()[i] = v
	}
	return raw
}

func param(m *testModel, key string) []float32 {
	return nn.ParameterMap[*cpu.CPUBackend](m)[key].Tensor().Data()
}

func TestFilter(t *testing.T) {
	model := map[string]tensor.Shape{
		"a.weight": {4, 2},
		"a.bias":   {4},
		"b.weight": {3},
	}
	state := map[string]*tensor.RawTensor{
		"a.weight":  filled(tensor.Shape{4, 2}, 1),
		"a.bias":    filled(tensor.Shape{5}, 1),
		"head.bias": filled(tensor.Shape{10}, 1),
	}

	kept, report := Filter(model, state)

	assert.Len(t, kept, 1)
	assert.Contains(t, kept, "a.weight")
	assert.Equal(t, []string{"a.weight"}, report.Applied)
	assert.Equal(t, []string{"head.bias"}, report.Unexpected)
	require.Len(t, report.Mismatched, 1)
	assert.Equal(t, Mismatch{Key: "a.bias", Model: tensor.Shape{4}, Checkpoint: tensor.Shape{5}}, report.Mismatched[0])
	assert.Equal(t, []string{"b.weight"}, report.Missing)
	assert.Equal(t, 2, report.Dropped())
}

func TestLoadState_DropsAndKeepsValues(t *testing.T) {
	model := newTestModel()
	before := append([]float32(nil), param(model, "convs.0.weight")...)

	tracked := tensor.MustRaw(tensor.Shape{}, tensor.Int64, tensor.CPU)
	tracked.AsInt64()[0] = 77

	var logs bytes.Buffer
	state := map[string]*tensor.RawTensor{
		"convs.0.weight":              filled(tensor.Shape{4, 2, 5, 5}, 9), // wrong kernel size
		"convs.1.running_mean":        filled(tensor.Shape{4}, 0.5),
		"convs.1.running_var":         filled(tensor.Shape{4}, 2),
		"convs.1.num_batches_tracked": tracked,
		"fc.weight":                   filled(tensor.Shape{10, 4}, 1), // not in the model
	}

	report, err := LoadState[*cpu.CPUBackend](model, state, log.New(&logs, "", 0))
	require.NoError(t, err)

	assert.Equal(t, []string{"convs.1.num_batches_tracked", "convs.1.running_mean", "convs.1.running_var"}, report.Applied)
	assert.Equal(t, []string{"fc.weight"}, report.Unexpected)
	require.Len(t, report.Mismatched, 1)

	assert.Equal(t, before, param(model, "convs.0.weight"), "mismatched entry must not touch the model")
	assert.Equal(t, []float32{0.5, 0.5, 0.5, 0.5}, param(model, "convs.1.running_mean"))
	assert.Equal(t, []float32{77}, param(model, "convs.1.num_batches_tracked"))
	assert.Equal(t, []float32{1, 1, 1, 1}, param(model, "convs.1.weight"), "missing entries keep their init")

	assert.Contains(t, logs.String(), "dropping fc.weight: not in model")
	assert.Contains(t, logs.String(), "dropping convs.0.weight")
}

func TestSaveLoadFile_RoundTrip(t *testing.T) {
	src, dst := newTestModel(), newTestModel()
	copy(param(src, "convs.1.bias"), []float32{1, 2, 3, 4})

	path := filepath.Join(t.TempDir(), "model.safetensors")
	require.NoError(t, Save[*cpu.CPUBackend](src, path, map[string]string{"variant": "test"}))

	ckpt, err := OpenCheckpoint(path)
	require.NoError(t, err)
	assert.Equal(t, FormatSafeTensors, ckpt.Format)
	assert.Equal(t, "test", ckpt.Metadata["variant"])
	assert.Contains(t, ckpt.Names(), "model.convs.0.weight")

	report, err := LoadFile[*cpu.CPUBackend](dst, path, nil)
	require.NoError(t, err)
	assert.Len(t, report.Applied, 6)
	assert.Empty(t, report.Missing)

	assert.Equal(t, param(src, "convs.0.weight"), param(dst, "convs.0.weight"))
	assert.Equal(t, []float32{1, 2, 3, 4}, param(dst, "convs.1.bias"))
}

func TestModelState_BareStateDict(t *testing.T) {
	ckpt := &Checkpoint{Tensors: map[string]*tensor.RawTensor{
		"fc.weight": filled(tensor.Shape{1}, 1),
	}}
	assert.Contains(t, ckpt.ModelState(), "fc.weight")

	ckpt.Tensors["model.fc.bias"] = filled(tensor.Shape{1}, 1)
	state := ckpt.ModelState()
	assert.Len(t, state, 1)
	assert.Contains(t, state, "fc.bias")
}

func TestReadSafeTensors_HalfPrecision(t *testing.T) {
	header := []byte(`{"h":{"dtype":"F16","shape":[2],"data_offsets":[0,4]},"b":{"dtype":"BF16","shape":[1],"data_offsets":[4,6]}}`)
	var buf bytes.Buffer
	size := make([]byte, 8)
	size[0] = byte(len(header))
	buf.Write(size)
	buf.Write(header)
	buf.Write([]byte{0x00, 0x3C, 0x00, 0xC0}) // 1.0, -2.0
	buf.Write([]byte{0x40, 0x40})             // 3.0

	ckpt, err := ReadCheckpoint(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []float32{1, -2}, ckpt.Tensors["h"].AsFloat32())
	assert.Equal(t, []float32{3}, ckpt.Tensors["b"].AsFloat32())
}

func TestReadSafeTensors_Invalid(t *testing.T) {
	_, err := ReadSafeTensors([]byte{1, 2})
	assert.ErrorIs(t, err, ErrInvalidHeader)

	header := []byte(`{"x":{"dtype":"F32","shape":[4],"data_offsets":[0,16]}}`)
	data := append(make([]byte, 8), header...)
	data[0] = byte(len(header))
	_, err = ReadSafeTensors(append(data, 0, 0, 0, 0))
	assert.ErrorIs(t, err, ErrOutOfBounds)

	// A truncated legacy torch.save stream is routed to the torch reader.
	_, err = ReadCheckpoint([]byte("\x80\x02\x8a\x0a\x6c\xfc\x9c\x46\xf9\x20\x6a\xa8"))
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

func TestDecodeTensor_Float16(t *testing.T) {
	tests := []struct {
		bits uint16
		want float32
	}{
		{0x0000, 0},
		{0x3C00, 1},
		{0xC000, -2},
		{0x3555, 0.333251953125},
		{0x7BFF, 65504},
		{0x0001, 5.960464477539063e-08}, // smallest subnormal
		{0x0200, 3.0517578125e-05},      // subnormal
	}
	for _, tt := range tests {
		raw, err := decodeTensor("F16", tensor.Shape{1}, []byte{byte(tt.bits), byte(tt.bits >> 8)})
		require.NoError(t, err)
		if got := raw.AsFloat32()[0]; got != tt.want {
			t.Errorf("F16 0x%04x = %v, want %v", tt.bits, got, tt.want)
		}
	}

	_, err := decodeTensor("F16", tensor.Shape{2}, []byte{0, 0})
	assert.ErrorIs(t, err, ErrOutOfBounds)
	_, err = decodeTensor("C64", tensor.Shape{1}, make([]byte, 8))
	assert.ErrorIs(t, err, ErrUnsupportedDType)
}

func TestHashPrefix(t *testing.T) {
	assert.Equal(t, "5c106cde", HashPrefix("resnet18-5c106cde.pth"))
	assert.Equal(t, "", HashPrefix("elannet.pth"))
	assert.Equal(t, "", HashPrefix("elannet_tiny.safetensors"))
}

// checkpointServer serves body at /<name> and counts requests.
func checkpointServer(t *testing.T, name string, body []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/"+name {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func savedModelBytes(t *testing.T, m *testModel) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "src.safetensors")
	require.NoError(t, Save[*cpu.CPUBackend](m, path, nil))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestLoad_FetchesOnceAndCaches(t *testing.T) {
	src := newTestModel()
	copy(param(src, "convs.1.running_var"), []float32{5, 6, 7, 8})
	srv, hits := checkpointServer(t, "tiny.safetensors", savedModelBytes(t, src))

	var progress bytes.Buffer
	opts := Options{CacheDir: t.TempDir(), CheckHash: true, Progress: &progress}

	for i := 0; i < 2; i++ {
		dst := newTestModel()
		report, err := Load[*cpu.CPUBackend](context.Background(), dst, srv.URL+"/tiny.safetensors", opts)
		require.NoError(t, err)
		assert.Len(t, report.Applied, 6)
		assert.Equal(t, []float32{5, 6, 7, 8}, param(dst, "convs.1.running_var"))
	}

	assert.Equal(t, int32(1), hits.Load(), "second load must come from the cache")
	assert.FileExists(t, filepath.Join(opts.CacheDir, "tiny.safetensors"))
	assert.NotEmpty(t, progress.String())

	leftovers, err := filepath.Glob(filepath.Join(opts.CacheDir, "*.partial"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFetch_HashPrefix(t *testing.T) {
	body := []byte("checkpoint bytes")
	sum := sha256.Sum256(body)
	good := "ckpt-" + hex.EncodeToString(sum[:])[:8] + ".safetensors"

	srv, _ := checkpointServer(t, good, body)
	path, err := Fetch(context.Background(), srv.URL+"/"+good, Options{CacheDir: t.TempDir(), CheckHash: true})
	require.NoError(t, err)
	assert.NoError(t, VerifyFile(path))

	bad := "ckpt-00000000.safetensors"
	srv, _ = checkpointServer(t, bad, body)
	dir := t.TempDir()
	_, err = Fetch(context.Background(), srv.URL+"/"+bad, Options{CacheDir: dir, CheckHash: true})
	assert.ErrorIs(t, err, ErrChecksumMismatch)
	assert.NoFileExists(t, filepath.Join(dir, bad))

	// Without CheckHash the same file is accepted.
	_, err = Fetch(context.Background(), srv.URL+"/"+bad, Options{CacheDir: dir})
	assert.NoError(t, err)
}

func TestFetch_ReverifiesCachedFile(t *testing.T) {
	body := []byte("checkpoint bytes")
	sum := sha256.Sum256(body)
	name := "ckpt-" + hex.EncodeToString(sum[:])[:8] + ".pth"

	srv, hits := checkpointServer(t, name, body)
	var logs bytes.Buffer
	opts := Options{CacheDir: t.TempDir(), CheckHash: true, Logger: log.New(&logs, "", 0)}

	path, err := Fetch(context.Background(), srv.URL+"/"+name, opts)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("truncated"), 0o600))
	assert.ErrorIs(t, VerifyFile(path), ErrChecksumMismatch)

	path, err = Fetch(context.Background(), srv.URL+"/"+name, opts)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load(), "a corrupt cached file is downloaded again")
	assert.Contains(t, logs.String(), "is corrupt")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, body, data)

	// Without CheckHash the cached file is trusted as is.
	require.NoError(t, os.WriteFile(path, []byte("truncated"), 0o600))
	opts.CheckHash = false
	_, err = Fetch(context.Background(), srv.URL+"/"+name, opts)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetch_Errors(t *testing.T) {
	srv, _ := checkpointServer(t, "present.safetensors", []byte("x"))

	_, err := Fetch(context.Background(), srv.URL+"/absent.safetensors", Options{CacheDir: t.TempDir()})
	assert.ErrorIs(t, err, ErrBadStatus)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Fetch(ctx, srv.URL+"/present.safetensors", Options{CacheDir: t.TempDir()})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = CachePath(t.TempDir(), "https://example.com/")
	assert.Error(t, err)
}
