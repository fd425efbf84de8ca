package imagenet

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/elannet/internal/backend/cpu"
	"github.com/born-ml/elannet/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestCenterCrop(t *testing.T) {
	tests := []struct {
		name   string
		bounds image.Rectangle
		want   image.Rectangle
	}{
		{"square", image.Rect(0, 0, 256, 256), image.Rect(16, 16, 240, 240)},
		{"landscape", image.Rect(0, 0, 512, 256), image.Rect(144, 16, 368, 240)},
		{"offset", image.Rect(10, 20, 266, 276), image.Rect(26, 36, 250, 260)},
		{"tiny", image.Rect(0, 0, 1, 1), image.Rect(0, 0, 1, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CenterCrop(tt.bounds))
		})
	}
}

func TestPreprocess_SolidColor(t *testing.T) {
	img := solid(40, 30, color.RGBA{R: 255, G: 0, B: 128, A: 255})
	const size = 8

	dst := make([]float32, 3*size*size)
	Preprocess(dst, img, size)

	want := [3]float32{
		(1 - Mean[0]) / Std[0],
		(0 - Mean[1]) / Std[1],
		(128.0/255 - Mean[2]) / Std[2],
	}
	for c := 0; c < 3; c++ {
		for i := 0; i < size*size; i++ {
			assert.InDelta(t, want[c], dst[c*size*size+i], 1e-5)
		}
	}

	assert.Panics(t, func() { Preprocess(make([]float32, 5), img, size) })
}

func TestBatch(t *testing.T) {
	backend := cpu.New()
	images := []image.Image{
		solid(32, 32, color.RGBA{A: 255}),
		solid(64, 48, color.RGBA{R: 255, G: 255, B: 255, A: 255}),
	}

	x, err := Batch(images, 16, backend)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3, 16, 16}, x.Shape())
	assert.InDelta(t, -Mean[0]/Std[0], x.At(0, 0, 5, 5), 1e-5)
	assert.InDelta(t, (1-Mean[2])/Std[2], x.At(1, 2, 7, 3), 1e-5)

	_, err = Batch[*cpu.CPUBackend](nil, 16, backend)
	assert.Error(t, err)
	_, err = Batch(images, 0, backend)
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, solid(5, 7, color.RGBA{G: 200, A: 255})))
	require.NoError(t, f.Close())

	img, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 5, 7), img.Bounds())

	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o600))
	_, err = Open(path)
	assert.Error(t, err)

	_, err = Open(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}
