// Package imagenet turns decoded images into normalized [N, 3, H, W]
// float32 batches using the ImageNet evaluation transform: resize the
// shorter side to size·256/224, center-crop size×size, scale to [0, 1]
// and normalize per channel.
package imagenet

import (
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"os"

	"github.com/born-ml/elannet/internal/tensor"
	"golang.org/x/image/draw"
)

// Per-channel normalization constants (RGB).
var (
	Mean = [3]float32{0.485, 0.456, 0.406}
	Std  = [3]float32{0.229, 0.224, 0.225}
)

// DefaultSize is the evaluation resolution.
const DefaultSize = 224

// cropRatio is crop size / resize size.
const cropRatio = 224.0 / 256.0

// Open decodes a JPEG or PNG file.
func Open(path string) (image.Image, error) {
	f, err := os.Open(path) //nolint:gosec // G304: user-supplied image path
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// CenterCrop returns the centered square of img that the evaluation
// transform keeps.
func CenterCrop(bounds image.Rectangle) image.Rectangle {
	side := int(float64(min(bounds.Dx(), bounds.Dy())) * cropRatio)
	side = max(side, 1)
	x0 := bounds.Min.X + (bounds.Dx()-side)/2
	y0 := bounds.Min.Y + (bounds.Dy()-side)/2
	return image.Rect(x0, y0, x0+side, y0+side)
}

// Preprocess writes img as normalized CHW float32 values into dst, which
// must hold 3·size·size elements.
func Preprocess(dst []float32, img image.Image, size int) {
	if len(dst) != 3*size*size {
		panic(fmt.Sprintf("imagenet: dst has %d elements, want %d", len(dst), 3*size*size))
	}

	rgba := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(rgba, rgba.Bounds(), img, CenterCrop(img.Bounds()), draw.Src, nil)

	plane := size * size
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			off := rgba.PixOffset(x, y)
			i := y*size + x
			for c := 0; c < 3; c++ {
				v := float32(rgba.Pix[off+c]) / 255
				dst[c*plane+i] = (v - Mean[c]) / Std[c]
			}
		}
	}
}

// Batch preprocesses images into a [len(images), 3, size, size] tensor.
func Batch[B tensor.Backend](images []image.Image, size int, backend B) (*tensor.Tensor[float32, B], error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("imagenet: empty batch")
	}
	if size <= 0 {
		return nil, fmt.Errorf("imagenet: invalid size %d", size)
	}

	x := tensor.Zeros[float32](tensor.Shape{len(images), 3, size, size}, backend)
	data := x.Data()
	n := 3 * size * size
	for i, img := range images {
		Preprocess(data[i*n:(i+1)*n], img, size)
	}
	return x, nil
}
