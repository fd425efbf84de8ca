package weights

import (
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/born-ml/elannet/internal/tensor"
	"github.com/nlpodyssey/gopickle/pickle"
	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"
)

// ReadTorchFile parses a checkpoint written by torch.save, either the zip
// format (PyTorch 1.6 and later) or the legacy format before it. Nested
// dicts are flattened with "." so that {"model": {"fc.weight": t}} yields
// the key "model.fc.weight". Scalar leaves (epoch, step, ...) are stored
// in Metadata. Tensors are copied out of their storages contiguously, so
// transposed or sliced views come out in row-major order.
func ReadTorchFile(path string) (*Checkpoint, error) {
	// Storage classes gopickle does not model (complex, quantized, ...)
	// end up here; everything else unknown becomes a generic object so
	// that pickled training arguments do not fail the load.
	var unsupported string
	newUnpickler := func(r io.Reader) pickle.Unpickler {
		u := pickle.NewUnpickler(r)
		u.FindClass = func(module, name string) (interface{}, error) {
			if module == "torch" && strings.HasSuffix(name, "Storage") {
				unsupported = module + "." + name
				return nil, fmt.Errorf("%w: %s", ErrUnsupportedDType, unsupported)
			}
			return types.NewGenericClass(module, name), nil
		}
		return u
	}

	root, err := pytorch.LoadWithUnpickler(path, newUnpickler)
	switch {
	case unsupported != "":
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDType, unsupported)
	case err != nil:
		return nil, fmt.Errorf("%w: torch.save file: %w", ErrInvalidHeader, err)
	}

	fl := &torchFlattener{
		ckpt: &Checkpoint{
			Format:   FormatTorch,
			Tensors:  make(map[string]*tensor.RawTensor),
			Metadata: make(map[string]string),
		},
		seen: make(map[*pytorch.Tensor]*tensor.RawTensor),
	}
	if err := fl.walk("", root); err != nil {
		return nil, err
	}
	return fl.ckpt, nil
}

// ReadTorch is ReadTorchFile for a checkpoint already in memory. The torch
// reader works on files, so data is spilled to a temporary one.
func ReadTorch(data []byte) (*Checkpoint, error) {
	f, err := os.CreateTemp("", "elannet-*.pth")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(f.Name()) }()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}
	return ReadTorchFile(f.Name())
}

// pyMapping is a pickled dict (types.Dict).
type pyMapping interface {
	Keys() []interface{}
	Get(key interface{}) (interface{}, bool)
}

// torchFlattener walks the unpickled object graph into a Checkpoint.
// Tensors reached twice (pickle memo) map to the same RawTensor.
type torchFlattener struct {
	ckpt *Checkpoint
	seen map[*pytorch.Tensor]*tensor.RawTensor
}

func (fl *torchFlattener) walk(prefix string, v interface{}) error {
	join := func(k interface{}) string {
		if prefix == "" {
			return fmt.Sprint(k)
		}
		return prefix + "." + fmt.Sprint(k)
	}

	switch x := v.(type) {
	case *pytorch.Tensor:
		raw, err := fl.tensor(x)
		if err != nil {
			return fmt.Errorf("tensor %s: %w", prefix, err)
		}
		if raw != nil {
			fl.ckpt.Tensors[prefix] = raw
		}
	case *types.OrderedDict:
		for e := x.List.Front(); e != nil; e = e.Next() {
			entry := e.Value.(*types.OrderedDictEntry)
			if err := fl.walk(join(entry.Key), entry.Value); err != nil {
				return err
			}
		}
	case pyMapping:
		for _, k := range x.Keys() {
			value, _ := x.Get(k)
			if err := fl.walk(join(k), value); err != nil {
				return err
			}
		}
	case string, int, int64, float64, bool, *big.Int:
		if prefix != "" {
			fl.ckpt.Metadata[prefix] = fmt.Sprint(x)
		}
	}
	return nil
}

// tensor copies t out of its storage. Empty tensors carry no weights and
// yield nil.
func (fl *torchFlattener) tensor(t *pytorch.Tensor) (*tensor.RawTensor, error) {
	if raw, ok := fl.seen[t]; ok {
		return raw, nil
	}
	if len(t.Size) != len(t.Stride) {
		return nil, fmt.Errorf("%w: size %v with stride %v", ErrInvalidHeader, t.Size, t.Stride)
	}
	shape := make(tensor.Shape, len(t.Size))
	copy(shape, t.Size)
	if shape.NumElements() == 0 {
		return nil, nil
	}

	var raw *tensor.RawTensor
	var err error
	switch s := t.Source.(type) {
	case *pytorch.FloatStorage:
		raw, err = gatherRaw(tensor.Float32, (*tensor.RawTensor).AsFloat32, s.Data, t, shape)
	case *pytorch.HalfStorage:
		// gopickle widens half storages to float32 while reading.
		raw, err = gatherRaw(tensor.Float32, (*tensor.RawTensor).AsFloat32, s.Data, t, shape)
	case *pytorch.DoubleStorage:
		raw, err = gatherRaw(tensor.Float64, (*tensor.RawTensor).AsFloat64, s.Data, t, shape)
	case *pytorch.LongStorage:
		raw, err = gatherRaw(tensor.Int64, (*tensor.RawTensor).AsInt64, s.Data, t, shape)
	case *pytorch.IntStorage:
		raw, err = gatherRaw(tensor.Int32, (*tensor.RawTensor).AsInt32, s.Data, t, shape)
	case *pytorch.ByteStorage:
		raw, err = gatherRaw(tensor.Uint8, (*tensor.RawTensor).AsUint8, s.Data, t, shape)
	case *pytorch.BoolStorage:
		raw, err = gatherRaw(tensor.Bool, (*tensor.RawTensor).AsBool, s.Data, t, shape)
	default:
		return nil, fmt.Errorf("%w: storage %T", ErrUnsupportedDType, t.Source)
	}
	if err != nil {
		return nil, err
	}
	fl.seen[t] = raw
	return raw, nil
}

func gatherRaw[T any](dt tensor.DataType, view func(*tensor.RawTensor) []T, src []T, t *pytorch.Tensor, shape tensor.Shape) (*tensor.RawTensor, error) {
	raw, err := tensor.NewRaw(shape, dt, tensor.CPU)
	if err != nil {
		return nil, err
	}
	if err := gather(view(raw), src, t.StorageOffset, t.Size, t.Stride); err != nil {
		return nil, err
	}
	return raw, nil
}

// gather copies the strided view (offset, size, stride) of src into dst in
// row-major order.
func gather[T any](dst, src []T, offset int, size, stride []int) error {
	index := make([]int, len(size))
	for i := range dst {
		at := offset
		for d, idx := range index {
			at += idx * stride[d]
		}
		if at < 0 || at >= len(src) {
			return fmt.Errorf("%w: element %d outside storage of %d", ErrOutOfBounds, at, len(src))
		}
		dst[i] = src[at]

		for d := len(index) - 1; d >= 0; d-- {
			index[d]++
			if index[d] < size[d] {
				break
			}
			index[d] = 0
		}
	}
	return nil
}
