package weights

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/born-ml/elannet/internal/tensor"
)

// Format identifies the on-disk checkpoint encoding.
type Format string

// Supported formats.
const (
	FormatSafeTensors Format = "safetensors"
	FormatTorch       Format = "torch"
)

// ModelKey is the entry of a training checkpoint that holds the model
// state dict, as in {"model": state_dict, "epoch": ...}.
const ModelKey = "model"

// Checkpoint is a decoded checkpoint file: a flat map of dotted names to
// tensors plus string metadata.
type Checkpoint struct {
	Format   Format
	Tensors  map[string]*tensor.RawTensor
	Metadata map[string]string
}

// Leading bytes of the two torch.save layouts: a zip archive, or the
// legacy stream that opens with the pickled magic number.
var (
	zipMagic         = []byte("PK\x03\x04")
	legacyTorchMagic = []byte("\x80\x02\x8a\x0a")
)

func isTorch(header []byte) bool {
	return bytes.HasPrefix(header, zipMagic) || bytes.HasPrefix(header, legacyTorchMagic)
}

// ReadCheckpoint decodes a checkpoint, detecting the format from its
// leading bytes: torch.save output (zip or legacy) or SafeTensors.
func ReadCheckpoint(data []byte) (*Checkpoint, error) {
	if isTorch(data) {
		return ReadTorch(data)
	}
	return ReadSafeTensors(data)
}

// OpenCheckpoint reads and decodes the checkpoint at path.
func OpenCheckpoint(path string) (*Checkpoint, error) {
	header, err := readHeader(path, len(legacyTorchMagic))
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var ckpt *Checkpoint
	if isTorch(header) {
		ckpt, err = ReadTorchFile(path)
	} else {
		var data []byte
		//nolint:gosec // G304: File path comes from user input, which is expected for model loading
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read checkpoint: %w", err)
		}
		ckpt, err = ReadSafeTensors(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ckpt, nil
}

// readHeader returns up to n leading bytes of the file at path.
func readHeader(path string, n int) ([]byte, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	header := make([]byte, n)
	read, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return header[:read], nil
}

// ModelState extracts the nested "model" mapping. Keys under "model." are
// returned with the prefix stripped; a checkpoint without any such key is
// treated as a bare state dict and returned whole.
func (c *Checkpoint) ModelState() map[string]*tensor.RawTensor {
	const prefix = ModelKey + "."

	nested := make(map[string]*tensor.RawTensor)
	for name, raw := range c.Tensors {
		if rest, ok := strings.CutPrefix(name, prefix); ok {
			nested[rest] = raw
		}
	}
	if len(nested) > 0 {
		return nested
	}

	whole := make(map[string]*tensor.RawTensor, len(c.Tensors))
	for name, raw := range c.Tensors {
		whole[name] = raw
	}
	return whole
}

// Names returns the sorted tensor names.
func (c *Checkpoint) Names() []string {
	return sortedKeys(c.Tensors)
}

// sortedKeys returns the keys of m in order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
