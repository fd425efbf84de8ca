package weights

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/born-ml/elannet/internal/tensor"
	"github.com/x448/float16"
)

// SafeTensors format:
// [8 bytes: header_size (uint64 LE)]
// [header_size bytes: JSON header]
// [tensor data: raw bytes]

// maxHeaderSize bounds the JSON header read from untrusted files.
const maxHeaderSize = 100 * 1024 * 1024

// SafeTensorInfo describes a tensor in SafeTensors format.
type SafeTensorInfo struct {
	DType       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"` // [start, end]
}

// parseSafeTensorsHeader splits the header JSON into metadata and tensor entries.
func parseSafeTensorsHeader(data []byte) (map[string]string, map[string]SafeTensorInfo, error) {
	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawMap); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}

	var metadata map[string]string
	if metadataRaw, ok := rawMap["__metadata__"]; ok {
		if err := json.Unmarshal(metadataRaw, &metadata); err != nil {
			return nil, nil, fmt.Errorf("%w: metadata: %w", ErrInvalidHeader, err)
		}
	}

	infos := make(map[string]SafeTensorInfo, len(rawMap))
	for key, value := range rawMap {
		if key == "__metadata__" {
			continue
		}
		var info SafeTensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return nil, nil, fmt.Errorf("%w: tensor %s: %w", ErrInvalidHeader, key, err)
		}
		infos[key] = info
	}
	return metadata, infos, nil
}

// ReadSafeTensors parses a complete SafeTensors file held in memory.
// F16 and BF16 tensors are widened to float32.
func ReadSafeTensors(data []byte) (*Checkpoint, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: file too short (%d bytes)", ErrInvalidHeader, len(data))
	}

	headerSize := binary.LittleEndian.Uint64(data[:8])
	if headerSize > maxHeaderSize || headerSize > uint64(len(data)-8) {
		return nil, fmt.Errorf("%w: header size %d", ErrInvalidHeader, headerSize)
	}

	metadata, infos, err := parseSafeTensorsHeader(data[8 : 8+headerSize])
	if err != nil {
		return nil, err
	}

	body := data[8+headerSize:]
	ckpt := &Checkpoint{
		Format:   FormatSafeTensors,
		Tensors:  make(map[string]*tensor.RawTensor, len(infos)),
		Metadata: metadata,
	}
	for name, info := range infos {
		start, end := info.DataOffsets[0], info.DataOffsets[1]
		if start < 0 || end < start || end > int64(len(body)) {
			return nil, fmt.Errorf("%w: %s: [%d, %d] of %d", ErrOutOfBounds, name, start, end, len(body))
		}
		raw, err := decodeTensor(info.DType, tensor.Shape(info.Shape), body[start:end])
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", name, err)
		}
		ckpt.Tensors[name] = raw
	}
	return ckpt, nil
}

// decodeTensor builds a RawTensor from little-endian element bytes.
// F16 and BF16 are widened to Float32.
func decodeTensor(dtype string, shape tensor.Shape, data []byte) (*tensor.RawTensor, error) {
	if dtype == "F16" || dtype == "BF16" {
		return widenHalf(dtype, shape, data)
	}

	dt, ok := tensor.DataTypeFromCode(dtype)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDType, dtype)
	}
	raw, err := tensor.NewRaw(shape, dt, tensor.CPU)
	if err != nil {
		return nil, err
	}
	if len(data) != raw.ByteSize() {
		return nil, fmt.Errorf("%w: %d bytes for shape %v %s", ErrOutOfBounds, len(data), shape, dtype)
	}
	copy(raw.Data(), data)
	return raw, nil
}

func widenHalf(dtype string, shape tensor.Shape, data []byte) (*tensor.RawTensor, error) {
	n := shape.NumElements()
	if len(data) != 2*n {
		return nil, fmt.Errorf("%w: %d bytes for %d %s elements", ErrOutOfBounds, len(data), n, dtype)
	}
	raw, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	if err != nil {
		return nil, err
	}
	out := raw.AsFloat32()
	for i := range out {
		bits := binary.LittleEndian.Uint16(data[2*i:])
		if dtype == "F16" {
			out[i] = float16.Frombits(bits).Float32()
		} else {
			// bfloat16 is the upper half of a float32.
			out[i] = math.Float32frombits(uint32(bits) << 16)
		}
	}
	return raw, nil
}

// WriteSafeTensors writes tensors in SafeTensors format.
//
// Tensors are written in alphabetical order by name.
func WriteSafeTensors(w io.Writer, tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]any, len(names)+1)
	if len(metadata) > 0 {
		header["__metadata__"] = metadata
	}

	var offset int64
	for _, name := range names {
		raw := tensors[name]
		size := int64(raw.ByteSize())
		header[name] = SafeTensorInfo{
			DType:       raw.DType().Code(),
			Shape:       append([]int{}, raw.Shape()...),
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	// Pad with spaces to an 8-byte boundary, as the reference writer does.
	if pad := len(headerJSON) % 8; pad != 0 {
		headerJSON = append(headerJSON, bytes.Repeat([]byte{' '}, 8-pad)...)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, name := range names {
		if _, err := w.Write(tensors[name].Data()); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", name, err)
		}
	}
	return nil
}

// SaveSafeTensors writes tensors to a SafeTensors file at path.
func SaveSafeTensors(path string, tensors map[string]*tensor.RawTensor, metadata map[string]string) (err error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return WriteSafeTensors(file, tensors, metadata)
}
