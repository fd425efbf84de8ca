// Package tensor provides the core tensor types used by the ELANNet backbone.
package tensor

// DType is a constraint for supported tensor element types.
type DType interface {
	~float32 | ~float64 | ~int32 | ~int64 | ~uint8 | ~bool
}

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
//
// Checkpoints store weights as Float32 and BatchNorm's num_batches_tracked
// as Int64; the other types show up in training checkpoints and metadata.
const (
	Float32 DataType = iota
	Float64
	Int32
	Int64
	Uint8
	Bool
)

// dataTypeInfo describes one DataType: its element size, its Go name and
// the code checkpoint headers use for it (SafeTensors "dtype").
var dataTypeInfo = [...]struct {
	size int
	name string
	code string
}{
	Float32: {4, "float32", "F32"},
	Float64: {8, "float64", "F64"},
	Int32:   {4, "int32", "I32"},
	Int64:   {8, "int64", "I64"},
	Uint8:   {1, "uint8", "U8"},
	Bool:    {1, "bool", "BOOL"},
}

func (dt DataType) valid() bool {
	return dt >= 0 && int(dt) < len(dataTypeInfo)
}

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	if !dt.valid() {
		panic("unknown data type")
	}
	return dataTypeInfo[dt].size
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	if !dt.valid() {
		return "unknown"
	}
	return dataTypeInfo[dt].name
}

// Code returns the checkpoint dtype code of dt ("F32", "I64", ...).
func (dt DataType) Code() string {
	if !dt.valid() {
		return "unknown"
	}
	return dataTypeInfo[dt].code
}

// DataTypeFromCode resolves a checkpoint dtype code. Half precision codes
// (F16, BF16) have no DataType; readers widen them to Float32.
func DataTypeFromCode(code string) (DataType, bool) {
	for dt, info := range dataTypeInfo {
		if info.code == code {
			return DataType(dt), true
		}
	}
	return 0, false
}

// inferDataType infers DataType from a generic type T.
func inferDataType[T DType](dummy T) DataType {
	switch any(dummy).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case bool:
		return Bool
	default:
		panic("unsupported type")
	}
}
