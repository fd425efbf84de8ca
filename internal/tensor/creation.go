package tensor

import (
	"math"
	"math/rand"
)

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros[float32](Shape{3, 4}, backend)
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	var dummy T
	raw, err := NewRaw(shape, inferDataType(dummy), b.Device())
	if err != nil {
		panic(err)
	}
	return New[T, B](raw, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	var one T
	switch p := any(&one).(type) {
	case *float32:
		*p = 1
	case *float64:
		*p = 1
	case *int32:
		*p = 1
	case *int64:
		*p = 1
	case *uint8:
		*p = 1
	case *bool:
		*p = true
	}
	return Full[T, B](shape, one, b)
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	t := tensor.Full[float32](Shape{3, 3}, 3.14, backend)
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Randn creates a float tensor with values drawn from N(0, 1) using the
// package-level math/rand source.
func Randn[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	//nolint:gosec // G404: ML uses math/rand intentionally
	return RandnFrom[T, B](shape, rand.New(rand.NewSource(rand.Int63())), b)
}

// RandnFrom is Randn with an explicit random source, for reproducible inputs.
// Uses the Box-Muller transform. Only float32 and float64 are supported.
func RandnFrom[T DType, B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)

	normal := func(i, n int, set func(int, float64)) {
		u1 := rng.Float64()
		for u1 == 0 {
			u1 = rng.Float64()
		}
		u2 := rng.Float64()
		r := math.Sqrt(-2.0 * math.Log(u1))
		set(i, r*math.Cos(2.0*math.Pi*u2))
		if i+1 < n {
			set(i+1, r*math.Sin(2.0*math.Pi*u2))
		}
	}

	switch data := any(t.Data()).(type) {
	case []float32:
		for i := 0; i < len(data); i += 2 {
			normal(i, len(data), func(j int, v float64) { data[j] = float32(v) })
		}
	case []float64:
		for i := 0; i < len(data); i += 2 {
			normal(i, len(data), func(j int, v float64) { data[j] = v })
		}
	default:
		panic("Randn only supports float32 and float64 types")
	}
	return t
}

// Arange creates a 1-D float tensor holding 0, 1, ..., n-1.
// Handy for building inputs with known values in tests.
func Arange[T DType, B Backend](n int, b B) *Tensor[T, B] {
	t := Zeros[T, B](Shape{n}, b)
	switch data := any(t.Data()).(type) {
	case []float32:
		for i := range data {
			data[i] = float32(i)
		}
	case []float64:
		for i := range data {
			data[i] = float64(i)
		}
	case []int32:
		for i := range data {
			data[i] = int32(i)
		}
	case []int64:
		for i := range data {
			data[i] = int64(i)
		}
	default:
		panic("Arange only supports numeric types")
	}
	return t
}
