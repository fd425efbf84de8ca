// Package cpu implements the CPU backend: im2col convolution on gonum BLAS,
// pooling, batch normalization and activations, parallelized over
// batch×channel.
package cpu

import (
	"fmt"

	"github.com/born-ml/elannet/internal/parallel"
	"github.com/born-ml/elannet/internal/tensor"
)

var _ tensor.Backend = (*CPUBackend)(nil)

// CPUBackend implements tensor operations on CPU.
type CPUBackend struct {
	device   tensor.Device
	parallel parallel.Config
}

// Option configures a CPUBackend.
type Option func(*CPUBackend)

// WithWorkers caps the number of goroutines a kernel may use.
// n <= 0 keeps the default (one per logical CPU), n == 1 runs kernels serially.
func WithWorkers(n int) Option {
	return func(cpu *CPUBackend) {
		cpu.parallel = cpu.parallel.WithWorkers(n)
	}
}

// New creates a new CPU backend.
func New(opts ...Option) *CPUBackend {
	cpu := &CPUBackend{
		device:   tensor.CPU,
		parallel: parallel.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(cpu)
	}
	return cpu
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Workers returns the configured goroutine limit (1 when serial).
func (cpu *CPUBackend) Workers() int {
	if !cpu.parallel.Enabled {
		return 1
	}
	return cpu.parallel.NumWorkers
}

// Reshape returns a view of t with a new shape (zero-copy).
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if err := newShape.Validate(); err != nil {
		panic(fmt.Sprintf("reshape: invalid shape: %v", err))
	}
	if t.NumElements() != newShape.NumElements() {
		panic(fmt.Sprintf("reshape: incompatible shapes: %v -> %v (different number of elements)",
			t.Shape(), newShape))
	}
	return t.View(newShape)
}

// requireFloat32 panics unless every tensor is float32.
// All compute kernels of this backend run in float32.
func requireFloat32(op string, ts ...*tensor.RawTensor) {
	for _, t := range ts {
		if t.DType() != tensor.Float32 {
			panic(fmt.Sprintf("%s: unsupported dtype %s (float32 only)", op, t.DType()))
		}
	}
}
