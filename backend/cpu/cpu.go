// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/elannet/internal/backend/cpu"
	"github.com/born-ml/elannet/tensor"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option = internalcpu.Option

// Info describes the host CPU.
type Info = internalcpu.Info

// WithWorkers caps the goroutines a kernel may use. 1 runs serially;
// n <= 0 uses one per logical CPU.
func WithWorkers(n int) Option {
	return internalcpu.WithWorkers(n)
}

// New creates a new CPU backend.
//
// Example:
//
//	import (
//	    "github.com/born-ml/elannet/backend/cpu"
//	    "github.com/born-ml/elannet/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New(cpu.WithWorkers(4))
//	    x := tensor.Zeros[float32](tensor.Shape{1, 3, 224, 224}, backend)
//	}
func New(opts ...Option) *Backend {
	return internalcpu.New(opts...)
}
