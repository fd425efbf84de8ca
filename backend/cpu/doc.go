// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for ELANNet inference.
//
// # Overview
//
// This package implements a CPU backend with:
//   - Pure Go implementation (no CGO)
//   - Im2col convolution on gonum BLAS, with direct depthwise and 1×1 paths
//   - Max pooling, adaptive average pooling and inference batch norm
//   - SiLU and LeakyReLU activations
//   - Kernels parallelized over batch×channel with errgroup
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/elannet/backend/cpu"
//	    "github.com/born-ml/elannet/elannet"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    model, err := elannet.Build("elannet_tiny", backend)
//	    ...
//	}
//
// # Thread Safety
//
// The CPU backend is safe for concurrent use. Each tensor operation
// allocates its own output and does not share mutable state.
package cpu
