// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor types used by ELANNet.
//
// # Overview
//
// Tensors are generic over their element type and their compute backend:
//   - Tensor[T, B]: typed tensor bound to a backend
//   - RawTensor: untyped storage with shape, dtype and device
//   - Backend: the kernel set a model runs on (see backend/cpu)
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/elannet/backend/cpu"
//	    "github.com/born-ml/elannet/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    images := tensor.Zeros[float32](tensor.Shape{1, 3, 224, 224}, backend)
//	    _ = images
//	}
//
// # Data Types
//
// Model parameters and activations are float32. Checkpoint tensors of
// other types (float16, bfloat16, int64, ...) are converted on load.
package tensor
