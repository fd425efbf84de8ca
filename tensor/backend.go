// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/born-ml/elannet/internal/tensor"

// Backend defines the kernels a model runs on.
//
// Implementations:
//   - backend/cpu: pure Go on gonum BLAS, parallel over batch×channel
//
// Activations are optional capabilities: a backend that lacks SiLU or
// LeakyReLU panics when a model needs them.
type Backend = tensor.Backend

// ConvParams holds stride, padding, dilation and groups of a 2D convolution.
type ConvParams = tensor.ConvParams
