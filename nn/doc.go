// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the layers ELANNet is built from.
//
// Every layer implements Module: Forward maps a float32 tensor to a
// float32 tensor and Parameters lists the layer's state in construction
// order. Parameters carry their full PyTorch state-dict key (for example
// "layer_2.1.cv3.0.convs.1.running_mean"), assigned from a Path when the
// layer is built, so a model's state dict is just its parameter list.
//
// # Layers
//
//   - Conv2D: grouped, dilated 2D convolution
//   - BatchNorm2D: inference batch norm with running statistics
//   - SiLU, LeakyReLU, ReLU: activations
//   - MaxPool2D, AdaptiveAvgPool2D, Flatten
//   - Linear: fully connected classifier
//   - Sequential: ordered container
//
// # State Dicts
//
//	sd := nn.StateDict[B](model)          // key → RawTensor
//	err := nn.LoadStateDict[B](model, sd) // strict: keys and shapes must match
//
// For non-strict loading from checkpoints, see the loader package.
package nn
