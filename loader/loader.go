// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package loader restores pretrained ELANNet weights.
//
// Checkpoints may be PyTorch torch.save archives (.pth) or SafeTensors
// files. Training checkpoints that nest the weights under "model" are
// unwrapped. Loading is tolerant: checkpoint keys the model does not have,
// or whose shapes differ, are dropped and logged, and the rest are applied.
//
// Example usage:
//
//	import (
//	    "github.com/born-ml/elannet/backend/cpu"
//	    "github.com/born-ml/elannet/elannet"
//	    "github.com/born-ml/elannet/loader"
//	)
//
//	model, _ := elannet.Build("elannet", cpu.New(), elannet.WithNumClasses(80))
//	report, err := loader.Load(ctx, model, elannet.URL, loader.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(report) // the 1000-class fc head is dropped
package loader

import (
	"context"
	"log"

	"github.com/born-ml/elannet/internal/nn"
	"github.com/born-ml/elannet/internal/tensor"
	"github.com/born-ml/elannet/internal/weights"
)

// Options controls caching, hash checks, progress and logging.
type Options = weights.Options

// Report lists applied, dropped and missing keys of a load.
type Report = weights.Report

// Mismatch is a key dropped for shape disagreement.
type Mismatch = weights.Mismatch

// Checkpoint is a decoded checkpoint file.
type Checkpoint = weights.Checkpoint

// Format identifies the checkpoint encoding.
type Format = weights.Format

// Supported formats.
const (
	FormatSafeTensors = weights.FormatSafeTensors
	FormatTorch       = weights.FormatTorch
)

// Errors returned by the loader.
var (
	ErrChecksumMismatch = weights.ErrChecksumMismatch
	ErrBadStatus        = weights.ErrBadStatus
	ErrInvalidHeader    = weights.ErrInvalidHeader
	ErrUnsupportedDType = weights.ErrUnsupportedDType
)

// DefaultOptions caches under the user cache dir, verifies hash prefixes
// and logs to stderr.
func DefaultOptions() Options {
	return weights.DefaultOptions()
}

// DefaultCacheDir returns the checkpoint cache directory.
func DefaultCacheDir() string {
	return weights.DefaultCacheDir()
}

// Fetch downloads url into the cache, or returns the cached path.
func Fetch(ctx context.Context, url string, opts Options) (string, error) {
	return weights.Fetch(ctx, url, opts)
}

// Load fetches the checkpoint at url and applies it to m.
func Load[B tensor.Backend](ctx context.Context, m nn.Module[B], url string, opts Options) (*Report, error) {
	return weights.Load(ctx, m, url, opts)
}

// LoadFile applies the checkpoint at path to m.
func LoadFile[B tensor.Backend](m nn.Module[B], path string, logger *log.Logger) (*Report, error) {
	return weights.LoadFile(m, path, logger)
}

// LoadState filters state against m, logs dropped keys and applies the rest.
func LoadState[B tensor.Backend](m nn.Module[B], state map[string]*tensor.RawTensor, logger *log.Logger) (*Report, error) {
	return weights.LoadState(m, state, logger)
}

// OpenCheckpoint reads and decodes a checkpoint file.
func OpenCheckpoint(path string) (*Checkpoint, error) {
	return weights.OpenCheckpoint(path)
}

// Save writes the state dict of m as SafeTensors under "model.".
func Save[B tensor.Backend](m nn.Module[B], path string, metadata map[string]string) error {
	return weights.Save(m, path, metadata)
}
