// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package elannet provides the ELANNet classification backbones.
//
// Three variants share a five-stage layout ending in global average
// pooling and a linear classifier:
//
//	name           stem               downsampling   ELAN depth   activation   depthwise
//	elannet        3 convs            DownSample     2            SiLU         no
//	elannet_tiny   1 conv, stride 2   max-pool       1            LeakyReLU    no
//	elannet_nano   1 conv, stride 2   max-pool       1            LeakyReLU    yes
//
// Forward maps images [B, 3, H, W] (H and W divisible by 32) to logits
// [B, num_classes]. ForwardFeatures returns the five stage outputs at
// strides 2 … 32 for use as a detection backbone.
//
// Example:
//
//	backend := cpu.New()
//	model, err := elannet.Build("elannet", backend,
//	    elannet.WithPretrained(ctx, loader.DefaultOptions()))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logits := model.Forward(images) // [B, 1000]
package elannet

import (
	"context"

	"github.com/born-ml/elannet/internal/elan"
	"github.com/born-ml/elannet/internal/tensor"
	"github.com/born-ml/elannet/internal/weights"
)

// Backbone is an ELANNet classifier.
type Backbone[B tensor.Backend] = elan.Backbone[B]

// Stage is one resolution level of a Backbone.
type Stage[B tensor.Backend] = elan.Stage[B]

// Summary describes a Backbone's stages and parameter counts.
type Summary = elan.Summary

// Variant names one of the ELANNet configurations.
type Variant = elan.Variant

// Supported variants.
const (
	Large = elan.Large
	Tiny  = elan.Tiny
	Nano  = elan.Nano
)

// URL is the published checkpoint of the large variant.
const URL = elan.LargeURL

// DefaultNumClasses is the default classifier width.
const DefaultNumClasses = elan.DefaultNumClasses

// Errors returned by the factory.
var (
	ErrUnknownVariant      = elan.ErrUnknownVariant
	ErrNoPretrainedWeights = elan.ErrNoPretrainedWeights
)

// Option configures Build and New.
type Option = elan.Option

// WithNumClasses sets the classifier width (default 1000).
func WithNumClasses(n int) Option {
	return elan.WithNumClasses(n)
}

// WithDepthwise overrides the variant's depthwise default.
func WithDepthwise(depthwise bool) Option {
	return elan.WithDepthwise(depthwise)
}

// WithPretrained loads the variant's published checkpoint.
func WithPretrained(ctx context.Context, opts weights.Options) Option {
	return elan.WithPretrained(ctx, opts)
}

// WithWeightsURL replaces the checkpoint URL used by WithPretrained.
func WithWeightsURL(url string) Option {
	return elan.WithWeightsURL(url)
}

// Build constructs the backbone named "elannet", "elannet_tiny" or
// "elannet_nano".
func Build[B tensor.Backend](name string, backend B, opts ...Option) (*Backbone[B], error) {
	return elan.Build(name, backend, opts...)
}

// New constructs the backbone for variant v.
func New[B tensor.Backend](v Variant, backend B, opts ...Option) (*Backbone[B], error) {
	return elan.New(v, backend, opts...)
}

// ParseVariant maps a model name to its Variant.
func ParseVariant(name string) (Variant, error) {
	return elan.ParseVariant(name)
}

// Variants returns all variants.
func Variants() []Variant {
	return elan.Variants()
}

// PretrainedURL returns the checkpoint URL of v, if one is published.
func PretrainedURL(v Variant) (string, bool) {
	return elan.PretrainedURL(v)
}
