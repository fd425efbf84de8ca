package elan

import "errors"

// Factory errors.
var (
	// ErrUnknownVariant is returned for a model name outside the variant table.
	ErrUnknownVariant = errors.New("unknown model variant")

	// ErrNoPretrainedWeights is returned when pretrained weights are
	// requested for a variant that has no checkpoint URL.
	ErrNoPretrainedWeights = errors.New("no pretrained weights for variant")
)
