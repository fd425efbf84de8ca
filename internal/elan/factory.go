package elan

import (
	"context"
	"fmt"

	"github.com/born-ml/elannet/internal/tensor"
	"github.com/born-ml/elannet/internal/weights"
)

// DefaultNumClasses is the ImageNet classifier width.
const DefaultNumClasses = 1000

// Option configures the factory.
type Option func(*options)

type options struct {
	numClasses int
	depthwise  *bool

	pretrained bool
	ctx        context.Context //nolint:containedctx // carried from WithPretrained to the load
	weights    weights.Options
	url        string
}

// WithNumClasses sets the classifier width (default 1000).
func WithNumClasses(n int) Option {
	return func(o *options) {
		o.numClasses = n
	}
}

// WithDepthwise overrides the variant's depthwise default.
func WithDepthwise(depthwise bool) Option {
	return func(o *options) {
		o.depthwise = &depthwise
	}
}

// WithPretrained loads the variant's published checkpoint after
// construction. ctx bounds the download.
func WithPretrained(ctx context.Context, opts weights.Options) Option {
	return func(o *options) {
		o.pretrained = true
		o.ctx = ctx
		o.weights = opts
	}
}

// WithWeightsURL replaces the variant's checkpoint URL. It only takes
// effect together with WithPretrained.
func WithWeightsURL(url string) Option {
	return func(o *options) {
		o.url = url
	}
}

// Build constructs the backbone named name: "elannet", "elannet_tiny" or
// "elannet_nano".
//
// Example:
//
//	backend := cpu.New()
//	model, err := elan.Build("elannet_tiny", backend)
//	logits := model.Forward(images) // [B, 1000]
func Build[B tensor.Backend](name string, backend B, opts ...Option) (*Backbone[B], error) {
	v, err := ParseVariant(name)
	if err != nil {
		return nil, err
	}
	return New(v, backend, opts...)
}

// New constructs the backbone for variant v.
func New[B tensor.Backend](v Variant, backend B, opts ...Option) (*Backbone[B], error) {
	if _, ok := variantNames[v]; !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownVariant, v)
	}

	o := options{numClasses: DefaultNumClasses}
	for _, opt := range opts {
		opt(&o)
	}
	if o.numClasses <= 0 {
		return nil, fmt.Errorf("invalid number of classes %d", o.numClasses)
	}

	depthwise := v.DefaultDepthwise()
	if o.depthwise != nil {
		depthwise = *o.depthwise
	}

	model := newBackbone(v, depthwise, o.numClasses, backend)
	if !o.pretrained {
		return model, nil
	}

	url := o.url
	if url == "" {
		var ok bool
		if url, ok = PretrainedURL(v); !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoPretrainedWeights, v)
		}
	}
	ctx := o.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	if o.weights.Logger != nil {
		o.weights.Logger.Printf("loading pretrained weights for %s", v)
	}
	if _, err := weights.Load[B](ctx, model, url, o.weights); err != nil {
		return nil, fmt.Errorf("load pretrained %s: %w", v, err)
	}
	return model, nil
}
