package main

import (
	"context"
	"fmt"

	"github.com/born-ml/elannet/internal/backend/cpu"
	"github.com/born-ml/elannet/internal/elan"
	"github.com/spf13/cobra"
)

// modelFlags are shared by commands that build a backbone.
type modelFlags struct {
	pretrained bool
	depthwise  string
	numClasses int
}

func (f *modelFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.pretrained, "pretrained", false, "load the published checkpoint (elannet only)")
	cmd.Flags().StringVar(&f.depthwise, "depthwise", "", "force depthwise convolutions on or off (true|false)")
	cmd.Flags().IntVar(&f.numClasses, "classes", 0, "classifier width (default model.num_classes)")
}

// build constructs the backbone described by args and the flags.
func (f *modelFlags) build(ctx context.Context, cmd *cobra.Command, args []string, backend *cpu.CPUBackend) (*elan.Backbone[*cpu.CPUBackend], error) {
	variant, err := variantArg(args)
	if err != nil {
		return nil, err
	}

	numClasses := cfg.Model.NumClasses
	if f.numClasses > 0 {
		numClasses = f.numClasses
	}
	opts := []elan.Option{elan.WithNumClasses(numClasses)}

	switch f.depthwise {
	case "":
	case "true":
		opts = append(opts, elan.WithDepthwise(true))
	case "false":
		opts = append(opts, elan.WithDepthwise(false))
	default:
		return nil, fmt.Errorf("--depthwise: want true or false, got %q", f.depthwise)
	}

	if f.pretrained {
		opts = append(opts, elan.WithPretrained(ctx, cfg.WeightsOptions(progressWriter(cmd), newLogger())))
		if url, ok := cfg.WeightsURL(variant); ok {
			opts = append(opts, elan.WithWeightsURL(url))
		}
	}

	return elan.New(variant, backend, opts...)
}
