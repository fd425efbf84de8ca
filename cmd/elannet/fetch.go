package main

import (
	"fmt"
	"strings"

	"github.com/born-ml/elannet/internal/elan"
	"github.com/born-ml/elannet/internal/weights"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [variant|url]",
	Short: "Download a checkpoint into the cache and print its path",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url, err := checkpointURL(args)
		if err != nil {
			return err
		}

		opts := cfg.WeightsOptions(progressWriter(cmd), newLogger())
		path, err := weights.Fetch(cmd.Context(), url, opts)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <checkpoint>",
	Short: "List the tensors of a .pth or .safetensors checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ckpt, err := weights.OpenCheckpoint(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "format: %s\n", ckpt.Format)
		for _, key := range weights.Keys(ckpt.Metadata) {
			fmt.Fprintf(out, "meta %s = %s\n", key, ckpt.Metadata[key])
		}

		state := ckpt.ModelState()
		for _, key := range weights.Keys(state) {
			raw := state[key]
			fmt.Fprintf(out, "%s %s %v\n", key, raw.DType(), raw.Shape())
		}
		fmt.Fprintf(out, "%d tensors\n", len(state))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(inspectCmd)
}

// checkpointURL accepts a URL, a variant name, or nothing (model.variant).
// Configured weights.urls take precedence over the built-in table.
func checkpointURL(args []string) (string, error) {
	if len(args) > 0 && strings.Contains(args[0], "://") {
		return args[0], nil
	}

	v, err := variantArg(args)
	if err != nil {
		return "", err
	}
	if url, ok := cfg.WeightsURL(v); ok {
		return url, nil
	}
	if url, ok := elan.PretrainedURL(v); ok {
		return url, nil
	}
	return "", fmt.Errorf("%w: %s", elan.ErrNoPretrainedWeights, v)
}
