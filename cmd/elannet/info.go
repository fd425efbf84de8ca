package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show CPU features and backend settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		backend := newBackend()
		info := backend.Info()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "backend:  %s (%s)\n", backend.Name(), backend.Device())
		fmt.Fprintf(out, "cpu:      %s\n", info.Brand)
		fmt.Fprintf(out, "cores:    %d physical, %d logical\n", info.PhysicalCores, info.LogicalCores)
		fmt.Fprintf(out, "simd:     %s\n", strings.Join(info.Features, " "))
		fmt.Fprintf(out, "workers:  %d\n", info.Workers)
		fmt.Fprintf(out, "go:       %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(out, "cache:    %s\n", cfg.Cache.Dir)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "elannet %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(versionCmd)
}
