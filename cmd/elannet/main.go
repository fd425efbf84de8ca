// Package main provides the elannet CLI: build ELANNet backbones, inspect
// them, fetch pretrained checkpoints and run forward passes on CPU.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/born-ml/elannet/internal/backend/cpu"
	"github.com/born-ml/elannet/internal/config"
	"github.com/born-ml/elannet/internal/elan"
	"github.com/spf13/cobra"
)

const version = "v0.1.0-dev"

var (
	cfgFile string
	vcfg    = config.New()
	cfg     *config.Config

	rootCmd = &cobra.Command{
		Use:   "elannet",
		Short: "ELANNet image classification backbones on CPU",
		Long: `elannet builds the ELANNet backbones (elannet, elannet_tiny, elannet_nano),
loads pretrained checkpoints and runs forward passes on the CPU backend.

Settings come from config.yaml (./, $XDG_CONFIG_HOME/elannet or
~/.config/elannet) and ELANNET_* environment variables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			var err error
			cfg, err = config.Load(vcfg, cfgFile)
			return err
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/elannet/config.yaml)")
	rootCmd.PersistentFlags().Int("workers", 0, "kernel goroutines (0 = one per CPU)")
	rootCmd.PersistentFlags().Bool("verbose", false, "log cache and loader activity")
	rootCmd.PersistentFlags().Bool("no-progress", false, "hide download progress")

	bindFlag("runtime.workers", "workers")
	bindFlag("ui.verbose", "verbose")
}

// bindFlag lets a persistent flag override a config key.
func bindFlag(key, flag string) {
	if err := vcfg.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newBackend returns the CPU backend configured by runtime.workers.
func newBackend() *cpu.CPUBackend {
	return cpu.New(cpu.WithWorkers(cfg.Runtime.Workers))
}

// newLogger logs to stderr when ui.verbose is set.
func newLogger() *log.Logger {
	if cfg.UI.Verbose {
		return log.New(os.Stderr, "elannet: ", log.LstdFlags)
	}
	return log.New(io.Discard, "", 0)
}

// variantArg resolves the optional [variant] argument, falling back to
// model.variant.
func variantArg(args []string) (elan.Variant, error) {
	if len(args) > 0 {
		return elan.ParseVariant(args[0])
	}
	return elan.ParseVariant(cfg.Model.Variant)
}

// progressWriter is stderr unless --no-progress was given.
func progressWriter(cmd *cobra.Command) io.Writer {
	if off, _ := cmd.Flags().GetBool("no-progress"); off {
		return nil
	}
	return os.Stderr
}
