package main

import (
	"github.com/spf13/cobra"
)

var summaryFlags modelFlags

var summaryCmd = &cobra.Command{
	Use:   "summary [variant]",
	Short: "Print stages, channels and parameter counts",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		model, err := summaryFlags.build(cmd.Context(), cmd, args, newBackend())
		if err != nil {
			return err
		}
		_, err = model.Summary().WriteTo(cmd.OutOrStdout())
		return err
	},
}

func init() {
	summaryFlags.register(summaryCmd)
	rootCmd.AddCommand(summaryCmd)
}
