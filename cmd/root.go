package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "composebot",
	Short:        "Compose extension bot",
	Long:         "Routes compose extension invokes (search, link unfurling, action commands and bot message previews) to handlers.",
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
