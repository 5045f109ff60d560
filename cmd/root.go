package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "civicwatch",
	Short: "CivicWatch local government data tracker",
	Long: `CivicWatch ingests local government civic data (meetings, elections,
ordinances) from external sources and serves freshness-aware views of it.

Connectors bind one jurisdiction and data kind to the parser that fetches it.
Use the sweep command to run all enabled connectors on a schedule, the serve
command to expose the refresh and freshness API, and the run command to
trigger individual connectors or scopes by hand.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
