package main

import (
	"fmt"
	"os"

	"github.com/icsd/icsd/cmd/icsd/commands"
	"github.com/icsd/icsd/internal/logx"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "icsd",
	Short: "icsd - cluster-aware service group supervisor",
	Long: `icsd supervises resources and groups of resources on a cluster node:
starting, stopping, monitoring, and failing them over according to their
declared dependencies and placement rules.

Available commands:
  start    - Run the node daemon in the foreground
  version  - Show build information`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logx.Initialize(false); err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(commands.StartCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
