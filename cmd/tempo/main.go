package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/tempo/cmd/tempo/commands"
	"github.com/teranos/tempo/logger"
)

var rootCmd = &cobra.Command{
	Use:   "tempo",
	Short: "tempo - persistent task scheduler",
	Long: `tempo - cron-like task scheduler with persistent run history.

Tasks run shell commands on a cron expression, a fixed interval, or at an
absolute date. Every run is recorded as a process log with its captured
output, queryable over the HTTP API or this CLI.

Available commands:
  serve   - Start the scheduler daemon and HTTP API
  task    - Manage tasks (add, ls, show, rm, run, stop)
  runs    - Inspect run history and captured output
  config  - Manage tempo configuration
  version - Show version information

Examples:
  tempo serve                                  # Start the daemon
  tempo task add --every 30s -- echo hello     # Schedule a command
  tempo task ls                                # List tasks
  tempo runs output 12 --follow                # Tail a run's output`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Commands with machine-readable output skip logger noise
		if cmd.Name() == "show" || cmd.Name() == "get" {
			return nil
		}
		verbosity, _ := cmd.Flags().GetCount("verbose")
		if err := logger.InitializeWithLevel(false, logger.VerbosityToLevel(verbosity)); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.TaskCmd)
	rootCmd.AddCommand(commands.RunsCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
