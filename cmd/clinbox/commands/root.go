package commands

import (
	"github.com/spf13/cobra"
)

var (
	// configPath is the path to the config file.
	configPath string

	// dbPath is the path to the SQLite database.
	dbPath string

	// debugLevel overrides log.level.
	debugLevel string

	// outputFormat controls output format (text, json).
	outputFormat string
)

// rootCmd is the base command for the CLI. Without a subcommand it runs a
// triage session.
var rootCmd = &cobra.Command{
	Use:   "clinbox",
	Short: "Triage your inbox from the terminal",
	Long: `clinbox walks through your inbox one message at a time, showing an AI
summary of each and letting you archive, delete, reply or turn it into a
task with a single key.

Progress is checkpointed after every decision, so an interrupted session
picks up where it left off.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTriage,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags.
	rootCmd.PersistentFlags().StringVar(
		&configPath, "config", "",
		"Path to the config file (default: ~/.clinbox/config.json)",
	)
	rootCmd.PersistentFlags().StringVar(
		&dbPath, "db", "",
		"Path to SQLite database (default: storage.db_path)",
	)
	rootCmd.PersistentFlags().StringVar(
		&debugLevel, "debuglevel", "",
		"Log level: trace, debug, info, warn, error, critical",
	)
	rootCmd.PersistentFlags().StringVar(
		&outputFormat, "format", "text",
		"Output format: text, json",
	)

	addRunFlags(rootCmd)

	// Add subcommands.
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
