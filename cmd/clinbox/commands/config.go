package commands

import (
	"fmt"

	"github.com/roasbeef/clinbox/internal/config"
	"github.com/spf13/cobra"
)

// configCmd is the parent command for settings.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and change settings",
	Long: `View and change settings stored in ~/.clinbox/config.json.

Secrets (gmail.client_secret, imap.password, smtp.password, ai.api_key) are
kept in the OS keyring when one is available. Every key can also be set
with a CLINBOX_ environment variable, e.g. CLINBOX_AI_API_KEY.`,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a setting",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print every setting with secrets masked",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	return invoke(cmd.Context(), func(cfg *config.Config) error {
		if err := cfg.Set(key, value); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}

		shown := value
		if config.IsSecret(key) {
			shown = config.Mask(value)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, shown)

		return nil
	})
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if !config.IsKnown(key) {
		return fmt.Errorf("%w: %s", config.ErrUnknownKey, key)
	}

	return invoke(cmd.Context(), func(cfg *config.Config) error {
		fmt.Fprintln(cmd.OutOrStdout(), cfg.Get(key))
		return nil
	})
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if err := checkFormat(); err != nil {
		return err
	}

	return invoke(cmd.Context(), func(cfg *config.Config) error {
		entries := cfg.Show()
		if outputFormat == "json" {
			return outputJSON(cmd.OutOrStdout(), entries)
		}

		writeEntries(cmd.OutOrStdout(), entries)

		return nil
	})
}
