package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/roasbeef/clinbox/internal/build"
	"github.com/roasbeef/clinbox/internal/di"
	"github.com/roasbeef/clinbox/internal/mailsource"
	"github.com/roasbeef/clinbox/internal/triage"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Triage the inbox interactively",
	Long: `Triage the inbox one message at a time.

Keys: a archive, d delete, t create task, r reply, o open in browser,
v toggle full body, s skip, q quit. An interrupted session resumes from
its checkpoint unless --fresh is given.`,
	Args: cobra.NoArgs,
	RunE: runTriage,
}

// Run flags.
var (
	runMaxEmails int
	runAll       bool
	runWindow    int
	runFresh     bool
)

// addRunFlags registers the triage flags on cmd. The root command shares
// them so that a bare `clinbox` runs a session.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(
		&runMaxEmails, "max-emails", "n", mailsource.DefaultMaxResults,
		"Maximum number of messages to triage (default: "+
			"triage.max_emails)",
	)
	cmd.Flags().BoolVarP(
		&runAll, "all", "a", false,
		"Include read messages",
	)
	cmd.Flags().IntVar(
		&runWindow, "window", 0,
		"Number of messages analyzed ahead (default: triage.window)",
	)
	cmd.Flags().BoolVar(
		&runFresh, "fresh", false,
		"Discard any saved progress and start over",
	)
}

func init() {
	addRunFlags(runCmd)
}

// sessionFilter builds the message filter from the flags, falling back to
// the configured limit when -n was not given.
func sessionFilter(cmd *cobra.Command, configured int) mailsource.Filter {
	limit := runMaxEmails
	if !cmd.Flags().Changed("max-emails") && configured > 0 {
		limit = configured
	}

	return mailsource.Filter{
		UnreadOnly: !runAll,
		MaxResults: limit,
	}
}

// runTriage runs an interactive session until the queue is exhausted or
// the user quits.
func runTriage(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(
		cmd.Context(), os.Interrupt, syscall.SIGTERM,
	)
	defer cancel()

	return invoke(ctx, func(app *di.App) error {
		return triageWith(ctx, cmd, app)
	})
}

func triageWith(ctx context.Context, cmd *cobra.Command,
	app *di.App) error {

	log := app.Logging.Logger(build.SubsystemCLI)
	filter := sessionFilter(cmd, app.Config.Triage().MaxEmails)

	log.InfoContext(ctx, "Starting triage session",
		"filter", filter.String(), "fresh", runFresh)

	session := app.Session(di.SessionOptions{
		Fresh:  runFresh,
		Window: runWindow,
	})

	stats, err := session.Run(ctx, filter)
	if err != nil {
		if triage.IsInvariantViolation(err) {
			log.ErrorContext(ctx, "Triage session aborted",
				"err", err)
		}

		return err
	}

	log.InfoContext(ctx, "Triage session finished",
		"processed", stats.Processed(), "remaining", stats.Remaining,
		"quit", stats.Quit)

	if outputFormat == "json" {
		return outputJSON(cmd.OutOrStdout(), map[string]any{
			"total":     stats.Total,
			"remaining": stats.Remaining,
			"resumed":   stats.Resumed,
			"quit":      stats.Quit,
			"outcomes":  stats.ByName(),
		})
	}

	return nil
}
