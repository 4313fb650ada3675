package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/roasbeef/clinbox/internal/checkpoint"
	"github.com/roasbeef/clinbox/internal/config"
	"github.com/roasbeef/clinbox/internal/task"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration, saved sessions and pending tasks",
	Long: `Display whether the configuration is complete, the masked credentials,
any interrupted triage sessions and the number of pending tasks.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

// statusReport is what `status` prints.
type statusReport struct {
	ConfigPath  string               `json:"config_path"`
	MailSource  string               `json:"mail_source"`
	AIProvider  string               `json:"ai_provider"`
	Problems    []string             `json:"problems,omitempty"`
	Secrets     []config.Entry       `json:"secrets"`
	Sessions    []checkpoint.Summary `json:"sessions"`
	PendingTask int                  `json:"pending_tasks"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := checkFormat(); err != nil {
		return err
	}

	ctx := cmd.Context()

	return invoke(ctx, func(cfg *config.Config, tasks *task.Store,
		cps *checkpoint.Store) error {

		report := statusReport{
			ConfigPath: cfg.Path(),
			MailSource: cfg.Mail().Source,
			AIProvider: cfg.AI().Provider,
		}

		if err := cfg.Validate(); err != nil {
			report.Problems = strings.Split(err.Error(), "\n")
		}

		for _, e := range cfg.Show() {
			if config.IsSecret(e.Key) {
				report.Secrets = append(report.Secrets, e)
			}
		}

		sessions, err := cps.List(ctx)
		if err != nil {
			return err
		}
		report.Sessions = sessions

		pending, err := tasks.ListPending(ctx)
		if err != nil {
			return err
		}
		report.PendingTask = len(pending)

		if outputFormat == "json" {
			return outputJSON(cmd.OutOrStdout(), report)
		}

		fmt.Fprint(cmd.OutOrStdout(), formatStatus(&report))

		return nil
	})
}

// formatStatus formats a status report for display.
func formatStatus(r *statusReport) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Config:      %s\n", r.ConfigPath))
	sb.WriteString(fmt.Sprintf("Mail source: %s\n", r.MailSource))
	sb.WriteString(fmt.Sprintf("AI provider: %s\n", r.AIProvider))

	if len(r.Problems) == 0 {
		sb.WriteString("Status:      ready\n")
	} else {
		sb.WriteString("Status:      incomplete\n")
		for _, p := range r.Problems {
			sb.WriteString(fmt.Sprintf("  - %s\n", p))
		}
	}

	sb.WriteString("\nCredentials:\n")
	for _, e := range r.Secrets {
		value := e.Value
		if value == "" {
			value = "(not set)"
		}
		sb.WriteString(fmt.Sprintf("  %-20s %s\n", e.Key, value))
	}

	sb.WriteString("\nSaved sessions:\n")
	if len(r.Sessions) == 0 {
		sb.WriteString("  none\n")
	}
	for _, s := range r.Sessions {
		sb.WriteString(fmt.Sprintf("  %-22s %d of %d left, saved %s\n",
			s.Filter.String(), s.Pending, s.Total,
			s.UpdatedAt.Local().Format(time.DateTime)))
	}

	sb.WriteString(fmt.Sprintf("\nPending tasks: %d\n", r.PendingTask))

	return sb.String()
}

// writeEntries prints key/value pairs aligned on the key column.
func writeEntries(w io.Writer, entries []config.Entry) {
	for _, e := range entries {
		fmt.Fprintf(w, "%-28s %s\n", e.Key, e.Value)
	}
}
