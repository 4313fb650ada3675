package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/roasbeef/clinbox/internal/task"
	"github.com/spf13/cobra"
)

// tasksCmd is the parent command for task operations. On its own it lists
// the pending tasks.
var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage tasks created during triage",
	Args:  cobra.NoArgs,
	RunE:  runTasksList,
}

// tasksListCmd lists tasks.
var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending tasks",
	Args:  cobra.NoArgs,
	RunE:  runTasksList,
}

// tasksDoneCmd marks a task complete.
var tasksDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a task as done",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksDone,
}

// tasksRmCmd deletes a task.
var tasksRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksRm,
}

// tasksAll includes completed tasks in listings.
var tasksAll bool

// shortIDLen is the id prefix shown in listings.
const shortIDLen = 8

func init() {
	tasksCmd.PersistentFlags().BoolVar(
		&tasksAll, "all", false, "Include completed tasks",
	)

	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksDoneCmd)
	tasksCmd.AddCommand(tasksRmCmd)
}

// taskJSON is the JSON form of a task.
type taskJSON struct {
	task.Task

	DueAt       *time.Time `json:"due_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func toTaskJSON(t task.Task) taskJSON {
	out := taskJSON{Task: t}
	t.DueAt.WhenSome(func(ts time.Time) {
		out.DueAt = &ts
	})
	t.CompletedAt.WhenSome(func(ts time.Time) {
		out.CompletedAt = &ts
	})

	return out
}

// formatTask renders a task as one listing line.
func formatTask(t task.Task) string {
	var sb strings.Builder

	if t.Completed() {
		sb.WriteString("[x] ")
	} else {
		sb.WriteString("[ ] ")
	}

	id := t.ID
	if len(id) > shortIDLen {
		id = id[:shortIDLen]
	}
	sb.WriteString(fmt.Sprintf("%s  %s", id, t.Title))

	if t.SourceSubject != "" && t.SourceSubject != t.Title {
		sb.WriteString(fmt.Sprintf("  (re: %s)", t.SourceSubject))
	}
	sb.WriteString(fmt.Sprintf("  %s", t.CreatedAt.Local().Format(
		"2006-01-02",
	)))
	t.DueAt.WhenSome(func(due time.Time) {
		sb.WriteString(fmt.Sprintf("  due %s",
			due.Local().Format("2006-01-02")))
	})

	return sb.String()
}

func printTasks(w io.Writer, tasks []task.Task) error {
	if outputFormat == "json" {
		out := make([]taskJSON, 0, len(tasks))
		for _, t := range tasks {
			out = append(out, toTaskJSON(t))
		}

		return outputJSON(w, out)
	}

	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks.")
		return nil
	}
	for _, t := range tasks {
		fmt.Fprintln(w, formatTask(t))
	}

	return nil
}

func runTasksList(cmd *cobra.Command, args []string) error {
	if err := checkFormat(); err != nil {
		return err
	}

	ctx := cmd.Context()

	return invoke(ctx, func(store *task.Store) error {
		list := store.ListPending
		if tasksAll {
			list = store.ListAll
		}

		tasks, err := list(ctx)
		if err != nil {
			return err
		}

		return printTasks(cmd.OutOrStdout(), tasks)
	})
}

// errAmbiguousID is returned when a prefix matches more than one task.
var errAmbiguousID = errors.New("ambiguous task id")

// resolveTaskID expands a listing prefix to a full task id.
func resolveTaskID(ctx context.Context, store *task.Store,
	prefix string) (string, error) {

	tasks, err := store.ListAll(ctx)
	if err != nil {
		return "", err
	}

	var match string
	for _, t := range tasks {
		switch {
		case t.ID == prefix:
			return t.ID, nil

		case strings.HasPrefix(t.ID, prefix):
			if match != "" {
				return "", fmt.Errorf("%w: %s", errAmbiguousID,
					prefix)
			}
			match = t.ID
		}
	}

	if match == "" {
		return "", fmt.Errorf("%w: %s", task.ErrNotFound, prefix)
	}

	return match, nil
}

func runTasksDone(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	return invoke(ctx, func(store *task.Store) error {
		id, err := resolveTaskID(ctx, store, args[0])
		if err != nil {
			return err
		}
		if err := store.Complete(ctx, id); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Task %s marked done.\n",
			id[:min(len(id), shortIDLen)])

		return nil
	})
}

func runTasksRm(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	return invoke(ctx, func(store *task.Store) error {
		id, err := resolveTaskID(ctx, store, args[0])
		if err != nil {
			return err
		}
		if err := store.Delete(ctx, id); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Task %s deleted.\n",
			id[:min(len(id), shortIDLen)])

		return nil
	})
}
