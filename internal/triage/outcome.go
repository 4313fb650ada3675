// Package triage drives a triage session: the ordered queue of messages,
// the analysis pipeline running ahead of it, and the per-item state
// machine that executes the user's decisions.
package triage

import (
	"fmt"

	"github.com/roasbeef/clinbox/internal/mailsource"
)

// OutcomeKind is what happened to a queue item.
type OutcomeKind uint8

const (
	OutcomePending OutcomeKind = iota
	OutcomeArchived
	OutcomeDeleted
	OutcomeTaskCreated
	OutcomeReplied
	OutcomeSkipped
	OutcomeFailed
)

// AllOutcomeKinds lists the terminal kinds in display order.
var AllOutcomeKinds = []OutcomeKind{
	OutcomeArchived, OutcomeDeleted, OutcomeTaskCreated, OutcomeReplied,
	OutcomeSkipped, OutcomeFailed,
}

var outcomeNames = map[OutcomeKind]string{
	OutcomePending:     "pending",
	OutcomeArchived:    "archived",
	OutcomeDeleted:     "deleted",
	OutcomeTaskCreated: "task_created",
	OutcomeReplied:     "replied",
	OutcomeSkipped:     "skipped",
	OutcomeFailed:      "failed",
}

// String returns the stored name of the kind.
func (k OutcomeKind) String() string {
	if name, ok := outcomeNames[k]; ok {
		return name
	}

	return fmt.Sprintf("outcome(%d)", uint8(k))
}

// ParseOutcomeKind is the inverse of String.
func ParseOutcomeKind(s string) (OutcomeKind, error) {
	for k, name := range outcomeNames {
		if name == s {
			return k, nil
		}
	}

	return 0, fmt.Errorf("unknown outcome %q", s)
}

// Outcome is the result recorded for a queue item. Once terminal it never
// changes.
type Outcome struct {
	Kind OutcomeKind

	// Reason explains a Failed outcome.
	Reason string
}

// Pending returns the outcome of an unprocessed item.
func Pending() Outcome {
	return Outcome{Kind: OutcomePending}
}

// Resolved returns a terminal outcome of the given kind.
func Resolved(kind OutcomeKind) Outcome {
	return Outcome{Kind: kind}
}

// Failed returns a Failed outcome with reason.
func Failed(reason string) Outcome {
	return Outcome{Kind: OutcomeFailed, Reason: reason}
}

// IsTerminal returns true for every kind except Pending.
func (o Outcome) IsTerminal() bool {
	return o.Kind != OutcomePending
}

// String returns the kind, with the reason for failures.
func (o Outcome) String() string {
	if o.Kind == OutcomeFailed && o.Reason != "" {
		return fmt.Sprintf("%v (%s)", o.Kind, o.Reason)
	}

	return o.Kind.String()
}

// QueueItem is a message in the queue and its outcome.
type QueueItem struct {
	Ref     mailsource.MessageRef
	Outcome Outcome
}

// Snapshot is the persisted form of a queue. Replaying it yields the same
// order and the same terminal outcomes.
type Snapshot struct {
	Filter   mailsource.Filter
	Refs     []mailsource.MessageRef
	Cursor   int
	Outcomes []Outcome
}

// Stats counts the outcomes recorded during one Run.
type Stats struct {
	Counts map[OutcomeKind]int

	// Total is the queue length and Remaining the number of items still
	// pending when Run returned.
	Total     int
	Remaining int

	// Resumed is set when the queue came from a checkpoint.
	Resumed bool

	// Quit is set when the user ended the session early.
	Quit bool
}

func newStats() *Stats {
	return &Stats{Counts: make(map[OutcomeKind]int)}
}

// Processed returns the number of items resolved during the run.
func (s *Stats) Processed() int {
	n := 0
	for _, c := range s.Counts {
		n += c
	}

	return n
}

// ByName returns the counts keyed by outcome name, for JSON output.
func (s *Stats) ByName() map[string]int {
	out := make(map[string]int, len(s.Counts))
	for k, c := range s.Counts {
		out[k.String()] = c
	}

	return out
}
