// Package task persists the follow-up tasks created while triaging mail.
package task

import (
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Task is a to-do item created from a triaged message.
type Task struct {
	// ID is a random identifier assigned on creation.
	ID string `db:"id" json:"id"`

	Title       string `db:"title" json:"title"`
	Description string `db:"description" json:"description,omitempty"`

	// SourceMessageID is the mail source id of the message the task was
	// created from. At most one task exists per source message.
	SourceMessageID string `db:"source_message_id" json:"source_message_id"`

	SourceSubject string `db:"source_subject" json:"source_subject,omitempty"`

	CreatedAt time.Time `db:"-" json:"created_at"`

	DueAt       fn.Option[time.Time] `db:"-" json:"-"`
	CompletedAt fn.Option[time.Time] `db:"-" json:"-"`
}

// New builds a task for the message sourceID with a fresh id.
func New(sourceID, title, description, subject string,
	now time.Time) Task {

	return Task{
		ID:              uuid.NewString(),
		Title:           title,
		Description:     description,
		SourceMessageID: sourceID,
		SourceSubject:   subject,
		CreatedAt:       now,
		DueAt:           fn.None[time.Time](),
		CompletedAt:     fn.None[time.Time](),
	}
}

// Completed reports whether the task has been marked done.
func (t Task) Completed() bool {
	return t.CompletedAt.IsSome()
}
