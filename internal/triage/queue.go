package triage

import (
	"context"
	"slices"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/clinbox/internal/mailsource"
)

// Lister is the part of a mail source the queue is built from.
type Lister interface {
	List(ctx context.Context,
		filter mailsource.Filter) ([]mailsource.MessageRef, error)
}

// Queue is the ordered list of messages of a session with a cursor on the
// item being worked on. Items before the cursor are all terminal.
type Queue struct {
	filter mailsource.Filter
	items  []QueueItem
	cursor int
}

// NewQueue returns a queue over refs with every item pending.
func NewQueue(filter mailsource.Filter,
	refs []mailsource.MessageRef) *Queue {

	items := make([]QueueItem, len(refs))
	for i, ref := range refs {
		ref.Position = i
		items[i] = QueueItem{Ref: ref, Outcome: Pending()}
	}

	return &Queue{filter: filter, items: items}
}

// BuildQueue lists the messages selected by filter and queues them.
func BuildQueue(ctx context.Context, src Lister,
	filter mailsource.Filter) (*Queue, error) {

	refs, err := src.List(ctx, filter)
	if err != nil {
		return nil, &RemoteError{Op: "list", Err: err}
	}

	return NewQueue(filter, refs), nil
}

// QueueFromSnapshot rebuilds a queue from a checkpoint. The cursor is
// placed on the first pending item.
func QueueFromSnapshot(snap Snapshot) (*Queue, error) {
	if len(snap.Refs) != len(snap.Outcomes) {
		return nil, violationf("snapshot has %d refs and %d outcomes",
			len(snap.Refs), len(snap.Outcomes))
	}

	q := NewQueue(snap.Filter, snap.Refs)
	for i, o := range snap.Outcomes {
		q.items[i].Outcome = o
	}

	first := len(q.items)
	for i, item := range q.items {
		if !item.Outcome.IsTerminal() {
			first = i
			break
		}
	}
	if snap.Cursor > first {
		return nil, violationf("snapshot cursor %d is past pending "+
			"item %d", snap.Cursor, first)
	}
	q.cursor = first

	return q, nil
}

// Filter returns the filter the queue was built from.
func (q *Queue) Filter() mailsource.Filter {
	return q.filter
}

// Len returns the number of items.
func (q *Queue) Len() int {
	return len(q.items)
}

// Cursor returns the index of the current item.
func (q *Queue) Cursor() int {
	return q.cursor
}

// Done returns true when the cursor has moved past the last item.
func (q *Queue) Done() bool {
	return q.cursor >= len(q.items)
}

// Items returns a copy of all items.
func (q *Queue) Items() []QueueItem {
	return slices.Clone(q.items)
}

// Current returns the item under the cursor.
func (q *Queue) Current() fn.Option[QueueItem] {
	if q.Done() {
		return fn.None[QueueItem]()
	}

	return fn.Some(q.items[q.cursor])
}

// IDs returns the message ids in queue order.
func (q *Queue) IDs() []string {
	ids := make([]string, len(q.items))
	for i, item := range q.items {
		ids[i] = item.Ref.ID
	}

	return ids
}

// Resolve records the terminal outcome of the current item.
func (q *Queue) Resolve(o Outcome) error {
	if q.Done() {
		return violationf("resolve with no current item")
	}
	if !o.IsTerminal() {
		return violationf("resolve %s with a pending outcome",
			q.items[q.cursor].Ref.ID)
	}

	cur := &q.items[q.cursor]
	if cur.Outcome.IsTerminal() {
		return violationf("item %s already resolved as %v",
			cur.Ref.ID, cur.Outcome)
	}
	cur.Outcome = o

	return nil
}

// Advance moves the cursor past the current item, which must be terminal.
func (q *Queue) Advance() error {
	if q.Done() {
		return violationf("advance past the end of the queue")
	}

	cur := q.items[q.cursor]
	if !cur.Outcome.IsTerminal() {
		return violationf("advance past pending item %s", cur.Ref.ID)
	}
	q.cursor++

	return nil
}

// Snapshot returns the checkpoint form of the queue.
func (q *Queue) Snapshot() Snapshot {
	snap := Snapshot{
		Filter:   q.filter,
		Refs:     make([]mailsource.MessageRef, len(q.items)),
		Cursor:   q.cursor,
		Outcomes: make([]Outcome, len(q.items)),
	}
	for i, item := range q.items {
		snap.Refs[i] = item.Ref
		snap.Outcomes[i] = item.Outcome
	}

	return snap
}

// Pending returns the number of items not yet resolved.
func (q *Queue) Pending() int {
	n := 0
	for _, item := range q.items {
		if !item.Outcome.IsTerminal() {
			n++
		}
	}

	return n
}
