// Package checkpoint persists triage queues in SQLite so an interrupted
// session resumes where it stopped.
package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/clinbox/internal/db"
	"github.com/roasbeef/clinbox/internal/mailsource"
	"github.com/roasbeef/clinbox/internal/triage"
)

type checkpointRow struct {
	FilterKey  string `db:"filter_key"`
	FilterJSON string `db:"filter_json"`
	Cursor     int    `db:"cursor"`
	CreatedAt  int64  `db:"created_at"`
	UpdatedAt  int64  `db:"updated_at"`
}

type itemRow struct {
	FilterKey string `db:"filter_key"`
	Position  int    `db:"position"`
	MessageID string `db:"message_id"`
	Outcome   string `db:"outcome"`
	Reason    string `db:"reason"`
}

// Summary describes a stored checkpoint.
type Summary struct {
	Filter    mailsource.Filter `json:"filter"`
	Cursor    int               `json:"cursor"`
	Total     int               `json:"total"`
	Pending   int               `json:"pending"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Store keeps one checkpoint per filter.
type Store struct {
	db  *db.Store
	log *slog.Logger

	now func() time.Time
}

var _ triage.Checkpointer = (*Store)(nil)

// NewStore returns a checkpoint store on top of store.
func NewStore(store *db.Store, log *slog.Logger) *Store {
	return &Store{db: store, log: log, now: time.Now}
}

// Save replaces the checkpoint of snap's filter in a single transaction.
func (s *Store) Save(ctx context.Context, snap triage.Snapshot) error {
	if len(snap.Refs) != len(snap.Outcomes) {
		return fmt.Errorf("snapshot has %d refs and %d outcomes",
			len(snap.Refs), len(snap.Outcomes))
	}

	filterJSON, err := json.Marshal(snap.Filter)
	if err != nil {
		return fmt.Errorf("unable to encode filter: %w", err)
	}

	key := snap.Filter.Canonical()
	now := s.now().Unix()

	items := make([]itemRow, len(snap.Refs))
	for i, ref := range snap.Refs {
		items[i] = itemRow{
			FilterKey: key,
			Position:  i,
			MessageID: ref.ID,
			Outcome:   snap.Outcomes[i].Kind.String(),
			Reason:    snap.Outcomes[i].Reason,
		}
	}

	err = s.db.WithTx(ctx, func(ctx context.Context, q db.Querier) error {
		_, err := q.NamedExecContext(ctx, `
			INSERT INTO checkpoints (filter_key, filter_json, cursor,
				created_at, updated_at)
			VALUES (:filter_key, :filter_json, :cursor,
				:created_at, :updated_at)
			ON CONFLICT(filter_key) DO UPDATE SET
				filter_json = excluded.filter_json,
				cursor = excluded.cursor,
				updated_at = excluded.updated_at`,
			checkpointRow{
				FilterKey:  key,
				FilterJSON: string(filterJSON),
				Cursor:     snap.Cursor,
				CreatedAt:  now,
				UpdatedAt:  now,
			})
		if err != nil {
			return err
		}

		_, err = q.ExecContext(ctx,
			`DELETE FROM checkpoint_items WHERE filter_key = ?`, key)
		if err != nil {
			return err
		}

		if len(items) == 0 {
			return nil
		}

		_, err = q.NamedExecContext(ctx, `
			INSERT INTO checkpoint_items (filter_key, position,
				message_id, outcome, reason)
			VALUES (:filter_key, :position, :message_id, :outcome,
				:reason)`, items)

		return err
	})
	if err != nil {
		return fmt.Errorf("unable to save checkpoint: %w",
			db.MapSQLError(err))
	}

	s.log.DebugContext(ctx, "Checkpoint saved", "filter", key,
		"cursor", snap.Cursor, "items", len(items))

	return nil
}

// Load returns the checkpoint stored for filter. A checkpoint recorded for
// a different filter is never returned.
func (s *Store) Load(ctx context.Context,
	filter mailsource.Filter) (fn.Option[triage.Snapshot], error) {

	none := fn.None[triage.Snapshot]()
	key := filter.Canonical()

	var (
		row   checkpointRow
		items []itemRow
	)
	err := s.db.WithReadTx(ctx, func(ctx context.Context,
		q db.Querier) error {

		err := q.GetContext(ctx, &row, `
			SELECT filter_key, filter_json, cursor, created_at,
				updated_at
			FROM checkpoints WHERE filter_key = ?`, key)
		if err != nil {
			return err
		}

		return q.SelectContext(ctx, &items, `
			SELECT filter_key, position, message_id, outcome, reason
			FROM checkpoint_items WHERE filter_key = ?
			ORDER BY position`, key)
	})
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return none, nil

	case err != nil:
		return none, fmt.Errorf("unable to load checkpoint: %w",
			db.MapSQLError(err))
	}

	var stored mailsource.Filter
	if err := json.Unmarshal([]byte(row.FilterJSON), &stored); err != nil {
		return none, fmt.Errorf("corrupt checkpoint filter: %w", err)
	}
	if stored.Canonical() != key {
		s.log.InfoContext(ctx, "Ignoring checkpoint for another filter",
			"stored", stored.Canonical(), "requested", key)

		return none, nil
	}

	snap := triage.Snapshot{
		Filter:   stored,
		Cursor:   row.Cursor,
		Refs:     make([]mailsource.MessageRef, len(items)),
		Outcomes: make([]triage.Outcome, len(items)),
	}
	for i, item := range items {
		if item.Position != i {
			return none, fmt.Errorf("corrupt checkpoint: item %d "+
				"at position %d", i, item.Position)
		}

		kind, err := triage.ParseOutcomeKind(item.Outcome)
		if err != nil {
			return none, fmt.Errorf("corrupt checkpoint: %w", err)
		}

		snap.Refs[i] = mailsource.MessageRef{
			ID:       item.MessageID,
			Position: i,
		}
		snap.Outcomes[i] = triage.Outcome{
			Kind:   kind,
			Reason: item.Reason,
		}
	}

	return fn.Some(snap), nil
}

// Delete removes the checkpoint for filter. Deleting a missing checkpoint
// is not an error.
func (s *Store) Delete(ctx context.Context, filter mailsource.Filter) error {
	err := s.db.WithTx(ctx, func(ctx context.Context, q db.Querier) error {
		_, err := q.ExecContext(ctx,
			`DELETE FROM checkpoints WHERE filter_key = ?`,
			filter.Canonical())

		return err
	})
	if err != nil {
		return fmt.Errorf("unable to delete checkpoint: %w",
			db.MapSQLError(err))
	}

	return nil
}

// List summarizes every stored checkpoint, most recent first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	var rows []struct {
		FilterJSON string `db:"filter_json"`
		Cursor     int    `db:"cursor"`
		UpdatedAt  int64  `db:"updated_at"`
		Total      int    `db:"total"`
		Pending    int    `db:"pending"`
	}
	err := s.db.DB().SelectContext(ctx, &rows, `
		SELECT c.filter_json, c.cursor, c.updated_at,
			COUNT(i.position) AS total,
			COALESCE(SUM(i.outcome = 'pending'), 0) AS pending
		FROM checkpoints c
		LEFT JOIN checkpoint_items i ON i.filter_key = c.filter_key
		GROUP BY c.filter_key
		ORDER BY c.updated_at DESC, c.filter_key`)
	if err != nil {
		return nil, fmt.Errorf("unable to list checkpoints: %w",
			db.MapSQLError(err))
	}

	out := make([]Summary, 0, len(rows))
	for _, r := range rows {
		var filter mailsource.Filter
		if err := json.Unmarshal([]byte(r.FilterJSON), &filter); err != nil {
			s.log.WarnContext(ctx, "Skipping corrupt checkpoint",
				"err", err)
			continue
		}

		out = append(out, Summary{
			Filter:    filter,
			Cursor:    r.Cursor,
			Total:     r.Total,
			Pending:   r.Pending,
			UpdatedAt: time.Unix(r.UpdatedAt, 0),
		})
	}

	return out, nil
}
