package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/clinbox/internal/db"
)

// ErrNotFound is returned when a task id does not exist.
var ErrNotFound = errors.New("task not found")

// taskRow is the on-disk shape of a Task. Timestamps are unix seconds.
type taskRow struct {
	ID              string        `db:"id"`
	Title           string        `db:"title"`
	Description     string        `db:"description"`
	SourceMessageID string        `db:"source_message_id"`
	SourceSubject   string        `db:"source_subject"`
	CreatedAt       int64         `db:"created_at"`
	DueAt           sql.NullInt64 `db:"due_at"`
	CompletedAt     sql.NullInt64 `db:"completed_at"`
}

func optTime(v sql.NullInt64) fn.Option[time.Time] {
	if !v.Valid {
		return fn.None[time.Time]()
	}

	return fn.Some(time.Unix(v.Int64, 0))
}

func nullTime(o fn.Option[time.Time]) sql.NullInt64 {
	return fn.MapOptionZ(o, func(t time.Time) sql.NullInt64 {
		return sql.NullInt64{Int64: t.Unix(), Valid: true}
	})
}

func (r taskRow) toTask() Task {
	return Task{
		ID:              r.ID,
		Title:           r.Title,
		Description:     r.Description,
		SourceMessageID: r.SourceMessageID,
		SourceSubject:   r.SourceSubject,
		CreatedAt:       time.Unix(r.CreatedAt, 0),
		DueAt:           optTime(r.DueAt),
		CompletedAt:     optTime(r.CompletedAt),
	}
}

func rowFromTask(t Task) taskRow {
	return taskRow{
		ID:              t.ID,
		Title:           t.Title,
		Description:     t.Description,
		SourceMessageID: t.SourceMessageID,
		SourceSubject:   t.SourceSubject,
		CreatedAt:       t.CreatedAt.Unix(),
		DueAt:           nullTime(t.DueAt),
		CompletedAt:     nullTime(t.CompletedAt),
	}
}

const taskColumns = `id, title, description, source_message_id,
	source_subject, created_at, due_at, completed_at`

// Store is the SQLite backed task list.
type Store struct {
	db  *db.Store
	log *slog.Logger

	now func() time.Time
}

// NewStore returns a task store on top of store.
func NewStore(store *db.Store, log *slog.Logger) *Store {
	return &Store{
		db:  store,
		log: log,
		now: time.Now,
	}
}

// AppendIfAbsent inserts t unless a task for the same source message
// already exists. It reports whether a new task was written, so calling it
// twice for one message leaves a single record.
func (s *Store) AppendIfAbsent(ctx context.Context, t Task) (bool, error) {
	if t.SourceMessageID == "" {
		return false, fmt.Errorf("task has no source message id")
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}

	err := s.db.WithTx(ctx, func(ctx context.Context, q db.Querier) error {
		_, err := q.NamedExecContext(ctx, `
			INSERT INTO tasks (`+taskColumns+`)
			VALUES (:id, :title, :description, :source_message_id,
				:source_subject, :created_at, :due_at,
				:completed_at)`, rowFromTask(t))

		return err
	})
	switch {
	case db.IsUniqueConstraintViolation(err):
		s.log.DebugContext(ctx, "Task already exists",
			"source_message_id", t.SourceMessageID)

		return false, nil

	case err != nil:
		return false, fmt.Errorf("unable to insert task: %w", err)
	}

	s.log.InfoContext(ctx, "Task created", "id", t.ID,
		"source_message_id", t.SourceMessageID)

	return true, nil
}

// GetBySource returns the task created from the message sourceID.
func (s *Store) GetBySource(ctx context.Context,
	sourceID string) (fn.Option[Task], error) {

	var row taskRow
	err := s.db.DB().GetContext(ctx, &row, `
		SELECT `+taskColumns+` FROM tasks
		WHERE source_message_id = ?`, sourceID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fn.None[Task](), nil

	case err != nil:
		return fn.None[Task](), fmt.Errorf("unable to get task: %w",
			db.MapSQLError(err))
	}

	return fn.Some(row.toTask()), nil
}

// ListPending returns the open tasks, oldest first.
func (s *Store) ListPending(ctx context.Context) ([]Task, error) {
	return s.list(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE completed_at IS NULL
		ORDER BY created_at, id`)
}

// ListAll returns every task including completed ones, oldest first.
func (s *Store) ListAll(ctx context.Context) ([]Task, error) {
	return s.list(ctx, `
		SELECT `+taskColumns+` FROM tasks
		ORDER BY created_at, id`)
}

func (s *Store) list(ctx context.Context, query string) ([]Task, error) {
	var rows []taskRow
	if err := s.db.DB().SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("unable to list tasks: %w",
			db.MapSQLError(err))
	}

	tasks := make([]Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, r.toTask())
	}

	return tasks, nil
}

// Complete marks the task id as done. Completing a finished task keeps the
// original completion time.
func (s *Store) Complete(ctx context.Context, id string) error {
	return s.db.WithTx(ctx, func(ctx context.Context, q db.Querier) error {
		res, err := q.ExecContext(ctx, `
			UPDATE tasks SET completed_at = COALESCE(completed_at, ?)
			WHERE id = ?`, s.now().Unix(), id)
		if err != nil {
			return err
		}

		return requireRow(res, id)
	})
}

// Delete removes the task id.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.db.WithTx(ctx, func(ctx context.Context, q db.Querier) error {
		res, err := q.ExecContext(ctx,
			`DELETE FROM tasks WHERE id = ?`, id)
		if err != nil {
			return err
		}

		return requireRow(res, id)
	})
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return nil
}
