package triage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/roasbeef/clinbox/internal/mailsource"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func testRefs(n int) []mailsource.MessageRef {
	refs := make([]mailsource.MessageRef, n)
	for i := range refs {
		refs[i] = mailsource.MessageRef{ID: fmt.Sprintf("m%d", i+1)}
	}

	return refs
}

type listerFunc func(ctx context.Context,
	filter mailsource.Filter) ([]mailsource.MessageRef, error)

func (f listerFunc) List(ctx context.Context,
	filter mailsource.Filter) ([]mailsource.MessageRef, error) {

	return f(ctx, filter)
}

func TestBuildQueue(t *testing.T) {
	filter := mailsource.Filter{UnreadOnly: true, MaxResults: 3}

	q, err := BuildQueue(context.Background(), listerFunc(
		func(_ context.Context, f mailsource.Filter) (
			[]mailsource.MessageRef, error) {

			require.Equal(t, filter, f)
			return testRefs(3), nil
		},
	), filter)
	require.NoError(t, err)
	require.Equal(t, 3, q.Len())
	require.Equal(t, []string{"m1", "m2", "m3"}, q.IDs())
	require.Equal(t, 3, q.Pending())

	for i, item := range q.Items() {
		require.Equal(t, i, item.Ref.Position)
		require.Equal(t, Pending(), item.Outcome)
	}

	_, err = BuildQueue(context.Background(), listerFunc(
		func(context.Context, mailsource.Filter) (
			[]mailsource.MessageRef, error) {

			return nil, errors.New("offline")
		},
	), filter)
	require.True(t, IsRemoteError(err))
}

func TestQueueResolveAdvance(t *testing.T) {
	q := NewQueue(mailsource.DefaultFilter(), testRefs(2))

	require.True(t, IsInvariantViolation(q.Advance()))
	require.True(t, IsInvariantViolation(q.Resolve(Pending())))

	require.NoError(t, q.Resolve(Resolved(OutcomeArchived)))
	require.True(t, IsInvariantViolation(q.Resolve(Resolved(OutcomeSkipped))))
	require.NoError(t, q.Advance())

	q.Current().WhenSome(func(item QueueItem) {
		require.Equal(t, "m2", item.Ref.ID)
	})
	require.True(t, q.Current().IsSome())

	require.NoError(t, q.Resolve(Failed("gone")))
	require.NoError(t, q.Advance())
	require.True(t, q.Done())
	require.True(t, q.Current().IsNone())
	require.True(t, IsInvariantViolation(q.Advance()))
	require.True(t, IsInvariantViolation(q.Resolve(Resolved(OutcomeSkipped))))
}

func TestQueueFromSnapshotRejectsCorrupt(t *testing.T) {
	refs := testRefs(3)

	_, err := QueueFromSnapshot(Snapshot{
		Refs:     refs,
		Outcomes: []Outcome{Pending()},
	})
	require.True(t, IsInvariantViolation(err))

	_, err = QueueFromSnapshot(Snapshot{
		Refs:     refs,
		Cursor:   2,
		Outcomes: []Outcome{Pending(), Pending(), Pending()},
	})
	require.True(t, IsInvariantViolation(err))
}

// outcomeGen draws a terminal outcome.
func outcomeGen() *rapid.Generator[Outcome] {
	return rapid.Custom(func(t *rapid.T) Outcome {
		kind := rapid.SampledFrom(AllOutcomeKinds).Draw(t, "kind")
		if kind == OutcomeFailed {
			return Failed(rapid.StringN(1, 10, -1).Draw(t, "reason"))
		}

		return Resolved(kind)
	})
}

// TestQueueAdvanceNeverPassesPending drives a queue with random calls and
// checks that the cursor only ever moves past terminal items.
func TestQueueAdvanceNeverPassesPending(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 10).Draw(t, "n")
		q := NewQueue(mailsource.DefaultFilter(), testRefs(n))

		steps := rapid.IntRange(0, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			before := q.Cursor()

			var pending bool
			q.Current().WhenSome(func(item QueueItem) {
				pending = !item.Outcome.IsTerminal()
			})

			if rapid.Bool().Draw(t, "resolve") {
				_ = q.Resolve(outcomeGen().Draw(t, "outcome"))
				continue
			}

			err := q.Advance()
			switch {
			case q.Len() == before:
				require.Error(t, err)

			case pending:
				require.True(t, IsInvariantViolation(err))
				require.Equal(t, before, q.Cursor())

			default:
				require.NoError(t, err)
				require.Equal(t, before+1, q.Cursor())
			}

			for _, item := range q.Items()[:q.Cursor()] {
				require.True(t, item.Outcome.IsTerminal())
			}
		}
	})
}

// TestQueueSnapshotResume checks that a queue rebuilt from a snapshot
// keeps the order and every terminal outcome, and re-enters at the first
// pending item.
func TestQueueSnapshotResume(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 10).Draw(t, "n")
		k := rapid.IntRange(0, n).Draw(t, "k")

		filter := mailsource.Filter{UnreadOnly: true, MaxResults: n}
		q := NewQueue(filter, testRefs(n))
		for i := 0; i < k; i++ {
			require.NoError(t, q.Resolve(outcomeGen().Draw(t, "o")))
			require.NoError(t, q.Advance())
		}

		// A resolved but not yet advanced item is also never pending
		// after a resume.
		resolvedCurrent := k < n && rapid.Bool().Draw(t, "resolved")
		if resolvedCurrent {
			require.NoError(t, q.Resolve(Resolved(OutcomeSkipped)))
		}

		snap := q.Snapshot()
		resumed, err := QueueFromSnapshot(snap)
		require.NoError(t, err)

		require.Equal(t, q.IDs(), resumed.IDs())
		require.Equal(t, q.Items(), resumed.Items())
		require.Equal(t, filter, resumed.Filter())

		want := k
		if resolvedCurrent {
			want++
		}
		require.Equal(t, want, resumed.Cursor())
		require.Equal(t, want == n, resumed.Done())
	})
}
