// Package cache keeps analysis results across sessions so a resumed or
// repeated triage does not pay for the same message twice.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/clinbox/internal/analysis"
	"github.com/roasbeef/clinbox/internal/mailsource"
	"go.etcd.io/bbolt"
)

// DefaultTTL is how long a cached analysis stays valid.
const DefaultTTL = 7 * 24 * time.Hour

var bucketAnalysis = []byte("analysis")

type entry struct {
	Result   *analysis.Result `json:"result"`
	CachedAt time.Time        `json:"cached_at"`
}

// Store is a bbolt file of analysis results keyed by message id.
type Store struct {
	db  *bbolt.DB
	ttl time.Duration
	now func() time.Time
}

// Open opens or creates the cache file at path.
func Open(path string, ttl time.Duration) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open analysis cache: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketAnalysis)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Store{db: db, ttl: ttl, now: time.Now}, nil
}

// Close closes the cache file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the cached result for id if it exists and has not expired.
func (s *Store) Get(id string) (fn.Option[analysis.Result], error) {
	var e *entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketAnalysis).Get([]byte(id))
		if data == nil {
			return nil
		}

		e = &entry{}
		return json.Unmarshal(data, e)
	})
	if err != nil {
		return fn.None[analysis.Result](), err
	}

	if e == nil || e.Result == nil || s.now().Sub(e.CachedAt) > s.ttl {
		return fn.None[analysis.Result](), nil
	}

	return fn.Some(*e.Result), nil
}

// Put stores res under its message id.
func (s *Store) Put(res *analysis.Result) error {
	data, err := json.Marshal(entry{Result: res, CachedAt: s.now()})
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAnalysis).Put(
			[]byte(res.MessageID), data,
		)
	})
}

// Prune deletes expired entries and returns how many were removed.
func (s *Store) Prune() (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAnalysis)

		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var e entry
			if json.Unmarshal(v, &e) != nil ||
				s.now().Sub(e.CachedAt) > s.ttl {

				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)

		return nil
	})

	return removed, err
}

// Analyzer serves results from the cache and falls back to the wrapped
// analyzer on a miss.
type Analyzer struct {
	inner analysis.Analyzer
	store *Store
	log   *slog.Logger
}

var _ analysis.Analyzer = (*Analyzer)(nil)

// Wrap returns inner with a cache in front of it.
func Wrap(inner analysis.Analyzer, store *Store,
	log *slog.Logger) *Analyzer {

	return &Analyzer{inner: inner, store: store, log: log}
}

// Analyze returns the cached result for content or computes and caches a
// new one. Cache errors are logged and never fail the analysis.
func (a *Analyzer) Analyze(ctx context.Context,
	content *mailsource.Content) (*analysis.Result, error) {

	cached, err := a.store.Get(content.ID)
	if err != nil {
		a.log.WarnContext(ctx, "Analysis cache read failed",
			"id", content.ID, "err", err)
	}
	var hit *analysis.Result
	cached.WhenSome(func(r analysis.Result) {
		hit = &r
	})
	if hit != nil {
		a.log.DebugContext(ctx, "Analysis cache hit", "id", content.ID)
		return hit, nil
	}

	res, err := a.inner.Analyze(ctx, content)
	if err != nil {
		return nil, err
	}

	if err := a.store.Put(res); err != nil {
		a.log.WarnContext(ctx, "Analysis cache write failed",
			"id", content.ID, "err", err)
	}

	return res, nil
}
