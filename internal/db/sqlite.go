package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	sqlite_migrate "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDBPath returns the default path of the clinbox database.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, ".clinbox", "clinbox.db"), nil
}

// OpenSQLite opens a SQLite database with WAL mode, foreign keys and a busy
// timeout, creating the parent directory if needed.
func OpenSQLite(dbPath string) (*sqlx.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w",
			err)
	}

	dsn := fmt.Sprintf(
		"file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000",
		dbPath,
	)

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; one connection avoids busy errors
	// between our own goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := configurePragmas(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	return db, nil
}

// configurePragmas applies the pragmas that cannot be set through the DSN.
func configurePragmas(db *sql.DB) error {
	pragmas := []string{
		// NORMAL is durable under WAL and much cheaper than FULL.
		"PRAGMA synchronous = NORMAL",

		// Negative values are KiB, so this is a 16MB page cache.
		"PRAGMA cache_size = -16384",

		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// SqliteConfig configures NewSqliteStore.
type SqliteConfig struct {
	// DatabaseFileName is the full path of the database file.
	DatabaseFileName string

	// SkipMigrations leaves the schema untouched.
	SkipMigrations bool

	// SkipMigrationDbBackup disables the VACUUM INTO backup taken before
	// an existing database is migrated.
	SkipMigrationDbBackup bool
}

// SqliteStore is a Store opened from a file with the schema migrated.
type SqliteStore struct {
	*Store

	cfg *SqliteConfig
}

// NewSqliteStore opens the database described by cfg and brings its schema
// up to LatestMigrationVersion.
func NewSqliteStore(cfg *SqliteConfig, log *slog.Logger,
	opts ...TxExecutorOption) (*SqliteStore, error) {

	_, statErr := os.Stat(cfg.DatabaseFileName)
	existed := statErr == nil

	db, err := OpenSQLite(cfg.DatabaseFileName)
	if err != nil {
		return nil, err
	}

	s := &SqliteStore{
		Store: NewStore(db, log, opts...),
		cfg:   cfg,
	}

	if cfg.SkipMigrations {
		return s, nil
	}

	if err := s.migrate(existed, log); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return s, nil
}

// migrate applies the embedded migrations. An existing database that is
// behind the latest version is backed up first.
func (s *SqliteStore) migrate(existed bool, log *slog.Logger) error {
	driver, err := sqlite_migrate.WithInstance(
		s.db.DB, &sqlite_migrate.Config{},
	)
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	if existed && !s.cfg.SkipMigrationDbBackup {
		version, _, err := driver.Version()
		if err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}

		behind := version >= 0 && uint(version) < LatestMigrationVersion
		if behind {
			err := backupSqliteDatabase(
				s.db.DB, s.cfg.DatabaseFileName, log,
			)
			if err != nil {
				return fmt.Errorf("backup database: %w", err)
			}
		}
	}

	return applyMigrations(
		sqlSchemas, driver, "migrations", "sqlite", TargetLatest,
		defaultMigrateOptions(), log,
	)
}

// ErrNotFound is returned by stores when a keyed row does not exist.
var ErrNotFound = errors.New("not found")
