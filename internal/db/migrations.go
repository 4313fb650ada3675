package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/source/httpfs"
)

// LatestMigrationVersion is the schema version this binary expects. A
// database newer than this is refused rather than silently downgraded.
//
// NOTE: This MUST be updated when a new migration is added.
const LatestMigrationVersion uint = 2

// MigrationTarget moves mig to some version.
type MigrationTarget func(mig *migrate.Migrate) error

var (
	// TargetLatest migrates to the newest embedded version.
	TargetLatest MigrationTarget = func(mig *migrate.Migrate) error {
		return mig.Up()
	}

	// TargetVersion migrates to exactly version.
	TargetVersion = func(version uint) MigrationTarget {
		return func(mig *migrate.Migrate) error {
			return mig.Migrate(version)
		}
	}
)

// ErrMigrationDowngrade is returned when the database is newer than the
// binary.
var ErrMigrationDowngrade = errors.New("database downgrade detected")

// migrateOptions holds options for migration execution.
type migrateOptions struct {
	latestVersion uint
}

// defaultMigrateOptions returns the options used by NewSqliteStore.
func defaultMigrateOptions() *migrateOptions {
	return &migrateOptions{
		latestVersion: LatestMigrationVersion,
	}
}

// MigrateOpt modifies migrateOptions.
type MigrateOpt func(*migrateOptions)

// WithLatestVersion overrides the downgrade protection ceiling.
func WithLatestVersion(version uint) MigrateOpt {
	return func(o *migrateOptions) {
		o.latestVersion = version
	}
}

// migrationLogger adapts slog to migrate.Logger.
type migrationLogger struct {
	log *slog.Logger
}

// Printf implements the migrate.Logger interface.
func (m *migrationLogger) Printf(format string, v ...any) {
	format = strings.TrimRight(format, "\n")
	m.log.Debug(fmt.Sprintf(format, v...))
}

// Verbose implements the migrate.Logger interface.
func (m *migrationLogger) Verbose() bool {
	return false
}

// applyMigrations runs the migrations found under path in fsys against
// driver, refusing dirty or newer-than-known databases.
func applyMigrations(fsys fs.FS, driver database.Driver, path, dbName string,
	target MigrationTarget, opts *migrateOptions, log *slog.Logger) error {

	src, err := httpfs.New(http.FS(fsys), path)
	if err != nil {
		return err
	}

	sqlMigrate, err := migrate.NewWithInstance(
		"migrations", src, dbName, driver,
	)
	if err != nil {
		return err
	}
	sqlMigrate.Log = &migrationLogger{log}

	version, dirty, err := sqlMigrate.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("unable to determine current migration "+
			"version: %w", err)
	}

	// A dirty version means an earlier migration stopped halfway and
	// needs manual repair.
	if dirty {
		return fmt.Errorf("database is in a dirty state at version "+
			"%v, manual intervention required", version)
	}

	if version > opts.latestVersion {
		return fmt.Errorf("%w: db_version=%v, "+
			"latest_migration_version=%v", ErrMigrationDowngrade,
			version, opts.latestVersion)
	}

	log.Debug("Applying migrations", "current_db_version", version,
		"latest_migration_version", opts.latestVersion)

	err = target(sqlMigrate)
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	version, _, err = sqlMigrate.Version()
	if err != nil {
		return fmt.Errorf("unable to get current db version: %w", err)
	}
	log.Debug("Database version after migration",
		"current_db_version", version)

	return nil
}

// backupSqliteDatabase writes a copy of srcDB next to dbFullFilePath using
// VACUUM INTO.
func backupSqliteDatabase(srcDB *sql.DB, dbFullFilePath string,
	log *slog.Logger) error {

	backupPath := fmt.Sprintf(
		"%s.%d.backup", dbFullFilePath, time.Now().UnixNano(),
	)

	log.Info("Backing up database before migration",
		"source", dbFullFilePath, "backup", backupPath)

	_, err := srcDB.ExecContext(
		context.Background(), "VACUUM INTO ?", backupPath,
	)

	return err
}
