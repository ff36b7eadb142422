package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

// migrationSource holds the registered migration files.
var migrationSource fs.FS

// RegisterMigrations sets the files Migrate applies. They sit at the root of
// fsys and are named VERSION_description.up.sql with an optional matching
// .down.sql, VERSION being YYYYMMDD_HHMMSS. A nil fsys clears the set.
//
// The migrations package registers the embedded schema from init:
//
//	import _ "github.com/nerrad567/lifelog-core/migrations"
func RegisterMigrations(fsys fs.FS) {
	migrationSource = fsys
}

// ErrNoDownSQL is returned by Rollback when the latest migration has no
// .down.sql file.
var ErrNoDownSQL = errors.New("migration has no down SQL")

// Migration is one schema change loaded from the registered files.
type Migration struct {
	Version string // YYYYMMDD_HHMMSS
	Name    string // description part of the filename
	UpSQL   string
	DownSQL string
}

// MigrationState reports whether a known migration has been applied.
type MigrationState struct {
	Version   string
	Name      string
	AppliedAt time.Time // zero while pending
}

// Applied reports whether the migration is recorded in schema_migrations.
func (s MigrationState) Applied() bool { return !s.AppliedAt.IsZero() }

// Migrate applies every registered migration not yet recorded, oldest first.
//
// Each migration runs in its own transaction. When one fails the earlier
// ones stay committed and later ones are not attempted, so rerunning after a
// fix resumes at the failed file. Files must run unchanged on SQLite and
// Postgres: TEXT timestamps, INTEGER booleans, DOUBLE PRECISION amounts.
func (db *DB) Migrate(ctx context.Context) error {
	if err := db.ensureLedger(ctx); err != nil {
		return err
	}
	known, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, m := range known {
		if _, done := applied[m.Version]; done {
			continue
		}
		err := db.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				db.dialect.Rebind("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)"),
				m.Version, FormatTime(time.Now()),
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// Rollback reverts the most recently applied migration and returns it.
// It returns nil when nothing is applied.
func (db *DB) Rollback(ctx context.Context) (*Migration, error) {
	if err := db.ensureLedger(ctx); err != nil {
		return nil, err
	}
	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}
	if len(applied) == 0 {
		return nil, nil
	}

	latest := ""
	for v := range applied {
		if v > latest {
			latest = v
		}
	}

	known, err := loadMigrations()
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}
	var target *Migration
	for i := range known {
		if known[i].Version == latest {
			target = &known[i]
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("applied migration %s has no file", latest)
	}
	if target.DownSQL == "" {
		return nil, fmt.Errorf("%s: %w", latest, ErrNoDownSQL)
	}

	err = db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, target.DownSQL); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			db.dialect.Rebind("DELETE FROM schema_migrations WHERE version = ?"), target.Version)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("rolling back %s (%s): %w", target.Version, target.Name, err)
	}
	return target, nil
}

// MigrationStatus lists every registered migration in version order.
func (db *DB) MigrationStatus(ctx context.Context) ([]MigrationState, error) {
	if err := db.ensureLedger(ctx); err != nil {
		return nil, err
	}
	known, err := loadMigrations()
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}
	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	states := make([]MigrationState, len(known))
	for i, m := range known {
		states[i] = MigrationState{Version: m.Version, Name: m.Name, AppliedAt: applied[m.Version]}
	}
	return states, nil
}

func (db *DB) ensureLedger(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}
	return nil
}

// appliedVersions maps each recorded version to its apply time.
func (db *DB) appliedVersions(ctx context.Context) (map[string]time.Time, error) {
	rows, err := db.QueryContext(ctx, "SELECT version, applied_at FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("querying schema_migrations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var version, at string
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("scanning schema_migrations: %w", err)
		}
		appliedAt, err := ParseTime(at)
		if err != nil || appliedAt.IsZero() {
			// Still applied; keep it distinguishable from pending.
			appliedAt = time.Unix(0, 0).UTC()
		}
		out[version] = appliedAt
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schema_migrations: %w", err)
	}
	return out, nil
}

func (db *DB) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// loadMigrations reads the registered files, sorted by version. Files that do
// not follow the naming scheme are ignored.
func loadMigrations() ([]Migration, error) {
	if migrationSource == nil {
		return nil, nil
	}
	entries, err := fs.ReadDir(migrationSource, ".")
	if err != nil {
		return nil, err
	}

	byVersion := make(map[string]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		f, ok := parseMigrationFile(entry.Name())
		if !ok {
			continue
		}
		body, err := fs.ReadFile(migrationSource, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}

		m := byVersion[f.version]
		if m == nil {
			m = &Migration{Version: f.version}
			byVersion[f.version] = m
		}
		if f.up {
			m.Name = f.name
			m.UpSQL = string(body)
		} else {
			m.DownSQL = string(body)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" {
			return nil, fmt.Errorf("migration %s has a down file but no up file", m.Version)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

type migrationFile struct {
	version string
	name    string
	up      bool
}

// parseMigrationFile splits "20260301_090000_automation.up.sql" into its
// version, description and direction.
func parseMigrationFile(filename string) (migrationFile, bool) {
	var f migrationFile
	base, ok := strings.CutSuffix(filename, ".sql")
	if !ok {
		return f, false
	}
	if b, up := strings.CutSuffix(base, ".up"); up {
		base, f.up = b, true
	} else if b, down := strings.CutSuffix(base, ".down"); down {
		base = b
	} else {
		return f, false
	}

	parts := strings.SplitN(base, "_", 3)
	if len(parts) < 3 || len(parts[0]) != 8 || len(parts[1]) != 6 || parts[2] == "" {
		return f, false
	}
	f.version = parts[0] + "_" + parts[1]
	f.name = parts[2]
	return f, true
}
