package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ErrMigrationFailed wraps any failure while applying a migration.
var ErrMigrationFailed = errors.New("migration failed")

// Migration is one forward-only schema step.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
}

// AppliedMigration is a row of the tracking table.
type AppliedMigration struct {
	Version   int       `db:"version"`
	Name      string    `db:"name"`
	AppliedAt time.Time `db:"applied_at"`
}

// Migrator applies embedded migrations to one tenant schema.
type Migrator struct {
	db         *sqlx.DB
	schema     string
	migrations []Migration
	logger     *zap.Logger
}

// NewMigrator loads the embedded migrations. An empty schema targets the connection's search_path.
func NewMigrator(db *sqlx.DB, schema string, logger *zap.Logger) (*Migrator, error) {
	migrations, err := LoadMigrations(migrationFiles)
	if err != nil {
		return nil, err
	}
	return NewMigratorWithMigrations(db, schema, migrations, logger), nil
}

// NewMigratorWithMigrations uses an explicit migration list.
func NewMigratorWithMigrations(db *sqlx.DB, schema string, migrations []Migration, logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{db: db, schema: schema, migrations: migrations, logger: logger}
}

// LoadMigrations reads NNNN_name.sql files from fsys, ordered by version.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	migrations := make([]Migration, 0, len(entries))
	seen := make(map[int]string, len(entries))
	for _, entry := range entries {
		base := strings.TrimSuffix(path.Base(entry), ".sql")
		prefix, name, ok := strings.Cut(base, "_")
		if !ok {
			return nil, fmt.Errorf("migration %q: expected NNNN_name.sql", entry)
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("migration %q: %w", entry, err)
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("migration version %d used by %s and %s", version, other, entry)
		}
		seen[version] = entry
		body, err := fs.ReadFile(fsys, entry)
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, Migration{Version: version, Name: name, UpSQL: string(body)})
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

func (m *Migrator) table() string {
	if m.schema == "" {
		return "schema_migrations"
	}
	return pq.QuoteIdentifier(m.schema) + ".schema_migrations"
}

// EnsureMigrationTable creates the tenant schema and the tracking table.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	if m.schema != "" {
		if _, err := m.db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+pq.QuoteIdentifier(m.schema)); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    version INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, m.table())
	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	return nil
}

// Applied lists the recorded migrations.
func (m *Migrator) Applied(ctx context.Context) ([]AppliedMigration, error) {
	var rows []AppliedMigration
	query := fmt.Sprintf("SELECT version, name, applied_at FROM %s ORDER BY version", m.table())
	if err := m.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	return rows, nil
}

// Pending returns the migrations not yet recorded.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[int]struct{}, len(applied))
	for _, row := range applied {
		done[row.Version] = struct{}{}
	}
	pending := make([]Migration, 0, len(m.migrations))
	for _, mig := range m.migrations {
		if _, ok := done[mig.Version]; !ok {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// Migrate applies every pending migration, each in its own transaction, and returns how many ran.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	pending, err := m.Pending(ctx)
	if err != nil {
		return 0, err
	}

	for i, mig := range pending {
		if strings.TrimSpace(mig.UpSQL) == "" {
			return i, fmt.Errorf("%w: version %d has no SQL", ErrMigrationFailed, mig.Version)
		}
		if err := m.apply(ctx, mig); err != nil {
			return i, fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
		m.logger.Info("migration applied", zap.Int("version", mig.Version), zap.String("name", mig.Name), zap.String("schema", m.schema))
	}
	return len(pending), nil
}

func (m *Migrator) apply(ctx context.Context, mig Migration) (err error) {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if m.schema != "" {
		if _, err = tx.ExecContext(ctx, "SET LOCAL search_path TO "+pq.QuoteIdentifier(m.schema)+", public"); err != nil {
			return err
		}
	}
	if _, err = tx.ExecContext(ctx, mig.UpSQL); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.table()), mig.Version, mig.Name); err != nil {
		return err
	}
	return tx.Commit()
}
