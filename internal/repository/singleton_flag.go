package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SingletonFlag keeps a boolean column true on at most one row per scope. Scope is
// another column of the same table (academic_year_id for terms, level_type for grade
// scales) or empty for a table-wide flag.
//
// Set clears the flag on every other row in scope and sets it on the target inside one
// transaction, serialised per scope by a transaction-level advisory lock.
type SingletonFlag struct {
	db          *sqlx.DB
	table       string
	column      string
	scopeColumn string
}

// NewSingletonFlag describes table.column scoped by scopeColumn ("" for global).
// Identifiers are compile-time constants of the calling repository.
func NewSingletonFlag(db *sqlx.DB, table, column, scopeColumn string) *SingletonFlag {
	return &SingletonFlag{db: db, table: table, column: column, scopeColumn: scopeColumn}
}

// Set makes id the single flagged row of its scope. It returns sql.ErrNoRows when id
// does not exist. With a nil exec it opens its own transaction; a caller-supplied exec
// must already be a transaction for the advisory lock to hold until commit.
func (f *SingletonFlag) Set(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if exec == nil {
		return NewTransactor(f.db).WithinTx(ctx, func(tx sqlx.ExtContext) error {
			return f.set(ctx, tx, id)
		})
	}
	return f.set(ctx, exec, id)
}

func (f *SingletonFlag) set(ctx context.Context, exec sqlx.ExtContext, id string) error {
	scope, err := f.scopeOf(ctx, exec, id)
	if err != nil {
		return err
	}

	if _, err := exec.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, f.lockKey(scope)); err != nil {
		return fmt.Errorf("lock %s.%s: %w", f.table, f.column, err)
	}

	now := time.Now().UTC()
	clearQuery := fmt.Sprintf(`UPDATE %s SET %s = FALSE, updated_at = $1 WHERE %s = TRUE AND id <> $2`, f.table, f.column, f.column)
	args := []interface{}{now, id}
	if f.scopeColumn != "" {
		clearQuery += fmt.Sprintf(` AND %s::text = $3`, f.scopeColumn)
		args = append(args, scope)
	}
	if _, err := exec.ExecContext(ctx, clearQuery, args...); err != nil {
		return fmt.Errorf("clear %s.%s: %w", f.table, f.column, err)
	}

	mark := fmt.Sprintf(`UPDATE %s SET %s = TRUE, updated_at = $1 WHERE id = $2`, f.table, f.column)
	if _, err := exec.ExecContext(ctx, mark, now, id); err != nil {
		return fmt.Errorf("set %s.%s: %w", f.table, f.column, err)
	}
	return nil
}

func (f *SingletonFlag) scopeOf(ctx context.Context, exec sqlx.ExtContext, id string) (string, error) {
	var scope string
	var query string
	if f.scopeColumn == "" {
		query = fmt.Sprintf(`SELECT ''::text FROM %s WHERE id = $1`, f.table)
	} else {
		query = fmt.Sprintf(`SELECT %s::text FROM %s WHERE id = $1`, f.scopeColumn, f.table)
	}
	if err := sqlx.GetContext(ctx, exec, &scope, query, id); err != nil {
		if err == sql.ErrNoRows {
			return "", err
		}
		return "", fmt.Errorf("load %s scope: %w", f.table, err)
	}
	return scope, nil
}

func (f *SingletonFlag) lockKey(scope string) string {
	return f.table + "." + f.column + ":" + scope
}
