// Package db owns the relational schema and applies it through database/sql.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	// registers the "postgres" driver for database/sql
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const createLedger = `create table if not exists schema_migrations (
    name       text primary key,
    applied_at timestamptz not null default now()
)`

// Migration is one embedded schema file.
type Migration struct {
	Name string
	SQL  string
}

// Migrations returns the embedded migrations in apply order.
func Migrations() ([]Migration, error) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return nil, err
	}
	out := make([]Migration, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		raw, err := migrationFS.ReadFile("migrations/" + e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, Migration{Name: e.Name(), SQL: string(raw)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Open connects with the lib/pq driver. Migrations run outside the pgx pool
// so the CLI can apply them before the service starts.
func Open(databaseURL string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return conn, nil
}

// Migrate applies every migration not yet recorded in schema_migrations and
// returns the names it applied.
func Migrate(ctx context.Context, conn *sql.DB) ([]string, error) {
	migrations, err := Migrations()
	if err != nil {
		return nil, err
	}
	if _, err := conn.ExecContext(ctx, createLedger); err != nil {
		return nil, fmt.Errorf("create migration ledger: %w", err)
	}

	var applied []string
	for _, m := range migrations {
		var exists bool
		if err := conn.QueryRowContext(ctx, `select exists(select 1 from schema_migrations where name = $1)`, m.Name).Scan(&exists); err != nil {
			return applied, fmt.Errorf("check %s: %w", m.Name, err)
		}
		if exists {
			continue
		}
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return applied, err
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			_ = tx.Rollback()
			return applied, fmt.Errorf("apply %s: %w", m.Name, err)
		}
		if _, err := tx.ExecContext(ctx, `insert into schema_migrations (name) values ($1)`, m.Name); err != nil {
			_ = tx.Rollback()
			return applied, fmt.Errorf("record %s: %w", m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return applied, err
		}
		applied = append(applied, m.Name)
	}
	return applied, nil
}
