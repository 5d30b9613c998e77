// Package journal persists runs: which procedure ran, the block placements
// captured before motion, and the ordered execution trace. SQLite with WAL
// mode; one writer, concurrent readers.
//
// The journal is what makes a run inspectable after the fact: replay prints
// the trace back, and reset can restore captured block poses even from a
// different process than the one that ran the procedure.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Journal provides durable storage for run records.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database at path. Use ":memory:" for
// throwaway journals in tests and the harness.
//
// The database is configured with WAL mode, NORMAL synchronous, a 5-second
// busy timeout and foreign keys on. Open is idempotent.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect journal: %w", err)
	}

	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("journal pragma %q: %w", pragma, err)
		}
	}
	return nil
}

// Run is one journaled run record.
type Run struct {
	ID         string `json:"id"`
	Procedure  string `json:"procedure"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
	Status     string `json:"status"`
}

// query is a convenience wrapper for read paths.
func (j *Journal) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return j.db.QueryContext(ctx, q, args...)
}
