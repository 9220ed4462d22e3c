// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"gitlab.com/tozd/go/errors"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    run_trigger TEXT NOT NULL,
    mode TEXT NOT NULL,
    outcome TEXT NOT NULL,
    kind TEXT,
    fingerprint TEXT,
    message TEXT,
    started_at TIMESTAMP NOT NULL,
    duration_ms INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// 📜 Entry is one recorded orchestration run.
type Entry struct {
	ID          string
	Trigger     string
	Mode        string
	Outcome     string
	Kind        string
	Fingerprint string
	Message     string
	StartedAt   time.Time
	Duration    time.Duration
}

// Store keeps run history in sqlite.
type Store struct {
	db *sql.DB
}

// New opens the database at path. Use ":memory:" in tests.
func New(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Errorf("opening history database: %w", err)
	}

	// one writer at a time, and one connection keeps :memory: a single database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, errors.Errorf("enabling WAL mode: %w", err)
	}

	return &Store{db: db}, nil
}

// Open is New followed by CreateSchema.
func Open(path string) (*Store, error) {
	s, err := New(path)
	if err != nil {
		return nil, err
	}
	if err := s.CreateSchema(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// CreateSchema creates the tables if they do not exist.
func (s *Store) CreateSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return errors.Errorf("creating history schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores one run.
func (s *Store) Record(ctx context.Context, e Entry) error {
	query := `
		INSERT INTO runs (id, run_trigger, mode, outcome, kind, fingerprint, message, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.Trigger,
		e.Mode,
		e.Outcome,
		e.Kind,
		e.Fingerprint,
		e.Message,
		e.StartedAt.UTC().Format(time.RFC3339Nano),
		e.Duration.Milliseconds(),
	)
	if err != nil {
		return errors.Errorf("recording run %s: %w", e.ID, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, run_trigger, mode, outcome, kind, fingerprint, message, started_at, duration_ms
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errors.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			kind      sql.NullString
			fp        sql.NullString
			msg       sql.NullString
			startedAt string
			ms        int64
		)
		if err := rows.Scan(&e.ID, &e.Trigger, &e.Mode, &e.Outcome, &kind, &fp, &msg, &startedAt, &ms); err != nil {
			return nil, errors.Errorf("scanning run row: %w", err)
		}
		e.Kind = kind.String
		e.Fingerprint = fp.String
		e.Message = msg.String
		e.Duration = time.Duration(ms) * time.Millisecond
		e.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, errors.Errorf("parsing started_at for %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Errorf("iterating runs: %w", err)
	}
	return entries, nil
}
