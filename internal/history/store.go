// Copyright 2025 Tom Barlow
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

// Package history records completion requests and their outcomes in a
// local SQLite database.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get when no entry has the requested ID.
var ErrNotFound = errors.New("history: entry not found")

// Entry is one recorded completion call.
type Entry struct {
	ID            string          `json:"id"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Prompt        string          `json:"prompt"`
	Provider      string          `json:"provider,omitempty"`
	Model         string          `json:"model,omitempty"`
	URL           string          `json:"url,omitempty"`
	Placement     string          `json:"placement,omitempty"`
	StatusCode    int             `json:"status_code,omitempty"`
	Attempts      int             `json:"attempts"`
	Success       bool            `json:"success"`
	Error         string          `json:"error,omitempty"`
	Response      json.RawMessage `json:"response,omitempty"`
	Duration      time.Duration   `json:"duration"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Filter narrows List results.
type Filter struct {
	// Since excludes entries created before this time.
	Since *time.Time

	// Success, when set, selects only successful or only failed entries.
	Success *bool

	Limit  int
	Offset int
}

// Config contains store configuration.
type Config struct {
	// Path is the database file. ":memory:" opens a private in-memory
	// database.
	Path string

	// MaxOpenConns defaults to 5, or 1 for in-memory databases.
	MaxOpenConns int
}

// Store persists Entries.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database and migrates it.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	connStr := cfg.Path
	maxConns := cfg.MaxOpenConns
	if cfg.Path == ":memory:" {
		maxConns = 1
	} else {
		connStr += "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}
	if maxConns == 0 {
		maxConns = 5
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(min(2, maxConns))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS completions (
			id TEXT PRIMARY KEY,
			correlation_id TEXT,
			prompt TEXT NOT NULL,
			provider TEXT,
			model TEXT,
			url TEXT,
			placement TEXT,
			status_code INTEGER NOT NULL DEFAULT 0,
			attempts INTEGER NOT NULL,
			success INTEGER NOT NULL,
			error TEXT,
			response BLOB,
			duration_ns INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_completions_created_at ON completions(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_completions_correlation_id ON completions(correlation_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Record stores e. A missing ID or CreatedAt is filled in and written
// back to e.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO completions (
			id, correlation_id, prompt, provider, model, url, placement,
			status_code, attempts, success, error, response, duration_ns, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CorrelationID, e.Prompt, e.Provider, e.Model, e.URL, e.Placement,
		e.StatusCode, e.Attempts, boolToInt(e.Success), e.Error, []byte(e.Response),
		int64(e.Duration), e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record completion: %w", err)
	}
	return nil
}

const selectColumns = `SELECT id, correlation_id, prompt, provider, model, url, placement,
	status_code, attempts, success, error, response, duration_ns, created_at FROM completions`

// Get returns the entry with the given ID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return e, nil
}

// List returns entries newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]*Entry, error) {
	query := selectColumns + " WHERE 1=1"
	args := []any{}

	if filter.Since != nil {
		query += " AND created_at >= ?"
		args = append(args, filter.Since.UnixNano())
	}

	if filter.Success != nil {
		query += " AND success = ?"
		args = append(args, boolToInt(*filter.Success))
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	if filter.Offset > 0 {
		if filter.Limit <= 0 {
			query += " LIMIT -1"
		}
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes entries created before the given time and returns how
// many were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM completions WHERE created_at < ?", before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e                                              Entry
		correlationID, provider, model, url, placement sql.NullString
		errText                                        sql.NullString
		response                                       []byte
		success                                        int
		durationNs, createdAt                          int64
	)

	err := row.Scan(&e.ID, &correlationID, &e.Prompt, &provider, &model, &url, &placement,
		&e.StatusCode, &e.Attempts, &success, &errText, &response, &durationNs, &createdAt)
	if err != nil {
		return nil, err
	}

	e.CorrelationID = correlationID.String
	e.Provider = provider.String
	e.Model = model.String
	e.URL = url.String
	e.Placement = placement.String
	e.Error = errText.String
	e.Success = success != 0
	if len(response) > 0 {
		e.Response = json.RawMessage(response)
	}
	e.Duration = time.Duration(durationNs)
	e.CreatedAt = time.Unix(0, createdAt).UTC()
	return &e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
