// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history stores a local log of prompts and replies in SQLite.
//
// Every completed exchange (ask or chat turn) can be recorded with its
// model, token counts, and timing, so users can review and re-run past
// prompts without any server-side state.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS exchanges (
	id              TEXT PRIMARY KEY,
	created_at      INTEGER NOT NULL,
	model           TEXT NOT NULL,
	kind            TEXT NOT NULL,
	prompt          TEXT NOT NULL,
	reply           TEXT NOT NULL,
	prompt_tokens   INTEGER NOT NULL DEFAULT 0,
	reply_tokens    INTEGER NOT NULL DEFAULT 0,
	duration_ms     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_exchanges_created ON exchanges(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_exchanges_model ON exchanges(model);
`

// Exchange kinds.
const (
	KindAsk  = "ask"
	KindChat = "chat"
)

// Exchange is one recorded prompt/reply pair.
type Exchange struct {
	ID           string
	CreatedAt    time.Time
	Model        string
	Kind         string
	Prompt       string
	Reply        string
	PromptTokens int
	ReplyTokens  int
	Duration     time.Duration
}

// Stats summarizes the stored history.
type Stats struct {
	Count        int
	Models       map[string]int
	PromptTokens int64
	ReplyTokens  int64
	Oldest       time.Time
	Newest       time.Time
}

// ErrNotFound is returned when an exchange id does not exist.
var ErrNotFound = errors.New("history: exchange not found")

// =============================================================================
// STORE
// =============================================================================

// Store is a SQLite-backed history log.
type Store struct {
	db         *sql.DB
	maxEntries int
}

// Open opens (or creates) the history database at path. maxEntries caps
// the number of stored exchanges; older rows are pruned on insert
// (0 = unlimited).
func Open(path string, maxEntries int) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, maxEntries: maxEntries}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores one exchange and returns its id. When the entry cap is
// set, the oldest rows beyond the cap are pruned in the same
// transaction.
func (s *Store) Record(ctx context.Context, ex *Exchange) (string, error) {
	if ex.Model == "" {
		return "", errors.New("history: model is required")
	}
	if ex.Kind == "" {
		ex.Kind = KindAsk
	}

	id := ex.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := ex.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO exchanges
			(id, created_at, model, kind, prompt, reply, prompt_tokens, reply_tokens, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, createdAt.UnixMilli(), ex.Model, ex.Kind, ex.Prompt, ex.Reply,
		ex.PromptTokens, ex.ReplyTokens, ex.Duration.Milliseconds())
	if err != nil {
		return "", fmt.Errorf("failed to record exchange: %w", err)
	}

	if s.maxEntries > 0 {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM exchanges WHERE id NOT IN (
				SELECT id FROM exchanges ORDER BY created_at DESC LIMIT ?
			)
		`, s.maxEntries)
		if err != nil {
			return "", fmt.Errorf("failed to prune history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// Recent returns up to limit exchanges, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Exchange, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, model, kind, prompt, reply, prompt_tokens, reply_tokens, duration_ms
		FROM exchanges
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanExchanges(rows)
}

// Get returns a single exchange by id.
func (s *Store) Get(ctx context.Context, id string) (*Exchange, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, model, kind, prompt, reply, prompt_tokens, reply_tokens, duration_ms
		FROM exchanges
		WHERE id = ?
	`, id)

	ex, err := scanExchange(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return ex, nil
}

// Search returns exchanges whose prompt or reply contains the query,
// newest first.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Exchange, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + query + "%"

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, model, kind, prompt, reply, prompt_tokens, reply_tokens, duration_ms
		FROM exchanges
		WHERE prompt LIKE ? OR reply LIKE ?
		ORDER BY created_at DESC
		LIMIT ?
	`, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanExchanges(rows)
}

// Stats returns aggregate statistics over the stored history.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{Models: make(map[string]int)}

	var oldest, newest sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(prompt_tokens), 0), COALESCE(SUM(reply_tokens), 0),
			MIN(created_at), MAX(created_at)
		FROM exchanges
	`).Scan(&stats.Count, &stats.PromptTokens, &stats.ReplyTokens, &oldest, &newest)
	if err != nil {
		return nil, err
	}
	if oldest.Valid {
		stats.Oldest = time.UnixMilli(oldest.Int64)
	}
	if newest.Valid {
		stats.Newest = time.UnixMilli(newest.Int64)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT model, COUNT(*) FROM exchanges GROUP BY model
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var model string
		var count int
		if err := rows.Scan(&model, &count); err != nil {
			return nil, err
		}
		stats.Models[model] = count
	}
	return stats, rows.Err()
}

// Clear removes all stored exchanges and returns how many were deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM exchanges")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// =============================================================================
// ROW SCANNING
// =============================================================================

type scannable interface {
	Scan(dest ...any) error
}

func scanExchange(row scannable) (*Exchange, error) {
	var ex Exchange
	var createdAt, durationMs int64
	err := row.Scan(&ex.ID, &createdAt, &ex.Model, &ex.Kind, &ex.Prompt, &ex.Reply,
		&ex.PromptTokens, &ex.ReplyTokens, &durationMs)
	if err != nil {
		return nil, err
	}
	ex.CreatedAt = time.UnixMilli(createdAt)
	ex.Duration = time.Duration(durationMs) * time.Millisecond
	return &ex, nil
}

func scanExchanges(rows *sql.Rows) ([]Exchange, error) {
	var out []Exchange
	for rows.Next() {
		ex, err := scanExchange(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ex)
	}
	return out, rows.Err()
}
