// Package qstore checkpoints the agent's Q-table to SQLite.
//
// Only learned values are stored; boards and move history never are.
package qstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/robalobadob/cantstop/internal/agent"
)

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Load returns every stored entry.
func (s *Store) Load(ctx context.Context) ([]agent.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT state, col_a, col_b, value FROM q_values ORDER BY state, col_a, col_b`)
	if err != nil {
		return nil, fmt.Errorf("query q_values: %w", err)
	}
	defer rows.Close()

	var out []agent.Entry
	for rows.Next() {
		var e agent.Entry
		if err := rows.Scan(&e.State, &e.Move[0], &e.Move[1], &e.Value); err != nil {
			return nil, fmt.Errorf("scan q_values: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Save upserts entries in a single transaction.
func (s *Store) Save(ctx context.Context, entries []agent.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO q_values (state, col_a, col_b, value, updated_at)
        VALUES (?, ?, ?, ?, strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
        ON CONFLICT(state, col_a, col_b) DO UPDATE SET
            value = excluded.value,
            updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.State, e.Move[0], e.Move[1], e.Value); err != nil {
			return fmt.Errorf("upsert %s %v: %w", e.State, e.Move, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Checkpoint saves the whole table and returns how many entries were written.
func (s *Store) Checkpoint(ctx context.Context, t *agent.QTable) (int, error) {
	entries := t.Entries()
	if err := s.Save(ctx, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Restore loads stored entries into t and returns how many were read.
func (s *Store) Restore(ctx context.Context, t *agent.QTable) (int, error) {
	entries, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}
	t.Load(entries)
	return len(entries), nil
}
