package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/vjoshi/recall/internal/memory"
)

// Append adds a turn to the session's log and returns it with its
// assigned sequence number. Seq allocation and insert run in one
// transaction so concurrent appenders never observe a gap or duplicate.
func (s *turnStore) Append(ctx context.Context, sessionID string, role memory.Role, text string) (memory.Turn, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return memory.Turn{}, fmt.Errorf("sqlite: begin append tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var seq int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE session_id = ?", sessionID,
	).Scan(&seq); err != nil {
		return memory.Turn{}, fmt.Errorf("sqlite: next seq: %w", err)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO turns (session_id, seq, role, text, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		sessionID, seq, string(role), text, now.Format(time.RFC3339Nano),
	); err != nil {
		return memory.Turn{}, fmt.Errorf("sqlite: append turn: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return memory.Turn{}, fmt.Errorf("sqlite: commit append: %w", err)
	}

	return memory.Turn{Role: role, Text: text, Seq: seq, Timestamp: now}, nil
}

// ReadAll returns all turns for a session in append order.
func (s *turnStore) ReadAll(ctx context.Context, sessionID string) ([]memory.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, role, text, created_at
		FROM turns
		WHERE session_id = ?
		ORDER BY seq ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: read all: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectTurns(rows)
}

// LastN returns the n most recent turns in append order.
func (s *turnStore) LastN(ctx context.Context, sessionID string, n int) ([]memory.Turn, error) {
	if n <= 0 {
		return []memory.Turn{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, role, text, created_at
		FROM turns
		WHERE session_id = ?
		ORDER BY seq DESC
		LIMIT ?`,
		sessionID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: last n: %w", err)
	}
	defer func() { _ = rows.Close() }()

	turns, err := collectTurns(rows)
	if err != nil {
		return nil, err
	}

	// Reverse to chronological order.
	slices.Reverse(turns)
	return turns, nil
}

// Wipe removes all turns for a session in one statement, which SQLite
// executes atomically.
func (s *turnStore) Wipe(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM turns WHERE session_id = ?", sessionID,
	); err != nil {
		return fmt.Errorf("sqlite: wipe session: %w", err)
	}
	return nil
}

// Sessions lists all stored sessions sorted by ID.
func (s *turnStore) Sessions(ctx context.Context) ([]memory.SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, COUNT(*), MAX(created_at)
		FROM turns
		GROUP BY session_id
		ORDER BY session_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var infos []memory.SessionInfo
	for rows.Next() {
		var (
			info   memory.SessionInfo
			lastAt string
		)
		if err := rows.Scan(&info.ID, &info.Turns, &lastAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan session: %w", err)
		}
		info.LastActive, err = time.Parse(time.RFC3339Nano, lastAt)
		if err != nil {
			return nil, fmt.Errorf("sqlite: parse last active: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: session rows: %w", err)
	}

	return infos, nil
}

// Len returns the number of turns stored for a session.
func (s *turnStore) Len(ctx context.Context, sessionID string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM turns WHERE session_id = ?", sessionID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlite: count turns: %w", err)
	}
	return count, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func collectTurns(rows *sql.Rows) ([]memory.Turn, error) {
	turns := []memory.Turn{}
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: turn rows: %w", err)
	}
	return turns, nil
}

func scanTurn(s scanner) (memory.Turn, error) {
	var (
		turn      memory.Turn
		role      string
		createdAt string
	)

	if err := s.Scan(&turn.Seq, &role, &turn.Text, &createdAt); err != nil {
		return turn, fmt.Errorf("sqlite: scan turn: %w", err)
	}

	turn.Role = memory.Role(role)

	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return turn, fmt.Errorf("sqlite: parse created_at: %w", err)
	}
	turn.Timestamp = ts

	return turn, nil
}
