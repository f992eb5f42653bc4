package memory

import (
	"context"
	"errors"
	"time"
)

// ErrUnknownSession is returned by operations that require an existing
// session when no turns have ever been appended for the session ID.
// Plain reads treat an absent session as empty history instead.
var ErrUnknownSession = errors.New("memory: unknown session")

// SessionInfo summarizes one stored session.
type SessionInfo struct {
	ID         string    `json:"id"`
	Turns      int       `json:"turns"`
	LastActive time.Time `json:"last_active"`
}

// TurnStore is the persistence contract for conversation turns.
// Implementations must be safe for concurrent use; the in-process store
// and the SQLite module both satisfy it, and the rest of the system is
// agnostic to which is active.
//
// Turns are append-only: nothing mutates or deletes a turn except Wipe,
// which atomically removes the entire sequence for one session.
type TurnStore interface {
	// Append adds a turn to the session's log, creating the session on
	// first use, and returns the stored turn with its sequence number.
	Append(ctx context.Context, sessionID string, role Role, text string) (Turn, error)

	// ReadAll returns every turn for a session in append order.
	// An absent session yields an empty slice, not an error.
	ReadAll(ctx context.Context, sessionID string) ([]Turn, error)

	// LastN returns the n most recent turns in append order.
	// If fewer than n turns exist, all of them are returned.
	LastN(ctx context.Context, sessionID string, n int) ([]Turn, error)

	// Wipe atomically removes all turns for a session.
	// Wiping an absent session is a no-op.
	Wipe(ctx context.Context, sessionID string) error

	// Sessions lists all stored sessions sorted by ID.
	Sessions(ctx context.Context) ([]SessionInfo, error)

	// Len returns the number of turns stored for a session.
	Len(ctx context.Context, sessionID string) (int, error)
}
