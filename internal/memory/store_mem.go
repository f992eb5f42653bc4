package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

// InProcessStore is a thread-safe, in-memory TurnStore. Session lifetime
// equals process lifetime; nothing survives a restart.
type InProcessStore struct {
	mu       sync.RWMutex
	sessions map[string][]Turn
}

// NewInProcessStore creates a new empty store.
func NewInProcessStore() *InProcessStore {
	return &InProcessStore{
		sessions: make(map[string][]Turn),
	}
}

// Compile-time interface check.
var _ TurnStore = (*InProcessStore)(nil)

// Append adds a turn to the session's log, creating the session on first use.
func (s *InProcessStore) Append(_ context.Context, sessionID string, role Role, text string) (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := s.sessions[sessionID]
	turn := Turn{
		Role:      role,
		Text:      text,
		Seq:       int64(len(turns)) + 1,
		Timestamp: time.Now().UTC(),
	}
	s.sessions[sessionID] = append(turns, turn)
	return turn, nil
}

// ReadAll returns every turn for a session in append order.
func (s *InProcessStore) ReadAll(_ context.Context, sessionID string) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	result := make([]Turn, len(turns))
	copy(result, turns)
	return result, nil
}

// LastN returns the n most recent turns in append order.
func (s *InProcessStore) LastN(_ context.Context, sessionID string, n int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 {
		return nil, nil
	}

	turns := s.sessions[sessionID]
	if n >= len(turns) {
		result := make([]Turn, len(turns))
		copy(result, turns)
		return result, nil
	}

	start := len(turns) - n
	result := make([]Turn, n)
	copy(result, turns[start:])
	return result, nil
}

// Wipe removes all turns for a session. A later append with the same
// session ID starts a fresh, empty session.
func (s *InProcessStore) Wipe(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Sessions lists all stored sessions sorted by ID.
func (s *InProcessStore) Sessions(_ context.Context) ([]SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]SessionInfo, 0, len(s.sessions))
	for id, turns := range s.sessions {
		info := SessionInfo{ID: id, Turns: len(turns)}
		if len(turns) > 0 {
			info.LastActive = turns[len(turns)-1].Timestamp
		}
		result = append(result, info)
	}
	slices.SortFunc(result, func(a, b SessionInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return result, nil
}

// Len returns the number of turns stored for a session.
func (s *InProcessStore) Len(_ context.Context, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions[sessionID]), nil
}
