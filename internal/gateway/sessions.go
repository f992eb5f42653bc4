package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vjoshi/recall/internal/memory"
)

// sessionJSON is a serializable session snapshot.
type sessionJSON struct {
	ID         string `json:"id"`
	Turns      int    `json:"turns"`
	LastActive string `json:"last_active"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleListSessions returns all stored sessions as JSON.
func (g *Gateway) handleListSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		infos, err := g.engine.Sessions(r.Context())
		if err != nil {
			http.Error(w, "failed to list sessions", http.StatusInternalServerError)
			return
		}

		sessions := make([]sessionJSON, 0, len(infos))
		for _, info := range infos {
			sessions = append(sessions, sessionJSON{
				ID:         info.ID,
				Turns:      info.Turns,
				LastActive: info.LastActive.UTC().Format(time.RFC3339),
			})
		}

		writeJSON(w, http.StatusOK, sessions)
	}
}

// handleGetTurns returns a session's turn log, optionally limited to the
// most recent ?limit turns.
func (g *Gateway) handleGetTurns() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !g.requireSession(w, r, id) {
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}

		turns, err := g.engine.History(r.Context(), id, limit)
		if err != nil {
			http.Error(w, "failed to read turns", http.StatusInternalServerError)
			return
		}
		if turns == nil {
			turns = []memory.Turn{}
		}

		writeJSON(w, http.StatusOK, turns)
	}
}

// handleGetContext returns the assembled context snapshot for a session.
func (g *Gateway) handleGetContext() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !g.requireSession(w, r, id) {
			return
		}

		snap, err := g.engine.Assemble(r.Context(), id)
		if err != nil {
			http.Error(w, "failed to assemble context", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, snap)
	}
}

// handleGetProfile returns the derived profile for a session.
func (g *Gateway) handleGetProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !g.requireSession(w, r, id) {
			return
		}

		profile, err := g.engine.Profile(r.Context(), id)
		if err != nil {
			http.Error(w, "failed to read profile", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, profile)
	}
}

// handleDeleteSession wipes a session: turns, profile, and summary.
func (g *Gateway) handleDeleteSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !g.requireSession(w, r, id) {
			return
		}

		if err := g.engine.Wipe(r.Context(), id); err != nil {
			http.Error(w, "failed to wipe session", http.StatusInternalServerError)
			return
		}

		g.metrics.SessionsWiped.Inc()
		w.WriteHeader(http.StatusNoContent)
	}
}

// requireSession writes a 400/404 and returns false when the session ID is
// missing or has no stored turns.
func (g *Gateway) requireSession(w http.ResponseWriter, r *http.Request, id string) bool {
	if id == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return false
	}
	if err := g.engine.Require(r.Context(), id); err != nil {
		if errors.Is(err, memory.ErrUnknownSession) {
			http.Error(w, "session not found", http.StatusNotFound)
			return false
		}
		http.Error(w, "failed to read session", http.StatusInternalServerError)
		return false
	}
	return true
}
