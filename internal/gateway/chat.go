package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vjoshi/recall/internal/memory"
	"github.com/vjoshi/recall/internal/provider"
)

// postMessageRequest is the body of POST /api/sessions/{id}/messages.
type postMessageRequest struct {
	Text string `json:"text"`
}

// postMessageResponse carries the assistant reply and token accounting.
type postMessageResponse struct {
	SessionID string              `json:"session_id"`
	Reply     memory.Turn         `json:"reply"`
	Usage     provider.TokenUsage `json:"usage"`
}

// handlePostMessage runs the full exchange pipeline: log the user turn,
// assemble the bounded context, call the completion endpoint, log the
// reply. Posting to an unknown session ID creates the session.
//
// An endpoint failure returns 502 after the user turn is stored — the
// turn log never loses input, and no retry happens here.
func (g *Gateway) handlePostMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			http.Error(w, "missing session id", http.StatusBadRequest)
			return
		}
		if g.completer == nil {
			http.Error(w, "no completion provider configured", http.StatusServiceUnavailable)
			return
		}

		var req postMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
			http.Error(w, "invalid request body: text is required", http.StatusBadRequest)
			return
		}

		reply, usage, err := g.exchange(r.Context(), id, req.Text)
		if err != nil {
			if errors.Is(err, errEndpointFailed) {
				http.Error(w, err.Error(), http.StatusBadGateway)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, postMessageResponse{
			SessionID: id,
			Reply:     reply,
			Usage:     usage,
		})
	}
}
