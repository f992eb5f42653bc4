package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/vjoshi/recall/internal/memory"
	"github.com/vjoshi/recall/internal/provider"
)

// wsInbound is a client chat message.
type wsInbound struct {
	Text string `json:"text"`
}

// wsOutbound is a server frame: a reply or an error.
type wsOutbound struct {
	SessionID string       `json:"session_id"`
	Reply     *memory.Turn `json:"reply,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// handleWSChat upgrades to a WebSocket and runs a chat loop over the
// same pipeline as the REST endpoint. The session ID comes from the
// ?session query parameter; a missing one gets a fresh UUID so each
// connection defaults to its own conversation.
func (g *Gateway) handleWSChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			g.logger.Error("websocket accept failed", "error", err)
			return
		}
		// Backstop for panics and early returns; a no-op once the loop
		// has closed the connection with a proper status.
		defer conn.CloseNow()

		sessionID := r.URL.Query().Get("session")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		g.metrics.WSConnections.Inc()
		defer g.metrics.WSConnections.Dec()
		g.logger.Info("chat connection opened", "session", sessionID)

		ctx := r.Context()
		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				status := websocket.CloseStatus(err)
				if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
					errors.Is(err, context.Canceled) {
					_ = conn.Close(websocket.StatusNormalClosure, "")
				} else {
					g.logger.Warn("chat connection read failed", "session", sessionID, "error", err)
				}
				return
			}
			if typ != websocket.MessageText {
				g.wsError(ctx, conn, sessionID, "text frames only")
				continue
			}

			var in wsInbound
			if err := json.Unmarshal(data, &in); err != nil || in.Text == "" {
				g.wsError(ctx, conn, sessionID, "invalid message: text is required")
				continue
			}

			reply, _, err := g.exchange(ctx, sessionID, in.Text)
			if err != nil {
				g.wsError(ctx, conn, sessionID, err.Error())
				continue
			}

			g.wsSend(ctx, conn, wsOutbound{SessionID: sessionID, Reply: &reply})
		}
	}
}

// errEndpointFailed marks a provider failure so the REST handler can map
// it to 502 instead of 500. The user turn is already stored by then.
var errEndpointFailed = errors.New("completion endpoint failed")

// exchange runs one user message through the memory pipeline and the
// completion endpoint, returning the stored assistant turn.
func (g *Gateway) exchange(ctx context.Context, sessionID, text string) (memory.Turn, provider.TokenUsage, error) {
	var usage provider.TokenUsage

	if g.completer == nil {
		return memory.Turn{}, usage, errors.New("no completion provider configured")
	}

	if _, err := g.engine.AppendUser(ctx, sessionID, text); err != nil {
		return memory.Turn{}, usage, errors.New("failed to store message")
	}
	g.metrics.TurnsAppended.WithLabelValues(string(memory.RoleUser)).Inc()

	snap, err := g.engine.Assemble(ctx, sessionID)
	if err != nil {
		return memory.Turn{}, usage, errors.New("failed to assemble context")
	}

	start := time.Now()
	resp, err := g.completer.Complete(ctx, provider.CompletionRequest{Messages: snap.Messages()})
	if err != nil {
		g.metrics.CompletionErrors.Inc()
		g.logger.Error("completion failed", "session", sessionID, "error", err)
		return memory.Turn{}, usage, errEndpointFailed
	}
	g.metrics.ObserveCompletionLatency(time.Since(start))

	reply, err := g.engine.AppendAssistant(ctx, sessionID, resp.Content)
	if err != nil {
		return memory.Turn{}, usage, errors.New("failed to store reply")
	}
	g.metrics.TurnsAppended.WithLabelValues(string(memory.RoleAssistant)).Inc()

	return reply, resp.Usage, nil
}

func (g *Gateway) wsError(ctx context.Context, conn *websocket.Conn, sessionID, msg string) {
	g.wsSend(ctx, conn, wsOutbound{SessionID: sessionID, Error: msg})
}

func (g *Gateway) wsSend(ctx context.Context, conn *websocket.Conn, out wsOutbound) {
	data, err := json.Marshal(out)
	if err != nil {
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		g.logger.Warn("chat connection write failed", "session", out.SessionID, "error", err)
	}
}
