// Package chat implements the interactive terminal surface: a line-based
// REPL that drives the memory pipeline and the completion endpoint.
package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/vjoshi/recall/internal/memory"
	"github.com/vjoshi/recall/internal/provider"
)

// exitWords end the conversation when typed on their own line.
var exitWords = map[string]struct{}{
	"exit": {},
	"quit": {},
	"bye":  {},
}

// REPL reads user lines, runs each through the engine and completion
// endpoint, and prints replies. In and Out are injectable for tests.
type REPL struct {
	Engine    *memory.Engine
	Completer provider.Provider
	SessionID string
	In        io.Reader
	Out       io.Writer
	Logger    *slog.Logger

	// Timeout bounds each completion call. Zero means one minute.
	Timeout time.Duration
}

const defaultExchangeTimeout = time.Minute

// Run loops until EOF, an exit word, or context cancellation.
// A completion failure prints an error line and keeps the session going;
// the user turn is already in the log by then.
func (r *REPL) Run(ctx context.Context) error {
	if r.Logger == nil {
		r.Logger = slog.Default()
	}
	if r.Timeout <= 0 {
		r.Timeout = defaultExchangeTimeout
	}

	fmt.Fprintf(r.Out, "session %s — type 'exit' to leave\n", r.SessionID)

	scanner := bufio.NewScanner(r.In)
	for {
		fmt.Fprint(r.Out, "> ")
		if !scanner.Scan() {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if _, done := exitWords[strings.ToLower(line)]; done {
			fmt.Fprintln(r.Out, "bye!")
			return nil
		}
		if strings.HasPrefix(line, "/") {
			r.command(ctx, line)
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, r.Timeout)
		reply, err := Exchange(callCtx, r.Engine, r.Completer, r.SessionID, line)
		cancel()
		if err != nil {
			fmt.Fprintf(r.Out, "error: %v\n", err)
			continue
		}
		fmt.Fprintf(r.Out, "%s\n", reply.Text)
	}
	return scanner.Err()
}

// command handles the slash commands: /profile, /summary, /wipe.
func (r *REPL) command(ctx context.Context, line string) {
	switch strings.ToLower(line) {
	case "/profile":
		profile, err := r.Engine.Profile(ctx, r.SessionID)
		if err != nil {
			fmt.Fprintf(r.Out, "error: %v\n", err)
			return
		}
		fmt.Fprintf(r.Out, "%s\n", profile.Card())
	case "/summary":
		snap, err := r.Engine.Assemble(ctx, r.SessionID)
		if err != nil {
			fmt.Fprintf(r.Out, "error: %v\n", err)
			return
		}
		if snap.Summary.Text == "" {
			fmt.Fprintln(r.Out, "(no summary yet)")
			return
		}
		fmt.Fprintf(r.Out, "%s\n", snap.Summary.Text)
	case "/wipe":
		if err := r.Engine.Wipe(ctx, r.SessionID); err != nil {
			fmt.Fprintf(r.Out, "error: %v\n", err)
			return
		}
		fmt.Fprintln(r.Out, "session wiped")
	default:
		fmt.Fprintf(r.Out, "unknown command %s (try /profile, /summary, /wipe)\n", line)
	}
}

// Exchange runs one user message through the pipeline: append the user
// turn, assemble the bounded context, call the endpoint once, and append
// the reply. The user turn stays in the log even when the endpoint fails.
func Exchange(ctx context.Context, engine *memory.Engine, completer provider.Provider, sessionID, text string) (memory.Turn, error) {
	if _, err := engine.AppendUser(ctx, sessionID, text); err != nil {
		return memory.Turn{}, err
	}

	snap, err := engine.Assemble(ctx, sessionID)
	if err != nil {
		return memory.Turn{}, err
	}

	resp, err := completer.Complete(ctx, provider.CompletionRequest{Messages: snap.Messages()})
	if err != nil {
		return memory.Turn{}, err
	}

	return engine.AppendAssistant(ctx, sessionID, resp.Content)
}
