package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// EngineConfig holds the tunables for session memory derivation.
type EngineConfig struct {
	// WindowSize is k: the number of trailing turns (or exchanges, see
	// WindowMode) retained for short-context assembly.
	WindowSize int

	// WindowMode selects flat last-k turns or last-k exchanges.
	WindowMode WindowMode

	// SummaryTurns is M: how many trailing turns the summary digests.
	SummaryTurns int

	// SummaryMaxLen bounds the summary length in runes.
	SummaryMaxLen int

	// SystemPrompt is carried on the session context. It is not a turn:
	// it never enters the turn log, extraction, or summarization.
	SystemPrompt string
}

// Defaults mirror the original scripts: a 6-turn window, a 500-rune
// summary over the last 10 turns.
func (c *EngineConfig) defaults() {
	if c.WindowSize <= 0 {
		c.WindowSize = 6
	}
	if !c.WindowMode.Valid() {
		c.WindowMode = WindowModeTurns
	}
	if c.SummaryTurns <= 0 {
		c.SummaryTurns = DefaultSummaryTurns
	}
	if c.SummaryMaxLen <= 0 {
		c.SummaryMaxLen = 500
	}
}

// sessionState caches the derived profile and summary for one session.
// Both are pure functions of the turn log; loaded is false until the
// log has been replayed (relevant after a process restart with a
// durable store).
type sessionState struct {
	mu      sync.Mutex
	loaded  bool
	profile Profile
	summary Summary
}

// Engine sequences the memory pipeline for each session: append a turn,
// update the profile, refresh the summary, assemble context snapshots.
// All operations for one session ID run serially under a per-session
// lock; distinct sessions proceed concurrently without coordination.
//
// The engine never calls the completion endpoint and never retries a
// failed store operation — both policies belong to the calling surface.
type Engine struct {
	store      TurnStore
	extractor  Extractor
	summarizer Summarizer
	cfg        EngineConfig
	logger     *slog.Logger

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// NewEngine creates an Engine over the given store and strategies.
func NewEngine(store TurnStore, extractor Extractor, summarizer Summarizer, cfg EngineConfig, logger *slog.Logger) *Engine {
	cfg.defaults()
	if extractor == nil {
		extractor = RuleExtractor{}
	}
	if summarizer == nil {
		summarizer = ExtractiveSummarizer{Turns: cfg.SummaryTurns}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:      store,
		extractor:  extractor,
		summarizer: summarizer,
		cfg:        cfg,
		logger:     logger,
		sessions:   make(map[string]*sessionState),
	}
}

// Config returns the engine configuration with defaults applied.
func (e *Engine) Config() EngineConfig {
	return e.cfg
}

// SetSummarizer replaces the summarizer strategy. Safe to call while
// other goroutines append; already-cached summaries are not recomputed.
func (e *Engine) SetSummarizer(s Summarizer) {
	if s == nil {
		return
	}
	e.mu.Lock()
	e.summarizer = s
	e.mu.Unlock()
}

// currentSummarizer reads the summarizer under the engine lock, since
// module startup may swap it in while earlier-started surfaces are
// already serving.
func (e *Engine) currentSummarizer() Summarizer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.summarizer
}

func (e *Engine) state(sessionID string) *sessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.sessions[sessionID]
	if !ok {
		st = &sessionState{}
		e.sessions[sessionID] = st
	}
	return st
}

// ensureLoaded rebuilds the derived caches by replaying the full turn
// log through the extractor. Must be called with st.mu held.
func (e *Engine) ensureLoaded(ctx context.Context, sessionID string, st *sessionState) error {
	if st.loaded {
		return nil
	}

	turns, err := e.store.ReadAll(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("memory: replay session %s: %w", sessionID, err)
	}

	profile := Profile{}
	for _, t := range turns {
		if t.Role == RoleUser {
			profile = e.extractor.Extract(profile, t.Text)
		}
	}

	st.profile = profile
	st.summary = e.currentSummarizer().Summarize(ctx, turns, e.cfg.SummaryMaxLen)
	st.loaded = true

	if len(turns) > 0 {
		e.logger.Debug("session rebuilt from turn log",
			"session", sessionID,
			"turns", len(turns),
		)
	}
	return nil
}

// AppendUser appends a user turn and runs the derivation pipeline:
// extraction updates the profile, then the summary is refreshed.
// A store failure propagates before any cache is touched; the turn is
// never silently dropped.
func (e *Engine) AppendUser(ctx context.Context, sessionID, text string) (Turn, error) {
	st := e.state(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := e.ensureLoaded(ctx, sessionID, st); err != nil {
		return Turn{}, err
	}

	turn, err := e.store.Append(ctx, sessionID, RoleUser, text)
	if err != nil {
		return Turn{}, fmt.Errorf("memory: append user turn: %w", err)
	}

	st.profile = e.extractor.Extract(st.profile, text)
	if err := e.refreshSummary(ctx, sessionID, st); err != nil {
		return Turn{}, err
	}
	return turn, nil
}

// AppendAssistant appends an assistant turn and refreshes the summary.
// Assistant text is excluded from profile extraction.
func (e *Engine) AppendAssistant(ctx context.Context, sessionID, text string) (Turn, error) {
	st := e.state(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := e.ensureLoaded(ctx, sessionID, st); err != nil {
		return Turn{}, err
	}

	turn, err := e.store.Append(ctx, sessionID, RoleAssistant, text)
	if err != nil {
		return Turn{}, fmt.Errorf("memory: append assistant turn: %w", err)
	}

	if err := e.refreshSummary(ctx, sessionID, st); err != nil {
		return Turn{}, err
	}
	return turn, nil
}

// refreshSummary recomputes the rolling summary from the trailing turns.
// Must be called with st.mu held.
func (e *Engine) refreshSummary(ctx context.Context, sessionID string, st *sessionState) error {
	recent, err := e.store.LastN(ctx, sessionID, e.cfg.SummaryTurns)
	if err != nil {
		return fmt.Errorf("memory: read turns for summary: %w", err)
	}
	st.summary = e.currentSummarizer().Summarize(ctx, recent, e.cfg.SummaryMaxLen)
	return nil
}

// Assemble builds the immutable context snapshot for a completion call:
// the configured window, the rolling summary, and the profile. An absent
// session assembles as empty history.
func (e *Engine) Assemble(ctx context.Context, sessionID string) (Context, error) {
	st := e.state(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := e.ensureLoaded(ctx, sessionID, st); err != nil {
		return Context{}, err
	}

	n := e.cfg.WindowSize
	if e.cfg.WindowMode == WindowModeExchanges {
		n = 2 * e.cfg.WindowSize
	}
	window, err := e.store.LastN(ctx, sessionID, n)
	if err != nil {
		return Context{}, fmt.Errorf("memory: read window: %w", err)
	}
	if window == nil {
		window = []Turn{}
	}

	return Context{
		SessionID:    sessionID,
		SystemPrompt: e.cfg.SystemPrompt,
		Window:       window,
		Summary:      st.summary,
		Profile:      st.profile.Clone(),
	}, nil
}

// Profile returns the derived profile for a session.
func (e *Engine) Profile(ctx context.Context, sessionID string) (Profile, error) {
	st := e.state(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := e.ensureLoaded(ctx, sessionID, st); err != nil {
		return Profile{}, err
	}
	return st.profile.Clone(), nil
}

// History returns the stored turns for a session, newest last.
// limit <= 0 returns the full log.
func (e *Engine) History(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	if limit > 0 {
		return e.store.LastN(ctx, sessionID, limit)
	}
	return e.store.ReadAll(ctx, sessionID)
}

// Require returns ErrUnknownSession if no turns exist for the session.
// Surfaces that expose per-session resources use it to distinguish an
// absent session from an empty read.
func (e *Engine) Require(ctx context.Context, sessionID string) error {
	n, err := e.store.Len(ctx, sessionID)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	return nil
}

// Wipe atomically removes all turns for a session and drops its caches.
// A later append with the same ID starts a fresh session.
func (e *Engine) Wipe(ctx context.Context, sessionID string) error {
	st := e.state(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := e.store.Wipe(ctx, sessionID); err != nil {
		return fmt.Errorf("memory: wipe session %s: %w", sessionID, err)
	}

	st.profile = Profile{}
	st.summary = Summary{}
	st.loaded = true

	e.mu.Lock()
	delete(e.sessions, sessionID)
	e.mu.Unlock()

	e.logger.Info("session wiped", "session", sessionID)
	return nil
}

// Sessions lists the stored sessions.
func (e *Engine) Sessions(ctx context.Context) ([]SessionInfo, error) {
	return e.store.Sessions(ctx)
}
