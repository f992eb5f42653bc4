// Package engine implements the memory.engine module. It wires the turn
// store, extractor and summarizer into a memory.Engine and publishes it
// as the "memory.engine" service for surfaces to consume.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vjoshi/recall/internal/core"
	"github.com/vjoshi/recall/internal/memory"
	"github.com/vjoshi/recall/internal/provider"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Module       = (*Module)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
)

// Module builds and publishes the conversation-memory engine.
type Module struct {
	config Config
	appCtx *core.AppContext
	logger *slog.Logger

	// The engine is registered during Provision so consumers can resolve
	// it at Start regardless of module order; the store it delegates to
	// is bound in Start, after all Provisions have run.
	store  *lateStore
	engine *memory.Engine
}

// Config holds the engine module configuration.
type Config struct {
	// WindowSize is the context window bound: turns in "turns" mode,
	// exchanges in "exchanges" mode. Defaults to 6.
	WindowSize int `yaml:"window_size"`

	// WindowMode selects flat-turn or exchange-pair windowing.
	// One of "turns" (default) or "exchanges".
	WindowMode string `yaml:"window_mode"`

	// SummaryTurns is how many trailing turns feed the summary. Defaults to 10.
	SummaryTurns int `yaml:"summary_turns"`

	// SummaryMaxLen caps the summary length in runes. Defaults to 500.
	SummaryMaxLen int `yaml:"summary_max_len"`

	// SystemPrompt is prepended to every assembled context. Never logged
	// as a turn.
	SystemPrompt string `yaml:"system_prompt"`

	// Summarizer selects the summarizer backend: "extractive" (default)
	// or "llm". The llm summarizer falls back to extractive when the
	// completion endpoint fails.
	Summarizer string `yaml:"summarizer"`
}

func (c *Config) defaults() {
	if c.WindowMode == "" {
		c.WindowMode = string(memory.WindowModeTurns)
	}
	if c.Summarizer == "" {
		c.Summarizer = "extractive"
	}
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "memory.engine",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("engine: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.appCtx = ctx
	m.logger = ctx.Logger
	m.store = &lateStore{}

	cfg := memory.EngineConfig{
		WindowSize:    m.config.WindowSize,
		WindowMode:    memory.WindowMode(m.config.WindowMode),
		SummaryTurns:  m.config.SummaryTurns,
		SummaryMaxLen: m.config.SummaryMaxLen,
		SystemPrompt:  m.config.SystemPrompt,
	}

	m.engine = memory.NewEngine(m.store, nil, nil, cfg, m.logger)
	ctx.RegisterService("memory.engine", m.engine)

	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if m.config.WindowSize < 0 {
		return fmt.Errorf("engine: window_size must be non-negative, got %d", m.config.WindowSize)
	}
	if !memory.WindowMode(m.config.WindowMode).Valid() {
		return fmt.Errorf("engine: unknown window_mode %q", m.config.WindowMode)
	}
	if m.config.Summarizer != "extractive" && m.config.Summarizer != "llm" {
		return fmt.Errorf("engine: unknown summarizer %q", m.config.Summarizer)
	}
	return nil
}

// Start implements core.Starter. It binds the turn store published by
// whichever store module is configured, and the completion endpoint if
// the llm summarizer is selected.
func (m *Module) Start() error {
	svc, ok := m.appCtx.Service("memory.turns")
	if !ok {
		return fmt.Errorf("engine: no turn store configured (enable memory.inproc or memory.sqlite)")
	}
	store, ok := svc.(memory.TurnStore)
	if !ok {
		return fmt.Errorf("engine: service memory.turns has unexpected type %T", svc)
	}
	m.store.bind(store)

	// The llm summarizer needs a completion provider, but surfaces that
	// never summarize through it (the wipe CLI runs only memory.*
	// modules) must still start. Fall back to extractive when no
	// provider is loaded.
	if m.config.Summarizer == "llm" {
		if svc, ok := m.appCtx.Service("provider.completion"); ok {
			completer, ok := svc.(provider.Provider)
			if !ok {
				return fmt.Errorf("engine: service provider.completion has unexpected type %T", svc)
			}
			m.engine.SetSummarizer(&memory.CompletionSummarizer{
				Provider: completer,
				Fallback: memory.ExtractiveSummarizer{Turns: m.engine.Config().SummaryTurns},
				Logger:   m.logger,
			})
		} else {
			m.logger.Warn("summarizer llm configured but no completion provider is loaded, using extractive")
		}
	}

	m.logger.Info("memory engine started",
		"window_size", m.engine.Config().WindowSize,
		"window_mode", string(m.engine.Config().WindowMode),
		"summarizer", m.config.Summarizer,
	)

	return nil
}

// Engine returns the built engine.
func (m *Module) Engine() *memory.Engine {
	return m.engine
}

// lateStore delegates to a TurnStore bound after provisioning. Binding
// happens in this module's Start while surfaces started earlier may
// already be serving, so the delegate is read and written under a lock.
// Calls before binding fail rather than panic.
type lateStore struct {
	mu    sync.RWMutex
	inner memory.TurnStore
}

var _ memory.TurnStore = (*lateStore)(nil)

func (s *lateStore) bind(inner memory.TurnStore) {
	s.mu.Lock()
	s.inner = inner
	s.mu.Unlock()
}

var errNotBound = fmt.Errorf("engine: turn store not bound yet")

func (s *lateStore) delegate() (memory.TurnStore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.inner == nil {
		return nil, errNotBound
	}
	return s.inner, nil
}

func (s *lateStore) Append(ctx context.Context, sessionID string, role memory.Role, text string) (memory.Turn, error) {
	inner, err := s.delegate()
	if err != nil {
		return memory.Turn{}, err
	}
	return inner.Append(ctx, sessionID, role, text)
}

func (s *lateStore) ReadAll(ctx context.Context, sessionID string) ([]memory.Turn, error) {
	inner, err := s.delegate()
	if err != nil {
		return nil, err
	}
	return inner.ReadAll(ctx, sessionID)
}

func (s *lateStore) LastN(ctx context.Context, sessionID string, n int) ([]memory.Turn, error) {
	inner, err := s.delegate()
	if err != nil {
		return nil, err
	}
	return inner.LastN(ctx, sessionID, n)
}

func (s *lateStore) Wipe(ctx context.Context, sessionID string) error {
	inner, err := s.delegate()
	if err != nil {
		return err
	}
	return inner.Wipe(ctx, sessionID)
}

func (s *lateStore) Sessions(ctx context.Context) ([]memory.SessionInfo, error) {
	inner, err := s.delegate()
	if err != nil {
		return nil, err
	}
	return inner.Sessions(ctx)
}

func (s *lateStore) Len(ctx context.Context, sessionID string) (int, error) {
	inner, err := s.delegate()
	if err != nil {
		return 0, err
	}
	return inner.Len(ctx, sessionID)
}
