package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const shutdownTimeout = 30 * time.Second

// App owns a set of loaded modules and drives them through their
// lifecycle in load order (reverse order on the way down).
type App struct {
	ctx    *AppContext
	loaded []loadedModule
	logger *slog.Logger
}

type loadedModule struct {
	id      ModuleID
	mod     Module
	started bool
}

// NewApp creates an App around the given context.
func NewApp(ctx *AppContext) *App {
	return &App{
		ctx:    ctx,
		logger: ctx.Logger.With("component", "core"),
	}
}

// LoadModules instantiates, configures, provisions, and validates the
// modules named by ids, in order. A failure unwinds everything loaded
// so far.
func (a *App) LoadModules(ids []string) error {
	for _, id := range ids {
		mod, err := a.ctx.LoadModule(id)
		if err != nil {
			a.unwind(len(a.loaded) - 1)
			a.loaded = nil
			return fmt.Errorf("loading module %s: %w", id, err)
		}
		a.loaded = append(a.loaded, loadedModule{id: mod.ModuleInfo().ID, mod: mod})
		a.logger.Info("module loaded", "module", id)
	}
	return nil
}

// Start calls Start on every loaded module that implements Starter, in
// load order. On failure the modules started so far are stopped again,
// newest first.
func (a *App) Start() error {
	for i := range a.loaded {
		lm := &a.loaded[i]
		starter, ok := lm.mod.(Starter)
		if !ok {
			continue
		}
		a.logger.Info("starting module", "module", string(lm.id))
		if err := starter.Start(); err != nil {
			a.logger.Error("module start failed", "module", string(lm.id), "error", err)
			a.unwind(i - 1)
			return fmt.Errorf("starting module %s: %w", lm.id, err)
		}
		lm.started = true
	}
	a.logger.Info("all modules started")
	return nil
}

// Stop stops every started module in reverse start order, bounded by
// the shutdown timeout.
func (a *App) Stop() {
	a.unwind(len(a.loaded) - 1)
}

// unwind stops modules loaded[0..from], newest first. Stop errors are
// logged, not propagated; shutdown always proceeds.
func (a *App) unwind(from int) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := from; i >= 0; i-- {
		lm := &a.loaded[i]
		stopper, ok := lm.mod.(Stopper)
		if !ok {
			lm.started = false
			continue
		}
		if lm.started {
			a.logger.Info("stopping module", "module", string(lm.id))
		}
		if err := stopper.Stop(ctx); err != nil {
			a.logger.Error("module stop error", "module", string(lm.id), "error", err)
		}
		lm.started = false
	}
}

// Run starts all modules and blocks until SIGINT or SIGTERM, then
// shuts everything down.
func (a *App) Run() error {
	if err := a.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	a.logger.Info("shutdown signal received", "signal", sig.String())

	a.Stop()
	a.logger.Info("shutdown complete")
	return nil
}

var errModuleNotLoaded = errors.New("module not loaded")

// ModuleByID returns a loaded module instance by its ID.
func (a *App) ModuleByID(id ModuleID) (Module, error) {
	for i := range a.loaded {
		if a.loaded[i].id == id {
			return a.loaded[i].mod, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", errModuleNotLoaded, id)
}
