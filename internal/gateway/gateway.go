// Package gateway implements the gateway.http module: the HTTP and
// WebSocket surface over the memory engine and completion endpoint.
// It is a leaf module — nothing imports it.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/vjoshi/recall/internal/core"
	"github.com/vjoshi/recall/internal/memory"
	"github.com/vjoshi/recall/internal/provider"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Compile-time interface guards.
var (
	_ core.Module       = (*Gateway)(nil)
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
)

// Gateway is the HTTP gateway module.
type Gateway struct {
	config   Config
	appCtx   *core.AppContext
	logger   *slog.Logger
	server   *http.Server
	metrics  *Metrics
	registry *prometheus.Registry

	// Resolved lazily at Start() via service registry.
	engine    *memory.Engine
	completer provider.Provider
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.registry = prometheus.NewRegistry()
	g.metrics = NewMetrics(g.registry, "recall")

	ctx.RegisterService("gateway.metrics", g.metrics)

	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	return nil
}

// Start implements core.Starter. It resolves dependencies from the
// service registry and starts the HTTP server.
func (g *Gateway) Start() error {
	svc, ok := g.appCtx.Service("memory.engine")
	if !ok {
		return errors.New("gateway: memory.engine module is required")
	}
	engine, ok := svc.(*memory.Engine)
	if !ok {
		return errors.New("gateway: service memory.engine has unexpected type")
	}
	g.engine = engine

	RegisterSessionCount(g.registry, "recall", func() int {
		infos, err := g.engine.Sessions(context.Background())
		if err != nil {
			return 0
		}
		return len(infos)
	})

	// The completion endpoint is optional; chat endpoints degrade to 503
	// while read endpoints keep working.
	if svc, ok := g.appCtx.Service("provider.completion"); ok {
		if completer, ok := svc.(provider.Provider); ok {
			g.completer = completer
		}
	}

	mux := g.buildRouter()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      mux,
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.config.Bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
