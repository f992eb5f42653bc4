// Package inproc implements the memory.inproc module: a volatile
// in-process turn store for development and tests. Nothing survives a
// restart; use memory.sqlite for durable sessions.
package inproc

import (
	"github.com/vjoshi/recall/internal/core"
	"github.com/vjoshi/recall/internal/memory"
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
)

// Module wraps memory.InProcessStore as a loadable module.
type Module struct {
	store *memory.InProcessStore
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "memory.inproc",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable. The module takes no options;
// an empty mapping is accepted so configs can list it uniformly.
func (m *Module) Configure(node *yaml.Node) error {
	var cfg struct{}
	return node.Decode(&cfg)
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.store = memory.NewInProcessStore()
	ctx.RegisterService("memory.turns", m.store)
	ctx.Logger.Info("in-process turn store provisioned")
	return nil
}

// Store returns the TurnStore implementation.
func (m *Module) Store() memory.TurnStore {
	return m.store
}
