package core

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

// ModuleID uniquely identifies a module, namespaced by dots
// (e.g. "memory.sqlite", "gateway.http").
type ModuleID string

// Module is the minimal interface every recall module implements.
type Module interface {
	ModuleInfo() ModuleInfo
}

// ModuleInfo describes a module and how to construct fresh instances of it.
type ModuleInfo struct {
	ID  ModuleID
	New func() Module
}

var registry = struct {
	sync.RWMutex
	byID map[ModuleID]ModuleInfo
}{byID: make(map[ModuleID]ModuleInfo)}

// RegisterModule records a module type in the global registry, keyed by
// the ID its ModuleInfo reports. Called from init(); duplicate or
// malformed registrations are programmer errors and panic.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	if info.ID == "" {
		panic("core: module registered with empty ID")
	}
	if info.New == nil {
		panic(fmt.Sprintf("core: module %s registered with nil New", info.ID))
	}

	registry.Lock()
	defer registry.Unlock()

	if _, dup := registry.byID[info.ID]; dup {
		panic(fmt.Sprintf("core: module %s registered twice", info.ID))
	}
	registry.byID[info.ID] = info
}

// GetModule looks up a registered module by ID.
func GetModule(id string) (ModuleInfo, bool) {
	registry.RLock()
	defer registry.RUnlock()
	info, ok := registry.byID[ModuleID(id)]
	return info, ok
}

// GetModules returns every registered module, sorted by ID.
func GetModules() []ModuleInfo {
	registry.RLock()
	defer registry.RUnlock()

	infos := make([]ModuleInfo, 0, len(registry.byID))
	for _, info := range registry.byID {
		infos = append(infos, info)
	}
	slices.SortFunc(infos, func(a, b ModuleInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return infos
}
