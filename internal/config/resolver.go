package config

import (
	"slices"
)

// Resolve returns the configured module IDs in sorted order, which is
// also the load and start order. Keeping it deterministic means a
// config file always produces the same startup sequence.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
