package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// Configurable is implemented by modules that accept YAML configuration.
// Configure runs after instantiation and before Provision, and receives
// the raw YAML node of this module's config section.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner is implemented by modules that need setup after instantiation.
// This is where modules apply defaults, open resources, and publish
// services for other modules via the AppContext.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator is implemented by modules that can check their provisioned
// state for completeness. Runs after Provision and must be read-only.
type Validator interface {
	Validate() error
}

// Starter is implemented by modules that need to start background work
// (goroutines, listeners, schedules). Called after all modules are
// provisioned and validated.
type Starter interface {
	Start() error
}

// Stopper is implemented by modules that hold resources to release.
// Stop runs during shutdown in reverse start order.
type Stopper interface {
	Stop(ctx context.Context) error
}
