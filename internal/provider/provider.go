// Package provider defines the contract for the external completion
// endpoint. Concrete implementations live in separate packages
// (e.g. provider.openai) and also implement core.Module for lifecycle
// management.
//
// The endpoint is a pure request/response collaborator: recall never
// retries a failed call and never interprets its errors beyond surfacing
// them to the calling surface.
package provider

import "context"

// Provider is the interface for communicating with an LLM completion endpoint.
type Provider interface {
	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// ModelName returns the identifier of the underlying model.
	ModelName() string
}
