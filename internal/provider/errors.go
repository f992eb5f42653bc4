package provider

import "errors"

// Sentinel errors for completion endpoint failures. Surfaces match on
// these with errors.Is; the core never does.
var (
	// ErrEndpointDown indicates the endpoint is unreachable or returned a 5xx.
	ErrEndpointDown = errors.New("completion endpoint unavailable")

	// ErrRateLimit indicates the endpoint returned HTTP 429.
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrAuthentication indicates invalid or missing credentials (401/403).
	ErrAuthentication = errors.New("authentication failed")
)
