package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/vjoshi/recall/internal/provider"
)

// mapHTTPError turns a non-2xx response into a provider sentinel error,
// pulling the human-readable message out of the API error envelope when
// the body carries one.
func mapHTTPError(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	msg := string(body)
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}

	switch {
	case statusCode == 429:
		return fmt.Errorf("%w: %s", provider.ErrRateLimit, msg)
	case statusCode == 401 || statusCode == 403:
		return fmt.Errorf("%w: %s", provider.ErrAuthentication, msg)
	case statusCode >= 500:
		return fmt.Errorf("%w: %s", provider.ErrEndpointDown, msg)
	}
	return fmt.Errorf("openai: HTTP %d: %s", statusCode, msg)
}

// mapConnectionError classifies transport failures. Cancellation and
// deadline errors belong to the caller and pass through untouched;
// anything the net package recognizes counts as the endpoint being down.
func mapConnectionError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", provider.ErrEndpointDown, err)
	}
	return fmt.Errorf("openai: %w", err)
}
