package platform

import "errors"

// Sentinel errors for platform operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnauthorized indicates the platform rejected the service token or a
	// relay's network credentials. Startup treats this as fatal.
	ErrUnauthorized = errors.New("platform: unauthorized")

	// ErrRequestFailed indicates a platform request failed for a reason other
	// than authorization (network error, unexpected status).
	ErrRequestFailed = errors.New("platform: request failed")
)
