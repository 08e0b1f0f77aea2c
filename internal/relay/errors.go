package relay

import "errors"

// Domain-specific errors for relay operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnectionFailed is returned when a broker connection attempt fails.
	ErrConnectionFailed = errors.New("relay: connection failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("relay: subscribe failed")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("relay: publish failed")

	// ErrNoActiveRelay is returned by Route when no relay id was given and
	// no relay connection is currently active.
	ErrNoActiveRelay = errors.New("relay: no active relay connections")

	// ErrUnknownRelay is returned by Route when the requested relay id has
	// no active connection.
	ErrUnknownRelay = errors.New("relay: no active connection for relay id")

	// ErrQueueFull is returned by Route when the relay's publish queue is at
	// capacity. The queue is bounded; callers must not assume unbounded buffering.
	ErrQueueFull = errors.New("relay: publish queue full")

	// ErrWorkerStopped is returned by Route when the relay's worker has
	// terminated but has not yet been reaped by the supervisor.
	ErrWorkerStopped = errors.New("relay: relay worker has stopped")

	// ErrDuplicateRelay is returned when building a registry from a relay
	// list containing the same id twice.
	ErrDuplicateRelay = errors.New("relay: duplicate relay id")

	// ErrEmptyRelayID is returned when a relay configuration has no id.
	ErrEmptyRelayID = errors.New("relay: relay id cannot be empty")
)
