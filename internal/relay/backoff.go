package relay

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// MaxRetries is the number of consecutive failed connection attempts after
// which a relay worker terminates. The supervisor respawns a fresh worker,
// with retry state reset, on its next sweep.
const MaxRetries = 20

// Backoff curve parameters. The curve doubles from one second up to a fixed
// one minute ceiling.
const (
	backoffInitialInterval = 1 * time.Second
	backoffMaxInterval     = 60 * time.Second
	backoffMultiplier      = 2.0
)

// Backoff returns the wait duration before reconnect attempt number attempt
// (zero-based).
//
// The function is pure and deterministic: the randomization factor is zero,
// so the same attempt count always yields the same delay. Delays are
// monotonically non-decreasing and never exceed the one minute ceiling.
func Backoff(attempt int) time.Duration {
	eb := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(backoffInitialInterval),
		backoff.WithMaxInterval(backoffMaxInterval),
		backoff.WithMultiplier(backoffMultiplier),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxElapsedTime(0),
	)

	d := eb.NextBackOff()
	for i := 0; i < attempt; i++ {
		d = eb.NextBackOff()
	}
	return d
}
