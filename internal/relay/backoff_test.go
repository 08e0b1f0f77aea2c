package relay

import (
	"testing"
	"time"
)

func TestBackoffMonotonic(t *testing.T) {
	prev := Backoff(0)
	for attempt := 1; attempt < MaxRetries; attempt++ {
		d := Backoff(attempt)
		if d < prev {
			t.Errorf("Backoff(%d) = %v, less than Backoff(%d) = %v", attempt, d, attempt-1, prev)
		}
		prev = d
	}
}

func TestBackoffBounded(t *testing.T) {
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if d := Backoff(attempt); d > backoffMaxInterval {
			t.Errorf("Backoff(%d) = %v, exceeds ceiling %v", attempt, d, backoffMaxInterval)
		}
	}
}

func TestBackoffDeterministic(t *testing.T) {
	for attempt := 0; attempt < 5; attempt++ {
		if a, b := Backoff(attempt), Backoff(attempt); a != b {
			t.Errorf("Backoff(%d) not deterministic: %v != %v", attempt, a, b)
		}
	}
}

func TestBackoffFirstAttempt(t *testing.T) {
	if d := Backoff(0); d != 1*time.Second {
		t.Errorf("Backoff(0) = %v, want 1s", d)
	}
}

func TestBackoffReachesCeiling(t *testing.T) {
	// 1s doubling per attempt hits the 60s cap well before the retry limit.
	if d := Backoff(MaxRetries - 1); d != backoffMaxInterval {
		t.Errorf("Backoff(%d) = %v, want ceiling %v", MaxRetries-1, d, backoffMaxInterval)
	}
}
