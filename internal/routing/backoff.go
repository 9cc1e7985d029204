package routing

import (
	"time"
)

// BackoffPolicy defines the per-candidate backoff state machine parameters.
type BackoffPolicy struct {
	// Base is the backoff applied after the first consecutive failure.
	Base time.Duration

	// Max caps the exponential growth.
	Max time.Duration

	// MaxFailures is the circuit-open ceiling: once consecutive failures
	// reach it the candidate is forced unavailable until a manual reset.
	MaxFailures int
}

// DefaultBackoffPolicy matches production defaults: 60s base doubling up to
// 30 minutes, circuit opening after 5 consecutive failures.
var DefaultBackoffPolicy = BackoffPolicy{
	Base:        60 * time.Second,
	Max:         30 * time.Minute,
	MaxFailures: 5,
}

// Delay returns the backoff duration after the k-th consecutive failure:
// min(Base * 2^(k-1), Max). k below 1 yields zero.
func (p BackoffPolicy) Delay(k int) time.Duration {
	if k < 1 {
		return 0
	}
	d := p.Base
	for i := 1; i < k; i++ {
		d *= 2
		if d >= p.Max {
			return p.Max
		}
	}
	if d > p.Max {
		return p.Max
	}
	return d
}
