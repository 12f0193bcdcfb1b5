//go:build !bucketry_noclock && !wasip1 && !js

// Package clock provides the time source used to measure request latency.
//
// The default build uses the monotonic clock. Builds tagged bucketry_noclock,
// and targets without a reliable clock (wasip1, js), get a stand-in whose
// readings are always zero, so callers compile unchanged everywhere.
package clock

import "time"

// Instant is an opaque point on the monotonic clock.
type Instant struct {
	t time.Time
}

// Now returns the current instant.
func Now() Instant {
	return Instant{t: time.Now()}
}

// Since returns the time elapsed since start. It is never negative.
func Since(start Instant) time.Duration {
	d := time.Since(start.t)
	if d < 0 {
		return 0
	}
	return d
}

// Enabled reports whether this build measures real time.
func Enabled() bool { return true }
