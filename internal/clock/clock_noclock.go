//go:build bucketry_noclock || wasip1 || js

package clock

import "time"

// Instant is an empty stand-in; this build does not read the clock.
type Instant struct{}

// Now returns the zero instant.
func Now() Instant { return Instant{} }

// Since always returns zero.
func Since(Instant) time.Duration { return 0 }

// Enabled reports whether this build measures real time.
func Enabled() bool { return false }
