package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sagarc03/bucketry/internal/clock"
)

func TestSince_NeverNegative(t *testing.T) {
	t.Parallel()

	start := clock.Now()
	assert.GreaterOrEqual(t, clock.Since(start), time.Duration(0))
}

func TestSince_Advances(t *testing.T) {
	t.Parallel()

	if !clock.Enabled() {
		t.Skip("clock disabled in this build")
	}

	start := clock.Now()
	time.Sleep(2 * time.Millisecond)
	assert.GreaterOrEqual(t, clock.Since(start), 2*time.Millisecond)
}
