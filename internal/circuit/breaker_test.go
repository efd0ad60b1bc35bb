package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func TestBreakerOpensAtFailureLimit(t *testing.T) {
	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	b := New(10, 5, 5*time.Minute, clk)

	for i := 0; i < 4; i++ {
		b.Record("example.com", false)
	}
	require.True(t, b.Allow("example.com"))

	b.Record("example.com", false)
	require.False(t, b.Allow("example.com"))
}

func TestBreakerDefersNextJobAfterWindowFailures(t *testing.T) {
	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	b := New(10, 6, 5*time.Minute, clk)

	// Ten fetches, six of them failures.
	outcomes := []bool{true, false, false, true, false, true, false, false, true, false}
	for _, ok := range outcomes {
		b.Record("example.com", ok)
	}
	require.False(t, b.Allow("example.com"), "eleventh job should be deferred")
	require.True(t, b.Allow("other.com"), "breaker is per-domain")
}

func TestBreakerClosesAfterCooldown(t *testing.T) {
	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	b := New(4, 2, time.Minute, clk)

	b.Record("example.com", false)
	b.Record("example.com", false)
	require.False(t, b.Allow("example.com"))

	clk.advance(time.Minute)
	require.True(t, b.Allow("example.com"))

	// Window restarts clean: one new failure does not re-open.
	b.Record("example.com", false)
	require.True(t, b.Allow("example.com"))
}

func TestBreakerUsesPolicyFailureRate(t *testing.T) {
	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	b := New(10, 9, 5*time.Minute, clk)
	b.UseDomainRates(func(domain string) (float64, bool) {
		if domain == "strict.com" {
			return 0.3, true
		}
		return 0, false
	})

	// 0.3 over a window of 10 opens at the third failure.
	b.Record("strict.com", false)
	b.Record("strict.com", false)
	require.True(t, b.Allow("strict.com"))
	b.Record("strict.com", false)
	require.False(t, b.Allow("strict.com"))

	// Domains without a policy rate keep the service-wide limit.
	for i := 0; i < 8; i++ {
		b.Record("lax.com", false)
	}
	require.True(t, b.Allow("lax.com"))
	b.Record("lax.com", false)
	require.False(t, b.Allow("lax.com"))
}

func TestBreakerOpenIsReadOnly(t *testing.T) {
	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	b := New(4, 2, time.Minute, clk)

	require.False(t, b.Open("example.com"))
	b.Record("example.com", false)
	b.Record("example.com", false)
	require.True(t, b.Open("example.com"))

	// After cooldown Open turns false on its own; closing and clearing
	// the window stays with Allow.
	clk.advance(time.Minute)
	require.False(t, b.Open("example.com"))
	require.True(t, b.Allow("example.com"))

	b.Record("example.com", false)
	require.False(t, b.Open("example.com"))
	b.Record("example.com", false)
	require.True(t, b.Open("example.com"))
}

func TestBreakerRollingWindowForgetsOldFailures(t *testing.T) {
	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	b := New(3, 3, time.Minute, clk)

	b.Record("example.com", false)
	b.Record("example.com", false)
	b.Record("example.com", true)
	b.Record("example.com", true)
	// Window now holds [true, false, true]; only one failure remains.
	require.True(t, b.Allow("example.com"))
}
