// Package circuit pauses dispatch toward domains that keep failing.
package circuit

import (
	"math"
	"sync"
	"time"

	"github.com/barcraft/harvester/internal/harvest"
)

// RateLookup reports the maximum tolerated failure rate for a domain, when
// its source policy sets one.
type RateLookup func(domain string) (float64, bool)

// Breaker tracks a rolling window of fetch outcomes per domain and opens
// once failures in the window reach the limit. An open breaker closes again
// after the cooldown elapses; the window restarts clean on the next record.
type Breaker struct {
	window   int
	limit    int
	cooldown time.Duration
	clock    harvest.Clock
	rates    RateLookup

	mu      sync.Mutex
	domains map[string]*domainState
}

type domainState struct {
	outcomes []bool // ring of most recent outcomes, true = success
	next     int
	filled   bool
	openedAt *time.Time
}

// New builds a Breaker. windowSize and failureLimit must be positive.
func New(windowSize, failureLimit int, cooldown time.Duration, clock harvest.Clock) *Breaker {
	return &Breaker{
		window:   windowSize,
		limit:    failureLimit,
		cooldown: cooldown,
		clock:    clock,
		domains:  make(map[string]*domainState),
	}
}

// Allow reports whether jobs for the domain may be dispatched right now.
func (b *Breaker) Allow(domain string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.domains[domain]
	if !ok || st.openedAt == nil {
		return true
	}
	if b.clock.Now().Sub(*st.openedAt) >= b.cooldown {
		// Cooldown over. Close and forget the old window so one stale
		// failure cannot re-open immediately.
		b.domains[domain] = &domainState{outcomes: make([]bool, b.window)}
		return true
	}
	return false
}

// Record adds a fetch outcome for the domain and opens the breaker when
// failures in the rolling window reach the limit.
func (b *Breaker) Record(domain string, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.domains[domain]
	if !ok {
		st = &domainState{outcomes: make([]bool, b.window)}
		b.domains[domain] = st
	}
	st.outcomes[st.next] = success
	st.next++
	if st.next == b.window {
		st.next = 0
		st.filled = true
	}

	if st.openedAt != nil {
		return
	}
	if st.failures() >= b.limitFor(domain) {
		now := b.clock.Now()
		st.openedAt = &now
	}
}

// UseDomainRates makes the breaker derive each domain's failure limit from
// the looked-up max failure rate over the window, falling back to the
// service-wide limit for domains without one.
func (b *Breaker) UseDomainRates(lookup RateLookup) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rates = lookup
}

func (b *Breaker) limitFor(domain string) int {
	if b.rates != nil {
		if rate, ok := b.rates(domain); ok && rate > 0 {
			limit := int(math.Ceil(rate * float64(b.window)))
			if limit < 1 {
				limit = 1
			}
			return limit
		}
	}
	return b.limit
}

// Open reports whether the breaker is currently open for the domain. It is
// a read-only probe; Allow is what closes an open breaker after cooldown.
func (b *Breaker) Open(domain string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.domains[domain]
	if !ok || st.openedAt == nil {
		return false
	}
	return b.clock.Now().Sub(*st.openedAt) < b.cooldown
}

func (st *domainState) failures() int {
	n := st.next
	if st.filled {
		n = len(st.outcomes)
	}
	count := 0
	for i := 0; i < n; i++ {
		if !st.outcomes[i] {
			count++
		}
	}
	return count
}
