package fetch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/barcraft/harvester/internal/harvest"
)

// DomainLimiter throttles requests per hostname.
type DomainLimiter struct {
	qps      float64
	limiters sync.Map
}

// NewDomainLimiter builds a limiter allowing qps requests per second per
// domain. A non-positive qps disables throttling.
func NewDomainLimiter(qps float64) *DomainLimiter {
	return &DomainLimiter{qps: qps}
}

// Wait blocks until the domain's rate budget allows another request.
func (l *DomainLimiter) Wait(ctx context.Context, rawURL string) error {
	if l == nil || l.qps <= 0 {
		return nil
	}
	host := harvest.Hostname(rawURL)
	if host == "" {
		return fmt.Errorf("rate limit: bad url %q", rawURL)
	}
	host = strings.ToLower(host)
	val, _ := l.limiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(l.qps), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait limiter: %w", err)
	}
	return nil
}
