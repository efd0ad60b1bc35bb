package harvest

import "time"

// Backoff returns the wait before retry number attempt (1-based), doubling
// from the policy base delay and capped at the policy maximum.
func Backoff(retry RetrySettings, attempt int) time.Duration {
	base := retry.BaseDelay
	if base <= 0 {
		base = time.Minute
	}
	maxDelay := retry.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Minute
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}
