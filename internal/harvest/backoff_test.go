package harvest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffDoubles(t *testing.T) {
	retry := RetrySettings{BaseDelay: time.Minute, MaxDelay: 30 * time.Minute, MaxAttempts: 4}

	require.Equal(t, 1*time.Minute, Backoff(retry, 1))
	require.Equal(t, 2*time.Minute, Backoff(retry, 2))
	require.Equal(t, 4*time.Minute, Backoff(retry, 3))
	require.Equal(t, 8*time.Minute, Backoff(retry, 4))
}

func TestBackoffCapped(t *testing.T) {
	retry := RetrySettings{BaseDelay: time.Minute, MaxDelay: 5 * time.Minute}

	require.Equal(t, 4*time.Minute, Backoff(retry, 3))
	require.Equal(t, 5*time.Minute, Backoff(retry, 4))
	require.Equal(t, 5*time.Minute, Backoff(retry, 20))
}

func TestBackoffDefaults(t *testing.T) {
	require.Equal(t, time.Minute, Backoff(RetrySettings{}, 1))
	require.Equal(t, time.Minute, Backoff(RetrySettings{BaseDelay: time.Minute}, 0))
}
