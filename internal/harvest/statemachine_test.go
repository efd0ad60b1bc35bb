package harvest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTransitionHappyPath(t *testing.T) {
	s, err := Transition(JobStatusPending, EventDispatch)
	require.NoError(t, err)
	require.Equal(t, JobStatusRunning, s)

	s, err = Transition(s, EventSucceed)
	require.NoError(t, err)
	require.Equal(t, JobStatusSucceeded, s)
}

func TestTransitionRetryLoop(t *testing.T) {
	s, err := Transition(JobStatusRunning, EventFailRetry)
	require.NoError(t, err)
	require.Equal(t, JobStatusFailedRetry, s)

	s, err = Transition(s, EventRetryDue)
	require.NoError(t, err)
	require.Equal(t, JobStatusPending, s)
}

func TestTransitionTerminalStatesAreFrozen(t *testing.T) {
	for _, terminal := range []JobStatus{JobStatusSucceeded, JobStatusFailedTerminal} {
		for _, ev := range []Event{EventDispatch, EventSucceed, EventFailRetry, EventFailTerminal, EventRetryDue} {
			_, err := Transition(terminal, ev)
			require.Error(t, err, "event %s on %s", ev, terminal)
		}
	}
}

func TestTransitionInvalid(t *testing.T) {
	_, err := Transition(JobStatusPending, EventSucceed)
	require.Error(t, err)

	_, err = Transition(JobStatusRunning, EventDispatch)
	require.Error(t, err)
}

func TestRunnable(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(5 * time.Minute)
	past := now.Add(-5 * time.Minute)

	ok, reason := Runnable(Job{Status: JobStatusPending}, now)
	require.True(t, ok)
	require.Equal(t, RunEligible, reason)

	ok, reason = Runnable(Job{Status: JobStatusRunning}, now)
	require.False(t, ok)
	require.Equal(t, RunAlreadyRunning, reason)

	ok, reason = Runnable(Job{Status: JobStatusFailedRetry, NextRetryAt: &future}, now)
	require.False(t, ok)
	require.Equal(t, RunNotYetEligible, reason)

	ok, reason = Runnable(Job{Status: JobStatusFailedRetry, NextRetryAt: &past}, now)
	require.True(t, ok)
	require.Equal(t, RunEligible, reason)

	ok, reason = Runnable(Job{Status: JobStatusSucceeded}, now)
	require.False(t, ok)
	require.Equal(t, RunTerminal, reason)
}
