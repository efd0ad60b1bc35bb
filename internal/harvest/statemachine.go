package harvest

import (
	"fmt"
	"time"
)

// Event drives a job through its state machine.
type Event string

// Job lifecycle events.
const (
	EventDispatch     Event = "dispatch"
	EventSucceed      Event = "succeed"
	EventFailRetry    Event = "fail_retryable"
	EventFailTerminal Event = "fail_terminal"
	EventRetryDue     Event = "retry_due"
)

// transitions is the closed transition table: (state, event) -> next state.
// Anything not listed is an invalid transition.
var transitions = map[JobStatus]map[Event]JobStatus{
	JobStatusPending: {
		EventDispatch:     JobStatusRunning,
		EventFailTerminal: JobStatusFailedTerminal,
	},
	JobStatusRunning: {
		EventSucceed:      JobStatusSucceeded,
		EventFailRetry:    JobStatusFailedRetry,
		EventFailTerminal: JobStatusFailedTerminal,
	},
	JobStatusFailedRetry: {
		EventRetryDue:     JobStatusPending,
		EventFailTerminal: JobStatusFailedTerminal,
	},
}

// Transition returns the next status for the event or an error when the
// event is not valid in the current state.
func Transition(current JobStatus, event Event) (JobStatus, error) {
	next, ok := transitions[current][event]
	if !ok {
		return current, fmt.Errorf("invalid transition: %s on %s", event, current)
	}
	return next, nil
}

// RunRefusal explains why a manual run request was not honored.
type RunRefusal string

// Refusal reasons surfaced to callers; a run request never fails silently.
const (
	RunEligible       RunRefusal = ""
	RunAlreadyRunning RunRefusal = "already_running"
	RunNotYetEligible RunRefusal = "not_yet_eligible"
	RunTerminal       RunRefusal = "terminal"
	RunCircuitOpen    RunRefusal = "domain_circuit_open"
)

// Runnable reports whether a manual run may proceed now, and if not, why.
func Runnable(job Job, now time.Time) (bool, RunRefusal) {
	switch job.Status {
	case JobStatusPending:
		return true, RunEligible
	case JobStatusRunning:
		return false, RunAlreadyRunning
	case JobStatusFailedRetry:
		if job.NextRetryAt == nil || !job.NextRetryAt.After(now) {
			return true, RunEligible
		}
		return false, RunNotYetEligible
	default:
		return false, RunTerminal
	}
}
