package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/barcraft/harvester/internal/extract"
	"github.com/barcraft/harvester/internal/harvest"
)

func TestTrackerSnapshot(t *testing.T) {
	tr := NewTracker()

	tr.ObserveJobFinished("example.com", harvest.JobStatusSucceeded, "", 1, time.Second)
	tr.ObserveJobFinished("example.com", harvest.JobStatusFailedTerminal, harvest.FailureParse, 3, 2*time.Second)
	tr.ObserveParserHit("example.com", extract.StrategyJSONLD)
	tr.ObserveParserHit("example.com", extract.StrategyDOMFallback)
	tr.ObserveFetchFailure("example.com", "timeout")
	tr.ObserveComplianceRejection("example.com", []harvest.ComplianceReason{harvest.ReasonPaywalled})
	tr.ObserveDedup("example.com", harvest.DedupDuplicate)
	tr.ObserveDisposition("example.com", harvest.DispositionAccept)
	tr.ObserveCircuitDeferral("example.com")
	tr.SetRetryDepth("example.com", 4)

	s := tr.Snapshot("example.com")
	require.Equal(t, 2, s.JobsFinished)
	require.Equal(t, 1, s.JobsSucceeded)
	require.Equal(t, 1, s.JobsFailed)
	require.Equal(t, 1, s.ParseFailures)
	require.Equal(t, 1, s.ParserHits[extract.StrategyJSONLD])
	require.Equal(t, 1, s.FetchFailures["timeout"])
	require.Equal(t, 1, s.ComplianceRejections)
	require.Equal(t, 1, s.Dedup["duplicate"])
	require.Equal(t, 1, s.Dispositions["accept"])
	require.Equal(t, 1, s.CircuitDeferrals)
	require.Equal(t, 4, s.RetryQueueDepth)
	require.InDelta(t, 0.5, s.FailureRate(), 1e-9)
	require.InDelta(t, 0.5, s.FallbackRate(), 1e-9)
	require.InDelta(t, 2.0, s.AverageAttempts(), 1e-9)

	// Snapshot is a copy.
	s.ParserHits["jsonld"] = 99
	require.Equal(t, 1, tr.Snapshot("example.com").ParserHits[extract.StrategyJSONLD])
}

func TestEvaluateAlerts(t *testing.T) {
	snapshot := DomainSnapshot{
		Domain:               "example.com",
		JobsFinished:         10,
		JobsFailed:           6,
		ParseFailures:        3,
		ComplianceRejections: 5,
		RetryQueueDepth:      9,
		TotalAttempts:        30,
		ParserHits:           map[string]int{extract.StrategyDOMFallback: 8, extract.StrategyJSONLD: 2},
	}
	settings := harvest.AlertSettings{
		MaxFailureRate:          0.5,
		MaxParseFailureRate:     0.2,
		MaxParserFallbackRate:   0.5,
		MaxComplianceRejections: 4,
		MaxRetryQueueDepth:      5,
		MaxAverageAttempts:      2.5,
	}

	alerts := EvaluateAlerts(snapshot, settings)
	require.Len(t, alerts, 6)
	kinds := make(map[string]bool)
	for _, a := range alerts {
		kinds[a.Kind] = true
		require.Equal(t, "example.com", a.Domain)
	}
	require.True(t, kinds["failure_rate"])
	require.True(t, kinds["retry_queue_depth"])
}

func TestEvaluateAlertsDisabledThresholds(t *testing.T) {
	snapshot := DomainSnapshot{Domain: "example.com", JobsFinished: 10, JobsFailed: 10}
	require.Empty(t, EvaluateAlerts(snapshot, harvest.AlertSettings{}))
}

func TestEvaluateAlertsHealthyDomain(t *testing.T) {
	snapshot := DomainSnapshot{
		Domain:        "example.com",
		JobsFinished:  10,
		JobsSucceeded: 9,
		JobsFailed:    1,
		TotalAttempts: 11,
	}
	settings := harvest.AlertSettings{MaxFailureRate: 0.5, MaxAverageAttempts: 2}
	require.Empty(t, EvaluateAlerts(snapshot, settings))
}
