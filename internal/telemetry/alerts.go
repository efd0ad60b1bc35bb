package telemetry

import (
	"fmt"

	"github.com/barcraft/harvester/internal/harvest"
)

// Alert is one threshold breach for a domain.
type Alert struct {
	Domain  string `json:"domain"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// EvaluateAlerts compares a domain snapshot against the policy's alert
// thresholds. Zero-valued thresholds are treated as disabled.
func EvaluateAlerts(snapshot DomainSnapshot, settings harvest.AlertSettings) []Alert {
	var alerts []Alert
	add := func(kind, format string, args ...any) {
		alerts = append(alerts, Alert{
			Domain:  snapshot.Domain,
			Kind:    kind,
			Message: fmt.Sprintf(format, args...),
		})
	}

	if settings.MaxFailureRate > 0 && snapshot.FailureRate() > settings.MaxFailureRate {
		add("failure_rate", "failure rate %.2f exceeds %.2f", snapshot.FailureRate(), settings.MaxFailureRate)
	}
	if settings.MaxParseFailureRate > 0 && snapshot.ParseFailureRate() > settings.MaxParseFailureRate {
		add("parse_failure_rate", "parse failure rate %.2f exceeds %.2f", snapshot.ParseFailureRate(), settings.MaxParseFailureRate)
	}
	if settings.MaxParserFallbackRate > 0 && snapshot.FallbackRate() > settings.MaxParserFallbackRate {
		add("parser_fallback_rate", "fallback parser rate %.2f exceeds %.2f", snapshot.FallbackRate(), settings.MaxParserFallbackRate)
	}
	if settings.MaxComplianceRejections > 0 && snapshot.ComplianceRejections > settings.MaxComplianceRejections {
		add("compliance_rejections", "%d compliance rejections exceed %d", snapshot.ComplianceRejections, settings.MaxComplianceRejections)
	}
	if settings.MaxRetryQueueDepth > 0 && snapshot.RetryQueueDepth > settings.MaxRetryQueueDepth {
		add("retry_queue_depth", "retry backlog %d exceeds %d", snapshot.RetryQueueDepth, settings.MaxRetryQueueDepth)
	}
	if settings.MaxAverageAttempts > 0 && snapshot.AverageAttempts() > settings.MaxAverageAttempts {
		add("average_attempts", "average attempts %.2f exceed %.2f", snapshot.AverageAttempts(), settings.MaxAverageAttempts)
	}
	return alerts
}
