package telemetry

import (
	"sync"
	"time"

	"github.com/barcraft/harvester/internal/extract"
	"github.com/barcraft/harvester/internal/harvest"
)

// DomainSnapshot is the per-domain view served by the admin API and read by
// the alert evaluator.
type DomainSnapshot struct {
	Domain               string         `json:"domain"`
	JobsFinished         int            `json:"jobs_finished"`
	JobsSucceeded        int            `json:"jobs_succeeded"`
	JobsFailed           int            `json:"jobs_failed"`
	ParseFailures        int            `json:"parse_failures"`
	ComplianceRejections int            `json:"compliance_rejections"`
	ParserHits           map[string]int `json:"parser_hits,omitempty"`
	FetchFailures        map[string]int `json:"fetch_failures,omitempty"`
	Dedup                map[string]int `json:"dedup,omitempty"`
	Dispositions         map[string]int `json:"dispositions,omitempty"`
	CircuitDeferrals     int            `json:"circuit_deferrals"`
	RetryQueueDepth      int            `json:"retry_queue_depth"`
	TotalAttempts        int            `json:"total_attempts"`
}

// FailureRate is the fraction of finished jobs that failed.
func (s DomainSnapshot) FailureRate() float64 {
	if s.JobsFinished == 0 {
		return 0
	}
	return float64(s.JobsFailed) / float64(s.JobsFinished)
}

// ParseFailureRate is the fraction of finished jobs that failed parsing.
func (s DomainSnapshot) ParseFailureRate() float64 {
	if s.JobsFinished == 0 {
		return 0
	}
	return float64(s.ParseFailures) / float64(s.JobsFinished)
}

// FallbackRate is the fraction of parser wins that came from the lowest rung.
func (s DomainSnapshot) FallbackRate() float64 {
	total := 0
	for _, n := range s.ParserHits {
		total += n
	}
	if total == 0 {
		return 0
	}
	return float64(s.ParserHits[extract.StrategyDOMFallback]) / float64(total)
}

// AverageAttempts is the mean attempt count across finished jobs.
func (s DomainSnapshot) AverageAttempts() float64 {
	if s.JobsFinished == 0 {
		return 0
	}
	return float64(s.TotalAttempts) / float64(s.JobsFinished)
}

// Tracker aggregates per-domain counters and mirrors them to Prometheus.
type Tracker struct {
	mu      sync.Mutex
	domains map[string]*DomainSnapshot
}

// NewTracker builds a Tracker and initializes the Prometheus collectors.
func NewTracker() *Tracker {
	Init()
	return &Tracker{domains: make(map[string]*DomainSnapshot)}
}

func (t *Tracker) domain(name string) *DomainSnapshot {
	s, ok := t.domains[name]
	if !ok {
		s = &DomainSnapshot{
			Domain:        name,
			ParserHits:    make(map[string]int),
			FetchFailures: make(map[string]int),
			Dedup:         make(map[string]int),
			Dispositions:  make(map[string]int),
		}
		t.domains[name] = s
	}
	return s
}

// ObserveJobFinished records a terminal or retry-scheduled outcome.
func (t *Tracker) ObserveJobFinished(domain string, status harvest.JobStatus, failureClass harvest.FailureClass, attempts int, duration time.Duration) {
	t.mu.Lock()
	s := t.domain(domain)
	s.JobsFinished++
	s.TotalAttempts += attempts
	if status == harvest.JobStatusSucceeded {
		s.JobsSucceeded++
	} else {
		s.JobsFailed++
		if failureClass == harvest.FailureParse {
			s.ParseFailures++
		}
	}
	t.mu.Unlock()

	harvesterJobsTotal.WithLabelValues(domain, string(status)).Inc()
	harvesterJobDurationSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveParserHit records which strategy won an extraction.
func (t *Tracker) ObserveParserHit(domain, strategy string) {
	t.mu.Lock()
	t.domain(domain).ParserHits[strategy]++
	t.mu.Unlock()

	harvesterParserHitsTotal.WithLabelValues(domain, strategy).Inc()
}

// ObserveFetchFailure records a classified fetch failure.
func (t *Tracker) ObserveFetchFailure(domain, label string) {
	t.mu.Lock()
	t.domain(domain).FetchFailures[label]++
	t.mu.Unlock()

	harvesterFetchFailuresTotal.WithLabelValues(domain, label).Inc()
}

// ObserveComplianceRejection records one rejected URL with its reasons.
func (t *Tracker) ObserveComplianceRejection(domain string, reasons []harvest.ComplianceReason) {
	t.mu.Lock()
	t.domain(domain).ComplianceRejections++
	t.mu.Unlock()

	for _, reason := range reasons {
		harvesterComplianceTotal.WithLabelValues(domain, string(reason)).Inc()
	}
}

// ObserveDedup records a dedup verdict.
func (t *Tracker) ObserveDedup(domain string, class harvest.DedupClass) {
	t.mu.Lock()
	t.domain(domain).Dedup[string(class)]++
	t.mu.Unlock()

	harvesterDedupTotal.WithLabelValues(domain, string(class)).Inc()
}

// ObserveDisposition records a quality verdict.
func (t *Tracker) ObserveDisposition(domain string, disposition harvest.Disposition) {
	t.mu.Lock()
	t.domain(domain).Dispositions[string(disposition)]++
	t.mu.Unlock()

	harvesterDispositionTotal.WithLabelValues(domain, string(disposition)).Inc()
}

// ObserveCircuitDeferral records a job deferred by an open circuit.
func (t *Tracker) ObserveCircuitDeferral(domain string) {
	t.mu.Lock()
	t.domain(domain).CircuitDeferrals++
	t.mu.Unlock()

	harvesterCircuitOpenTotal.WithLabelValues(domain).Inc()
}

// SetRetryDepth records the retry backlog for a domain.
func (t *Tracker) SetRetryDepth(domain string, depth int) {
	t.mu.Lock()
	t.domain(domain).RetryQueueDepth = depth
	t.mu.Unlock()
}

// Snapshot returns a copy of the domain's counters.
func (t *Tracker) Snapshot(domain string) DomainSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copySnapshot(t.domain(domain))
}

// Snapshots returns copies of every tracked domain.
func (t *Tracker) Snapshots() []DomainSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]DomainSnapshot, 0, len(t.domains))
	for _, s := range t.domains {
		out = append(out, copySnapshot(s))
	}
	return out
}

func copySnapshot(s *DomainSnapshot) DomainSnapshot {
	cp := *s
	cp.ParserHits = copyMap(s.ParserHits)
	cp.FetchFailures = copyMap(s.FetchFailures)
	cp.Dedup = copyMap(s.Dedup)
	cp.Dispositions = copyMap(s.Dispositions)
	return cp
}

func copyMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
