// Package orchestrator drives harvest jobs through the pipeline: it owns
// the worker pool, the retry sweeper, and the control surface the admin API
// calls into.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/barcraft/harvester/internal/compliance"
	"github.com/barcraft/harvester/internal/dedup"
	"github.com/barcraft/harvester/internal/discovery"
	"github.com/barcraft/harvester/internal/extract"
	"github.com/barcraft/harvester/internal/fetch"
	"github.com/barcraft/harvester/internal/harvest"
	"github.com/barcraft/harvester/internal/normalize"
	"github.com/barcraft/harvester/internal/quality"
	"github.com/barcraft/harvester/internal/telemetry"
)

// Config controls orchestrator behavior.
type Config struct {
	Concurrency           int
	QueueDepth            int
	StageTimeout          time.Duration
	SweepInterval         time.Duration
	SweepBatch            int
	RetryDefaults         harvest.RetrySettings
	MaxUnresolvedFraction float64
	SnapshotContentType   string
	ModerationTopic       string
}

// Deps are the collaborators the orchestrator wires together.
type Deps struct {
	Jobs       harvest.JobStore
	Recipes    harvest.RecipeStore
	Clusters   harvest.ClusterStore
	Policies   harvest.PolicyStore
	Fetcher    harvest.Fetcher
	Extractor  *extract.Engine
	Normalizer *normalize.Normalizer
	Deduper    *dedup.Engine
	Scorer     *quality.Scorer
	Checker    *compliance.Checker
	Breaker    harvest.Breaker
	Blobs      harvest.BlobStore
	Publisher  harvest.Publisher
	Tracker    *telemetry.Tracker
	Clock      harvest.Clock
	IDs        harvest.IDGenerator
	Logger     *zap.Logger
}

// Orchestrator coordinates the harvest pipeline.
type Orchestrator struct {
	cfg   Config
	deps  Deps
	queue *queue
}

// New constructs an Orchestrator.
func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = 20
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = 30 * time.Second
	}
	if cfg.SnapshotContentType == "" {
		cfg.SnapshotContentType = "text/html; charset=utf-8"
	}
	telemetry.Init()
	return &Orchestrator{
		cfg:   cfg,
		deps:  deps,
		queue: newQueue(cfg.QueueDepth),
	}
}

// Run starts the worker pool and the retry sweeper, blocking until the
// context finishes.
func (o *Orchestrator) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < o.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.workerLoop(ctx)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		o.sweepLoop(ctx)
	}()
	<-ctx.Done()
	wg.Wait()
}

func (o *Orchestrator) workerLoop(ctx context.Context) {
	for {
		jobID, err := o.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.deps.Logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		telemetry.IncActiveWorkers()
		o.process(ctx, jobID)
		telemetry.DecActiveWorkers()
	}
}

// sweepLoop periodically moves due failed-retryable jobs back to pending
// and re-enqueues them.
func (o *Orchestrator) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.sweepOnce(ctx)
		}
	}
}

func (o *Orchestrator) sweepOnce(ctx context.Context) {
	now := o.deps.Clock.Now()
	due, err := o.deps.Jobs.ListRetryable(ctx, now, o.cfg.SweepBatch)
	if err != nil {
		o.deps.Logger.Error("retry sweep failed", zap.Error(err))
		return
	}
	depthByDomain := make(map[string]int)
	for _, job := range due {
		depthByDomain[job.Domain]++
		if _, err := o.requeue(ctx, job); err != nil {
			o.deps.Logger.Warn("requeue failed", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	telemetry.SetRetryQueueDepth(len(due))
	for domain, depth := range depthByDomain {
		o.deps.Tracker.SetRetryDepth(domain, depth)
	}
}

// requeue transitions a due failed-retryable job to pending and enqueues it.
func (o *Orchestrator) requeue(ctx context.Context, job harvest.Job) (harvest.Job, error) {
	next, err := harvest.Transition(job.Status, harvest.EventRetryDue)
	if err != nil {
		return job, err
	}
	job.Status = next
	job.NextRetryAt = nil
	if err := o.deps.Jobs.UpdateJob(ctx, job); err != nil {
		return job, fmt.Errorf("update job: %w", err)
	}
	if err := o.queue.Enqueue(ctx, job.ID); err != nil {
		return job, err
	}
	return job, nil
}

// SubmitURL creates a pending job for the URL and enqueues it. Submission
// is idempotent: if a non-terminal or succeeded job already covers the
// normalized URL, that job is returned and no new one is created.
func (o *Orchestrator) SubmitURL(ctx context.Context, rawURL string, sourceType harvest.SourceType) (harvest.Job, bool, error) {
	normalized, err := harvest.NormalizeURL(rawURL)
	if err != nil {
		return harvest.Job{}, false, fmt.Errorf("normalize url: %w", err)
	}

	existing, found, err := o.deps.Jobs.FindActiveByURL(ctx, normalized)
	if err != nil {
		return harvest.Job{}, false, fmt.Errorf("lookup active job: %w", err)
	}
	if found {
		return existing, false, nil
	}

	id, err := o.deps.IDs.NewID()
	if err != nil {
		return harvest.Job{}, false, fmt.Errorf("generate job id: %w", err)
	}
	job := harvest.Job{
		ID:         id,
		SourceURL:  normalized,
		SourceType: sourceType,
		Domain:     harvest.Hostname(normalized),
		Status:     harvest.JobStatusPending,
		Submitted:  o.deps.Clock.Now(),
	}
	if err := o.deps.Jobs.CreateJob(ctx, job); err != nil {
		return harvest.Job{}, false, fmt.Errorf("create job: %w", err)
	}
	if err := o.queue.Enqueue(ctx, job.ID); err != nil {
		return harvest.Job{}, false, err
	}
	return job, true, nil
}

// RunJob requests an immediate run of the job. When the run cannot proceed
// the refusal explains why.
func (o *Orchestrator) RunJob(ctx context.Context, jobID string) (harvest.Job, harvest.RunRefusal, error) {
	job, err := o.deps.Jobs.GetJob(ctx, jobID)
	if err != nil {
		return harvest.Job{}, "", fmt.Errorf("get job: %w", err)
	}

	ok, refusal := harvest.Runnable(job, o.deps.Clock.Now())
	if !ok {
		return job, refusal, nil
	}
	if !o.deps.Breaker.Allow(job.Domain) {
		o.deps.Tracker.ObserveCircuitDeferral(job.Domain)
		return job, harvest.RunCircuitOpen, nil
	}

	if job.Status == harvest.JobStatusFailedRetry {
		job, err = o.requeue(ctx, job)
		if err != nil {
			return job, "", err
		}
		return job, harvest.RunEligible, nil
	}
	if err := o.queue.Enqueue(ctx, job.ID); err != nil {
		return job, "", err
	}
	return job, harvest.RunEligible, nil
}

// AutoHarvest fetches the domain's seed pages, discovers probable recipe
// links, and enqueues a page job for each. One summary is returned per seed.
func (o *Orchestrator) AutoHarvest(ctx context.Context, domain string) ([]harvest.HarvestSummary, error) {
	policy, ok, err := o.deps.Policies.ForDomain(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("policy lookup: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("no policy for domain %s", domain)
	}
	if !policy.Active {
		return nil, fmt.Errorf("policy for %s is disabled", domain)
	}
	if len(policy.SeedURLs) == 0 {
		return nil, fmt.Errorf("policy for %s has no seed urls", domain)
	}

	queued := 0
	summaries := make([]harvest.HarvestSummary, 0, len(policy.SeedURLs))
	for _, seed := range policy.SeedURLs {
		summary := o.harvestSeed(ctx, seed, policy, &queued)
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (o *Orchestrator) harvestSeed(ctx context.Context, seed string, policy harvest.SourcePolicy, queued *int) harvest.HarvestSummary {
	summary := harvest.HarvestSummary{
		SeedURL:       seed,
		FailureCounts: make(map[string]int),
	}

	if reasons := o.deps.Checker.CheckURL(ctx, policy, true, seed); len(reasons) > 0 {
		o.deps.Tracker.ObserveComplianceRejection(policy.Domain, reasons)
		for _, r := range reasons {
			summary.FailureCounts[string(r)]++
		}
		return summary
	}

	fetchCtx, cancel := context.WithTimeout(ctx, o.cfg.StageTimeout)
	page, err := o.deps.Fetcher.Fetch(fetchCtx, seed)
	cancel()
	if err != nil {
		label := fetch.ClassifyError(err)
		o.deps.Breaker.Record(policy.Domain, false)
		o.deps.Tracker.ObserveFetchFailure(policy.Domain, label)
		summary.FailureCounts[label]++
		o.deps.Logger.Warn("seed fetch failed", zap.String("seed", seed), zap.Error(err))
		return summary
	}
	o.deps.Breaker.Record(policy.Domain, true)

	result, err := discovery.Discover(page, policy)
	if err != nil {
		summary.FailureCounts["discovery_error"]++
		return summary
	}
	summary.BlockedURLs = result.Blocked

	// Candidates still have to clear the compliance rules individually;
	// path hints alone do not cover robots.txt.
	allowed := make([]string, 0, len(result.Candidates))
	for _, candidate := range result.Candidates {
		if reasons := o.deps.Checker.CheckURL(ctx, policy, true, candidate); len(reasons) > 0 {
			o.deps.Tracker.ObserveComplianceRejection(policy.Domain, reasons)
			for _, r := range reasons {
				summary.BlockedURLs[string(r)] = append(summary.BlockedURLs[string(r)], candidate)
			}
			continue
		}
		allowed = append(allowed, candidate)
	}
	summary.DiscoveredURLs = allowed

	budget := policy.MaxRecipes
	if budget <= 0 {
		budget = 20
	}
	for _, candidate := range summary.DiscoveredURLs {
		if *queued >= budget {
			break
		}
		job, created, err := o.SubmitURL(ctx, candidate, harvest.SourceTypePage)
		if err != nil {
			summary.FailureCounts["enqueue_error"]++
			continue
		}
		if created {
			*queued++
			summary.QueuedJobIDs = append(summary.QueuedJobIDs, job.ID)
		}
	}
	summary.ParsedCount = len(summary.QueuedJobIDs)
	return summary
}
