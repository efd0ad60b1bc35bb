package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/barcraft/harvester/internal/compliance"
	"github.com/barcraft/harvester/internal/dedup"
	"github.com/barcraft/harvester/internal/extract"
	"github.com/barcraft/harvester/internal/fetch"
	"github.com/barcraft/harvester/internal/harvest"
	"github.com/barcraft/harvester/internal/telemetry"
)

// moderationEvent is published for every quarantined recipe.
type moderationEvent struct {
	JobID     string                  `json:"job_id"`
	RecipeID  string                  `json:"recipe_id"`
	SourceURL string                  `json:"source_url"`
	Domain    string                  `json:"domain"`
	Decision  harvest.QualityDecision `json:"decision"`
}

// process runs one job end to end: compliance, fetch, extraction,
// normalization, dedup, scoring, and persistence.
func (o *Orchestrator) process(ctx context.Context, jobID string) {
	log := o.deps.Logger.With(zap.String("job_id", jobID))

	job, err := o.deps.Jobs.GetJob(ctx, jobID)
	if err != nil {
		log.Error("job lookup failed", zap.Error(err))
		return
	}
	log = log.With(zap.String("domain", job.Domain), zap.String("url", job.SourceURL))

	// An open circuit keeps the job pending; try again later.
	if !o.deps.Breaker.Allow(job.Domain) {
		o.deps.Tracker.ObserveCircuitDeferral(job.Domain)
		telemetry.RecordCircuitDeferral(job.Domain)
		log.Info("domain circuit open, deferring job")
		o.deferJob(ctx, job.ID)
		return
	}

	next, err := harvest.Transition(job.Status, harvest.EventDispatch)
	if err != nil {
		log.Warn("job not dispatchable", zap.String("status", string(job.Status)), zap.Error(err))
		return
	}
	now := o.deps.Clock.Now()
	job.Status = next
	job.AttemptCount++
	job.LastAttemptAt = &now
	if job.Started == nil {
		job.Started = &now
	}
	if err := o.deps.Jobs.UpdateJob(ctx, job); err != nil {
		log.Error("job dispatch update failed", zap.Error(err))
		return
	}

	policy, policyFound, err := o.deps.Policies.ForDomain(ctx, job.Domain)
	if err != nil {
		log.Error("policy lookup failed", zap.Error(err))
		o.fail(ctx, job, policy, harvest.FailureFetch, err.Error(), nil)
		return
	}

	if reasons := o.deps.Checker.CheckURL(ctx, policy, policyFound, job.SourceURL); len(reasons) > 0 {
		o.rejectCompliance(ctx, job, policy, reasons, log)
		return
	}

	page, err := o.fetchPage(ctx, job.SourceURL)
	if err != nil {
		label := fetch.ClassifyError(err)
		o.deps.Breaker.Record(job.Domain, false)
		o.deps.Tracker.ObserveFetchFailure(job.Domain, label)
		telemetry.RecordFetchFailure(job.Domain, label)
		log.Warn("fetch failed", zap.String("label", label), zap.Error(err))
		o.fail(ctx, job, policy, harvest.FailureFetch, fmt.Sprintf("%s: %v", label, err), nil)
		return
	}
	o.deps.Breaker.Record(job.Domain, true)

	// Snapshot archiving is best effort and never fails the job.
	if uri, err := o.archiveSnapshot(ctx, job, page); err != nil {
		log.Warn("snapshot archive failed", zap.Error(err))
	} else {
		job.SnapshotURI = uri
	}

	meta, err := compliance.ExtractMeta(page.Body)
	if err == nil {
		if reasons := o.deps.Checker.CheckPage(job.SourceURL, meta); len(reasons) > 0 {
			o.rejectCompliance(ctx, job, policy, reasons, log)
			return
		}
	}

	candidate, err := o.extractCandidate(ctx, page, policy)
	if err != nil {
		if errors.Is(err, extract.ErrNoRecipe) {
			log.Info("no recipe found on page")
		} else {
			log.Warn("extraction failed", zap.Error(err))
		}
		o.fail(ctx, job, policy, harvest.FailureParse, err.Error(), nil)
		return
	}
	job.ParseStrategy = candidate.Strategy
	job.Confidence = harvest.BucketForConfidence(candidate.Confidence)
	o.deps.Tracker.ObserveParserHit(job.Domain, candidate.Strategy)
	telemetry.RecordParserHit(job.Domain, candidate.Strategy)

	recipe, err := o.deps.Normalizer.Normalize(ctx, candidate)
	if err != nil {
		log.Warn("normalization failed", zap.Error(err))
		o.fail(ctx, job, policy, harvest.FailureParse, err.Error(), nil)
		return
	}
	if o.cfg.MaxUnresolvedFraction > 0 && recipe.UnresolvedFraction > o.cfg.MaxUnresolvedFraction {
		reason := fmt.Sprintf("unresolved ingredient fraction %.2f exceeds %.2f",
			recipe.UnresolvedFraction, o.cfg.MaxUnresolvedFraction)
		o.fail(ctx, job, policy, harvest.FailureQualityRejection, reason, nil)
		return
	}

	dedupDecision, err := o.deps.Deduper.Classify(ctx, recipe)
	if err != nil {
		log.Error("dedup failed", zap.Error(err))
		o.fail(ctx, job, policy, harvest.FailureParse, err.Error(), nil)
		return
	}
	o.deps.Tracker.ObserveDedup(job.Domain, dedupDecision.Class)
	telemetry.RecordDedup(job.Domain, string(dedupDecision.Class))

	if dedupDecision.Class == harvest.DedupDuplicate {
		if err := o.deps.Recipes.AppendSource(ctx, dedupDecision.RecipeID, job.SourceURL); err != nil {
			log.Error("append source failed", zap.Error(err))
			o.fail(ctx, job, policy, harvest.FailureParse, err.Error(), nil)
			return
		}
		job.Duplicate = true
		job.RecipeID = dedupDecision.RecipeID
		log.Info("duplicate recipe, source appended",
			zap.String("recipe_id", dedupDecision.RecipeID),
			zap.Float64("similarity", dedupDecision.Similarity))
		o.succeed(ctx, job)
		return
	}

	decision := o.deps.Scorer.Score(recipe, policy)
	job.QualityScore = decision.Aggregate
	o.deps.Tracker.ObserveDisposition(job.Domain, decision.Disposition)
	telemetry.RecordDisposition(job.Domain, string(decision.Disposition))

	switch decision.Disposition {
	case harvest.DispositionReject:
		reason := "quality rejected"
		if len(decision.Reasons) > 0 {
			reason = decision.Reasons[0]
		}
		o.fail(ctx, job, policy, harvest.FailureQualityRejection, reason, nil)

	case harvest.DispositionQuarantine:
		recipeID, err := o.storeRecipe(ctx, job, recipe, harvest.DispositionQuarantine)
		if err != nil {
			log.Error("recipe store failed", zap.Error(err))
			o.fail(ctx, job, policy, harvest.FailureParse, err.Error(), nil)
			return
		}
		job.RecipeID = recipeID
		o.publishModeration(ctx, job, recipeID, decision, log)
		o.fail(ctx, job, policy, harvest.FailureQualityQuarantine, "held for moderation", nil)

	case harvest.DispositionAccept:
		recipeID, err := o.storeRecipe(ctx, job, recipe, harvest.DispositionAccept)
		if err != nil {
			log.Error("recipe store failed", zap.Error(err))
			o.fail(ctx, job, policy, harvest.FailureParse, err.Error(), nil)
			return
		}
		job.RecipeID = recipeID
		if err := o.deps.Deduper.Register(ctx, recipeID, recipe); err != nil {
			log.Warn("neighbor index update failed", zap.Error(err))
		}
		if dedupDecision.Class == harvest.DedupVariant {
			if err := o.attachVariant(ctx, dedupDecision, recipeID); err != nil {
				log.Warn("variant cluster update failed", zap.Error(err))
			}
		}
		log.Info("recipe accepted",
			zap.String("recipe_id", recipeID),
			zap.Float64("quality_score", decision.Aggregate),
			zap.String("strategy", candidate.Strategy))
		o.succeed(ctx, job)
	}
}

func (o *Orchestrator) fetchPage(ctx context.Context, url string) (harvest.Page, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, o.cfg.StageTimeout)
	defer cancel()
	return o.deps.Fetcher.Fetch(fetchCtx, url)
}

func (o *Orchestrator) extractCandidate(ctx context.Context, page harvest.Page, policy harvest.SourcePolicy) (harvest.ExtractedCandidate, error) {
	extractCtx, cancel := context.WithTimeout(ctx, o.cfg.StageTimeout)
	defer cancel()
	return o.deps.Extractor.Extract(extractCtx, page, policy)
}

// archiveSnapshot stores the raw page body and returns its URI.
func (o *Orchestrator) archiveSnapshot(ctx context.Context, job harvest.Job, page harvest.Page) (string, error) {
	if o.deps.Blobs == nil {
		return "", nil
	}
	name := path.Join(job.Domain, job.ID+".html")
	return o.deps.Blobs.PutObject(ctx, name, o.cfg.SnapshotContentType, bytes.NewReader(page.Body))
}

// storeRecipe persists a new recipe and returns its ID.
func (o *Orchestrator) storeRecipe(ctx context.Context, job harvest.Job, recipe harvest.NormalizedRecipe, disposition harvest.Disposition) (string, error) {
	id, err := o.deps.IDs.NewID()
	if err != nil {
		return "", fmt.Errorf("generate recipe id: %w", err)
	}
	record := harvest.Recipe{
		ID:          id,
		Name:        recipe.Name,
		Fingerprint: dedup.Fingerprint(recipe),
		Recipe:      recipe,
		Sources:     []string{job.SourceURL},
		Disposition: disposition,
		CreatedAt:   o.deps.Clock.Now(),
	}
	if err := o.deps.Recipes.Insert(ctx, record); err != nil {
		return "", fmt.Errorf("insert recipe: %w", err)
	}
	return id, nil
}

// attachVariant links the new recipe into its canonical's variant cluster,
// creating the cluster on first use.
func (o *Orchestrator) attachVariant(ctx context.Context, decision harvest.DedupDecision, recipeID string) error {
	cluster, found, err := o.deps.Clusters.FindByCanonical(ctx, decision.RecipeID)
	if err != nil {
		return fmt.Errorf("cluster lookup: %w", err)
	}
	if !found {
		id, err := o.deps.IDs.NewID()
		if err != nil {
			return fmt.Errorf("generate cluster id: %w", err)
		}
		cluster = harvest.VariantCluster{ID: id, CanonicalRecipeID: decision.RecipeID}
	}
	for _, m := range cluster.Members {
		if m.RecipeID == recipeID {
			return nil
		}
	}
	cluster.Members = append(cluster.Members, harvest.ClusterMember{
		RecipeID: recipeID,
		Relation: decision.Relation,
	})
	return o.deps.Clusters.Save(ctx, cluster)
}

func (o *Orchestrator) publishModeration(ctx context.Context, job harvest.Job, recipeID string, decision harvest.QualityDecision, log *zap.Logger) {
	if o.deps.Publisher == nil {
		return
	}
	topic := o.cfg.ModerationTopic
	if topic == "" {
		topic = "recipe-moderation"
	}
	event := moderationEvent{
		JobID:     job.ID,
		RecipeID:  recipeID,
		SourceURL: job.SourceURL,
		Domain:    job.Domain,
		Decision:  decision,
	}
	if _, err := o.deps.Publisher.Publish(ctx, topic, event); err != nil {
		log.Warn("moderation publish failed", zap.Error(err))
	}
}

// rejectCompliance terminally fails a job with the given reasons.
func (o *Orchestrator) rejectCompliance(ctx context.Context, job harvest.Job, policy harvest.SourcePolicy, reasons []harvest.ComplianceReason, log *zap.Logger) {
	o.deps.Tracker.ObserveComplianceRejection(job.Domain, reasons)
	for _, r := range reasons {
		telemetry.RecordComplianceRejection(job.Domain, string(r))
	}
	class := harvest.FailureCompliance
	for _, r := range reasons {
		if r == harvest.ReasonPolicyInactive {
			class = harvest.FailurePolicyDisabled
			break
		}
	}
	log.Info("compliance rejected", zap.Any("reasons", reasons))
	o.fail(ctx, job, policy, class, fmt.Sprintf("compliance: %v", reasons), reasons)
}

// succeed finishes the job as succeeded.
func (o *Orchestrator) succeed(ctx context.Context, job harvest.Job) {
	next, err := harvest.Transition(job.Status, harvest.EventSucceed)
	if err != nil {
		o.deps.Logger.Error("succeed transition failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	now := o.deps.Clock.Now()
	job.Status = next
	job.Finished = &now
	job.ErrorText = ""
	job.FailureClass = ""
	job.NextRetryAt = nil
	if err := o.deps.Jobs.UpdateJob(ctx, job); err != nil {
		o.deps.Logger.Error("job update failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	o.finishTelemetry(job)
}

// fail finishes the attempt. Retryable failure classes schedule a backoff
// retry until attempts are exhausted; everything else is terminal.
func (o *Orchestrator) fail(ctx context.Context, job harvest.Job, policy harvest.SourcePolicy, class harvest.FailureClass, errText string, reasons []harvest.ComplianceReason) {
	retry := policy.Retry
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = o.cfg.RetryDefaults.MaxAttempts
	}
	if retry.BaseDelay <= 0 {
		retry.BaseDelay = o.cfg.RetryDefaults.BaseDelay
	}
	if retry.MaxDelay <= 0 {
		retry.MaxDelay = o.cfg.RetryDefaults.MaxDelay
	}
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 4
	}

	event := harvest.EventFailTerminal
	if class.Retryable() && job.AttemptCount < retry.MaxAttempts {
		event = harvest.EventFailRetry
	}
	next, err := harvest.Transition(job.Status, event)
	if err != nil {
		o.deps.Logger.Error("fail transition failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}

	now := o.deps.Clock.Now()
	job.Status = next
	job.ErrorText = errText
	job.FailureClass = class
	if len(reasons) > 0 {
		job.ComplianceReasons = reasons
	}
	if next == harvest.JobStatusFailedRetry {
		due := now.Add(harvest.Backoff(retry, job.AttemptCount))
		job.NextRetryAt = &due
	} else {
		job.NextRetryAt = nil
		job.Finished = &now
	}
	if err := o.deps.Jobs.UpdateJob(ctx, job); err != nil {
		o.deps.Logger.Error("job update failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	o.finishTelemetry(job)
}

func (o *Orchestrator) finishTelemetry(job harvest.Job) {
	var duration time.Duration
	if job.Started != nil {
		duration = o.deps.Clock.Now().Sub(*job.Started)
	}
	o.deps.Tracker.ObserveJobFinished(job.Domain, job.Status, job.FailureClass, job.AttemptCount, duration)
	outcome := string(job.Status)
	if job.FailureClass != "" {
		outcome = string(job.FailureClass)
	}
	telemetry.RecordJobOutcome(job.Domain, outcome, duration)
}

// deferJob re-enqueues a circuit-deferred job after a delay without holding
// a worker slot.
func (o *Orchestrator) deferJob(ctx context.Context, jobID string) {
	go func() {
		timer := time.NewTimer(o.cfg.SweepInterval)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			if err := o.queue.Enqueue(ctx, jobID); err != nil && ctx.Err() == nil {
				o.deps.Logger.Warn("deferred re-enqueue failed", zap.String("job_id", jobID), zap.Error(err))
			}
		}
	}()
}
