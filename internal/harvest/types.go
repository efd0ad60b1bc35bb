// Package harvest defines core types shared across pipeline subsystems.
package harvest

import (
	"net/http"
	"time"
)

// JobStatus represents the lifecycle state of a harvest job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusPending        JobStatus = "pending"
	JobStatusRunning        JobStatus = "running"
	JobStatusSucceeded      JobStatus = "succeeded"
	JobStatusFailedRetry    JobStatus = "failed-retryable"
	JobStatusFailedTerminal JobStatus = "failed-terminal"
)

// IsTerminal reports whether the status can never change again.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailedTerminal
}

// SourceType distinguishes seed crawls from single-page ingests.
type SourceType string

// Source type values.
const (
	SourceTypeSeed SourceType = "seed"
	SourceTypePage SourceType = "page"
)

// FailureClass is the closed taxonomy of job failures.
type FailureClass string

// Failure classes. Fetch and parse failures are retryable; the rest are terminal.
const (
	FailureFetch             FailureClass = "fetch_failure"
	FailureParse             FailureClass = "parse_failure"
	FailureCompliance        FailureClass = "compliance_rejection"
	FailureQualityRejection  FailureClass = "quality_rejection"
	FailureQualityQuarantine FailureClass = "quality_quarantine"
	FailurePolicyDisabled    FailureClass = "policy_disabled"
)

// Retryable reports whether the orchestrator may schedule another attempt.
func (f FailureClass) Retryable() bool {
	return f == FailureFetch || f == FailureParse
}

// ComplianceReason labels why a URL was rejected before extraction.
type ComplianceReason string

// Compliance rejection reasons, recorded verbatim on the job.
const (
	ReasonDomainNotApproved ComplianceReason = "domain_not_approved"
	ReasonPolicyInactive    ComplianceReason = "policy_inactive"
	ReasonRobotsDisallowed  ComplianceReason = "robots_disallowed"
	ReasonNoindex           ComplianceReason = "noindex"
	ReasonCanonicalMismatch ComplianceReason = "canonical_mismatch"
	ReasonPaywalled         ComplianceReason = "paywalled"
)

// ConfidenceBucket summarizes how much to trust an extraction.
type ConfidenceBucket string

// Confidence buckets derived from the winning strategy's score.
const (
	ConfidenceHigh   ConfidenceBucket = "high"
	ConfidenceMedium ConfidenceBucket = "medium"
	ConfidenceLow    ConfidenceBucket = "low"
)

// BucketForConfidence maps a raw confidence score to its bucket.
func BucketForConfidence(score float64) ConfidenceBucket {
	switch {
	case score >= 0.8:
		return ConfidenceHigh
	case score >= 0.6:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// ParserProfile carries per-domain extraction hints configured on the policy.
type ParserProfile struct {
	RecipePathHints      []string `json:"recipe_path_hints" mapstructure:"recipe_path_hints"`
	BlockedPathHints     []string `json:"blocked_path_hints" mapstructure:"blocked_path_hints"`
	RequiredTextMarkers  []string `json:"required_text_markers" mapstructure:"required_text_markers"`
	IngredientSelectors  []string `json:"ingredient_selectors" mapstructure:"ingredient_selectors"`
	InstructionSelectors []string `json:"instruction_selectors" mapstructure:"instruction_selectors"`
}

// AlertSettings are per-domain thresholds consumed by the telemetry reader.
type AlertSettings struct {
	MaxFailureRate          float64 `json:"max_failure_rate" mapstructure:"max_failure_rate"`
	MaxParserFallbackRate   float64 `json:"max_parser_fallback_rate" mapstructure:"max_parser_fallback_rate"`
	MaxParseFailureRate     float64 `json:"max_parse_failure_rate" mapstructure:"max_parse_failure_rate"`
	MaxComplianceRejections int     `json:"max_compliance_rejections" mapstructure:"max_compliance_rejections"`
	MaxRetryQueueDepth      int     `json:"max_retry_queue_depth" mapstructure:"max_retry_queue_depth"`
	MaxAverageAttempts      float64 `json:"max_average_attempts" mapstructure:"max_average_attempts"`
}

// RetrySettings tune the backoff schedule per domain.
type RetrySettings struct {
	BaseDelay   time.Duration `json:"base_delay" mapstructure:"base_delay"`
	MaxDelay    time.Duration `json:"max_delay" mapstructure:"max_delay"`
	MaxAttempts int           `json:"max_attempts" mapstructure:"max_attempts"`
}

// SourcePolicy is the per-domain configuration gating every pipeline stage.
// It is created and edited by an administrative collaborator and is read-only
// to the pipeline itself.
type SourcePolicy struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Domain         string        `json:"domain"`
	Active         bool          `json:"active"`
	TrustTier      float64       `json:"trust_tier"`
	SeedURLs       []string      `json:"seed_urls"`
	CrawlDepth     int           `json:"crawl_depth"`
	MaxPages       int           `json:"max_pages"`
	MaxRecipes     int           `json:"max_recipes"`
	MaxLinks       int           `json:"max_links"`
	RespectRobots  bool          `json:"respect_robots"`
	MinRatingCount int           `json:"min_rating_count"`
	MinRatingValue float64       `json:"min_rating_value"`
	Retry          RetrySettings `json:"retry"`
	Alerts         AlertSettings `json:"alerts"`
	Parser         ParserProfile `json:"parser"`
}

// Job is the persisted record for one harvesting attempt stream. Jobs are
// never deleted; terminal jobs are kept for audit and telemetry.
type Job struct {
	ID                string             `json:"id"`
	SourceURL         string             `json:"source_url"`
	SourceType        SourceType         `json:"source_type"`
	Domain            string             `json:"domain"`
	Status            JobStatus          `json:"status"`
	ErrorText         string             `json:"error_text,omitempty"`
	FailureClass      FailureClass       `json:"failure_class,omitempty"`
	AttemptCount      int                `json:"attempt_count"`
	LastAttemptAt     *time.Time         `json:"last_attempt_at,omitempty"`
	NextRetryAt       *time.Time         `json:"next_retry_at,omitempty"`
	ParseStrategy     string             `json:"parse_strategy,omitempty"`
	Confidence        ConfidenceBucket   `json:"confidence_bucket,omitempty"`
	ComplianceReasons []ComplianceReason `json:"compliance_reasons,omitempty"`
	RecipeID          string             `json:"recipe_id,omitempty"`
	Duplicate         bool               `json:"duplicate"`
	QualityScore      float64            `json:"quality_score,omitempty"`
	Submitted         time.Time          `json:"submitted_at"`
	Started           *time.Time         `json:"started_at,omitempty"`
	Finished          *time.Time         `json:"finished_at,omitempty"`
	SnapshotURI       string             `json:"snapshot_uri,omitempty"`
}

// Page is a fetched document plus transport metadata.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	Rendered   bool
}

// IngredientLine is one raw ingredient row as extracted from a page.
type IngredientLine struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
	Note     string  `json:"note,omitempty"`
}

// ExtractedCandidate is the transient output of a parser strategy. It is
// owned by the in-flight job and never persisted on its own.
type ExtractedCandidate struct {
	Name         string
	Description  string
	Ingredients  []IngredientLine
	Instructions []string
	Glassware    string
	Ice          string
	Tags         []string
	RatingValue  float64
	RatingCount  int
	SourceURL    string
	Strategy     string
	Confidence   float64
}

// Viable reports whether the candidate satisfies the minimum-viability rule.
func (c ExtractedCandidate) Viable() bool {
	return c.Name != "" && len(c.Ingredients) > 0 && len(c.Instructions) > 0
}

// Unit is the canonical quantity unit enumeration.
type Unit string

// Canonical units. UnitNeutral is the fallback for unrecognized inputs.
const (
	UnitOunce    Unit = "oz"
	UnitMilli    Unit = "ml"
	UnitCenti    Unit = "cl"
	UnitDash     Unit = "dash"
	UnitTeaspoon Unit = "tsp"
	UnitTbsp     Unit = "tbsp"
	UnitBarspoon Unit = "barspoon"
	UnitDrop     Unit = "drop"
	UnitPiece    Unit = "piece"
	UnitNeutral  Unit = "unit"
)

// Method is the canonical preparation method enumeration.
type Method string

// Canonical methods.
const (
	MethodShake   Method = "shake"
	MethodStir    Method = "stir"
	MethodBuild   Method = "build"
	MethodBlend   Method = "blend"
	MethodThrow   Method = "throw"
	MethodSwizzle Method = "swizzle"
	MethodUnknown Method = "unknown"
)

// IngredientRef points at a canonical ontology ingredient.
type IngredientRef struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Category   string  `json:"category,omitempty"`
	Confidence float64 `json:"confidence"`
}

// NormalizedIngredient is one canonicalized ingredient line.
type NormalizedIngredient struct {
	Ref           *IngredientRef `json:"ref,omitempty"`
	FreeText      string         `json:"free_text"`
	Quantity      float64        `json:"quantity"`
	Unit          Unit           `json:"unit"`
	Unresolved    bool           `json:"unresolved"`
	UnitDefaulted bool           `json:"unit_defaulted"`
}

// NormalizedRecipe is the canonical form handed to dedup and scoring.
type NormalizedRecipe struct {
	Name               string                 `json:"name"`
	Description        string                 `json:"description,omitempty"`
	Ingredients        []NormalizedIngredient `json:"ingredients"`
	Instructions       []string               `json:"instructions"`
	Method             Method                 `json:"method"`
	Glass              string                 `json:"glass,omitempty"`
	Ice                string                 `json:"ice,omitempty"`
	Tags               []string               `json:"tags,omitempty"`
	RatingValue        float64                `json:"rating_value,omitempty"`
	RatingCount        int                    `json:"rating_count,omitempty"`
	SourceURL          string                 `json:"source_url"`
	UnresolvedFraction float64                `json:"unresolved_fraction"`
}

// Recipe is the persisted, validated result of a successful harvest.
type Recipe struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Fingerprint string           `json:"fingerprint"`
	Recipe      NormalizedRecipe `json:"recipe"`
	Sources     []string         `json:"sources"`
	Disposition Disposition      `json:"disposition"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Disposition is the quality scorer's final verdict for a candidate.
type Disposition string

// Dispositions. Quarantined recipes await manual moderation.
const (
	DispositionAccept     Disposition = "accept"
	DispositionQuarantine Disposition = "quarantine"
	DispositionReject     Disposition = "reject"
)

// QualityDecision records the scorer's component scores and verdict.
// Immutable once recorded against a job.
type QualityDecision struct {
	TrustScore        float64     `json:"trust_score"`
	StructureScore    float64     `json:"structure_score"`
	PlausibilityScore float64     `json:"plausibility_score"`
	PopularityScore   float64     `json:"popularity_score"`
	Aggregate         float64     `json:"aggregate"`
	Disposition       Disposition `json:"disposition"`
	Reasons           []string    `json:"reasons,omitempty"`
}

// DedupClass is the three-way dedup verdict.
type DedupClass string

// Dedup classifications.
const (
	DedupNew       DedupClass = "new"
	DedupDuplicate DedupClass = "duplicate"
	DedupVariant   DedupClass = "variant"
)

// DedupDecision reports how a candidate relates to the existing corpus.
type DedupDecision struct {
	Class      DedupClass `json:"class"`
	RecipeID   string     `json:"recipe_id,omitempty"`
	Similarity float64    `json:"similarity,omitempty"`
	Relation   string     `json:"relation,omitempty"`
}

// ClusterMember links a recipe into a variant cluster with its relationship
// to the canonical member.
type ClusterMember struct {
	RecipeID string `json:"recipe_id"`
	Relation string `json:"relation"`
}

// VariantCluster groups recipes derived from a shared canonical ancestor.
// Clusters grow by appending members and never lose them.
type VariantCluster struct {
	ID                string          `json:"id"`
	CanonicalRecipeID string          `json:"canonical_recipe_id"`
	Members           []ClusterMember `json:"members"`
}

// Neighbor is one nearest-neighbor hit from the embedding service.
type Neighbor struct {
	RecipeID   string
	Similarity float64
}

// HarvestSummary is returned by the auto-harvest control surface.
type HarvestSummary struct {
	SeedURL        string              `json:"seed_url"`
	DiscoveredURLs []string            `json:"discovered_urls"`
	BlockedURLs    map[string][]string `json:"blocked_urls,omitempty"`
	ParsedCount    int                 `json:"parsed_count"`
	QueuedJobIDs   []string            `json:"queued_job_ids"`
	FailureCounts  map[string]int      `json:"failure_counts,omitempty"`
}
