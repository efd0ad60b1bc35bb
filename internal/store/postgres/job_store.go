package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/barcraft/harvester/internal/harvest"
)

// JobStore persists harvest jobs in Postgres.
type JobStore struct {
	pool pool
}

// NewJobStore constructs a JobStore from an existing pool.
func NewJobStore(p pool) (*JobStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &JobStore{pool: p}, nil
}

// Close releases the underlying pool resources.
func (s *JobStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const jobColumns = `id, source_url, source_type, domain, status, error_text, failure_class,
attempt_count, last_attempt_at, next_retry_at, parse_strategy, confidence_bucket,
compliance_reasons, recipe_id, duplicate, quality_score, submitted_at, started_at,
finished_at, snapshot_uri`

// CreateJob inserts a job row.
func (s *JobStore) CreateJob(ctx context.Context, job harvest.Job) error {
	if job.ID == "" {
		return fmt.Errorf("job id is required")
	}
	reasons, err := json.Marshal(job.ComplianceReasons)
	if err != nil {
		return fmt.Errorf("marshal compliance reasons: %w", err)
	}
	query := `INSERT INTO harvest_jobs (` + jobColumns + `) VALUES
($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`
	_, err = s.pool.Exec(ctx, query,
		job.ID, job.SourceURL, job.SourceType, job.Domain, job.Status, job.ErrorText,
		job.FailureClass, job.AttemptCount, job.LastAttemptAt, job.NextRetryAt,
		job.ParseStrategy, job.Confidence, reasons, nullable(job.RecipeID), job.Duplicate,
		job.QualityScore, job.Submitted, job.Started, job.Finished, job.SnapshotURI)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// UpdateJob rewrites the mutable columns of a job row.
func (s *JobStore) UpdateJob(ctx context.Context, job harvest.Job) error {
	reasons, err := json.Marshal(job.ComplianceReasons)
	if err != nil {
		return fmt.Errorf("marshal compliance reasons: %w", err)
	}
	query := `UPDATE harvest_jobs SET
status = $2, error_text = $3, failure_class = $4, attempt_count = $5,
last_attempt_at = $6, next_retry_at = $7, parse_strategy = $8,
confidence_bucket = $9, compliance_reasons = $10, recipe_id = $11,
duplicate = $12, quality_score = $13, started_at = $14, finished_at = $15,
snapshot_uri = $16
WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query,
		job.ID, job.Status, job.ErrorText, job.FailureClass, job.AttemptCount,
		job.LastAttemptAt, job.NextRetryAt, job.ParseStrategy, job.Confidence,
		reasons, nullable(job.RecipeID), job.Duplicate, job.QualityScore,
		job.Started, job.Finished, job.SnapshotURI)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s not found", job.ID)
	}
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (harvest.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM harvest_jobs WHERE id = $1`
	job, err := s.scanJob(s.pool.QueryRow(ctx, query, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return harvest.Job{}, harvest.ErrNotFound
	}
	return job, err
}

// FindActiveByURL returns the most recent job for the URL that is still in
// flight or already succeeded.
func (s *JobStore) FindActiveByURL(ctx context.Context, url string) (harvest.Job, bool, error) {
	query := `SELECT ` + jobColumns + ` FROM harvest_jobs
WHERE source_url = $1 AND status != 'failed-terminal'
ORDER BY submitted_at DESC LIMIT 1`
	job, err := s.scanJob(s.pool.QueryRow(ctx, query, url))
	if errors.Is(err, pgx.ErrNoRows) {
		return harvest.Job{}, false, nil
	}
	if err != nil {
		return harvest.Job{}, false, err
	}
	return job, true, nil
}

// ListRetryable returns failed-retryable jobs whose next retry is due.
func (s *JobStore) ListRetryable(ctx context.Context, now time.Time, limit int) ([]harvest.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM harvest_jobs
WHERE status = 'failed-retryable' AND (next_retry_at IS NULL OR next_retry_at <= $1)
ORDER BY submitted_at ASC LIMIT $2`
	rows, err := s.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list retryable jobs: %w", err)
	}
	defer rows.Close()
	return s.collectJobs(rows)
}

// ListByDomain returns the domain's jobs, most recent first.
func (s *JobStore) ListByDomain(ctx context.Context, domain string, limit int) ([]harvest.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM harvest_jobs
WHERE domain = $1 ORDER BY submitted_at DESC LIMIT $2`
	rows, err := s.pool.Query(ctx, query, domain, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs by domain: %w", err)
	}
	defer rows.Close()
	return s.collectJobs(rows)
}

func (s *JobStore) collectJobs(rows pgx.Rows) ([]harvest.Job, error) {
	var out []harvest.Job
	for rows.Next() {
		job, err := s.scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job rows: %w", err)
	}
	return out, nil
}

func (s *JobStore) scanJob(row pgx.Row) (harvest.Job, error) {
	var (
		job      harvest.Job
		reasons  []byte
		recipeID *string
	)
	err := row.Scan(&job.ID, &job.SourceURL, &job.SourceType, &job.Domain, &job.Status,
		&job.ErrorText, &job.FailureClass, &job.AttemptCount, &job.LastAttemptAt,
		&job.NextRetryAt, &job.ParseStrategy, &job.Confidence, &reasons, &recipeID,
		&job.Duplicate, &job.QualityScore, &job.Submitted, &job.Started, &job.Finished,
		&job.SnapshotURI)
	if err != nil {
		return harvest.Job{}, err
	}
	if len(reasons) > 0 {
		if err := json.Unmarshal(reasons, &job.ComplianceReasons); err != nil {
			return harvest.Job{}, fmt.Errorf("unmarshal compliance reasons: %w", err)
		}
	}
	if recipeID != nil {
		job.RecipeID = *recipeID
	}
	return job, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
