// Package memory provides in-memory store implementations for development
// and testing.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/barcraft/harvester/internal/harvest"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = harvest.ErrNotFound

// JobStore keeps jobs in a map.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]harvest.Job
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]harvest.Job)}
}

// CreateJob stores a new job.
func (s *JobStore) CreateJob(_ context.Context, job harvest.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	s.jobs[job.ID] = job
	return nil
}

// UpdateJob replaces the stored job.
func (s *JobStore) UpdateJob(_ context.Context, job harvest.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return ErrNotFound
	}
	s.jobs[job.ID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (harvest.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return harvest.Job{}, ErrNotFound
	}
	return job, nil
}

// FindActiveByURL returns the most recently submitted job for the URL that
// is still in flight or already succeeded.
func (s *JobStore) FindActiveByURL(_ context.Context, url string) (harvest.Job, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best harvest.Job
	found := false
	for _, job := range s.jobs {
		if job.SourceURL != url {
			continue
		}
		if job.Status == harvest.JobStatusFailedTerminal {
			continue
		}
		if !found || job.Submitted.After(best.Submitted) {
			best = job
			found = true
		}
	}
	return best, found, nil
}

// ListRetryable returns failed-retryable jobs whose next retry is due.
func (s *JobStore) ListRetryable(_ context.Context, now time.Time, limit int) ([]harvest.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []harvest.Job
	for _, job := range s.jobs {
		if job.Status != harvest.JobStatusFailedRetry {
			continue
		}
		if job.NextRetryAt != nil && job.NextRetryAt.After(now) {
			continue
		}
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Submitted.Before(out[j].Submitted) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListByDomain returns the domain's jobs, most recent first.
func (s *JobStore) ListByDomain(_ context.Context, domain string, limit int) ([]harvest.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []harvest.Job
	for _, job := range s.jobs {
		if job.Domain == domain {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Submitted.After(out[j].Submitted) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
