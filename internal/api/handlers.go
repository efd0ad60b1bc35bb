package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/barcraft/harvester/internal/harvest"
	"github.com/barcraft/harvester/internal/telemetry"
)

type submitJobRequest struct {
	URL        string `json:"url"`
	SourceType string `json:"source_type"`
}

type submitJobResponse struct {
	Job     harvest.Job `json:"job"`
	Created bool        `json:"created"`
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(s.logger, w, http.StatusBadRequest, "url is required")
		return
	}
	sourceType := harvest.SourceTypePage
	if req.SourceType == string(harvest.SourceTypeSeed) {
		sourceType = harvest.SourceTypeSeed
	}

	job, created, err := s.orch.SubmitURL(r.Context(), req.URL, sourceType)
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, err.Error())
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(s.logger, w, status, submitJobResponse{Job: job, Created: created})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobs.GetJob(r.Context(), jobID)
	if errors.Is(err, harvest.ErrNotFound) {
		writeError(s.logger, w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.logger.Error("job lookup failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, "job lookup failed")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, job)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	domain := r.URL.Query().Get("domain")
	if domain == "" {
		writeError(s.logger, w, http.StatusBadRequest, "domain query parameter is required")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(s.logger, w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	jobs, err := s.jobs.ListByDomain(r.Context(), domain, limit)
	if err != nil {
		s.logger.Error("job list failed", zap.String("domain", domain), zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, "job list failed")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"jobs": jobs})
}

type runJobResponse struct {
	Job     harvest.Job `json:"job"`
	Started bool        `json:"started"`
	Refusal string      `json:"refusal,omitempty"`
}

func (s *Server) runJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, refusal, err := s.orch.RunJob(r.Context(), jobID)
	if errors.Is(err, harvest.ErrNotFound) {
		writeError(s.logger, w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.logger.Error("run job failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, "run job failed")
		return
	}
	resp := runJobResponse{Job: job, Started: refusal == harvest.RunEligible, Refusal: string(refusal)}
	status := http.StatusAccepted
	if refusal != harvest.RunEligible {
		status = http.StatusConflict
	}
	writeJSON(s.logger, w, status, resp)
}

type harvestRequest struct {
	Domain string `json:"domain"`
}

func (s *Server) autoHarvest(w http.ResponseWriter, r *http.Request) {
	var req harvestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Domain) == "" {
		writeError(s.logger, w, http.StatusBadRequest, "domain is required")
		return
	}
	summaries, err := s.orch.AutoHarvest(r.Context(), req.Domain)
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"summaries": summaries})
}

func (s *Server) listPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := s.policies.List(r.Context())
	if err != nil {
		s.logger.Error("policy list failed", zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, "policy list failed")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"policies": policies})
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

// setPolicyActive is the per-domain kill switch.
func (s *Server) setPolicyActive(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "invalid JSON")
		return
	}
	err := s.policies.SetActive(r.Context(), domain, req.Active)
	if errors.Is(err, harvest.ErrNotFound) {
		writeError(s.logger, w, http.StatusNotFound, "policy not found")
		return
	}
	if err != nil {
		s.logger.Error("policy update failed", zap.String("domain", domain), zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, "policy update failed")
		return
	}
	s.logger.Info("policy active flag changed", zap.String("domain", domain), zap.Bool("active", req.Active))
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"domain": domain, "active": req.Active})
}

func (s *Server) getRecipe(w http.ResponseWriter, r *http.Request) {
	recipeID := chi.URLParam(r, "recipe_id")
	recipe, err := s.recipes.Get(r.Context(), recipeID)
	if errors.Is(err, harvest.ErrNotFound) {
		writeError(s.logger, w, http.StatusNotFound, "recipe not found")
		return
	}
	if err != nil {
		s.logger.Error("recipe lookup failed", zap.String("recipe_id", recipeID), zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, "recipe lookup failed")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, recipe)
}

type domainHealth struct {
	Domain          string            `json:"domain"`
	JobsFinished    int               `json:"jobs_finished"`
	FailureRate     float64           `json:"failure_rate"`
	ParseFailRate   float64           `json:"parse_failure_rate"`
	FallbackRate    float64           `json:"parser_fallback_rate"`
	AverageAttempts float64           `json:"average_attempts"`
	RetryDepth      int               `json:"retry_queue_depth"`
	Alerts          []telemetry.Alert `json:"alerts,omitempty"`
}

// telemetrySnapshot reports per-domain health with alert evaluations against
// each domain's policy thresholds.
func (s *Server) telemetrySnapshot(w http.ResponseWriter, r *http.Request) {
	snapshots := s.tracker.Snapshots()
	out := make([]domainHealth, 0, len(snapshots))
	for _, snap := range snapshots {
		health := domainHealth{
			Domain:          snap.Domain,
			JobsFinished:    snap.JobsFinished,
			FailureRate:     snap.FailureRate(),
			ParseFailRate:   snap.ParseFailureRate(),
			FallbackRate:    snap.FallbackRate(),
			AverageAttempts: snap.AverageAttempts(),
			RetryDepth:      snap.RetryQueueDepth,
		}
		if policy, ok, err := s.policies.ForDomain(r.Context(), snap.Domain); err == nil && ok {
			health.Alerts = telemetry.EvaluateAlerts(snap, policy.Alerts)
		}
		out = append(out, health)
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"domains": out})
}
