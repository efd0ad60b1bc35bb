package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/barcraft/harvester/internal/compliance"
	"github.com/barcraft/harvester/internal/config"
	"github.com/barcraft/harvester/internal/dedup"
	embmemory "github.com/barcraft/harvester/internal/embedding/memory"
	"github.com/barcraft/harvester/internal/extract"
	"github.com/barcraft/harvester/internal/harvest"
	"github.com/barcraft/harvester/internal/normalize"
	ontmemory "github.com/barcraft/harvester/internal/ontology/memory"
	"github.com/barcraft/harvester/internal/orchestrator"
	"github.com/barcraft/harvester/internal/quality"
	storememory "github.com/barcraft/harvester/internal/store/memory"
	"github.com/barcraft/harvester/internal/telemetry"
)

type staticBreaker struct{}

func (staticBreaker) Allow(string) bool   { return true }
func (staticBreaker) Record(string, bool) {}

type allowAllRobots struct{}

func (allowAllRobots) Allowed(context.Context, string) bool { return true }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type seqIDs struct{ n int }

func (g *seqIDs) NewID() (string, error) {
	g.n++
	return "test-id-" + string(rune('a'+g.n-1)), nil
}

type testServer struct {
	srv      *Server
	jobs     *storememory.JobStore
	recipes  *storememory.RecipeStore
	policies *storememory.PolicyStore
	tracker  *telemetry.Tracker
}

func newTestServer(t *testing.T, cfg config.Config) *testServer {
	t.Helper()
	logger := zap.NewNop()

	jobs := storememory.NewJobStore()
	recipes := storememory.NewRecipeStore()
	clusters := storememory.NewClusterStore()
	policies := storememory.NewPolicyStore([]harvest.SourcePolicy{{
		ID:        "pol-1",
		Domain:    "example.com",
		Active:    true,
		TrustTier: 0.8,
		SeedURLs:  []string{"https://example.com/recipes"},
	}})
	tracker := telemetry.NewTracker()

	orch := orchestrator.New(orchestrator.Config{}, orchestrator.Deps{
		Jobs:       jobs,
		Recipes:    recipes,
		Clusters:   clusters,
		Policies:   policies,
		Extractor:  extract.NewEngine(nil, nil, logger),
		Normalizer: normalize.New(ontmemory.New(nil), logger),
		Deduper:    dedup.New(dedup.Config{DuplicateThreshold: 0.95, VariantThreshold: 0.88}, recipes, embmemory.New(16), logger),
		Scorer:     quality.New(quality.Config{AcceptThreshold: 0.7, QuarantineThreshold: 0.45, TrustWeight: 1}),
		Checker:    compliance.New(allowAllRobots{}),
		Breaker:    staticBreaker{},
		Tracker:    tracker,
		Clock:      systemClock{},
		IDs:        &seqIDs{},
		Logger:     logger,
	})

	return &testServer{
		srv:      NewServer(orch, jobs, recipes, policies, tracker, logger, cfg),
		jobs:     jobs,
		recipes:  recipes,
		policies: policies,
		tracker:  tracker,
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	rec := doJSON(t, ts.srv.Handler(), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSubmitJobCreatesThenReturnsExisting(t *testing.T) {
	ts := newTestServer(t, config.Config{})

	rec := doJSON(t, ts.srv.Handler(), http.MethodPost, "/v1/jobs", submitJobRequest{
		URL: "https://example.com/recipes/daiquiri/",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp submitJobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Created)
	require.Equal(t, "https://example.com/recipes/daiquiri", resp.Job.SourceURL)
	require.Equal(t, harvest.JobStatusPending, resp.Job.Status)

	rec = doJSON(t, ts.srv.Handler(), http.MethodPost, "/v1/jobs", submitJobRequest{
		URL: "https://example.com/recipes/daiquiri#comments",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var second submitJobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	require.False(t, second.Created)
	require.Equal(t, resp.Job.ID, second.Job.ID)
}

func TestSubmitJobRejectsMissingURL(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	rec := doJSON(t, ts.srv.Handler(), http.MethodPost, "/v1/jobs", submitJobRequest{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJobNotFound(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	rec := doJSON(t, ts.srv.Handler(), http.MethodGet, "/v1/jobs/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunJobConflictForTerminal(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	ctx := context.Background()

	job := harvest.Job{
		ID:        "job-1",
		SourceURL: "https://example.com/recipes/daiquiri",
		Domain:    "example.com",
		Status:    harvest.JobStatusFailedTerminal,
		Submitted: time.Now().UTC(),
	}
	require.NoError(t, ts.jobs.CreateJob(ctx, job))

	rec := doJSON(t, ts.srv.Handler(), http.MethodPost, "/v1/jobs/job-1/run", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	var resp runJobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Started)
	require.Equal(t, string(harvest.RunTerminal), resp.Refusal)
}

func TestListJobsRequiresDomain(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	rec := doJSON(t, ts.srv.Handler(), http.MethodGet, "/v1/jobs/", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPolicyKillSwitch(t *testing.T) {
	ts := newTestServer(t, config.Config{})

	rec := doJSON(t, ts.srv.Handler(), http.MethodPut, "/v1/policies/example.com/active", setActiveRequest{Active: false})
	require.Equal(t, http.StatusOK, rec.Code)

	policy, ok, err := ts.policies.ForDomain(context.Background(), "example.com")
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, policy.Active)

	rec = doJSON(t, ts.srv.Handler(), http.MethodPut, "/v1/policies/unknown.org/active", setActiveRequest{Active: true})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListPolicies(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	rec := doJSON(t, ts.srv.Handler(), http.MethodGet, "/v1/policies/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "example.com")
}

func TestTelemetryEndpointReportsDomains(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	ts.tracker.ObserveJobFinished("example.com", harvest.JobStatusSucceeded, "", 1, time.Second)

	rec := doJSON(t, ts.srv.Handler(), http.MethodGet, "/v1/telemetry", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Domains []domainHealth `json:"domains"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Domains, 1)
	require.Equal(t, "example.com", resp.Domains[0].Domain)
	require.Equal(t, 1, resp.Domains[0].JobsFinished)
}

func TestAPIKeyMiddleware(t *testing.T) {
	cfg := config.Config{}
	cfg.Auth.Enabled = true
	cfg.Auth.APIKey = "secret"
	ts := newTestServer(t, cfg)

	rec := doJSON(t, ts.srv.Handler(), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-API-Key", "secret")
	out := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(out, req)
	require.Equal(t, http.StatusOK, out.Code)
}

func TestRecipeNotFound(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	rec := doJSON(t, ts.srv.Handler(), http.MethodGet, "/v1/recipes/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
