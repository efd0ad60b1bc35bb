package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/barcraft/harvester/internal/harvest"
)

func TestJobStoreLifecycle(t *testing.T) {
	s := NewJobStore()
	ctx := context.Background()

	job := harvest.Job{ID: "job-1", SourceURL: "https://example.com/daiquiri", Status: harvest.JobStatusPending, Submitted: time.Now()}
	require.NoError(t, s.CreateJob(ctx, job))
	require.Error(t, s.CreateJob(ctx, job), "duplicate id")

	job.Status = harvest.JobStatusRunning
	require.NoError(t, s.UpdateJob(ctx, job))

	got, err := s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, harvest.JobStatusRunning, got.Status)

	_, err = s.GetJob(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestJobStoreFindActiveByURL(t *testing.T) {
	s := NewJobStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateJob(ctx, harvest.Job{ID: "old", SourceURL: "https://example.com/x", Status: harvest.JobStatusFailedTerminal, Submitted: base}))
	_, found, err := s.FindActiveByURL(ctx, "https://example.com/x")
	require.NoError(t, err)
	require.False(t, found, "terminal failures do not block re-enqueue")

	require.NoError(t, s.CreateJob(ctx, harvest.Job{ID: "new", SourceURL: "https://example.com/x", Status: harvest.JobStatusPending, Submitted: base.Add(time.Hour)}))
	got, found, err := s.FindActiveByURL(ctx, "https://example.com/x")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "new", got.ID)
}

func TestJobStoreListRetryable(t *testing.T) {
	s := NewJobStore()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	require.NoError(t, s.CreateJob(ctx, harvest.Job{ID: "due", Status: harvest.JobStatusFailedRetry, NextRetryAt: &past, Submitted: now.Add(-2 * time.Hour)}))
	require.NoError(t, s.CreateJob(ctx, harvest.Job{ID: "not-due", Status: harvest.JobStatusFailedRetry, NextRetryAt: &future, Submitted: now.Add(-time.Hour)}))
	require.NoError(t, s.CreateJob(ctx, harvest.Job{ID: "pending", Status: harvest.JobStatusPending, Submitted: now}))

	due, err := s.ListRetryable(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, "due", due[0].ID)
}

func TestRecipeStoreFingerprintAndSources(t *testing.T) {
	s := NewRecipeStore()
	ctx := context.Background()

	recipe := harvest.Recipe{ID: "recipe-1", Name: "Daiquiri", Fingerprint: "abc", Sources: []string{"https://a.com/1"}}
	require.NoError(t, s.Insert(ctx, recipe))

	got, found, err := s.GetByFingerprint(ctx, "abc")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "recipe-1", got.ID)

	_, found, err = s.GetByFingerprint(ctx, "nope")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.AppendSource(ctx, "recipe-1", "https://b.com/2"))
	require.NoError(t, s.AppendSource(ctx, "recipe-1", "https://b.com/2"), "idempotent")
	got, err = s.Get(ctx, "recipe-1")
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.com/1", "https://b.com/2"}, got.Sources)
}

func TestClusterStore(t *testing.T) {
	s := NewClusterStore()
	ctx := context.Background()

	_, found, err := s.FindByCanonical(ctx, "recipe-1")
	require.NoError(t, err)
	require.False(t, found)

	cluster := harvest.VariantCluster{ID: "cluster-1", CanonicalRecipeID: "recipe-1",
		Members: []harvest.ClusterMember{{RecipeID: "recipe-2", Relation: "base-spirit swap"}}}
	require.NoError(t, s.Save(ctx, cluster))

	got, found, err := s.FindByCanonical(ctx, "recipe-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, got.Members, 1)
}

func TestPolicyStore(t *testing.T) {
	s := NewPolicyStore([]harvest.SourcePolicy{
		{ID: "pol-1", Domain: "example.com", Active: true},
		{ID: "pol-2", Domain: "drinks.dev", Active: false},
	})
	ctx := context.Background()

	policy, ok, err := s.ForDomain(ctx, "www.example.com")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "pol-1", policy.ID)

	policy, ok, err = s.ForDomain(ctx, "recipes.example.com")
	require.NoError(t, err)
	require.True(t, ok, "subdomains inherit the parent policy")
	require.Equal(t, "pol-1", policy.ID)

	_, ok, err = s.ForDomain(ctx, "unknown.org")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.SetActive(ctx, "example.com", false))
	policy, _, _ = s.ForDomain(ctx, "example.com")
	require.False(t, policy.Active)

	require.ErrorIs(t, s.SetActive(ctx, "unknown.org", true), ErrNotFound)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "drinks.dev", list[0].Domain)
}
