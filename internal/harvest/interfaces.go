package harvest

import (
	"context"
	"io"
	"time"
)

// JobStore persists harvest jobs.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	UpdateJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, jobID string) (Job, error)
	// FindActiveByURL returns the most recent non-terminal or succeeded job
	// for the URL, used to keep discovery enqueue idempotent.
	FindActiveByURL(ctx context.Context, url string) (Job, bool, error)
	// ListRetryable returns failed-retryable jobs whose next_retry_at has
	// elapsed, up to limit.
	ListRetryable(ctx context.Context, now time.Time, limit int) ([]Job, error)
	ListByDomain(ctx context.Context, domain string, limit int) ([]Job, error)
}

// RecipeStore persists validated recipes.
type RecipeStore interface {
	Insert(ctx context.Context, recipe Recipe) error
	Get(ctx context.Context, recipeID string) (Recipe, error)
	GetByFingerprint(ctx context.Context, fp string) (Recipe, bool, error)
	// AppendSource records an additional provenance URL on an existing recipe.
	AppendSource(ctx context.Context, recipeID string, sourceURL string) error
}

// ClusterStore persists variant clusters.
type ClusterStore interface {
	FindByCanonical(ctx context.Context, recipeID string) (VariantCluster, bool, error)
	Save(ctx context.Context, cluster VariantCluster) error
}

// PolicyStore exposes source policies to the pipeline. The pipeline never
// writes policies; SetActive backs the administrative kill switch.
type PolicyStore interface {
	ForDomain(ctx context.Context, domain string) (SourcePolicy, bool, error)
	List(ctx context.Context) ([]SourcePolicy, error)
	SetActive(ctx context.Context, domain string, active bool) error
}

// Ontology resolves free-text ingredient names to canonical references.
type Ontology interface {
	Resolve(ctx context.Context, text string) (IngredientRef, bool, error)
}

// Embedder computes recipe embeddings and nearest-neighbor lookups.
type Embedder interface {
	Embed(ctx context.Context, recipe NormalizedRecipe) ([]float32, error)
	NearestNeighbors(ctx context.Context, vector []float32, k int) ([]Neighbor, error)
}

// Fetcher retrieves a single page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Renderer produces a JS-rendered snapshot of a page.
type Renderer interface {
	Render(ctx context.Context, url string) (Page, error)
}

// RobotsPolicy answers whether a URL may be fetched per robots.txt.
type RobotsPolicy interface {
	Allowed(ctx context.Context, url string) bool
}

// BlobStore archives raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes moderation events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Breaker tracks per-domain outcomes and pauses dispatch for unhealthy
// domains. Implementations must be safe for concurrent use.
type Breaker interface {
	Allow(domain string) bool
	Record(domain string, success bool)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job and recipe IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
