package memory

import (
	"context"
	"sync"

	"github.com/barcraft/harvester/internal/harvest"
)

// ClusterStore keeps variant clusters in a map keyed by canonical recipe.
type ClusterStore struct {
	mu          sync.RWMutex
	byCanonical map[string]harvest.VariantCluster
}

// NewClusterStore constructs a ClusterStore.
func NewClusterStore() *ClusterStore {
	return &ClusterStore{byCanonical: make(map[string]harvest.VariantCluster)}
}

// FindByCanonical fetches the cluster anchored at the recipe, if any.
func (s *ClusterStore) FindByCanonical(_ context.Context, recipeID string) (harvest.VariantCluster, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cluster, ok := s.byCanonical[recipeID]
	return cluster, ok, nil
}

// Save stores the cluster.
func (s *ClusterStore) Save(_ context.Context, cluster harvest.VariantCluster) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byCanonical[cluster.CanonicalRecipeID] = cluster
	return nil
}
