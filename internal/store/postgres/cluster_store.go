package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/barcraft/harvester/internal/harvest"
)

// ClusterStore persists variant clusters in Postgres.
type ClusterStore struct {
	pool pool
}

// NewClusterStore constructs a ClusterStore from an existing pool.
func NewClusterStore(p pool) (*ClusterStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ClusterStore{pool: p}, nil
}

// FindByCanonical fetches the cluster anchored at the recipe, if any.
func (s *ClusterStore) FindByCanonical(ctx context.Context, recipeID string) (harvest.VariantCluster, bool, error) {
	query := `SELECT id, canonical_recipe_id, members
FROM variant_clusters WHERE canonical_recipe_id = $1`
	var (
		cluster harvest.VariantCluster
		members []byte
	)
	err := s.pool.QueryRow(ctx, query, recipeID).Scan(&cluster.ID, &cluster.CanonicalRecipeID, &members)
	if errors.Is(err, pgx.ErrNoRows) {
		return harvest.VariantCluster{}, false, nil
	}
	if err != nil {
		return harvest.VariantCluster{}, false, fmt.Errorf("find cluster: %w", err)
	}
	if len(members) > 0 {
		if err := json.Unmarshal(members, &cluster.Members); err != nil {
			return harvest.VariantCluster{}, false, fmt.Errorf("unmarshal members: %w", err)
		}
	}
	return cluster, true, nil
}

// Save upserts the cluster by canonical recipe.
func (s *ClusterStore) Save(ctx context.Context, cluster harvest.VariantCluster) error {
	members, err := json.Marshal(cluster.Members)
	if err != nil {
		return fmt.Errorf("marshal members: %w", err)
	}
	query := `INSERT INTO variant_clusters (id, canonical_recipe_id, members)
VALUES ($1,$2,$3)
ON CONFLICT (canonical_recipe_id) DO UPDATE SET members = EXCLUDED.members`
	if _, err := s.pool.Exec(ctx, query, cluster.ID, cluster.CanonicalRecipeID, members); err != nil {
		return fmt.Errorf("save cluster: %w", err)
	}
	return nil
}
