package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/barcraft/harvester/internal/harvest"
)

// RecipeStore persists validated recipes in Postgres. The normalized recipe
// body and source list live in jsonb columns.
type RecipeStore struct {
	pool pool
}

// NewRecipeStore constructs a RecipeStore from an existing pool.
func NewRecipeStore(p pool) (*RecipeStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RecipeStore{pool: p}, nil
}

// Close releases the underlying pool resources.
func (s *RecipeStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Insert stores a recipe row.
func (s *RecipeStore) Insert(ctx context.Context, recipe harvest.Recipe) error {
	if recipe.ID == "" {
		return fmt.Errorf("recipe id is required")
	}
	body, err := json.Marshal(recipe.Recipe)
	if err != nil {
		return fmt.Errorf("marshal recipe body: %w", err)
	}
	sources, err := json.Marshal(recipe.Sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}
	query := `INSERT INTO recipes (id, name, fingerprint, body, sources, disposition, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`
	if _, err := s.pool.Exec(ctx, query, recipe.ID, recipe.Name, recipe.Fingerprint,
		body, sources, recipe.Disposition, recipe.CreatedAt); err != nil {
		return fmt.Errorf("insert recipe: %w", err)
	}
	return nil
}

// Get fetches a recipe by ID.
func (s *RecipeStore) Get(ctx context.Context, recipeID string) (harvest.Recipe, error) {
	query := `SELECT id, name, fingerprint, body, sources, disposition, created_at
FROM recipes WHERE id = $1`
	recipe, err := s.scanRecipe(s.pool.QueryRow(ctx, query, recipeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return harvest.Recipe{}, harvest.ErrNotFound
	}
	return recipe, err
}

// GetByFingerprint fetches a recipe by its structural fingerprint.
func (s *RecipeStore) GetByFingerprint(ctx context.Context, fp string) (harvest.Recipe, bool, error) {
	query := `SELECT id, name, fingerprint, body, sources, disposition, created_at
FROM recipes WHERE fingerprint = $1 LIMIT 1`
	recipe, err := s.scanRecipe(s.pool.QueryRow(ctx, query, fp))
	if errors.Is(err, pgx.ErrNoRows) {
		return harvest.Recipe{}, false, nil
	}
	if err != nil {
		return harvest.Recipe{}, false, err
	}
	return recipe, true, nil
}

// AppendSource records an additional provenance URL on an existing recipe.
func (s *RecipeStore) AppendSource(ctx context.Context, recipeID string, sourceURL string) error {
	query := `UPDATE recipes
SET sources = sources || to_jsonb($2::text)
WHERE id = $1 AND NOT sources @> to_jsonb($2::text)`
	if _, err := s.pool.Exec(ctx, query, recipeID, sourceURL); err != nil {
		return fmt.Errorf("append source: %w", err)
	}
	return nil
}

func (s *RecipeStore) scanRecipe(row pgx.Row) (harvest.Recipe, error) {
	var (
		recipe  harvest.Recipe
		body    []byte
		sources []byte
	)
	err := row.Scan(&recipe.ID, &recipe.Name, &recipe.Fingerprint, &body, &sources,
		&recipe.Disposition, &recipe.CreatedAt)
	if err != nil {
		return harvest.Recipe{}, err
	}
	if err := json.Unmarshal(body, &recipe.Recipe); err != nil {
		return harvest.Recipe{}, fmt.Errorf("unmarshal recipe body: %w", err)
	}
	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &recipe.Sources); err != nil {
			return harvest.Recipe{}, fmt.Errorf("unmarshal sources: %w", err)
		}
	}
	return recipe, nil
}
