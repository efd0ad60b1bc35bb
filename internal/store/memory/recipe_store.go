package memory

import (
	"context"
	"sync"

	"github.com/barcraft/harvester/internal/harvest"
)

// RecipeStore keeps recipes in maps keyed by ID and fingerprint.
type RecipeStore struct {
	mu            sync.RWMutex
	byID          map[string]harvest.Recipe
	byFingerprint map[string]string
}

// NewRecipeStore constructs a RecipeStore.
func NewRecipeStore() *RecipeStore {
	return &RecipeStore{
		byID:          make(map[string]harvest.Recipe),
		byFingerprint: make(map[string]string),
	}
}

// Insert stores a recipe.
func (s *RecipeStore) Insert(_ context.Context, recipe harvest.Recipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[recipe.ID] = recipe
	if recipe.Fingerprint != "" {
		s.byFingerprint[recipe.Fingerprint] = recipe.ID
	}
	return nil
}

// Get fetches a recipe by ID.
func (s *RecipeStore) Get(_ context.Context, recipeID string) (harvest.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recipe, ok := s.byID[recipeID]
	if !ok {
		return harvest.Recipe{}, ErrNotFound
	}
	return recipe, nil
}

// GetByFingerprint fetches a recipe by its structural fingerprint.
func (s *RecipeStore) GetByFingerprint(_ context.Context, fp string) (harvest.Recipe, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byFingerprint[fp]
	if !ok {
		return harvest.Recipe{}, false, nil
	}
	return s.byID[id], true, nil
}

// AppendSource records an additional provenance URL on an existing recipe.
func (s *RecipeStore) AppendSource(_ context.Context, recipeID string, sourceURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	recipe, ok := s.byID[recipeID]
	if !ok {
		return ErrNotFound
	}
	for _, src := range recipe.Sources {
		if src == sourceURL {
			return nil
		}
	}
	recipe.Sources = append(recipe.Sources, sourceURL)
	s.byID[recipeID] = recipe
	return nil
}
