package dedup

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/barcraft/harvester/internal/harvest"
)

// Variant relation labels recorded on cluster members.
const (
	RelationBaseSpiritSwap  = "base-spirit swap"
	RelationSweetenerChange = "sweetener change"
	RelationBittersChange   = "bitters change"
	RelationRatioShift      = "ratio shift"
	RelationUnclassified    = "unclassified"
)

// Config holds the similarity thresholds. Both bounds are inclusive: a
// similarity exactly at VariantThreshold classifies as variant, and exactly
// at DuplicateThreshold as duplicate.
type Config struct {
	DuplicateThreshold float64
	VariantThreshold   float64
	NeighborCount      int
}

// Engine runs the two-layer dedup: an exact fingerprint lookup first, then
// an embedding similarity search.
type Engine struct {
	cfg      Config
	recipes  harvest.RecipeStore
	embedder harvest.Embedder
	logger   *zap.Logger
}

// New builds an Engine.
func New(cfg Config, recipes harvest.RecipeStore, embedder harvest.Embedder, logger *zap.Logger) *Engine {
	if cfg.NeighborCount <= 0 {
		cfg.NeighborCount = 10
	}
	return &Engine{cfg: cfg, recipes: recipes, embedder: embedder, logger: logger}
}

// Classify decides how the recipe relates to the existing corpus.
func (e *Engine) Classify(ctx context.Context, recipe harvest.NormalizedRecipe) (harvest.DedupDecision, error) {
	fp := Fingerprint(recipe)
	existing, found, err := e.recipes.GetByFingerprint(ctx, fp)
	if err != nil {
		return harvest.DedupDecision{}, fmt.Errorf("fingerprint lookup: %w", err)
	}
	if found {
		return harvest.DedupDecision{
			Class:      harvest.DedupDuplicate,
			RecipeID:   existing.ID,
			Similarity: 1,
		}, nil
	}

	vector, err := e.embedder.Embed(ctx, recipe)
	if err != nil {
		return harvest.DedupDecision{}, fmt.Errorf("embed recipe: %w", err)
	}
	neighbors, err := e.embedder.NearestNeighbors(ctx, vector, e.cfg.NeighborCount)
	if err != nil {
		return harvest.DedupDecision{}, fmt.Errorf("neighbor search: %w", err)
	}
	if len(neighbors) == 0 {
		return harvest.DedupDecision{Class: harvest.DedupNew}, nil
	}

	best := neighbors[0]
	for _, n := range neighbors[1:] {
		if n.Similarity > best.Similarity {
			best = n
		}
	}

	switch {
	case best.Similarity >= e.cfg.DuplicateThreshold:
		return harvest.DedupDecision{
			Class:      harvest.DedupDuplicate,
			RecipeID:   best.RecipeID,
			Similarity: best.Similarity,
		}, nil
	case best.Similarity >= e.cfg.VariantThreshold:
		relation := e.relation(ctx, recipe, best.RecipeID)
		return harvest.DedupDecision{
			Class:      harvest.DedupVariant,
			RecipeID:   best.RecipeID,
			Similarity: best.Similarity,
			Relation:   relation,
		}, nil
	default:
		return harvest.DedupDecision{Class: harvest.DedupNew}, nil
	}
}

// Register adds an accepted recipe to the neighbor index when the embedder
// supports indexing. Remote embedding services index on their own side.
func (e *Engine) Register(ctx context.Context, recipeID string, recipe harvest.NormalizedRecipe) error {
	indexer, ok := e.embedder.(interface{ Index(string, []float32) })
	if !ok {
		return nil
	}
	vector, err := e.embedder.Embed(ctx, recipe)
	if err != nil {
		return fmt.Errorf("embed recipe: %w", err)
	}
	indexer.Index(recipeID, vector)
	return nil
}

// relation labels what changed between the candidate and its nearest
// canonical recipe.
func (e *Engine) relation(ctx context.Context, candidate harvest.NormalizedRecipe, canonicalID string) string {
	canonical, err := e.recipes.Get(ctx, canonicalID)
	if err != nil {
		e.logger.Warn("variant relation lookup failed", zap.String("recipe_id", canonicalID), zap.Error(err))
		return RelationUnclassified
	}

	changed := changedCategories(candidate, canonical.Recipe)
	switch {
	case changed["spirit"]:
		return RelationBaseSpiritSwap
	case changed["sweetener"]:
		return RelationSweetenerChange
	case changed["bitters"]:
		return RelationBittersChange
	case len(changed) == 0:
		// Same ingredient set; the similarity gap must come from proportions.
		return RelationRatioShift
	default:
		return RelationUnclassified
	}
}

// changedCategories returns the ontology categories of ingredients present
// on exactly one side.
func changedCategories(a, b harvest.NormalizedRecipe) map[string]bool {
	setA := refCategories(a)
	setB := refCategories(b)

	changed := make(map[string]bool)
	for id, cat := range setA {
		if _, ok := setB[id]; !ok {
			changed[cat] = true
		}
	}
	for id, cat := range setB {
		if _, ok := setA[id]; !ok {
			changed[cat] = true
		}
	}
	return changed
}

func refCategories(r harvest.NormalizedRecipe) map[string]string {
	out := make(map[string]string)
	for _, ing := range r.Ingredients {
		if ing.Ref != nil {
			out[ing.Ref.ID] = ing.Ref.Category
		}
	}
	return out
}
