// Package quality scores normalized recipes and assigns a disposition.
package quality

import (
	"math"
	"strings"

	"github.com/barcraft/harvester/internal/harvest"
)

// Config holds scoring weights and disposition cutoffs. Weights are
// normalized internally so they need not sum to one.
type Config struct {
	AcceptThreshold     float64
	QuarantineThreshold float64
	TrustWeight         float64
	StructureWeight     float64
	PlausibilityWeight  float64
	PopularityWeight    float64
}

// Scorer computes the aggregate quality score for a recipe.
type Scorer struct {
	cfg Config
}

// New builds a Scorer.
func New(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score evaluates a recipe against the policy of its source domain. A hard
// plausibility failure rejects regardless of the aggregate.
func (s *Scorer) Score(recipe harvest.NormalizedRecipe, policy harvest.SourcePolicy) harvest.QualityDecision {
	decision := harvest.QualityDecision{
		TrustScore:     clamp01(policy.TrustTier),
		StructureScore: structureScore(recipe),
	}

	plausible, reasons := plausibility(recipe)
	decision.Reasons = reasons
	decision.PlausibilityScore = plausibilityScore(recipe, plausible)
	decision.PopularityScore = popularityScore(recipe, policy)

	weightSum := s.cfg.TrustWeight + s.cfg.StructureWeight + s.cfg.PlausibilityWeight + s.cfg.PopularityWeight
	if weightSum <= 0 {
		weightSum = 1
	}
	decision.Aggregate = (decision.TrustScore*s.cfg.TrustWeight +
		decision.StructureScore*s.cfg.StructureWeight +
		decision.PlausibilityScore*s.cfg.PlausibilityWeight +
		decision.PopularityScore*s.cfg.PopularityWeight) / weightSum

	switch {
	case !plausible:
		decision.Disposition = harvest.DispositionReject
	case decision.Aggregate >= s.cfg.AcceptThreshold:
		decision.Disposition = harvest.DispositionAccept
	case decision.Aggregate >= s.cfg.QuarantineThreshold:
		decision.Disposition = harvest.DispositionQuarantine
	default:
		decision.Disposition = harvest.DispositionReject
	}
	return decision
}

// structureScore rewards complete, well-formed recipes.
func structureScore(recipe harvest.NormalizedRecipe) float64 {
	score := 0.0
	if n := len(recipe.Ingredients); n >= 2 && n <= 12 {
		score += 0.35
	} else if n == 1 {
		score += 0.15
	}
	if len(recipe.Instructions) >= 2 {
		score += 0.25
	} else if len(recipe.Instructions) == 1 {
		score += 0.15
	}
	if recipe.Method != harvest.MethodUnknown {
		score += 0.15
	}
	if recipe.Glass != "" {
		score += 0.1
	}
	score += 0.15 * (1 - recipe.UnresolvedFraction)
	return clamp01(score)
}

// plausibility runs the hard sanity checks. A failure here is not a matter
// of degree: the recipe cannot be served.
func plausibility(recipe harvest.NormalizedRecipe) (bool, []string) {
	var reasons []string

	totalSpiritOz := 0.0
	for _, ing := range recipe.Ingredients {
		oz := toOunces(ing)
		if ing.Ref != nil && ing.Ref.Category == "spirit" {
			totalSpiritOz += oz
		}
		if oz > 16 {
			reasons = append(reasons, "implausible ingredient volume: "+ing.FreeText)
		}
		if ing.Quantity < 0 {
			reasons = append(reasons, "negative quantity: "+ing.FreeText)
		}
	}
	if totalSpiritOz > 8 {
		reasons = append(reasons, "implausible total spirit volume")
	}
	if len(recipe.Ingredients) > 20 {
		reasons = append(reasons, "too many ingredients")
	}
	if hasGibberishName(recipe.Name) {
		reasons = append(reasons, "implausible recipe name")
	}
	return len(reasons) == 0, reasons
}

func plausibilityScore(recipe harvest.NormalizedRecipe, plausible bool) float64 {
	if !plausible {
		return 0
	}
	// Passing the hard checks earns the base; resolved ingredients and sane
	// counts earn the rest.
	score := 0.6
	if recipe.UnresolvedFraction <= 0.25 {
		score += 0.2
	}
	if n := len(recipe.Ingredients); n >= 2 && n <= 8 {
		score += 0.2
	}
	return clamp01(score)
}

// popularityScore combines the source rating with log-scaled review volume.
// Recipes below the policy's rating floor contribute nothing.
func popularityScore(recipe harvest.NormalizedRecipe, policy harvest.SourcePolicy) float64 {
	if recipe.RatingCount <= 0 || recipe.RatingValue <= 0 {
		return 0
	}
	if recipe.RatingCount < policy.MinRatingCount {
		return 0
	}
	if recipe.RatingValue < policy.MinRatingValue {
		return 0
	}
	normRating := clamp01(recipe.RatingValue / 5)
	volume := math.Log1p(float64(recipe.RatingCount)) / math.Log1p(1000)
	return clamp01(normRating * clamp01(volume))
}

func toOunces(ing harvest.NormalizedIngredient) float64 {
	switch ing.Unit {
	case harvest.UnitOunce:
		return ing.Quantity
	case harvest.UnitMilli:
		return ing.Quantity / 29.57
	case harvest.UnitCenti:
		return ing.Quantity / 2.957
	case harvest.UnitTbsp:
		return ing.Quantity / 2
	case harvest.UnitTeaspoon:
		return ing.Quantity / 6
	default:
		return 0
	}
}

func hasGibberishName(name string) bool {
	trimmed := strings.TrimSpace(name)
	return len(trimmed) < 3 || len(trimmed) > 120
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
