package quality

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/barcraft/harvester/internal/harvest"
)

func testConfig() Config {
	return Config{
		AcceptThreshold:     0.7,
		QuarantineThreshold: 0.45,
		TrustWeight:         0.3,
		StructureWeight:     0.3,
		PlausibilityWeight:  0.25,
		PopularityWeight:    0.15,
	}
}

func ref(id, category string) *harvest.IngredientRef {
	return &harvest.IngredientRef{ID: id, Category: category, Confidence: 1}
}

func goodRecipe() harvest.NormalizedRecipe {
	return harvest.NormalizedRecipe{
		Name: "Daiquiri",
		Ingredients: []harvest.NormalizedIngredient{
			{Ref: ref("ing-rum-white", "spirit"), FreeText: "white rum", Quantity: 2, Unit: harvest.UnitOunce},
			{Ref: ref("ing-lime-juice", "juice"), FreeText: "lime juice", Quantity: 1, Unit: harvest.UnitOunce},
			{Ref: ref("ing-simple-syrup", "sweetener"), FreeText: "simple syrup", Quantity: 0.75, Unit: harvest.UnitOunce},
		},
		Instructions: []string{"Shake with ice.", "Strain into a coupe."},
		Method:       harvest.MethodShake,
		Glass:        "coupe",
		RatingValue:  4.8,
		RatingCount:  300,
	}
}

func trustedPolicy() harvest.SourcePolicy {
	return harvest.SourcePolicy{TrustTier: 0.9, MinRatingCount: 10, MinRatingValue: 3}
}

func TestScoreAcceptsGoodRecipe(t *testing.T) {
	s := New(testConfig())
	decision := s.Score(goodRecipe(), trustedPolicy())

	require.Equal(t, harvest.DispositionAccept, decision.Disposition)
	require.Empty(t, decision.Reasons)
	require.Greater(t, decision.Aggregate, 0.7)
	require.InDelta(t, 0.9, decision.TrustScore, 1e-9)
	require.Greater(t, decision.PopularityScore, 0.0)
}

func TestScoreHardPlausibilityFailureRejects(t *testing.T) {
	s := New(testConfig())
	recipe := goodRecipe()
	recipe.Ingredients[0].Quantity = 20 // twenty ounces of rum

	decision := s.Score(recipe, trustedPolicy())
	require.Equal(t, harvest.DispositionReject, decision.Disposition)
	require.NotEmpty(t, decision.Reasons)
	require.Zero(t, decision.PlausibilityScore)
}

func TestScoreQuarantineBand(t *testing.T) {
	s := New(testConfig())
	recipe := goodRecipe()
	recipe.RatingValue, recipe.RatingCount = 0, 0
	recipe.Glass = ""
	recipe.Method = harvest.MethodUnknown
	recipe.UnresolvedFraction = 0.33

	policy := harvest.SourcePolicy{TrustTier: 0.4}
	decision := s.Score(recipe, policy)
	require.Equal(t, harvest.DispositionQuarantine, decision.Disposition)
	require.GreaterOrEqual(t, decision.Aggregate, 0.45)
	require.Less(t, decision.Aggregate, 0.7)
}

func TestScoreRejectBand(t *testing.T) {
	s := New(testConfig())
	recipe := harvest.NormalizedRecipe{
		Name: "Mystery Mix",
		Ingredients: []harvest.NormalizedIngredient{
			{FreeText: "something", Quantity: 1, Unit: harvest.UnitNeutral, Unresolved: true},
		},
		Instructions:       []string{"Combine."},
		Method:             harvest.MethodUnknown,
		UnresolvedFraction: 1,
	}
	decision := s.Score(recipe, harvest.SourcePolicy{TrustTier: 0.1})
	require.Equal(t, harvest.DispositionReject, decision.Disposition)
}

func TestPopularityRespectsPolicyFloors(t *testing.T) {
	s := New(testConfig())

	recipe := goodRecipe()
	recipe.RatingCount = 5 // below the policy floor of 10
	decision := s.Score(recipe, trustedPolicy())
	require.Zero(t, decision.PopularityScore)

	recipe = goodRecipe()
	recipe.RatingValue = 2.5 // below the policy floor of 3
	decision = s.Score(recipe, trustedPolicy())
	require.Zero(t, decision.PopularityScore)
}

func TestScoreMonotonicInTrust(t *testing.T) {
	s := New(testConfig())
	recipe := goodRecipe()

	low := s.Score(recipe, harvest.SourcePolicy{TrustTier: 0.2, MinRatingCount: 10, MinRatingValue: 3})
	high := s.Score(recipe, harvest.SourcePolicy{TrustTier: 0.9, MinRatingCount: 10, MinRatingValue: 3})
	require.Greater(t, high.Aggregate, low.Aggregate)
}

func TestScoreMonotonicInPopularity(t *testing.T) {
	s := New(testConfig())

	few := goodRecipe()
	few.RatingCount = 20
	many := goodRecipe()
	many.RatingCount = 900

	fewScore := s.Score(few, trustedPolicy())
	manyScore := s.Score(many, trustedPolicy())
	require.Greater(t, manyScore.PopularityScore, fewScore.PopularityScore)
	require.GreaterOrEqual(t, manyScore.Aggregate, fewScore.Aggregate)
}
