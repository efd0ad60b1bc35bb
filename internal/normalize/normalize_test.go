package normalize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/barcraft/harvester/internal/harvest"
	ontologymem "github.com/barcraft/harvester/internal/ontology/memory"
)

func testOntology() harvest.Ontology {
	return ontologymem.New(map[string]harvest.IngredientRef{
		"white rum":    {ID: "ing-rum-white", Name: "White Rum", Category: "spirit", Confidence: 1},
		"lime juice":   {ID: "ing-lime-juice", Name: "Lime Juice", Category: "juice", Confidence: 1},
		"simple syrup": {ID: "ing-simple-syrup", Name: "Simple Syrup", Category: "sweetener", Confidence: 1},
	})
}

func daiquiriCandidate() harvest.ExtractedCandidate {
	return harvest.ExtractedCandidate{
		Name: "Classic Daiquiri",
		Ingredients: []harvest.IngredientLine{
			{Name: "white rum", Quantity: 2, Unit: "oz"},
			{Name: "lime juice", Quantity: 1, Unit: "oz"},
			{Name: "simple syrup", Quantity: 0.75, Unit: "oz"},
		},
		Instructions: []string{"Shake all ingredients with ice.", "Strain into a chilled coupe."},
		SourceURL:    "https://example.com/daiquiri",
	}
}

func TestNormalizeResolvesIngredients(t *testing.T) {
	n := New(testOntology(), zap.NewNop())

	recipe, err := n.Normalize(context.Background(), daiquiriCandidate())
	require.NoError(t, err)
	require.Equal(t, "Classic Daiquiri", recipe.Name)
	require.Len(t, recipe.Ingredients, 3)
	require.NotNil(t, recipe.Ingredients[0].Ref)
	require.Equal(t, "ing-rum-white", recipe.Ingredients[0].Ref.ID)
	require.Equal(t, harvest.UnitOunce, recipe.Ingredients[0].Unit)
	require.False(t, recipe.Ingredients[0].UnitDefaulted)
	require.Zero(t, recipe.UnresolvedFraction)
	require.Equal(t, harvest.MethodShake, recipe.Method)
	require.Equal(t, "coupe", recipe.Glass)
}

func TestNormalizeUnresolvedFraction(t *testing.T) {
	n := New(testOntology(), zap.NewNop())
	cand := daiquiriCandidate()
	cand.Ingredients = append(cand.Ingredients, harvest.IngredientLine{Name: "mystery cordial", Quantity: 0.5, Unit: "oz"})

	recipe, err := n.Normalize(context.Background(), cand)
	require.NoError(t, err)
	require.InDelta(t, 0.25, recipe.UnresolvedFraction, 1e-9)
	last := recipe.Ingredients[3]
	require.True(t, last.Unresolved)
	require.Nil(t, last.Ref)
	require.Equal(t, "mystery cordial", last.FreeText)
}

func TestNormalizeDefaultsUnit(t *testing.T) {
	n := New(testOntology(), zap.NewNop())
	cand := daiquiriCandidate()
	cand.Ingredients[0].Unit = ""

	recipe, err := n.Normalize(context.Background(), cand)
	require.NoError(t, err)
	require.Equal(t, harvest.UnitNeutral, recipe.Ingredients[0].Unit)
	require.True(t, recipe.Ingredients[0].UnitDefaulted)
}

func TestNormalizeMethodInference(t *testing.T) {
	n := New(testOntology(), zap.NewNop())

	cand := daiquiriCandidate()
	cand.Instructions = []string{"Stir with ice and strain."}
	recipe, err := n.Normalize(context.Background(), cand)
	require.NoError(t, err)
	require.Equal(t, harvest.MethodStir, recipe.Method)

	cand.Instructions = []string{"Serve."}
	recipe, err = n.Normalize(context.Background(), cand)
	require.NoError(t, err)
	require.Equal(t, harvest.MethodUnknown, recipe.Method)
}

func TestNormalizeRejectsEmptyCandidate(t *testing.T) {
	n := New(testOntology(), zap.NewNop())

	_, err := n.Normalize(context.Background(), harvest.ExtractedCandidate{Name: ""})
	require.Error(t, err)

	_, err = n.Normalize(context.Background(), harvest.ExtractedCandidate{Name: "Ghost"})
	require.Error(t, err)
}
