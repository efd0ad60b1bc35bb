// Package normalize canonicalizes extracted candidates into the form the
// dedup and scoring stages consume.
package normalize

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/barcraft/harvester/internal/harvest"
)

// Known glassware names scanned for in recipe text.
var glassNames = []string{
	"coupe", "rocks glass", "old fashioned glass", "highball", "collins glass",
	"martini glass", "nick and nora", "copper mug", "julep cup", "flute",
	"hurricane glass", "tiki mug", "wine glass", "shot glass",
}

var iceStyles = []string{
	"crushed ice", "large cube", "big cube", "pebble ice", "cracked ice",
}

var methodKeywords = []struct {
	keyword string
	method  harvest.Method
}{
	{"shake", harvest.MethodShake},
	{"stir", harvest.MethodStir},
	{"blend", harvest.MethodBlend},
	{"throw", harvest.MethodThrow},
	{"swizzle", harvest.MethodSwizzle},
	{"build", harvest.MethodBuild},
	{"pour", harvest.MethodBuild},
	{"combine", harvest.MethodBuild},
}

// Normalizer resolves ingredients against the ontology and canonicalizes
// units, method, and glassware.
type Normalizer struct {
	ontology harvest.Ontology
	logger   *zap.Logger
}

// New builds a Normalizer.
func New(ontology harvest.Ontology, logger *zap.Logger) *Normalizer {
	return &Normalizer{ontology: ontology, logger: logger}
}

// Normalize canonicalizes a candidate. Unresolvable ingredient names are
// kept as free text and counted into UnresolvedFraction; the caller decides
// how much slop to tolerate.
func (n *Normalizer) Normalize(ctx context.Context, cand harvest.ExtractedCandidate) (harvest.NormalizedRecipe, error) {
	recipe := harvest.NormalizedRecipe{
		Name:         strings.TrimSpace(cand.Name),
		Description:  strings.TrimSpace(cand.Description),
		Instructions: cand.Instructions,
		Tags:         cand.Tags,
		RatingValue:  cand.RatingValue,
		RatingCount:  cand.RatingCount,
		SourceURL:    cand.SourceURL,
	}
	if recipe.Name == "" {
		return harvest.NormalizedRecipe{}, fmt.Errorf("candidate has no name")
	}
	if len(cand.Ingredients) == 0 {
		return harvest.NormalizedRecipe{}, fmt.Errorf("candidate has no ingredients")
	}

	unresolved := 0
	for _, line := range cand.Ingredients {
		ing, err := n.normalizeLine(ctx, line)
		if err != nil {
			return harvest.NormalizedRecipe{}, err
		}
		if ing.Unresolved {
			unresolved++
		}
		recipe.Ingredients = append(recipe.Ingredients, ing)
	}
	recipe.UnresolvedFraction = float64(unresolved) / float64(len(cand.Ingredients))

	allText := strings.ToLower(strings.Join(cand.Instructions, " "))
	recipe.Method = inferMethod(allText)
	recipe.Glass = firstMention(allText, glassNames, cand.Glassware)
	recipe.Ice = firstMention(allText, iceStyles, cand.Ice)

	return recipe, nil
}

func (n *Normalizer) normalizeLine(ctx context.Context, line harvest.IngredientLine) (harvest.NormalizedIngredient, error) {
	ing := harvest.NormalizedIngredient{
		FreeText: line.Name,
		Quantity: line.Quantity,
	}

	unit, defaulted := canonicalUnit(line.Unit)
	ing.Unit = unit
	ing.UnitDefaulted = defaulted

	ref, ok, err := n.ontology.Resolve(ctx, line.Name)
	if err != nil {
		return harvest.NormalizedIngredient{}, fmt.Errorf("resolve %q: %w", line.Name, err)
	}
	if !ok {
		n.logger.Debug("ingredient not in ontology", zap.String("text", line.Name))
		ing.Unresolved = true
		return ing, nil
	}
	ing.Ref = &ref
	return ing, nil
}

func canonicalUnit(raw string) (harvest.Unit, bool) {
	switch harvest.Unit(strings.ToLower(strings.TrimSpace(raw))) {
	case harvest.UnitOunce:
		return harvest.UnitOunce, false
	case harvest.UnitMilli:
		return harvest.UnitMilli, false
	case harvest.UnitCenti:
		return harvest.UnitCenti, false
	case harvest.UnitDash:
		return harvest.UnitDash, false
	case harvest.UnitTeaspoon:
		return harvest.UnitTeaspoon, false
	case harvest.UnitTbsp:
		return harvest.UnitTbsp, false
	case harvest.UnitBarspoon:
		return harvest.UnitBarspoon, false
	case harvest.UnitDrop:
		return harvest.UnitDrop, false
	case harvest.UnitPiece:
		return harvest.UnitPiece, false
	default:
		return harvest.UnitNeutral, true
	}
}

func inferMethod(text string) harvest.Method {
	for _, mk := range methodKeywords {
		if strings.Contains(text, mk.keyword) {
			return mk.method
		}
	}
	return harvest.MethodUnknown
}

func firstMention(text string, candidates []string, explicit string) string {
	if explicit != "" {
		return strings.ToLower(strings.TrimSpace(explicit))
	}
	for _, c := range candidates {
		if strings.Contains(text, c) {
			return c
		}
	}
	return ""
}
