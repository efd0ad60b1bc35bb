// Package dedup decides whether a harvested recipe is new, a duplicate, or
// a variant of something already in the corpus.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/barcraft/harvester/internal/harvest"
)

// Millilitres per unit, used to put quantities on a common basis before
// computing ratios. Count-style units get a nominal volume so that ratio
// quantization stays stable.
var unitMillis = map[harvest.Unit]float64{
	harvest.UnitOunce:    29.57,
	harvest.UnitMilli:    1,
	harvest.UnitCenti:    10,
	harvest.UnitDash:     0.9,
	harvest.UnitTeaspoon: 4.9,
	harvest.UnitTbsp:     14.8,
	harvest.UnitBarspoon: 5,
	harvest.UnitDrop:     0.05,
	harvest.UnitPiece:    1,
	harvest.UnitNeutral:  1,
}

// Fingerprint computes the structural identity hash of a recipe: sorted
// canonical ingredient keys with their quantized volume ratios, plus method,
// glass, and ice. Two faithful renditions of the same drink collide; a real
// ratio change does not.
func Fingerprint(recipe harvest.NormalizedRecipe) string {
	type part struct {
		key   string
		ratio float64
	}

	total := 0.0
	volumes := make([]float64, len(recipe.Ingredients))
	for i, ing := range recipe.Ingredients {
		volumes[i] = ing.Quantity * unitMillis[ing.Unit]
		total += volumes[i]
	}

	parts := make([]part, 0, len(recipe.Ingredients))
	for i, ing := range recipe.Ingredients {
		ratio := 0.0
		if total > 0 {
			ratio = quantize(volumes[i] / total)
		}
		parts = append(parts, part{key: ingredientKey(ing), ratio: ratio})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].key < parts[j].key })

	var b strings.Builder
	for _, p := range parts {
		fmt.Fprintf(&b, "%s:%.2f|", p.key, p.ratio)
	}
	fmt.Fprintf(&b, "m=%s|g=%s|i=%s", recipe.Method, strings.ToLower(recipe.Glass), strings.ToLower(recipe.Ice))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// quantize rounds a ratio to the nearest 0.05 so that trivial measurement
// noise does not split fingerprints.
func quantize(ratio float64) float64 {
	return math.Round(ratio/0.05) * 0.05
}

func ingredientKey(ing harvest.NormalizedIngredient) string {
	if ing.Ref != nil {
		return ing.Ref.ID
	}
	return "freetext:" + strings.Join(strings.Fields(strings.ToLower(ing.FreeText)), " ")
}
