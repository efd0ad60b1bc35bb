// Package extract turns fetched pages into recipe candidates using an
// ordered ladder of parser strategies.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/barcraft/harvester/internal/harvest"
)

var unicodeFractions = map[rune]float64{
	'¼': 0.25, '½': 0.5, '¾': 0.75,
	'⅓': 1.0 / 3, '⅔': 2.0 / 3,
	'⅛': 0.125, '⅜': 0.375, '⅝': 0.625, '⅞': 0.875,
}

var unitAliases = map[string]string{
	"oz": "oz", "oz.": "oz", "ounce": "oz", "ounces": "oz",
	"ml": "ml", "milliliter": "ml", "milliliters": "ml", "millilitre": "ml", "millilitres": "ml",
	"cl":   "cl",
	"dash": "dash", "dashes": "dash",
	"tsp": "tsp", "teaspoon": "tsp", "teaspoons": "tsp",
	"tbsp": "tbsp", "tablespoon": "tbsp", "tablespoons": "tbsp",
	"barspoon": "barspoon", "barspoons": "barspoon", "bar spoon": "barspoon",
	"drop": "drop", "drops": "drop",
	"piece": "piece", "pieces": "piece", "slice": "piece", "slices": "piece",
	"wedge": "piece", "wedges": "piece", "sprig": "piece", "sprigs": "piece",
	"leaf": "piece", "leaves": "piece", "cube": "piece", "cubes": "piece",
}

var noteRe = regexp.MustCompile(`\(([^)]*)\)`)

// ParseIngredientLine splits a raw ingredient string into quantity, unit,
// name, and a parenthetical note. Lines without a recognizable quantity
// come back with Quantity 0 and the whole text as the name.
func ParseIngredientLine(raw string) harvest.IngredientLine {
	line := harvest.IngredientLine{}
	text := strings.TrimSpace(raw)
	if text == "" {
		return line
	}

	if m := noteRe.FindStringSubmatch(text); m != nil {
		line.Note = strings.TrimSpace(m[1])
		text = strings.TrimSpace(noteRe.ReplaceAllString(text, ""))
	}

	qty, rest := parseQuantity(text)
	line.Quantity = qty

	fields := strings.Fields(rest)
	if len(fields) > 1 {
		if unit, ok := unitAliases[strings.ToLower(fields[0])]; ok {
			line.Unit = unit
			fields = fields[1:]
		}
	}
	line.Name = strings.TrimSpace(strings.TrimPrefix(strings.Join(fields, " "), "of "))
	return line
}

// parseQuantity consumes a leading amount ("1 1/2", "0.75", "½") and returns
// it with the remainder of the line.
func parseQuantity(text string) (float64, string) {
	total := 0.0
	matched := false
	rest := text

	for {
		rest = strings.TrimSpace(rest)
		if rest == "" {
			break
		}

		r := []rune(rest)[0]
		if frac, ok := unicodeFractions[r]; ok {
			total += frac
			matched = true
			rest = strings.TrimSpace(rest[len(string(r)):])
			continue
		}

		token := rest
		if i := strings.IndexAny(rest, " \t"); i >= 0 {
			token = rest[:i]
		}

		if num, den, ok := splitFraction(token); ok {
			total += num / den
			matched = true
			rest = strings.TrimSpace(rest[len(token):])
			continue
		}
		if v, err := strconv.ParseFloat(token, 64); err == nil {
			total += v
			matched = true
			rest = strings.TrimSpace(rest[len(token):])
			continue
		}
		break
	}

	if !matched {
		return 0, text
	}
	return total, rest
}

func splitFraction(token string) (num, den float64, ok bool) {
	parts := strings.SplitN(token, "/", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	n, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, 0, false
	}
	d, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || d == 0 {
		return 0, 0, false
	}
	return n, d, true
}
