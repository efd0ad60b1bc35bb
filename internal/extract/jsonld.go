package extract

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/barcraft/harvester/internal/harvest"
)

// Strategy names and their confidence scores, highest first.
const (
	StrategyJSONLD       = "jsonld"
	StrategyJSONLDFields = "jsonld_recipe_fields"
	StrategyDomainDOM    = "domain_dom"
	StrategyMicrodata    = "microdata"
	StrategyDOMFallback  = "dom_fallback"
)

// Confidence assigned to each strategy's output.
var strategyConfidence = map[string]float64{
	StrategyJSONLD:       0.9,
	StrategyDomainDOM:    0.86,
	StrategyJSONLDFields: 0.82,
	StrategyMicrodata:    0.79,
	StrategyDOMFallback:  0.62,
}

// JSONLDStrategy extracts schema.org Recipe objects from ld+json blocks.
// In strict mode only objects whose @type is Recipe qualify; otherwise any
// object carrying recipe-shaped fields is accepted at lower confidence.
type JSONLDStrategy struct {
	strict bool
}

// NewJSONLDStrategy builds the strategy.
func NewJSONLDStrategy(strict bool) *JSONLDStrategy {
	return &JSONLDStrategy{strict: strict}
}

// Name implements Strategy.
func (s *JSONLDStrategy) Name() string {
	if s.strict {
		return StrategyJSONLD
	}
	return StrategyJSONLDFields
}

// Extract implements Strategy.
func (s *JSONLDStrategy) Extract(page harvest.Page, _ harvest.SourcePolicy) (harvest.ExtractedCandidate, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return harvest.ExtractedCandidate{}, false
	}

	var found harvest.ExtractedCandidate
	ok := false
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var raw any
		if err := json.Unmarshal([]byte(sel.Text()), &raw); err != nil {
			return true
		}
		for _, obj := range flattenJSONLD(raw) {
			if s.strict && !isRecipeType(obj) {
				continue
			}
			if !s.strict && isRecipeType(obj) {
				// The strict strategy already had its chance at this object.
				continue
			}
			cand, objOK := candidateFromObject(obj, page.URL)
			if objOK {
				found = cand
				ok = true
				return false
			}
		}
		return true
	})
	if !ok {
		return harvest.ExtractedCandidate{}, false
	}
	found.Strategy = s.Name()
	found.Confidence = strategyConfidence[s.Name()]
	return found, true
}

// flattenJSONLD walks arrays and @graph containers into a flat object list.
func flattenJSONLD(raw any) []map[string]any {
	var out []map[string]any
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			out = append(out, flattenJSONLD(item)...)
		}
	case map[string]any:
		out = append(out, v)
		if graph, ok := v["@graph"]; ok {
			out = append(out, flattenJSONLD(graph)...)
		}
	}
	return out
}

func isRecipeType(obj map[string]any) bool {
	switch t := obj["@type"].(type) {
	case string:
		return strings.EqualFold(t, "Recipe")
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && strings.EqualFold(s, "Recipe") {
				return true
			}
		}
	}
	return false
}

func candidateFromObject(obj map[string]any, sourceURL string) (harvest.ExtractedCandidate, bool) {
	cand := harvest.ExtractedCandidate{
		Name:        stringField(obj, "name"),
		Description: stringField(obj, "description"),
		SourceURL:   sourceURL,
	}

	ingredients := stringList(obj["recipeIngredient"])
	if len(ingredients) == 0 {
		ingredients = stringList(obj["ingredients"])
	}
	for _, line := range ingredients {
		cand.Ingredients = append(cand.Ingredients, ParseIngredientLine(line))
	}

	cand.Instructions = instructionList(obj["recipeInstructions"])
	cand.Tags = append(stringList(obj["keywords"]), stringList(obj["recipeCategory"])...)

	if rating, ok := obj["aggregateRating"].(map[string]any); ok {
		cand.RatingValue = floatField(rating, "ratingValue")
		count := floatField(rating, "ratingCount")
		if count == 0 {
			count = floatField(rating, "reviewCount")
		}
		cand.RatingCount = int(count)
	}

	if len(cand.Ingredients) == 0 && len(cand.Instructions) == 0 {
		return harvest.ExtractedCandidate{}, false
	}
	return cand, true
}

// instructionList handles the three shapes schema.org allows: a plain
// string, a list of strings, or a list of HowToStep/HowToSection objects.
func instructionList(v any) []string {
	switch val := v.(type) {
	case string:
		return splitInstructionText(val)
	case []any:
		var out []string
		for _, item := range val {
			switch step := item.(type) {
			case string:
				if s := strings.TrimSpace(step); s != "" {
					out = append(out, s)
				}
			case map[string]any:
				if text := stringField(step, "text"); text != "" {
					out = append(out, text)
				} else if steps, ok := step["itemListElement"]; ok {
					out = append(out, instructionList(steps)...)
				}
			}
		}
		return out
	}
	return nil
}

func splitInstructionText(text string) []string {
	var out []string
	for _, part := range strings.Split(text, "\n") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

func floatField(obj map[string]any, key string) float64 {
	switch v := obj[key].(type) {
	case float64:
		return v
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return 0
}

func stringList(v any) []string {
	switch val := v.(type) {
	case string:
		var out []string
		for _, part := range strings.Split(val, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		var out []string
		for _, item := range val {
			if s, ok := item.(string); ok {
				if t := strings.TrimSpace(s); t != "" {
					out = append(out, t)
				}
			}
		}
		return out
	}
	return nil
}
