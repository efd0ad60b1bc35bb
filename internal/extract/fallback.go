package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/barcraft/harvester/internal/harvest"
)

var ingredientHeadings = []string{"ingredients", "what you need", "you will need"}

var instructionHeadings = []string{"instructions", "directions", "method", "preparation", "how to make"}

// DOMFallbackStrategy is the last-resort parser: it looks for an
// "Ingredients" style heading followed by a list, and an instruction heading
// followed by a list or paragraphs.
type DOMFallbackStrategy struct{}

// NewDOMFallbackStrategy builds the strategy.
func NewDOMFallbackStrategy() *DOMFallbackStrategy {
	return &DOMFallbackStrategy{}
}

// Name implements Strategy.
func (s *DOMFallbackStrategy) Name() string { return StrategyDOMFallback }

// Extract implements Strategy.
func (s *DOMFallbackStrategy) Extract(page harvest.Page, _ harvest.SourcePolicy) (harvest.ExtractedCandidate, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return harvest.ExtractedCandidate{}, false
	}

	cand := harvest.ExtractedCandidate{
		Name:       pageHeading(doc),
		SourceURL:  page.URL,
		Strategy:   s.Name(),
		Confidence: strategyConfidence[s.Name()],
	}

	for _, item := range sectionItems(doc, ingredientHeadings) {
		cand.Ingredients = append(cand.Ingredients, ParseIngredientLine(item))
	}
	cand.Instructions = sectionItems(doc, instructionHeadings)

	if len(cand.Ingredients) == 0 || len(cand.Instructions) == 0 {
		return harvest.ExtractedCandidate{}, false
	}
	return cand, true
}

// sectionItems finds a heading matching one of the labels and collects the
// items of the first list that follows it, falling back to sibling
// paragraphs when there is no list.
func sectionItems(doc *goquery.Document, labels []string) []string {
	var items []string
	doc.Find("h1, h2, h3, h4, strong").EachWithBreak(func(_ int, heading *goquery.Selection) bool {
		text := strings.ToLower(strings.TrimSpace(heading.Text()))
		if !matchesLabel(text, labels) {
			return true
		}
		items = listAfter(heading)
		return len(items) == 0
	})
	return items
}

func matchesLabel(text string, labels []string) bool {
	for _, label := range labels {
		if strings.HasPrefix(text, label) {
			return true
		}
	}
	return false
}

func listAfter(heading *goquery.Selection) []string {
	var items []string
	node := heading.Next()
	for i := 0; i < 4 && node.Length() > 0; i++ {
		if node.Is("ul, ol") {
			node.Find("li").Each(func(_ int, li *goquery.Selection) {
				if text := strings.TrimSpace(li.Text()); text != "" {
					items = append(items, text)
				}
			})
			return items
		}
		if node.Is("p") {
			if text := strings.TrimSpace(node.Text()); text != "" {
				items = append(items, text)
			}
		}
		node = node.Next()
	}
	return items
}
