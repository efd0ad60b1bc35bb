package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/barcraft/harvester/internal/harvest"
)

// DomainDOMStrategy extracts recipes using the CSS selectors configured on
// the domain's parser profile. It only fires for domains that carry one.
type DomainDOMStrategy struct{}

// NewDomainDOMStrategy builds the strategy.
func NewDomainDOMStrategy() *DomainDOMStrategy {
	return &DomainDOMStrategy{}
}

// Name implements Strategy.
func (s *DomainDOMStrategy) Name() string { return StrategyDomainDOM }

// Extract implements Strategy.
func (s *DomainDOMStrategy) Extract(page harvest.Page, policy harvest.SourcePolicy) (harvest.ExtractedCandidate, bool) {
	profile := policy.Parser
	if len(profile.IngredientSelectors) == 0 || len(profile.InstructionSelectors) == 0 {
		return harvest.ExtractedCandidate{}, false
	}
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
	for _, sel := range profile.IngredientSelectors {
		doc.Find(sel).Each(func(_ int, node *goquery.Selection) {
			if text := strings.TrimSpace(node.Text()); text != "" {
				cand.Ingredients = append(cand.Ingredients, ParseIngredientLine(text))
			}
		})
		if len(cand.Ingredients) > 0 {
			break
		}
	}
	for _, sel := range profile.InstructionSelectors {
		doc.Find(sel).Each(func(_ int, node *goquery.Selection) {
			if text := strings.TrimSpace(node.Text()); text != "" {
				cand.Instructions = append(cand.Instructions, text)
			}
		})
		if len(cand.Instructions) > 0 {
			break
		}
	}

	if len(cand.Ingredients) == 0 || len(cand.Instructions) == 0 {
		return harvest.ExtractedCandidate{}, false
	}
	return cand, true
}

// MicrodataStrategy extracts recipes from schema.org microdata attributes.
type MicrodataStrategy struct{}

// NewMicrodataStrategy builds the strategy.
func NewMicrodataStrategy() *MicrodataStrategy {
	return &MicrodataStrategy{}
}

// Name implements Strategy.
func (s *MicrodataStrategy) Name() string { return StrategyMicrodata }

// Extract implements Strategy.
func (s *MicrodataStrategy) Extract(page harvest.Page, _ harvest.SourcePolicy) (harvest.ExtractedCandidate, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return harvest.ExtractedCandidate{}, false
	}

	scope := doc.Find(`[itemtype*="schema.org/Recipe"]`).First()
	if scope.Length() == 0 {
		return harvest.ExtractedCandidate{}, false
	}

	cand := harvest.ExtractedCandidate{
		Name:       strings.TrimSpace(scope.Find(`[itemprop="name"]`).First().Text()),
		SourceURL:  page.URL,
		Strategy:   s.Name(),
		Confidence: strategyConfidence[s.Name()],
	}
	if cand.Name == "" {
		cand.Name = pageHeading(doc)
	}
	scope.Find(`[itemprop="recipeIngredient"], [itemprop="ingredients"]`).Each(func(_ int, node *goquery.Selection) {
		if text := strings.TrimSpace(node.Text()); text != "" {
			cand.Ingredients = append(cand.Ingredients, ParseIngredientLine(text))
		}
	})
	scope.Find(`[itemprop="recipeInstructions"]`).Each(func(_ int, node *goquery.Selection) {
		steps := node.Find("li")
		if steps.Length() == 0 {
			if text := strings.TrimSpace(node.Text()); text != "" {
				cand.Instructions = append(cand.Instructions, text)
			}
			return
		}
		steps.Each(func(_ int, li *goquery.Selection) {
			if text := strings.TrimSpace(li.Text()); text != "" {
				cand.Instructions = append(cand.Instructions, text)
			}
		})
	})

	if len(cand.Ingredients) == 0 || len(cand.Instructions) == 0 {
		return harvest.ExtractedCandidate{}, false
	}
	return cand, true
}

func pageHeading(doc *goquery.Document) string {
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
