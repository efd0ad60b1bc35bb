package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/barcraft/harvester/internal/harvest"
)

// ErrNoRecipe means no strategy produced a viable candidate for the page.
var ErrNoRecipe = errors.New("no viable recipe on page")

// Strategy is one rung of the parser ladder.
type Strategy interface {
	Name() string
	Extract(page harvest.Page, policy harvest.SourcePolicy) (harvest.ExtractedCandidate, bool)
}

// ShellProbe decides whether a page should be retried through the renderer.
type ShellProbe interface {
	NeedsRender(body []byte) bool
}

// Engine runs the strategies in confidence order and returns the first
// viable candidate. When every strategy misses and the page looks like a JS
// shell, the engine renders it headlessly once and retries the ladder.
type Engine struct {
	strategies []Strategy
	probe      ShellProbe
	renderer   harvest.Renderer
	logger     *zap.Logger
}

// NewEngine builds an Engine with the default strategy ladder. renderer and
// probe may be nil to disable headless promotion.
func NewEngine(probe ShellProbe, renderer harvest.Renderer, logger *zap.Logger) *Engine {
	return &Engine{
		strategies: []Strategy{
			NewJSONLDStrategy(true),
			NewDomainDOMStrategy(),
			NewJSONLDStrategy(false),
			NewMicrodataStrategy(),
			NewDOMFallbackStrategy(),
		},
		probe:    probe,
		renderer: renderer,
		logger:   logger,
	}
}

// Extract parses a page into a recipe candidate. The returned candidate
// always satisfies the minimum-viability rule.
func (e *Engine) Extract(ctx context.Context, page harvest.Page, policy harvest.SourcePolicy) (harvest.ExtractedCandidate, error) {
	if !requiredMarkersPresent(page.Body, policy.Parser.RequiredTextMarkers) {
		return harvest.ExtractedCandidate{}, ErrNoRecipe
	}

	if cand, ok := e.run(page, policy); ok {
		return cand, nil
	}

	if e.renderer != nil && e.probe != nil && !page.Rendered && e.probe.NeedsRender(page.Body) {
		e.logger.Debug("promoting page to headless render", zap.String("url", page.URL))
		rendered, err := e.renderer.Render(ctx, page.URL)
		if err != nil {
			return harvest.ExtractedCandidate{}, fmt.Errorf("headless render: %w", err)
		}
		if cand, ok := e.run(rendered, policy); ok {
			return cand, nil
		}
	}

	return harvest.ExtractedCandidate{}, ErrNoRecipe
}

func (e *Engine) run(page harvest.Page, policy harvest.SourcePolicy) (harvest.ExtractedCandidate, bool) {
	for _, strategy := range e.strategies {
		cand, ok := strategy.Extract(page, policy)
		if !ok {
			continue
		}
		if !cand.Viable() {
			e.logger.Debug("strategy hit but candidate not viable",
				zap.String("strategy", strategy.Name()),
				zap.String("url", page.URL))
			continue
		}
		return cand, true
	}
	return harvest.ExtractedCandidate{}, false
}

// requiredMarkersPresent checks the policy's page markers; a page missing
// all of them is not a recipe page for this domain.
func requiredMarkersPresent(body []byte, markers []string) bool {
	if len(markers) == 0 {
		return true
	}
	lower := bytes.ToLower(body)
	for _, marker := range markers {
		if marker == "" {
			continue
		}
		if bytes.Contains(lower, bytes.ToLower([]byte(marker))) {
			return true
		}
	}
	return false
}
