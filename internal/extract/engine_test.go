package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/barcraft/harvester/internal/harvest"
)

const jsonldPage = `<html><head>
<script type="application/ld+json">
{
  "@context": "https://schema.org",
  "@type": "Recipe",
  "name": "Classic Daiquiri",
  "description": "The original rum sour.",
  "recipeIngredient": ["2 oz white rum", "1 oz lime juice", "0.75 oz simple syrup"],
  "recipeInstructions": [
    {"@type": "HowToStep", "text": "Shake all ingredients with ice."},
    {"@type": "HowToStep", "text": "Strain into a chilled coupe."}
  ],
  "keywords": "rum, sour",
  "aggregateRating": {"@type": "AggregateRating", "ratingValue": "4.8", "ratingCount": "212"}
}
</script>
</head><body><h1>Classic Daiquiri</h1></body></html>`

const microdataPage = `<html><body>
<div itemscope itemtype="https://schema.org/Recipe">
  <h2 itemprop="name">Negroni</h2>
  <span itemprop="recipeIngredient">1 oz gin</span>
  <span itemprop="recipeIngredient">1 oz Campari</span>
  <span itemprop="recipeIngredient">1 oz sweet vermouth</span>
  <div itemprop="recipeInstructions"><ol><li>Stir with ice.</li><li>Strain over a large cube.</li></ol></div>
</div>
</body></html>`

const fallbackPage = `<html><body>
<h1>Gin Sour</h1>
<h2>Ingredients</h2>
<ul><li>2 oz gin</li><li>1 oz lemon juice</li><li>0.75 oz simple syrup</li></ul>
<h2>Directions</h2>
<ol><li>Shake with ice.</li><li>Strain into a rocks glass.</li></ol>
</body></html>`

func newTestEngine(renderer harvest.Renderer) *Engine {
	var probe ShellProbe
	if renderer != nil {
		probe = probeAlways{}
	}
	return NewEngine(probe, renderer, zap.NewNop())
}

type probeAlways struct{}

func (probeAlways) NeedsRender([]byte) bool { return true }

type fakeRenderer struct {
	page harvest.Page
	err  error
}

func (f *fakeRenderer) Render(_ context.Context, url string) (harvest.Page, error) {
	if f.err != nil {
		return harvest.Page{}, f.err
	}
	page := f.page
	page.URL = url
	page.Rendered = true
	return page, nil
}

func TestEngineJSONLD(t *testing.T) {
	e := newTestEngine(nil)
	page := harvest.Page{URL: "https://example.com/daiquiri", Body: []byte(jsonldPage)}

	cand, err := e.Extract(context.Background(), page, harvest.SourcePolicy{})
	require.NoError(t, err)
	require.Equal(t, StrategyJSONLD, cand.Strategy)
	require.InDelta(t, 0.9, cand.Confidence, 1e-9)
	require.Equal(t, "Classic Daiquiri", cand.Name)
	require.Len(t, cand.Ingredients, 3)
	require.Equal(t, "white rum", cand.Ingredients[0].Name)
	require.Len(t, cand.Instructions, 2)
	require.InDelta(t, 4.8, cand.RatingValue, 1e-9)
	require.Equal(t, 212, cand.RatingCount)
	require.Contains(t, cand.Tags, "rum")
}

func TestEngineMicrodata(t *testing.T) {
	e := newTestEngine(nil)
	page := harvest.Page{URL: "https://example.com/negroni", Body: []byte(microdataPage)}

	cand, err := e.Extract(context.Background(), page, harvest.SourcePolicy{})
	require.NoError(t, err)
	require.Equal(t, StrategyMicrodata, cand.Strategy)
	require.Equal(t, "Negroni", cand.Name)
	require.Len(t, cand.Ingredients, 3)
	require.Len(t, cand.Instructions, 2)
}

func TestEngineDOMFallback(t *testing.T) {
	e := newTestEngine(nil)
	page := harvest.Page{URL: "https://example.com/gin-sour", Body: []byte(fallbackPage)}

	cand, err := e.Extract(context.Background(), page, harvest.SourcePolicy{})
	require.NoError(t, err)
	require.Equal(t, StrategyDOMFallback, cand.Strategy)
	require.InDelta(t, 0.62, cand.Confidence, 1e-9)
	require.Equal(t, "Gin Sour", cand.Name)
	require.Len(t, cand.Ingredients, 3)
	require.Len(t, cand.Instructions, 2)
}

func TestEngineDomainSelectors(t *testing.T) {
	page := harvest.Page{URL: "https://example.com/mule", Body: []byte(`<html><body>
		<h1>Moscow Mule</h1>
		<div class="recipe-ing"><p>2 oz vodka</p><p>0.5 oz lime juice</p><p>4 oz ginger beer</p></div>
		<div class="recipe-steps"><p>Build in a copper mug over ice.</p></div>
	</body></html>`)}
	policy := harvest.SourcePolicy{Parser: harvest.ParserProfile{
		IngredientSelectors:  []string{".recipe-ing p"},
		InstructionSelectors: []string{".recipe-steps p"},
	}}

	e := newTestEngine(nil)
	cand, err := e.Extract(context.Background(), page, policy)
	require.NoError(t, err)
	require.Equal(t, StrategyDomainDOM, cand.Strategy)
	require.Equal(t, "Moscow Mule", cand.Name)
	require.Len(t, cand.Ingredients, 3)
}

func TestEngineNoRecipe(t *testing.T) {
	e := newTestEngine(nil)
	page := harvest.Page{URL: "https://example.com/about", Body: []byte("<html><body><h1>About Us</h1></body></html>")}

	_, err := e.Extract(context.Background(), page, harvest.SourcePolicy{})
	require.ErrorIs(t, err, ErrNoRecipe)
}

func TestEngineRequiredMarkersGate(t *testing.T) {
	e := newTestEngine(nil)
	policy := harvest.SourcePolicy{Parser: harvest.ParserProfile{RequiredTextMarkers: []string{"cocktail"}}}
	page := harvest.Page{URL: "https://example.com/daiquiri", Body: []byte(jsonldPage)}

	_, err := e.Extract(context.Background(), page, policy)
	require.ErrorIs(t, err, ErrNoRecipe)
}

func TestEngineHeadlessPromotion(t *testing.T) {
	renderer := &fakeRenderer{page: harvest.Page{Body: []byte(jsonldPage)}}
	e := newTestEngine(renderer)

	shell := harvest.Page{URL: "https://example.com/daiquiri", Body: []byte(`<html><body><div id="root"></div></body></html>`)}
	cand, err := e.Extract(context.Background(), shell, harvest.SourcePolicy{})
	require.NoError(t, err)
	require.Equal(t, StrategyJSONLD, cand.Strategy)
	require.Equal(t, "Classic Daiquiri", cand.Name)
}

func TestEngineRenderedPageNotPromotedAgain(t *testing.T) {
	renderer := &fakeRenderer{page: harvest.Page{Body: []byte(jsonldPage)}}
	e := newTestEngine(renderer)

	shell := harvest.Page{URL: "https://example.com/x", Body: []byte(`<html><body></body></html>`), Rendered: true}
	_, err := e.Extract(context.Background(), shell, harvest.SourcePolicy{})
	require.ErrorIs(t, err, ErrNoRecipe)
}

func TestEnginePartialJSONLDFields(t *testing.T) {
	page := harvest.Page{URL: "https://example.com/old-fashioned", Body: []byte(`<html><head>
<script type="application/ld+json">
{"name": "Old Fashioned",
 "ingredients": ["2 oz bourbon", "1 sugar cube", "2 dashes Angostura bitters"],
 "recipeInstructions": "Muddle sugar with bitters.\nAdd bourbon and ice, stir."}
</script></head><body><h1>Old Fashioned</h1></body></html>`)}

	e := newTestEngine(nil)
	cand, err := e.Extract(context.Background(), page, harvest.SourcePolicy{})
	require.NoError(t, err)
	require.Equal(t, StrategyJSONLDFields, cand.Strategy)
	require.InDelta(t, 0.82, cand.Confidence, 1e-9)
	require.Len(t, cand.Ingredients, 3)
	require.Len(t, cand.Instructions, 2)
}
