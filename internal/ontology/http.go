// Package ontology resolves free-text ingredient names to canonical IDs via
// the ingredient ontology service.
package ontology

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/barcraft/harvester/internal/harvest"
)

// Client talks to the ontology service over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient builds a Client for the given base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type resolveRequest struct {
	Text string `json:"text"`
}

type resolveResponse struct {
	Matched    bool                  `json:"matched"`
	Ingredient harvest.IngredientRef `json:"ingredient"`
}

// Resolve implements harvest.Ontology. A miss is not an error: the service
// answers matched=false for names it does not know.
func (c *Client) Resolve(ctx context.Context, text string) (harvest.IngredientRef, bool, error) {
	payload, err := json.Marshal(resolveRequest{Text: text})
	if err != nil {
		return harvest.IngredientRef{}, false, fmt.Errorf("marshal resolve request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/resolve", bytes.NewReader(payload))
	if err != nil {
		return harvest.IngredientRef{}, false, fmt.Errorf("new resolve request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return harvest.IngredientRef{}, false, fmt.Errorf("resolve %q: %w", text, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return harvest.IngredientRef{}, false, fmt.Errorf("resolve %q: status %d", text, resp.StatusCode)
	}
	var body resolveResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return harvest.IngredientRef{}, false, fmt.Errorf("decode resolve response: %w", err)
	}
	if !body.Matched {
		return harvest.IngredientRef{}, false, nil
	}
	return body.Ingredient, true, nil
}
