// Package embedding wraps the recipe embedding service used for similarity
// search during dedup.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/barcraft/harvester/internal/harvest"
)

// Client talks to the embedding service over HTTP.
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

type embedResponse struct {
	Vector []float32 `json:"vector"`
}

// Embed implements harvest.Embedder.
func (c *Client) Embed(ctx context.Context, recipe harvest.NormalizedRecipe) ([]float32, error) {
	payload, err := json.Marshal(recipe)
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}
	var body embedResponse
	if err := c.post(ctx, "/v1/embed", payload, &body); err != nil {
		return nil, err
	}
	return body.Vector, nil
}

type neighborsRequest struct {
	Vector []float32 `json:"vector"`
	K      int       `json:"k"`
}

type neighborsResponse struct {
	Neighbors []struct {
		RecipeID   string  `json:"recipe_id"`
		Similarity float64 `json:"similarity"`
	} `json:"neighbors"`
}

// NearestNeighbors implements harvest.Embedder.
func (c *Client) NearestNeighbors(ctx context.Context, vector []float32, k int) ([]harvest.Neighbor, error) {
	payload, err := json.Marshal(neighborsRequest{Vector: vector, K: k})
	if err != nil {
		return nil, fmt.Errorf("marshal neighbors request: %w", err)
	}
	var body neighborsResponse
	if err := c.post(ctx, "/v1/neighbors", payload, &body); err != nil {
		return nil, err
	}
	out := make([]harvest.Neighbor, 0, len(body.Neighbors))
	for _, n := range body.Neighbors {
		out = append(out, harvest.Neighbor{RecipeID: n.RecipeID, Similarity: n.Similarity})
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("new request %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("post %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
