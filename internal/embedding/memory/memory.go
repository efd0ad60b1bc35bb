// Package memory provides a bag-of-ingredients embedder for tests and local
// development. Vectors are cosine-comparable but carry no semantics beyond
// shared canonical ingredients and their proportions.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/barcraft/harvester/internal/harvest"
)

// Embedder hashes canonical ingredient IDs into a fixed-size vector weighted
// by quantity share, and serves nearest-neighbor queries over an in-process
// index.
type Embedder struct {
	dims int

	mu      sync.RWMutex
	vectors map[string][]float32
}

// New builds an Embedder with the given vector dimensionality.
func New(dims int) *Embedder {
	if dims <= 0 {
		dims = 64
	}
	return &Embedder{
		dims:    dims,
		vectors: make(map[string][]float32),
	}
}

// Embed implements harvest.Embedder.
func (e *Embedder) Embed(_ context.Context, recipe harvest.NormalizedRecipe) ([]float32, error) {
	vec := make([]float32, e.dims)
	total := 0.0
	for _, ing := range recipe.Ingredients {
		total += ing.Quantity
	}
	for _, ing := range recipe.Ingredients {
		key := ing.FreeText
		if ing.Ref != nil {
			key = ing.Ref.ID
		}
		weight := 1.0
		if total > 0 && ing.Quantity > 0 {
			weight = ing.Quantity / total
		}
		vec[hashString(key)%uint32(e.dims)] += float32(weight)
	}
	normalize(vec)
	return vec, nil
}

// Index registers a recipe vector for future neighbor queries.
func (e *Embedder) Index(recipeID string, vector []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[recipeID] = append([]float32(nil), vector...)
}

// NearestNeighbors implements harvest.Embedder.
func (e *Embedder) NearestNeighbors(_ context.Context, vector []float32, k int) ([]harvest.Neighbor, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	neighbors := make([]harvest.Neighbor, 0, len(e.vectors))
	for id, vec := range e.vectors {
		neighbors = append(neighbors, harvest.Neighbor{
			RecipeID:   id,
			Similarity: cosine(vector, vec),
		})
	}
	sort.Slice(neighbors, func(i, j int) bool {
		return neighbors[i].Similarity > neighbors[j].Similarity
	})
	if k > 0 && len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

func hashString(s string) uint32 {
	// FNV-1a.
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

func normalize(vec []float32) {
	sum := 0.0
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	dot := 0.0
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	// Vectors are stored normalized, so the dot product is the cosine.
	return dot
}
