// Package memory provides an in-process ontology backed by a static table,
// used in tests and local development.
package memory

import (
	"context"
	"strings"

	"github.com/barcraft/harvester/internal/harvest"
)

// Ontology resolves names against a case-insensitive alias table.
type Ontology struct {
	byAlias map[string]harvest.IngredientRef
}

// New builds an Ontology from canonical refs keyed by their aliases.
func New(entries map[string]harvest.IngredientRef) *Ontology {
	byAlias := make(map[string]harvest.IngredientRef, len(entries))
	for alias, ref := range entries {
		byAlias[normalizeAlias(alias)] = ref
	}
	return &Ontology{byAlias: byAlias}
}

// Resolve implements harvest.Ontology.
func (o *Ontology) Resolve(_ context.Context, text string) (harvest.IngredientRef, bool, error) {
	ref, ok := o.byAlias[normalizeAlias(text)]
	return ref, ok, nil
}

func normalizeAlias(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
