package pipeline

import (
	"context"

	"muhasibi/catalog"
	"muhasibi/retrieval"
)

// Retrieve runs the hybrid retrieval procedure. It never surfaces
// retrieval exceptions to later stages: engine.Search already swallows
// collaborator errors to empty results internally.
func Retrieve(ctx context.Context, engine *retrieval.Engine, normalizedQuestion string, keywords []string, matches []catalog.EntityMatch, maxResults int) (*RetrieveResult, StageResult) {
	entities := make([]catalog.Entity, len(matches))
	for i, m := range matches {
		entities[i] = m.Entity
	}

	packets := engine.Search(ctx, normalizedQuestion, keywords, entities, maxResults)
	return &RetrieveResult{Packets: packets}, Proceed()
}
