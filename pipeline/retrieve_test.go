package pipeline

import (
	"context"
	"testing"

	"muhasibi/catalog"
	"muhasibi/retrieval"
)

type fakeRetrieveStore struct {
	entityChunks map[int64][]catalog.Chunk
	vectorHits   []retrieval.VectorHit
}

func (f *fakeRetrieveStore) ResolveEntities(ctx context.Context, keywords []string) ([]catalog.Entity, error) {
	return nil, nil
}

func (f *fakeRetrieveStore) LookupByEntity(ctx context.Context, entityID int64, limit int) ([]catalog.Chunk, error) {
	return f.entityChunks[entityID], nil
}

func (f *fakeRetrieveStore) KeywordSearch(ctx context.Context, keywords []string, limit int) ([]retrieval.KeywordHit, error) {
	return nil, nil
}

func (f *fakeRetrieveStore) VectorSearch(ctx context.Context, text string, limit int) ([]retrieval.VectorHit, error) {
	return f.vectorHits, nil
}

func (f *fakeRetrieveStore) ExpandGraph(ctx context.Context, entityIDs []int64, depth int, requireSpans bool) ([]retrieval.GraphHit, error) {
	return nil, nil
}

func (f *fakeRetrieveStore) GetChunk(ctx context.Context, chunkID int64) (catalog.Chunk, error) {
	return catalog.Chunk{ID: chunkID}, nil
}

func (f *fakeRetrieveStore) GetEdgeEvidence(ctx context.Context, edgeID int64) ([]catalog.JustificationSpan, error) {
	return nil, nil
}

func TestRetrieveReturnsPacketsFromEntityLookup(t *testing.T) {
	store := &fakeRetrieveStore{
		entityChunks: map[int64][]catalog.Chunk{
			1: {{ID: 10, EntityID: 1, TextAr: "نص"}},
		},
	}
	engine := retrieval.New(store, nil, retrieval.DefaultConfig())
	matches := []catalog.EntityMatch{{Entity: catalog.Entity{ID: 1}}}
	result, status := Retrieve(context.Background(), engine, "q", nil, matches, 10)
	if status.Status != StatusProceed {
		t.Fatalf("expected Proceed, got %v", status)
	}
	if len(result.Packets) != 1 || result.Packets[0].Chunk.ID != 10 {
		t.Fatalf("expected one packet from entity lookup, got %+v", result.Packets)
	}
}

func TestRetrieveWithNoMatchesStillProceeds(t *testing.T) {
	store := &fakeRetrieveStore{}
	engine := retrieval.New(store, nil, retrieval.DefaultConfig())
	result, status := Retrieve(context.Background(), engine, "q", nil, nil, 10)
	if status.Status != StatusProceed {
		t.Fatalf("expected Proceed even with no evidence, got %v", status)
	}
	if len(result.Packets) != 0 {
		t.Fatalf("expected no packets, got %+v", result.Packets)
	}
}

func TestRetrieveRespectsMaxResults(t *testing.T) {
	store := &fakeRetrieveStore{
		vectorHits: []retrieval.VectorHit{
			{Chunk: catalog.Chunk{ID: 1}, Score: 1},
			{Chunk: catalog.Chunk{ID: 2}, Score: 0.9},
			{Chunk: catalog.Chunk{ID: 3}, Score: 0.8},
		},
	}
	engine := retrieval.New(store, nil, retrieval.DefaultConfig())
	result, _ := Retrieve(context.Background(), engine, "q", nil, nil, 2)
	if len(result.Packets) != 2 {
		t.Fatalf("expected capped result of 2, got %d", len(result.Packets))
	}
}
