//go:build cgo

package store

import (
	"context"
	"path/filepath"
	"testing"

	"muhasibi/catalog"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath, 4, nil) // dim=4, no embedder configured
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// ---------------------------------------------------------------------------
// Schema / construction
// ---------------------------------------------------------------------------

func TestNew(t *testing.T) {
	s := newTestStore(t)
	if s.EmbeddingDim() != 4 {
		t.Fatalf("expected embedding dim 4, got %d", s.EmbeddingDim())
	}
	if s.DB() == nil {
		t.Fatal("expected non-nil *sql.DB")
	}
}

func TestNewCreatesParentDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub", "dir")
	dbPath := filepath.Join(dir, "test.db")
	s, err := New(dbPath, 4, nil)
	if err != nil {
		t.Fatalf("creating store in nested dir: %v", err)
	}
	s.Close()
}

// ---------------------------------------------------------------------------
// Entity / chunk / embedding CRUD
// ---------------------------------------------------------------------------

func sampleEntity(id int64, kind catalog.EntityKind, name string) catalog.Entity {
	return catalog.Entity{ID: id, Kind: kind, NameAr: name, SourceAnchor: "src:" + name}
}

func TestUpsertAndListEntities(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertEntity(ctx, sampleEntity(1, catalog.KindPillar, "الإيمان")); err != nil {
		t.Fatalf("upserting entity: %v", err)
	}

	entities, err := s.AllEntities(ctx)
	if err != nil {
		t.Fatalf("listing entities: %v", err)
	}
	if len(entities) != 1 || entities[0].NameAr != "الإيمان" {
		t.Fatalf("unexpected entities: %+v", entities)
	}
}

func TestUpsertEntityIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := sampleEntity(1, catalog.KindPillar, "الإيمان")
	if _, err := s.UpsertEntity(ctx, e); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	e.DefinitionAr = "تعريف محدث"
	if _, err := s.UpsertEntity(ctx, e); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	entities, err := s.AllEntities(ctx)
	if err != nil {
		t.Fatalf("listing entities: %v", err)
	}
	if len(entities) != 1 {
		t.Fatalf("expected upsert to update in place, got %d rows", len(entities))
	}
	if entities[0].DefinitionAr != "تعريف محدث" {
		t.Fatalf("expected updated definition, got %q", entities[0].DefinitionAr)
	}
}

func TestInsertChunkAndLookupByEntity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entityID, err := s.UpsertEntity(ctx, sampleEntity(1, catalog.KindPillar, "الإيمان"))
	if err != nil {
		t.Fatalf("upserting entity: %v", err)
	}

	if _, err := s.InsertChunk(ctx, catalog.Chunk{EntityID: entityID, Kind: catalog.ChunkDefinition, TextAr: "تعريف الإيمان", SourceAnchor: "src:1"}); err != nil {
		t.Fatalf("inserting chunk: %v", err)
	}
	if _, err := s.InsertChunk(ctx, catalog.Chunk{EntityID: entityID, Kind: catalog.ChunkEvidence, TextAr: "دليل نصي", SourceAnchor: "src:2"}); err != nil {
		t.Fatalf("inserting chunk: %v", err)
	}

	chunks, err := s.LookupByEntity(ctx, entityID, 10)
	if err != nil {
		t.Fatalf("looking up chunks: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Kind != catalog.ChunkDefinition {
		t.Fatalf("expected definition chunk ranked first, got %v", chunks[0].Kind)
	}
}

func TestLookupByEntityRespectsLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entityID, _ := s.UpsertEntity(ctx, sampleEntity(1, catalog.KindPillar, "الإيمان"))
	for i := 0; i < 5; i++ {
		if _, err := s.InsertChunk(ctx, catalog.Chunk{EntityID: entityID, Kind: catalog.ChunkEvidence, TextAr: "دليل"}); err != nil {
			t.Fatalf("inserting chunk: %v", err)
		}
	}

	chunks, err := s.LookupByEntity(ctx, entityID, 2)
	if err != nil {
		t.Fatalf("looking up chunks: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(chunks))
	}
}

func TestGetChunk(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entityID, _ := s.UpsertEntity(ctx, sampleEntity(1, catalog.KindPillar, "الإيمان"))
	chunkID, err := s.InsertChunk(ctx, catalog.Chunk{EntityID: entityID, Kind: catalog.ChunkDefinition, TextAr: "تعريف"})
	if err != nil {
		t.Fatalf("inserting chunk: %v", err)
	}

	got, err := s.GetChunk(ctx, chunkID)
	if err != nil {
		t.Fatalf("getting chunk: %v", err)
	}
	if got.TextAr != "تعريف" {
		t.Fatalf("text_ar: got %q", got.TextAr)
	}
}

func TestKeywordSearchMatchesChunkText(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entityID, _ := s.UpsertEntity(ctx, sampleEntity(1, catalog.KindPillar, "الإيمان"))
	if _, err := s.InsertChunk(ctx, catalog.Chunk{EntityID: entityID, Kind: catalog.ChunkDefinition, TextAr: "التزكية تطهير النفس", SourceAnchor: "src:1"}); err != nil {
		t.Fatalf("inserting chunk: %v", err)
	}
	if _, err := s.InsertChunk(ctx, catalog.Chunk{EntityID: entityID, Kind: catalog.ChunkEvidence, TextAr: "نص آخر لا يذكر المصطلح", SourceAnchor: "src:2"}); err != nil {
		t.Fatalf("inserting chunk: %v", err)
	}

	hits, err := s.KeywordSearch(ctx, []string{"التزكية"}, 5)
	if err != nil {
		t.Fatalf("keyword search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected one FTS hit, got %+v", hits)
	}
	if hits[0].Chunk.TextAr != "التزكية تطهير النفس" {
		t.Fatalf("unexpected hit: %+v", hits[0])
	}
}

func TestKeywordSearchEmptyKeywords(t *testing.T) {
	s := newTestStore(t)
	hits, err := s.KeywordSearch(context.Background(), nil, 5)
	if err != nil {
		t.Fatalf("keyword search: %v", err)
	}
	if hits != nil {
		t.Fatalf("expected no hits for empty keyword list, got %+v", hits)
	}
}

func TestInsertEmbeddingAndVectorSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entityID, _ := s.UpsertEntity(ctx, sampleEntity(1, catalog.KindPillar, "الإيمان"))
	chunkID, err := s.InsertChunk(ctx, catalog.Chunk{EntityID: entityID, Kind: catalog.ChunkDefinition, TextAr: "تعريف"})
	if err != nil {
		t.Fatalf("inserting chunk: %v", err)
	}
	if err := s.InsertEmbedding(ctx, chunkID, []float32{0.1, 0.2, 0.3, 0.4}); err != nil {
		t.Fatalf("inserting embedding: %v", err)
	}

	// No embedder configured: VectorSearch must degrade to an empty result
	// rather than error, per the retrieval contract's failure mode.
	hits, err := s.VectorSearch(ctx, "أي نص", 5)
	if err != nil {
		t.Fatalf("vector search: %v", err)
	}
	if hits != nil {
		t.Fatalf("expected nil hits without an embedder, got %+v", hits)
	}
}

// ---------------------------------------------------------------------------
// Edges / justification spans
// ---------------------------------------------------------------------------

func TestInsertEdgeRejectsZeroSpans(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertEdge(ctx, catalog.Edge{
		SourceEntityID: 1,
		TargetEntityID: 2,
		RelationLabel:  catalog.RelEnables,
		Status:         catalog.EdgeApproved,
	})
	if err == nil {
		t.Fatal("expected an edge with no justification spans to be rejected")
	}
}

func TestInsertEdgeWithSpans(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, _ := s.UpsertEntity(ctx, sampleEntity(1, catalog.KindPillar, "الإيمان"))
	b, _ := s.UpsertEntity(ctx, sampleEntity(2, catalog.KindPillar, "الإحسان"))
	chunkID, err := s.InsertChunk(ctx, catalog.Chunk{EntityID: a, Kind: catalog.ChunkEvidence, TextAr: "الإيمان يمكّن الإحسان"})
	if err != nil {
		t.Fatalf("inserting chunk: %v", err)
	}

	edgeID, err := s.InsertEdge(ctx, catalog.Edge{
		SourceEntityID: a,
		TargetEntityID: b,
		RelationLabel:  catalog.RelEnables,
		Status:         catalog.EdgeApproved,
		Spans: []catalog.JustificationSpan{
			{ChunkID: chunkID, StartPos: 0, EndPos: 10, Quote: "الإيمان يمكّن"},
		},
	})
	if err != nil {
		t.Fatalf("inserting edge: %v", err)
	}

	spans, err := s.GetEdgeEvidence(ctx, edgeID)
	if err != nil {
		t.Fatalf("getting edge evidence: %v", err)
	}
	if len(spans) != 1 || spans[0].Quote != "الإيمان يمكّن" {
		t.Fatalf("unexpected spans: %+v", spans)
	}
}

func TestExpandGraphExcludesUnapprovedEdges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, _ := s.UpsertEntity(ctx, sampleEntity(1, catalog.KindPillar, "الإيمان"))
	b, _ := s.UpsertEntity(ctx, sampleEntity(2, catalog.KindPillar, "الإحسان"))
	chunkID, _ := s.InsertChunk(ctx, catalog.Chunk{EntityID: a, Kind: catalog.ChunkEvidence, TextAr: "نص الدليل"})

	if _, err := s.InsertEdge(ctx, catalog.Edge{
		SourceEntityID: a,
		TargetEntityID: b,
		RelationLabel:  catalog.RelEnables,
		Status:         catalog.EdgePending,
		Spans:          []catalog.JustificationSpan{{ChunkID: chunkID, Quote: "نص"}},
	}); err != nil {
		t.Fatalf("inserting pending edge: %v", err)
	}

	hits, err := s.ExpandGraph(ctx, []int64{a}, 2, true)
	if err != nil {
		t.Fatalf("expanding graph: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected pending edges excluded from expansion, got %+v", hits)
	}
}

func TestExpandGraphFollowsApprovedEdgeWithSpans(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, _ := s.UpsertEntity(ctx, sampleEntity(1, catalog.KindPillar, "الإيمان"))
	b, _ := s.UpsertEntity(ctx, sampleEntity(2, catalog.KindPillar, "الإحسان"))
	s.InsertChunk(ctx, catalog.Chunk{EntityID: b, Kind: catalog.ChunkDefinition, TextAr: "تعريف الإحسان"})
	evidenceID, _ := s.InsertChunk(ctx, catalog.Chunk{EntityID: a, Kind: catalog.ChunkEvidence, TextAr: "نص الدليل"})

	if _, err := s.InsertEdge(ctx, catalog.Edge{
		SourceEntityID: a,
		TargetEntityID: b,
		RelationLabel:  catalog.RelEnables,
		Status:         catalog.EdgeApproved,
		Spans:          []catalog.JustificationSpan{{ChunkID: evidenceID, Quote: "نص الدليل"}},
	}); err != nil {
		t.Fatalf("inserting approved edge: %v", err)
	}

	hits, err := s.ExpandGraph(ctx, []int64{a}, 2, true)
	if err != nil {
		t.Fatalf("expanding graph: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected the approved edge to surface at least one hit")
	}
}

// ---------------------------------------------------------------------------
// ResolveEntities
// ---------------------------------------------------------------------------

func TestResolveEntitiesByExactName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.UpsertEntity(ctx, sampleEntity(1, catalog.KindPillar, "الإيمان"))
	s.UpsertEntity(ctx, sampleEntity(2, catalog.KindPillar, "الإحسان"))

	entities, err := s.ResolveEntities(ctx, []string{"الإيمان"})
	if err != nil {
		t.Fatalf("resolving entities: %v", err)
	}
	if len(entities) != 1 || entities[0].NameAr != "الإيمان" {
		t.Fatalf("unexpected resolution: %+v", entities)
	}
}

func TestResolveEntitiesEmptyKeywords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entities, err := s.ResolveEntities(ctx, nil)
	if err != nil {
		t.Fatalf("resolving entities: %v", err)
	}
	if entities != nil {
		t.Fatalf("expected nil result for empty keywords, got %+v", entities)
	}
}
