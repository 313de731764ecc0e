package guardrails

import (
	"testing"

	"muhasibi/catalog"
)

func TestResolveSpanExactMatch(t *testing.T) {
	chunkText := "التزكية هي تطهير النفس من الأدران الباطنة"
	answer := "التزكية هي تطهير النفس من الأدران الباطنة"
	quote, method := ResolveSpan(answer, chunkText)
	if method != SpanExact {
		t.Fatalf("expected exact resolution, got %v (quote=%q)", method, quote)
	}
}

func TestResolveSpanApproximateMatch(t *testing.T) {
	chunkText := "التزكية هي تطهير النفس من الأدران الباطنة والرذائل الخفية"
	answer := "التزكية هي تطهير النفس من الأدران الباطنة والعيوب الظاهرة"
	_, method := ResolveSpan(answer, chunkText)
	if method != SpanApproximate {
		t.Fatalf("expected approximate resolution, got %v", method)
	}
}

func TestResolveSpanUnresolved(t *testing.T) {
	chunkText := "نص لا علاقة له إطلاقاً بالإجابة المذكورة هنا"
	answer := "جملة مختلفة تماماً عن أي شيء في المقطع"
	_, method := ResolveSpan(answer, chunkText)
	if method != SpanUnresolved {
		t.Fatalf("expected unresolved, got %v", method)
	}
}

func TestHydrateCitationsOnePerEntity(t *testing.T) {
	candidates := []EvidenceCandidate{
		{Chunk: catalog.Chunk{ID: 1, EntityID: 100, TextAr: "a"}, Rank: 0},
		{Chunk: catalog.Chunk{ID: 2, EntityID: 100, TextAr: "b"}, Rank: 1},
		{Chunk: catalog.Chunk{ID: 3, EntityID: 200, TextAr: "c"}, Rank: 0},
	}
	got := HydrateCitations(candidates, []int64{100, 200})
	if len(got) != 2 {
		t.Fatalf("expected one citation per entity, got %d: %+v", len(got), got)
	}
	for _, c := range got {
		if c.EntityID == 100 && c.ChunkID != 1 {
			t.Fatalf("expected top-ranked chunk 1 for entity 100, got %d", c.ChunkID)
		}
	}
}

func TestHydrateCitationsSkipsUntouchedEntities(t *testing.T) {
	candidates := []EvidenceCandidate{
		{Chunk: catalog.Chunk{ID: 1, EntityID: 100, TextAr: "a"}, Rank: 0},
	}
	got := HydrateCitations(candidates, []int64{999})
	if len(got) != 0 {
		t.Fatalf("expected no citations for an untouched entity, got %+v", got)
	}
}

func TestHydrateCitationsIsStableUnderRepeatedApplication(t *testing.T) {
	candidates := []EvidenceCandidate{
		{Chunk: catalog.Chunk{ID: 1, EntityID: 100, TextAr: "a"}, Rank: 0},
	}
	first := HydrateCitations(candidates, []int64{100})
	second := HydrateCitations(candidates, []int64{100})
	if len(first) != len(second) {
		t.Fatalf("hydration is not idempotent: %d vs %d", len(first), len(second))
	}
}
