package pipeline

import (
	"context"
	"testing"

	"muhasibi/catalog"
	"muhasibi/guardrails"
	"muhasibi/retrieval"
)

func newOrchestrator(t *testing.T, resolver Resolver, store retrieval.Store) *Orchestrator {
	t.Helper()
	return &Orchestrator{
		Resolver:        resolver,
		RetrievalEngine: retrieval.New(store, nil, retrieval.DefaultConfig()),
		ModelClient:     nil,
		MaxPackets:      10,
		Timeouts:        DefaultTimeouts(),
		Sink:            nil,
	}
}

func TestOrchestratorListPillarsProducesCitedAnswer(t *testing.T) {
	// A list-pillars question names no pillar: the entity set comes from
	// the catalog snapshot, not from name matching.
	pillars := []catalog.Entity{
		{ID: 1, Kind: catalog.KindPillar, NameAr: "الروحية"},
		{ID: 2, Kind: catalog.KindPillar, NameAr: "الاجتماعية"},
	}
	resolver := &fakeResolver{pillars: pillars}
	store := &fakeRetrieveStore{
		entityChunks: map[int64][]catalog.Chunk{
			1: {{ID: 10, EntityID: 1, Kind: catalog.ChunkDefinition, TextAr: "تعريف الركيزة الروحية"}},
			2: {{ID: 20, EntityID: 2, Kind: catalog.ChunkDefinition, TextAr: "تعريف الركيزة الاجتماعية"}},
		},
	}
	orch := newOrchestrator(t, resolver, store)
	resp, records, err := orch.Run(context.Background(), "req-1", "ما هي ركائز الحياة الطيبة الخمس؟", "ar", ModeAnswer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.NotFound {
		t.Fatalf("expected an answer, got refusal: %+v", resp)
	}
	if len(resp.Citations) != 2 {
		t.Fatalf("expected two citations, one per pillar, got %+v", resp.Citations)
	}
	if len(records) == 0 {
		t.Fatal("expected a non-empty stage trace")
	}
}

func TestOrchestratorFiqhQuestionRefusesWithReframing(t *testing.T) {
	resolver := &fakeResolver{}
	store := &fakeRetrieveStore{}
	orch := newOrchestrator(t, resolver, store)
	resp, _, err := orch.Run(context.Background(), "req-2", "ما حكم صيام يوم الجمعة؟", "ar", ModeAnswer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.NotFound {
		t.Fatal("expected a refusal for an out-of-scope fiqh question")
	}
	if resp.ContractOutcome != guardrails.PassPartial {
		t.Fatalf("expected PASS_PARTIAL contract outcome, got %v", resp.ContractOutcome)
	}
}

func TestOrchestratorBiographyQuestionRefusesOutOfScope(t *testing.T) {
	resolver := &fakeResolver{}
	store := &fakeRetrieveStore{}
	orch := newOrchestrator(t, resolver, store)
	resp, _, err := orch.Run(context.Background(), "req-3", "من هو مؤلف الإطار؟", "ar", ModeAnswer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.NotFound {
		t.Fatal("expected a refusal for a biography question")
	}
}

func TestOrchestratorAmbiguousQuestionWithNoEvidenceRefuses(t *testing.T) {
	resolver := &fakeResolver{}
	store := &fakeRetrieveStore{}
	orch := newOrchestrator(t, resolver, store)
	resp, _, err := orch.Run(context.Background(), "req-4", "اكتب قصيدة عن الصبر", "ar", ModeAnswer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.NotFound {
		t.Fatal("expected a refusal when no entities and no evidence are found")
	}
}

func TestOrchestratorEmptyQuestionFailsAtListen(t *testing.T) {
	resolver := &fakeResolver{}
	store := &fakeRetrieveStore{}
	orch := newOrchestrator(t, resolver, store)
	resp, _, err := orch.Run(context.Background(), "req-5", "   ", "ar", ModeAnswer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.NotFound || resp.AbstainReason != "input_malformed" {
		t.Fatalf("expected input_malformed refusal, got %+v", resp)
	}
}

func TestOrchestratorRunIsDeterministicAcrossRepeatedCalls(t *testing.T) {
	pillars := []catalog.EntityMatch{{Entity: catalog.Entity{ID: 1, Kind: catalog.KindPillar, NameAr: "الإيمان"}}}
	resolver := &fakeResolver{matches: pillars}
	store := &fakeRetrieveStore{
		entityChunks: map[int64][]catalog.Chunk{
			1: {{ID: 10, EntityID: 1, Kind: catalog.ChunkDefinition, TextAr: "تعريف الإيمان"}},
		},
	}
	orch := newOrchestrator(t, resolver, store)
	first, _, _ := orch.Run(context.Background(), "req-6", "ما هي ركائز الحياة الطيبة الخمس؟", "ar", ModeAnswer)
	second, _, _ := orch.Run(context.Background(), "req-6", "ما هي ركائز الحياة الطيبة الخمس؟", "ar", ModeAnswer)
	if first.AnswerAr != second.AnswerAr || first.NotFound != second.NotFound {
		t.Fatal("expected deterministic output across repeated runs with identical inputs")
	}
}
