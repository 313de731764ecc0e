package pipeline

import (
	"context"
	"sort"
	"strings"

	"muhasibi/catalog"
	"muhasibi/guardrails"
	"muhasibi/modelclient"
	"muhasibi/retrieval"
)

// structuralListIntents build their answer by direct projection from the
// retrieved entity set instead of calling the model.
var structuralListIntents = map[Intent]bool{
	IntentListPillars:            true,
	IntentListCoreValuesInPillar: true,
	IntentListSubValuesInCore:    true,
}

// Interpret answers the question: deterministic structural answering for
// list intents, otherwise model-assisted answering, followed by citation
// hydration, span resolution, guardrail evaluation, and argument-chain
// construction.
func Interpret(ctx context.Context, client *modelclient.Client, question string, packets []retrieval.EvidencePacket, matches []catalog.EntityMatch, intent Intent, mode Mode) (*InterpretOutput, StageResult) {
	if structuralListIntents[intent] {
		return interpretStructural(packets, matches), Proceed()
	}

	var out *InterpretOutput
	if client != nil {
		forPrompt := toEvidenceForPrompt(packets)
		names := matchedNames(matches)
		result, err := client.Interpret(ctx, question, forPrompt, names, string(mode))
		if err == nil && result != nil {
			out = &InterpretOutput{
				AnswerAr:   result.AnswerAr,
				NotFound:   result.NotFound,
				Confidence: result.Confidence,
				EntityIDs:  result.EntityIDs,
			}
			for _, c := range result.Citations {
				out.Citations = append(out.Citations, guardrails.Citation{ChunkID: c.ChunkID, Quote: c.Quote})
			}
		}
	}

	if out == nil {
		out = interpretDeterministicFallback(packets)
		if out == nil {
			return &InterpretOutput{NotFound: true, AbstainReason: "model_unavailable"}, Abstain("model_unavailable")
		}
	}

	postProcess(out, packets, intent)
	out.ArgumentChains = buildArgumentChains(packets, out.Citations)

	return out, Proceed()
}

// interpretStructural builds an Arabic bulleted list by direct projection
// from the retrieved entity set; each bullet cites the heading (definition)
// chunk for that entity. No model call.
func interpretStructural(packets []retrieval.EvidencePacket, matches []catalog.EntityMatch) *InterpretOutput {
	definitionByEntity := make(map[int64]catalog.Chunk)
	for _, p := range packets {
		if p.Chunk.Kind == catalog.ChunkDefinition {
			if _, ok := definitionByEntity[p.Chunk.EntityID]; !ok {
				definitionByEntity[p.Chunk.EntityID] = p.Chunk
			}
		}
	}

	ordered := make([]catalog.EntityMatch, len(matches))
	copy(ordered, matches)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Entity.ID < ordered[j].Entity.ID })

	entityIDs := make([]int64, 0, len(ordered))
	for _, m := range ordered {
		entityIDs = append(entityIDs, m.Entity.ID)
	}

	var b strings.Builder
	var citations []guardrails.Citation
	for _, m := range ordered {
		b.WriteString("- ")
		b.WriteString(m.Entity.NameAr)
		b.WriteString("\n")
		if chunk, ok := definitionByEntity[m.Entity.ID]; ok {
			citations = append(citations, guardrails.Citation{
				ChunkID:  chunk.ID,
				EntityID: chunk.EntityID,
				Quote:    m.Entity.NameAr,
				Method:   guardrails.SpanApproximate,
			})
		}
	}

	notFound := len(matches) == 0
	return &InterpretOutput{
		AnswerAr:   strings.TrimSpace(b.String()),
		Citations:  citations,
		EntityIDs:  entityIDs,
		NotFound:   notFound,
		Confidence: 1.0,
	}
}

// interpretDeterministicFallback synthesizes a two-section Arabic answer
// (definition + evidence) when the model call fails entirely. Returns nil
// if no definition packet exists, signaling the caller to abstain.
func interpretDeterministicFallback(packets []retrieval.EvidencePacket) *InterpretOutput {
	var topDefinition, topEvidence *retrieval.EvidencePacket
	for i := range packets {
		p := &packets[i]
		if p.Chunk.Kind == catalog.ChunkDefinition && topDefinition == nil {
			topDefinition = p
		}
		if p.Chunk.Kind == catalog.ChunkEvidence && topEvidence == nil {
			topEvidence = p
		}
	}
	if topDefinition == nil {
		return nil
	}

	var b strings.Builder
	b.WriteString("التعريف:\n")
	b.WriteString(topDefinition.Chunk.TextAr)
	var citations []guardrails.Citation
	citations = append(citations, guardrails.Citation{
		ChunkID:  topDefinition.Chunk.ID,
		EntityID: topDefinition.Chunk.EntityID,
		Quote:    topDefinition.Chunk.TextAr,
		Method:   guardrails.SpanExact,
	})

	if topEvidence != nil {
		b.WriteString("\n\nالدليل/التأصيل:\n")
		b.WriteString(topEvidence.Chunk.TextAr)
		citations = append(citations, guardrails.Citation{
			ChunkID:  topEvidence.Chunk.ID,
			EntityID: topEvidence.Chunk.EntityID,
			Quote:    topEvidence.Chunk.TextAr,
			Method:   guardrails.SpanExact,
		})
	}

	return &InterpretOutput{
		AnswerAr:   b.String(),
		Citations:  citations,
		EntityIDs:  []int64{topDefinition.Chunk.EntityID},
		NotFound:   false,
		Confidence: 0.5,
	}
}

// postProcess runs citation hydration, span resolution, and guardrail
// evaluation over a model-produced or fallback answer.
func postProcess(out *InterpretOutput, packets []retrieval.EvidencePacket, intent Intent) {
	if len(out.Citations) == 0 && !out.NotFound {
		candidates := make([]guardrails.EvidenceCandidate, len(packets))
		for i, p := range packets {
			candidates[i] = guardrails.EvidenceCandidate{Chunk: p.Chunk, Rank: i}
		}
		out.Citations = guardrails.HydrateCitations(candidates, out.EntityIDs)
	}

	chunkText := make(map[int64]string, len(packets))
	for _, p := range packets {
		chunkText[p.Chunk.ID] = p.Chunk.TextAr
	}
	for i := range out.Citations {
		c := &out.Citations[i]
		if c.Method != "" && c.Method != guardrails.SpanUnresolved {
			continue
		}
		text, ok := chunkText[c.ChunkID]
		if !ok {
			continue
		}
		quote, method := guardrails.ResolveSpan(out.AnswerAr, text)
		c.Method = method
		if quote != "" {
			c.Quote = quote
		}
	}

	evalResult := guardrails.Evaluate(guardrails.EvaluationInput{
		AnswerAr:       out.AnswerAr,
		Citations:      out.Citations,
		IsDefinitional: intent.IsDefinitional(),
	})
	if evalResult.ForceNotFound {
		out.NotFound = true
	}
}

// buildArgumentChains emits one ArgumentChain per graph-expand chunk that
// participated in the final answer.
func buildArgumentChains(packets []retrieval.EvidencePacket, citations []guardrails.Citation) []ArgumentChain {
	cited := make(map[int64]bool, len(citations))
	for _, c := range citations {
		cited[c.ChunkID] = true
	}

	var chains []ArgumentChain
	for _, p := range packets {
		if !p.GraphHit || p.Edge == nil || !cited[p.Chunk.ID] {
			continue
		}
		if len(p.Edge.Spans) == 0 {
			continue
		}
		chains = append(chains, ArgumentChain{
			EdgeID:        p.Edge.ID,
			ClaimAr:       p.Edge.Spans[0].Quote,
			InferenceType: p.Edge.RelationLabel,
		})
	}
	return chains
}

func toEvidenceForPrompt(packets []retrieval.EvidencePacket) []modelclient.EvidenceForPrompt {
	out := make([]modelclient.EvidenceForPrompt, len(packets))
	for i, p := range packets {
		out[i] = modelclient.EvidenceForPrompt{
			ChunkID:  p.Chunk.ID,
			EntityID: p.Chunk.EntityID,
			TextAr:   p.Chunk.TextAr,
		}
	}
	return out
}
