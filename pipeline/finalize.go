package pipeline

import (
	"muhasibi/guardrails"
	"muhasibi/retrieval"
)

// genericRefusalAr is the generic Arabic refusal message FINALIZE injects
// when it must force not_found=true.
const genericRefusalAr = "لا تتوفر أدلة كافية من المصدر للإجابة عن هذا السؤال بدقة."

// Finalize validates the response against the output contract,
// force-correcting violations rather than returning an error: an
// uncited answer becomes a refusal, unknown chunk citations are dropped,
// and the mandatory constraints are always injected.
func Finalize(ctx *RequestContext) *FinalResponse {
	resp := &FinalResponse{
		ListenSummary:   ctx.Listen.NormalizedQuestion,
		Purpose:         *ctx.Purpose,
		Path:            *ctx.Path,
		ContractReasons: append([]string{}, ctx.Account.ContractReasons...),
	}

	switch ctx.Account.Outcome {
	case AccountInsufficientRefuse, AccountOutOfScopeRefuse:
		resp.NotFound = true
		resp.AnswerAr = genericRefusalAr
		if ctx.Account.RefusalAr != "" {
			resp.AnswerAr = ctx.Account.RefusalAr
		}
		resp.RefusalSuggestionAr = ctx.Account.Suggestion
		resp.AbstainReason = ctx.Account.ContractReasons[0]
		resp.ContractOutcome = guardrails.PassPartial
		resp.Confidence = ConfidenceLow
		return finalizeConstraints(resp)
	}

	interp := ctx.Interpret
	resp.AnswerAr = interp.AnswerAr
	if ctx.Reflect != nil {
		resp.AnswerAr = ctx.Reflect.AnswerAr
		resp.AnnotationAr = ctx.Reflect.Annotation
	}
	var packets []retrieval.EvidencePacket
	if ctx.Retrieve != nil {
		packets = ctx.Retrieve.Packets
	}
	resp.Citations = dropUnknownChunkCitations(interp.Citations, packets)
	resp.ReferencedEntities = interp.EntityIDs
	resp.Difficulty = ctx.Path.Difficulty
	resp.NotFound = interp.NotFound

	// Invariant 1: not_found=false ⇒ citations non-empty.
	if !resp.NotFound && len(resp.Citations) == 0 {
		resp.NotFound = true
		resp.AbstainReason = "missing_citations"
		resp.AnswerAr = genericRefusalAr
	}

	if resp.NotFound {
		resp.Citations = nil
		resp.AnnotationAr = ""
		resp.ContractOutcome = guardrails.PassPartial
		resp.Confidence = ConfidenceLow
		if resp.AnswerAr == "" {
			resp.AnswerAr = genericRefusalAr
		}
		if resp.AbstainReason == "" {
			resp.AbstainReason = interp.AbstainReason
		}
		if resp.AbstainReason == "" {
			resp.AbstainReason = "not_found"
		}
		return finalizeConstraints(resp)
	}

	resp.Confidence = confidenceBand(interp.Confidence)
	resp.ContractOutcome = guardrails.Evaluate(guardrails.EvaluationInput{
		AnswerAr:       resp.AnswerAr,
		Citations:      resp.Citations,
		IsDefinitional: ctx.Listen.Intent.IsDefinitional(),
	}).Outcome

	return finalizeConstraints(resp)
}

// dropUnknownChunkCitations removes any citation whose chunk ID is not
// among the request's retrieved evidence packets.
func dropUnknownChunkCitations(citations []guardrails.Citation, packets []retrieval.EvidencePacket) []guardrails.Citation {
	known := make(map[int64]bool, len(packets))
	for _, p := range packets {
		known[p.Chunk.ID] = true
	}
	var out []guardrails.Citation
	for _, c := range citations {
		if known[c.ChunkID] {
			out = append(out, c)
		}
	}
	return out
}

// finalizeConstraints ensures purpose.constraints always contains the
// three mandatory items.
func finalizeConstraints(resp *FinalResponse) *FinalResponse {
	resp.Purpose.Constraints = mergeConstraints(resp.Purpose.Constraints)
	return resp
}

func confidenceBand(score float64) Confidence {
	switch {
	case score >= 0.75:
		return ConfidenceHigh
	case score >= 0.4:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
