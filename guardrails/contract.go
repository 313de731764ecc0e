package guardrails

import "strings"

// ContractOutcome is the overall verdict FINALIZE emits for a response.
type ContractOutcome string

const (
	PassFull    ContractOutcome = "PASS_FULL"
	PassPartial ContractOutcome = "PASS_PARTIAL"
	Fail        ContractOutcome = "FAIL"
)

// EvaluationInput is everything the guardrail evaluation needs about a
// generated answer and its citations.
type EvaluationInput struct {
	AnswerAr       string
	Citations      []Citation
	IsDefinitional bool
}

// EvaluationResult is the guardrail verdict for one answer: whether a
// must-cite sentence was left unresolved, whether the outcome must
// degrade, and whether it must escalate to a forced refusal.
type EvaluationResult struct {
	Outcome         ContractOutcome
	ForceNotFound   bool
	Reasons         []string
	UnresolvedCount int
}

// Evaluate runs the must-cite coverage check: every must-cite sentence
// needs a resolved-or-approximate citation
// covering it, else the outcome degrades to PASS_PARTIAL; if any
// must-cite sentence is unresolved and the intent was definitional, the
// stage must escalate to not_found=true (fail-closed).
func Evaluate(in EvaluationInput) EvaluationResult {
	mustCite := MustCiteSentences(in.AnswerAr)
	if len(mustCite) == 0 {
		return EvaluationResult{Outcome: PassFull}
	}

	covered := make([]bool, len(mustCite))
	for i, sentence := range mustCite {
		for _, c := range in.Citations {
			if c.Method == SpanUnresolved {
				continue
			}
			if contains(sentence, c.Quote) || contains(c.Quote, sentence) {
				covered[i] = true
				break
			}
		}
	}

	unresolved := 0
	for _, ok := range covered {
		if !ok {
			unresolved++
		}
	}

	if unresolved == 0 {
		return EvaluationResult{Outcome: PassFull}
	}

	result := EvaluationResult{
		Outcome:         PassPartial,
		UnresolvedCount: unresolved,
		Reasons:         []string{"must_cite_sentence_unresolved"},
	}
	if in.IsDefinitional {
		result.ForceNotFound = true
		result.Reasons = append(result.Reasons, "definitional_intent_unresolved_escalated")
	}
	return result
}

func contains(outer, inner string) bool {
	if inner == "" {
		return false
	}
	return strings.Contains(outer, inner)
}
