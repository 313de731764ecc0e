package pipeline

import (
	"strings"

	"muhasibi/guardrails"
)

// Reflect appends a single optional Arabic annotation sentence drawn only
// from the existing answer's vocabulary, or omits one. In natural_chat
// mode it may reformat the answer into flowing prose, but the set of
// cited chunk IDs and factual sentences must not change; Reflect never
// touches citations, only AnswerAr text. The annotation is carried into
// the final response as its own field rather than spliced into the
// answer, so it can never dilute must-cite coverage.
func Reflect(out *InterpretOutput, mode Mode) *ReflectResult {
	answer := out.AnswerAr
	if out.NotFound {
		return &ReflectResult{AnswerAr: answer}
	}

	if mode == ModeNaturalChat {
		answer = reformatAsProse(answer)
	}

	annotation := buildVocabularyAnnotation(out.AnswerAr)
	return &ReflectResult{AnswerAr: answer, Annotation: annotation}
}

// reformatAsProse joins bullet-style lines into flowing prose without
// adding or removing any sentence.
func reformatAsProse(answer string) string {
	lines := strings.Split(answer, "\n")
	var sentences []string
	for _, l := range lines {
		l = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(l), "-"))
		if l == "" {
			continue
		}
		sentences = append(sentences, l)
	}
	return strings.Join(sentences, "، ")
}

// buildVocabularyAnnotation echoes the shortest answer sentence that
// carries no factual-claim marker. A verbatim sentence introduces no new
// token, and skipping marker-bearing sentences keeps the annotation free
// of claims that would themselves need a citation. Returns "" when every
// sentence carries a marker, omitting the annotation entirely.
func buildVocabularyAnnotation(answer string) string {
	best := ""
	for _, s := range guardrails.SplitSentences(answer) {
		s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "-"))
		if s == "" || guardrails.IsMustCiteSentence(s) {
			continue
		}
		if best == "" || len([]rune(s)) < len([]rune(best)) {
			best = s
		}
	}
	return best
}
