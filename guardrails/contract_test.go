package guardrails

import "testing"

func TestEvaluatePassFullWhenNoMustCiteSentences(t *testing.T) {
	result := Evaluate(EvaluationInput{AnswerAr: "مرحبا بك", Citations: nil})
	if result.Outcome != PassFull {
		t.Fatalf("expected PASS_FULL for an answer with no must-cite sentences, got %v", result.Outcome)
	}
}

func TestEvaluatePassFullWhenResolved(t *testing.T) {
	answer := "التزكية هي تطهير النفس"
	result := Evaluate(EvaluationInput{
		AnswerAr:  answer,
		Citations: []Citation{{ChunkID: 1, Quote: answer, Method: SpanExact}},
	})
	if result.Outcome != PassFull {
		t.Fatalf("expected PASS_FULL, got %v (reasons=%v)", result.Outcome, result.Reasons)
	}
}

func TestEvaluateDegradesToPassPartialWhenUnresolved(t *testing.T) {
	answer := "التزكية هي تطهير النفس"
	result := Evaluate(EvaluationInput{
		AnswerAr:       answer,
		Citations:      nil,
		IsDefinitional: false,
	})
	if result.Outcome != PassPartial {
		t.Fatalf("expected PASS_PARTIAL for an unresolved must-cite sentence, got %v", result.Outcome)
	}
	if result.ForceNotFound {
		t.Fatal("non-definitional intent must not force not_found")
	}
}

func TestEvaluateEscalatesToForceNotFoundForDefinitionalIntent(t *testing.T) {
	answer := "التزكية هي تطهير النفس"
	result := Evaluate(EvaluationInput{
		AnswerAr:       answer,
		Citations:      nil,
		IsDefinitional: true,
	})
	if !result.ForceNotFound {
		t.Fatal("expected fail-closed escalation for definitional intent with unresolved must-cite sentence")
	}
}

func TestEvaluateUnresolvedCitationDoesNotCount(t *testing.T) {
	answer := "التزكية هي تطهير النفس"
	result := Evaluate(EvaluationInput{
		AnswerAr:  answer,
		Citations: []Citation{{ChunkID: 1, Quote: answer, Method: SpanUnresolved}},
	})
	if result.Outcome != PassPartial {
		t.Fatalf("an unresolved-method citation must not satisfy coverage, got %v", result.Outcome)
	}
}
