package muhasibi

import "errors"

// Taxonomy kinds for transient/abstention outcomes. These
// never surface as Go errors from Engine.Answer: a refusal always comes
// back as a valid FinalResponse with NotFound=true and AbstainReason set.
// AbstainReason carries input_malformed, deadline_exceeded, out_of_scope
// and model_unavailable verbatim; other refusals carry the more specific
// ACCOUNT or FINALIZE reason (e.g. "out_of_scope_fiqh_ruling",
// "no_evidence_packets", "missing_citations"). They are exported here only
// so collaborators and tests can compare against the canonical vocabulary.
const (
	ReasonInputMalformed       = "input_malformed"
	ReasonRetrievalUnavailable = "retrieval_unavailable"
	ReasonModelUnavailable     = "model_unavailable"
	ReasonInsufficientEvidence = "insufficient_evidence"
	ReasonOutOfScope           = "out_of_scope"
	ReasonGuardrailFailure     = "guardrail_failure"
	ReasonDeadlineExceeded     = "deadline_exceeded"
)

var (
	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("muhasibi: invalid configuration")

	// ErrStoreClosed is returned when operating on a closed engine.
	ErrStoreClosed = errors.New("muhasibi: store is closed")

	// ErrNoCatalog is returned when the engine is constructed without a
	// usable entity catalog snapshot.
	ErrNoCatalog = errors.New("muhasibi: entity catalog is empty")
)
