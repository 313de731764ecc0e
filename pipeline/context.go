// Package pipeline implements the eight-stage deterministic reasoning
// pipeline: LISTEN, PURPOSE, PATH, RETRIEVE, ACCOUNT, INTERPRET, REFLECT,
// FINALIZE. Each stage is a pure function over the
// RequestContext fields produced by prior stages; no stage reaches
// backward, and no stage mutates shared state outside its own context.
package pipeline

import (
	"muhasibi/catalog"
	"muhasibi/guardrails"
	"muhasibi/retrieval"
)

// Mode selects the INTERPRET prompt voice; the answer contract is
// identical across modes.
type Mode string

const (
	ModeAnswer      Mode = "answer"
	ModeDebate      Mode = "debate"
	ModeSocratic    Mode = "socratic"
	ModeJudge       Mode = "judge"
	ModeNaturalChat Mode = "natural_chat"
)

// Confidence is the Final Response's coarse confidence band.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Intent is the LISTEN stage's classified question type.
type Intent string

const (
	IntentListPillars            Intent = "list_pillars"
	IntentListCoreValuesInPillar Intent = "list_core_values_in_pillar"
	IntentListSubValuesInCore    Intent = "list_sub_values_in_core_value"
	IntentDefinition             Intent = "definition"
	IntentComparison             Intent = "comparison"
	IntentConnectAcrossPillars   Intent = "connect_across_pillars"
	IntentPracticalGuidance      Intent = "practical_guidance"
	IntentFiqhRuling             Intent = "fiqh_ruling"
	IntentBiography              Intent = "biography"
	IntentGeneralKnowledge       Intent = "general_knowledge"
	IntentAmbiguous              Intent = "ambiguous"
)

// definitionalIntents is the set of intents the guardrail escalation rule
// treats as "definitional" for fail-closed escalation.
var definitionalIntents = map[Intent]bool{
	IntentDefinition: true,
}

// IsDefinitional reports whether an intent is treated as definitional for
// the purposes of guardrail fail-closed escalation.
func (i Intent) IsDefinitional() bool {
	return definitionalIntents[i]
}

// Difficulty is PATH's derived difficulty label.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ListenResult is LISTEN's stage output.
type ListenResult struct {
	NormalizedQuestion string
	Keywords           []string
	EntityMatches      []catalog.EntityMatch
	Intent             Intent
	InScope            bool
}

// PurposeResult is PURPOSE's stage output.
type PurposeResult struct {
	GoalAr      string
	Constraints []string
}

// MandatoryConstraints are the three items every PurposeResult must carry,
// regardless of what the model returns.
var MandatoryConstraints = []string{"evidence_only", "cite_every_claim", "refuse_if_missing"}

// PathResult is PATH's stage output.
type PathResult struct {
	Plan       []string
	Difficulty Difficulty
}

// DefaultPlan is PATH's default plan of Arabic step labels.
var DefaultPlan = []string{
	"استخراج الكيانات",
	"استرجاع التعريفات والأدلة",
	"التحقق من التغطية",
	"التأليف مع الاستشهادات",
}

// RetrieveResult is RETRIEVE's stage output.
type RetrieveResult struct {
	Packets []retrieval.EvidencePacket
}

// AccountOutcome is ACCOUNT's gate verdict.
type AccountOutcome string

const (
	AccountSufficient         AccountOutcome = "sufficient"
	AccountInsufficientRefuse AccountOutcome = "insufficient_refuse"
	AccountOutOfScopeRefuse   AccountOutcome = "out_of_scope_refuse"
)

// AccountResult is ACCOUNT's stage output.
type AccountResult struct {
	Outcome         AccountOutcome
	ContractReasons []string
	RefusalAr       string // refusal message for a scope refusal
	Suggestion      string // set for fiqh reframing
}

// ArgumentChain is produced by INTERPRET for every graph-expand chunk that
// participated in the final answer.
type ArgumentChain struct {
	EdgeID        int64
	ClaimAr       string
	InferenceType catalog.RelationLabel
	BoundaryAr    string
}

// InterpretOutput is INTERPRET's stage output.
type InterpretOutput struct {
	AnswerAr       string
	Citations      []guardrails.Citation
	EntityIDs      []int64
	NotFound       bool
	Confidence     float64
	ArgumentChains []ArgumentChain
	AbstainReason  string // set when INTERPRET itself abstained
}

// ReflectResult is REFLECT's stage output. Annotation is surfaced on the
// final response as AnnotationAr.
type ReflectResult struct {
	AnswerAr   string
	Annotation string
}

// FinalResponse is the pipeline's terminal output.
type FinalResponse struct {
	ListenSummary       string
	Purpose             PurposeResult
	Path                PathResult
	AnswerAr            string
	AnnotationAr        string
	Citations           []guardrails.Citation
	ReferencedEntities  []int64
	Difficulty          Difficulty
	NotFound            bool
	Confidence          Confidence
	ContractOutcome     guardrails.ContractOutcome
	ContractReasons     []string
	AbstainReason       string
	RefusalSuggestionAr string
}

// StageStatus tags a StageResult's disposition, replacing ad hoc error
// returns with an explicit variant.
type StageStatus string

const (
	StatusProceed StageStatus = "proceed"
	StatusAbstain StageStatus = "abstain"
	StatusFail    StageStatus = "fail"
)

// StageResult is the {Proceed | Abstain | Fail} variant every stage
// function returns. Only one of the three dispositions applies; the
// orchestrator branches on Status.
type StageResult struct {
	Status StageStatus
	Reason string // populated for Abstain/Fail
}

func Proceed() StageResult { return StageResult{Status: StatusProceed} }

func Abstain(reason string) StageResult {
	return StageResult{Status: StatusAbstain, Reason: reason}
}

func Fail(reason string) StageResult {
	return StageResult{Status: StatusFail, Reason: reason}
}

// RequestContext is the single growing record threaded through all eight
// stages. Each field is write-once by its owning stage;
// downstream stages read only fields already populated by prior stages.
type RequestContext struct {
	RequestID string
	Question  string
	Language  string
	Mode      Mode

	Listen    *ListenResult
	Purpose   *PurposeResult
	Path      *PathResult
	Retrieve  *RetrieveResult
	Account   *AccountResult
	Interpret *InterpretOutput
	Reflect   *ReflectResult

	StagesRun []string
}
