package pipeline

import (
	"strings"

	"muhasibi/arabic"
	"muhasibi/catalog"
	"muhasibi/retrieval"
)

// DefaultFiqhMarkers and DefaultWorshipTerms drive the fiqh-refusal scope
// check: a question containing one of each is a fiqh ruling and must be
// refused. Overridable via account.fiqh_markers / account.worship_terms.
var DefaultFiqhMarkers = []string{"ما حكم", "حكم", "يجوز", "لا يجوز", "حلال", "حرام", "مباح", "مكروه"}
var DefaultWorshipTerms = []string{"صيام", "صلاة", "زكاة", "حج"}

// MinKeywordMatch is the default account.min_keyword_match.
const MinKeywordMatch = 1

// AccountPolicy carries the ACCOUNT-stage tunables. It is threaded
// through the orchestrator per request rather than held as package state,
// so nothing global is mutable after startup.
type AccountPolicy struct {
	MinKeywordMatch int
	FiqhMarkers     []string
	WorshipTerms    []string
}

// DefaultAccountPolicy returns the default gate tunables.
func DefaultAccountPolicy() AccountPolicy {
	return AccountPolicy{
		MinKeywordMatch: MinKeywordMatch,
		FiqhMarkers:     DefaultFiqhMarkers,
		WorshipTerms:    DefaultWorshipTerms,
	}
}

// withDefaults fills any zero-valued field so a zero AccountPolicy
// behaves like DefaultAccountPolicy.
func (p AccountPolicy) withDefaults() AccountPolicy {
	if p.MinKeywordMatch <= 0 {
		p.MinKeywordMatch = MinKeywordMatch
	}
	if len(p.FiqhMarkers) == 0 {
		p.FiqhMarkers = DefaultFiqhMarkers
	}
	if len(p.WorshipTerms) == 0 {
		p.WorshipTerms = DefaultWorshipTerms
	}
	return p
}

// Account runs the gate checks (existence, relevance, scope) and emits
// the outcome that decides whether INTERPRET runs at all.
func Account(policy AccountPolicy, normalizedQuestion string, keywords []string, matches []catalog.EntityMatch, inScope bool, packets []retrieval.EvidencePacket) (*AccountResult, StageResult) {
	policy = policy.withDefaults()
	var reasons []string

	// Check 3/4 first: scope gates short-circuit regardless of evidence.
	if containsAnyNorm(normalizedQuestion, policy.FiqhMarkers) && containsAnyNorm(normalizedQuestion, policy.WorshipTerms) {
		return &AccountResult{
			Outcome:         AccountOutOfScopeRefuse,
			ContractReasons: []string{"out_of_scope_fiqh_ruling"},
			RefusalAr:       "لا يصدر هذا النظام أحكاماً فقهية؛ السؤال يطلب حكماً شرعياً تفصيلياً وهو خارج نطاق المصدر.",
			Suggestion:      "يمكن إعادة صياغة السؤال عن موقع العبادة كإطار للحياة الطيبة، مثل أثر الصيام في التزكية كما يعرضه المصدر.",
		}, Proceed()
	}
	if !inScope {
		return &AccountResult{
			Outcome:         AccountOutOfScopeRefuse,
			ContractReasons: []string{"out_of_scope"},
		}, Proceed()
	}

	// Check 1: existence.
	if len(packets) == 0 {
		reasons = append(reasons, "no_evidence_packets")
		return &AccountResult{Outcome: AccountInsufficientRefuse, ContractReasons: reasons}, Proceed()
	}

	// Check 2: relevance.
	if !hasKeywordRelevance(policy, keywords, matches, packets) {
		reasons = append(reasons, "no_keyword_relevance")
		return &AccountResult{Outcome: AccountInsufficientRefuse, ContractReasons: reasons}, Proceed()
	}
	if !everyEntityCovered(matches, packets) {
		reasons = append(reasons, "entity_not_covered")
		return &AccountResult{Outcome: AccountInsufficientRefuse, ContractReasons: reasons}, Proceed()
	}

	return &AccountResult{Outcome: AccountSufficient, ContractReasons: []string{"sufficient"}}, Proceed()
}

// hasKeywordRelevance requires at least min_keyword_match packets whose
// normalized text contains an extracted keyword. A packet surfaced as a
// detected entity's definition chunk counts as relevant on its own, since
// a structural list question's keywords never literally appear in
// definition chunks.
func hasKeywordRelevance(policy AccountPolicy, keywords []string, matches []catalog.EntityMatch, packets []retrieval.EvidencePacket) bool {
	if len(keywords) == 0 {
		return len(packets) > 0
	}
	detected := make(map[int64]bool, len(matches))
	for _, m := range matches {
		detected[m.Entity.ID] = true
	}
	matchCount := 0
	for _, p := range packets {
		if p.Chunk.Kind == catalog.ChunkDefinition && detected[p.Chunk.EntityID] {
			matchCount++
			continue
		}
		text := arabic.Normalize(p.Chunk.TextAr)
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				matchCount++
				break
			}
		}
	}
	return matchCount >= policy.MinKeywordMatch
}

func everyEntityCovered(matches []catalog.EntityMatch, packets []retrieval.EvidencePacket) bool {
	covered := make(map[int64]bool)
	for _, p := range packets {
		covered[p.Chunk.EntityID] = true
	}
	for _, m := range matches {
		if !covered[m.Entity.ID] {
			return false
		}
	}
	return true
}
