package pipeline

import (
	"strings"

	"muhasibi/arabic"
	"muhasibi/catalog"
)

// pillarListMarkers must all appear for the list-pillars intent. They are
// written in normalized form ("ركائز" normalizes to "ركايز").
var pillarListMarkers = []string{"ركايز", "خمس"}

// Resolver is the entity-matching collaborator LISTEN depends on. The
// hierarchy accessors back the structural list intents: a list-pillars
// question names no pillar, so the entity set to enumerate comes from the
// catalog snapshot, not from name matching.
type Resolver interface {
	Match(normalizedQuestion string, keywords []string) []catalog.EntityMatch
	Pillars() []catalog.Entity
	ChildrenOf(parentID int64) []catalog.Entity
}

// Listen normalizes the question, extracts keywords, resolves entities,
// and classifies intent. It never raises: malformed input degrades to an
// empty keyword/entity list and intent=ambiguous. policy supplies the
// fiqh/worship marker sets the scope classification shares with ACCOUNT.
func Listen(question string, resolver Resolver, policy AccountPolicy) (*ListenResult, StageResult) {
	if strings.TrimSpace(question) == "" {
		return &ListenResult{Intent: IntentAmbiguous}, Fail("input_malformed")
	}

	normalized := arabic.Normalize(question)
	keywords := arabic.ExtractKeywords(normalized)
	matches := resolver.Match(normalized, keywords)

	intent, inScope := classifyIntent(normalized, matches, policy.withDefaults())
	matches = expandListMatches(intent, matches, resolver)

	return &ListenResult{
		NormalizedQuestion: normalized,
		Keywords:           keywords,
		EntityMatches:      matches,
		Intent:             intent,
		InScope:            inScope,
	}, Proceed()
}

// classifyIntent applies the deterministic marker rules. The model
// fallback (modelclient.ClassifyIntent) is invoked by the orchestrator
// only when this returns ambiguous.
func classifyIntent(normalized string, matches []catalog.EntityMatch, policy AccountPolicy) (Intent, bool) {
	if containsAll(normalized, pillarListMarkers) {
		return IntentListPillars, true
	}
	if strings.Contains(normalized, "ركايز") && hasEntityOfKind(matches, catalog.KindPillar) {
		return IntentListCoreValuesInPillar, true
	}
	if strings.Contains(normalized, "قيم") && hasEntityOfKind(matches, catalog.KindCoreValue) {
		return IntentListSubValuesInCore, true
	}
	// Marker literals below are written in their normalized form (bare
	// alef, ha for ta-marbuta, no tashkeel) since they match against the
	// already-normalized question.
	if containsAny(normalized, []string{"عرف", "تعريف", "ما هو", "ما هي"}) {
		return IntentDefinition, true
	}
	if containsAny(normalized, []string{"الفرق بين", "قارن", "مقارنه"}) {
		if crossesHierarchy(matches) {
			return IntentConnectAcrossPillars, true
		}
		return IntentComparison, true
	}
	if containsAny(normalized, []string{"العلاقه بين", "كيف ترتبط", "الصله بين"}) {
		return IntentConnectAcrossPillars, true
	}
	if containsAny(normalized, []string{"كيف اطبق", "كيف يمكنني", "في حياتي اليوميه"}) {
		return IntentPracticalGuidance, true
	}
	if containsAnyNorm(normalized, policy.FiqhMarkers) && containsAnyNorm(normalized, policy.WorshipTerms) {
		return IntentFiqhRuling, false
	}
	if containsAny(normalized, []string{"من هو", "من هي", "سيره", "مولف"}) {
		return IntentBiography, false
	}
	if containsAny(normalized, []string{"عاصمه", "كم يبلغ", "متى وقعت"}) {
		return IntentGeneralKnowledge, false
	}
	// No marker and no entity: leave the scope decision to ACCOUNT's
	// existence and relevance checks rather than refusing here.
	return IntentAmbiguous, true
}

// expandListMatches replaces the matched entity set with the catalog
// projection a structural list intent enumerates: all pillars, or the
// direct children of the matched pillar/core value. When the projection
// is empty (no such entities in the catalog) the name matches are kept so
// ACCOUNT can still judge the request on its own evidence.
func expandListMatches(intent Intent, matches []catalog.EntityMatch, resolver Resolver) []catalog.EntityMatch {
	var projected []catalog.Entity
	switch intent {
	case IntentListPillars:
		projected = resolver.Pillars()
	case IntentListCoreValuesInPillar:
		if parent, ok := firstOfKind(matches, catalog.KindPillar); ok {
			projected = resolver.ChildrenOf(parent.ID)
		}
	case IntentListSubValuesInCore:
		if parent, ok := firstOfKind(matches, catalog.KindCoreValue); ok {
			projected = resolver.ChildrenOf(parent.ID)
		}
	default:
		return matches
	}
	if len(projected) == 0 {
		return matches
	}
	out := make([]catalog.EntityMatch, len(projected))
	for i, e := range projected {
		out[i] = catalog.EntityMatch{Entity: e, Confidence: 1.0, Method: "structural"}
	}
	return out
}

func firstOfKind(matches []catalog.EntityMatch, kind catalog.EntityKind) (catalog.Entity, bool) {
	for _, m := range matches {
		if m.Entity.Kind == kind {
			return m.Entity, true
		}
	}
	return catalog.Entity{}, false
}

func containsAll(text string, markers []string) bool {
	for _, m := range markers {
		if !strings.Contains(text, m) {
			return false
		}
	}
	return true
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// containsAnyNorm normalizes each marker before matching. The fiqh and
// worship marker sets are operator-configurable and may arrive with
// ta-marbuta or tashkeel forms the normalized question no longer carries.
func containsAnyNorm(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, arabic.Normalize(m)) {
			return true
		}
	}
	return false
}

// crossesHierarchy reports whether a comparison spans entities under
// different parents, which upgrades the intent to connect_across_pillars.
func crossesHierarchy(matches []catalog.EntityMatch) bool {
	var seen *int64
	for _, m := range matches {
		p := m.Entity.ParentID
		if p == nil {
			continue
		}
		if seen == nil {
			seen = p
			continue
		}
		if *seen != *p {
			return true
		}
	}
	return false
}

func hasEntityOfKind(matches []catalog.EntityMatch, kind catalog.EntityKind) bool {
	for _, m := range matches {
		if m.Entity.Kind == kind {
			return true
		}
	}
	return false
}
