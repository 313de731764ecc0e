package catalog

import (
	"sort"
	"strings"

	"muhasibi/arabic"
)

// EntityMatch is one resolved entity with a confidence score, produced by
// the LISTEN stage's entity matching.
type EntityMatch struct {
	Entity     Entity
	Confidence float64
	Method     string // "exact" or "containment"; LISTEN's list projection sets "structural"
}

// Resolver matches question text against a read-only snapshot of the
// catalog. A Resolver is safe for concurrent use: it never mutates its
// entity snapshot after construction, so a request always sees one
// immutable view of the catalog.
type Resolver struct {
	entities []Entity
}

// NewResolver builds a Resolver over the given entities, precomputing each
// entity's normalized name.
func NewResolver(entities []Entity) *Resolver {
	snapshot := make([]Entity, len(entities))
	copy(snapshot, entities)
	for i := range snapshot {
		snapshot[i].normalizedName = arabic.Normalize(snapshot[i].NameAr)
	}
	return &Resolver{entities: snapshot}
}

// Match runs two-pass entity matching over an already-normalized question
// and its extracted keywords: exact normalized-name containment first,
// then token containment. Results are ordered by descending confidence,
// with ties broken by hierarchy depth (sub-value > core-value > pillar)
// then by entity ID for determinism.
func (r *Resolver) Match(normalizedQuestion string, keywords []string) []EntityMatch {
	if normalizedQuestion == "" {
		return nil
	}

	questionTokens := strings.Fields(normalizedQuestion)
	byEntity := make(map[int64]EntityMatch)

	// Pass (a): exact normalized match: the entity's full normalized name
	// appears verbatim in the normalized question.
	for _, e := range r.entities {
		if e.normalizedName == "" {
			continue
		}
		if strings.Contains(normalizedQuestion, e.normalizedName) {
			byEntity[e.ID] = EntityMatch{
				Entity:     e,
				Confidence: 1.0,
				Method:     "exact",
			}
		}
	}

	// Pass (b): token-containment: every token of the entity's normalized
	// name (length >= 3) appears somewhere among the question tokens.
	for _, e := range r.entities {
		if _, already := byEntity[e.ID]; already {
			continue
		}
		nameTokens := tokensAtLeast(e.normalizedName, 3)
		if len(nameTokens) == 0 {
			continue
		}
		if !allTokensPresent(nameTokens, questionTokens) {
			continue
		}
		noise := countNoiseTokens(questionTokens, nameTokens)
		confidence := 0.7 - 0.1*float64(noise)
		if confidence < 0 {
			confidence = 0
		}
		byEntity[e.ID] = EntityMatch{
			Entity:     e,
			Confidence: confidence,
			Method:     "containment",
		}
	}

	matches := make([]EntityMatch, 0, len(byEntity))
	for _, m := range byEntity {
		matches = append(matches, m)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		di, dj := matches[i].Entity.Kind.Depth(), matches[j].Entity.Kind.Depth()
		if di != dj {
			return di > dj
		}
		return matches[i].Entity.ID < matches[j].Entity.ID
	})

	return matches
}

// Pillars returns every pillar entity in the snapshot, ordered by ID.
// The list-pillars intent projects its structural answer from this set.
func (r *Resolver) Pillars() []Entity {
	var out []Entity
	for _, e := range r.entities {
		if e.Kind == KindPillar {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ChildrenOf returns the direct children of an entity, ordered by ID:
// core values under a pillar, sub-values under a core value.
func (r *Resolver) ChildrenOf(parentID int64) []Entity {
	var out []Entity
	for _, e := range r.entities {
		if e.ParentID != nil && *e.ParentID == parentID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func tokensAtLeast(s string, minLen int) []string {
	var out []string
	for _, t := range strings.Fields(s) {
		if len([]rune(t)) >= minLen {
			out = append(out, t)
		}
	}
	return out
}

func allTokensPresent(needles, haystack []string) bool {
	set := make(map[string]bool, len(haystack))
	for _, h := range haystack {
		set[h] = true
	}
	for _, n := range needles {
		if !set[n] {
			return false
		}
	}
	return true
}

// countNoiseTokens counts question tokens that are not part of the
// matched entity's name tokens. Each noise token costs a containment
// match 0.1 confidence.
func countNoiseTokens(questionTokens, nameTokens []string) int {
	nameSet := make(map[string]bool, len(nameTokens))
	for _, n := range nameTokens {
		nameSet[n] = true
	}
	noise := 0
	for _, q := range questionTokens {
		if !nameSet[q] {
			noise++
		}
	}
	return noise
}
