package arabic

import "strings"

// stopWords are removed entirely during keyword extraction.
var stopWords = map[string]bool{
	"الى": true, "إلى": true, "من": true, "على": true, "في": true,
	"عن": true, "ان": true, "أن": true, "إن": true, "كان": true,
	"هذا": true, "هذه": true, "ذلك": true, "تلك": true,
	"التي": true, "الذي": true, "اللذان": true, "اللتان": true,
	"و": true, "ثم": true, "او": true, "أو": true, "لا": true,
	"ما": true, "لم": true, "لن": true, "قد": true, "كل": true,
	"بعض": true, "غير": true, "بين": true, "عند": true, "مع": true,
}

// prefixParticles are stripped from the front of a token to compute its
// match key; the unstripped token is kept for display. Order matters: the
// conjunction/preposition particles (و ف ب ك ل) strip before the definite
// article (ال) so "والتزكية" -> "التزكية" -> "تزكية".
var prefixParticles = []string{"و", "ف", "ال", "ب", "ك", "ل"}

// stripPrefixParticles removes leading particles from a single normalized
// token, repeatedly, to compute a canonical match key.
func stripPrefixParticles(token string) string {
	for {
		stripped := false
		for _, p := range prefixParticles {
			if strings.HasPrefix(token, p) && len([]rune(token)) > len([]rune(p))+2 {
				token = strings.TrimPrefix(token, p)
				stripped = true
				break
			}
		}
		if !stripped {
			break
		}
	}
	return token
}

// ExtractKeywords returns the meaningful, normalized, stopword-filtered,
// particle-stripped tokens of an already-normalized question. Multi-word
// entity names are not split here; callers match them separately against
// the full normalized question string.
func ExtractKeywords(normalizedText string) []string {
	fields := strings.Fields(normalizedText)
	seen := make(map[string]bool, len(fields))
	var keywords []string
	for _, f := range fields {
		if stopWords[f] {
			continue
		}
		key := stripPrefixParticles(f)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		keywords = append(keywords, key)
	}
	return keywords
}

// MatchKey returns the canonical matching form of a single word: normalize
// then strip prefix particles. Used by the entity resolver.
func MatchKey(word string) string {
	return stripPrefixParticles(Normalize(word))
}
