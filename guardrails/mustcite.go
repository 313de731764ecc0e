package guardrails

import "strings"

// definitionVerbMarkers, quantifierMarkers, and scripturalTermMarkers are
// the factual-claim markers that make a sentence "must-cite": any
// sentence containing one of these requires a resolved
// or approximate citation, or the answer degrades to PASS_PARTIAL.
var definitionVerbMarkers = []string{
	"هو", "هي", "تعني", "يعني", "يُعرَّف", "تُعرَّف", "يعرّف", "تعرّف", "يقصد بـ", "المقصود",
}

var quantifierMarkers = []string{
	"كل", "جميع", "معظم", "نسبة", "عدد", "أكثر", "أقل", "خمس", "ثلاث", "أربع", "بعض",
}

var scripturalTermMarkers = []string{
	"القرآن", "الحديث", "آية", "سورة", "حديث", "رسول", "النبي", "الله", "تعالى", "صلى الله عليه وسلم",
}

// IsMustCiteSentence reports whether a sentence contains any definition
// verb, quantifier, or scriptural-term marker and therefore requires a
// citation.
func IsMustCiteSentence(sentence string) bool {
	for _, groups := range [][]string{definitionVerbMarkers, quantifierMarkers, scripturalTermMarkers} {
		for _, marker := range groups {
			if strings.Contains(sentence, marker) {
				return true
			}
		}
	}
	return false
}

// MustCiteSentences returns the subset of an answer's sentences that
// require a citation.
func MustCiteSentences(answerAr string) []string {
	var out []string
	for _, s := range SplitSentences(answerAr) {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if IsMustCiteSentence(s) {
			out = append(out, s)
		}
	}
	return out
}
