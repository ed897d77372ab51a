package search

import (
	"strings"
	"unicode"
)

// Words too common to count towards a verbatim match
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {},
	"by": {}, "do": {}, "for": {}, "from": {}, "have": {}, "how": {}, "in": {}, "is": {},
	"it": {}, "not": {}, "of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "this": {},
	"to": {}, "was": {}, "what": {}, "why": {}, "with": {}, "you": {},
}

// terms lowercases text, splits it on anything other than letters and
// digits, and drops stop words.
func terms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if _, stop := stopWords[f]; !stop {
			out = append(out, f)
		}
	}
	return out
}

// containsAllQueryWords reports whether every query term appears in document.
// A query made only of stop words never matches.
func containsAllQueryWords(document, query string) bool {
	want := terms(query)
	if len(want) == 0 {
		return false
	}

	have := make(map[string]struct{})
	for _, t := range terms(document) {
		have[t] = struct{}{}
	}
	for _, t := range want {
		if _, ok := have[t]; !ok {
			return false
		}
	}
	return true
}
