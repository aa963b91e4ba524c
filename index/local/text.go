package local

import "strings"

// stopWords are ignored when matching query words against a chunk.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "how": true, "what": true, "can": true, "i": true,
}

// significantWords lowercases text, trims punctuation and drops stop words.
func significantWords(text string) []string {
	words := strings.Fields(text)
	out := make([]string, 0, len(words))
	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}`*#"))
		if cleaned != "" && !stopWords[cleaned] {
			out = append(out, cleaned)
		}
	}
	return out
}

// containsAllWords reports whether every significant word of query occurs
// in text. A query with no significant words never matches.
func containsAllWords(text, query string) bool {
	queryWords := significantWords(query)
	if len(queryWords) == 0 {
		return false
	}
	present := make(map[string]bool)
	for _, w := range significantWords(text) {
		present[w] = true
	}
	for _, w := range queryWords {
		if !present[w] {
			return false
		}
	}
	return true
}
