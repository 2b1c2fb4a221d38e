package analysis

import (
	"github.com/japaniel/wifireview/pkg/lexicon"
	"github.com/japaniel/wifireview/pkg/segment"
)

// Features maps a category name (or lexicon.OtherCategory) to the words of
// one review that fell into it, in order, duplicates kept.
type Features map[string][]string

// ExtractFeatures buckets nouns and verbs by category. A word goes to the
// first category of the table that lists it; unmatched nouns go to the
// "other" bucket and unmatched verbs are dropped.
func ExtractFeatures(tokens []segment.Token, table lexicon.CategoryTable) Features {
	features := make(Features)
	for _, tok := range tokens {
		noun, verb := tok.IsNoun(), tok.IsVerb()
		if !noun && !verb {
			continue
		}
		if cat, ok := table.Match(tok.Word); ok {
			features[cat] = append(features[cat], tok.Word)
			continue
		}
		if noun {
			features[lexicon.OtherCategory] = append(features[lexicon.OtherCategory], tok.Word)
		}
	}
	return features
}
