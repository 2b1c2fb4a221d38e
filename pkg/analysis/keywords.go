package analysis

import (
	"math/rand/v2"
)

const (
	// Placeholder fills keyword and sample slots that have no data.
	Placeholder = "暂无"
	// KeywordSlots is the fixed width of a keyword row.
	KeywordSlots = 50
	// SampleSlots is how many positive and how many negative texts are sampled.
	SampleSlots = 3
)

// DefaultKeywordExclusions are dropped from keyword rows: they appear in
// nearly every router review and say nothing about the product.
var DefaultKeywordExclusions = []string{"路由器", "款"}

// TopKeywords takes the n most frequent words, then removes excluded words
// from that selection, then pads with (Placeholder, 0) back to n entries.
// Removal happens after the cut, so a row may hold fewer than n real words
// even when more distinct words exist.
func TopKeywords(words []string, n int, exclude []string) []WordCount {
	skip := make(map[string]bool, len(exclude))
	for _, w := range exclude {
		skip[w] = true
	}
	out := make([]WordCount, 0, n)
	for _, wc := range TopN(words, n) {
		if skip[wc.Word] {
			continue
		}
		out = append(out, wc)
	}
	for len(out) < n {
		out = append(out, WordCount{Word: Placeholder})
	}
	return out
}

// SampleTexts picks n distinct entries at random when at least n exist;
// otherwise it returns all of them followed by Placeholder up to n.
func SampleTexts(texts []string, n int, rng *rand.Rand) []string {
	if len(texts) < n {
		out := make([]string, 0, n)
		out = append(out, texts...)
		for len(out) < n {
			out = append(out, Placeholder)
		}
		return out
	}
	pool := make([]string, len(texts))
	copy(pool, texts)
	// Partial Fisher-Yates: the first n slots end up as the sample.
	for i := 0; i < n; i++ {
		j := i + rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}
