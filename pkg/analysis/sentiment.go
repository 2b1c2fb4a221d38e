// Package analysis turns segmented review text into sentiment labels,
// feature buckets, per-product reports and category scores.
//
// Every function is pure: lexicons and the category table arrive through a
// Resources value built once per process and shared read-only.
package analysis

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/japaniel/wifireview/pkg/lexicon"
)

// Resources holds the read-only lexicons used by the scorers.
type Resources struct {
	Positive   lexicon.WordSet
	Negative   lexicon.WordSet
	Categories lexicon.CategoryTable
}

// Sentiment is the polarity assigned to one review.
type Sentiment int

const (
	Neutral Sentiment = iota
	Positive
	Negative
)

var sentimentNames = map[Sentiment]string{
	Neutral:  "中性",
	Positive: "正面",
	Negative: "负面",
}

// String returns the Chinese label used in reports and tables.
func (s Sentiment) String() string {
	if name, ok := sentimentNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Sentiment(%d)", int(s))
}

// MarshalJSON encodes the sentiment as its label.
func (s Sentiment) MarshalJSON() ([]byte, error) {
	return jsoniter.Marshal(s.String())
}

// SentimentResult is the outcome of classifying one word list.
type SentimentResult struct {
	Label         Sentiment `json:"sentiment_label"`
	PositiveCount int       `json:"positive_count"`
	NegativeCount int       `json:"negative_count"`
}

// ClassifySentiment counts lexicon hits. Positive or negative requires a
// strict majority; equal counts, including zero and zero, are neutral.
// There is no negation or phrase handling.
func ClassifySentiment(words []string, res *Resources) SentimentResult {
	var r SentimentResult
	for _, w := range words {
		if res.Positive.Contains(w) {
			r.PositiveCount++
		}
		if res.Negative.Contains(w) {
			r.NegativeCount++
		}
	}
	switch {
	case r.PositiveCount > r.NegativeCount:
		r.Label = Positive
	case r.NegativeCount > r.PositiveCount:
		r.Label = Negative
	default:
		r.Label = Neutral
	}
	return r
}
