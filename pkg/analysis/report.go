package analysis

import (
	"sort"
)

// TopFeatureWords is how many words per category a report keeps.
const TopFeatureWords = 5

// WordCount is a word with its number of occurrences.
type WordCount struct {
	Word  string `json:"特征词"`
	Count int    `json:"出现次数"`
}

// Statistics counts the reviews that went into a report.
type Statistics struct {
	Total    int `json:"总评论数"`
	Positive int `json:"正面评论数"`
	Negative int `json:"负面评论数"`
}

// Report is the per-product summary of positive and negative feature words.
type Report struct {
	Positive      map[string][]WordCount `json:"优点"`
	Negative      map[string][]WordCount `json:"缺点"`
	Statistics    Statistics             `json:"statistics"`
	FeatureScores map[string]float64     `json:"feature_scores,omitempty"`
}

// ReviewResult is what the pipeline keeps about one review.
type ReviewResult struct {
	Sentiment SentimentResult
	Features  Features
}

// BuildReport aggregates feature words by polarity. Only positive reviews
// feed the positive side and only negative reviews the negative side;
// neutral reviews count toward Total and nothing else.
func BuildReport(reviews []ReviewResult) Report {
	pos := make(map[string][]string)
	neg := make(map[string][]string)
	report := Report{Statistics: Statistics{Total: len(reviews)}}

	for _, r := range reviews {
		var side map[string][]string
		switch r.Sentiment.Label {
		case Positive:
			report.Statistics.Positive++
			side = pos
		case Negative:
			report.Statistics.Negative++
			side = neg
		default:
			continue
		}
		for cat, words := range r.Features {
			side[cat] = append(side[cat], words...)
		}
	}

	report.Positive = topByCategory(pos)
	report.Negative = topByCategory(neg)
	return report
}

func topByCategory(words map[string][]string) map[string][]WordCount {
	out := make(map[string][]WordCount, len(words))
	for cat, ws := range words {
		out[cat] = TopN(ws, TopFeatureWords)
	}
	return out
}

// TopN counts words and returns the n most frequent, highest count first.
// Words with equal counts keep the order in which they were first seen.
// n <= 0 returns every distinct word.
func TopN(words []string, n int) []WordCount {
	counts := make(map[string]int, len(words))
	var order []string
	for _, w := range words {
		if _, ok := counts[w]; !ok {
			order = append(order, w)
		}
		counts[w]++
	}
	out := make([]WordCount, len(order))
	for i, w := range order {
		out[i] = WordCount{Word: w, Count: counts[w]}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
