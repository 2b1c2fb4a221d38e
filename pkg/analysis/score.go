package analysis

import (
	"github.com/japaniel/wifireview/pkg/lexicon"
)

const (
	// NeutralScore is assigned when a category has no matched words at all.
	NeutralScore = 5.0
	MinScore     = 1.0
	MaxScore     = 10.0
	scoreScale   = 9.4
)

// CategoryScore is the score of one category.
type CategoryScore struct {
	Name  string  `json:"name"`
	Key   string  `json:"key"`
	Score float64 `json:"score"`
}

// Scores holds one entry per category, in table order.
type Scores []CategoryScore

// Map returns the scores keyed by category name.
func (s Scores) Map() map[string]float64 {
	m := make(map[string]float64, len(s))
	for _, c := range s {
		m[c.Name] = c.Score
	}
	return m
}

// ScoreCategories turns a report into a score per category of table.
// With p and n the summed counts of the kept positive and negative words,
// the score is clamp((p-n)/(p+n)*9.4, 1, 10), or NeutralScore when both are
// zero. Scores are not rounded.
func ScoreCategories(report Report, table lexicon.CategoryTable) Scores {
	cats := table.Categories()
	scores := make(Scores, 0, len(cats))
	for _, c := range cats {
		p := sumCounts(report.Positive[c.Name])
		n := sumCounts(report.Negative[c.Name])
		scores = append(scores, CategoryScore{Name: c.Name, Key: c.Key, Score: score(p, n)})
	}
	return scores
}

func score(pos, neg int) float64 {
	if pos+neg == 0 {
		return NeutralScore
	}
	raw := float64(pos-neg) / float64(pos+neg)
	return min(MaxScore, max(MinScore, raw*scoreScale))
}

func sumCounts(wcs []WordCount) int {
	total := 0
	for _, wc := range wcs {
		total += wc.Count
	}
	return total
}
