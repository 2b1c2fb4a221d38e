package analysis

import (
	"math/rand/v2"
	"reflect"
	"testing"

	jsoniter "github.com/json-iterator/go"

	"github.com/japaniel/wifireview/pkg/lexicon"
	"github.com/japaniel/wifireview/pkg/segment"
)

func testResources() *Resources {
	return &Resources{
		Positive:   lexicon.NewWordSet("强", "稳定", "好用", "快"),
		Negative:   lexicon.NewWordSet("断流", "差", "慢"),
		Categories: lexicon.DefaultCategories(),
	}
}

func TestClassifySentiment(t *testing.T) {
	res := testResources()
	tests := []struct {
		name  string
		words []string
		want  Sentiment
		pos   int
		neg   int
	}{
		{"positive", []string{"信号", "强"}, Positive, 1, 0},
		{"negative", []string{"断流", "差", "稳定"}, Negative, 1, 2},
		{"tie", []string{"快", "慢"}, Neutral, 1, 1},
		{"no hits", []string{"路由器", "包装"}, Neutral, 0, 0},
		{"empty", nil, Neutral, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifySentiment(tt.words, res)
			if got.Label != tt.want || got.PositiveCount != tt.pos || got.NegativeCount != tt.neg {
				t.Fatalf("ClassifySentiment(%v) = %+v, want %v %d/%d", tt.words, got, tt.want, tt.pos, tt.neg)
			}
		})
	}
}

func TestSentimentJSON(t *testing.T) {
	b, err := jsoniter.Marshal(SentimentResult{Label: Negative, NegativeCount: 2})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"sentiment_label":"负面","positive_count":0,"negative_count":2}`
	if string(b) != want {
		t.Fatalf("got %s, want %s", b, want)
	}
	if Sentiment(9).String() != "Sentiment(9)" {
		t.Fatalf("unexpected label for unknown sentiment: %s", Sentiment(9))
	}
}

func TestExtractFeatures(t *testing.T) {
	table := lexicon.DefaultCategories()
	tokens := []segment.Token{
		{Word: "信号", POS: "n"},
		{Word: "断流", POS: "v"},
		{Word: "包装", POS: "n"},
		{Word: "喜欢", POS: "v"},
		{Word: "信号", POS: "n"},
		{Word: "很", POS: "d"},
		{Word: "价格", POS: "n"},
	}
	got := ExtractFeatures(tokens, table)
	want := Features{
		"信号":                  {"信号", "信号"},
		"稳定性":                 {"断流"},
		"性价比":                 {"价格"},
		lexicon.OtherCategory: {"包装"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtractFeatures = %v, want %v", got, want)
	}
}

func TestExtractFeaturesSingleCategoryPerWord(t *testing.T) {
	table, err := lexicon.NewCategoryTable([]lexicon.Category{
		{Name: "A", Keywords: []string{"网速"}},
		{Name: "B", Keywords: []string{"网速", "速度"}},
	})
	if err != nil {
		t.Fatalf("NewCategoryTable: %v", err)
	}
	got := ExtractFeatures([]segment.Token{{Word: "网速", POS: "n"}, {Word: "速度", POS: "n"}}, table)
	if len(got["A"]) != 1 || len(got["B"]) != 1 || got["B"][0] != "速度" {
		t.Fatalf("first-match violated: %v", got)
	}
}

func TestTopNOrdering(t *testing.T) {
	words := []string{"b", "a", "c", "a", "d", "b", "e", "f", "g", "c"}
	got := TopN(words, 5)
	want := []WordCount{{"b", 2}, {"a", 2}, {"c", 2}, {"d", 1}, {"e", 1}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("TopN = %v, want %v", got, want)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Count > got[i-1].Count {
			t.Fatalf("not descending at %d: %v", i, got)
		}
	}
	if all := TopN(words, 0); len(all) != 7 {
		t.Fatalf("TopN(0) returned %d entries, want 7", len(all))
	}
}

func TestBuildReportExcludesNeutral(t *testing.T) {
	reviews := []ReviewResult{
		{Sentiment: SentimentResult{Label: Positive}, Features: Features{"信号": {"信号"}}},
		{Sentiment: SentimentResult{Label: Neutral}, Features: Features{"信号": {"信号", "信号"}}},
		{Sentiment: SentimentResult{Label: Negative}, Features: Features{"稳定性": {"断流"}}},
	}
	r := BuildReport(reviews)
	if r.Statistics != (Statistics{Total: 3, Positive: 1, Negative: 1}) {
		t.Fatalf("statistics = %+v", r.Statistics)
	}
	if got := r.Positive["信号"]; len(got) != 1 || got[0].Count != 1 {
		t.Fatalf("neutral review leaked into positive side: %v", got)
	}
	if _, ok := r.Negative["信号"]; ok {
		t.Fatalf("unexpected negative 信号 entry: %v", r.Negative)
	}
}

func TestScoreRange(t *testing.T) {
	for p := 0; p <= 12; p++ {
		for n := 0; n <= 12; n++ {
			s := score(p, n)
			if s < MinScore || s > MaxScore {
				t.Fatalf("score(%d,%d) = %v out of range", p, n, s)
			}
		}
	}
	if score(0, 0) != NeutralScore {
		t.Fatalf("score(0,0) = %v, want %v", score(0, 0), NeutralScore)
	}
}

// Four reviews: two praise the signal and stability, one complains about
// dropouts, one says nothing the lexicons know.
func TestScenarioFourReviews(t *testing.T) {
	res := testResources()
	type input struct {
		words  []string
		tokens []segment.Token
	}
	inputs := []input{
		{[]string{"信号", "强"}, []segment.Token{{Word: "信号", POS: "n"}, {Word: "强", POS: "a"}}},
		{[]string{"稳定"}, []segment.Token{{Word: "稳定", POS: "v"}}},
		{[]string{"断流"}, []segment.Token{{Word: "断流", POS: "v"}}},
		{[]string{"包装", "盒子"}, []segment.Token{{Word: "包装", POS: "n"}, {Word: "盒子", POS: "n"}}},
	}
	var results []ReviewResult
	for _, in := range inputs {
		results = append(results, ReviewResult{
			Sentiment: ClassifySentiment(in.words, res),
			Features:  ExtractFeatures(in.tokens, res.Categories),
		})
	}
	report := BuildReport(results)
	scores := ScoreCategories(report, res.Categories).Map()

	if scores["信号"] != 9.4 {
		t.Fatalf("信号 score = %v, want 9.4", scores["信号"])
	}
	if scores["稳定性"] != MinScore {
		t.Fatalf("稳定性 score = %v, want %v", scores["稳定性"], MinScore)
	}
	if scores["服务"] != NeutralScore {
		t.Fatalf("服务 score = %v, want %v", scores["服务"], NeutralScore)
	}
	if report.Statistics.Total != 4 || report.Statistics.Positive != 2 || report.Statistics.Negative != 1 {
		t.Fatalf("statistics = %+v", report.Statistics)
	}
}

func TestScoreCategoriesEmptyReport(t *testing.T) {
	table := lexicon.DefaultCategories()
	scores := ScoreCategories(BuildReport(nil), table)
	if len(scores) != table.Len() {
		t.Fatalf("got %d scores, want %d", len(scores), table.Len())
	}
	for i, s := range scores {
		if s.Name != table.Names()[i] {
			t.Fatalf("score %d is %s, want %s", i, s.Name, table.Names()[i])
		}
		if s.Score != NeutralScore {
			t.Fatalf("%s = %v, want %v", s.Name, s.Score, NeutralScore)
		}
	}
}

func TestTopKeywordsExcludesAfterCut(t *testing.T) {
	words := []string{"路由器", "路由器", "信号", "款", "速度"}
	got := TopKeywords(words, 4, DefaultKeywordExclusions)
	want := []WordCount{{"信号", 1}, {"速度", 1}, {Placeholder, 0}, {Placeholder, 0}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("TopKeywords = %v, want %v", got, want)
	}

	empty := TopKeywords(nil, KeywordSlots, DefaultKeywordExclusions)
	if len(empty) != KeywordSlots || empty[KeywordSlots-1].Word != Placeholder {
		t.Fatalf("empty keyword row not padded: %d entries", len(empty))
	}
}

func TestSampleTexts(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	short := SampleTexts([]string{"好"}, SampleSlots, rng)
	if !reflect.DeepEqual(short, []string{"好", Placeholder, Placeholder}) {
		t.Fatalf("short sample = %v", short)
	}

	pool := []string{"a", "b", "c", "d", "e"}
	got := SampleTexts(pool, SampleSlots, rng)
	if len(got) != SampleSlots {
		t.Fatalf("sample has %d entries", len(got))
	}
	seen := map[string]bool{}
	for _, s := range got {
		if seen[s] {
			t.Fatalf("duplicate in sample: %v", got)
		}
		seen[s] = true
	}
	if !reflect.DeepEqual(pool, []string{"a", "b", "c", "d", "e"}) {
		t.Fatalf("input mutated: %v", pool)
	}
}
