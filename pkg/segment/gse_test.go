package segment

import (
	"slices"
	"strings"
	"testing"

	"github.com/japaniel/wifireview/pkg/lexicon"
)

func TestGSESegmentsChinese(t *testing.T) {
	if testing.Short() {
		t.Skip("loading the embedded dictionary is slow")
	}
	backend, err := NewGSE()
	if err != nil {
		t.Fatalf("Failed to create gse backend: %v", err)
	}

	text := "路由器信号很好"
	words := backend.Cut(text)
	if len(words) == 0 {
		t.Fatal("No words found")
	}
	if strings.Join(words, "") != text {
		t.Fatalf("segmentation should cover the input exactly, got %v", words)
	}

	tokens := backend.Pos(text)
	if len(tokens) == 0 {
		t.Fatal("No tagged tokens found")
	}
	for _, tok := range tokens {
		if tok.Word == "" {
			t.Fatalf("empty token in %v", tokens)
		}
	}

	seg := New(backend, lexicon.WordSet{})
	if got := slices.Collect(seg.Words(text, true)); len(got) != len(words) {
		t.Fatalf("adapter changed word count without stopwords: %v vs %v", got, words)
	}
	t.Logf("Segmented %q into %v", text, tokens)
}
