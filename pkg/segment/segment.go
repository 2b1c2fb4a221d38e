package segment

import (
	"iter"
	"strings"

	"github.com/japaniel/wifireview/pkg/lexicon"
)

// Token is a single segmented word with an optional part-of-speech tag.
type Token struct {
	Word string // The text as it appears (e.g. "信号")
	POS  string // e.g. "n", "v", "a" (empty when tagging is off)
}

// IsNoun reports whether the tag is a noun class ("n", "nr", "nz", ...).
func (t Token) IsNoun() bool { return strings.HasPrefix(t.POS, "n") }

// IsVerb reports whether the tag is a verb class ("v", "vn", ...).
func (t Token) IsVerb() bool { return strings.HasPrefix(t.POS, "v") }

// Backend is the external word segmenter. Implementations must be safe for
// concurrent use once constructed.
type Backend interface {
	// Cut splits text into words.
	Cut(text string) []string
	// Pos splits text into words and tags each one.
	Pos(text string) []Token
}

// Segmenter adapts a Backend: it shapes the output into sequences and
// applies the stopword and empty-token filters.
type Segmenter struct {
	backend   Backend
	stopwords lexicon.WordSet
}

// New creates a Segmenter. A zero stopword set disables stopword filtering.
func New(backend Backend, stopwords lexicon.WordSet) *Segmenter {
	return &Segmenter{backend: backend, stopwords: stopwords}
}

func (s *Segmenter) keep(word string, filterStop bool) bool {
	if len(word) < 1 {
		return false
	}
	if filterStop && s.stopwords.Contains(word) {
		return false
	}
	return true
}

// Words yields the words of text. Each range over the returned sequence
// segments text again, so the sequence can be consumed more than once.
func (s *Segmenter) Words(text string, filterStop bool) iter.Seq[string] {
	return func(yield func(string) bool) {
		if text == "" {
			return
		}
		for _, w := range s.backend.Cut(text) {
			if !s.keep(w, filterStop) {
				continue
			}
			if !yield(w) {
				return
			}
		}
	}
}

// Tagged yields the part-of-speech tagged tokens of text.
func (s *Segmenter) Tagged(text string, filterStop bool) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		if text == "" {
			return
		}
		for _, tok := range s.backend.Pos(text) {
			if !s.keep(tok.Word, filterStop) {
				continue
			}
			if !yield(tok) {
				return
			}
		}
	}
}
