package segment

import (
	"fmt"
	"strings"

	"github.com/go-ego/gse"
)

// GSE is a Backend using the gse segmenter with its embedded simplified
// Chinese dictionary.
type GSE struct {
	seg gse.Segmenter
}

// NewGSE loads the embedded dictionary. Loading takes a second or two, so
// create one GSE per process and share it.
func NewGSE(userDicts ...string) (*GSE, error) {
	g := &GSE{}
	// Review text is cleaned of ASCII before segmentation, but keep
	// alphanumerics intact for callers that segment raw text.
	g.seg.AlphaNum = true
	if err := g.seg.LoadDictEmbed("zh"); err != nil {
		return nil, fmt.Errorf("load embedded dictionary: %w", err)
	}
	for _, d := range userDicts {
		if err := g.seg.LoadDict(d); err != nil {
			return nil, fmt.Errorf("load user dictionary %s: %w", d, err)
		}
	}
	return g, nil
}

// Cut implements Backend using HMM for unknown words.
func (g *GSE) Cut(text string) []string {
	return g.seg.Cut(text, true)
}

// Pos implements Backend using the dictionary part-of-speech tags.
func (g *GSE) Pos(text string) []Token {
	segs := g.seg.Pos(text, false)
	out := make([]Token, 0, len(segs))
	for _, p := range segs {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		out = append(out, Token{Word: p.Text, POS: p.Pos})
	}
	return out
}
