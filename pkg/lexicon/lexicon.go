package lexicon

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// WordSet is an immutable set of words loaded from a one-word-per-line file.
type WordSet struct {
	words map[string]struct{}
}

// NewWordSet builds a set from the given words. Empty strings are ignored.
func NewWordSet(words ...string) WordSet {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		m[w] = struct{}{}
	}
	return WordSet{words: m}
}

// Contains reports whether w is in the set. The zero WordSet is empty.
func (s WordSet) Contains(w string) bool {
	_, ok := s.words[w]
	return ok
}

// Len returns the number of words in the set.
func (s WordSet) Len() int { return len(s.words) }

// Origin records where a resource came from. When Defaulted is true the
// resource could not be read and an empty default was used instead; Err
// holds the reason.
type Origin struct {
	Path      string
	Defaulted bool
	Err       error
}

// ParseWordSet reads one word per line, trimming surrounding whitespace and
// skipping blank lines.
func ParseWordSet(r io.Reader) (WordSet, error) {
	m := make(map[string]struct{})
	scanner := bufio.NewScanner(r)
	// Some lexicon files carry very long comment lines.
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		w := strings.TrimSpace(scanner.Text())
		// Strip a UTF-8 BOM left by editors on the first line.
		w = strings.TrimPrefix(w, "\ufeff")
		if w == "" {
			continue
		}
		m[w] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return WordSet{}, err
	}
	return WordSet{words: m}, nil
}

// LoadWordSet loads a word list from path. A missing or unreadable file is
// not an error: an empty set is returned and the Origin says so, leaving the
// caller to decide how loudly to warn.
func LoadWordSet(path string) (WordSet, Origin) {
	origin := Origin{Path: path}
	if path == "" {
		origin.Defaulted = true
		origin.Err = errors.New("no path configured")
		return NewWordSet(), origin
	}
	f, err := os.Open(path)
	if err != nil {
		origin.Defaulted = true
		origin.Err = err
		return NewWordSet(), origin
	}
	defer f.Close()

	set, err := ParseWordSet(f)
	if err != nil {
		origin.Defaulted = true
		origin.Err = fmt.Errorf("read %s: %w", path, err)
		return NewWordSet(), origin
	}
	return set, origin
}
