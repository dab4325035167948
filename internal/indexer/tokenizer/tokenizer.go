// Package tokenizer turns raw HTML documents into the ordered sequence of
// normalised terms that the index is built from. Tokens are matched with a
// word pattern that keeps dotted runs such as "e.g" and "3.14" together,
// lower-cased, stemmed with the Porter2 English stemmer, and filtered
// against a stopword set.
package tokenizer

import (
	"regexp"
	"strings"

	"github.com/kljensen/snowball/english"
)

var tokenPattern = regexp.MustCompile(`\w+(?:\.?\w+)*`)

// Token represents a single normalised term and its 1-based rank among the
// document's retained tokens.
type Token struct {
	Term     string
	Position int
}

// Normalizer applies the text pipeline. It holds no per-document state and
// is safe to reuse across documents.
type Normalizer struct {
	stopwords map[string]struct{}
}

// New returns a Normalizer filtering against stopwords. A nil set selects
// the embedded English stoplist.
func New(stopwords map[string]struct{}) *Normalizer {
	if stopwords == nil {
		stopwords = DefaultStopwords()
	}
	return &Normalizer{stopwords: stopwords}
}

// Normalize runs the whole pipeline over one document's raw bytes.
func (n *Normalizer) Normalize(raw []byte) ([]Token, error) {
	text, err := ExtractText(raw)
	if err != nil {
		return nil, err
	}
	return n.Tokenize(text), nil
}

// Tokenize splits text into stemmed, lower-cased Tokens with stopwords
// removed. Positions count retained tokens only, so dropping a stopword
// shifts every later position down by one.
func (n *Normalizer) Tokenize(text string) []Token {
	words := tokenPattern.FindAllString(text, -1)
	tokens := make([]Token, 0, len(words))
	for _, word := range words {
		term := Stem(strings.ToLower(word))
		if n.IsStopword(term) {
			continue
		}
		tokens = append(tokens, Token{
			Term:     term,
			Position: len(tokens) + 1,
		})
	}
	return tokens
}

// NormalizeQuery maps a user-supplied term onto index vocabulary. It
// lower-cases and stems but does not filter stopwords, so a stopword query
// normalises to a term the index never contains.
func (n *Normalizer) NormalizeQuery(raw string) string {
	return Stem(strings.ToLower(strings.TrimSpace(raw)))
}

// IsStopword reports whether term is in the normalizer's stopword set.
func (n *Normalizer) IsStopword(term string) bool {
	_, ok := n.stopwords[term]
	return ok
}

// Stem reduces a lower-cased word to its Porter2 root.
func Stem(word string) string {
	return english.Stem(word, true)
}
