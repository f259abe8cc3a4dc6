// Package lingua turns raw article text into cleaned and tagged token
// renditions plus part-of-speech frequency profiles.
package lingua

import (
	"fmt"
	"strings"
	"unicode"

	prose "github.com/jdkato/prose/v2"
	"github.com/kljensen/snowball"
)

// Token is one analyzed word: its surface form, part-of-speech tag, and stem.
type Token struct {
	Text string
	Tag  string
	Stem string
}

// Analyzer tokenizes and tags English text.
type Analyzer struct {
	language string
}

// NewAnalyzer builds an Analyzer for English text.
func NewAnalyzer() *Analyzer {
	return &Analyzer{language: "english"}
}

// Analyze tokenizes text and returns word tokens with tags and stems.
// Punctuation and other non-word tokens are dropped.
func (a *Analyzer) Analyze(text string) ([]Token, error) {
	doc, err := prose.NewDocument(text, prose.WithExtraction(false))
	if err != nil {
		return nil, fmt.Errorf("analyze text: %w", err)
	}

	var tokens []Token
	for _, tok := range doc.Tokens() {
		if !isWord(tok.Text) {
			continue
		}
		lower := strings.ToLower(tok.Text)
		stem, err := snowball.Stem(lower, a.language, false)
		if err != nil {
			stem = lower
		}
		tokens = append(tokens, Token{Text: lower, Tag: tok.Tag, Stem: stem})
	}
	return tokens, nil
}

// Cleaned renders tokens as a lowercased, punctuation-free stream.
func Cleaned(tokens []Token) string {
	parts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		parts = append(parts, tok.Text)
	}
	return strings.Join(parts, " ")
}

// Tagged renders tokens as word<TAG> pairs.
func Tagged(tokens []Token) string {
	parts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		parts = append(parts, tok.Text+"<"+tok.Tag+">")
	}
	return strings.Join(parts, " ")
}

// Stemmed renders tokens as their stems.
func Stemmed(tokens []Token) string {
	parts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		parts = append(parts, tok.Stem)
	}
	return strings.Join(parts, " ")
}

// POSFrequencies counts occurrences per alphabetic part-of-speech tag.
func POSFrequencies(tokens []Token) map[string]int {
	freq := make(map[string]int)
	for _, tok := range tokens {
		if !isAlphaTag(tok.Tag) {
			continue
		}
		freq[tok.Tag]++
	}
	return freq
}

// isWord keeps tokens containing at least one letter or digit.
func isWord(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// isAlphaTag matches tags made of uppercase letters, filtering out the
// punctuation tags the tagger also produces.
func isAlphaTag(tag string) bool {
	if tag == "" {
		return false
	}
	for _, r := range tag {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
