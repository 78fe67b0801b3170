package wakeword

import (
	"regexp"
	"strings"
)

var (
	nonWord    = regexp.MustCompile(`[^\w\s]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// DefaultVariants are phrasings accepted in addition to the configured
// phrase, covering common recognizer misfires on "hey doctor".
var DefaultVariants = []string{
	"hey doctor",
	"hey dr",
	"hi doctor",
	"hello doctor",
	"hey doc",
	"hi doc",
	"ok doctor",
	"okay doctor",
}

// Normalize lower-cases s, drops punctuation and collapses whitespace.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = nonWord.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Matcher decides whether recognized text contains the wake phrase.
type Matcher struct {
	phrase   string
	variants []string
}

// NewMatcher builds a matcher for phrase and its accepted variants.
func NewMatcher(phrase string, variants ...string) *Matcher {
	m := &Matcher{phrase: Normalize(phrase)}
	for _, v := range variants {
		if n := Normalize(v); n != "" {
			m.variants = append(m.variants, n)
		}
	}
	return m
}

// Phrase returns the normalized wake phrase.
func (m *Matcher) Phrase() string {
	return m.phrase
}

// Match reports whether heard contains the phrase or any variant.
func (m *Matcher) Match(heard string) bool {
	text := Normalize(heard)
	if text == "" {
		return false
	}
	if m.phrase != "" && strings.Contains(text, m.phrase) {
		return true
	}
	for _, v := range m.variants {
		if strings.Contains(text, v) {
			return true
		}
	}
	return false
}
