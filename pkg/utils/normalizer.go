package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TextNormalizer wraps transform.Transformer to normalize user-submitted text.
// This is not safe for concurrent use.
type TextNormalizer struct {
	transformer transform.Transformer
}

// NewTextNormalizer creates a normalizer that strips control characters other
// than newlines and tabs and composes the result to NFC.
func NewTextNormalizer() *TextNormalizer {
	return &TextNormalizer{
		transformer: transform.Chain(
			runes.Remove(runes.Predicate(func(r rune) bool {
				return unicode.IsControl(r) && r != '\n' && r != '\t'
			})),
			norm.NFC,
		),
	}
}

// Normalize cleans up text. Line endings become LF and surrounding whitespace is
// trimmed. Returns empty string if normalization fails or input is empty.
func (n *TextNormalizer) Normalize(s string) string {
	if s == "" {
		return ""
	}

	s = strings.TrimSpace(NormalizeLineEndings(s))
	if s == "" {
		return ""
	}

	result, _, err := transform.String(n.transformer, s)
	if err != nil {
		return ""
	}

	return strings.TrimSpace(result)
}

// NormalizeTitle normalizes text and collapses all internal whitespace onto a
// single line.
func (n *TextNormalizer) NormalizeTitle(s string) string {
	return strings.Join(strings.Fields(n.Normalize(s)), " ")
}
