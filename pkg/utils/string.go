package utils

import (
	"strings"
	"unicode/utf8"
)

// SnippetEllipsis is appended to text cut by Snippet.
const SnippetEllipsis = "..."

// Snippet returns the first n characters of s. The ellipsis is appended only
// when s is longer than n characters. Characters are counted as runes.
func Snippet(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	count := 0
	for i := range s {
		if count == n {
			return s[:i] + SnippetEllipsis
		}
		count++
	}

	return s
}

// NormalizeLineEndings converts CRLF and CR line endings to LF.
func NormalizeLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
