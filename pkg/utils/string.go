// Package utils provides common text helpers for markdown output.
package utils

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// markdownEscaper backslash-escapes characters with inline meaning in reddit markdown.
var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`_`, `\_`,
	`[`, `\[`,
	`]`, `\]`,
	"`", "\\`",
	`^`, `\^`,
	`~`, `\~`,
	`|`, `\|`,
	`#`, `\#`,
	`>`, `\>`,
)

// EscapeMarkdown escapes s so it renders literally inside markdown.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// SingleLine collapses every run of whitespace, including newlines, into one space.
func SingleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate shortens s to at most maxRunes runes, marking the cut with "...".
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}

	if maxRunes <= 3 {
		return string([]rune(s)[:maxRunes])
	}

	return string([]rune(s)[:maxRunes-3]) + "..."
}

// Plural formats n with word, adding an "s" unless n is exactly one.
func Plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}

	return fmt.Sprintf("%d %ss", n, word)
}
