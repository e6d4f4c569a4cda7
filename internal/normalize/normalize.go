// Package normalize turns free-text CRM and portal fields into comparable tokens.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var separators = strings.NewReplacer(
	";", ",",
	"|", ",",
	"/", ",",
	"\\", ",",
	">", ",",
	"<", ",",
)

// Text lowercases s, strips diacritics, unifies list delimiters to commas and collapses whitespace.
func Text(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(t, s); err == nil {
		s = stripped
	}

	s = separators.Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, " ,", ",")
	s = strings.ReplaceAll(s, ", ", ",")
	return s
}

// Tokens splits the normalized form of s on commas, dropping empty tokens and duplicates.
// First-seen order is preserved.
func Tokens(s string) []string {
	s = Text(s)
	if s == "" {
		return nil
	}

	return appendUnique(nil, strings.Split(s, ",")...)
}

// ValueTokens returns the tokens of every textual leaf of v in order.
func ValueTokens(v Value) []string {
	var tokens []string
	for _, leaf := range v.Leaves() {
		tokens = appendUnique(tokens, Tokens(leaf)...)
	}
	return tokens
}

// Unique returns tokens without empty entries and duplicates, preserving order.
func Unique(tokens []string) []string {
	return appendUnique(nil, tokens...)
}

func appendUnique(dst []string, items ...string) []string {
	seen := make(map[string]struct{}, len(dst)+len(items))
	for _, t := range dst {
		seen[t] = struct{}{}
	}

	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		dst = append(dst, item)
	}
	return dst
}
