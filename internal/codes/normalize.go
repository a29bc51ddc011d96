package codes

import (
	"strings"
	"unicode"
)

// Normalizer canonicalizes a raw code.
type Normalizer func(string) string

// NormalizeCode turns a raw code into its camelCase canonical form:
// whitespace runs become hyphens, Cyrillic is transliterated, the text is split
// on hyphen/underscore runs and case boundaries, and the words are joined with
// the first word lower-cased and the rest capitalized.
//
// NormalizeCode is idempotent.
func NormalizeCode(code string) string {
	out := normalizeOnce(code)

	// Joining can fuse a one-letter word with its successor ("aB" + "C"), so a
	// second pass may see fewer words. Word count only shrinks, so this ends.
	for {
		next := normalizeOnce(out)
		if next == out {
			return out
		}
		out = next
	}
}

// NormalizeSkuCode removes whitespace and transliterates, keeping case and
// separators intact. It is used for external identifiers such as SKUs and
// warehouse codes that must stay recognizable.
func NormalizeSkuCode(code string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, code)
	return Transliterate(stripped)
}

func normalizeOnce(code string) string {
	hyphenated := strings.Join(strings.Fields(code), "-")
	words := splitWords(Transliterate(hyphenated))

	var b strings.Builder
	b.Grow(len(hyphenated))
	for i, w := range words {
		if i == 0 {
			b.WriteString(strings.ToLower(w))
			continue
		}
		b.WriteString(capitalize(w))
	}
	return b.String()
}

// splitWords splits on '-' and '_' runs and before an uppercase letter that is
// followed by a lowercase letter, preceded by a lowercase letter, or preceded
// by a digit.
func splitWords(s string) []string {
	rs := []rune(s)
	var words []string
	var cur []rune

	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}

	for i, r := range rs {
		if r == '-' || r == '_' {
			flush()
			continue
		}
		if len(cur) > 0 && unicode.IsUpper(r) {
			prev := rs[i-1]
			nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
			if nextLower || unicode.IsLower(prev) || unicode.IsDigit(prev) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()

	return words
}

func capitalize(w string) string {
	rs := []rune(strings.ToLower(w))
	if len(rs) == 0 {
		return ""
	}
	rs[0] = unicode.ToUpper(rs[0])
	return string(rs)
}
