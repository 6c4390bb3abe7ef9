// Package text normalises mixed Hindi(Devanagari)+English text.
package text

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Zero-width and invisible code points that commonly corrupt PDF-extracted
// text. Devanagari code points themselves are preserved verbatim; no
// transliteration happens anywhere.
func isZeroWidth(r rune) bool {
	switch r {
	case '\u200b', // zero width space
		'\u200c', // zero width non-joiner
		'\u200d', // zero width joiner
		'\u2060', // word joiner
		'\ufeff', // BOM
		'\u00ad': // soft hyphen
		return true
	}
	return false
}

// Normalise applies Unicode NFC, strips control characters and zero-width
// joiners, collapses whitespace runs (including typographic variants) to
// single ASCII spaces and trims. It is pure and total: empty strings and
// arbitrary Unicode pass through without error.
func Normalise(s string) string {
	if s == "" {
		return ""
	}

	s = norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = true
		case isZeroWidth(r):
			// dropped
		case unicode.IsControl(r):
			// non-whitespace control characters are dropped
		default:
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		}
	}

	return b.String()
}

// TokenSpan is a token plus its byte range within the normalised text.
type TokenSpan struct {
	Token string
	Start int
	End   int
}

func isTokenRune(r rune) bool {
	// Marks are included so Devanagari matras stay attached to their
	// consonant instead of splitting the token.
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// TokeniseSpans splits normalised text into tokens with byte offsets.
// Tokenisation is whitespace/script-aware and applies no stemming: statute
// section numbers like "302" and terms of art must survive exactly.
// ASCII letters are lower-cased for case-insensitive matching.
func TokeniseSpans(s string) []TokenSpan {
	var spans []TokenSpan
	var b strings.Builder
	start := -1

	flush := func(end int) {
		if start < 0 {
			return
		}
		spans = append(spans, TokenSpan{Token: b.String(), Start: start, End: end})
		b.Reset()
		start = -1
	}

	for i, r := range s {
		if isTokenRune(r) {
			if start < 0 {
				start = i
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		flush(i)
	}
	flush(len(s))

	return spans
}

// Tokenise returns just the token strings.
func Tokenise(s string) []string {
	spans := TokeniseSpans(s)
	if len(spans) == 0 {
		return nil
	}
	tokens := make([]string, len(spans))
	for i, sp := range spans {
		tokens[i] = sp.Token
	}
	return tokens
}
