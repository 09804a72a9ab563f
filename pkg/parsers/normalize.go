package parsers

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// isHangul reports whether r is a precomposed Hangul syllable (가-힣).
func isHangul(r rune) bool {
	return r >= '가' && r <= '힣'
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isAllowed(r rune) bool {
	switch {
	case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	case isHangul(r):
		return true
	}
	return strings.ContainsRune("[](),-.:/*", r)
}

// Normalize canonicalizes a recognized string: NFKC, whitelist filtering,
// whitespace collapsing, and removal of spurious spaces OCR puts between
// two Hangul syllables or two digits.
func Normalize(text string) string {
	text = norm.NFKC.String(text)

	var b strings.Builder
	b.Grow(len(text))
	pendingSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) || !isAllowed(r) {
			pendingSpace = true
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteRune(r)
	}

	runes := []rune(b.String())
	out := make([]rune, 0, len(runes))
	for i, r := range runes {
		if r == ' ' && len(out) > 0 && i+1 < len(runes) {
			prev, next := out[len(out)-1], runes[i+1]
			if (isHangul(prev) && isHangul(next)) || (isDigit(prev) && isDigit(next)) {
				continue
			}
		}
		out = append(out, r)
	}
	return strings.TrimSpace(string(out))
}

// hasHangul reports whether s contains at least one Hangul syllable.
func hasHangul(s string) bool {
	return strings.IndexFunc(s, isHangul) >= 0
}

// collapseSpaces joins the fields of s with single spaces.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// onlyDigits extracts decimal digits from a string.
func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
