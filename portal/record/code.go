package record

import (
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldDigits maps Arabic-Indic and Extended Arabic-Indic digits to ASCII.
var foldDigits = runes.Map(func(r rune) rune {
	switch {
	case r >= '\u0660' && r <= '\u0669':
		return '0' + (r - '\u0660')
	case r >= '\u06f0' && r <= '\u06f9':
		return '0' + (r - '\u06f0')
	}
	return r
})

// NormalizeCode cleans a code at the input boundary: NFKC, Arabic-Indic
// digits folded to ASCII, surrounding whitespace trimmed. The result stays
// a string; leading zeros are never lost.
func NormalizeCode(s string) string {
	out, _, err := transform.String(transform.Chain(norm.NFKC, foldDigits), s)
	if err != nil {
		out = s
	}
	return strings.TrimSpace(out)
}

// notASCIIDigit matches every rune outside 0-9, including digits of other
// scripts that survive folding.
var notASCIIDigit = runes.Predicate(func(r rune) bool { return r < '0' || r > '9' })

// DigitsOnly normalizes s and drops every rune but ASCII digits, the way the
// lookup API sanitises its query parameter.
func DigitsOnly(s string) string {
	out, _, err := transform.String(runes.Remove(notASCIIDigit), NormalizeCode(s))
	if err != nil {
		return ""
	}
	return out
}

// IsCode reports whether s is a non-empty run of ASCII digits.
func IsCode(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
