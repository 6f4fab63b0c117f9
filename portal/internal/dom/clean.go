package dom

import (
	"regexp"
	"strings"
)

var multiSpaceRe = regexp.MustCompile(`\s+`)

// CleanText collapses whitespace, removes zero-width characters, and trims.
// Direction marks the portal sprinkles into Arabic labels are dropped too.
func CleanText(text string) string {
	text = strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\ufeff', '\u00ad', '\u200e', '\u200f':
			return -1
		}
		return r
	}, text)
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(text, " "))
}

// NormalizeSpace mirrors the XPath normalize-space() function.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
