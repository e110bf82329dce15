// Package sanitize normalises user-entered identifiers before flows compare
// or transmit them.
package sanitize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Phone reduces a phone number to an optional leading '+' followed by ASCII
// digits. Full-width digits (common with CJK input methods) are folded first,
// and separators such as spaces, dashes, dots and parentheses are dropped.
func Phone(raw string) string {
	folded := width.Fold.String(norm.NFKC.String(strings.TrimSpace(raw)))

	var b strings.Builder

	b.Grow(len(folded))

	for i, r := range folded {
		switch {
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}

	return b.String()
}

// SamePhone reports whether two user inputs denote the same number.
func SamePhone(a, b string) bool {
	na, nb := Phone(a), Phone(b)

	return na != "" && na == nb
}

// Email trims and case-folds an e-mail address. Internal whitespace is removed.
func Email(raw string) string {
	trimmed := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}

		return r
	}, raw)

	// cases.Caser is stateful, so each call gets its own.
	return cases.Fold().String(norm.NFC.String(trimmed))
}
