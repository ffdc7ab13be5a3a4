// Package textutil normalizes model output before it reaches the client.
//
// Upstream generators deliver text in arbitrary byte-sized fragments, so the
// raw stream carries instruction-delimiter artifacts, broken word boundaries
// and stray control bytes. Clean repairs all of that as an ordered list of
// named rules so each rule stays independently testable.
package textutil

import (
	"regexp"
	"strings"
)

type rule struct {
	name  string
	apply func(string) string
}

var (
	controlSpanRe = regexp.MustCompile(`(?s)\[.*?\]`)
	splitWordRe   = regexp.MustCompile(`(^|[^\pL])([A-Za-zÁÉÍÓÚÑÜáéíóúñü]) +([a-záéíóúñü])`)
	multiSpaceRe  = regexp.MustCompile(`  +`)
	punctGlueRe   = regexp.MustCompile(`([.,;:!?])([A-Za-zÁÉÍÓÚÑÜáéíóúñü¡¿])`)
)

// rules run in declaration order. Order matters: whitespace is normalized
// before word repair so the join rule only has to reason about spaces, and
// punctuation spacing runs last so it cannot re-expose split words.
var rules = []rule{
	{"stripControlSpans", func(s string) string {
		return controlSpanRe.ReplaceAllString(s, "")
	}},
	{"normalizeCharset", normalizeCharset},
	{"joinSplitWords", func(s string) string {
		return splitWordRe.ReplaceAllString(s, "$1$2$3")
	}},
	{"collapseSpaces", func(s string) string {
		return strings.TrimSpace(multiSpaceRe.ReplaceAllString(s, " "))
	}},
	{"spaceAfterPunct", func(s string) string {
		return punctGlueRe.ReplaceAllString(s, "$1 $2")
	}},
}

// Clean normalizes a raw model fragment. It is pure, deterministic and
// idempotent: Clean(Clean(x)) == Clean(x).
func Clean(raw string) string {
	s := raw
	for _, r := range rules {
		s = r.apply(s)
	}
	return s
}

// allowedRune reports whether r belongs to the output character set:
// printable ASCII plus the Spanish accented letters and inverted marks.
func allowedRune(r rune) bool {
	if r >= 0x20 && r <= 0x7E {
		return true
	}
	switch r {
	case 'á', 'é', 'í', 'ó', 'ú', 'Á', 'É', 'Í', 'Ó', 'Ú',
		'ñ', 'Ñ', 'ü', 'Ü', '¡', '¿':
		return true
	}
	return false
}

// normalizeCharset maps line breaks and tabs to spaces and drops every rune
// outside the allowed set. Dropped runes are not replaced.
func normalizeCharset(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteRune(' ')
		case allowedRune(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}
