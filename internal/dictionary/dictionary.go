// Package dictionary answers common portfolio questions from a small fixed
// Q/A table, scored by token-set similarity, so the model backend is only
// consulted when nothing local fits.
package dictionary

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Threshold is the strict minimum Jaccard score for a match.
const Threshold = 0.3

// Entry is one question/answer pair.
type Entry struct {
	Question string
	Answer   string
}

// Default is the built-in portfolio dictionary.
var Default = []Entry{
	{"hola", "¡Hola! Soy tu asistente virtual. Pregúntame sobre mis proyectos, experiencia o tecnologías."},
	{"experiencia", "Tengo más de 15 años de experiencia como desarrollador full stack, trabajando con React, Node.js y MongoDB."},
	{"react", "React es mi principal herramienta para construir interfaces dinámicas y rápidas con excelente experiencia de usuario."},
	{"node", "Node.js me permite crear el backend de mis aplicaciones full stack, gestionando APIs y servidores eficientemente."},
	{"mongodb", "MongoDB lo uso como base de datos NoSQL escalable y flexible."},
	{"tailwind", "TailwindCSS me permite diseñar interfaces limpias y responsivas rápidamente."},
}

// Matcher scores prompts against its table in declaration order.
type Matcher struct {
	entries []Entry
}

// New returns a matcher over the given table; with no entries it falls back
// to the built-in dictionary.
func New(entries []Entry) *Matcher {
	if len(entries) == 0 {
		entries = Default
	}
	return &Matcher{entries: entries}
}

// Match returns the best-scoring answer when its score is strictly above
// Threshold. On ties the first entry in table order wins.
func (m *Matcher) Match(prompt string) (string, bool) {
	promptSet := tokenSet(prompt)

	bestScore := 0.0
	bestAnswer := ""
	for _, e := range m.entries {
		score := jaccard(promptSet, tokenSet(e.Question))
		if score > bestScore {
			bestScore = score
			bestAnswer = e.Answer
		}
	}
	if bestScore > Threshold {
		return bestAnswer, true
	}
	return "", false
}

var nonWordRe = regexp.MustCompile(`[^\w]+`)

// stripMarks removes combining marks after NFD decomposition, so accented
// and unaccented spellings tokenize identically.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))

// Tokenize lowercases, strips diacritics and splits on non-word runs,
// dropping empty tokens.
func Tokenize(s string) []string {
	folded, _, err := transform.String(stripMarks, strings.ToLower(s))
	if err != nil {
		folded = strings.ToLower(s)
	}
	parts := nonWordRe.Split(folded, -1)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range Tokenize(s) {
		set[tok] = struct{}{}
	}
	return set
}

// jaccard is |a ∩ b| / |a ∪ b|, defined as 0 when both sets are empty.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
