package dictionary

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	require.Equal(t, []string{"cual", "es", "tu", "experiencia"}, Tokenize("¿Cuál es tu EXPERIENCIA?"))
	require.Empty(t, Tokenize("  ...  "))
}

func TestMatchExact(t *testing.T) {
	m := New(nil)
	answer, ok := m.Match("hola")
	require.True(t, ok)
	require.Equal(t, Default[0].Answer, answer)
}

func TestMatchBelowThreshold(t *testing.T) {
	m := New(nil)
	_, ok := m.Match("cuéntame sobre tus estudios universitarios en detalle")
	require.False(t, ok)

	// Score exactly at the threshold must not match: strict comparison.
	// Intersection 3, union 10 -> 0.3 exactly.
	m = New([]Entry{{"uno dos tres", "a"}})
	_, ok = m.Match("uno dos tres cuatro cinco seis siete ocho nueve diez")
	require.False(t, ok)
}

func TestMatchDiacriticsFolded(t *testing.T) {
	m := New([]Entry{{"cotización", "presupuesto disponible"}})
	answer, ok := m.Match("cotizacion")
	require.True(t, ok)
	require.Equal(t, "presupuesto disponible", answer)
}

func TestMatchStableOrder(t *testing.T) {
	m := New([]Entry{
		{"precio servicio", "primera"},
		{"servicio precio", "segunda"},
	})
	for i := 0; i < 10; i++ {
		answer, ok := m.Match("precio servicio")
		require.True(t, ok)
		require.Equal(t, "primera", answer)
	}
}

func TestMatchEmptyPrompt(t *testing.T) {
	m := New(nil)
	_, ok := m.Match("")
	require.False(t, ok)
}
