package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"The Great War", "the great war"},
		{"Earthsea's End", "earthseas end"},
		{"Café  de   Flore", "cafe de flore"},
		{"Dune - Frank Herbert.epub", "dune frank herbert epub"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in))
	}
}

func TestTokenSetRatio_Identical(t *testing.T) {
	assert.Equal(t, 100, TokenSetRatio("Dune", "Dune"))
	assert.Equal(t, 100, TokenSetRatio("The Great War", "the great WAR"))
}

func TestTokenSetRatio_OrderAndDuplicateInsensitive(t *testing.T) {
	a := TokenSetRatio("The Great War", "Great War The")
	b := TokenSetRatio("Great War", "The Great War")
	assert.Equal(t, a, b)
	assert.Equal(t, 100, a)

	assert.Equal(t,
		TokenSetRatio("war war war great", "great war"),
		TokenSetRatio("great war", "war great"))
}

func TestTokenSetRatio_Disjoint(t *testing.T) {
	assert.Equal(t, 0, TokenSetRatio("Dune", "Foundation"))
	assert.Equal(t, 0, TokenSetRatio("abc def", "xyz uvw"))
}

func TestTokenSetRatio_Subset(t *testing.T) {
	// A candidate title that embeds the wanted title scores a full match.
	assert.Equal(t, 100, TokenSetRatio("Dune", "Dune - Frank Herbert.epub"))
	assert.Equal(t, 100, TokenSetRatio("Frank Herbert", "Dune - Frank Herbert"))
}

func TestTokenSetRatio_PartialOverlap(t *testing.T) {
	// A wanted string carrying contributor tokens is how callers keep a bare
	// subset hit from scoring as a full match: the tokens missing from the
	// other side drag the ratio well below the acceptance thresholds.
	r := TokenSetRatio("Frank Herbert Dune", "Dune 2 - Movie Novelization")
	assert.Greater(t, r, 0)
	assert.Less(t, r, 80)

	// While the real release, which carries those tokens, still scores full.
	assert.Equal(t, 100, TokenSetRatio("Frank Herbert Dune", "Dune - Frank Herbert.epub"))
}

func TestTokenSetRatio_Empty(t *testing.T) {
	assert.Equal(t, 100, TokenSetRatio("", ""))
	assert.Equal(t, 0, TokenSetRatio("Dune", ""))
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"great", "the", "war"}, Tokens("The Great war the"))
	assert.Nil(t, Tokens("  "))
}
