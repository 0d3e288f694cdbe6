package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevenshtein_Score(t *testing.T) {
	s := Levenshtein{}

	assert.Equal(t, 1.0, s.Score("trafford", "trafford"))
	assert.Equal(t, 1.0, s.Score("", ""))
	assert.Equal(t, 0.0, s.Score("abc", ""))
	assert.InDelta(t, 1-3.0/7.0, s.Score("kitten", "sitting"), 1e-9)
	assert.InDelta(t, 1-2.0/15.0, s.Score("trafford centre", "trafford center"), 1e-9)
}

func TestLevenshtein_Symmetric(t *testing.T) {
	s := Levenshtein{}
	pairs := [][2]string{
		{"arndale", "arndail"},
		{"bullring", "bull ring"},
		{"meadowhall", "meadow hall centre"},
	}
	for _, p := range pairs {
		assert.InDelta(t, s.Score(p[0], p[1]), s.Score(p[1], p[0]), 1e-12)
	}
}

func TestLevenshtein_Runes(t *testing.T) {
	// One substituted rune in a five-rune word, not two bytes.
	assert.InDelta(t, 0.8, Levenshtein{}.Score("cafe1", "café1"), 1e-9)
}

func TestWinkler_PrefixBonus(t *testing.T) {
	w := NewWinkler()
	l := Levenshtein{}

	a, b := "trafford centre", "trafford center"
	assert.Greater(t, w.Score(a, b), l.Score(a, b))
	assert.LessOrEqual(t, w.Score(a, b), 1.0)
	assert.Equal(t, 1.0, w.Score("lakeside", "lakeside"))
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		want    Similarity
		wantErr bool
	}{
		{"", Levenshtein{}, false},
		{"levenshtein", Levenshtein{}, false},
		{"Winkler", NewWinkler(), false},
		{"soundex", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(tt.name)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unknown similarity")
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
		})
	}
}

func TestContains(t *testing.T) {
	assert.True(t, Contains("trafford", "the trafford centre"))
	assert.True(t, Contains("the trafford centre", "trafford"))
	assert.False(t, Contains("trafford", "arndale"))
	assert.False(t, Contains("", "arndale"))
	assert.False(t, Contains("arndale", ""))
}
