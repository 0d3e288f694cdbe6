// Package fuzzy provides string similarity measures in [0,1] behind a small
// interface so the matcher can swap algorithms through configuration.
package fuzzy

import (
	"strings"

	"github.com/agext/levenshtein"
	"github.com/rotisserie/eris"
)

// Similarity scores how alike two strings are. 1 means identical.
type Similarity interface {
	Score(a, b string) float64
}

// Levenshtein is the edit-distance ratio 1 - d/max(len(a), len(b)),
// measured in runes.
type Levenshtein struct{}

// Score implements Similarity.
func (Levenshtein) Score(a, b string) float64 {
	if a == b {
		return 1
	}
	return clamp(levenshtein.Similarity(a, b, nil))
}

// Winkler is the edit-distance ratio with a bonus for a shared prefix,
// which favours spoken queries that get the start of a name right.
type Winkler struct {
	params *levenshtein.Params
}

// NewWinkler returns a Winkler similarity with the library defaults
// (bonus above 0.7, up to 4 prefix runes, scale 0.1).
func NewWinkler() Winkler {
	return Winkler{params: levenshtein.NewParams()}
}

// Score implements Similarity.
func (w Winkler) Score(a, b string) float64 {
	if a == b {
		return 1
	}
	return clamp(levenshtein.Match(a, b, w.params))
}

// New returns the similarity registered under name.
func New(name string) (Similarity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "levenshtein":
		return Levenshtein{}, nil
	case "winkler", "jaro-winkler", "jarowinkler":
		return NewWinkler(), nil
	default:
		return nil, eris.Errorf("fuzzy: unknown similarity %q", name)
	}
}

// Contains reports whether either non-empty string contains the other.
func Contains(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
