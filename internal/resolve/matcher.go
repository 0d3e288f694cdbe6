// Package resolve maps free-text location names onto stored locations with
// a confidence in [0,1].
package resolve

import (
	"math"
	"sort"
	"strings"

	"github.com/flourish-retail/gapcore/internal/config"
	"github.com/flourish-retail/gapcore/internal/fuzzy"
	"github.com/flourish-retail/gapcore/internal/model"
	"github.com/flourish-retail/gapcore/internal/normalize"
)

const scoreEpsilon = 1e-9

// Match is one ranked candidate.
type Match struct {
	LocationID string  `json:"locationId"`
	Name       string  `json:"name"`
	City       string  `json:"city"`
	County     string  `json:"county"`
	Confidence float64 `json:"confidence"`
	// CityMatch is set when a city hint was given and agreed with the
	// candidate's city or county.
	CityMatch bool `json:"cityMatch,omitempty"`
	// ExactName is set when the names are equal after normalization,
	// ignoring a leading article.
	ExactName bool `json:"exactName,omitempty"`
}

// Matcher ranks candidate locations against a normalized query. It holds
// no mutable state.
type Matcher struct {
	cfg config.ResolverConfig
	sim fuzzy.Similarity
}

// NewMatcher creates a Matcher. A nil similarity means Levenshtein.
func NewMatcher(cfg config.ResolverConfig, sim fuzzy.Similarity) *Matcher {
	if sim == nil {
		sim = fuzzy.Levenshtein{}
	}
	return &Matcher{cfg: cfg, sim: sim}
}

type scored struct {
	Match
	hasArea  bool
	exactKey bool
	order    int
}

// Rank scores every candidate, drops those below the confidence floor and
// returns at most limit matches, best first. It never returns nil.
func (m *Matcher) Rank(query normalize.NormalizedName, cityHint string, candidates []model.Location, limit int) []Match {
	limit = m.clampLimit(limit)
	if query.IsZero() {
		return []Match{}
	}
	hint := normalize.Fold(cityHint)

	seen := make(map[string]bool, len(candidates))
	results := make([]scored, 0, len(candidates))
	for i, c := range candidates {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true

		name := normalize.Name(c.Name)
		if name.IsZero() {
			continue
		}

		score, exact := m.nameScore(query, name)
		cityMatch := false
		if hint != "" {
			switch {
			case cityAgrees(hint, c):
				cityMatch = true
				score = math.Min(1, score+m.cfg.CityBonus)
			case c.HasArea():
				switch m.cfg.CityMismatch {
				case config.CityMismatchExclude:
					continue
				case config.CityMismatchPenalize:
					score = math.Max(0, score-m.cfg.CityMismatchPenalty)
				}
			}
		}

		if score < m.cfg.ConfidenceFloor-scoreEpsilon {
			continue
		}
		results = append(results, scored{
			Match: Match{
				LocationID: c.ID,
				Name:       c.Name,
				City:       c.City,
				County:     c.County,
				Confidence: score,
				CityMatch:  cityMatch,
				ExactName:  exact,
			},
			hasArea:  c.HasArea(),
			exactKey: query.Key == name.Key,
			order:    i,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if math.Abs(a.Confidence-b.Confidence) > scoreEpsilon {
			return a.Confidence > b.Confidence
		}
		if a.ExactName != b.ExactName {
			return a.ExactName
		}
		if a.exactKey != b.exactKey {
			return a.exactKey
		}
		if a.hasArea != b.hasArea {
			return a.hasArea
		}
		return a.order < b.order
	})

	if len(results) > limit {
		results = results[:limit]
	}
	out := make([]Match, len(results))
	for i, r := range results {
		out[i] = r.Match
	}
	return out
}

// nameScore blends the suffix-stripped key similarity with the full folded
// name similarity. Names equal up to a leading article score 1.
func (m *Matcher) nameScore(q, c normalize.NormalizedName) (float64, bool) {
	if q.Base() == c.Base() {
		return 1, true
	}
	key := m.boosted(q.Key, c.Key)
	folded := m.boosted(q.Folded, c.Folded)
	w := m.cfg.KeyWeight
	return w*key + (1-w)*folded, false
}

func (m *Matcher) boosted(a, b string) float64 {
	s := m.sim.Score(a, b)
	if fuzzy.Contains(a, b) {
		s += m.cfg.ContainmentBonus
	}
	return math.Min(1, s)
}

func (m *Matcher) clampLimit(limit int) int {
	if limit <= 0 {
		limit = m.cfg.DefaultLimit
	}
	if m.cfg.MaxLimit > 0 && limit > m.cfg.MaxLimit {
		limit = m.cfg.MaxLimit
	}
	if limit <= 0 {
		limit = 1
	}
	return limit
}

// cityAgrees reports whether the folded hint and the candidate's city or
// county contain one another.
func cityAgrees(hint string, loc model.Location) bool {
	for _, area := range []string{loc.City, loc.County} {
		if fuzzy.Contains(hint, normalize.Fold(area)) {
			return true
		}
	}
	return false
}

// names lists match names for messages.
func names(matches []Match) string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Name
	}
	return strings.Join(out, ", ")
}
