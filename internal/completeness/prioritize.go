package completeness

import (
	"sort"

	"github.com/flourish-retail/gapcore/internal/model"
)

// Target is a location queued for enrichment.
type Target struct {
	Location model.LocationRef  `json:"location"`
	Type     model.LocationType `json:"type,omitempty"`
	City     string             `json:"city,omitempty"`
	Result
}

// Prioritize scores every location and returns the least complete first,
// ties broken by name then ID. A limit <= 0 returns all of them.
func (s *Scorer) Prioritize(locations []model.Location, limit int) []Target {
	out := make([]Target, 0, len(locations))
	for _, loc := range locations {
		out = append(out, Target{
			Location: loc.Ref(),
			Type:     loc.Type,
			City:     loc.City,
			Result:   s.Score(loc),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score < b.Score
		}
		if a.Location.Name != b.Location.Name {
			return a.Location.Name < b.Location.Name
		}
		return a.Location.ID < b.Location.ID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
