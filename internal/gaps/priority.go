package gaps

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/flourish-retail/gapcore/internal/config"
	"github.com/flourish-retail/gapcore/internal/distribution"
)

// prioritize merges missing and under-represented categories into one list
// ranked by gap size. Ties put missing first, then the larger reference
// share, then the category name.
func prioritize(res *Result, cfg config.GapConfig) []Priority {
	out := make([]Priority, 0, len(res.MissingCategories)+len(res.UnderRepresented))
	for _, g := range res.MissingCategories {
		out = append(out, newPriority(g, GapMissing, cfg))
	}
	for _, g := range res.UnderRepresented {
		out = append(out, newPriority(g, GapUnderRepresented, cfg))
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if math.Abs(a.Gap-b.Gap) > shareEpsilon {
			return a.Gap > b.Gap
		}
		if a.Type != b.Type {
			return a.Type == GapMissing
		}
		if math.Abs(a.ReferenceShare-b.ReferenceShare) > shareEpsilon {
			return a.ReferenceShare > b.ReferenceShare
		}
		return a.Category < b.Category
	})
	return out
}

func newPriority(g CategoryGap, typ GapType, cfg config.GapConfig) Priority {
	level := LevelLow
	switch {
	case g.Gap >= cfg.HighPriorityGap-shareEpsilon:
		level = LevelHigh
	case g.Gap >= cfg.MediumPriorityGap-shareEpsilon:
		level = LevelMedium
	}
	return Priority{
		CategoryGap:    g,
		Type:           typ,
		Level:          level,
		Recommendation: recommendation(g, typ),
	}
}

func recommendation(g CategoryGap, typ GapType) string {
	if typ == GapMissing {
		return fmt.Sprintf("Consider adding %s tenants. Competitors average %s of their stores in this category.",
			g.Category, percent(g.ReferenceShare))
	}
	return fmt.Sprintf("Add approximately %d %s in %s to match the competitor average (%s).",
		g.EstimatedStores, plural(g.EstimatedStores, "store", "stores"), g.Category, percent(g.ReferenceShare))
}

func insights(res *Result, target distribution.Distribution, competitors []distribution.Distribution) []string {
	var out []string
	name := res.Target.Name

	if len(res.Priorities) > 0 {
		top := res.Priorities[0]
		if top.Type == GapMissing {
			out = append(out, fmt.Sprintf("Highest priority gap: %s is completely missing compared to competitors.", top.Category))
		} else {
			out = append(out, fmt.Sprintf("Highest priority gap: %s is under-represented by about %d %s compared to competitors.",
				top.Category, top.EstimatedStores, plural(top.EstimatedStores, "store", "stores")))
		}
	}

	if n := len(res.MissingCategories); n > 0 {
		out = append(out, fmt.Sprintf("%d %s present in competitors %s missing from %s.",
			n, plural(n, "category", "categories"), plural(n, "is", "are"), name))
	}

	if n := len(res.UnderRepresented); n > 0 {
		stores := 0
		for _, g := range res.UnderRepresented {
			stores += g.EstimatedStores
		}
		out = append(out, fmt.Sprintf("%d %s under-represented, an estimated %d store opportunity.",
			n, plural(n, "category is", "categories are"), stores))
	}

	if n := len(res.MissingBrands); n > 0 {
		top := make([]string, 0, 5)
		for i := 0; i < n && i < 5; i++ {
			top = append(top, res.MissingBrands[i].Name)
		}
		out = append(out, fmt.Sprintf("%d competitor %s not present in %s. Top missing brands: %s.",
			n, plural(n, "brand is", "brands are"), name, strings.Join(top, ", ")))
	}

	if skipped := len(competitors) - contributingCount(res); skipped > 0 {
		out = append(out, fmt.Sprintf("%d %s no tenant data and %s excluded from the comparison.",
			skipped, plural(skipped, "competitor has", "competitors have"), plural(skipped, "was", "were")))
	}

	if largest, ok := target.Largest(); ok {
		if refTop, ok := largestReference(res.Reference); ok && refTop != largest.Category {
			out = append(out, fmt.Sprintf("%s's largest category is %s (%s), while competitors lead with %s (%s).",
				name, largest.Category, percent(largest.Percentage), refTop, percent(res.Reference[refTop])))
		}
	}

	if out == nil {
		out = []string{}
	}
	return out
}

func contributingCount(res *Result) int {
	n := 0
	for _, c := range res.Competitors {
		if c.Contributed {
			n++
		}
	}
	return n
}

func largestReference(ref map[string]float64) (string, bool) {
	best, bestShare := "", -1.0
	for cat, share := range ref {
		if share > bestShare+shareEpsilon || (math.Abs(share-bestShare) <= shareEpsilon && cat < best) {
			best, bestShare = cat, share
		}
	}
	return best, best != ""
}

func percent(share float64) string {
	return fmt.Sprintf("%.1f%%", share*100)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
