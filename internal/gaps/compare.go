// Package gaps compares a target location's tenant mix against competitors
// to find missing and under-represented categories and brands.
package gaps

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/flourish-retail/gapcore/internal/config"
	"github.com/flourish-retail/gapcore/internal/distribution"
	"github.com/flourish-retail/gapcore/internal/model"
	"github.com/flourish-retail/gapcore/internal/normalize"
)

const shareEpsilon = 1e-9

// Subject is a location together with its tenants.
type Subject struct {
	Location model.Location
	Tenants  []model.Tenant
}

// GapType distinguishes absent categories from thin ones.
type GapType string

const (
	GapMissing          GapType = "missing"
	GapUnderRepresented GapType = "under-represented"
)

// Level is the urgency bucket of a priority.
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// CompetitorSummary describes one competitor's part in the reference.
type CompetitorSummary struct {
	model.LocationRef
	TotalTenants int `json:"totalTenants"`
	// Contributed is false for competitors with no counted tenants; they
	// are left out of the reference rather than diluting it.
	Contributed bool `json:"contributed"`
}

// CategoryGap compares one category between target and reference.
type CategoryGap struct {
	Category       string  `json:"category"`
	TargetShare    float64 `json:"targetShare"`
	ReferenceShare float64 `json:"referenceShare"`
	// Gap is ReferenceShare - TargetShare; negative when over-represented.
	Gap         float64 `json:"gap"`
	TargetCount int     `json:"targetCount"`
	// CompetitorCoverage is the fraction of contributing competitors that
	// carry the category.
	CompetitorCoverage float64 `json:"competitorCoverage"`
	// EstimatedStores is how many stores would close the gap at the
	// target's current size.
	EstimatedStores int `json:"estimatedStores,omitempty"`
}

// Priority is a ranked gap with a recommendation.
type Priority struct {
	CategoryGap
	Type           GapType `json:"type"`
	Level          Level   `json:"level"`
	Recommendation string  `json:"recommendation"`
}

// MissingBrand is a competitor tenant absent from the target.
type MissingBrand struct {
	Name      string              `json:"name"`
	Category  string              `json:"category"`
	PresentIn []model.LocationRef `json:"presentIn"`
}

// Result is the outcome of a gap analysis.
type Result struct {
	Target            model.LocationRef   `json:"target"`
	TargetTotal       int                 `json:"targetTotal"`
	TargetAnchors     []string            `json:"targetAnchors,omitempty"`
	Competitors       []CompetitorSummary `json:"competitors"`
	Reference         map[string]float64  `json:"reference"`
	TargetShares      map[string]float64  `json:"targetShares"`
	MissingCategories []CategoryGap       `json:"missingCategories"`
	UnderRepresented  []CategoryGap       `json:"underRepresented"`
	OverRepresented   []CategoryGap       `json:"overRepresented"`
	MissingBrands     []MissingBrand      `json:"missingBrands"`
	Priorities        []Priority          `json:"priorities"`
	Insights          []string            `json:"insights"`
}

// Compare runs the gap analysis over already-fetched data. It fails with
// model.ErrInsufficientData when no competitor has a counted tenant.
func Compare(target Subject, competitors []Subject, includeBrands bool, cfg config.GapConfig) (*Result, error) {
	policy := distribution.AnchorPolicy(cfg.AnchorPolicy)
	targetDist := distribution.Calculate(target.Tenants, policy)

	res := &Result{
		Target:            target.Location.Ref(),
		TargetTotal:       targetDist.Total,
		TargetAnchors:     targetDist.Anchors,
		Competitors:       make([]CompetitorSummary, 0, len(competitors)),
		Reference:         make(map[string]float64),
		TargetShares:      make(map[string]float64, len(targetDist.Categories)),
		MissingCategories: []CategoryGap{},
		UnderRepresented:  []CategoryGap{},
		OverRepresented:   []CategoryGap{},
		MissingBrands:     []MissingBrand{},
		Priorities:        []Priority{},
		Insights:          []string{},
	}
	for cat, s := range targetDist.Categories {
		res.TargetShares[cat] = s.Percentage
	}

	// Reference: mean share over contributing competitors. A contributor
	// lacking a category adds 0 for it; empty competitors add nothing.
	compDists := make([]distribution.Distribution, len(competitors))
	carriers := make(map[string]int)
	contributing, competitorTenants := 0, 0
	for i, c := range competitors {
		d := distribution.Calculate(c.Tenants, policy)
		compDists[i] = d
		res.Competitors = append(res.Competitors, CompetitorSummary{
			LocationRef:  c.Location.Ref(),
			TotalTenants: d.Total,
			Contributed:  d.Total > 0,
		})
		if d.Total == 0 {
			continue
		}
		contributing++
		competitorTenants += d.Total
		for cat, s := range d.Categories {
			res.Reference[cat] += s.Percentage
			carriers[cat]++
		}
	}
	if contributing == 0 {
		return nil, eris.Wrapf(model.ErrInsufficientData, "gaps: none of the %d competitors has tenants", len(competitors))
	}
	for cat := range res.Reference {
		res.Reference[cat] /= float64(contributing)
	}

	// Stores are estimated at the target's size, or the average competitor
	// size when the target has no counted tenants.
	size := float64(targetDist.Total)
	if size == 0 {
		size = float64(competitorTenants) / float64(contributing)
	}

	gapFor := func(cat string) CategoryGap {
		ref := res.Reference[cat]
		share := targetDist.Share(cat)
		return CategoryGap{
			Category:           cat,
			TargetShare:        share,
			ReferenceShare:     ref,
			Gap:                ref - share,
			TargetCount:        targetDist.Categories[cat].Count,
			CompetitorCoverage: float64(carriers[cat]) / float64(contributing),
		}
	}

	for cat, ref := range res.Reference {
		if !targetDist.Has(cat) {
			g := gapFor(cat)
			g.EstimatedStores = estimateStores(size, g.Gap)
			res.MissingCategories = append(res.MissingCategories, g)
			continue
		}
		if targetDist.Share(cat) < cfg.UnderRepresentedRatio*ref-shareEpsilon {
			g := gapFor(cat)
			g.EstimatedStores = estimateStores(size, g.Gap)
			res.UnderRepresented = append(res.UnderRepresented, g)
		}
	}
	for cat, share := range res.TargetShares {
		if share > cfg.OverRepresentedRatio*res.Reference[cat]+shareEpsilon {
			res.OverRepresented = append(res.OverRepresented, gapFor(cat))
		}
	}
	sortByGap(res.MissingCategories)
	sortByGap(res.UnderRepresented)
	sort.Slice(res.OverRepresented, func(i, j int) bool {
		a, b := res.OverRepresented[i], res.OverRepresented[j]
		if math.Abs(a.Gap-b.Gap) > shareEpsilon {
			return a.Gap < b.Gap
		}
		return a.Category < b.Category
	})

	if includeBrands {
		res.MissingBrands = missingBrands(target, competitors, res)
	}
	res.Priorities = prioritize(res, cfg)
	res.Insights = insights(res, targetDist, compDists)
	return res, nil
}

// estimateStores rounds size*gap up, and is at least 1 for any real gap.
func estimateStores(size, gap float64) int {
	if gap <= shareEpsilon {
		return 0
	}
	n := int(math.Ceil(size*gap - shareEpsilon))
	if n < 1 {
		n = 1
	}
	return n
}

func sortByGap(gaps []CategoryGap) {
	sort.Slice(gaps, func(i, j int) bool {
		a, b := gaps[i], gaps[j]
		if math.Abs(a.Gap-b.Gap) > shareEpsilon {
			return a.Gap > b.Gap
		}
		return a.Category < b.Category
	})
}

// missingBrands lists non-anchor competitor tenants whose folded name is
// absent from the target, restricted to flagged categories.
func missingBrands(target Subject, competitors []Subject, res *Result) []MissingBrand {
	flagged := make(map[string]bool)
	for _, g := range res.MissingCategories {
		flagged[g.Category] = true
	}
	for _, g := range res.UnderRepresented {
		flagged[g.Category] = true
	}
	if len(flagged) == 0 {
		return []MissingBrand{}
	}

	present := make(map[string]bool, len(target.Tenants))
	for _, t := range target.Tenants {
		present[normalize.BrandKey(t.Name)] = true
	}

	type brandKey struct{ name, category string }
	index := make(map[brandKey]int)
	var out []MissingBrand
	for _, c := range competitors {
		ref := c.Location.Ref()
		for _, t := range c.Tenants {
			if t.IsAnchor {
				continue
			}
			key := normalize.BrandKey(t.Name)
			if key == "" || present[key] {
				continue
			}
			cat := normalize.TenantCategory(t)
			if !flagged[cat] {
				continue
			}
			k := brandKey{key, cat}
			i, ok := index[k]
			if !ok {
				i = len(out)
				index[k] = i
				out = append(out, MissingBrand{Name: t.Name, Category: cat})
			}
			if !containsRef(out[i].PresentIn, ref.ID) {
				out[i].PresentIn = append(out[i].PresentIn, ref)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].PresentIn) != len(out[j].PresentIn) {
			return len(out[i].PresentIn) > len(out[j].PresentIn)
		}
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	if out == nil {
		out = []MissingBrand{}
	}
	return out
}

func containsRef(refs []model.LocationRef, id string) bool {
	for _, r := range refs {
		if r.ID == id {
			return true
		}
	}
	return false
}
