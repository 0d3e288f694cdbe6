// Package distribution computes the share of tenants per category at a
// location.
package distribution

import (
	"sort"
	"strings"

	"github.com/flourish-retail/gapcore/internal/config"
	"github.com/flourish-retail/gapcore/internal/model"
	"github.com/flourish-retail/gapcore/internal/normalize"
)

// AnchorPolicy decides whether anchor tenants count toward shares.
type AnchorPolicy string

const (
	// ExcludeAnchors flags anchors but leaves them out of counts and shares.
	ExcludeAnchors AnchorPolicy = config.AnchorExclude
	// IncludeAnchors counts anchors like any other tenant.
	IncludeAnchors AnchorPolicy = config.AnchorInclude
)

// Share is one category's tenant count and fraction of the counted total.
type Share struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Distribution is the category breakdown of one location's tenants.
type Distribution struct {
	Categories  map[string]Share `json:"categories"`
	Total       int              `json:"total"`
	Anchors     []string         `json:"anchors,omitempty"`
	AnchorCount int              `json:"anchorCount"`
}

// Calculate groups tenants by canonical category. Labels are normalized
// here as well as upstream, so "food" and " Food " share a bucket. With
// Total > 0 the percentages sum to 1; with no counted tenants Categories is
// empty and non-nil.
func Calculate(tenants []model.Tenant, policy AnchorPolicy) Distribution {
	d := Distribution{Categories: make(map[string]Share)}

	counts := make(map[string]int)
	for _, t := range tenants {
		if t.IsAnchor {
			d.AnchorCount++
			if name := strings.TrimSpace(t.Name); name != "" {
				d.Anchors = append(d.Anchors, name)
			}
			if policy != IncludeAnchors {
				continue
			}
		}
		counts[normalize.TenantCategory(t)]++
		d.Total++
	}

	sort.Strings(d.Anchors)
	if d.Total == 0 {
		return d
	}
	for cat, n := range counts {
		d.Categories[cat] = Share{
			Count:      n,
			Percentage: float64(n) / float64(d.Total),
		}
	}
	return d
}

// Share returns the fraction of counted tenants in category, or 0.
func (d Distribution) Share(category string) float64 {
	return d.Categories[category].Percentage
}

// Has reports whether category has at least one counted tenant.
func (d Distribution) Has(category string) bool {
	return d.Categories[category].Count > 0
}

// Entry is a category with its share, for ordered output.
type Entry struct {
	Category string `json:"category"`
	Share
}

// Sorted returns the categories by count descending, then name.
func (d Distribution) Sorted() []Entry {
	out := make([]Entry, 0, len(d.Categories))
	for cat, s := range d.Categories {
		out = append(out, Entry{Category: cat, Share: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Largest returns the biggest category, or false when there is none.
func (d Distribution) Largest() (Entry, bool) {
	sorted := d.Sorted()
	if len(sorted) == 0 {
		return Entry{}, false
	}
	return sorted[0], true
}
