// Package format renders analysis results as short spoken-style text for
// the voice assistant. It reads structured outputs only and never computes.
package format

import (
	"fmt"
	"math"
	"strings"

	"github.com/flourish-retail/gapcore/internal/completeness"
	"github.com/flourish-retail/gapcore/internal/gaps"
	"github.com/flourish-retail/gapcore/internal/nearby"
	"github.com/flourish-retail/gapcore/internal/resolve"
)

// DetailLevel controls whether Details is filled.
type DetailLevel string

const (
	DetailHigh     DetailLevel = "high"
	DetailDetailed DetailLevel = "detailed"
)

// Response is a voice-ready rendering of a result.
type Response struct {
	Summary  string   `json:"summary"`
	Details  string   `json:"details,omitempty"`
	Insights []string `json:"insights"`
}

// Text joins summary, details and insights into one line for channels
// that take a single string.
func (r Response) Text() string {
	parts := append([]string{r.Summary, r.Details}, r.Insights...)
	return SingleLine(strings.Join(parts, " "))
}

var detailedKeywords = []string{
	"detailed",
	"more information",
	"tell me more",
	"explain",
	"specific",
	"breakdown",
	"list",
	"what brands",
	"which brands",
}

// DetectDetailLevel picks the detailed level when the query asks for more.
func DetectDetailLevel(query string) DetailLevel {
	q := strings.ToLower(query)
	for _, k := range detailedKeywords {
		if strings.Contains(q, k) {
			return DetailDetailed
		}
	}
	return DetailHigh
}

// ParseDetailLevel accepts "detailed" and treats anything else as high.
func ParseDetailLevel(s string) DetailLevel {
	if strings.EqualFold(strings.TrimSpace(s), string(DetailDetailed)) {
		return DetailDetailed
	}
	return DetailHigh
}

// SingleLine collapses all whitespace runs, newlines included, to one space.
func SingleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Matches renders resolution candidates.
func Matches(query string, matches []resolve.Match, level DetailLevel) Response {
	if len(matches) == 0 {
		return Response{
			Summary:  fmt.Sprintf("I couldn't find a location matching %q. Could you give me the town or city as well?", query),
			Insights: []string{},
		}
	}

	top := matches[0]
	r := Response{Insights: []string{}}
	if len(matches) == 1 {
		r.Summary = fmt.Sprintf("I found %s%s.", top.Name, in(top.City))
	} else {
		r.Summary = fmt.Sprintf("The best match is %s%s, with %d other possible %s.",
			top.Name, in(top.City), len(matches)-1, plural(len(matches)-1, "match", "matches"))
		if top.Confidence-matches[1].Confidence < 0.1 {
			r.Insights = append(r.Insights,
				fmt.Sprintf("%s and %s are close matches, so it is worth confirming which one you mean.", top.Name, matches[1].Name))
		}
	}

	if level == DetailDetailed {
		parts := make([]string, 0, len(matches))
		for _, m := range matches {
			parts = append(parts, fmt.Sprintf("%s%s (%d%% confidence)", m.Name, in(m.City), int(math.Round(m.Confidence*100))))
		}
		r.Details = "Candidates: " + strings.Join(parts, "; ") + "."
	}
	return r
}

// GapAnalysis renders a gap analysis.
func GapAnalysis(res *gaps.Result, level DetailLevel) Response {
	contributing := 0
	for _, c := range res.Competitors {
		if c.Contributed {
			contributing++
		}
	}

	summary := fmt.Sprintf("I've analyzed %s compared to %d competitor %s. ",
		res.Target.Name, contributing, plural(contributing, "location", "locations"))
	if len(res.Priorities) == 0 {
		summary += "Your tenant mix is well-balanced compared to competitors."
	} else {
		top := res.Priorities[0]
		if top.Type == gaps.GapMissing {
			summary += fmt.Sprintf("The highest priority gap is %s, which is completely missing.", top.Category)
		} else {
			summary += fmt.Sprintf("The highest priority gap is %s, which is under-represented by approximately %d %s.",
				top.Category, top.EstimatedStores, plural(top.EstimatedStores, "store", "stores"))
		}
	}

	r := Response{Summary: summary, Insights: []string{}}

	if level == DetailDetailed {
		var parts []string
		if len(res.MissingCategories) > 0 {
			cats := make([]string, 0, 5)
			for _, g := range first(res.MissingCategories, 5) {
				cats = append(cats, g.Category)
			}
			parts = append(parts, fmt.Sprintf("Missing categories present in competitors: %s.", strings.Join(cats, ", ")))
		}
		if len(res.UnderRepresented) > 0 {
			cats := make([]string, 0, 5)
			for _, g := range first(res.UnderRepresented, 5) {
				cats = append(cats, fmt.Sprintf("%s (%s vs %s average)", g.Category, pct(g.TargetShare), pct(g.ReferenceShare)))
			}
			parts = append(parts, fmt.Sprintf("Under-represented categories: %s.", strings.Join(cats, ", ")))
		}
		if len(res.MissingBrands) > 0 {
			brands := make([]string, 0, 5)
			for i := 0; i < len(res.MissingBrands) && i < 5; i++ {
				brands = append(brands, res.MissingBrands[i].Name)
			}
			parts = append(parts, fmt.Sprintf("Popular brands in competitors but not in your location: %s.", strings.Join(brands, ", ")))
		}
		r.Details = strings.Join(parts, " ")
	}

	for _, s := range res.Insights {
		r.Insights = append(r.Insights, strings.Replace(s, res.Target.Name, "your location", 1))
	}
	high := 0
	for _, p := range res.Priorities {
		if p.Level == gaps.LevelHigh {
			high++
		}
	}
	if high > 0 {
		r.Insights = append(r.Insights, fmt.Sprintf("I recommend focusing on %d high-priority category %s to improve your tenant mix.",
			high, plural(high, "gap", "gaps")))
	}
	return r
}

var dimensionLabels = map[completeness.Dimension]string{
	completeness.DimSocial:       "social media",
	completeness.DimOperational:  "parking",
	completeness.DimReviews:      "reviews",
	completeness.DimDemographics: "demographics",
	completeness.DimOpeningYear:  "opening year",
	completeness.DimContact:      "contact details",
	completeness.DimBaseStats:    "store count or floor area",
}

// Completeness renders a completeness score.
func Completeness(name string, res completeness.Result, level DetailLevel) Response {
	r := Response{
		Summary:  fmt.Sprintf("%s has a data completeness score of %d out of 100, graded %s.", name, res.Score, strings.ToLower(string(res.Grade))),
		Insights: []string{},
	}
	if len(res.Missing) == 0 {
		r.Insights = append(r.Insights, "Every scored area is covered.")
		return r
	}

	missing := make([]string, len(res.Missing))
	for i, d := range res.Missing {
		missing[i] = dimensionLabels[d]
	}
	if level == DetailDetailed {
		r.Details = fmt.Sprintf("Missing: %s.", strings.Join(missing, ", "))
	}
	r.Insights = append(r.Insights, fmt.Sprintf("Adding %s would give the biggest improvement.", missing[0]))
	return r
}

// Nearby renders a competitor list.
func Nearby(name string, competitors []nearby.Competitor, level DetailLevel) Response {
	if len(competitors) == 0 {
		return Response{
			Summary:  fmt.Sprintf("I couldn't find any nearby competitors to %s.", name),
			Insights: []string{},
		}
	}

	names := make([]string, 0, 3)
	for i := 0; i < len(competitors) && i < 3; i++ {
		names = append(names, competitors[i].Name)
	}
	summary := fmt.Sprintf("I found %d nearby %s to %s: %s",
		len(competitors), plural(len(competitors), "competitor", "competitors"), name, strings.Join(names, ", "))
	if len(competitors) > 3 {
		summary += fmt.Sprintf(", and %d more", len(competitors)-3)
	}
	r := Response{Summary: summary + ".", Insights: []string{}}

	if level == DetailDetailed {
		parts := make([]string, 0, 5)
		for i := 0; i < len(competitors) && i < 5; i++ {
			c := competitors[i]
			p := c.Name
			if c.NumberOfStores != nil && *c.NumberOfStores > 0 {
				p += fmt.Sprintf(", %d stores", *c.NumberOfStores)
			}
			p += fmt.Sprintf(", %.1f km away", c.DistanceKm)
			parts = append(parts, p)
		}
		r.Details = fmt.Sprintf("Competitor details: %s.", strings.Join(parts, "; "))
	}

	total, counted := 0, 0
	for _, c := range competitors {
		if c.NumberOfStores != nil && *c.NumberOfStores > 0 {
			total += *c.NumberOfStores
			counted++
		}
	}
	if counted > 0 {
		avg := int(math.Round(float64(total) / float64(counted)))
		r.Insights = append(r.Insights, fmt.Sprintf("The average competitor has %d stores. Use this as a benchmark for your tenant mix.", avg))
	}
	return r
}

func first(g []gaps.CategoryGap, n int) []gaps.CategoryGap {
	if len(g) > n {
		return g[:n]
	}
	return g
}

func in(city string) string {
	if strings.TrimSpace(city) == "" {
		return ""
	}
	return " in " + city
}

func pct(share float64) string {
	return fmt.Sprintf("%.1f%%", share*100)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
