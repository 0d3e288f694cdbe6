// Package completeness scores how much of a location's descriptive data is
// known, and reports where the enrichment team should look next.
package completeness

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/flourish-retail/gapcore/internal/config"
	"github.com/flourish-retail/gapcore/internal/model"
)

// Dimension is one all-or-nothing scoring bucket.
type Dimension string

const (
	DimSocial       Dimension = "social"
	DimOperational  Dimension = "operational"
	DimReviews      Dimension = "reviews"
	DimDemographics Dimension = "demographics"
	DimOpeningYear  Dimension = "opening_year"
	DimContact      Dimension = "contact"
	DimBaseStats    Dimension = "base_stats"
)

// Dimensions lists every dimension in reporting order.
var Dimensions = []Dimension{
	DimSocial,
	DimOperational,
	DimReviews,
	DimDemographics,
	DimOpeningYear,
	DimContact,
	DimBaseStats,
}

// Grade is the letter band for a score.
type Grade string

const (
	GradeExcellent Grade = "EXCELLENT"
	GradeGood      Grade = "GOOD"
	GradeFair      Grade = "FAIR"
	GradePoor      Grade = "POOR"
)

// Result is the completeness of one location.
type Result struct {
	Score   int         `json:"score"`
	Grade   Grade       `json:"grade"`
	Present []Dimension `json:"present"`
	Missing []Dimension `json:"missing"`
}

// Scorer awards configured points per present dimension. It holds only
// its configuration and is safe for concurrent use.
type Scorer struct {
	cfg config.CompletenessConfig
}

// NewScorer validates cfg and returns a Scorer.
func NewScorer(cfg config.CompletenessConfig) (*Scorer, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return &Scorer{cfg: cfg}, nil
}

// ValidateConfig checks that the weights are non-negative and sum to 100
// and that the grade table descends.
func ValidateConfig(c config.CompletenessConfig) error {
	var errs []string

	for _, d := range Dimensions {
		if w := weightOf(c.Weights, d); w < 0 {
			errs = append(errs, fmt.Sprintf("weights.%s must be >= 0", d))
		}
	}
	if sum := c.Weights.Sum(); sum != 100 {
		errs = append(errs, fmt.Sprintf("weights should sum to 100, got %d", sum))
	}

	g := c.Grades
	if g.Excellent > 100 {
		errs = append(errs, "grades.excellent must be <= 100")
	}
	if g.Fair <= 0 {
		errs = append(errs, "grades.fair must be > 0")
	}
	if !(g.Excellent > g.Good && g.Good > g.Fair) {
		errs = append(errs, "grades must descend: excellent > good > fair")
	}

	if len(errs) > 0 {
		return eris.Errorf("completeness: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Score computes the completeness of loc. Absent fields are never errors.
func (s *Scorer) Score(loc model.Location) Result {
	r := Result{
		Present: []Dimension{},
		Missing: []Dimension{},
	}
	for _, d := range Dimensions {
		if has(loc, d) {
			r.Score += weightOf(s.cfg.Weights, d)
			r.Present = append(r.Present, d)
		} else {
			r.Missing = append(r.Missing, d)
		}
	}
	r.Grade = s.Grade(r.Score)
	return r
}

// Grade maps a score onto the grade table.
func (s *Scorer) Grade(score int) Grade {
	switch {
	case score >= s.cfg.Grades.Excellent:
		return GradeExcellent
	case score >= s.cfg.Grades.Good:
		return GradeGood
	case score >= s.cfg.Grades.Fair:
		return GradeFair
	default:
		return GradePoor
	}
}

func has(loc model.Location, d Dimension) bool {
	switch d {
	case DimSocial:
		return model.HasText(loc.Instagram) || model.HasText(loc.Facebook) ||
			model.HasText(loc.TikTok) || model.HasText(loc.YouTube) || model.HasText(loc.Twitter)
	case DimOperational:
		return loc.ParkingSpaces != nil
	case DimReviews:
		return loc.GoogleRating != nil && *loc.GoogleRating > 0
	case DimDemographics:
		return loc.Population != nil
	case DimOpeningYear:
		return loc.OpenedYear != nil
	case DimContact:
		return model.HasText(loc.Website) || model.HasText(loc.Phone)
	case DimBaseStats:
		return loc.TotalFloorArea != nil || loc.NumberOfStores != nil
	}
	return false
}

func weightOf(w config.CompletenessWeights, d Dimension) int {
	switch d {
	case DimSocial:
		return w.Social
	case DimOperational:
		return w.Operational
	case DimReviews:
		return w.Reviews
	case DimDemographics:
		return w.Demographics
	case DimOpeningYear:
		return w.OpeningYear
	case DimContact:
		return w.Contact
	case DimBaseStats:
		return w.BaseStats
	}
	return 0
}
