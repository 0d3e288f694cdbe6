package completeness

import (
	"math"
	"sort"
	"strings"

	"github.com/flourish-retail/gapcore/internal/model"
)

// FieldGroup buckets audited fields for display.
type FieldGroup string

const (
	GroupCore        FieldGroup = "core"
	GroupGeo         FieldGroup = "geo"
	GroupOperational FieldGroup = "operational"
	GroupDigital     FieldGroup = "digital"
	GroupDemographic FieldGroup = "demographic"
)

// Priority ranks a field gap for enrichment.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

var priorityRank = map[Priority]int{PriorityHigh: 0, PriorityMedium: 1, PriorityLow: 2}

// Method is how a missing field is usually filled.
type Method string

const (
	MethodAPI      Method = "api"
	MethodScraping Method = "scraping"
	MethodManual   Method = "manual"
)

// relevance selects the denominator for a field.
type relevance int

const (
	relevantAll relevance = iota
	relevantWithWebsite
	relevantDestinations
)

func (r relevance) note() string {
	switch r {
	case relevantWithWebsite:
		return "of locations with websites"
	case relevantDestinations:
		return "of shopping centres/retail parks"
	default:
		return "of all locations"
	}
}

// fieldSpec describes one audited field. The priority is raised to high or
// medium when the fill rate falls below highBelow or mediumBelow.
type fieldSpec struct {
	field       string
	display     string
	group       FieldGroup
	relevance   relevance
	method      Method
	highBelow   int
	mediumBelow int
	present     func(model.Location) bool
}

func text(f func(model.Location) *string) func(model.Location) bool {
	return func(l model.Location) bool { return model.HasText(f(l)) }
}

func plain(f func(model.Location) string) func(model.Location) bool {
	return func(l model.Location) bool { return strings.TrimSpace(f(l)) != "" }
}

var auditFields = []fieldSpec{
	{field: "name", display: "Name", group: GroupCore, method: MethodManual,
		present: plain(func(l model.Location) string { return l.Name })},
	{field: "type", display: "Type", group: GroupCore, method: MethodManual,
		present: plain(func(l model.Location) string { return string(l.Type) })},
	{field: "city", display: "City", group: GroupCore, method: MethodManual,
		present: plain(func(l model.Location) string { return l.City })},
	{field: "county", display: "County", group: GroupCore, method: MethodManual,
		present: plain(func(l model.Location) string { return l.County })},
	{field: "postcode", display: "Postcode", group: GroupCore, method: MethodManual,
		present: plain(func(l model.Location) string { return l.Postcode })},

	{field: "latitude", display: "Latitude", group: GroupGeo, method: MethodAPI, highBelow: 90,
		present: func(l model.Location) bool { return l.Latitude != nil && *l.Latitude != 0 }},
	{field: "longitude", display: "Longitude", group: GroupGeo, method: MethodAPI, highBelow: 90,
		present: func(l model.Location) bool { return l.Longitude != nil && *l.Longitude != 0 }},

	{field: "number_of_stores", display: "Number of Stores", group: GroupOperational, method: MethodManual, highBelow: 90,
		present: func(l model.Location) bool { return l.NumberOfStores != nil }},
	{field: "total_floor_area", display: "Total Floor Area", group: GroupOperational, method: MethodManual, highBelow: 90,
		present: func(l model.Location) bool { return l.TotalFloorArea != nil }},
	{field: "parking_spaces", display: "Parking Spaces", group: GroupOperational, relevance: relevantDestinations,
		method: MethodScraping, mediumBelow: 70,
		present: func(l model.Location) bool { return l.ParkingSpaces != nil }},
	{field: "opened_year", display: "Opened Year", group: GroupOperational, relevance: relevantWithWebsite,
		method: MethodScraping,
		present: func(l model.Location) bool { return l.OpenedYear != nil }},
	{field: "owner", display: "Owner", group: GroupOperational, relevance: relevantDestinations, method: MethodManual,
		present: text(func(l model.Location) *string { return l.Owner })},
	{field: "management", display: "Management", group: GroupOperational, relevance: relevantDestinations, method: MethodManual,
		present: text(func(l model.Location) *string { return l.Management })},
	{field: "footfall", display: "Annual Footfall", group: GroupOperational, relevance: relevantDestinations, method: MethodManual,
		present: func(l model.Location) bool { return l.Footfall != nil }},

	{field: "website", display: "Website", group: GroupDigital, relevance: relevantDestinations, method: MethodAPI, highBelow: 90,
		present: text(func(l model.Location) *string { return l.Website })},
	{field: "phone", display: "Phone Number", group: GroupDigital, relevance: relevantWithWebsite, method: MethodAPI,
		present: text(func(l model.Location) *string { return l.Phone })},
	{field: "instagram", display: "Instagram", group: GroupDigital, relevance: relevantWithWebsite, method: MethodScraping, mediumBelow: 70,
		present: text(func(l model.Location) *string { return l.Instagram })},
	{field: "facebook", display: "Facebook", group: GroupDigital, relevance: relevantWithWebsite, method: MethodScraping, mediumBelow: 70,
		present: text(func(l model.Location) *string { return l.Facebook })},
	{field: "tiktok", display: "TikTok", group: GroupDigital, relevance: relevantWithWebsite, method: MethodScraping,
		present: text(func(l model.Location) *string { return l.TikTok })},
	{field: "youtube", display: "YouTube", group: GroupDigital, relevance: relevantWithWebsite, method: MethodScraping,
		present: text(func(l model.Location) *string { return l.YouTube })},
	{field: "twitter", display: "Twitter", group: GroupDigital, relevance: relevantWithWebsite, method: MethodScraping,
		present: text(func(l model.Location) *string { return l.Twitter })},
	{field: "google_rating", display: "Google Rating", group: GroupDigital, relevance: relevantWithWebsite, method: MethodAPI,
		present: func(l model.Location) bool { return l.GoogleRating != nil }},
	{field: "google_reviews", display: "Google Reviews", group: GroupDigital, relevance: relevantWithWebsite, method: MethodAPI,
		present: func(l model.Location) bool { return l.GoogleReviews != nil }},

	{field: "population", display: "Population", group: GroupDemographic, method: MethodAPI,
		present: func(l model.Location) bool { return l.Population != nil }},
	{field: "median_age", display: "Median Age", group: GroupDemographic, method: MethodAPI,
		present: func(l model.Location) bool { return l.MedianAge != nil }},
}

// FieldCoverage is the fill rate of one field across its relevant locations.
type FieldCoverage struct {
	Field         string     `json:"field"`
	DisplayName   string     `json:"displayName"`
	Group         FieldGroup `json:"group"`
	Missing       int        `json:"missing"`
	RelevantTotal int        `json:"relevantTotal"`
	FilledPercent int        `json:"filledPercent"`
	Priority      Priority   `json:"priority"`
	Method        Method     `json:"method"`
	ContextNote   string     `json:"contextNote"`
}

// Overview counts the populations used as denominators.
type Overview struct {
	TotalLocations        int `json:"totalLocations"`
	Destinations          int `json:"destinations"`
	LocationsWithWebsites int `json:"locationsWithWebsites"`
}

// CriticalGaps flags holes in the most valuable locations.
type CriticalGaps struct {
	MajorWithoutWebsite        int `json:"majorWithoutWebsite"`
	DestinationsWithoutSocial  int `json:"destinationsWithoutSocial"`
	DestinationsWithoutParking int `json:"destinationsWithoutParking"`
}

// AuditReport is the field coverage of a location set.
type AuditReport struct {
	Overview Overview        `json:"overview"`
	Fields   []FieldCoverage `json:"fields"`
	Critical CriticalGaps    `json:"critical"`
}

// MajorStoreCount is the store count from which a destination is major.
const MajorStoreCount = 20

// Audit measures per-field coverage. Fields that only make sense for some
// locations are measured against that subset: social, review and contact
// fields against locations with a website, and parking, website, owner,
// management and footfall against shopping centres and retail parks.
// Fields are ordered by priority, then by fill rate ascending.
func Audit(locations []model.Location) AuditReport {
	var destinations, withWebsite []model.Location
	for _, l := range locations {
		if l.Type.IsDestination() {
			destinations = append(destinations, l)
		}
		if model.HasText(l.Website) {
			withWebsite = append(withWebsite, l)
		}
	}

	pick := func(r relevance) []model.Location {
		switch r {
		case relevantWithWebsite:
			return withWebsite
		case relevantDestinations:
			return destinations
		default:
			return locations
		}
	}

	fields := make([]FieldCoverage, 0, len(auditFields))
	for _, fs := range auditFields {
		relevant := pick(fs.relevance)
		missing := 0
		for _, l := range relevant {
			if !fs.present(l) {
				missing++
			}
		}
		pct := 100
		if len(relevant) > 0 {
			pct = int(math.Round(float64(len(relevant)-missing) / float64(len(relevant)) * 100))
		}
		fields = append(fields, FieldCoverage{
			Field:         fs.field,
			DisplayName:   fs.display,
			Group:         fs.group,
			Missing:       missing,
			RelevantTotal: len(relevant),
			FilledPercent: pct,
			Priority:      fs.priority(pct),
			Method:        fs.method,
			ContextNote:   fs.relevance.note(),
		})
	}

	sort.SliceStable(fields, func(i, j int) bool {
		pi, pj := priorityRank[fields[i].Priority], priorityRank[fields[j].Priority]
		if pi != pj {
			return pi < pj
		}
		return fields[i].FilledPercent < fields[j].FilledPercent
	})

	var crit CriticalGaps
	for _, l := range destinations {
		if l.NumberOfStores != nil && *l.NumberOfStores >= MajorStoreCount && !model.HasText(l.Website) {
			crit.MajorWithoutWebsite++
		}
		if !has(l, DimSocial) {
			crit.DestinationsWithoutSocial++
		}
		if l.ParkingSpaces == nil {
			crit.DestinationsWithoutParking++
		}
	}

	return AuditReport{
		Overview: Overview{
			TotalLocations:        len(locations),
			Destinations:          len(destinations),
			LocationsWithWebsites: len(withWebsite),
		},
		Fields:   fields,
		Critical: crit,
	}
}

func (f fieldSpec) priority(pct int) Priority {
	if f.highBelow > 0 && pct < f.highBelow {
		return PriorityHigh
	}
	if f.mediumBelow > 0 && pct < f.mediumBelow {
		return PriorityMedium
	}
	return PriorityLow
}
