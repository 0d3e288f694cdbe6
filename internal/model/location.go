// Package model defines the location and tenant records read from the data
// store, plus the sentinel errors shared by the analytical packages.
package model

import "strings"

// LocationType classifies a retail venue.
type LocationType string

const (
	LocationTypeShoppingCentre LocationType = "SHOPPING_CENTRE"
	LocationTypeRetailPark     LocationType = "RETAIL_PARK"
	LocationTypeOutletCentre   LocationType = "OUTLET_CENTRE"
	LocationTypeHighStreet     LocationType = "HIGH_STREET"
	LocationTypeOther          LocationType = "OTHER"
)

// IsDestination reports whether the type is a managed retail destination
// (shopping centre or retail park) as opposed to a town or street marker.
func (t LocationType) IsDestination() bool {
	return t == LocationTypeShoppingCentre || t == LocationTypeRetailPark
}

// Location is a retail venue. Every descriptive attribute is independently
// nullable; a nil pointer means the value is unknown.
type Location struct {
	ID       string       `json:"id" yaml:"id"`
	Name     string       `json:"name" yaml:"name"`
	Type     LocationType `json:"type,omitempty" yaml:"type"`
	City     string       `json:"city,omitempty" yaml:"city"`
	County   string       `json:"county,omitempty" yaml:"county"`
	Postcode string       `json:"postcode,omitempty" yaml:"postcode"`

	Latitude  *float64 `json:"latitude,omitempty" yaml:"latitude"`
	Longitude *float64 `json:"longitude,omitempty" yaml:"longitude"`

	// Digital presence.
	Website   *string `json:"website,omitempty" yaml:"website"`
	Phone     *string `json:"phone,omitempty" yaml:"phone"`
	Instagram *string `json:"instagram,omitempty" yaml:"instagram"`
	Facebook  *string `json:"facebook,omitempty" yaml:"facebook"`
	TikTok    *string `json:"tiktok,omitempty" yaml:"tiktok"`
	YouTube   *string `json:"youtube,omitempty" yaml:"youtube"`
	Twitter   *string `json:"twitter,omitempty" yaml:"twitter"`

	// Operational.
	ParkingSpaces  *int     `json:"parking_spaces,omitempty" yaml:"parking_spaces"`
	OpenedYear     *int     `json:"opened_year,omitempty" yaml:"opened_year"`
	TotalFloorArea *float64 `json:"total_floor_area,omitempty" yaml:"total_floor_area"`
	NumberOfStores *int     `json:"number_of_stores,omitempty" yaml:"number_of_stores"`
	Owner          *string  `json:"owner,omitempty" yaml:"owner"`
	Management     *string  `json:"management,omitempty" yaml:"management"`
	Footfall       *int64   `json:"footfall,omitempty" yaml:"footfall"`

	// Reviews.
	GoogleRating  *float64 `json:"google_rating,omitempty" yaml:"google_rating"`
	GoogleReviews *int     `json:"google_reviews,omitempty" yaml:"google_reviews"`

	// Demographics of the catchment.
	Population *int64   `json:"population,omitempty" yaml:"population"`
	MedianAge  *float64 `json:"median_age,omitempty" yaml:"median_age"`
}

// Ref returns the identifying pair used inside analysis outputs.
func (l Location) Ref() LocationRef {
	return LocationRef{ID: l.ID, Name: l.Name}
}

// HasCoordinates reports whether the location has a usable position.
// A zero latitude or longitude is a geocoding placeholder, not a position.
func (l Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil && *l.Latitude != 0 && *l.Longitude != 0
}

// HasArea reports whether the location carries any city or county data.
func (l Location) HasArea() bool {
	return strings.TrimSpace(l.City) != "" || strings.TrimSpace(l.County) != ""
}

// LocationRef identifies a location inside an analysis result.
type LocationRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Tenant is a retail unit occupying space within exactly one location.
type Tenant struct {
	ID          string       `json:"id" yaml:"id"`
	LocationID  string       `json:"location_id" yaml:"location_id"`
	Name        string       `json:"name" yaml:"name"`
	Category    string       `json:"category,omitempty" yaml:"category"`
	CategoryRef *CategoryRef `json:"category_ref,omitempty" yaml:"category_ref"`
	IsAnchor    bool         `json:"is_anchor,omitempty" yaml:"is_anchor"`
}

// CategoryTier is the depth of a category in the three-tier taxonomy.
type CategoryTier int

const (
	TierSector      CategoryTier = 1
	TierCategory    CategoryTier = 2
	TierSubcategory CategoryTier = 3
)

// CategoryRef is a normalized taxonomy entry a tenant may reference.
type CategoryRef struct {
	ID         string       `json:"id" yaml:"id"`
	Name       string       `json:"name" yaml:"name"`
	Tier       CategoryTier `json:"tier" yaml:"tier"`
	ParentName string       `json:"parent_name,omitempty" yaml:"parent_name"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// IntPtr returns a pointer to n.
func IntPtr(n int) *int { return &n }

// Int64Ptr returns a pointer to n.
func Int64Ptr(n int64) *int64 { return &n }

// Float64Ptr returns a pointer to f.
func Float64Ptr(f float64) *float64 { return &f }

// HasText reports whether a nullable string carries a non-blank value.
func HasText(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
