package store

import (
	"sort"
	"strings"

	"github.com/flourish-retail/gapcore/internal/model"
	"github.com/flourish-retail/gapcore/internal/normalize"
)

// locationColumns is the column order shared by every SQL backend for
// reads and writes of the locations table.
var locationColumns = []string{
	"id", "name", "type", "city", "county", "postcode",
	"latitude", "longitude",
	"website", "phone", "instagram", "facebook", "tiktok", "youtube", "twitter",
	"parking_spaces", "opened_year", "total_floor_area", "number_of_stores",
	"owner", "management", "footfall",
	"google_rating", "google_reviews",
	"population", "median_age",
}

var tenantColumns = []string{"id", "location_id", "name", "category", "category_id", "is_anchor"}

var categoryColumns = []string{"id", "name", "tier", "parent_id"}

func selectList(prefix string, cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = prefix + c
	}
	return strings.Join(out, ", ")
}

// rowScanner is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(sc rowScanner) (model.Location, error) {
	var l model.Location
	var typ string
	err := sc.Scan(
		&l.ID, &l.Name, &typ, &l.City, &l.County, &l.Postcode,
		&l.Latitude, &l.Longitude,
		&l.Website, &l.Phone, &l.Instagram, &l.Facebook, &l.TikTok, &l.YouTube, &l.Twitter,
		&l.ParkingSpaces, &l.OpenedYear, &l.TotalFloorArea, &l.NumberOfStores,
		&l.Owner, &l.Management, &l.Footfall,
		&l.GoogleRating, &l.GoogleReviews,
		&l.Population, &l.MedianAge,
	)
	l.Type = model.LocationType(typ)
	return l, err
}

func locationValues(l model.Location) []any {
	return []any{
		l.ID, l.Name, string(l.Type), l.City, l.County, l.Postcode,
		l.Latitude, l.Longitude,
		l.Website, l.Phone, l.Instagram, l.Facebook, l.TikTok, l.YouTube, l.Twitter,
		l.ParkingSpaces, l.OpenedYear, l.TotalFloorArea, l.NumberOfStores,
		l.Owner, l.Management, l.Footfall,
		l.GoogleRating, l.GoogleReviews,
		l.Population, l.MedianAge,
	}
}

// tenantRow carries the nullable category columns read by the tenant join.
type tenantRow struct {
	tenant     model.Tenant
	category   *string
	catID      *string
	catName    *string
	catTier    *int
	parentName *string
}

func (r *tenantRow) dest() []any {
	return []any{
		&r.tenant.ID, &r.tenant.LocationID, &r.tenant.Name, &r.category, &r.tenant.IsAnchor,
		&r.catID, &r.catName, &r.catTier, &r.parentName,
	}
}

func (r *tenantRow) model() model.Tenant {
	t := r.tenant
	if r.category != nil {
		t.Category = *r.category
	}
	if r.catID != nil && r.catName != nil {
		ref := &model.CategoryRef{ID: *r.catID, Name: *r.catName}
		if r.catTier != nil {
			ref.Tier = model.CategoryTier(*r.catTier)
		}
		if r.parentName != nil {
			ref.ParentName = *r.parentName
		}
		t.CategoryRef = ref
	}
	return t
}

func tenantValues(t model.Tenant) []any {
	var catID *string
	if t.CategoryRef != nil && t.CategoryRef.ID != "" {
		catID = model.StringPtr(t.CategoryRef.ID)
	}
	var cat *string
	if t.Category != "" {
		cat = model.StringPtr(t.Category)
	}
	return []any{t.ID, t.LocationID, t.Name, cat, catID, t.IsAnchor}
}

// categoryRow is one taxonomy entry derived from fixture tenants.
type categoryRow struct {
	ID       string
	Name     string
	Tier     int
	ParentID *string
}

func (c categoryRow) values() []any {
	return []any{c.ID, c.Name, c.Tier, c.ParentID}
}

// fixtureCategories derives the taxonomy referenced by the fixture's
// tenants. A parent known only by name is linked to a referenced category
// of that name, or created one tier up with a synthetic id. Parents come
// before children in the result.
func fixtureCategories(f *Fixture) []categoryRow {
	byID := make(map[string]*categoryRow)
	byName := make(map[string]string)
	var order []string

	for _, t := range f.Tenants {
		ref := t.CategoryRef
		if ref == nil || ref.ID == "" {
			continue
		}
		if _, ok := byID[ref.ID]; ok {
			continue
		}
		byID[ref.ID] = &categoryRow{ID: ref.ID, Name: ref.Name, Tier: int(ref.Tier)}
		byName[normalize.CategoryKey(ref.Name)] = ref.ID
		order = append(order, ref.ID)
	}

	for _, t := range f.Tenants {
		ref := t.CategoryRef
		if ref == nil || ref.ID == "" || strings.TrimSpace(ref.ParentName) == "" {
			continue
		}
		row := byID[ref.ID]
		if row.ParentID != nil {
			continue
		}
		key := normalize.CategoryKey(ref.ParentName)
		pid, ok := byName[key]
		if !ok {
			pid = "parent:" + key
			tier := int(ref.Tier) - 1
			if tier < int(model.TierSector) {
				tier = int(model.TierSector)
			}
			byID[pid] = &categoryRow{ID: pid, Name: ref.ParentName, Tier: tier}
			byName[key] = pid
			order = append(order, pid)
		}
		row.ParentID = model.StringPtr(pid)
	}

	out := make([]categoryRow, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	// Lower tiers first so parents exist before their children.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Tier < out[j].Tier })
	return out
}

// escapeLike escapes LIKE metacharacters with a backslash.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
