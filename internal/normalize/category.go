package normalize

import (
	"strings"

	"github.com/flourish-retail/gapcore/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Uncategorized is the bucket for tenants with no usable category.
const Uncategorized = "Uncategorized"

// categoryAliases maps variant labels onto the canonical taxonomy names.
// Keys are folded at init.
var categoryAliases = map[string]string{
	"Fashion & Clothing":       "Clothing & Footwear",
	"Fashion":                  "Clothing & Footwear",
	"Fashion & Apparel":        "Clothing & Footwear",
	"Clothing":                 "Clothing & Footwear",
	"Electronics & Technology": "Electrical & Technology",
	"Electronics":              "Electrical & Technology",
	"Entertainment":            "Leisure & Entertainment",
	"Leisure":                  "Leisure & Entertainment",
	"Sports & Outdoors":        "Leisure & Entertainment",
	"Homeware & Lifestyle":     "Home & Garden",
	"Home & Lifestyle":         "Home & Garden",
	"Jewellery & Accessories":  "Jewellery & Watches",
	"Food & Drink":             "Cafes & Restaurants",
	"Food & Beverage":          "Cafes & Restaurants",
	"F&B":                      "Cafes & Restaurants",
	"Department Stores":        "Department Store",
	"Uncategorised":            Uncategorized,
	"Unknown":                  Uncategorized,
}

var foldedAliases = func() map[string]string {
	m := make(map[string]string, len(categoryAliases))
	for k, v := range categoryAliases {
		m[CategoryKey(k)] = v
	}
	return m
}()

// CategoryKey folds a category label into its comparison form, so "Food",
// "food" and " FOOD " share one key.
func CategoryKey(raw string) string {
	return Fold(raw)
}

// Category resolves a free-text category label to its canonical display
// name. Aliases win; otherwise the folded form is title-cased with "and"
// rendered as "&". Blank labels become Uncategorized.
func Category(raw string) string {
	key := CategoryKey(raw)
	if key == "" {
		return Uncategorized
	}
	if canonical, ok := foldedAliases[key]; ok {
		return canonical
	}
	display := strings.TrimSpace(strings.ReplaceAll(" "+key+" ", " and ", " & "))
	return cases.Title(language.English).String(display)
}

// TenantCategory resolves the category a tenant is counted under. A
// subcategory reference rolls up to its parent; any other reference uses
// its own name; otherwise the free-text label is used.
func TenantCategory(t model.Tenant) string {
	if ref := t.CategoryRef; ref != nil {
		if ref.Tier == model.TierSubcategory && strings.TrimSpace(ref.ParentName) != "" {
			return Category(ref.ParentName)
		}
		if strings.TrimSpace(ref.Name) != "" {
			return Category(ref.Name)
		}
	}
	return Category(t.Category)
}
