// Package normalize canonicalizes location names, tenant names and category
// labels so that free-text (often voice-transcribed) input can be compared
// against stored records.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// venueSuffixes lists generic venue suffixes, longest first so that
// "shopping centre" wins over "centre".
var venueSuffixes = []string{
	"shopping centre", "shopping center",
	"retail centre", "retail center",
	"outlet centre", "outlet center",
	"designer outlet", "outlet village",
	"shopping park", "shopping mall",
	"retail park",
	"centre", "center", "mall",
}

var multiSpaceRe = regexp.MustCompile(`\s+`)

// symbolReplacer runs after case folding. Apostrophes, periods and commas
// join their neighbours; separators become spaces.
var symbolReplacer = strings.NewReplacer(
	"&", " and ",
	"+", " and ",
	"'", "",
	"’", "",
	"‘", "",
	".", "",
	",", "",
	"-", " ",
	"–", " ",
	"/", " ",
)

// NormalizedName is the canonical form of a location name.
type NormalizedName struct {
	// Display is the trimmed input with whitespace collapsed.
	Display string
	// Folded is case-folded, accent-stripped and punctuation-free.
	Folded string
	// Key is Folded with a trailing venue suffix and a leading article
	// removed. It is the primary comparison form.
	Key string
	// Suffix is the venue suffix removed from Key, if any.
	Suffix string
}

// IsZero reports whether the name normalized to nothing.
func (n NormalizedName) IsZero() bool {
	return n.Folded == ""
}

// Base returns Folded without a leading article, so "The Trafford Centre"
// and "Trafford Centre" compare equal.
func (n NormalizedName) Base() string {
	if b := dropArticle(n.Folded); b != "" {
		return b
	}
	return n.Folded
}

// Name normalizes a location name. It never fails; empty or
// punctuation-only input yields the zero value.
func Name(raw string) NormalizedName {
	display := collapse(raw)
	if display == "" {
		return NormalizedName{}
	}

	folded := Fold(display)
	if folded == "" {
		return NormalizedName{}
	}

	key, suffix := stripVenueSuffix(folded)
	return NormalizedName{
		Display: display,
		Folded:  folded,
		Key:     key,
		Suffix:  suffix,
	}
}

// Key is shorthand for Name(raw).Key.
func Key(raw string) string {
	return Name(raw).Key
}

// Fold lowercases s, strips diacritics, spells out ampersands and removes
// punctuation, leaving single-spaced letters and digits.
func Fold(s string) string {
	s = stripAccents(cases.Fold().String(s))
	s = symbolReplacer.Replace(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, s)
	return collapse(s)
}

// BrandKey folds a tenant name for brand comparison across locations.
func BrandKey(name string) string {
	return Fold(name)
}

func stripVenueSuffix(folded string) (key, suffix string) {
	key = folded
	for _, sfx := range venueSuffixes {
		var rest string
		switch {
		case folded == sfx:
			rest = ""
		case strings.HasSuffix(folded, " "+sfx):
			rest = strings.TrimSpace(strings.TrimSuffix(folded, sfx))
		default:
			continue
		}
		// Keep the suffix when it is all there is: "The Mall" stays "mall".
		if len([]rune(dropArticle(rest))) < 2 {
			break
		}
		key, suffix = rest, sfx
		break
	}
	if stripped := dropArticle(key); stripped != "" {
		key = stripped
	}
	return key, suffix
}

func dropArticle(s string) string {
	if s == "the" {
		return ""
	}
	return strings.TrimPrefix(s, "the ")
}

func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func collapse(s string) string {
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(s, " "))
}

// cityHintRe captures a trailing "... in <city>" phrase, optionally followed
// by a generic "shopping centre" tail.
var cityHintRe = regexp.MustCompile(`(?i)^(.+)\s+in\s+(\p{L}[\p{L}\s'.-]*?)(?:\s+shopping(?:\s+cent(?:re|er))?)?\s*$`)

// ExtractCityHint splits a query such as "Trafford Centre in Manchester"
// into the location part and the city. When no such phrase is present the
// query is returned unchanged with an empty city.
func ExtractCityHint(query string) (rest, city string) {
	query = collapse(query)
	m := cityHintRe.FindStringSubmatch(query)
	if m == nil {
		return query, ""
	}
	rest = strings.TrimSpace(m[1])
	city = strings.TrimRight(strings.TrimSpace(m[2]), ".'-")
	if rest == "" || city == "" {
		return query, ""
	}
	return rest, city
}
