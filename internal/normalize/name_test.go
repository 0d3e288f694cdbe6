package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want NormalizedName
	}{
		{
			name: "article and suffix",
			in:   "  The   Trafford Centre ",
			want: NormalizedName{Display: "The Trafford Centre", Folded: "the trafford centre", Key: "trafford", Suffix: "centre"},
		},
		{
			name: "longest suffix wins",
			in:   "Café Royal Shopping Centre",
			want: NormalizedName{Display: "Café Royal Shopping Centre", Folded: "cafe royal shopping centre", Key: "cafe royal", Suffix: "shopping centre"},
		},
		{
			name: "american spelling",
			in:   "Intu Lakeside Shopping Center",
			want: NormalizedName{Display: "Intu Lakeside Shopping Center", Folded: "intu lakeside shopping center", Key: "intu lakeside", Suffix: "shopping center"},
		},
		{
			name: "ampersand spelled out",
			in:   "Bullring & Grand Central",
			want: NormalizedName{Display: "Bullring & Grand Central", Folded: "bullring and grand central", Key: "bullring and grand central"},
		},
		{
			name: "apostrophes and periods dropped",
			in:   "St. David's Centre",
			want: NormalizedName{Display: "St. David's Centre", Folded: "st davids centre", Key: "st davids", Suffix: "centre"},
		},
		{
			name: "hyphen becomes space",
			in:   "Meadowhall-Centre",
			want: NormalizedName{Display: "Meadowhall-Centre", Folded: "meadowhall centre", Key: "meadowhall", Suffix: "centre"},
		},
		{
			name: "retail park",
			in:   "Trafford Retail Park",
			want: NormalizedName{Display: "Trafford Retail Park", Folded: "trafford retail park", Key: "trafford", Suffix: "retail park"},
		},
		{
			name: "suffix kept when nothing else remains",
			in:   "The Mall",
			want: NormalizedName{Display: "The Mall", Folded: "the mall", Key: "mall"},
		},
		{
			name: "bare suffix",
			in:   "Centre",
			want: NormalizedName{Display: "Centre", Folded: "centre", Key: "centre"},
		},
		{
			name: "no suffix",
			in:   "Westfield London",
			want: NormalizedName{Display: "Westfield London", Folded: "westfield london", Key: "westfield london"},
		},
		{
			name: "empty",
			in:   "",
			want: NormalizedName{},
		},
		{
			name: "punctuation only",
			in:   " --- ",
			want: NormalizedName{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Name(tt.in))
		})
	}
}

func TestName_CaseInsensitive(t *testing.T) {
	assert.Equal(t, Key("trafford centre"), Key("TRAFFORD CENTRE"))
	assert.Equal(t, Key("the trafford centre"), Key("Trafford Centre"))
	assert.Equal(t, "trafford", Key("TRAFFORD CENTRE"))
}

func TestFold_Idempotent(t *testing.T) {
	inputs := []string{
		"The Trafford Centre",
		"St. David's Centre",
		"Bullring & Grand Central",
		"Café Royal",
		"  lots   of   space  ",
		"Hyphen-ated/slashed",
	}
	for _, in := range inputs {
		once := Fold(in)
		assert.Equal(t, once, Fold(once), in)
	}
}

func TestName_IsZero(t *testing.T) {
	assert.True(t, Name("").IsZero())
	assert.True(t, Name("   ").IsZero())
	assert.False(t, Name("Arndale").IsZero())
}

func TestName_Base(t *testing.T) {
	assert.Equal(t, "trafford centre", Name("The Trafford Centre").Base())
	assert.Equal(t, Name("Trafford Centre").Base(), Name("the trafford centre").Base())
	assert.Equal(t, "the", Name("The").Base())
	assert.Equal(t, "", Name("").Base())
}

func TestBrandKey(t *testing.T) {
	assert.Equal(t, BrandKey("Marks & Spencer"), BrandKey("marks and spencer"))
	assert.Equal(t, BrandKey("H&M"), BrandKey("h & m"))
	assert.Equal(t, "mcdonalds", BrandKey("McDonald's"))
	assert.Equal(t, "boots", BrandKey("  BOOTS "))
}

func TestExtractCityHint(t *testing.T) {
	tests := []struct {
		query    string
		wantRest string
		wantCity string
	}{
		{"Trafford Centre in Manchester", "Trafford Centre", "Manchester"},
		{"Bullring in Birmingham shopping centre", "Bullring", "Birmingham"},
		{"Centre in the Park in Leeds", "Centre in the Park", "Leeds"},
		{"Lakeside in  Thurrock ", "Lakeside", "Thurrock"},
		{"Meadowhall in Sheffield.", "Meadowhall", "Sheffield"},
		{"Westfield", "Westfield", ""},
		{"in Leeds", "in Leeds", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rest, city := ExtractCityHint(tt.query)
			assert.Equal(t, tt.wantRest, rest)
			assert.Equal(t, tt.wantCity, city)
		})
	}
}
