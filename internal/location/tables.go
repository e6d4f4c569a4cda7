package location

// Tables holds the static geography used to resolve location tokens. The equivalence map is
// directed: list both directions when two names are interchangeable. Keys and values are
// normalized when a Resolver is built, so they may be written with accents and capitals.
type Tables struct {
	Equivalents          map[string][]string `mapstructure:"equivalents" json:"equivalents"`
	MunicipalityProvince map[string]string   `mapstructure:"municipality-province" json:"municipality_province"`
	ProvinceAliases      map[string][]string `mapstructure:"province-aliases" json:"province_aliases"`
	ProvinceChildren     map[string][]string `mapstructure:"province-children" json:"province_children"`
	Wildcards            []string            `mapstructure:"wildcards" json:"wildcards"`
}

var alicanteProvinceAliases = []string{
	"alicante provincia",
	"provincia de alicante",
	"provincia alicante",
	"alicante (provincia)",
	"alicante province",
	"province of alicante",
}

// DefaultTables returns the geography of the brokerage's working area (Alicante province).
func DefaultTables() Tables {
	return Tables{
		Equivalents: map[string][]string{
			"alcoi":                   {"alcoy"},
			"alcoy":                   {"alcoi"},
			"alacant":                 {"alicante"},
			"alicante":                {"alacant"},
			"alicante provincia":      without(alicanteProvinceAliases, "alicante provincia"),
			"provincia de alicante":   without(alicanteProvinceAliases, "provincia de alicante"),
			"provincia alicante":      without(alicanteProvinceAliases, "provincia alicante"),
			"alicante (provincia)":    without(alicanteProvinceAliases, "alicante (provincia)"),
			"alicante province":       without(alicanteProvinceAliases, "alicante province"),
			"province of alicante":    without(alicanteProvinceAliases, "province of alicante"),
			"alicante (spain)":        {"alicante", "espana"},
			"alicante spain":          {"alicante", "espana"},
			"alicante españa":         {"alicante", "espana"},
			"españa":                  {"espana", "spain"},
			"spain":                   {"espana"},
			"espana":                  {"españa", "spain"},
			"sant vicent del raspeig": {"san vicente del raspeig"},
			"san vicente del raspeig": {"sant vicent del raspeig"},
		},
		MunicipalityProvince: map[string]string{
			"alicante":                "alicante",
			"alcoy":                   "alicante",
			"alcoi":                   "alicante",
			"banyeres de mariola":     "alicante",
			"benillup":                "alicante",
			"cocentaina":              "alicante",
			"penaguila":               "alicante",
			"san vicente del raspeig": "alicante",
			"sant vicent del raspeig": "alicante",
		},
		ProvinceAliases: map[string][]string{
			"alicante": append([]string(nil), alicanteProvinceAliases...),
		},
		ProvinceChildren: map[string][]string{
			"alicante": {
				"alcoy",
				"alcoi",
				"banyeres de mariola",
				"benillup",
				"cocentaina",
				"penaguila",
				"san vicente del raspeig",
				"sant vicent del raspeig",
				"alicante",
			},
		},
		Wildcards: []string{"espana", "españa", "spain"},
	}
}

func without(items []string, skip string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item != skip {
			out = append(out, item)
		}
	}
	return out
}
