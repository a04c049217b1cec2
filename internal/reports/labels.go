package reports

import (
	"hash/fnv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Label is the display decoration of a category key.
type Label struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// LabelSet configures display names and colors for one dimension.
type LabelSet struct {
	Names  map[string]string
	Colors map[string]string
}

// LabelConfig configures a Labeler. Palette is used for keys without an
// explicit color.
type LabelConfig struct {
	Dimensions map[Dimension]LabelSet
	Palette    []string
}

// DefaultPalette is the fallback color cycle for unmapped keys.
var DefaultPalette = []string{
	"#4e79a7", "#f28e2b", "#e15759", "#76b7b2", "#59a14f",
	"#edc948", "#b07aa1", "#ff9da7", "#9c755f", "#bab0ac",
}

// DefaultLabelConfig ships names and colors for the standard booking sources
// and room categories.
func DefaultLabelConfig() LabelConfig {
	return LabelConfig{
		Dimensions: map[Dimension]LabelSet{
			DimensionSource: {
				Names: map[string]string{
					"website": "Website",
					"phone":   "Phone",
					"email":   "Email",
					"walk-in": "Walk-in",
					"agent":   "Travel Agent",
					"partner": "Partner",
				},
				Colors: map[string]string{
					"website": "#3b82f6",
					"phone":   "#10b981",
					"email":   "#f59e0b",
					"walk-in": "#8b5cf6",
					"agent":   "#ef4444",
					"partner": "#06b6d4",
				},
			},
			DimensionRoomCategory: {
				Names: map[string]string{
					"standard": "Standard Room",
					"deluxe":   "Deluxe Room",
					"suite":    "Suite",
					"family":   "Family Room",
				},
				Colors: map[string]string{
					"standard": "#64748b",
					"deluxe":   "#0ea5e9",
					"suite":    "#d946ef",
					"family":   "#84cc16",
				},
			},
		},
		Palette: DefaultPalette,
	}
}

// Labeler resolves display names and colors for category keys. It is
// read-only after construction and safe for concurrent use.
type Labeler struct {
	dims    map[Dimension]LabelSet
	palette []string
}

// NewLabeler builds a Labeler. A nil config uses DefaultLabelConfig.
func NewLabeler(cfg *LabelConfig) *Labeler {
	c := DefaultLabelConfig()
	if cfg != nil {
		c = *cfg
	}
	if len(c.Palette) == 0 {
		c.Palette = DefaultPalette
	}
	if c.Dimensions == nil {
		c.Dimensions = map[Dimension]LabelSet{}
	}
	return &Labeler{dims: c.Dimensions, palette: c.Palette}
}

// Label decorates a key of the given dimension.
func (l *Labeler) Label(dim Dimension, key string) Label {
	return Label{Key: key, Name: l.Name(dim, key), Color: l.Color(dim, key)}
}

// Name returns the configured display name or a title-cased fallback.
func (l *Labeler) Name(dim Dimension, key string) string {
	if name, ok := l.dims[dim].Names[key]; ok && name != "" {
		return name
	}
	words := strings.FieldsFunc(key, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
	if len(words) == 0 {
		words = []string{UnknownKey}
	}
	// A Caser keeps state between calls, so each lookup gets its own.
	return cases.Title(language.English).String(strings.Join(words, " "))
}

// Color returns the configured color or a palette entry chosen by a stable
// hash of the key, so an unmapped key always gets the same color.
func (l *Labeler) Color(dim Dimension, key string) string {
	if color, ok := l.dims[dim].Colors[key]; ok && color != "" {
		return color
	}
	return l.palette[paletteIndex(key, len(l.palette))]
}

func paletteIndex(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
