package config

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// Locale holds all location-specific data for one metro area. Adding a
// new city is a new YAML file plus LOCALE=<name> in the environment.
type Locale struct {
	Name        string `yaml:"name"`
	DisplayName string `yaml:"display_name"`
	Timezone    string `yaml:"timezone"`

	CenterLat float64 `yaml:"center_lat"`
	CenterLon float64 `yaml:"center_lon"`
	RadiusKM  float64 `yaml:"radius_km"`

	FallbackLocation            string `yaml:"fallback_location"`
	FallbackLocationUnspecified string `yaml:"fallback_location_unspecified"`

	// GeoKeywords gate the filter's geographic-scope check; city names,
	// neighborhood names, landmark strings. All matched lowercase.
	GeoKeywords []string `yaml:"geo_keywords"`

	RSSFeeds []string `yaml:"rss_feeds"`

	BlueskyQueries    []string `yaml:"bluesky_queries"`
	BlueskyAccounts   []string `yaml:"bluesky_accounts"`
	InstagramAccounts []string `yaml:"instagram_accounts"`
}

// LoadLocale reads the named locale from the embedded set, or from an
// on-disk file when LOCALE_DIR is set. Empty name defaults to minneapolis.
func LoadLocale(name string) (*Locale, error) {
	if name == "" {
		name = "minneapolis"
	}

	var (
		raw []byte
		err error
	)
	if dir := os.Getenv("LOCALE_DIR"); dir != "" {
		raw, err = os.ReadFile(fmt.Sprintf("%s/%s.yaml", dir, name))
	} else {
		raw, err = localeFS.ReadFile(fmt.Sprintf("locales/%s.yaml", name))
	}
	if err != nil {
		return nil, fmt.Errorf("locale %q: %w", name, err)
	}

	var loc Locale
	if err := yaml.Unmarshal(raw, &loc); err != nil {
		return nil, fmt.Errorf("parsing locale %q: %w", name, err)
	}
	if loc.Name == "" {
		loc.Name = name
	}
	if loc.CenterLat == 0 && loc.CenterLon == 0 {
		return nil, fmt.Errorf("locale %q: missing center coordinates", name)
	}
	if loc.RadiusKM == 0 {
		loc.RadiusKM = 50.0
	}
	if loc.FallbackLocation == "" {
		loc.FallbackLocation = loc.DisplayName + " area"
	}
	if loc.FallbackLocationUnspecified == "" {
		loc.FallbackLocationUnspecified = loc.DisplayName + " (unspecified)"
	}
	return &loc, nil
}
