package geocode

import (
	"embed"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"go-icewatch/monitoring"
	"go-icewatch/types"
)

//go:embed geodata/*.json
var geodataFS embed.FS

const earthRadiusKM = 6371.0

// HaversineKM calculates the great-circle distance in km between two
// points specified in decimal degrees.
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	dlat := (lat2 - lat1) * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dlon/2)*math.Sin(dlon/2)
	return earthRadiusKM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Entry is one gazetteer place: a neighborhood or landmark with a
// centroid.
type Entry struct {
	Name     string   `json:"name"`
	Aliases  []string `json:"aliases"`
	Centroid struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"centroid"`
}

// Gazetteer is the static map from normalized place name to entry,
// read-only after load.
type Gazetteer struct {
	entries []Entry
	byName  map[string]*Entry
}

// LoadGazetteer reads the embedded geodata files.
func LoadGazetteer() (*Gazetteer, error) {
	g := &Gazetteer{byName: make(map[string]*Entry)}
	for _, file := range []string{"geodata/minneapolis_neighborhoods.json", "geodata/landmarks.json"} {
		raw, err := geodataFS.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
		var entries []Entry
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", file, err)
		}
		g.entries = append(g.entries, entries...)
	}

	for i := range g.entries {
		e := &g.entries[i]
		g.byName[normalize(e.Name)] = e
		for _, alias := range e.Aliases {
			g.byName[normalize(alias)] = e
		}
	}

	monitoring.Infof("gazetteer: loaded %d entries (%d names)", len(g.entries), len(g.byName))
	return g, nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Lookup resolves a place name (or alias) to its entry.
func (g *Gazetteer) Lookup(name string) (*Entry, bool) {
	e, ok := g.byName[normalize(name)]
	return e, ok
}

// FindInText scans text for gazetteer names and aliases, returning
// matched entries. Matching is lowercase substring with word boundaries
// approximated by the names themselves being multi-word or distinctive.
func (g *Gazetteer) FindInText(text string) []*Entry {
	lower := strings.ToLower(text)
	var found []*Entry
	seen := make(map[string]bool)
	for name, e := range g.byName {
		if seen[e.Name] {
			continue
		}
		if strings.Contains(lower, name) {
			seen[e.Name] = true
			found = append(found, e)
		}
	}
	return found
}

// ContainsPlaceName reports whether text mentions any gazetteer entry.
func (g *Gazetteer) ContainsPlaceName(text string) bool {
	lower := strings.ToLower(text)
	for name := range g.byName {
		if strings.Contains(lower, name) {
			return true
		}
	}
	return false
}

// Nearest returns the gazetteer entry closest to the given point and its
// distance in km. Returns nil when the gazetteer is empty.
func (g *Gazetteer) Nearest(lat, lon float64) (*Entry, float64) {
	var best *Entry
	bestDist := math.Inf(1)
	for i := range g.entries {
		e := &g.entries[i]
		d := HaversineKM(lat, lon, e.Centroid.Lat, e.Centroid.Lon)
		if d < bestDist {
			bestDist = d
			best = e
		}
	}
	return best, bestDist
}

// Location builds an ExtractedLocation from an entry at the given
// confidence.
func (e *Entry) Location(confidence float64) types.ExtractedLocation {
	return types.ExtractedLocation{
		Name:       e.Name,
		Lat:        e.Centroid.Lat,
		Lon:        e.Centroid.Lon,
		Confidence: confidence,
	}
}
