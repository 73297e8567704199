package geocode

import (
	"context"
	"strings"

	"go-icewatch/monitoring"
	"go-icewatch/nlp"
	"go-icewatch/types"
)

// Confidence tiers for extracted locations.
const (
	confPreResolved = 1.0
	confGazetteer   = 0.9
	confCityLevel   = 0.5
)

// Extractor resolves a report's free text into a list of locations using
// NER plus the gazetteer, with an optional city-level geocoding fallback.
// With a nil recognizer it runs in gazetteer-only mode (reported once at
// startup): text-derived locations then top out at the gazetteer tier,
// while pre-resolved coordinates still carry full confidence.
type Extractor struct {
	gaz      *Gazetteer
	ner      nlp.Recognizer
	resolver CityResolver

	// Coordinates outside this radius of the center are discarded from
	// fallback lookups.
	centerLat, centerLon, maxDistanceKM float64
}

// NewExtractor wires the extractor. ner and resolver may be nil.
func NewExtractor(gaz *Gazetteer, ner nlp.Recognizer, resolver CityResolver, centerLat, centerLon, maxDistanceKM float64) *Extractor {
	if ner == nil {
		monitoring.Warnf("extractor: NER unavailable, running gazetteer-only")
	}
	return &Extractor{
		gaz:           gaz,
		ner:           ner,
		resolver:      resolver,
		centerLat:     centerLat,
		centerLon:     centerLon,
		maxDistanceKM: maxDistanceKM,
	}
}

// Extract populates r.Locations. Pre-resolved coordinates come first at
// full confidence; gazetteer matches at 0.9; city-level fallbacks at 0.5.
// A report with no resolvable location keeps an empty list.
func (e *Extractor) Extract(ctx context.Context, r *types.Report) {
	var locations []types.ExtractedLocation
	seen := make(map[string]bool)

	if r.Coords != nil {
		name := ""
		if entry, dist := e.gaz.Nearest(r.Coords.Lat, r.Coords.Lon); entry != nil && dist <= 5.0 {
			name = entry.Name
		}
		locations = append(locations, types.ExtractedLocation{
			Name:       name,
			Lat:        r.Coords.Lat,
			Lon:        r.Coords.Lon,
			Confidence: confPreResolved,
		})
	}

	text := r.Text()

	// Gazetteer phrase scan works with or without NER.
	for _, entry := range e.gaz.FindInText(text) {
		if seen[entry.Name] {
			continue
		}
		seen[entry.Name] = true
		locations = append(locations, entry.Location(confGazetteer))
	}

	if e.ner != nil {
		candidates, err := e.ner.Entities(ctx, text)
		if err != nil {
			// Degraded for this report; the gazetteer scan above stands.
			candidates = nil
		}
		for _, cand := range candidates {
			key := strings.ToLower(cand.Name)
			if entry, ok := e.gaz.Lookup(key); ok {
				if !seen[entry.Name] {
					seen[entry.Name] = true
					locations = append(locations, entry.Location(confGazetteer))
				}
				continue
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			if loc, ok := e.resolveCityLevel(ctx, cand.Name); ok {
				locations = append(locations, loc)
			}
		}
	}

	r.Locations = locations
}

// resolveCityLevel geocodes an unknown NER candidate and keeps it only
// when it lands inside the monitored region.
func (e *Extractor) resolveCityLevel(ctx context.Context, name string) (types.ExtractedLocation, bool) {
	if e.resolver == nil {
		return types.ExtractedLocation{}, false
	}
	coords, err := e.resolver.Resolve(ctx, name)
	if err != nil {
		monitoring.Debugf("extractor: city-level lookup failed for %q: %v", name, err)
		return types.ExtractedLocation{}, false
	}
	if coords == nil {
		return types.ExtractedLocation{}, false
	}
	if HaversineKM(coords.Lat, coords.Lon, e.centerLat, e.centerLon) > e.maxDistanceKM {
		return types.ExtractedLocation{}, false
	}
	return types.ExtractedLocation{
		Name:       name,
		Lat:        coords.Lat,
		Lon:        coords.Lon,
		Confidence: confCityLevel,
	}, true
}
