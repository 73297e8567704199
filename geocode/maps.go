package geocode

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"googlemaps.github.io/maps"

	"go-icewatch/monitoring"
	"go-icewatch/types"
)

// CityResolver resolves a free-text place name to coordinates. Used as a
// coarser fallback for NER candidates the gazetteer does not know.
type CityResolver interface {
	Resolve(ctx context.Context, name string) (*types.Coordinates, error)
}

// MapsResolver is a CityResolver backed by the Google Maps geocoding API.
// Results are cached in memory; lookups are biased to the locale by
// appending its display name to the query.
type MapsResolver struct {
	client *maps.Client
	region string

	mu    sync.Mutex
	cache map[string]*types.Coordinates
}

// NewMapsResolver creates a resolver, or (nil, nil) when no API key is
// configured.
func NewMapsResolver(apiKey, region string) (*MapsResolver, error) {
	if apiKey == "" {
		return nil, nil
	}
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating maps client: %w", err)
	}
	return &MapsResolver{
		client: client,
		region: region,
		cache:  make(map[string]*types.Coordinates),
	}, nil
}

// Resolve geocodes the name. Cache hits (including cached misses, stored
// as nil) avoid repeat API calls.
func (m *MapsResolver) Resolve(ctx context.Context, name string) (*types.Coordinates, error) {
	key := strings.ToLower(strings.TrimSpace(name))

	m.mu.Lock()
	if coords, ok := m.cache[key]; ok {
		m.mu.Unlock()
		return coords, nil
	}
	m.mu.Unlock()

	req := &maps.GeocodingRequest{
		Address: name + ", " + m.region,
	}
	results, err := m.client.Geocode(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("geocoding %q: %w", name, err)
	}

	var coords *types.Coordinates
	if len(results) > 0 {
		loc := results[0].Geometry.Location
		coords = &types.Coordinates{Lat: loc.Lat, Lon: loc.Lng}
	} else {
		monitoring.Debugf("geocode: no results for %q", name)
	}

	m.mu.Lock()
	m.cache[key] = coords
	m.mu.Unlock()
	return coords, nil
}
