package geocode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-icewatch/nlp"
	"go-icewatch/types"
)

const (
	mplsLat = 44.9778
	mplsLon = -93.2650
)

type fakeRecognizer struct {
	candidates []nlp.Candidate
	err        error
}

func (f *fakeRecognizer) Entities(ctx context.Context, text string) ([]nlp.Candidate, error) {
	return f.candidates, f.err
}

type fakeResolver struct {
	coords map[string]*types.Coordinates
}

func (f *fakeResolver) Resolve(ctx context.Context, name string) (*types.Coordinates, error) {
	return f.coords[name], nil
}

func loadTestGazetteer(t *testing.T) *Gazetteer {
	t.Helper()
	gaz, err := LoadGazetteer()
	require.NoError(t, err)
	return gaz
}

func TestExtractGazetteerOnly(t *testing.T) {
	ext := NewExtractor(loadTestGazetteer(t), nil, nil, mplsLat, mplsLon, 50)
	r := &types.Report{Content: "ICE van spotted in Uptown near the lake"}

	ext.Extract(context.Background(), r)

	require.Len(t, r.Locations, 1)
	assert.Equal(t, "Uptown", r.Locations[0].Name)
	assert.Equal(t, 0.9, r.Locations[0].Confidence)
}

func TestExtractPreResolvedCoordinatesFirst(t *testing.T) {
	ext := NewExtractor(loadTestGazetteer(t), nil, nil, mplsLat, mplsLon, 50)
	r := &types.Report{
		Content: "Active ICE activity reported",
		Coords:  &types.Coordinates{Lat: 44.9490, Lon: -93.2980},
	}

	ext.Extract(context.Background(), r)

	require.NotEmpty(t, r.Locations)
	first := r.Locations[0]
	assert.Equal(t, 1.0, first.Confidence)
	// Coordinates near a known neighborhood pick up its name.
	assert.Equal(t, "Uptown", first.Name)
}

func TestExtractNERCandidateInGazetteer(t *testing.T) {
	ner := &fakeRecognizer{candidates: []nlp.Candidate{{Name: "Powderhorn", Type: "LOCATION"}}}
	ext := NewExtractor(loadTestGazetteer(t), ner, nil, mplsLat, mplsLon, 50)
	r := &types.Report{Content: "agents seen by the park"}

	ext.Extract(context.Background(), r)

	require.Len(t, r.Locations, 1)
	assert.Equal(t, "Powderhorn", r.Locations[0].Name)
	assert.Equal(t, 0.9, r.Locations[0].Confidence)
}

func TestExtractCityLevelFallback(t *testing.T) {
	ner := &fakeRecognizer{candidates: []nlp.Candidate{{Name: "Richfield", Type: "LOCATION"}}}
	resolver := &fakeResolver{coords: map[string]*types.Coordinates{
		"Richfield": {Lat: 44.8833, Lon: -93.2833},
	}}
	ext := NewExtractor(loadTestGazetteer(t), ner, resolver, mplsLat, mplsLon, 50)
	r := &types.Report{Content: "ICE vehicles in Richfield"}

	ext.Extract(context.Background(), r)

	require.Len(t, r.Locations, 1)
	assert.Equal(t, "Richfield", r.Locations[0].Name)
	assert.Equal(t, 0.5, r.Locations[0].Confidence)
}

func TestExtractFallbackOutsideRegionDiscarded(t *testing.T) {
	ner := &fakeRecognizer{candidates: []nlp.Candidate{{Name: "Chicago", Type: "LOCATION"}}}
	resolver := &fakeResolver{coords: map[string]*types.Coordinates{
		"Chicago": {Lat: 41.8781, Lon: -87.6298},
	}}
	ext := NewExtractor(loadTestGazetteer(t), ner, resolver, mplsLat, mplsLon, 50)
	r := &types.Report{Content: "they moved on toward Chicago"}

	ext.Extract(context.Background(), r)
	assert.Empty(t, r.Locations)
}

func TestExtractNoLocations(t *testing.T) {
	ext := NewExtractor(loadTestGazetteer(t), nil, nil, mplsLat, mplsLon, 50)
	r := &types.Report{Content: "unmarked vans seen again, same spot as before"}

	ext.Extract(context.Background(), r)
	assert.Empty(t, r.Locations)
}
