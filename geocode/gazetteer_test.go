package geocode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversineKM(t *testing.T) {
	// Downtown Minneapolis to downtown St. Paul is roughly 14 km.
	d := HaversineKM(44.9778, -93.2650, 44.9537, -93.0900)
	assert.InDelta(t, 14.0, d, 2.0)

	// Zero distance.
	assert.InDelta(t, 0.0, HaversineKM(44.9778, -93.2650, 44.9778, -93.2650), 0.001)
}

func TestGazetteerLookup(t *testing.T) {
	gaz, err := LoadGazetteer()
	require.NoError(t, err)

	entry, ok := gaz.Lookup("Uptown")
	require.True(t, ok)
	assert.Equal(t, "Uptown", entry.Name)
	assert.InDelta(t, 44.949, entry.Centroid.Lat, 0.01)

	// Aliases resolve to the canonical entry.
	entry, ok = gaz.Lookup("nordeast")
	require.True(t, ok)
	assert.Equal(t, "Northeast", entry.Name)

	_, ok = gaz.Lookup("narnia")
	assert.False(t, ok)
}

func TestGazetteerFindInText(t *testing.T) {
	gaz, err := LoadGazetteer()
	require.NoError(t, err)

	found := gaz.FindInText("ICE vehicles near Mercado Central on Lake Street")
	names := make(map[string]bool)
	for _, e := range found {
		names[e.Name] = true
	}
	assert.True(t, names["Mercado Central"])
	assert.True(t, names["Lake Street"])

	assert.Empty(t, gaz.FindInText("nothing geographic here"))
}

func TestGazetteerNearest(t *testing.T) {
	gaz, err := LoadGazetteer()
	require.NoError(t, err)

	// A point in the middle of Uptown.
	entry, dist := gaz.Nearest(44.9490, -93.2980)
	require.NotNil(t, entry)
	assert.Equal(t, "Uptown", entry.Name)
	assert.Less(t, dist, 1.0)
}
