package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-icewatch/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleReport(id string, observed time.Time) *types.Report {
	return &types.Report{
		SourceID:    id,
		Source:      "bluesky",
		Trust:       types.TrustNormal,
		ObservedAt:  observed,
		CollectedAt: observed.Add(time.Minute),
		Content:     "ICE van in Uptown",
		CleanedText: "ICE van in Uptown",
		Author:      "alice",
		URL:         "https://bsky.app/profile/alice/post/" + id,
		Verdict:     types.VerdictRelevant,
		Locations: []types.ExtractedLocation{
			{Name: "Uptown", Lat: 44.9490, Lon: -93.2980, Confidence: 0.9},
		},
	}
}

func TestPutReportIdempotent(t *testing.T) {
	store := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	r := sampleReport("p1", now)
	require.NoError(t, store.PutReport(r))

	exists, err := store.HasReport(r.DedupKey())
	require.NoError(t, err)
	assert.True(t, exists)

	// Re-ingesting the same report leaves exactly one row.
	require.NoError(t, store.PutReport(r))
	reports, err := store.RecentRelevant(now.Add(-time.Hour), 100)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestHasReportMissing(t *testing.T) {
	store := openTestStore(t)
	exists, err := store.HasReport("bluesky:nope")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestReportRoundTrip(t *testing.T) {
	store := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	r := sampleReport("p1", now)
	r.Coords = &types.Coordinates{Lat: 44.95, Lon: -93.26}
	require.NoError(t, store.PutReport(r))

	reports, err := store.RecentRelevant(now.Add(-time.Hour), 100)
	require.NoError(t, err)
	require.Len(t, reports, 1)

	got := reports[0]
	assert.Equal(t, r.DedupKey(), got.DedupKey())
	assert.Equal(t, r.Source, got.Source)
	assert.Equal(t, r.SourceID, got.SourceID)
	assert.Equal(t, r.Content, got.Content)
	assert.Equal(t, r.Author, got.Author)
	assert.Equal(t, types.VerdictRelevant, got.Verdict)
	require.NotNil(t, got.Coords)
	assert.InDelta(t, 44.95, got.Coords.Lat, 0.0001)
	require.Len(t, got.Locations, 1)
	assert.Equal(t, "Uptown", got.Locations[0].Name)
	assert.True(t, r.ObservedAt.Equal(got.ObservedAt))
}

func TestClusterLifecyclePersistence(t *testing.T) {
	store := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	member := sampleReport("m1", now.Add(-10*time.Minute))
	cl := &types.Cluster{
		ID:          "cluster-1",
		State:       types.ClusterActive,
		Centroid:    &types.Coordinates{Lat: 44.9490, Lon: -93.2980},
		Label:       "Uptown",
		FirstSeen:   now.Add(-10 * time.Minute),
		LastUpdated: now.Add(-10 * time.Minute),
		Confidence:  0.55,
		Members:     []*types.Report{member},
	}
	member.ClusterID = cl.ID

	require.NoError(t, store.PutReport(member))
	require.NoError(t, store.UpsertCluster(cl))

	active, err := store.ActiveClusters()
	require.NoError(t, err)
	require.Len(t, active, 1)

	got := active[0]
	assert.Equal(t, cl.ID, got.ID)
	assert.Equal(t, "Uptown", got.Label)
	assert.InDelta(t, 0.55, got.Confidence, 0.0001)
	require.Len(t, got.Members, 1)
	assert.Equal(t, member.DedupKey(), got.Members[0].DedupKey())

	// Expiring the cluster removes it from the warm-start set.
	cl.State = types.ClusterExpired
	require.NoError(t, store.UpsertCluster(cl))
	active, err = store.ActiveClusters()
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestMarkAlertPersistsHistory(t *testing.T) {
	store := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	member := sampleReport("m1", now.Add(-10*time.Minute))
	cl := &types.Cluster{
		ID:          "cluster-1",
		State:       types.ClusterActive,
		Label:       "Uptown",
		FirstSeen:   now.Add(-10 * time.Minute),
		LastUpdated: now.Add(-10 * time.Minute),
		Members:     []*types.Report{member},
	}
	require.NoError(t, store.PutReport(member))

	cl.AlertsEmitted = append(cl.AlertsEmitted, types.AlertRecord{
		Kind: types.AlertNew, SentAt: now, MemberCount: 1,
	})
	require.NoError(t, store.MarkAlert(cl))

	active, err := store.ActiveClusters()
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Len(t, active[0].AlertsEmitted, 1)
	assert.Equal(t, types.AlertNew, active[0].AlertsEmitted[0].Kind)
	assert.Equal(t, 1, active[0].AlertsEmitted[0].MemberCount)

	// MarkAlert also points member rows at the cluster.
	require.Len(t, active[0].Members, 1)
	assert.Equal(t, cl.ID, active[0].Members[0].ClusterID)
}

func TestPurgeOlderThan(t *testing.T) {
	store := openTestStore(t)
	now := time.Now().UTC()

	old := sampleReport("old", now.Add(-10*24*time.Hour))
	old.CollectedAt = now.Add(-10 * 24 * time.Hour)
	fresh := sampleReport("fresh", now.Add(-time.Hour))
	require.NoError(t, store.PutReport(old))
	require.NoError(t, store.PutReport(fresh))

	require.NoError(t, store.PurgeOlderThan(now.Add(-7*24*time.Hour)))

	exists, err := store.HasReport(old.DedupKey())
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = store.HasReport(fresh.DedupKey())
	require.NoError(t, err)
	assert.True(t, exists)
}
