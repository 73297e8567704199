package collectors

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-icewatch/config"
	"go-icewatch/types"
)

func collectorConfig(t *testing.T) *config.Config {
	t.Helper()
	locale, err := config.LoadLocale("")
	require.NoError(t, err)
	return &config.Config{
		Locale:        locale,
		MaxDistanceKM: 50.0,
		FreshMax:      3 * time.Hour,
		Sources: map[string]config.SourceConfig{
			"iceout":    {Enabled: true, Interval: 90 * time.Second, Trust: types.TrustHigh},
			"stopice":   {Enabled: true, Interval: 1800 * time.Second, Trust: types.TrustHigh},
			"bluesky":   {Enabled: true, Interval: 120 * time.Second, Trust: types.TrustNormal},
			"instagram": {Enabled: true, Interval: 300 * time.Second, Trust: types.TrustNormal},
			"rss":       {Enabled: true, Interval: 300 * time.Second, Trust: types.TrustNormal},
		},
	}
}

func TestIceoutPoll(t *testing.T) {
	now := time.Now().UTC()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/api/report-feed")
		assert.NotEmpty(t, r.URL.Query().Get("since"))
		fmt.Fprintf(w, `[
			{"id": 101, "latitude": 44.9490, "longitude": -93.2980,
			 "location_description": "Uptown Minneapolis", "category_enum": 1,
			 "incident_time": %q, "status": 1},
			{"id": 102, "latitude": 38.6270, "longitude": -90.1994,
			 "location_description": "St. Louis", "category_enum": 1,
			 "incident_time": %q, "status": 1}
		]`, now.Add(-10*time.Minute).Format(time.RFC3339), now.Add(-5*time.Minute).Format(time.RFC3339))
	}))
	defer srv.Close()

	c := NewIceout(collectorConfig(t), srv.URL)
	reports, err := c.Poll(context.Background())
	require.NoError(t, err)

	// Out-of-radius reports are filtered at the collector.
	require.Len(t, reports, 1)
	r := reports[0]
	assert.Equal(t, "iceout:101", r.DedupKey())
	assert.Equal(t, types.TrustHigh, r.Trust)
	require.NotNil(t, r.Coords)
	assert.InDelta(t, 44.9490, r.Coords.Lat, 0.0001)
	assert.Contains(t, r.Content, "Uptown Minneapolis")
}

func TestIceoutPollTransientOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewIceout(collectorConfig(t), srv.URL)
	_, err := c.Poll(context.Background())
	require.Error(t, err)
	assert.False(t, types.IsPermanent(err))
}

func TestIceoutPollPermanentOnForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewIceout(collectorConfig(t), srv.URL)
	_, err := c.Poll(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsPermanent(err))
}

func TestStopICEPoll(t *testing.T) {
	now := time.Now().UTC()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<map_data>
			<report>
				<id>55</id>
				<lat>44.9626</lat>
				<long>-93.2575</long>
				<location>Franklin Avenue, Minneapolis</location>
				<timestamp>%s</timestamp>
				<comments>ICE spotted near Franklin Ave station</comments>
			</report>
		</map_data>`, now.Add(-30*time.Minute).Format("2006-01-02 15:04:05"))
	}))
	defer srv.Close()

	c := NewStopICE(collectorConfig(t), srv.URL)
	reports, err := c.Poll(context.Background())
	require.NoError(t, err)

	require.Len(t, reports, 1)
	assert.Equal(t, "stopice:55", reports[0].DedupKey())
	assert.Equal(t, "ICE spotted near Franklin Ave station", reports[0].Content)
	require.NotNil(t, reports[0].Coords)
}

func TestBlueskyPoll(t *testing.T) {
	now := time.Now().UTC()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/xrpc/"+searchPostsMethod:
			fmt.Fprintf(w, `{"posts": [{
				"uri": "at://did:plc:abc/app.bsky.feed.post/3kxyz",
				"cid": "bafy123",
				"author": {"handle": "alice.bsky.social"},
				"record": {"createdAt": %q, "text": "ICE van in Uptown right now"},
				"indexedAt": %q
			}]}`, now.Add(-10*time.Minute).Format(time.RFC3339), now.Format(time.RFC3339))
		case r.URL.Path == "/xrpc/"+authorFeedMethod:
			fmt.Fprint(w, `{"feed": []}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewBluesky(collectorConfig(t), srv.URL)
	reports, err := c.Poll(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, reports)
	r := reports[0]
	assert.Equal(t, "bluesky", r.Source)
	assert.Equal(t, "alice.bsky.social", r.Author)
	assert.Equal(t, "ICE van in Uptown right now", r.Content)
	assert.Equal(t, "https://bsky.app/profile/alice.bsky.social/post/3kxyz", r.URL)

	// The session cache suppresses re-emission of the same post.
	reports, err = c.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestRSSPoll(t *testing.T) {
	now := time.Now().UTC()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, `<?xml version="1.0"?>
			<rss version="2.0"><channel>
				<title>Local News</title>
				<item>
					<title>ICE activity reported in Minneapolis</title>
					<link>https://news.example/a1</link>
					<description>Witnesses report agents on Lake Street right now.</description>
					<pubDate>%s</pubDate>
				</item>
			</channel></rss>`, now.Add(-20*time.Minute).Format(time.RFC1123Z))
	}))
	defer srv.Close()

	c := NewRSS(collectorConfig(t), []string{srv.URL})
	reports, err := c.Poll(context.Background())
	require.NoError(t, err)

	require.Len(t, reports, 1)
	r := reports[0]
	assert.Equal(t, "rss", r.Source)
	assert.Equal(t, types.TrustNormal, r.Trust)
	assert.Contains(t, r.Content, "ICE activity reported")
	assert.Contains(t, r.Content, "Lake Street")
	assert.Equal(t, "https://news.example/a1", r.URL)
}

func TestParseAnyTime(t *testing.T) {
	for _, raw := range []string{
		"2026-08-06T10:30:00Z",
		"2026-08-06T10:30:00.123Z",
		"2026-08-06T10:30:00",
		"2026-08-06 10:30:00",
	} {
		ts, err := parseAnyTime(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, 2026, ts.Year())
	}
	_, err := parseAnyTime("next tuesday")
	assert.Error(t, err)
}
