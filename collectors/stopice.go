package collectors

import (
	"context"
	"encoding/xml"
	"net/http"
	"time"

	"go-icewatch/config"
	"go-icewatch/geocode"
	"go-icewatch/monitoring"
	"go-icewatch/types"
)

const stopiceDefaultBase = "https://stopice.net"

// stopiceFeed is the XML map-data payload. The site's SMS-driven map
// updates nightly, hence the long poll interval.
type stopiceFeed struct {
	XMLName xml.Name       `xml:"map_data"`
	Entries []stopiceEntry `xml:"report"`
}

type stopiceEntry struct {
	ID        string  `xml:"id"`
	Lat       float64 `xml:"lat"`
	Long      float64 `xml:"long"`
	Location  string  `xml:"location"`
	Timestamp string  `xml:"timestamp"`
	Comments  string  `xml:"comments"`
}

// StopICE collects sightings from the StopICE.net SMS/web map feed.
type StopICE struct {
	cfg     *config.Config
	src     config.SourceConfig
	client  *http.Client
	baseURL string
	nowFn   func() time.Time
}

// NewStopICE builds the collector; baseURL "" means production.
func NewStopICE(cfg *config.Config, baseURL string) *StopICE {
	if baseURL == "" {
		baseURL = stopiceDefaultBase
	}
	return &StopICE{
		cfg:     cfg,
		src:     cfg.Sources["stopice"],
		client:  &http.Client{Timeout: 20 * time.Second},
		baseURL: baseURL,
		nowFn:   time.Now,
	}
}

func (c *StopICE) Name() string            { return "stopice" }
func (c *StopICE) Trust() types.Trust      { return c.src.Trust }
func (c *StopICE) Interval() time.Duration { return c.src.Interval }

// Poll fetches the whole map feed; the store's dedup makes re-seeing the
// same sightings harmless.
func (c *StopICE) Poll(ctx context.Context) ([]*types.Report, error) {
	body, err := fetchBody(ctx, c.client, c.baseURL+"/recentmapdata/", nil)
	if err != nil {
		return nil, err
	}

	var feed stopiceFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, types.Transientf("decoding stopice feed: %w", err)
	}

	now := c.nowFn().UTC()
	var reports []*types.Report
	for _, entry := range feed.Entries {
		dist := geocode.HaversineKM(entry.Lat, entry.Long,
			c.cfg.Locale.CenterLat, c.cfg.Locale.CenterLon)
		if dist > c.cfg.MaxDistanceKM {
			continue
		}

		observed, err := parseAnyTime(entry.Timestamp)
		if err != nil {
			monitoring.Warnf("stopice: skipping sighting %s: %v", entry.ID, err)
			continue
		}

		content := entry.Comments
		if content == "" {
			content = "ICE sighting reported at " + entry.Location
		}

		reports = append(reports, &types.Report{
			SourceID:    entry.ID,
			Source:      c.Name(),
			Trust:       c.Trust(),
			ObservedAt:  observed,
			CollectedAt: now,
			Content:     content,
			URL:         c.baseURL,
			Coords:      &types.Coordinates{Lat: entry.Lat, Lon: entry.Long},
		})
	}

	sortChronological(reports)
	return reports, nil
}
