package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go-icewatch/config"
	"go-icewatch/geocode"
	"go-icewatch/monitoring"
	"go-icewatch/types"
)

const iceoutDefaultBase = "https://iceout.org"

// iceoutReport is one entry in the report-feed payload.
type iceoutReport struct {
	ID                  int64   `json:"id"`
	Latitude            float64 `json:"latitude"`
	Longitude           float64 `json:"longitude"`
	LocationDescription string  `json:"location_description"`
	CategoryEnum        int     `json:"category_enum"`
	IncidentTime        string  `json:"incident_time"`
	CreatedAt           string  `json:"created_at"`
	Status              int     `json:"status"`
}

var iceoutCategories = map[int]string{
	0: "Critical",
	1: "Active",
	2: "Observed",
	3: "Other",
}

// Iceout collects real-time community reports from the Iceout.org feed.
// Reports carry structured coordinates and a vetted location description,
// so the platform gets the HIGH trust tier. The feed is nationwide; polls
// filter to the locale radius client-side.
type Iceout struct {
	cfg      *config.Config
	src      config.SourceConfig
	client   *http.Client
	baseURL  string
	lastPoll time.Time
	nowFn    func() time.Time
}

// NewIceout builds the collector. baseURL overrides the production
// endpoint for tests; pass "" for the default.
func NewIceout(cfg *config.Config, baseURL string) *Iceout {
	if baseURL == "" {
		baseURL = iceoutDefaultBase
	}
	return &Iceout{
		cfg:     cfg,
		src:     cfg.Sources["iceout"],
		client:  &http.Client{Timeout: 20 * time.Second},
		baseURL: baseURL,
		nowFn:   time.Now,
	}
}

func (c *Iceout) Name() string            { return "iceout" }
func (c *Iceout) Trust() types.Trust      { return c.src.Trust }
func (c *Iceout) Interval() time.Duration { return c.src.Interval }

// Poll fetches reports created since the last successful poll.
func (c *Iceout) Poll(ctx context.Context) ([]*types.Report, error) {
	since := c.lastPoll
	if since.IsZero() {
		since = c.nowFn().Add(-2 * c.cfg.FreshMax)
	}

	u := fmt.Sprintf("%s/api/report-feed?since=%s", c.baseURL, url.QueryEscape(since.UTC().Format(time.RFC3339)))
	body, err := fetchBody(ctx, c.client, u, http.Header{"Accept": []string{"application/json"}})
	if err != nil {
		return nil, err
	}

	var feed []iceoutReport
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, types.Transientf("decoding iceout feed: %w", err)
	}

	now := c.nowFn().UTC()
	var reports []*types.Report
	for _, item := range feed {
		dist := geocode.HaversineKM(item.Latitude, item.Longitude,
			c.cfg.Locale.CenterLat, c.cfg.Locale.CenterLon)
		if dist > c.cfg.MaxDistanceKM {
			continue
		}

		observed, err := parseAnyTime(item.IncidentTime)
		if err != nil {
			monitoring.Warnf("iceout: skipping report %d: %v", item.ID, err)
			continue
		}

		category := iceoutCategories[item.CategoryEnum]
		content := fmt.Sprintf("%s ICE activity reported at %s", category, item.LocationDescription)

		reports = append(reports, &types.Report{
			SourceID:    fmt.Sprintf("%d", item.ID),
			Source:      c.Name(),
			Trust:       c.Trust(),
			ObservedAt:  observed,
			CollectedAt: now,
			Content:     content,
			URL:         c.baseURL + "/en/",
			Coords:      &types.Coordinates{Lat: item.Latitude, Lon: item.Longitude},
		})
	}

	sortChronological(reports)
	c.lastPoll = now
	return reports, nil
}
