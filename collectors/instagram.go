package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go-icewatch/config"
	"go-icewatch/monitoring"
	"go-icewatch/types"
)

const instagramDefaultBase = "https://www.instagram.com"

// instagramProfile is the subset of the public web-profile payload the
// monitor reads.
type instagramProfile struct {
	Data struct {
		User struct {
			EdgeOwnerToTimelineMedia struct {
				Edges []struct {
					Node struct {
						ID                 string `json:"id"`
						Shortcode          string `json:"shortcode"`
						TakenAtTimestamp   int64  `json:"taken_at_timestamp"`
						EdgeMediaToCaption struct {
							Edges []struct {
								Node struct {
									Text string `json:"text"`
								} `json:"node"`
							} `json:"edges"`
						} `json:"edge_media_to_caption"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"edge_owner_to_timeline_media"`
		} `json:"user"`
	} `json:"data"`
}

// Instagram polls the public profiles of monitored community accounts.
// Rate limits are strict, hence the long interval; accounts silent for
// 90 days are skipped.
type Instagram struct {
	cfg      *config.Config
	src      config.SourceConfig
	client   *http.Client
	baseURL  string
	lastPost map[string]time.Time
	nowFn    func() time.Time
}

// NewInstagram builds the collector; baseURL "" means production.
func NewInstagram(cfg *config.Config, baseURL string) *Instagram {
	if baseURL == "" {
		baseURL = instagramDefaultBase
	}
	return &Instagram{
		cfg:      cfg,
		src:      cfg.Sources["instagram"],
		client:   &http.Client{Timeout: 20 * time.Second},
		baseURL:  baseURL,
		lastPost: make(map[string]time.Time),
		nowFn:    time.Now,
	}
}

func (c *Instagram) Name() string            { return "instagram" }
func (c *Instagram) Trust() types.Trust      { return c.src.Trust }
func (c *Instagram) Interval() time.Duration { return c.src.Interval }

// Poll fetches each monitored account's recent posts.
func (c *Instagram) Poll(ctx context.Context) ([]*types.Report, error) {
	now := c.nowFn().UTC()
	header := http.Header{
		"User-Agent":  []string{"Mozilla/5.0 (X11; Linux x86_64)"},
		"X-IG-App-ID": []string{"936619743392459"},
	}

	var reports []*types.Report
	var lastErr error
	for _, account := range c.cfg.Locale.InstagramAccounts {
		if last, ok := c.lastPost[account]; ok && now.Sub(last) > silentAccountWindow {
			monitoring.Debugf("instagram: skipping silent account %s", account)
			continue
		}

		u := fmt.Sprintf("%s/api/v1/users/web_profile_info/?username=%s", c.baseURL, account)
		body, err := fetchBody(ctx, c.client, u, header)
		if err != nil {
			monitoring.Warnf("instagram: profile %s: %v", account, err)
			lastErr = err
			continue
		}

		var profile instagramProfile
		if err := json.Unmarshal(body, &profile); err != nil {
			lastErr = types.Transientf("decoding profile %s: %w", account, err)
			continue
		}

		for _, edge := range profile.Data.User.EdgeOwnerToTimelineMedia.Edges {
			node := edge.Node
			caption := ""
			if len(node.EdgeMediaToCaption.Edges) > 0 {
				caption = node.EdgeMediaToCaption.Edges[0].Node.Text
			}
			if caption == "" {
				continue
			}

			observed := time.Unix(node.TakenAtTimestamp, 0).UTC()
			if observed.After(c.lastPost[account]) {
				c.lastPost[account] = observed
			}

			reports = append(reports, &types.Report{
				SourceID:    node.ID,
				Source:      c.Name(),
				Trust:       c.Trust(),
				ObservedAt:  observed,
				CollectedAt: now,
				Content:     caption,
				Author:      account,
				URL:         c.baseURL + "/p/" + node.Shortcode + "/",
			})
		}
	}

	// Only fail the poll when every account failed.
	if len(reports) == 0 && lastErr != nil {
		return nil, lastErr
	}

	sortChronological(reports)
	return reports, nil
}
