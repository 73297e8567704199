package collectors

import (
	"context"
	"net/http"
	"time"

	"github.com/bluesky-social/indigo/xrpc"

	"go-icewatch/config"
	"go-icewatch/monitoring"
	"go-icewatch/types"
)

const (
	blueskyPublicHost   = "https://public.api.bsky.app"
	searchPostsMethod   = "app.bsky.feed.searchPosts"
	authorFeedMethod    = "app.bsky.feed.getAuthorFeed"
	silentAccountWindow = 90 * 24 * time.Hour
)

// blueskyPost is the subset of a post view the monitor needs.
type blueskyPost struct {
	URI    string `json:"uri"`
	CID    string `json:"cid"`
	Author struct {
		Handle      string `json:"handle"`
		DisplayName string `json:"displayName"`
	} `json:"author"`
	Record struct {
		CreatedAt string `json:"createdAt"`
		Text      string `json:"text"`
	} `json:"record"`
	IndexedAt string `json:"indexedAt"`
}

type searchPostsResponse struct {
	Cursor string        `json:"cursor"`
	Posts  []blueskyPost `json:"posts"`
}

type authorFeedResponse struct {
	Cursor string `json:"cursor"`
	Feed   []struct {
		Post blueskyPost `json:"post"`
	} `json:"feed"`
}

// Bluesky polls the public Bluesky API: locale search queries plus a set
// of monitored community accounts. Accounts silent for 90 days are
// skipped on later polls to cut noise.
type Bluesky struct {
	cfg    *config.Config
	src    config.SourceConfig
	client *xrpc.Client

	// seen caps re-emission within a session; the store dedup is the
	// real guarantee.
	seen map[string]bool

	// lastPost tracks account activity for the silent-account policy.
	lastPost map[string]time.Time
	nowFn    func() time.Time
}

// NewBluesky builds the collector. host overrides the public API
// endpoint for tests; pass "" for the default.
func NewBluesky(cfg *config.Config, host string) *Bluesky {
	if host == "" {
		host = blueskyPublicHost
	}
	return &Bluesky{
		cfg: cfg,
		src: cfg.Sources["bluesky"],
		client: &xrpc.Client{
			Client: &http.Client{Timeout: 15 * time.Second},
			Host:   host,
		},
		seen:     make(map[string]bool),
		lastPost: make(map[string]time.Time),
		nowFn:    time.Now,
	}
}

func (c *Bluesky) Name() string            { return "bluesky" }
func (c *Bluesky) Trust() types.Trust      { return c.src.Trust }
func (c *Bluesky) Interval() time.Duration { return c.src.Interval }

// Poll runs every locale search query and monitored account feed. A
// query failure fails the poll transiently; the next tick retries.
func (c *Bluesky) Poll(ctx context.Context) ([]*types.Report, error) {
	now := c.nowFn().UTC()
	var reports []*types.Report

	for _, query := range c.cfg.Locale.BlueskyQueries {
		params := map[string]interface{}{
			"q":     query,
			"limit": 25,
			"sort":  "latest",
		}
		var out searchPostsResponse
		if err := c.client.Do(ctx, xrpc.Query, "json", searchPostsMethod, params, nil, &out); err != nil {
			return nil, types.Transientf("bluesky search %q: %w", query, err)
		}
		reports = c.appendPosts(reports, out.Posts, now)
	}

	for _, account := range c.cfg.Locale.BlueskyAccounts {
		if last, ok := c.lastPost[account]; ok && now.Sub(last) > silentAccountWindow {
			monitoring.Debugf("bluesky: skipping silent account %s", account)
			continue
		}
		params := map[string]interface{}{
			"actor": account,
			"limit": 15,
		}
		var out authorFeedResponse
		if err := c.client.Do(ctx, xrpc.Query, "json", authorFeedMethod, params, nil, &out); err != nil {
			// A single broken account should not starve the queries.
			monitoring.Warnf("bluesky: author feed %s: %v", account, err)
			continue
		}
		for _, entry := range out.Feed {
			if t, err := parseAnyTime(entry.Post.Record.CreatedAt); err == nil {
				if t.After(c.lastPost[account]) {
					c.lastPost[account] = t
				}
			}
			reports = c.appendPosts(reports, []blueskyPost{entry.Post}, now)
		}
	}

	sortChronological(reports)
	return reports, nil
}

func (c *Bluesky) appendPosts(reports []*types.Report, posts []blueskyPost, now time.Time) []*types.Report {
	for _, post := range posts {
		if post.URI == "" || c.seen[post.URI] {
			continue
		}
		c.seen[post.URI] = true
		if len(c.seen) > 4000 {
			c.seen = make(map[string]bool)
		}

		observed, err := parseAnyTime(post.Record.CreatedAt)
		if err != nil {
			monitoring.Debugf("bluesky: unparseable createdAt on %s: %v", post.URI, err)
			continue
		}

		reports = append(reports, &types.Report{
			SourceID:    post.URI,
			Source:      c.Name(),
			Trust:       c.Trust(),
			ObservedAt:  observed,
			CollectedAt: now,
			Content:     post.Record.Text,
			Author:      post.Author.Handle,
			URL:         postWebURL(post),
		})
	}
	return reports
}

// postWebURL converts an at:// URI to the public web URL.
func postWebURL(post blueskyPost) string {
	// at://did:plc:xxx/app.bsky.feed.post/rkey
	uri := post.URI
	const marker = "/app.bsky.feed.post/"
	for i := 0; i+len(marker) <= len(uri); i++ {
		if uri[i:i+len(marker)] == marker {
			return "https://bsky.app/profile/" + post.Author.Handle + "/post/" + uri[i+len(marker):]
		}
	}
	return uri
}
