package collectors

import (
	"context"
	"time"

	"github.com/mmcdole/gofeed"

	"go-icewatch/config"
	"go-icewatch/monitoring"
	"go-icewatch/types"
)

// RSS polls local news feeds. News coverage is mostly retrospective, so
// the filter's news-rejection stage applies to everything this collector
// emits.
type RSS struct {
	cfg    *config.Config
	src    config.SourceConfig
	parser *gofeed.Parser
	feeds  []string
	nowFn  func() time.Time
}

// NewRSS builds the collector. feeds overrides the locale feed list for
// tests; pass nil for the locale's.
func NewRSS(cfg *config.Config, feeds []string) *RSS {
	if feeds == nil {
		feeds = cfg.Locale.RSSFeeds
	}
	return &RSS{
		cfg:    cfg,
		src:    cfg.Sources["rss"],
		parser: gofeed.NewParser(),
		feeds:  feeds,
		nowFn:  time.Now,
	}
}

func (c *RSS) Name() string            { return "rss" }
func (c *RSS) Trust() types.Trust      { return c.src.Trust }
func (c *RSS) Interval() time.Duration { return c.src.Interval }

// Poll parses every configured feed. One broken feed does not fail the
// others; the poll errors only when every feed failed.
func (c *RSS) Poll(ctx context.Context) ([]*types.Report, error) {
	now := c.nowFn().UTC()
	var reports []*types.Report
	var lastErr error
	succeeded := 0

	for _, feedURL := range c.feeds {
		feed, err := c.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			monitoring.Warnf("rss: fetching %s: %v", feedURL, err)
			lastErr = types.Transientf("fetching %s: %w", feedURL, err)
			continue
		}
		succeeded++

		for _, item := range feed.Items {
			if item.Link == "" {
				continue
			}
			published := now
			if item.PublishedParsed != nil {
				published = item.PublishedParsed.UTC()
			} else if item.UpdatedParsed != nil {
				published = item.UpdatedParsed.UTC()
			}

			content := item.Title
			if item.Description != "" {
				content += " " + item.Description
			}

			author := feed.Title
			if item.Author != nil && item.Author.Name != "" {
				author = item.Author.Name
			}

			reports = append(reports, &types.Report{
				SourceID:    item.Link,
				Source:      c.Name(),
				Trust:       c.Trust(),
				ObservedAt:  published,
				CollectedAt: now,
				Content:     content,
				Author:      author,
				URL:         item.Link,
			})
		}
	}

	if succeeded == 0 && lastErr != nil {
		return nil, lastErr
	}

	sortChronological(reports)
	return reports, nil
}
