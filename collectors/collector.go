package collectors

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"go-icewatch/types"
)

// Collector is the pluggable source adapter contract. Poll returns the
// reports observed since the last successful poll; implementations manage
// their own cursors and must populate the dedup key deterministically.
// Poll must respect ctx: the scheduler imposes a per-poll deadline.
type Collector interface {
	Name() string
	Trust() types.Trust
	Interval() time.Duration
	Poll(ctx context.Context) ([]*types.Report, error)
}

// fetchBody GETs a URL and returns the body, classifying HTTP failures:
// auth/not-found responses disable the collector, everything else retries
// on the next tick.
func fetchBody(ctx context.Context, client *http.Client, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, types.Permanentf("building request for %s: %w", url, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, types.Transientf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusGone:
		return nil, types.Permanentf("fetching %s: status %s", url, resp.Status)
	default:
		return nil, types.Transientf("fetching %s: status %s", url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, types.Transientf("reading %s: %w", url, err)
	}
	return body, nil
}

// sortChronological orders reports oldest-first so within-source arrival
// order matches observation order.
func sortChronological(reports []*types.Report) {
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].ObservedAt.Before(reports[j].ObservedAt)
	})
}

// parseAnyTime tries the timestamp layouts the sources actually emit.
func parseAnyTime(s string) (time.Time, error) {
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
