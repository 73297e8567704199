package types

import (
	"fmt"
	"time"
)

// Trust is the coarse source-level priority tier. HIGH sources (vetted
// community reporting platforms) can trigger single-source alerts; NORMAL
// sources require corroboration.
type Trust string

const (
	TrustHigh   Trust = "HIGH"
	TrustNormal Trust = "NORMAL"
)

// Verdict is the outcome of the filter stage for a single report.
type Verdict string

const (
	VerdictRelevant    Verdict = "RELEVANT"
	VerdictStale       Verdict = "REJECTED_STALE"
	VerdictIrrelevant  Verdict = "REJECTED_IRRELEVANT"
	VerdictNews        Verdict = "REJECTED_NEWS"
	VerdictOutOfRegion Verdict = "REJECTED_OUT_OF_REGION"
)

// Coordinates is a lat/lon pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ExtractedLocation is one resolved place reference in a report's text.
type ExtractedLocation struct {
	Name       string  `json:"name"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Confidence float64 `json:"confidence"`
}

// Report is a single observation from one source. Collectors create it,
// the filter/extract pipeline fills in Verdict and Locations, and after
// that it is treated as read-only.
type Report struct {
	SourceID    string    // source-local id from the origin platform
	Source      string    // collector name: "iceout", "bluesky", "rss", ...
	Trust       Trust
	ObservedAt  time.Time // when originally posted, UTC
	CollectedAt time.Time // when we fetched it, UTC
	Content     string
	CleanedText string
	Author      string
	URL         string

	// Coords is set by collectors whose source carries structured
	// coordinates (iceout, stopice).
	Coords *Coordinates

	// Filled in by the pipeline.
	Locations []ExtractedLocation
	Verdict   Verdict
	ClusterID string
}

// DedupKey uniquely identifies a report across all sources ever ingested.
func (r *Report) DedupKey() string {
	return r.Source + ":" + r.SourceID
}

// BestLocation returns the highest-confidence extracted location, or nil.
func (r *Report) BestLocation() *ExtractedLocation {
	var best *ExtractedLocation
	for i := range r.Locations {
		if best == nil || r.Locations[i].Confidence > best.Confidence {
			best = &r.Locations[i]
		}
	}
	return best
}

// Text returns the cleaned text when available, the raw content otherwise.
func (r *Report) Text() string {
	if r.CleanedText != "" {
		return r.CleanedText
	}
	return r.Content
}

func (r *Report) String() string {
	return fmt.Sprintf("[%s] %s @ %s", r.Source, r.SourceID, r.ObservedAt.Format(time.RFC3339))
}
