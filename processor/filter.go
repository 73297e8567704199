package processor

import (
	"strings"

	"go-icewatch/config"
	"go-icewatch/geocode"
	"go-icewatch/metrics"
	"go-icewatch/monitoring"
	"go-icewatch/types"
)

// DedupChecker is the slice of the store the filter needs.
type DedupChecker interface {
	HasReport(dedupKey string) (bool, error)
}

// Sources whose content is news coverage and must carry a real-time
// signal to pass.
var newsSources = map[string]bool{"rss": true}

// Filter applies the verdict pipeline to one report. Stages run in fixed
// order and the first rejection wins: freshness, dedup, relevance,
// geographic scope, news-article rejection.
type Filter struct {
	cfg   *config.Config
	gaz   *geocode.Gazetteer
	store DedupChecker

	geoKeywords []string
}

// NewFilter builds the filter. Locale geo keywords are normalized once.
func NewFilter(cfg *config.Config, gaz *geocode.Gazetteer, store DedupChecker) *Filter {
	keywords := make([]string, 0, len(cfg.Locale.GeoKeywords))
	for _, kw := range cfg.Locale.GeoKeywords {
		keywords = append(keywords, strings.ToLower(kw))
	}
	return &Filter{cfg: cfg, gaz: gaz, store: store, geoKeywords: keywords}
}

// Apply returns the report's verdict. The duplicate flag is reported
// separately because duplicates are dropped silently, not recorded as a
// rejection. A store failure is returned as-is and aborts processing of
// this report; dedup protection makes the retry safe.
func (f *Filter) Apply(r *types.Report) (verdict types.Verdict, duplicate bool, err error) {
	defer func() {
		if err == nil && !duplicate {
			metrics.ReportsFiltered.WithLabelValues(string(verdict)).Inc()
		}
	}()

	if f.isStale(r) {
		return types.VerdictStale, false, nil
	}

	exists, err := f.store.HasReport(r.DedupKey())
	if err != nil {
		return "", false, &types.StoreError{Op: "dedup check", Err: err}
	}
	if exists {
		monitoring.Debugf("filter: duplicate %s", r.DedupKey())
		return "", true, nil
	}

	r.CleanedText = CleanText(r.Content)
	text := r.Text()

	// HIGH-trust community platforms carry vetted enforcement reports;
	// keyword relevance does not apply to them.
	if r.Trust != types.TrustHigh && !IsEnforcementRelevant(text) {
		return types.VerdictIrrelevant, false, nil
	}

	if !f.inRegion(r, text) {
		return types.VerdictOutOfRegion, false, nil
	}

	if newsSources[r.Source] {
		if !HasRealtimeSignal(text) || HasNewsPattern(text) {
			monitoring.Debugf("filter: rejecting news article [%s] %.60s", r.Source, text)
			return types.VerdictNews, false, nil
		}
	}

	return types.VerdictRelevant, false, nil
}

// isStale rejects reports whose ingest lag exceeds the freshness budget.
// A report exactly at the boundary is accepted. HIGH-trust sources get
// twice the budget: their platforms vet reports before publishing, which
// adds latency.
func (f *Filter) isStale(r *types.Report) bool {
	maxAge := f.cfg.FreshMax
	if r.Trust == types.TrustHigh {
		maxAge = 2 * f.cfg.FreshMax
	}
	return r.CollectedAt.Sub(r.ObservedAt) > maxAge
}

// inRegion checks the geographic scope: a known locale token or gazetteer
// place name in the text, or pre-resolved coordinates within the scope
// radius of the locale center. The boundary distance is in-scope.
func (f *Filter) inRegion(r *types.Report, text string) bool {
	if r.Coords != nil {
		d := geocode.HaversineKM(r.Coords.Lat, r.Coords.Lon, f.cfg.Locale.CenterLat, f.cfg.Locale.CenterLon)
		if d <= f.cfg.MaxDistanceKM {
			return true
		}
	}

	lower := strings.ToLower(text)
	for _, kw := range f.geoKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return f.gaz.ContainsPlaceName(text)
}
