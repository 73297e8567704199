package correlation

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-icewatch/config"
	"go-icewatch/geocode"
	"go-icewatch/metrics"
	"go-icewatch/monitoring"
	"go-icewatch/types"
)

// Grid cell edge, roughly 1 km: 0.01 degrees of latitude is ~1.11 km.
const cellDegrees = 0.01

type cell struct {
	lat, lon int
}

func cellOf(lat, lon float64) cell {
	return cell{
		lat: int(math.Floor(lat / cellDegrees)),
		lon: int(math.Floor(lon / cellDegrees)),
	}
}

// Emission is a candidate alert handed to the notifier.
type Emission struct {
	Cluster *types.Cluster
	Kind    types.AlertKind
}

// Correlator owns the in-memory ACTIVE cluster set. It is driven by the
// single pipeline task; no internal locking is needed.
type Correlator struct {
	cfg *config.Config
	sim *Similarity

	active    map[string]*types.Cluster
	grid      map[cell][]string
	unlocated map[string]bool

	nowFn func() time.Time
}

// New builds an empty correlator.
func New(cfg *config.Config) *Correlator {
	return &Correlator{
		cfg:       cfg,
		sim:       NewSimilarity(),
		active:    make(map[string]*types.Cluster),
		grid:      make(map[cell][]string),
		unlocated: make(map[string]bool),
		nowFn:     time.Now,
	}
}

// SetNow overrides the clock, for tests.
func (c *Correlator) SetNow(fn func() time.Time) { c.nowFn = fn }

// WarmStart restores ACTIVE clusters loaded from the store, rebuilding
// the spatial index and the similarity vocabulary from member texts.
func (c *Correlator) WarmStart(clusters []*types.Cluster) {
	for _, cl := range clusters {
		c.active[cl.ID] = cl
		c.index(cl)
		for _, m := range cl.Members {
			c.sim.Observe(m.Text())
		}
	}
	metrics.ActiveClusters.Set(float64(len(c.active)))
	if len(clusters) > 0 {
		monitoring.Infof("correlator: warm-started %d active clusters", len(clusters))
	}
}

// ActiveClusters returns the active set sorted by first-seen, for the
// status API.
func (c *Correlator) ActiveClusters() []*types.Cluster {
	out := make([]*types.Cluster, 0, len(c.active))
	for _, cl := range c.active {
		out = append(out, cl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FirstSeen.Before(out[j].FirstSeen) })
	return out
}

func (c *Correlator) index(cl *types.Cluster) {
	if cl.Centroid == nil {
		c.unlocated[cl.ID] = true
		return
	}
	key := cellOf(cl.Centroid.Lat, cl.Centroid.Lon)
	c.grid[key] = append(c.grid[key], cl.ID)
}

func (c *Correlator) unindex(cl *types.Cluster) {
	if cl.Centroid == nil {
		delete(c.unlocated, cl.ID)
		return
	}
	key := cellOf(cl.Centroid.Lat, cl.Centroid.Lon)
	ids := c.grid[key]
	for i, id := range ids {
		if id == cl.ID {
			c.grid[key] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(c.grid[key]) == 0 {
		delete(c.grid, key)
	}
}

// ExpireStale transitions clusters past the expiry window to EXPIRED and
// removes them from the active set. Returns the expired clusters for
// terminal persistence.
func (c *Correlator) ExpireStale(now time.Time) []*types.Cluster {
	var expired []*types.Cluster
	for id, cl := range c.active {
		if now.Sub(cl.LastUpdated) > c.cfg.ClusterExpiry {
			cl.State = types.ClusterExpired
			c.unindex(cl)
			delete(c.active, id)
			expired = append(expired, cl)
			monitoring.Infof("correlator: cluster %s expired (%d members, last update %s)",
				id, len(cl.Members), cl.LastUpdated.Format(time.RFC3339))
		}
	}
	metrics.ActiveClusters.Set(float64(len(c.active)))
	return expired
}

// candidates returns cluster ids worth matching against the report: the
// grid neighborhood of its best location, plus unlocated clusters, plus —
// for location-less reports — clusters that already contain the same
// observer.
func (c *Correlator) candidates(r *types.Report) []string {
	var ids []string
	seen := make(map[string]bool)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	if best := r.BestLocation(); best != nil {
		// 0.01 degrees of longitude shrinks with latitude; widen the
		// lon range accordingly.
		latCells := int(c.cfg.GeoWindowKM/(cellDegrees*111.0)) + 1
		lonKM := cellDegrees * 111.0 * math.Cos(best.Lat*math.Pi/180)
		lonCells := int(c.cfg.GeoWindowKM/lonKM) + 1

		center := cellOf(best.Lat, best.Lon)
		for dlat := -latCells; dlat <= latCells; dlat++ {
			for dlon := -lonCells; dlon <= lonCells; dlon++ {
				for _, id := range c.grid[cell{center.lat + dlat, center.lon + dlon}] {
					add(id)
				}
			}
		}
		for id := range c.unlocated {
			add(id)
		}
		return ids
	}

	for id, cl := range c.active {
		if cl.HasObserver(r.Source, r.Author) {
			add(id)
		}
	}
	return ids
}

type match struct {
	cluster *types.Cluster
	score   float64
}

// matchCluster evaluates the three-way predicate and composite score for
// one candidate. Returns ok=false when any predicate fails.
func (c *Correlator) matchCluster(r *types.Report, cl *types.Cluster) (match, bool) {
	timeGap := r.ObservedAt.Sub(cl.LastUpdated)
	if timeGap < 0 {
		timeGap = -timeGap
	}
	if timeGap > c.cfg.TemporalWindow {
		return match{}, false
	}
	// Keep the window anchored to the oldest member as well, so a chain
	// of updates cannot stretch a cluster indefinitely.
	anchorGap := r.ObservedAt.Sub(cl.EarliestObservation())
	if anchorGap < 0 {
		anchorGap = -anchorGap
	}
	if anchorGap > c.cfg.TemporalWindow {
		return match{}, false
	}

	best := r.BestLocation()
	geoDist := c.cfg.GeoWindowKM
	switch {
	case best != nil && cl.Centroid != nil:
		geoDist = geocode.HaversineKM(best.Lat, best.Lon, cl.Centroid.Lat, cl.Centroid.Lon)
		if geoDist > c.cfg.GeoWindowKM {
			return match{}, false
		}
	default:
		// One side has no coordinates: only a follow-up by the same
		// observer satisfies the geographic predicate.
		if !cl.HasObserver(r.Source, r.Author) {
			return match{}, false
		}
	}

	sim := c.sim.Cosine(r.Text(), clusterText(cl))
	if sim < c.cfg.SimThreshold {
		return match{}, false
	}

	score := 0.5*sim +
		0.3*(1-geoDist/c.cfg.GeoWindowKM) +
		0.2*(1-float64(timeGap)/float64(c.cfg.TemporalWindow))
	return match{cluster: cl, score: score}, true
}

func clusterText(cl *types.Cluster) string {
	var b strings.Builder
	for i, m := range cl.Members {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(m.Text())
	}
	return b.String()
}

// Process runs one report through expiry, matching, and assignment or
// creation. Returns the cluster the report landed in, the emission
// candidate (nil when the cluster is held silently), and any clusters
// expired in step (a).
func (c *Correlator) Process(r *types.Report) (*types.Cluster, *Emission, []*types.Cluster) {
	expired := c.ExpireStale(c.nowFn())

	var best *match
	for _, id := range c.candidates(r) {
		cl := c.active[id]
		if cl == nil {
			continue
		}
		m, ok := c.matchCluster(r, cl)
		if !ok {
			continue
		}
		if best == nil || m.score > best.score ||
			(m.score == best.score && m.cluster.FirstSeen.Before(best.cluster.FirstSeen)) {
			m := m
			best = &m
		}
	}

	c.sim.Observe(r.Text())

	if best != nil {
		return best.cluster, c.assign(r, best.cluster), expired
	}
	cl, em := c.create(r)
	return cl, em, expired
}

// assign appends the report to the matched cluster and produces the
// emission candidate.
func (c *Correlator) assign(r *types.Report, cl *types.Cluster) *Emission {
	c.unindex(cl)
	cl.Members = append(cl.Members, r)
	r.ClusterID = cl.ID
	if r.ObservedAt.After(cl.LastUpdated) {
		cl.LastUpdated = r.ObservedAt
	}
	c.recomputeCentroid(cl)
	c.recomputeLabel(cl)
	cl.Confidence = c.confidence(cl)
	c.index(cl)

	monitoring.Infof("correlator: report %s joined cluster %s (%d members, %d sources, conf %.2f)",
		r.DedupKey(), cl.ID, len(cl.Members), cl.SourceDiversity(), cl.Confidence)

	if !cl.NewEmitted() {
		if c.corroborated(cl) {
			return &Emission{Cluster: cl, Kind: types.AlertNew}
		}
		return nil
	}
	return &Emission{Cluster: cl, Kind: types.AlertUpdate}
}

// corroborated reports whether the cluster may alert: enough distinct
// sources, or any member from a HIGH-trust platform.
func (c *Correlator) corroborated(cl *types.Cluster) bool {
	if cl.SourceDiversity() >= c.cfg.MinCorroborationSources {
		return true
	}
	for _, m := range cl.Members {
		if m.Trust == types.TrustHigh {
			return true
		}
	}
	return false
}

// create starts a new cluster from an unmatched report. HIGH-trust
// sources alert immediately; others are held until corroborated.
func (c *Correlator) create(r *types.Report) (*types.Cluster, *Emission) {
	cl := &types.Cluster{
		ID:          uuid.NewString(),
		State:       types.ClusterActive,
		FirstSeen:   r.ObservedAt,
		LastUpdated: r.ObservedAt,
		Members:     []*types.Report{r},
	}
	r.ClusterID = cl.ID
	c.recomputeCentroid(cl)
	c.recomputeLabel(cl)
	cl.Confidence = c.confidence(cl)
	c.active[cl.ID] = cl
	c.index(cl)
	metrics.ActiveClusters.Set(float64(len(c.active)))

	monitoring.Infof("correlator: new cluster %s from %s (%s trust)", cl.ID, r.DedupKey(), r.Trust)

	if r.Trust == types.TrustHigh {
		return cl, &Emission{Cluster: cl, Kind: types.AlertNew}
	}
	return cl, nil
}

// recomputeCentroid sets the centroid to the confidence-weighted mean of
// member best locations. Clusters whose members carry no locations have
// no centroid.
func (c *Correlator) recomputeCentroid(cl *types.Cluster) {
	var sumLat, sumLon, sumW float64
	for _, m := range cl.Members {
		if best := m.BestLocation(); best != nil {
			sumLat += best.Lat * best.Confidence
			sumLon += best.Lon * best.Confidence
			sumW += best.Confidence
		}
	}
	if sumW == 0 {
		cl.Centroid = nil
		return
	}
	cl.Centroid = &types.Coordinates{Lat: sumLat / sumW, Lon: sumLon / sumW}
}

// recomputeLabel picks the most common named location among members,
// falling back to the locale area string.
func (c *Correlator) recomputeLabel(cl *types.Cluster) {
	counts := make(map[string]int)
	for _, m := range cl.Members {
		for _, loc := range m.Locations {
			if loc.Name != "" {
				counts[loc.Name]++
			}
		}
	}
	bestName, bestCount := "", 0
	for name, n := range counts {
		if n > bestCount || (n == bestCount && name < bestName) {
			bestName, bestCount = name, n
		}
	}
	if bestName == "" {
		bestName = c.cfg.Locale.FallbackLocation
	}
	cl.Label = bestName
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// confidence scores the cluster's evidentiary strength from source
// diversity, member count, temporal tightness, and location precision.
func (c *Correlator) confidence(cl *types.Cluster) float64 {
	divTerm := math.Min(1, float64(cl.SourceDiversity())/3.0)
	countTerm := math.Min(1, float64(len(cl.Members))/5.0)
	timeTerm := clamp01(1 - float64(cl.ObservationSpan())/float64(c.cfg.TemporalWindow))

	var locSum float64
	for _, m := range cl.Members {
		if best := m.BestLocation(); best != nil {
			locSum += best.Confidence
		}
	}
	locTerm := locSum / float64(len(cl.Members))

	return clamp01(0.35*divTerm + 0.25*countTerm + 0.20*timeTerm + 0.20*locTerm)
}
