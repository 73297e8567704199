package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"go-icewatch/db"
	"go-icewatch/types"
)

// Healthz reports liveness plus any collectors disabled by permanent
// failures.
func Healthz(c *gin.Context, disabled []string) {
	status := "ok"
	if len(disabled) > 0 {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":              status,
		"disabled_collectors": disabled,
	})
}

type clusterView struct {
	ID            string              `json:"id"`
	State         string              `json:"state"`
	Label         string              `json:"label"`
	Centroid      *types.Coordinates  `json:"centroid,omitempty"`
	Confidence    float64             `json:"confidence"`
	FirstSeen     time.Time           `json:"first_seen"`
	LastUpdated   time.Time           `json:"last_updated"`
	MemberCount   int                 `json:"member_count"`
	SourceCount   int                 `json:"source_count"`
	AlertsEmitted []types.AlertRecord `json:"alerts_emitted"`
}

// ActiveClusters lists the store's ACTIVE clusters. The store is the
// read surface here; the correlator's in-memory set belongs to the
// pipeline task alone.
func ActiveClusters(c *gin.Context, store *db.Store) {
	clusters, err := store.ActiveClusters()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]clusterView, 0, len(clusters))
	for _, cl := range clusters {
		views = append(views, clusterView{
			ID:            cl.ID,
			State:         string(cl.State),
			Label:         cl.Label,
			Centroid:      cl.Centroid,
			Confidence:    cl.Confidence,
			FirstSeen:     cl.FirstSeen,
			LastUpdated:   cl.LastUpdated,
			MemberCount:   len(cl.Members),
			SourceCount:   cl.SourceDiversity(),
			AlertsEmitted: cl.AlertsEmitted,
		})
	}
	c.JSON(http.StatusOK, gin.H{"clusters": views})
}

type reportView struct {
	DedupKey   string    `json:"dedup_key"`
	Source     string    `json:"source"`
	ObservedAt time.Time `json:"observed_at"`
	Content    string    `json:"content"`
	Author     string    `json:"author,omitempty"`
	URL        string    `json:"url,omitempty"`
	ClusterID  string    `json:"cluster_id,omitempty"`
}

// RecentReports lists relevant reports from the last 24 hours.
func RecentReports(c *gin.Context, store *db.Store) {
	reports, err := store.RecentRelevant(time.Now().Add(-24*time.Hour), 200)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]reportView, 0, len(reports))
	for _, r := range reports {
		views = append(views, reportView{
			DedupKey:   r.DedupKey(),
			Source:     r.Source,
			ObservedAt: r.ObservedAt,
			Content:    r.Content,
			Author:     r.Author,
			URL:        r.URL,
			ClusterID:  r.ClusterID,
		})
	}
	c.JSON(http.StatusOK, gin.H{"reports": views})
}
