package types

import "time"

// ClusterState tracks the lifecycle of a cluster. EXPIRED is terminal.
type ClusterState string

const (
	ClusterActive  ClusterState = "ACTIVE"
	ClusterExpired ClusterState = "EXPIRED"
)

// AlertKind distinguishes the first notification for an incident from
// follow-ups.
type AlertKind string

const (
	AlertNew    AlertKind = "NEW"
	AlertUpdate AlertKind = "UPDATE"
)

// AlertRecord is one entry in a cluster's emission history.
type AlertRecord struct {
	Kind        AlertKind `json:"kind"`
	SentAt      time.Time `json:"sent_at"`
	MemberCount int       `json:"member_count"`
}

// Cluster is a hypothesis that a set of reports describe the same
// real-world incident. The correlator owns the in-memory active set; the
// notifier appends to AlertsEmitted after a successful dispatch.
type Cluster struct {
	ID          string
	State       ClusterState
	Centroid    *Coordinates
	Label       string // best-known location label, e.g. "Uptown"
	FirstSeen   time.Time
	LastUpdated time.Time
	Confidence  float64

	// Members in arrival order.
	Members []*Report

	AlertsEmitted []AlertRecord
}

// SourceSet returns the distinct source names among members.
func (c *Cluster) SourceSet() map[string]bool {
	set := make(map[string]bool, len(c.Members))
	for _, m := range c.Members {
		set[m.Source] = true
	}
	return set
}

// SourceDiversity is the count of distinct sources among members.
func (c *Cluster) SourceDiversity() int {
	return len(c.SourceSet())
}

// HasObserver reports whether a member from the given source and author
// already exists. Used for location-less follow-up matching.
func (c *Cluster) HasObserver(source, author string) bool {
	for _, m := range c.Members {
		if m.Source == source && m.Author == author {
			return true
		}
	}
	return false
}

// NewEmitted reports whether a NEW alert has been recorded.
func (c *Cluster) NewEmitted() bool {
	for _, a := range c.AlertsEmitted {
		if a.Kind == AlertNew {
			return true
		}
	}
	return false
}

// LastEmitCount returns the member count at the most recent emission, or 0.
func (c *Cluster) LastEmitCount() int {
	if len(c.AlertsEmitted) == 0 {
		return 0
	}
	return c.AlertsEmitted[len(c.AlertsEmitted)-1].MemberCount
}

// ObservationSpan is the time between the oldest and newest member
// observation timestamps.
func (c *Cluster) ObservationSpan() time.Duration {
	if len(c.Members) < 2 {
		return 0
	}
	earliest := c.Members[0].ObservedAt
	latest := c.Members[0].ObservedAt
	for _, m := range c.Members[1:] {
		if m.ObservedAt.Before(earliest) {
			earliest = m.ObservedAt
		}
		if m.ObservedAt.After(latest) {
			latest = m.ObservedAt
		}
	}
	return latest.Sub(earliest)
}

// EarliestObservation returns the oldest member observation timestamp.
func (c *Cluster) EarliestObservation() time.Time {
	earliest := c.Members[0].ObservedAt
	for _, m := range c.Members[1:] {
		if m.ObservedAt.Before(earliest) {
			earliest = m.ObservedAt
		}
	}
	return earliest
}
