package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go-icewatch/types"
)

// UpsertCluster writes the cluster row, including its alert history.
// Member rows are not touched: they carry their cluster id themselves via
// PutReport, and MarkAlert re-points them inside its transaction.
func (s *Store) UpsertCluster(cl *types.Cluster) error {
	alertsJSON, err := json.Marshal(cl.AlertsEmitted)
	if err != nil {
		return &types.StoreError{Op: "encode alerts", Err: err}
	}

	var lat, lon sql.NullFloat64
	if cl.Centroid != nil {
		lat = sql.NullFloat64{Float64: cl.Centroid.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: cl.Centroid.Lon, Valid: true}
	}

	_, err = s.db.Exec(`
		INSERT INTO clusters
			(id, state, first_seen, last_updated, centroid_lat,
			 centroid_lon, label, confidence, alerts_emitted_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			last_updated = excluded.last_updated,
			centroid_lat = excluded.centroid_lat,
			centroid_lon = excluded.centroid_lon,
			label = excluded.label,
			confidence = excluded.confidence,
			alerts_emitted_json = excluded.alerts_emitted_json`,
		cl.ID, string(cl.State),
		cl.FirstSeen.UTC().Format(time.RFC3339Nano),
		cl.LastUpdated.UTC().Format(time.RFC3339Nano),
		lat, lon, cl.Label, cl.Confidence, string(alertsJSON))
	if err != nil {
		return &types.StoreError{Op: "upsert cluster", Err: err}
	}
	return nil
}

// MarkAlert atomically records an emission: the alert is appended to the
// cluster's history and the member rows are pointed at the cluster, in
// one transaction. The caller has already appended rec to
// cl.AlertsEmitted in memory.
func (s *Store) MarkAlert(cl *types.Cluster) error {
	alertsJSON, err := json.Marshal(cl.AlertsEmitted)
	if err != nil {
		return &types.StoreError{Op: "encode alerts", Err: err}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return &types.StoreError{Op: "mark alert begin", Err: err}
	}
	defer tx.Rollback()

	var lat, lon sql.NullFloat64
	if cl.Centroid != nil {
		lat = sql.NullFloat64{Float64: cl.Centroid.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: cl.Centroid.Lon, Valid: true}
	}

	if _, err := tx.Exec(`
		INSERT INTO clusters
			(id, state, first_seen, last_updated, centroid_lat,
			 centroid_lon, label, confidence, alerts_emitted_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			last_updated = excluded.last_updated,
			centroid_lat = excluded.centroid_lat,
			centroid_lon = excluded.centroid_lon,
			label = excluded.label,
			confidence = excluded.confidence,
			alerts_emitted_json = excluded.alerts_emitted_json`,
		cl.ID, string(cl.State),
		cl.FirstSeen.UTC().Format(time.RFC3339Nano),
		cl.LastUpdated.UTC().Format(time.RFC3339Nano),
		lat, lon, cl.Label, cl.Confidence, string(alertsJSON)); err != nil {
		return &types.StoreError{Op: "mark alert cluster", Err: err}
	}

	for _, m := range cl.Members {
		if _, err := tx.Exec("UPDATE reports SET cluster_id = ? WHERE dedup_key = ?",
			cl.ID, m.DedupKey()); err != nil {
			return &types.StoreError{Op: "mark alert members", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &types.StoreError{Op: "mark alert commit", Err: err}
	}
	return nil
}

// ActiveClusters loads every ACTIVE cluster with its members, for the
// correlator's warm start.
func (s *Store) ActiveClusters() ([]*types.Cluster, error) {
	rows, err := s.db.Query(`
		SELECT id, state, first_seen, last_updated, centroid_lat,
		       centroid_lon, label, confidence, alerts_emitted_json
		FROM clusters
		WHERE state = ?
		ORDER BY first_seen ASC`, string(types.ClusterActive))
	if err != nil {
		return nil, &types.StoreError{Op: "active clusters", Err: err}
	}
	defer rows.Close()

	var clusters []*types.Cluster
	for rows.Next() {
		cl, err := scanCluster(rows)
		if err != nil {
			return nil, &types.StoreError{Op: "scan cluster", Err: err}
		}
		clusters = append(clusters, cl)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.StoreError{Op: "active clusters", Err: err}
	}

	for _, cl := range clusters {
		members, err := s.membersOf(cl.ID)
		if err != nil {
			return nil, &types.StoreError{Op: "cluster members", Err: err}
		}
		cl.Members = members
	}

	// A cluster must always have at least one member; an empty one here
	// means the reports were purged out from under it. Drop it rather
	// than warm-start a cluster that violates its own shape.
	kept := clusters[:0]
	for _, cl := range clusters {
		if len(cl.Members) > 0 {
			kept = append(kept, cl)
		}
	}
	return kept, nil
}

func scanCluster(rows *sql.Rows) (*types.Cluster, error) {
	var (
		cl                     types.Cluster
		state                  string
		firstSeen, lastUpdated string
		lat, lon               sql.NullFloat64
		alertsJSON             string
	)
	if err := rows.Scan(&cl.ID, &state, &firstSeen, &lastUpdated,
		&lat, &lon, &cl.Label, &cl.Confidence, &alertsJSON); err != nil {
		return nil, err
	}
	cl.State = types.ClusterState(state)

	var err error
	if cl.FirstSeen, err = time.Parse(time.RFC3339Nano, firstSeen); err != nil {
		return nil, fmt.Errorf("parsing first_seen %q: %w", firstSeen, err)
	}
	if cl.LastUpdated, err = time.Parse(time.RFC3339Nano, lastUpdated); err != nil {
		return nil, fmt.Errorf("parsing last_updated %q: %w", lastUpdated, err)
	}
	if lat.Valid && lon.Valid {
		cl.Centroid = &types.Coordinates{Lat: lat.Float64, Lon: lon.Float64}
	}
	if err := json.Unmarshal([]byte(alertsJSON), &cl.AlertsEmitted); err != nil {
		return nil, fmt.Errorf("decoding alerts: %w", err)
	}
	return &cl, nil
}
