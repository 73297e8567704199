package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go-icewatch/types"
)

// HasReport reports whether a dedup key has ever been ingested.
func (s *Store) HasReport(dedupKey string) (bool, error) {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM reports WHERE dedup_key = ?", dedupKey).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying report %s: %w", dedupKey, err)
	}
	return true, nil
}

// PutReport persists a fully-processed report. Idempotent: re-inserting
// the same dedup key is a no-op, so a retried report never creates a
// second row.
func (s *Store) PutReport(r *types.Report) error {
	coordsJSON, err := marshalNullable(r.Coords)
	if err != nil {
		return &types.StoreError{Op: "encode coords", Err: err}
	}
	locationsJSON, err := marshalNullable(r.Locations)
	if err != nil {
		return &types.StoreError{Op: "encode locations", Err: err}
	}

	_, err = s.db.Exec(`
		INSERT INTO reports
			(dedup_key, source, trust, obs_ts, ingest_ts, content,
			 cleaned_text, url, author, coords_json, locations_json,
			 verdict, cluster_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dedup_key) DO NOTHING`,
		r.DedupKey(), r.Source, string(r.Trust),
		r.ObservedAt.UTC().Format(time.RFC3339Nano),
		r.CollectedAt.UTC().Format(time.RFC3339Nano),
		r.Content, r.CleanedText, r.URL, r.Author,
		coordsJSON, locationsJSON,
		string(r.Verdict), nullString(r.ClusterID),
	)
	if err != nil {
		return &types.StoreError{Op: "put report", Err: err}
	}
	return nil
}

// RecentRelevant returns relevant reports ingested since the cutoff,
// newest first, for the status API.
func (s *Store) RecentRelevant(since time.Time, limit int) ([]*types.Report, error) {
	rows, err := s.db.Query(`
		SELECT dedup_key, source, trust, obs_ts, ingest_ts, content,
		       cleaned_text, url, author, coords_json, locations_json,
		       verdict, cluster_id
		FROM reports
		WHERE verdict = ? AND ingest_ts >= ?
		ORDER BY ingest_ts DESC
		LIMIT ?`,
		string(types.VerdictRelevant), since.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, &types.StoreError{Op: "recent relevant", Err: err}
	}
	defer rows.Close()
	return scanReports(rows)
}

func (s *Store) membersOf(clusterID string) ([]*types.Report, error) {
	rows, err := s.db.Query(`
		SELECT dedup_key, source, trust, obs_ts, ingest_ts, content,
		       cleaned_text, url, author, coords_json, locations_json,
		       verdict, cluster_id
		FROM reports
		WHERE cluster_id = ?
		ORDER BY ingest_ts ASC`, clusterID)
	if err != nil {
		return nil, fmt.Errorf("members of %s: %w", clusterID, err)
	}
	defer rows.Close()
	return scanReports(rows)
}

func scanReports(rows *sql.Rows) ([]*types.Report, error) {
	var reports []*types.Report
	for rows.Next() {
		var (
			r                         types.Report
			dedupKey, obsTS, ingestTS string
			url, author               sql.NullString
			coordsJSON, locsJSON      sql.NullString
			clusterID                 sql.NullString
			trust, verdict            string
		)
		if err := rows.Scan(&dedupKey, &r.Source, &trust, &obsTS, &ingestTS,
			&r.Content, &r.CleanedText, &url, &author, &coordsJSON, &locsJSON,
			&verdict, &clusterID); err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}

		r.Trust = types.Trust(trust)
		r.Verdict = types.Verdict(verdict)
		r.URL = url.String
		r.Author = author.String
		r.ClusterID = clusterID.String
		// The dedup key is source + ":" + source id.
		if len(dedupKey) > len(r.Source)+1 {
			r.SourceID = dedupKey[len(r.Source)+1:]
		}

		var err error
		if r.ObservedAt, err = time.Parse(time.RFC3339Nano, obsTS); err != nil {
			return nil, fmt.Errorf("parsing obs_ts %q: %w", obsTS, err)
		}
		if r.CollectedAt, err = time.Parse(time.RFC3339Nano, ingestTS); err != nil {
			return nil, fmt.Errorf("parsing ingest_ts %q: %w", ingestTS, err)
		}
		if coordsJSON.Valid && coordsJSON.String != "" {
			if err := json.Unmarshal([]byte(coordsJSON.String), &r.Coords); err != nil {
				return nil, fmt.Errorf("decoding coords: %w", err)
			}
		}
		if locsJSON.Valid && locsJSON.String != "" {
			if err := json.Unmarshal([]byte(locsJSON.String), &r.Locations); err != nil {
				return nil, fmt.Errorf("decoding locations: %w", err)
			}
		}
		reports = append(reports, &r)
	}
	return reports, rows.Err()
}

func marshalNullable(v any) (sql.NullString, error) {
	switch val := v.(type) {
	case *types.Coordinates:
		if val == nil {
			return sql.NullString{}, nil
		}
	case []types.ExtractedLocation:
		if len(val) == 0 {
			return sql.NullString{}, nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
