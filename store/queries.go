package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Run is one row of the runs table.
type Run struct {
	RunID      string `json:"run_id"`
	Seeds      int    `json:"seeds"`
	Completed  int    `json:"completed"`
	Failed     int    `json:"failed"`
	StartedAt  int64  `json:"started_at"`
	FinishedAt int64  `json:"finished_at,omitempty"`
}

// ManifestRow is the stored summary of one seed's manifest.
type ManifestRow struct {
	RunID      string `json:"run_id"`
	Seed       string `json:"seed"`
	Domain     string `json:"domain"`
	SeedBase   string `json:"seed_base"`
	Mode       string `json:"mode"`
	StopReason string `json:"stop_reason"`
	Pages      int    `json:"pages"`
	UniqueJobs int    `json:"unique_jobs"`
	ErrorKind  string `json:"error_kind,omitempty"`
	Error      string `json:"error,omitempty"`
	CreatedAt  int64  `json:"ts"`
}

// JobLink is one distinct job posting URL seen during a run.
type JobLink struct {
	RunID       string `json:"run_id"`
	Domain      string `json:"domain"`
	URL         string `json:"url"`
	FirstPageID string `json:"first_page_id"`
	SeenAt      int64  `json:"seen_at"`
}

// Stats aggregates the whole database.
type Stats struct {
	Runs      int `json:"runs"`
	Manifests int `json:"manifests"`
	Failed    int `json:"failed_manifests"`
	Pages     int `json:"pages"`
	JobLinks  int `json:"job_links"`
	Domains   int `json:"domains"`
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT run_id, seeds, completed, failed, started_at, COALESCE(finished_at, 0)
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.RunID, &r.Seeds, &r.Completed, &r.Failed,
			&r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		result = append(result, &r)
	}
	return result, rows.Err()
}

// GetRun returns one run, or nil when the run is unknown.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT run_id, seeds, completed, failed, started_at, COALESCE(finished_at, 0)
		FROM runs WHERE run_id = ?`, runID)
	var r Run
	err := row.Scan(&r.RunID, &r.Seeds, &r.Completed, &r.Failed, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return &r, nil
}

// ListManifests returns manifest summaries newest first, optionally filtered
// by domain.
func (s *Store) ListManifests(ctx context.Context, domain string, limit int) ([]*ManifestRow, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT run_id, seed, domain, seed_base, mode, stop_reason, pages,
		unique_jobs, error_kind, error, created_at FROM manifests`
	args := []any{}
	if domain != "" {
		query += ` WHERE domain = ?`
		args = append(args, domain)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*ManifestRow
	for rows.Next() {
		var m ManifestRow
		if err := rows.Scan(&m.RunID, &m.Seed, &m.Domain, &m.SeedBase, &m.Mode,
			&m.StopReason, &m.Pages, &m.UniqueJobs, &m.ErrorKind, &m.Error,
			&m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan manifest: %w", err)
		}
		result = append(result, &m)
	}
	return result, rows.Err()
}

// JobLinks returns a run's distinct job links for a domain.
func (s *Store) JobLinks(ctx context.Context, runID, domain string, limit int) ([]*JobLink, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT run_id, domain, url, first_page_id, seen_at FROM job_links
		WHERE run_id = ? AND domain = ? ORDER BY seen_at, url LIMIT ?`,
		runID, domain, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobLinks(rows)
}

// NewJobLinks returns the job links first seen in runID: links present in
// this run but absent from every earlier run of the same domain. This is
// the change-detection query new-posting alerts hang off.
func (s *Store) NewJobLinks(ctx context.Context, runID, domain string) ([]*JobLink, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT j.run_id, j.domain, j.url, j.first_page_id, j.seen_at
		FROM job_links j
		WHERE j.run_id = ? AND j.domain = ?
		AND NOT EXISTS (
			SELECT 1 FROM job_links prev
			JOIN runs pr ON pr.run_id = prev.run_id
			JOIN runs cur ON cur.run_id = j.run_id
			WHERE prev.domain = j.domain AND prev.url = j.url
			AND pr.started_at < cur.started_at
		)
		ORDER BY j.seen_at, j.url`,
		runID, domain)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobLinks(rows)
}

func scanJobLinks(rows *sql.Rows) ([]*JobLink, error) {
	var result []*JobLink
	for rows.Next() {
		var j JobLink
		if err := rows.Scan(&j.RunID, &j.Domain, &j.URL, &j.FirstPageID, &j.SeenAt); err != nil {
			return nil, fmt.Errorf("scan job link: %w", err)
		}
		result = append(result, &j)
	}
	return result, rows.Err()
}

// GetStats aggregates totals across all runs.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	var st Stats
	row := s.DB.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM runs),
		(SELECT COUNT(*) FROM manifests),
		(SELECT COUNT(*) FROM manifests WHERE error_kind != ''),
		(SELECT COUNT(*) FROM pages),
		(SELECT COUNT(*) FROM job_links),
		(SELECT COUNT(DISTINCT domain) FROM manifests)`)
	if err := row.Scan(&st.Runs, &st.Manifests, &st.Failed, &st.Pages,
		&st.JobLinks, &st.Domains); err != nil {
		return nil, fmt.Errorf("store: stats: %w", err)
	}
	return &st, nil
}
