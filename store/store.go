// Package store persists crawl-run bookkeeping in SQLite: runs, per-seed
// manifests, captured pages, and the distinct job links each run surfaced.
// Filesystem artifacts stay authoritative; this database exists for queries
// (stats, run history, job-link diffing between runs).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/jobscout/crawler"
)

// Store wraps the run-bookkeeping database.
type Store struct {
	DB *sql.DB
}

// New creates a Store on an already-opened database and applies the schema.
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{DB: db}, nil
}

var _ crawler.Recorder = (*Store)(nil)

// StartRun records a run before its first seed is crawled.
func (s *Store) StartRun(ctx context.Context, runID string, seeds []string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO runs (run_id, seeds, started_at) VALUES (?, ?, ?)`,
		runID, len(seeds), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("store: insert run: %w", err)
	}
	return nil
}

// RecordSnapshot stores one captured page and upserts the job links it
// surfaced. The first page that shows a link wins first_page_id.
func (s *Store) RecordSnapshot(ctx context.Context, runID, domain, pageID string, snap *crawler.Snapshot) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	var uniqueJobs, listLen int
	if snap.Fingerprint != nil {
		uniqueJobs = snap.Fingerprint.JobCount()
		listLen = snap.Fingerprint.ListLen
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO pages (run_id, domain, page_id, url, effective_url, title,
		content_hash, unique_jobs, list_len, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, domain, pageID, snap.URL, snap.EffectiveURL, snap.Title,
		snap.ContentHash, uniqueJobs, listLen, snap.CapturedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("store: insert page: %w", err)
	}

	if snap.Fingerprint != nil {
		now := time.Now().Unix()
		for _, href := range snap.Fingerprint.JobHrefs {
			_, err = tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO job_links (run_id, domain, url, first_page_id, seen_at)
				VALUES (?, ?, ?, ?, ?)`,
				runID, domain, href, pageID, now,
			)
			if err != nil {
				return fmt.Errorf("store: insert job link: %w", err)
			}
		}
	}
	return tx.Commit()
}

// RecordManifest stores one seed's manifest. Re-recording the same seed in
// the same run replaces the previous row.
func (s *Store) RecordManifest(ctx context.Context, runID string, m *crawler.Manifest) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT OR REPLACE INTO manifests (run_id, seed, domain, seed_base, mode,
		stop_reason, pages, unique_jobs, error_kind, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, m.Seed, m.Domain, m.SeedBase, m.Mode, m.StopReason,
		len(m.Pages), m.UniqueJobs, m.ErrorKind, m.Error, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert manifest: %w", err)
	}
	return nil
}

// FinishRun closes out a run with its final counts.
func (s *Store) FinishRun(ctx context.Context, runID string, completed, failed int) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE runs SET completed = ?, failed = ?, finished_at = ? WHERE run_id = ?`,
		completed, failed, time.Now().Unix(), runID,
	)
	if err != nil {
		return fmt.Errorf("store: finish run: %w", err)
	}
	return nil
}
