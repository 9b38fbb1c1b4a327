// Package crawler captures career pages end to end: it navigates seeds with
// a real browser, expands and paginates job listings, reduces each captured
// DOM to job-relevant containers, and writes full / focused / lite artifacts
// plus a per-seed manifest under out/<domain>/.
package crawler

import (
	"github.com/hazyhaar/jobscout/crawler/internal/analyze"
	"github.com/hazyhaar/jobscout/crawler/internal/capture"
	"github.com/hazyhaar/jobscout/crawler/internal/reduce"
)

// Re-export capture types for public API.
type (
	Seed        = capture.Seed
	Snapshot    = capture.Snapshot
	Manifest    = capture.Manifest
	PageEntry   = capture.PageEntry
	PageFiles   = capture.PageFiles
	Limits      = capture.Limits
	Fingerprint = analyze.Fingerprint
	Signal      = reduce.Signal
)
