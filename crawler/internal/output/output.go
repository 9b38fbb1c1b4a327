// Package output persists capture artifacts under the site directory
// layout consumed by the extraction pipeline:
//
//	<root>/<domain>/full/<base>.<page_id>.html
//	<root>/<domain>/reduced_focus/<base>.<page_id>.html
//	<root>/<domain>/reduced_lite/<base>.<page_id>.html
//	<root>/<domain>/meta/<base>.<page_id>.json
//	<root>/<domain>/signals/<base>.<page_id>.json
//	<root>/<domain>/<seed_base>.manifest.json
//
// Names are content-derived (slug + URL hash), so re-runs against unchanged
// content overwrite the same files instead of accumulating copies.
package output

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/hazyhaar/jobscout/crawler/internal/capture"
	"github.com/hazyhaar/jobscout/crawler/internal/urlx"
)

// typeDirs maps artifact type to its subdirectory.
var typeDirs = map[string]string{
	"full":    "full",
	"focus":   "reduced_focus",
	"lite":    "reduced_lite",
	"meta":    "meta",
	"signals": "signals",
}

// Store writes capture artifacts below a root directory. Writes are
// per-seed and keyed by content-derived names; concurrent writers on
// different domains never collide.
type Store struct {
	root   string
	logger *slog.Logger
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{root: dir, logger: logger}
}

// SiteDir returns the output directory of a domain.
func (s *Store) SiteDir(domain string) string {
	return filepath.Join(s.root, domain)
}

// pageMeta is the metadata record written next to each captured page.
type pageMeta struct {
	URL          string `json:"url"`
	EffectiveURL string `json:"effective_url"`
	Title        string `json:"title"`
	PageID       string `json:"page_id"`
	ContentHash  string `json:"sha1"`
	CapturedAt   int64  `json:"ts"`
}

// WriteSnapshot writes all artifacts of one captured page and returns the
// paths, keyed by artifact type.
func (s *Store) WriteSnapshot(domain, seedURL, pageID string, snap *capture.Snapshot) (capture.PageFiles, error) {
	base := urlx.BaseNameFor(seedURL, snap.Title)
	paths, err := s.buildPaths(domain, base, pageID)
	if err != nil {
		return nil, err
	}

	hash := snap.ContentHash
	if hash == "" {
		hash = urlx.SHA1Hex(snap.FullHTML)
	}
	meta := pageMeta{
		URL:          seedURL,
		EffectiveURL: snap.EffectiveURL,
		Title:        snap.Title,
		PageID:       pageID,
		ContentHash:  hash,
		CapturedAt:   snap.CapturedAt.Unix(),
	}

	if err := writeFile(paths["full"], []byte(snap.FullHTML)); err != nil {
		return nil, err
	}
	if err := writeFile(paths["focus"], []byte(snap.Focused)); err != nil {
		return nil, err
	}
	if err := writeFile(paths["lite"], []byte(snap.Lite)); err != nil {
		return nil, err
	}
	if err := writeJSON(paths["meta"], meta); err != nil {
		return nil, err
	}
	if len(snap.Signals) > 0 {
		if err := writeJSON(paths["signals"], snap.Signals); err != nil {
			return nil, err
		}
	} else {
		delete(paths, "signals")
	}

	s.logger.Debug("output: page written", "domain", domain,
		"page_id", pageID, "base", base)
	return paths, nil
}

// WriteManifest persists the seed's manifest as
// <root>/<domain>/<seed_base>.manifest.json.
func (s *Store) WriteManifest(m *capture.Manifest) error {
	dir := s.SiteDir(m.Domain)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("output: mkdir %s: %w", dir, err)
	}
	path := filepath.Join(dir, m.SeedBase+".manifest.json")
	if err := writeJSON(path, m); err != nil {
		return err
	}
	s.logger.Info("output: manifest written", "domain", m.Domain,
		"seed_base", m.SeedBase, "pages", len(m.Pages), "stop", m.StopReason)
	return nil
}

// ManifestPath returns where a seed's manifest lives.
func (s *Store) ManifestPath(domain, seedBase string) string {
	return filepath.Join(s.SiteDir(domain), seedBase+".manifest.json")
}

// ReadManifest loads one seed's manifest. Returns os.ErrNotExist (wrapped)
// when the seed was never crawled.
func (s *Store) ReadManifest(domain, seedBase string) (*capture.Manifest, error) {
	data, err := os.ReadFile(s.ManifestPath(domain, seedBase))
	if err != nil {
		return nil, fmt.Errorf("output: read manifest: %w", err)
	}
	var m capture.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("output: decode manifest %s/%s: %w", domain, seedBase, err)
	}
	return &m, nil
}

// ListManifests loads every manifest under the root, optionally filtered by
// domain, newest first.
func (s *Store) ListManifests(domain string) ([]*capture.Manifest, error) {
	pattern := filepath.Join(s.root, "*", "*.manifest.json")
	if domain != "" {
		pattern = filepath.Join(s.SiteDir(domain), "*.manifest.json")
	}
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("output: glob manifests: %w", err)
	}
	var result []*capture.Manifest
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("output: read manifest: %w", err)
		}
		var m capture.Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			s.logger.Warn("output: skipping unreadable manifest", "path", path, "error", err)
			continue
		}
		result = append(result, &m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt > result[j].CreatedAt })
	return result, nil
}

func (s *Store) buildPaths(domain, base, pageID string) (capture.PageFiles, error) {
	root := s.SiteDir(domain)
	paths := make(capture.PageFiles, len(typeDirs))
	for typ, sub := range typeDirs {
		dir := filepath.Join(root, sub)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("output: mkdir %s: %w", dir, err)
		}
		ext := ".json"
		if typ == "full" || typ == "focus" || typ == "lite" {
			ext = ".html"
		}
		paths[typ] = filepath.Join(dir, base+"."+pageID+ext)
	}
	return paths, nil
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("output: write %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("output: marshal %s: %w", path, err)
	}
	return writeFile(path, data)
}
