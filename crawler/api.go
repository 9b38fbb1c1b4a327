package crawler

import (
	"context"
	"fmt"
	"sort"
)

// ManifestSummary is the list-view projection of a manifest.
type ManifestSummary struct {
	Seed       string `json:"seed"`
	Domain     string `json:"domain"`
	SeedBase   string `json:"seed_base"`
	Mode       string `json:"mode"`
	StopReason string `json:"stop_reason"`
	Pages      int    `json:"pages"`
	UniqueJobs int    `json:"unique_jobs"`
	ErrorKind  string `json:"error_kind,omitempty"`
	CreatedAt  int64  `json:"ts"`
}

// CrawlStats aggregates the manifests on disk.
type CrawlStats struct {
	Manifests  int            `json:"manifests"`
	Failed     int            `json:"failed"`
	Pages      int            `json:"pages"`
	UniqueJobs int            `json:"unique_jobs"`
	ByDomain   map[string]int `json:"by_domain"`
	ByStop     map[string]int `json:"by_stop_reason"`
}

// ListManifests returns manifest summaries from the output tree, newest
// first, optionally filtered by domain.
func (s *Service) ListManifests(_ context.Context, domain string) ([]*ManifestSummary, error) {
	manifests, err := s.out.ListManifests(domain)
	if err != nil {
		return nil, err
	}
	result := make([]*ManifestSummary, 0, len(manifests))
	for _, m := range manifests {
		result = append(result, &ManifestSummary{
			Seed:       m.Seed,
			Domain:     m.Domain,
			SeedBase:   m.SeedBase,
			Mode:       m.Mode,
			StopReason: m.StopReason,
			Pages:      len(m.Pages),
			UniqueJobs: m.UniqueJobs,
			ErrorKind:  m.ErrorKind,
			CreatedAt:  m.CreatedAt,
		})
	}
	return result, nil
}

// GetManifest loads one seed's full manifest from the output tree.
func (s *Service) GetManifest(_ context.Context, domain, seedBase string) (*Manifest, error) {
	if domain == "" || seedBase == "" {
		return nil, fmt.Errorf("%w: domain and seed_base are required", ErrInvalidSeed)
	}
	return s.out.ReadManifest(domain, seedBase)
}

// Stats aggregates every manifest in the output tree.
func (s *Service) Stats(_ context.Context) (*CrawlStats, error) {
	manifests, err := s.out.ListManifests("")
	if err != nil {
		return nil, err
	}
	st := &CrawlStats{
		ByDomain: make(map[string]int),
		ByStop:   make(map[string]int),
	}
	for _, m := range manifests {
		st.Manifests++
		if m.Failed() {
			st.Failed++
		}
		st.Pages += len(m.Pages)
		st.UniqueJobs += m.UniqueJobs
		st.ByDomain[m.Domain]++
		if m.StopReason != "" {
			st.ByStop[m.StopReason]++
		}
	}
	return st, nil
}

// Domains lists the domains present in the output tree, sorted.
func (s *Service) Domains(ctx context.Context) ([]string, error) {
	manifests, err := s.out.ListManifests("")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var domains []string
	for _, m := range manifests {
		if !seen[m.Domain] {
			seen[m.Domain] = true
			domains = append(domains, m.Domain)
		}
	}
	sort.Strings(domains)
	return domains, nil
}
