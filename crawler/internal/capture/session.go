package capture

import (
	"fmt"
	"time"

	"github.com/hazyhaar/jobscout/crawler/internal/urlx"
)

// session is one seed's mutable lifecycle, owned exclusively by the
// orchestrator for the duration of Run and converted to a Manifest at the
// end. Never shared across goroutines.
type session struct {
	seed   Seed
	limits Limits
	runID  string

	phase     Phase
	startedAt time.Time

	seedBase string
	pages    []PageEntry
	jobs     map[string]bool // canonical href → seen
	grewAny  bool
	noChange int

	expandStop string
	stopReason string
	errKind    string
	err        error
}

func newSession(seed Seed, limits Limits, runID string) *session {
	return &session{
		seed:      seed,
		limits:    limits,
		runID:     runID,
		phase:     PhaseNavigating,
		startedAt: time.Now(),
		jobs:      make(map[string]bool),
	}
}

// addJobs merges canonical hrefs into the cumulative unique set.
func (s *session) addJobs(hrefs []string) {
	for _, h := range hrefs {
		s.jobs[h] = true
	}
}

func (s *session) uniqueJobs() int { return len(s.jobs) }

// nextPageID returns the page-id for the next numbered capture: p001 is
// the seed, expanded does not consume a number.
func (s *session) nextPageID() string {
	n := 0
	for _, p := range s.pages {
		if p.PageID != "expanded" {
			n++
		}
	}
	return fmt.Sprintf("p%03d", n+1)
}

// numberedPages counts captures with numeric page-ids.
func (s *session) numberedPages() int {
	n := 0
	for _, p := range s.pages {
		if p.PageID != "expanded" {
			n++
		}
	}
	return n
}

func (s *session) addPage(pageID string, files PageFiles, counts PageCounts) {
	s.pages = append(s.pages, PageEntry{
		PageID:     pageID,
		Files:      files,
		Counts:     counts,
		CapturedAt: time.Now().Unix(),
	})
}

func (s *session) fail(kind string, err error) {
	s.phase = PhaseFailed
	s.errKind = kind
	s.err = err
}

// mode derives the termination mode from what actually happened: scroll if
// only expansion grew, pagination if only next-clicks added pages, mixed
// if both. A seed where neither moved reports pagination, the phase it
// ended in.
func (s *session) mode() string {
	paged := s.numberedPages() > 1
	switch {
	case s.grewAny && paged:
		return ModeMixed
	case s.grewAny:
		return ModeScroll
	default:
		return ModePagination
	}
}

// manifest converts the session into its durable record.
func (s *session) manifest() *Manifest {
	m := &Manifest{
		RunID:      s.runID,
		Seed:       s.seed.URL,
		Domain:     s.seed.Domain,
		SeedBase:   s.seedBase,
		Mode:       s.mode(),
		StopReason: s.stopReason,
		ExpandStop: s.expandStop,
		Pages:      s.pages,
		UniqueJobs: s.uniqueJobs(),
		Config:     s.limits,
		CreatedAt:  time.Now().Unix(),
	}
	if m.SeedBase == "" {
		m.SeedBase = urlx.BaseNameFor(s.seed.URL, "")
	}
	if s.err != nil {
		m.ErrorKind = s.errKind
		m.Error = s.err.Error()
	}
	return m
}
