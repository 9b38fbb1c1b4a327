// Package capture runs one seed to completion: navigate, expand
// (load-more / infinite scroll), paginate, and emit a Manifest. The phase
// machine and its stop-reason precedence live here, behind Driver and
// Writer interfaces, so the whole lifecycle is testable without a browser.
package capture

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazyhaar/jobscout/crawler/internal/analyze"
	"github.com/hazyhaar/jobscout/crawler/internal/urlx"
)

// scrollRoundsPerAttempt bounds one expansion round's scroll-until-stable
// call. The expansion loop itself is bounded by ScrollMax rounds.
const scrollRoundsPerAttempt = 3

// paginationWait bounds the post-click settle window during pagination.
// Shorter than the expansion window: a next-click either navigates or it
// doesn't, there is no incremental loading to outwait.
const paginationWait = 10 * time.Second

// Orchestrator drives one seed at a time. Safe to reuse sequentially;
// never share one across concurrent seeds (the session state is unguarded
// by design, mirroring the one-page-per-domain browser constraint).
type Orchestrator struct {
	driver Driver
	writer Writer
	limits Limits
	logger *slog.Logger
}

// New creates an Orchestrator. Limits are taken verbatim: a zero JobsMax
// stops expansion immediately, it does not mean "default".
func New(driver Driver, writer Writer, limits Limits, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{driver: driver, writer: writer, limits: limits, logger: logger}
}

// Run crawls one seed to completion and returns its Manifest. Every seed
// yields a manifest, success or failure; the returned error is non-nil
// only for seed-level failures and never aborts sibling seeds.
func (o *Orchestrator) Run(ctx context.Context, seed Seed) (*Manifest, error) {
	if seed.Domain == "" {
		seed.Domain = urlx.DomainOf(seed.URL)
	}
	s := newSession(seed, o.limits, runIDFrom(ctx))
	log := o.logger.With("seed", seed.URL, "domain", seed.Domain)

	// Navigating.
	snap, err := o.driver.Navigate(ctx, seed.URL)
	if err != nil {
		log.Error("capture: navigation failed", "error", err)
		s.fail("navigation", err)
		return o.finish(s, log), err
	}
	s.seedBase = urlx.BaseNameFor(seed.URL, snap.Title)

	if err := o.capturePage(ctx, s, "p001", snap); err != nil {
		s.fail("interaction", err)
		return o.finish(s, log), err
	}
	log.Info("capture: seed loaded", "page_id", "p001", "title", snap.Title,
		"jobs", s.uniqueJobs())

	// Expanding.
	s.phase = PhaseExpanding
	expandStop, err := o.expand(ctx, s, snap.Fingerprint, log)
	if err != nil {
		s.fail("interaction", err)
		return o.finish(s, log), err
	}
	s.expandStop = expandStop

	if s.grewAny {
		exp, err := o.driver.Snapshot(ctx)
		if err != nil {
			s.fail("interaction", err)
			return o.finish(s, log), err
		}
		if err := o.capturePage(ctx, s, "expanded", exp); err != nil {
			s.fail("interaction", err)
			return o.finish(s, log), err
		}
		log.Info("capture: expansion grew content", "stop", expandStop,
			"jobs", s.uniqueJobs())
	}

	// Paginating.
	s.phase = PhasePaginating
	stop, err := o.paginate(ctx, s, log)
	if err != nil {
		s.fail("interaction", err)
		return o.finish(s, log), err
	}
	s.stopReason = stop

	s.phase = PhaseDone
	m := o.finish(s, log)
	log.Info("capture: seed done", "mode", m.Mode, "stop", m.StopReason,
		"pages", len(m.Pages), "jobs", m.UniqueJobs)
	return m, nil
}

// expand runs the load-more / infinite-scroll loop. Exit precedence, in
// order: jobs_cap, time_budget, no_change_cap. A round where neither
// mechanism moved at all also terminates as no_change_cap: there is
// nothing left to try.
func (o *Orchestrator) expand(ctx context.Context, s *session, prev *analyze.Fingerprint, log *slog.Logger) (string, error) {
	start := time.Now()
	clicks, scrolls := 0, 0

	for {
		switch {
		case s.uniqueJobs() >= s.limits.JobsMax:
			return StopJobsCap, nil
		case time.Since(start) >= s.limits.TimeBudget:
			return StopTimeBudget, nil
		case s.noChange >= s.limits.NoChangeCap:
			return StopNoChange, nil
		}

		clicked := false
		if clicks < s.limits.LoadMoreMax {
			var err error
			clicked, err = o.driver.ClickLoadMore(ctx)
			if err != nil {
				return "", err
			}
			if clicked {
				clicks++
			}
		}

		scrollGrew := false
		if !clicked && scrolls < s.limits.ScrollMax {
			var err error
			scrollGrew, err = o.driver.ScrollToBottomUntilStable(ctx, scrollRoundsPerAttempt)
			if err != nil {
				return "", err
			}
			scrolls++
		}

		o.driver.WaitForContent(ctx, s.limits.ContentWait)

		cur, err := o.driver.Fingerprint(ctx)
		if err != nil {
			return "", err
		}
		ok, reasons := analyze.Progressed(prev, cur)
		log.Debug("capture: expansion round", "clicked", clicked,
			"scrolled", scrollGrew, "progressed", ok, "reasons", reasons,
			"jobs", cur.JobCount())

		if ok {
			s.grewAny = true
			s.noChange = 0
			prev = cur
			hrefs, err := o.driver.JobHrefs(ctx)
			if err != nil {
				return "", err
			}
			s.addJobs(hrefs)
			continue
		}

		s.noChange++
		if !clicked && !scrollGrew {
			// Neither mechanism produced anything this round.
			return StopNoChange, nil
		}
	}
}

// paginate runs the next-page loop. Fingerprints are compared against the
// immediately preceding page in this phase, never an earlier one.
func (o *Orchestrator) paginate(ctx context.Context, s *session, log *slog.Logger) (string, error) {
	if s.numberedPages() >= s.limits.PagesMax {
		return StopPagesCap, nil
	}

	prev, err := o.driver.Fingerprint(ctx)
	if err != nil {
		return "", err
	}
	noChange := 0

	for s.numberedPages() < s.limits.PagesMax {
		clicked, err := o.driver.ClickNextPage(ctx)
		if err != nil {
			return "", err
		}
		if !clicked {
			return StopNoNext, nil
		}

		o.driver.WaitForContent(ctx, paginationWait)

		cur, err := o.driver.Fingerprint(ctx)
		if err != nil {
			return "", err
		}
		ok, reasons := analyze.Progressed(prev, cur)
		log.Debug("capture: pagination round", "progressed", ok, "reasons", reasons)

		if !ok {
			noChange++
			if noChange >= s.limits.NoChangeCap {
				return StopStable, nil
			}
			continue
		}

		snap, err := o.driver.Snapshot(ctx)
		if err != nil {
			return "", err
		}
		if err := o.capturePage(ctx, s, s.nextPageID(), snap); err != nil {
			return "", err
		}
		prev = cur
		noChange = 0
	}
	return StopPagesCap, nil
}

// capturePage writes a snapshot's artifacts and appends its manifest entry.
func (o *Orchestrator) capturePage(ctx context.Context, s *session, pageID string, snap *Snapshot) error {
	files, err := o.writer.WriteSnapshot(s.seed.Domain, s.seed.URL, pageID, snap)
	if err != nil {
		return err
	}
	hrefs, err := o.driver.JobHrefs(ctx)
	if err != nil {
		return err
	}
	s.addJobs(hrefs)

	listLen := 0
	if snap.Fingerprint != nil {
		listLen = snap.Fingerprint.ListLen
	}
	s.addPage(pageID, files, PageCounts{UniqueJobs: len(hrefs), ListLen: listLen})
	return nil
}

// finish converts the session and persists the manifest. A manifest write
// failure is logged but does not mask the seed's own outcome.
func (o *Orchestrator) finish(s *session, log *slog.Logger) *Manifest {
	m := s.manifest()
	if err := o.writer.WriteManifest(m); err != nil {
		log.Error("capture: manifest write failed", "error", err)
	}
	return m
}

type runIDKey struct{}

// WithRunID tags ctx with the crawl run identifier recorded in manifests.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

func runIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(runIDKey{}).(string); ok {
		return v
	}
	return ""
}
