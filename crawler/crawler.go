package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/hazyhaar/jobscout/crawler/internal/browser"
	"github.com/hazyhaar/jobscout/crawler/internal/capture"
	"github.com/hazyhaar/jobscout/crawler/internal/interact"
	"github.com/hazyhaar/jobscout/crawler/internal/output"
	"github.com/hazyhaar/jobscout/crawler/internal/urlx"
	"github.com/hazyhaar/jobscout/idgen"
	"github.com/hazyhaar/jobscout/kit"
)

// DriverFactory opens an interaction driver bound to one domain session.
// The returned release func closes the underlying browser session.
type DriverFactory func(ctx context.Context, domain string) (capture.Driver, func(), error)

// Recorder receives crawl events for durable run bookkeeping. All methods
// are best-effort from the crawler's point of view: a recorder failure is
// logged, never fatal to the crawl.
type Recorder interface {
	StartRun(ctx context.Context, runID string, seeds []string) error
	RecordSnapshot(ctx context.Context, runID, domain, pageID string, snap *capture.Snapshot) error
	RecordManifest(ctx context.Context, runID string, m *capture.Manifest) error
	FinishRun(ctx context.Context, runID string, completed, failed int) error
}

// Report summarizes one multi-seed crawl run.
type Report struct {
	RunID     string      `json:"run_id"`
	Manifests []*Manifest `json:"manifests"`
	Completed int         `json:"completed"`
	Failed    int         `json:"failed"`
	Elapsed   float64     `json:"elapsed_s"`
}

// Service is the crawl runner: it groups seeds by domain, opens one browser
// session per domain, and runs seeds sequentially within it with politeness
// pauses. One Service crawls one run at a time.
type Service struct {
	cfg      *Config
	manager  *browser.Manager
	factory  DriverFactory
	files    capture.Writer
	out      *output.Store
	recorder Recorder
	logger   *slog.Logger
	newID    func() string
}

// ServiceOption configures a Service during creation.
type ServiceOption func(*Service)

// WithRecorder wires durable run bookkeeping (sqlite store).
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) { s.recorder = r }
}

// WithDriverFactory replaces the browser-backed driver factory. Used by
// tests and by alternative drivers.
func WithDriverFactory(f DriverFactory) ServiceOption {
	return func(s *Service) { s.factory = f }
}

// WithWriter replaces the filesystem artifact writer.
func WithWriter(w capture.Writer) ServiceOption {
	return func(s *Service) { s.files = w }
}

// New creates a crawler Service.
func New(cfg *Config, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		cfg = defaultConfig()
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Browser.Logger == nil {
		cfg.Browser.Logger = logger
	}

	out := output.NewStore(cfg.OutDir, logger)
	svc := &Service{
		cfg:     cfg,
		manager: browser.NewManager(cfg.Browser),
		files:   out,
		out:     out,
		logger:  logger,
		newID:   idgen.New,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.factory == nil {
		svc.factory = svc.browserFactory
	}
	return svc, nil
}

// Close releases the browser. Safe to call once after all crawls finish.
func (s *Service) Close() error {
	return s.manager.Close()
}

// Crawl runs every seed to completion and returns the run report. Seed
// failures are recorded in their manifests and do not abort sibling seeds;
// only context cancellation or an empty seed list aborts the run.
func (s *Service) Crawl(ctx context.Context, seedURLs []string) (*Report, error) {
	if len(seedURLs) == 0 {
		return nil, ErrNoSeeds
	}
	start := time.Now()
	runID := s.newID()
	ctx = capture.WithRunID(ctx, runID)
	ctx = kit.WithRunID(ctx, runID) // tags SQL traces issued during the run
	log := s.logger.With("run_id", runID)

	seeds, err := groupByDomain(seedURLs)
	if err != nil {
		return nil, err
	}
	if s.recorder != nil {
		if err := s.recorder.StartRun(ctx, runID, seedURLs); err != nil {
			log.Warn("crawler: record run start", "error", err)
		}
	}
	log.Info("crawler: run started", "seeds", len(seedURLs), "domains", len(seeds))

	report := &Report{RunID: runID}
	for _, group := range seeds {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		s.crawlDomain(ctx, runID, group, report, log)
	}

	report.Elapsed = time.Since(start).Seconds()
	if s.recorder != nil {
		if err := s.recorder.FinishRun(ctx, runID, report.Completed, report.Failed); err != nil {
			log.Warn("crawler: record run finish", "error", err)
		}
	}
	log.Info("crawler: run finished", "completed", report.Completed,
		"failed", report.Failed, "elapsed_s", report.Elapsed)
	return report, nil
}

// domainGroup keeps one domain's seeds in input order.
type domainGroup struct {
	domain string
	seeds  []Seed
}

// groupByDomain buckets seeds by domain, preserving first-seen domain order
// and input order within a domain.
func groupByDomain(seedURLs []string) ([]domainGroup, error) {
	var groups []domainGroup
	index := make(map[string]int)
	for _, raw := range seedURLs {
		norm := urlx.Normalize(raw)
		domain := urlx.DomainOf(norm)
		if domain == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSeed, raw)
		}
		i, ok := index[domain]
		if !ok {
			i = len(groups)
			index[domain] = i
			groups = append(groups, domainGroup{domain: domain})
		}
		groups[i].seeds = append(groups[i].seeds, Seed{URL: norm, Domain: domain})
	}
	return groups, nil
}

// crawlDomain runs one domain's seeds inside a single browser session.
// A session-open failure fails every seed of the domain with a navigation
// manifest; a seed failure moves on to the next seed.
func (s *Service) crawlDomain(ctx context.Context, runID string, group domainGroup, report *Report, log *slog.Logger) {
	log = log.With("domain", group.domain)
	writer := &recordingWriter{
		ctx: ctx, files: s.files, rec: s.recorder, runID: runID, logger: log,
	}

	driver, release, err := s.factory(ctx, group.domain)
	if err != nil {
		log.Error("crawler: open domain session", "error", err)
		for _, seed := range group.seeds {
			m := s.sessionFailureManifest(seed, err)
			if werr := writer.WriteManifest(m); werr != nil {
				log.Error("crawler: write failure manifest", "seed", seed.URL, "error", werr)
			}
			report.Manifests = append(report.Manifests, m)
			report.Failed++
		}
		return
	}
	defer release()

	orch := capture.New(driver, writer, s.cfg.Limits, log)
	for i, seed := range group.seeds {
		if ctx.Err() != nil {
			return
		}
		if i > 0 {
			s.politenessPause(ctx)
		}
		m, err := orch.Run(ctx, seed)
		if m != nil {
			report.Manifests = append(report.Manifests, m)
		}
		if err != nil {
			report.Failed++
			log.Warn("crawler: seed failed", "seed", seed.URL, "error", err)
			continue
		}
		report.Completed++
		log.Info("crawler: seed done", "seed", seed.URL,
			"pages", len(m.Pages), "unique_jobs", m.UniqueJobs,
			"mode", m.Mode, "stop_reason", m.StopReason)
	}
}

// sessionFailureManifest records a seed that never got a browser session.
func (s *Service) sessionFailureManifest(seed Seed, err error) *Manifest {
	return &Manifest{
		Seed:       seed.URL,
		Domain:     seed.Domain,
		SeedBase:   urlx.BaseNameFor(seed.URL, ""),
		Config:     s.cfg.Limits,
		ErrorKind:  "navigation",
		Error:      err.Error(),
		CreatedAt:  time.Now().Unix(),
		StopReason: "",
	}
}

// politenessPause sleeps a jittered interval between seeds of one domain.
func (s *Service) politenessPause(ctx context.Context) {
	span := s.cfg.DelayMax - s.cfg.DelayMin
	d := s.cfg.DelayMin + time.Duration(rand.Int63n(int64(span)+1))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// browserFactory is the production DriverFactory: a stealth rod session per
// domain, wrapped in the interaction driver.
func (s *Service) browserFactory(_ context.Context, domain string) (capture.Driver, func(), error) {
	if err := s.manager.Start(); err != nil {
		return nil, nil, err
	}
	sess, err := s.manager.OpenSession(domain, s.cfg.StateDir)
	if err != nil {
		return nil, nil, err
	}
	driver := interact.New(sess.Page, interact.Options{
		NavTimeout: s.cfg.NavTimeout,
		NavRetries: s.cfg.NavRetries,
		Reduce:     s.cfg.Reduce,
		Logger:     s.logger.With("domain", domain),
	})
	return driver, sess.Close, nil
}

// recordingWriter tees capture artifacts to the filesystem writer and, when
// configured, to the run recorder. Recorder failures are logged and
// swallowed so database trouble cannot lose filesystem artifacts.
type recordingWriter struct {
	ctx    context.Context
	files  capture.Writer
	rec    Recorder
	runID  string
	logger *slog.Logger
}

func (w *recordingWriter) WriteSnapshot(domain, seedURL, pageID string, snap *capture.Snapshot) (capture.PageFiles, error) {
	files, err := w.files.WriteSnapshot(domain, seedURL, pageID, snap)
	if err != nil {
		return nil, err
	}
	if w.rec != nil {
		if err := w.rec.RecordSnapshot(w.ctx, w.runID, domain, pageID, snap); err != nil {
			w.logger.Warn("crawler: record snapshot", "page_id", pageID, "error", err)
		}
	}
	return files, nil
}

func (w *recordingWriter) WriteManifest(m *capture.Manifest) error {
	if err := w.files.WriteManifest(m); err != nil {
		return err
	}
	if w.rec != nil {
		if err := w.rec.RecordManifest(w.ctx, w.runID, m); err != nil {
			w.logger.Warn("crawler: record manifest", "seed", m.Seed, "error", err)
		}
	}
	return nil
}
