// Entry point for the jobscout crawler: crawl/extract commands plus a serve
// mode exposing the read-only HTTP API and the MCP tool surface.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/jobscout/crawler"
	"github.com/hazyhaar/jobscout/dbopen"
	"github.com/hazyhaar/jobscout/extract"
	"github.com/hazyhaar/jobscout/observability"
	"github.com/hazyhaar/jobscout/shield"
	"github.com/hazyhaar/jobscout/store"
	"github.com/hazyhaar/jobscout/trace"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	setupLogging()

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "crawl":
		err = cmdCrawl(args)
	case "extract":
		err = cmdExtract(args)
	case "serve":
		err = cmdServe(args)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "jobscout: unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error(cmd+" failed", "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: jobscout <command> [flags]

Commands:
  crawl    capture career pages from a seeds file
           jobscout crawl --urls seeds.txt [--config jobscout.yaml] [--with-llm]
  extract  run the LLM extraction postpass over captured output
           jobscout extract [--config jobscout.yaml] [--site out/example.com]
  serve    run the HTTP API (and MCP when MCP_TRANSPORT=stdio)
           jobscout serve [--config jobscout.yaml]

Environment:
  JOBSCOUT_CONFIG  config file path (flag --config wins)
  JOBSCOUT_DB      results database path
  GEMINI_API_KEY   required for extract / --with-llm
  PORT             serve listen port (default 8080)
  MCP_TRANSPORT    "stdio" enables the MCP server in serve mode
  LOG_LEVEL        debug | info | warn | error
`)
}

func setupLogging() {
	var lvl slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}

// deps holds the databases shared by every command. The trace store is
// registered globally so that both the results and observability DBs can be
// opened with the "sqlite-trace" driver.
type deps struct {
	traceDB    *sql.DB
	traceStore *trace.Store
	storeDB    *sql.DB
	obsDB      *sql.DB
}

func openDeps(cfg *fileConfig) (*deps, error) {
	// Trace DB first, raw "sqlite" driver — never traced itself.
	traceDB, err := dbopen.Open(cfg.TraceDB, dbopen.WithMkdirAll())
	if err != nil {
		return nil, fmt.Errorf("trace db: %w", err)
	}
	traceStore := trace.NewStore(traceDB)
	if err := traceStore.Init(); err != nil {
		traceDB.Close()
		return nil, fmt.Errorf("trace init: %w", err)
	}
	trace.SetStore(traceStore)

	storeDB, err := dbopen.Open(cfg.DB, dbopen.WithMkdirAll(), dbopen.WithTrace())
	if err != nil {
		traceStore.Close()
		traceDB.Close()
		return nil, fmt.Errorf("results db: %w", err)
	}

	obsDB, err := dbopen.Open(cfg.ObservabilityDB, dbopen.WithMkdirAll())
	if err != nil {
		storeDB.Close()
		traceStore.Close()
		traceDB.Close()
		return nil, fmt.Errorf("observability db: %w", err)
	}
	if err := observability.Init(obsDB); err != nil {
		obsDB.Close()
		storeDB.Close()
		traceStore.Close()
		traceDB.Close()
		return nil, fmt.Errorf("observability init: %w", err)
	}

	return &deps{traceDB: traceDB, traceStore: traceStore, storeDB: storeDB, obsDB: obsDB}, nil
}

func (d *deps) Close() {
	d.obsDB.Close()
	d.storeDB.Close()
	trace.SetStore(nil)
	d.traceStore.Close()
	d.traceDB.Close()
}

// --- crawl ---

func cmdCrawl(args []string) error {
	fs := flag.NewFlagSet("crawl", flag.ExitOnError)
	urlsFile := fs.String("urls", "", "seeds file, one URL per line")
	configPath := fs.String("config", "", "config file path")
	withLLM := fs.Bool("with-llm", false, "run the LLM extraction postpass after the crawl")
	fs.Parse(args)

	if *urlsFile == "" {
		return errors.New("--urls is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	seeds, err := crawler.ReadSeedsFile(*urlsFile)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	d, err := openDeps(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	st, err := store.New(d.storeDB)
	if err != nil {
		return err
	}

	hb := observability.NewHeartbeatWriter(d.obsDB, "jobscout_crawler", 15*time.Second)
	hb.Start(ctx)
	defer hb.Stop()

	svc, err := crawler.New(cfg.crawlerConfig(), slog.Default(),
		crawler.WithRecorder(&runTracker{Recorder: st, hb: hb}))
	if err != nil {
		return err
	}
	defer svc.Close()

	events := observability.NewEventLogger(d.obsDB)
	metrics := observability.NewMetricsManager(d.obsDB, 100, 5*time.Second)
	defer metrics.Close()
	auditLog := observability.NewAuditLogger(d.obsDB, 1000)
	defer auditLog.Close()

	events.LogEvent(ctx, observability.CrawlEvent{
		EventType: observability.EventCrawlStart,
		Action:    "crawl",
		Details:   fmt.Sprintf(`{"seeds":%d}`, len(seeds)),
		Success:   true,
	})

	start := time.Now()
	report, err := svc.Crawl(ctx, seeds)
	if err != nil {
		auditLog.LogAsync(auditLog.NewAuditEntry("crawler", "crawl",
			map[string]any{"seeds": len(seeds)}, nil, err, time.Since(start)))
		return err
	}

	pages, jobs := 0, 0
	for _, m := range report.Manifests {
		pages += len(m.Pages)
		jobs += m.UniqueJobs
	}
	metrics.RecordSimple(observability.MetricRunDurationMs, float64(time.Since(start).Milliseconds()), "milliseconds")
	metrics.RecordSimple(observability.MetricPagesCapturedCount, float64(pages), "count")
	metrics.RecordSimple(observability.MetricJobsFoundCount, float64(jobs), "count")
	metrics.RecordSimple(observability.MetricSeedsFailedCount, float64(report.Failed), "count")

	entry := auditLog.NewAuditEntry("crawler", "crawl",
		map[string]any{"seeds": len(seeds)},
		map[string]any{"completed": report.Completed, "failed": report.Failed, "pages": pages},
		nil, time.Since(start))
	entry.RunID = report.RunID
	auditLog.LogAsync(entry)

	events.LogEvent(ctx, observability.CrawlEvent{
		EventType: observability.EventCrawlComplete,
		RunID:     report.RunID,
		Action:    "crawl",
		Details:   fmt.Sprintf(`{"completed":%d,"failed":%d,"pages":%d,"jobs":%d}`, report.Completed, report.Failed, pages, jobs),
		Success:   report.Failed == 0,
	})

	slog.Info("crawl finished",
		"run_id", report.RunID,
		"completed", report.Completed,
		"failed", report.Failed,
		"pages", pages,
		"unique_jobs", jobs,
		"elapsed_s", report.Elapsed)

	if !*withLLM {
		return nil
	}

	domains := make(map[string]bool)
	for _, m := range report.Manifests {
		if m.ErrorKind == "" {
			domains[m.Domain] = true
		}
	}
	dirs := make([]string, 0, len(domains))
	for dom := range domains {
		dirs = append(dirs, filepath.Join(cfg.OutDir, dom))
	}
	return runExtraction(ctx, cfg, dirs, events, metrics)
}

// runTracker stamps the in-flight run on heartbeats while delegating run
// bookkeeping to the store.
type runTracker struct {
	crawler.Recorder
	hb *observability.HeartbeatWriter
}

func (t *runTracker) StartRun(ctx context.Context, runID string, seeds []string) error {
	t.hb.SetCurrentRun(runID)
	return t.Recorder.StartRun(ctx, runID, seeds)
}

func (t *runTracker) FinishRun(ctx context.Context, runID string, completed, failed int) error {
	defer t.hb.SetCurrentRun("")
	return t.Recorder.FinishRun(ctx, runID, completed, failed)
}

// --- extract ---

func cmdExtract(args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	siteDir := fs.String("site", "", "single site directory (default: every domain under out_dir)")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	d, err := openDeps(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	var dirs []string
	if *siteDir != "" {
		dirs = []string{*siteDir}
	} else {
		entries, err := os.ReadDir(cfg.OutDir)
		if err != nil {
			return fmt.Errorf("read out dir: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				dirs = append(dirs, filepath.Join(cfg.OutDir, e.Name()))
			}
		}
	}
	if len(dirs) == 0 {
		return errors.New("nothing to extract: no site directories found")
	}

	events := observability.NewEventLogger(d.obsDB)
	metrics := observability.NewMetricsManager(d.obsDB, 100, 5*time.Second)
	defer metrics.Close()

	return runExtraction(ctx, cfg, dirs, events, metrics)
}

func runExtraction(ctx context.Context, cfg *fileConfig, siteDirs []string, events *observability.EventLogger, metrics *observability.MetricsManager) error {
	gem, err := extract.NewGemini(extract.GeminiConfig{
		APIKey: os.Getenv("GEMINI_API_KEY"),
		Model:  cfg.LLM.Model,
	})
	if err != nil {
		return err
	}

	ex := extract.New(gem, extract.Config{
		MaxInputChars: cfg.LLM.MaxInputChars,
		Overwrite:     cfg.LLM.Overwrite,
		PromptFile:    cfg.LLM.PromptFile,
	})

	var failed int
	for _, dir := range siteDirs {
		start := time.Now()
		written, err := ex.ExtractSite(ctx, dir)
		if err != nil {
			slog.Error("extraction failed", "site", dir, "error", err)
			failed++
			continue
		}
		metrics.RecordSimple(observability.MetricLLMLatencyMs, float64(time.Since(start).Milliseconds()), "milliseconds")
		events.LogEvent(ctx, observability.CrawlEvent{
			EventType: observability.EventExtractComplete,
			Domain:    filepath.Base(dir),
			Action:    "extract_site",
			Details:   fmt.Sprintf(`{"pages":%d}`, len(written)),
			Success:   true,
		})
		slog.Info("site extracted", "site", dir, "pages", len(written))
	}
	if failed > 0 {
		return fmt.Errorf("extraction: %d of %d sites failed", failed, len(siteDirs))
	}
	return nil
}

// --- serve ---

func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	port := env("PORT", "8080")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	d, err := openDeps(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	st, err := store.New(d.storeDB)
	if err != nil {
		return err
	}

	hb := observability.NewHeartbeatWriter(d.obsDB, "jobscout_api", 15*time.Second)
	hb.Start(ctx)

	svc, err := crawler.New(cfg.crawlerConfig(), slog.Default(),
		crawler.WithRecorder(&runTracker{Recorder: st, hb: hb}))
	if err != nil {
		return err
	}
	defer svc.Close()

	// Rate limit rules live in the results DB next to the data they guard.
	if err := shield.Init(d.storeDB); err != nil {
		return fmt.Errorf("shield init: %w", err)
	}
	limiter := shield.NewRateLimiter(d.storeDB, "/healthz")
	limiter.StartReloader(ctx.Done())

	// Daily retention cleanup.
	go func() {
		tick := time.NewTicker(24 * time.Hour)
		defer tick.Stop()
		for {
			if err := observability.Cleanup(ctx, d.obsDB, observability.RetentionConfig{
				HTTPLogsDays:   cfg.Retention.HTTPLogsDays,
				EventLogsDays:  cfg.Retention.EventLogsDays,
				HeartbeatsDays: cfg.Retention.HeartbeatsDays,
			}); err != nil {
				slog.Warn("retention cleanup", "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
			}
		}
	}()

	// Optional MCP over stdio, alongside the HTTP API.
	if env("MCP_TRANSPORT", "") == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "jobscout",
			Version: "1.0.0",
		}, nil)
		svc.RegisterMCP(mcpSrv)
		go func() {
			slog.Info("MCP stdio starting")
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				slog.Error("MCP stdio", "error", err)
			}
		}()
	}

	r := chi.NewRouter()
	for _, mw := range shield.DefaultAPIStack() {
		r.Use(mw)
	}
	r.Use(requestLog(d.obsDB))
	r.Use(limiter.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/runs", func(w http.ResponseWriter, r *http.Request) {
			runs, err := st.ListRuns(r.Context(), queryInt(r, "limit", 50))
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, runs)
		})

		r.Get("/runs/{runID}", func(w http.ResponseWriter, r *http.Request) {
			run, err := st.GetRun(r.Context(), chi.URLParam(r, "runID"))
			if err != nil {
				writeError(w, 500, err)
				return
			}
			if run == nil {
				writeJSON(w, 404, map[string]string{"error": "run not found"})
				return
			}
			writeJSON(w, 200, run)
		})

		r.Get("/runs/{runID}/joblinks", func(w http.ResponseWriter, r *http.Request) {
			runID := chi.URLParam(r, "runID")
			domain := r.URL.Query().Get("domain")
			var links []*store.JobLink
			var err error
			if r.URL.Query().Get("new") == "1" {
				links, err = st.NewJobLinks(r.Context(), runID, domain)
			} else {
				links, err = st.JobLinks(r.Context(), runID, domain, queryInt(r, "limit", 500))
			}
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, links)
		})

		r.Get("/manifests", func(w http.ResponseWriter, r *http.Request) {
			list, err := st.ListManifests(r.Context(), r.URL.Query().Get("domain"), queryInt(r, "limit", 100))
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, list)
		})

		r.Get("/manifests/{domain}/{seedBase}", func(w http.ResponseWriter, r *http.Request) {
			m, err := svc.GetManifest(r.Context(), chi.URLParam(r, "domain"), chi.URLParam(r, "seedBase"))
			if err != nil {
				writeJSON(w, 404, map[string]string{"error": "manifest not found"})
				return
			}
			writeJSON(w, 200, m)
		})

		r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			stats, err := st.GetStats(r.Context())
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, stats)
		})
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	hb.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
	return nil
}

// requestLog writes one http_request_logs row per request.
func requestLog(db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: 200}
			next.ServeHTTP(sw, r)

			_, err := db.ExecContext(r.Context(), `
				INSERT INTO http_request_logs (method, path, status_code, duration_ms, ip_address, user_agent)
				VALUES (?,?,?,?,?,?)`,
				r.Method, r.URL.Path, sw.status, time.Since(start).Milliseconds(),
				shield.ExtractIP(r), r.UserAgent())
			if err != nil {
				slog.Warn("request log failed", "error", err)
			}
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// --- helpers ---

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
