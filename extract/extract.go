// Package extract turns captured career pages into structured job postings.
// It walks a site's reduced_focus artifacts, converts each to markdown,
// sends it through an extraction model, repairs and normalizes the JSON it
// gets back, and writes one .jobs.json per page under <site>/llm/.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Config configures the Extractor.
type Config struct {
	// MaxInputChars caps the markdown sent to the model. Default: 250000.
	MaxInputChars int

	// Overwrite recomputes pages whose .jobs.json already exists.
	Overwrite bool

	// PromptFile optionally overrides the built-in extraction prompt.
	PromptFile string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxInputChars <= 0 {
		c.MaxInputChars = 250_000
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Extractor runs the extraction postpass over capture output.
type Extractor struct {
	llm    LLM
	cfg    Config
	prompt string
	logger *slog.Logger

	pdfClient  *http.Client
	extractPDF func(path string) (string, *PDFQuality, error)
}

// New creates an Extractor on any LLM backend.
func New(llm LLM, cfg Config) *Extractor {
	cfg.defaults()
	return &Extractor{
		llm:        llm,
		cfg:        cfg,
		prompt:     loadPrompt(cfg.PromptFile),
		logger:     cfg.Logger,
		pdfClient:  defaultPDFClient(),
		extractPDF: ExtractPDF,
	}
}

// pageMeta mirrors the capture metadata record written next to each page.
type pageMeta struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// ExtractSite processes every reduced_focus page of one site directory and
// returns the written .jobs.json paths. Per-page failures are logged and
// skipped; the walk never aborts.
func (e *Extractor) ExtractSite(ctx context.Context, siteDir string) ([]string, error) {
	focusDir := filepath.Join(siteDir, "reduced_focus")
	entries, err := filepath.Glob(filepath.Join(focusDir, "*.html"))
	if err != nil {
		return nil, fmt.Errorf("extract: glob %s: %w", focusDir, err)
	}
	sort.Strings(entries)

	log := e.logger.With("site", filepath.Base(siteDir))
	log.Info("extract: site postpass started", "pages", len(entries))

	var written []string
	for _, path := range entries {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		out, err := e.ExtractFile(ctx, siteDir, path)
		if err != nil {
			log.Error("extract: page failed", "file", filepath.Base(path), "error", err)
			continue
		}
		written = append(written, out)
	}
	log.Info("extract: site postpass done", "written", len(written))
	return written, nil
}

// ExtractFile processes one reduced_focus page and returns the .jobs.json
// path. Idempotent: an existing output short-circuits unless Overwrite is
// set.
func (e *Extractor) ExtractFile(ctx context.Context, siteDir, focusPath string) (string, error) {
	llmDir := filepath.Join(siteDir, "llm")
	if err := os.MkdirAll(llmDir, 0o755); err != nil {
		return "", fmt.Errorf("extract: mkdir %s: %w", llmDir, err)
	}

	stem := strings.TrimSuffix(filepath.Base(focusPath), ".html")
	outPath := filepath.Join(llmDir, stem+".jobs.json")
	if !e.cfg.Overwrite {
		if _, err := os.Stat(outPath); err == nil {
			e.logger.Debug("extract: skipping existing", "file", filepath.Base(outPath))
			return outPath, nil
		}
	}

	src, err := os.ReadFile(focusPath)
	if err != nil {
		return "", fmt.Errorf("extract: read %s: %w", focusPath, err)
	}
	sourceURL, pageTitle := e.readMeta(siteDir, stem)

	page, err := e.ExtractHTML(ctx, string(src), sourceURL, pageTitle)
	if err != nil {
		return "", err
	}

	stats := NormalizeAndDedupe(page)
	e.enrichPDFJobs(ctx, page)
	e.logger.Info("extract: page done", "file", stem,
		"jobs_in", stats.InputJobs, "jobs_out", stats.DedupedOut,
		"duplicates", stats.DuplicatesRemoved)

	data, err := json.MarshalIndent(page, "", "  ")
	if err != nil {
		return "", fmt.Errorf("extract: marshal %s: %w", outPath, err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return "", fmt.Errorf("extract: write %s: %w", outPath, err)
	}
	return outPath, nil
}

// ExtractHTML runs one HTML fragment through the model and returns parsed
// jobs. A page whose output resists all JSON repair comes back with zero
// jobs and the Error field set rather than an error: the caller keeps
// walking.
func (e *Extractor) ExtractHTML(ctx context.Context, src, sourceURL, pageTitle string) (*PageJobs, error) {
	input, truncated, err := promptText(src, e.cfg.MaxInputChars)
	if err != nil {
		return nil, err
	}
	if truncated {
		e.logger.Warn("extract: input truncated", "max_chars", e.cfg.MaxInputChars)
	}

	prompt := e.prompt + "\n\nReturn compact JSON on a single line if possible.\n\n" +
		"=== PAGE START ===\n" + input + "\n=== PAGE END ==="

	raw, err := e.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	page := &PageJobs{}
	if err := ParseJSONRobust(raw, page); err != nil {
		// Second chance: ask the model to repair its own output.
		fixed, fixErr := e.llm.Generate(ctx, fixerPrompt+raw)
		repaired := &PageJobs{}
		if fixErr == nil && ParseJSONRobust(fixed, repaired) == nil {
			page = repaired
		} else {
			e.logger.Error("extract: output unparseable after repair", "error", err)
			page = &PageJobs{
				Error: "model returned non-JSON output; all repair attempts failed",
			}
		}
	}

	if page.SourceURL == "" {
		page.SourceURL = sourceURL
	}
	if page.PageTitle == "" {
		page.PageTitle = pageTitle
	}
	if page.Jobs == nil {
		page.Jobs = []*Job{}
	}
	return page, nil
}

// readMeta pulls the source URL and title from the page's capture metadata.
// Missing metadata is not an error, the fields just stay empty.
func (e *Extractor) readMeta(siteDir, stem string) (url, title string) {
	data, err := os.ReadFile(filepath.Join(siteDir, "meta", stem+".json"))
	if err != nil {
		return "", ""
	}
	var m pageMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return "", ""
	}
	return m.URL, m.Title
}
