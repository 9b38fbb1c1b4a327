package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// pdfMaxBytes caps a fetched job-description PDF. Career postings are a few
// hundred KB; anything bigger is not a posting.
const pdfMaxBytes = 16 << 20

// pdfTextCap bounds the description text folded into a job record so one
// oversized PDF cannot blow up the jobs JSON.
const pdfTextCap = 20_000

// isPDFHref reports whether a job URL points at a PDF document.
func isPDFHref(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}

// enrichPDFJobs fetches PDF job descriptions linked from a page's jobs and
// folds their extracted text into each job's extra fields. Image-only PDFs
// (NeedsOCR) are flagged instead of extracted. Every failure is per-job:
// logged, recorded, never fatal to the page.
func (e *Extractor) enrichPDFJobs(ctx context.Context, page *PageJobs) {
	for _, job := range page.Jobs {
		if job.JobURL == "" || !isPDFHref(job.JobURL) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return
		}
		target := resolveJobURL(page.SourceURL, job.JobURL)
		text, quality, err := e.fetchAndExtractPDF(ctx, target)
		if err != nil {
			e.logger.Warn("extract: pdf description failed", "url", target, "error", err)
			continue
		}
		if job.Extra == nil {
			job.Extra = map[string]any{}
		}
		if quality.NeedsOCR() {
			e.logger.Warn("extract: pdf needs ocr, skipping text", "url", target)
			job.Extra["pdf_needs_ocr"] = true
			continue
		}
		if len(text) > pdfTextCap {
			text = text[:pdfTextCap]
		}
		job.Extra["description_text"] = text
		job.Extra["description_source"] = target
	}
}

// resolveJobURL resolves a possibly-relative job href against the page URL.
func resolveJobURL(pageURL, href string) string {
	base, err := url.Parse(pageURL)
	if err != nil || pageURL == "" {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// fetchAndExtractPDF downloads one PDF to a temp file and runs the text
// extraction on it. The temp file never outlives the call.
func (e *Extractor) fetchAndExtractPDF(ctx context.Context, pdfURL string) (string, *PDFQuality, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return "", nil, err
	}
	resp, err := e.pdfClient.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("extract: pdf fetch status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "jobscout-*.pdf")
	if err != nil {
		return "", nil, err
	}
	defer os.Remove(tmp.Name())
	_, err = io.Copy(tmp, io.LimitReader(resp.Body, pdfMaxBytes))
	tmp.Close()
	if err != nil {
		return "", nil, err
	}

	return e.extractPDF(tmp.Name())
}

func defaultPDFClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
