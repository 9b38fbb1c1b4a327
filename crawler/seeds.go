package crawler

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/hazyhaar/jobscout/crawler/internal/urlx"
)

// ReadSeedsFile loads seed URLs from a text file: one URL per line, blank
// lines and #-comments skipped, duplicates (after normalization) dropped
// while preserving first-seen order.
func ReadSeedsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("crawler: open seeds file: %w", err)
	}
	defer f.Close()

	var seeds []string
	seen := make(map[string]bool)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := validateSeed(line); err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSeed, line, err)
		}
		norm := urlx.Normalize(line)
		if seen[norm] {
			continue
		}
		seen[norm] = true
		seeds = append(seeds, norm)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("crawler: read seeds file: %w", err)
	}
	return seeds, nil
}

// validateSeed requires an absolute http(s) URL with a host.
func validateSeed(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q not allowed", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
