// Package analyze derives comparable fingerprints from page snapshots and
// decides whether an interaction actually surfaced new content. Everything
// here is pure: browser-only signals (current URL, scroll height) are passed
// in by the caller.
package analyze

import (
	"crypto/sha1"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/jobscout/crawler/internal/urlx"
)

// keywordRe matches job-related hrefs or anchor text.
var keywordRe = regexp.MustCompile(`(?i)(job|jobs|career|opening|openings|position|positions|role|roles|req|requisition|opportunit)`)

// Caps bound fingerprint extraction so huge pages stay cheap to compare.
const (
	// HrefCap bounds the href sequence inside a fingerprint.
	HrefCap = 60
	// SessionHrefCap bounds the sequence used for cumulative job counting.
	SessionHrefCap = 200
	// textItemCap bounds how many list items feed the text hash.
	textItemCap = 50
)

// Fingerprint is a comparable summary of one page state.
type Fingerprint struct {
	URL      string   `json:"url"`
	TextHash string   `json:"text_hash"`
	JobHrefs []string `json:"job_hrefs"`
	ListLen  int      `json:"list_len"`
	ScrollH  int      `json:"scroll_h"`
}

// JobCount is the number of distinct job hrefs in the fingerprint.
func (f *Fingerprint) JobCount() int { return len(f.JobHrefs) }

// Change reasons reported by Progressed. The orchestrator logs them so a
// crawl trace explains why each phase kept going.
const (
	ReasonMoreJobs    = "more_jobs"
	ReasonTextChanged = "text_changed"
	ReasonURLChanged  = "url_changed"
	ReasonScrollGrew  = "scroll_grew"
)

// scrollGrowthMin is the minimum height gain (px) that counts as progress.
// Smaller deltas happen from ads and layout shifts on unchanged content.
const scrollGrowthMin = 500

// Progressed reports whether after represents meaningful new content
// relative to before, with one named reason per triggered condition.
// Whitespace-only text differences never trigger: the text hash is computed
// over whitespace-collapsed text.
func Progressed(before, after *Fingerprint) (bool, []string) {
	var reasons []string

	if before.URL != after.URL {
		reasons = append(reasons, ReasonURLChanged)
	}
	if before.TextHash != after.TextHash {
		reasons = append(reasons, ReasonTextChanged)
	}
	if len(after.JobHrefs) > len(before.JobHrefs) {
		reasons = append(reasons, ReasonMoreJobs)
	}
	if after.ScrollH > before.ScrollH+scrollGrowthMin {
		reasons = append(reasons, ReasonScrollGrew)
	}

	return len(reasons) > 0, reasons
}

// FromHTML builds a fingerprint from a page's HTML plus the browser-side
// signals the markup cannot carry.
func FromHTML(src, seedURL, currentURL string, scrollH int) (*Fingerprint, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("analyze: parse: %w", err)
	}
	return &Fingerprint{
		URL:      urlx.Normalize(currentURL),
		TextHash: TextHash(strings.Join(itemTexts(doc, textItemCap), "\n\n")),
		JobHrefs: jobHrefs(doc, seedURL, HrefCap),
		ListLen:  ListLen(doc),
		ScrollH:  scrollH,
	}, nil
}

// JobHrefs extracts distinct canonical job hrefs from src in document
// order, capped at limit. Used by the orchestrator for cumulative counting.
func JobHrefs(src, seedURL string, limit int) ([]string, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("analyze: parse: %w", err)
	}
	return jobHrefs(doc, seedURL, limit), nil
}

func jobHrefs(doc *html.Node, seedURL string, limit int) []string {
	var out []string
	seen := make(map[string]bool)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(out) >= limit {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			href := strings.TrimSpace(attrVal(n, "href"))
			text := nodeText(n)
			if href != "" && (keywordRe.MatchString(href) || keywordRe.MatchString(text)) {
				if cu := urlx.Canonical(seedURL, href); cu != "" && !seen[cu] {
					seen[cu] = true
					out = append(out, cu)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

// ListLen estimates how many job-list items the page shows: listitem roles
// when there are enough of them, otherwise card-like elements.
func ListLen(doc *html.Node) int {
	listitems := 0
	cards := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if strings.EqualFold(attrVal(n, "role"), "listitem") {
				listitems++
			}
			switch n.DataAtom {
			case atom.Article, atom.Li:
				cards++
			case atom.Div:
				cls := strings.ToLower(attrVal(n, "class"))
				if strings.Contains(cls, "card") || strings.Contains(cls, "result") {
					cards++
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if listitems >= 5 {
		return listitems
	}
	return cards
}

// itemTexts collects the text of the first limit list items (listitem role,
// article, li). The joined result feeds the text hash, so the hash tracks
// what a user would see in the results list, not the whole page chrome.
func itemTexts(doc *html.Node, limit int) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(out) >= limit {
			return
		}
		if n.Type == html.ElementNode {
			isItem := strings.EqualFold(attrVal(n, "role"), "listitem") ||
				n.DataAtom == atom.Article || n.DataAtom == atom.Li
			if isItem {
				if t := nodeText(n); t != "" {
					out = append(out, t)
				}
				return // don't double-count nested items
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

var wsRun = regexp.MustCompile(`\s+`)

// TextHash hashes text after collapsing whitespace runs, so reflows and
// indentation churn never read as content change.
func TextHash(text string) string {
	norm := wsRun.ReplaceAllString(strings.TrimSpace(text), " ")
	h := sha1.Sum([]byte(norm))
	return fmt.Sprintf("%x", h[:])
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			t := strings.TrimSpace(n.Data)
			if t != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
