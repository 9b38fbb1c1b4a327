// Package reduce selects the job-dense subset of a captured page.
//
// Reduce is a pure function over an HTML snapshot. It produces two
// representations: focused (the top-scoring containers, concatenated) and
// lite (the full page with scripts and styles stripped), plus per-container
// scoring signals for auditability. Identical input yields identical output.
package reduce

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Options tunes the scorer. The bonus and cutoff are empirical defaults
// from production runs, not invariants.
type Options struct {
	// MinTextLen is the minimum visible text length for a container to be
	// considered a candidate. Default: 200.
	MinTextLen int

	// TopK is the number of top-scoring containers kept in the focused
	// output. Default: 10.
	TopK int

	// JobLinkBonus is added to a container's score when it holds at least
	// one job-like link. Default: 25.
	JobLinkBonus float64
}

func (o *Options) defaults() {
	if o.MinTextLen <= 0 {
		o.MinTextLen = 200
	}
	if o.TopK <= 0 {
		o.TopK = 10
	}
	if o.JobLinkBonus == 0 {
		o.JobLinkBonus = 25
	}
}

// Signal records why a container was kept.
type Signal struct {
	Tag         string  `json:"tag"`
	Score       float64 `json:"score"`
	TextLen     int     `json:"text_len"`
	LinkDensity float64 `json:"link_density"`
	HCount      int     `json:"h_count"`
	Repetition  float64 `json:"repetition"`
	IsMain      bool    `json:"is_main"`
	LooksNav    bool    `json:"looks_nav"`
	HasJobLinks bool    `json:"has_job_links"`
}

// Result is the output of one reduction.
type Result struct {
	Focused         string
	Lite            string
	Signals         []Signal
	Title           string
	KeptCount       int
	TotalCandidates int
	BodyFallback    bool // true when no candidate cleared MinTextLen
}

// Reduce scores the containers of src and returns the focused and lite
// reductions. It never returns empty focused content for a non-empty body:
// when no container clears the threshold the whole body is kept.
func Reduce(src string, opts Options) (*Result, error) {
	opts.defaults()

	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("reduce: parse: %w", err)
	}

	stripNoise(doc)

	title := findTitle(doc)
	body := findBody(doc)

	res := &Result{
		Title: title,
		Lite:  renderLite(doc),
	}

	if body == nil {
		res.Focused = res.Lite
		res.BodyFallback = true
		return res, nil
	}

	cands := collectCandidates(body, opts)
	res.TotalCandidates = len(cands)

	if len(cands) == 0 {
		// Fallback guarantee: never silently return empty focused content.
		res.Focused = focusedDoc(title, []string{collapseWhitespace(renderNode(body))})
		res.BodyFallback = true
		return res, nil
	}

	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].sig.Score > cands[j].sig.Score
	})

	var kept []*candidate
	for _, c := range cands {
		if len(kept) >= opts.TopK {
			break
		}
		// A container nested inside an already-kept container would
		// duplicate its content.
		if nestedInAny(c.node, kept) {
			continue
		}
		kept = append(kept, c)
	}

	parts := make([]string, 0, len(kept))
	for _, c := range kept {
		parts = append(parts, collapseWhitespace(renderNode(c.node)))
		res.Signals = append(res.Signals, c.sig)
	}
	res.KeptCount = len(kept)
	res.Focused = focusedDoc(title, parts)
	return res, nil
}

type candidate struct {
	node *html.Node
	sig  Signal
}

// collectCandidates enumerates containers in document order so equal scores
// keep a deterministic order after the stable sort.
func collectCandidates(body *html.Node, opts Options) []*candidate {
	var out []*candidate
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && isCandidateTag(n) {
			if tl := len(visibleText(n)); tl > opts.MinTextLen {
				out = append(out, &candidate{node: n, sig: scoreContainer(n, opts.JobLinkBonus)})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(body)
	return out
}

func isCandidateTag(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Main, atom.Article, atom.Section, atom.Div:
		return true
	}
	return attrVal(n, "id") == "content"
}

func nestedInAny(n *html.Node, kept []*candidate) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		for _, k := range kept {
			if p == k.node {
				return true
			}
		}
	}
	return false
}

func focusedDoc(title string, parts []string) string {
	var b strings.Builder
	b.WriteString(`<!doctype html><meta charset="utf-8"><title>`)
	b.WriteString(html.EscapeString(title))
	b.WriteString("</title>")
	b.WriteString(strings.Join(parts, "\n"))
	return b.String()
}

// stripNoise removes script/style/noscript/template subtrees and elements
// hidden by inline style. Mutates the tree in place; callers parse a fresh
// tree per Reduce call so purity holds for the package API.
func stripNoise(n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if isNoise(c) {
			n.RemoveChild(c)
			continue
		}
		stripNoise(c)
	}
}

func isNoise(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript, atom.Template:
		return true
	}
	if hasHiddenStyle(n) {
		return true
	}
	// Fixed-position cookie/consent overlays hide the content we score.
	if bannerish(n) && strings.Contains(strings.ToLower(attrVal(n, "style")), "position:fixed") {
		return true
	}
	return false
}

var hiddenStylePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)display\s*:\s*none`),
	regexp.MustCompile(`(?i)visibility\s*:\s*hidden`),
	regexp.MustCompile(`(?i)opacity\s*:\s*0(\.0+)?\s*(;|$)`),
}

func hasHiddenStyle(n *html.Node) bool {
	style := attrVal(n, "style")
	if style == "" {
		return false
	}
	for _, pat := range hiddenStylePatterns {
		if pat.MatchString(style) {
			return true
		}
	}
	return false
}

var bannerRe = regexp.MustCompile(`(?i)cookie|consent|newsletter|subscribe|sign-?up|login|advert|promo|overlay|modal|toast|gdpr`)

func bannerish(n *html.Node) bool {
	return bannerRe.MatchString(attrVal(n, "id") + " " + attrVal(n, "class"))
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		if n.FirstChild != nil {
			return strings.TrimSpace(n.FirstChild.Data)
		}
		return ""
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

// visibleText approximates innerText: text nodes joined by single spaces.
func visibleText(n *html.Node) string {
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

func renderNode(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}

// renderLite renders the whole document after noise stripping.
func renderLite(doc *html.Node) string {
	return `<!doctype html><meta charset="utf-8">` + collapseWhitespace(renderNode(doc))
}

var (
	wsRuns    = regexp.MustCompile(`\s{2,}`)
	interTags = regexp.MustCompile(`>\s+<`)
)

func collapseWhitespace(s string) string {
	s = wsRuns.ReplaceAllString(s, " ")
	return interTags.ReplaceAllString(s, "><")
}
