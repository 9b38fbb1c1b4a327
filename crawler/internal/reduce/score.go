package reduce

import (
	"math"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// atsHosts are applicant-tracking vendors whose links are always job links.
var atsHosts = []string{
	"greenhouse.io",
	"myworkdayjobs.com",
	"ashbyhq.com",
	"lever.co",
	"smartrecruiters.com",
	"jobvite.com",
}

// jobPathHints are path shapes that mark a link as a job posting.
var jobPathHints = []string{
	"/jobs/",
	"/job/",
	"/careers/",
	"/career/",
	"/positions/",
	"/position/",
	"/posting/",
	"/postings/",
	"gh_jid=",
	"gh_src=",
}

// LooksLikeJobHref reports whether href points at a job posting, by vendor
// host or by path shape.
func LooksLikeJobHref(href string) bool {
	if href == "" {
		return false
	}
	href = strings.ToLower(href)
	for _, h := range atsHosts {
		if strings.Contains(href, h) {
			return true
		}
	}
	for _, p := range jobPathHints {
		if strings.Contains(href, p) {
			return true
		}
	}
	return false
}

// scoreContainer computes a container's keep-score on a ~100 point scale.
// Text volume, headings and repeated card-like children raise it; link
// density and nav-like tags lower it. A container holding at least one
// job link gets a large fixed bonus so job lists dominate the ranking.
func scoreContainer(n *html.Node, jobLinkBonus float64) Signal {
	text := visibleText(n)
	textLen := len(text)

	var linkTextLen int
	var hasJobLinks bool
	forEachElement(n, func(el *html.Node) {
		if el.DataAtom != atom.A {
			return
		}
		linkTextLen += len(visibleText(el))
		if !hasJobLinks && LooksLikeJobHref(attrVal(el, "href")) {
			hasJobLinks = true
		}
	})

	linkDensity := 0.0
	if textLen > 0 {
		linkDensity = float64(linkTextLen) / float64(textLen)
	}

	hcount := 0
	forEachElement(n, func(el *html.Node) {
		switch el.DataAtom {
		case atom.H1, atom.H2, atom.H3:
			hcount++
		}
	})

	tag := strings.ToLower(n.Data)
	role := strings.ToLower(attrVal(n, "role"))
	isMain := n.DataAtom == atom.Main || n.DataAtom == atom.Article || role == "main"
	looksNav := role == "navigation" || role == "banner" || role == "contentinfo"
	switch n.DataAtom {
	case atom.Nav, atom.Header, atom.Footer:
		looksNav = true
	}

	repetition := childRepetition(n)

	score := math.Log2(1 + float64(textLen))
	if isMain {
		score += 3
	}
	if hcount > 0 {
		score += 1.5
	}
	score += repetition * 2
	score -= linkDensity * 2
	if looksNav {
		score -= 2
	}
	if hasJobLinks {
		score += jobLinkBonus
	}

	return Signal{
		Tag:         tag,
		Score:       score,
		TextLen:     textLen,
		LinkDensity: linkDensity,
		HCount:      hcount,
		Repetition:  repetition,
		IsMain:      isMain,
		LooksNav:    looksNav,
		HasJobLinks: hasJobLinks,
	}
}

// childRepetition measures how card-like a container's children are: the
// share of direct children with the same tag as the first, when there are
// more than three children. Job lists repeat the same card element.
func childRepetition(n *html.Node) float64 {
	var children []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			children = append(children, c)
		}
	}
	if len(children) <= 3 {
		return 0
	}
	first := children[0].DataAtom
	same := 0
	for _, c := range children {
		if c.DataAtom == first {
			same++
		}
	}
	return float64(same) / float64(len(children))
}

func forEachElement(n *html.Node, fn func(*html.Node)) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			fn(c)
		}
		forEachElement(c, fn)
	}
}
