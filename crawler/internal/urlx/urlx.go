// Package urlx provides URL canonicalization and output naming for the
// crawler. Job-href identity is URL equality after canonicalization, so
// every href comparison in the module goes through Canonical.
package urlx

import (
	"crypto/sha1"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// trackingParams are query parameters stripped during canonicalization.
// Two hrefs differing only in these point at the same posting.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"gclid":        true,
	"fbclid":       true,
}

// Canonical resolves href against seed and normalizes the result:
// tracking params removed, scheme/host lowercased, fragment dropped.
// Returns "" when href cannot be parsed as a URL.
func Canonical(seed, href string) string {
	base, err := url.Parse(seed)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	u := base.ResolveReference(ref)

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawQuery = stripTracking(u.Query())

	return u.String()
}

// Normalize strips tracking params from an absolute URL without a seed.
// Used on the browser's current URL before fingerprint comparison, so a
// client-side router appending utm params does not read as navigation.
func Normalize(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawQuery = stripTracking(u.Query())
	return u.String()
}

func stripTracking(q url.Values) string {
	for k := range q {
		if trackingParams[strings.ToLower(k)] {
			q.Del(k)
		}
	}
	return q.Encode()
}

// DomainOf returns the lowercased host of a URL. Seeds sharing a domain
// share one browser session.
func DomainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

var (
	leadingDigits  = regexp.MustCompile(`^\d+[-_]*`)
	trailingDigits = regexp.MustCompile(`[-_]*\d+$`)
	nonSlugChars   = regexp.MustCompile(`[^a-z0-9\-]+`)
	multiHyphen    = regexp.MustCompile(`-{2,}`)
)

// slugLastSegment slugifies the last path segment of a URL, dropping
// leading/trailing numeric IDs so re-runs against rotated IDs keep
// stable names.
func slugLastSegment(raw, fallback string, maxLen int) string {
	u, err := url.Parse(raw)
	if err != nil {
		return fallback
	}
	seg := fallback
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			seg = s
		}
	}
	seg = leadingDigits.ReplaceAllString(seg, "")
	seg = trailingDigits.ReplaceAllString(seg, "")
	if seg == "" {
		seg = fallback
	}
	seg = slugify(seg)
	if seg == "" {
		seg = fallback
	}
	if len(seg) > maxLen {
		seg = seg[:maxLen]
	}
	return seg
}

func slugify(s string) string {
	s = strings.ToLower(s)
	s = nonSlugChars.ReplaceAllString(s, "-")
	s = multiHyphen.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// ShortHash returns the first 8 hex chars of sha1(raw). Combined with the
// slug it makes output names content-derived and collision-resistant.
func ShortHash(raw string) string {
	h := sha1.Sum([]byte(raw))
	return fmt.Sprintf("%x", h[:4])
}

// BaseNameFor builds the deterministic base filename for a URL:
// <slug>__<sha1(url)[:8]>. When the URL's last segment is generic
// ("index", "page") and a title is available, the title is slugged instead.
func BaseNameFor(rawURL, title string) string {
	seg := slugLastSegment(rawURL, "index", 40)
	if (seg == "index" || seg == "page") && title != "" {
		t := slugify(title)
		if len(t) > 40 {
			t = t[:40]
		}
		if t != "" {
			seg = t
		}
	}
	return seg + "__" + ShortHash(rawURL)
}

// SHA1Hex returns the full sha1 hex digest of text. Content hashes in page
// metadata use this so downstream tooling can verify artifacts.
func SHA1Hex(text string) string {
	h := sha1.Sum([]byte(text))
	return fmt.Sprintf("%x", h[:])
}
