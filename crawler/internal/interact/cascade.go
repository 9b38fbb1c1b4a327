package interact

// A strategy is one attempt in an ordered selector cascade. Semantic
// strategies (role + accessible text) come first because they generalize
// across unrelated sites; CSS text and attribute matches are fallbacks for
// sites without accessible markup. Each attempt is independent: a miss
// advances to the next strategy, it never retries.
type strategy struct {
	label    string
	selector string
	// pattern is a JS regex matched against element text. Empty means the
	// CSS selector alone decides.
	pattern string
}

// loadMoreCascade finds "load more" style controls during expansion.
var loadMoreCascade = []strategy{
	{"role-button load-more", `button, [role="button"]`, `/\b(load|show|see|view)\s+more\b/i`},
	{"anchor load-more", `a`, `/\b(load|show|see|view)\s+more\b/i`},
	{"aria load-more", `button[aria-label*="load more" i], [role="button"][aria-label*="load more" i]`, ""},
	{"aria show-more", `button[aria-label*="show more" i]`, ""},
	{"class load-more", `button[class*="load-more" i], button[class*="loadmore" i], a[class*="load-more" i]`, ""},
	{"class show-more", `button[class*="show-more" i], a[class*="show-more" i]`, ""},
}

// nextCascade finds pagination controls.
var nextCascade = []strategy{
	{"role-link next", `a, [role="link"]`, `/\bnext\b/i`},
	{"role-button next", `button, [role="button"]`, `/\bnext\b/i`},
	{"rel next", `a[rel="next"]`, ""},
	{"aria next", `button[aria-label*="next" i], a[aria-label*="next" i], [role="button"][aria-label*="next" i]`, ""},
	{"nav arrow", `nav button, nav a`, `/^\s*(›|»|>|→)\s*$/`},
}

// contentProbeSelectors detect that job listings rendered, checked in order
// during wait-for-content.
var contentProbeSelectors = []string{
	`[role="listitem"]`,
	`article[class*="job" i]`,
	`div[class*="job-card" i]`,
	`li[class*="position" i]`,
	`a[href*="/jobs/"]`,
	`a[href*="/job/"]`,
}
