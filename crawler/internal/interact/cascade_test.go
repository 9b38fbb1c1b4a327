package interact

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

// goRegexp converts a /pattern/flags JS regex literal into a Go regexp so the
// cascade patterns can be exercised without a browser.
func goRegexp(t *testing.T, js string) *regexp.Regexp {
	t.Helper()
	if !strings.HasPrefix(js, "/") {
		t.Fatalf("not a regex literal: %q", js)
	}
	end := strings.LastIndex(js, "/")
	body, flags := js[1:end], js[end+1:]
	if strings.Contains(flags, "i") {
		body = "(?i)" + body
	}
	re, err := regexp.Compile(body)
	if err != nil {
		t.Fatalf("pattern %q does not compile: %v", js, err)
	}
	return re
}

func TestLoadMorePatternMatchesCommonLabels(t *testing.T) {
	re := goRegexp(t, loadMoreCascade[0].pattern)
	for _, text := range []string{
		"Load more", "LOAD MORE", "Show more jobs", "See more openings", "View More",
	} {
		if !re.MatchString(text) {
			t.Errorf("expected match for %q", text)
		}
	}
	for _, text := range []string{
		"Read more about us", "Learn more", "More filters",
	} {
		if re.MatchString(text) {
			t.Errorf("unexpected match for %q", text)
		}
	}
}

func TestNextPatternMatchesPaginationLabels(t *testing.T) {
	re := goRegexp(t, nextCascade[0].pattern)
	for _, text := range []string{"Next", "next page", "Next ›"} {
		if !re.MatchString(text) {
			t.Errorf("expected match for %q", text)
		}
	}
	if re.MatchString("Nextdoor careers") {
		t.Error("matched inside a longer word")
	}
}

func TestNavArrowPattern(t *testing.T) {
	re := goRegexp(t, nextCascade[len(nextCascade)-1].pattern)
	for _, text := range []string{"›", " » ", ">", "→"} {
		if !re.MatchString(text) {
			t.Errorf("expected match for %q", text)
		}
	}
	if re.MatchString("> read the docs") {
		t.Error("arrow pattern must only match bare arrows")
	}
}

func TestCascadesOrderSemanticFirst(t *testing.T) {
	for name, cascade := range map[string][]strategy{
		"load_more": loadMoreCascade,
		"next":      nextCascade,
	} {
		if cascade[0].pattern == "" {
			t.Errorf("%s: first strategy must be a text match, got bare CSS %q",
				name, cascade[0].selector)
		}
		for i, s := range cascade {
			if s.selector == "" {
				t.Errorf("%s[%d]: empty selector", name, i)
			}
			if s.label == "" {
				t.Errorf("%s[%d]: empty label", name, i)
			}
		}
	}
}

func TestOptionsDefaults(t *testing.T) {
	var o Options
	o.defaults()
	if o.NavTimeout != 45*time.Second {
		t.Errorf("NavTimeout = %v", o.NavTimeout)
	}
	if o.NavRetries != 3 {
		t.Errorf("NavRetries = %d", o.NavRetries)
	}
	if o.Logger == nil {
		t.Error("Logger not defaulted")
	}
}
