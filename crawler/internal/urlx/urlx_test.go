package urlx

import "testing"

func TestCanonicalStripsTracking(t *testing.T) {
	seed := "https://example.com/careers"

	a := Canonical(seed, "/job/42?utm_source=x")
	b := Canonical(seed, "/job/42?utm_source=y")
	if a != b {
		t.Fatalf("tracking params must not distinguish jobs: %q vs %q", a, b)
	}
	if a != "https://example.com/job/42" {
		t.Fatalf("Canonical = %q", a)
	}
}

func TestCanonicalResolvesRelative(t *testing.T) {
	tests := []struct {
		seed, href, want string
	}{
		{"https://example.com/careers/", "../jobs/123", "https://example.com/jobs/123"},
		{"https://Example.COM", "/jobs?page=2#apply", "https://example.com/jobs?page=2"},
		{"https://example.com", "https://boards.greenhouse.io/acme/jobs/1?gclid=z", "https://boards.greenhouse.io/acme/jobs/1"},
	}
	for _, tt := range tests {
		if got := Canonical(tt.seed, tt.href); got != tt.want {
			t.Errorf("Canonical(%q, %q) = %q, want %q", tt.seed, tt.href, got, tt.want)
		}
	}
}

func TestCanonicalKeepsMeaningfulParams(t *testing.T) {
	got := Canonical("https://example.com", "/jobs?page=2&utm_medium=email")
	if got != "https://example.com/jobs?page=2" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize("https://Example.com/jobs?utm_campaign=q3&dept=eng")
	if got != "https://example.com/jobs?dept=eng" {
		t.Fatalf("Normalize = %q", got)
	}
}

func TestDomainOf(t *testing.T) {
	if d := DomainOf("https://Jobs.Example.com/careers"); d != "jobs.example.com" {
		t.Fatalf("DomainOf = %q", d)
	}
}

func TestBaseNameForDeterministic(t *testing.T) {
	a := BaseNameFor("https://example.com/careers/engineering", "")
	b := BaseNameFor("https://example.com/careers/engineering", "")
	if a != b {
		t.Fatalf("base name must be deterministic: %q vs %q", a, b)
	}
	if want := "engineering__" + ShortHash("https://example.com/careers/engineering"); a != want {
		t.Fatalf("got %q, want %q", a, want)
	}
}

func TestBaseNameForStripsNumericIDs(t *testing.T) {
	got := BaseNameFor("https://example.com/jobs/123-software-456", "")
	if want := "software__" + ShortHash("https://example.com/jobs/123-software-456"); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBaseNameForUsesTitleForGenericSegments(t *testing.T) {
	got := BaseNameFor("https://example.com/index", "Acme Careers — Open Roles")
	if got[:len("acme-careers")] != "acme-careers" {
		t.Fatalf("expected title slug prefix, got %q", got)
	}
}
