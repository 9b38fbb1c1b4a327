package crawler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hazyhaar/jobscout/crawler/internal/analyze"
	"github.com/hazyhaar/jobscout/crawler/internal/capture"
)

// staticDriver serves a page that never changes: no load-more control, no
// next control, no scroll growth. Every seed ends p001-only.
type staticDriver struct {
	url string
}

func (d *staticDriver) snap() *capture.Snapshot {
	return &capture.Snapshot{
		URL:          d.url,
		EffectiveURL: d.url,
		Title:        "Careers",
		FullHTML:     "<html><body>jobs</body></html>",
		ContentHash:  "h",
		CapturedAt:   time.Now(),
		Fingerprint: &analyze.Fingerprint{
			URL:      d.url,
			TextHash: "t",
			JobHrefs: []string{d.url + "/jobs/1", d.url + "/jobs/2"},
			ListLen:  2,
		},
	}
}

func (d *staticDriver) Navigate(_ context.Context, url string) (*capture.Snapshot, error) {
	d.url = url
	return d.snap(), nil
}
func (d *staticDriver) Snapshot(context.Context) (*capture.Snapshot, error) {
	return d.snap(), nil
}
func (d *staticDriver) Fingerprint(context.Context) (*analyze.Fingerprint, error) {
	return d.snap().Fingerprint, nil
}
func (d *staticDriver) JobHrefs(context.Context) ([]string, error) {
	return d.snap().Fingerprint.JobHrefs, nil
}
func (d *staticDriver) ClickLoadMore(context.Context) (bool, error)  { return false, nil }
func (d *staticDriver) ClickNextPage(context.Context) (bool, error) { return false, nil }
func (d *staticDriver) ScrollToBottomUntilStable(context.Context, int) (bool, error) {
	return false, nil
}
func (d *staticDriver) WaitForContent(context.Context, time.Duration) bool { return true }

func testService(t *testing.T, factory DriverFactory) *Service {
	t.Helper()
	cfg := &Config{
		OutDir:   t.TempDir(),
		DelayMin: time.Millisecond,
		DelayMax: 2 * time.Millisecond,
	}
	svc, err := New(cfg, nil, WithDriverFactory(factory))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func staticFactory(context.Context, string) (capture.Driver, func(), error) {
	return &staticDriver{}, func() {}, nil
}

func TestCrawlWritesManifests(t *testing.T) {
	svc := testService(t, staticFactory)

	seeds := []string{
		"https://acme.example/careers",
		"https://acme.example/jobs/engineering",
		"https://globex.example/careers",
	}
	report, err := svc.Crawl(context.Background(), seeds)
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if report.Completed != 3 || report.Failed != 0 {
		t.Fatalf("report: completed=%d failed=%d", report.Completed, report.Failed)
	}
	if report.RunID == "" {
		t.Error("run id missing")
	}

	list, err := svc.ListManifests(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("manifests on disk = %d, want 3", len(list))
	}
	for _, m := range list {
		if m.StopReason == "" {
			t.Errorf("manifest %s/%s has no stop reason", m.Domain, m.SeedBase)
		}
		if m.UniqueJobs != 2 {
			t.Errorf("unique jobs = %d, want 2", m.UniqueJobs)
		}
	}

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Manifests != 3 || stats.ByDomain["acme.example"] != 2 {
		t.Errorf("stats: %+v", stats)
	}
}

func TestCrawlNoSeeds(t *testing.T) {
	svc := testService(t, staticFactory)
	if _, err := svc.Crawl(context.Background(), nil); !errors.Is(err, ErrNoSeeds) {
		t.Fatalf("err = %v, want ErrNoSeeds", err)
	}
}

func TestCrawlSessionFailureFailsWholeDomain(t *testing.T) {
	broken := func(context.Context, string) (capture.Driver, func(), error) {
		return nil, nil, errors.New("chrome is gone")
	}
	svc := testService(t, broken)

	report, err := svc.Crawl(context.Background(),
		[]string{"https://acme.example/careers", "https://acme.example/jobs"})
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if report.Failed != 2 || report.Completed != 0 {
		t.Fatalf("report: %+v", report)
	}
	for _, m := range report.Manifests {
		if m.ErrorKind != "navigation" {
			t.Errorf("error kind = %q, want navigation", m.ErrorKind)
		}
	}
	// Failure manifests still land on disk.
	list, err := svc.ListManifests(context.Background(), "acme.example")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("manifests on disk = %d, want 2", len(list))
	}
}

func TestGroupByDomainPreservesOrder(t *testing.T) {
	groups, err := groupByDomain([]string{
		"https://b.example/careers",
		"https://a.example/careers",
		"https://b.example/jobs",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	if groups[0].domain != "b.example" || groups[1].domain != "a.example" {
		t.Errorf("domain order: %s, %s", groups[0].domain, groups[1].domain)
	}
	if len(groups[0].seeds) != 2 {
		t.Errorf("b.example seeds = %d, want 2", len(groups[0].seeds))
	}
	if groups[0].seeds[0].URL != "https://b.example/careers" {
		t.Errorf("seed order within domain: %s", groups[0].seeds[0].URL)
	}
}

func TestGroupByDomainRejectsBadSeed(t *testing.T) {
	if _, err := groupByDomain([]string{"not a url at all\x7f"}); !errors.Is(err, ErrInvalidSeed) {
		t.Fatalf("err = %v, want ErrInvalidSeed", err)
	}
}

func TestReadSeedsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeds.txt")
	content := `# career pages
https://acme.example/careers

https://globex.example/jobs?utm_source=newsletter
https://acme.example/careers
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	seeds, err := ReadSeedsFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(seeds) != 2 {
		t.Fatalf("seeds = %v, want 2 entries", seeds)
	}
	if seeds[0] != "https://acme.example/careers" {
		t.Errorf("seeds[0] = %q", seeds[0])
	}
	// Tracking params are stripped during normalization.
	if seeds[1] != "https://globex.example/jobs" {
		t.Errorf("seeds[1] = %q", seeds[1])
	}
}

func TestReadSeedsFileRejectsNonHTTP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeds.txt")
	if err := os.WriteFile(path, []byte("ftp://acme.example/careers\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadSeedsFile(path); !errors.Is(err, ErrInvalidSeed) {
		t.Fatalf("err = %v, want ErrInvalidSeed", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := defaultConfig()
	if cfg.Limits.JobsMax != 100 || cfg.Limits.PagesMax != 3 {
		t.Errorf("limits: %+v", cfg.Limits)
	}
	if cfg.OutDir != "out" {
		t.Errorf("out dir: %q", cfg.OutDir)
	}
	if cfg.DelayMin != 8*time.Second || cfg.DelayMax != 15*time.Second {
		t.Errorf("delays: %v..%v", cfg.DelayMin, cfg.DelayMax)
	}
}
