package capture

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hazyhaar/jobscout/crawler/internal/analyze"
)

// fakeDriver simulates a career page: a mutable set of visible job hrefs
// plus scripted load-more and next-page behavior.
type fakeDriver struct {
	url    string
	hrefs  []string
	text   string
	scroll int

	// loadMoreBatches[i] is appended on the i-th successful load-more
	// click; clicks beyond the script still "click" but add nothing.
	loadMoreBatches [][]string
	loadMoreClicks  int
	loadMoreAvail   bool

	// nextPages[i] is the href set shown after the i-th next click; when
	// exhausted, ClickNextPage returns false.
	nextPages  [][]string
	nextClicks int

	navErr error

	loadMoreCalls int
	nextCalls     int
	scrollCalls   int
}

func (d *fakeDriver) snapshot() *Snapshot {
	return &Snapshot{
		URL:          d.url,
		EffectiveURL: d.url,
		Title:        "Acme Careers",
		FullHTML:     "<html></html>",
		Focused:      "<main>jobs</main>",
		Lite:         "<html>lite</html>",
		ContentHash:  fmt.Sprintf("%d", len(d.hrefs)),
		CapturedAt:   time.Now(),
		Fingerprint:  d.fingerprint(),
	}
}

func (d *fakeDriver) fingerprint() *analyze.Fingerprint {
	hrefs := d.hrefs
	if len(hrefs) > analyze.HrefCap {
		hrefs = hrefs[:analyze.HrefCap]
	}
	return &analyze.Fingerprint{
		URL:      d.url,
		TextHash: analyze.TextHash(d.text + fmt.Sprint(len(d.hrefs))),
		JobHrefs: hrefs,
		ListLen:  len(d.hrefs),
		ScrollH:  d.scroll,
	}
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) (*Snapshot, error) {
	if d.navErr != nil {
		return nil, d.navErr
	}
	if d.url == "" {
		d.url = url
	}
	return d.snapshot(), nil
}

func (d *fakeDriver) Snapshot(ctx context.Context) (*Snapshot, error) { return d.snapshot(), nil }

func (d *fakeDriver) Fingerprint(ctx context.Context) (*analyze.Fingerprint, error) {
	return d.fingerprint(), nil
}

func (d *fakeDriver) JobHrefs(ctx context.Context) ([]string, error) {
	hrefs := d.hrefs
	if len(hrefs) > analyze.SessionHrefCap {
		hrefs = hrefs[:analyze.SessionHrefCap]
	}
	return hrefs, nil
}

func (d *fakeDriver) ClickLoadMore(ctx context.Context) (bool, error) {
	d.loadMoreCalls++
	if !d.loadMoreAvail {
		return false, nil
	}
	if d.loadMoreClicks < len(d.loadMoreBatches) {
		d.hrefs = append(d.hrefs, d.loadMoreBatches[d.loadMoreClicks]...)
	}
	d.loadMoreClicks++
	return true, nil
}

func (d *fakeDriver) ClickNextPage(ctx context.Context) (bool, error) {
	d.nextCalls++
	if d.nextClicks >= len(d.nextPages) {
		return false, nil
	}
	d.hrefs = d.nextPages[d.nextClicks]
	d.nextClicks++
	d.url = fmt.Sprintf("https://acme.example/careers?page=%d", d.nextClicks+1)
	return true, nil
}

func (d *fakeDriver) ScrollToBottomUntilStable(ctx context.Context, maxRounds int) (bool, error) {
	d.scrollCalls++
	return false, nil
}

func (d *fakeDriver) WaitForContent(ctx context.Context, maxWait time.Duration) bool {
	// Honor short waits so time-budget tests see real elapsed time.
	if maxWait <= 10*time.Millisecond {
		time.Sleep(maxWait)
	}
	return true
}

// memWriter collects written snapshots and manifests in memory.
type memWriter struct {
	snapshots []string // page-ids in write order
	manifests []*Manifest
}

func (w *memWriter) WriteSnapshot(domain, seedURL, pageID string, snap *Snapshot) (PageFiles, error) {
	w.snapshots = append(w.snapshots, pageID)
	return PageFiles{"full": "out/" + domain + "/full/x." + pageID + ".html"}, nil
}

func (w *memWriter) WriteManifest(m *Manifest) error {
	w.manifests = append(w.manifests, m)
	return nil
}

func batch(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("https://acme.example/job/%s-%d", prefix, i)
	}
	return out
}

func testLimits() Limits {
	return Limits{
		JobsMax:     100,
		TimeBudget:  30 * time.Second,
		PagesMax:    3,
		LoadMoreMax: 5,
		ScrollMax:   3,
		NoChangeCap: 2,
		ContentWait: time.Millisecond,
	}
}

func TestRunLoadMoreExpansion(t *testing.T) {
	// Three load-more rounds adding 10 jobs each, then a round adding
	// nothing. With no_change_cap=1 the stall ends expansion.
	d := &fakeDriver{
		url:           "https://acme.example/careers",
		loadMoreAvail: true,
		loadMoreBatches: [][]string{
			batch("a", 10), batch("b", 10), batch("c", 10),
		},
	}
	w := &memWriter{}
	limits := testLimits()
	limits.NoChangeCap = 1

	o := New(d, w, limits, nil)
	m, err := o.Run(context.Background(), Seed{URL: "https://acme.example/careers"})
	if err != nil {
		t.Fatal(err)
	}

	if m.UniqueJobs != 30 {
		t.Fatalf("unique jobs = %d, want 30", m.UniqueJobs)
	}
	if m.ExpandStop != StopNoChange {
		t.Fatalf("expansion stop = %q, want %q", m.ExpandStop, StopNoChange)
	}
	wantPages := []string{"p001", "expanded"}
	if len(w.snapshots) != len(wantPages) {
		t.Fatalf("snapshots = %v, want %v", w.snapshots, wantPages)
	}
	for i, id := range wantPages {
		if w.snapshots[i] != id {
			t.Fatalf("snapshots = %v, want %v", w.snapshots, wantPages)
		}
	}
	if m.Mode != ModeScroll {
		t.Fatalf("mode = %q, want %q", m.Mode, ModeScroll)
	}
}

func TestRunPaginationToNoNext(t *testing.T) {
	// Three pages of 20 jobs each; page 3 has no next control.
	d := &fakeDriver{
		url:   "https://acme.example/careers",
		hrefs: batch("p1", 20),
		nextPages: [][]string{
			batch("p2", 20),
			batch("p3", 20),
		},
	}
	w := &memWriter{}
	limits := testLimits()
	limits.PagesMax = 5

	o := New(d, w, limits, nil)
	m, err := o.Run(context.Background(), Seed{URL: "https://acme.example/careers"})
	if err != nil {
		t.Fatal(err)
	}

	if m.StopReason != StopNoNext {
		t.Fatalf("stop = %q, want %q", m.StopReason, StopNoNext)
	}
	want := []string{"p001", "p002", "p003"}
	if len(m.Pages) != 3 {
		t.Fatalf("pages = %d, want 3", len(m.Pages))
	}
	for i, id := range want {
		if m.Pages[i].PageID != id {
			t.Fatalf("page[%d] = %q, want %q", i, m.Pages[i].PageID, id)
		}
	}
	if m.Mode != ModePagination {
		t.Fatalf("mode = %q, want %q", m.Mode, ModePagination)
	}
	if m.UniqueJobs != 60 {
		t.Fatalf("unique jobs = %d, want 60", m.UniqueJobs)
	}
}

func TestRunJobsMaxZeroSkipsInteractions(t *testing.T) {
	d := &fakeDriver{url: "https://acme.example/careers", loadMoreAvail: true}
	w := &memWriter{}
	limits := testLimits()
	limits.JobsMax = 0

	o := New(d, w, limits, nil)
	m, err := o.Run(context.Background(), Seed{URL: "https://acme.example/careers"})
	if err != nil {
		t.Fatal(err)
	}
	if m.ExpandStop != StopJobsCap {
		t.Fatalf("expansion stop = %q, want %q", m.ExpandStop, StopJobsCap)
	}
	if d.loadMoreCalls != 0 || d.scrollCalls != 0 {
		t.Fatalf("jobs_max=0 must not click (%d) or scroll (%d)",
			d.loadMoreCalls, d.scrollCalls)
	}
}

func TestRunPagesMaxOneNeverClicksNext(t *testing.T) {
	d := &fakeDriver{
		url:       "https://acme.example/careers",
		hrefs:     batch("p1", 5),
		nextPages: [][]string{batch("p2", 5)},
	}
	w := &memWriter{}
	limits := testLimits()
	limits.PagesMax = 1

	o := New(d, w, limits, nil)
	m, err := o.Run(context.Background(), Seed{URL: "https://acme.example/careers"})
	if err != nil {
		t.Fatal(err)
	}
	if d.nextCalls != 0 {
		t.Fatalf("pages_max=1 must never call ClickNextPage, called %d times", d.nextCalls)
	}
	if m.StopReason != StopPagesCap {
		t.Fatalf("stop = %q, want %q", m.StopReason, StopPagesCap)
	}
}

func TestRunStaticPageIsStable(t *testing.T) {
	// A static page: no load-more, no growth, no next. Running the
	// orchestrator yields only p001 and a no_next stop.
	d := &fakeDriver{url: "https://acme.example/careers", hrefs: batch("s", 8)}
	w := &memWriter{}

	o := New(d, w, testLimits(), nil)
	m, err := o.Run(context.Background(), Seed{URL: "https://acme.example/careers"})
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Pages) != 1 || m.Pages[0].PageID != "p001" {
		t.Fatalf("pages = %+v, want just p001", m.Pages)
	}
	if m.ExpandStop != StopNoChange {
		t.Fatalf("expansion stop = %q, want %q", m.ExpandStop, StopNoChange)
	}
	if m.StopReason != StopNoNext {
		t.Fatalf("stop = %q, want %q", m.StopReason, StopNoNext)
	}
}

func TestRunNavigationFailureYieldsManifest(t *testing.T) {
	navErr := fmt.Errorf("%w: timeout after retries", ErrNavigation)
	d := &fakeDriver{navErr: navErr}
	w := &memWriter{}

	o := New(d, w, testLimits(), nil)
	m, err := o.Run(context.Background(), Seed{URL: "https://down.example/careers"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrNavigation) {
		t.Fatalf("error = %v, want ErrNavigation", err)
	}
	if m == nil || !m.Failed() {
		t.Fatal("a failed seed must still yield a failure manifest")
	}
	if m.ErrorKind != "navigation" {
		t.Fatalf("error kind = %q", m.ErrorKind)
	}
	if len(w.manifests) != 1 {
		t.Fatalf("manifest writes = %d, want 1", len(w.manifests))
	}
}

func TestRunTimeBudget(t *testing.T) {
	// A page that keeps growing forever; only the time budget stops it.
	d := &fakeDriver{
		url:           "https://acme.example/careers",
		loadMoreAvail: true,
	}
	// Endless distinct batches.
	for i := 0; i < 1000; i++ {
		d.loadMoreBatches = append(d.loadMoreBatches, batch(fmt.Sprintf("g%d", i), 1))
	}
	w := &memWriter{}
	limits := testLimits()
	limits.JobsMax = 1 << 30
	limits.LoadMoreMax = 1 << 30
	limits.TimeBudget = 50 * time.Millisecond
	limits.ContentWait = 5 * time.Millisecond

	o := New(d, w, limits, nil)
	m, err := o.Run(context.Background(), Seed{URL: "https://acme.example/careers"})
	if err != nil {
		t.Fatal(err)
	}
	if m.ExpandStop != StopTimeBudget {
		t.Fatalf("expansion stop = %q, want %q", m.ExpandStop, StopTimeBudget)
	}
}

func TestRunJobsCapStops(t *testing.T) {
	d := &fakeDriver{
		url:             "https://acme.example/careers",
		hrefs:           batch("init", 10),
		loadMoreAvail:   true,
		loadMoreBatches: [][]string{batch("x", 10), batch("y", 10), batch("z", 10)},
	}
	w := &memWriter{}
	limits := testLimits()
	limits.JobsMax = 25

	o := New(d, w, limits, nil)
	m, err := o.Run(context.Background(), Seed{URL: "https://acme.example/careers"})
	if err != nil {
		t.Fatal(err)
	}
	if m.ExpandStop != StopJobsCap {
		t.Fatalf("expansion stop = %q, want %q", m.ExpandStop, StopJobsCap)
	}
	if m.UniqueJobs < 25 {
		t.Fatalf("unique jobs = %d, want >= 25", m.UniqueJobs)
	}
}

func TestRunMixedMode(t *testing.T) {
	d := &fakeDriver{
		url:             "https://acme.example/careers",
		hrefs:           batch("p1", 5),
		loadMoreAvail:   true,
		loadMoreBatches: [][]string{batch("more", 5)},
		nextPages:       [][]string{batch("p2", 5)},
	}
	w := &memWriter{}
	limits := testLimits()
	limits.NoChangeCap = 1

	o := New(d, w, limits, nil)
	m, err := o.Run(context.Background(), Seed{URL: "https://acme.example/careers"})
	if err != nil {
		t.Fatal(err)
	}
	if m.Mode != ModeMixed {
		t.Fatalf("mode = %q, want %q", m.Mode, ModeMixed)
	}
	// expanded keeps its own id, numbered pages continue from p001.
	ids := make([]string, len(m.Pages))
	for i, p := range m.Pages {
		ids[i] = p.PageID
	}
	want := []string{"p001", "expanded", "p002"}
	if len(ids) != len(want) {
		t.Fatalf("pages = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("pages = %v, want %v", ids, want)
		}
	}
}
