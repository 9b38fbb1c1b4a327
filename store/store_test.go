package store

import (
	"context"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/jobscout/crawler"
	"github.com/hazyhaar/jobscout/dbopen"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(dbopen.OpenMemory(t))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func snapWithLinks(hrefs ...string) *crawler.Snapshot {
	return &crawler.Snapshot{
		URL:          "https://acme.example/careers",
		EffectiveURL: "https://acme.example/careers",
		Title:        "Careers",
		ContentHash:  "abc",
		CapturedAt:   time.Now(),
		Fingerprint: &crawler.Fingerprint{
			URL:      "https://acme.example/careers",
			JobHrefs: hrefs,
		},
	}
}

func TestSchemaCreatesTables(t *testing.T) {
	s := openTestStore(t)
	for _, table := range []string{"runs", "manifests", "pages", "job_links"} {
		var name string
		err := s.DB.QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.StartRun(ctx, "run1", []string{"https://a.example", "https://b.example"}); err != nil {
		t.Fatalf("start run: %v", err)
	}
	if err := s.FinishRun(ctx, "run1", 1, 1); err != nil {
		t.Fatalf("finish run: %v", err)
	}

	r, err := s.GetRun(ctx, "run1")
	if err != nil {
		t.Fatal(err)
	}
	if r == nil {
		t.Fatal("run not found")
	}
	if r.Seeds != 2 || r.Completed != 1 || r.Failed != 1 {
		t.Errorf("run counts: %+v", r)
	}
	if r.FinishedAt == 0 {
		t.Error("finished_at not set")
	}

	if r, _ := s.GetRun(ctx, "missing"); r != nil {
		t.Error("unknown run should return nil")
	}
}

func TestRecordSnapshotDedupesJobLinks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.StartRun(ctx, "run1", []string{"https://acme.example/careers"}); err != nil {
		t.Fatal(err)
	}

	// p001 and the expanded page overlap on one link.
	if err := s.RecordSnapshot(ctx, "run1", "acme.example", "p001",
		snapWithLinks("https://acme.example/jobs/1", "https://acme.example/jobs/2")); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordSnapshot(ctx, "run1", "acme.example", "expanded",
		snapWithLinks("https://acme.example/jobs/2", "https://acme.example/jobs/3")); err != nil {
		t.Fatal(err)
	}

	links, err := s.JobLinks(ctx, "run1", "acme.example", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 3 {
		t.Fatalf("job links = %d, want 3", len(links))
	}
	for _, l := range links {
		if l.URL == "https://acme.example/jobs/2" && l.FirstPageID != "p001" {
			t.Errorf("first_page_id for overlapping link = %q, want p001", l.FirstPageID)
		}
	}
}

func TestNewJobLinksAcrossRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.StartRun(ctx, "run1", []string{"https://acme.example/careers"}); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordSnapshot(ctx, "run1", "acme.example", "p001",
		snapWithLinks("https://acme.example/jobs/1")); err != nil {
		t.Fatal(err)
	}
	// Later run sees the old link plus a new one. Backdate run1 so the
	// second-resolution started_at ordering is unambiguous.
	if _, err := s.DB.Exec(`UPDATE runs SET started_at = started_at - 60 WHERE run_id = 'run1'`); err != nil {
		t.Fatal(err)
	}
	if err := s.StartRun(ctx, "run2", []string{"https://acme.example/careers"}); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordSnapshot(ctx, "run2", "acme.example", "p001",
		snapWithLinks("https://acme.example/jobs/1", "https://acme.example/jobs/9")); err != nil {
		t.Fatal(err)
	}

	fresh, err := s.NewJobLinks(ctx, "run2", "acme.example")
	if err != nil {
		t.Fatal(err)
	}
	if len(fresh) != 1 || fresh[0].URL != "https://acme.example/jobs/9" {
		t.Fatalf("new links = %+v, want only jobs/9", fresh)
	}
}

func TestManifestsAndStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.StartRun(ctx, "run1", []string{"https://acme.example/careers"}); err != nil {
		t.Fatal(err)
	}

	m := &crawler.Manifest{
		Seed: "https://acme.example/careers", Domain: "acme.example",
		SeedBase: "careers__deadbeef", Mode: "scroll", StopReason: "stable",
		UniqueJobs: 12, CreatedAt: time.Now().Unix(),
	}
	if err := s.RecordManifest(ctx, "run1", m); err != nil {
		t.Fatal(err)
	}
	// Re-recording the same seed replaces, not duplicates.
	m.UniqueJobs = 15
	if err := s.RecordManifest(ctx, "run1", m); err != nil {
		t.Fatal(err)
	}

	rows, err := s.ListManifests(ctx, "acme.example", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("manifests = %d, want 1", len(rows))
	}
	if rows[0].UniqueJobs != 15 {
		t.Errorf("unique_jobs = %d, want 15 after replace", rows[0].UniqueJobs)
	}

	st, err := s.GetStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Runs != 1 || st.Manifests != 1 || st.Domains != 1 {
		t.Errorf("stats: %+v", st)
	}
}
