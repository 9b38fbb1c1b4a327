package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hazyhaar/jobscout/crawler/internal/capture"
)

func testSnapshot() *capture.Snapshot {
	return &capture.Snapshot{
		URL:          "https://acme.example/careers",
		EffectiveURL: "https://acme.example/careers",
		Title:        "Acme Careers",
		FullHTML:     "<html><body>full</body></html>",
		Focused:      "<main>focused</main>",
		Lite:         "<html>lite</html>",
		ContentHash:  "abc123",
		CapturedAt:   time.Unix(1700000000, 0),
	}
}

func TestWriteSnapshotLayout(t *testing.T) {
	dir := t.TempDir()
	st := NewStore(dir, nil)

	files, err := st.WriteSnapshot("acme.example", "https://acme.example/careers", "p001", testSnapshot())
	if err != nil {
		t.Fatal(err)
	}

	for _, typ := range []string{"full", "focus", "lite", "meta"} {
		path, ok := files[typ]
		if !ok {
			t.Fatalf("missing %s path", typ)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("%s not written: %v", typ, err)
		}
	}
	// No signals in the snapshot, so no signals file.
	if _, ok := files["signals"]; ok {
		t.Fatal("signals file must be omitted when snapshot has none")
	}

	var meta struct {
		PageID string `json:"page_id"`
		Hash   string `json:"sha1"`
	}
	data, err := os.ReadFile(files["meta"])
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		t.Fatal(err)
	}
	if meta.PageID != "p001" || meta.Hash != "abc123" {
		t.Fatalf("meta = %+v", meta)
	}
}

func TestWriteSnapshotIdempotentNames(t *testing.T) {
	dir := t.TempDir()
	st := NewStore(dir, nil)

	a, err := st.WriteSnapshot("acme.example", "https://acme.example/careers", "p001", testSnapshot())
	if err != nil {
		t.Fatal(err)
	}
	b, err := st.WriteSnapshot("acme.example", "https://acme.example/careers", "p001", testSnapshot())
	if err != nil {
		t.Fatal(err)
	}
	if a["full"] != b["full"] {
		t.Fatalf("re-run produced a different name: %q vs %q", a["full"], b["full"])
	}
}

func TestWriteManifest(t *testing.T) {
	dir := t.TempDir()
	st := NewStore(dir, nil)

	m := &capture.Manifest{
		Seed:       "https://acme.example/careers",
		Domain:     "acme.example",
		SeedBase:   "careers__12345678",
		Mode:       capture.ModePagination,
		StopReason: capture.StopNoNext,
	}
	if err := st.WriteManifest(m); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "acme.example", "careers__12345678.manifest.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got capture.Manifest
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.StopReason != capture.StopNoNext || got.Mode != capture.ModePagination {
		t.Fatalf("manifest roundtrip = %+v", got)
	}
}
