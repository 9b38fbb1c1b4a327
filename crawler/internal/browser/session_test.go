package browser

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestStateFilePathIsPerDomain(t *testing.T) {
	a := stateFilePath("state", "example.com")
	b := stateFilePath("state", "other.com")
	if a == b {
		t.Fatalf("state files collide across domains: %q", a)
	}
	if !strings.Contains(a, string(filepath.Separator)+"example.com"+string(filepath.Separator)) {
		t.Fatalf("state file %q does not live under its domain dir", a)
	}
	if filepath.Base(a) != "_storage_state.json" {
		t.Fatalf("state file name = %q, want _storage_state.json", filepath.Base(a))
	}
}

func TestStateFilePathStableAcrossRuns(t *testing.T) {
	first := stateFilePath("db/state", "jobs.example.com")
	second := stateFilePath("db/state", "jobs.example.com")
	if first != second {
		t.Fatalf("state file not deterministic: %q vs %q", first, second)
	}
}
