package capture

import (
	"context"
	"errors"
	"time"

	"github.com/hazyhaar/jobscout/crawler/internal/analyze"
	"github.com/hazyhaar/jobscout/crawler/internal/reduce"
)

// Sentinel errors classifying seed-level failures. Expected outcomes
// (no load-more button, no next control) are booleans, never errors.
var (
	// ErrNavigation marks a navigation that failed after exhausting retries.
	ErrNavigation = errors.New("capture: navigation failed")
	// ErrInteraction marks an infrastructure failure during click/scroll
	// (browser crash, detached session). Never retried.
	ErrInteraction = errors.New("capture: interaction failed")
)

// Phase is the orchestrator's lifecycle state for one seed.
type Phase int

const (
	PhaseNavigating Phase = iota
	PhaseExpanding
	PhasePaginating
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseNavigating:
		return "navigating"
	case PhaseExpanding:
		return "expanding"
	case PhasePaginating:
		return "paginating"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// Stop reasons recorded in the manifest. Precedence within a phase follows
// the declaration order here; the first satisfied condition wins.
const (
	StopJobsCap    = "jobs_cap"
	StopTimeBudget = "time_budget"
	StopNoChange   = "no_change_cap"
	StopPagesCap   = "pages_cap"
	StopNoNext     = "no_next"
	StopStable     = "stable"
)

// Termination modes.
const (
	ModeScroll     = "scroll"
	ModePagination = "pagination"
	ModeMixed      = "mixed"
)

// Seed is one crawl starting point.
type Seed struct {
	URL    string `json:"url"`
	Domain string `json:"domain"`
}

// Snapshot is a point-in-time capture of a page. Immutable once built; a
// new interaction produces a new Snapshot.
type Snapshot struct {
	URL          string          `json:"url"`
	EffectiveURL string          `json:"effective_url"`
	Title        string          `json:"title"`
	FullHTML     string          `json:"-"`
	Focused      string          `json:"-"`
	Lite         string          `json:"-"`
	Signals      []reduce.Signal `json:"signals,omitempty"`
	ContentHash  string          `json:"content_hash"`
	CapturedAt   time.Time       `json:"captured_at"`

	// Fingerprint of the page state at capture time.
	Fingerprint *analyze.Fingerprint `json:"fingerprint,omitempty"`
}

// PageFiles maps artifact type (full, focus, lite, meta, signals) to the
// written file path.
type PageFiles map[string]string

// PageCounts are the per-page job counts recorded in the manifest.
type PageCounts struct {
	UniqueJobs int `json:"unique_jobs"`
	ListLen    int `json:"list_len"`
}

// PageEntry is one captured page in the manifest, in strict capture order.
type PageEntry struct {
	PageID     string     `json:"page_id"`
	Files      PageFiles  `json:"files"`
	Counts     PageCounts `json:"counts"`
	CapturedAt int64      `json:"ts"`
}

// Manifest is the durable record of one seed's completed crawl. Written
// once at the end; every seed yields one, success or failure.
type Manifest struct {
	RunID      string      `json:"run_id,omitempty"`
	Seed       string      `json:"seed"`
	Domain     string      `json:"domain"`
	SeedBase   string      `json:"seed_base"`
	Mode       string      `json:"mode"`
	StopReason string      `json:"stop_reason"`
	ExpandStop string      `json:"expansion_stop_reason,omitempty"`
	Pages      []PageEntry `json:"pages"`
	UniqueJobs int         `json:"unique_jobs"`
	Config     Limits      `json:"config"`
	ErrorKind  string      `json:"error_kind,omitempty"` // navigation | interaction
	Error      string      `json:"error,omitempty"`
	CreatedAt  int64       `json:"ts"`
}

// Failed reports whether the seed ended in the failed phase.
func (m *Manifest) Failed() bool { return m.ErrorKind != "" }

// Limits bound one seed's crawl. They are the only cancellation mechanism:
// no external signal interrupts a phase mid-flight.
type Limits struct {
	// JobsMax stops expansion once this many unique jobs were seen.
	JobsMax int `json:"jobs_max" yaml:"jobs_max"`
	// TimeBudget bounds the expansion phase.
	TimeBudget time.Duration `json:"time_budget" yaml:"time_budget"`
	// PagesMax bounds the number of captured pages (p001 included).
	PagesMax int `json:"pages_max" yaml:"pages_max"`
	// LoadMoreMax bounds load-more clicks during expansion.
	LoadMoreMax int `json:"loadmore_max" yaml:"loadmore_max"`
	// ScrollMax bounds scroll rounds during expansion.
	ScrollMax int `json:"scroll_max" yaml:"scroll_max"`
	// NoChangeCap stops a phase after this many consecutive rounds
	// without progress.
	NoChangeCap int `json:"no_change_cap" yaml:"no_change_cap"`
	// ContentWait bounds each wait-for-content window.
	ContentWait time.Duration `json:"content_wait" yaml:"content_wait"`
}

// Defaults fills zero fields with production defaults.
func (l *Limits) Defaults() {
	if l.JobsMax == 0 {
		l.JobsMax = 100
	}
	if l.TimeBudget <= 0 {
		l.TimeBudget = 75 * time.Second
	}
	if l.PagesMax == 0 {
		l.PagesMax = 3
	}
	if l.LoadMoreMax == 0 {
		l.LoadMoreMax = 5
	}
	if l.ScrollMax == 0 {
		l.ScrollMax = 20
	}
	if l.NoChangeCap == 0 {
		l.NoChangeCap = 2
	}
	if l.ContentWait <= 0 {
		l.ContentWait = 35 * time.Second
	}
}

// Driver abstracts the browser for the orchestrator. Expected failures
// (selector not found) return false; only infrastructure failures return
// errors. Every method is bounded by a timeout inside the implementation.
type Driver interface {
	// Navigate loads the seed and returns its snapshot, wrapping
	// ErrNavigation after retries are exhausted.
	Navigate(ctx context.Context, url string) (*Snapshot, error)

	// Snapshot captures the current page state without navigating.
	Snapshot(ctx context.Context) (*Snapshot, error)

	// Fingerprint derives the current progress fingerprint.
	Fingerprint(ctx context.Context) (*analyze.Fingerprint, error)

	// JobHrefs returns the distinct canonical job hrefs currently visible,
	// capped for cumulative counting.
	JobHrefs(ctx context.Context) ([]string, error)

	// ClickLoadMore walks the load-more cascade; false means no control
	// matched or the match was not clickable.
	ClickLoadMore(ctx context.Context) (bool, error)

	// ClickNextPage walks the pagination cascade.
	ClickNextPage(ctx context.Context) (bool, error)

	// ScrollToBottomUntilStable scrolls until the page height stabilizes
	// or maxRounds is reached; reports whether the height grew at all.
	ScrollToBottomUntilStable(ctx context.Context, maxRounds int) (bool, error)

	// WaitForContent blocks until job content is detected or maxWait
	// elapses; reports whether content was detected.
	WaitForContent(ctx context.Context, maxWait time.Duration) bool
}

// Writer persists snapshots and manifests. Implementations must be
// idempotent: names are content-derived, so re-writing unchanged content
// produces identical paths.
type Writer interface {
	WriteSnapshot(domain, seedURL, pageID string, snap *Snapshot) (PageFiles, error)
	WriteManifest(m *Manifest) error
}
