// Package interact drives a rendered page through expansion and pagination.
// It implements the capture driver contract on top of a rod page: navigation
// with retries, snapshotting through the reducer, and control discovery via
// ordered selector cascades.
package interact

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/jobscout/crawler/internal/analyze"
	"github.com/hazyhaar/jobscout/crawler/internal/capture"
	"github.com/hazyhaar/jobscout/crawler/internal/reduce"
	"github.com/hazyhaar/jobscout/crawler/internal/urlx"
)

const (
	defaultNavTimeout = 45 * time.Second
	defaultNavRetries = 3

	// scrollStableDelta is the minimum page-height growth per scroll round
	// that still counts as movement.
	scrollStableDelta = 200
	// scrollStableRounds is how many quiet rounds end a scroll sequence.
	scrollStableRounds = 2
)

// Options configures a Driver. Zero values fall back to production defaults.
type Options struct {
	NavTimeout time.Duration
	NavRetries int
	Reduce     reduce.Options
	Logger     *slog.Logger
}

func (o *Options) defaults() {
	if o.NavTimeout <= 0 {
		o.NavTimeout = defaultNavTimeout
	}
	if o.NavRetries <= 0 {
		o.NavRetries = defaultNavRetries
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Driver operates a single rod page for one seed at a time.
type Driver struct {
	page    *rod.Page
	opts    Options
	seedURL string
	logger  *slog.Logger
}

var _ capture.Driver = (*Driver)(nil)

// New wraps an already-open rod page.
func New(page *rod.Page, opts Options) *Driver {
	opts.defaults()
	return &Driver{page: page, opts: opts, logger: opts.Logger}
}

// Navigate loads the seed URL with retries and returns the landing snapshot.
// Failures after all attempts wrap ErrNavigation so the orchestrator can
// classify the run.
func (d *Driver) Navigate(ctx context.Context, url string) (*capture.Snapshot, error) {
	var lastErr error
	for attempt := 1; attempt <= d.opts.NavRetries; attempt++ {
		pg := d.page.Context(ctx).Timeout(d.opts.NavTimeout)
		err := pg.Navigate(url)
		if err == nil {
			// Load event is best effort: heavy pages keep spinners alive
			// long past usable DOM.
			_ = pg.WaitLoad()
			d.settle(ctx, 1200, 2000)
			d.seedURL = url
			return d.Snapshot(ctx)
		}
		lastErr = err
		d.logger.Warn("navigation attempt failed",
			"url", url, "attempt", attempt, "error", err)
		if attempt < d.opts.NavRetries {
			d.settle(ctx, 2000, 4000)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%w: %s after %d attempts: %v",
		capture.ErrNavigation, url, d.opts.NavRetries, lastErr)
}

// Snapshot captures the current DOM, runs the reducer over it, and returns
// the full snapshot with fingerprint attached.
func (d *Driver) Snapshot(ctx context.Context) (*capture.Snapshot, error) {
	d.waitQuiet(ctx)
	src, err := d.page.Context(ctx).HTML()
	if err != nil {
		return nil, fmt.Errorf("%w: read dom: %v", capture.ErrInteraction, err)
	}
	info, err := d.page.Context(ctx).Info()
	if err != nil {
		return nil, fmt.Errorf("%w: page info: %v", capture.ErrInteraction, err)
	}
	red, err := reduce.Reduce(src, d.opts.Reduce)
	if err != nil {
		return nil, fmt.Errorf("interact: reduce snapshot: %w", err)
	}
	fp, err := analyze.FromHTML(src, d.seedURL, info.URL, d.scrollHeight(ctx))
	if err != nil {
		return nil, fmt.Errorf("interact: fingerprint snapshot: %w", err)
	}
	return &capture.Snapshot{
		URL:          d.seedURL,
		EffectiveURL: info.URL,
		Title:        red.Title,
		FullHTML:     src,
		Focused:      red.Focused,
		Lite:         red.Lite,
		Signals:      red.Signals,
		ContentHash:  urlx.SHA1Hex(src),
		CapturedAt:   time.Now().UTC(),
		Fingerprint:  fp,
	}, nil
}

// Fingerprint reads the current DOM state without reducing it. Cheaper than
// Snapshot, used between interaction rounds.
func (d *Driver) Fingerprint(ctx context.Context) (*analyze.Fingerprint, error) {
	src, err := d.page.Context(ctx).HTML()
	if err != nil {
		return nil, fmt.Errorf("%w: read dom: %v", capture.ErrInteraction, err)
	}
	info, err := d.page.Context(ctx).Info()
	if err != nil {
		return nil, fmt.Errorf("%w: page info: %v", capture.ErrInteraction, err)
	}
	return analyze.FromHTML(src, d.seedURL, info.URL, d.scrollHeight(ctx))
}

// JobHrefs lists canonical job-posting links currently in the DOM.
func (d *Driver) JobHrefs(ctx context.Context) ([]string, error) {
	src, err := d.page.Context(ctx).HTML()
	if err != nil {
		return nil, fmt.Errorf("%w: read dom: %v", capture.ErrInteraction, err)
	}
	return analyze.JobHrefs(src, d.seedURL, analyze.SessionHrefCap)
}

// ClickLoadMore walks the load-more cascade and clicks the first visible,
// interactable match. A miss across the whole cascade returns false with no
// error; click failures on a found element also report false because the
// element may have detached between discovery and click.
func (d *Driver) ClickLoadMore(ctx context.Context) (bool, error) {
	return d.clickCascade(ctx, loadMoreCascade, "load_more", 1500, 2500)
}

// ClickNextPage walks the pagination cascade.
func (d *Driver) ClickNextPage(ctx context.Context) (bool, error) {
	return d.clickCascade(ctx, nextCascade, "next_page", 900, 1600)
}

func (d *Driver) clickCascade(ctx context.Context, cascade []strategy, kind string, minSettle, maxSettle int) (bool, error) {
	el, strat := d.findFirst(ctx, cascade)
	if el == nil {
		return false, nil
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		d.logger.Debug("click failed after match",
			"kind", kind, "strategy", strat.label, "error", err)
		return false, nil
	}
	d.logger.Debug("clicked control", "kind", kind, "strategy", strat.label)
	d.settle(ctx, minSettle, maxSettle)
	return true, ctx.Err()
}

// findFirst returns the first cascade match that is visible and interactable.
// Every lookup is try-once via NotFoundSleeper so a miss costs nothing.
func (d *Driver) findFirst(ctx context.Context, cascade []strategy) (*rod.Element, *strategy) {
	pg := d.page.Context(ctx).Sleeper(rod.NotFoundSleeper)
	for i := range cascade {
		s := &cascade[i]
		var el *rod.Element
		var err error
		if s.pattern != "" {
			el, err = pg.ElementR(s.selector, s.pattern)
		} else {
			el, err = pg.Element(s.selector)
		}
		if err != nil || el == nil {
			continue
		}
		if !d.usable(el) {
			continue
		}
		return el, s
	}
	return nil, nil
}

// usable filters out hidden, disabled, or occluded controls.
func (d *Driver) usable(el *rod.Element) bool {
	if attr, _ := el.Attribute("disabled"); attr != nil {
		return false
	}
	if attr, _ := el.Attribute("aria-disabled"); attr != nil && *attr == "true" {
		return false
	}
	visible, err := el.Visible()
	if err != nil || !visible {
		return false
	}
	if _, err := el.Interactable(); err != nil {
		return false
	}
	return true
}

// ScrollToBottomUntilStable scrolls in rounds until height stops growing for
// two consecutive rounds or maxRounds is hit. Reports whether any round grew
// the page by more than the stability delta.
func (d *Driver) ScrollToBottomUntilStable(ctx context.Context, maxRounds int) (bool, error) {
	lastH := d.scrollHeight(ctx)
	grew := false
	stable := 0
	for round := 0; round < maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return grew, err
		}
		_, err := d.page.Context(ctx).Eval(
			`() => window.scrollTo(0, (document.scrollingElement || document.documentElement).scrollHeight)`)
		if err != nil {
			return grew, fmt.Errorf("%w: scroll: %v", capture.ErrInteraction, err)
		}
		d.settle(ctx, 800, 1400)
		h := d.scrollHeight(ctx)
		if h-lastH < scrollStableDelta {
			stable++
			if stable >= scrollStableRounds {
				break
			}
		} else {
			stable = 0
			grew = true
		}
		lastH = h
	}
	return grew, nil
}

// WaitForContent blocks until job listings appear, up to maxWait. It tries
// three probes in order: known listing selectors, job-href extraction from
// the live DOM, and presence of a pagination control. Timing out is not an
// error; the caller decides what a contentless page means.
func (d *Driver) WaitForContent(ctx context.Context, maxWait time.Duration) bool {
	deadline := time.Now().Add(maxWait)
	perProbe := maxWait / time.Duration(len(contentProbeSelectors))
	if perProbe < time.Second {
		perProbe = time.Second
	}
	for _, sel := range contentProbeSelectors {
		if time.Now().After(deadline) || ctx.Err() != nil {
			break
		}
		budget := time.Until(deadline)
		if budget > perProbe {
			budget = perProbe
		}
		el, err := d.page.Context(ctx).Timeout(budget).Element(sel)
		if err == nil && el != nil {
			return true
		}
	}
	if ctx.Err() != nil {
		return false
	}
	if hrefs, err := d.JobHrefs(ctx); err == nil && len(hrefs) > 0 {
		return true
	}
	if el, _ := d.findFirst(ctx, nextCascade); el != nil {
		return true
	}
	d.logger.Warn("no job content detected within budget",
		"url", d.seedURL, "budget", maxWait)
	return false
}

// waitQuiet gives the page a chance to go idle before a capture, trying a
// generous window first and a short one as a second chance. Best effort:
// pages with long-polling never go idle and capture proceeds anyway.
func (d *Driver) waitQuiet(ctx context.Context) {
	for _, window := range []time.Duration{20 * time.Second, 8 * time.Second} {
		if ctx.Err() != nil {
			return
		}
		if err := d.page.Context(ctx).Timeout(window).WaitIdle(window); err == nil {
			return
		}
	}
}

// scrollHeight reads the document scroll height, zero on failure.
func (d *Driver) scrollHeight(ctx context.Context) int {
	res, err := d.page.Context(ctx).Eval(
		`() => (document.scrollingElement || document.documentElement).scrollHeight | 0`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

// settle sleeps a jittered interval, returning early on context cancel.
// Jitter keeps interaction pacing from looking machine-regular.
func (d *Driver) settle(ctx context.Context, minMS, maxMS int) {
	dur := time.Duration(minMS+rand.Intn(maxMS-minMS+1)) * time.Millisecond
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
