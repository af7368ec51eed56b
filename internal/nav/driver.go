// Package nav drives a single-page app through a sequence of profile
// tiles: click a tile, wait for the profile view, optionally open the
// photo preview, extract fields, then advance via an in-page "next"
// control or a history-back navigation.
//
// Processing is strictly sequential because every tile mutates the shared
// URL/DOM state, and every wait is a bounded poll (Await), never a fixed
// sleep alone. Per-tile failures yield a degraded record and the loop
// continues; only the caller decides whether zero usable results is an
// error.
package nav

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/tilewalk/internal/tiles"
	"github.com/hazyhaar/tilewalk/record"
)

// Config assembles the driver's collaborators and tuning. Page, Collect
// and Extract are required.
type Config struct {
	Page    Page
	Token   *Token
	Logger  *slog.Logger
	Collect func(doc *html.Node, base *url.URL) tiles.Result
	Extract func(doc *html.Node, pageURL string) record.ProfileRecord

	// Snapshot, when set, receives the raw DOM snapshot each extraction
	// ran against (sequence number, page URL, HTML).
	Snapshot func(seq int, pageURL, rawHTML string)

	// Bounded-wait policy.
	Timeout      time.Duration // profile/list wait bound
	PollInterval time.Duration

	// Settle padding. The per-variant defaults differ in the wild without
	// clear justification, so all of these are tunable configuration.
	Delay          time.Duration // inter-item delay
	PreviewDelay   time.Duration // after opening the photo preview
	NoPreviewDelay time.Duration // when no preview trigger exists
	SettleDelay    time.Duration // before reading the DOM
	GraceDelay     time.Duration // after a profile-view wait timeout

	// MaxProfiles bounds the run; 0 means no bound beyond the tile cap.
	MaxProfiles int

	// View evidence selectors.
	ProfilePath     string   // URL fragment marking a profile view
	ProfileMarkers  []string // DOM evidence of a profile view
	PreviewTriggers []string // photo preview/lightbox openers
	NextControls    []string // in-page "next profile" controls
	NextEvidence    []string // DOM evidence the next profile rendered
	ListMarkers     []string // DOM evidence of the listing view
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.Delay <= 0 {
		c.Delay = 3 * time.Second
	}
	if c.PreviewDelay <= 0 {
		c.PreviewDelay = 2500 * time.Millisecond
	}
	if c.NoPreviewDelay <= 0 {
		c.NoPreviewDelay = 600 * time.Millisecond
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 800 * time.Millisecond
	}
	if c.GraceDelay <= 0 {
		c.GraceDelay = time.Second
	}
	if c.ProfilePath == "" {
		c.ProfilePath = "/profile/"
	}
	if len(c.ProfileMarkers) == 0 {
		c.ProfileMarkers = []string{"h1", `[data-testid="profile"]`}
	}
	if len(c.PreviewTriggers) == 0 {
		c.PreviewTriggers = []string{"a.js-slideshow-link", "a.image--cover", ".image--cover", "a.js-link-preview"}
	}
	if len(c.NextControls) == 0 {
		c.NextControls = []string{".js-link--next", "a.js-link--next", ".preview__link--next"}
	}
	if len(c.NextEvidence) == 0 {
		c.NextEvidence = []string{".js-image--next", ".preview__image"}
	}
	if len(c.ListMarkers) == 0 {
		c.ListMarkers = []string{"#profiles", `[data-testid="search-results"]`}
	}
}

// Driver walks the tile sequence on one live page.
type Driver struct {
	cfg Config
}

// New creates a Driver. Page, Collect and Extract must be set.
func New(cfg Config) (*Driver, error) {
	if cfg.Page == nil {
		return nil, fmt.Errorf("nav: config needs a Page")
	}
	if cfg.Collect == nil || cfg.Extract == nil {
		return nil, fmt.Errorf("nav: config needs Collect and Extract")
	}
	cfg.defaults()
	return &Driver{cfg: cfg}, nil
}

// Run processes tiles until the list is exhausted, the configured cap is
// reached, or cancellation is observed. It returns the records collected
// so far in processing order; the error is non-nil only when the initial
// page snapshot cannot be read at all.
func (d *Driver) Run(ctx context.Context) ([]record.ProfileRecord, error) {
	res, err := d.collectNow(ctx)
	if err != nil {
		return nil, fmt.Errorf("nav: initial tile collection: %w", err)
	}
	stubs, clickSel := res.Stubs, res.ClickSelector
	d.cfg.Logger.Info("nav: starting run", "tiles", len(stubs))

	var out []record.ProfileRecord
	for i := 0; i < len(stubs); i++ {
		if d.cfg.Token.Cancelled() {
			d.cfg.Logger.Info("nav: cancellation observed", "processed", len(out))
			break
		}
		if d.cfg.MaxProfiles > 0 && len(out) >= d.cfg.MaxProfiles {
			break
		}

		prevURL := d.cfg.Page.URL()

		// Clicking.
		if err := d.cfg.Page.ClickNth(ctx, clickSel, i); err != nil {
			// May legitimately fail when the "next" control already
			// advanced the view; extraction reads whatever is showing.
			d.cfg.Logger.Debug("nav: tile click failed", "index", i, "error", err)
		}

		// WaitingForProfileView. Timeout is a soft signal, not an error.
		if !d.await(ctx, func() bool { return d.profileVisible(ctx) }) {
			d.cfg.Logger.Debug("nav: profile view wait timed out, proceeding", "index", i)
			pause(ctx, d.cfg.GraceDelay)
		}

		// OpeningPreview.
		if sel := d.firstExisting(ctx, d.cfg.PreviewTriggers); sel != "" {
			if err := d.cfg.Page.ClickNth(ctx, sel, 0); err != nil {
				d.cfg.Logger.Debug("nav: preview click failed", "error", err)
			}
			pause(ctx, d.cfg.PreviewDelay)
		} else {
			pause(ctx, d.cfg.NoPreviewDelay)
		}

		// Extracting.
		pause(ctx, d.cfg.SettleDelay)
		rec := d.extractCurrent(ctx, len(out)+1)
		out = append(out, rec)

		// Exit path: in-page next control, else back to the list.
		if sel := d.firstExisting(ctx, d.cfg.NextControls); sel != "" {
			if err := d.cfg.Page.ClickNth(ctx, sel, 0); err != nil {
				d.cfg.Logger.Debug("nav: next click failed", "error", err)
			}
			d.await(ctx, func() bool {
				return strings.Contains(d.cfg.Page.URL(), d.cfg.ProfilePath) &&
					d.firstExisting(ctx, d.cfg.NextEvidence) != ""
			})
			pause(ctx, d.cfg.Delay)
			stubs, clickSel = d.refresh(ctx, stubs, clickSel)
			continue
		}

		if err := d.cfg.Page.Back(ctx); err != nil {
			d.cfg.Logger.Debug("nav: back navigation failed", "error", err)
		}
		d.await(ctx, func() bool {
			return d.cfg.Page.URL() == prevURL || d.firstExisting(ctx, d.cfg.ListMarkers) != ""
		})
		pause(ctx, d.cfg.Delay)
		stubs, clickSel = d.refresh(ctx, stubs, clickSel)
	}

	d.cfg.Logger.Info("nav: run finished", "records", len(out))
	return out, nil
}

func (d *Driver) await(ctx context.Context, pred func() bool) bool {
	return Await(ctx, d.cfg.Timeout, d.cfg.PollInterval, pred)
}

func (d *Driver) profileVisible(ctx context.Context) bool {
	if strings.Contains(d.cfg.Page.URL(), d.cfg.ProfilePath) {
		return true
	}
	return d.firstExisting(ctx, d.cfg.ProfileMarkers) != ""
}

func (d *Driver) firstExisting(ctx context.Context, sels []string) string {
	for _, sel := range sels {
		if d.cfg.Page.Exists(ctx, sel) {
			return sel
		}
	}
	return ""
}

// extractCurrent reads the current page and extracts a record. Internal
// failure substitutes a minimal record holding at least the current URL.
func (d *Driver) extractCurrent(ctx context.Context, seq int) record.ProfileRecord {
	pageURL := d.cfg.Page.URL()
	degraded := record.ProfileRecord{ProfileURL: pageURL}

	raw, err := d.cfg.Page.HTML(ctx)
	if err != nil {
		d.cfg.Logger.Warn("nav: snapshot failed, emitting degraded record", "url", pageURL, "error", err)
		return degraded
	}
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		d.cfg.Logger.Warn("nav: snapshot parse failed", "url", pageURL, "error", err)
		return degraded
	}

	rec := d.cfg.Extract(doc, pageURL)
	if rec.ProfileURL == "" {
		rec.ProfileURL = pageURL
	}

	// Same-origin in-page encoding when the page supports it; failures
	// leave the field empty for the orchestrator's fetch fallback.
	if enc, ok := d.cfg.Page.(ImageEncoder); ok && rec.ImageBase64 == "" && rec.ImageURL != "" {
		rec.ImageBase64 = enc.EncodeImage(ctx, rec.ImageURL)
	}

	if d.cfg.Snapshot != nil {
		d.cfg.Snapshot(seq, pageURL, raw)
	}
	return rec
}

// refresh re-collects tiles after a navigation; the DOM may have mutated
// (infinite scroll). An empty or failed re-collection keeps the old set.
func (d *Driver) refresh(ctx context.Context, stubs []record.TileStub, clickSel string) ([]record.TileStub, string) {
	res, err := d.collectNow(ctx)
	if err != nil || len(res.Stubs) == 0 {
		return stubs, clickSel
	}
	return res.Stubs, res.ClickSelector
}

func (d *Driver) collectNow(ctx context.Context) (tiles.Result, error) {
	raw, err := d.cfg.Page.HTML(ctx)
	if err != nil {
		return tiles.Result{}, err
	}
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return tiles.Result{}, err
	}
	base, _ := url.Parse(d.cfg.Page.URL())
	return d.cfg.Collect(doc, base), nil
}
