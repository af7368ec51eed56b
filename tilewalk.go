// Package tilewalk drives profile-by-profile navigation over a dating
// site's SPA listing, extracts structured records from each visited
// profile, optionally enriches them with face detection, and exports the
// batch as CSV.
//
// The package orchestrates disposable components: a Chrome tab via Rod,
// a navigation driver walking the tiles, an extraction layer over DOM
// snapshots, and sinks receiving progress events.
package tilewalk

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/tilewalk/internal/archive"
	"github.com/hazyhaar/tilewalk/internal/browser"
	"github.com/hazyhaar/tilewalk/internal/config"
	"github.com/hazyhaar/tilewalk/internal/enrich"
	"github.com/hazyhaar/tilewalk/internal/export"
	"github.com/hazyhaar/tilewalk/internal/extract"
	"github.com/hazyhaar/tilewalk/internal/nav"
	"github.com/hazyhaar/tilewalk/internal/sink"
	"github.com/hazyhaar/tilewalk/internal/store"
	"github.com/hazyhaar/tilewalk/internal/tiles"
	"github.com/hazyhaar/tilewalk/record"
)

// Runner is the top-level orchestrator. Create one per scraper instance;
// it serialises runs, owns the browser and the persistence layer.
type Runner struct {
	cfg    *config.Config
	logger *slog.Logger
	sinkR  *sink.Router
	mgr    *browser.Manager
	st     *store.Store

	mu      sync.Mutex
	running bool
	token   *nav.Token

	// Test seams. When nil the production implementations are used.
	imageFetch func(ctx context.Context, imageURL string) string
	faceDetect func(ctx context.Context, imageBase64 string) json.RawMessage
	now        func() time.Time
}

// New creates a Runner from configuration.
func New(cfg *config.Config, logger *slog.Logger, sinks ...sink.Sink) *Runner {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		Headful:          cfg.Browser.Stealth == "headful",
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Logger:           logger,
	})
	return &Runner{
		cfg:    cfg,
		logger: logger,
		sinkR:  sink.NewRouter(logger, sinks...),
		mgr:    mgr,
		now:    time.Now,
	}
}

// OpenStore opens the SQLite persistence layer at the configured path.
// Optional: without it runs still work but cannot be re-exported.
func (r *Runner) OpenStore() error {
	st, err := store.Open(r.cfg.Storage.Path)
	if err != nil {
		return err
	}
	r.st = st
	return nil
}

// Close shuts down the browser and the store.
func (r *Runner) Close() error {
	err := r.mgr.Close()
	if r.st != nil {
		if cerr := r.st.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Running reports whether a scrape run is in progress.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Cancel requests a graceful stop of the current run. The profile being
// processed still completes; everything collected so far is exported.
func (r *Runner) Cancel() {
	r.mu.Lock()
	tok := r.token
	r.mu.Unlock()
	if tok != nil {
		tok.Cancel()
	}
}

// Run launches the browser, opens the target listing and walks it.
// Returns the path of the written CSV.
func (r *Runner) Run(ctx context.Context, variant, pageURL string) (string, error) {
	if variant == "" {
		variant = r.cfg.Target.Variant
	}
	if pageURL == "" {
		pageURL = r.cfg.Target.URL
	}
	if pageURL == "" {
		return "", fmt.Errorf("tilewalk: no target URL configured")
	}

	if _, err := r.mgr.Start(); err != nil {
		return "", err
	}
	tab, err := browser.OpenTab(ctx, r.mgr, pageURL)
	if err != nil {
		return "", err
	}
	defer tab.Close()

	return r.RunWithPage(ctx, variant, tab)
}

// RunWithPage walks an already-open page. The browser-free entry point;
// tests drive it with a scripted page.
func (r *Runner) RunWithPage(ctx context.Context, variant string, page nav.Page) (string, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return "", ErrAlreadyRunning
	}
	r.running = true
	r.token = nav.NewToken()
	token := r.token
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.token = nil
		r.mu.Unlock()
	}()

	path, err := r.run(ctx, variant, page, token)
	if err != nil {
		r.event(ctx, sink.Error(err.Error()))
		return "", err
	}
	return path, nil
}

// ErrAlreadyRunning is returned when a run is requested while another is
// in progress.
var ErrAlreadyRunning = fmt.Errorf("tilewalk: a run is already in progress")

func (r *Runner) run(ctx context.Context, variant string, page nav.Page, token *nav.Token) (string, error) {
	vcfg := r.cfg.Variant(variant)
	tileCfg := tiles.Config{
		Containers: vcfg.Containers,
		MaxTiles:   vcfg.MaxTiles,
	}
	extCfg := r.extractConfig()

	r.event(ctx, sink.Progress(fmt.Sprintf("scrape started: variant %s", variant)))

	// Probe the listing before walking so an empty page fails fast.
	stubs, err := r.probe(ctx, page, tileCfg)
	if err != nil {
		return "", err
	}
	if len(stubs) == 0 {
		return "", fmt.Errorf("tilewalk: no profiles found on listing")
	}
	r.event(ctx, sink.Progress(fmt.Sprintf("found %d profiles", len(stubs))))

	var arch *archive.Writer
	if r.cfg.Archive.Enabled {
		arch = archive.NewWriter(r.cfg.Archive.Dir, r.logger)
	}

	a := r.cfg.Automation
	d, err := nav.New(nav.Config{
		Page:   page,
		Token:  token,
		Logger: r.logger,
		Collect: func(doc *html.Node, base *url.URL) tiles.Result {
			return tiles.Collect(doc, base, tileCfg)
		},
		Extract: func(doc *html.Node, pageURL string) record.ProfileRecord {
			rec := extract.Profile(doc, pageURL, extCfg)
			r.event(ctx, sink.Progress(fmt.Sprintf("extracted %s", pageURL)))
			return rec
		},
		Snapshot: func(seq int, pageURL, rawHTML string) {
			if arch != nil {
				arch.Snapshot(seq, pageURL, rawHTML)
			}
		},
		Timeout:        a.Timeout,
		PollInterval:   a.PollInterval,
		Delay:          vcfg.Delay,
		PreviewDelay:   a.PreviewDelay,
		NoPreviewDelay: a.NoPreviewDelay,
		SettleDelay:    a.SettleDelay,
		GraceDelay:     a.GraceDelay,
		MaxProfiles:    a.MaxProfiles,
	})
	if err != nil {
		return "", err
	}

	records, err := d.Run(ctx)
	if err != nil {
		return "", err
	}
	mergeStubs(records, stubs)

	// Cancellation can land before the first tile; nothing to export then.
	if len(records) == 0 {
		r.event(ctx, sink.Done("no profiles visited, nothing exported"))
		return "", nil
	}

	r.event(ctx, sink.Progress("enriching records"))
	if err := r.enrichAll(ctx, r.faceSettings(ctx), records); err != nil {
		r.logger.Warn("tilewalk: enrichment interrupted", "error", err)
	}

	for i := range records {
		records[i].ID = i + 1
	}

	batch := record.Batch{Variant: variant, CreatedAt: r.now(), Records: records}
	if r.st != nil {
		if err := r.st.SaveBatch(ctx, batch); err != nil {
			r.logger.Warn("tilewalk: save batch failed", "error", err)
		}
	}

	path, err := r.export(batch)
	if err != nil {
		return "", err
	}
	r.event(ctx, sink.Done(fmt.Sprintf("exported %d records to %s", len(records), path)))
	return path, nil
}

// probe parses the current listing and collects tiles once.
func (r *Runner) probe(ctx context.Context, page nav.Page, tileCfg tiles.Config) ([]record.TileStub, error) {
	raw, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("tilewalk: read listing: %w", err)
	}
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("tilewalk: parse listing: %w", err)
	}
	base, _ := url.Parse(page.URL())
	return tiles.Collect(doc, base, tileCfg).Stubs, nil
}

// mergeStubs fills record gaps from listing-tile data, matching by
// walk order. The listing's aria-label carries name, distance and a bio
// snippet that the profile page may not repeat.
func mergeStubs(records []record.ProfileRecord, stubs []record.TileStub) {
	for i := range records {
		if i >= len(stubs) {
			return
		}
		s := stubs[i]
		rec := &records[i]
		if rec.Name == "" {
			rec.Name = s.DisplayName
		}
		if rec.Username == "" {
			rec.Username = s.Username
		}
		if rec.Bio == "" {
			rec.Bio = s.Bio
		}
		if rec.Distance == "" {
			rec.Distance = s.Distance
		}
		if rec.ImageURL == "" {
			rec.ImageURL = s.ThumbnailURL
		}
		if rec.ProfileURL == "" {
			rec.ProfileURL = s.ProfileURL
		}
	}
}

// faceSettings resolves enrichment credentials: file config wins, stored
// settings fill the gaps.
func (r *Runner) faceSettings(ctx context.Context) config.FaceConfig {
	fc := r.cfg.Face
	if r.st == nil {
		return fc
	}
	if fc.Key == "" {
		fc.Key, _ = r.st.Setting(ctx, store.SettingFaceKey)
	}
	if fc.Secret == "" {
		fc.Secret, _ = r.st.Setting(ctx, store.SettingFaceSecret)
	}
	if !fc.Enabled {
		v, _ := r.st.Setting(ctx, store.SettingFaceEnabled)
		fc.Enabled = v == "true"
	}
	return fc
}

// SaveFaceSettings persists enrichment credentials for later runs.
func (r *Runner) SaveFaceSettings(ctx context.Context, key, secret string, enabled bool) error {
	if r.st == nil {
		return fmt.Errorf("tilewalk: no store configured")
	}
	if err := r.st.SaveSetting(ctx, store.SettingFaceKey, key); err != nil {
		return err
	}
	if err := r.st.SaveSetting(ctx, store.SettingFaceSecret, secret); err != nil {
		return err
	}
	return r.st.SaveSetting(ctx, store.SettingFaceEnabled, fmt.Sprintf("%t", enabled))
}

func (r *Runner) enrichAll(ctx context.Context, fc config.FaceConfig, records []record.ProfileRecord) error {
	fetch := r.imageFetch
	if fetch == nil {
		f := &enrich.ImageFetcher{Referer: r.cfg.Target.URL, Logger: r.logger}
		fetch = f.Fetch
	}
	// Image download always runs; the face call only when enabled.
	var detect func(ctx context.Context, imageBase64 string) json.RawMessage
	if fc.Enabled {
		detect = r.faceDetect
		if detect == nil {
			c := &enrich.FaceClient{
				Endpoint: fc.Endpoint,
				Key:      fc.Key,
				Secret:   fc.Secret,
				Logger:   r.logger,
			}
			detect = c.Detect
		}
	}
	e := &enrich.Enricher{
		Fetch:       fetch,
		Detect:      detect,
		Concurrency: fc.Concurrency,
		Logger:      r.logger,
	}
	return e.Run(ctx, records)
}

func (r *Runner) export(batch record.Batch) (string, error) {
	csvText := export.Assemble(batch.Records, export.ForVariant(batch.Variant))
	return export.Save(r.cfg.Export.Dir, batch.Variant, csvText, batch.CreatedAt)
}

// ExportLast re-exports the most recent stored batch without a new run.
// Variant "" means the newest batch of any variant.
func (r *Runner) ExportLast(ctx context.Context, variant string) (string, error) {
	if r.st == nil {
		return "", fmt.Errorf("tilewalk: no store configured")
	}
	batch, err := r.st.LastBatch(ctx, variant)
	if err != nil {
		return "", err
	}
	batch.CreatedAt = r.now()
	path, err := r.export(batch)
	if err != nil {
		return "", err
	}
	r.event(ctx, sink.Done(fmt.Sprintf("re-exported %d records to %s", len(batch.Records), path)))
	return path, nil
}

// extractConfig builds the field-resolution config, applying per-field
// overrides from the configuration file.
func (r *Runner) extractConfig() extract.Config {
	cfg := extract.Config{Chains: extract.DefaultChains()}
	for field, specs := range r.cfg.Fields {
		var chain extract.Chain
		for _, s := range specs {
			chain = append(chain, extract.ParseResolver(s))
		}
		if len(chain) > 0 {
			cfg.Chains[field] = chain
		}
	}
	return cfg
}

func (r *Runner) event(ctx context.Context, ev sink.Event) {
	if err := r.sinkR.Send(ctx, ev); err != nil {
		r.logger.Debug("tilewalk: event delivery failed", "type", ev.Type, "error", err)
	}
}
