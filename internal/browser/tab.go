package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Tab wraps a Rod page and implements the navigation driver's page
// interface: URL/HTML snapshots, scoped click-by-index, existence
// checks, and history back.
type Tab struct {
	Page *rod.Page

	mu      sync.Mutex
	lastURL string
}

// OpenTab creates a stealth tab, applies resource blocking and navigates
// to pageURL.
func OpenTab(ctx context.Context, mgr *Manager, pageURL string) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	if len(mgr.cfg.ResourceBlocking) > 0 {
		if err := applyResourceBlocking(page, mgr.cfg.ResourceBlocking); err != nil {
			mgr.cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	return &Tab{Page: page, lastURL: pageURL}, nil
}

// URL returns the current page URL. On CDP failure the last known URL
// is returned so the driver can keep polling.
func (t *Tab) URL() string {
	info, err := t.Page.Info()
	if err != nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.lastURL
	}
	t.mu.Lock()
	t.lastURL = info.URL
	t.mu.Unlock()
	return info.URL
}

// HTML serialises the complete DOM as outer HTML.
func (t *Tab) HTML(ctx context.Context) (string, error) {
	res, err := t.Page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: get DOM: %w", err)
	}
	return res.Value.Str(), nil
}

// ClickNth clicks the index-th element matching sel, in document order.
// The selector must enumerate elements the same way the tile collector
// did on the HTML snapshot, so index N lands on tile N.
func (t *Tab) ClickNth(ctx context.Context, sel string, index int) error {
	els, err := t.Page.Context(ctx).Elements(sel)
	if err != nil {
		return fmt.Errorf("browser: query %q: %w", sel, err)
	}
	if index < 0 || index >= len(els) {
		return fmt.Errorf("browser: %q has %d matches, want index %d", sel, len(els), index)
	}
	el := els[index]
	if err := el.ScrollIntoView(); err != nil {
		return fmt.Errorf("browser: scroll to element: %w", err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browser: click: %w", err)
	}
	return nil
}

// Exists reports whether any element matches sel right now.
func (t *Tab) Exists(ctx context.Context, sel string) bool {
	has, _, err := t.Page.Context(ctx).Has(sel)
	return err == nil && has
}

// Back navigates one step back in tab history.
func (t *Tab) Back(ctx context.Context) error {
	if err := t.Page.Context(ctx).NavigateBack(); err != nil {
		return fmt.Errorf("browser: history back: %w", err)
	}
	return nil
}

// EncodeImage downloads an image inside the page context, reusing the
// session's cookies, and returns it as base64. Empty string on failure;
// the caller falls back to a plain HTTP download.
func (t *Tab) EncodeImage(ctx context.Context, imageURL string) string {
	res, err := t.Page.Context(ctx).Eval(`async (u) => {
		try {
			const resp = await fetch(u, { mode: 'cors' });
			if (!resp.ok) return '';
			const blob = await resp.blob();
			return await new Promise((resolve, reject) => {
				const fr = new FileReader();
				fr.onload = () => resolve(fr.result.split(',')[1] || '');
				fr.onerror = reject;
				fr.readAsDataURL(blob);
			});
		} catch (e) {
			return '';
		}
	}`, imageURL)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
