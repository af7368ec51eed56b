// Package tiles enumerates candidate profile tiles on a listing view and
// produces lightweight stubs for the navigation driver. It works on a
// parsed HTML snapshot; missing attributes yield empty fields, never errors.
package tiles

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/tilewalk/internal/selector"
	"github.com/hazyhaar/tilewalk/record"
)

// Config controls tile collection for one site variant.
type Config struct {
	// Containers are ordered container-selector candidates; the first one
	// that matches scopes the anchor search. None matching falls back to a
	// document-wide search.
	Containers []string

	// LabeledAnchors selects anchors carrying a descriptive label and a
	// profile link. AnyAnchors is the fallback when zero are found.
	LabeledAnchors string
	AnyAnchors     string

	// MaxTiles caps the result to bound automation time.
	MaxTiles int
}

func (c *Config) defaults() {
	if c.LabeledAnchors == "" {
		c.LabeledAnchors = `a[aria-label][href*="/profile/"]`
	}
	if c.AnyAnchors == "" {
		c.AnyAnchors = `a[href*="/profile/"]`
	}
	if c.MaxTiles <= 0 {
		c.MaxTiles = 500
	}
}

// Result is one collection pass. ClickSelector reproduces, on the live
// page, the same anchor enumeration that produced Stubs: stub N is the
// N-th match of ClickSelector in document order.
type Result struct {
	Stubs         []record.TileStub
	ClickSelector string
}

var bgImageRe = regexp.MustCompile(`(?i)url\(\s*['"]?([^'")]+)['"]?\s*\)`)

// Collect enumerates profile tiles under doc. base resolves relative
// profile and thumbnail URLs; it may be nil.
func Collect(doc *html.Node, base *url.URL, cfg Config) Result {
	cfg.defaults()

	scope := doc
	containerSel := ""
	for _, sel := range cfg.Containers {
		if n := selector.First(doc, sel); n != nil {
			scope, containerSel = n, sel
			break
		}
	}

	anchorSel := cfg.LabeledAnchors
	anchors := selector.All(scope, anchorSel)
	if len(anchors) == 0 {
		// Site markup variance: not every tile carries a label.
		anchorSel = cfg.AnyAnchors
		anchors = selector.All(scope, anchorSel)
	}

	seen := make(map[*html.Node]bool, len(anchors))
	var stubs []record.TileStub
	for _, a := range anchors {
		if seen[a] {
			continue
		}
		seen[a] = true
		if len(stubs) >= cfg.MaxTiles {
			break
		}
		stubs = append(stubs, stubFromAnchor(a, base, len(stubs)+1))
	}

	click := anchorSel
	if containerSel != "" {
		click = containerSel + " " + anchorSel
	}
	return Result{Stubs: stubs, ClickSelector: click}
}

func stubFromAnchor(a *html.Node, base *url.URL, seq int) record.TileStub {
	stub := record.TileStub{SequenceID: seq}

	// aria-label format: "username, 50m, free-text bio...".
	parts := splitLabel(selector.Attr(a, "aria-label"))
	if len(parts) > 0 {
		stub.Username = parts[0]
		stub.DisplayName = parts[0]
	}
	if len(parts) > 1 {
		stub.Distance = parts[1]
	}
	if len(parts) > 2 {
		stub.Bio = strings.Join(parts[2:], ", ")
	}

	stub.ProfileURL = absolute(base, selector.Attr(a, "href"))
	stub.ThumbnailURL = absolute(base, thumbnail(a))
	return stub
}

func splitLabel(label string) []string {
	var parts []string
	for _, p := range strings.Split(label, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// thumbnail prefers an inline background-image, then an image element's
// primary or lazy-load source.
func thumbnail(a *html.Node) string {
	if bg := selector.First(a, `[style*="background-image"]`); bg != nil {
		if m := bgImageRe.FindStringSubmatch(selector.Attr(bg, "style")); m != nil {
			return m[1]
		}
	}
	if img := selector.First(a, "img"); img != nil {
		if src := selector.Attr(img, "src"); src != "" {
			return src
		}
		return selector.Attr(img, "data-src")
	}
	return ""
}

func absolute(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	if base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
