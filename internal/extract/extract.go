// Package extract turns a rendered profile page into a ProfileRecord.
//
// Each field is resolved through an ordered chain of resolvers, first
// non-empty result wins. A resolver is either a direct CSS selector lookup
// or a label/value proximity search ("Age" paragraph followed by a nearby
// value paragraph). All failures collapse to the empty string; extraction
// never errors per field.
package extract

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/tilewalk/internal/selector"
	"github.com/hazyhaar/tilewalk/record"
)

// Resolver is one strategy in a field's fallback chain. Exactly one of
// Selector or Label is set.
type Resolver struct {
	Selector string `yaml:"selector,omitempty"`
	Label    string `yaml:"label,omitempty"`
}

// Chain is an ordered list of resolvers, evaluated first-match-wins.
type Chain []Resolver

// Sel builds a chain of direct selector lookups.
func Sel(selectors ...string) Chain {
	c := make(Chain, 0, len(selectors))
	for _, s := range selectors {
		c = append(c, Resolver{Selector: s})
	}
	return c
}

// Lbl appends label/value resolvers to a chain.
func (c Chain) Lbl(labels ...string) Chain {
	for _, l := range labels {
		c = append(c, Resolver{Label: l})
	}
	return c
}

// ParseResolver parses the config file form: "css:<selector>" or
// "label:<text>". A bare string is treated as a selector.
func ParseResolver(s string) Resolver {
	switch {
	case strings.HasPrefix(s, "label:"):
		return Resolver{Label: strings.TrimPrefix(s, "label:")}
	case strings.HasPrefix(s, "css:"):
		return Resolver{Selector: strings.TrimPrefix(s, "css:")}
	default:
		return Resolver{Selector: s}
	}
}

// Chains maps field names to their fallback chains.
type Chains map[string]Chain

// Config controls profile extraction. Selector sets are configuration:
// the two site variants (and future markup changes) swap these without
// touching extraction mechanics.
type Config struct {
	Chains Chains

	// MemberSections locate the section whose combined text carries
	// "Member since:" and "Profile ID:".
	MemberSections []string
}

// DefaultChains returns the built-in fallback chains. The styled-class
// selectors are site CSS-module artifacts observed in the wild; the label
// resolvers are the durable fallback.
func DefaultChains() Chains {
	return Chains{
		"id":   Sel("header .sc-rcepan-2.jZxKik p", ".sc-rcepan-2.jZxKik p", "h1 p", ".eeZNnP"),
		"name": Sel("h1", "h2", ".sc-fewm29-2.loIzXZ"),
		"bio": Sel(".about", ".user-bio", ".profile-about",
			".profile__info .eeZNnP", ".BodyText-sc-1lb5dia-0.eeZNnP"),
		"location": Sel(".profile__info .cmLITB", ".BodyText-sc-1lb5dia-0.cmLITB",
			".profile__info .BodyText-sc-1lb5dia-0"),
		"age":           Chain{}.Lbl("Age"),
		"age_range":     Chain{}.Lbl("Age range"),
		"height":        Chain{}.Lbl("Height"),
		"weight":        Chain{}.Lbl("Weight"),
		"body_type":     Chain{}.Lbl("Body Type"),
		"body_hair":     Chain{}.Lbl("Body Hair"),
		"languages":     Chain{}.Lbl("Languages"),
		"relationship":  Chain{}.Lbl("Relationship"),
		"position":      Chain{}.Lbl("Position"),
		"physical_attr": Chain{}.Lbl("Dick"),
		"safer_sex":     Chain{}.Lbl("Safer sex"),
		"open_to":       Chain{}.Lbl("Open to"),
	}
}

func (c *Config) defaults() {
	if c.Chains == nil {
		c.Chains = DefaultChains()
	}
	if len(c.MemberSections) == 0 {
		c.MemberSections = []string{"section.sc-mtxjf3-0.eMUZzW", ".sc-mtxjf3-0.eMUZzW"}
	}
}

var (
	usernameDirRe  = regexp.MustCompile(`profile/(.*?)/`)
	usernameTailRe = regexp.MustCompile(`profile/(.*)$`)
	memberSinceRe  = regexp.MustCompile(`(?i)Member since:\s*(.+?)(?:\s*Profile ID:|$)`)
	profileIDRe    = regexp.MustCompile(`(?i)Profile ID:\s*(\d+)`)
	cssURLRe       = regexp.MustCompile(`(?i)url\(\s*['"]?([^'")]+)['"]?\s*\)`)
)

// Profile extracts a ProfileRecord from a parsed profile page. pageURL is
// the page's current location, used for the username, provenance, and
// absolute image resolution. The caller is responsible for any settle
// delay before snapshotting the DOM.
func Profile(doc *html.Node, pageURL string, cfg Config) record.ProfileRecord {
	cfg.defaults()

	field := func(name string) string { return Resolve(doc, cfg.Chains[name]) }

	r := record.ProfileRecord{ProfileURL: pageURL}
	r.ProfileID = field("id")
	r.Name = firstNonEmpty(field("name"), r.ProfileID)
	r.Username = usernameFromURL(pageURL)
	r.Bio = field("bio")
	r.Location = field("location")

	r.Age = field("age")
	r.AgeRange = field("age_range")
	r.Height = field("height")
	r.Weight = field("weight")
	r.BodyType = field("body_type")
	r.BodyHair = field("body_hair")
	r.Languages = field("languages")
	r.Relationship = field("relationship")
	r.Position = field("position")
	r.PhysicalAttr = field("physical_attr")
	r.SaferSex = field("safer_sex")
	r.OpenTo = field("open_to")

	langs := strings.ToLower(r.Languages)
	r.English = yesIf(strings.Contains(langs, "english"))
	r.Bengali = yesIf(strings.Contains(langs, "bengali"))
	r.Hindi = yesIf(strings.Contains(langs, "hindi"))

	r.ImageURL = imageURL(doc, pageURL)

	r.MemberSince, r.ProfileID = memberSection(doc, cfg, r.ProfileID)
	return r
}

// Resolve evaluates a chain, returning the first non-empty result.
func Resolve(doc *html.Node, chain Chain) string {
	for _, res := range chain {
		var v string
		switch {
		case res.Selector != "":
			v = selector.Text(selector.First(doc, res.Selector))
		case res.Label != "":
			v = labelValue(doc, res.Label)
		}
		if v != "" {
			return v
		}
	}
	return ""
}

// labelValue finds a paragraph whose exact text equals label, then reads
// the nearby value: same-parent nested value first, then the parent's next
// sibling's value. Empty string if none found.
func labelValue(doc *html.Node, label string) string {
	for _, p := range selector.All(doc, "p") {
		if selector.Text(p) != label {
			continue
		}
		parent := selector.Parent(p)
		if parent == nil {
			return ""
		}
		// Same-parent nested value first; the label node itself never counts.
		for _, cand := range selector.All(parent, "div p") {
			if cand != p {
				return selector.Text(cand)
			}
		}
		for _, cand := range selector.All(parent, "p") {
			if cand != p {
				return selector.Text(cand)
			}
		}
		if sib := selector.NextSibling(parent); sib != nil {
			if v := selector.First(sib, "p"); v != nil {
				return selector.Text(v)
			}
		}
		return ""
	}
	return ""
}

// imageURL prefers an inline background image anywhere on the page, then
// the first image element's primary or lazy-load source, resolved absolute
// against the page location.
func imageURL(doc *html.Node, pageURL string) string {
	raw := ""
	if bg := selector.First(doc, `[style*="url("]`); bg != nil {
		if m := cssURLRe.FindStringSubmatch(selector.Attr(bg, "style")); m != nil {
			raw = m[1]
		}
	}
	if raw == "" {
		if img := selector.First(doc, "img"); img != nil {
			raw = selector.Attr(img, "src")
			if raw == "" {
				raw = selector.Attr(img, "data-src")
			}
		}
	}
	if raw == "" {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return base.ResolveReference(ref).String()
}

// memberSection reads "Member since" and "Profile ID" from a combined
// section, falling back to label search. The already-resolved profile ID
// is kept when the section has none.
func memberSection(doc *html.Node, cfg Config, currentID string) (since, id string) {
	id = currentID
	if sec := selector.FirstOf(doc, cfg.MemberSections); sec != nil {
		text := selector.Text(sec)
		if m := memberSinceRe.FindStringSubmatch(text); m != nil {
			since = strings.TrimSpace(m[1])
		}
		if m := profileIDRe.FindStringSubmatch(text); m != nil {
			id = m[1]
		}
		return since, id
	}
	since = labelValue(doc, "Member since")
	if v := labelValue(doc, "Profile ID"); v != "" {
		id = v
	}
	return since, id
}

func usernameFromURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	if m := usernameDirRe.FindStringSubmatch(u.Path); m != nil {
		return m[1]
	}
	if m := usernameTailRe.FindStringSubmatch(u.Path); m != nil {
		return m[1]
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func yesIf(b bool) string {
	if b {
		return "yes"
	}
	return ""
}
