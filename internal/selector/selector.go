// Package selector implements the small CSS selector subset the tilewalk
// extraction rules need, evaluated over x/net/html node trees.
//
// Supported per selector part:
//   - tag:            "a", "p", "section"
//   - .class:         ".search-results" (several may be chained)
//   - #id:            "#profiles"
//   - [attr]:         "[aria-label]"
//   - [attr=val]:     "[data-testid=profile]"
//   - [attr*=val]:    "[href*=/profile/]" (substring match)
//   - combinations:   "a.tile[href*=/profile/]"
//   - descendant:     parts separated by spaces
//
// This is deliberately not a full CSS engine; extraction rules are written
// within this subset.
package selector

import (
	"strings"

	"golang.org/x/net/html"
)

// All returns every node under root matching sel, in document order.
func All(root *html.Node, sel string) []*html.Node {
	parts := strings.Fields(sel)
	if len(parts) == 0 || root == nil {
		return nil
	}

	matches := matchPart(root, parsePart(parts[0]))
	for _, raw := range parts[1:] {
		p := parsePart(raw)
		var next []*html.Node
		seen := make(map[*html.Node]bool)
		for _, ancestor := range matches {
			for _, n := range matchPart(ancestor, p) {
				if n != ancestor && !seen[n] {
					seen[n] = true
					next = append(next, n)
				}
			}
		}
		matches = next
	}
	return matches
}

// First returns the first node matching sel, or nil.
func First(root *html.Node, sel string) *html.Node {
	m := All(root, sel)
	if len(m) == 0 {
		return nil
	}
	return m[0]
}

// FirstOf returns the first node matching any selector in the ordered list.
// Earlier selectors win; within one selector, document order wins.
func FirstOf(root *html.Node, sels []string) *html.Node {
	for _, sel := range sels {
		if n := First(root, sel); n != nil {
			return n
		}
	}
	return nil
}

// Text returns the trimmed, space-joined visible text of a node subtree.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			t := strings.TrimSpace(n.Data)
			if t != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// Attr returns the value of an attribute, or "".
func Attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasAttr reports whether the node carries the attribute at all.
func HasAttr(n *html.Node, key string) bool {
	if n == nil {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// Parent returns the nearest element ancestor, or nil.
func Parent(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return p
		}
	}
	return nil
}

// NextSibling returns the next element sibling, or nil.
func NextSibling(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

type attrCond struct {
	key       string
	val       string
	substring bool
}

type part struct {
	tag     string
	id      string
	classes []string
	attrs   []attrCond
}

func parsePart(raw string) part {
	var p part

	// Strip attribute conditions first; several may be chained.
	for {
		open := strings.IndexByte(raw, '[')
		if open < 0 {
			break
		}
		end := strings.IndexByte(raw[open:], ']')
		if end < 0 {
			raw = raw[:open]
			break
		}
		cond := raw[open+1 : open+end]
		raw = raw[:open] + raw[open+end+1:]

		var c attrCond
		switch {
		case strings.Contains(cond, "*="):
			i := strings.Index(cond, "*=")
			c.key, c.val, c.substring = cond[:i], trimQuotes(cond[i+2:]), true
		case strings.Contains(cond, "="):
			i := strings.IndexByte(cond, '=')
			c.key, c.val = cond[:i], trimQuotes(cond[i+1:])
		default:
			c.key = cond
		}
		p.attrs = append(p.attrs, c)
	}

	// Then #id and .class chains, peeled from the right.
	for {
		hash := strings.LastIndexByte(raw, '#')
		dot := strings.LastIndexByte(raw, '.')
		if hash < 0 && dot < 0 {
			p.tag = raw
			return p
		}
		if hash > dot {
			p.id = raw[hash+1:]
			raw = raw[:hash]
		} else {
			p.classes = append(p.classes, raw[dot+1:])
			raw = raw[:dot]
		}
	}
}

func trimQuotes(s string) string {
	return strings.Trim(s, `"'`)
}

func matchPart(root *html.Node, p part) []*html.Node {
	var results []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if matches(n, p) {
			results = append(results, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return results
}

func matches(n *html.Node, p part) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if p.tag != "" && n.Data != p.tag {
		return false
	}
	if p.id != "" && Attr(n, "id") != p.id {
		return false
	}
	if len(p.classes) > 0 {
		have := strings.Fields(Attr(n, "class"))
		for _, want := range p.classes {
			found := false
			for _, c := range have {
				if c == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	for _, c := range p.attrs {
		if !HasAttr(n, c.key) {
			return false
		}
		val := Attr(n, c.key)
		switch {
		case c.substring:
			if !strings.Contains(val, c.val) {
				return false
			}
		case c.val != "":
			if val != c.val {
				return false
			}
		}
	}
	return true
}
