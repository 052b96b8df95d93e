// Package htmlq is a small selector layer over golang.org/x/net/html.
package htmlq

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// Parse parses a page body into a node tree.
func Parse(body []byte) (*html.Node, error) {
	return html.Parse(bytes.NewReader(body))
}

// QuerySelectorAll returns all nodes matching a simple selector. Supported
// parts are "tag", ".class", "tag.class" and "[attr]", joined by spaces for
// descendant matching.
func QuerySelectorAll(root *html.Node, selector string) []*html.Node {
	parts := strings.Fields(selector)
	if len(parts) == 0 || root == nil {
		return nil
	}

	matches := matchSimple(root, parts[0])
	for i := 1; i < len(parts); i++ {
		var next []*html.Node
		for _, parent := range matches {
			for c := parent.FirstChild; c != nil; c = c.NextSibling {
				next = append(next, matchSimple(c, parts[i])...)
			}
		}
		matches = next
	}
	return matches
}

// QuerySelector returns the first match or nil.
func QuerySelector(root *html.Node, selector string) *html.Node {
	if m := QuerySelectorAll(root, selector); len(m) > 0 {
		return m[0]
	}
	return nil
}

func matchSimple(root *html.Node, sel string) []*html.Node {
	s := parseSimpleSelector(sel)
	var results []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if s.matches(n) {
			results = append(results, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return results
}

type simpleSelector struct {
	tag     string
	class   string
	attrKey string
}

func parseSimpleSelector(sel string) simpleSelector {
	var s simpleSelector
	if idx := strings.IndexByte(sel, '['); idx >= 0 {
		s.attrKey = strings.TrimRight(sel[idx+1:], "]")
		sel = sel[:idx]
	}
	if idx := strings.IndexByte(sel, '.'); idx >= 0 {
		s.class = sel[idx+1:]
		sel = sel[:idx]
	}
	s.tag = sel
	return s
}

func (s simpleSelector) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if s.tag != "" && n.Data != s.tag {
		return false
	}
	if s.class != "" && !HasClass(n, s.class) {
		return false
	}
	if s.attrKey != "" && !hasAttr(n, s.attrKey) {
		return false
	}
	return true
}

// Attr returns the value of an attribute on a node.
func Attr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return true
		}
	}
	return false
}

// HasClass reports whether n carries class in its class attribute.
func HasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(Attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// Text returns the concatenated, trimmed text content of n.
func Text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

// TextAll returns the text of every node matching selector.
func TextAll(root *html.Node, selector string) []string {
	nodes := QuerySelectorAll(root, selector)
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, Text(n))
	}
	return out
}

// NextElementSibling skips text and comment nodes.
func NextElementSibling(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

// LastElementChild returns the last child element of n, or nil.
func LastElementChild(n *html.Node) *html.Node {
	for c := n.LastChild; c != nil; c = c.PrevSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}
