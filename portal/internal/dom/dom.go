// Package dom evaluates CSS and XPath locators against parsed HTML.
//
// It backs the HTTP-only page level (no browser) and the scripted pages used
// by tests. CSS selectors go through goquery (cascadia); XPath goes through a
// small evaluator that covers the expressions the portal locator table uses.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Parse parses an HTML document.
func Parse(r io.Reader) (*html.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	return doc, nil
}

// ParseString parses an HTML document held in a string.
func ParseString(s string) (*html.Node, error) {
	return Parse(strings.NewReader(s))
}

// Query returns the elements under root matching expr, in document order.
// An invalid expression matches nothing.
func Query(root *html.Node, expr string, xpath bool) []*html.Node {
	if root == nil || strings.TrimSpace(expr) == "" {
		return nil
	}
	if xpath {
		return evaluateXPath(root, expr)
	}
	return goquery.NewDocumentFromNode(root).Find(expr).Nodes
}

// Text returns the cleaned text content of n and its descendants.
// Block-level boundaries become single spaces.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	collectText(n, &b)
	return CleanText(b.String())
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Template:
			return
		case atom.Br:
			b.WriteByte(' ')
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
	if n.Type == html.ElementNode && isBlock(n.DataAtom) {
		b.WriteByte(' ')
	}
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.Div, atom.P, atom.Li, atom.Ul, atom.Ol, atom.Tr, atom.Td, atom.Th,
		atom.Table, atom.Tbody, atom.Section, atom.Article, atom.H1, atom.H2,
		atom.H3, atom.H4, atom.H5, atom.H6, atom.Main, atom.Footer, atom.Header:
		return true
	}
	return false
}

// Attr returns the value of the named attribute.
func Attr(n *html.Node, name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets (or adds) an attribute on n.
func SetAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

// HasClass reports whether n's class list contains class.
func HasClass(n *html.Node, class string) bool {
	v, _ := Attr(n, "class")
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

// Visible approximates rendering visibility for a static document: the
// element and none of its ancestors are hidden by attribute or inline style.
func Visible(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		switch cur.DataAtom {
		case atom.Head, atom.Script, atom.Style, atom.Template:
			return false
		}
		if _, ok := Attr(cur, "hidden"); ok {
			return false
		}
		if t, _ := Attr(cur, "type"); cur.DataAtom == atom.Input && t == "hidden" {
			return false
		}
		style, _ := Attr(cur, "style")
		style = strings.ReplaceAll(strings.ToLower(style), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false
		}
	}
	return true
}

// Lang returns the lang attribute of the document element.
func Lang(root *html.Node) string {
	for _, n := range Query(root, "/html", true) {
		v, _ := Attr(n, "lang")
		return v
	}
	return ""
}

// Render serialises n (including its own tag) back to HTML.
func Render(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}
