package util

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLText returns the visible text of an HTML fragment, whitespace collapsed.
// Script and style content is skipped. Unparseable input is returned trimmed.
func HTMLText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return CollapseSpace(fragment)
	}

	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return CollapseSpace(fragment)
	}

	var buf strings.Builder
	for _, n := range nodes {
		VisibleText(n, &buf)
	}
	return CollapseSpace(buf.String())
}

// VisibleText appends the text nodes under n to buf, skipping scripts/styles.
// Block elements are separated by a space so words do not run together.
func VisibleText(n *html.Node, buf *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript", "iframe", "template":
			return
		case "br", "p", "div", "li", "tr", "h1", "h2", "h3", "h4":
			buf.WriteByte(' ')
		}
	}

	if n.Type == html.TextNode {
		buf.WriteString(n.Data)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		VisibleText(c, buf)
	}
}

// CollapseSpace trims s and replaces runs of whitespace with one space
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
