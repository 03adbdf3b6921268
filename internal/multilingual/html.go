package multilingual

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// StripHTML removes markup from rich-text descriptions and returns plain text.
// Entities are decoded and whitespace is collapsed.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapseWhitespace(strings.TrimSpace(s))
	}

	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return stripHTMLFallback(s)
	}

	var buf strings.Builder
	extractText(doc, &buf)
	return strings.TrimSpace(collapseWhitespace(buf.String()))
}

func extractText(n *html.Node, buf *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		buf.WriteString(n.Data)
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return
		}
		if isBlock(n.Data) || n.Data == "br" {
			buf.WriteByte(' ')
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, buf)
	}

	if n.Type == html.ElementNode && isBlock(n.Data) {
		buf.WriteByte(' ')
	}
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "li", "ul", "ol", "h1", "h2", "h3", "h4", "h5", "h6", "td", "tr", "blockquote":
		return true
	}
	return false
}

var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

func stripHTMLFallback(s string) string {
	s = htmlTagRegex.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.TrimSpace(collapseWhitespace(s))
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

func collapseWhitespace(s string) string {
	return whitespaceRegex.ReplaceAllString(s, " ")
}
