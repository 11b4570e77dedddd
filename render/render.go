// Package render converts wiki-flavored HTML fragments into plain text and
// markdown for tool responses.
package render

import (
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
)

// SnippetText strips markup from a search snippet, returning plain text with
// entities decoded and whitespace collapsed. MediaWiki wraps matched terms in
// <span class="searchmatch"> tags; only the text survives.
func SnippetText(snippet string) string {
	if snippet == "" {
		return ""
	}
	doc, err := html.Parse(strings.NewReader(snippet))
	if err != nil {
		// A snippet that does not parse is returned as-is rather than lost.
		return strings.TrimSpace(snippet)
	}
	var b strings.Builder
	collectText(doc, &b)
	return strings.Join(strings.Fields(b.String()), " ")
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

// ToMarkdown converts rendered page HTML into markdown.
func ToMarkdown(htmlContent string) (string, error) {
	markdown, err := htmltomarkdown.ConvertString(htmlContent)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}
	return strings.TrimSpace(markdown), nil
}
