package fetcher

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// walkDocument is the whole-document fallback: a node walk that skips
// non-content elements and emits block-level text with line breaks.
func walkDocument(root *html.Node) string {
	if root == nil {
		return ""
	}
	var b strings.Builder
	var title string
	walkText(root, &b, &title)
	return cleanupWalkedText(b.String())
}

func walkText(n *html.Node, w io.Writer, title *string) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript", "nav", "header", "footer", "aside":
			return
		case "title":
			if *title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				*title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		}
	}

	if n.Type == html.TextNode {
		text := strings.TrimSpace(n.Data)
		if text != "" {
			if n.Parent != nil && isBlockElement(n.Parent.Data) {
				fmt.Fprintf(w, "\n%s\n", text)
			} else {
				fmt.Fprintf(w, " %s ", text)
			}
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, w, title)
	}
}

func isBlockElement(tag string) bool {
	switch tag {
	case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6", "li", "blockquote",
		"article", "section", "main", "pre", "td", "th", "dt", "dd":
		return true
	}
	return false
}

// cleanupWalkedText collapses whitespace and drops fragments too short
// to be prose, mirroring the part-based extraction.
func cleanupWalkedText(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = normalizeSpace(line)
		if len([]rune(line)) >= minPartLen {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
