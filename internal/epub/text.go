package epub

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// Text returns the readable text of the book, one paragraph per line,
// following the spine order. Archives without a usable spine fall back to
// every XHTML document in name order.
func (b *Book) Text() (string, error) {
	docs := b.spine
	if len(docs) == 0 {
		for _, f := range b.archive.File {
			if isMarkup(f.Name) {
				docs = append(docs, f.Name)
			}
		}
		sort.Strings(docs)
	}

	var out strings.Builder
	for _, name := range docs {
		if !isMarkup(name) {
			continue
		}
		raw, err := readFile(b.archive, name)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", name, err)
		}
		doc, err := html.Parse(bytes.NewReader(raw))
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", name, err)
		}
		for _, line := range strings.Split(extractText(doc), "\n") {
			if line = normalizeSpace(line); line != "" {
				out.WriteString(line)
				out.WriteByte('\n')
			}
		}
	}
	return strings.TrimRight(out.String(), "\n"), nil
}

var blockElements = map[string]bool{
	"p": true, "br": true, "div": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "section": true,
}

func extractText(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch node.Type {
		case html.TextNode:
			buf.WriteString(node.Data)
		case html.ElementNode:
			if node.Data == "script" || node.Data == "style" || node.Data == "head" {
				return
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if node.Type == html.ElementNode && blockElements[node.Data] {
			buf.WriteString("\n")
		}
	}
	walk(n)
	return buf.String()
}

func normalizeSpace(s string) string {
	s = strings.ToValidUTF8(strings.ReplaceAll(s, "\x00", " "), "")
	return strings.Join(strings.Fields(s), " ")
}

func isMarkup(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".xhtml") || strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm")
}
