package sources

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// Link is one anchor found in an HTML document.
type Link struct {
	Href  string
	Text  string
	Attrs map[string]string
}

// HTMLLinks returns every <a href> of body, in document order, keeping the
// anchor's attributes (data-* carry metadata on some index pages).
func HTMLLinks(body []byte) ([]Link, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var links []Link
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			attrs := make(map[string]string, len(n.Attr))
			for _, a := range n.Attr {
				attrs[a.Key] = a.Val
			}
			if href := strings.TrimSpace(attrs["href"]); href != "" {
				links = append(links, Link{Href: href, Text: NodeText(n), Attrs: attrs})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links, nil
}

// NodeText concatenates the text content of n with collapsed whitespace.
func NodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// HasClass reports whether the class attribute contains name.
func (l Link) HasClass(name string) bool {
	for _, c := range strings.Fields(l.Attrs["class"]) {
		if c == name {
			return true
		}
	}
	return false
}
