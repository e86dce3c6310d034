package linkcheck

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Link is a reference extracted from HTML content.
type Link struct {
	URL       string // raw attribute value
	Tag       string // HTML tag (a, img, script, link, ...)
	Attribute string // attribute containing the link (href, src)
}

// linkAttrs maps tags to the attribute carrying their reference.
var linkAttrs = map[string]string{
	"a":      "href",
	"link":   "href",
	"img":    "src",
	"script": "src",
	"video":  "src",
	"audio":  "src",
	"source": "src",
}

// extractDocument parses HTML and returns its links plus the set of anchor
// ids defined in the document (for fragment validation).
func extractDocument(r io.Reader) ([]Link, map[string]struct{}, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, nil, err
	}

	var links []Link
	ids := make(map[string]struct{})

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if id := getAttr(n, "id"); id != "" {
				ids[id] = struct{}{}
			}
			if n.Data == "a" {
				if name := getAttr(n, "name"); name != "" {
					ids[name] = struct{}{}
				}
			}
			if attr, ok := linkAttrs[n.Data]; ok {
				if val := getAttr(n, attr); val != "" {
					links = append(links, Link{URL: val, Tag: n.Data, Attribute: attr})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links, ids, nil
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// isCheckable reports whether a link target is something the offline checker
// can resolve inside the built site.
func isCheckable(raw string) bool {
	if raw == "" {
		return false
	}
	for _, prefix := range []string{"mailto:", "tel:", "javascript:", "data:"} {
		if strings.HasPrefix(raw, prefix) {
			return false
		}
	}
	// Scheme or protocol-relative URLs point outside the built tree.
	if strings.Contains(raw, "://") || strings.HasPrefix(raw, "//") {
		return false
	}
	return true
}
