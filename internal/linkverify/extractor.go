// Package linkverify checks internal links in emitted HTML.
package linkverify

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
)

// Link is a URL reference found in an HTML document.
type Link struct {
	URL       string
	Tag       string // a, img, script, link, ...
	Attribute string // href or src
}

// Document is the link-relevant content of one HTML page.
type Document struct {
	Links []Link
	IDs   map[string]struct{} // element ids and named anchors
}

var linkAttrs = map[string]string{
	"a":      "href",
	"link":   "href",
	"img":    "src",
	"script": "src",
	"iframe": "src",
	"video":  "src",
	"audio":  "src",
	"source": "src",
}

// Extract parses r and collects links and fragment targets.
func Extract(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "failed to parse HTML").Build()
	}

	doc := &Document{IDs: make(map[string]struct{})}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if id := attr(n, "id"); id != "" {
				doc.IDs[id] = struct{}{}
			}
			if n.Data == "a" {
				if name := attr(n, "name"); name != "" {
					doc.IDs[name] = struct{}{}
				}
			}
			if key, ok := linkAttrs[n.Data]; ok {
				if v := strings.TrimSpace(attr(n, key)); v != "" {
					doc.Links = append(doc.Links, Link{URL: v, Tag: n.Data, Attribute: key})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return doc, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// IsInternal reports whether link points into the site. Links with a
// scheme or host are external unless the host matches siteURL.
func IsInternal(link string, siteURL *url.URL) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	if u.Scheme == "" && u.Host == "" {
		return true
	}
	if siteURL == nil || siteURL.Host == "" {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https" || u.Scheme == "") && strings.EqualFold(u.Host, siteURL.Host)
}

// shouldCheck filters out links that never resolve to a file.
func shouldCheck(link string) bool {
	switch {
	case link == "", strings.HasPrefix(link, "mailto:"), strings.HasPrefix(link, "tel:"),
		strings.HasPrefix(link, "javascript:"), strings.HasPrefix(link, "data:"):
		return false
	}
	return !strings.Contains(link, "{{")
}
