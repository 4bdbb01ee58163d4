package linkverify

import (
	"bytes"
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
)

// BrokenLink is an internal link whose target does not exist in the output.
type BrokenLink struct {
	Page   string // output-relative page path
	URL    string
	Reason string
}

// Checker resolves internal links against an output directory.
type Checker struct {
	root    string
	siteURL *url.URL

	mu   sync.Mutex
	docs map[string]*Document // output-relative path -> parsed page
}

// NewChecker creates a Checker for the output tree at root. siteURL may be
// empty; when set, absolute links to its host are treated as internal and
// its path is stripped as a prefix.
func NewChecker(root, siteURL string) (*Checker, error) {
	c := &Checker{root: root, docs: make(map[string]*Document)}
	if siteURL != "" {
		u, err := url.Parse(siteURL)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryConfig, "invalid site URL").
				WithContext("url", siteURL).Build()
		}
		c.siteURL = u
	}
	return c, nil
}

// Check verifies every internal link in pages (output-relative HTML paths).
// Results are sorted by page then URL.
func (c *Checker) Check(ctx context.Context, pages []string) ([]BrokenLink, error) {
	var broken []BrokenLink
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := c.document(page)
		if err != nil {
			return nil, err
		}
		for _, l := range doc.Links {
			if !shouldCheck(l.URL) || !IsInternal(l.URL, c.siteURL) {
				continue
			}
			if reason := c.resolve(page, l.URL); reason != "" {
				broken = append(broken, BrokenLink{Page: page, URL: l.URL, Reason: reason})
			}
		}
	}
	sort.SliceStable(broken, func(i, j int) bool {
		if broken[i].Page != broken[j].Page {
			return broken[i].Page < broken[j].Page
		}
		return broken[i].URL < broken[j].URL
	})
	return broken, nil
}

func (c *Checker) document(rel string) (*Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.docs[rel]; ok {
		return d, nil
	}
	raw, err := os.ReadFile(filepath.Join(c.root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read page").WithFile(rel).Build()
	}
	d, err := Extract(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	c.docs[rel] = d
	return d, nil
}

// resolve returns "" when link from page resolves, otherwise a reason.
func (c *Checker) resolve(page, link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return "malformed URL"
	}

	target := page
	if u.Path != "" {
		p := u.Path
		if u.Host != "" || strings.HasPrefix(p, "/") {
			p = c.stripBase(p)
		}
		if strings.HasPrefix(p, "/") {
			target = strings.TrimPrefix(path.Clean(p), "/")
		} else {
			target = path.Join(path.Dir(page), p)
		}
		if strings.HasPrefix(target, "..") {
			return "points outside the site"
		}
		var ok bool
		target, ok = c.locate(target, strings.HasSuffix(u.Path, "/"))
		if !ok {
			return "target not found"
		}
	}

	if u.Fragment == "" || !strings.HasSuffix(target, ".html") {
		return ""
	}
	doc, err := c.document(target)
	if err != nil {
		return "target not readable"
	}
	if _, ok := doc.IDs[u.Fragment]; !ok {
		return "missing anchor #" + u.Fragment
	}
	return ""
}

// stripBase removes the site URL's path prefix from an absolute path. Paths
// outside the prefix are returned unchanged.
func (c *Checker) stripBase(p string) string {
	if c.siteURL == nil {
		return p
	}
	base := strings.TrimSuffix(c.siteURL.Path, "/")
	switch {
	case base == "":
		return p
	case p == base:
		return "/"
	case strings.HasPrefix(p, base+"/"):
		return p[len(base):]
	default:
		return p
	}
}

// locate maps a URL path to an existing output file.
func (c *Checker) locate(rel string, dir bool) (string, bool) {
	candidates := []string{rel, path.Join(rel, "index.html"), rel + ".html"}
	if dir || rel == "." || rel == "" {
		candidates = []string{path.Join(rel, "index.html")}
	}
	for _, cand := range candidates {
		fi, err := os.Stat(filepath.Join(c.root, filepath.FromSlash(cand)))
		if err == nil && !fi.IsDir() {
			return cand, true
		}
	}
	return "", false
}
