// Package linkcheck verifies internal links in a built HTML site without
// any network access: every relative href/src must resolve to a file inside
// the build tree, and fragments must match an anchor in the target document.
package linkcheck

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/docpages/internal/logfields"
)

// Issue is one broken reference found in the site.
type Issue struct {
	// File is the referring document, relative to the site root.
	File string
	// Link is the raw attribute value.
	Link string
	// Reason explains the failure.
	Reason string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s (%s)", i.File, i.Link, i.Reason)
}

// Report summarizes a site check.
type Report struct {
	Pages  int
	Links  int
	Issues []Issue
}

// OK reports whether the site has no broken internal links.
func (r *Report) OK() bool { return len(r.Issues) == 0 }

// Checker verifies internal links within a site directory.
type Checker struct {
	siteDir string
	// anchor id cache per site-relative html path
	ids map[string]map[string]struct{}
}

// NewChecker creates a checker for the built site at siteDir.
func NewChecker(siteDir string) *Checker {
	return &Checker{siteDir: siteDir, ids: make(map[string]map[string]struct{})}
}

// Check walks the site and verifies every internal reference.
func (c *Checker) Check() (*Report, error) {
	if st, err := os.Stat(c.siteDir); err != nil || !st.IsDir() {
		return nil, fmt.Errorf("site directory not found: %s", c.siteDir)
	}

	report := &Report{}
	err := filepath.WalkDir(c.siteDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".html") {
			return nil
		}
		rel, err := filepath.Rel(c.siteDir, p)
		if err != nil {
			return err
		}
		return c.checkPage(filepath.ToSlash(rel), report)
	})
	if err != nil {
		return nil, fmt.Errorf("walk site: %w", err)
	}

	slog.Info("Link check finished",
		slog.Int("pages", report.Pages),
		slog.Int("links", report.Links),
		slog.Int("broken", len(report.Issues)))
	return report, nil
}

func (c *Checker) checkPage(relPage string, report *Report) error {
	links, pageIDs, err := c.loadDocument(relPage)
	if err != nil {
		return err
	}
	report.Pages++

	for _, link := range links {
		if !isCheckable(link.URL) {
			continue
		}
		report.Links++

		if issue := c.checkLink(relPage, pageIDs, link); issue != nil {
			report.Issues = append(report.Issues, *issue)
			slog.Debug("Broken link",
				logfields.Path(relPage),
				logfields.URL(link.URL),
				slog.String("reason", issue.Reason))
		}
	}
	return nil
}

// checkLink resolves a single reference. Returns nil when the target exists.
func (c *Checker) checkLink(relPage string, pageIDs map[string]struct{}, link Link) *Issue {
	u, err := url.Parse(link.URL)
	if err != nil {
		return &Issue{File: relPage, Link: link.URL, Reason: "unparsable URL"}
	}

	// Same-page anchor.
	if u.Path == "" {
		if u.Fragment == "" {
			return nil
		}
		if _, ok := pageIDs[u.Fragment]; !ok {
			return &Issue{File: relPage, Link: link.URL, Reason: "missing anchor"}
		}
		return nil
	}

	target := c.resolve(relPage, u.Path)
	abs := filepath.Join(c.siteDir, filepath.FromSlash(target))
	st, err := os.Stat(abs)
	if err != nil {
		return &Issue{File: relPage, Link: link.URL, Reason: "target not found"}
	}
	if st.IsDir() {
		target = path.Join(target, "index.html")
		if _, err := os.Stat(filepath.Join(c.siteDir, filepath.FromSlash(target))); err != nil {
			return &Issue{File: relPage, Link: link.URL, Reason: "directory has no index.html"}
		}
	}

	if u.Fragment != "" && strings.HasSuffix(target, ".html") {
		targetIDs, err := c.anchorIDs(target)
		if err != nil {
			return &Issue{File: relPage, Link: link.URL, Reason: "target unreadable"}
		}
		if _, ok := targetIDs[u.Fragment]; !ok {
			return &Issue{File: relPage, Link: link.URL, Reason: "missing anchor"}
		}
	}
	return nil
}

// anchorIDs returns the anchor ids of a site-relative html file, parsing it
// at most once.
func (c *Checker) anchorIDs(relPath string) (map[string]struct{}, error) {
	if ids, ok := c.ids[relPath]; ok {
		return ids, nil
	}
	_, ids, err := c.loadDocument(relPath)
	return ids, err
}

// resolve turns a link path into a site-relative slash path.
func (c *Checker) resolve(relPage, linkPath string) string {
	if strings.HasPrefix(linkPath, "/") {
		return path.Clean(strings.TrimPrefix(linkPath, "/"))
	}
	return path.Clean(path.Join(path.Dir(relPage), linkPath))
}

// loadDocument parses a site-relative html file, caching anchor ids.
func (c *Checker) loadDocument(relPath string) ([]Link, map[string]struct{}, error) {
	f, err := os.Open(filepath.Join(c.siteDir, filepath.FromSlash(relPath)))
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", relPath, err)
	}
	defer f.Close()

	links, ids, err := extractDocument(f)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", relPath, err)
	}
	c.ids[relPath] = ids
	return links, ids, nil
}
