// Package sources inventories the markdown documentation sources of a
// Sphinx project (MyST pages): titles, heading structure, cross-document
// links, orphaned documents and duplicate titles.
package sources

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Heading is one section heading within a document.
type Heading struct {
	Level int
	Text  string
}

// Document is one markdown source file.
type Document struct {
	// Path is relative to the source directory, slash-separated.
	Path     string
	Title    string
	Headings []Heading
	// Links are markdown link destinations found in the document.
	Links []string
}

// Report is the result of scanning a source tree.
type Report struct {
	Documents []Document
	// Orphans are documents no other document links to (the root index is
	// never an orphan).
	Orphans []string
	// DuplicateTitles maps a folded title to the documents sharing it.
	DuplicateTitles map[string][]string
	// OtherSources counts non-markdown source files (e.g. reStructuredText).
	OtherSources int
}

// Scan inventories all markdown files under sourceDir.
func Scan(sourceDir string) (*Report, error) {
	if st, err := os.Stat(sourceDir); err != nil || !st.IsDir() {
		return nil, fmt.Errorf("source directory not found: %s", sourceDir)
	}

	report := &Report{DuplicateTitles: make(map[string][]string)}
	err := filepath.WalkDir(sourceDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Builder internals and hidden directories are not sources.
			if d.Name() == "_build" || strings.HasPrefix(d.Name(), ".") {
				if p != sourceDir {
					return filepath.SkipDir
				}
			}
			return nil
		}
		switch strings.ToLower(filepath.Ext(d.Name())) {
		case ".md":
			rel, err := filepath.Rel(sourceDir, p)
			if err != nil {
				return err
			}
			doc, err := parseDocument(p, filepath.ToSlash(rel))
			if err != nil {
				return err
			}
			report.Documents = append(report.Documents, *doc)
		case ".rst", ".txt":
			report.OtherSources++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan sources: %w", err)
	}

	sort.Slice(report.Documents, func(i, j int) bool {
		return report.Documents[i].Path < report.Documents[j].Path
	})
	report.Orphans = findOrphans(report.Documents)
	report.DuplicateTitles = findDuplicateTitles(report.Documents)
	return report, nil
}

// parseDocument extracts title, headings and links from one markdown file.
func parseDocument(absPath, relPath string) (*Document, error) {
	src, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", relPath, err)
	}

	md := goldmark.New()
	root := md.Parser().Parse(gmtext.NewReader(src))

	doc := &Document{Path: relPath}
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Heading:
			text := headingText(node, src)
			doc.Headings = append(doc.Headings, Heading{Level: node.Level, Text: text})
			if doc.Title == "" && node.Level == 1 {
				doc.Title = text
			}
		case *gmast.Link:
			doc.Links = append(doc.Links, string(node.Destination))
		case *gmast.AutoLink:
			doc.Links = append(doc.Links, string(node.URL(src)))
		case *gmast.Image:
			doc.Links = append(doc.Links, string(node.Destination))
		}
		return gmast.WalkContinue, nil
	})

	if doc.Title == "" {
		doc.Title = fallbackTitle(relPath)
	}
	return doc, nil
}

// headingText reassembles the raw text of a heading from its source lines.
func headingText(n *gmast.Heading, src []byte) string {
	var sb strings.Builder
	for i := 0; i < n.Lines().Len(); i++ {
		seg := n.Lines().At(i)
		sb.Write(src[seg.Start:seg.Stop])
	}
	return strings.TrimSpace(sb.String())
}

// fallbackTitle derives a title from the file name when no h1 exists.
func fallbackTitle(relPath string) string {
	base := strings.TrimSuffix(path.Base(relPath), path.Ext(relPath))
	return strings.ReplaceAll(base, "_", " ")
}

// findOrphans returns documents not referenced by any other document.
func findOrphans(docs []Document) []string {
	referenced := make(map[string]struct{})
	for _, doc := range docs {
		for _, link := range doc.Links {
			target := normalizeLinkTarget(doc.Path, link)
			if target != "" {
				referenced[target] = struct{}{}
			}
		}
	}

	var orphans []string
	for _, doc := range docs {
		if isRootIndex(doc.Path) {
			continue
		}
		if _, ok := referenced[doc.Path]; !ok {
			orphans = append(orphans, doc.Path)
		}
	}
	return orphans
}

// normalizeLinkTarget resolves a markdown link to a source-relative document
// path, or "" when the link points outside the source tree.
func normalizeLinkTarget(fromPath, link string) string {
	if link == "" || strings.Contains(link, "://") || strings.HasPrefix(link, "#") ||
		strings.HasPrefix(link, "mailto:") {
		return ""
	}
	link = strings.SplitN(link, "#", 2)[0]
	if link == "" {
		return ""
	}
	resolved := path.Clean(path.Join(path.Dir(fromPath), link))
	if strings.HasPrefix(resolved, "..") {
		return ""
	}
	// MyST cross-references may omit the extension.
	if path.Ext(resolved) == "" {
		resolved += ".md"
	}
	return resolved
}

func isRootIndex(relPath string) bool {
	return relPath == "index.md" || relPath == "index.rst"
}

var titleFolder = cases.Fold()

// FoldTitle normalizes a title for duplicate detection: Unicode
// normalization followed by case folding.
func FoldTitle(title string) string {
	return titleFolder.String(norm.NFC.String(strings.TrimSpace(title)))
}

// findDuplicateTitles groups documents sharing a folded title.
func findDuplicateTitles(docs []Document) map[string][]string {
	byTitle := make(map[string][]string)
	for _, doc := range docs {
		key := FoldTitle(doc.Title)
		byTitle[key] = append(byTitle[key], doc.Path)
	}
	dups := make(map[string][]string)
	for title, paths := range byTitle {
		if len(paths) > 1 {
			dups[title] = paths
		}
	}
	return dups
}
