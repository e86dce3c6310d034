package publish

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// buildTreeFromDir writes blob and tree objects for the directory contents
// into the object store and returns the root tree hash.
func buildTreeFromDir(s storer.EncodedObjectStorer, dir string) (plumbing.Hash, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("read %s: %w", dir, err)
	}

	var treeEntries []object.TreeEntry
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			subHash, err := buildTreeFromDir(s, path)
			if err != nil {
				return plumbing.ZeroHash, err
			}
			treeEntries = append(treeEntries, object.TreeEntry{
				Name: entry.Name(),
				Mode: filemode.Dir,
				Hash: subHash,
			})
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return plumbing.ZeroHash, err
		}
		mode := filemode.Regular
		if info.Mode().Perm()&0o111 != 0 {
			mode = filemode.Executable
		}
		blobHash, err := storeBlobFromFile(s, path)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		treeEntries = append(treeEntries, object.TreeEntry{
			Name: entry.Name(),
			Mode: mode,
			Hash: blobHash,
		})
	}

	return storeTree(s, treeEntries)
}

// storeTree sorts entries in git tree order and writes the tree object.
func storeTree(s storer.EncodedObjectStorer, entries []object.TreeEntry) (plumbing.Hash, error) {
	sortTreeEntries(entries)
	tree := &object.Tree{Entries: entries}
	o := s.NewEncodedObject()
	if err := tree.Encode(o); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("encode tree: %w", err)
	}
	return s.SetEncodedObject(o)
}

// sortTreeEntries orders entries the way git requires: byte order on names,
// with directories comparing as if their name ended in "/".
func sortTreeEntries(entries []object.TreeEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return treeSortKey(entries[i]) < treeSortKey(entries[j])
	})
}

func treeSortKey(e object.TreeEntry) string {
	if e.Mode == filemode.Dir {
		return e.Name + "/"
	}
	return e.Name
}

func storeBlobFromFile(s storer.EncodedObjectStorer, path string) (plumbing.Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	defer f.Close()
	return storeBlob(s, f)
}

func storeBlob(s storer.EncodedObjectStorer, r io.Reader) (plumbing.Hash, error) {
	o := s.NewEncodedObject()
	o.SetType(plumbing.BlobObject)
	w, err := o.Writer()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return plumbing.ZeroHash, err
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, err
	}
	return s.SetEncodedObject(o)
}

// hasEntry reports whether a tree entry with the given name exists.
func hasEntry(entries []object.TreeEntry, name string) bool {
	for _, e := range entries {
		if e.Name == name {
			return true
		}
	}
	return false
}
