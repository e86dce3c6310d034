package publish

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// stagingExcludes lists builder byproducts that never belong on the
// publishing branch.
var stagingExcludes = map[string]struct{}{
	".buildinfo": {},
	".doctrees":  {},
}

// stageSite copies the built site into dst, skipping builder byproducts.
// Returns the number of files copied.
func stageSite(dst, src string) (int, error) {
	files := 0
	err := filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if _, skip := stagingExcludes[d.Name()]; skip {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o750)
		}
		if err := copyFile(target, path); err != nil {
			return err
		}
		files++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("stage site from %s: %w", src, err)
	}
	return files, nil
}

func copyFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
