// Package integrity computes content digests of installed package trees.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// vcsDir is skipped during hashing; its contents change on every fetch
// without the package content changing.
const vcsDir = ".git"

// HashTree returns the hex SHA-256 digest of every file under dir.
//
// Entries are sorted by full path before hashing, and each file contributes
// its slash-separated path relative to dir followed by its raw bytes. Two
// trees with the same relative paths and byte-identical files always hash
// the same, regardless of platform or directory listing order. Symlinks
// contribute their target string and are never followed.
//
// The tree is read without any locking; a concurrent writer can make the
// digest reflect a mix of old and new content.
func HashTree(dir string) (string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Name() == vcsDir && path != dir {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walking %s: %w", dir, err)
	}

	sort.Strings(files)

	h := sha256.New()
	for _, path := range files {
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return "", err
		}
		io.WriteString(h, filepath.ToSlash(rel))
		if err := hashEntry(h, path); err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashEntry(w io.Writer, path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if info.Mode()&fs.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err != nil {
			return fmt.Errorf("reading link %s: %w", path, err)
		}
		_, err = io.WriteString(w, filepath.ToSlash(target))
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}
