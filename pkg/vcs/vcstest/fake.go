// Package vcstest provides an in-process vcs.Tool for tests.
package vcstest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/finn-lang/finn/pkg/vcs"
)

// RevisionFile is written into every fake clone and read back by Revision.
const RevisionFile = ".fakerev"

// Fake serves clones from plain directories registered in Remotes
// (url → directory) and records every call it receives.
type Fake struct {
	Remotes map[string]string
	// FailCheckout lists revisions whose checkout fails.
	FailCheckout map[string]bool

	mu        sync.Mutex
	Clones    []string
	Checkouts []string
}

var _ vcs.Tool = &Fake{}

func (f *Fake) Clone(ctx context.Context, url, dest string) error {
	f.mu.Lock()
	f.Clones = append(f.Clones, url)
	f.mu.Unlock()

	src, ok := f.Remotes[url]
	if !ok {
		return fmt.Errorf("repository %q not found", url)
	}
	if err := vcs.CopyTree(src, dest); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dest, RevisionFile), []byte("rev-"+filepath.Base(src)), 0o644)
}

func (f *Fake) Checkout(ctx context.Context, dir, rev string) error {
	f.mu.Lock()
	f.Checkouts = append(f.Checkouts, rev)
	f.mu.Unlock()

	if f.FailCheckout[rev] {
		return fmt.Errorf("pathspec %q did not match", rev)
	}
	return os.WriteFile(filepath.Join(dir, RevisionFile), []byte(rev), 0o644)
}

func (f *Fake) Revision(ctx context.Context, dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, RevisionFile))
	if err != nil {
		return "", fmt.Errorf("not a repository: %s", dir)
	}
	return strings.TrimSpace(string(data)), nil
}

func (f *Fake) CopyTree(src, dst string) error {
	return vcs.CopyTree(src, dst)
}

// CloneCount returns how many clones of url were requested.
func (f *Fake) CloneCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range f.Clones {
		if u == url {
			n++
		}
	}
	return n
}
