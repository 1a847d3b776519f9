package vcs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Git implements Tool with the git executable found on PATH.
type Git struct {
	// Binary overrides the executable name. Defaults to "git".
	Binary string
}

var _ Tool = &Git{}

func (g *Git) binary() string {
	if g.Binary != "" {
		return g.Binary
	}
	return "git"
}

// Clone performs a full clone so that any later checkout of a tag, branch
// or commit can be satisfied locally.
func (g *Git) Clone(ctx context.Context, url, dest string) error {
	return g.run(ctx, "", "clone", "--quiet", url, dest)
}

func (g *Git) Checkout(ctx context.Context, dir, rev string) error {
	return g.run(ctx, dir, "checkout", "--quiet", rev)
}

// Revision reads HEAD of the repository rooted at dir. A dir without its
// own .git is not a repository even when it sits inside one.
func (g *Git) Revision(ctx context.Context, dir string) (string, error) {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		return "", fmt.Errorf("%s is not a git repository: %w", dir, err)
	}
	cmd := exec.CommandContext(ctx, g.binary(), "rev-parse", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", execError(err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (g *Git) CopyTree(src, dst string) error {
	return CopyTree(src, dst)
}

func (g *Git) run(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, g.binary(), args...)
	cmd.Dir = dir
	if _, err := cmd.Output(); err != nil {
		return fmt.Errorf("git %s: %w", args[0], execError(err))
	}
	return nil
}

func execError(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
	}
	return err
}
