// Package cache materializes package sources into the per-user cache.
//
// Remote entries are fetched once per (locator, version) into a staging
// directory and renamed into place, then never touched again. Entries for
// local directories are rebuilt on every call so edits in the source
// directory are always picked up. There is no locking: two processes racing
// on the same key can clobber each other's entry.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/finn-lang/finn/pkg/finnerr"
	"github.com/finn-lang/finn/pkg/pkg"
	"github.com/finn-lang/finn/pkg/store"
	"github.com/finn-lang/finn/pkg/vcs"
)

// keyLen is the number of hex characters of the locator hash kept in the
// entry name.
const keyLen = 8

// partialPrefix marks in-flight fetches inside the cache root. Leftovers
// from interrupted runs are never mistaken for entries.
const partialPrefix = ".partial-"

type Cache struct {
	Store  store.Store
	VCS    vcs.Tool
	Logger *log.Logger
}

func New(s store.Store, tool vcs.Tool, logger *log.Logger) *Cache {
	if logger == nil {
		logger = log.Default()
	}
	return &Cache{Store: s, VCS: tool, Logger: logger}
}

// Key returns the entry directory name for a package:
// "<name>-<first 8 hex of sha256(locator + version)>".
func Key(name, locator, version string) string {
	sum := sha256.Sum256([]byte(locator + version))
	return fmt.Sprintf("%s-%s", name, hex.EncodeToString(sum[:])[:keyLen])
}

// EnsureCached returns the cache entry path holding the content of locator
// at version, fetching it if needed. version may be empty.
func (c *Cache) EnsureCached(ctx context.Context, name, locator, version string) (string, error) {
	if err := pkg.ValidateName(name); err != nil {
		return "", err
	}

	key := Key(name, locator, version)
	dest := c.Store.Path(key)

	if info, err := os.Stat(locator); err == nil && info.IsDir() {
		c.Logger.Debug("refreshing local source", "name", name, "path", locator)
		if err := c.refreshLocal(locator, key); err != nil {
			return "", err
		}
		return dest, nil
	}

	cached, err := c.Store.Exists(key)
	if err != nil {
		return "", finnerr.IO("checking cache", err)
	}
	if cached {
		c.Logger.Debug("using cached entry", "name", name, "entry", dest)
		return dest, nil
	}

	if err := c.Store.EnsureDir(); err != nil {
		return "", finnerr.IO("creating cache root", err)
	}

	// Fetch into a private sibling and rename it into place, so an entry
	// only ever exists once its clone and checkout have completed.
	tmp, err := os.MkdirTemp(c.Store.Path(), partialPrefix+key+"-")
	if err != nil {
		return "", finnerr.IO("creating staging dir", err)
	}
	defer func() {
		if err := os.RemoveAll(tmp); err != nil {
			c.Logger.Warn("could not remove staging dir", "dir", tmp, "err", err)
		}
	}()

	c.Logger.Info("fetching", "name", name, "url", locator)
	if err := c.VCS.Clone(ctx, locator, tmp); err != nil {
		return "", fmt.Errorf("cloning %s: %w: %w", locator, finnerr.ErrFetch, err)
	}

	if version != "" {
		c.Logger.Debug("checking out", "name", name, "version", version)
		if err := c.VCS.Checkout(ctx, tmp, version); err != nil {
			return "", fmt.Errorf("checking out %q of %s (does it exist?): %w: %w", version, locator, finnerr.ErrFetch, err)
		}
	}

	if err := os.Rename(tmp, dest); err != nil {
		return "", finnerr.IO("publishing cache entry", err)
	}
	return dest, nil
}

func (c *Cache) refreshLocal(src, key string) error {
	if err := c.Store.Remove(key); err != nil {
		return finnerr.IO("clearing old cache entry", err)
	}
	if err := c.Store.EnsureDir(key); err != nil {
		return finnerr.IO("creating cache entry", err)
	}
	if err := c.VCS.CopyTree(src, c.Store.Path(key)); err != nil {
		return finnerr.IO("copying local package", err)
	}
	return nil
}
