package installer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/finn-lang/finn/pkg/cache"
	"github.com/finn-lang/finn/pkg/config"
	"github.com/finn-lang/finn/pkg/finnerr"
	"github.com/finn-lang/finn/pkg/integrity"
	"github.com/finn-lang/finn/pkg/pkg"
	"github.com/finn-lang/finn/pkg/source"
	"github.com/finn-lang/finn/pkg/vcs"
)

type Installer struct {
	Cache    *cache.Cache
	VCS      vcs.Tool
	Resolver *source.Resolver
	// PackagesDir is <project>/<envpath>/packages.
	PackagesDir string
	// Force replaces already-installed package directories.
	Force bool
	// IgnoreRegulations skips package layout validation.
	IgnoreRegulations bool
	Logger            *log.Logger
}

// State is shared by every call of one installation run. Visited names
// bound the traversal on cyclic graphs, and Lock accumulates records.
type State struct {
	Lock *config.LockFile
	// Installed lists the names processed in this run, in traversal order.
	Installed []string

	visited map[string]bool
}

func NewState(lock *config.LockFile) *State {
	if lock == nil {
		lock = config.NewLockFile()
	}
	return &State{Lock: lock, visited: map[string]bool{}}
}

// Visited reports whether name was already processed in this run.
func (s *State) Visited(name string) bool {
	return s.visited[name]
}

// Install installs name from locator at version (empty for none) and then,
// recursively, every dependency declared in the installed package's own
// manifest.
//
// A name is processed at most once per State: the first locator and version
// seen for it win and later encounters return immediately, so cycles and
// diamonds terminate without any conflict check. Failures abort the whole
// traversal; packages installed before the failure stay on disk and in
// st.Lock.
func (inst *Installer) Install(ctx context.Context, st *State, name, locator, version string) error {
	logger := inst.logger()

	// Names become directories under PackagesDir and the cache root.
	if err := pkg.ValidateName(name); err != nil {
		return fmt.Errorf("installing %q: %w", name, err)
	}

	if st.visited[name] {
		logger.Debug("already processed", "name", name)
		return nil
	}
	st.visited[name] = true

	cached, err := inst.Cache.EnsureCached(ctx, name, locator, version)
	if err != nil {
		return fmt.Errorf("downloading %q: %w", name, err)
	}

	typ, err := pkg.Classify(logger, cached, inst.IgnoreRegulations)
	if err != nil {
		return fmt.Errorf("validating %q: %w", name, err)
	}

	dest := filepath.Join(inst.PackagesDir, name)
	if err := inst.materialize(cached, dest); err != nil {
		return fmt.Errorf("installing %q: %w", name, err)
	}

	commit, err := inst.VCS.Revision(ctx, dest)
	if err != nil {
		logger.Debug("could not read revision", "name", name, "err", err)
		commit = config.UnknownRevision
	}

	checksum, err := integrity.HashTree(dest)
	if err != nil {
		return fmt.Errorf("calculating checksum for %q: %w", name, finnerr.IO("hashing", err))
	}

	lockVersion := version
	if lockVersion == "" {
		lockVersion = config.HeadVersion
	}
	st.Lock.Update(name, locator, commit, lockVersion, checksum)
	st.Installed = append(st.Installed, name)
	logger.Info("installed", "name", name, "type", typ, "version", lockVersion)

	return inst.installDependencies(ctx, st, name, dest)
}

// materialize copies the cache entry into dest. An existing dest is kept
// unless Force is set.
func (inst *Installer) materialize(cached, dest string) error {
	_, err := os.Stat(dest)
	switch {
	case err == nil && !inst.Force:
		inst.logger().Debug("already installed, keeping existing copy", "dir", dest)
		return nil
	case err == nil:
		if err := os.RemoveAll(dest); err != nil {
			return finnerr.IO("removing old copy", err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return finnerr.IO("checking install dir", err)
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return finnerr.IO("creating install dir", err)
	}
	if err := inst.VCS.CopyTree(cached, dest); err != nil {
		return finnerr.IO("copying from cache", err)
	}
	return nil
}

// installDependencies walks the [packages] table of the installed copy's
// finn.toml, in name order. The manifest is re-read even when the copy was
// already present, since it may have changed since the last install.
func (inst *Installer) installDependencies(ctx context.Context, st *State, name, dir string) error {
	deps, err := readDependencies(dir)
	if err != nil {
		return fmt.Errorf("reading dependencies of %q: %w", name, err)
	}

	depNames := make([]string, 0, len(deps))
	for depName := range deps {
		depNames = append(depNames, depName)
	}
	sort.Strings(depNames)

	for _, depName := range depNames {
		if st.visited[depName] {
			inst.logger().Debug("dependency already processed", "name", depName, "required_by", name)
			continue
		}
		src, err := inst.Resolver.Resolve(ctx, deps[depName])
		if err != nil {
			return fmt.Errorf("resolving dependency %q of %q: %w", depName, name, err)
		}
		if err := inst.Install(ctx, st, depName, src.Locator, src.Version); err != nil {
			return err
		}
	}
	return nil
}

func readDependencies(dir string) (map[string]string, error) {
	path := filepath.Join(dir, config.ManifestFileName)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return cfg.Packages, nil
}

// Verify recomputes the checksum of the installed copy of name and
// compares it with expected. A mismatch is an *finnerr.IntegrityError.
func (inst *Installer) Verify(name, expected string) error {
	actual, err := integrity.HashTree(filepath.Join(inst.PackagesDir, name))
	if err != nil {
		return fmt.Errorf("calculating checksum for %q: %w", name, finnerr.IO("hashing", err))
	}
	if actual != expected {
		return &finnerr.IntegrityError{Name: name, Expected: expected, Actual: actual}
	}
	return nil
}

// Sync installs every package declared in cfg and checks each one that
// was already locked against its previous checksum. Drift is always fatal.
func (inst *Installer) Sync(ctx context.Context, cfg *config.Config, st *State) error {
	previous := make(map[string]string, len(st.Lock.Packages))
	for name, p := range st.Lock.Packages {
		if p.Checksum != "" {
			previous[name] = p.Checksum
		}
	}

	names := make([]string, 0, len(cfg.Packages))
	for name := range cfg.Packages {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if st.visited[name] {
			continue
		}

		src, err := inst.Resolver.Resolve(ctx, cfg.Packages[name])
		if err != nil {
			return fmt.Errorf("resolving %q: %w", name, err)
		}

		start := len(st.Installed)
		if err := inst.Install(ctx, st, name, src.Locator, src.Version); err != nil {
			return err
		}

		for _, installed := range st.Installed[start:] {
			expected, ok := previous[installed]
			if !ok {
				continue
			}
			if err := inst.Verify(installed, expected); err != nil {
				return err
			}
			inst.logger().Debug("integrity verified", "name", installed)
		}
	}
	return nil
}

func (inst *Installer) logger() *log.Logger {
	if inst.Logger == nil {
		return log.Default()
	}
	return inst.Logger
}
