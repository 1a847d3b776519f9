package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/finn-lang/finn/pkg/config"
	"github.com/finn-lang/finn/pkg/finnerr"
)

const ManifestFile = config.ManifestFileName

// PackagesDirName is the directory under the env path holding installed
// packages.
const PackagesDirName = "packages"

// Project is a directory containing a finn.toml manifest.
type Project struct {
	Dir    string
	Config *config.Config
}

// InferName derives a project name from the given directory path.
func InferName(dir string) string {
	return filepath.Base(dir)
}

// Init creates a finn.toml manifest in dir with the given project name and
// the env packages directory. Returns an error if the manifest already
// exists.
func Init(dir, name string) (*Project, error) {
	path := filepath.Join(dir, ManifestFile)

	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%s already exists", ManifestFile)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, finnerr.IO("creating project dir", err)
	}

	cfg := config.Default(name)
	if err := config.SaveFile(path, cfg); err != nil {
		return nil, err
	}

	p := &Project{Dir: dir, Config: cfg}
	if err := os.MkdirAll(p.PackagesDir(), 0o755); err != nil {
		return nil, finnerr.IO("creating packages dir", err)
	}
	return p, nil
}

// Find walks up from start to the nearest directory holding a finn.toml
// and loads it. Returns finnerr.ErrNotFound when no manifest exists.
func Find(start string) (*Project, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", start, err)
	}

	for {
		path := filepath.Join(dir, ManifestFile)
		_, err := os.Stat(path)
		switch {
		case err == nil:
			cfg, err := config.LoadFile(path)
			if err != nil {
				return nil, err
			}
			return &Project{Dir: dir, Config: cfg}, nil
		case !errors.Is(err, fs.ErrNotExist):
			return nil, finnerr.IO("looking for "+ManifestFile, err)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, fmt.Errorf("%w: no %s in %s or any parent directory (run `finn init`)", finnerr.ErrNotFound, ManifestFile, start)
		}
		dir = parent
	}
}

func (p *Project) ManifestPath() string {
	return filepath.Join(p.Dir, ManifestFile)
}

func (p *Project) LockPath() string {
	return filepath.Join(p.Dir, config.LockFileName)
}

// EnvDir is the project's environment directory, <dir>/<envpath>.
func (p *Project) EnvDir() string {
	return filepath.Join(p.Dir, p.Config.EnvPath())
}

// PackagesDir is where installed packages live, <dir>/<envpath>/packages.
func (p *Project) PackagesDir() string {
	return filepath.Join(p.EnvDir(), PackagesDirName)
}

// Save writes the manifest back to disk.
func (p *Project) Save() error {
	return config.SaveFile(p.ManifestPath(), p.Config)
}

// GitignoreEntry returns the .gitignore line for the env directory.
func (p *Project) GitignoreEntry() string {
	return strings.TrimSuffix(filepath.ToSlash(p.Config.EnvPath()), "/") + "/"
}

// EnsureGitignore ensures that each entry appears somewhere in the .gitignore
// file within dir. Only entries not already present are appended. Returns the
// list of entries that were actually added.
func EnsureGitignore(dir string, entries []string) ([]string, error) {
	path := filepath.Join(dir, ".gitignore")

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	present := make(map[string]bool)
	for _, line := range strings.Split(string(existing), "\n") {
		present[strings.TrimSpace(line)] = true
	}

	var toAdd []string
	for _, entry := range entries {
		if !present[entry] {
			toAdd = append(toAdd, entry)
		}
	}

	if len(toAdd) == 0 {
		return nil, nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		if _, err := f.WriteString("\n"); err != nil {
			return nil, err
		}
	}

	for _, entry := range toAdd {
		if _, err := f.WriteString(entry + "\n"); err != nil {
			return nil, err
		}
	}

	return toAdd, nil
}
