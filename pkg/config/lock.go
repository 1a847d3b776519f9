package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

const (
	LockFileName = "finn.lock"
	lockVersion  = 1

	// UnknownRevision is recorded when the installed copy's commit cannot
	// be determined.
	UnknownRevision = "unknown"
	// HeadVersion is recorded for packages installed without a pin.
	HeadVersion = "HEAD"
)

// LockFile records what is installed, keyed by package name. There is one
// record per name; a later install of the same name replaces it.
type LockFile struct {
	Version  int                      `toml:"version"`
	Packages map[string]LockedPackage `toml:"packages"`
}

type LockedPackage struct {
	Source   string `toml:"source"`
	Commit   string `toml:"commit"`
	Version  string `toml:"version"`
	Checksum string `toml:"checksum"`
}

func NewLockFile() *LockFile {
	return &LockFile{Version: lockVersion, Packages: map[string]LockedPackage{}}
}

// Update inserts or replaces the record for name.
func (lf *LockFile) Update(name, source, commit, version, checksum string) {
	if lf.Packages == nil {
		lf.Packages = map[string]LockedPackage{}
	}
	lf.Packages[name] = LockedPackage{
		Source:   source,
		Commit:   commit,
		Version:  version,
		Checksum: checksum,
	}
}

// Get returns the record for name, if any.
func (lf *LockFile) Get(name string) (LockedPackage, bool) {
	p, ok := lf.Packages[name]
	return p, ok
}

// Remove deletes the record for name and reports whether one existed.
func (lf *LockFile) Remove(name string) bool {
	if _, ok := lf.Packages[name]; !ok {
		return false
	}
	delete(lf.Packages, name)
	return true
}

// LoadLockFile reads the lock at path. A missing file yields an empty lock.
func LoadLockFile(path string) (*LockFile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewLockFile(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	lf := NewLockFile()
	if err := toml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if lf.Packages == nil {
		lf.Packages = map[string]LockedPackage{}
	}
	return lf, nil
}

// SaveLockFile writes lf to path. Keys are emitted in sorted order so the
// file diffs cleanly.
func SaveLockFile(path string, lf *LockFile) error {
	if lf.Version == 0 {
		lf.Version = lockVersion
	}
	data, err := toml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lockfile: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
