package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/finn-lang/finn/pkg/finnerr"
)

// HostedURLFormat expands an owner/repo shorthand into a clone URL.
const HostedURLFormat = "https://github.com/%s.git"

// schemes are the locator prefixes taken verbatim as remote URLs.
var schemes = []string{"https://", "http://", "ssh://", "file://", "git@"}

// Resolver interprets package references.
type Resolver struct {
	Registry Registry
	// BaseDir anchors relative filesystem references. Empty means the
	// process working directory.
	BaseDir string
}

func NewResolver(reg Registry, baseDir string) *Resolver {
	return &Resolver{Registry: reg, BaseDir: baseDir}
}

// Resolve parses ref of the form <locator-or-shorthand-or-name>[@version].
// The first matching rule wins:
//
//  1. URL-like locators (https://, http://, ssh://, file://, git@).
//  2. Absolute paths, or relative paths that exist under BaseDir.
//  3. owner/repo shorthands, expanded with HostedURLFormat.
//  4. Bare names, looked up in the registry.
//
// Only registry packages are Official. For registry packages an explicit
// @version wins over the registry's latest_version.
func (r *Resolver) Resolve(ctx context.Context, ref string) (PackageSource, error) {
	base, version, err := SplitVersion(ref)
	if err != nil {
		return PackageSource{}, err
	}

	if hasScheme(base) {
		name := urlName(base)
		if name == "" {
			return PackageSource{}, fmt.Errorf("%w %q: cannot derive a package name", finnerr.ErrInvalidRef, ref)
		}
		return PackageSource{Name: name, Locator: base, Version: version, Trust: Untrusted}, nil
	}

	if path, ok := r.localPath(base); ok {
		abs, err := filepath.Abs(path)
		if err != nil {
			return PackageSource{}, fmt.Errorf("resolving absolute path for %q: %w", base, err)
		}
		locator := abs
		if real, err := filepath.EvalSymlinks(abs); err == nil {
			locator = real
		}
		return PackageSource{Name: filepath.Base(abs), Locator: locator, Version: version, Trust: Untrusted}, nil
	}

	if strings.Contains(base, "/") && !strings.Contains(base, `\`) {
		name := base[strings.LastIndex(base, "/")+1:]
		if name == "" {
			return PackageSource{}, fmt.Errorf("%w %q: missing repository name", finnerr.ErrInvalidRef, ref)
		}
		return PackageSource{Name: name, Locator: fmt.Sprintf(HostedURLFormat, base), Version: version, Trust: Untrusted}, nil
	}

	if r.Registry == nil {
		return PackageSource{}, fmt.Errorf("resolving %q: no registry configured", base)
	}
	meta, err := r.Registry.GetPackage(ctx, base)
	if err != nil {
		return PackageSource{}, fmt.Errorf("resolving package %q: %w", base, err)
	}
	if version == "" {
		version = meta.LatestVersion
	}
	return PackageSource{Name: meta.Name, Locator: meta.RepoURL, Version: version, Trust: Official}, nil
}

// SplitVersion separates an optional trailing "@version" from ref. An "@"
// whose suffix contains "/" or ":" belongs to the locator (git@host:...,
// ssh://user@host/...) and is not a version separator.
func SplitVersion(ref string) (base, version string, err error) {
	if ref == "" {
		return "", "", fmt.Errorf("%w: empty reference", finnerr.ErrInvalidRef)
	}

	idx := strings.LastIndex(ref, "@")
	if idx < 0 || strings.ContainsAny(ref[idx+1:], "/:") {
		return ref, "", nil
	}

	base, version = ref[:idx], ref[idx+1:]
	if base == "" {
		return "", "", fmt.Errorf("%w %q: missing package before @", finnerr.ErrInvalidRef, ref)
	}
	if version == "" {
		return "", "", fmt.Errorf("%w %q: empty version after @", finnerr.ErrInvalidRef, ref)
	}
	return base, version, nil
}

func hasScheme(s string) bool {
	for _, p := range schemes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// urlName returns the last path segment of a URL-like locator with any
// trailing slash and ".git" suffix removed.
func urlName(locator string) string {
	trimmed := strings.TrimRight(locator, "/")
	if i := strings.LastIndexAny(trimmed, "/:"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	return strings.TrimSuffix(trimmed, ".git")
}

// localPath reports whether ref names a filesystem path: any absolute
// path, or a relative one that exists under BaseDir.
func (r *Resolver) localPath(ref string) (string, bool) {
	if filepath.IsAbs(ref) {
		return ref, true
	}
	path := ref
	if r.BaseDir != "" {
		path = filepath.Join(r.BaseDir, ref)
	}
	if _, err := os.Stat(path); err == nil {
		return path, true
	}
	return "", false
}
