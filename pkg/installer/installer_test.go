package installer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/finn-lang/finn/pkg/cache"
	"github.com/finn-lang/finn/pkg/config"
	"github.com/finn-lang/finn/pkg/finnerr"
	"github.com/finn-lang/finn/pkg/integrity"
	"github.com/finn-lang/finn/pkg/source"
	"github.com/finn-lang/finn/pkg/store"
	"github.com/finn-lang/finn/pkg/vcs/vcstest"
)

// writePackage creates a Fin library at dir whose finn.toml declares deps.
func writePackage(t *testing.T, dir string, deps map[string]string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("creating %s: %v", dir, err)
	}
	cfg := config.Default(filepath.Base(dir))
	cfg.Project.Entrypoint = "lib.fin"
	cfg.Packages = deps
	if err := config.SaveFile(filepath.Join(dir, config.ManifestFileName), cfg); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}
	writeFile(t, filepath.Join(dir, "lib.fin"), "pub fun test() {}")
	writeFile(t, filepath.Join(dir, "exports.fin"), "export *")
}

// writeFile writes content to path, creating parent directories.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating parent of %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

type fixture struct {
	inst        *Installer
	fake        *vcstest.Fake
	packagesDir string
	cacheRoot   string
	srcRoot     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := &vcstest.Fake{Remotes: map[string]string{}}
	cacheRoot := t.TempDir()
	projectDir := t.TempDir()
	logger := log.New(&bytes.Buffer{})

	return &fixture{
		inst: &Installer{
			Cache:       cache.New(store.New(cacheRoot), fake, logger),
			VCS:         fake,
			Resolver:    source.NewResolver(nil, projectDir),
			PackagesDir: filepath.Join(projectDir, ".finn", "packages"),
			Logger:      logger,
		},
		fake:        fake,
		packagesDir: filepath.Join(projectDir, ".finn", "packages"),
		cacheRoot:   cacheRoot,
		srcRoot:     t.TempDir(),
	}
}

// local creates a local package under the fixture's source root.
func (f *fixture) local(t *testing.T, name string, deps map[string]string) string {
	t.Helper()
	dir := filepath.Join(f.srcRoot, name)
	writePackage(t, dir, deps)
	return dir
}

// remote registers a package served by the fake VCS under url.
func (f *fixture) remote(t *testing.T, name, url string, deps map[string]string) {
	t.Helper()
	dir := filepath.Join(f.srcRoot, "remotes", name)
	writePackage(t, dir, deps)
	f.fake.Remotes[url] = dir
}

func (f *fixture) installed(name string) string {
	return filepath.Join(f.packagesDir, name)
}

func TestInstallLocalPackage(t *testing.T) {
	f := newFixture(t)
	src := f.local(t, "LibA", nil)
	st := NewState(nil)

	if err := f.inst.Install(context.Background(), st, "LibA", src, ""); err != nil {
		t.Fatalf("Install() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(f.installed("LibA"), "lib.fin"))
	if err != nil || string(data) != "pub fun test() {}" {
		t.Fatalf("installed lib.fin = %q, %v", data, err)
	}

	sum, _ := integrity.HashTree(f.installed("LibA"))
	want := config.LockedPackage{Source: src, Commit: config.UnknownRevision, Version: config.HeadVersion, Checksum: sum}
	if got, _ := st.Lock.Get("LibA"); got != want {
		t.Errorf("lock record = %+v, want %+v", got, want)
	}
	if !reflect.DeepEqual(st.Installed, []string{"LibA"}) {
		t.Errorf("Installed = %v, want [LibA]", st.Installed)
	}
}

func TestInstallRemoteRecordsRevision(t *testing.T) {
	f := newFixture(t)
	const url = "https://example.com/fin/json.git"
	f.remote(t, "json", url, nil)
	st := NewState(nil)

	if err := f.inst.Install(context.Background(), st, "json", url, "v1.2.0"); err != nil {
		t.Fatalf("Install() error: %v", err)
	}

	got, _ := st.Lock.Get("json")
	if got.Source != url || got.Commit != "v1.2.0" || got.Version != "v1.2.0" {
		t.Errorf("lock record = %+v", got)
	}
	if _, err := os.Stat(filepath.Join(f.cacheRoot, cache.Key("json", url, "v1.2.0"))); err != nil {
		t.Errorf("cache entry missing: %v", err)
	}
}

func TestInstallTransitive(t *testing.T) {
	f := newFixture(t)
	libC := f.local(t, "LibC", nil)
	libB := f.local(t, "LibB", map[string]string{"LibC": libC})
	libA := f.local(t, "LibA", map[string]string{"LibB": libB})
	st := NewState(nil)

	if err := f.inst.Install(context.Background(), st, "LibA", libA, ""); err != nil {
		t.Fatalf("Install() error: %v", err)
	}

	for _, name := range []string{"LibA", "LibB", "LibC"} {
		if _, err := os.Stat(f.installed(name)); err != nil {
			t.Errorf("%s not installed: %v", name, err)
		}
		if _, ok := st.Lock.Get(name); !ok {
			t.Errorf("%s missing from lock", name)
		}
	}
	if !reflect.DeepEqual(st.Installed, []string{"LibA", "LibB", "LibC"}) {
		t.Errorf("Installed = %v, want depth-first order", st.Installed)
	}
}

func TestInstallCycleTerminates(t *testing.T) {
	f := newFixture(t)
	libA := filepath.Join(f.srcRoot, "LibA")
	libB := f.local(t, "LibB", map[string]string{"LibA": libA})
	writePackage(t, libA, map[string]string{"LibB": libB})
	st := NewState(nil)

	if err := f.inst.Install(context.Background(), st, "LibA", libA, ""); err != nil {
		t.Fatalf("Install() error: %v", err)
	}

	if !reflect.DeepEqual(st.Installed, []string{"LibA", "LibB"}) {
		t.Errorf("Installed = %v, want each package exactly once", st.Installed)
	}
	if len(st.Lock.Packages) != 2 {
		t.Errorf("lock has %d records, want 2", len(st.Lock.Packages))
	}
}

func TestInstallDiamondFirstPinWins(t *testing.T) {
	f := newFixture(t)
	const urlC = "https://example.com/fin/LibC.git"
	f.remote(t, "LibC", urlC, nil)

	libA := f.local(t, "LibA", map[string]string{"LibC": urlC + "@v1"})
	libB := f.local(t, "LibB", map[string]string{"LibC": urlC + "@v2"})
	app := f.local(t, "App", map[string]string{"LibA": libA, "LibB": libB})
	st := NewState(nil)

	if err := f.inst.Install(context.Background(), st, "App", app, ""); err != nil {
		t.Fatalf("Install() error: %v", err)
	}

	if n := f.fake.CloneCount(urlC); n != 1 {
		t.Errorf("LibC cloned %d times, want 1", n)
	}
	if !reflect.DeepEqual(f.fake.Checkouts, []string{"v1"}) {
		t.Errorf("checkouts = %v, want only LibA's pin", f.fake.Checkouts)
	}
	if got, _ := st.Lock.Get("LibC"); got.Version != "v1" {
		t.Errorf("LibC locked at %q, want v1", got.Version)
	}
	if !reflect.DeepEqual(st.Installed, []string{"App", "LibA", "LibC", "LibB"}) {
		t.Errorf("Installed = %v", st.Installed)
	}
}

func TestInstallFailureKeepsEarlierWork(t *testing.T) {
	f := newFixture(t)
	libB := f.local(t, "LibB", nil)
	libA := f.local(t, "LibA", map[string]string{
		"LibB": libB,
		"LibZ": "https://example.com/fin/missing.git",
	})
	st := NewState(nil)

	err := f.inst.Install(context.Background(), st, "LibA", libA, "")
	if !errors.Is(err, finnerr.ErrFetch) {
		t.Fatalf("Install() error = %v, want ErrFetch", err)
	}
	if !strings.Contains(err.Error(), "LibZ") {
		t.Errorf("error %q does not name the failing package", err)
	}

	for _, name := range []string{"LibA", "LibB"} {
		if _, ok := st.Lock.Get(name); !ok {
			t.Errorf("%s dropped from lock after failure", name)
		}
		if _, err := os.Stat(f.installed(name)); err != nil {
			t.Errorf("%s removed from disk after failure: %v", name, err)
		}
	}
	if _, ok := st.Lock.Get("LibZ"); ok {
		t.Error("failed package recorded in lock")
	}
}

func TestInstallValidation(t *testing.T) {
	tests := map[string]struct {
		ignore  bool
		wantErr error
	}{
		"rejected": {wantErr: finnerr.ErrValidation},
		"override": {ignore: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.inst.IgnoreRegulations = tc.ignore

			src := filepath.Join(f.srcRoot, "docs")
			writeFile(t, filepath.Join(src, "README.md"), "# docs")

			err := f.inst.Install(context.Background(), NewState(nil), "docs", src, "")
			if !errors.Is(err, tc.wantErr) && !(err == nil && tc.wantErr == nil) {
				t.Fatalf("Install() error = %v, want %v", err, tc.wantErr)
			}

			_, statErr := os.Stat(f.installed("docs"))
			if installed := statErr == nil; installed != tc.ignore {
				t.Errorf("installed = %v, want %v", installed, tc.ignore)
			}
		})
	}
}

func TestInstallExistingStillWalksDependencies(t *testing.T) {
	f := newFixture(t)
	libB := f.local(t, "LibB", nil)
	libA := f.local(t, "LibA", nil)

	if err := f.inst.Install(context.Background(), NewState(nil), "LibA", libA, ""); err != nil {
		t.Fatalf("first Install() error: %v", err)
	}

	// The installed copy gains a dependency; the copy itself is kept.
	writePackage(t, f.installed("LibA"), map[string]string{"LibB": libB})
	writeFile(t, filepath.Join(f.installed("LibA"), "local-note.txt"), "kept")

	st := NewState(nil)
	if err := f.inst.Install(context.Background(), st, "LibA", libA, ""); err != nil {
		t.Fatalf("second Install() error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(f.installed("LibA"), "local-note.txt")); err != nil {
		t.Error("existing install was recopied without --force")
	}
	if _, err := os.Stat(f.installed("LibB")); err != nil {
		t.Errorf("dependency of already-installed package not installed: %v", err)
	}
}

func TestInstallForceReflectsLocalEdits(t *testing.T) {
	f := newFixture(t)
	src := f.local(t, "LibA", nil)
	ctx := context.Background()

	first := NewState(nil)
	if err := f.inst.Install(ctx, first, "LibA", src, ""); err != nil {
		t.Fatalf("first Install() error: %v", err)
	}
	before, _ := first.Lock.Get("LibA")

	writeFile(t, filepath.Join(src, "lib.fin"), "pub fun edited() {}")

	f.inst.Force = true
	second := NewState(first.Lock)
	if err := f.inst.Install(ctx, second, "LibA", src, ""); err != nil {
		t.Fatalf("second Install() error: %v", err)
	}

	for _, dir := range []string{f.installed("LibA"), filepath.Join(f.cacheRoot, cache.Key("LibA", src, ""))} {
		data, _ := os.ReadFile(filepath.Join(dir, "lib.fin"))
		if string(data) != "pub fun edited() {}" {
			t.Errorf("%s/lib.fin = %q, want the edited content", dir, data)
		}
	}

	after, _ := second.Lock.Get("LibA")
	if after.Checksum == before.Checksum {
		t.Error("lock checksum unchanged after reinstalling edited source")
	}
}

func TestInstallBadDependencyManifest(t *testing.T) {
	f := newFixture(t)
	src := f.local(t, "LibA", nil)
	writeFile(t, filepath.Join(src, config.ManifestFileName), "[packages\n")

	if err := f.inst.Install(context.Background(), NewState(nil), "LibA", src, ""); err == nil {
		t.Fatal("expected error for unparseable dependency manifest")
	}
}

func TestSync(t *testing.T) {
	f := newFixture(t)
	libB := f.local(t, "LibB", nil)
	libA := f.local(t, "LibA", map[string]string{"LibB": libB})
	cfg := config.Default("App")
	cfg.Packages = map[string]string{"LibA": libA}
	ctx := context.Background()

	first := NewState(nil)
	if err := f.inst.Sync(ctx, cfg, first); err != nil {
		t.Fatalf("first Sync() error: %v", err)
	}

	// Unchanged content verifies cleanly.
	if err := f.inst.Sync(ctx, cfg, NewState(first.Lock)); err != nil {
		t.Fatalf("second Sync() error: %v", err)
	}
}

func TestSyncDetectsDrift(t *testing.T) {
	tests := map[string]struct {
		tamper func(t *testing.T, f *fixture, lock *config.LockFile)
		target string
	}{
		"installed file modified": {
			tamper: func(t *testing.T, f *fixture, lock *config.LockFile) {
				writeFile(t, filepath.Join(f.installed("LibA"), "lib.fin"), "malicious()")
			},
			target: "LibA",
		},
		"dependency file added": {
			tamper: func(t *testing.T, f *fixture, lock *config.LockFile) {
				writeFile(t, filepath.Join(f.installed("LibB"), "extra.fin"), "x")
			},
			target: "LibB",
		},
		"lock checksum replaced": {
			tamper: func(t *testing.T, f *fixture, lock *config.LockFile) {
				p, _ := lock.Get("LibA")
				lock.Update("LibA", p.Source, p.Commit, p.Version, strings.Repeat("a", 64))
			},
			target: "LibA",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			libB := f.local(t, "LibB", nil)
			libA := f.local(t, "LibA", map[string]string{"LibB": libB})
			cfg := config.Default("App")
			cfg.Packages = map[string]string{"LibA": libA}
			ctx := context.Background()

			first := NewState(nil)
			if err := f.inst.Sync(ctx, cfg, first); err != nil {
				t.Fatalf("first Sync() error: %v", err)
			}
			expected, _ := first.Lock.Get(tc.target)

			tc.tamper(t, f, first.Lock)
			if p, _ := first.Lock.Get(tc.target); p.Checksum != expected.Checksum {
				expected = p
			}

			err := f.inst.Sync(ctx, cfg, NewState(first.Lock))
			var ierr *finnerr.IntegrityError
			if !errors.As(err, &ierr) {
				t.Fatalf("Sync() error = %v, want *IntegrityError", err)
			}

			actual, _ := integrity.HashTree(f.installed(tc.target))
			if ierr.Name != tc.target || ierr.Expected != expected.Checksum || ierr.Actual != actual {
				t.Errorf("IntegrityError = %+v, want name %s expected %s actual %s", ierr, tc.target, expected.Checksum, actual)
			}
			if !strings.Contains(err.Error(), expected.Checksum) || !strings.Contains(err.Error(), actual) {
				t.Errorf("error %q does not cite both digests", err)
			}
		})
	}
}

func TestVerify(t *testing.T) {
	f := newFixture(t)
	src := f.local(t, "LibA", nil)
	st := NewState(nil)
	if err := f.inst.Install(context.Background(), st, "LibA", src, ""); err != nil {
		t.Fatalf("Install() error: %v", err)
	}
	rec, _ := st.Lock.Get("LibA")

	if err := f.inst.Verify("LibA", rec.Checksum); err != nil {
		t.Errorf("Verify() on untouched install = %v", err)
	}
	if err := f.inst.Verify("LibA", "0000"); !errors.Is(err, finnerr.ErrIntegrity) {
		t.Errorf("Verify() with wrong checksum = %v, want ErrIntegrity", err)
	}
	if err := f.inst.Verify("Missing", rec.Checksum); !errors.Is(err, finnerr.ErrIO) {
		t.Errorf("Verify() on missing package = %v, want ErrIO", err)
	}
}

func TestInstallRejectsUnsafeNames(t *testing.T) {
	tests := map[string]string{
		"parent traversal": "../../escaped",
		"nested path":      "nested/pkg",
		"dot dot":          "..",
	}

	for name, depName := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			target := f.local(t, "Target", nil)
			libA := f.local(t, "LibA", map[string]string{depName: target})
			st := NewState(nil)

			err := f.inst.Install(context.Background(), st, "LibA", libA, "")
			if !errors.Is(err, finnerr.ErrInvalidRef) {
				t.Fatalf("Install() error = %v, want ErrInvalidRef", err)
			}

			if _, ok := st.Lock.Get(depName); ok {
				t.Errorf("unsafe name %q recorded in lock", depName)
			}
			if st.Visited(depName) {
				t.Errorf("unsafe name %q marked visited", depName)
			}

			// Nothing may appear beside or above the packages dir.
			for _, dir := range []string{filepath.Dir(f.packagesDir), filepath.Dir(filepath.Dir(f.packagesDir))} {
				if _, err := os.Stat(filepath.Join(dir, "escaped")); err == nil {
					t.Errorf("dependency written outside packages dir at %s", dir)
				}
			}
			if _, err := os.Stat(filepath.Join(f.packagesDir, "nested")); err == nil {
				t.Error("nested package dir created")
			}
		})
	}

	t.Run("top-level name", func(t *testing.T) {
		f := newFixture(t)
		src := f.local(t, "LibA", nil)
		err := f.inst.Install(context.Background(), NewState(nil), "../LibA", src, "")
		if !errors.Is(err, finnerr.ErrInvalidRef) {
			t.Fatalf("Install() error = %v, want ErrInvalidRef", err)
		}
		if entries, _ := os.ReadDir(f.cacheRoot); len(entries) != 0 {
			t.Errorf("cache populated for an invalid name: %v", entries)
		}
	})
}
