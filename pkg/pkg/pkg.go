// Package pkg classifies fetched package trees by the marker files they
// carry.
package pkg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/finn-lang/finn/pkg/finnerr"
)

type Type int

const (
	Unknown Type = iota
	// Project carries its own finn.toml manifest.
	Project
	// Library exports Fin symbols or ships a foreign package manifest.
	Library
	// NativeLibrary is a C/C++ tree with a build descriptor.
	NativeLibrary
)

func (t Type) String() string {
	switch t {
	case Project:
		return "project"
	case Library:
		return "library"
	case NativeLibrary:
		return "native-library"
	default:
		return "unknown"
	}
}

const (
	ManifestFile = "finn.toml"
	ExportsFile  = "exports.fin"
	PackageJSON  = "package.json"
	CMakeFile    = "CMakeLists.txt"
	Makefile     = "Makefile"
)

// markers lists the files checked for each type, in priority order.
var markers = []struct {
	typ   Type
	files []string
}{
	{Project, []string{ManifestFile}},
	{Library, []string{ExportsFile, PackageJSON}},
	{NativeLibrary, []string{CMakeFile, Makefile}},
}

// Classify reports what kind of package lives in dir. With
// ignoreRegulations set every check is skipped and Unknown is returned
// after a warning. A tree with none of the known markers fails with a
// *finnerr.ValidationError.
func Classify(logger *log.Logger, dir string, ignoreRegulations bool) (Type, error) {
	if logger == nil {
		logger = log.Default()
	}

	if ignoreRegulations {
		logger.Warn("skipping package validation (regulations ignored)", "dir", dir)
		return Unknown, nil
	}

	var missing []string
	for _, m := range markers {
		for _, f := range m.files {
			if fileExists(filepath.Join(dir, f)) {
				if m.typ == NativeLibrary {
					logger.Info("detected C/C++ build system", "dir", dir, "marker", f)
				}
				return m.typ, nil
			}
			missing = append(missing, f)
		}
	}

	return Unknown, &finnerr.ValidationError{Dir: dir, Missing: missing}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ValidateName rejects package names that are not a single plain path
// segment. Names become directory names under the packages dir and the
// cache root, and may come from untrusted manifests or the registry.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`+"\x00") || !filepath.IsLocal(name) {
		return fmt.Errorf("%w: %q is not a valid package name", finnerr.ErrInvalidRef, name)
	}
	return nil
}
