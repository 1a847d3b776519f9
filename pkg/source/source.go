// Package source turns package references into canonical sources.
package source

import (
	"context"

	"github.com/finn-lang/finn/pkg/registry"
)

// Trust records where a source came from. Only registry packages are
// official.
type Trust int

const (
	Untrusted Trust = iota
	Official
)

func (t Trust) String() string {
	if t == Official {
		return "official"
	}
	return "untrusted"
}

// PackageSource is a resolved reference. It is produced once by Resolve and
// never modified afterwards.
type PackageSource struct {
	Name    string
	Locator string // URL or absolute filesystem path
	Version string // optional pin; empty means the default branch
	Trust   Trust
}

// Registry looks up bare package names.
type Registry interface {
	GetPackage(ctx context.Context, name string) (*registry.Package, error)
}

var _ Registry = &registry.Client{}
