package cmd

import (
	"fmt"
	"os"

	"github.com/finn-lang/finn/pkg/cache"
	"github.com/finn-lang/finn/pkg/config"
	"github.com/finn-lang/finn/pkg/installer"
	"github.com/finn-lang/finn/pkg/project"
	"github.com/finn-lang/finn/pkg/registry"
	"github.com/finn-lang/finn/pkg/source"
	"github.com/finn-lang/finn/pkg/store"
	"github.com/finn-lang/finn/pkg/vcs"
)

// newVCS builds the version-control tool used for fetching. Tests replace it.
var newVCS = func() vcs.Tool { return &vcs.Git{} }

// loadProject finds the manifest governing the working directory.
func loadProject() (*project.Project, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	return project.Find(wd)
}

// newInstaller wires the cache, resolver and registry for p.
func newInstaller(p *project.Project) (*installer.Installer, error) {
	settings, err := config.LoadSettings(p.Config.RegistryURL())
	if err != nil {
		return nil, err
	}
	logger().Debug("settings", "registry", settings.RegistryURL, "cache", settings.CacheDir)

	tool := newVCS()
	return &installer.Installer{
		Cache:             cache.New(store.New(settings.CacheDir), tool, logger()),
		VCS:               tool,
		Resolver:          source.NewResolver(registry.New(settings.RegistryURL), p.Dir),
		PackagesDir:       p.PackagesDir(),
		Force:             flagForce,
		IgnoreRegulations: flagIgnoreRegulations,
		Logger:            logger(),
	}, nil
}

func saveLock(p *project.Project, lf *config.LockFile) error {
	if err := config.SaveLockFile(p.LockPath(), lf); err != nil {
		return fmt.Errorf("writing lockfile: %w", err)
	}
	return nil
}
