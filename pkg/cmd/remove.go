package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/finn-lang/finn/pkg/config"
	"github.com/finn-lang/finn/pkg/finnerr"
	"github.com/finn-lang/finn/pkg/pkg"
)

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove [name]",
		Short: "Remove a package",
		Long: `Removes a package from finn.toml, finn.lock and the environment directory.

An owner/name reference is accepted; only the last segment is used.
Dependencies installed along with the package are left in place.`,
		Args: cobra.ExactArgs(1),
		RunE: runRemove,
	}
}

func runRemove(cmd *cobra.Command, args []string) error {
	name := args[0]
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if err := pkg.ValidateName(name); err != nil {
		return err
	}

	p, err := loadProject()
	if err != nil {
		return err
	}

	if _, ok := p.Config.Packages[name]; !ok {
		return fmt.Errorf("%w: package %q is not in %s", finnerr.ErrNotFound, name, p.ManifestPath())
	}

	dir := filepath.Join(p.PackagesDir(), name)
	if err := os.RemoveAll(dir); err != nil {
		return finnerr.IO("removing "+dir, err)
	}

	delete(p.Config.Packages, name)
	if err := p.Save(); err != nil {
		return fmt.Errorf("saving %s: %w", p.ManifestPath(), err)
	}

	lf, err := config.LoadLockFile(p.LockPath())
	if err != nil {
		return fmt.Errorf("loading lockfile: %w", err)
	}
	if lf.Remove(name) {
		if err := saveLock(p, lf); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", name)
	return nil
}
