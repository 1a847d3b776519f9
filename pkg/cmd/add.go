package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/finn-lang/finn/pkg/config"
	"github.com/finn-lang/finn/pkg/installer"
)

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add [ref]",
		Short: "Add and install a package",
		Long: `Installs a package and its dependencies, then records it in finn.toml.

A ref may be a git URL (https://, ssh://, git@...), a local directory,
an owner/repo shorthand hosted on GitHub, or a registry package name.
Append @version to pin a tag, branch or commit.`,
		Args: cobra.ExactArgs(1),
		RunE: runAdd,
	}
}

func runAdd(cmd *cobra.Command, args []string) error {
	ref := args[0]

	p, err := loadProject()
	if err != nil {
		return err
	}

	inst, err := newInstaller(p)
	if err != nil {
		return err
	}

	src, err := inst.Resolver.Resolve(cmd.Context(), ref)
	if err != nil {
		return err
	}
	logger().Debug("resolved", "name", src.Name, "locator", src.Locator, "version", src.Version, "trust", src.Trust)

	lock, err := config.LoadLockFile(p.LockPath())
	if err != nil {
		return fmt.Errorf("loading lockfile: %w", err)
	}

	st := installer.NewState(lock)
	installErr := inst.Install(cmd.Context(), st, src.Name, src.Locator, src.Version)

	// Packages installed before a failure stay recorded.
	if err := saveLock(p, st.Lock); err != nil {
		return errors.Join(installErr, err)
	}
	if installErr != nil {
		return installErr
	}

	if p.Config.Packages == nil {
		p.Config.Packages = map[string]string{}
	}
	p.Config.Packages[src.Name] = ref
	if err := p.Save(); err != nil {
		return fmt.Errorf("saving %s: %w", p.ManifestPath(), err)
	}

	for _, name := range st.Installed {
		fmt.Fprintf(cmd.OutOrStdout(), "Installed %s\n", name)
	}
	return nil
}
