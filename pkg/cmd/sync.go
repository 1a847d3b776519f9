package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/finn-lang/finn/pkg/config"
	"github.com/finn-lang/finn/pkg/finnerr"
	"github.com/finn-lang/finn/pkg/installer"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Install every package in finn.toml",
		Long: `Installs all packages declared in finn.toml with their dependencies.

Packages already recorded in finn.lock are checked against their recorded
checksum; any difference aborts the sync.`,
		Args: cobra.NoArgs,
		RunE: runSync,
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}

	inst, err := newInstaller(p)
	if err != nil {
		return err
	}

	lock, err := config.LoadLockFile(p.LockPath())
	if err != nil {
		return fmt.Errorf("loading lockfile: %w", err)
	}

	st := installer.NewState(lock)
	syncErr := inst.Sync(cmd.Context(), p.Config, st)

	// A drifted package must keep its old checksum on disk.
	if errors.Is(syncErr, finnerr.ErrIntegrity) {
		return syncErr
	}
	if err := saveLock(p, st.Lock); err != nil {
		return errors.Join(syncErr, err)
	}
	if syncErr != nil {
		return syncErr
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Synced %d package(s)\n", len(st.Installed))
	return nil
}
