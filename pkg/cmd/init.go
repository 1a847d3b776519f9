package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/finn-lang/finn/pkg/project"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Initialize a new finn project",
		Long:  "Creates a finn.toml manifest and the environment directory, and optionally adds the environment directory to .gitignore.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runInit,
	}

	cmd.Flags().String("name", "", "project name (defaults to the directory name)")
	cmd.Flags().BoolP("yes", "y", false, "accept defaults without prompting")

	return cmd
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}
	if len(args) == 1 {
		dir, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving %s: %w", args[0], err)
		}
	}

	name, _ := cmd.Flags().GetString("name")
	if name == "" {
		name = project.InferName(dir)
	}
	yes, _ := cmd.Flags().GetBool("yes")

	p, err := project.Init(dir, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", p.ManifestPath())

	ignore := true
	if !yes {
		if ignore, err = promptGitignore(p.GitignoreEntry()); err != nil {
			return err
		}
	}
	if !ignore {
		return nil
	}

	added, err := project.EnsureGitignore(dir, []string{p.GitignoreEntry()})
	if err != nil {
		return err
	}
	for _, entry := range added {
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s to .gitignore\n", entry)
	}

	return nil
}

func promptGitignore(entry string) (bool, error) {
	ignore := true
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Add %s to .gitignore?", entry)).
				Affirmative("Yes").
				Negative("No").
				Value(&ignore),
		),
	).Run()
	if err != nil {
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	return ignore, nil
}
