package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/finn-lang/finn/pkg/config"
	"github.com/finn-lang/finn/pkg/finnerr"
	"github.com/finn-lang/finn/pkg/installer"
	"github.com/finn-lang/finn/pkg/project"
)

const (
	statusInstalled = "installed"
	statusMissing   = "missing"
	statusDrifted   = "drifted"
)

type healthReport struct {
	Project    string          `json:"project"`
	Version    string          `json:"version"`
	EnvDir     string          `json:"envDir"`
	EnvPresent bool            `json:"envPresent"`
	Packages   []packageHealth `json:"packages"`
}

type packageHealth struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

func (r *healthReport) unhealthy() int {
	n := 0
	for _, pkg := range r.Packages {
		if pkg.Status != statusInstalled {
			n++
		}
	}
	return n
}

func newHealthcheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check the project environment",
		Long: `Reports every package in finn.toml and finn.lock as installed, missing
or drifted (installed content no longer matches the lock checksum).

Exits non-zero when any package is not installed cleanly.`,
		Args: cobra.NoArgs,
		RunE: runHealthcheck,
	}

	cmd.Flags().StringP("output", "o", "text", "output format (text|yaml)")

	return cmd
}

func runHealthcheck(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	if output != "text" && output != "yaml" {
		return fmt.Errorf("unsupported output format %q", output)
	}

	p, err := loadProject()
	if err != nil {
		return err
	}

	lock, err := config.LoadLockFile(p.LockPath())
	if err != nil {
		return fmt.Errorf("loading lockfile: %w", err)
	}

	report := checkHealth(p, lock)

	if output == "yaml" {
		data, err := yaml.Marshal(report)
		if err != nil {
			return fmt.Errorf("marshaling report: %w", err)
		}
		if _, err := cmd.OutOrStdout().Write(data); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
	} else {
		printHealth(cmd.OutOrStdout(), report)
	}

	if n := report.unhealthy(); n > 0 {
		return fmt.Errorf("%d package(s) need attention (run `finn sync`)", n)
	}
	return nil
}

// checkHealth inspects every package named in the manifest or the lock.
func checkHealth(p *project.Project, lock *config.LockFile) *healthReport {
	report := &healthReport{
		Project: p.Config.Project.Name,
		Version: p.Config.Project.Version,
		EnvDir:  p.EnvDir(),
	}
	if info, err := os.Stat(report.EnvDir); err == nil && info.IsDir() {
		report.EnvPresent = true
	}

	names := map[string]bool{}
	for name := range p.Config.Packages {
		names[name] = true
	}
	for name := range lock.Packages {
		names[name] = true
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	inst := &installer.Installer{PackagesDir: p.PackagesDir(), Logger: logger()}
	for _, name := range sorted {
		h := packageHealth{Name: name, Status: statusInstalled}
		locked, isLocked := lock.Get(name)
		if isLocked {
			h.Version = locked.Version
		}

		switch _, err := os.Stat(filepath.Join(p.PackagesDir(), name)); {
		case err != nil:
			h.Status = statusMissing
		case !isLocked:
			h.Status = statusMissing
			h.Detail = "not recorded in " + config.LockFileName
		case locked.Checksum != "":
			err := inst.Verify(name, locked.Checksum)
			var ierr *finnerr.IntegrityError
			if errors.As(err, &ierr) {
				h.Status = statusDrifted
				h.Detail = fmt.Sprintf("expected %s, found %s", ierr.Expected, ierr.Actual)
			} else if err != nil {
				h.Status = statusMissing
				h.Detail = err.Error()
			}
		}
		report.Packages = append(report.Packages, h)
	}
	return report
}

func printHealth(w io.Writer, r *healthReport) {
	fmt.Fprintf(w, "Project: %s %s\n", r.Project, r.Version)
	env := "missing"
	if r.EnvPresent {
		env = "present"
	}
	fmt.Fprintf(w, "Environment: %s (%s)\n", r.EnvDir, env)

	if len(r.Packages) == 0 {
		fmt.Fprintln(w, "No packages")
		return
	}
	for _, pkg := range r.Packages {
		line := fmt.Sprintf("  %-10s %s", pkg.Status, pkg.Name)
		if pkg.Version != "" {
			line += "@" + pkg.Version
		}
		if pkg.Detail != "" {
			line += " (" + pkg.Detail + ")"
		}
		fmt.Fprintln(w, line)
	}
}
