package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/recera/pulse/cmd/pulse/internal/config"
	"github.com/recera/pulse/cmd/pulse/internal/ui"
)

func newExportCommand() *cobra.Command {
	var dir string
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Compile every page to static source modules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(dir, out)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "Project directory")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output directory (defaults to out_dir from pulse.yaml)")
	return cmd
}

func runExport(dir, out string) error {
	cfg, err := config.Load(dir)
	if err != nil {
		fmt.Println(ui.Warn("no %s found, using defaults", config.FileName))
		cfg = config.DefaultConfig()
	}
	if out == "" {
		out = cfg.OutDir
	}
	if !filepath.IsAbs(out) {
		abs, err := filepath.Abs(filepath.Join(dir, out))
		if err != nil {
			return err
		}
		out = abs
	}

	fmt.Println(ui.Title("Exporting " + cfg.App))

	// The app binary does the compiling; the export directory is
	// handed over through the environment.
	cmd := exec.Command("go", "run", ".")
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), "PULSE_EXPORT_DIR="+out)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	fmt.Println(ui.Success("pages written to %s", out))
	return nil
}
