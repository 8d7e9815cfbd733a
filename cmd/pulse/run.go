package main

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/recera/pulse/cmd/pulse/internal/config"
	"github.com/recera/pulse/cmd/pulse/internal/ui"
)

func newRunCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the app with file watching and automatic restart",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDev(dir)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "Project directory")
	return cmd
}

func runDev(dir string) error {
	cfg, err := config.Load(dir)
	if err != nil {
		fmt.Println(ui.Warn("no %s found, using defaults", config.FileName))
		cfg = config.DefaultConfig()
	}
	fmt.Println(ui.Title("Pulse dev server"))
	fmt.Println(ui.Muted("app: " + cfg.App + "  addr: " + cfg.Addr()))

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Close()
	if err := watchGoDirs(watcher, dir); err != nil {
		return err
	}

	runner := &appRunner{dir: dir}
	if err := runner.start(); err != nil {
		return err
	}
	defer runner.stop()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	// Editors fire bursts of writes; debounce before restarting.
	var restartAt time.Time
	debounce := 300 * time.Millisecond
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(ev.Name, ".go") && filepath.Base(ev.Name) != config.FileName {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			restartAt = time.Now().Add(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Println(ui.Warn("watcher: %v", err))

		case now := <-tick.C:
			if restartAt.IsZero() || now.Before(restartAt) {
				continue
			}
			restartAt = time.Time{}
			fmt.Println(ui.Muted("change detected, restarting"))
			runner.stop()
			if err := runner.start(); err != nil {
				fmt.Println(ui.Error("restart failed: %v", err))
			} else {
				fmt.Println(ui.Success("restarted"))
			}

		case <-sigs:
			fmt.Println(ui.Muted("shutting down"))
			return nil
		}
	}
}

// watchGoDirs registers the project directory and every subdirectory
// that is not hidden or build output.
func watchGoDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root && (strings.HasPrefix(name, ".") || name == "node_modules") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// appRunner owns the child process running the user's app.
type appRunner struct {
	dir string
	cmd *exec.Cmd
}

func (r *appRunner) start() error {
	cmd := exec.Command("go", "run", ".")
	cmd.Dir = r.dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("go run: %w", err)
	}
	r.cmd = cmd
	return nil
}

func (r *appRunner) stop() {
	if r.cmd == nil || r.cmd.Process == nil {
		return
	}
	// Kill the process group so go run's child goes too.
	syscall.Kill(-r.cmd.Process.Pid, syscall.SIGTERM)
	r.cmd.Wait()
	r.cmd = nil
}
