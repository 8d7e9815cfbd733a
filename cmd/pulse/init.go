package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/recera/pulse/cmd/pulse/internal/config"
	"github.com/recera/pulse/cmd/pulse/internal/ui"
)

func newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init [name]",
		Short: "Scaffold a new Pulse project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "app"
			if len(args) > 0 {
				name = args[0]
			}
			return runInit(name)
		},
	}
}

func runInit(name string) error {
	dir := name
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	if _, err := os.Stat(filepath.Join(dir, config.FileName)); err == nil {
		return fmt.Errorf("%s already contains %s", dir, config.FileName)
	}

	fmt.Println(ui.Title("Creating project " + name))

	cfg := config.DefaultConfig()
	cfg.App = name
	if err := cfg.Save(dir); err != nil {
		return err
	}
	fmt.Println(ui.Success("wrote %s", config.FileName))

	mainPath := filepath.Join(dir, "main.go")
	if err := os.WriteFile(mainPath, []byte(counterTemplate), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", mainPath, err)
	}
	fmt.Println(ui.Success("wrote main.go"))
	fmt.Println(ui.Muted("next: cd " + name + " && pulse run"))
	return nil
}

// counterTemplate is the starter app: one int var, its generated
// setter wired to a button, and a computed label.
const counterTemplate = `package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/recera/pulse/pkg/component"
	"github.com/recera/pulse/pkg/event"
	"github.com/recera/pulse/pkg/pulse"
	"github.com/recera/pulse/pkg/state"
	"github.com/recera/pulse/pkg/vars"
)

var appState = func() *state.Class {
	c := state.NewClass("state").
		AddVar("count", vars.Int, 0).
		AddComputed("label", vars.Str, func(s *state.Instance) any {
			return fmt.Sprintf("count is %d", s.GetInt("count"))
		}, state.Cached("count")).
		AddHandler("increment", nil, func(s *state.Instance, args map[string]any) ([]event.Event, error) {
			return nil, s.Set("count", s.GetInt("count")+1)
		})
	if err := c.Seal(); err != nil {
		log.Fatal(err)
	}
	return c
}()

func indexPage(gen *vars.NameGen) (component.Component, error) {
	label, err := component.Text(nil, appState.Var("label"))
	if err != nil {
		return nil, err
	}
	button, err := component.Button(component.Props{"on_click": appState.Handler("increment")}, "+1")
	if err != nil {
		return nil, err
	}
	return component.Box(nil, label, button)
}

func main() {
	app := pulse.New(appState, pulse.Options{})
	app.AddPage("/", indexPage)

	if dir := os.Getenv("PULSE_EXPORT_DIR"); dir != "" {
		if err := app.Compile(dir); err != nil {
			log.Fatal(err)
		}
		return
	}
	if err := app.Serve(context.Background(), ":8000"); err != nil {
		log.Fatal(err)
	}
}
`
